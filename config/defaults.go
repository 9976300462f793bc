package config

import (
	"github.com/spf13/viper"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.path", "karaoke.db")

	// Server defaults
	v.SetDefault("server.allowed_origins", []string{"http://localhost"})

	// Library defaults
	v.SetDefault("library.path", "library")
	v.SetDefault("library.watch", false)

	// Worker defaults
	v.SetDefault("worker.pool_size", 1)
	v.SetDefault("worker.stale_job_threshold_minutes", 30)

	// Download defaults
	v.SetDefault("download.timeout_seconds", 600)

	// Separation defaults
	v.SetDefault("separation.model", "htdemucs")
	v.SetDefault("separation.mp3_bitrate", 320)
	v.SetDefault("separation.device", "auto")
	v.SetDefault("separation.model_cache_dir", "")
	v.SetDefault("separation.model_base_url", "")

	// Metadata provider defaults
	v.SetDefault("metadata.base_url", "https://itunes.apple.com")
	v.SetDefault("metadata.requests_per_minute", 20)

	// Lyrics provider defaults
	v.SetDefault("lyrics.base_url", "https://lrclib.net")
	v.SetDefault("lyrics.timeout_seconds", 10)
}
