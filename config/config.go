// Package config loads the Open Karaoke Studio configuration from
// karaoke.toml files and KARAOKE_* environment variables.
package config

// Config is the root configuration
type Config struct {
	Database   DatabaseConfig   `mapstructure:"database" toml:"database"`
	Server     ServerConfig     `mapstructure:"server" toml:"server"`
	Library    LibraryConfig    `mapstructure:"library" toml:"library"`
	Worker     WorkerConfig     `mapstructure:"worker" toml:"worker"`
	Download   DownloadConfig   `mapstructure:"download" toml:"download"`
	Separation SeparationConfig `mapstructure:"separation" toml:"separation"`
	Metadata   MetadataConfig   `mapstructure:"metadata" toml:"metadata"`
	Lyrics     LyricsConfig     `mapstructure:"lyrics" toml:"lyrics"`
}

// DatabaseConfig configures the SQLite database
type DatabaseConfig struct {
	Path string `mapstructure:"path" toml:"path"`
}

// ServerConfig configures the HTTP/WebSocket server
type ServerConfig struct {
	Port           *int     `mapstructure:"port" toml:"port"` // nil = default, 0 is invalid (omit for default)
	AllowedOrigins []string `mapstructure:"allowed_origins" toml:"allowed_origins"`
}

// LibraryConfig configures the on-disk artifact library
type LibraryConfig struct {
	Path  string `mapstructure:"path" toml:"path"`
	Watch bool   `mapstructure:"watch" toml:"watch"` // log external changes to the library tree
}

// WorkerConfig configures the job worker pool
type WorkerConfig struct {
	// PoolSize is the number of concurrent pipeline workers.
	// 0 selects a size from available system memory (minimum 1).
	PoolSize int `mapstructure:"pool_size" toml:"pool_size"`

	// StaleJobThresholdMinutes bounds how old a non-terminal job may be at
	// startup before recovery marks it failed
	StaleJobThresholdMinutes int `mapstructure:"stale_job_threshold_minutes" toml:"stale_job_threshold_minutes"`
}

// DownloadConfig configures the media downloader subprocess
type DownloadConfig struct {
	YtdlpPath      string `mapstructure:"ytdlp_path" toml:"ytdlp_path"` // empty = discover on PATH
	TimeoutSeconds int    `mapstructure:"timeout_seconds" toml:"timeout_seconds"`
}

// SeparationConfig configures the stem separator subprocess
type SeparationConfig struct {
	DemucsPath    string `mapstructure:"demucs_path" toml:"demucs_path"` // empty = discover on PATH
	Model         string `mapstructure:"model" toml:"model"`
	MP3Bitrate    int    `mapstructure:"mp3_bitrate" toml:"mp3_bitrate"`
	Device        string `mapstructure:"device" toml:"device"` // auto, cuda, cpu
	ModelCacheDir string `mapstructure:"model_cache_dir" toml:"model_cache_dir"`
	ModelBaseURL  string `mapstructure:"model_base_url" toml:"model_base_url"` // remote model repository, empty disables fetch
}

// MetadataConfig configures the external catalog provider
type MetadataConfig struct {
	BaseURL           string `mapstructure:"base_url" toml:"base_url"`
	ContactEmail      string `mapstructure:"contact_email" toml:"contact_email"` // sent in User-Agent per provider etiquette
	RequestsPerMinute int    `mapstructure:"requests_per_minute" toml:"requests_per_minute"`
}

// LyricsConfig configures the external lyrics provider
type LyricsConfig struct {
	BaseURL        string `mapstructure:"base_url" toml:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" toml:"timeout_seconds"`
}

// Server port constants
const (
	DefaultServerPort = 5123
)

// File system constants
const (
	DefaultDirPermissions  = 0755
	DefaultFilePermissions = 0644
)

// ServerPort returns the configured port or the default.
func (c *Config) ServerPort() int {
	if c.Server.Port == nil {
		return DefaultServerPort
	}
	return *c.Server.Port
}
