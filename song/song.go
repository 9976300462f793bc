// Package song defines the persistent Song entity and its sqlite store.
package song

import (
	"time"

	"github.com/google/uuid"
)

// Source identifies where a song's original audio came from.
const (
	SourceYouTube = "youtube"
	SourceUpload  = "upload"
)

// Song is the persistent entity for a karaoke-ready track and its
// artifacts. Artifact paths are stored relative to the library root.
// There is exactly one converter between this struct and the songs table:
// the scan/write pair in store.go.
type Song struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	Album      string `json:"album,omitempty"`
	DurationMs int64  `json:"durationMs,omitempty"`
	Source     string `json:"source"`
	VideoID    string `json:"videoId,omitempty"`

	// Provider identifiers and enrichment
	CatalogTrackID int64  `json:"catalogTrackId,omitempty"`
	Genre          string `json:"genre,omitempty"`
	ReleaseDate    string `json:"releaseDate,omitempty"`

	// Artifact paths, relative to the library root
	OriginalPath     string `json:"originalPath,omitempty"`
	VocalsPath       string `json:"vocalsPath,omitempty"`
	InstrumentalPath string `json:"instrumentalPath,omitempty"`
	CoverArtPath     string `json:"coverArtPath,omitempty"`
	ThumbnailPath    string `json:"thumbnailPath,omitempty"`

	// Lyrics
	PlainLyrics  string `json:"plainLyrics,omitempty"`
	SyncedLyrics string `json:"syncedLyrics,omitempty"`

	// Download provenance
	Uploader   string `json:"uploader,omitempty"`
	ChannelID  string `json:"channelId,omitempty"`
	UploadDate string `json:"uploadDate,omitempty"`

	// RawMetadata holds the provider's response verbatim for debugging
	RawMetadata string `json:"-"`

	HasAudioFiles bool      `json:"hasAudioFiles"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// New creates a song with a fresh UUID.
func New(title, artist string) *Song {
	now := time.Now().UTC()
	return &Song{
		ID:        uuid.NewString(),
		Title:     title,
		Artist:    artist,
		Source:    SourceYouTube,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
