package download

import (
	"sort"
	"strings"
)

// Thumbnail is one thumbnail variant the downloader reports. Preference
// follows the downloader's own scoring, which favors WebP over JPEG at the
// same resolution.
type Thumbnail struct {
	URL        string `json:"url"`
	Preference int    `json:"preference"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
}

// VideoMetadata is the normalized result of a download.
type VideoMetadata struct {
	VideoID    string
	Title      string
	Artist     string
	DurationMs int64
	Uploader   string
	ChannelID  string
	UploadDate string
	Thumbnails []Thumbnail
	RawJSON    string
}

// RankedThumbnails returns thumbnails sorted best-first by preference.
func (m *VideoMetadata) RankedThumbnails() []Thumbnail {
	ranked := make([]Thumbnail, len(m.Thumbnails))
	copy(ranked, m.Thumbnails)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Preference > ranked[j].Preference
	})
	return ranked
}

// BestThumbnailURL returns the highest-preference thumbnail URL, or empty.
func (m *VideoMetadata) BestThumbnailURL() string {
	ranked := m.RankedThumbnails()
	if len(ranked) == 0 {
		return ""
	}
	return ranked[0].URL
}

// splitArtistTitle parses the common "Artist - Title" video naming. When
// the pattern doesn't hold, artist stays empty and the full string is the
// title.
func splitArtistTitle(videoTitle string) (artist, title string) {
	parts := strings.SplitN(videoTitle, " - ", 2)
	if len(parts) == 2 && strings.TrimSpace(parts[0]) != "" && strings.TrimSpace(parts[1]) != "" {
		return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	}
	return "", strings.TrimSpace(videoTitle)
}
