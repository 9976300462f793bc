package download

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openkaraoke/studio/errors"
)

func TestExtractVideoID(t *testing.T) {
	cases := map[string]string{
		"dQw4w9WgXcQ": "dQw4w9WgXcQ",
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ":            "dQw4w9WgXcQ",
		"https://www.youtube.com/watch?list=PL123&v=dQw4w9WgXcQ": "dQw4w9WgXcQ",
		"https://youtu.be/dQw4w9WgXcQ":                           "dQw4w9WgXcQ",
		"https://youtu.be/dQw4w9WgXcQ?t=42":                      "dQw4w9WgXcQ",
		"https://www.youtube.com/embed/dQw4w9WgXcQ":              "dQw4w9WgXcQ",
		"https://www.youtube.com/v/dQw4w9WgXcQ":                  "dQw4w9WgXcQ",
		"https://www.youtube.com/shorts/dQw4w9WgXcQ":             "dQw4w9WgXcQ",
		"http://youtube.com/watch?v=a_B-c1D2e3F":                 "a_B-c1D2e3F",
	}
	for input, want := range cases {
		got, err := ExtractVideoID(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}
}

func TestExtractVideoIDRejectsGarbage(t *testing.T) {
	cases := []string{
		"",
		"not a url",
		"https://example.com/watch?v=dQw4w9WgXcQ",
		"https://www.youtube.com/watch?v=tooshort",
		"dQw4w9WgXc",   // 10 chars
		"dQw4w9WgXcQQ", // 12 chars
	}
	for _, input := range cases {
		_, err := ExtractVideoID(input)
		require.Error(t, err, input)
		assert.True(t, errors.IsValidation(err), input)
	}
}

func TestExtractIsInverseOfWatchURL(t *testing.T) {
	ids := []string{"dQw4w9WgXcQ", "a_B-c1D2e3F", "___________", "AAAAAAAAAAA"}
	for _, id := range ids {
		got, err := ExtractVideoID(WatchURL(id))
		require.NoError(t, err, id)
		assert.Equal(t, id, got)
	}
}

func TestSplitArtistTitle(t *testing.T) {
	artist, title := splitArtistTitle("Queen - Bohemian Rhapsody")
	assert.Equal(t, "Queen", artist)
	assert.Equal(t, "Bohemian Rhapsody", title)

	// Only the first separator splits
	artist, title = splitArtistTitle("A - B - C")
	assert.Equal(t, "A", artist)
	assert.Equal(t, "B - C", title)

	artist, title = splitArtistTitle("No separator here")
	assert.Equal(t, "", artist)
	assert.Equal(t, "No separator here", title)

	artist, title = splitArtistTitle(" - leading separator")
	assert.Equal(t, "", artist)
	assert.Equal(t, "- leading separator", title)
}

func TestRankedThumbnails(t *testing.T) {
	meta := &VideoMetadata{
		Thumbnails: []Thumbnail{
			{URL: "jpg-small", Preference: -10},
			{URL: "webp-big", Preference: 5},
			{URL: "jpg-big", Preference: 3},
		},
	}
	ranked := meta.RankedThumbnails()
	assert.Equal(t, "webp-big", ranked[0].URL)
	assert.Equal(t, "jpg-big", ranked[1].URL)
	assert.Equal(t, "jpg-small", ranked[2].URL)
	assert.Equal(t, "webp-big", meta.BestThumbnailURL())
}

func TestBestThumbnailURLEmpty(t *testing.T) {
	meta := &VideoMetadata{}
	assert.Equal(t, "", meta.BestThumbnailURL())
}
