// Package lyrics fetches plain and synchronized lyrics from an external
// provider, caching results on the song row.
package lyrics

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/openkaraoke/studio/config"
	"github.com/openkaraoke/studio/errors"
	"github.com/openkaraoke/studio/internal/httpclient"
	"github.com/openkaraoke/studio/song"
)

// Lyrics holds one song's lyric text. Synced uses LRC timestamps.
type Lyrics struct {
	Plain  string `json:"plainLyrics"`
	Synced string `json:"syncedLyrics"`
}

// Empty reports whether neither form is present.
func (l Lyrics) Empty() bool {
	return l.Plain == "" && l.Synced == ""
}

// Fetcher resolves lyrics with a cache-first policy: stored lyrics are
// returned without a network call, and successful remote fetches are
// written back to the song row.
type Fetcher struct {
	baseURL string
	client  *httpclient.SaferClient
	songs   *song.Store
	log     *zap.SugaredLogger
}

// NewFetcher creates a Fetcher from configuration.
func NewFetcher(cfg config.LyricsConfig, songs *song.Store, log *zap.SugaredLogger) *Fetcher {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Fetcher{
		baseURL: cfg.BaseURL,
		client:  httpclient.NewSaferClient(timeout),
		songs:   songs,
		log:     log,
	}
}

// WithClient swaps the HTTP client. Tests use this with a wrapped
// httptest client.
func (f *Fetcher) WithClient(client *httpclient.SaferClient) *Fetcher {
	f.client = client
	return f
}

// GetCached returns the lyrics stored on the song row, or empty Lyrics
// when none are cached.
func (f *Fetcher) GetCached(songID string) (Lyrics, error) {
	s, err := f.songs.Get(songID)
	if err != nil {
		return Lyrics{}, err
	}
	return Lyrics{Plain: s.PlainLyrics, Synced: s.SyncedLyrics}, nil
}

// providerResult mirrors the provider's get/search response shape.
type providerResult struct {
	PlainLyrics  string `json:"plainLyrics"`
	SyncedLyrics string `json:"syncedLyrics"`
}

// Search queries the provider by artist and title, optionally narrowed by
// album and duration in seconds.
func (f *Fetcher) Search(ctx context.Context, artist, title, album string, durationSec int) (Lyrics, error) {
	if title == "" {
		return Lyrics{}, errors.Wrap(errors.ErrValidation, "lyrics search needs a title")
	}

	q := url.Values{}
	q.Set("track_name", title)
	if artist != "" {
		q.Set("artist_name", artist)
	}
	if album != "" {
		q.Set("album_name", album)
	}
	if durationSec > 0 {
		q.Set("duration", strconv.Itoa(durationSec))
	}

	reqURL := f.baseURL + "/api/get?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return Lyrics{}, errors.Wrap(err, "build lyrics request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return Lyrics{}, errors.Wrapf(errors.ErrNetworkFailure, "lyrics fetch: %v", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return Lyrics{}, errors.Wrapf(errors.ErrNotFound, "no lyrics for %q by %q", title, artist)
	default:
		return Lyrics{}, errors.Wrapf(errors.ErrProviderFailure,
			"lyrics provider returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Lyrics{}, errors.Wrap(errors.ErrNetworkFailure, "read lyrics response")
	}
	var parsed providerResult
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Lyrics{}, errors.Wrapf(errors.ErrProviderFailure, "decode lyrics response: %v", err)
	}

	result := Lyrics{Plain: parsed.PlainLyrics, Synced: parsed.SyncedLyrics}
	if result.Empty() {
		return Lyrics{}, errors.Wrapf(errors.ErrNotFound, "empty lyrics for %q by %q", title, artist)
	}
	return result, nil
}

// Save writes lyrics onto the song row.
func (f *Fetcher) Save(songID string, l Lyrics) error {
	s, err := f.songs.Get(songID)
	if err != nil {
		return err
	}
	s.PlainLyrics = l.Plain
	s.SyncedLyrics = l.Synced
	return f.songs.Update(s)
}

// FetchForSong returns cached lyrics when present, else searches the
// provider and writes the result back. Write-back failures are logged but
// do not fail the fetch.
func (f *Fetcher) FetchForSong(ctx context.Context, s *song.Song) (Lyrics, error) {
	if s.PlainLyrics != "" || s.SyncedLyrics != "" {
		return Lyrics{Plain: s.PlainLyrics, Synced: s.SyncedLyrics}, nil
	}

	durationSec := int(s.DurationMs / 1000)
	found, err := f.Search(ctx, s.Artist, s.Title, s.Album, durationSec)
	if err != nil {
		return Lyrics{}, err
	}

	if err := f.Save(s.ID, found); err != nil {
		f.log.Warnw("Lyrics write-back failed", "song_id", s.ID, "error", err)
	} else {
		s.PlainLyrics = found.Plain
		s.SyncedLyrics = found.Synced
	}
	return found, nil
}
