package metadata

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/openkaraoke/studio/errors"
	"github.com/openkaraoke/studio/library"
	"github.com/openkaraoke/studio/song"
)

// Record is the enrichment output: the canonical release's fields plus
// artwork URLs at the resolutions the provider offers.
type Record struct {
	Title       string   `json:"title"`
	Artist      string   `json:"artist"`
	Album       string   `json:"album,omitempty"`
	Genre       string   `json:"genre,omitempty"`
	ReleaseDate string   `json:"releaseDate,omitempty"`
	DurationMs  int64    `json:"durationMs,omitempty"`
	TrackID     int64    `json:"trackId,omitempty"`
	ArtworkURLs []string `json:"artworkUrls,omitempty"`

	// Raw is the provider's result verbatim for debugging
	Raw string `json:"-"`
}

// Request names a song to enrich. SongID is optional; without it the
// enricher returns the record but writes nothing back.
type Request struct {
	Artist string
	Title  string
	Album  string
	SongID string
}

// Enricher searches the catalog for a song's canonical release and
// writes the result, including cover art, back onto the song row.
// Enrichment is best-effort throughout: a failed enrichment never fails
// the job that requested it.
type Enricher struct {
	provider *Provider
	lib      *library.Library
	songs    *song.Store
	log      *zap.SugaredLogger
}

// NewEnricher wires an Enricher.
func NewEnricher(provider *Provider, lib *library.Library, songs *song.Store, log *zap.SugaredLogger) *Enricher {
	return &Enricher{provider: provider, lib: lib, songs: songs, log: log}
}

// searchTerms yields the query tiers: specific, broad, title-only.
func searchTerms(req Request) []string {
	var terms []string
	if req.Artist != "" && req.Title != "" && req.Album != "" {
		terms = append(terms, strings.Join([]string{req.Artist, req.Title, req.Album}, " "))
	}
	if req.Artist != "" && req.Title != "" {
		terms = append(terms, req.Artist+" "+req.Title)
	}
	if req.Title != "" {
		terms = append(terms, req.Title)
	}
	return terms
}

// Enrich runs the tiered search, ranks the results, and returns the best
// match as a Record. With a SongID set it also updates the song row and
// downloads cover art when the current cover is absent or low resolution.
func (e *Enricher) Enrich(ctx context.Context, req Request) (*Record, error) {
	terms := searchTerms(req)
	if len(terms) == 0 {
		return nil, errors.Wrap(errors.ErrValidation, "enrichment needs at least a title")
	}

	var results []Result
	for _, term := range terms {
		found, err := e.provider.Search(ctx, term)
		if err != nil {
			return nil, err
		}
		if len(found) > 0 {
			results = found
			break
		}
	}
	if len(results) == 0 {
		return nil, errors.Wrapf(errors.ErrNotFound,
			"no catalog match for %q by %q", req.Title, req.Artist)
	}

	best := rank(results, req.Title, req.Artist)[0]
	raw, _ := json.Marshal(best)

	rec := &Record{
		Title:       best.TrackName,
		Artist:      best.ArtistName,
		Album:       best.CollectionName,
		Genre:       best.PrimaryGenre,
		ReleaseDate: best.ReleaseDate,
		DurationMs:  best.TrackTimeMillis,
		TrackID:     best.TrackID,
		Raw:         string(raw),
	}
	if best.ArtworkURL100 != "" {
		rec.ArtworkURLs = append(rec.ArtworkURLs, best.ArtworkURL100)
	}
	if best.ArtworkURL60 != "" {
		rec.ArtworkURLs = append(rec.ArtworkURLs, best.ArtworkURL60)
	}

	if req.SongID != "" {
		if err := e.apply(ctx, req.SongID, rec); err != nil {
			// Localized failure: the caller still gets the record
			e.log.Warnw("Enrichment write-back failed",
				"song_id", req.SongID, "error", err)
		}
	}
	return rec, nil
}

// apply updates the song row with the record and refreshes cover art.
func (e *Enricher) apply(ctx context.Context, songID string, rec *Record) error {
	s, err := e.songs.Get(songID)
	if err != nil {
		return err
	}

	if rec.Title != "" {
		s.Title = rec.Title
	}
	if rec.Artist != "" {
		s.Artist = rec.Artist
	}
	if rec.Album != "" {
		s.Album = rec.Album
	}
	if rec.Genre != "" {
		s.Genre = rec.Genre
	}
	if rec.ReleaseDate != "" {
		s.ReleaseDate = rec.ReleaseDate
	}
	if rec.DurationMs > 0 {
		s.DurationMs = rec.DurationMs
	}
	if rec.TrackID != 0 {
		s.CatalogTrackID = rec.TrackID
	}
	s.RawMetadata = rec.Raw

	if len(rec.ArtworkURLs) > 0 {
		if path, _, coverErr := e.refreshCover(ctx, s, rec.ArtworkURLs[0]); coverErr != nil {
			e.log.Warnw("Cover art refresh failed", "song_id", songID, "error", coverErr)
		} else if path != "" {
			s.CoverArtPath = path
		}
	}

	return e.songs.Update(s)
}

// refreshCover downloads artwork when the song's current cover is absent
// or low resolution. Returns the new cover path relative to the library
// root, or empty when the existing cover was kept.
func (e *Enricher) refreshCover(ctx context.Context, s *song.Song, artworkURL string) (string, string, error) {
	if s.CoverArtPath != "" {
		current := filepath.Join(e.lib.Root(), s.CoverArtPath)
		if !needsCover(current) {
			return "", "", nil
		}
	} else if existing, _, err := e.lib.FindCover(s.ID); err == nil && !needsCover(existing) {
		return "", "", nil
	}

	dest, ext, err := e.downloadCover(ctx, s.ID, artworkURL)
	if err != nil {
		return "", "", err
	}
	rel, err := filepath.Rel(e.lib.Root(), dest)
	if err != nil {
		return "", "", errors.Wrap(err, "relativize cover path")
	}
	return rel, ext, nil
}
