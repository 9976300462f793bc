// Package metadata enriches songs from an external music catalog:
// canonical title/artist/album, genre, release date, provider ids, and
// cover art at the best available resolution.
package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/openkaraoke/studio/config"
	"github.com/openkaraoke/studio/errors"
	"github.com/openkaraoke/studio/internal/httpclient"
)

// maxSearchResults bounds one catalog query.
const maxSearchResults = 10

// Result is one catalog track as the provider reports it.
type Result struct {
	TrackID           int64  `json:"trackId"`
	CollectionID      int64  `json:"collectionId"`
	TrackName         string `json:"trackName"`
	ArtistName        string `json:"artistName"`
	CollectionName    string `json:"collectionName"`
	PrimaryGenre      string `json:"primaryGenreName"`
	ReleaseDate       string `json:"releaseDate"`
	TrackTimeMillis   int64  `json:"trackTimeMillis"`
	ArtworkURL60      string `json:"artworkUrl60"`
	ArtworkURL100     string `json:"artworkUrl100"`
	IsStreamable      bool   `json:"isStreamable"`
	TrackExplicitness string `json:"trackExplicitness"`
}

type searchResponse struct {
	ResultCount int      `json:"resultCount"`
	Results     []Result `json:"results"`
}

// Provider talks to the catalog's search endpoint. All calls go through
// the rate limiter; the provider publishes no explicit limits, so the
// configured requests-per-minute stays conservative.
type Provider struct {
	baseURL   string
	userAgent string
	client    *httpclient.SaferClient
	limiter   *rate.Limiter
	log       *zap.SugaredLogger
}

// NewProvider creates a Provider from configuration.
func NewProvider(cfg config.MetadataConfig, log *zap.SugaredLogger) *Provider {
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 20
	}
	ua := "open-karaoke-studio/1.0"
	if cfg.ContactEmail != "" {
		ua = fmt.Sprintf("open-karaoke-studio/1.0 (%s)", cfg.ContactEmail)
	}
	return &Provider{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: ua,
		client:    httpclient.NewSaferClient(15 * time.Second),
		limiter:   rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 1),
		log:       log,
	}
}

// WithClient swaps the HTTP client. Tests use this with a wrapped
// httptest client.
func (p *Provider) WithClient(client *httpclient.SaferClient) *Provider {
	p.client = client
	return p
}

// Search queries the catalog for a free-text term and returns the
// provider's results in its own order.
func (p *Provider) Search(ctx context.Context, term string) ([]Result, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(errors.ErrCancelled, "rate limiter wait")
	}

	q := url.Values{}
	q.Set("term", term)
	q.Set("media", "music")
	q.Set("entity", "song")
	q.Set("limit", fmt.Sprintf("%d", maxSearchResults))

	reqURL := p.baseURL + "/search?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build search request")
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrNetworkFailure, "catalog search: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Wrapf(errors.ErrProviderFailure,
			"catalog search returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, errors.Wrap(errors.ErrNetworkFailure, "read search response")
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, errors.Wrapf(errors.ErrProviderFailure, "decode search response: %v", err)
	}

	p.log.Debugw("Catalog search", "term", term, "results", parsed.ResultCount)
	return parsed.Results, nil
}

// FetchArtwork downloads artwork bytes from a provider URL.
func (p *Provider) FetchArtwork(ctx context.Context, artworkURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, artworkURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build artwork request")
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrNetworkFailure, "fetch artwork: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Wrapf(errors.ErrProviderFailure,
			"artwork fetch returned %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, errors.Wrap(errors.ErrNetworkFailure, "read artwork body")
	}
	return data, nil
}
