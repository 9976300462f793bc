package metadata

import (
	"context"
	"os"
	"regexp"

	"github.com/openkaraoke/studio/config"
	"github.com/openkaraoke/studio/errors"
	"github.com/openkaraoke/studio/library"
)

// Cover size thresholds in bytes. Below the low mark the existing cover
// counts as low resolution and is worth replacing; at or above the high
// mark a download counts as high resolution.
const (
	coverLowResBytes  = 20 * 1024
	coverHighResBytes = 50 * 1024
)

// dimensionSegment matches provider artwork URLs like
// ".../source/100x100bb.jpg" so a higher-resolution variant can be tried.
var dimensionSegment = regexp.MustCompile(`/\d+x\d+(bb)?\.(jpg|jpeg|png|webp)$`)

// upgradeArtworkURL rewrites a dimensioned artwork URL to its 600x600
// variant. Returns the input unchanged when no dimension segment exists.
func upgradeArtworkURL(artworkURL string) string {
	m := dimensionSegment.FindStringSubmatch(artworkURL)
	if m == nil {
		return artworkURL
	}
	return dimensionSegment.ReplaceAllString(artworkURL, "/600x600"+m[1]+"."+m[2])
}

// hasHighResCover reports whether the song already has a cover at or
// above the high-resolution threshold.
func hasHighResCover(coverPath string) bool {
	info, err := os.Stat(coverPath)
	return err == nil && info.Size() >= coverHighResBytes
}

// needsCover reports whether the cover at path is absent or low
// resolution.
func needsCover(coverPath string) bool {
	info, err := os.Stat(coverPath)
	if err != nil {
		return true
	}
	return info.Size() < coverLowResBytes
}

// downloadCover fetches artwork, preferring the 600x600 variant of a
// dimensioned URL and falling back to the original on failure. The bytes
// must sniff as a real image regardless of what Content-Type claimed.
// Returns the final cover path and its extension.
func (e *Enricher) downloadCover(ctx context.Context, songID, artworkURL string) (string, string, error) {
	candidates := []string{artworkURL}
	if upgraded := upgradeArtworkURL(artworkURL); upgraded != artworkURL {
		candidates = []string{upgraded, artworkURL}
	}

	var lastErr error
	for _, u := range candidates {
		data, err := e.provider.FetchArtwork(ctx, u)
		if err != nil {
			lastErr = err
			continue
		}
		ext := library.DetectImageExt(data)
		if ext == "" {
			lastErr = errors.Wrapf(errors.ErrProviderFailure,
				"artwork from %s is not a recognizable image", u)
			continue
		}
		// Enrichment can run before any other artifact exists for the song
		if _, err := e.lib.SongDir(songID); err != nil {
			return "", "", err
		}
		dest, err := e.lib.CoverPath(songID, ext)
		if err != nil {
			return "", "", err
		}
		if err := library.WriteFileAtomic(dest, data, config.DefaultFilePermissions); err != nil {
			return "", "", err
		}
		e.log.Debugw("Cover art written", "song_id", songID, "source", u, "bytes", len(data))
		return dest, ext, nil
	}
	if lastErr == nil {
		lastErr = errors.Wrap(errors.ErrProviderFailure, "no artwork URL usable")
	}
	return "", "", lastErr
}
