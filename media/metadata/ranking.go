package metadata

import (
	"sort"
	"strings"
)

// compilationKeywords flag album titles that point at a compilation or a
// re-recording rather than the canonical studio release.
var compilationKeywords = []string{
	"greatest hits",
	"best of",
	"compilation",
	"collection",
	"anthology",
	"live",
	"karaoke",
	"tribute",
	"cover",
}

// normalize lowercases and collapses whitespace for comparison.
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// score rates how well a result matches the query. Exact title and artist
// matches dominate; compilation albums, non-streamable and explicit
// tracks lose ground.
func score(r Result, queryTitle, queryArtist string) int {
	s := 0

	title := normalize(r.TrackName)
	qTitle := normalize(queryTitle)
	switch {
	case qTitle != "" && title == qTitle:
		s += 50
	case qTitle != "" && strings.Contains(title, qTitle):
		s += 25
	}

	artist := normalize(r.ArtistName)
	qArtist := normalize(queryArtist)
	switch {
	case qArtist != "" && artist == qArtist:
		s += 30
	case qArtist != "" && strings.Contains(artist, qArtist):
		s += 15
	}

	album := normalize(r.CollectionName)
	isCompilation := false
	for _, kw := range compilationKeywords {
		if strings.Contains(album, kw) {
			isCompilation = true
			break
		}
	}
	if !isCompilation {
		s += 20
	}

	if r.IsStreamable {
		s += 10
	}
	if r.TrackExplicitness != "explicit" {
		s += 5
	}

	return s
}

// rank orders results best-first. Ties keep the provider's own ordering,
// which the provider sorts by recency.
func rank(results []Result, queryTitle, queryArtist string) []Result {
	ranked := make([]Result, len(results))
	copy(ranked, results)
	sort.SliceStable(ranked, func(i, j int) bool {
		return score(ranked[i], queryTitle, queryArtist) > score(ranked[j], queryTitle, queryArtist)
	})
	return ranked
}
