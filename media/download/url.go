package download

import (
	"regexp"

	"github.com/openkaraoke/studio/errors"
)

// videoIDPattern is the 11-character id YouTube uses.
var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// hostPatterns cover the common URL forms a user pastes.
var hostPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:youtube\.com|youtube-nocookie\.com)/watch\?(?:.*&)?v=([A-Za-z0-9_-]{11})`),
	regexp.MustCompile(`youtu\.be/([A-Za-z0-9_-]{11})`),
	regexp.MustCompile(`(?:youtube\.com|youtube-nocookie\.com)/embed/([A-Za-z0-9_-]{11})`),
	regexp.MustCompile(`(?:youtube\.com|youtube-nocookie\.com)/v/([A-Za-z0-9_-]{11})`),
	regexp.MustCompile(`(?:youtube\.com|youtube-nocookie\.com)/shorts/([A-Za-z0-9_-]{11})`),
}

// ExtractVideoID accepts a bare video id or any of the common URL forms
// (watch?v=, youtu.be/, embed/, /v/) and returns the canonical 11-char id.
func ExtractVideoID(input string) (string, error) {
	if videoIDPattern.MatchString(input) {
		return input, nil
	}
	for _, p := range hostPatterns {
		if m := p.FindStringSubmatch(input); m != nil {
			return m[1], nil
		}
	}
	return "", errors.Wrapf(errors.ErrValidation, "not a recognized video URL or id: %q", input)
}

// WatchURL formats the canonical watch URL for a video id. It is the
// inverse of ExtractVideoID over the accepted host forms.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}
