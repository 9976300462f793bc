package separate

import (
	"strings"

	"github.com/Masterminds/semver/v3"
)

// minSupportedVersion is the oldest demucs release whose two-stems CLI
// matches what the adapter drives.
var minSupportedVersion = semver.MustParse("4.0.0")

// parseVersionOutput extracts the semantic version from `demucs
// --version` output, which looks like "demucs 4.0.1" or just "4.0.1".
func parseVersionOutput(out string) (*semver.Version, error) {
	fields := strings.Fields(strings.TrimSpace(out))
	for i := len(fields) - 1; i >= 0; i-- {
		if v, err := semver.NewVersion(fields[i]); err == nil {
			return v, nil
		}
	}
	return nil, semver.ErrInvalidSemVer
}

// isSupportedVersion reports whether v meets the minimum.
func isSupportedVersion(v *semver.Version) bool {
	return !v.LessThan(minSupportedVersion)
}
