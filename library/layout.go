// Package library manages the canonical on-disk artifact layout under the
// library root: one directory per song holding original audio, separated
// stems, thumbnail, and cover art.
package library

import (
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/openkaraoke/studio/config"
	"github.com/openkaraoke/studio/errors"
)

// Library resolves artifact paths under a single root directory.
// Directories are partitioned by song id, so workers on different songs
// never touch the same paths.
type Library struct {
	root string
	log  *zap.SugaredLogger
}

// New creates a Library rooted at root, creating the directory if needed.
func New(root string, log *zap.SugaredLogger) (*Library, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve library root %s", root)
	}
	if err := os.MkdirAll(abs, config.DefaultDirPermissions); err != nil {
		return nil, errors.Wrap(err, "create library root")
	}
	return &Library{root: abs, log: log}, nil
}

// Root returns the absolute library root.
func (l *Library) Root() string {
	return l.root
}

// SongDir creates (if needed) and returns the directory for a song.
func (l *Library) SongDir(songID string) (string, error) {
	dir, err := l.ResolveInside(songID)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, config.DefaultDirPermissions); err != nil {
		return "", errors.Wrapf(err, "create song dir for %s", songID)
	}
	return dir, nil
}

// ResolveInside joins parts onto the library root and verifies the result
// is still a descendant of the root. Anything that escapes, via ../ or an
// absolute segment, is rejected.
func (l *Library) ResolveInside(parts ...string) (string, error) {
	for _, part := range parts {
		if part == "" {
			return "", errors.Wrap(errors.ErrValidation, "empty path segment")
		}
		// Lexical check: a ".." element can resolve back under the root
		// and slip past the prefix check below
		for _, seg := range strings.Split(filepath.ToSlash(part), "/") {
			if seg == ".." {
				return "", errors.Wrapf(errors.ErrAccessDenied,
					"path %q resolves outside the library", filepath.Join(parts...))
			}
		}
	}
	p := filepath.Join(append([]string{l.root}, parts...)...)
	p = filepath.Clean(p)
	if p != l.root && !strings.HasPrefix(p, l.root+string(filepath.Separator)) {
		return "", errors.Wrapf(errors.ErrAccessDenied,
			"path %q resolves outside the library", filepath.Join(parts...))
	}
	return p, nil
}

// OriginalPath returns the path for the source audio file.
func (l *Library) OriginalPath(songID, ext string) (string, error) {
	return l.ResolveInside(songID, "original."+ext)
}

// VocalsPath returns the path for the vocals stem.
func (l *Library) VocalsPath(songID, ext string) (string, error) {
	return l.ResolveInside(songID, "vocals."+ext)
}

// InstrumentalPath returns the path for the instrumental stem.
func (l *Library) InstrumentalPath(songID, ext string) (string, error) {
	return l.ResolveInside(songID, "instrumental."+ext)
}

// CoverPath returns the path for cover art in the given format.
func (l *Library) CoverPath(songID, ext string) (string, error) {
	return l.ResolveInside(songID, "cover."+ext)
}

// ThumbnailPath returns the path for the thumbnail in the given format.
func (l *Library) ThumbnailPath(songID, ext string) (string, error) {
	return l.ResolveInside(songID, "thumbnail."+ext)
}

// FindCover probes for cover art in preference order (webp, jpg, jpeg,
// png) and returns the existing path plus its content type, or
// ErrNotFound.
func (l *Library) FindCover(songID string) (path, mime string, err error) {
	return l.findImage(songID, "cover")
}

// FindThumbnail probes for the thumbnail like FindCover.
func (l *Library) FindThumbnail(songID string) (path, mime string, err error) {
	return l.findImage(songID, "thumbnail")
}

func (l *Library) findImage(songID, base string) (string, string, error) {
	for _, f := range ImageFormats {
		p, err := l.ResolveInside(songID, base+"."+f.Ext)
		if err != nil {
			return "", "", err
		}
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, f.MIME, nil
		}
	}
	return "", "", errors.Wrapf(errors.ErrNotFound, "no %s for song %s", base, songID)
}

// DeleteSong removes a song's directory recursively. A missing directory
// is success.
func (l *Library) DeleteSong(songID string) error {
	dir, err := l.ResolveInside(songID)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return errors.Wrapf(err, "delete song dir for %s", songID)
	}
	if l.log != nil {
		l.log.Debugw("Deleted song directory", "song_id", songID)
	}
	return nil
}

// ListSongIDs returns the directory names directly under the library root.
func (l *Library) ListSongIDs() ([]string, error) {
	entries, err := os.ReadDir(l.root)
	if err != nil {
		return nil, errors.Wrap(err, "read library root")
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}

// FileExistsNonEmpty reports whether path exists and holds at least one
// byte. Stem paths are only recorded on the song row when this holds.
func FileExistsNonEmpty(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir() && info.Size() > 0
}
