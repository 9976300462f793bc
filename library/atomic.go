package library

import (
	"io"
	"os"
	"path/filepath"

	"github.com/openkaraoke/studio/errors"
)

// WriteFileAtomic writes data to path via a temp file in the same
// directory, fsyncs, then renames. A crash mid-write leaves either the old
// file or no file, never a truncated artifact.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp*")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "write temp file")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(err, "fsync temp file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close temp file")
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return errors.Wrap(err, "chmod temp file")
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errors.Wrap(err, "rename into place")
	}
	return nil
}

// WriteReaderAtomic streams r to path with the same temp+fsync+rename
// protocol as WriteFileAtomic. Returns the number of bytes written.
func WriteReaderAtomic(path string, r io.Reader, perm os.FileMode) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp*")
	if err != nil {
		return 0, errors.Wrap(err, "create temp file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	n, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return n, errors.Wrap(err, "write temp file")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return n, errors.Wrap(err, "fsync temp file")
	}
	if err := tmp.Close(); err != nil {
		return n, errors.Wrap(err, "close temp file")
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return n, errors.Wrap(err, "chmod temp file")
	}
	if err := os.Rename(tmpName, path); err != nil {
		return n, errors.Wrap(err, "rename into place")
	}
	return n, nil
}
