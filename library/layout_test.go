package library

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openkaraoke/studio/errors"
)

func newTestLibrary(t *testing.T) *Library {
	t.Helper()
	lib, err := New(t.TempDir(), zap.NewNop().Sugar())
	require.NoError(t, err)
	return lib
}

func TestSongDirCreatesDirectory(t *testing.T) {
	lib := newTestLibrary(t)

	dir, err := lib.SongDir("s1")
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, filepath.Join(lib.Root(), "s1"), dir)
}

func TestResolveInsideRejectsTraversal(t *testing.T) {
	lib := newTestLibrary(t)

	cases := []string{
		"../etc",
		"..",
		"s1/../../outside",
		"../" + filepath.Base(lib.Root()),
	}
	for _, songID := range cases {
		_, err := lib.ResolveInside(songID, "original.mp3")
		require.Error(t, err, songID)
		assert.True(t, errors.IsAccessDenied(err), songID)
	}
}

func TestResolveInsideRejectsEmptySegment(t *testing.T) {
	lib := newTestLibrary(t)
	_, err := lib.ResolveInside("")
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestTypedPaths(t *testing.T) {
	lib := newTestLibrary(t)

	vocals, err := lib.VocalsPath("s1", "mp3")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(lib.Root(), "s1", "vocals.mp3"), vocals)

	inst, err := lib.InstrumentalPath("s1", "wav")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(lib.Root(), "s1", "instrumental.wav"), inst)

	orig, err := lib.OriginalPath("s1", "mp3")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(lib.Root(), "s1", "original.mp3"), orig)
}

func TestFindCoverProbesInPreferenceOrder(t *testing.T) {
	lib := newTestLibrary(t)
	dir, err := lib.SongDir("s1")
	require.NoError(t, err)

	// Only png present
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cover.png"), []byte("x"), 0644))
	path, mime, err := lib.FindCover("s1")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "cover.png"), path)
	assert.Equal(t, "image/png", mime)

	// webp outranks png once present
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cover.webp"), []byte("x"), 0644))
	path, mime, err = lib.FindCover("s1")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "cover.webp"), path)
	assert.Equal(t, "image/webp", mime)
}

func TestFindCoverMissing(t *testing.T) {
	lib := newTestLibrary(t)
	_, _, err := lib.FindCover("nope")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestDeleteSong(t *testing.T) {
	lib := newTestLibrary(t)
	dir, err := lib.SongDir("s1")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "original.mp3"), []byte("audio"), 0644))

	require.NoError(t, lib.DeleteSong("s1"))
	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))

	// Absent is success
	assert.NoError(t, lib.DeleteSong("s1"))
}

func TestListSongIDs(t *testing.T) {
	lib := newTestLibrary(t)
	_, err := lib.SongDir("a")
	require.NoError(t, err)
	_, err = lib.SongDir("b")
	require.NoError(t, err)
	// Loose files are not song ids
	require.NoError(t, os.WriteFile(filepath.Join(lib.Root(), "stray.txt"), []byte("x"), 0644))

	ids, err := lib.ListSongIDs()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, ids)
}

func TestWriteFileAtomic(t *testing.T) {
	lib := newTestLibrary(t)
	dir, err := lib.SongDir("s1")
	require.NoError(t, err)

	target := filepath.Join(dir, "original.mp3")
	require.NoError(t, WriteFileAtomic(target, []byte("audio-bytes"), 0644))

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "audio-bytes", string(data))

	// Overwrite is safe
	require.NoError(t, WriteFileAtomic(target, []byte("v2"), 0644))
	data, err = os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))

	// No temp litter left behind
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFileExistsNonEmpty(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty")
	full := filepath.Join(dir, "full")
	require.NoError(t, os.WriteFile(empty, nil, 0644))
	require.NoError(t, os.WriteFile(full, []byte("x"), 0644))

	assert.False(t, FileExistsNonEmpty(filepath.Join(dir, "missing")))
	assert.False(t, FileExistsNonEmpty(empty))
	assert.True(t, FileExistsNonEmpty(full))
}

func TestDetectImageExt(t *testing.T) {
	jpeg := []byte{0xFF, 0xD8, 0xFF, 0xE0}
	png := []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0x00}
	webp := append([]byte("RIFF"), 0, 0, 0, 0, 'W', 'E', 'B', 'P')

	assert.Equal(t, "jpg", DetectImageExt(jpeg))
	assert.Equal(t, "png", DetectImageExt(png))
	assert.Equal(t, "webp", DetectImageExt(webp))
	assert.Equal(t, "", DetectImageExt([]byte("<html>not an image")))
	assert.Equal(t, "", DetectImageExt(nil))
}
