package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openkaraoke/studio/errors"
	oktest "github.com/openkaraoke/studio/internal/testing"
	"github.com/openkaraoke/studio/song"
)

func newTestStore(t *testing.T) (*Store, *song.Store) {
	t.Helper()
	database := oktest.CreateTestDB(t)
	return NewStore(database, zap.NewNop().Sugar()), song.NewStore(database, zap.NewNop().Sugar())
}

func addSong(t *testing.T, songs *song.Store, title string) *song.Song {
	t.Helper()
	s := song.New(title, "Artist")
	require.NoError(t, songs.Create(s))
	return s
}

func TestAddAssignsDensePositions(t *testing.T) {
	store, songs := newTestStore(t)
	s1 := addSong(t, songs, "One")
	s2 := addSong(t, songs, "Two")

	a, err := store.Add(s1.ID, "Alice")
	require.NoError(t, err)
	b, err := store.Add(s2.ID, "Bob")
	require.NoError(t, err)

	assert.Equal(t, 1, a.Position)
	assert.Equal(t, 2, b.Position)
}

func TestAddValidates(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.Add("", "Alice")
	assert.True(t, errors.IsValidation(err))
	_, err = store.Add("song", "")
	assert.True(t, errors.IsValidation(err))
}

func TestRemoveDensifies(t *testing.T) {
	store, songs := newTestStore(t)
	s := addSong(t, songs, "One")

	a, err := store.Add(s.ID, "Alice")
	require.NoError(t, err)
	_, err = store.Add(s.ID, "Bob")
	require.NoError(t, err)
	c, err := store.Add(s.ID, "Carol")
	require.NoError(t, err)

	// Remove the middle entry; Carol moves up
	items, err := store.List()
	require.NoError(t, err)
	require.NoError(t, store.Remove(items[1].ID))

	items, err = store.List()
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, a.ID, items[0].ID)
	assert.Equal(t, 1, items[0].Position)
	assert.Equal(t, c.ID, items[1].ID)
	assert.Equal(t, 2, items[1].Position)
}

func TestRemoveMissing(t *testing.T) {
	store, _ := newTestStore(t)
	err := store.Remove("nope")
	assert.True(t, errors.IsNotFound(err))
}

func TestReorder(t *testing.T) {
	store, songs := newTestStore(t)
	s := addSong(t, songs, "One")

	a, _ := store.Add(s.ID, "Alice")
	b, _ := store.Add(s.ID, "Bob")
	c, _ := store.Add(s.ID, "Carol")

	require.NoError(t, store.Reorder([]string{c.ID, a.ID, b.ID}))

	items, err := store.List()
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "Carol", items[0].Singer)
	assert.Equal(t, "Alice", items[1].Singer)
	assert.Equal(t, "Bob", items[2].Singer)
	for i, item := range items {
		assert.Equal(t, i+1, item.Position)
	}
}

func TestReorderRejectsWrongCount(t *testing.T) {
	store, songs := newTestStore(t)
	s := addSong(t, songs, "One")
	a, _ := store.Add(s.ID, "Alice")
	_, err := store.Add(s.ID, "Bob")
	require.NoError(t, err)

	err = store.Reorder([]string{a.ID})
	assert.True(t, errors.IsValidation(err))
}

func TestSongDeleteCascades(t *testing.T) {
	store, songs := newTestStore(t)
	s := addSong(t, songs, "One")
	_, err := store.Add(s.ID, "Alice")
	require.NoError(t, err)

	require.NoError(t, songs.Delete(s.ID))

	items, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, items)
}
