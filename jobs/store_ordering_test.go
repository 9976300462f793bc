package jobs

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// The durability contract: the JobEvent for a write is published strictly
// after the transaction commits and the WAL checkpoint runs. sqlmock pins
// the statement order in a way a live database cannot.
func TestCreatePublishesOnlyAfterCommit(t *testing.T) {
	database, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer database.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO jobs").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
	mock.ExpectExec("PRAGMA wal_checkpoint").WillReturnResult(sqlmock.NewResult(0, 0))

	bus := NewBus(zap.NewNop().Sugar())
	store := NewStore(database, bus, zap.NewNop().Sugar())

	var publishedAfterCommit bool
	bus.Subscribe(func(e JobEvent) {
		// All statements, including the commit, must be done by now
		publishedAfterCommit = mock.ExpectationsWereMet() == nil
	})

	job := NewJob("s1", "track.mp3", "", "")
	require.NoError(t, store.Create(job))

	assert.True(t, publishedAfterCommit)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateRollsBackOnMissingRowWithoutEvent(t *testing.T) {
	database, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer database.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE jobs SET").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	bus := NewBus(zap.NewNop().Sugar())
	store := NewStore(database, bus, zap.NewNop().Sugar())

	var published int
	bus.Subscribe(func(JobEvent) { published++ })

	job := NewJob("s1", "track.mp3", "", "")
	err = store.Update(job)
	require.Error(t, err)

	assert.Equal(t, 0, published, "no event without a committed write")
	assert.NoError(t, mock.ExpectationsWereMet())
}
