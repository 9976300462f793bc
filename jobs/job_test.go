package jobs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openkaraoke/studio/errors"
)

func TestValidTransition(t *testing.T) {
	legal := []struct{ from, to Status }{
		{StatusPending, StatusDownloading},
		{StatusPending, StatusProcessing}, // uploads skip download
		{StatusPending, StatusCancelled},
		{StatusDownloading, StatusProcessing},
		{StatusDownloading, StatusFailed},
		{StatusProcessing, StatusFinalizing},
		{StatusProcessing, StatusCancelled},
		{StatusFinalizing, StatusCompleted},
		{StatusFinalizing, StatusFailed},
	}
	for _, tc := range legal {
		assert.True(t, ValidTransition(tc.from, tc.to), "%s → %s", tc.from, tc.to)
	}

	illegal := []struct{ from, to Status }{
		{StatusPending, StatusFinalizing},
		{StatusPending, StatusCompleted},
		{StatusDownloading, StatusCompleted},
		{StatusProcessing, StatusDownloading},
		{StatusCompleted, StatusPending},
		{StatusCompleted, StatusFailed},
		{StatusFailed, StatusProcessing},
		{StatusCancelled, StatusPending},
	}
	for _, tc := range illegal {
		assert.False(t, ValidTransition(tc.from, tc.to), "%s → %s", tc.from, tc.to)
	}
}

func TestTerminalStatusesNeverTransition(t *testing.T) {
	all := []Status{
		StatusPending, StatusDownloading, StatusProcessing, StatusFinalizing,
		StatusCompleted, StatusFailed, StatusCancelled,
	}
	for _, from := range []Status{StatusCompleted, StatusFailed, StatusCancelled} {
		require.True(t, from.IsTerminal())
		for _, to := range all {
			assert.False(t, ValidTransition(from, to), "%s → %s", from, to)
		}
	}
}

func TestTransitionToStampsTimes(t *testing.T) {
	job := NewJob("s1", "track.mp3", "Title", "Artist")
	assert.Equal(t, StatusPending, job.Status)
	assert.Nil(t, job.StartedAt)

	require.NoError(t, job.TransitionTo(StatusDownloading))
	require.NotNil(t, job.StartedAt)
	started := *job.StartedAt

	require.NoError(t, job.TransitionTo(StatusProcessing))
	assert.Equal(t, started, *job.StartedAt, "started_at set once")

	require.NoError(t, job.TransitionTo(StatusFinalizing))
	assert.Nil(t, job.CompletedAt)

	require.NoError(t, job.TransitionTo(StatusCompleted))
	require.NotNil(t, job.CompletedAt)
	assert.Equal(t, 100, job.Progress, "completed implies progress 100")
}

func TestTransitionToRejectsIllegal(t *testing.T) {
	job := NewJob("s1", "track.mp3", "", "")
	err := job.TransitionTo(StatusCompleted)
	require.Error(t, err)
	assert.True(t, errors.IsInvalidState(err))
	assert.Equal(t, StatusPending, job.Status, "status unchanged on rejection")
}

func TestUpdateProgressMonotonic(t *testing.T) {
	job := NewJob("s1", "track.mp3", "", "")

	job.UpdateProgress(30, "separating")
	assert.Equal(t, 30, job.Progress)
	assert.Equal(t, "separating", job.StatusMessage)

	// Regressions ignored
	job.UpdateProgress(10, "late message")
	assert.Equal(t, 30, job.Progress)
	assert.Equal(t, "late message", job.StatusMessage)

	// Clamped at 100
	job.UpdateProgress(250, "")
	assert.Equal(t, 100, job.Progress)
}

func TestCancelSetsUserMessage(t *testing.T) {
	job := NewJob("s1", "track.mp3", "", "")
	require.NoError(t, job.TransitionTo(StatusProcessing))
	require.NoError(t, job.Cancel())

	assert.Equal(t, StatusCancelled, job.Status)
	assert.Equal(t, "Cancelled by user", job.Error)
	assert.NotNil(t, job.CompletedAt)
}

func TestFailRecordsError(t *testing.T) {
	job := NewJob("s1", "track.mp3", "", "")
	require.NoError(t, job.TransitionTo(StatusDownloading))
	require.NoError(t, job.Fail("yt-dlp exited 1"))

	assert.Equal(t, StatusFailed, job.Status)
	assert.Equal(t, "yt-dlp exited 1", job.Error)
}
