package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openkaraoke/studio/config"
	"github.com/openkaraoke/studio/errors"
	oktesting "github.com/openkaraoke/studio/internal/testing"
	"github.com/openkaraoke/studio/jobs"
)

// recordingExecutor marks each job completed and records the order.
type recordingExecutor struct {
	store *jobs.Store

	mu      sync.Mutex
	order   []string
	block   chan struct{} // when set, Execute waits on it
	started chan string   // when set, receives job ids as they start
}

func (e *recordingExecutor) Execute(ctx context.Context, jobID string) error {
	if e.started != nil {
		e.started <- jobID
	}
	if e.block != nil {
		select {
		case <-e.block:
		case <-ctx.Done():
			job, err := e.store.Get(jobID)
			if err != nil {
				return err
			}
			if err := job.Cancel(); err != nil {
				return err
			}
			return e.store.Update(job)
		}
	}

	e.mu.Lock()
	e.order = append(e.order, jobID)
	e.mu.Unlock()

	job, err := e.store.Get(jobID)
	if err != nil {
		return err
	}
	for _, next := range []jobs.Status{jobs.StatusDownloading, jobs.StatusProcessing, jobs.StatusFinalizing, jobs.StatusCompleted} {
		if err := job.TransitionTo(next); err != nil {
			return err
		}
	}
	return e.store.Update(job)
}

func schedulerFixture(t *testing.T, poolSize int) (*Scheduler, *jobs.Store, *recordingExecutor) {
	t.Helper()
	log := zap.NewNop().Sugar()
	database := oktesting.CreateTestDB(t)
	store := jobs.NewStore(database, jobs.NewBus(log), log)
	exec := &recordingExecutor{store: store}
	sched := New(config.WorkerConfig{PoolSize: poolSize, StaleJobThresholdMinutes: 30}, store, exec, log)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		sched.Stop(ctx)
	})
	return sched, store, exec
}

func waitForStatus(t *testing.T, store *jobs.Store, jobID string, want jobs.Status) *jobs.Job {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		job, err := store.Get(jobID)
		require.NoError(t, err)
		if job.Status == want {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	job, _ := store.Get(jobID)
	t.Fatalf("job %s never reached %s, still %s", jobID, want, job.Status)
	return nil
}

func TestSubmitCreatesPendingJobWithTaskID(t *testing.T) {
	sched, store, _ := schedulerFixture(t, 1)

	job, err := sched.Submit(Spec{SongID: "song-1", Filename: "a.mp3", Title: "A", Artist: "B"})
	require.NoError(t, err)
	assert.NotEmpty(t, job.TaskID)

	stored, err := store.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusPending, stored.Status)
	assert.Equal(t, job.TaskID, stored.TaskID)
}

func TestSubmitRequiresSongID(t *testing.T) {
	sched, _, _ := schedulerFixture(t, 1)
	_, err := sched.Submit(Spec{})
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestPoolDrainsFIFO(t *testing.T) {
	sched, store, exec := schedulerFixture(t, 1)

	var ids []string
	for i := 0; i < 3; i++ {
		job, err := sched.Submit(Spec{SongID: "song", Filename: "f.mp3"})
		require.NoError(t, err)
		ids = append(ids, job.ID)
	}

	require.NoError(t, sched.Start())
	for _, id := range ids {
		waitForStatus(t, store, id, jobs.StatusCompleted)
	}

	exec.mu.Lock()
	defer exec.mu.Unlock()
	assert.Equal(t, ids, exec.order)
}

func TestCancelQueuedJob(t *testing.T) {
	sched, store, exec := schedulerFixture(t, 1)
	exec.block = make(chan struct{})
	exec.started = make(chan string, 8)

	require.NoError(t, sched.Start())

	first, err := sched.Submit(Spec{SongID: "song-a"})
	require.NoError(t, err)
	<-exec.started // first job occupies the only worker

	queued, err := sched.Submit(Spec{SongID: "song-b"})
	require.NoError(t, err)

	require.NoError(t, sched.Cancel(queued.ID))
	got := waitForStatus(t, store, queued.ID, jobs.StatusCancelled)
	assert.Equal(t, "Cancelled by user", got.Error)

	close(exec.block)
	waitForStatus(t, store, first.ID, jobs.StatusCompleted)

	// The worker skipped the cancelled entry
	exec.mu.Lock()
	defer exec.mu.Unlock()
	assert.Equal(t, []string{first.ID}, exec.order)
}

func TestCancelRunningJob(t *testing.T) {
	sched, store, exec := schedulerFixture(t, 1)
	exec.block = make(chan struct{})
	exec.started = make(chan string, 1)
	defer close(exec.block)

	require.NoError(t, sched.Start())

	job, err := sched.Submit(Spec{SongID: "song-a"})
	require.NoError(t, err)
	<-exec.started

	require.NoError(t, sched.Cancel(job.ID))
	got := waitForStatus(t, store, job.ID, jobs.StatusCancelled)
	assert.Equal(t, "Cancelled by user", got.Error)
}

func TestCancelTerminalJobFails(t *testing.T) {
	sched, store, _ := schedulerFixture(t, 1)
	require.NoError(t, sched.Start())

	job, err := sched.Submit(Spec{SongID: "song-a"})
	require.NoError(t, err)
	waitForStatus(t, store, job.ID, jobs.StatusCompleted)

	err = sched.Cancel(job.ID)
	require.Error(t, err)
	assert.True(t, errors.IsInvalidState(err))
}

func TestRecoverStaleJobs(t *testing.T) {
	sched, store, _ := schedulerFixture(t, 1)

	stale := jobs.NewJob("song-old", "old.mp3", "", "")
	stale.CreatedAt = time.Now().UTC().Add(-2 * time.Hour)
	require.NoError(t, store.Create(stale))

	fresh := jobs.NewJob("song-new", "new.mp3", "", "")
	require.NoError(t, store.Create(fresh))

	require.NoError(t, sched.Start())

	recovered, err := store.Get(stale.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusFailed, recovered.Status)
	assert.Equal(t, "resumed after restart", recovered.Notes)
	assert.Contains(t, recovered.Error, "restart")

	untouched, err := store.Get(fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusPending, untouched.Status)
}

func TestStopRejectsNewSubmissions(t *testing.T) {
	sched, _, _ := schedulerFixture(t, 1)
	require.NoError(t, sched.Start())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, sched.Stop(ctx))

	_, err := sched.Submit(Spec{SongID: "song-late"})
	require.Error(t, err)
	assert.True(t, errors.IsInvalidState(err))
}

func TestResolvePoolSize(t *testing.T) {
	log := zap.NewNop().Sugar()
	assert.Equal(t, 3, resolvePoolSize(3, log))

	auto := resolvePoolSize(0, log)
	assert.GreaterOrEqual(t, auto, 1)
	assert.LessOrEqual(t, auto, maxAutoWorkers)
}

func TestNewTaskID(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := newTaskID()
		assert.NotEmpty(t, id)
		assert.False(t, seen[id], "task id collision")
		seen[id] = true
	}
}
