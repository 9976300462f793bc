// Package scheduler dispatches pending jobs to a fixed-size worker pool
// and tracks per-job cancellation.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/openkaraoke/studio/config"
	"github.com/openkaraoke/studio/errors"
	"github.com/openkaraoke/studio/jobs"
)

// queueDepth bounds how many submitted jobs may wait for a worker.
const queueDepth = 256

// Executor runs one job to a terminal state.
type Executor interface {
	Execute(ctx context.Context, jobID string) error
}

// Spec describes a job to submit.
type Spec struct {
	SongID   string
	Filename string
	Title    string
	Artist   string
}

// Scheduler owns the FIFO work queue and the worker pool. Jobs are
// durable before they are runnable: Submit commits the pending row, then
// enqueues.
type Scheduler struct {
	store    *jobs.Store
	exec     Executor
	poolSize int
	staleAge time.Duration
	log      *zap.SugaredLogger

	queue chan string

	mu         sync.Mutex
	running    map[string]context.CancelFunc
	pending    map[string]bool // submitted, not yet picked up
	stopped    bool
	baseCtx    context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup
}

// New creates a Scheduler. A pool size of 0 selects one from available
// system memory.
func New(cfg config.WorkerConfig, store *jobs.Store, exec Executor, log *zap.SugaredLogger) *Scheduler {
	staleAge := time.Duration(cfg.StaleJobThresholdMinutes) * time.Minute
	if staleAge <= 0 {
		staleAge = 30 * time.Minute
	}
	baseCtx, baseCancel := context.WithCancel(context.Background())
	return &Scheduler{
		store:      store,
		exec:       exec,
		poolSize:   resolvePoolSize(cfg.PoolSize, log),
		staleAge:   staleAge,
		log:        log,
		queue:      make(chan string, queueDepth),
		running:    make(map[string]context.CancelFunc),
		pending:    make(map[string]bool),
		baseCtx:    baseCtx,
		baseCancel: baseCancel,
	}
}

// PoolSize returns the resolved worker count.
func (s *Scheduler) PoolSize() int {
	return s.poolSize
}

// Start recovers stale jobs from a previous run and launches the pool.
func (s *Scheduler) Start() error {
	if err := s.recoverStale(); err != nil {
		return err
	}
	for i := 0; i < s.poolSize; i++ {
		s.wg.Add(1)
		go s.workerLoop(i)
	}
	s.log.Infow("Scheduler started", "pool_size", s.poolSize)
	return nil
}

// recoverStale marks non-terminal jobs older than the threshold as
// failed. Mid-pipeline resume is not attempted.
func (s *Scheduler) recoverStale() error {
	active, err := s.store.ListActive()
	if err != nil {
		return err
	}
	cutoff := time.Now().UTC().Add(-s.staleAge)
	for _, job := range active {
		ref := job.CreatedAt
		if job.StartedAt != nil {
			ref = *job.StartedAt
		}
		if ref.After(cutoff) {
			continue
		}
		if err := job.Fail("Job interrupted by server restart"); err != nil {
			s.log.Warnw("Stale job in unexpected state",
				"job_id", job.ID, "status", job.Status, "error", err)
			continue
		}
		job.Notes = "resumed after restart"
		if err := s.store.Update(job); err != nil {
			s.log.Errorw("Failed to mark stale job", "job_id", job.ID, "error", err)
			continue
		}
		s.log.Warnw("Recovered stale job", "job_id", job.ID, "created_at", job.CreatedAt)
	}
	return nil
}

// Submit persists a pending job and enqueues it for the pool. The
// returned job carries a short task token for log correlation.
func (s *Scheduler) Submit(spec Spec) (*jobs.Job, error) {
	if spec.SongID == "" {
		return nil, errors.Wrap(errors.ErrValidation, "job submission needs a song id")
	}

	job := jobs.NewJob(spec.SongID, spec.Filename, spec.Title, spec.Artist)
	job.TaskID = newTaskID()

	if err := s.store.Create(job); err != nil {
		return nil, err
	}

	// The enqueue happens under the lock so Stop cannot close the queue
	// between the stopped check and the send.
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil, errors.Wrap(errors.ErrInvalidState, "scheduler is stopped")
	}
	var enqueued bool
	select {
	case s.queue <- job.ID:
		s.pending[job.ID] = true
		enqueued = true
	default:
	}
	s.mu.Unlock()

	if !enqueued {
		if failErr := job.Fail("Job queue is full"); failErr == nil {
			if err := s.store.Update(job); err != nil {
				s.log.Errorw("Failed to mark overflowed job", "job_id", job.ID, "error", err)
			}
		}
		return nil, errors.Wrapf(errors.ErrConflict, "job queue is full (%d waiting)", queueDepth)
	}

	s.log.Infow("Job submitted",
		"job_id", job.ID, "task_id", job.TaskID, "song_id", spec.SongID)
	return job, nil
}

// Cancel stops a job. A running job gets its context cancelled and the
// worker marks it; a job still waiting in the queue is marked cancelled
// directly.
func (s *Scheduler) Cancel(jobID string) error {
	s.mu.Lock()
	if cancel, ok := s.running[jobID]; ok {
		s.mu.Unlock()
		cancel()
		s.log.Infow("Cancellation signalled", "job_id", jobID)
		return nil
	}
	wasPending := s.pending[jobID]
	delete(s.pending, jobID)
	s.mu.Unlock()

	job, err := s.store.Get(jobID)
	if err != nil {
		return err
	}
	if job.Status.IsTerminal() {
		return errors.Wrapf(errors.ErrInvalidState, "job %s is already %s", jobID, job.Status)
	}
	if !wasPending && job.Status != jobs.StatusPending {
		return errors.Wrapf(errors.ErrInvalidState, "job %s is not cancellable", jobID)
	}
	if err := job.Cancel(); err != nil {
		return err
	}
	if err := s.store.Update(job); err != nil {
		return err
	}
	s.log.Infow("Pending job cancelled", "job_id", jobID)
	return nil
}

func (s *Scheduler) workerLoop(n int) {
	defer s.wg.Done()
	for {
		select {
		case <-s.baseCtx.Done():
			return
		case jobID, ok := <-s.queue:
			if !ok {
				return
			}
			s.runOne(n, jobID)
		}
	}
}

func (s *Scheduler) runOne(n int, jobID string) {
	s.mu.Lock()
	if !s.pending[jobID] {
		// Cancelled while queued
		s.mu.Unlock()
		return
	}
	delete(s.pending, jobID)
	ctx, cancel := context.WithCancel(s.baseCtx)
	s.running[jobID] = cancel
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.running, jobID)
		s.mu.Unlock()
		cancel()
	}()

	s.log.Debugw("Worker picked up job", "worker", n, "job_id", jobID)
	if err := s.exec.Execute(ctx, jobID); err != nil {
		s.log.Errorw("Job execution failed", "worker", n, "job_id", jobID, "error", err)
	}
}

// Stop drains the pool: no new submissions, running jobs get until ctx's
// deadline to finish, then their contexts are cancelled.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.mu.Unlock()
	close(s.queue)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Infow("Scheduler stopped")
		return nil
	case <-ctx.Done():
		s.baseCancel()
		<-done
		s.log.Warnw("Scheduler stopped with jobs cancelled")
		return ctx.Err()
	}
}
