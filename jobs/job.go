// Package jobs defines the durable Job entity, its state machine, and the
// sqlite-backed store that persists transitions and publishes them on the
// event bus.
package jobs

import (
	"time"

	"github.com/google/uuid"

	"github.com/openkaraoke/studio/errors"
)

// Status represents the current state of a job
type Status string

const (
	StatusPending     Status = "pending"
	StatusDownloading Status = "downloading"
	StatusProcessing  Status = "processing"
	StatusFinalizing  Status = "finalizing"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusCancelled   Status = "cancelled"
)

// IsValidStatus checks if a status value is valid
func IsValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusDownloading, StatusProcessing,
		StatusFinalizing, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether a status admits no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// transitions is the single authority for legal status changes.
// URL-sourced jobs go pending → downloading; uploads skip straight to
// processing.
var transitions = map[Status][]Status{
	StatusPending:     {StatusDownloading, StatusProcessing, StatusCancelled, StatusFailed},
	StatusDownloading: {StatusProcessing, StatusCancelled, StatusFailed},
	StatusProcessing:  {StatusFinalizing, StatusCancelled, StatusFailed},
	StatusFinalizing:  {StatusCompleted, StatusCancelled, StatusFailed},
}

// ValidTransition reports whether from → to is legal.
func ValidTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Job represents one attempt to produce karaoke artifacts for one song.
// A song may accumulate several job attempts; artifact paths key on the
// song id so re-runs overwrite safely.
type Job struct {
	ID            string     `json:"id"`
	Filename      string     `json:"filename"`
	Status        Status     `json:"status"`
	Progress      int        `json:"progress"`
	StatusMessage string     `json:"status_message,omitempty"`
	TaskID        string     `json:"task_id,omitempty"`
	SongID        string     `json:"song_id"`
	Title         string     `json:"title,omitempty"`
	Artist        string     `json:"artist,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	Error         string     `json:"error,omitempty"`
	Notes         string     `json:"notes,omitempty"`
	Dismissed     bool       `json:"dismissed"`
}

// NewJob creates a pending job for a song.
func NewJob(songID, filename, title, artist string) *Job {
	return &Job{
		ID:        uuid.NewString(),
		Filename:  filename,
		Status:    StatusPending,
		Progress:  0,
		SongID:    songID,
		Title:     title,
		Artist:    artist,
		CreatedAt: time.Now().UTC(),
	}
}

// TransitionTo moves the job to a new status, enforcing the state machine
// and stamping started/completed times.
func (j *Job) TransitionTo(next Status) error {
	if !IsValidStatus(next) {
		return errors.Wrapf(errors.ErrValidation, "unknown status %q", next)
	}
	if !ValidTransition(j.Status, next) {
		return errors.Wrapf(errors.ErrInvalidState,
			"illegal transition %s → %s for job %s", j.Status, next, j.ID)
	}

	now := time.Now().UTC()
	if j.StartedAt == nil && (next == StatusDownloading || next == StatusProcessing) {
		j.StartedAt = &now
	}
	if next.IsTerminal() {
		j.CompletedAt = &now
	}
	if next == StatusCompleted {
		j.Progress = 100
	}
	j.Status = next
	return nil
}

// UpdateProgress raises the job's progress. Progress is monotonically
// non-decreasing within a run; regressions are ignored.
func (j *Job) UpdateProgress(percent int, message string) {
	if percent > 100 {
		percent = 100
	}
	if percent > j.Progress {
		j.Progress = percent
	}
	if message != "" {
		j.StatusMessage = message
	}
}

// Fail marks the job failed with the given error message.
func (j *Job) Fail(errMsg string) error {
	if err := j.TransitionTo(StatusFailed); err != nil {
		return err
	}
	j.Error = errMsg
	return nil
}

// Cancel marks the job cancelled with the standard user-facing message.
func (j *Job) Cancel() error {
	if err := j.TransitionTo(StatusCancelled); err != nil {
		return err
	}
	j.Error = "Cancelled by user"
	return nil
}
