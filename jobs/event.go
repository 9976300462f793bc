package jobs

import (
	"go.uber.org/zap"

	"github.com/openkaraoke/studio/events"
)

// JobEvent is published on the bus after every committed job write.
// Job is a snapshot; subscribers must not mutate it.
type JobEvent struct {
	JobID      string
	Job        *Job
	WasCreated bool
}

// Bus is the event bus type carrying job events.
type Bus = events.Bus[JobEvent]

// NewBus creates a job event bus.
func NewBus(log *zap.SugaredLogger) *Bus {
	return events.NewBus[JobEvent](log)
}

// snapshot returns a copy of the job safe to hand to subscribers.
func snapshot(job *Job) *Job {
	c := *job
	if job.StartedAt != nil {
		t := *job.StartedAt
		c.StartedAt = &t
	}
	if job.CompletedAt != nil {
		t := *job.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
