package jobs

import (
	"database/sql"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/openkaraoke/studio/db"
	"github.com/openkaraoke/studio/errors"
)

// Store persists jobs in sqlite. Every write is transactional; the
// matching JobEvent is published only after the transaction commits, so a
// subscriber reading the store always sees the write its event describes.
type Store struct {
	db  *sql.DB
	bus *Bus
	log *zap.SugaredLogger
}

// NewStore creates a job store. bus may be nil (events dropped), which
// tests use when they only care about rows.
func NewStore(database *sql.DB, bus *Bus, log *zap.SugaredLogger) *Store {
	return &Store{db: database, bus: bus, log: log}
}

// Filter selects jobs for List.
type Filter struct {
	Status           Status // empty = all statuses
	IncludeDismissed bool
	Since            *time.Time
}

// Create inserts a new pending job. A duplicate id fails with ErrConflict
// and leaves no second row.
func (s *Store) Create(job *Job) error {
	if job.ID == "" || job.SongID == "" {
		return errors.Wrap(errors.ErrValidation, "job requires id and song_id")
	}
	if !IsValidStatus(job.Status) {
		return errors.Wrapf(errors.ErrValidation, "unknown status %q", job.Status)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(err, "begin create job")
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO jobs (id, filename, status, progress, status_message, task_id,
			song_id, title, artist, created_at, started_at, completed_at, error, notes, dismissed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.Filename, job.Status, job.Progress,
		nullString(job.StatusMessage), nullString(job.TaskID),
		job.SongID, nullString(job.Title), nullString(job.Artist),
		job.CreatedAt, nullTime(job.StartedAt), nullTime(job.CompletedAt),
		nullString(job.Error), nullString(job.Notes), job.Dismissed,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return errors.WithDetail(
				errors.Wrapf(errors.ErrConflict, "job %s already exists", job.ID),
				"Job ID: "+job.ID)
		}
		return errors.Wrap(err, "insert job")
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit create job")
	}
	s.checkpoint()

	s.publish(job, true)
	return nil
}

// Get returns the job or ErrNotFound.
func (s *Store) Get(id string) (*Job, error) {
	row := s.db.QueryRow(
		"SELECT "+selectColumns()+" FROM jobs WHERE id = ?", id)
	job, err := scanJob(row)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.WithDetail(
				errors.Wrapf(errors.ErrNotFound, "job %s", id),
				"Job ID: "+id)
		}
		return nil, errors.Wrapf(err, "get job %s", id)
	}
	return job, nil
}

// Update persists the full job snapshot. The row must still exist.
// After commit a JobEvent carrying the new snapshot is published.
func (s *Store) Update(job *Job) error {
	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(err, "begin update job")
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		UPDATE jobs SET filename = ?, status = ?, progress = ?, status_message = ?,
			task_id = ?, song_id = ?, title = ?, artist = ?, started_at = ?,
			completed_at = ?, error = ?, notes = ?, dismissed = ?
		WHERE id = ?`,
		job.Filename, job.Status, job.Progress, nullString(job.StatusMessage),
		nullString(job.TaskID), job.SongID, nullString(job.Title), nullString(job.Artist),
		nullTime(job.StartedAt), nullTime(job.CompletedAt),
		nullString(job.Error), nullString(job.Notes), job.Dismissed,
		job.ID,
	)
	if err != nil {
		return errors.Wrapf(err, "update job %s", job.ID)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if affected == 0 {
		return errors.WithDetail(
			errors.Wrapf(errors.ErrNotFound, "job %s", job.ID),
			"Job ID: "+job.ID)
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit update job")
	}
	s.checkpoint()

	s.publish(job, false)
	return nil
}

// List returns jobs matching the filter, newest first.
func (s *Store) List(filter Filter) ([]*Job, error) {
	query := "SELECT " + selectColumns() + " FROM jobs WHERE 1=1"
	var args []interface{}

	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, filter.Status)
	}
	if !filter.IncludeDismissed {
		query += " AND dismissed = 0"
	}
	if filter.Since != nil {
		query += " AND created_at >= ?"
		args = append(args, *filter.Since)
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list jobs")
	}
	return scanJobs(rows)
}

// ListActive returns jobs in non-terminal states.
func (s *Store) ListActive() ([]*Job, error) {
	rows, err := s.db.Query(
		"SELECT "+selectColumns()+" FROM jobs WHERE status IN (?, ?, ?, ?) ORDER BY created_at ASC",
		StatusPending, StatusDownloading, StatusProcessing, StatusFinalizing)
	if err != nil {
		return nil, errors.Wrap(err, "list active jobs")
	}
	return scanJobs(rows)
}

// Dismiss hides a terminal job from job listings while retaining the row.
func (s *Store) Dismiss(id string) error {
	job, err := s.Get(id)
	if err != nil {
		return err
	}
	if !job.Status.IsTerminal() {
		return errors.WithDetail(
			errors.Wrapf(errors.ErrInvalidState,
				"cannot dismiss job %s in status %s", id, job.Status),
			"Job ID: "+id)
	}
	if job.Dismissed {
		return nil
	}
	job.Dismissed = true
	return s.Update(job)
}

// Stats returns the number of jobs per status.
func (s *Store) Stats() (map[Status]int, error) {
	rows, err := s.db.Query("SELECT status, COUNT(*) FROM jobs GROUP BY status")
	if err != nil {
		return nil, errors.Wrap(err, "job stats")
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, errors.Wrap(err, "scan job stats")
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// publish emits the post-commit event. Runs on the writer's goroutine;
// subscribers only enqueue.
func (s *Store) publish(job *Job, wasCreated bool) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(JobEvent{
		JobID:      job.ID,
		Job:        snapshot(job),
		WasCreated: wasCreated,
	})
}

// checkpoint flushes the WAL so other processes see the commit within
// bounded time. Failures are logged, not returned: the commit itself has
// already succeeded.
func (s *Store) checkpoint() {
	if err := db.Checkpoint(s.db); err != nil {
		if s.log != nil {
			s.log.Warnw("WAL checkpoint failed", "error", err)
		}
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
