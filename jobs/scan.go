package jobs

import (
	"database/sql"

	"github.com/openkaraoke/studio/errors"
)

// selectColumns is the column list every job query uses, in the order the
// scan helpers expect.
func selectColumns() string {
	return `id, filename, status, progress, status_message, task_id, song_id,
		title, artist, created_at, started_at, completed_at, error, notes, dismissed`
}

// scanArgs holds the nullable intermediates for one job row.
type scanArgs struct {
	statusMessage sql.NullString
	taskID        sql.NullString
	title         sql.NullString
	artist        sql.NullString
	startedAt     sql.NullTime
	completedAt   sql.NullTime
	errMsg        sql.NullString
	notes         sql.NullString
}

// scanTargets returns scan destinations for one row, paired with
// selectColumns order.
func scanTargets(job *Job, args *scanArgs) []interface{} {
	return []interface{}{
		&job.ID,
		&job.Filename,
		&job.Status,
		&job.Progress,
		&args.statusMessage,
		&args.taskID,
		&job.SongID,
		&args.title,
		&args.artist,
		&job.CreatedAt,
		&args.startedAt,
		&args.completedAt,
		&args.errMsg,
		&args.notes,
		&job.Dismissed,
	}
}

// applyScanArgs copies the nullable intermediates into the job.
func applyScanArgs(job *Job, args *scanArgs) {
	job.StatusMessage = args.statusMessage.String
	job.TaskID = args.taskID.String
	job.Title = args.title.String
	job.Artist = args.artist.String
	job.Error = args.errMsg.String
	job.Notes = args.notes.String
	if args.startedAt.Valid {
		t := args.startedAt.Time
		job.StartedAt = &t
	}
	if args.completedAt.Valid {
		t := args.completedAt.Time
		job.CompletedAt = &t
	}
}

// scanJob scans a single row.
func scanJob(row *sql.Row) (*Job, error) {
	var job Job
	var args scanArgs
	if err := row.Scan(scanTargets(&job, &args)...); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrNotFound
		}
		return nil, errors.Wrap(err, "scan job")
	}
	applyScanArgs(&job, &args)
	return &job, nil
}

// scanJobs scans all rows from a multi-row query.
func scanJobs(rows *sql.Rows) ([]*Job, error) {
	defer rows.Close()

	var out []*Job
	for rows.Next() {
		var job Job
		var args scanArgs
		if err := rows.Scan(scanTargets(&job, &args)...); err != nil {
			return nil, errors.Wrap(err, "scan job row")
		}
		applyScanArgs(&job, &args)
		out = append(out, &job)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate job rows")
	}
	return out, nil
}
