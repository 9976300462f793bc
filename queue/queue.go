// Package queue manages the karaoke singer queue: an ordered list of
// (song, singer) entries backed by sqlite.
package queue

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openkaraoke/studio/errors"
)

// Item is one entry in the singer queue. Positions are dense within the
// queue and reassigned on reorder.
type Item struct {
	ID        string    `json:"id"`
	SongID    string    `json:"songId"`
	Singer    string    `json:"singer"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store persists the singer queue.
type Store struct {
	db  *sql.DB
	log *zap.SugaredLogger
}

// NewStore creates a queue store.
func NewStore(database *sql.DB, log *zap.SugaredLogger) *Store {
	return &Store{db: database, log: log}
}

// Add appends a new entry at the end of the queue.
func (s *Store) Add(songID, singer string) (*Item, error) {
	if songID == "" || singer == "" {
		return nil, errors.Wrap(errors.ErrValidation, "queue entry requires song_id and singer")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, errors.Wrap(err, "begin queue add")
	}
	defer tx.Rollback()

	var next int
	if err := tx.QueryRow("SELECT COALESCE(MAX(position), 0) + 1 FROM karaoke_queue").Scan(&next); err != nil {
		return nil, errors.Wrap(err, "next queue position")
	}

	item := &Item{
		ID:        uuid.NewString(),
		SongID:    songID,
		Singer:    singer,
		Position:  next,
		CreatedAt: time.Now().UTC(),
	}
	_, err = tx.Exec(
		"INSERT INTO karaoke_queue (id, song_id, singer, position, created_at) VALUES (?, ?, ?, ?, ?)",
		item.ID, item.SongID, item.Singer, item.Position, item.CreatedAt)
	if err != nil {
		return nil, errors.Wrap(err, "insert queue entry")
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "commit queue add")
	}
	return item, nil
}

// List returns the queue in position order.
func (s *Store) List() ([]*Item, error) {
	rows, err := s.db.Query(
		"SELECT id, song_id, singer, position, created_at FROM karaoke_queue ORDER BY position ASC")
	if err != nil {
		return nil, errors.Wrap(err, "list queue")
	}
	defer rows.Close()

	var out []*Item
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.SongID, &item.Singer, &item.Position, &item.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan queue entry")
		}
		out = append(out, &item)
	}
	return out, rows.Err()
}

// Remove deletes an entry and re-densifies the remaining positions.
func (s *Store) Remove(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(err, "begin queue remove")
	}
	defer tx.Rollback()

	res, err := tx.Exec("DELETE FROM karaoke_queue WHERE id = ?", id)
	if err != nil {
		return errors.Wrap(err, "delete queue entry")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if affected == 0 {
		return errors.Wrapf(errors.ErrNotFound, "queue entry %s", id)
	}

	if err := densify(tx); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "commit queue remove")
}

// Reorder reassigns positions to match the given id order. Every current
// entry must appear exactly once.
func (s *Store) Reorder(ids []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(err, "begin queue reorder")
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRow("SELECT COUNT(*) FROM karaoke_queue").Scan(&count); err != nil {
		return errors.Wrap(err, "count queue entries")
	}
	if count != len(ids) {
		return errors.Wrapf(errors.ErrValidation,
			"reorder lists %d ids but the queue holds %d entries", len(ids), count)
	}

	for i, id := range ids {
		res, err := tx.Exec("UPDATE karaoke_queue SET position = ? WHERE id = ?", i+1, id)
		if err != nil {
			return errors.Wrapf(err, "reposition queue entry %s", id)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return errors.Wrap(err, "rows affected")
		}
		if affected == 0 {
			return errors.Wrapf(errors.ErrNotFound, "queue entry %s", id)
		}
	}

	return errors.Wrap(tx.Commit(), "commit queue reorder")
}

// densify renumbers positions 1..n preserving order.
func densify(tx *sql.Tx) error {
	rows, err := tx.Query("SELECT id FROM karaoke_queue ORDER BY position ASC")
	if err != nil {
		return errors.Wrap(err, "read queue order")
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return errors.Wrap(err, "scan queue id")
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return errors.Wrap(err, "iterate queue ids")
	}

	for i, id := range ids {
		if _, err := tx.Exec("UPDATE karaoke_queue SET position = ? WHERE id = ?", i+1, id); err != nil {
			return errors.Wrapf(err, "densify position for %s", id)
		}
	}
	return nil
}
