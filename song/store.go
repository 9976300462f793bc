package song

import (
	"database/sql"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/openkaraoke/studio/errors"
)

// Store persists songs in sqlite.
type Store struct {
	db  *sql.DB
	log *zap.SugaredLogger
}

// NewStore creates a song store.
func NewStore(database *sql.DB, log *zap.SugaredLogger) *Store {
	return &Store{db: database, log: log}
}

func selectColumns() string {
	return `id, title, artist, album, duration_ms, source, video_id,
		catalog_track_id, genre, release_date,
		original_path, vocals_path, instrumental_path, cover_art_path, thumbnail_path,
		plain_lyrics, synced_lyrics, uploader, channel_id, upload_date,
		raw_metadata, has_audio_files, created_at, updated_at`
}

type scanArgs struct {
	videoID        sql.NullString
	catalogTrackID sql.NullInt64
	genre          sql.NullString
	releaseDate    sql.NullString
	originalPath   sql.NullString
	vocalsPath     sql.NullString
	instrPath      sql.NullString
	coverPath      sql.NullString
	thumbPath      sql.NullString
	plainLyrics    sql.NullString
	syncedLyrics   sql.NullString
	uploader       sql.NullString
	channelID      sql.NullString
	uploadDate     sql.NullString
	rawMetadata    sql.NullString
}

func scanTargets(s *Song, a *scanArgs) []interface{} {
	return []interface{}{
		&s.ID, &s.Title, &s.Artist, &s.Album, &s.DurationMs, &s.Source, &a.videoID,
		&a.catalogTrackID, &a.genre, &a.releaseDate,
		&a.originalPath, &a.vocalsPath, &a.instrPath, &a.coverPath, &a.thumbPath,
		&a.plainLyrics, &a.syncedLyrics, &a.uploader, &a.channelID, &a.uploadDate,
		&a.rawMetadata, &s.HasAudioFiles, &s.CreatedAt, &s.UpdatedAt,
	}
}

func applyScanArgs(s *Song, a *scanArgs) {
	s.VideoID = a.videoID.String
	s.CatalogTrackID = a.catalogTrackID.Int64
	s.Genre = a.genre.String
	s.ReleaseDate = a.releaseDate.String
	s.OriginalPath = a.originalPath.String
	s.VocalsPath = a.vocalsPath.String
	s.InstrumentalPath = a.instrPath.String
	s.CoverArtPath = a.coverPath.String
	s.ThumbnailPath = a.thumbPath.String
	s.PlainLyrics = a.plainLyrics.String
	s.SyncedLyrics = a.syncedLyrics.String
	s.Uploader = a.uploader.String
	s.ChannelID = a.channelID.String
	s.UploadDate = a.uploadDate.String
	s.RawMetadata = a.rawMetadata.String
}

// Create inserts a new song row; duplicate ids fail with ErrConflict.
func (st *Store) Create(s *Song) error {
	if s.ID == "" || s.Title == "" {
		return errors.Wrap(errors.ErrValidation, "song requires id and title")
	}

	_, err := st.db.Exec(`
		INSERT INTO songs (id, title, artist, album, duration_ms, source, video_id,
			catalog_track_id, genre, release_date,
			original_path, vocals_path, instrumental_path, cover_art_path, thumbnail_path,
			plain_lyrics, synced_lyrics, uploader, channel_id, upload_date,
			raw_metadata, has_audio_files, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.Title, s.Artist, s.Album, s.DurationMs, s.Source, nullString(s.VideoID),
		nullInt64(s.CatalogTrackID), nullString(s.Genre), nullString(s.ReleaseDate),
		nullString(s.OriginalPath), nullString(s.VocalsPath), nullString(s.InstrumentalPath),
		nullString(s.CoverArtPath), nullString(s.ThumbnailPath),
		nullString(s.PlainLyrics), nullString(s.SyncedLyrics),
		nullString(s.Uploader), nullString(s.ChannelID), nullString(s.UploadDate),
		nullString(s.RawMetadata), s.HasAudioFiles, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return errors.Wrapf(errors.ErrConflict, "song %s already exists", s.ID)
		}
		return errors.Wrap(err, "insert song")
	}
	return nil
}

// Get returns the song or ErrNotFound.
func (st *Store) Get(id string) (*Song, error) {
	row := st.db.QueryRow("SELECT "+selectColumns()+" FROM songs WHERE id = ?", id)

	var s Song
	var a scanArgs
	if err := row.Scan(scanTargets(&s, &a)...); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.Wrapf(errors.ErrNotFound, "song %s", id)
		}
		return nil, errors.Wrapf(err, "get song %s", id)
	}
	applyScanArgs(&s, &a)
	return &s, nil
}

// List returns all songs, newest first.
func (st *Store) List() ([]*Song, error) {
	rows, err := st.db.Query("SELECT " + selectColumns() + " FROM songs ORDER BY created_at DESC")
	if err != nil {
		return nil, errors.Wrap(err, "list songs")
	}
	defer rows.Close()

	var out []*Song
	for rows.Next() {
		var s Song
		var a scanArgs
		if err := rows.Scan(scanTargets(&s, &a)...); err != nil {
			return nil, errors.Wrap(err, "scan song row")
		}
		applyScanArgs(&s, &a)
		out = append(out, &s)
	}
	return out, rows.Err()
}

// Update persists the full song snapshot and bumps updated_at.
func (st *Store) Update(s *Song) error {
	s.UpdatedAt = time.Now().UTC()

	res, err := st.db.Exec(`
		UPDATE songs SET title = ?, artist = ?, album = ?, duration_ms = ?, source = ?,
			video_id = ?, catalog_track_id = ?, genre = ?, release_date = ?,
			original_path = ?, vocals_path = ?, instrumental_path = ?,
			cover_art_path = ?, thumbnail_path = ?,
			plain_lyrics = ?, synced_lyrics = ?, uploader = ?, channel_id = ?,
			upload_date = ?, raw_metadata = ?, has_audio_files = ?, updated_at = ?
		WHERE id = ?`,
		s.Title, s.Artist, s.Album, s.DurationMs, s.Source,
		nullString(s.VideoID), nullInt64(s.CatalogTrackID), nullString(s.Genre),
		nullString(s.ReleaseDate),
		nullString(s.OriginalPath), nullString(s.VocalsPath), nullString(s.InstrumentalPath),
		nullString(s.CoverArtPath), nullString(s.ThumbnailPath),
		nullString(s.PlainLyrics), nullString(s.SyncedLyrics),
		nullString(s.Uploader), nullString(s.ChannelID), nullString(s.UploadDate),
		nullString(s.RawMetadata), s.HasAudioFiles, s.UpdatedAt,
		s.ID,
	)
	if err != nil {
		return errors.Wrapf(err, "update song %s", s.ID)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if affected == 0 {
		return errors.Wrapf(errors.ErrNotFound, "song %s", s.ID)
	}
	return nil
}

// Delete removes the song row. Queue entries cascade via foreign keys;
// the caller is responsible for the artifact directory.
func (st *Store) Delete(id string) error {
	res, err := st.db.Exec("DELETE FROM songs WHERE id = ?", id)
	if err != nil {
		return errors.Wrapf(err, "delete song %s", id)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if affected == 0 {
		return errors.Wrapf(errors.ErrNotFound, "song %s", id)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt64(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: v != 0}
}
