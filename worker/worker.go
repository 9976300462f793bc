// Package worker runs the karaoke pipeline for one job at a time:
// download, stem separation, enrichment, and final song row update.
package worker

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/openkaraoke/studio/config"
	"github.com/openkaraoke/studio/errors"
	"github.com/openkaraoke/studio/internal/httpclient"
	"github.com/openkaraoke/studio/jobs"
	"github.com/openkaraoke/studio/library"
	"github.com/openkaraoke/studio/media/download"
	"github.com/openkaraoke/studio/media/lyrics"
	"github.com/openkaraoke/studio/media/metadata"
	"github.com/openkaraoke/studio/media/separate"
	"github.com/openkaraoke/studio/song"
)

// Progress ranges for each pipeline phase. The separator's own 0-100
// maps linearly into its range.
const (
	progressDispatched    = 5
	progressDownloaded    = 30
	progressSeparated     = 90
	progressThumbnail     = 92
	progressEnriched      = 95
	progressLyrics        = 97
	progressSongPersisted = 99
)

// Job-fetch retry tolerates writer-vs-reader commit races: the scheduler
// commits the pending row, a worker on another connection may not see it
// yet. Only this step retries.
const (
	fetchAttempts         = 4 // initial try plus three retries
	fetchBackoffBase      = 2 * time.Second
	thumbnailFetchTimeout = 15 * time.Second
)

// Downloader fetches source audio and metadata for a video.
type Downloader interface {
	Download(ctx context.Context, videoIDOrURL, songID string, hints download.Hints) (string, *download.VideoMetadata, error)
}

// Separator splits an audio file into vocal and instrumental stems.
type Separator interface {
	Separate(ctx context.Context, inputPath, songID string, progress separate.ProgressFunc) error
}

// Enricher resolves canonical metadata and cover art for a song.
type Enricher interface {
	Enrich(ctx context.Context, req metadata.Request) (*metadata.Record, error)
}

// LyricsFetcher resolves lyrics for a song, cache first.
type LyricsFetcher interface {
	FetchForSong(ctx context.Context, s *song.Song) (lyrics.Lyrics, error)
}

// Handler executes one job through the full pipeline. Artifact paths key
// on the song id, so a re-run for the same song overwrites safely.
type Handler struct {
	jobStore   *jobs.Store
	songs      *song.Store
	lib        *library.Library
	downloader Downloader
	separator  Separator
	enricher   Enricher
	lyrics     LyricsFetcher
	client     *httpclient.SaferClient
	log        *zap.SugaredLogger
}

// NewHandler wires a pipeline handler.
func NewHandler(
	jobStore *jobs.Store,
	songs *song.Store,
	lib *library.Library,
	downloader Downloader,
	separator Separator,
	enricher Enricher,
	lyricsFetcher LyricsFetcher,
	log *zap.SugaredLogger,
) *Handler {
	return &Handler{
		jobStore:   jobStore,
		songs:      songs,
		lib:        lib,
		downloader: downloader,
		separator:  separator,
		enricher:   enricher,
		lyrics:     lyricsFetcher,
		client:     httpclient.NewSaferClient(thumbnailFetchTimeout),
		log:        log,
	}
}

// WithClient swaps the thumbnail HTTP client. Tests use this with a
// wrapped httptest client.
func (h *Handler) WithClient(client *httpclient.SaferClient) *Handler {
	h.client = client
	return h
}

// Execute runs the pipeline for jobID. Cancellation of ctx between
// phases, or inside the separator, deletes the song directory and marks
// the job cancelled. Any other failure marks the job failed and leaves
// artifacts in place for post-mortem.
func (h *Handler) Execute(ctx context.Context, jobID string) error {
	job, err := h.fetchJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status != jobs.StatusPending {
		return errors.Wrapf(errors.ErrInvalidState,
			"job %s is %s, not pending", job.ID, job.Status)
	}

	if err := h.run(ctx, job); err != nil {
		return h.conclude(ctx, job, err)
	}
	return nil
}

// fetchJob reads the job row, retrying only this step with exponential
// backoff (2s, 4s, 8s).
func (h *Handler) fetchJob(ctx context.Context, jobID string) (*jobs.Job, error) {
	var lastErr error
	for attempt := 0; attempt < fetchAttempts; attempt++ {
		if attempt > 0 {
			backoff := fetchBackoffBase << (attempt - 1)
			h.log.Warnw("Job row not visible yet, retrying",
				"job_id", jobID, "attempt", attempt, "backoff", backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, errors.ErrCancelled
			}
		}
		job, err := h.jobStore.Get(jobID)
		if err == nil {
			return job, nil
		}
		lastErr = err
		if !errors.IsNotFound(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

// run drives the phases; the returned error classifies the outcome.
func (h *Handler) run(ctx context.Context, job *jobs.Job) error {
	s, err := h.songs.Get(job.SongID)
	if err != nil {
		return err
	}

	var videoMeta *download.VideoMetadata

	needsDownload := s.Source != song.SourceUpload
	if needsDownload {
		if err := h.transition(job, jobs.StatusDownloading); err != nil {
			return err
		}
		h.progress(job, progressDispatched, "download starting")

		if err := h.checkCancelled(ctx); err != nil {
			return err
		}
		originalPath, meta, err := h.downloader.Download(ctx, s.VideoID, s.ID, download.Hints{
			Artist: job.Artist,
			Title:  job.Title,
		})
		if err != nil {
			return err
		}
		videoMeta = meta
		h.applyDownloadMetadata(s, originalPath, meta)
		if err := h.songs.Update(s); err != nil {
			// Metadata update is attempted, not required, before processing
			h.log.Warnw("Song metadata update after download failed",
				"song_id", s.ID, "error", err)
		}
		h.progress(job, progressDownloaded, "download complete")
	}

	if err := h.checkCancelled(ctx); err != nil {
		return err
	}
	if err := h.transition(job, jobs.StatusProcessing); err != nil {
		return err
	}
	if !needsDownload {
		// Uploads skip the downloading phase entirely, so the dispatch
		// tick lands after the pending-to-processing transition
		h.progress(job, progressDispatched, "upload dispatched")
	}

	inputPath := filepath.Join(h.lib.Root(), s.OriginalPath)
	if s.OriginalPath == "" || !library.FileExistsNonEmpty(inputPath) {
		return errors.Wrapf(errors.ErrStorageFailure,
			"no original audio for song %s", s.ID)
	}

	err = h.separator.Separate(ctx, inputPath, s.ID, func(pct int, message string) {
		mapped := progressDownloaded + pct*(progressSeparated-progressDownloaded)/100
		h.progress(job, mapped, message)
	})
	if err != nil {
		return err
	}

	if err := h.checkCancelled(ctx); err != nil {
		return err
	}
	if err := h.transition(job, jobs.StatusFinalizing); err != nil {
		return err
	}
	if err := h.finalize(ctx, job, s, videoMeta); err != nil {
		return err
	}

	if err := h.transition(job, jobs.StatusCompleted); err != nil {
		return err
	}
	h.log.Infow("Job completed", "job_id", job.ID, "song_id", s.ID)
	return nil
}

// finalize downloads the thumbnail, attempts enrichment and lyrics (both
// best-effort), and persists final artifact paths on the song row.
func (h *Handler) finalize(ctx context.Context, job *jobs.Job, s *song.Song, videoMeta *download.VideoMetadata) error {
	h.progress(job, progressSeparated, "finalizing")

	if s.ThumbnailPath == "" && videoMeta != nil {
		h.fetchThumbnail(ctx, s, videoMeta)
	}
	h.progress(job, progressThumbnail, "thumbnail resolved")

	if err := h.checkCancelled(ctx); err != nil {
		return err
	}
	if h.enricher != nil {
		if _, err := h.enricher.Enrich(ctx, metadata.Request{
			Artist: s.Artist,
			Title:  s.Title,
			Album:  s.Album,
			SongID: s.ID,
		}); err != nil {
			if errors.IsCancelled(err) {
				return err
			}
			h.log.Warnw("Enrichment failed", "song_id", s.ID, "error", err)
		}
	}
	h.progress(job, progressEnriched, "metadata enriched")

	if err := h.checkCancelled(ctx); err != nil {
		return err
	}
	var fetched lyrics.Lyrics
	if h.lyrics != nil {
		got, err := h.lyrics.FetchForSong(ctx, s)
		if err != nil {
			if errors.IsCancelled(err) {
				return err
			}
			h.log.Debugw("Lyrics lookup failed", "song_id", s.ID, "error", err)
		} else {
			fetched = got
		}
	}
	h.progress(job, progressLyrics, "lyrics resolved")

	// Re-read: enrichment wrote its own columns
	fresh, err := h.songs.Get(s.ID)
	if err != nil {
		return err
	}
	if !fetched.Empty() {
		fresh.PlainLyrics = fetched.Plain
		fresh.SyncedLyrics = fetched.Synced
	}
	h.recordStemPaths(fresh)
	fresh.HasAudioFiles = true
	if err := h.songs.Update(fresh); err != nil {
		return err
	}
	h.progress(job, progressSongPersisted, "song updated")
	return nil
}

// recordStemPaths stores relative stem paths for whichever output format
// the separator produced.
func (h *Handler) recordStemPaths(s *song.Song) {
	for _, ext := range []string{"mp3", "wav"} {
		if vocals, err := h.lib.VocalsPath(s.ID, ext); err == nil && library.FileExistsNonEmpty(vocals) {
			s.VocalsPath = filepath.Join(s.ID, "vocals."+ext)
		}
		if inst, err := h.lib.InstrumentalPath(s.ID, ext); err == nil && library.FileExistsNonEmpty(inst) {
			s.InstrumentalPath = filepath.Join(s.ID, "instrumental."+ext)
		}
	}
}

// applyDownloadMetadata merges downloader output onto the song row.
func (h *Handler) applyDownloadMetadata(s *song.Song, originalPath string, meta *download.VideoMetadata) {
	if rel, err := filepath.Rel(h.lib.Root(), originalPath); err == nil {
		s.OriginalPath = rel
	}
	s.VideoID = meta.VideoID
	if meta.Title != "" {
		s.Title = meta.Title
	}
	if meta.Artist != "" {
		s.Artist = meta.Artist
	}
	if meta.DurationMs > 0 {
		s.DurationMs = meta.DurationMs
	}
	s.Uploader = meta.Uploader
	s.ChannelID = meta.ChannelID
	s.UploadDate = meta.UploadDate
	s.RawMetadata = meta.RawJSON
}

// fetchThumbnail downloads the best-ranked thumbnail. Best-effort: any
// failure just leaves the song without a thumbnail.
func (h *Handler) fetchThumbnail(ctx context.Context, s *song.Song, meta *download.VideoMetadata) {
	for _, thumb := range meta.RankedThumbnails() {
		data, err := h.fetchImage(ctx, thumb.URL)
		if err != nil {
			continue
		}
		ext := library.DetectImageExt(data)
		if ext == "" {
			continue
		}
		dest, err := h.lib.ThumbnailPath(s.ID, ext)
		if err != nil {
			return
		}
		if err := library.WriteFileAtomic(dest, data, config.DefaultFilePermissions); err != nil {
			h.log.Warnw("Thumbnail write failed", "song_id", s.ID, "error", err)
			return
		}
		s.ThumbnailPath = filepath.Join(s.ID, "thumbnail."+ext)
		if err := h.songs.Update(s); err != nil {
			h.log.Warnw("Thumbnail path update failed", "song_id", s.ID, "error", err)
		}
		return
	}
}

// conclude maps a pipeline error to the job's terminal state.
// Cancellation deletes the song directory; failure leaves artifacts for
// post-mortem.
func (h *Handler) conclude(ctx context.Context, job *jobs.Job, runErr error) error {
	if errors.IsCancelled(runErr) || ctx.Err() == context.Canceled {
		if err := h.lib.DeleteSong(job.SongID); err != nil {
			h.log.Errorw("Cleanup after cancel failed",
				"job_id", job.ID, "song_id", job.SongID, "error", err)
		}
		if err := job.Cancel(); err != nil {
			return err
		}
		if err := h.jobStore.Update(job); err != nil {
			return err
		}
		h.log.Infow("Job cancelled", "job_id", job.ID)
		return nil
	}

	if err := job.Fail(fmt.Sprintf("%v", runErr)); err != nil {
		return err
	}
	if err := h.jobStore.Update(job); err != nil {
		return err
	}
	h.log.Errorw("Job failed", "job_id", job.ID, "error", runErr)
	return runErr
}

func (h *Handler) checkCancelled(ctx context.Context) error {
	if ctx.Err() != nil {
		return errors.ErrCancelled
	}
	return nil
}

// transition persists a status change, publishing it on the bus via the
// store.
func (h *Handler) transition(job *jobs.Job, next jobs.Status) error {
	if err := job.TransitionTo(next); err != nil {
		return err
	}
	return h.jobStore.Update(job)
}

// progress persists a progress update. Persistence failures are logged;
// a missed progress tick never fails the pipeline.
func (h *Handler) progress(job *jobs.Job, percent int, message string) {
	job.UpdateProgress(percent, message)
	if err := h.jobStore.Update(job); err != nil {
		h.log.Warnw("Progress update failed",
			"job_id", job.ID, "percent", percent, "error", err)
	}
}

// fetchImage downloads one image with the worker's own short-timeout
// client.
func (h *Handler) fetchImage(ctx context.Context, imageURL string) ([]byte, error) {
	return fetchBytes(ctx, h.client, imageURL)
}
