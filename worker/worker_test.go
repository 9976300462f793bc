package worker

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openkaraoke/studio/errors"
	oktesting "github.com/openkaraoke/studio/internal/testing"
	"github.com/openkaraoke/studio/jobs"
	"github.com/openkaraoke/studio/library"
	"github.com/openkaraoke/studio/media/download"
	"github.com/openkaraoke/studio/media/lyrics"
	"github.com/openkaraoke/studio/media/metadata"
	"github.com/openkaraoke/studio/media/separate"
	"github.com/openkaraoke/studio/song"
)

type fakeDownloader struct {
	lib    *library.Library
	err    error
	called bool
}

func (f *fakeDownloader) Download(ctx context.Context, videoIDOrURL, songID string, hints download.Hints) (string, *download.VideoMetadata, error) {
	f.called = true
	if f.err != nil {
		return "", nil, f.err
	}
	path, err := f.lib.OriginalPath(songID, "mp3")
	if err != nil {
		return "", nil, err
	}
	if _, err := f.lib.SongDir(songID); err != nil {
		return "", nil, err
	}
	if err := os.WriteFile(path, []byte("audio"), 0644); err != nil {
		return "", nil, err
	}
	return path, &download.VideoMetadata{
		VideoID:    "dQw4w9WgXcQ",
		Title:      "Never Gonna Give You Up",
		Artist:     "Rick Astley",
		DurationMs: 212000,
		Uploader:   "RickAstleyVEVO",
	}, nil
}

type fakeSeparator struct {
	lib       *library.Library
	err       error
	reports   []int
	separated bool
}

func (f *fakeSeparator) Separate(ctx context.Context, inputPath, songID string, progress separate.ProgressFunc) error {
	for _, pct := range f.reports {
		progress(pct, "separating")
	}
	if f.err != nil {
		return f.err
	}
	for _, stem := range []string{"vocals", "instrumental"} {
		p, err := f.lib.ResolveInside(songID, stem+".mp3")
		if err != nil {
			return err
		}
		if err := os.WriteFile(p, []byte(stem), 0644); err != nil {
			return err
		}
	}
	f.separated = true
	return nil
}

type fakeEnricher struct{ err error }

func (f *fakeEnricher) Enrich(ctx context.Context, req metadata.Request) (*metadata.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &metadata.Record{Title: req.Title, Artist: req.Artist}, nil
}

type fakeLyrics struct{ err error }

func (f *fakeLyrics) FetchForSong(ctx context.Context, s *song.Song) (lyrics.Lyrics, error) {
	if f.err != nil {
		return lyrics.Lyrics{}, f.err
	}
	return lyrics.Lyrics{Plain: "words"}, nil
}

type fixture struct {
	handler    *Handler
	jobStore   *jobs.Store
	songs      *song.Store
	lib        *library.Library
	downloader *fakeDownloader
	separator  *fakeSeparator
	bus        *jobs.Bus
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := zap.NewNop().Sugar()

	database := oktesting.CreateTestDB(t)
	bus := jobs.NewBus(log)
	jobStore := jobs.NewStore(database, bus, log)
	songs := song.NewStore(database, log)

	lib, err := library.New(t.TempDir(), log)
	require.NoError(t, err)

	dl := &fakeDownloader{lib: lib}
	sep := &fakeSeparator{lib: lib, reports: []int{0, 50, 100}}

	h := NewHandler(jobStore, songs, lib, dl, sep, &fakeEnricher{}, &fakeLyrics{}, log)
	return &fixture{
		handler:    h,
		jobStore:   jobStore,
		songs:      songs,
		lib:        lib,
		downloader: dl,
		separator:  sep,
		bus:        bus,
	}
}

func (fx *fixture) createJob(t *testing.T, source string) (*jobs.Job, *song.Song) {
	t.Helper()
	s := song.New("Never Gonna Give You Up", "Rick Astley")
	s.Source = source
	if source == song.SourceYouTube {
		s.VideoID = "dQw4w9WgXcQ"
	}
	require.NoError(t, fx.songs.Create(s))

	job := jobs.NewJob(s.ID, "never-gonna-give-you-up.mp3", s.Title, s.Artist)
	require.NoError(t, fx.jobStore.Create(job))
	return job, s
}

func TestExecuteHappyPath(t *testing.T) {
	fx := newFixture(t)
	job, s := fx.createJob(t, song.SourceYouTube)

	var statuses []jobs.Status
	fx.bus.Subscribe(func(ev jobs.JobEvent) {
		if len(statuses) == 0 || statuses[len(statuses)-1] != ev.Job.Status {
			statuses = append(statuses, ev.Job.Status)
		}
	})

	require.NoError(t, fx.handler.Execute(context.Background(), job.ID))

	done, err := fx.jobStore.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusCompleted, done.Status)
	assert.Equal(t, 100, done.Progress)
	assert.NotNil(t, done.StartedAt)
	assert.NotNil(t, done.CompletedAt)

	assert.Equal(t, []jobs.Status{
		jobs.StatusDownloading,
		jobs.StatusProcessing,
		jobs.StatusFinalizing,
		jobs.StatusCompleted,
	}, statuses)

	updated, err := fx.songs.Get(s.ID)
	require.NoError(t, err)
	assert.True(t, updated.HasAudioFiles)
	assert.Equal(t, filepath.Join(s.ID, "vocals.mp3"), updated.VocalsPath)
	assert.Equal(t, filepath.Join(s.ID, "instrumental.mp3"), updated.InstrumentalPath)
	assert.Equal(t, "words", updated.PlainLyrics)
	assert.Equal(t, "RickAstleyVEVO", updated.Uploader)
}

func TestExecuteUploadSkipsDownload(t *testing.T) {
	fx := newFixture(t)
	job, s := fx.createJob(t, song.SourceUpload)

	// Uploads arrive with the original already in the library
	path, err := fx.lib.OriginalPath(s.ID, "mp3")
	require.NoError(t, err)
	_, err = fx.lib.SongDir(s.ID)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte("uploaded audio"), 0644))
	s.OriginalPath = filepath.Join(s.ID, "original.mp3")
	require.NoError(t, fx.songs.Update(s))

	var statuses []jobs.Status
	fx.bus.Subscribe(func(ev jobs.JobEvent) {
		if len(statuses) == 0 || statuses[len(statuses)-1] != ev.Job.Status {
			statuses = append(statuses, ev.Job.Status)
		}
	})

	require.NoError(t, fx.handler.Execute(context.Background(), job.ID))
	assert.False(t, fx.downloader.called)
	assert.Equal(t, []jobs.Status{
		jobs.StatusProcessing,
		jobs.StatusFinalizing,
		jobs.StatusCompleted,
	}, statuses)
}

func TestExecuteSeparationProgressMapping(t *testing.T) {
	fx := newFixture(t)
	fx.separator.reports = []int{0, 50, 100}
	job, _ := fx.createJob(t, song.SourceYouTube)

	var seen []int
	fx.bus.Subscribe(func(ev jobs.JobEvent) {
		if ev.Job.Status == jobs.StatusProcessing {
			seen = append(seen, ev.Job.Progress)
		}
	})

	require.NoError(t, fx.handler.Execute(context.Background(), job.ID))

	// Adapter 0/50/100 maps into the 30-90 band
	assert.Contains(t, seen, 60)
	assert.Contains(t, seen, 90)
	for _, pct := range seen {
		assert.GreaterOrEqual(t, pct, 30)
		assert.LessOrEqual(t, pct, 90)
	}
}

func TestExecuteCancelDeletesSongDir(t *testing.T) {
	fx := newFixture(t)
	fx.separator.err = errors.ErrCancelled
	job, s := fx.createJob(t, song.SourceYouTube)

	require.NoError(t, fx.handler.Execute(context.Background(), job.ID))

	done, err := fx.jobStore.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusCancelled, done.Status)
	assert.Equal(t, "Cancelled by user", done.Error)

	// Song directory removed, nothing partial left behind
	dir := filepath.Join(fx.lib.Root(), s.ID)
	_, statErr := os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr))
}

func TestExecuteFailureLeavesArtifacts(t *testing.T) {
	fx := newFixture(t)
	fx.separator.err = errors.Wrap(errors.ErrSeparation, "model blew up")
	job, s := fx.createJob(t, song.SourceYouTube)

	err := fx.handler.Execute(context.Background(), job.ID)
	require.Error(t, err)

	done, getErr := fx.jobStore.Get(job.ID)
	require.NoError(t, getErr)
	assert.Equal(t, jobs.StatusFailed, done.Status)
	assert.Contains(t, done.Error, "model blew up")

	// Download artifact survives for post-mortem
	original, pathErr := fx.lib.OriginalPath(s.ID, "mp3")
	require.NoError(t, pathErr)
	assert.True(t, library.FileExistsNonEmpty(original))
}

func TestExecuteEnrichmentFailureIsNonFatal(t *testing.T) {
	fx := newFixture(t)
	job, _ := fx.createJob(t, song.SourceYouTube)
	fx.handler.enricher = &fakeEnricher{err: errors.Wrap(errors.ErrProviderFailure, "catalog down")}
	fx.handler.lyrics = &fakeLyrics{err: errors.Wrap(errors.ErrNotFound, "no lyrics")}

	require.NoError(t, fx.handler.Execute(context.Background(), job.ID))

	done, err := fx.jobStore.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusCompleted, done.Status)
}

func TestExecuteRejectsNonPendingJob(t *testing.T) {
	fx := newFixture(t)
	job, _ := fx.createJob(t, song.SourceYouTube)
	require.NoError(t, fx.handler.Execute(context.Background(), job.ID))

	// A completed job cannot run again
	err := fx.handler.Execute(context.Background(), job.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidState))
}

func TestExecuteDownloadFailure(t *testing.T) {
	fx := newFixture(t)
	fx.downloader.err = errors.Wrap(errors.ErrDownloader, "video unavailable")
	job, _ := fx.createJob(t, song.SourceYouTube)

	err := fx.handler.Execute(context.Background(), job.ID)
	require.Error(t, err)

	done, getErr := fx.jobStore.Get(job.ID)
	require.NoError(t, getErr)
	assert.Equal(t, jobs.StatusFailed, done.Status)
	assert.Contains(t, done.Error, "video unavailable")
}
