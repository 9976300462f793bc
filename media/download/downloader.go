// Package download drives the yt-dlp subprocess that fetches source audio
// and its metadata for a song.
package download

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/kballard/go-shellquote"
	"go.uber.org/zap"

	"github.com/openkaraoke/studio/config"
	"github.com/openkaraoke/studio/errors"
	"github.com/openkaraoke/studio/library"
)

// Hints carry caller-supplied metadata that overrides the best-effort
// parse of the video title.
type Hints struct {
	Artist string
	Title  string
}

// Downloader wraps the yt-dlp binary.
type Downloader struct {
	binPath string
	timeout time.Duration
	lib     *library.Library
	log     *zap.SugaredLogger
}

// New creates a Downloader. When cfg.YtdlpPath is empty the binary is
// discovered on PATH.
func New(cfg config.DownloadConfig, lib *library.Library, log *zap.SugaredLogger) (*Downloader, error) {
	binPath := cfg.YtdlpPath
	if binPath == "" {
		found, err := exec.LookPath("yt-dlp")
		if err != nil {
			return nil, errors.Wrap(errors.ErrDownloader, "yt-dlp not found on PATH")
		}
		binPath = found
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}

	return &Downloader{
		binPath: binPath,
		timeout: timeout,
		lib:     lib,
		log:     log,
	}, nil
}

// ytdlpInfo is the subset of --print-json output the pipeline reads.
type ytdlpInfo struct {
	ID         string      `json:"id"`
	Title      string      `json:"title"`
	Artist     string      `json:"artist"`
	Duration   float64     `json:"duration"`
	Uploader   string      `json:"uploader"`
	ChannelID  string      `json:"channel_id"`
	UploadDate string      `json:"upload_date"`
	Thumbnails []Thumbnail `json:"thumbnails"`
}

// Download fetches the video's audio as original.mp3 inside the song's
// directory and returns the file path plus normalized metadata. The file
// lands via a staging directory and an atomic rename, so a killed
// download never leaves a partial original.mp3.
func (d *Downloader) Download(ctx context.Context, videoIDOrURL, songID string, hints Hints) (string, *VideoMetadata, error) {
	videoID, err := ExtractVideoID(videoIDOrURL)
	if err != nil {
		return "", nil, err
	}

	songDir, err := d.lib.SongDir(songID)
	if err != nil {
		return "", nil, err
	}

	staging, err := os.MkdirTemp(songDir, ".download*")
	if err != nil {
		return "", nil, errors.Wrap(err, "create staging dir")
	}
	defer os.RemoveAll(staging)

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	args := []string{
		"--no-playlist",
		"-f", "bestaudio",
		"-x", "--audio-format", "mp3",
		"--print-json",
		"-o", filepath.Join(staging, "audio.%(ext)s"),
		WatchURL(videoID),
	}

	d.log.Infow("Starting download",
		"video_id", videoID,
		"song_id", songID,
		"command", shellquote.Join(append([]string{d.binPath}, args...)...),
	)

	cmd := exec.CommandContext(ctx, d.binPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.Canceled {
			return "", nil, errors.ErrCancelled
		}
		if ctx.Err() == context.DeadlineExceeded {
			return "", nil, errors.Wrapf(errors.ErrTimeout, "download of %s exceeded %s", videoID, d.timeout)
		}
		d.log.Errorw("yt-dlp failed",
			"video_id", videoID,
			"stderr", lastLine(stderr.String()),
			"error", err,
		)
		return "", nil, errors.Wrapf(errors.ErrDownloader, "yt-dlp failed for %s: %s", videoID, lastLine(stderr.String()))
	}

	var info ytdlpInfo
	if err := json.Unmarshal(stdout.Bytes(), &info); err != nil {
		return "", nil, errors.Wrap(errors.ErrDownloader, "unparseable yt-dlp metadata")
	}

	audioPath := filepath.Join(staging, "audio.mp3")
	if !library.FileExistsNonEmpty(audioPath) {
		return "", nil, errors.Wrapf(errors.ErrDownloader, "yt-dlp produced no audio for %s", videoID)
	}

	originalPath, err := d.lib.OriginalPath(songID, "mp3")
	if err != nil {
		return "", nil, err
	}
	if err := fsyncFile(audioPath); err != nil {
		return "", nil, err
	}
	if err := os.Rename(audioPath, originalPath); err != nil {
		return "", nil, errors.Wrap(err, "move original into place")
	}

	meta := d.normalize(videoID, &info, stdout.String(), hints)
	d.log.Infow("Download complete",
		"video_id", videoID,
		"song_id", songID,
		"title", meta.Title,
		"duration_ms", meta.DurationMs,
	)
	return originalPath, meta, nil
}

// normalize merges yt-dlp's metadata with caller hints. Hints win; the
// "Artist - Title" parse only fills gaps.
func (d *Downloader) normalize(videoID string, info *ytdlpInfo, rawJSON string, hints Hints) *VideoMetadata {
	artist, title := info.Artist, info.Title
	if artist == "" {
		parsedArtist, parsedTitle := splitArtistTitle(info.Title)
		if parsedArtist != "" {
			artist, title = parsedArtist, parsedTitle
		}
	}
	if hints.Artist != "" {
		artist = hints.Artist
	}
	if hints.Title != "" {
		title = hints.Title
	}

	return &VideoMetadata{
		VideoID:    videoID,
		Title:      title,
		Artist:     artist,
		DurationMs: int64(info.Duration * 1000),
		Uploader:   info.Uploader,
		ChannelID:  info.ChannelID,
		UploadDate: info.UploadDate,
		Thumbnails: info.Thumbnails,
		RawJSON:    rawJSON,
	}
}

func fsyncFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open for fsync")
	}
	defer f.Close()
	if err := f.Sync(); err != nil {
		return errors.Wrap(err, "fsync downloaded audio")
	}
	return nil
}

func lastLine(s string) string {
	lines := bytes.Split(bytes.TrimSpace([]byte(s)), []byte("\n"))
	if len(lines) == 0 {
		return ""
	}
	return string(lines[len(lines)-1])
}
