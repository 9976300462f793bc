// Package separate drives the demucs subprocess that splits a mixed
// track into vocal and instrumental stems.
package separate

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
	"go.uber.org/zap"

	"github.com/openkaraoke/studio/config"
	"github.com/openkaraoke/studio/errors"
	"github.com/openkaraoke/studio/library"
)

// progressInterval spaces intermediate progress callbacks.
const progressInterval = 500 * time.Millisecond

// Separator wraps the demucs binary. The instrumental output is the sum
// of every stem except vocals; two-stems mode has demucs compute that sum
// itself.
type Separator struct {
	binPath       string
	model         string
	mp3Bitrate    int
	device        string
	modelCacheDir string
	modelBaseURL  string
	lib           *library.Library
	log           *zap.SugaredLogger
}

// New creates a Separator and verifies the demucs binary meets the
// minimum supported version.
func New(cfg config.SeparationConfig, lib *library.Library, log *zap.SugaredLogger) (*Separator, error) {
	binPath := cfg.DemucsPath
	if binPath == "" {
		found, err := exec.LookPath("demucs")
		if err != nil {
			return nil, errors.Wrap(errors.ErrSeparation, "demucs not found on PATH")
		}
		binPath = found
	}

	s := &Separator{
		binPath:       binPath,
		model:         cfg.Model,
		mp3Bitrate:    cfg.MP3Bitrate,
		device:        cfg.Device,
		modelCacheDir: cfg.ModelCacheDir,
		modelBaseURL:  cfg.ModelBaseURL,
		lib:           lib,
		log:           log,
	}

	if err := s.checkVersion(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Separator) checkVersion() error {
	out, err := exec.Command(s.binPath, "--version").CombinedOutput()
	if err != nil {
		return errors.Wrapf(errors.ErrSeparation, "demucs --version failed: %v", err)
	}
	v, err := parseVersionOutput(string(out))
	if err != nil {
		// Forks sometimes report odd version strings; log and proceed
		s.log.Warnw("Could not parse demucs version", "output", strings.TrimSpace(string(out)))
		return nil
	}
	if !isSupportedVersion(v) {
		return errors.Wrapf(errors.ErrSeparation,
			"demucs %s is older than the minimum supported %s", v, minSupportedVersion)
	}
	s.log.Debugw("Separator ready", "demucs_version", v.String(), "model", s.model)
	return nil
}

// selectDevice resolves "auto" to cuda when a GPU is visible, else cpu.
func (s *Separator) selectDevice() string {
	if s.device != "" && s.device != "auto" {
		return s.device
	}
	if _, err := exec.LookPath("nvidia-smi"); err == nil {
		return "cuda"
	}
	return "cpu"
}

// outputExt keeps the source format for mp3/wav and falls back to wav.
func outputExt(inputPath string) string {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(inputPath), ".")) {
	case "mp3":
		return "mp3"
	case "wav":
		return "wav"
	default:
		return "wav"
	}
}

// percentPattern matches demucs' tqdm-style progress lines.
var percentPattern = regexp.MustCompile(`(\d{1,3})%\|`)

// Separate splits inputPath into vocals and instrumental stems inside the
// song's directory. Progress lands on progressFn throttled to one call
// per 500ms (the final call always fires). Cancelling ctx terminates the
// subprocess and returns ErrCancelled without partial stems: demucs
// writes into a staging directory that only gets renamed into place on
// success.
func (s *Separator) Separate(ctx context.Context, inputPath, songID string, progressFn ProgressFunc) error {
	progress := throttled(progressFn, progressInterval)

	device := s.selectDevice()
	progress(0, "separating on "+device)

	if err := s.EnsureModel(ctx); err != nil {
		return err
	}

	songDir, err := s.lib.SongDir(songID)
	if err != nil {
		return err
	}
	staging, err := os.MkdirTemp(songDir, ".separate*")
	if err != nil {
		return errors.Wrap(err, "create staging dir")
	}
	defer os.RemoveAll(staging)

	ext := outputExt(inputPath)
	args := []string{
		"-n", s.model,
		"--two-stems", "vocals",
		"--device", device,
		"-o", staging,
		"--filename", "{stem}.{ext}",
	}
	if ext == "mp3" {
		args = append(args, "--mp3", "--mp3-bitrate", strconv.Itoa(s.mp3Bitrate))
	}
	args = append(args, inputPath)

	s.log.Infow("Starting separation",
		"song_id", songID,
		"model", s.model,
		"device", device,
		"command", shellquote.Join(append([]string{s.binPath}, args...)...),
	)

	cmd := exec.CommandContext(ctx, s.binPath, args...)
	var stderrTail bytes.Buffer
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return errors.Wrap(err, "stderr pipe")
	}
	if err := cmd.Start(); err != nil {
		return errors.Wrapf(errors.ErrSeparation, "failed to start demucs: %v", err)
	}

	// demucs reports per-stem progress on stderr; forward it, checking
	// for cancellation on every line
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		stderrTail.Reset()
		stderrTail.WriteString(line)
		if m := percentPattern.FindStringSubmatch(line); m != nil {
			if pct, err := strconv.Atoi(m[1]); err == nil && pct <= 100 {
				if pct == 100 {
					// Reserve the final call for after the rename
					pct = 99
				}
				progress(pct, "separating stems")
			}
		}
		if ctx.Err() != nil {
			break
		}
	}

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return errors.ErrCancelled
		}
		s.log.Errorw("demucs failed",
			"song_id", songID,
			"stderr", stderrTail.String(),
			"error", err,
		)
		return errors.Wrapf(errors.ErrSeparation, "demucs failed: %s", stderrTail.String())
	}
	if ctx.Err() != nil {
		return errors.ErrCancelled
	}

	// Two-stems output: vocals.<ext> plus no_vocals.<ext>, the summed
	// remainder of the mix
	modelDir := filepath.Join(staging, s.model)
	vocalsSrc := filepath.Join(modelDir, "vocals."+ext)
	instSrc := filepath.Join(modelDir, "no_vocals."+ext)
	if !library.FileExistsNonEmpty(vocalsSrc) || !library.FileExistsNonEmpty(instSrc) {
		return errors.Wrapf(errors.ErrSeparation, "demucs produced no stems for %s", songID)
	}

	vocalsDst, err := s.lib.VocalsPath(songID, ext)
	if err != nil {
		return err
	}
	instDst, err := s.lib.InstrumentalPath(songID, ext)
	if err != nil {
		return err
	}
	if err := os.Rename(vocalsSrc, vocalsDst); err != nil {
		return errors.Wrap(err, "move vocals into place")
	}
	if err := os.Rename(instSrc, instDst); err != nil {
		return errors.Wrap(err, "move instrumental into place")
	}

	progress(100, "separation complete")
	s.log.Infow("Separation complete", "song_id", songID, "format", ext)
	return nil
}
