package server

import (
	"net/http"

	"github.com/openkaraoke/studio/errors"
	"github.com/openkaraoke/studio/jobs"
	"github.com/openkaraoke/studio/media/download"
	"github.com/openkaraoke/studio/scheduler"
	"github.com/openkaraoke/studio/song"
)

// youtubeDownloadRequest is the POST /api/youtube/download body.
type youtubeDownloadRequest struct {
	VideoID string `json:"video_id"`
	SongID  string `json:"song_id"`
	Title   string `json:"title"`
	Artist  string `json:"artist"`
}

// handleYouTubeDownload accepts a download request and returns 202 with
// the pending job id. The pipeline runs asynchronously; progress arrives
// over /ws/jobs.
func (s *Server) handleYouTubeDownload(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req youtubeDownloadRequest
	if err := readJSON(w, r, &req); err != nil {
		return
	}
	if req.VideoID == "" {
		writeError(w, http.StatusBadRequest, errors.CodeValidation, "video_id is required")
		return
	}
	videoID, err := download.ExtractVideoID(req.VideoID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	// An existing song id reuses its artifact directory; otherwise a new
	// song row anchors the pipeline output
	songID := req.SongID
	if songID != "" {
		if _, err := s.songs.Get(songID); err != nil {
			writeDomainError(w, err)
			return
		}
	} else {
		newSong := song.New(req.Title, req.Artist)
		if newSong.Title == "" {
			newSong.Title = videoID
		}
		newSong.VideoID = videoID
		if err := s.songs.Create(newSong); err != nil {
			writeDomainError(w, err)
			return
		}
		songID = newSong.ID
	}

	job, err := s.sched.Submit(scheduler.Spec{
		SongID:   songID,
		Filename: videoID + ".mp3",
		Title:    req.Title,
		Artist:   req.Artist,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.log.Infow("Download job accepted",
		"job_id", shortID(job.ID), "video_id", videoID, "song_id", shortID(songID))
	writeJSON(w, http.StatusAccepted, map[string]string{
		"jobId":  job.ID,
		"status": string(jobs.StatusPending),
	})
}

// handleJobs serves GET /api/jobs with optional status and
// include_dismissed filters.
func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	filter := jobs.Filter{}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := jobs.Status(raw)
		if !jobs.IsValidStatus(status) {
			writeError(w, http.StatusBadRequest, errors.CodeValidation,
				"unknown status "+raw)
			return
		}
		filter.Status = status
	}
	filter.IncludeDismissed = r.URL.Query().Get("include_dismissed") == "true"

	list, err := s.jobStore.List(filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if list == nil {
		list = []*jobs.Job{}
	}
	writeJSON(w, http.StatusOK, list)
}

// handleJob serves /api/jobs/{id} and the cancel/dismiss actions.
func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	parts := extractPathParts(r.URL.Path, "/api/jobs/")
	if len(parts) == 0 {
		writeError(w, http.StatusBadRequest, errors.CodeValidation, "job id is required")
		return
	}
	id := parts[0]

	switch {
	case len(parts) == 1:
		if !requireMethod(w, r, http.MethodGet) {
			return
		}
		job, err := s.jobStore.Get(id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, job)

	case len(parts) == 2 && parts[1] == "cancel":
		if !requireMethod(w, r, http.MethodPost) {
			return
		}
		if err := s.sched.Cancel(id); err != nil {
			writeDomainError(w, err)
			return
		}
		s.log.Infow("Job cancel requested", "job_id", shortID(id))
		writeJSON(w, http.StatusOK, map[string]string{"status": "cancelling"})

	case len(parts) == 2 && parts[1] == "dismiss":
		if !requireMethod(w, r, http.MethodPost) {
			return
		}
		if err := s.jobStore.Dismiss(id); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "dismissed"})

	default:
		writeError(w, http.StatusNotFound, errors.CodeNotFound, "unknown job resource")
	}
}
