package server

import (
	"net/http"

	"github.com/openkaraoke/studio/errors"
	"github.com/openkaraoke/studio/library"
	"github.com/openkaraoke/studio/song"
)

// createSongRequest is the POST /api/songs body.
type createSongRequest struct {
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	Album      string `json:"album"`
	DurationMs int64  `json:"durationMs"`
	Source     string `json:"source"`
	VideoID    string `json:"videoId"`
}

// handleSongs serves /api/songs: list (GET) and create (POST).
func (s *Server) handleSongs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		songs, err := s.songs.List()
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if songs == nil {
			songs = []*song.Song{}
		}
		writeJSON(w, http.StatusOK, songs)

	case http.MethodPost:
		var req createSongRequest
		if err := readJSON(w, r, &req); err != nil {
			return
		}
		if req.Title == "" {
			writeError(w, http.StatusBadRequest, errors.CodeValidation, "title is required")
			return
		}

		newSong := song.New(req.Title, req.Artist)
		newSong.Album = req.Album
		newSong.DurationMs = req.DurationMs
		if req.Source != "" {
			newSong.Source = req.Source
		}
		newSong.VideoID = req.VideoID

		if err := s.songs.Create(newSong); err != nil {
			writeDomainError(w, err)
			return
		}
		s.log.Infow("Song created", "song_id", shortID(newSong.ID), "title", newSong.Title)
		writeJSON(w, http.StatusCreated, struct {
			*song.Song
			Status string `json:"status"`
		}{newSong, "pending"})

	default:
		writeError(w, http.StatusMethodNotAllowed, errors.CodeValidation, "Method not allowed")
	}
}

// handleSong serves /api/songs/{id} and its sub-resources: artifact
// downloads, thumbnail, and cover.
func (s *Server) handleSong(w http.ResponseWriter, r *http.Request) {
	parts := extractEscapedPathParts(r, "/api/songs/")
	if len(parts) == 0 {
		writeError(w, http.StatusBadRequest, errors.CodeValidation, "song id is required")
		return
	}
	id := parts[0]

	switch {
	case len(parts) == 1:
		s.handleSongByID(w, r, id)
	case len(parts) == 3 && parts[1] == "download":
		if !requireMethod(w, r, http.MethodGet) {
			return
		}
		s.handleTrackDownload(w, r, id, parts[2])
	case len(parts) == 2 && parts[1] == "thumbnail":
		if !requireMethod(w, r, http.MethodGet) {
			return
		}
		s.serveImage(w, r, id, "thumbnail")
	case len(parts) == 2 && parts[1] == "cover":
		if !requireMethod(w, r, http.MethodGet) {
			return
		}
		s.serveImage(w, r, id, "cover")
	case len(parts) == 2 && parts[1] == "lyrics":
		if !requireMethod(w, r, http.MethodGet) {
			return
		}
		s.handleSongLyrics(w, r, id)
	default:
		writeError(w, http.StatusNotFound, errors.CodeNotFound, "unknown song resource")
	}
}

func (s *Server) handleSongByID(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		found, err := s.songs.Get(id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, found)

	case http.MethodPatch:
		found, err := s.songs.Get(id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		var patch createSongRequest
		if err := readJSON(w, r, &patch); err != nil {
			return
		}
		if patch.Title != "" {
			found.Title = patch.Title
		}
		if patch.Artist != "" {
			found.Artist = patch.Artist
		}
		if patch.Album != "" {
			found.Album = patch.Album
		}
		if patch.DurationMs > 0 {
			found.DurationMs = patch.DurationMs
		}
		if err := s.songs.Update(found); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, found)

	case http.MethodDelete:
		if _, err := s.songs.Get(id); err != nil {
			writeDomainError(w, err)
			return
		}
		// Artifacts first: a failed row delete then leaves a consistent
		// re-runnable state
		if err := s.lib.DeleteSong(id); err != nil {
			writeDomainError(w, err)
			return
		}
		if err := s.songs.Delete(id); err != nil {
			writeDomainError(w, err)
			return
		}
		s.log.Infow("Song deleted", "song_id", shortID(id))
		w.WriteHeader(http.StatusNoContent)

	default:
		writeError(w, http.StatusMethodNotAllowed, errors.CodeValidation, "Method not allowed")
	}
}

// trackKinds are the downloadable artifact kinds.
var trackKinds = map[string]bool{
	"vocals":       true,
	"instrumental": true,
	"original":     true,
}

// handleTrackDownload serves one audio artifact. The resolved path must
// stay inside the library root; anything else is a security violation.
func (s *Server) handleTrackDownload(w http.ResponseWriter, r *http.Request, id, track string) {
	if !trackKinds[track] {
		writeError(w, http.StatusBadRequest, errors.CodeValidation,
			"track must be one of vocals, instrumental, original")
		return
	}

	var served bool
	for _, ext := range []string{"mp3", "wav"} {
		path, err := s.lib.ResolveInside(id, track+"."+ext)
		if err != nil {
			if errors.IsAccessDenied(err) {
				s.log.Warnw("Blocked path traversal attempt",
					"song_id", id, "track", track, "remote", r.RemoteAddr)
			}
			writeDomainError(w, err)
			return
		}
		if !library.FileExistsNonEmpty(path) {
			continue
		}
		w.Header().Set("Content-Disposition", `attachment; filename="`+track+"."+ext+`"`)
		http.ServeFile(w, r, path)
		served = true
		break
	}
	if !served {
		writeError(w, http.StatusNotFound, errors.CodeNotFound,
			"no "+track+" track for song "+id)
	}
}

// serveImage probes formats in preference order and serves the first hit
// with its matching content type.
func (s *Server) serveImage(w http.ResponseWriter, r *http.Request, id, kind string) {
	var path, mime string
	var err error
	if kind == "cover" {
		path, mime, err = s.lib.FindCover(id)
	} else {
		path, mime, err = s.lib.FindThumbnail(id)
	}
	if err != nil {
		if errors.IsAccessDenied(err) {
			s.log.Warnw("Blocked path traversal attempt",
				"song_id", id, "kind", kind, "remote", r.RemoteAddr)
		}
		writeDomainError(w, err)
		return
	}
	w.Header().Set("Content-Type", mime)
	http.ServeFile(w, r, path)
}

// handleSongLyrics returns stored lyrics, falling back to a provider
// lookup that caches on the song row.
func (s *Server) handleSongLyrics(w http.ResponseWriter, r *http.Request, id string) {
	found, err := s.songs.Get(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	result, err := s.lyrics.FetchForSong(r.Context(), found)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
