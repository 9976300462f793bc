package server

import (
	"net/http"

	"github.com/openkaraoke/studio/errors"
	"github.com/openkaraoke/studio/queue"
)

// addToQueueRequest is the POST /api/queue body.
type addToQueueRequest struct {
	SongID string `json:"songId"`
	Singer string `json:"singer"`
}

// handleQueue serves /api/queue: list (GET) and add (POST).
func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		items, err := s.queue.List()
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if items == nil {
			items = []*queue.Item{}
		}
		writeJSON(w, http.StatusOK, items)

	case http.MethodPost:
		var req addToQueueRequest
		if err := readJSON(w, r, &req); err != nil {
			return
		}
		if req.SongID == "" || req.Singer == "" {
			writeError(w, http.StatusBadRequest, errors.CodeValidation,
				"songId and singer are required")
			return
		}
		if _, err := s.songs.Get(req.SongID); err != nil {
			writeDomainError(w, err)
			return
		}
		item, err := s.queue.Add(req.SongID, req.Singer)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		s.log.Infow("Singer queued", "singer", req.Singer, "song_id", shortID(req.SongID))
		writeJSON(w, http.StatusCreated, item)

	default:
		writeError(w, http.StatusMethodNotAllowed, errors.CodeValidation, "Method not allowed")
	}
}

// handleQueueItem serves DELETE /api/queue/{id}.
func (s *Server) handleQueueItem(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodDelete) {
		return
	}
	parts := extractPathParts(r.URL.Path, "/api/queue/")
	if len(parts) != 1 {
		writeError(w, http.StatusBadRequest, errors.CodeValidation, "queue entry id is required")
		return
	}
	if err := s.queue.Remove(parts[0]); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// reorderRequest is the PUT /api/queue/reorder body: every entry id in
// its new order.
type reorderRequest struct {
	IDs []string `json:"ids"`
}

// handleQueueReorder serves PUT /api/queue/reorder.
func (s *Server) handleQueueReorder(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPut) {
		return
	}
	var req reorderRequest
	if err := readJSON(w, r, &req); err != nil {
		return
	}
	if err := s.queue.Reorder(req.IDs); err != nil {
		writeDomainError(w, err)
		return
	}
	items, err := s.queue.List()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}
