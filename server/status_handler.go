package server

import (
	"net/http"
	"time"

	"github.com/openkaraoke/studio/internal/version"
	"github.com/openkaraoke/studio/jobs"
)

// statusResponse is the GET /api/status body.
type statusResponse struct {
	Status        string              `json:"status"`
	Version       version.Info        `json:"version"`
	UptimeSeconds int64               `json:"uptimeSeconds"`
	Jobs          map[jobs.Status]int `json:"jobs"`
	WorkerPool    int                 `json:"workerPool"`
	JobsClients   int                 `json:"jobsClients"`
	PerfClients   int                 `json:"performanceClients"`
}

// handleStatus reports process health, job counts by status, and room
// occupancy.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	stats, err := s.jobStore.Stats()
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		Status:        "ok",
		Version:       version.Get(),
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		Jobs:          stats,
		WorkerPool:    s.sched.PoolSize(),
		JobsClients:   s.jobsRoom.ClientCount(),
		PerfClients:   s.perfRoom.ClientCount(),
	})
}
