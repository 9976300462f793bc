// Package server exposes the HTTP API and the WebSocket rooms for job
// progress and shared performance controls.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/openkaraoke/studio/config"
	"github.com/openkaraoke/studio/jobs"
	"github.com/openkaraoke/studio/library"
	"github.com/openkaraoke/studio/media/lyrics"
	"github.com/openkaraoke/studio/queue"
	"github.com/openkaraoke/studio/scheduler"
	"github.com/openkaraoke/studio/song"
)

// Server wires the stores, the scheduler, and the WebSocket rooms behind
// one HTTP listener.
type Server struct {
	cfg      *config.Config
	songs    *song.Store
	jobStore *jobs.Store
	queue    *queue.Store
	lib      *library.Library
	sched    *scheduler.Scheduler
	lyrics   *lyrics.Fetcher
	log      *zap.SugaredLogger

	jobsRoom *JobsRoom
	perfRoom *PerformanceRoom

	mux        *http.ServeMux
	httpServer *http.Server

	ctx    context.Context
	cancel context.CancelFunc

	startedAt time.Time
}

// New assembles a Server. The jobs room subscribes to the bus
// immediately so no transition is missed between construction and Start.
func New(
	cfg *config.Config,
	songs *song.Store,
	jobStore *jobs.Store,
	queueStore *queue.Store,
	lib *library.Library,
	sched *scheduler.Scheduler,
	lyricsFetcher *lyrics.Fetcher,
	bus *jobs.Bus,
	log *zap.SugaredLogger,
) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:       cfg,
		songs:     songs,
		jobStore:  jobStore,
		queue:     queueStore,
		lib:       lib,
		sched:     sched,
		lyrics:    lyricsFetcher,
		log:       log,
		mux:       http.NewServeMux(),
		ctx:       ctx,
		cancel:    cancel,
		startedAt: time.Now().UTC(),
	}

	s.jobsRoom = NewJobsRoom(jobStore, log)
	s.jobsRoom.AttachBus(bus)
	s.perfRoom = NewPerformanceRoom(log)
	s.perfRoom.Events().Subscribe(func(ev PlayerEvent) {
		log.Debugw("Performance event",
			"kind", ev.Kind,
			"is_playing", ev.State.IsPlaying,
			"current_time", ev.State.CurrentTime,
		)
	})

	s.setupRoutes()
	return s
}

// Handler returns the routed handler. Tests mount this on httptest.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start listens on the configured port and blocks until the listener
// fails or Shutdown runs.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.ServerPort())
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.log.Infow("HTTP server listening", "addr", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains the listener and closes every WebSocket session.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	s.jobsRoom.Close()
	s.perfRoom.Close()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// setupRoutes configures all HTTP handlers
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/ws/jobs", s.corsMiddleware(s.handleJobsWS))
	s.mux.HandleFunc("/ws/performance", s.corsMiddleware(s.handlePerformanceWS))
	// Socket-namespace aliases without the transport prefix
	s.mux.HandleFunc("/jobs", s.corsMiddleware(s.handleJobsWS))
	s.mux.HandleFunc("/performance", s.corsMiddleware(s.handlePerformanceWS))

	s.mux.HandleFunc("/api/songs", s.corsMiddleware(s.handleSongs))   // List/create songs (GET/POST)
	s.mux.HandleFunc("/api/songs/", s.corsMiddleware(s.handleSong))   // Song CRUD plus artifact downloads
	s.mux.HandleFunc("/api/youtube/download", s.corsMiddleware(s.handleYouTubeDownload))
	s.mux.HandleFunc("/api/jobs", s.corsMiddleware(s.handleJobs)) // List jobs (GET)
	s.mux.HandleFunc("/api/jobs/", s.corsMiddleware(s.handleJob)) // Get/cancel/dismiss
	s.mux.HandleFunc("/api/queue", s.corsMiddleware(s.handleQueue))
	s.mux.HandleFunc("/api/queue/", s.corsMiddleware(s.handleQueueItem))
	s.mux.HandleFunc("/api/queue/reorder", s.corsMiddleware(s.handleQueueReorder))
	s.mux.HandleFunc("/api/status", s.corsMiddleware(s.handleStatus))
}

// corsMiddleware adds CORS headers using the configured allowed origins.
// The same origin validation backs WebSocket upgrades.
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next(w, r)
	}
}
