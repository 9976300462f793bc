package server

import (
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/openkaraoke/studio/jobs"
)

// JobsRoom fans job-store events out to subscribed WebSocket sessions.
// Event handlers run on the publisher's goroutine, so they only enqueue
// frames and never block on client I/O.
type JobsRoom struct {
	store *jobs.Store
	log   *zap.SugaredLogger

	mu          sync.Mutex
	clients     map[*wsClient]bool
	unsubscribe func()
}

// NewJobsRoom creates the room.
func NewJobsRoom(store *jobs.Store, log *zap.SugaredLogger) *JobsRoom {
	return &JobsRoom{
		store:   store,
		log:     log,
		clients: make(map[*wsClient]bool),
	}
}

// AttachBus subscribes the room to job events.
func (room *JobsRoom) AttachBus(bus *jobs.Bus) {
	room.unsubscribe = bus.Subscribe(room.onJobEvent)
}

// ClientCount returns the number of connected sessions.
func (room *JobsRoom) ClientCount() int {
	room.mu.Lock()
	defer room.mu.Unlock()
	return len(room.clients)
}

// Close detaches from the bus and closes every session.
func (room *JobsRoom) Close() {
	if room.unsubscribe != nil {
		room.unsubscribe()
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	for c := range room.clients {
		c.close()
	}
	room.clients = make(map[*wsClient]bool)
}

// eventName maps a job event to its room event type.
func eventName(ev jobs.JobEvent) string {
	if ev.WasCreated {
		return "job_created"
	}
	switch ev.Job.Status {
	case jobs.StatusCompleted:
		return "job_completed"
	case jobs.StatusFailed:
		return "job_failed"
	case jobs.StatusCancelled:
		return "job_cancelled"
	default:
		return "job_updated"
	}
}

// onJobEvent broadcasts one event to every session. A full queue on one
// session never blocks the others.
func (room *JobsRoom) onJobEvent(ev jobs.JobEvent) {
	msg := wsMessage{Type: eventName(ev), Data: ev.Job}

	room.mu.Lock()
	defer room.mu.Unlock()
	for c := range room.clients {
		c.enqueue(msg)
	}
}

// handleJobsWS upgrades the connection and joins the jobs room. The
// snapshot goes out first so the client starts from a consistent list.
func (s *Server) handleJobsWS(w http.ResponseWriter, r *http.Request) {
	upgrader := s.upgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Errorw("Jobs WebSocket upgrade failed", "error", err)
		return
	}

	client := newWSClient(conn, s.log)
	room := s.jobsRoom

	// Snapshot and registration happen under the room lock so no event
	// lands between them: the client sees the full list, then live
	// events, never a gap
	room.mu.Lock()
	current, err := room.store.List(jobs.Filter{})
	if err != nil {
		room.mu.Unlock()
		s.log.Errorw("Jobs snapshot failed", "error", err)
		conn.Close()
		return
	}
	if current == nil {
		current = []*jobs.Job{}
	}
	client.enqueue(wsMessage{Type: "jobs_list", Data: current})
	room.clients[client] = true
	room.mu.Unlock()
	s.log.Debugw("Jobs room join", "client_id", shortID(client.id))

	go client.writePump()
	go s.jobsReadPump(client)
}

// jobsReadPump drains the connection. The jobs room is server-push only;
// inbound frames just keep the read deadline fresh.
func (s *Server) jobsReadPump(client *wsClient) {
	defer func() {
		s.jobsRoom.mu.Lock()
		delete(s.jobsRoom.clients, client)
		s.jobsRoom.mu.Unlock()
		client.close()
		client.conn.Close()
		s.log.Debugw("Jobs room leave", "client_id", shortID(client.id))
	}()

	client.conn.SetReadLimit(maxMessageSize)
	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			if !isExpectedClose(err) {
				s.log.Warnw("Jobs WebSocket read error",
					"client_id", shortID(client.id), "error", err)
			}
			return
		}
	}
}
