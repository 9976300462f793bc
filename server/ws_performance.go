package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/openkaraoke/studio/events"
)

// PerformanceState is the single authoritative player state shared by
// every session in the performance room.
type PerformanceState struct {
	IsPlaying          bool    `json:"isPlaying"`
	CurrentTime        float64 `json:"currentTime"`
	Duration           float64 `json:"duration"`
	VocalVolume        float64 `json:"vocalVolume"`
	InstrumentalVolume float64 `json:"instrumentalVolume"`
	LyricsSize         string  `json:"lyricsSize"`
	LyricsOffset       float64 `json:"lyricsOffset"`
}

// lyricsSizes are the accepted lyrics display size labels.
var lyricsSizes = map[string]bool{
	"small":  true,
	"medium": true,
	"large":  true,
}

// defaultPerformanceState is the state before anyone touches a control.
func defaultPerformanceState() PerformanceState {
	return PerformanceState{
		VocalVolume:        0.0,
		InstrumentalVolume: 1.0,
		LyricsSize:         "medium",
	}
}

// performanceMessage is the inbound frame shape for the performance
// room. Fields are pointers where absence matters. Value stays raw
// because its type depends on the control: volumes and offset are
// numeric, lyrics size is a label.
type performanceMessage struct {
	Type    string          `json:"type"`
	Control string          `json:"control,omitempty"`
	Value   json.RawMessage `json:"value,omitempty"`

	IsPlaying   *bool    `json:"isPlaying,omitempty"`
	CurrentTime *float64 `json:"currentTime,omitempty"`
	Duration    *float64 `json:"duration,omitempty"`
}

// controlUpdate is the broadcast sent when a control changes. The
// control name goes out exactly as the sender spelled it, so peers on
// either naming convention recognize their own controls.
type controlUpdate struct {
	Type    string      `json:"type"`
	Control string      `json:"control"`
	Value   interface{} `json:"value"`
}

// PerformanceRoom holds the shared state and its sessions. All state
// mutation happens under the room mutex, so writes are serialized no
// matter which session's read pump they arrive on.
type PerformanceRoom struct {
	log *zap.SugaredLogger
	bus *PlayerBus

	mu      sync.Mutex
	state   PerformanceState
	clients map[*wsClient]bool
}

// NewPerformanceRoom creates the room with default state.
func NewPerformanceRoom(log *zap.SugaredLogger) *PerformanceRoom {
	return &PerformanceRoom{
		log:     log,
		bus:     events.NewBus[PlayerEvent](log),
		state:   defaultPerformanceState(),
		clients: make(map[*wsClient]bool),
	}
}

// Events returns the room's player event bus.
func (room *PerformanceRoom) Events() *PlayerBus {
	return room.bus
}

// ClientCount returns the number of connected sessions.
func (room *PerformanceRoom) ClientCount() int {
	room.mu.Lock()
	defer room.mu.Unlock()
	return len(room.clients)
}

// State returns a copy of the current state.
func (room *PerformanceRoom) State() PerformanceState {
	room.mu.Lock()
	defer room.mu.Unlock()
	return room.state
}

// Close closes every session.
func (room *PerformanceRoom) Close() {
	room.mu.Lock()
	defer room.mu.Unlock()
	for c := range room.clients {
		c.close()
	}
	room.clients = make(map[*wsClient]bool)
}

// broadcastLocked sends msg to every session, optionally excluding one.
// Callers hold room.mu.
func (room *PerformanceRoom) broadcastLocked(msg interface{}, exclude *wsClient) {
	for c := range room.clients {
		if c == exclude {
			continue
		}
		c.enqueue(msg)
	}
}

// applyControl validates a control name and value and mutates the
// state. Both camelCase and snake_case control names are accepted.
// Unknown controls and mistyped values are ignored with a warning.
// Returns the value as applied.
func (room *PerformanceRoom) applyControl(control string, raw json.RawMessage) (interface{}, bool) {
	switch control {
	case "vocalVolume", "vocal_volume":
		v, ok := room.controlFloat(control, raw)
		if !ok {
			return nil, false
		}
		room.state.VocalVolume = clamp01(v)
		return room.state.VocalVolume, true
	case "instrumentalVolume", "instrumental_volume":
		v, ok := room.controlFloat(control, raw)
		if !ok {
			return nil, false
		}
		room.state.InstrumentalVolume = clamp01(v)
		return room.state.InstrumentalVolume, true
	case "lyricsSize", "lyrics_size":
		var label string
		if err := json.Unmarshal(raw, &label); err != nil || !lyricsSizes[label] {
			room.log.Warnw("Unknown lyrics size ignored", "value", string(raw))
			return nil, false
		}
		room.state.LyricsSize = label
		return label, true
	case "lyricsOffset", "lyrics_offset":
		v, ok := room.controlFloat(control, raw)
		if !ok {
			return nil, false
		}
		room.state.LyricsOffset = v
		return v, true
	default:
		room.log.Warnw("Unknown performance control ignored", "control", control)
		return nil, false
	}
}

func (room *PerformanceRoom) controlFloat(control string, raw json.RawMessage) (float64, bool) {
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		room.log.Warnw("Non-numeric control value ignored", "control", control)
		return 0, false
	}
	return v, true
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// handlePerformanceWS upgrades the connection and joins the performance
// room. The current state goes out immediately on join.
func (s *Server) handlePerformanceWS(w http.ResponseWriter, r *http.Request) {
	upgrader := s.upgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Errorw("Performance WebSocket upgrade failed", "error", err)
		return
	}

	client := newWSClient(conn, s.log)
	room := s.perfRoom

	room.mu.Lock()
	client.enqueue(wsMessage{Type: "performance_state", Data: room.state})
	room.clients[client] = true
	room.mu.Unlock()
	s.log.Debugw("Performance room join", "client_id", shortID(client.id))

	go client.writePump()
	go s.performanceReadPump(client)
}

func (s *Server) performanceReadPump(client *wsClient) {
	room := s.perfRoom
	defer func() {
		room.mu.Lock()
		delete(room.clients, client)
		room.mu.Unlock()
		client.close()
		client.conn.Close()
		s.log.Debugw("Performance room leave", "client_id", shortID(client.id))
	}()

	client.conn.SetReadLimit(maxMessageSize)
	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := client.conn.ReadMessage()
		if err != nil {
			if !isExpectedClose(err) {
				s.log.Warnw("Performance WebSocket read error",
					"client_id", shortID(client.id), "error", err)
			}
			return
		}

		var msg performanceMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.log.Warnw("Unparseable performance message",
				"client_id", shortID(client.id), "error", err)
			continue
		}
		room.route(client, &msg)
	}
}

// route dispatches one inbound frame. Everything runs under the room
// mutex to keep state writes serialized.
func (room *PerformanceRoom) route(sender *wsClient, msg *performanceMessage) {
	room.mu.Lock()
	defer room.mu.Unlock()

	switch msg.Type {
	case "join_performance":
		sender.enqueue(wsMessage{Type: "performance_state", Data: room.state})

	case "leave_performance":
		// The read pump's defer handles the actual removal when the
		// client closes; nothing to mutate here

	case "update_performance_control":
		if len(msg.Value) == 0 {
			room.log.Warnw("Control update without value", "control", msg.Control)
			return
		}
		applied, ok := room.applyControl(msg.Control, msg.Value)
		if !ok {
			return
		}
		// Everyone except the sender: the sender already applied it
		// locally
		room.broadcastLocked(controlUpdate{
			Type:    "control_updated",
			Control: msg.Control,
			Value:   applied,
		}, sender)
		room.bus.Publish(PlayerEvent{
			Kind:    PlayerEventControlUpdated,
			State:   room.state,
			Control: msg.Control,
			Value:   applied,
		})

	case "playback_play", "playback_pause":
		room.state.IsPlaying = msg.Type == "playback_play"
		// The explicit command reaches every session, sender included,
		// so local media elements react uniformly
		room.broadcastLocked(wsMessage{Type: msg.Type}, nil)
		room.broadcastLocked(wsMessage{Type: "performance_state", Data: room.state}, nil)
		kind := PlayerEventPause
		if room.state.IsPlaying {
			kind = PlayerEventPlay
		}
		room.bus.Publish(PlayerEvent{Kind: kind, State: room.state})

	case "update_player_state":
		// Sync pulse from the playing client: patch silently, no
		// rebroadcast
		if msg.IsPlaying != nil {
			room.state.IsPlaying = *msg.IsPlaying
		}
		if msg.CurrentTime != nil {
			room.state.CurrentTime = *msg.CurrentTime
		}
		if msg.Duration != nil {
			room.state.Duration = *msg.Duration
		}
		room.bus.Publish(PlayerEvent{Kind: PlayerEventState, State: room.state})

	case "reset_player_state":
		room.state.CurrentTime = 0
		room.state.IsPlaying = false
		room.broadcastLocked(wsMessage{Type: "reset_player_state", Data: room.state}, nil)
		room.bus.Publish(PlayerEvent{Kind: PlayerEventReset, State: room.state})

	default:
		room.log.Warnw("Unknown performance message type", "type", msg.Type)
	}
}
