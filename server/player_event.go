package server

import "github.com/openkaraoke/studio/events"

// PlayerEventKind classifies performance room events on the bus.
type PlayerEventKind string

const (
	PlayerEventState          PlayerEventKind = "state"
	PlayerEventPlay           PlayerEventKind = "play"
	PlayerEventPause          PlayerEventKind = "pause"
	PlayerEventReset          PlayerEventKind = "reset"
	PlayerEventControlUpdated PlayerEventKind = "control_updated"
)

// PlayerEvent is published on the performance room's bus for every state
// mutation. State is a snapshot taken after the mutation. Control and
// Value are set only for control_updated.
type PlayerEvent struct {
	Kind    PlayerEventKind
	State   PerformanceState
	Control string
	Value   interface{}
}

// PlayerBus fans performance events out to in-process subscribers.
// Handlers run on the mutating session's read pump while the room lock
// is held, so they must not call back into the room.
type PlayerBus = events.Bus[PlayerEvent]
