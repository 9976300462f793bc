package server

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WebSocket timeout constants following Gorilla best practices
const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = 54 * time.Second

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024

	// Outbound queue per session. A slow client that falls this far
	// behind starts dropping frames rather than blocking the room.
	sendQueueSize = 256
)

// wsMessage is the envelope for every frame in both rooms.
type wsMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// wsClient is one WebSocket session. All outbound frames go through the
// buffered send channel; the room never writes to the connection
// directly.
type wsClient struct {
	id        string
	conn      *websocket.Conn
	send      chan interface{}
	closeOnce sync.Once
	log       *zap.SugaredLogger
}

func newWSClient(conn *websocket.Conn, log *zap.SugaredLogger) *wsClient {
	return &wsClient{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan interface{}, sendQueueSize),
		log:  log,
	}
}

// enqueue queues one frame without blocking. Frames to a stalled session
// are dropped so one slow client cannot hold up the room.
func (c *wsClient) enqueue(msg interface{}) {
	select {
	case c.send <- msg:
	default:
		c.log.Warnw("Client send queue full, dropping frame", "client_id", shortID(c.id))
	}
}

// writePump writes queued frames and keeps the connection alive with
// pings.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.log.Debugw("WebSocket write error",
					"client_id", shortID(c.id), "error", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// close shuts the send channel exactly once.
func (c *wsClient) close() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// isExpectedClose reports whether a read error is a normal disconnect.
func isExpectedClose(err error) bool {
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseNoStatusReceived,
	)
}
