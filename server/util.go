package server

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
)

// upgrader builds a WebSocket upgrader sharing the HTTP layer's origin
// validation.
func (s *Server) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  2048,
		WriteBufferSize: 2048,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			// Direct WebSocket clients send no origin header
			if origin == "" {
				return true
			}
			return s.originAllowed(origin)
		},
	}
}

// originAllowed validates an Origin header against the configured list.
// With no configuration only localhost origins pass.
func (s *Server) originAllowed(origin string) bool {
	allowed := s.cfg.Server.AllowedOrigins
	if len(allowed) == 0 {
		return isLocalhostOrigin(origin)
	}
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(a, origin) {
			return true
		}
	}
	return false
}

func isLocalhostOrigin(origin string) bool {
	for _, prefix := range []string{"http://localhost", "https://localhost", "http://127.0.0.1", "https://127.0.0.1"} {
		if strings.HasPrefix(origin, prefix) {
			return true
		}
	}
	return false
}

// shortID truncates an ID to 8 characters for logging
func shortID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}
