package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// upgrader allows any origin; this endpoint carries no authority of
// its own, it only forwards lifecycle events already visible via
// polling GET /executions/:id.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const pingInterval = 30 * time.Second

// handleStream upgrades to a websocket and forwards lifecycle events
// recorded against sessionID's most recent execution. It is a UX
// convenience layered over the ephemeral event log, not an
// authoritative channel: a client that never connects, or disconnects
// mid-run, loses nothing it couldn't also get by polling.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	session, err := s.store.Session(r.Context(), sessionID)
	if err != nil {
		writeError(w, apiErrorf(http.StatusNotFound, "session "+sessionID+" not found"))
		return
	}

	executions, err := s.store.ExecutionsBySession(r.Context(), session.ID, 1)
	if err != nil || len(executions) == 0 {
		writeError(w, apiErrorf(http.StatusNotFound, "session "+sessionID+" has no executions yet"))
		return
	}
	executionID := executions[0].ID

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("httpapi: websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sub := s.events.Subscribe(r.Context(), executionID)
	defer sub.Close()

	ch := sub.Channel()
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
