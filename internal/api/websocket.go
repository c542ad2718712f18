package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/modubank/counselbot/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The UI collaborator is served from a different origin in development.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type wsInbound struct {
	UtteranceText string `json:"utterance_text"`
}

type wsOutbound struct {
	SessionID string               `json:"session_id,omitempty"`
	Response  *models.TurnResponse `json:"response,omitempty"`
	Error     string               `json:"error,omitempty"`
}

// handleWebSocket runs one session per connection. The single read loop
// gives the per-session FIFO ordering the core assumes: a turn is processed
// to completion before the next frame is read.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("WebSocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	session, greeting, err := s.orchestrator.StartSession(r.Context())
	if err != nil {
		_ = conn.WriteJSON(wsOutbound{Error: "failed to create session"})
		return
	}
	defer s.orchestrator.EndSession(session.SessionID)

	if err := conn.WriteJSON(wsOutbound{SessionID: session.SessionID, Response: greeting}); err != nil {
		return
	}

	for {
		var in wsInbound
		if err := conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("WebSocket closed unexpectedly", "sessionID", session.SessionID, "error", err)
			}
			return
		}
		if in.UtteranceText == "" {
			if err := conn.WriteJSON(wsOutbound{Error: "utterance_text is required"}); err != nil {
				return
			}
			continue
		}

		resp, err := s.orchestrator.HandleTurn(r.Context(), session.SessionID, in.UtteranceText)
		if err != nil {
			msg := "turn processing failed"
			if errors.Is(err, models.ErrSessionNotFound) {
				msg = "session expired, reconnect to continue"
			}
			if err := conn.WriteJSON(wsOutbound{Error: msg}); err != nil {
				return
			}
			continue
		}
		if err := conn.WriteJSON(wsOutbound{SessionID: session.SessionID, Response: resp}); err != nil {
			return
		}
	}
}
