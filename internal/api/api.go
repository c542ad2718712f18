// Package api provides the thin HTTP and WebSocket transport around the
// dialogue orchestrator. It carries no business logic: it frames
// {utterance_text, session_id} turns in and {prompt_text, response_type,
// choices, slot_snapshot} responses out.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/modubank/counselbot/internal/flow"
	"github.com/modubank/counselbot/internal/models"
)

// Server hosts the transport endpoints.
type Server struct {
	orchestrator *flow.Orchestrator
	addr         string
}

// NewServer creates a transport server.
func NewServer(orchestrator *flow.Orchestrator, addr string) *Server {
	return &Server{orchestrator: orchestrator, addr: addr}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /sessions", s.handleCreateSession)
	mux.HandleFunc("DELETE /sessions/{id}", s.handleEndSession)
	mux.HandleFunc("POST /sessions/{id}/messages", s.handleTurn)
	mux.HandleFunc("GET /sessions/{id}/snapshot", s.handleSnapshot)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	return mux
}

// Run starts serving and blocks.
func (s *Server) Run() error {
	slog.Info("API server listening", "addr", s.addr)
	return http.ListenAndServe(s.addr, s.Handler())
}

type sessionResponse struct {
	SessionID string               `json:"session_id"`
	Response  *models.TurnResponse `json:"response"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	session, greeting, err := s.orchestrator.StartSession(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{SessionID: session.SessionID, Response: greeting})
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	s.orchestrator.EndSession(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	var req models.TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed turn request")
		return
	}
	if req.UtteranceText == "" {
		writeError(w, http.StatusBadRequest, "utterance_text is required")
		return
	}

	resp, err := s.orchestrator.HandleTurn(r.Context(), sessionID, req.UtteranceText)
	if err != nil {
		if errors.Is(err, models.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "unknown or expired session, re-initialize")
			return
		}
		slog.Error("Turn handling failed", "sessionID", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "turn processing failed")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	snapshot, err := s.orchestrator.Snapshot(sessionID)
	if err != nil {
		if errors.Is(err, models.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "unknown or expired session")
			return
		}
		writeError(w, http.StatusConflict, "session has no active scenario")
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Response encoding failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
