// Package api provides HTTP handlers for LeadPipe session endpoints.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/BrightDesk/LeadPipe/internal/models"
)

// pathID extracts and validates a UUID path parameter. It writes a 400
// response and returns false when the value is malformed.
func pathID(w http.ResponseWriter, r *http.Request, param string) (string, bool) {
	id := chi.URLParam(r, param)
	if _, err := uuid.Parse(id); err != nil {
		slog.Warn("Server.pathID: malformed id", "param", param, "value", id)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid "+param+": must be a UUID"))
		return "", false
	}
	return id, true
}

func (s *Server) createSessionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.createSessionHandler: processing create request", "method", r.Method, "path", r.URL.Path)

	var req models.CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.createSessionHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	session, err := s.manager.CreateSession(r.Context(), req)
	if err != nil {
		writeDomainError(w, "Server.createSessionHandler", err)
		return
	}

	slog.Info("Server.createSessionHandler: session created", "sessionID", session.ID, "visitorID", session.VisitorID)
	writeJSONResponse(w, http.StatusCreated, models.Success(session))
}

func (s *Server) turnHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.turnHandler: processing turn request", "method", r.Method, "path", r.URL.Path)

	sessionID, ok := pathID(w, r, "sessionID")
	if !ok {
		return
	}
	var req models.TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.turnHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	result, err := s.manager.ApplyTurn(r.Context(), sessionID, req)
	if err != nil {
		writeDomainError(w, "Server.turnHandler", err)
		return
	}

	slog.Debug("Server.turnHandler: turn applied", "sessionID", sessionID, "phase", result.Session.CurrentPhase)
	writeJSONResponse(w, http.StatusOK, models.Success(result))
}

func (s *Server) getSessionHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.getSessionHandler: processing get request", "method", r.Method, "path", r.URL.Path)

	sessionID, ok := pathID(w, r, "sessionID")
	if !ok {
		return
	}
	session, err := s.manager.GetSession(r.Context(), sessionID)
	if err != nil {
		writeDomainError(w, "Server.getSessionHandler", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(session))
}

func (s *Server) listSessionsHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.listSessionsHandler: processing list request", "method", r.Method, "path", r.URL.Path)

	sessions, err := s.manager.ListSessions(r.Context())
	if err != nil {
		writeDomainError(w, "Server.listSessionsHandler", err)
		return
	}
	slog.Debug("Server.listSessionsHandler: sessions fetched", "count", len(sessions))
	writeJSONResponse(w, http.StatusOK, models.Success(sessions))
}

func (s *Server) resumeHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.resumeHandler: processing resume request", "method", r.Method, "path", r.URL.Path)

	sessionID, ok := pathID(w, r, "sessionID")
	if !ok {
		return
	}
	s.resumeSession(w, r, sessionID)
}

// resumeByBodyHandler handles POST /sessions/resume with the session id in
// the request body.
func (s *Server) resumeByBodyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.resumeByBodyHandler: processing resume request", "method", r.Method, "path", r.URL.Path)

	var req models.ResumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.resumeByBodyHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if _, err := uuid.Parse(req.SessionID); err != nil {
		slog.Warn("Server.resumeByBodyHandler: malformed session id", "value", req.SessionID)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid session_id: must be a UUID"))
		return
	}
	s.resumeSession(w, r, req.SessionID)
}

func (s *Server) resumeSession(w http.ResponseWriter, r *http.Request, sessionID string) {
	session, err := s.manager.Resume(r.Context(), sessionID)
	if err != nil {
		writeDomainError(w, "Server.resumeSession", err)
		return
	}
	slog.Info("Server.resumeSession: session resumed", "sessionID", sessionID, "phase", session.CurrentPhase)
	writeJSONResponse(w, http.StatusOK, models.Success(session))
}

func (s *Server) recommendationsHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.recommendationsHandler: processing recommendations request", "method", r.Method, "path", r.URL.Path)

	sessionID, ok := pathID(w, r, "sessionID")
	if !ok {
		return
	}
	recs, err := s.manager.GetRecommendations(r.Context(), sessionID)
	if err != nil {
		writeDomainError(w, "Server.recommendationsHandler", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(recs))
}
