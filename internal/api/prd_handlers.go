// Package api provides HTTP handlers for PRD document endpoints.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/BrightDesk/LeadPipe/internal/models"
	"github.com/BrightDesk/LeadPipe/internal/prd"
)

func (s *Server) generatePRDHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.generatePRDHandler: processing generate request", "method", r.Method, "path", r.URL.Path)

	var req models.GeneratePRDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.generatePRDHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if req.SessionID == "" {
		slog.Warn("Server.generatePRDHandler: missing session_id")
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing required field: session_id"))
		return
	}
	if _, err := uuid.Parse(req.SessionID); err != nil {
		slog.Warn("Server.generatePRDHandler: malformed session id", "value", req.SessionID)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid session_id: must be a UUID"))
		return
	}

	doc, err := s.generator.Generate(r.Context(), req.SessionID)
	if err != nil {
		writeDomainError(w, "Server.generatePRDHandler", err)
		return
	}

	slog.Info("Server.generatePRDHandler: document generated", "prdID", doc.ID, "sessionID", doc.SessionID, "version", doc.Version)
	writeJSONResponse(w, http.StatusCreated, models.Success(doc))
}

func (s *Server) regeneratePRDHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.regeneratePRDHandler: processing regenerate request", "method", r.Method, "path", r.URL.Path)

	prdID, ok := pathID(w, r, "prdID")
	if !ok {
		return
	}
	// Feedback is optional; an empty body means regenerate as-is.
	var req models.RegeneratePRDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		slog.Warn("Server.regeneratePRDHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("Server.regeneratePRDHandler: validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	doc, err := s.generator.Regenerate(r.Context(), prdID, req.Feedback)
	if err != nil {
		writeDomainError(w, "Server.regeneratePRDHandler", err)
		return
	}

	slog.Info("Server.regeneratePRDHandler: new version generated", "prdID", doc.ID, "sessionID", doc.SessionID, "version", doc.Version)
	writeJSONResponse(w, http.StatusCreated, models.Success(doc))
}

func (s *Server) previewPRDHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.previewPRDHandler: processing preview request", "method", r.Method, "path", r.URL.Path)

	prdID, ok := pathID(w, r, "prdID")
	if !ok {
		return
	}
	preview, err := s.generator.Preview(prdID)
	if err != nil {
		writeDomainError(w, "Server.previewPRDHandler", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(preview))
}

// downloadPRDHandler serves the raw markdown body rather than the JSON
// envelope so the browser saves it as a file.
func (s *Server) downloadPRDHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.downloadPRDHandler: processing download request", "method", r.Method, "path", r.URL.Path)

	prdID, ok := pathID(w, r, "prdID")
	if !ok {
		return
	}
	doc, err := s.generator.Document(prdID)
	if err != nil {
		writeDomainError(w, "Server.downloadPRDHandler", err)
		return
	}

	filename := prd.Filename(doc)
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, writeErr := w.Write([]byte(doc.ContentMarkdown)); writeErr != nil {
		slog.Error("Server.downloadPRDHandler: failed to write document", "error", writeErr, "prdID", prdID)
	}
	slog.Info("Server.downloadPRDHandler: document served", "prdID", prdID, "filename", filename)
}

func (s *Server) sessionPRDLineageHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.sessionPRDLineageHandler: processing lineage request", "method", r.Method, "path", r.URL.Path)

	sessionID, ok := pathID(w, r, "sessionID")
	if !ok {
		return
	}
	lineage, err := s.generator.Lineage(sessionID)
	if err != nil {
		writeDomainError(w, "Server.sessionPRDLineageHandler", err)
		return
	}
	slog.Debug("Server.sessionPRDLineageHandler: lineage fetched", "sessionID", sessionID, "versions", len(lineage))
	writeJSONResponse(w, http.StatusOK, models.Success(lineage))
}
