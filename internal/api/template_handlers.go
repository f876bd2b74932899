// Package api provides HTTP handlers for welcome template management.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/BrightDesk/LeadPipe/internal/models"
)

func (s *Server) createTemplateHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.createTemplateHandler: processing create request", "method", r.Method, "path", r.URL.Path)

	var req models.WelcomeTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.createTemplateHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("Server.createTemplateHandler: validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	now := time.Now().UTC()
	tmpl := models.WelcomeTemplate{
		ID:             uuid.NewString(),
		Content:        strings.TrimSpace(req.Content),
		TargetIndustry: strings.ToLower(strings.TrimSpace(req.TargetIndustry)),
		IsActive:       active,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.st.SaveWelcomeTemplate(&tmpl); err != nil {
		writeDomainError(w, "Server.createTemplateHandler", err)
		return
	}

	slog.Info("Server.createTemplateHandler: template created", "templateID", tmpl.ID, "industry", tmpl.TargetIndustry)
	writeJSONResponse(w, http.StatusCreated, models.Success(tmpl))
}

func (s *Server) listTemplatesHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.listTemplatesHandler: processing list request", "method", r.Method, "path", r.URL.Path)

	templates, err := s.st.ListWelcomeTemplates()
	if err != nil {
		writeDomainError(w, "Server.listTemplatesHandler", err)
		return
	}
	slog.Debug("Server.listTemplatesHandler: templates fetched", "count", len(templates))
	writeJSONResponse(w, http.StatusOK, models.Success(templates))
}

func (s *Server) updateTemplateHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.updateTemplateHandler: processing update request", "method", r.Method, "path", r.URL.Path)

	templateID, ok := pathID(w, r, "templateID")
	if !ok {
		return
	}
	var req models.WelcomeTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.updateTemplateHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("Server.updateTemplateHandler: validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	tmpl, err := s.st.GetWelcomeTemplate(templateID)
	if err != nil {
		writeDomainError(w, "Server.updateTemplateHandler", err)
		return
	}
	if tmpl == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Template not found"))
		return
	}
	// Deactivating the default would leave no active default template.
	if tmpl.IsDefault && req.IsActive != nil && !*req.IsActive {
		slog.Warn("Server.updateTemplateHandler: attempted to deactivate default template", "templateID", templateID)
		writeJSONResponse(w, http.StatusConflict, models.Error("Cannot deactivate the default template"))
		return
	}

	tmpl.Content = strings.TrimSpace(req.Content)
	tmpl.TargetIndustry = strings.ToLower(strings.TrimSpace(req.TargetIndustry))
	if req.IsActive != nil {
		tmpl.IsActive = *req.IsActive
	}
	tmpl.UpdatedAt = time.Now().UTC()
	if err := s.st.SaveWelcomeTemplate(tmpl); err != nil {
		writeDomainError(w, "Server.updateTemplateHandler", err)
		return
	}

	slog.Info("Server.updateTemplateHandler: template updated", "templateID", templateID)
	writeJSONResponse(w, http.StatusOK, models.Success(tmpl))
}

func (s *Server) setDefaultTemplateHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.setDefaultTemplateHandler: processing default swap", "method", r.Method, "path", r.URL.Path)

	templateID, ok := pathID(w, r, "templateID")
	if !ok {
		return
	}
	if err := s.st.SetDefaultWelcomeTemplate(templateID); err != nil {
		writeDomainError(w, "Server.setDefaultTemplateHandler", err)
		return
	}

	slog.Info("Server.setDefaultTemplateHandler: default template changed", "templateID", templateID)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Default template updated", nil))
}
