package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mixelka/massmailer/internal/database"
	"github.com/mixelka/massmailer/pkg/models"
)

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	tpls, err := s.db.ListTemplates(r.Context())
	if err != nil {
		s.logger.Error("failed to list templates", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to load templates")
		return
	}
	s.respondJSON(w, http.StatusOK, tpls)
}

func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name    string `json:"name"`
		Subject string `json:"subject"`
		Body    string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if body.Name == "" || body.Subject == "" || body.Body == "" {
		s.respondError(w, http.StatusBadRequest, "name, subject and body are required")
		return
	}

	tpl := &models.Template{Name: body.Name, Subject: body.Subject, Body: body.Body}
	err := s.db.CreateTemplate(r.Context(), tpl)
	if errors.Is(err, database.ErrAlreadyExists) {
		s.respondError(w, http.StatusConflict, "template name already exists")
		return
	}
	if err != nil {
		s.logger.Error("failed to create template", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to create template")
		return
	}
	s.respondJSON(w, http.StatusOK, tpl)
}

func (s *Server) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid template id")
		return
	}

	var body struct {
		Subject string `json:"subject"`
		Body    string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if body.Subject == "" && body.Body == "" {
		s.respondError(w, http.StatusBadRequest, "at least one of subject or body must be provided")
		return
	}

	err = s.db.UpdateTemplate(r.Context(), id, body.Subject, body.Body)
	if errors.Is(err, database.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "template not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to update template", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to update template")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"message": "template updated"})
}

func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid template id")
		return
	}

	err = s.db.DeleteTemplate(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "template not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to delete template", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to delete template")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"message": "template deleted"})
}
