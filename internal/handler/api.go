package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/DukeRupert/pulse/internal/backend"
	"github.com/DukeRupert/pulse/internal/domain"
)

// maxJSONBody bounds request bodies accepted by the JSON proxies.
const maxJSONBody = 64 << 10

// =============================================================================
// Handler Configuration
// =============================================================================

// SystemAPIHandler proxies the dashboard's system actions to the backend.
//
// Routes handled:
// - PATCH  /api/change_visibility -> ChangeVisibility
// - PATCH  /api/edit_system_name  -> EditSystemName
// - DELETE /api/delete_system     -> DeleteSystem
//
// Bodies are validated before anything reaches the backend. The backend's
// status code is relayed to the browser unchanged.
type SystemAPIHandler struct {
	backend *backend.Client
	logger  *slog.Logger
}

// NewSystemAPIHandler creates a new SystemAPIHandler.
func NewSystemAPIHandler(client *backend.Client, logger *slog.Logger) *SystemAPIHandler {
	return &SystemAPIHandler{
		backend: client,
		logger:  logger,
	}
}

type changeVisibilityRequest struct {
	ID         string `json:"id"`
	Visibility string `json:"visibility"`
}

type editSystemNameRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type deleteSystemRequest struct {
	ID string `json:"id"`
}

// =============================================================================
// PATCH /api/change_visibility
// =============================================================================

// ChangeVisibility switches a system between public and private.
func (h *SystemAPIHandler) ChangeVisibility(w http.ResponseWriter, r *http.Request) {
	const op = "handler.ChangeVisibility"

	var req changeVisibilityRequest
	if !h.decode(w, r, op, &req) {
		return
	}
	id, ok := h.parseID(w, r, op, req.ID)
	if !ok {
		return
	}

	params := domain.ChangeVisibilityParams{ID: id, Visibility: domain.Visibility(req.Visibility)}
	if err := params.Validate(); err != nil {
		ValidationErrorResponse(w, r, h.logger, err)
		return
	}

	reply, err := h.backend.Bind(w, r).ChangeVisibility(r.Context(), params)
	h.relay(w, r, reply, err, true)
}

// =============================================================================
// PATCH /api/edit_system_name
// =============================================================================

// EditSystemName renames a system.
func (h *SystemAPIHandler) EditSystemName(w http.ResponseWriter, r *http.Request) {
	const op = "handler.EditSystemName"

	var req editSystemNameRequest
	if !h.decode(w, r, op, &req) {
		return
	}
	id, ok := h.parseID(w, r, op, req.ID)
	if !ok {
		return
	}

	params := domain.EditSystemNameParams{ID: id, Name: req.Name}
	if err := params.Validate(); err != nil {
		ValidationErrorResponse(w, r, h.logger, err)
		return
	}

	reply, err := h.backend.Bind(w, r).EditSystemName(r.Context(), params)
	h.relay(w, r, reply, err, true)
}

// =============================================================================
// DELETE /api/delete_system
// =============================================================================

// DeleteSystem deletes a system. Only the backend's status is relayed.
func (h *SystemAPIHandler) DeleteSystem(w http.ResponseWriter, r *http.Request) {
	const op = "handler.DeleteSystem"

	var req deleteSystemRequest
	if !h.decode(w, r, op, &req) {
		return
	}
	id, ok := h.parseID(w, r, op, req.ID)
	if !ok {
		return
	}

	params := domain.DeleteSystemParams{ID: id}
	if err := params.Validate(); err != nil {
		ValidationErrorResponse(w, r, h.logger, err)
		return
	}

	reply, err := h.backend.Bind(w, r).DeleteSystem(r.Context(), params)
	h.relay(w, r, reply, err, false)
}

// =============================================================================
// Helpers
// =============================================================================

// decode reads a JSON body into v, writing 415 or 400 on failure.
func (h *SystemAPIHandler) decode(w http.ResponseWriter, r *http.Request, op string, v any) bool {
	if !isJSONBody(r) {
		UnsupportedMediaTypeResponse(w, r, h.logger)
		return false
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			ErrorResponse(w, r, h.logger, domain.Invalid(op, "Request body is too large"))
			return false
		}
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "Request body must be valid JSON"))
		return false
	}
	return true
}

// parseID converts the id field, writing a 400 field error on failure.
func (h *SystemAPIHandler) parseID(w http.ResponseWriter, r *http.Request, op, raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		ValidationErrorResponse(w, r, h.logger, domain.NewValidationError(op, "id", "A valid system id is required"))
		return uuid.Nil, false
	}
	return id, true
}

// relay writes the backend reply to the browser. Errors that never produced
// a backend response (unreachable backend) go through ErrorResponse.
func (h *SystemAPIHandler) relay(w http.ResponseWriter, r *http.Request, reply backend.Reply, err error, withBody bool) {
	if reply.StatusCode == 0 {
		if err == nil {
			err = domain.Errorf(domain.EINTERNAL, "handler.relay", "empty backend reply")
		}
		ErrorResponse(w, r, h.logger, err)
		return
	}

	if err != nil {
		h.logger.Info("backend rejected system action",
			"path", r.URL.Path,
			"status", reply.StatusCode,
		)
	}

	if !withBody || len(reply.Body) == 0 {
		w.WriteHeader(reply.StatusCode)
		return
	}

	if reply.ContentType != "" {
		w.Header().Set("Content-Type", reply.ContentType)
	}
	w.WriteHeader(reply.StatusCode)
	_, _ = w.Write(reply.Body)
}

// =============================================================================
// Route Registration
// =============================================================================

// RegisterRoutes registers the JSON proxy routes.
func (h *SystemAPIHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("PATCH /api/change_visibility", h.ChangeVisibility)
	mux.HandleFunc("PATCH /api/edit_system_name", h.EditSystemName)
	mux.HandleFunc("DELETE /api/delete_system", h.DeleteSystem)
}
