package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/DukeRupert/pulse/internal/backend"
	"github.com/DukeRupert/pulse/internal/domain"
	"github.com/DukeRupert/pulse/internal/templ/components/pagination"
	"github.com/DukeRupert/pulse/internal/templ/pages/systems"
)

const publicNotFoundMessage = "This system does not exist or is not public."

// PublicHandler serves the unauthenticated view of public systems.
//
// Routes handled:
// - GET /public/{id} -> Show
type PublicHandler struct {
	backend  *backend.Client
	renderer TemplateRenderer
	logger   *slog.Logger
	listSize int
}

// NewPublicHandler creates a new PublicHandler.
func NewPublicHandler(client *backend.Client, renderer TemplateRenderer, logger *slog.Logger, listSize int) *PublicHandler {
	return &PublicHandler{
		backend:  client,
		renderer: renderer,
		logger:   logger,
		listSize: listSize,
	}
}

// Show renders one public system. Anything that is not a UUID is a 404
// without a backend call; backend failures render the error page with the
// backend's status.
func (h *PublicHandler) Show(w http.ResponseWriter, r *http.Request) {
	raw := r.PathValue("id")
	id, err := uuid.Parse(raw)
	if err != nil {
		h.renderError(w, r, domain.NotFound("handler.PublicHandler.Show", publicNotFoundMessage))
		return
	}

	page := pagination.ParsePage(r.URL.Query().Get("page"))
	system, err := h.backend.Bind(w, r).GetPublic(r.Context(), id, h.listSize, page)
	if err != nil {
		h.logger.Info("public system unavailable", "system_id", id, "status", StatusFor(err))
		h.renderError(w, r, err)
		return
	}

	data := systems.PublicPageData{
		System:     toSystemDisplay(&system, time.UTC),
		Pagination: pagination.New("/public/"+id.String(), page, len(system.Instants), h.listSize),
	}
	h.renderer.Render(w, r, http.StatusOK, "public/system", data)
}

func (h *PublicHandler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	data := systems.ErrorPageData{
		Status:  status,
		Title:   http.StatusText(status),
		Message: domain.ErrorMessage(err),
	}
	if _, ok := backend.AsStatusError(err); ok && status == http.StatusNotFound {
		data.Message = publicNotFoundMessage
	}
	h.renderer.Render(w, r, status, "public/error", data)
}

// RegisterRoutes registers the public routes.
func (h *PublicHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /public/{id}", h.Show)
}
