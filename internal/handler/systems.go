package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/DukeRupert/pulse/internal/auth"
	"github.com/DukeRupert/pulse/internal/backend"
	"github.com/DukeRupert/pulse/internal/csrf"
	"github.com/DukeRupert/pulse/internal/domain"
	"github.com/DukeRupert/pulse/internal/locale"
	"github.com/DukeRupert/pulse/internal/templ/components/pagination"
	"github.com/DukeRupert/pulse/internal/templ/pages/systems"
	"github.com/DukeRupert/pulse/internal/templ/shared"
)

// =============================================================================
// Handler Configuration
// =============================================================================

// SystemsHandler serves the systems dashboard.
//
// Routes handled:
// - GET  /        -> Dashboard
// - POST /systems -> AddSystem
type SystemsHandler struct {
	backend  *backend.Client
	renderer TemplateRenderer
	logger   *slog.Logger
	listSize int
}

// NewSystemsHandler creates a new SystemsHandler.
func NewSystemsHandler(client *backend.Client, renderer TemplateRenderer, logger *slog.Logger, listSize int) *SystemsHandler {
	return &SystemsHandler{
		backend:  client,
		renderer: renderer,
		logger:   logger,
		listSize: listSize,
	}
}

// =============================================================================
// GET / - Dashboard
// =============================================================================

// Dashboard lists the user's systems with their recent instants.
//
// Query Parameters:
// - page (optional): zero-based page, default 0
//
// A backend failure still renders the page, with an error flash and the
// backend's status code.
func (h *SystemsHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	api := h.backend.Bind(w, r)
	page := pagination.ParsePage(r.URL.Query().Get("page"))

	data := h.pageData(r)

	list, err := api.ListSystems(r.Context(), h.listSize, page)
	if err != nil {
		h.logger.Warn("failed to list systems", "page", page, "error", err)
		data.Flash = shared.ErrorFlash(domain.ErrorMessage(err))
		h.renderer.Render(w, r, StatusFor(err), "dashboard", data)
		return
	}

	loc := h.userLocation(r.Context(), api)
	data.Systems = toSystemDisplays(list, loc)
	data.Pagination = pagination.New("/", page, maxInstants(list), h.listSize)

	if r.URL.Query().Get("added") == "1" {
		data.Flash = shared.SuccessFlash("System added.")
	}

	h.renderer.Render(w, r, http.StatusOK, "dashboard", data)
}

// =============================================================================
// POST /systems - Add System
// =============================================================================

// AddSystem validates the add-system form and forwards it to the backend.
//
// Form Fields:
// - name (required): 1-100 characters after trimming
// - frequency (optional): minutes between checks, default 30
// - starts_at (required): RFC 3339 or datetime-local in the user's timezone
// - down_after (optional): minutes, default = frequency
// - visibility (optional): public or private, default private
//
// Invalid input re-renders the dashboard with 400; a backend rejection
// re-renders with the backend's status and message. Success redirects to /
// with 303 See Other.
func (h *SystemsHandler) AddSystem(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderAddError(w, r, nil, http.StatusBadRequest, systems.AddSystemFormData{}, nil,
			shared.ErrorFlash("Invalid form submission. Please try again."))
		return
	}

	form := systems.AddSystemFormData{
		Name:       r.PostFormValue("name"),
		Frequency:  r.PostFormValue("frequency"),
		StartsAt:   r.PostFormValue("starts_at"),
		DownAfter:  r.PostFormValue("down_after"),
		Visibility: r.PostFormValue("visibility"),
	}

	api := h.backend.Bind(w, r)
	loc := h.userLocation(r.Context(), api)

	params, err := domain.AddSystemForm(form).Validate(loc)
	if err != nil {
		h.renderAddError(w, r, api, http.StatusBadRequest, form, domain.FieldErrors(err), nil)
		return
	}

	if err := api.AddSystem(r.Context(), params); err != nil {
		h.logger.Info("backend rejected new system", "status", StatusFor(err), "error", err)
		h.renderAddError(w, r, api, StatusFor(err), form, nil, shared.ErrorFlash(domain.ErrorMessage(err)))
		return
	}

	h.logger.Info("system added", "frequency", params.Frequency, "visibility", params.Visibility)
	http.Redirect(w, r, "/?added=1", http.StatusSeeOther)
}

// renderAddError re-renders the first dashboard page with the add form open.
func (h *SystemsHandler) renderAddError(
	w http.ResponseWriter,
	r *http.Request,
	api *backend.API,
	status int,
	form systems.AddSystemFormData,
	errors map[string]string,
	flash *shared.Flash,
) {
	if api == nil {
		api = h.backend.Bind(w, r)
	}
	if errors == nil {
		errors = make(map[string]string)
	}

	data := h.pageData(r)
	data.Form = form
	data.Errors = errors
	data.FormOpen = true
	data.Flash = flash

	// The list is decoration here; a failure must not hide the form error
	if list, err := api.ListSystems(r.Context(), h.listSize, 0); err == nil {
		data.Systems = toSystemDisplays(list, h.userLocation(r.Context(), api))
		data.Pagination = pagination.New("/", 0, maxInstants(list), h.listSize)
	}

	h.renderer.Render(w, r, status, "dashboard", data)
}

func (h *SystemsHandler) pageData(r *http.Request) systems.DashboardPageData {
	return systems.DashboardPageData{
		CurrentPath: "/",
		CSRFToken:   csrf.Token(r.Context()),
		Email:       auth.GetSession(r.Context()).Email(r.Context()),
		Errors:      make(map[string]string),
		Form:        systems.AddSystemFormData{Frequency: fmt.Sprint(domain.DefaultFrequency)},
	}
}

// userLocation returns the user's configured timezone, UTC if unknown.
func (h *SystemsHandler) userLocation(ctx context.Context, api *backend.API) *time.Location {
	settings, err := api.CurrentSettings(ctx)
	if err != nil {
		h.logger.Debug("settings unavailable, using UTC", "error", err)
		return time.UTC
	}
	return locale.Location(settings.Timezone)
}

// =============================================================================
// View Conversion
// =============================================================================

const instantTimeLayout = "Jan 2 15:04 MST"

// maxInstants is the longest instant history in list. Pages go back in
// time, so a full history on any system means an older page exists.
func maxInstants(list []domain.System) int {
	n := 0
	for i := range list {
		n = max(n, len(list[i].Instants))
	}
	return n
}

func toSystemDisplays(list []domain.System, loc *time.Location) []systems.SystemDisplay {
	out := make([]systems.SystemDisplay, len(list))
	for i := range list {
		out[i] = toSystemDisplay(&list[i], loc)
	}
	return out
}

func toSystemDisplay(s *domain.System, loc *time.Location) systems.SystemDisplay {
	d := systems.SystemDisplay{
		ID:         s.ID.String(),
		Name:       s.Name,
		Frequency:  s.FrequencyLabel(),
		Visibility: string(s.Visibility),
		IsPublic:   s.Visibility.IsPublic(),
		LastStatus: string(s.LastStatus()),
		Instants:   make([]systems.InstantDisplay, len(s.Instants)),
	}
	if !s.StartsAt.IsZero() {
		d.StartsAt = s.StartsAt.In(loc).Format(instantTimeLayout)
	}

	tracked := false
	for i, in := range s.Instants {
		at := in.ExpectedTimestamp
		if in.Timestamp != nil {
			at = *in.Timestamp
		}
		d.Instants[i] = systems.InstantDisplay{
			Status: string(in.Status),
			Title:  at.In(loc).Format(instantTimeLayout) + " · " + string(in.Status),
		}
		if in.Status != domain.StatusUntracked {
			tracked = true
		}
	}
	if tracked {
		d.Uptime = fmt.Sprintf("%.1f%%", s.Uptime())
	}
	return d
}

// =============================================================================
// Route Registration
// =============================================================================

// RegisterRoutes registers the dashboard routes. The route guard runs
// in front of the mux, so no per-route wrapping is needed.
func (h *SystemsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.Dashboard)
	mux.HandleFunc("POST /systems", h.AddSystem)
}
