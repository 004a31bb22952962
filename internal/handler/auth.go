// Package handler contains HTTP handlers for the Pulse frontend.
//
// This file implements the login and logout handlers. Sessions live in the
// backend; these handlers only relay its cookie through the backend client.
package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/DukeRupert/pulse/internal/auth"
	"github.com/DukeRupert/pulse/internal/backend"
	"github.com/DukeRupert/pulse/internal/csrf"
	"github.com/DukeRupert/pulse/internal/domain"
	"github.com/DukeRupert/pulse/internal/metrics"
	"github.com/DukeRupert/pulse/internal/session"
	authpages "github.com/DukeRupert/pulse/internal/templ/pages/auth"
	"github.com/DukeRupert/pulse/internal/templ/shared"
)

// =============================================================================
// Handler Configuration
// =============================================================================

// TemplateRenderer is the interface for rendering HTML pages.
// This interface allows for mocking in tests.
type TemplateRenderer interface {
	Render(w http.ResponseWriter, r *http.Request, status int, name string, data any)
}

// AuthHandler handles authentication-related HTTP requests.
//
// Routes handled:
// - GET  /login  -> ShowLogin
// - POST /login  -> Login
// - GET  /logout -> Logout
type AuthHandler struct {
	backend    *backend.Client
	renderer   TemplateRenderer
	logger     *slog.Logger
	isSecure   bool
	cookieName string
}

// NewAuthHandler creates a new AuthHandler with the required dependencies.
//
// Example usage in main.go:
//
//	authHandler := handler.NewAuthHandler(client, renderer, logger, cfg.IsSecure(), cfg.SessionCookieName)
func NewAuthHandler(
	client *backend.Client,
	renderer TemplateRenderer,
	logger *slog.Logger,
	isSecure bool,
	cookieName string,
) *AuthHandler {
	return &AuthHandler{
		backend:    client,
		renderer:   renderer,
		logger:     logger,
		isSecure:   isSecure,
		cookieName: cookieName,
	}
}

// =============================================================================
// GET /login - Show Login Form
// =============================================================================

// ShowLogin renders the login form.
//
// Signed-in users are sent to the dashboard instead. The flash depends on
// where the user came from:
// - ?logout=1  -> "You have been signed out."
// - ?changed=1 -> "Password changed. Please sign in again."
func (h *AuthHandler) ShowLogin(w http.ResponseWriter, r *http.Request) {
	if auth.GetSession(r.Context()).LoggedIn() {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	var flash *shared.Flash
	switch {
	case r.URL.Query().Get("logout") == "1":
		flash = shared.SuccessFlash("You have been signed out.")
	case r.URL.Query().Get("changed") == "1":
		flash = shared.SuccessFlash("Password changed. Please sign in again.")
	}

	h.renderLogin(w, r, http.StatusOK, authpages.FormData{}, nil, flash)
}

// =============================================================================
// POST /login - Process Login
// =============================================================================

// Login processes the login form submission.
//
// Form Fields:
// - email (required): trimmed and lower-cased, must be a valid address
// - password (required): at least 8 characters
//
// Success Flow:
// 1. POST {API_URL}/login with the credentials
// 2. The backend's Set-Cookie is mirrored to the response by the relay
// 3. Rotate the CSRF token and redirect to / with 303 See Other
//
// Error Flow (form re-rendered, email preserved, password cleared):
// - Validation failure -> 400 with field errors, nothing sent to the backend
// - Backend non-2xx    -> backend status with its message
// - No Set-Cookie      -> 500, session not established
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.logger.Warn("failed to parse login form", "error", err)
		h.renderLogin(w, r, http.StatusBadRequest, authpages.FormData{}, nil,
			shared.ErrorFlash("Invalid form submission. Please try again."))
		return
	}

	form := authpages.FormData{Email: r.PostFormValue("email")}

	creds, err := domain.NewCredentials(form.Email, r.PostFormValue("password"))
	if err != nil {
		metrics.LoginAttempts.WithLabelValues("invalid").Inc()
		h.renderLogin(w, r, http.StatusBadRequest, form, domain.FieldErrors(err), nil)
		return
	}
	form.Email = creds.Email

	api := h.backend.Bind(w, r)
	if err := api.Login(r.Context(), creds); err != nil {
		status := StatusFor(err)
		message := domain.ErrorMessage(err)

		switch {
		case errors.Is(err, backend.ErrNoSession):
			metrics.LoginAttempts.WithLabelValues("error").Inc()
			h.logger.Error("backend accepted login without a session cookie")
			message = "The server did not start a session. Please try again."
		case status >= 500:
			metrics.LoginAttempts.WithLabelValues("error").Inc()
			h.logger.Warn("login failed", "status", status, "error", err)
		default:
			metrics.LoginAttempts.WithLabelValues("rejected").Inc()
		}

		h.renderLogin(w, r, status, form, nil, shared.ErrorFlash(message))
		return
	}

	metrics.LoginAttempts.WithLabelValues("success").Inc()

	if _, err := csrf.RefreshToken(w, h.isSecure); err != nil {
		h.logger.Warn("failed to rotate csrf token", "error", err)
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// renderLogin renders the login page with the given status.
func (h *AuthHandler) renderLogin(
	w http.ResponseWriter,
	r *http.Request,
	status int,
	form authpages.FormData,
	errors map[string]string,
	flash *shared.Flash,
) {
	if errors == nil {
		errors = make(map[string]string)
	}

	data := authpages.LoginPageData{
		CSRFToken: csrf.Token(r.Context()),
		Form:      form,
		Errors:    errors,
		Flash:     flash,
	}

	h.renderer.Render(w, r, status, "auth/login", data)
}

// =============================================================================
// GET /logout - Process Logout
// =============================================================================

// Logout ends the backend session and clears the browser cookie.
//
// Notes:
// - This operation is idempotent - calling without a session is fine
// - Backend failures are logged, never shown; the cookie is cleared anyway
// - Always redirects to /login with 302 Found
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	api := h.backend.Bind(w, r)
	if err := api.Logout(r.Context()); err != nil {
		h.logger.Warn("backend logout failed", "error", err)
	}

	// Clear after the backend call so a relayed Set-Cookie cannot revive it
	session.Clear(w, h.cookieName, h.isSecure)

	http.Redirect(w, r, "/login?logout=1", http.StatusFound)
}

// =============================================================================
// Route Registration
// =============================================================================

// RegisterRoutes registers the auth routes. limitLogin wraps the login
// submission (rate limiting); pass nil to leave it unwrapped.
func (h *AuthHandler) RegisterRoutes(mux *http.ServeMux, limitLogin func(http.Handler) http.Handler) {
	var login http.Handler = http.HandlerFunc(h.Login)
	if limitLogin != nil {
		login = limitLogin(login)
	}

	mux.HandleFunc("GET /login", h.ShowLogin)
	mux.Handle("POST /login", login)
	mux.HandleFunc("GET /logout", h.Logout)
}
