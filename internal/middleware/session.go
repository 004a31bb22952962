// Package middleware contains HTTP middleware for the Pulse frontend.
//
// Middleware functions follow the standard Go pattern of wrapping http.Handler.
// They are designed to be composed using a middleware stack approach.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/DukeRupert/pulse/internal/auth"
	"github.com/DukeRupert/pulse/internal/backend"
	"github.com/DukeRupert/pulse/internal/domain"
	"github.com/DukeRupert/pulse/internal/handler"
	"github.com/DukeRupert/pulse/internal/metrics"
)

// =============================================================================
// Route Table
// =============================================================================

const (
	// LoginPath is where unauthenticated page requests are sent.
	LoginPath = "/login"
)

// publicPrefixes are reachable without a session.
var publicPrefixes = []string{
	"/public/",
	"/api/public/",
	"/static/",
}

// statelessPrefixes never need the login status, so no backend call is made.
var statelessPrefixes = []string{
	"/static/",
	"/api/public/",
}

// MetricsPath has its own basic auth and is matched exactly.
const MetricsPath = "/metrics"

// isStateless reports whether path skips the session lookup and CSRF.
func isStateless(path string) bool {
	return path == MetricsPath || hasAnyPrefix(path, statelessPrefixes)
}

// IsPublicPath reports whether path is reachable without a session.
func IsPublicPath(path string) bool {
	if path == LoginPath {
		return true
	}
	return hasAnyPrefix(path, publicPrefixes)
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// =============================================================================
// Session Middleware Configuration
// =============================================================================

// SessionMiddleware derives the login state of each request from the backend
// and guards protected routes.
type SessionMiddleware struct {
	backend *backend.Client
	logger  *slog.Logger
}

// NewSessionMiddleware creates a new SessionMiddleware instance.
func NewSessionMiddleware(client *backend.Client, logger *slog.Logger) *SessionMiddleware {
	return &SessionMiddleware{
		backend: client,
		logger:  logger,
	}
}

// =============================================================================
// WithSession Middleware
// =============================================================================

// WithSession asks the backend for the login status of the relayed cookie
// and stores the resulting auth.Session in the request context.
//
// Any failure (transport error, non-2xx, undecodable body) yields
// logged_out. The handler always runs; use RequireSession to guard.
//
// Flow:
//
//	Request -> WithSession -> Handler
//	           |
//	           +-> GET {API_URL}/login_status (browser cookie relayed)
//	           +-> Set-Cookie from the backend mirrored to the response
//	           +-> auth.Session in context (email loaded lazily)
func (m *SessionMiddleware) WithSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isStateless(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		api := m.backend.Bind(w, r)

		status := domain.LoginStatusLoggedOut
		var email string

		resp, err := api.LoginStatus(r.Context())
		if err != nil {
			metrics.LoginStatusChecks.WithLabelValues("error").Inc()
			m.logger.Warn("login status check failed, treating as logged out",
				"path", r.URL.Path,
				"error", err,
			)
		} else {
			status = resp.Status
			if resp.Email != nil {
				email = *resp.Email
			}
			metrics.LoginStatusChecks.WithLabelValues(string(status)).Inc()
		}

		s := auth.NewSession(status, email, func(ctx context.Context) (string, error) {
			info, err := api.UserInfo(ctx)
			if err != nil {
				m.logger.Warn("failed to load user info", "error", err)
				return "", err
			}
			if info.Email == nil {
				return "", nil
			}
			return *info.Email, nil
		})

		next.ServeHTTP(w, r.WithContext(auth.SetSession(r.Context(), s)))
	})
}

// =============================================================================
// RequireSession Middleware
// =============================================================================

// RequireSession short-circuits logged-out requests to protected paths.
//
// Page requests are redirected to /login with 302 Found; /api/ requests get
// a 401 JSON error. Public paths always reach the handler.
//
// IMPORTANT: This middleware must be used AFTER WithSession in the middleware chain.
func (m *SessionMiddleware) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if IsPublicPath(r.URL.Path) || isStateless(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		if !auth.GetSession(r.Context()).LoggedIn() {
			if isAPIRequest(r) {
				metrics.GuardRedirects.WithLabelValues("unauthorized").Inc()
				handler.UnauthorizedResponse(w, r, m.logger)
				return
			}

			metrics.GuardRedirects.WithLabelValues("redirect").Inc()
			http.Redirect(w, r, LoginPath, http.StatusFound)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Request Helpers
// =============================================================================

// isAPIRequest determines if the request expects a JSON response.
//
// This is used to decide whether to redirect (HTML) or return JSON errors (API).
func isAPIRequest(r *http.Request) bool {
	return handler.AcceptsJSON(r)
}

// =============================================================================
// Middleware Stack Helpers
// =============================================================================

// Stack composes multiple middleware functions into a single middleware.
//
// Middleware is applied in the order provided, meaning the first middleware
// in the slice is the outermost (runs first on request, last on response).
//
// Example:
//
//	stack := Stack(loggingMw.Handler, sessionMw.WithSession, sessionMw.RequireSession)
//	handler := stack(mux)
func Stack(middlewares ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

// =============================================================================
// Compile-time checks
// =============================================================================

// Ensure middleware functions have correct signature
var (
	_ func(http.Handler) http.Handler = (&SessionMiddleware{}).WithSession
	_ func(http.Handler) http.Handler = (&SessionMiddleware{}).RequireSession
)
