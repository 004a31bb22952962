package middleware

import (
	"log/slog"
	"net/http"

	"github.com/DukeRupert/pulse/internal/csrf"
	"github.com/DukeRupert/pulse/internal/domain"
	"github.com/DukeRupert/pulse/internal/handler"
)

// CSRFMiddleware issues the double-submit token and checks it on every
// state-changing request.
type CSRFMiddleware struct {
	isSecure bool
	logger   *slog.Logger
}

// NewCSRFMiddleware creates a new CSRF middleware.
func NewCSRFMiddleware(isSecure bool, logger *slog.Logger) *CSRFMiddleware {
	return &CSRFMiddleware{
		isSecure: isSecure,
		logger:   logger,
	}
}

// Handler returns middleware that rejects unsafe requests without a matching
// token and stores the token in the request context for templates.
func (m *CSRFMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isStateless(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		if !isSafeMethod(r.Method) && !csrf.ValidateRequest(r) {
			m.logger.Warn("csrf token rejected",
				"method", r.Method,
				"path", r.URL.Path,
				"ip", getClientIP(r),
			)
			err := domain.Errorf(domain.EFORBIDDEN, "middleware.CSRF",
				"Your form has expired. Please reload the page and try again.")
			handler.ErrorResponse(w, r, m.logger, err)
			return
		}

		token, err := csrf.EnsureToken(w, r, m.isSecure)
		if err != nil {
			handler.InternalErrorResponse(w, r, m.logger, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(csrf.WithToken(r.Context(), token)))
	})
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}
