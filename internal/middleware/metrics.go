package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/DukeRupert/pulse/internal"
)

// MetricsAuthMiddleware guards the Prometheus endpoint with basic auth.
//
// Without METRICS_USERNAME/METRICS_PASSWORD the endpoint is open in
// development and hidden (404) everywhere else.
type MetricsAuthMiddleware struct {
	username string
	password string
	enabled  bool
	hidden   bool
	logger   *slog.Logger
}

// NewMetricsAuthMiddleware creates a new metrics auth middleware.
func NewMetricsAuthMiddleware(cfg *internal.Config, logger *slog.Logger) *MetricsAuthMiddleware {
	enabled := cfg.MetricsUsername != "" || cfg.MetricsPassword != ""
	return &MetricsAuthMiddleware{
		username: cfg.MetricsUsername,
		password: cfg.MetricsPassword,
		enabled:  enabled,
		hidden:   !enabled && cfg.IsSecure(),
		logger:   logger,
	}
}

// Handler returns middleware that requires basic authentication.
func (m *MetricsAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.hidden {
			http.NotFound(w, r)
			return
		}
		if !m.enabled {
			next.ServeHTTP(w, r)
			return
		}

		user, pass, ok := r.BasicAuth()

		// Use constant-time comparison to prevent timing attacks
		userMatch := subtle.ConstantTimeCompare([]byte(user), []byte(m.username)) == 1
		passMatch := subtle.ConstantTimeCompare([]byte(pass), []byte(m.password)) == 1

		if !ok || !userMatch || !passMatch {
			m.logger.Warn("metrics auth rejected", "ip", getClientIP(r), "basic_auth", ok)
			w.Header().Set("WWW-Authenticate", `Basic realm="pulse metrics"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}
