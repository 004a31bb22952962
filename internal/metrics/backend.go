package metrics

import (
	"strconv"
	"time"
)

// BackendCallCompleted records a backend call that produced a response.
func BackendCallCompleted(op string, statusCode int, duration time.Duration) {
	BackendRequestsTotal.WithLabelValues(op, strconv.Itoa(statusCode)).Inc()
	BackendRequestDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// BackendCallFailed records a backend call that never got a response.
func BackendCallFailed(op string, duration time.Duration) {
	BackendRequestsTotal.WithLabelValues(op, "error").Inc()
	BackendRequestDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// CookieRelayed records one mirrored Set-Cookie directive.
func CookieRelayed(cleared bool) {
	if cleared {
		SessionCookiesRelayed.WithLabelValues("cleared").Inc()
		return
	}
	SessionCookiesRelayed.WithLabelValues("set").Inc()
}

// CookieMalformed records a Set-Cookie directive that could not be parsed.
func CookieMalformed() {
	SessionCookiesRelayed.WithLabelValues("malformed").Inc()
}
