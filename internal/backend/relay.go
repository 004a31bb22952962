package backend

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/DukeRupert/pulse/internal/metrics"
	"github.com/DukeRupert/pulse/internal/session"
)

// relayTransport carries the browser session between the browser and the
// backend for the lifetime of one browser request.
type relayTransport struct {
	base    http.RoundTripper
	apiBase *url.URL
	cookie  string
	secure  bool
	logger  *slog.Logger

	mu sync.Mutex
	w  http.ResponseWriter
}

// RoundTrip implements http.RoundTripper.
func (t *relayTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	toAPI := t.isAPI(req.URL)

	out := req
	if toAPI && t.cookie != "" {
		out = req.Clone(req.Context())
		out.Header.Set("Cookie", t.cookie)
	}

	resp, err := t.base.RoundTrip(out)
	if err != nil {
		return nil, err
	}

	if toAPI {
		t.mirror(resp.Header.Values("Set-Cookie"))
	}
	return resp, nil
}

// mirror writes each backend Set-Cookie to the browser-facing response.
func (t *relayTransport) mirror(lines []string) {
	if len(lines) == 0 || t.w == nil {
		return
	}

	directives, err := session.ParseSetCookies(lines)
	if err != nil {
		metrics.CookieMalformed()
		t.logger.Warn("ignoring malformed Set-Cookie from backend", "error", err)
	}
	if len(directives) == 0 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, d := range directives {
		session.Set(t.w, d, t.secure)
		metrics.CookieRelayed(d.MaxAge <= 0)
	}
}

// relayable returns the directives mirror would write for lines.
func relayable(lines []string) []session.Directive {
	if len(lines) == 0 {
		return nil
	}
	directives, _ := session.ParseSetCookies(lines)
	return directives
}

// isAPI reports whether u is under the configured backend base URL.
func (t *relayTransport) isAPI(u *url.URL) bool {
	if !strings.EqualFold(u.Scheme, t.apiBase.Scheme) || !strings.EqualFold(u.Host, t.apiBase.Host) {
		return false
	}
	prefix := strings.TrimRight(t.apiBase.Path, "/")
	if prefix == "" {
		return true
	}
	return u.Path == prefix || strings.HasPrefix(u.Path, prefix+"/")
}
