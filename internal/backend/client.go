// Package backend is the HTTP client for the monitoring backend API.
//
// A Client is built once from the application config. Every browser request
// gets its own API value from Client.Bind, whose transport forwards the
// browser's cookies to the backend and mirrors the backend's Set-Cookie
// directives onto the browser-facing response.
package backend

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/DukeRupert/pulse/internal"
)

// Client holds the immutable settings shared by all request-scoped APIs.
type Client struct {
	baseURL   *url.URL
	timeout   time.Duration
	secure    bool
	transport http.RoundTripper
	logger    *slog.Logger
}

// NewClient creates a backend client from the application config.
func NewClient(cfg *internal.Config, logger *slog.Logger) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(cfg.APIURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse API_URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("API_URL must be absolute, got: %q", cfg.APIURL)
	}

	return &Client{
		baseURL:   u,
		timeout:   cfg.BackendTimeout,
		secure:    cfg.IsSecure(),
		transport: http.DefaultTransport,
		logger:    logger,
	}, nil
}

// BaseURL returns the backend base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Bind returns an API scoped to one browser request.
//
// Calls made through it carry the browser's Cookie header, and any
// Set-Cookie returned by the backend is written to w with locally enforced
// security attributes. w may be nil when no browser response exists.
func (c *Client) Bind(w http.ResponseWriter, r *http.Request) *API {
	var cookie string
	if r != nil {
		cookie = strings.Join(r.Header.Values("Cookie"), "; ")
	}

	rt := &relayTransport{
		base:    c.transport,
		apiBase: c.baseURL,
		cookie:  cookie,
		w:       w,
		secure:  c.secure,
		logger:  c.logger,
	}

	return &API{
		client: c,
		http: &http.Client{
			Transport: rt,
			Timeout:   c.timeout,
		},
		logger: c.logger,
	}
}

// endpoint joins the base URL with an API path and query.
func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = query.Encode()
	return u.String()
}
