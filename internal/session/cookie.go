// Package session holds the browser session cookie codec shared by the
// backend relay, the middleware and the handler packages.
//
// The backend issues the session token; this package only translates the
// backend's Set-Cookie directives into browser cookies with locally enforced
// security attributes, and clears them on logout.
package session

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultCookieName is the session cookie name used by the backend.
	DefaultCookieName = "id"

	// CookiePath ensures the cookie is sent with all requests.
	CookiePath = "/"

	// FallbackMaxAge is used when a directive carries no usable Max-Age
	// (400 days, the longest lifetime browsers honour).
	FallbackMaxAge = 400 * 24 * 60 * 60
)

// ErrMalformed is returned for Set-Cookie values that cannot be parsed.
var ErrMalformed = errors.New("session: malformed set-cookie")

// Directive is the part of a backend Set-Cookie that is relayed to the
// browser. Security attributes are never taken from the backend.
type Directive struct {
	Name  string
	Value string
	// MaxAge in seconds; 0 deletes the cookie.
	MaxAge int
}

// ParseSetCookie parses a single Set-Cookie header value.
//
// A missing or unparsable Max-Age falls back to an Expires attribute when
// present, and to FallbackMaxAge otherwise.
func ParseSetCookie(line string) (Directive, error) {
	return parseAt(line, time.Now())
}

// ParseSetCookies parses every Set-Cookie header value, skipping malformed
// ones. The returned error joins the parse failures.
func ParseSetCookies(lines []string) ([]Directive, error) {
	now := time.Now()
	out := make([]Directive, 0, len(lines))
	var errs []error
	for _, line := range lines {
		d, err := parseAt(line, now)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, d)
	}
	return out, errors.Join(errs...)
}

func parseAt(line string, now time.Time) (Directive, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Directive{}, fmt.Errorf("%w: empty value", ErrMalformed)
	}

	c, err := http.ParseSetCookie(line)
	if err != nil {
		return Directive{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	d := Directive{Name: c.Name, Value: c.Value}
	switch {
	case c.MaxAge > 0:
		d.MaxAge = c.MaxAge
	case c.MaxAge < 0:
		// net/http reports "Max-Age=0" (and negative values) as -1
		d.MaxAge = 0
	case !c.Expires.IsZero():
		remaining := int(c.Expires.Sub(now).Seconds())
		if remaining < 0 {
			remaining = 0
		}
		d.MaxAge = remaining
	default:
		d.MaxAge = FallbackMaxAge
	}
	return d, nil
}

// String formats the directive as a Set-Cookie value carrying only the
// relayed attributes. ParseSetCookie(d.String()) returns d.
func (d Directive) String() string {
	c := &http.Cookie{Name: d.Name, Value: d.Value, MaxAge: d.MaxAge}
	if d.MaxAge <= 0 {
		c.MaxAge = -1
	}
	return c.String()
}

// Cookie builds the browser-facing cookie for the directive.
//
// Cookie settings:
// - HttpOnly: true - never readable from JavaScript
// - Secure: configurable - true outside development
// - SameSite: Strict - the session never rides on cross-site requests
// - Path: / - sent with every request
func (d Directive) Cookie(secure bool) *http.Cookie {
	maxAge := d.MaxAge
	if maxAge <= 0 {
		maxAge = -1 // emits Max-Age=0
	}
	return &http.Cookie{
		Name:     d.Name,
		Value:    d.Value,
		Path:     CookiePath,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	}
}

// Set writes the directive to the response, replacing any cookie with the
// same name already queued on it.
func Set(w http.ResponseWriter, d Directive, secure bool) {
	c := d.Cookie(secure)
	if v := c.String(); v != "" {
		replaceSetCookie(w.Header(), c.Name, v)
	}
}

// Clear removes the named cookie from the browser (empty value, Max-Age=0).
func Clear(w http.ResponseWriter, name string, secure bool) {
	Set(w, Directive{Name: name, Value: "", MaxAge: 0}, secure)
}

func replaceSetCookie(h http.Header, name, value string) {
	existing := h.Values("Set-Cookie")
	h.Del("Set-Cookie")
	prefix := name + "="
	for _, v := range existing {
		if strings.HasPrefix(v, prefix) {
			continue
		}
		h.Add("Set-Cookie", v)
	}
	h.Add("Set-Cookie", value)
}
