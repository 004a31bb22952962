package middleware

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/DukeRupert/pulse/internal/csrf"
)

// =============================================================================
// CSRF Middleware Tests
// =============================================================================

func newCSRFToken(t *testing.T) string {
	t.Helper()
	token, err := csrf.GenerateToken()
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return token
}

func TestCSRFMiddleware_IssuesTokenOnGet(t *testing.T) {
	mw := NewCSRFMiddleware(false, newTestLogger())

	var seen string
	h := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = csrf.Token(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/login", nil))

	if seen == "" {
		t.Fatal("expected token in context")
	}

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == csrf.CookieName {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatal("expected csrf cookie to be set")
	}
	if cookie.Value != seen {
		t.Errorf("cookie %q does not match context token %q", cookie.Value, seen)
	}
}

func TestCSRFMiddleware_AcceptsMatchingForm(t *testing.T) {
	mw := NewCSRFMiddleware(false, newTestLogger())
	token := newCSRFToken(t)

	called := false
	h := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if got := r.PostFormValue("email"); got != "alice@example.com" {
			t.Errorf("form should still be readable, got email %q", got)
		}
	}))

	form := url.Values{csrf.FormFieldName: {token}, "email": {"alice@example.com"}}
	req := httptest.NewRequest("POST", "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: csrf.CookieName, Value: token})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if !called {
		t.Errorf("expected handler to run, got status %d", rec.Code)
	}
}

func TestCSRFMiddleware_AcceptsMatchingHeader(t *testing.T) {
	mw := NewCSRFMiddleware(false, newTestLogger())
	token := newCSRFToken(t)

	called := false
	h := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest("DELETE", "/api/delete_system", strings.NewReader(`{"id":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(csrf.HeaderName, token)
	req.AddCookie(&http.Cookie{Name: csrf.CookieName, Value: token})

	h.ServeHTTP(httptest.NewRecorder(), req)

	if !called {
		t.Error("expected handler to run")
	}
}

func TestCSRFMiddleware_RejectsUnsafeWithoutToken(t *testing.T) {
	mw := NewCSRFMiddleware(false, newTestLogger())

	tests := []struct {
		name   string
		method string
		path   string
	}{
		{"form post", "POST", "/systems"},
		{"json patch", "PATCH", "/api/change_visibility"},
		{"json delete", "DELETE", "/api/delete_system"},
		{"metrics lookalike", "POST", "/metrics/reset"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Error("handler should not run")
			}))

			req := httptest.NewRequest(tt.method, tt.path, nil)
			req.AddCookie(&http.Cookie{Name: csrf.CookieName, Value: newCSRFToken(t)})
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != http.StatusForbidden {
				t.Errorf("expected 403, got %d", rec.Code)
			}
		})
	}
}

func TestCSRFMiddleware_SkipsStatelessPaths(t *testing.T) {
	mw := NewCSRFMiddleware(false, newTestLogger())

	h := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/static/app.js", nil))

	if got := rec.Header().Values("Set-Cookie"); len(got) != 0 {
		t.Errorf("static assets should not get a csrf cookie, got %v", got)
	}
}
