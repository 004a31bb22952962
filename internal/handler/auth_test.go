package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DukeRupert/pulse/internal"
	"github.com/DukeRupert/pulse/internal/auth"
	"github.com/DukeRupert/pulse/internal/backend"
	"github.com/DukeRupert/pulse/internal/domain"
	authpages "github.com/DukeRupert/pulse/internal/templ/pages/auth"
	"github.com/DukeRupert/pulse/internal/templ/shared"
)

// =============================================================================
// Fake Renderer
// =============================================================================

// fakeRenderer records the last page rendered instead of executing templates.
type fakeRenderer struct {
	Name   string
	Status int
	Data   any
	Calls  int
}

func (f *fakeRenderer) Render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	f.Name = name
	f.Status = status
	f.Data = data
	f.Calls++
	w.WriteHeader(status)
}

// =============================================================================
// Test Helpers
// =============================================================================

// newTestLogger creates a logger that discards output for testing.
func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError, // Only show errors in tests
	}))
}

// fakeBackend routes backend paths to handlers and counts calls per path.
type fakeBackend struct {
	routes map[string]http.HandlerFunc
	calls  map[string]*atomic.Int32
}

func newFakeBackend(routes map[string]http.HandlerFunc) *fakeBackend {
	fb := &fakeBackend{routes: routes, calls: make(map[string]*atomic.Int32)}
	for path := range routes {
		fb.calls[path] = &atomic.Int32{}
	}
	return fb
}

func (fb *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h, ok := fb.routes[r.URL.Path]
	if !ok {
		http.NotFound(w, r)
		return
	}
	fb.calls[r.URL.Path].Add(1)
	h(w, r)
}

func (fb *fakeBackend) Calls(path string) int {
	c, ok := fb.calls[path]
	if !ok {
		return 0
	}
	return int(c.Load())
}

// newTestClient starts the fake backend and returns a client pointed at it.
func newTestClient(t *testing.T, fb *fakeBackend) *backend.Client {
	t.Helper()
	srv := httptest.NewServer(fb)
	t.Cleanup(srv.Close)
	return newTestClientURL(t, srv.URL)
}

func newTestClientURL(t *testing.T, apiURL string) *backend.Client {
	t.Helper()
	client, err := backend.NewClient(&internal.Config{
		Env:            "development",
		APIURL:         apiURL,
		BackendTimeout: 5 * time.Second,
	}, newTestLogger())
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client
}

// withSession attaches a session with the given status to req.
func withSession(req *http.Request, status domain.LoginStatus, email string) *http.Request {
	s := auth.NewSession(status, email, nil)
	return req.WithContext(auth.SetSession(req.Context(), s))
}

func postForm(path string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func newTestAuthHandler(t *testing.T, fb *fakeBackend) (*AuthHandler, *fakeRenderer) {
	t.Helper()
	renderer := &fakeRenderer{}
	return NewAuthHandler(newTestClient(t, fb), renderer, newTestLogger(), false, "id"), renderer
}

// =============================================================================
// GET /login Tests
// =============================================================================

func TestShowLogin_RendersForm(t *testing.T) {
	h, renderer := newTestAuthHandler(t, newFakeBackend(nil))

	rec := httptest.NewRecorder()
	h.ShowLogin(rec, httptest.NewRequest(http.MethodGet, "/login", nil))

	if renderer.Name != "auth/login" {
		t.Errorf("rendered %q, want auth/login", renderer.Name)
	}
	if renderer.Status != http.StatusOK {
		t.Errorf("status = %d, want %d", renderer.Status, http.StatusOK)
	}
	data := renderer.Data.(authpages.LoginPageData)
	if data.Flash != nil {
		t.Errorf("unexpected flash: %+v", data.Flash)
	}
}

func TestShowLogin_Flashes(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{"logout=1", "You have been signed out."},
		{"changed=1", "Password changed. Please sign in again."},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			h, renderer := newTestAuthHandler(t, newFakeBackend(nil))

			rec := httptest.NewRecorder()
			h.ShowLogin(rec, httptest.NewRequest(http.MethodGet, "/login?"+tt.query, nil))

			data := renderer.Data.(authpages.LoginPageData)
			if data.Flash == nil || data.Flash.Message != tt.want {
				t.Fatalf("flash = %+v, want %q", data.Flash, tt.want)
			}
			if data.Flash.Type != shared.FlashSuccess {
				t.Errorf("flash type = %q, want success", data.Flash.Type)
			}
		})
	}
}

func TestShowLogin_LoggedInRedirectsHome(t *testing.T) {
	h, renderer := newTestAuthHandler(t, newFakeBackend(nil))

	req := withSession(httptest.NewRequest(http.MethodGet, "/login", nil), domain.LoginStatusLoggedIn, "a@example.com")
	rec := httptest.NewRecorder()
	h.ShowLogin(rec, req)

	if rec.Code != http.StatusFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusFound)
	}
	if loc := rec.Header().Get("Location"); loc != "/" {
		t.Errorf("Location = %q, want /", loc)
	}
	if renderer.Calls != 0 {
		t.Error("login page should not be rendered")
	}
}

// =============================================================================
// POST /login Tests
// =============================================================================

func TestLogin_Success_RelaysCookieAndRedirects(t *testing.T) {
	var got domain.Credentials
	fb := newFakeBackend(map[string]http.HandlerFunc{
		"/login": func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewDecoder(r.Body).Decode(&got)
			w.Header().Add("Set-Cookie", "id=session-abc; Path=/; HttpOnly; Max-Age=3600")
			w.WriteHeader(http.StatusOK)
		},
	})
	h, _ := newTestAuthHandler(t, fb)

	rec := httptest.NewRecorder()
	h.Login(rec, postForm("/login", url.Values{
		"email":    {"  Alice@Example.COM "},
		"password": {"correct-horse"},
	}))

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusSeeOther)
	}
	if loc := rec.Header().Get("Location"); loc != "/" {
		t.Errorf("Location = %q, want /", loc)
	}

	if got.Email != "alice@example.com" {
		t.Errorf("backend got email %q, want normalized alice@example.com", got.Email)
	}

	c := findCookie(rec, "id")
	if c == nil {
		t.Fatal("session cookie was not relayed to the browser")
	}
	if c.Value != "session-abc" {
		t.Errorf("cookie value = %q, want session-abc", c.Value)
	}
	if !c.HttpOnly {
		t.Error("relayed cookie must be HttpOnly")
	}
}

func TestLogin_InvalidInput_NeverCallsBackend(t *testing.T) {
	fb := newFakeBackend(map[string]http.HandlerFunc{
		"/login": func(w http.ResponseWriter, r *http.Request) {},
	})
	h, renderer := newTestAuthHandler(t, fb)

	rec := httptest.NewRecorder()
	h.Login(rec, postForm("/login", url.Values{
		"email":    {"not-an-email"},
		"password": {"short"},
	}))

	if renderer.Status != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", renderer.Status, http.StatusBadRequest)
	}
	if fb.Calls("/login") != 0 {
		t.Error("backend should not be called for invalid input")
	}

	data := renderer.Data.(authpages.LoginPageData)
	if data.Errors["email"] == "" || data.Errors["password"] == "" {
		t.Errorf("expected email and password errors, got %v", data.Errors)
	}
	if data.Form.Email != "not-an-email" {
		t.Errorf("email should be preserved, got %q", data.Form.Email)
	}
}

func TestLogin_BackendRejection_KeepsStatus(t *testing.T) {
	fb := newFakeBackend(map[string]http.HandlerFunc{
		"/login": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "Invalid email or password", http.StatusUnauthorized)
		},
	})
	h, renderer := newTestAuthHandler(t, fb)

	rec := httptest.NewRecorder()
	h.Login(rec, postForm("/login", url.Values{
		"email":    {"alice@example.com"},
		"password": {"wrong-password"},
	}))

	if renderer.Status != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", renderer.Status, http.StatusUnauthorized)
	}
	data := renderer.Data.(authpages.LoginPageData)
	if data.Flash == nil || data.Flash.Message != "Invalid email or password" {
		t.Errorf("flash = %+v, want backend message", data.Flash)
	}
	if findCookie(rec, "id") != nil {
		t.Error("no session cookie should be set on rejection")
	}
}

func TestLogin_MissingSetCookie_Returns500(t *testing.T) {
	fb := newFakeBackend(map[string]http.HandlerFunc{
		"/login": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		},
	})
	h, renderer := newTestAuthHandler(t, fb)

	rec := httptest.NewRecorder()
	h.Login(rec, postForm("/login", url.Values{
		"email":    {"alice@example.com"},
		"password": {"correct-horse"},
	}))

	if renderer.Status != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", renderer.Status, http.StatusInternalServerError)
	}
	data := renderer.Data.(authpages.LoginPageData)
	if data.Flash == nil || !strings.Contains(data.Flash.Message, "session") {
		t.Errorf("flash = %+v, want session error", data.Flash)
	}
}

func TestLogin_MalformedSetCookie_Returns500(t *testing.T) {
	fb := newFakeBackend(map[string]http.HandlerFunc{
		"/login": func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Set-Cookie", "=novalue; Max-Age=3600")
			w.WriteHeader(http.StatusOK)
		},
	})
	h, renderer := newTestAuthHandler(t, fb)

	rec := httptest.NewRecorder()
	h.Login(rec, postForm("/login", url.Values{
		"email":    {"alice@example.com"},
		"password": {"correct-horse"},
	}))

	if rec.Code == http.StatusSeeOther {
		t.Fatalf("login redirected with location %q, want an error page", rec.Header().Get("Location"))
	}
	if renderer.Status != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", renderer.Status, http.StatusInternalServerError)
	}
	if c := findCookie(rec, "id"); c != nil {
		t.Errorf("unexpected session cookie %q", c.String())
	}
}

// =============================================================================
// GET /logout Tests
// =============================================================================

func TestLogout_ClearsCookieAndRedirects(t *testing.T) {
	var sawCookie string
	fb := newFakeBackend(map[string]http.HandlerFunc{
		"/logout": func(w http.ResponseWriter, r *http.Request) {
			sawCookie = r.Header.Get("Cookie")
			w.WriteHeader(http.StatusOK)
		},
	})
	h, _ := newTestAuthHandler(t, fb)

	req := httptest.NewRequest(http.MethodGet, "/logout", nil)
	req.AddCookie(&http.Cookie{Name: "id", Value: "session-abc"})
	rec := httptest.NewRecorder()

	h.Logout(rec, req)

	if sawCookie != "id=session-abc" {
		t.Errorf("backend saw Cookie %q, want the browser session", sawCookie)
	}
	if rec.Code != http.StatusFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusFound)
	}
	if loc := rec.Header().Get("Location"); loc != "/login?logout=1" {
		t.Errorf("Location = %q, want /login?logout=1", loc)
	}

	c := findCookie(rec, "id")
	if c == nil {
		t.Fatal("session cookie not cleared")
	}
	if c.MaxAge != -1 {
		t.Errorf("cookie MaxAge = %d, want -1 (deleted)", c.MaxAge)
	}
}

func TestLogout_BackendDown_StillClearsCookie(t *testing.T) {
	fb := newFakeBackend(map[string]http.HandlerFunc{
		"/logout": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		},
	})
	h, _ := newTestAuthHandler(t, fb)

	rec := httptest.NewRecorder()
	h.Logout(rec, httptest.NewRequest(http.MethodGet, "/logout", nil))

	if rec.Code != http.StatusFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusFound)
	}
	if c := findCookie(rec, "id"); c == nil || c.MaxAge != -1 {
		t.Errorf("session cookie should be cleared, got %+v", c)
	}
}

// =============================================================================
// Route Registration Tests
// =============================================================================

func TestAuthRoutes_LoginIsLimited(t *testing.T) {
	h, _ := newTestAuthHandler(t, newFakeBackend(nil))

	var limited atomic.Int32
	limit := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limited.Add(1)
			w.WriteHeader(http.StatusTooManyRequests)
		})
	}

	mux := http.NewServeMux()
	h.RegisterRoutes(mux, limit)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, postForm("/login", url.Values{}))
	if rec.Code != http.StatusTooManyRequests || limited.Load() != 1 {
		t.Errorf("POST /login should pass through the limiter, status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/login", nil))
	if rec.Code != http.StatusOK || limited.Load() != 1 {
		t.Errorf("GET /login should not be limited, status = %d", rec.Code)
	}
}
