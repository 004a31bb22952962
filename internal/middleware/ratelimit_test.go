package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DukeRupert/pulse/internal"
)

// =============================================================================
// RateLimiter Tests
// =============================================================================

// newFrozenLimiter returns a limiter whose clock only moves when advance is called.
func newFrozenLimiter(t *testing.T, maxAttempts int, window time.Duration) (*RateLimiter, func(time.Duration)) {
	t.Helper()
	rl := NewRateLimiter(maxAttempts, window)
	t.Cleanup(rl.Stop)

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	return rl, func(d time.Duration) { now = now.Add(d) }
}

func TestRateLimiter_Allow_UnderLimit(t *testing.T) {
	rl, _ := newFrozenLimiter(t, 5, time.Minute)

	for i := 0; i < 5; i++ {
		if !rl.Allow("192.168.1.1") {
			t.Errorf("request %d should be allowed", i+1)
		}
	}
}

func TestRateLimiter_Allow_AtLimit(t *testing.T) {
	rl, _ := newFrozenLimiter(t, 5, time.Minute)

	for i := 0; i < 5; i++ {
		rl.Allow("192.168.1.1")
	}

	if rl.Allow("192.168.1.1") {
		t.Error("6th request should be denied")
	}
}

func TestRateLimiter_Allow_DifferentIPs(t *testing.T) {
	rl, _ := newFrozenLimiter(t, 2, time.Minute)

	rl.Allow("192.168.1.1")
	rl.Allow("192.168.1.1")

	if rl.Allow("192.168.1.1") {
		t.Error("IP1 should be limited")
	}
	if !rl.Allow("192.168.1.2") {
		t.Error("IP2 should have its own budget")
	}
}

func TestRateLimiter_Allow_WindowExpiry(t *testing.T) {
	rl, advance := newFrozenLimiter(t, 1, time.Minute)

	if !rl.Allow("10.0.0.1") {
		t.Fatal("first request should be allowed")
	}
	if rl.Allow("10.0.0.1") {
		t.Fatal("second request should be denied")
	}

	advance(59 * time.Second)
	if got := rl.TimeUntilReset("10.0.0.1"); got != time.Second {
		t.Errorf("expected 1s until reset, got %v", got)
	}

	advance(time.Second)
	if !rl.Allow("10.0.0.1") {
		t.Error("request after window should be allowed")
	}
}

func TestRateLimiter_Reset(t *testing.T) {
	rl, _ := newFrozenLimiter(t, 1, time.Minute)

	rl.Allow("10.0.0.1")
	rl.Reset("10.0.0.1")

	if !rl.Allow("10.0.0.1") {
		t.Error("request after reset should be allowed")
	}
	if got := rl.TimeUntilReset("unknown"); got != 0 {
		t.Errorf("expected 0 for unknown key, got %v", got)
	}
}

func TestRateLimiter_Prune(t *testing.T) {
	rl, advance := newFrozenLimiter(t, 1, time.Minute)

	rl.Allow("10.0.0.1")
	advance(time.Minute)
	rl.Allow("10.0.0.2")
	rl.prune()

	if _, ok := rl.entries["10.0.0.1"]; ok {
		t.Error("expired entry should be pruned")
	}
	if _, ok := rl.entries["10.0.0.2"]; !ok {
		t.Error("live entry should be kept")
	}
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	rl.Stop()
	rl.Stop()
}

// =============================================================================
// LoginRateLimiter Tests
// =============================================================================

func newTestLoginLimiter(t *testing.T, limit int) *LoginRateLimiter {
	t.Helper()
	l := NewLoginRateLimiter(&internal.Config{
		LoginRateLimit:  limit,
		LoginRateWindow: time.Minute,
	}, newTestLogger())
	t.Cleanup(l.Stop)
	return l
}

func loginPost(ip string) *http.Request {
	req := httptest.NewRequest("POST", "/login", strings.NewReader("email=a%40b.c&password=x"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Forwarded-For", ip)
	return req
}

func TestLoginRateLimiter_BlocksAfterLimit(t *testing.T) {
	l := newTestLoginLimiter(t, 2)

	failing := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	wrapped := l.Handler(failing)

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		wrapped.ServeHTTP(rec, loginPost("203.0.113.9"))
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401 from handler, got %d", i+1, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, loginPost("203.0.113.9"))

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if ra := rec.Header().Get("Retry-After"); ra == "" || ra == "0" {
		t.Errorf("expected positive Retry-After, got %q", ra)
	}
	if !strings.Contains(rec.Body.String(), "Too many login attempts") {
		t.Errorf("unexpected body: %q", rec.Body.String())
	}
}

func TestLoginRateLimiter_JSONResponse(t *testing.T) {
	l := newTestLoginLimiter(t, 1)
	wrapped := l.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	wrapped.ServeHTTP(httptest.NewRecorder(), loginPost("203.0.113.9"))

	req := loginPost("203.0.113.9")
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}

	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Code != "rate_limit" {
		t.Errorf("expected code rate_limit, got %q", body.Error.Code)
	}
}

func TestLoginRateLimiter_SuccessResetsCounter(t *testing.T) {
	l := newTestLoginLimiter(t, 1)

	succeed := true
	wrapped := l.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if succeed {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))

	// A successful login does not use up the budget
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		wrapped.ServeHTTP(rec, loginPost("198.51.100.7"))
		if rec.Code != http.StatusSeeOther {
			t.Fatalf("attempt %d: expected 303, got %d", i+1, rec.Code)
		}
	}

	succeed = false
	wrapped.ServeHTTP(httptest.NewRecorder(), loginPost("198.51.100.7"))

	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, loginPost("198.51.100.7"))
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429 after failed attempt, got %d", rec.Code)
	}
}

func TestLoginRateLimiter_GetIsNeverLimited(t *testing.T) {
	l := newTestLoginLimiter(t, 1)
	wrapped := l.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		wrapped.ServeHTTP(rec, httptest.NewRequest("GET", "/login", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("GET %d: expected 200, got %d", i+1, rec.Code)
		}
	}
}

// =============================================================================
// Client IP Tests
// =============================================================================

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		xff        string
		realIP     string
		remoteAddr string
		want       string
	}{
		{"forwarded chain", "203.0.113.1, 10.0.0.1", "", "127.0.0.1:1234", "203.0.113.1"},
		{"real ip", "", "203.0.113.2", "127.0.0.1:1234", "203.0.113.2"},
		{"remote addr", "", "", "192.0.2.3:5555", "192.0.2.3"},
		{"remote addr without port", "", "", "192.0.2.4", "192.0.2.4"},
		{"blank forwarded falls through", " ", "203.0.113.5", "127.0.0.1:1", "203.0.113.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}

			if got := getClientIP(req); got != tt.want {
				t.Errorf("getClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
