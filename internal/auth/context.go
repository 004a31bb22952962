// Package auth provides the request-scoped login state.
//
// This package is designed to be imported by both middleware and handler
// packages without causing import cycles.
package auth

import (
	"context"
	"net/http"
	"sync"

	"github.com/DukeRupert/pulse/internal/domain"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// sessionContextKey is the key used to store the request session in context.
	sessionContextKey contextKey = "session"
)

// EmailLoader fetches the logged-in user's email from the backend.
type EmailLoader func(ctx context.Context) (string, error)

// Session is the login state derived once per request by the session
// middleware. It is read-only for handlers.
type Session struct {
	status domain.LoginStatus

	once   sync.Once
	email  string
	loader EmailLoader
}

// NewSession creates a session for the given status. A non-empty email is
// used as is; otherwise loader is called at most once, on first use.
func NewSession(status domain.LoginStatus, email string, loader EmailLoader) *Session {
	s := &Session{status: status, email: email, loader: loader}
	if email != "" || status != domain.LoginStatusLoggedIn {
		s.loader = nil
	}
	return s
}

// Status returns the derived login status.
func (s *Session) Status() domain.LoginStatus {
	if s == nil {
		return domain.LoginStatusLoggedOut
	}
	return s.status
}

// LoggedIn reports whether the backend confirmed an authenticated session.
func (s *Session) LoggedIn() bool {
	return s.Status() == domain.LoginStatusLoggedIn
}

// Email returns the user's email, fetching it lazily the first time it is
// needed. Failures yield an empty email; they never change the status.
func (s *Session) Email(ctx context.Context) string {
	if s == nil {
		return ""
	}
	s.once.Do(func() {
		if s.loader == nil {
			return
		}
		if email, err := s.loader(ctx); err == nil {
			s.email = email
		}
		s.loader = nil
	})
	return s.email
}

// GetSession retrieves the session from the context.
//
// Returns nil when the session middleware did not run; a nil *Session
// reports logged_out.
func GetSession(ctx context.Context) *Session {
	s, ok := ctx.Value(sessionContextKey).(*Session)
	if !ok {
		return nil
	}
	return s
}

// GetSessionFromRequest is a convenience wrapper around GetSession.
func GetSessionFromRequest(r *http.Request) *Session {
	return GetSession(r.Context())
}

// SetSession stores a session in the context.
//
// This is called by the session middleware after asking the backend for
// the login status.
func SetSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, s)
}
