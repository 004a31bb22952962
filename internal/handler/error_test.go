package handler

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/DukeRupert/pulse/internal/backend"
	"github.com/DukeRupert/pulse/internal/domain"
)

// =============================================================================
// Error Response Tests - Security Focus
// =============================================================================

func TestValidationErrorResponse_DoesNotExposeOperationName(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	// Create a validation error with an internal operation name
	ve := domain.NewValidationError("domain.AddSystemForm.Validate", "name", "Name is required")

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ValidationErrorResponse(w, r, logger, ve)
	})

	// Test HTML response (non-JSON)
	req := httptest.NewRequest("POST", "/systems", nil)
	req.Header.Set("Accept", "text/html")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	body := rec.Body.String()

	// Should NOT contain internal operation names
	if strings.Contains(body, "AddSystemForm") {
		t.Errorf("response exposes internal operation name: %s", body)
	}
	if strings.Contains(body, "Validate") {
		t.Errorf("response exposes internal method name: %s", body)
	}

	// Should have a user-friendly message
	if !strings.Contains(body, "Validation failed") {
		t.Errorf("response should contain user-friendly message, got: %s", body)
	}
	if !strings.Contains(body, "check your input") {
		t.Errorf("response should have helpful guidance, got: %s", body)
	}
}

func TestValidationErrorResponse_JSON_DoesNotExposeOperationName(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	// Create a validation error with an internal operation name
	ve := domain.NewValidationError("domain.EditSystemNameParams.Validate", "name", "Name is required")

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ValidationErrorResponse(w, r, logger, ve)
	})

	// Test JSON response
	req := httptest.NewRequest("PATCH", "/api/edit_system_name", nil)
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	body := rec.Body.String()

	// Should NOT contain internal operation names
	if strings.Contains(body, "EditSystemNameParams") {
		t.Errorf("JSON response exposes internal operation name: %s", body)
	}

	// Should contain the field error
	if !strings.Contains(body, `"name"`) {
		t.Errorf("JSON response should contain field name: %s", body)
	}
	if !strings.Contains(body, "Name is required") {
		t.Errorf("JSON response should contain field message: %s", body)
	}
}

func TestErrorResponse_InternalErrorHidesDetails(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	// Create an internal error wrapping a database error
	decodeErr := &mockBackendError{message: "decode /list_systems response: invalid character '<' looking for beginning of value"}
	internalErr := domain.Internal(decodeErr, "backend.ListSystems", "unexpected response from backend")

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(w, r, logger, internalErr)
	})

	// Test HTML response
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Accept", "text/html")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	body := rec.Body.String()

	// Should NOT contain database error details
	if strings.Contains(body, "list_systems") {
		t.Errorf("response exposes backend path: %s", body)
	}
	if strings.Contains(body, "invalid character") {
		t.Errorf("response exposes decoder error: %s", body)
	}
	if strings.Contains(body, "backend.ListSystems") {
		t.Errorf("response exposes internal operation: %s", body)
	}

	// Should return generic message
	if !strings.Contains(body, "internal error") {
		t.Errorf("response should contain generic internal error message, got: %s", body)
	}
}

func TestErrorResponse_InternalErrorHidesDetails_JSON(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	// Create an internal error wrapping a sensitive error
	sensitiveErr := &mockBackendError{message: "encode request: json: unsupported value: NaN (backend at 192.168.1.100:3000)"}
	internalErr := domain.Internal(sensitiveErr, "backend.AddSystem", "failed to encode request")

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(w, r, logger, internalErr)
	})

	// Test JSON response
	req := httptest.NewRequest("GET", "/api/server_info", nil)
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	body := rec.Body.String()

	// Should NOT contain sensitive details
	if strings.Contains(body, "192.168") {
		t.Errorf("JSON response exposes IP address: %s", body)
	}
	if strings.Contains(body, "3000") {
		t.Errorf("JSON response exposes port number: %s", body)
	}
	if strings.Contains(body, "backend.AddSystem") {
		t.Errorf("JSON response exposes internal operation: %s", body)
	}

	// Should contain generic message
	if !strings.Contains(body, "internal error") {
		t.Errorf("JSON response should contain generic error, got: %s", body)
	}
}

func TestErrorResponse_NotFoundDoesNotExposeInternals(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	// Create a not found error
	notFoundErr := domain.NotFound("backend.API.GetPublic", "This system does not exist or is not public.")

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(w, r, logger, notFoundErr)
	})

	req := httptest.NewRequest("GET", "/public/550e8400-e29b-41d4-a716-446655440000", nil)
	req.Header.Set("Accept", "text/html")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	body := rec.Body.String()

	// Should NOT contain internal operation name
	if strings.Contains(body, "backend.API") {
		t.Errorf("response exposes operation name: %s", body)
	}

	if !strings.Contains(body, "does not exist") {
		t.Errorf("response should indicate resource not found: %s", body)
	}
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestErrorResponse_UnwrappedErrorReturnsGeneric(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	// Create a raw error (not a domain.Error)
	rawErr := &mockBackendError{message: "FATAL: password authentication failed for user \"postgres\""}

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(w, r, logger, rawErr)
	})

	req := httptest.NewRequest("GET", "/account_settings", nil)
	req.Header.Set("Accept", "text/html")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	body := rec.Body.String()

	// Should NOT contain the raw error
	if strings.Contains(body, "FATAL") {
		t.Errorf("response exposes raw error: %s", body)
	}
	if strings.Contains(body, "password") {
		t.Errorf("response exposes password-related error: %s", body)
	}
	if strings.Contains(body, "postgres") {
		t.Errorf("response exposes database user: %s", body)
	}

	// Should return generic message
	if !strings.Contains(body, "internal error") {
		t.Errorf("response should contain generic message, got: %s", body)
	}
}

// =============================================================================
// Status Mapping Tests
// =============================================================================

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{
			name: "backend status is kept",
			err:  domain.Wrap(&backend.StatusError{StatusCode: http.StatusConflict}, domain.ECONFLICT, "backend.AddSystem", "name taken"),
			want: http.StatusConflict,
		},
		{
			name: "backend 503 is kept",
			err:  domain.Wrap(&backend.StatusError{StatusCode: http.StatusServiceUnavailable}, domain.EUNAVAILABLE, "backend.ListSystems", "down"),
			want: http.StatusServiceUnavailable,
		},
		{
			name: "unreachable backend",
			err:  domain.Unavailable(&mockBackendError{message: "dial tcp: connection refused"}, "backend.ListSystems"),
			want: http.StatusBadGateway,
		},
		{
			name: "validation",
			err:  domain.NewValidationError("op", "name", "required"),
			want: http.StatusBadRequest,
		},
		{
			name: "rate limit",
			err:  domain.Errorf(domain.ERATELIMIT, "op", "slow down"),
			want: http.StatusTooManyRequests,
		},
		{
			name: "plain error",
			err:  &mockBackendError{message: "boom"},
			want: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusFor(tt.err); got != tt.want {
				t.Errorf("StatusFor() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestErrorResponse_RelaysBackendMessage(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	se := &backend.StatusError{StatusCode: http.StatusForbidden, Body: []byte("not your system")}
	err := domain.Wrap(se, domain.EFORBIDDEN, "backend.DeleteSystem", se.Message())

	req := httptest.NewRequest("DELETE", "/api/delete_system", nil)
	rec := httptest.NewRecorder()

	ErrorResponse(rec, req, logger, err)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
	if !strings.Contains(rec.Body.String(), "not your system") {
		t.Errorf("body should carry the backend message, got: %s", rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
}

// =============================================================================
// Content Negotiation Tests
// =============================================================================

func TestAcceptsJSON(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		accept string
		want   bool
	}{
		{"api path without accept", "/api/server_info", "", true},
		{"api path asking for html", "/api/change_visibility", "text/html", true},
		{"page asking for json", "/", "application/json", true},
		{"browser accept header", "/", "text/html,application/xhtml+xml,*/*;q=0.8", false},
		{"wildcard prefers html", "/account_settings", "*/*", false},
		{"no accept header", "/login", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.path, nil)
			if tt.accept != "" {
				req.Header.Set("Accept", tt.accept)
			}
			if got := AcceptsJSON(req); got != tt.want {
				t.Errorf("AcceptsJSON() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUnsupportedMediaTypeResponse(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	req := httptest.NewRequest("PATCH", "/api/edit_system_name", strings.NewReader("id=1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	UnsupportedMediaTypeResponse(rec, req, logger)

	if rec.Code != http.StatusUnsupportedMediaType {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnsupportedMediaType)
	}
	if !strings.Contains(rec.Body.String(), "application/json") {
		t.Errorf("body should name the expected type, got: %s", rec.Body.String())
	}
}

// mockBackendError simulates a low-level error with sensitive details
type mockBackendError struct {
	message string
}

func (e *mockBackendError) Error() string {
	return e.message
}
