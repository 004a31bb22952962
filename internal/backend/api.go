package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/DukeRupert/pulse/internal/domain"
	"github.com/DukeRupert/pulse/internal/metrics"
	"github.com/DukeRupert/pulse/internal/tracing"
)

// maxBodySize bounds backend response bodies.
const maxBodySize = 4 << 20

// API is a request-scoped view of the backend. Create one per browser
// request with Client.Bind.
type API struct {
	client *Client
	http   *http.Client
	logger *slog.Logger
}

// Reply is a 2xx backend response relayed as is.
type Reply struct {
	StatusCode  int
	Body        []byte
	ContentType string
	// SetCookies is the number of usable Set-Cookie directives on the
	// response. Malformed lines are not relayed and not counted.
	SetCookies int
}

type listSystemsResponse struct {
	Systems []domain.System `json:"systems"`
}

type getPublicResponse struct {
	System domain.System `json:"system"`
}

// =============================================================================
// Session
// =============================================================================

// LoginStatus asks the backend whether the relayed cookie belongs to a live
// session.
func (a *API) LoginStatus(ctx context.Context) (domain.LoginStatusResponse, error) {
	var out domain.LoginStatusResponse
	_, err := a.do(ctx, "backend.LoginStatus", http.MethodGet, "/login_status", nil, nil, &out)
	if err != nil {
		return domain.LoginStatusResponse{}, err
	}
	if out.Status != domain.LoginStatusLoggedIn && out.Status != domain.LoginStatusLoggedOut {
		return domain.LoginStatusResponse{}, domain.Errorf(domain.EINTERNAL, "backend.LoginStatus", "unknown login status %q", out.Status)
	}
	return out, nil
}

// UserInfo returns the email of the logged-in user.
func (a *API) UserInfo(ctx context.Context) (domain.UserInfoResponse, error) {
	var out domain.UserInfoResponse
	_, err := a.do(ctx, "backend.UserInfo", http.MethodGet, "/user_info", nil, nil, &out)
	return out, err
}

// Login submits credentials. On success the backend's session cookie has
// already been mirrored to the browser response.
func (a *API) Login(ctx context.Context, creds domain.Credentials) error {
	const op = "backend.Login"

	reply, err := a.do(ctx, op, http.MethodPost, "/login", nil, creds, nil)
	if err != nil {
		return err
	}
	if reply.SetCookies == 0 {
		return domain.Wrap(ErrNoSession, domain.EINTERNAL, op, "The server did not start a session")
	}
	return nil
}

// Logout ends the session on the backend.
func (a *API) Logout(ctx context.Context) error {
	_, err := a.do(ctx, "backend.Logout", http.MethodGet, "/logout", nil, nil, nil)
	return err
}

// =============================================================================
// Systems
// =============================================================================

// ListSystems returns the user's systems with up to listSize instants each.
func (a *API) ListSystems(ctx context.Context, listSize, page int) ([]domain.System, error) {
	var out listSystemsResponse
	_, err := a.do(ctx, "backend.ListSystems", http.MethodGet, "/list_systems", pageQuery(listSize, page), nil, &out)
	if err != nil {
		return nil, err
	}
	return out.Systems, nil
}

// AddSystem creates a system.
func (a *API) AddSystem(ctx context.Context, params domain.AddSystemParams) error {
	_, err := a.do(ctx, "backend.AddSystem", http.MethodPost, "/add_system", nil, params, nil)
	return err
}

// ChangeVisibility switches a system between public and private.
func (a *API) ChangeVisibility(ctx context.Context, params domain.ChangeVisibilityParams) (Reply, error) {
	return a.do(ctx, "backend.ChangeVisibility", http.MethodPatch, "/change_visibility", nil, params, nil)
}

// EditSystemName renames a system.
func (a *API) EditSystemName(ctx context.Context, params domain.EditSystemNameParams) (Reply, error) {
	return a.do(ctx, "backend.EditSystemName", http.MethodPatch, "/edit_system_name", nil, params, nil)
}

// DeleteSystem removes a system.
func (a *API) DeleteSystem(ctx context.Context, params domain.DeleteSystemParams) (Reply, error) {
	return a.do(ctx, "backend.DeleteSystem", http.MethodDelete, "/delete_system", nil, params, nil)
}

// GetPublic returns a public system; private or unknown ids are not found.
func (a *API) GetPublic(ctx context.Context, id uuid.UUID, listSize, page int) (domain.System, error) {
	var out getPublicResponse
	_, err := a.do(ctx, "backend.GetPublic", http.MethodGet, "/get_public/"+id.String(), pageQuery(listSize, page), nil, &out)
	if err != nil {
		return domain.System{}, err
	}
	return out.System, nil
}

// =============================================================================
// User Settings
// =============================================================================

// ChangePassword changes the user's password.
func (a *API) ChangePassword(ctx context.Context, params domain.PasswordChangeParams) error {
	_, err := a.do(ctx, "backend.ChangePassword", http.MethodPatch, "/user/change_password", nil, params, nil)
	return err
}

// ChangeTimezone stores the user's timezone.
func (a *API) ChangeTimezone(ctx context.Context, params domain.ChangeTimezoneParams) error {
	_, err := a.do(ctx, "backend.ChangeTimezone", http.MethodPatch, "/user/change_timezone", nil, params, nil)
	return err
}

// ChangeLanguage stores the user's language.
func (a *API) ChangeLanguage(ctx context.Context, params domain.ChangeLanguageParams) error {
	_, err := a.do(ctx, "backend.ChangeLanguage", http.MethodPatch, "/user/change_language", nil, params, nil)
	return err
}

// CurrentSettings returns the stored timezone and language.
func (a *API) CurrentSettings(ctx context.Context) (domain.Settings, error) {
	var out domain.Settings
	_, err := a.do(ctx, "backend.CurrentSettings", http.MethodGet, "/user/get_current_settings", nil, nil, &out)
	return out, err
}

// =============================================================================
// Transport
// =============================================================================

// do performs a JSON request. Non-2xx responses are returned as domain
// errors wrapping a *StatusError; transport failures as EUNAVAILABLE.
// When out is non-nil a 2xx body is decoded into it.
func (a *API) do(ctx context.Context, op, method, path string, query url.Values, in, out any) (reply Reply, err error) {
	ctx, span := tracing.StartSpan(ctx, op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("backend.path", path),
		),
	)
	defer func() {
		if reply.StatusCode != 0 {
			span.SetAttributes(attribute.Int("http.response.status_code", reply.StatusCode))
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, domain.ErrorCode(err))
		}
		span.End()
	}()

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return Reply{}, domain.Internal(err, op, "failed to encode request")
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.client.endpoint(path, query), body)
	if err != nil {
		return Reply{}, domain.Internal(err, op, "failed to build request")
	}
	req.Header.Set("Accept", "application/json")
	tracing.Inject(ctx, propagation.HeaderCarrier(req.Header))
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := a.http.Do(req)
	if err != nil {
		metrics.BackendCallFailed(op, time.Since(start))
		a.logger.Warn("backend request failed",
			"op", op,
			"method", method,
			"path", path,
			"error", err,
		)
		return Reply{}, domain.Unavailable(err, op)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	duration := time.Since(start)
	metrics.BackendCallCompleted(op, resp.StatusCode, duration)
	a.logger.Debug("backend request",
		"op", op,
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", duration.Milliseconds(),
	)
	if err != nil {
		return Reply{}, domain.Unavailable(err, op)
	}

	reply = Reply{
		StatusCode:  resp.StatusCode,
		Body:        data,
		ContentType: resp.Header.Get("Content-Type"),
		SetCookies:  len(relayable(resp.Header.Values("Set-Cookie"))),
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return reply, statusErr(op, &StatusError{
			StatusCode:  resp.StatusCode,
			Body:        data,
			ContentType: reply.ContentType,
		})
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return reply, domain.Internal(fmt.Errorf("decode %s response: %w", path, err), op, "unexpected response from backend")
		}
	}
	return reply, nil
}

func pageQuery(listSize, page int) url.Values {
	if page < 0 {
		page = 0
	}
	return url.Values{
		"list_size": {strconv.Itoa(listSize)},
		"page":      {strconv.Itoa(page)},
	}
}
