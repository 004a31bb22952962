package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/DukeRupert/pulse/internal/auth"
	"github.com/DukeRupert/pulse/internal/backend"
	"github.com/DukeRupert/pulse/internal/csrf"
	"github.com/DukeRupert/pulse/internal/domain"
	"github.com/DukeRupert/pulse/internal/locale"
	"github.com/DukeRupert/pulse/internal/session"
	"github.com/DukeRupert/pulse/internal/templ/pages/settings"
	"github.com/DukeRupert/pulse/internal/templ/shared"
)

// SettingsHandler handles the account settings page.
//
// Routes handled:
// - GET  /account_settings          -> Show
// - POST /account_settings/password -> ChangePassword
// - POST /account_settings/timezone -> ChangeTimezone
// - POST /account_settings/language -> ChangeLanguage
type SettingsHandler struct {
	backend    *backend.Client
	renderer   TemplateRenderer
	languages  *locale.Languages
	logger     *slog.Logger
	isSecure   bool
	cookieName string
}

// NewSettingsHandler creates a new SettingsHandler with the required dependencies.
func NewSettingsHandler(
	client *backend.Client,
	renderer TemplateRenderer,
	languages *locale.Languages,
	logger *slog.Logger,
	isSecure bool,
	cookieName string,
) *SettingsHandler {
	return &SettingsHandler{
		backend:    client,
		renderer:   renderer,
		languages:  languages,
		logger:     logger,
		isSecure:   isSecure,
		cookieName: cookieName,
	}
}

// updatedFlashes are shown after a successful timezone or language change.
var updatedFlashes = map[settings.Form]string{
	settings.FormTimezone: "Timezone updated.",
	settings.FormLanguage: "Language updated.",
}

// =============================================================================
// GET /account_settings - Show Settings
// =============================================================================

// Show renders the three account forms, pre-filled from the backend.
func (h *SettingsHandler) Show(w http.ResponseWriter, r *http.Request) {
	api := h.backend.Bind(w, r)
	data := h.pageData(r)

	current, err := api.CurrentSettings(r.Context())
	if err != nil {
		h.logger.Warn("failed to load account settings", "error", err)
		data.PageFlash = shared.ErrorFlash(domain.ErrorMessage(err))
		h.renderer.Render(w, r, StatusFor(err), "account_settings", data)
		return
	}
	h.fill(&data, current)

	form := settings.Form(r.URL.Query().Get("updated"))
	if msg, ok := updatedFlashes[form]; ok {
		data.ActiveForm = form
		data.Flash = shared.SuccessFlash(msg)
	}

	h.renderer.Render(w, r, http.StatusOK, "account_settings", data)
}

// =============================================================================
// POST /account_settings/password - Change Password
// =============================================================================

// ChangePassword forwards a password change. The backend ends the session
// on success, so the browser cookie is cleared and the user is sent to log
// in again.
//
// Form Fields:
// - old_password (required): min 8 characters
// - new_password (required): min 8 characters
// - new_password_confirm (required): must equal new_password
func (h *SettingsHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderFormError(w, r, nil, settings.FormPassword, http.StatusBadRequest, nil,
			shared.ErrorFlash("Invalid form submission. Please try again."))
		return
	}

	params, err := domain.PasswordChangeForm{
		OldPassword:        r.PostFormValue("old_password"),
		NewPassword:        r.PostFormValue("new_password"),
		NewPasswordConfirm: r.PostFormValue("new_password_confirm"),
	}.Validate()
	if err != nil {
		h.renderFormError(w, r, nil, settings.FormPassword, http.StatusBadRequest, domain.FieldErrors(err), nil)
		return
	}

	api := h.backend.Bind(w, r)
	if err := api.ChangePassword(r.Context(), params); err != nil {
		h.logger.Info("password change rejected", "status", StatusFor(err), "error", err)
		h.renderFormError(w, r, api, settings.FormPassword, StatusFor(err), nil,
			shared.ErrorFlash(domain.ErrorMessage(err)))
		return
	}

	h.logger.Info("password changed")
	session.Clear(w, h.cookieName, h.isSecure)
	http.Redirect(w, r, "/login?changed=1", http.StatusSeeOther)
}

// =============================================================================
// POST /account_settings/timezone - Change Timezone
// =============================================================================

// ChangeTimezone stores the user's timezone.
//
// Form Fields:
// - timezone (required): an IANA zone name from the timezone list
func (h *SettingsHandler) ChangeTimezone(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderFormError(w, r, nil, settings.FormTimezone, http.StatusBadRequest, nil,
			shared.ErrorFlash("Invalid form submission. Please try again."))
		return
	}

	tz := r.PostFormValue("timezone")
	if !locale.ValidTimezone(tz) {
		h.renderFormError(w, r, nil, settings.FormTimezone, http.StatusBadRequest,
			map[string]string{"timezone": "Please choose a timezone from the list"}, nil)
		return
	}

	api := h.backend.Bind(w, r)
	if err := api.ChangeTimezone(r.Context(), domain.ChangeTimezoneParams{Timezone: tz}); err != nil {
		h.logger.Info("timezone change rejected", "status", StatusFor(err), "error", err)
		h.renderFormError(w, r, api, settings.FormTimezone, StatusFor(err), nil,
			shared.ErrorFlash(domain.ErrorMessage(err)))
		return
	}

	http.Redirect(w, r, "/account_settings?updated="+string(settings.FormTimezone), http.StatusSeeOther)
}

// =============================================================================
// POST /account_settings/language - Change Language
// =============================================================================

// ChangeLanguage stores the user's language.
//
// Form Fields:
// - language (required): one of the configured languages
func (h *SettingsHandler) ChangeLanguage(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderFormError(w, r, nil, settings.FormLanguage, http.StatusBadRequest, nil,
			shared.ErrorFlash("Invalid form submission. Please try again."))
		return
	}

	lang, ok := h.languages.Match(r.PostFormValue("language"))
	if !ok {
		h.renderFormError(w, r, nil, settings.FormLanguage, http.StatusBadRequest,
			map[string]string{"language": "Please choose a language from the list"}, nil)
		return
	}

	api := h.backend.Bind(w, r)
	if err := api.ChangeLanguage(r.Context(), domain.ChangeLanguageParams{Language: lang}); err != nil {
		h.logger.Info("language change rejected", "status", StatusFor(err), "error", err)
		h.renderFormError(w, r, api, settings.FormLanguage, StatusFor(err), nil,
			shared.ErrorFlash(domain.ErrorMessage(err)))
		return
	}

	http.Redirect(w, r, "/account_settings?updated="+string(settings.FormLanguage), http.StatusSeeOther)
}

// =============================================================================
// Helpers
// =============================================================================

func (h *SettingsHandler) pageData(r *http.Request) settings.AccountPageData {
	return settings.AccountPageData{
		CurrentPath: "/account_settings",
		CSRFToken:   csrf.Token(r.Context()),
		Email:       auth.GetSession(r.Context()).Email(r.Context()),
		Timezones:   locale.Timezones(time.Now()),
		Languages:   h.languages.Options(),
		Timezone:    "UTC",
		Language:    h.languages.Default(),
		Errors:      make(map[string]string),
	}
}

func (h *SettingsHandler) fill(data *settings.AccountPageData, current domain.Settings) {
	if locale.ValidTimezone(current.Timezone) {
		data.Timezone = current.Timezone
	}
	if lang, ok := h.languages.Match(current.Language); ok {
		data.Language = lang
	}
}

// renderFormError re-renders the page with errors attached to one form.
// The other forms keep the user's stored values where they can be loaded.
func (h *SettingsHandler) renderFormError(
	w http.ResponseWriter,
	r *http.Request,
	api *backend.API,
	form settings.Form,
	status int,
	errors map[string]string,
	flash *shared.Flash,
) {
	if api == nil {
		api = h.backend.Bind(w, r)
	}

	data := h.pageData(r)
	if current, err := api.CurrentSettings(r.Context()); err == nil {
		h.fill(&data, current)
	}
	if errors != nil {
		data.Errors = errors
	}
	data.ActiveForm = form
	data.Flash = flash

	h.renderer.Render(w, r, status, "account_settings", data)
}

// =============================================================================
// Route Registration
// =============================================================================

// RegisterRoutes registers the account settings routes.
func (h *SettingsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /account_settings", h.Show)
	mux.HandleFunc("POST /account_settings/password", h.ChangePassword)
	mux.HandleFunc("POST /account_settings/timezone", h.ChangeTimezone)
	mux.HandleFunc("POST /account_settings/language", h.ChangeLanguage)
}
