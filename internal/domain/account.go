package domain

import (
	"net/mail"
	"strings"
)

// LoginStatus is the authentication state of a browser session.
type LoginStatus string

const (
	LoginStatusLoggedIn  LoginStatus = "logged_in"
	LoginStatusLoggedOut LoginStatus = "logged_out"
)

// LoginStatusResponse is the body of GET /login_status.
type LoginStatusResponse struct {
	Status LoginStatus `json:"status"`
	Email  *string     `json:"email,omitempty"`
}

// UserInfoResponse is the body of GET /user_info.
type UserInfoResponse struct {
	Email *string `json:"email,omitempty"`
}

// Settings are the per-user preferences stored by the backend.
type Settings struct {
	Timezone string `json:"timezone"`
	Language string `json:"language"`
}

// MinPasswordLength applies to every password field.
const MinPasswordLength = 8

// Credentials is the login request body.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// NewCredentials normalizes the email (trimmed, lower-cased) and validates both fields.
func NewCredentials(email, password string) (Credentials, error) {
	const op = "domain.NewCredentials"

	c := Credentials{
		Email:    strings.ToLower(strings.TrimSpace(email)),
		Password: password,
	}

	fields := make(map[string]string)
	if c.Email == "" {
		fields["email"] = "Email is required"
	} else if !isValidEmail(c.Email) {
		fields["email"] = "Please enter a valid email address"
	}

	if c.Password == "" {
		fields["password"] = "Password is required"
	} else if len(c.Password) < MinPasswordLength {
		fields["password"] = "Password must be at least 8 characters"
	}

	if len(fields) > 0 {
		return Credentials{}, &ValidationError{Op: op, Fields: fields}
	}
	return c, nil
}

// isValidEmail accepts a bare address with a dotted domain.
func isValidEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return false
	}
	at := strings.LastIndex(email, "@")
	return strings.Contains(email[at+1:], ".")
}

// PasswordChangeForm holds the raw values of the change-password form.
type PasswordChangeForm struct {
	OldPassword        string
	NewPassword        string
	NewPasswordConfirm string
}

// PasswordChangeParams is the change_password request body.
type PasswordChangeParams struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// Validate checks lengths and that the confirmation matches.
func (f PasswordChangeForm) Validate() (PasswordChangeParams, error) {
	const op = "domain.PasswordChangeForm.Validate"

	fields := make(map[string]string)
	if len(f.OldPassword) < MinPasswordLength {
		fields["old_password"] = "Password must be at least 8 characters long"
	}
	if len(f.NewPassword) < MinPasswordLength {
		fields["new_password"] = "Password must be at least 8 characters long"
	}
	if f.NewPasswordConfirm != f.NewPassword {
		fields["new_password_confirm"] = "Passwords don't match"
	}

	if len(fields) > 0 {
		return PasswordChangeParams{}, &ValidationError{Op: op, Fields: fields}
	}
	return PasswordChangeParams{
		OldPassword: f.OldPassword,
		NewPassword: f.NewPassword,
	}, nil
}

// ChangeTimezoneParams is the change_timezone request body.
type ChangeTimezoneParams struct {
	Timezone string `json:"timezone"`
}

// ChangeLanguageParams is the change_language request body.
type ChangeLanguageParams struct {
	Language string `json:"language"`
}
