package auth

import "github.com/DukeRupert/pulse/internal/templ/shared"

// LoginPageData contains data for the login page
type LoginPageData struct {
	CSRFToken string
	Form      FormData
	Errors    map[string]string
	Flash     *shared.Flash
}

// FormData contains the login form field values.
// The password is never echoed back.
type FormData struct {
	Email string
}
