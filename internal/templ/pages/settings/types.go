package settings

import (
	"github.com/DukeRupert/pulse/internal/locale"
	"github.com/DukeRupert/pulse/internal/templ/shared"
)

// Form identifies which of the account forms a flash or error belongs to
type Form string

const (
	FormPassword Form = "password"
	FormTimezone Form = "timezone"
	FormLanguage Form = "language"
)

// AccountPageData contains data for the account settings page
type AccountPageData struct {
	CurrentPath string
	CSRFToken   string
	Email       string

	Timezones []locale.Option
	Languages []locale.Option
	Timezone  string
	Language  string

	// ActiveForm is the form the Errors and Flash refer to
	ActiveForm Form
	Errors     map[string]string
	Flash      *shared.Flash

	// PageFlash is shown above all forms (e.g. settings failed to load)
	PageFlash *shared.Flash
}

// FlashFor returns the flash if it belongs to form.
func (d AccountPageData) FlashFor(form Form) *shared.Flash {
	if d.ActiveForm != form {
		return nil
	}
	return d.Flash
}
