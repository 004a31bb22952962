// Package domain contains core business types and interfaces.
//
// This file defines the monitored System type as it is returned by the
// backend API, together with the input types for creating and editing systems.
package domain

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the state of a system at one expected ping instant.
type Status string

const (
	StatusUp        Status = "up"
	StatusDown      Status = "down"
	StatusUntracked Status = "untracked"
)

// Visibility controls whether a system can be viewed without logging in.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// ParseVisibility converts a form or JSON value into a Visibility.
func ParseVisibility(s string) (Visibility, bool) {
	switch Visibility(strings.ToLower(strings.TrimSpace(s))) {
	case VisibilityPublic:
		return VisibilityPublic, true
	case VisibilityPrivate:
		return VisibilityPrivate, true
	default:
		return "", false
	}
}

// IsPublic reports whether the system is visible on /public/{id}.
func (v Visibility) IsPublic() bool {
	return v == VisibilityPublic
}

// Instant is one expected ping of a system.
type Instant struct {
	Status Status `json:"status"`
	// Timestamp is when the ping actually arrived; nil when it never did.
	Timestamp         *time.Time `json:"timestamp"`
	ExpectedTimestamp time.Time  `json:"expected_timestamp"`
}

// System is a monitored system as listed by the backend.
type System struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Instants []Instant `json:"instants"`
	// Frequency in minutes
	Frequency  int        `json:"frequency"`
	StartsAt   time.Time  `json:"starts_at"`
	Visibility Visibility `json:"visibility"`
}

// LastStatus returns the status of the most recent tracked instant.
func (s *System) LastStatus() Status {
	for i := len(s.Instants) - 1; i >= 0; i-- {
		if s.Instants[i].Status != StatusUntracked {
			return s.Instants[i].Status
		}
	}
	return StatusUntracked
}

// Uptime returns the percentage of tracked instants that were up.
// Systems with no tracked instants report 0.
func (s *System) Uptime() float64 {
	var tracked, up int
	for _, in := range s.Instants {
		switch in.Status {
		case StatusUp:
			tracked++
			up++
		case StatusDown:
			tracked++
		}
	}
	if tracked == 0 {
		return 0
	}
	return float64(up) * 100 / float64(tracked)
}

// FrequencyLabel formats the ping frequency for display ("30 min", "2 h").
func (s *System) FrequencyLabel() string {
	if s.Frequency > 0 && s.Frequency%60 == 0 {
		return strconv.Itoa(s.Frequency/60) + " h"
	}
	return strconv.Itoa(s.Frequency) + " min"
}

// =============================================================================
// System Inputs
// =============================================================================

const (
	// DefaultFrequency is the ping frequency in minutes when none is given.
	DefaultFrequency = 30

	// MaxSystemNameLength bounds system names.
	MaxSystemNameLength = 100

	// datetimeLocalLayout is the value format of <input type="datetime-local">.
	datetimeLocalLayout = "2006-01-02T15:04"
)

// AddSystemForm holds the raw values submitted by the add-system form.
type AddSystemForm struct {
	Name       string
	Frequency  string
	StartsAt   string
	DownAfter  string
	Visibility string
}

// AddSystemParams is the validated add_system request body.
type AddSystemParams struct {
	Name string `json:"name"`
	// Frequency in minutes
	Frequency int       `json:"frequency"`
	StartsAt  time.Time `json:"starts_at"`
	// DownAfter is the number of minutes after which the owner gets emailed.
	DownAfter  int        `json:"down_after"`
	Visibility Visibility `json:"visibility"`
}

// Validate checks the form and converts it into AddSystemParams.
// Times without an offset are interpreted in loc.
func (f AddSystemForm) Validate(loc *time.Location) (AddSystemParams, error) {
	const op = "domain.AddSystemForm.Validate"

	fields := make(map[string]string)
	params := AddSystemParams{
		Name:       strings.TrimSpace(f.Name),
		Frequency:  DefaultFrequency,
		Visibility: VisibilityPrivate,
	}

	if msg := validateSystemName(params.Name); msg != "" {
		fields["name"] = msg
	}

	if raw := strings.TrimSpace(f.Frequency); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			fields["frequency"] = "Frequency must be a positive whole number of minutes"
		} else {
			params.Frequency = n
		}
	}

	params.DownAfter = params.Frequency
	if raw := strings.TrimSpace(f.DownAfter); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			fields["down_after"] = "Down after must be zero or a positive whole number of minutes"
		} else {
			params.DownAfter = n
		}
	}

	startsAt, ok := parseStartsAt(strings.TrimSpace(f.StartsAt), loc)
	if !ok {
		fields["starts_at"] = "Start time must be a valid date and time"
	} else {
		params.StartsAt = startsAt.UTC()
	}

	if raw := strings.TrimSpace(f.Visibility); raw != "" {
		v, ok := ParseVisibility(raw)
		if !ok {
			fields["visibility"] = "Visibility must be public or private"
		} else {
			params.Visibility = v
		}
	}

	if len(fields) > 0 {
		return AddSystemParams{}, &ValidationError{Op: op, Fields: fields}
	}
	return params, nil
}

func parseStartsAt(raw string, loc *time.Location) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, true
	}
	if loc == nil {
		loc = time.UTC
	}
	if t, err := time.ParseInLocation(datetimeLocalLayout, raw, loc); err == nil {
		return t, true
	}
	return time.Time{}, false
}

func validateSystemName(name string) string {
	switch {
	case name == "":
		return "Name is required"
	case len([]rune(name)) > MaxSystemNameLength:
		return "Name must be at most " + strconv.Itoa(MaxSystemNameLength) + " characters"
	}
	return ""
}

// ChangeVisibilityParams is the change_visibility request body.
type ChangeVisibilityParams struct {
	ID         uuid.UUID  `json:"id"`
	Visibility Visibility `json:"visibility"`
}

// Validate normalizes the visibility and rejects nil ids.
func (p *ChangeVisibilityParams) Validate() error {
	const op = "domain.ChangeVisibilityParams.Validate"

	fields := make(map[string]string)
	if p.ID == uuid.Nil {
		fields["id"] = "A system id is required"
	}
	if v, ok := ParseVisibility(string(p.Visibility)); ok {
		p.Visibility = v
	} else {
		fields["visibility"] = "Visibility must be public or private"
	}
	if len(fields) > 0 {
		return &ValidationError{Op: op, Fields: fields}
	}
	return nil
}

// EditSystemNameParams is the edit_system_name request body.
type EditSystemNameParams struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// Validate trims the name and checks both fields.
func (p *EditSystemNameParams) Validate() error {
	const op = "domain.EditSystemNameParams.Validate"

	p.Name = strings.TrimSpace(p.Name)

	fields := make(map[string]string)
	if p.ID == uuid.Nil {
		fields["id"] = "A system id is required"
	}
	if msg := validateSystemName(p.Name); msg != "" {
		fields["name"] = msg
	}
	if len(fields) > 0 {
		return &ValidationError{Op: op, Fields: fields}
	}
	return nil
}

// DeleteSystemParams is the delete_system request body.
type DeleteSystemParams struct {
	ID uuid.UUID `json:"id"`
}

// Validate rejects a nil id.
func (p DeleteSystemParams) Validate() error {
	if p.ID == uuid.Nil {
		return NewValidationError("domain.DeleteSystemParams.Validate", "id", "A system id is required")
	}
	return nil
}
