// Package systems contains view types for the dashboard and public pages.
package systems

import (
	"github.com/DukeRupert/pulse/internal/templ/components/pagination"
	"github.com/DukeRupert/pulse/internal/templ/shared"
)

// DashboardPageData contains data for the systems dashboard
type DashboardPageData struct {
	CurrentPath string
	CSRFToken   string
	Email       string
	Systems     []SystemDisplay
	Pagination  pagination.Data

	Form     AddSystemFormData
	Errors   map[string]string
	FormOpen bool // keep the add dialog open after a failed submit
	Flash    *shared.Flash
}

// PublicPageData contains data for the public view of one system
type PublicPageData struct {
	System     SystemDisplay
	Pagination pagination.Data
}

// ErrorPageData contains data for a full-page error
type ErrorPageData struct {
	Status  int
	Title   string
	Message string
}

// SystemDisplay represents a system for display.
type SystemDisplay struct {
	ID         string
	Name       string
	Frequency  string // "30 min", "2 h"
	Visibility string
	IsPublic   bool
	LastStatus string
	Uptime     string // "99.5%", empty when nothing was tracked
	StartsAt   string
	Instants   []InstantDisplay
}

// InstantDisplay is one cell of the status strip.
type InstantDisplay struct {
	Status string
	Title  string // tooltip: time and status
}

// AddSystemFormData contains the add-system form field values
type AddSystemFormData struct {
	Name       string
	Frequency  string
	StartsAt   string
	DownAfter  string
	Visibility string
}
