// Package locale provides the timezone and language choices offered on the
// account settings page.
package locale

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"time"

	// Offsets must not depend on the host's zoneinfo.
	_ "time/tzdata"
)

//go:embed zones.txt
var zonesFile string

// zoneNames is the list of selectable IANA zone names.
var zoneNames = parseZones(zonesFile)

// Option is one entry of a select input.
type Option struct {
	Label string
	Value string
}

func parseZones(raw string) []string {
	var names []string
	for _, line := range strings.Split(raw, "\n") {
		if name := strings.TrimSpace(line); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// Timezones returns the selectable zones labelled with their offset at now,
// e.g. "Europe/Paris (UTC+1:00)", sorted by offset then name.
func Timezones(now time.Time) []Option {
	type zone struct {
		name   string
		offset int
	}

	zones := make([]zone, 0, len(zoneNames))
	for _, name := range zoneNames {
		loc, err := time.LoadLocation(name)
		if err != nil {
			continue
		}
		_, offset := now.In(loc).Zone()
		zones = append(zones, zone{name: name, offset: offset})
	}

	sort.Slice(zones, func(i, j int) bool {
		if zones[i].offset != zones[j].offset {
			return zones[i].offset < zones[j].offset
		}
		return zones[i].name < zones[j].name
	})

	options := make([]Option, len(zones))
	for i, z := range zones {
		options[i] = Option{
			Label: fmt.Sprintf("%s (UTC%s)", z.name, FormatOffset(z.offset)),
			Value: z.name,
		}
	}
	return options
}

// FormatOffset formats an offset in seconds as "+1:00", "-3:30" or "+0:00".
func FormatOffset(seconds int) string {
	sign := "+"
	if seconds < 0 {
		sign = "-"
		seconds = -seconds
	}
	minutes := seconds / 60
	return fmt.Sprintf("%s%d:%02d", sign, minutes/60, minutes%60)
}

// ValidTimezone reports whether name is one of the selectable zones.
func ValidTimezone(name string) bool {
	for _, z := range zoneNames {
		if z == name {
			return true
		}
	}
	return false
}

// Location returns the zone for name, falling back to UTC.
func Location(name string) *time.Location {
	if !ValidTimezone(name) {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}
