package locale

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Languages is the fixed set of languages users may choose from.
type Languages struct {
	tags []language.Tag
}

// NewLanguages parses BCP 47 tags. Duplicates are dropped; order is kept.
func NewLanguages(raw []string) (*Languages, error) {
	l := &Languages{}
	seen := make(map[string]bool)
	for _, r := range raw {
		tag, err := language.Parse(strings.TrimSpace(r))
		if err != nil {
			return nil, fmt.Errorf("parse language %q: %w", r, err)
		}
		if seen[tag.String()] {
			continue
		}
		seen[tag.String()] = true
		l.tags = append(l.tags, tag)
	}
	if len(l.tags) == 0 {
		return nil, fmt.Errorf("no languages configured")
	}
	return l, nil
}

// Default is the first configured language.
func (l *Languages) Default() string {
	return l.tags[0].String()
}

// Options lists the languages, each labelled in its own language
// ("English", "Deutsch").
func (l *Languages) Options() []Option {
	options := make([]Option, len(l.tags))
	for i, tag := range l.tags {
		name := display.Self.Name(tag)
		if name == "" {
			name = tag.String()
		}
		options[i] = Option{
			Label: cases.Title(tag).String(name),
			Value: tag.String(),
		}
	}
	return options
}

// Match returns the canonical form of raw if it is a configured language.
// "DE" and "de" both match "de".
func (l *Languages) Match(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	tag, err := language.Parse(raw)
	if err != nil {
		return "", false
	}
	for _, t := range l.tags {
		if t.String() == tag.String() {
			return t.String(), true
		}
	}
	return "", false
}
