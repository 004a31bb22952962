package handler

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/Oudwins/tailwind-merge-go/pkg/twmerge"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/DukeRupert/pulse/internal/csrf"
	"github.com/DukeRupert/pulse/internal/templ/shared"
)

// TemplateFuncs returns a FuncMap with custom template functions
func TemplateFuncs() template.FuncMap {
	titleCaser := cases.Title(language.English)

	return template.FuncMap{
		// Class helpers. cn merges Tailwind classes so later ones win
		// ("border-zinc-300" + "border-red-500" -> "border-red-500").
		"cn": cn,
		"activeClass": func(current, path string) string {
			if current == path {
				return "text-zinc-900 font-medium"
			}
			return ""
		},
		"invalidClass": func(errors map[string]string, field string) string {
			if errors[field] != "" {
				return "border-red-500"
			}
			return ""
		},
		"statusClass": func(status interface{}) string {
			switch fmt.Sprint(status) {
			case "up":
				return "bg-emerald-500"
			case "down":
				return "bg-red-500"
			default:
				return "bg-zinc-200"
			}
		},
		"badgeClass": func(status interface{}) string {
			switch fmt.Sprint(status) {
			case "up":
				return "bg-emerald-100 text-emerald-800"
			case "down":
				return "bg-red-100 text-red-800"
			default:
				return "bg-zinc-100 text-zinc-600"
			}
		},
		"visibilityClass": func(isPublic bool) string {
			if isPublic {
				return "bg-sky-100 text-sky-800"
			}
			return "bg-zinc-100 text-zinc-600"
		},
		"flashClass": func(t shared.FlashType) string {
			base := "mb-4 rounded border border-zinc-200 bg-zinc-50 p-3 text-sm text-zinc-700"
			switch t {
			case shared.FlashError:
				return cn(base, "border-red-200 bg-red-50 text-red-800")
			case shared.FlashSuccess:
				return cn(base, "border-emerald-200 bg-emerald-50 text-emerald-800")
			default:
				return cn(base, "bg-sky-50 text-sky-800")
			}
		},

		// String functions
		"title": func(v interface{}) string {
			return titleCaser.String(fmt.Sprint(v))
		},

		// Form helpers
		"csrfField": func(token string) template.HTML {
			return template.HTML(fmt.Sprintf(`<input type="hidden" name="%s" value="%s">`,
				csrf.FormFieldName, template.HTMLEscapeString(token)))
		},
	}
}

func cn(classes ...string) string {
	return twmerge.Merge(strings.Join(classes, " "))
}
