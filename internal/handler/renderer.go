package handler

import (
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/a-h/templ"
)

// Renderer manages template parsing and rendering with isolated template sets.
// It supports three layouts:
//   - "auth" layout for the login page
//   - "app" layout for authenticated pages (dashboard, account settings)
//   - "public" layout for shared system pages and error pages
//
// Templates are organized as:
//   - layouts/auth.html, layouts/app.html, layouts/public.html - base layouts
//   - components/*.html - reusable components (shared across layouts)
//   - pages/auth/*.html - auth pages (use auth layout)
//   - pages/public/*.html - public pages (use public layout)
//   - pages/*.html - app pages (use app layout)
//
// Pages are exposed as templ components so handlers can serve them through
// templ.Handler with an explicit status code.
type Renderer struct {
	fsys      fs.FS
	logger    *slog.Logger
	mu        sync.RWMutex
	templates map[string]*template.Template
}

// RendererConfig holds configuration for the renderer.
type RendererConfig struct {
	FS     fs.FS // rooted at the templates directory
	Logger *slog.Logger
}

// NewRenderer creates a new template renderer.
func NewRenderer(cfg RendererConfig) (*Renderer, error) {
	r := &Renderer{
		fsys:   cfg.FS,
		logger: cfg.Logger,
	}

	if err := r.load(); err != nil {
		return nil, err
	}

	return r, nil
}

// pageGlobs maps each layout to the pages rendered inside it.
var pageGlobs = []struct {
	layout string
	glob   string
	prefix string
}{
	{layout: "auth", glob: "pages/auth/*.html", prefix: "auth/"},
	{layout: "public", glob: "pages/public/*.html", prefix: "public/"},
	{layout: "app", glob: "pages/*.html", prefix: ""},
}

func (r *Renderer) load() error {
	components, err := fs.Glob(r.fsys, "components/*.html")
	if err != nil {
		return fmt.Errorf("failed to glob components: %w", err)
	}

	templates := make(map[string]*template.Template)

	for _, pg := range pageGlobs {
		patterns := append([]string{"layouts/" + pg.layout + ".html"}, components...)
		base, err := template.New(pg.layout).Funcs(TemplateFuncs()).ParseFS(r.fsys, patterns...)
		if err != nil {
			return fmt.Errorf("failed to parse %s layout: %w", pg.layout, err)
		}

		pages, err := fs.Glob(r.fsys, pg.glob)
		if err != nil {
			return fmt.Errorf("failed to glob %s: %w", pg.glob, err)
		}

		for _, page := range pages {
			pageTmpl, err := base.Clone()
			if err != nil {
				return fmt.Errorf("failed to clone %s layout for %s: %w", pg.layout, page, err)
			}

			pageTmpl, err = pageTmpl.ParseFS(r.fsys, page)
			if err != nil {
				return fmt.Errorf("failed to parse page %s: %w", page, err)
			}

			// Store as "auth/login", "public/system", "dashboard", etc.
			name := strings.TrimSuffix(path.Base(page), path.Ext(page))
			templates[pg.prefix+name] = pageTmpl
		}
	}

	r.mu.Lock()
	r.templates = templates
	r.mu.Unlock()

	r.logger.Debug("templates loaded", "count", len(templates))
	return nil
}

// Component returns the named page bound to data.
func (r *Renderer) Component(name string, data any) (templ.Component, error) {
	r.mu.RLock()
	tmpl, ok := r.templates[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("template %q not found", name)
	}

	layout := tmpl.Lookup(baseTemplateName(name))
	if layout == nil {
		return nil, fmt.Errorf("template %q has no layout %q", name, baseTemplateName(name))
	}

	return templ.FromGoHTML(layout, data), nil
}

// Render writes the named page with the given status. Rendering happens into
// a buffer first, so a template error still yields a clean 500.
func (r *Renderer) Render(w http.ResponseWriter, req *http.Request, status int, name string, data any) {
	component, err := r.Component(name, data)
	if err != nil {
		r.logger.Error("template lookup failed", "name", name, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	templ.Handler(component,
		templ.WithStatus(status),
		templ.WithErrorHandler(func(req *http.Request, err error) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				r.logger.Error("template execution failed", "name", name, "error", err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			})
		}),
	).ServeHTTP(w, req)
}

// baseTemplateName determines which layout template to execute.
func baseTemplateName(name string) string {
	switch {
	case strings.HasPrefix(name, "public/"):
		return "public"
	case strings.HasPrefix(name, "auth/"):
		return "auth"
	default:
		return "app"
	}
}

// ListTemplates returns a sorted list of all loaded template names.
func (r *Renderer) ListTemplates() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
