// Package web renders the server-side HTML pages of the local client host.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"
)

//go:embed templates
var content embed.FS

// Page names accepted by Render.
const (
	PageLoading       = "loading"
	PageLogin         = "login"
	PageCallbackError = "callback_error"
	PageApp           = "app"
	PageError         = "error"
)

// Page is the data passed to every template.
type Page struct {
	Title     string
	Path      string
	CSRFToken string

	// Set while authenticated.
	Subject string
	Email   string
	Roles   []string

	// LoginURL is the login action offered by the login prompt.
	LoginURL string
	// Message is shown on error pages.
	Message string
	// Section names the app area being shown, e.g. "study".
	Section string
}

// Renderer executes the embedded page templates.
type Renderer struct {
	pages map[string]*template.Template
}

// New parses the embedded templates.
func New() (*Renderer, error) {
	base, err := template.ParseFS(content, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	files, err := fs.Glob(content, "templates/pages/*.html")
	if err != nil {
		return nil, fmt.Errorf("listing page templates: %w", err)
	}

	r := &Renderer{pages: make(map[string]*template.Template, len(files))}
	for _, f := range files {
		name := strings.TrimSuffix(path.Base(f), ".html")
		t, err := template.Must(base.Clone()).ParseFS(content, f)
		if err != nil {
			return nil, fmt.Errorf("parsing page %s: %w", name, err)
		}
		r.pages[name] = t
	}
	return r, nil
}

// Render writes page name with the given status. The page is rendered into
// a buffer first so a template failure never produces a partial response.
func (r *Renderer) Render(w http.ResponseWriter, status int, name string, data Page) error {
	t, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("unknown page %q", name)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "base", data); err != nil {
		return fmt.Errorf("rendering page %s: %w", name, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}
