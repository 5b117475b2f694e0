// Package templates renders the viewer page and the fragments patched
// into it over SSE.
package templates

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

//go:embed fragments/*.html
var embedded embed.FS

var funcMap = template.FuncMap{
	// dict builds the data for a nested template call.
	"dict": func(values ...any) map[string]any {
		if len(values)%2 != 0 {
			return nil
		}
		m := make(map[string]any, len(values)/2)
		for i := 0; i < len(values); i += 2 {
			key, ok := values[i].(string)
			if !ok {
				continue
			}
			m[key] = values[i+1]
		}
		return m
	},
	// coord prints a map-projection coordinate for data attributes.
	"coord": func(v float64) string { return fmt.Sprintf("%.2f", v) },
	"last":  func(n int) int { return n - 1 },
}

// Renderer holds the parsed fragments. It is safe for concurrent use.
type Renderer struct {
	templates *template.Template
	mu        sync.RWMutex
}

// New creates a renderer from fragmentsDir, or from the fragments compiled
// into the binary when fragmentsDir is empty.
func New(fragmentsDir string) (*Renderer, error) {
	tmpl, err := parse(fragmentsDir)
	if err != nil {
		return nil, err
	}
	return &Renderer{templates: tmpl}, nil
}

func parse(fragmentsDir string) (*template.Template, error) {
	var fsys fs.FS = embedded
	pattern := "fragments/*.html"
	if fragmentsDir != "" {
		fsys = os.DirFS(fragmentsDir)
		pattern = "*.html"
	}
	tmpl, err := template.New("").Funcs(funcMap).ParseFS(fsys, pattern)
	if err != nil {
		return nil, fmt.Errorf("parse fragments %s: %w", filepath.Clean(fragmentsDir), err)
	}
	return tmpl, nil
}

// Render executes the named fragment.
func (r *Renderer) Render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := r.RenderToBuffer(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderToBuffer executes the named fragment into buf.
func (r *Renderer) RenderToBuffer(buf *bytes.Buffer, name string, data any) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.templates.ExecuteTemplate(buf, name, data)
}

// Reload re-parses fragmentsDir, e.g. after editing templates in development.
// The previous set stays in place when parsing fails.
func (r *Renderer) Reload(fragmentsDir string) error {
	tmpl, err := parse(fragmentsDir)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.templates = tmpl
	r.mu.Unlock()

	return nil
}
