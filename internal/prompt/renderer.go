// Package prompt renders agent prompt templates.
//
// Templates are text/template files read from an fs.FS (normally an
// embed.FS bundled with the agent). Each template is parsed once, on first
// use or on Load, and cached for the lifetime of the Renderer.
package prompt

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"text/template"
)

// ErrTemplateNotFound is returned when a template ID does not name a file.
var ErrTemplateNotFound = errors.New("template not found")

// Renderer renders templates from a filesystem.
type Renderer struct {
	fsys  fs.FS
	funcs template.FuncMap

	mu    sync.RWMutex
	cache map[string]*template.Template
}

// NewRenderer creates a renderer reading templates from fsys.
func NewRenderer(fsys fs.FS) *Renderer {
	return &Renderer{
		fsys:  fsys,
		funcs: Funcs(),
		cache: make(map[string]*template.Template),
	}
}

// Load parses the given templates now so that missing or malformed files
// surface at construction time instead of on the first request.
func (r *Renderer) Load(ids ...string) error {
	for _, id := range ids {
		if _, err := r.template(id); err != nil {
			return err
		}
	}
	return nil
}

// Render executes template id with vars.
func (r *Renderer) Render(id string, vars map[string]any) (string, error) {
	tmpl, err := r.template(id)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("render %s: %w", id, err)
	}
	return buf.String(), nil
}

func (r *Renderer) template(id string) (*template.Template, error) {
	r.mu.RLock()
	tmpl, ok := r.cache[id]
	r.mu.RUnlock()
	if ok {
		return tmpl, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if tmpl, ok := r.cache[id]; ok {
		return tmpl, nil
	}

	content, err := fs.ReadFile(r.fsys, id)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("read template %s: %w", id, err)
	}

	tmpl, err = template.New(id).Funcs(r.funcs).Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", id, err)
	}

	r.cache[id] = tmpl
	return tmpl, nil
}

// Flatten turns a model into template variables keyed by its JSON field
// names. Nested values become maps and slices of plain JSON values.
func Flatten(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("flatten: %w", err)
	}

	vars := make(map[string]any)
	if err := json.Unmarshal(data, &vars); err != nil {
		return nil, fmt.Errorf("flatten: %w", err)
	}
	return vars, nil
}
