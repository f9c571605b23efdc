package mail

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

type Renderer struct {
	templates *template.Template
}

func NewRenderer() (*Renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse mail templates: %w", err)
	}
	return &Renderer{templates: tmpl}, nil
}

func (r *Renderer) Render(msg Message) (string, error) {
	name := string(msg.Template) + ".html"
	if r.templates.Lookup(name) == nil {
		return "", fmt.Errorf("%w: unknown template %q", ErrMalformedMessage, msg.Template)
	}

	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, name, msg.Vars); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}
