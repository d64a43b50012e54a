// Package render turns a template id plus field values into a document
// artifact. Documents are rendered as standalone HTML; PDF conversion happens
// downstream of this service.
package render

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

// ContentTypeHTML is the media type of every rendered artifact.
const ContentTypeHTML = "text/html; charset=utf-8"

// ErrTemplateNotFound is returned for an unknown template id.
var ErrTemplateNotFound = errors.New("template not found")

// Artifact is a rendered document.
type Artifact struct {
	Data        []byte
	ContentType string
}

type HTMLRenderer struct {
	templates *template.Template
}

func NewHTMLRenderer() (*HTMLRenderer, error) {
	t, err := template.New("").Funcs(template.FuncMap{
		"upper": strings.ToUpper,
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse document templates: %w", err)
	}
	return &HTMLRenderer{templates: t}, nil
}

// Has reports whether templateID exists.
func (r *HTMLRenderer) Has(templateID string) bool {
	return r.templates.Lookup(templateID+".html") != nil
}

func (r *HTMLRenderer) Render(_ context.Context, templateID string, fields map[string]any) (Artifact, error) {
	if !r.Has(templateID) {
		return Artifact{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, templateID)
	}
	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, templateID+".html", fields); err != nil {
		return Artifact{}, fmt.Errorf("render %s: %w", templateID, err)
	}
	return Artifact{Data: buf.Bytes(), ContentType: ContentTypeHTML}, nil
}
