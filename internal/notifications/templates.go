package notifications

import (
	"fmt"
	"html/template"
	"path/filepath"
)

// Email template names.
const (
	TemplateStatusChanged = "status_changed"
	TemplateRequestClosed = "request_closed"
)

// each .html file must define {{define "name:subject"}} and {{define "name:body"}} blocks,
// where name matches the filename without extension.
func LoadTemplates(dir string) (*template.Template, error) {
	pattern := filepath.Join(dir, "*.html")
	tmpl, err := template.ParseGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to load email templates from %s: %w", dir, err)
	}
	return tmpl, nil
}
