package main

import (
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var embeddedFiles embed.FS

var templateFuncs = template.FuncMap{
	"percent": func(score float32) string {
		return fmt.Sprintf("%.1f%%", score*100)
	},
	"coord": func(v float32) string {
		return fmt.Sprintf("%.3f", v)
	},
}

// loadTemplates parses the upload form and result page out of the binary.
func loadTemplates() (*template.Template, error) {
	tmpl, err := template.New("").Funcs(templateFuncs).ParseFS(embeddedFiles, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse embedded templates: %w", err)
	}
	for _, name := range []string{indexTemplate, resultTemplate} {
		if tmpl.Lookup(name) == nil {
			return nil, fmt.Errorf("embedded template %s not found", name)
		}
	}
	return tmpl, nil
}
