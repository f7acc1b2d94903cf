package api

import (
	"embed"
	"html/template"
	"strings"
)

//go:embed templates/*
var templateFS embed.FS

// newTemplates parses the HTML templates with custom functions.
func newTemplates() *template.Template {
	funcs := template.FuncMap{
		"upper": strings.ToUpper,
		"percent": func(n, max int) int {
			if max <= 0 || n <= 0 {
				return 0
			}
			if n >= max {
				return 100
			}
			return n * 100 / max
		},
	}
	return template.Must(template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.html"))
}
