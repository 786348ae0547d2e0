package dashboard

import (
	"embed"

	template "github.com/goliatone/go-template"
)

//go:embed templates/*.html templates/sections/*.html
var embeddedTemplates embed.FS

// NewTemplateRenderer returns a renderer over the built-in page layout
// (dashboard.html) and the section partials under sections/.
func NewTemplateRenderer() (Renderer, error) {
	return template.NewRenderer(
		template.WithFS(embeddedTemplates),
		template.WithBaseDir("templates"),
		template.WithExtension(".html"),
	)
}
