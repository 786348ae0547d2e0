package dashboard

import "io"

// Renderer executes a named page or section template. Section units and the
// controller's HTML page share one instance.
type Renderer interface {
	Render(name string, data any, out ...io.Writer) (string, error)
}
