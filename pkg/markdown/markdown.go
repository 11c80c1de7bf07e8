// Package markdown renders assistant replies for terminal display.
package markdown

import (
	"github.com/charmbracelet/glamour"
)

// Renderer wraps a glamour terminal renderer.
type Renderer struct {
	tr *glamour.TermRenderer
}

// New builds a renderer with automatic light/dark styling wrapped at width.
func New(width int) (*Renderer, error) {
	tr, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, err
	}
	return &Renderer{tr: tr}, nil
}

// Render formats text as markdown, falling back to the raw text when
// rendering fails.
func (r *Renderer) Render(text string) string {
	out, err := r.tr.Render(text)
	if err != nil {
		return text
	}
	return out
}
