package ui

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// MarkdownRenderer wraps glamour for narrative rendering. A nil renderer
// degrades to raw text so a glamour initialization failure never blanks the
// overlay.
type MarkdownRenderer struct {
	renderer *glamour.TermRenderer
	width    int
}

// NewMarkdownRenderer creates a renderer wrapping at width.
func NewMarkdownRenderer(width int) *MarkdownRenderer {
	if width < 20 {
		width = 20
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return &MarkdownRenderer{width: width}
	}
	return &MarkdownRenderer{renderer: r, width: width}
}

// Width returns the wrap width the renderer was built for.
func (m *MarkdownRenderer) Width() int {
	return m.width
}

// Render converts markdown to styled terminal text.
func (m *MarkdownRenderer) Render(text string) string {
	if m == nil || m.renderer == nil {
		return text
	}
	rendered, err := m.renderer.Render(text)
	if err != nil {
		return text
	}
	// Strip trailing whitespace/newlines that glamour adds.
	return strings.TrimRight(rendered, " \n\r\t")
}
