package vmtop

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Pane is a bordered box with an optional title line. Width and height are
// the content area; the border adds one cell on each side.
type Pane struct {
	title   string
	content string
	width   int
	height  int
	focused bool
}

func NewPane(title string, width, height int) Pane {
	return Pane{title: title, width: max(width, 1), height: max(height, 1)}
}

func (p Pane) SetContent(content string) Pane {
	p.content = content
	return p
}

func (p Pane) SetFocused(focused bool) Pane {
	p.focused = focused
	return p
}

func (p Pane) Render() string {
	border := colorMuted
	if p.focused {
		border = colorAccent
	}

	var b strings.Builder
	if p.title != "" {
		b.WriteString(lipgloss.NewStyle().Foreground(colorTitle).Bold(true).Render(p.title))
		b.WriteString("\n")
	}
	b.WriteString(p.content)

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Width(p.width).
		Height(p.height).
		MaxHeight(p.height + 2).
		Render(b.String())
}
