package vmtop

import (
	"github.com/charmbracelet/lipgloss"
)

// Layout splits the terminal between the entity list on the left and the
// chart tabs on the right, above a one-line help bar.
type Layout struct {
	ListWidth   int
	ChartWidth  int
	PaneHeight  int
	TotalWidth  int
	TotalHeight int
}

// NewLayout sizes the list to fit the longest entity name, capped at a third
// of the screen. Sizes are content sizes; pane borders are subtracted.
func NewLayout(width, height, longestName int) Layout {
	list := max(longestName+4, minListWidth)
	list = min(list, max(width/3, minListWidth))

	return Layout{
		ListWidth:   list,
		ChartWidth:  max(width-list-4, 10),
		PaneHeight:  max(height-helpBarHeight-2, 3),
		TotalWidth:  width,
		TotalHeight: height,
	}
}

// Horizontal renders panes side by side.
func Horizontal(panes ...Pane) string {
	views := make([]string, len(panes))
	for i, pane := range panes {
		views[i] = pane.Render()
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, views...)
}
