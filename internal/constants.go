package vmtop

import (
	"time"

	"github.com/charmbracelet/lipgloss"
)

const (
	// DefaultRefreshInterval is used when the dashboard is started without one.
	DefaultRefreshInterval = 5 * time.Second

	// minListWidth keeps the entity list readable with short names.
	minListWidth = 16

	// helpBarHeight is the status line plus its separator.
	helpBarHeight = 2
)

var (
	colorMuted    = lipgloss.Color("240")
	colorDim      = lipgloss.Color("236")
	colorBar      = lipgloss.Color("235")
	colorAccent   = lipgloss.Color("170")
	colorHeader   = lipgloss.Color("214")
	colorTitle    = lipgloss.Color("33")
	colorWarning  = lipgloss.Color("203")
	colorCPU      = lipgloss.Color("39")
	colorMemory   = lipgloss.Color("78")
	colorReceive  = lipgloss.Color("141")
	colorTransmit = lipgloss.Color("208")
)

func chartColor(k ChartKind) lipgloss.Color {
	switch k {
	case ChartMemory:
		return colorMemory
	case ChartNetwork:
		return colorReceive
	default:
		return colorCPU
	}
}
