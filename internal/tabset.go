package vmtop

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jondoveston/vmtop/internal/model"
)

// TabSet renders one ChartBundle as a set of tabs, one per ChartKind.
type TabSet struct {
	kinds       []ChartKind
	selectedTab int
	width       int
	height      int
}

func NewTabSet(kinds ...ChartKind) *TabSet {
	if len(kinds) == 0 {
		kinds = ChartKinds
	}
	return &TabSet{
		kinds:  kinds,
		width:  40,
		height: 10,
	}
}

func (ts *TabSet) SetSize(width, height int) *TabSet {
	ts.width = width
	ts.height = height
	return ts
}

// SelectTab changes the active tab; out of range indexes are ignored.
func (ts *TabSet) SelectTab(index int) *TabSet {
	if index >= 0 && index < len(ts.kinds) {
		ts.selectedTab = index
	}
	return ts
}

// NextTab moves to the next tab (wraps around)
func (ts *TabSet) NextTab() *TabSet {
	ts.selectedTab = (ts.selectedTab + 1) % len(ts.kinds)
	return ts
}

// PrevTab moves to the previous tab (wraps around)
func (ts *TabSet) PrevTab() *TabSet {
	ts.selectedTab = (ts.selectedTab - 1 + len(ts.kinds)) % len(ts.kinds)
	return ts
}

func (ts *TabSet) Selected() ChartKind {
	return ts.kinds[ts.selectedTab]
}

// Render draws the title, the tab bar and the active chart.
func (ts *TabSet) Render(title string, bundle model.ChartBundle, found bool) string {
	var b strings.Builder

	b.WriteString(lipgloss.NewStyle().Foreground(colorHeader).Bold(true).Render(title))
	if span := dateSpan(bundle); span != "" {
		b.WriteString(lipgloss.NewStyle().Foreground(colorMuted).Render("  " + span))
	}
	b.WriteString("\n")
	b.WriteString(ts.renderTabs())
	b.WriteString("\n")

	// title line plus the three line tab bar
	height := ts.height - 4

	switch {
	case !found:
		b.WriteString(muted("Waiting for data..."))
	case bundle.Len() == 0:
		b.WriteString(muted("No samples for " + title))
	default:
		b.WriteString(ts.renderChart(bundle, ts.width, height))
	}
	return b.String()
}

func (ts *TabSet) renderTabs() string {
	active := lipgloss.NewStyle().
		Foreground(colorAccent).
		Background(colorBar).
		Bold(true).
		Padding(0, 1).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorAccent)

	inactive := lipgloss.NewStyle().
		Foreground(colorMuted).
		Padding(0, 1).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorDim)

	tabs := make([]string, len(ts.kinds))
	for i, k := range ts.kinds {
		label := fmt.Sprintf("%d %s", i+1, k.Label())
		if i == ts.selectedTab {
			tabs[i] = active.Render(label)
		} else {
			tabs[i] = inactive.Render(label)
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (ts *TabSet) renderChart(bundle model.ChartBundle, width, height int) string {
	var lines []string
	var table *WrapTable

	switch kind := ts.Selected(); kind {
	case ChartCPU, ChartMemory:
		points := bundle.CPUData
		header := "CPU"
		if kind == ChartMemory {
			points = bundle.RAMData
			header = "RAM"
		}

		values := make([]float64, len(points))
		rows := make([][]string, len(points))
		for i, p := range points {
			values[i] = p.Percentage
			rows[i] = []string{formatClock(p.Date), fmt.Sprintf("%.1f%%", p.Percentage)}
		}

		lines = append(lines,
			summary(values, "%.1f%%"),
			spark(values, width, 100, chartColor(kind)),
		)
		table = NewWrapTable().Headers("Time", header).Rows(rows...)

	case ChartNetwork:
		rx := make([]float64, len(bundle.NetData))
		tx := make([]float64, len(bundle.NetData))
		rows := make([][]string, len(bundle.NetData))
		for i, p := range bundle.NetData {
			rx[i], tx[i] = p.Rx, p.Tx
			rows[i] = []string{formatClock(p.Date), formatQuantity(p.Rx), formatQuantity(p.Tx)}
		}

		lines = append(lines,
			"rx "+summary(rx, "%s"),
			"rx "+spark(rx, width-3, 0, colorReceive),
			"tx "+summary(tx, "%s"),
			"tx "+spark(tx, width-3, 0, colorTransmit),
		)
		table = NewWrapTable().Headers("Time", "Rx", "Tx").Rows(rows...)
	}

	remaining := height - len(lines) - 1
	if table != nil && remaining >= 5 {
		lines = append(lines, "", table.MaxHeight(remaining).MaxWidth(width).Render())
	}
	return strings.Join(lines, "\n")
}

// summary reports the latest, average and peak of values. Percent formats
// take the value directly; "%s" formats go through formatQuantity.
func summary(values []float64, format string) string {
	if len(values) == 0 {
		return ""
	}
	latest, peak, sum := values[len(values)-1], values[0], 0.0
	for _, v := range values {
		sum += v
		peak = max(peak, v)
	}
	avg := sum / float64(len(values))

	f := func(v float64) string {
		if format == "%s" {
			return formatQuantity(v)
		}
		return fmt.Sprintf(format, v)
	}
	return fmt.Sprintf("now %s  avg %s  max %s", f(latest), f(avg), f(peak))
}

func spark(values []float64, width int, ceiling float64, color lipgloss.Color) string {
	return lipgloss.NewStyle().Foreground(color).Render(Sparkline(values, width, ceiling))
}

func muted(s string) string {
	return lipgloss.NewStyle().Foreground(colorMuted).Render(s)
}

// dateSpan describes the days covered by the bundle, e.g. "Jan 5, 2024" or
// "Jan 5, 2024 to Jan 6, 2024".
func dateSpan(bundle model.ChartBundle) string {
	points := bundle.CPUData
	if len(points) == 0 {
		return ""
	}
	first, last := FormatDate(points[0].Date), FormatDate(points[len(points)-1].Date)
	if first == last {
		return first
	}
	return first + " to " + last
}

// formatQuantity abbreviates v with SI suffixes.
func formatQuantity(v float64) string {
	units := []string{"", "k", "M", "G", "T"}
	i := 0
	for (v >= 1000 || v <= -1000) && i < len(units)-1 {
		v /= 1000
		i++
	}
	if i == 0 {
		return fmt.Sprintf("%.1f", v)
	}
	return fmt.Sprintf("%.1f%s", v, units[i])
}
