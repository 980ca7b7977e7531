package vmtop

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// WrapTable renders rows into one or more side-by-side lipgloss tables so the
// result never exceeds maxHeight lines. When even the side-by-side tables do
// not fit maxWidth, the oldest rows are dropped and the newest ones are kept.
type WrapTable struct {
	headers     []string
	rows        [][]string
	maxHeight   int
	maxWidth    int
	borderStyle lipgloss.Style
}

func NewWrapTable() *WrapTable {
	return &WrapTable{
		borderStyle: lipgloss.NewStyle().Foreground(colorMuted),
	}
}

func (wt *WrapTable) Headers(headers ...string) *WrapTable {
	wt.headers = headers
	return wt
}

func (wt *WrapTable) Rows(rows ...[]string) *WrapTable {
	wt.rows = rows
	return wt
}

func (wt *WrapTable) MaxHeight(height int) *WrapTable {
	wt.maxHeight = height
	return wt
}

func (wt *WrapTable) MaxWidth(width int) *WrapTable {
	wt.maxWidth = width
	return wt
}

func (wt *WrapTable) BorderStyle(style lipgloss.Style) *WrapTable {
	wt.borderStyle = style
	return wt
}

// rowsPerTable accounts for the header line and the top, bottom and header
// separator borders.
func (wt *WrapTable) rowsPerTable() int {
	if wt.maxHeight <= 0 {
		return len(wt.rows)
	}
	return max(wt.maxHeight-4, 1)
}

func (wt *WrapTable) table(rows [][]string) string {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(wt.borderStyle).
		Headers(wt.headers...).
		Rows(rows...).
		String()
}

func (wt *WrapTable) Render() string {
	if len(wt.rows) == 0 {
		return ""
	}

	per := wt.rowsPerTable()
	if len(wt.rows) <= per {
		return wt.table(wt.rows)
	}

	// how many columns of tables fit, measured on a full chunk
	columns := (len(wt.rows) + per - 1) / per
	if wt.maxWidth > 0 {
		w := lipgloss.Width(wt.table(wt.rows[:per]))
		columns = min(columns, max(wt.maxWidth/max(w, 1), 1))
	}

	rows := wt.rows
	if keep := columns * per; len(rows) > keep {
		rows = rows[len(rows)-keep:]
	}

	tables := make([]string, 0, columns)
	for i := 0; i < len(rows); i += per {
		tables = append(tables, wt.table(rows[i:min(i+per, len(rows))]))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tables...)
}

func (wt *WrapTable) String() string {
	return wt.Render()
}
