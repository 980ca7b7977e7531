// Package vmtop is the terminal dashboard: an entity list on the left and
// CPU, memory and network tabs for the selected entity on the right.
package vmtop

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/tree"
	"go.uber.org/zap"

	"github.com/jondoveston/vmtop/internal/pipeline"
)

type Options struct {
	Refresher       *pipeline.Refresher
	Selection       *pipeline.Selection
	SourceName      string
	RefreshInterval time.Duration
	Logger          *zap.Logger
}

type dashboardModel struct {
	ctx        context.Context
	refresher  *pipeline.Refresher
	store      *pipeline.Store
	selection  *pipeline.Selection
	sourceName string
	interval   time.Duration
	logger     *zap.Logger

	entities  []string
	cursor    int
	tabs      *TabSet
	inflight  int
	fetched   bool
	fetchedAt time.Time
	lastErr   error
	width     int
	height    int
	ready     bool
}

type tickMsg time.Time

// resultMsg carries the outcome of one refresh cycle back to Update.
type resultMsg struct {
	res *pipeline.Result
	err error
}

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// NewDashboard builds the model. Init starts the first refresh, so inflight
// starts at one.
func NewDashboard(ctx context.Context, opts Options) *dashboardModel {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	interval := opts.RefreshInterval
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	selection := opts.Selection
	if selection == nil {
		selection = pipeline.NewSelection(nil)
	}

	return &dashboardModel{
		ctx:        ctx,
		refresher:  opts.Refresher,
		store:      opts.Refresher.Store(),
		selection:  selection,
		sourceName: opts.SourceName,
		interval:   interval,
		logger:     logger,
		tabs:       NewTabSet(),
		inflight:   1,
	}
}

func (m dashboardModel) refreshCmd() tea.Cmd {
	return func() tea.Msg {
		res, err := m.refresher.Refresh(m.ctx)
		return resultMsg{res: res, err: err}
	}
}

func (m dashboardModel) Init() tea.Cmd {
	return tea.Batch(m.refreshCmd(), tickCmd(m.interval))
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "j", "down":
			m = m.moveCursor(m.cursor + 1)
		case "k", "up":
			m = m.moveCursor(m.cursor - 1)
		case "g", "home":
			m = m.moveCursor(0)
		case "G", "end":
			m = m.moveCursor(len(m.entities) - 1)
		case "]", "tab", "l", "right":
			m.tabs.NextTab()
		case "[", "shift+tab", "h", "left":
			m.tabs.PrevTab()
		case "1", "2", "3":
			m.tabs.SelectTab(int(msg.Runes[0] - '1'))
		case "r":
			// supersedes any cycle still running
			m.inflight++
			return m, m.refreshCmd()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true

	case tickMsg:
		if m.inflight > 0 {
			return m, tickCmd(m.interval)
		}
		m.inflight++
		return m, tea.Batch(m.refreshCmd(), tickCmd(m.interval))

	case resultMsg:
		m.inflight = max(m.inflight-1, 0)
		switch {
		case errors.Is(msg.err, pipeline.ErrSuperseded):
		case msg.err != nil:
			m.lastErr = msg.err
			m.logger.Debug("refresh failed", zap.Error(msg.err))
		default:
			m.lastErr = nil
			m = m.apply(msg.res)
		}
	}

	return m, nil
}

// apply adopts a published result: the first non-empty list picks the default
// selection and the cursor follows the selected id when it is still listed.
func (m dashboardModel) apply(res *pipeline.Result) dashboardModel {
	m.fetched = true
	m.fetchedAt = res.FetchedAt
	m.entities = res.Entities
	m.selection.SelectDefault(m.entities)

	if id, ok := m.selection.Current(); ok {
		for i, e := range m.entities {
			if e == id {
				m.cursor = i
				return m
			}
		}
	}
	m.cursor = min(m.cursor, max(len(m.entities)-1, 0))
	return m
}

// moveCursor clamps i to the list and selects the entity under the cursor.
func (m dashboardModel) moveCursor(i int) dashboardModel {
	if len(m.entities) == 0 {
		return m
	}
	m.cursor = min(max(i, 0), len(m.entities)-1)
	if id, ok := m.selection.Current(); !ok || id != m.entities[m.cursor] {
		m.selection.Select(m.entities[m.cursor])
	}
	return m
}

func (m dashboardModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	var body string
	if len(m.entities) == 0 {
		body = m.renderEmpty()
	} else {
		layout := NewLayout(m.width, m.height, m.store.MaxEntityNameLen())
		list := NewPane("", layout.ListWidth, layout.PaneHeight).
			SetContent(m.renderEntityList(layout.PaneHeight))
		charts := NewPane("", layout.ChartWidth, layout.PaneHeight).
			SetContent(m.renderCharts(layout.ChartWidth, layout.PaneHeight)).
			SetFocused(true)
		body = Horizontal(list, charts)
	}

	return body + "\n" + m.renderHelpBar()
}

func (m dashboardModel) renderEmpty() string {
	text := "Loading entities..."
	if m.fetched {
		text = "No entities"
		if m.sourceName != "" {
			text += " reported by " + m.sourceName
		}
		text += "\n\nPress 'r' to refresh or 'q' to quit"
	}
	return lipgloss.Place(
		m.width,
		max(m.height-helpBarHeight, 1),
		lipgloss.Center,
		lipgloss.Center,
		lipgloss.NewStyle().Foreground(colorMuted).Padding(2, 4).Render(text),
	)
}

// renderEntityList draws the entities as children of the source, scrolled so
// the cursor stays visible.
func (m dashboardModel) renderEntityList(height int) string {
	selectedStyle := lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	rootStyle := lipgloss.NewStyle().Foreground(colorHeader).Bold(true)

	root := m.sourceName
	if root == "" {
		root = "entities"
	}
	t := tree.New().Root(rootStyle.Render(fmt.Sprintf("%s (%d)", root, len(m.entities))))

	current, _ := m.selection.Current()
	from, to := visibleRange(len(m.entities), m.cursor, height-1)
	for i := from; i < to; i++ {
		id := m.entities[i]
		switch {
		case i == m.cursor:
			t = t.Child(selectedStyle.Render("▶ " + id))
		case id == current:
			t = t.Child(selectedStyle.Render(id))
		default:
			t = t.Child(id)
		}
	}
	return t.String()
}

func (m dashboardModel) renderCharts(width, height int) string {
	id, selected := m.selection.Current()
	if !selected {
		return muted("Select an entity to view metrics")
	}
	bundle, found := m.refresher.Bundle(m.selection)
	if !found && m.fetched {
		return lipgloss.NewStyle().Foreground(colorHeader).Bold(true).Render(id) + "\n" +
			muted("No longer reported by the source")
	}
	return m.tabs.SetSize(width, height).Render(id, bundle, found)
}

func (m dashboardModel) renderHelpBar() string {
	help := "j/k=Select  []=Switch Tabs  1-3=Tab  r=Refresh  q=Quit"

	var status string
	switch {
	case m.inflight > 0:
		status = "refreshing..."
	case m.lastErr != nil:
		status = lipgloss.NewStyle().Foreground(colorWarning).Render("refresh failed: " + m.lastErr.Error())
	case !m.fetchedAt.IsZero():
		status = "updated " + m.fetchedAt.Local().Format("15:04:05")
	}

	bar := lipgloss.NewStyle().
		Foreground(colorMuted).
		Background(colorBar).
		Width(m.width)
	gap := max(m.width-lipgloss.Width(help)-lipgloss.Width(status)-2, 1)
	return bar.Render(" " + help + strings.Repeat(" ", gap) + status)
}

// visibleRange returns the window [from, to) of n rows of which at most
// height fit, keeping cursor inside it.
func visibleRange(n, cursor, height int) (int, int) {
	if height <= 0 || n <= height {
		return 0, n
	}
	from := min(max(cursor-height/2, 0), n-height)
	return from, from + height
}

// Dashboard runs the TUI until the user quits or ctx ends.
func Dashboard(ctx context.Context, opts Options) error {
	p := tea.NewProgram(NewDashboard(ctx, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("running dashboard: %w", err)
	}
	return nil
}
