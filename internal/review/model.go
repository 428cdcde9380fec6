// Package review is an interactive picker for reclassification changes.
// Every suggested change starts selected; the user narrows the set and
// confirms, or quits without applying anything.
package review

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Veraticus/spice-sorter/internal/cli"
	"github.com/Veraticus/spice-sorter/internal/model"
)

// chromeLines is the space taken by the title, footer and help line.
const chromeLines = 6

const defaultPageSize = 15

// Model holds the review state.
type Model struct {
	help      help.Model
	keymap    KeyMap
	changes   []model.Change
	selected  []bool
	cursor    int
	offset    int
	height    int
	width     int
	confirmed bool
	quitting  bool
}

// New creates a model with every change selected.
func New(changes []model.Change) Model {
	selected := make([]bool, len(changes))
	for i := range selected {
		selected[i] = true
	}
	return Model{
		help:     help.New(),
		keymap:   DefaultKeyMap(),
		changes:  changes,
		selected: selected,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.scroll()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	last := len(m.changes) - 1

	switch {
	case key.Matches(msg, m.keymap.ForceQuit), key.Matches(msg, m.keymap.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keymap.Apply):
		m.confirmed = true
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keymap.ToggleHelp):
		m.help.ShowAll = !m.help.ShowAll

	case key.Matches(msg, m.keymap.Up):
		m.cursor = max(m.cursor-1, 0)
	case key.Matches(msg, m.keymap.Down):
		m.cursor = max(min(m.cursor+1, last), 0)
	case key.Matches(msg, m.keymap.PageUp):
		m.cursor = max(m.cursor-m.pageSize(), 0)
	case key.Matches(msg, m.keymap.PageDown):
		m.cursor = max(min(m.cursor+m.pageSize(), last), 0)
	case key.Matches(msg, m.keymap.Home):
		m.cursor = 0
	case key.Matches(msg, m.keymap.End):
		m.cursor = max(last, 0)

	case key.Matches(msg, m.keymap.ToggleSelect):
		if len(m.changes) > 0 {
			m.selected[m.cursor] = !m.selected[m.cursor]
		}
	case key.Matches(msg, m.keymap.SelectAll):
		m.setAll(true)
	case key.Matches(msg, m.keymap.DeselectAll):
		m.setAll(false)
	}

	m.scroll()
	return m, nil
}

func (m *Model) setAll(v bool) {
	for i := range m.selected {
		m.selected[i] = v
	}
}

func (m Model) pageSize() int {
	if m.height <= chromeLines {
		return defaultPageSize
	}
	return m.height - chromeLines
}

// scroll keeps the cursor inside the visible window.
func (m *Model) scroll() {
	page := m.pageSize()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+page {
		m.offset = m.cursor - page + 1
	}
}

// Confirmed reports whether the user chose to apply.
func (m Model) Confirmed() bool {
	return m.confirmed
}

// Selected returns the ids of the selected changes in display order.
func (m Model) Selected() []string {
	var ids []string
	for i, c := range m.changes {
		if m.selected[i] {
			ids = append(ids, c.TransactionID)
		}
	}
	return ids
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(cli.FormatTitle("Review suggested changes"))
	b.WriteString("\n")

	if len(m.changes) == 0 {
		b.WriteString(cli.FormatInfo("No changes suggested"))
		b.WriteString("\n")
	}

	end := min(m.offset+m.pageSize(), len(m.changes))
	for i := m.offset; i < end; i++ {
		b.WriteString(m.renderRow(i))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(cli.SubtleStyle.Render(fmt.Sprintf("%d of %d selected", len(m.Selected()), len(m.changes))))
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keymap))
	return b.String()
}

func (m Model) renderRow(i int) string {
	c := m.changes[i]

	pointer := "  "
	if i == m.cursor {
		pointer = cli.PromptStyle.Render(cli.ArrowIcon) + " "
	}
	box := "[ ]"
	if m.selected[i] {
		box = cli.SuccessStyle.Render("[x]")
	}

	return fmt.Sprintf("%s%s %s  %-28s  %s %s %s  %s",
		pointer,
		box,
		c.Date.Format(model.DateLayout),
		clip(c.Merchant, 28),
		c.CurrentCategory,
		cli.ArrowIcon,
		cli.BoldStyle.Render(c.SuggestedCategory),
		cli.SourceStyle(c.Source).Render(fmt.Sprintf("%s %.2f", c.Source, c.Confidence)),
	)
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// Run shows the picker and returns the ids the user confirmed, or nil when
// they quit without applying.
func Run(ctx context.Context, changes []model.Change, opts ...tea.ProgramOption) ([]string, error) {
	opts = append([]tea.ProgramOption{tea.WithContext(ctx)}, opts...)
	final, err := tea.NewProgram(New(changes), opts...).Run()
	if err != nil {
		return nil, fmt.Errorf("review failed: %w", err)
	}

	m, ok := final.(Model)
	if !ok || !m.Confirmed() {
		return nil, nil
	}
	return m.Selected(), nil
}
