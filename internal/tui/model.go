// Package tui is the interactive query history browser of weatherctl.
package tui

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/i474232898/weather-lookup/internal/history"
	"github.com/i474232898/weather-lookup/internal/retry"
)

// Options configures the browser.
type Options struct {
	PageSize int
	Retry    retry.Policy
	LogFile  string
}

type snapshotMsg history.Snapshot

// opDoneMsg reports a finished blocking table operation.
type opDoneMsg struct {
	op  string
	err error
}

const (
	fieldLocation = iota
	fieldStart
	fieldEnd
)

// Model renders a history.Table and maps keys onto its operations.
type Model struct {
	ctx      context.Context
	table    *history.Table
	changes  chan history.Snapshot
	attempts int

	snap   history.Snapshot
	cursor int
	width  int

	inputs []textinput.Model
	focus  int
}

// New creates a Model over store. The first page is requested by Init.
func New(ctx context.Context, store history.Store, opts Options) Model {
	changes := make(chan history.Snapshot, 1)
	table := history.New(store, history.Options{
		PageSize: opts.PageSize,
		Retry:    opts.Retry,
		OnChange: func(s history.Snapshot) { publish(changes, s) },
	})

	attempts := opts.Retry.MaxAttempts
	if attempts <= 0 {
		attempts = history.DefaultRetryAttempts
	}

	inputs := make([]textinput.Model, 3)
	for i, p := range []string{"Location", "YYYY-MM-DD", "YYYY-MM-DD"} {
		ti := textinput.New()
		ti.Placeholder = p
		ti.CharLimit = 120
		inputs[i] = ti
	}
	inputs[fieldLocation].Prompt = "Location: "
	inputs[fieldStart].Prompt = "Start: "
	inputs[fieldEnd].Prompt = "End: "

	return Model{
		ctx:      ctx,
		table:    table,
		changes:  changes,
		attempts: attempts,
		snap:     table.Snapshot(),
		width:    wideWidth,
		inputs:   inputs,
	}
}

// publish keeps only the newest snapshot in ch.
func publish(ch chan history.Snapshot, s history.Snapshot) {
	for {
		select {
		case ch <- s:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func (m Model) waitForChange() tea.Msg {
	select {
	case s := <-m.changes:
		return snapshotMsg(s)
	case <-m.ctx.Done():
		return nil
	}
}

func (m Model) run(op string, fn func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return opDoneMsg{op: op, err: fn(m.ctx)}
	}
}

// Init starts the first page fetch and the change listener.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.waitForChange, m.run("load", m.table.Load))
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case snapshotMsg:
		m.setSnapshot(history.Snapshot(msg))
		return m, m.waitForChange

	case opDoneMsg:
		if msg.err != nil && !errors.Is(msg.err, history.ErrBusy) {
			log.Printf("DEBUG: %s: %v", msg.op, msg.err)
		}
		m.setSnapshot(m.table.Snapshot())
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch {
		case m.snap.Edit != nil:
			return m.updateEditing(msg)
		case m.snap.Pending != 0:
			return m.updateConfirm(msg)
		default:
			return m.updateBrowsing(msg)
		}
	}
	return m, nil
}

func (m *Model) setSnapshot(s history.Snapshot) {
	m.snap = s
	if m.cursor >= len(s.Rows) {
		m.cursor = len(s.Rows) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m Model) selected() (history.Row, bool) {
	if m.cursor < 0 || m.cursor >= len(m.snap.Rows) {
		return history.Row{}, false
	}
	return m.snap.Rows[m.cursor], true
}

func (m Model) updateBrowsing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, keys.Down):
		if m.cursor < len(m.snap.Rows)-1 {
			m.cursor++
		}
	case key.Matches(msg, keys.View):
		if row, ok := m.selected(); ok {
			_ = m.table.ToggleExpand(row.ID)
			m.setSnapshot(m.table.Snapshot())
		}
	case key.Matches(msg, keys.Edit):
		row, ok := m.selected()
		if !ok || m.table.StartEdit(row.ID) != nil {
			return m, nil
		}
		m.setSnapshot(m.table.Snapshot())
		m.inputs[fieldLocation].SetValue(row.Location)
		m.inputs[fieldStart].SetValue(row.StartDate)
		m.inputs[fieldEnd].SetValue(row.EndDate)
		return m, m.focusField(fieldLocation)
	case key.Matches(msg, keys.Delete):
		if row, ok := m.selected(); ok {
			_ = m.table.RequestDelete(row.ID)
			m.setSnapshot(m.table.Snapshot())
		}
	case key.Matches(msg, keys.More):
		if m.snap.HasMore && !m.snap.Status.InProgress() {
			return m, m.run("load more", m.table.LoadMore)
		}
	case key.Matches(msg, keys.Reload):
		return m, m.run("reload", m.table.Reload)
	}
	return m, nil
}

func (m Model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.snap.Deleting {
		return m, nil
	}
	switch {
	case key.Matches(msg, keys.Confirm):
		return m, m.run("delete", m.table.ConfirmDelete)
	case key.Matches(msg, keys.Deny):
		m.table.CancelDelete()
		m.setSnapshot(m.table.Snapshot())
	}
	return m, nil
}

func (m Model) updateEditing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.snap.Edit.Saving {
		return m, nil
	}
	switch {
	case key.Matches(msg, keys.Cancel):
		m.table.CancelEdit()
		m.blurAll()
		m.setSnapshot(m.table.Snapshot())
		return m, nil
	case key.Matches(msg, keys.Next):
		return m, m.focusField((m.focus + 1) % len(m.inputs))
	case key.Matches(msg, keys.Prev):
		return m, m.focusField((m.focus + len(m.inputs) - 1) % len(m.inputs))
	case key.Matches(msg, keys.Save):
		if err := m.table.SetForm(m.form()); err != nil {
			return m, nil
		}
		m.setSnapshot(m.table.Snapshot())
		return m, m.run("save", m.table.SaveEdit)
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m Model) form() history.EditForm {
	return history.EditForm{
		Location:  strings.TrimSpace(m.inputs[fieldLocation].Value()),
		StartDate: strings.TrimSpace(m.inputs[fieldStart].Value()),
		EndDate:   strings.TrimSpace(m.inputs[fieldEnd].Value()),
	}
}

func (m *Model) focusField(i int) tea.Cmd {
	m.blurAll()
	m.focus = i
	return m.inputs[i].Focus()
}

func (m *Model) blurAll() {
	for i := range m.inputs {
		m.inputs[i].Blur()
	}
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Weather query history"))
	b.WriteString("\n\n")

	if line := m.statusLine(); line != "" {
		b.WriteString(line)
		b.WriteString("\n\n")
	}

	switch {
	case m.snap.Placeholder():
		b.WriteString(mutedStyle.Render("Loading records…"))
		b.WriteString("\n")
	case m.snap.Empty():
		b.WriteString(mutedStyle.Render("No records yet. Create one with `weatherctl queries create`."))
		b.WriteString("\n")
	case m.width >= wideWidth:
		b.WriteString(m.wideView())
	default:
		b.WriteString(m.narrowView())
	}

	if m.snap.HasMore {
		b.WriteString("\n")
		b.WriteString(mutedStyle.Render("More records available: press m to load more."))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(mutedStyle.Render(m.help()))
	return b.String()
}

func (m Model) statusLine() string {
	switch m.snap.Status {
	case history.StatusLoading:
		if len(m.snap.Rows) > 0 {
			return mutedStyle.Render("Loading…")
		}
	case history.StatusConnecting:
		return warnStyle.Render(fmt.Sprintf("Connecting to server… (attempt %d of %d)", m.snap.Attempt, m.attempts))
	}
	if m.snap.Error != "" {
		return errorStyle.Render(m.snap.Error + " Press r to try again.")
	}
	return ""
}

func (m Model) help() string {
	switch {
	case m.snap.Edit != nil:
		return helpLine(keys.Next, keys.Save, keys.Cancel)
	case m.snap.Pending != 0:
		return helpLine(keys.Confirm, keys.Deny)
	default:
		return helpLine(keys.Up, keys.Down, keys.View, keys.Edit, keys.Delete, keys.More, keys.Reload, keys.Quit)
	}
}

func (m Model) marker(i int) string {
	if i == m.cursor {
		return cursorStyle.Render("›") + " "
	}
	return "  "
}

func (m Model) wideView() string {
	var b strings.Builder
	header := []string{"ID", "Location", "Resolved", "Dates"}
	cells := make([]string, len(header))
	for i, h := range header {
		cells[i] = cell(h, colWidths[i])
	}
	b.WriteString("  " + headerStyle.Render(lipgloss.JoinHorizontal(lipgloss.Top, cells...)) + "  " + headerStyle.Render("Created"))
	b.WriteString("\n")

	for i, row := range m.snap.Rows {
		line := lipgloss.JoinHorizontal(lipgloss.Top,
			cell(fmt.Sprintf("#%d", row.ID), colWidths[0]),
			cell(row.Location, colWidths[1]),
			cell(row.Resolved(), colWidths[2]),
			cell(row.DateRange(), colWidths[3]),
		)
		b.WriteString(m.marker(i) + line + "  " + row.CreatedAt.Day())
		b.WriteString("\n")
		b.WriteString(m.rowDetail(row))
	}
	return b.String()
}

func (m Model) narrowView() string {
	var b strings.Builder
	for i, row := range m.snap.Rows {
		body := fmt.Sprintf("#%d %s\n%s\n%s", row.ID, row.Location, mutedStyle.Render(row.Resolved()), row.DateRange())
		style := cardStyle
		if i == m.cursor {
			style = activeCard
		}
		if w := m.width - 2; w > 10 {
			style = style.Width(w)
		}
		b.WriteString(style.Render(body))
		b.WriteString("\n")
		b.WriteString(m.rowDetail(row))
	}
	return b.String()
}

func (m Model) rowDetail(row history.Row) string {
	var b strings.Builder
	if row.Editing && m.snap.Edit != nil {
		for _, in := range m.inputs {
			b.WriteString("    " + in.View() + "\n")
		}
		if m.snap.Edit.Saving {
			b.WriteString("    " + mutedStyle.Render("Saving…") + "\n")
		}
		if m.snap.Edit.Err != "" {
			b.WriteString("    " + errorStyle.Render(m.snap.Edit.Err) + "\n")
		}
	}
	if row.Pending {
		msg := fmt.Sprintf("Delete record #%d? This cannot be undone. (y/n)", row.ID)
		if m.snap.Deleting {
			msg = fmt.Sprintf("Deleting record #%d…", row.ID)
		}
		b.WriteString(confirmStyle.Render(msg) + "\n")
	}
	if row.Expanded {
		b.WriteString(dataStyle.Render(row.PrettyWeatherData()) + "\n")
	}
	return b.String()
}
