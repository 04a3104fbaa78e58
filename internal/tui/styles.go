package tui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
	cursorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	confirmStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("196")).Padding(0, 1)
	cardStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).Padding(0, 1)
	activeCard   = cardStyle.BorderForeground(lipgloss.Color("212"))
	dataStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("250")).PaddingLeft(4)
)

// wideWidth is the terminal width from which rows render as a table
// instead of cards.
const wideWidth = 90

// columns of the wide layout
var colWidths = []int{6, 22, 26, 27}

func cell(s string, width int) string {
	r := []rune(s)
	if len(r) > width-1 {
		r = append(r[:width-2], '…')
	}
	return lipgloss.NewStyle().Width(width).Render(string(r))
}
