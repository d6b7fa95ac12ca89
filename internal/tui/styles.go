package tui

import "github.com/charmbracelet/lipgloss"

var (
	highlight = lipgloss.AdaptiveColor{Light: "#5A3FC0", Dark: "#A78BFA"}
	subtle    = lipgloss.AdaptiveColor{Light: "#8A8A8A", Dark: "#6B6B6B"}
	good      = lipgloss.Color("#22C55E")
	bad       = lipgloss.Color("#EF4444")
	warn      = lipgloss.Color("#EAB308")
	info      = lipgloss.Color("#38BDF8")

	titleStyle       = lipgloss.NewStyle().Bold(true).Foreground(highlight)
	mutedStyle       = lipgloss.NewStyle().Foreground(subtle)
	summaryStyle     = lipgloss.NewStyle().Foreground(info)
	blockTitleStyle  = lipgloss.NewStyle().Bold(true).Foreground(subtle)
	keyStyle         = lipgloss.NewStyle().Foreground(subtle)
	badgeStyle       = lipgloss.NewStyle().Bold(true).Foreground(highlight)
	placeholderStyle = lipgloss.NewStyle().Italic(true).Foreground(subtle)
	headerCellStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
	activeTabStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#0B0B0B")).Background(highlight).Padding(0, 1)
	tabStyle         = lipgloss.NewStyle().Foreground(subtle).Padding(0, 1)
	panelStyle       = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(subtle).Padding(0, 1)
	focusPanelStyle  = panelStyle.Copy().BorderForeground(highlight)
	pillStyle        = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("#0B0B0B"))
)

func statusStyle(status string) lipgloss.Style {
	switch status {
	case "running":
		return pillStyle.Copy().Background(info)
	case "pending":
		return pillStyle.Copy().Background(warn)
	case "completed":
		return pillStyle.Copy().Background(good)
	case "failed":
		return pillStyle.Copy().Background(bad)
	default:
		return pillStyle.Copy().Background(subtle)
	}
}
