package tui

import "github.com/charmbracelet/lipgloss"

// Styles for the UI
var (
	accent = lipgloss.Color("#7D56F4")
	muted  = lipgloss.Color("#626262")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accent).
			Padding(0, 1)

	itemStyle = lipgloss.NewStyle()

	cursorItemStyle = lipgloss.NewStyle().
			Foreground(accent).
			Bold(true)

	selectedItemStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#FFD75F"))

	dirStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#5FAFFF"))

	helpStyle = lipgloss.NewStyle().
			Foreground(muted)

	pathStyle = lipgloss.NewStyle().
			Foreground(muted).
			Italic(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575")).
			Bold(true)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#874BFD")).
			Padding(1, 2)

	activePaneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 1)

	inactivePaneStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(muted).
				Padding(0, 1)

	dropTargetStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color("#04B575")).
			Padding(0, 1)

	popupStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(1, 2).
			Width(50)

	confirmStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#FF0000")).
			Padding(1, 2).
			Width(60)

	menuStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(accent)

	menuHoverStyle = lipgloss.NewStyle().
			Background(accent).
			Foreground(lipgloss.Color("#FFFFFF"))
)
