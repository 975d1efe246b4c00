package output

import "github.com/charmbracelet/lipgloss"

// ANSI 256-colour palette shared by the styled formatter.
const (
	ColorPrimary = lipgloss.Color("39")
	ColorSuccess = lipgloss.Color("42")
	ColorWarning = lipgloss.Color("214")
	ColorDanger  = lipgloss.Color("196")
	ColorMuted   = lipgloss.Color("245")
)

var (
	HeaderBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorPrimary).
			Padding(0, 1).
			MarginBottom(1)

	FooterBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorMuted).
			Padding(0, 1).
			MarginTop(1)
)

var (
	LabelStyle = lipgloss.NewStyle().Foreground(ColorMuted)
	ValueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	MutedStyle = lipgloss.NewStyle().Foreground(ColorMuted)
	PathStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	SizeStyle  = lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true)

	// Change kinds.
	CreatedStyle = lipgloss.NewStyle().Foreground(ColorSuccess).Bold(true)
	ChangedStyle = lipgloss.NewStyle().Foreground(ColorWarning).Bold(true)
	DeletedStyle = lipgloss.NewStyle().Foreground(ColorDanger).Bold(true)

	TableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(ColorMuted).
				PaddingRight(2)
)

// kindStyle returns the style used to render a change kind.
func kindStyle(kind string) lipgloss.Style {
	switch kind {
	case "created":
		return CreatedStyle
	case "deleted":
		return DeletedStyle
	default:
		return ChangedStyle
	}
}
