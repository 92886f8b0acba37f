package styles

import "github.com/charmbracelet/lipgloss"

var (
	TextPrimaryStyle   = lipgloss.NewStyle().Foreground(TextPrimary)
	TextSecondaryStyle = lipgloss.NewStyle().Foreground(TextSecondary)
	TextDimStyle       = lipgloss.NewStyle().Foreground(TextDim)
	TitleStyle         = lipgloss.NewStyle().Foreground(TitleText).Bold(true)
	BorderStyle        = lipgloss.NewStyle().Foreground(Border)
	KeyStyle           = lipgloss.NewStyle().Foreground(KeybindKey).Bold(true)
	KeyLabelStyle      = lipgloss.NewStyle().Foreground(KeybindLabel)

	// BadgeStyle is the base for the build status badge; callers set the
	// background from BuildColor.
	BadgeStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1).Foreground(lipgloss.Color("0"))
)
