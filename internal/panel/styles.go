package panel

import "github.com/charmbracelet/lipgloss"

// --- Palette ---

var (
	colorText   = lipgloss.AdaptiveColor{Light: "#121212", Dark: "#E6E6E6"}
	colorMuted  = lipgloss.AdaptiveColor{Light: "#4A4A4A", Dark: "#A0A0A0"}
	colorAccent = lipgloss.AdaptiveColor{Light: "#005F9E", Dark: "#6EB6FF"}
	colorGreen  = lipgloss.AdaptiveColor{Light: "#1B6F3A", Dark: "#5FD787"}
	colorYellow = lipgloss.AdaptiveColor{Light: "#7A5200", Dark: "#FFD787"}
	colorRed    = lipgloss.AdaptiveColor{Light: "#A02424", Dark: "#FF8787"}
)

// --- Styles ---

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	labelStyle    = lipgloss.NewStyle().Width(11).Foreground(colorMuted)
	activeStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorText).Underline(true)
	inactiveStyle = lipgloss.NewStyle().Foreground(colorMuted)
	helpStyle     = lipgloss.NewStyle().Foreground(colorMuted)
	okStyle       = lipgloss.NewStyle().Foreground(colorGreen)
	pendingStyle  = lipgloss.NewStyle().Foreground(colorYellow)
	errorStyle    = lipgloss.NewStyle().Foreground(colorRed)
	boxStyle      = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorAccent).
			Padding(1, 2)
)
