// Package cli is the terminal front end: a console chat gateway rendered with
// lipgloss, context-aware line input, and Ctrl-C handling.
package cli

import (
	"github.com/charmbracelet/lipgloss"
)

// Palette.
var (
	lobbyBlue  = lipgloss.Color("#4A90D9")
	poolTeal   = lipgloss.Color("#4ECDC4")
	lampAmber  = lipgloss.Color("#FFE66D")
	alarmRed   = lipgloss.Color("#FF6B6B")
	mintInfo   = lipgloss.Color("#95E1D3")
	carpetGrey = lipgloss.Color("#666666")
	frameGrey  = lipgloss.Color("#333333")
)

// Styles shared by the console gateway and the history command.
var (
	TitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lobbyBlue).MarginBottom(1)
	SuccessStyle = lipgloss.NewStyle().Foreground(poolTeal)
	WarningStyle = lipgloss.NewStyle().Foreground(lampAmber)
	ErrorStyle   = lipgloss.NewStyle().Foreground(alarmRed)
	InfoStyle    = lipgloss.NewStyle().Foreground(mintInfo)
	SubtleStyle  = lipgloss.NewStyle().Foreground(carpetGrey)

	// BoxStyle frames one chat message.
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(frameGrey).
			Padding(0, 1)

	// ButtonStyle renders inline buttons, ControlStyle reply keyboard controls.
	ButtonStyle  = lipgloss.NewStyle().Foreground(lobbyBlue)
	ControlStyle = lipgloss.NewStyle().Foreground(mintInfo).Italic(true)
)

// Icons.
const (
	SuccessIcon = "✓"
	ErrorIcon   = "✗"
	WarningIcon = "⚠️"
	InfoIcon    = "ℹ️"
	HotelIcon   = "🏨"
	PhotoIcon   = "📷"
)

func withIcon(style lipgloss.Style, icon, message string) string {
	return style.Render(icon + " " + message)
}

// FormatSuccess renders a confirmation line.
func FormatSuccess(message string) string { return withIcon(SuccessStyle, SuccessIcon, message) }

// FormatError renders a failure line.
func FormatError(message string) string { return withIcon(ErrorStyle, ErrorIcon, message) }

// FormatWarning renders a warning or callback alert.
func FormatWarning(message string) string { return withIcon(WarningStyle, WarningIcon, message) }

// FormatInfo renders a notice.
func FormatInfo(message string) string { return withIcon(InfoStyle, InfoIcon, message) }

// FormatTitle renders a heading with the hotel icon.
func FormatTitle(title string) string { return withIcon(TitleStyle, HotelIcon, title) }

// RenderBox frames content under a bold title.
func RenderBox(title, content string) string {
	heading := TitleStyle.UnsetMargins().Render(title)
	return BoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, heading, content))
}
