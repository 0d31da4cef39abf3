package ui

import "github.com/charmbracelet/lipgloss"

var (
	normalDim   = lipgloss.AdaptiveColor{Light: "#A49FA5", Dark: "#777777"}
	gray        = lipgloss.AdaptiveColor{Light: "#909090", Dark: "#626262"}
	midGray     = lipgloss.AdaptiveColor{Light: "#B2B2B2", Dark: "#4A4A4A"}
	fuchsia     = lipgloss.Color("#EE6FF8")
	yellowGreen = lipgloss.AdaptiveColor{Light: "#04B575", Dark: "#ECFD65"}
	mintGreen   = lipgloss.AdaptiveColor{Light: "#1C8760", Dark: "#89F0CB"}
	cream       = lipgloss.AdaptiveColor{Light: "#FFFDF5", Dark: "#FFFDF5"}
	red         = lipgloss.AdaptiveColor{Light: "#FF4672", Dark: "#ED567A"}
	blue        = lipgloss.AdaptiveColor{Light: "#3C8DBC", Dark: "#5FAFFF"}
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(cream).
			Background(lipgloss.Color("#5A56E0")).
			Padding(0, 1)

	errorTitleStyle = lipgloss.NewStyle().
			Foreground(cream).
			Background(red).
			Padding(0, 1)

	subtleStyle        = lipgloss.NewStyle().Foreground(gray)
	dimStyle           = lipgloss.NewStyle().Foreground(normalDim)
	selectedStyle      = lipgloss.NewStyle().Foreground(fuchsia).Bold(true)
	cursorStyle        = lipgloss.NewStyle().Foreground(fuchsia)
	sizeStyle          = lipgloss.NewStyle().Foreground(midGray)
	successStyle       = lipgloss.NewStyle().Foreground(mintGreen)
	errorStyle         = lipgloss.NewStyle().Foreground(red)
	activeStyle        = lipgloss.NewStyle().Foreground(yellowGreen)
	urlStyle           = lipgloss.NewStyle().Foreground(blue).Underline(true)
	statusMessageStyle = lipgloss.NewStyle().Foreground(mintGreen)
)

// applyHighContrast swaps the palette for plain, bold colors.
func applyHighContrast() {
	subtleStyle = lipgloss.NewStyle()
	dimStyle = lipgloss.NewStyle()
	sizeStyle = lipgloss.NewStyle()
	selectedStyle = lipgloss.NewStyle().Bold(true).Reverse(true)
	cursorStyle = lipgloss.NewStyle().Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	activeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	urlStyle = lipgloss.NewStyle().Underline(true)
}
