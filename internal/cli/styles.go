package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	primaryColor = lipgloss.Color("#A40000") // Levelset red
	accentColor  = lipgloss.Color("#FFA500") // Orange
	successColor = lipgloss.Color("#00AA00") // Green
	fileColor    = lipgloss.Color("#00AAAA") // Cyan
	mutedColor   = lipgloss.Color("#888888") // Gray
	textColor    = lipgloss.Color("#FFFFFF") // White
)

// Styles
var (
	// Title style - bold red
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	// Step headings between phases of a run
	StepStyle = lipgloss.NewStyle().
			Bold(true)

	// Error message style
	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	WarningStyle = lipgloss.NewStyle().
			Foreground(accentColor)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(successColor)

	FileStyle = lipgloss.NewStyle().
			Foreground(fileColor)

	// Key-value pair styles
	KeyStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	ValueStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(textColor)
)

// PrintVersion prints version information
func PrintVersion(version string) {
	fmt.Println(TitleStyle.Render("Levelset"))
	fmt.Printf("%s %s\n", KeyStyle.Render("Version:"), ValueStyle.Render(version))
	fmt.Println()
}

// PrintError prints an error message
func PrintError(message string) {
	fmt.Fprintf(os.Stderr, "%s %s\n", ErrorStyle.Render("Error:"), message)
}

// PrintWarning prints a warning to stderr
func PrintWarning(message string) {
	fmt.Fprintln(os.Stderr, WarningStyle.Render(message))
}

// PrintStep prints a step heading
func PrintStep(w io.Writer, message string) {
	fmt.Fprintf(w, "\n%s\n\n", StepStyle.Render(message))
}

// PrintSuccess prints a line prefixed with a check mark
func PrintSuccess(w io.Writer, message string) {
	fmt.Fprintf(w, "  %s %s\n", SuccessStyle.Render("✓"), message)
}

// PrintFailure prints a line prefixed with a cross
func PrintFailure(w io.Writer, message string) {
	fmt.Fprintf(w, "  %s %s\n", ErrorStyle.Render("✗"), message)
}
