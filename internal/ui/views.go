package ui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// maxListedFiles is how many queue entries are drawn before idle files are
// folded into a single line
const maxListedFiles = 12

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#A40000"))
	subtitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Italic(true)
	activeIcon    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFA500"))
	doneIcon      = lipgloss.NewStyle().Foreground(lipgloss.Color("#00AA00")).Render("✓")
	errorIcon     = lipgloss.NewStyle().Foreground(lipgloss.Color("#A40000")).Render("✗")
	queuedIcon    = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Render("○")
	detailStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	filledStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#A40000"))
	emptyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#444444"))
)

// renderProgressView renders the main progress view
func renderProgressView(m Model) string {
	var b strings.Builder

	b.WriteString(renderHeader(m))
	b.WriteString("\n\n")
	b.WriteString(renderFileQueue(m))
	b.WriteString("\n")
	b.WriteString(renderOverallProgress(m))
	b.WriteString("\n")

	return b.String()
}

// renderHeader renders the application header
func renderHeader(m Model) string {
	title := titleStyle.Render("Levelset")
	subtitle := subtitleStyle.Render(fmt.Sprintf("%s %d file(s)", m.Title, len(m.Files)))
	return title + " " + subtitle
}

// renderFileQueue renders the list of files with their status. Long queues
// show only files that are in flight or failed.
func renderFileQueue(m Model) string {
	var b strings.Builder

	compact := len(m.Files) > maxListedFiles
	hidden := 0
	for _, file := range m.Files {
		if compact && !file.Status.Active() && file.Status != StatusError {
			hidden++
			continue
		}
		b.WriteString(renderFileEntry(file, m.spinnerIndex))
		b.WriteString("\n")
	}
	if hidden > 0 {
		b.WriteString(detailStyle.Render(fmt.Sprintf("   … %d more", hidden)))
		b.WriteString("\n")
	}

	return b.String()
}

// renderFileEntry renders a single file entry in the queue
func renderFileEntry(file FileProgress, spinnerIndex int) string {
	fileName := filepath.Base(file.Path)

	switch file.Status {
	case StatusComplete:
		line := fmt.Sprintf(" %s %s", doneIcon, fileName)
		if m := file.Measurement; m != nil {
			line += detailStyle.Render(fmt.Sprintf("  %.1f LUFS, %.1f dBTP", m.Integrated, m.TruePeak))
		}
		return line

	case StatusMeasuring, StatusProcessing, StatusExporting:
		icon := activeIcon.Render(spinnerFrames[spinnerIndex%len(spinnerFrames)])
		phase := statusName(file.Status)
		if file.PassName != "" {
			phase += ": " + file.PassName
		}
		return fmt.Sprintf(" %s %s  %s", icon, fileName,
			detailStyle.Render(fmt.Sprintf("%s [%s]", phase, formatElapsed(file.ElapsedTime))))

	case StatusError:
		return fmt.Sprintf(" %s %s\n   %s", errorIcon, fileName, firstLine(file.Error))

	default:
		return fmt.Sprintf(" %s %s", queuedIcon, fileName)
	}
}

func statusName(s FileStatus) string {
	switch s {
	case StatusMeasuring:
		return "measuring"
	case StatusProcessing:
		return "processing"
	case StatusExporting:
		return "exporting"
	case StatusComplete:
		return "complete"
	case StatusError:
		return "failed"
	default:
		return "queued"
	}
}

// firstLine keeps error text to one line; tool errors carry stderr after it
func firstLine(err error) string {
	if err == nil {
		return ""
	}
	s, _, _ := strings.Cut(err.Error(), "\n")
	return s
}

// renderProgressBar renders a progress bar
func renderProgressBar(progress float64, width int) string {
	progress = min(max(progress, 0), 1)
	filled := int(progress * float64(width))
	empty := width - filled

	bar := filledStyle.Render(strings.Repeat("━", filled)) +
		emptyStyle.Render(strings.Repeat("━", empty))
	percentage := int(progress * 100)

	return fmt.Sprintf("%s %3d%%", bar, percentage)
}

// renderOverallProgress renders the overall progress footer
func renderOverallProgress(m Model) string {
	complete, failed := m.Counts()
	finished := complete + failed

	progress := 0.0
	if len(m.Files) > 0 {
		progress = float64(finished) / float64(len(m.Files))
	}

	summary := fmt.Sprintf("%d/%d done", finished, len(m.Files))
	if failed > 0 {
		summary += fmt.Sprintf(", %d failed", failed)
	}
	return renderProgressBar(progress, 40) + "  " +
		detailStyle.Render(fmt.Sprintf("%s [%s]", summary, formatElapsed(time.Since(m.StartTime))))
}

// renderCompletionSummary renders the final line once the work returned
func renderCompletionSummary(m Model) string {
	complete, failed := m.Counts()

	var b strings.Builder
	b.WriteString(renderHeader(m))
	b.WriteString("\n")
	for _, file := range m.Files {
		if file.Status == StatusError {
			b.WriteString(renderFileEntry(file, 0))
			b.WriteString("\n")
		}
	}
	summary := fmt.Sprintf(" %s %d complete", doneIcon, complete)
	if failed > 0 {
		summary += fmt.Sprintf(", %s %d failed", errorIcon, failed)
	}
	b.WriteString(summary)
	b.WriteString(detailStyle.Render(fmt.Sprintf(" in %s", formatElapsed(time.Since(m.StartTime)))))
	b.WriteString("\n")
	return b.String()
}

// formatElapsed formats elapsed time as MM:SS or HH:MM:SS
func formatElapsed(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
