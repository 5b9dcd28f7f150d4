// Package ui provides the Bubbletea progress display for batch analysis and
// processing.
package ui

import (
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/linuxmatters/levelset/internal/loudness"
	"github.com/linuxmatters/levelset/internal/pipeline"
)

// FileStatus represents the processing state of a single file
type FileStatus int

const (
	StatusQueued FileStatus = iota
	StatusMeasuring
	StatusProcessing
	StatusExporting
	StatusComplete
	StatusError
)

// Active reports whether work on the file is in flight
func (s FileStatus) Active() bool {
	return s == StatusMeasuring || s == StatusProcessing || s == StatusExporting
}

// FileProgress tracks progress for a single audio file
type FileProgress struct {
	Path   string
	Status FileStatus

	// PassName is the measurement pass in flight, e.g. "loudnorm pass"
	PassName    string
	StartTime   time.Time
	ElapsedTime time.Duration

	// Latest reading produced for the file
	Measurement *loudness.Measurement

	Error error
}

// Model is the Bubbletea model for the progress display
type Model struct {
	Title string
	Files []FileProgress

	// Global state
	StartTime time.Time
	Done      bool

	// Quit is set when the user asked to stop before the work finished
	Quit bool

	spinnerIndex int

	// Terminal dimensions
	Width  int
	Height int
}

// Spinner frames for in-flight files
var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// NewModel creates a new UI model with the given input files
func NewModel(title string, paths []string) Model {
	files := make([]FileProgress, len(paths))
	for i, path := range paths {
		files[i] = FileProgress{Path: path, Status: StatusQueued}
	}

	return Model{
		Title:     title,
		Files:     files,
		StartTime: time.Now(),
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// tickCmd returns a command that sends a tick message every 100ms
func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.Quit = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height

	case tickMsg:
		if m.Done {
			return m, nil
		}
		m.spinnerIndex = (m.spinnerIndex + 1) % len(spinnerFrames)
		for i := range m.Files {
			if m.Files[i].Status.Active() {
				m.Files[i].ElapsedTime = time.Since(m.Files[i].StartTime)
			}
		}
		return m, tickCmd()

	case EventMsg:
		if msg.Index >= 0 && msg.Index < len(m.Files) {
			m.Files[msg.Index] = applyEvent(m.Files[msg.Index], pipeline.Event(msg))
		}

	case PassMsg:
		// Labels are base names; the first measuring file with that name owns it
		for i := range m.Files {
			f := &m.Files[i]
			if f.Status == StatusMeasuring && filepath.Base(f.Path) == msg.Label {
				f.PassName = msg.State.String()
				break
			}
		}

	case AllCompleteMsg:
		m.Done = true
		return m, tea.Quit
	}

	return m, nil
}

// View renders the UI
func (m Model) View() string {
	if m.Done {
		return renderCompletionSummary(m)
	}
	return renderProgressView(m)
}

// Counts returns how many files finished successfully and how many failed
func (m Model) Counts() (complete, failed int) {
	for _, f := range m.Files {
		switch f.Status {
		case StatusComplete:
			complete++
		case StatusError:
			failed++
		}
	}
	return complete, failed
}

// applyEvent moves a file through its stages. A stage start always wins, so
// a completed analysis followed by an export start shows as exporting.
func applyEvent(fp FileProgress, ev pipeline.Event) FileProgress {
	if !ev.Done {
		fp.Status = stageStatus(ev.Stage)
		fp.PassName = ""
		fp.StartTime = time.Now()
		fp.ElapsedTime = 0
		return fp
	}

	fp.ElapsedTime = time.Since(fp.StartTime)
	if ev.Err != nil {
		fp.Status = StatusError
		fp.Error = ev.Err
		return fp
	}
	fp.Status = StatusComplete
	if ev.Measurement != nil {
		fp.Measurement = ev.Measurement
	}
	return fp
}

func stageStatus(s pipeline.Stage) FileStatus {
	switch s {
	case pipeline.StageProcess:
		return StatusProcessing
	case pipeline.StageExport:
		return StatusExporting
	default:
		return StatusMeasuring
	}
}
