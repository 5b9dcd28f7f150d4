package ui

import (
	"github.com/linuxmatters/levelset/internal/loudness"
	"github.com/linuxmatters/levelset/internal/pipeline"
)

// EventMsg carries a pipeline stage start or completion for one file
type EventMsg pipeline.Event

// PassMsg reports a measurement state change. Label is the measured file's
// base name.
type PassMsg struct {
	Label string
	State loudness.State
}

// AllCompleteMsg indicates the background work has returned
type AllCompleteMsg struct{}

// tickMsg is sent for spinner/timer animation
type tickMsg struct{}
