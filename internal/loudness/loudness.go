// Package loudness measures EBU R128 loudness of files and sample buffers.
package loudness

import (
	"context"
	"errors"

	"github.com/linuxmatters/levelset/internal/audio"
)

// ErrMeasurementParse is returned when a measurement tool's output does not
// contain the expected readings.
var ErrMeasurementParse = errors.New("failed to parse loudness measurement")

// Measurement is one EBU R128 reading of a signal. Values are LUFS except
// TruePeak, which is dBTP.
type Measurement struct {
	Integrated   float64 `json:"integrated_lufs"`
	MaxMomentary float64 `json:"max_momentary_lufs"`
	MaxShortTerm float64 `json:"max_short_term_lufs"`
	TruePeak     float64 `json:"true_peak_dbtp"`

	// Approximated is set when any field was substituted rather than measured,
	// e.g. momentary/short-term maxima taken from the integrated reading.
	Approximated bool `json:"approximated"`
}

// Measurer produces loudness measurements for files and in-memory buffers.
type Measurer interface {
	MeasureFile(ctx context.Context, path string) (Measurement, error)
	MeasureBuffer(ctx context.Context, buf *audio.SampleBuffer) (Measurement, error)
}

// State is the progress of a single measurement request
type State int

const (
	NotStarted State = iota
	FirstPassRunning
	SecondPassRunning
	Parsed
	Failed
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not started"
	case FirstPassRunning:
		return "frame log pass"
	case SecondPassRunning:
		return "loudnorm pass"
	case Parsed:
		return "parsed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Done reports whether the state is terminal
func (s State) Done() bool {
	return s == Parsed || s == Failed
}

// StateFunc observes state transitions. label identifies the measured input.
type StateFunc func(label string, s State)
