// Package processor implements the gain and hard-clip sample transforms and the
// target-loudness gain solver.
package processor

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/algo-dsp/dsp/core"
	"github.com/linuxmatters/levelset/internal/audio"
)

var (
	// ErrOutOfRange is returned when a gain falls outside the configured symmetric range.
	ErrOutOfRange = errors.New("gain out of range")

	// ErrInvalidArgument is returned for inputs with no defined result, e.g. a
	// non-positive linear magnitude.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Default limits
const (
	DefaultMaxGainDB         = 12.0
	DefaultClipThresholdDBFS = -0.3
)

// Limits bounds the gain stage and sets the hard clipper threshold.
type Limits struct {
	MaxGainDB         float64 // Maximum absolute gain in dB
	ClipThresholdDBFS float64 // Hard clip ceiling in dBFS
}

// DefaultLimits returns the stock limits: ±12 dB gain, clip at -0.3 dBFS.
func DefaultLimits() Limits {
	return Limits{
		MaxGainDB:         DefaultMaxGainDB,
		ClipThresholdDBFS: DefaultClipThresholdDBFS,
	}
}

// Processor applies gain/clip transforms within a fixed set of limits.
type Processor struct {
	limits Limits
}

// New creates a Processor bound to the given limits
func New(limits Limits) *Processor {
	return &Processor{limits: limits}
}

// Limits returns the limits the processor was built with
func (p *Processor) Limits() Limits {
	return p.limits
}

// Options controls a single Process call.
type Options struct {
	GainDB            float64
	Clip              bool
	ClipThresholdDBFS float64
}

// DBToLinear converts a decibel value to a linear amplitude multiplier.
func DBToLinear(db float64) float64 {
	return core.DBToLinear(db)
}

// LinearToDB converts a linear amplitude to decibels.
// Magnitudes at or below zero have no decibel value.
func LinearToDB(linear float64) (float64, error) {
	if linear <= 0 || math.IsNaN(linear) {
		return 0, fmt.Errorf("%w: linear magnitude %g must be positive", ErrInvalidArgument, linear)
	}
	return core.LinearToDB(linear), nil
}

// ApplyGain returns a new buffer scaled by gainDB.
// A zero gain still returns an independent copy.
func (p *Processor) ApplyGain(buf *audio.SampleBuffer, gainDB float64) (*audio.SampleBuffer, error) {
	if err := p.checkGain(gainDB); err != nil {
		return nil, err
	}

	out := buf.Clone()
	if gainDB == 0 {
		return out, nil
	}

	gain := DBToLinear(gainDB)
	for i, s := range out.Data {
		out.Data[i] = float32(float64(s) * gain)
	}
	return out, nil
}

func (p *Processor) checkGain(gainDB float64) error {
	if math.IsNaN(gainDB) || math.Abs(gainDB) > p.limits.MaxGainDB {
		return fmt.Errorf("%w: %+.1f dB (allowed ±%.1f dB)", ErrOutOfRange, gainDB, p.limits.MaxGainDB)
	}
	return nil
}

// HardClip returns a new buffer with every sample clamped to ±DBToLinear(thresholdDBFS).
// Samples already inside the ceiling are untouched, so clipping twice is a no-op.
func HardClip(buf *audio.SampleBuffer, thresholdDBFS float64) *audio.SampleBuffer {
	ceiling := DBToLinear(thresholdDBFS)

	out := buf.Clone()
	for i, s := range out.Data {
		v := float64(s)
		if v > ceiling || v < -ceiling {
			out.Data[i] = float32(core.Clamp(v, -ceiling, ceiling))
		}
	}
	return out
}

// Process runs the gain stage followed by the optional hard clipper.
// Clipping after the gain catches any overshoot the gain introduced.
func (p *Processor) Process(buf *audio.SampleBuffer, opts Options) (*audio.SampleBuffer, error) {
	out, err := p.ApplyGain(buf, opts.GainDB)
	if err != nil {
		return nil, err
	}

	if opts.Clip {
		out = HardClip(out, opts.ClipThresholdDBFS)
	}
	return out, nil
}

// Options builds Process options using the processor's clip threshold.
func (p *Processor) Options(gainDB float64, clip bool) Options {
	return Options{
		GainDB:            gainDB,
		Clip:              clip,
		ClipThresholdDBFS: p.limits.ClipThresholdDBFS,
	}
}

// Peak returns the largest absolute sample value in the buffer.
func Peak(buf *audio.SampleBuffer) float64 {
	var peak float64
	for _, s := range buf.Data {
		if a := math.Abs(float64(s)); a > peak {
			peak = a
		}
	}
	return peak
}

// PeakDBFS returns the sample peak in dBFS, or -Inf for digital silence.
func PeakDBFS(buf *audio.SampleBuffer) float64 {
	peak := Peak(buf)
	if peak == 0 {
		return math.Inf(-1)
	}
	return core.LinearToDB(peak)
}

// WillClip reports whether applying gainDB would push the peak beyond full scale.
// A peak landing exactly on 1.0 does not clip.
func WillClip(buf *audio.SampleBuffer, gainDB float64) bool {
	return Peak(buf)*DBToLinear(gainDB) > 1.0
}
