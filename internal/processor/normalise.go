package processor

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/cwbudde/algo-dsp/dsp/core"
)

type gainKind int

const (
	gainExplicit gainKind = iota // A fixed gain in dB
	gainTarget                   // A target integrated loudness in LUFS
)

// GainSpec is either an explicit gain in dB or a target integrated loudness.
// Construct it with Explicit or Target; the zero value is Explicit(0).
type GainSpec struct {
	kind  gainKind
	value float64
}

// Explicit requests a fixed gain in dB.
func Explicit(db float64) GainSpec {
	return GainSpec{kind: gainExplicit, value: db}
}

// Target requests whatever gain moves the file to lufs integrated loudness.
func Target(lufs float64) GainSpec {
	return GainSpec{kind: gainTarget, value: lufs}
}

// Value is the dB gain for Explicit specs and the LUFS target for Target specs.
func (g GainSpec) Value() float64 { return g.value }

// IsTarget reports whether the spec is a loudness target
func (g GainSpec) IsTarget() bool { return g.kind == gainTarget }

func (g GainSpec) String() string {
	if g.kind == gainTarget {
		return fmt.Sprintf("target %.1f LUFS", g.value)
	}
	return fmt.Sprintf("%+.1f dB", g.value)
}

// ParseGainInput parses interactive gain input.
// Accepts "+3", "-2.5" (dB) or "-14 LUFS", "-14lufs" (target). Empty input means no change.
func ParseGainInput(input string) (GainSpec, error) {
	s := strings.ToUpper(strings.TrimSpace(input))
	if s == "" {
		return Explicit(0), nil
	}

	if strings.Contains(s, "LUFS") {
		num := strings.TrimSpace(strings.ReplaceAll(s, "LUFS", ""))
		v, err := strconv.ParseFloat(num, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return GainSpec{}, fmt.Errorf("%w: invalid LUFS value %q", ErrInvalidArgument, num)
		}
		return Target(v), nil
	}

	s = strings.TrimSpace(strings.TrimSuffix(s, "DB"))
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return GainSpec{}, fmt.Errorf("%w: invalid input %q, use dB (e.g. '+3', '-2') or target LUFS (e.g. '-14 LUFS')",
			ErrInvalidArgument, input)
	}
	return Explicit(v), nil
}

// GainForTarget returns the gain in dB that moves currentLUFS to targetLUFS.
// With clamp set, the result is limited to ±MaxGainDB.
func (p *Processor) GainForTarget(currentLUFS, targetLUFS float64, clamp bool) float64 {
	gain := targetLUFS - currentLUFS
	if clamp {
		gain = core.Clamp(gain, -p.limits.MaxGainDB, p.limits.MaxGainDB)
	}
	return gain
}

// Resolution is the concrete gain chosen for a GainSpec.
type Resolution struct {
	Spec        GainSpec
	GainDB      float64 // Gain that will be applied
	UnclampedDB float64 // Gain the request asked for before limiting
	Clamped     bool    // True when GainDB differs from UnclampedDB
}

// ExpectedLUFS predicts the integrated loudness after applying the gain.
func (r Resolution) ExpectedLUFS(currentLUFS float64) float64 {
	return currentLUFS + r.GainDB
}

// Shortfall is how far the clamped gain lands from the requested target, in LU.
// It is zero for explicit gains and for targets reached without clamping.
func (r Resolution) Shortfall() float64 {
	return r.UnclampedDB - r.GainDB
}

// Resolve turns a GainSpec into a concrete gain for a file measured at currentLUFS.
// Explicit gains outside the limits are rejected; targets are clamped and the
// clamping is reported on the Resolution.
func (p *Processor) Resolve(spec GainSpec, currentLUFS float64) (Resolution, error) {
	if !spec.IsTarget() {
		if err := p.checkGain(spec.Value()); err != nil {
			return Resolution{}, err
		}
		return Resolution{Spec: spec, GainDB: spec.Value(), UnclampedDB: spec.Value()}, nil
	}

	if math.IsInf(currentLUFS, 0) || math.IsNaN(currentLUFS) {
		return Resolution{}, fmt.Errorf("%w: cannot reach %s from unmeasurable loudness", ErrInvalidArgument, spec)
	}

	unclamped := p.GainForTarget(currentLUFS, spec.Value(), false)
	gain := p.GainForTarget(currentLUFS, spec.Value(), true)
	return Resolution{
		Spec:        spec,
		GainDB:      gain,
		UnclampedDB: unclamped,
		Clamped:     gain != unclamped,
	}, nil
}

// ProcessingRequest is one file's resolved-later gain plus clipper settings.
type ProcessingRequest struct {
	Gain              GainSpec
	Clip              bool
	ClipThresholdDBFS float64
}

// NewProcessingRequest builds a request from optional gain and target values.
// Exactly one of gainDB and targetLUFS must be set.
func NewProcessingRequest(gainDB, targetLUFS *float64, clip bool, thresholdDBFS float64) (ProcessingRequest, error) {
	switch {
	case gainDB != nil && targetLUFS != nil:
		return ProcessingRequest{}, fmt.Errorf("%w: specify either a gain or a target, not both", ErrInvalidArgument)
	case gainDB == nil && targetLUFS == nil:
		return ProcessingRequest{}, fmt.Errorf("%w: specify a gain or a target", ErrInvalidArgument)
	case targetLUFS != nil:
		return ProcessingRequest{Gain: Target(*targetLUFS), Clip: clip, ClipThresholdDBFS: thresholdDBFS}, nil
	default:
		return ProcessingRequest{Gain: Explicit(*gainDB), Clip: clip, ClipThresholdDBFS: thresholdDBFS}, nil
	}
}

// Options converts the request into Process options for a resolved gain.
func (r ProcessingRequest) Options(res Resolution) Options {
	return Options{
		GainDB:            res.GainDB,
		Clip:              r.Clip,
		ClipThresholdDBFS: r.ClipThresholdDBFS,
	}
}
