package logging

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/linuxmatters/levelset/internal/loudness"
	"github.com/linuxmatters/levelset/internal/pipeline"
)

// RecordingTip represents a single piece of actionable level advice
// derived from loudness measurements.
type RecordingTip struct {
	Priority int    // Higher = more important (1-10)
	Message  string // Human-readable advice (1-2 sentences)
	RuleID   string // Identifier for testing/logging (e.g., "level_too_quiet")
}

// MaxRecordingTips is the maximum number of tips to return.
const MaxRecordingTips = 5

// tipTargetLUFS is the level the quiet-source advice aims for
const tipTargetLUFS = -18.0

type tipRule func(loudness.Measurement, *pipeline.Outcome) *RecordingTip

// GenerateLevelTips looks at a source measurement and, when the file was
// processed, its outcome, and returns prioritised suggestions. out may be nil.
func GenerateLevelTips(m loudness.Measurement, out *pipeline.Outcome) []RecordingTip {
	var tips []RecordingTip
	firedRules := make(map[string]bool)

	rules := []tipRule{
		tipSilent,
		tipLevelTooHot,
		tipLevelTooQuiet,
		tipLevelQuiet,
		tipWideDynamics,
		tipApproximated,
		tipGainLimited,
		tipResultClipping,
		tipResultHot,
	}

	for _, rule := range rules {
		if tip := rule(m, out); tip != nil {
			tips = append(tips, *tip)
			firedRules[tip.RuleID] = true
		}
	}

	// Apply mutual exclusion
	tips = applyExclusions(tips, firedRules)

	// Sort by priority (descending)
	sort.SliceStable(tips, func(i, j int) bool {
		return tips[i].Priority > tips[j].Priority
	})

	// Cap at maximum
	if len(tips) > MaxRecordingTips {
		tips = tips[:MaxRecordingTips]
	}

	return tips
}

// applyExclusions removes tips that are redundant when a more specific tip
// has already fired. A silent source makes every other tip meaningless.
func applyExclusions(tips []RecordingTip, fired map[string]bool) []RecordingTip {
	var result []RecordingTip
	for _, tip := range tips {
		switch tip.RuleID {
		case "source_silent":
		case "level_too_quiet", "level_quiet":
			if fired["source_silent"] || fired["level_clipping"] || fired["level_near_clipping"] {
				continue
			}
		case "result_hot":
			if fired["source_silent"] || fired["result_clipping"] {
				continue
			}
		default:
			if fired["source_silent"] {
				continue
			}
		}
		result = append(result, tip)
	}
	return result
}

// wrapText wraps text at word boundaries to fit within maxWidth columns.
// Continuation lines are prefixed with indent.
func wrapText(text string, maxWidth int, indent string) string {
	words := strings.Fields(text)
	var lines []string
	currentLine := ""

	for _, word := range words {
		if currentLine == "" {
			currentLine = word
		} else if len(currentLine)+1+len(word) <= maxWidth {
			currentLine += " " + word
		} else {
			lines = append(lines, currentLine)
			currentLine = word
		}
	}
	if currentLine != "" {
		lines = append(lines, currentLine)
	}

	return strings.Join(lines, "\n"+indent)
}

// tipSilent fires when nothing passes the absolute gate.
func tipSilent(m loudness.Measurement, _ *pipeline.Outcome) *RecordingTip {
	if !math.IsInf(m.Integrated, -1) && m.Integrated >= LUFSMeasurementFloor {
		return nil
	}
	return &RecordingTip{
		Priority: 10,
		RuleID:   "source_silent",
		Message:  "The source is silent or below -70 LUFS, so no gain can bring it to a usable level.",
	}
}

// tipLevelTooQuiet fires when the source is very quiet (below -30 LUFS).
func tipLevelTooQuiet(m loudness.Measurement, _ *pipeline.Outcome) *RecordingTip {
	if m.Integrated >= -30.0 {
		return nil
	}
	gainNeeded := tipTargetLUFS - m.Integrated
	return &RecordingTip{
		Priority: 8,
		RuleID:   "level_too_quiet",
		Message:  fmt.Sprintf("The source is very quiet - record about %.0f dB hotter so large boosts are not needed.", gainNeeded),
	}
}

// tipLevelQuiet fires when the source sits between -30 and -24 LUFS.
func tipLevelQuiet(m loudness.Measurement, _ *pipeline.Outcome) *RecordingTip {
	if m.Integrated < -30.0 || m.Integrated >= -24.0 {
		return nil
	}
	gainNeeded := tipTargetLUFS - m.Integrated
	return &RecordingTip{
		Priority: 5,
		RuleID:   "level_quiet",
		Message:  fmt.Sprintf("The source is a bit quiet - about %.0f dB more level at the source would leave more headroom for processing.", gainNeeded),
	}
}

// tipLevelTooHot fires when the source true peak approaches or exceeds 0 dBTP.
// TruePeak > 0.0 means actual clipping; > -1.0 means dangerously close.
func tipLevelTooHot(m loudness.Measurement, _ *pipeline.Outcome) *RecordingTip {
	if m.TruePeak <= -1.0 || math.IsNaN(m.TruePeak) {
		return nil
	}
	if m.TruePeak > 0.0 {
		return &RecordingTip{
			Priority: 10,
			RuleID:   "level_clipping",
			Message:  "The source is already clipping - no gain change can undo the distortion.",
		}
	}
	return &RecordingTip{
		Priority: 7,
		RuleID:   "level_near_clipping",
		Message:  "The source peaks within 1 dB of full scale, so any boost will clip without --clip.",
	}
}

// tipWideDynamics fires when the loudest 3 s stretch is far above the
// programme average.
func tipWideDynamics(m loudness.Measurement, _ *pipeline.Outcome) *RecordingTip {
	if m.Approximated || math.IsInf(m.MaxShortTerm, 0) || math.IsInf(m.Integrated, 0) {
		return nil
	}
	spread := m.MaxShortTerm - m.Integrated
	if spread <= 10.0 {
		return nil
	}
	return &RecordingTip{
		Priority: 4,
		RuleID:   "wide_dynamics",
		Message:  fmt.Sprintf("The loudest passage is %.0f LU above the average - a compressor would let the whole file sit closer to the target.", spread),
	}
}

// tipApproximated fires when the maxima are copies of integrated loudness.
func tipApproximated(m loudness.Measurement, _ *pipeline.Outcome) *RecordingTip {
	if !m.Approximated {
		return nil
	}
	return &RecordingTip{
		Priority: 2,
		RuleID:   "approximated",
		Message:  "Momentary and short-term maxima were not measured and are approximated from integrated loudness.",
	}
}

// tipGainLimited fires when a target needed more gain than the limit allows.
func tipGainLimited(_ loudness.Measurement, out *pipeline.Outcome) *RecordingTip {
	if out == nil || !out.Resolution.Clamped {
		return nil
	}
	return &RecordingTip{
		Priority: 9,
		RuleID:   "gain_limited",
		Message: fmt.Sprintf("The gain was limited to %+.1f dB, leaving the result %.1f LU short of the target.",
			out.Resolution.GainDB, out.Resolution.Shortfall()),
	}
}

// tipResultClipping fires when the applied gain pushed samples past full scale.
func tipResultClipping(_ loudness.Measurement, out *pipeline.Outcome) *RecordingTip {
	if out == nil || !out.WillClip {
		return nil
	}
	return &RecordingTip{
		Priority: 9,
		RuleID:   "result_clipping",
		Message:  "This gain clips the output - re-run with --clip or choose a lower gain.",
	}
}

// tipResultHot fires when the result's true peak is within 1 dB of full scale.
func tipResultHot(_ loudness.Measurement, out *pipeline.Outcome) *RecordingTip {
	if out == nil || out.Processed.TruePeak <= -1.0 || math.IsNaN(out.Processed.TruePeak) {
		return nil
	}
	return &RecordingTip{
		Priority: 6,
		RuleID:   "result_hot",
		Message:  fmt.Sprintf("The result peaks at %.1f dBTP; lossy encoders may push it over full scale.", out.Processed.TruePeak),
	}
}
