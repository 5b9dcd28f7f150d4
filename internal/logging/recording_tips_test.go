package logging

import (
	"math"
	"strings"
	"testing"

	"github.com/linuxmatters/levelset/internal/loudness"
	"github.com/linuxmatters/levelset/internal/pipeline"
	"github.com/linuxmatters/levelset/internal/processor"
)

func TestWrapText(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		maxWidth int
		indent   string
		want     string
	}{
		{
			name:     "short_text_no_wrap",
			text:     "Hello world",
			maxWidth: 20,
			indent:   "  ",
			want:     "Hello world",
		},
		{
			name:     "long_text_wraps",
			text:     "The source is already clipping at the input",
			maxWidth: 30,
			indent:   "  ",
			want:     "The source is already clipping\n  at the input",
		},
		{
			name:     "single_long_word",
			text:     "supercalifragilisticexpialidocious",
			maxWidth: 10,
			indent:   "  ",
			want:     "supercalifragilisticexpialidocious",
		},
		{
			name:     "empty_input",
			text:     "",
			maxWidth: 20,
			indent:   "  ",
			want:     "",
		},
		{
			name:     "exact_fit",
			text:     "exactly twenty chars",
			maxWidth: 20,
			indent:   "  ",
			want:     "exactly twenty chars",
		},
		{
			name:     "multiple_wraps",
			text:     "one two three four five six seven eight nine ten",
			maxWidth: 15,
			indent:   "    ",
			want:     "one two three\n    four five six\n    seven eight\n    nine ten",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := wrapText(tt.text, tt.maxWidth, tt.indent)
			if got != tt.want {
				t.Errorf("wrapText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTipLevelTooQuiet(t *testing.T) {
	tests := []struct {
		name       string
		integrated float64
		wantTip    bool
		wantGain   string // substring to check in message, empty to skip
	}{
		{"very quiet -35 LUFS", -35.0, true, "17 dB"},
		{"boundary -30 LUFS", -30.0, false, ""},
		{"moderately quiet -28 LUFS", -28.0, false, ""},
		{"normal -20 LUFS", -20.0, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tip := tipLevelTooQuiet(loudness.Measurement{Integrated: tt.integrated}, nil)
			if (tip != nil) != tt.wantTip {
				t.Fatalf("tipLevelTooQuiet() returned tip=%v, want tip=%v", tip != nil, tt.wantTip)
			}
			if tip != nil {
				if tip.RuleID != "level_too_quiet" {
					t.Errorf("RuleID = %q, want %q", tip.RuleID, "level_too_quiet")
				}
				if tt.wantGain != "" && !strings.Contains(tip.Message, tt.wantGain) {
					t.Errorf("Message %q should contain %q", tip.Message, tt.wantGain)
				}
			}
		})
	}
}

func TestTipLevelQuiet(t *testing.T) {
	tests := []struct {
		name       string
		integrated float64
		wantTip    bool
		wantGain   string
	}{
		{"very quiet handled by too_quiet", -35.0, false, ""},
		{"boundary -30 LUFS triggers quiet", -30.0, true, "12 dB"},
		{"moderately quiet -28 LUFS", -28.0, true, "10 dB"},
		{"boundary -24 LUFS no tip", -24.0, false, ""},
		{"normal -20 LUFS", -20.0, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tip := tipLevelQuiet(loudness.Measurement{Integrated: tt.integrated}, nil)
			if (tip != nil) != tt.wantTip {
				t.Fatalf("tipLevelQuiet() returned tip=%v, want tip=%v", tip != nil, tt.wantTip)
			}
			if tip != nil && tt.wantGain != "" && !strings.Contains(tip.Message, tt.wantGain) {
				t.Errorf("Message %q should contain %q", tip.Message, tt.wantGain)
			}
		})
	}
}

func TestTipLevelTooHot(t *testing.T) {
	tests := []struct {
		name       string
		truePeak   float64
		wantRuleID string // empty for no tip
	}{
		{"clipping +0.5 dBTP", 0.5, "level_clipping"},
		{"at full scale", 0.0, "level_near_clipping"},
		{"near clipping -0.5 dBTP", -0.5, "level_near_clipping"},
		{"boundary -1 dBTP", -1.0, ""},
		{"plenty of headroom", -6.0, ""},
		{"silence", math.Inf(-1), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tip := tipLevelTooHot(loudness.Measurement{TruePeak: tt.truePeak}, nil)
			got := ""
			if tip != nil {
				got = tip.RuleID
			}
			if got != tt.wantRuleID {
				t.Errorf("tipLevelTooHot(%v) = %q, want %q", tt.truePeak, got, tt.wantRuleID)
			}
		})
	}
}

func TestTipWideDynamics(t *testing.T) {
	tests := []struct {
		name    string
		m       loudness.Measurement
		wantTip bool
	}{
		{"narrow", loudness.Measurement{Integrated: -20, MaxShortTerm: -14}, false},
		{"boundary 10 LU", loudness.Measurement{Integrated: -20, MaxShortTerm: -10}, false},
		{"wide", loudness.Measurement{Integrated: -24, MaxShortTerm: -9}, true},
		{"approximated maxima ignored", loudness.Measurement{Integrated: -24, MaxShortTerm: -9, Approximated: true}, false},
		{"silent", loudness.Measurement{Integrated: math.Inf(-1), MaxShortTerm: -20}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tip := tipWideDynamics(tt.m, nil)
			if (tip != nil) != tt.wantTip {
				t.Errorf("tipWideDynamics() returned tip=%v, want tip=%v", tip != nil, tt.wantTip)
			}
			if tip != nil && !strings.Contains(tip.Message, "15 LU") {
				t.Errorf("Message %q should contain %q", tip.Message, "15 LU")
			}
		})
	}
}

func TestOutcomeTips(t *testing.T) {
	clamped := &pipeline.Outcome{
		Resolution: processor.Resolution{Spec: processor.Target(-14), GainDB: 12, UnclampedDB: 26, Clamped: true},
		Processed:  loudness.Measurement{Integrated: -28, TruePeak: -8},
	}
	if tip := tipGainLimited(loudness.Measurement{}, clamped); tip == nil || !strings.Contains(tip.Message, "14.0 LU short") {
		t.Errorf("tipGainLimited() = %+v, want shortfall of 14.0 LU", tip)
	}
	if tip := tipGainLimited(loudness.Measurement{}, nil); tip != nil {
		t.Errorf("tipGainLimited(nil outcome) = %+v, want nil", tip)
	}

	clipping := &pipeline.Outcome{WillClip: true, Processed: loudness.Measurement{TruePeak: 2.1}}
	if tip := tipResultClipping(loudness.Measurement{}, clipping); tip == nil {
		t.Error("tipResultClipping() = nil, want tip")
	}
	if tip := tipResultHot(loudness.Measurement{}, clipping); tip == nil || !strings.Contains(tip.Message, "2.1 dBTP") {
		t.Errorf("tipResultHot() = %+v, want peak in message", tip)
	}
	if tip := tipResultHot(loudness.Measurement{}, clamped); tip != nil {
		t.Errorf("tipResultHot() with -8 dBTP = %+v, want nil", tip)
	}
}

// hasRuleID checks whether any tip in the slice has the given RuleID.
func hasRuleID(tips []RecordingTip, ruleID string) bool {
	for _, tip := range tips {
		if tip.RuleID == ruleID {
			return true
		}
	}
	return false
}

// ruleIDs extracts RuleIDs from tips for error messages.
func ruleIDs(tips []RecordingTip) []string {
	ids := make([]string, len(tips))
	for i, tip := range tips {
		ids[i] = tip.RuleID
	}
	return ids
}

func TestGenerateLevelTips(t *testing.T) {
	tests := []struct {
		name             string
		measurement      loudness.Measurement
		outcome          *pipeline.Outcome
		wantRuleIDs      []string // these RuleIDs must be present
		excludeRuleIDs   []string // these RuleIDs must NOT be present
		checkFirstRuleID string   // if set, first tip must have this RuleID
		wantExact        int      // if > 0, verify len(tips) == this
		wantEmpty        bool     // if true, verify tips is nil or empty
	}{
		{
			name:           "clipping source suppresses quiet tips",
			measurement:    loudness.Measurement{Integrated: -32, MaxShortTerm: -28, TruePeak: 0.4},
			wantRuleIDs:    []string{"level_clipping"},
			excludeRuleIDs: []string{"level_too_quiet", "level_quiet"},
		},
		{
			name:           "silent source suppresses everything else",
			measurement:    loudness.Measurement{Integrated: math.Inf(-1), MaxShortTerm: -120, TruePeak: math.Inf(-1), Approximated: true},
			outcome:        &pipeline.Outcome{WillClip: true},
			wantRuleIDs:    []string{"source_silent"},
			excludeRuleIDs: []string{"level_too_quiet", "approximated", "result_clipping"},
			wantExact:      1,
		},
		{
			name:             "priority ordering highest first",
			measurement:      loudness.Measurement{Integrated: -35, MaxShortTerm: -20, TruePeak: -10},
			outcome:          &pipeline.Outcome{Resolution: processor.Resolution{Clamped: true, GainDB: 12, UnclampedDB: 21}, Processed: loudness.Measurement{TruePeak: -3}},
			checkFirstRuleID: "gain_limited",
			wantRuleIDs:      []string{"level_too_quiet", "wide_dynamics"},
		},
		{
			name:           "result clipping suppresses result hot",
			measurement:    loudness.Measurement{Integrated: -20, MaxShortTerm: -16, TruePeak: -2},
			outcome:        &pipeline.Outcome{WillClip: true, Processed: loudness.Measurement{TruePeak: 1.5}},
			wantRuleIDs:    []string{"result_clipping"},
			excludeRuleIDs: []string{"result_hot"},
		},
		{
			name: "source and outcome tips combine",
			measurement: loudness.Measurement{
				Integrated: -35, MaxShortTerm: -20, TruePeak: -10,
			},
			outcome: &pipeline.Outcome{
				Resolution: processor.Resolution{Clamped: true},
				WillClip:   true,
				Processed:  loudness.Measurement{TruePeak: 3},
			},
			wantExact: 4,
		},
		{
			name:        "healthy source no tips",
			measurement: loudness.Measurement{Integrated: -18, MaxMomentary: -12, MaxShortTerm: -14, TruePeak: -3},
			outcome:     &pipeline.Outcome{Processed: loudness.Measurement{TruePeak: -3}},
			wantEmpty:   true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tips := GenerateLevelTips(tt.measurement, tt.outcome)

			if tt.wantEmpty {
				if len(tips) != 0 {
					t.Errorf("expected no tips, got %d: %v", len(tips), ruleIDs(tips))
				}
				return
			}

			for _, wantID := range tt.wantRuleIDs {
				if !hasRuleID(tips, wantID) {
					t.Errorf("expected RuleID %q in tips, got %v", wantID, ruleIDs(tips))
				}
			}

			for _, excludeID := range tt.excludeRuleIDs {
				if hasRuleID(tips, excludeID) {
					t.Errorf("RuleID %q should be excluded, got %v", excludeID, ruleIDs(tips))
				}
			}

			if tt.checkFirstRuleID != "" && len(tips) > 0 {
				if tips[0].RuleID != tt.checkFirstRuleID {
					t.Errorf("first tip RuleID = %q, want %q (tips: %v)", tips[0].RuleID, tt.checkFirstRuleID, ruleIDs(tips))
				}
			}

			if len(tips) > MaxRecordingTips {
				t.Errorf("got %d tips, want at most %d: %v", len(tips), MaxRecordingTips, ruleIDs(tips))
			}

			if tt.wantExact > 0 && len(tips) != tt.wantExact {
				t.Errorf("got %d tips, want exactly %d: %v", len(tips), tt.wantExact, ruleIDs(tips))
			}
		})
	}
}
