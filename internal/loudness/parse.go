package loudness

import (
	"bufio"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	// ebur128 frame lines, e.g. "t: 0.4  TARGET:-23 LUFS  M: -22.5 S: -22.8  I: -23.0 LUFS ..."
	frameRe = regexp.MustCompile(`M:\s*([-\d.]+)\s*S:\s*([-\d.]+)`)

	// Integrated reading in the ebur128 summary block, which spans several lines
	summaryRe = regexp.MustCompile(`(?s)Summary:.*?I:\s*([-\d.]+)\s*LUFS`)

	// First flat JSON object carrying loudnorm's input_i key
	loudnormRe = regexp.MustCompile(`\{[^{}]*"input_i"[^{}]*\}`)
)

// FrameStats is what the ebur128 frame log yields.
type FrameStats struct {
	Frames       int     // Frame lines parsed
	MaxMomentary float64 // -Inf when no frames were found
	MaxShortTerm float64 // -Inf when no frames were found

	HasSummary        bool
	SummaryIntegrated float64
}

// ParseFrameLog scans ebur128 framelog output line by line, tracking the
// maximum momentary and short-term readings. Lines whose values do not parse
// (e.g. "-inf" during initial silence) are skipped.
func ParseFrameLog(stderr string) FrameStats {
	stats := FrameStats{
		MaxMomentary: math.Inf(-1),
		MaxShortTerm: math.Inf(-1),
	}

	scanner := bufio.NewScanner(strings.NewReader(stderr))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		match := frameRe.FindStringSubmatch(scanner.Text())
		if match == nil {
			continue
		}
		m, errM := strconv.ParseFloat(match[1], 64)
		s, errS := strconv.ParseFloat(match[2], 64)
		if errM != nil || errS != nil {
			continue
		}
		stats.Frames++
		stats.MaxMomentary = math.Max(stats.MaxMomentary, m)
		stats.MaxShortTerm = math.Max(stats.MaxShortTerm, s)
	}

	if match := summaryRe.FindStringSubmatch(stderr); match != nil {
		if v, err := strconv.ParseFloat(match[1], 64); err == nil {
			stats.HasSummary = true
			stats.SummaryIntegrated = v
		}
	}

	return stats
}

// LoudnormStats contains the JSON output from the loudnorm filter.
// loudnorm prints every value as a string.
type LoudnormStats struct {
	InputI            string `json:"input_i"`
	InputTP           string `json:"input_tp"`
	InputLRA          string `json:"input_lra"`
	InputThresh       string `json:"input_thresh"`
	OutputI           string `json:"output_i"`
	OutputTP          string `json:"output_tp"`
	OutputLRA         string `json:"output_lra"`
	OutputThresh      string `json:"output_thresh"`
	NormalizationType string `json:"normalization_type"`
	TargetOffset      string `json:"target_offset"`
}

// LoudnormReading is the numeric part of LoudnormStats levelset relies on.
type LoudnormReading struct {
	Integrated float64 // input_i, LUFS
	TruePeak   float64 // input_tp, dBTP
}

// ParseLoudnormJSON locates and parses loudnorm's JSON block in ffmpeg's stderr.
// A missing or malformed block, or non-numeric input_i/input_tp, is an error.
func ParseLoudnormJSON(stderr string) (*LoudnormStats, LoudnormReading, error) {
	block := loudnormRe.FindString(stderr)
	if block == "" {
		return nil, LoudnormReading{}, fmt.Errorf("%w: no loudnorm JSON in ffmpeg output (captured %d bytes)",
			ErrMeasurementParse, len(stderr))
	}

	var stats LoudnormStats
	if err := json.Unmarshal([]byte(block), &stats); err != nil {
		return nil, LoudnormReading{}, fmt.Errorf("%w: malformed loudnorm JSON: %v", ErrMeasurementParse, err)
	}

	integrated, err := parseField("input_i", stats.InputI)
	if err != nil {
		return nil, LoudnormReading{}, err
	}
	truePeak, err := parseField("input_tp", stats.InputTP)
	if err != nil {
		return nil, LoudnormReading{}, err
	}

	return &stats, LoudnormReading{Integrated: integrated, TruePeak: truePeak}, nil
}

func parseField(name, value string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(v) {
		return 0, fmt.Errorf("%w: loudnorm %s = %q is not a number", ErrMeasurementParse, name, value)
	}
	return v, nil
}
