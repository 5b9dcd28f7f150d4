// Console tables for analysis and before/after comparison.

package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/linuxmatters/levelset/internal/loudness"
	"github.com/linuxmatters/levelset/internal/pipeline"
)

// approxMark flags readings where the maxima were substituted
const approxMark = "~"

var (
	tableTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#A40000"))
	tableBorder     = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	headerCellStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFA500")).Padding(0, 1)
	fileCellStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#00AAAA")).Padding(0, 1)
	valueCellStyle  = lipgloss.NewStyle().Padding(0, 1).Align(lipgloss.Right)
	noteStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(tableBorder).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerCellStyle
			case col == 0:
				return fileCellStyle
			default:
				return valueCellStyle
			}
		})
}

// lufs formats a loudness reading with its unit
func lufs(v float64) string {
	return formatMetricWithUnit(v, 1, "LUFS")
}

// dbtp formats a true peak reading with its unit
func dbtp(v float64) string {
	s := formatMetricDB(v, 1)
	if s == MissingValue {
		return s
	}
	return s + " dBTP"
}

// maxima formats a momentary or short-term maximum, marking approximations
func maxima(v float64, approximated bool) string {
	s := lufs(v)
	if approximated && s != MissingValue {
		s += approxMark
	}
	return s
}

// AnalysisTable renders the measurements of every successfully analysed file.
func AnalysisTable(title string, results []pipeline.AnalysisResult) string {
	t := newTable("File", "Integrated", "Max Moment.", "Max Short", "True Peak")

	approximated := false
	for _, r := range results {
		if !r.OK() {
			continue
		}
		m := r.Measurement
		approximated = approximated || m.Approximated
		t.Row(
			filepath.Base(r.Path),
			lufs(m.Integrated),
			maxima(m.MaxMomentary, m.Approximated),
			maxima(m.MaxShortTerm, m.Approximated),
			dbtp(m.TruePeak),
		)
	}

	out := tableTitleStyle.Render(title) + "\n" + t.String() + "\n"
	if approximated {
		out += noteStyle.Render(approxMark+" approximated from integrated loudness") + "\n"
	}
	return out
}

// ComparisonTable renders before/after readings for processed files.
func ComparisonTable(title string, outcomes []*pipeline.Outcome) string {
	t := newTable("File", "Gain", "Before", "After", "Max M After", "Max S After", "TP After")

	approximated := false
	for _, o := range outcomes {
		approximated = approximated || o.Processed.Approximated
		t.Row(
			filepath.Base(o.Path),
			formatMetricSigned(o.Resolution.GainDB, 1)+" dB",
			lufs(o.Original.Integrated),
			lufs(o.Processed.Integrated),
			maxima(o.Processed.MaxMomentary, o.Processed.Approximated),
			maxima(o.Processed.MaxShortTerm, o.Processed.Approximated),
			dbtp(o.Processed.TruePeak),
		)
	}

	out := tableTitleStyle.Render(title) + "\n" + t.String() + "\n"
	if approximated {
		out += noteStyle.Render(approxMark+" approximated from integrated loudness") + "\n"
	}
	return out
}

// jsonMeasurement is one element of the --json output. Unmeasurable
// readings (silence) are null.
type jsonMeasurement struct {
	File         string   `json:"file"`
	Integrated   *float64 `json:"integrated_lufs"`
	MaxMomentary *float64 `json:"max_momentary_lufs"`
	MaxShortTerm *float64 `json:"max_short_term_lufs"`
	TruePeak     *float64 `json:"true_peak_dbtp"`
	Approximated bool     `json:"approximated"`
}

func jsonValue(v float64) *float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}

// WriteJSON writes successful measurements as an indented JSON array.
func WriteJSON(w io.Writer, results []pipeline.AnalysisResult) error {
	out := make([]jsonMeasurement, 0, len(results))
	for _, r := range results {
		if !r.OK() {
			continue
		}
		out = append(out, newJSONMeasurement(r.Path, r.Measurement))
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encoding results: %w", err)
	}
	return nil
}

func newJSONMeasurement(path string, m loudness.Measurement) jsonMeasurement {
	return jsonMeasurement{
		File:         path,
		Integrated:   jsonValue(m.Integrated),
		MaxMomentary: jsonValue(m.MaxMomentary),
		MaxShortTerm: jsonValue(m.MaxShortTerm),
		TruePeak:     jsonValue(m.TruePeak),
		Approximated: m.Approximated,
	}
}
