// Package logging handles generation of loudness reports for processed audio files

package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/linuxmatters/levelset/internal/audio"
	"github.com/linuxmatters/levelset/internal/pipeline"
)

// writeSection writes a section header with title and dashed underline.
// The underline length matches the title length.
func writeSection(w io.Writer, title string) {
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, strings.Repeat("-", len(title)))
}

// ReportData contains all the information needed to generate a loudness report
type ReportData struct {
	InputPath  string
	OutputPath string // Empty for dry runs
	StartTime  time.Time
	EndTime    time.Time
	Outcome    *pipeline.Outcome
	Meter      string  // Measurement backend, e.g. "ffmpeg"
	ClipDBFS   float64 // Clipper threshold, when the clipper ran
	MaxGainDB  float64
	Format     audio.Format
}

// ReportPath is where the report for a file is written: next to the output
// when there is one, otherwise in outDir, named <stem>.log.
func ReportPath(data ReportData, outDir string) string {
	base := data.OutputPath
	if base == "" {
		base = filepath.Join(outDir, filepath.Base(data.InputPath))
	}
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".log"
}

// GenerateReport writes a loudness report to path.
//
// Report structure:
// 1. Header - file info and timestamp
// 2. Gain Decision - requested and applied gain, clamping, clipper
// 3. Loudness Measurements - Before/After/Change table
// 4. Notes - level tips for the source and the result
func GenerateReport(path string, data ReportData) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}
	defer f.Close()

	WriteReport(f, data)
	return nil
}

// WriteReport renders the report body to w.
func WriteReport(w io.Writer, data ReportData) {
	writeReportHeader(w, data)
	if data.Outcome == nil {
		return
	}
	writeGainDecision(w, data)
	writeLoudnessTable(w, data.Outcome)
	writeNotes(w, data.Outcome)
}

// writeReportHeader outputs the report header with file info and timestamp.
func writeReportHeader(w io.Writer, data ReportData) {
	fmt.Fprintln(w, "Levelset Loudness Report")
	fmt.Fprintln(w, "========================")
	fmt.Fprintf(w, "File:      %s\n", filepath.Base(data.InputPath))
	if data.OutputPath != "" {
		fmt.Fprintf(w, "Output:    %s (%s)\n", filepath.Base(data.OutputPath), strings.ToUpper(string(data.Format)))
	} else {
		fmt.Fprintln(w, "Output:    none (dry run)")
	}
	fmt.Fprintf(w, "Processed: %s\n", data.EndTime.Format("2006-01-02 15:04:05 MST"))
	if data.Outcome != nil && data.Outcome.Buffer != nil {
		buf := data.Outcome.Buffer
		fmt.Fprintf(w, "Audio:     %s, %d Hz, %s\n",
			formatDuration(buf.Duration()), buf.SampleRate, channelName(buf.Channels))
	}
	if data.Meter != "" {
		fmt.Fprintf(w, "Meter:     %s\n", data.Meter)
	}
	fmt.Fprintf(w, "Took:      %s\n", formatDuration(data.EndTime.Sub(data.StartTime)))
	fmt.Fprintln(w, "")
}

// writeGainDecision outputs how the applied gain was chosen.
func writeGainDecision(w io.Writer, data ReportData) {
	writeSection(w, "Gain Decision")

	res := data.Outcome.Resolution
	fmt.Fprintf(w, "Requested:  %s\n", res.Spec)
	fmt.Fprintf(w, "Applied:    %s dB\n", formatMetricSigned(res.GainDB, 1))
	if res.Clamped {
		fmt.Fprintf(w, "Limited:    %s dB requested, limit is ±%.1f dB (%.1f LU short of target)\n",
			formatMetricSigned(res.UnclampedDB, 1), data.MaxGainDB, res.Shortfall())
	}
	if res.Spec.IsTarget() {
		fmt.Fprintf(w, "Deviation:  %s LU from target\n", formatMetricSigned(data.Outcome.Deviation(), 1))
	}
	if data.Outcome.Clip {
		fmt.Fprintf(w, "Clipper:    hard clip at %.1f dBFS\n", data.ClipDBFS)
	} else {
		fmt.Fprintln(w, "Clipper:    off")
	}
	fmt.Fprintln(w, "")
}

// writeLoudnessTable outputs a before/after comparison table for loudness metrics.
func writeLoudnessTable(w io.Writer, o *pipeline.Outcome) {
	writeSection(w, "Loudness Measurements")

	table := NewMetricTable()
	table.AddLoudnessRow("Integrated Loudness", o.Original.Integrated, o.Processed.Integrated, "LUFS", "")
	table.AddLoudnessRow("Max Momentary", o.Original.MaxMomentary, o.Processed.MaxMomentary, "LUFS",
		approxNote(o.Original.Approximated || o.Processed.Approximated))
	table.AddLoudnessRow("Max Short-term", o.Original.MaxShortTerm, o.Processed.MaxShortTerm, "LUFS",
		approxNote(o.Original.Approximated || o.Processed.Approximated))
	table.AddLoudnessRow("True Peak", o.Original.TruePeak, o.Processed.TruePeak, "dBTP", interpretPeak(o.Processed.TruePeak))

	fmt.Fprint(w, table.String())
	fmt.Fprintln(w, "")
}

// writeNotes outputs level tips for the result, or states that there are none.
func writeNotes(w io.Writer, o *pipeline.Outcome) {
	writeSection(w, "Notes")

	tips := GenerateLevelTips(o.Original, o)
	if len(tips) == 0 {
		fmt.Fprintln(w, "No issues found")
		return
	}
	for _, tip := range tips {
		fmt.Fprintf(w, "- %s\n", wrapText(tip.Message, 76, "  "))
	}
}

func approxNote(approximated bool) string {
	if approximated {
		return "approximated"
	}
	return ""
}

// interpretPeak describes headroom left below full scale.
func interpretPeak(dbtp float64) string {
	switch {
	case isDigitalSilence(dbtp):
		return "silent"
	case dbtp > 0:
		return "over full scale"
	case dbtp > -1:
		return "little headroom"
	default:
		return ""
	}
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}

	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60

	if minutes < 60 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}

	hours := minutes / 60
	minutes = minutes % 60
	return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
}

// channelName returns a human-readable channel name
func channelName(channels int) string {
	switch channels {
	case 1:
		return "mono"
	case 2:
		return "stereo"
	default:
		return fmt.Sprintf("%d channels", channels)
	}
}
