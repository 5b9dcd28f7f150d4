package loudness

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/linuxmatters/levelset/internal/audio"
	"github.com/linuxmatters/levelset/internal/ffmpeg"
	"github.com/sirupsen/logrus"
)

// Filter graphs for the two measurement passes
const (
	FrameLogFilter = "ebur128=framelog=verbose"
	LoudnormFilter = "loudnorm=I=-24:TP=-2:LRA=7:print_format=json"
)

// Analyzer runs an ffmpeg filter and returns the diagnostic output.
// *ffmpeg.Runner satisfies it.
type Analyzer interface {
	Analyze(ctx context.Context, in ffmpeg.Input, filter string, verbose bool) (string, error)
}

// FFmpegMeasurer measures loudness with two ffmpeg passes: ebur128 for the
// momentary and short-term maxima, then loudnorm for integrated loudness and true peak.
type FFmpegMeasurer struct {
	analyzer Analyzer
	onState  StateFunc
	log      logrus.FieldLogger
}

// NewFFmpegMeasurer creates a measurer. onState and log may be nil.
func NewFFmpegMeasurer(analyzer Analyzer, onState StateFunc, log logrus.FieldLogger) *FFmpegMeasurer {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &FFmpegMeasurer{
		analyzer: analyzer,
		onState:  onState,
		log:      log,
	}
}

// MeasureFile measures an audio file on disk
func (m *FFmpegMeasurer) MeasureFile(ctx context.Context, path string) (Measurement, error) {
	return m.measure(ctx, ffmpeg.FileInput(path), filepath.Base(path))
}

// MeasureBuffer measures decoded samples, streamed to ffmpeg as f32le PCM
func (m *FFmpegMeasurer) MeasureBuffer(ctx context.Context, buf *audio.SampleBuffer) (Measurement, error) {
	in := ffmpeg.PCMInput(buf.Bytes(), buf.SampleRate, buf.Channels)
	return m.measure(ctx, in, fmt.Sprintf("buffer(%d Hz, %d ch)", buf.SampleRate, buf.Channels))
}

func (m *FFmpegMeasurer) measure(ctx context.Context, in ffmpeg.Input, label string) (Measurement, error) {
	log := m.log.WithField("file", label)
	state := NotStarted
	transition := func(s State) {
		log.WithFields(logrus.Fields{"from": state, "state": s}).Debug("measurement state")
		state = s
		if m.onState != nil {
			m.onState(label, s)
		}
	}

	transition(FirstPassRunning)
	frameLog, err := m.analyzer.Analyze(ctx, in, FrameLogFilter, true)
	if err != nil {
		transition(Failed)
		return Measurement{}, fmt.Errorf("ebur128 pass failed: %w", err)
	}
	frames := ParseFrameLog(frameLog)

	transition(SecondPassRunning)
	normLog, err := m.analyzer.Analyze(ctx, in, LoudnormFilter, false)
	if err != nil {
		transition(Failed)
		return Measurement{}, fmt.Errorf("loudnorm pass failed: %w", err)
	}
	_, reading, err := ParseLoudnormJSON(normLog)
	if err != nil {
		transition(Failed)
		return Measurement{}, fmt.Errorf("%w\n%s", err, strings.TrimSpace(normLog))
	}

	result := Combine(frames, reading)
	if result.Approximated {
		log.WithField("summary", frames.HasSummary).Debug("no ebur128 frame lines, maxima approximated")
	}

	transition(Parsed)
	return result, nil
}

// Combine merges the two passes into one measurement.
// Without frame lines the maxima fall back to the ebur128 summary reading, or
// failing that to loudnorm's integrated value; either way the result is flagged.
func Combine(frames FrameStats, reading LoudnormReading) Measurement {
	result := Measurement{
		Integrated:   reading.Integrated,
		MaxMomentary: frames.MaxMomentary,
		MaxShortTerm: frames.MaxShortTerm,
		TruePeak:     reading.TruePeak,
	}

	if frames.Frames == 0 {
		fallback := reading.Integrated
		if frames.HasSummary {
			fallback = frames.SummaryIntegrated
		}
		result.MaxMomentary = fallback
		result.MaxShortTerm = fallback
		result.Approximated = true
	}

	return result
}
