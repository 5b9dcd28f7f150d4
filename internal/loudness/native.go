package loudness

import (
	"context"
	"fmt"
	"math"

	"github.com/cwbudde/algo-dsp/dsp/core"
	r128 "github.com/cwbudde/algo-dsp/measure/loudness"
	"github.com/linuxmatters/levelset/internal/audio"
)

// Window lengths used when sampling the meter
const (
	momentaryWindow = 0.4 // seconds
	shortTermWindow = 3.0 // seconds
	readingInterval = 0.1 // seconds between momentary/short-term readings
)

// FileLoader decodes audio files. *audio.Loader satisfies it.
type FileLoader interface {
	Load(ctx context.Context, path string) (*audio.SampleBuffer, *audio.Metadata, error)
}

// NativeMeter measures loudness in-process with a BS.1770 meter instead of ffmpeg.
// True peak is reported as the sample peak, so every result is flagged Approximated.
type NativeMeter struct {
	loader FileLoader
}

// NewNativeMeter creates a native meter that decodes files with loader
func NewNativeMeter(loader FileLoader) *NativeMeter {
	return &NativeMeter{loader: loader}
}

// MeasureFile decodes and measures a file
func (n *NativeMeter) MeasureFile(ctx context.Context, path string) (Measurement, error) {
	buf, _, err := n.loader.Load(ctx, path)
	if err != nil {
		return Measurement{}, err
	}
	return n.MeasureBuffer(ctx, buf)
}

// MeasureBuffer runs the buffer through the meter, reading momentary and
// short-term loudness every 100 ms once their windows are full.
func (n *NativeMeter) MeasureBuffer(ctx context.Context, buf *audio.SampleBuffer) (Measurement, error) {
	if buf.SampleRate <= 0 || buf.Channels <= 0 {
		return Measurement{}, fmt.Errorf("%w: invalid buffer layout (%d Hz, %d ch)", ErrMeasurementParse, buf.SampleRate, buf.Channels)
	}

	meter := r128.NewMeter(
		r128.WithSampleRate(float64(buf.SampleRate)),
		r128.WithChannels(buf.Channels),
	)
	meter.StartIntegration()

	rate := float64(buf.SampleRate)
	hop := max(int(readingInterval*rate), 1)
	momFrames := int(math.Round(momentaryWindow * rate))
	shortFrames := int(math.Round(shortTermWindow * rate))

	maxM, maxS := math.Inf(-1), math.Inf(-1)
	frame := make([]float64, buf.Channels)
	total := buf.Frames()

	for i := 0; i < total; i++ {
		base := i * buf.Channels
		for c := range frame {
			frame[c] = float64(buf.Data[base+c])
		}
		meter.ProcessSample(frame)

		done := i + 1
		if done%hop != 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return Measurement{}, err
		}
		if done >= momFrames {
			maxM = math.Max(maxM, meter.Momentary())
		}
		if done >= shortFrames {
			maxS = math.Max(maxS, meter.ShortTerm())
		}
	}

	// Inputs shorter than a window get a single end-of-input reading
	if math.IsInf(maxM, -1) {
		maxM = meter.Momentary()
	}
	if math.IsInf(maxS, -1) {
		maxS = meter.ShortTerm()
	}

	var peak float64
	for _, p := range meter.Peaks() {
		peak = math.Max(peak, p)
	}

	return Measurement{
		Integrated:   meter.Integrated(),
		MaxMomentary: maxM,
		MaxShortTerm: maxS,
		TruePeak:     core.LinearToDB(peak),
		Approximated: true,
	}, nil
}
