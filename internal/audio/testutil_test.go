package audio

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"
)

// TestAudioOptions configures the synthetic audio to generate
type TestAudioOptions struct {
	DurationSecs float64 // Total duration in seconds
	SampleRate   int     // Sample rate (default: 44100)
	Channels     int     // Channel count (default: 1)
	ToneFreq     float64 // Sine wave frequency in Hz (0 = no tone)
	ToneLevel    float64 // Tone level in dBFS (e.g., -23.0)
	NoiseLevel   float64 // White noise level in dBFS (0 = no noise, -60 = quiet noise)
	Float        bool    // Write 32-bit IEEE float instead of 16-bit PCM
}

// generateTestAudio creates a synthetic WAV file in the test's temp directory.
// Every channel carries the same tone plus deterministic noise.
func generateTestAudio(t *testing.T, name string, opts TestAudioOptions) string {
	t.Helper()

	if opts.SampleRate == 0 {
		opts.SampleRate = 44100
	}
	if opts.Channels == 0 {
		opts.Channels = 1
	}
	if opts.DurationSecs == 0 {
		opts.DurationSecs = 1.0
	}

	frames := int(opts.DurationSecs * float64(opts.SampleRate))
	samples := make([]float64, frames*opts.Channels)

	toneAmp := 0.0
	if opts.ToneFreq > 0 && opts.ToneLevel < 0 {
		toneAmp = math.Pow(10.0, opts.ToneLevel/20.0)
	}
	noiseAmp := 0.0
	if opts.NoiseLevel < 0 {
		noiseAmp = math.Pow(10.0, opts.NoiseLevel/20.0)
	}

	// LCG parameters from Numerical Recipes, for deterministic noise
	rngState := uint32(12345)
	nextRandom := func() float64 {
		rngState = rngState*1664525 + 1013904223
		return (float64(rngState)/float64(0xFFFFFFFF))*2.0 - 1.0
	}

	for i := 0; i < frames; i++ {
		var sample float64
		if toneAmp > 0 {
			sample += toneAmp * math.Sin(2.0*math.Pi*opts.ToneFreq*float64(i)/float64(opts.SampleRate))
		}
		if noiseAmp > 0 {
			sample += noiseAmp * nextRandom()
		}
		sample = math.Max(-1, math.Min(1, sample))
		for c := 0; c < opts.Channels; c++ {
			samples[i*opts.Channels+c] = sample
		}
	}

	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create %s: %v", name, err)
	}
	defer f.Close()

	if err := writeTestWAV(f, samples, opts.SampleRate, opts.Channels, opts.Float); err != nil {
		t.Fatalf("failed to write WAV file: %v", err)
	}
	return path
}

// writeTestWAV writes a canonical 44-byte-header WAV file
func writeTestWAV(f *os.File, samples []float64, sampleRate, channels int, float bool) error {
	format, bitsPerSample := uint16(1), 16
	if float {
		format, bitsPerSample = 3, 32
	}

	blockAlign := channels * bitsPerSample / 8
	byteRate := sampleRate * blockAlign
	dataSize := len(samples) * bitsPerSample / 8

	header := []any{
		[]byte("RIFF"), uint32(36 + dataSize), []byte("WAVE"),
		[]byte("fmt "), uint32(16), format, uint16(channels),
		uint32(sampleRate), uint32(byteRate), uint16(blockAlign), uint16(bitsPerSample),
		[]byte("data"), uint32(dataSize),
	}
	for _, field := range header {
		if err := binary.Write(f, binary.LittleEndian, field); err != nil {
			return err
		}
	}

	for _, s := range samples {
		var err error
		if float {
			err = binary.Write(f, binary.LittleEndian, float32(s))
		} else {
			err = binary.Write(f, binary.LittleEndian, int16(s*math.MaxInt16))
		}
		if err != nil {
			return err
		}
	}
	return nil
}
