package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	"github.com/linuxmatters/levelset/internal/ffmpeg"
)

// wavFormatPCM is the WAVE format tag for integer PCM
const wavFormatPCM = 1

var errNotPCM = errors.New("not integer PCM")

// Metadata contains audio file metadata
type Metadata struct {
	Duration   float64 // seconds
	SampleRate int
	Channels   int
	Codec      string
	BitDepth   int // 0 when the source is not integer PCM
	Tags       Tags
}

// Loader decodes supported input files into sample buffers.
type Loader struct {
	ffmpeg *ffmpeg.Runner
	exts   []string
}

// NewLoader creates a Loader accepting the given input extensions.
// runner may be nil, in which case only integer PCM WAV files can be loaded.
func NewLoader(runner *ffmpeg.Runner, exts []string) *Loader {
	return &Loader{ffmpeg: runner, exts: exts}
}

// Supports reports whether the loader accepts the file's extension
func (l *Loader) Supports(path string) bool {
	return SupportedInput(path, l.exts)
}

// Load decodes an audio file. Integer PCM WAV files are read directly; every
// other supported input is decoded by ffmpeg to 32-bit float.
func (l *Loader) Load(ctx context.Context, path string) (*SampleBuffer, *Metadata, error) {
	if !l.Supports(path) {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(path))
	}

	if strings.EqualFold(filepath.Ext(path), ".wav") {
		buf, meta, err := readWAV(path)
		if err == nil {
			meta.Tags = ReadTags(path)
			return buf, meta, nil
		}
		if !errors.Is(err, errNotPCM) {
			return nil, nil, err
		}
	}

	buf, meta, err := l.decode(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	meta.Tags = ReadTags(path)
	return buf, meta, nil
}

func (l *Loader) decode(ctx context.Context, path string) (*SampleBuffer, *Metadata, error) {
	if l.ffmpeg == nil {
		return nil, nil, fmt.Errorf("%w: decoding %s needs ffmpeg", ffmpeg.ErrToolMissing, filepath.Base(path))
	}

	info, err := l.ffmpeg.Probe(ctx, path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to probe %s: %w", filepath.Base(path), err)
	}

	pcm, err := l.ffmpeg.Decode(ctx, path, info.SampleRate, info.Channels)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}

	buf := FromF32LE(pcm, info.SampleRate, info.Channels)
	return buf, &Metadata{
		Duration:   buf.Duration().Seconds(),
		SampleRate: info.SampleRate,
		Channels:   info.Channels,
		Codec:      info.Codec,
	}, nil
}

// readWAV decodes an integer PCM WAV file, normalising samples to [-1, 1).
func readWAV(path string) (*SampleBuffer, *Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return nil, nil, fmt.Errorf("invalid WAV file: %s", filepath.Base(path))
	}
	if d.WavAudioFormat != wavFormatPCM {
		return nil, nil, errNotPCM
	}

	intBuf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read PCM data from %s: %w", filepath.Base(path), err)
	}

	depth := intBuf.SourceBitDepth
	if depth == 0 {
		depth = int(d.BitDepth)
	}
	if depth < 8 || depth > 32 {
		return nil, nil, fmt.Errorf("%w: %d-bit WAV", ErrUnsupportedFormat, depth)
	}

	data := make([]float32, len(intBuf.Data))
	if depth == 8 {
		// 8-bit WAV is unsigned with a midpoint of 128
		for i, v := range intBuf.Data {
			data[i] = float32(v-128) / 128
		}
	} else {
		scale := float64(int64(1) << (depth - 1))
		for i, v := range intBuf.Data {
			data[i] = float32(float64(v) / scale)
		}
	}

	codec := fmt.Sprintf("pcm_s%dle", depth)
	if depth == 8 {
		codec = "pcm_u8"
	}

	buf := &SampleBuffer{
		Data:       data,
		SampleRate: int(d.SampleRate),
		Channels:   int(d.NumChans),
	}

	return buf, &Metadata{
		Duration:   buf.Duration().Seconds(),
		SampleRate: buf.SampleRate,
		Channels:   buf.Channels,
		Codec:      codec,
		BitDepth:   depth,
	}, nil
}
