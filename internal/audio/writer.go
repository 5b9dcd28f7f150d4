package audio

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/linuxmatters/levelset/internal/ffmpeg"
)

// wavBitDepth is the sample size of exported WAV files
const wavBitDepth = 16

// ExportRequest describes one file to write. It is consumed by a single Export call.
type ExportRequest struct {
	Buffer      *SampleBuffer
	Destination string // Output path without extension
	Format      Format
	Tags        Tags
}

// Exporter writes sample buffers to disk in the supported output formats.
type Exporter struct {
	ffmpeg *ffmpeg.Runner
	codecs map[Format][]string
}

// NewExporter creates an Exporter. codecs maps each ffmpeg-encoded format to
// its codec arguments, e.g. FormatOGG: {"-c:a", "libvorbis", "-q:a", "6"}.
func NewExporter(runner *ffmpeg.Runner, codecs map[Format][]string) *Exporter {
	return &Exporter{ffmpeg: runner, codecs: codecs}
}

// Export writes the request and returns the output path.
// WAV is written directly as 16-bit PCM; other formats are encoded by ffmpeg.
func (e *Exporter) Export(ctx context.Context, req ExportRequest) (string, error) {
	out := req.Destination + req.Format.Extension()
	name := filepath.Base(out)

	if req.Buffer == nil || req.Buffer.Channels <= 0 || req.Buffer.SampleRate <= 0 {
		return "", fmt.Errorf("%w: %s: empty or malformed sample buffer", ErrExport, name)
	}

	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrExport, name, err)
	}

	if req.Format == FormatWAV {
		if err := writeWAV(out, req.Buffer, req.Tags); err != nil {
			return "", fmt.Errorf("%w: %s: %w", ErrExport, name, err)
		}
		return out, nil
	}

	args, ok := e.codecs[req.Format]
	if !ok {
		return "", fmt.Errorf("%w: %s: %w: %s", ErrExport, name, ErrUnsupportedFormat, req.Format)
	}
	if e.ffmpeg == nil {
		return "", fmt.Errorf("%w: %s: %w", ErrExport, name, ffmpeg.ErrToolMissing)
	}

	// MP3 tags are written afterwards as ID3v2.4 frames
	var metadata map[string]string
	if req.Format != FormatMP3 {
		metadata = req.Tags.Metadata()
	}

	err := e.ffmpeg.Encode(ctx, ffmpeg.EncodeRequest{
		PCM:        req.Buffer.Bytes(),
		SampleRate: req.Buffer.SampleRate,
		Channels:   req.Buffer.Channels,
		CodecArgs:  args,
		Metadata:   metadata,
		Output:     out,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrExport, name, err)
	}

	if req.Format == FormatMP3 && !req.Tags.IsEmpty() {
		if err := writeID3(out, req.Tags); err != nil {
			return "", fmt.Errorf("%w: %s: %w", ErrExport, name, err)
		}
	}

	return out, nil
}

// writeWAV encodes the buffer as 16-bit PCM. Samples beyond full scale are clamped.
func writeWAV(path string, buf *SampleBuffer, tags Tags) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}

	enc := wav.NewEncoder(f, buf.SampleRate, wavBitDepth, buf.Channels, 1)
	if !tags.IsEmpty() {
		enc.Metadata = &wav.Metadata{
			Title:    tags.Title,
			Artist:   tags.Artist,
			Product:  tags.Album,
			Comments: tags.Comment,
		}
	}

	const fullScale = math.MaxInt16
	data := make([]int, len(buf.Data))
	for i, s := range buf.Data {
		v := math.Max(-1, math.Min(1, float64(s)))
		data[i] = int(math.Round(v * fullScale))
	}

	intBuf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: buf.Channels,
			SampleRate:  buf.SampleRate,
		},
		Data:           data,
		SourceBitDepth: wavBitDepth,
	}

	if err := enc.Write(intBuf); err != nil {
		f.Close()
		return fmt.Errorf("failed to write samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return fmt.Errorf("failed to finalise WAV header: %w", err)
	}
	return f.Close()
}
