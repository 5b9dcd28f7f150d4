// Package ffmpeg runs the external ffmpeg and ffprobe binaries.
package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultTimeout bounds a single analysis run
const DefaultTimeout = 5 * time.Minute

// ErrToolMissing is returned when the ffmpeg binary cannot be found.
var ErrToolMissing = errors.New("ffmpeg not found, please install FFmpeg and ensure it is in your PATH")

// ToolError reports a failed or timed-out ffmpeg/ffprobe run.
// Stderr holds the tool's diagnostic output verbatim.
type ToolError struct {
	Tool     string
	Args     []string
	Stderr   string
	TimedOut bool
	Err      error
}

func (e *ToolError) Error() string {
	var sb strings.Builder
	if e.TimedOut {
		sb.WriteString(fmt.Sprintf("%s timed out", e.Tool))
	} else {
		sb.WriteString(fmt.Sprintf("%s failed: %v", e.Tool, e.Err))
	}
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		sb.WriteString("\n")
		sb.WriteString(stderr)
	}
	return sb.String()
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// Input is what ffmpeg reads: either a file path or raw f32le PCM on stdin.
type Input struct {
	Path       string
	PCM        []byte
	SampleRate int
	Channels   int
}

// FileInput reads from a file on disk
func FileInput(path string) Input {
	return Input{Path: path}
}

// PCMInput streams little-endian float32 samples through stdin
func PCMInput(pcm []byte, sampleRate, channels int) Input {
	return Input{PCM: pcm, SampleRate: sampleRate, Channels: channels}
}

// Args returns the ffmpeg input arguments for this source.
func (in Input) Args() []string {
	if in.Path != "" {
		return []string{"-i", in.Path}
	}
	return []string{
		"-f", "f32le",
		"-ar", strconv.Itoa(in.SampleRate),
		"-ac", strconv.Itoa(in.Channels),
		"-i", "pipe:0",
	}
}

func (in Input) stdin() io.Reader {
	if in.Path != "" {
		return nil
	}
	return bytes.NewReader(in.PCM)
}

// Runner invokes ffmpeg and ffprobe as subprocesses.
type Runner struct {
	FFmpeg  string // Resolved ffmpeg path
	FFprobe string // Resolved ffprobe path, empty when unavailable
	Timeout time.Duration
	Log     logrus.FieldLogger
}

// NewRunner locates the ffmpeg and ffprobe binaries.
// A missing ffmpeg is fatal; without ffprobe, Probe falls back to ffmpeg.
func NewRunner(ffmpegPath, ffprobePath string, timeout time.Duration, log logrus.FieldLogger) (*Runner, error) {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}

	ffmpeg, err := exec.LookPath(ffmpegPath)
	if err != nil {
		return nil, fmt.Errorf("%w (%s)", ErrToolMissing, ffmpegPath)
	}

	ffprobe, err := exec.LookPath(ffprobePath)
	if err != nil {
		log.WithField("ffprobe", ffprobePath).Debug("ffprobe not found, reading stream layout from ffmpeg")
		ffprobe = ""
	}

	return &Runner{
		FFmpeg:  ffmpeg,
		FFprobe: ffprobe,
		Timeout: timeout,
		Log:     log,
	}, nil
}

// Analyze runs an audio filter over the input, discarding the output, and
// returns ffmpeg's diagnostic stream where filters print their measurements.
// verbose raises the log level so per-frame filter logging is included.
func (r *Runner) Analyze(ctx context.Context, in Input, filter string, verbose bool) (string, error) {
	args := []string{"-hide_banner", "-nostats"}
	if verbose {
		args = append(args, "-v", "verbose")
	}
	args = append(args, in.Args()...)
	args = append(args, "-af", filter, "-f", "null", "-")

	return r.run(ctx, r.FFmpeg, "ffmpeg", args, in.stdin(), nil)
}

// Decode converts an audio file to interleaved f32le PCM at its native rate and channel count.
func (r *Runner) Decode(ctx context.Context, path string, sampleRate, channels int) ([]byte, error) {
	args := []string{
		"-hide_banner", "-nostats", "-v", "error",
		"-i", path,
		"-f", "f32le",
		"-ar", strconv.Itoa(sampleRate),
		"-ac", strconv.Itoa(channels),
		"pipe:1",
	}

	var out bytes.Buffer
	if _, err := r.run(ctx, r.FFmpeg, "ffmpeg", args, nil, &out); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// EncodeRequest describes one ffmpeg encode from raw PCM.
type EncodeRequest struct {
	PCM        []byte
	SampleRate int
	Channels   int
	CodecArgs  []string          // e.g. -c:a libvorbis -q:a 6
	Metadata   map[string]string // Written with -metadata key=value
	Output     string
}

// Encode pipes raw PCM into ffmpeg and writes the encoded file, overwriting any existing one.
func (r *Runner) Encode(ctx context.Context, req EncodeRequest) error {
	args := []string{"-hide_banner", "-nostats", "-v", "error", "-y"}
	args = append(args, PCMInput(nil, req.SampleRate, req.Channels).Args()...)
	for _, key := range sortedKeys(req.Metadata) {
		if v := req.Metadata[key]; v != "" {
			args = append(args, "-metadata", key+"="+v)
		}
	}
	args = append(args, req.CodecArgs...)
	args = append(args, req.Output)

	_, err := r.run(ctx, r.FFmpeg, "ffmpeg", args, bytes.NewReader(req.PCM), nil)
	return err
}

func (r *Runner) run(ctx context.Context, bin, tool string, args []string, stdin io.Reader, stdout io.Writer) (string, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	start := time.Now()
	log := r.Log.WithFields(logrus.Fields{
		"tool": tool,
		"args": strings.Join(args, " "),
	})
	log.Debug("running")

	err := cmd.Run()
	log = log.WithField("elapsed", time.Since(start).Round(time.Millisecond))

	if err != nil {
		toolErr := &ToolError{
			Tool:     tool,
			Args:     args,
			Stderr:   stderr.String(),
			TimedOut: errors.Is(ctx.Err(), context.DeadlineExceeded),
			Err:      err,
		}
		log.WithError(err).Debug("failed")
		return stderr.String(), toolErr
	}

	log.Debug("finished")
	return stderr.String(), nil
}
