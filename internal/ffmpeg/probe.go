package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ErrNoAudioStream is returned when a file's audio stream layout cannot be read.
var ErrNoAudioStream = errors.New("no usable audio stream")

var (
	// Stream #0:0(eng): Audio: vorbis, 44100 Hz, stereo, fltp, 112 kb/s
	streamPattern = regexp.MustCompile(`Stream #\d+:\d+[^:]*: Audio: ([^,\s]+)[^,]*, (\d+) Hz, ([^,\n]+)`)
	// Duration: 00:01:02.50, start: ...
	durationPattern = regexp.MustCompile(`Duration: (\d+):(\d{2}):(\d{2}(?:\.\d+)?)`)
	channelsPattern = regexp.MustCompile(`^(\d+) channels`)
)

// Channel counts of ffmpeg's named layouts
var layoutChannels = map[string]int{
	"mono":   1,
	"stereo": 2,
	"2.1":    3,
	"3.0":    3,
	"quad":   4,
	"4.0":    4,
	"4.1":    5,
	"5.0":    5,
	"5.1":    6,
	"6.0":    6,
	"6.1":    7,
	"7.0":    7,
	"7.1":    8,
}

// StreamInfo describes the first audio stream of a file.
type StreamInfo struct {
	Codec      string
	SampleRate int
	Channels   int
	Duration   time.Duration
}

type probeOutput struct {
	Streams []struct {
		CodecName  string `json:"codec_name"`
		SampleRate string `json:"sample_rate"`
		Channels   int    `json:"channels"`
		Duration   string `json:"duration"`
	} `json:"streams"`
}

// Probe reads the stream layout of an audio file with ffprobe. Without
// ffprobe the layout is read from ffmpeg's input banner instead.
func (r *Runner) Probe(ctx context.Context, path string) (*StreamInfo, error) {
	if r.FFprobe == "" {
		return r.probeBanner(ctx, path)
	}

	args := []string{
		"-v", "error",
		"-select_streams", "a:0",
		"-show_entries", "stream=codec_name,sample_rate,channels,duration",
		"-of", "json",
		path,
	}

	var out bytes.Buffer
	if _, err := r.run(ctx, r.FFprobe, "ffprobe", args, nil, &out); err != nil {
		return nil, err
	}
	return parseProbe(out.Bytes())
}

func parseProbe(data []byte) (*StreamInfo, error) {
	var po probeOutput
	if err := json.Unmarshal(data, &po); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	if len(po.Streams) == 0 {
		return nil, ErrNoAudioStream
	}

	s := po.Streams[0]
	rate, err := strconv.Atoi(s.SampleRate)
	if err != nil || rate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %q", s.SampleRate)
	}
	if s.Channels <= 0 {
		return nil, fmt.Errorf("invalid channel count %d", s.Channels)
	}

	info := &StreamInfo{
		Codec:      s.CodecName,
		SampleRate: rate,
		Channels:   s.Channels,
	}
	if secs, err := strconv.ParseFloat(s.Duration, 64); err == nil {
		info.Duration = time.Duration(secs * float64(time.Second))
	}
	return info, nil
}

func (r *Runner) probeBanner(ctx context.Context, path string) (*StreamInfo, error) {
	args := []string{
		"-hide_banner", "-nostats",
		"-i", path,
		"-map", "0:a:0", "-t", "0",
		"-f", "null", "-",
	}
	stderr, runErr := r.run(ctx, r.FFmpeg, "ffmpeg", args, nil, nil)
	info, err := parseStreamBanner(stderr)
	if runErr != nil {
		// ffmpeg exits non-zero when -map finds no audio stream
		if err != nil && ctx.Err() == nil {
			return nil, fmt.Errorf("%w: %w", err, runErr)
		}
		return nil, runErr
	}
	return info, err
}

// parseStreamBanner reads the first audio stream from the input description
// ffmpeg prints to stderr.
func parseStreamBanner(stderr string) (*StreamInfo, error) {
	m := streamPattern.FindStringSubmatch(stderr)
	if m == nil {
		return nil, fmt.Errorf("%w: no audio stream in ffmpeg output", ErrNoAudioStream)
	}

	rate, err := strconv.Atoi(m[2])
	if err != nil || rate <= 0 {
		return nil, fmt.Errorf("%w: invalid sample rate %q", ErrNoAudioStream, m[2])
	}

	layout := strings.TrimSpace(m[3])
	channels, ok := layoutChannels[strings.SplitN(layout, "(", 2)[0]]
	if !ok {
		cm := channelsPattern.FindStringSubmatch(layout)
		if cm == nil {
			return nil, fmt.Errorf("%w: unknown channel layout %q", ErrNoAudioStream, layout)
		}
		channels, _ = strconv.Atoi(cm[1])
	}
	if channels <= 0 {
		return nil, fmt.Errorf("%w: invalid channel layout %q", ErrNoAudioStream, layout)
	}

	info := &StreamInfo{Codec: m[1], SampleRate: rate, Channels: channels}
	if d := durationPattern.FindStringSubmatch(stderr); d != nil {
		hours, _ := strconv.Atoi(d[1])
		mins, _ := strconv.Atoi(d[2])
		secs, _ := strconv.ParseFloat(d[3], 64)
		info.Duration = time.Duration(hours)*time.Hour + time.Duration(mins)*time.Minute +
			time.Duration(secs*float64(time.Second))
	}
	return info, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
