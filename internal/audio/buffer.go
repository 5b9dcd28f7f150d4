// Package audio handles decoded sample buffers, file decoding and export.
package audio

import (
	"encoding/binary"
	"math"
	"time"
)

// SampleBuffer holds decoded audio as interleaved 32-bit float samples.
// Data is laid out frame by frame: frame i, channel c lives at Data[i*Channels+c].
type SampleBuffer struct {
	Data       []float32
	SampleRate int
	Channels   int
}

// NewSampleBuffer builds an interleaved buffer from frames × channels rows.
// Every row must have the same length; the first row defines the channel count.
func NewSampleBuffer(frames [][]float32, sampleRate int) *SampleBuffer {
	channels := 1
	if len(frames) > 0 {
		channels = len(frames[0])
	}

	data := make([]float32, 0, len(frames)*channels)
	for _, frame := range frames {
		data = append(data, frame[:channels]...)
	}

	return &SampleBuffer{
		Data:       data,
		SampleRate: sampleRate,
		Channels:   channels,
	}
}

// Frames returns the number of sample frames in the buffer
func (b *SampleBuffer) Frames() int {
	if b.Channels <= 0 {
		return 0
	}
	return len(b.Data) / b.Channels
}

// Duration returns the playback length of the buffer
func (b *SampleBuffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(b.Frames()) / float64(b.SampleRate) * float64(time.Second))
}

// Frame returns a copy of the samples of frame i, one per channel.
func (b *SampleBuffer) Frame(i int) []float32 {
	out := make([]float32, b.Channels)
	copy(out, b.Data[i*b.Channels:(i+1)*b.Channels])
	return out
}

// Clone returns a deep copy with independent sample storage.
func (b *SampleBuffer) Clone() *SampleBuffer {
	data := make([]float32, len(b.Data))
	copy(data, b.Data)
	return &SampleBuffer{
		Data:       data,
		SampleRate: b.SampleRate,
		Channels:   b.Channels,
	}
}

// Bytes encodes the buffer as raw little-endian float32 PCM (ffmpeg's f32le).
func (b *SampleBuffer) Bytes() []byte {
	out := make([]byte, len(b.Data)*4)
	for i, s := range b.Data {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(s))
	}
	return out
}

// FromF32LE decodes raw little-endian float32 PCM into a buffer.
// Trailing bytes that do not make up a whole frame are dropped.
func FromF32LE(raw []byte, sampleRate, channels int) *SampleBuffer {
	if channels <= 0 {
		channels = 1
	}
	samples := len(raw) / 4
	samples -= samples % channels

	data := make([]float32, samples)
	for i := range data {
		data[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}

	return &SampleBuffer{
		Data:       data,
		SampleRate: sampleRate,
		Channels:   channels,
	}
}
