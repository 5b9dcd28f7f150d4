package audio

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
)

var (
	// ErrUnsupportedFormat is returned for input files or output formats levelset cannot handle.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrExport is returned when writing an output file fails.
	ErrExport = errors.New("export failed")
)

// Format is an output container/codec choice
type Format string

const (
	FormatWAV  Format = "wav"
	FormatOGG  Format = "ogg"
	FormatFLAC Format = "flac"
	FormatMP3  Format = "mp3"
)

// Formats lists every output format in display order.
var Formats = []Format{FormatWAV, FormatOGG, FormatFLAC, FormatMP3}

// ParseFormat validates an output format name.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")))
	if !slices.Contains(Formats, f) {
		return "", fmt.Errorf("%w: output format %q (choose wav, ogg, flac or mp3)", ErrUnsupportedFormat, s)
	}
	return f, nil
}

// Extension returns the file extension, including the dot
func (f Format) Extension() string {
	return "." + string(f)
}

// SupportedInput reports whether path has one of the given input extensions.
// Extensions are compared case-insensitively.
func SupportedInput(path string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}
