// Package batch loads per-file processing configuration and discovers input files.
package batch

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/linuxmatters/levelset/internal/processor"
)

// ErrConfigParse is returned for any unreadable or invalid batch configuration.
var ErrConfigParse = errors.New("invalid batch configuration")

// FileSpec is the requested adjustment for one file
type FileSpec struct {
	Path string
	Gain processor.GainSpec

	// Unset is true when the record named neither a gain nor a target
	Unset bool
}

// FileSpecs is a loaded batch configuration
type FileSpecs []FileSpec

// Paths returns the configured file paths in file order
func (s FileSpecs) Paths() []string {
	paths := make([]string, len(s))
	for i, spec := range s {
		paths[i] = spec.Path
	}
	return paths
}

// Lookup finds the spec for path by base name. When several records share a
// base name the last one wins.
func (s FileSpecs) Lookup(path string) (FileSpec, bool) {
	name := filepath.Base(path)
	for i := len(s) - 1; i >= 0; i-- {
		if filepath.Base(s[i].Path) == name {
			return s[i], true
		}
	}
	return FileSpec{}, false
}

// jsonRecord is one element of a JSON configuration array
type jsonRecord struct {
	File       string   `json:"file"`
	GainDB     *float64 `json:"gain_db"`
	TargetLUFS *float64 `json:"target_lufs"`
}

// LoadConfig reads a .csv or .json batch configuration.
//
// CSV:
//
//	file,gain_db,target_lufs
//	track1.wav,+3.5,
//	track2.ogg,,-14
//
// JSON:
//
//	[{"file": "track1.wav", "gain_db": 3.5}, {"file": "track2.ogg", "target_lufs": -14}]
//
// A record naming both a gain and a target fails the whole load.
func LoadConfig(path string) (FileSpecs, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfigParse, err)
	}
	defer f.Close()

	var specs FileSpecs
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		specs, err = parseCSV(f)
	case ".json":
		specs, err = parseJSON(f)
	default:
		return nil, fmt.Errorf("%w: unsupported config file format %q", ErrConfigParse, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConfigParse, filepath.Base(path), err)
	}
	return specs, nil
}

func parseCSV(r io.Reader) (FileSpecs, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.New("empty file")
	}
	if err != nil {
		return nil, err
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := cols["file"]; !ok {
		return nil, errors.New(`missing "file" column`)
	}

	field := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var specs FileSpecs
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line, _ := reader.FieldPos(0)

		gain, err := parseOptional(field(row, "gain_db"))
		if err != nil {
			return nil, fmt.Errorf("line %d: gain_db: %w", line, err)
		}
		target, err := parseOptional(field(row, "target_lufs"))
		if err != nil {
			return nil, fmt.Errorf("line %d: target_lufs: %w", line, err)
		}
		spec, err := newFileSpec(field(row, "file"), gain, target)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func parseJSON(r io.Reader) (FileSpecs, error) {
	var records []jsonRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, err
	}

	specs := make(FileSpecs, 0, len(records))
	for i, rec := range records {
		spec, err := newFileSpec(rec.File, rec.GainDB, rec.TargetLUFS)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i+1, err)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func parseOptional(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("%q is not a number", s)
	}
	return &v, nil
}

func newFileSpec(file string, gain, target *float64) (FileSpec, error) {
	if file == "" {
		return FileSpec{}, errors.New("missing file")
	}
	switch {
	case gain != nil && target != nil:
		return FileSpec{}, fmt.Errorf("%s: specify gain_db or target_lufs, not both", file)
	case target != nil:
		return FileSpec{Path: file, Gain: processor.Target(*target)}, nil
	case gain != nil:
		return FileSpec{Path: file, Gain: processor.Explicit(*gain)}, nil
	default:
		return FileSpec{Path: file, Gain: processor.Explicit(0), Unset: true}, nil
	}
}
