// Package config loads levelset's TOML settings file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/linuxmatters/levelset/internal/processor"
)

// CacheEnv names the environment variable that overrides the cache path
const CacheEnv = "LEVELSET_CACHE"

// ErrInvalidSettings is returned for unreadable or inconsistent settings files.
var ErrInvalidSettings = errors.New("invalid settings")

// Duration wraps time.Duration so TOML can carry values like "5m".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Encoder describes how ffmpeg encodes one output format.
type Encoder struct {
	Codec       string `toml:"codec"`
	QualityFlag string `toml:"quality_flag"`
	Quality     string `toml:"quality"`
}

// Args returns the ffmpeg output arguments selecting this encoder.
func (e Encoder) Args() []string {
	args := []string{"-c:a", e.Codec}
	if e.QualityFlag != "" && e.Quality != "" {
		args = append(args, e.QualityFlag, e.Quality)
	}
	return args
}

// Settings holds every tunable value. Zero-valued fields in a settings file
// keep their defaults.
type Settings struct {
	MaxGainDB         float64            `toml:"max_gain_db"`
	ClipThresholdDBFS float64            `toml:"clip_threshold_dbfs"`
	InputFormats      []string           `toml:"input_formats"`
	Encoders          map[string]Encoder `toml:"encoders"`
	AnalysisTimeout   Duration           `toml:"analysis_timeout"`
	FFmpegPath        string             `toml:"ffmpeg_path"`
	FFprobePath       string             `toml:"ffprobe_path"`
	CachePath         string             `toml:"cache_path"`
	Meter             string             `toml:"meter"`
	Jobs              int                `toml:"jobs"`
}

// DefaultSettings returns the built-in settings.
func DefaultSettings() *Settings {
	return &Settings{
		MaxGainDB:         processor.DefaultMaxGainDB,
		ClipThresholdDBFS: processor.DefaultClipThresholdDBFS,
		InputFormats:      []string{".wav", ".ogg", ".flac"},
		Encoders: map[string]Encoder{
			"wav":  {Codec: "pcm_s16le"},
			"ogg":  {Codec: "libvorbis", QualityFlag: "-q:a", Quality: "6"},
			"flac": {Codec: "flac", QualityFlag: "-compression_level", Quality: "5"},
			"mp3":  {Codec: "libmp3lame", QualityFlag: "-b:a", Quality: "320k"},
		},
		AnalysisTimeout: Duration{5 * time.Minute},
		FFmpegPath:      "ffmpeg",
		FFprobePath:     "ffprobe",
		Meter:           "ffmpeg",
		Jobs:            1,
	}
}

// Load reads a TOML settings file on top of the defaults.
// An empty path returns the defaults. The cache path environment override is applied last.
func Load(path string) (*Settings, error) {
	s := DefaultSettings()

	if path != "" {
		md, err := toml.DecodeFile(path, s)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read %s: %v", ErrInvalidSettings, path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			sort.Strings(keys)
			return nil, fmt.Errorf("%w: unknown keys in %s: %s", ErrInvalidSettings, path, strings.Join(keys, ", "))
		}
	}

	if env := os.Getenv(CacheEnv); env != "" {
		s.CachePath = env
	}

	s.normalise()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Settings) normalise() {
	for i, ext := range s.InputFormats {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		s.InputFormats[i] = ext
	}

	// A partial [encoders.x] table only overrides the fields it names
	if s.Encoders == nil {
		s.Encoders = make(map[string]Encoder)
	}
	for format, def := range DefaultSettings().Encoders {
		e := s.Encoders[format]
		if e.Codec == "" {
			e.Codec = def.Codec
		}
		if e.QualityFlag == "" {
			e.QualityFlag = def.QualityFlag
		}
		if e.Quality == "" {
			e.Quality = def.Quality
		}
		s.Encoders[format] = e
	}

	if s.CachePath != "" {
		s.CachePath = expandHome(s.CachePath)
	}
}

// Validate checks the settings for values no command could work with.
func (s *Settings) Validate() error {
	if s.MaxGainDB <= 0 {
		return fmt.Errorf("%w: max_gain_db must be positive, got %v", ErrInvalidSettings, s.MaxGainDB)
	}
	if s.ClipThresholdDBFS > 0 {
		return fmt.Errorf("%w: clip_threshold_dbfs must be at or below 0 dBFS, got %v", ErrInvalidSettings, s.ClipThresholdDBFS)
	}
	if len(s.InputFormats) == 0 {
		return fmt.Errorf("%w: input_formats is empty", ErrInvalidSettings)
	}
	for _, format := range []string{"ogg", "flac", "mp3"} {
		if s.Encoders[format].Codec == "" {
			return fmt.Errorf("%w: no codec configured for %s", ErrInvalidSettings, format)
		}
	}
	if s.AnalysisTimeout.Duration <= 0 {
		return fmt.Errorf("%w: analysis_timeout must be positive", ErrInvalidSettings)
	}
	switch s.Meter {
	case "ffmpeg", "native":
	default:
		return fmt.Errorf("%w: meter must be \"ffmpeg\" or \"native\", got %q", ErrInvalidSettings, s.Meter)
	}
	if s.Jobs < 1 {
		return fmt.Errorf("%w: jobs must be at least 1, got %d", ErrInvalidSettings, s.Jobs)
	}
	return nil
}

// Limits returns the gain stage limits for the processor.
func (s *Settings) Limits() processor.Limits {
	return processor.Limits{
		MaxGainDB:         s.MaxGainDB,
		ClipThresholdDBFS: s.ClipThresholdDBFS,
	}
}

// DefaultCachePath returns the per-user cache database location.
func DefaultCachePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "levelset", "measurements.db")
	}
	return filepath.Join(dir, "levelset", "measurements.db")
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
