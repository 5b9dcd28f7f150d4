package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func writeSettings(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "levelset.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write settings: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv(CacheEnv, "")

	s, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error: %v", err)
	}

	if s.MaxGainDB != 12 {
		t.Errorf("MaxGainDB = %v, want 12", s.MaxGainDB)
	}
	if s.ClipThresholdDBFS != -0.3 {
		t.Errorf("ClipThresholdDBFS = %v, want -0.3", s.ClipThresholdDBFS)
	}
	if want := []string{".wav", ".ogg", ".flac"}; !reflect.DeepEqual(s.InputFormats, want) {
		t.Errorf("InputFormats = %v, want %v", s.InputFormats, want)
	}
	if s.AnalysisTimeout.Duration != 5*time.Minute {
		t.Errorf("AnalysisTimeout = %v, want 5m", s.AnalysisTimeout)
	}

	tests := []struct {
		format string
		want   []string
	}{
		{"wav", []string{"-c:a", "pcm_s16le"}},
		{"ogg", []string{"-c:a", "libvorbis", "-q:a", "6"}},
		{"flac", []string{"-c:a", "flac", "-compression_level", "5"}},
		{"mp3", []string{"-c:a", "libmp3lame", "-b:a", "320k"}},
	}
	for _, tt := range tests {
		if got := s.Encoders[tt.format].Args(); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Encoders[%s].Args() = %v, want %v", tt.format, got, tt.want)
		}
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv(CacheEnv, "")

	path := writeSettings(t, `
max_gain_db = 6.0
clip_threshold_dbfs = -1.0
input_formats = ["WAV", "flac", ".aiff"]
analysis_timeout = "90s"
meter = "native"
jobs = 4

[encoders.mp3]
quality = "192k"
`)

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if s.MaxGainDB != 6 || s.ClipThresholdDBFS != -1 {
		t.Errorf("limits = %+v", s.Limits())
	}
	if want := []string{".wav", ".flac", ".aiff"}; !reflect.DeepEqual(s.InputFormats, want) {
		t.Errorf("InputFormats = %v, want %v", s.InputFormats, want)
	}
	if s.AnalysisTimeout.Duration != 90*time.Second {
		t.Errorf("AnalysisTimeout = %v, want 90s", s.AnalysisTimeout)
	}
	if s.Meter != "native" || s.Jobs != 4 {
		t.Errorf("Meter = %q, Jobs = %d", s.Meter, s.Jobs)
	}

	mp3 := s.Encoders["mp3"]
	if mp3.Codec != "libmp3lame" || mp3.QualityFlag != "-b:a" || mp3.Quality != "192k" {
		t.Errorf("Encoders[mp3] = %+v, want libmp3lame -b:a 192k", mp3)
	}
	if s.Encoders["ogg"].Codec != "libvorbis" {
		t.Errorf("Encoders[ogg] lost its default codec: %+v", s.Encoders["ogg"])
	}
}

func TestLoadErrors(t *testing.T) {
	t.Setenv(CacheEnv, "")

	tests := []struct {
		name    string
		content string
	}{
		{"syntax", "max_gain_db = ="},
		{"unknown key", "max_gian_db = 3.0"},
		{"negative max gain", "max_gain_db = -1.0"},
		{"positive clip", "clip_threshold_dbfs = 1.0"},
		{"bad timeout", `analysis_timeout = "soon"`},
		{"bad meter", `meter = "vu"`},
		{"no inputs", "input_formats = []"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeSettings(t, tt.content))
			if !errors.Is(err, ErrInvalidSettings) {
				t.Errorf("Load() error = %v, want ErrInvalidSettings", err)
			}
		})
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
		if !errors.Is(err, ErrInvalidSettings) {
			t.Errorf("Load() error = %v, want ErrInvalidSettings", err)
		}
	})
}

func TestLoadCacheEnv(t *testing.T) {
	t.Setenv(CacheEnv, "/tmp/levelset-test.db")

	s, err := Load(writeSettings(t, `cache_path = "/elsewhere.db"`))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if s.CachePath != "/tmp/levelset-test.db" {
		t.Errorf("CachePath = %q, want env override", s.CachePath)
	}
}
