package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNewLoggerDefault(t *testing.T) {
	var stderr bytes.Buffer
	log, closer, err := NewLogger(LoggerOptions{Stderr: &stderr})
	if err != nil {
		t.Fatalf("NewLogger() error: %v", err)
	}
	defer closer.Close()

	log.Debug("hidden detail")
	log.Warn("cache unavailable")

	out := stderr.String()
	if strings.Contains(out, "hidden detail") {
		t.Errorf("debug entry reached stderr without --verbose: %q", out)
	}
	if !strings.Contains(out, "cache unavailable") {
		t.Errorf("warning missing from stderr: %q", out)
	}
}

func TestNewLoggerVerbose(t *testing.T) {
	var stderr bytes.Buffer
	log, closer, err := NewLogger(LoggerOptions{Verbose: true, Stderr: &stderr})
	if err != nil {
		t.Fatalf("NewLogger() error: %v", err)
	}
	defer closer.Close()

	if log.GetLevel() != logrus.DebugLevel {
		t.Errorf("level = %v, want debug", log.GetLevel())
	}
	log.WithField("file", "a.wav").Debug("first pass")
	if out := stderr.String(); !strings.Contains(out, "first pass") || !strings.Contains(out, "file=a.wav") {
		t.Errorf("stderr = %q, want debug entry with fields", out)
	}
}

func TestNewLoggerDebugFile(t *testing.T) {
	var stderr bytes.Buffer
	path := filepath.Join(t.TempDir(), "debug.log")

	log, closer, err := NewLogger(LoggerOptions{DebugLog: path, Stderr: &stderr})
	if err != nil {
		t.Fatalf("NewLogger() error: %v", err)
	}
	log.Debug("ffmpeg args")
	log.Error("export failed")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading debug log: %v", err)
	}
	for _, want := range []string{"ffmpeg args", "export failed"} {
		if !strings.Contains(string(content), want) {
			t.Errorf("debug log missing %q: %q", want, content)
		}
	}
	if out := stderr.String(); strings.Contains(out, "ffmpeg args") || !strings.Contains(out, "export failed") {
		t.Errorf("stderr = %q, want only the error entry", out)
	}
}

func TestNewLoggerDebugFileUnwritable(t *testing.T) {
	_, _, err := NewLogger(LoggerOptions{DebugLog: filepath.Join(t.TempDir(), "no", "such", "debug.log")})
	if err == nil {
		t.Error("NewLogger() with an unwritable debug log should fail")
	}
}
