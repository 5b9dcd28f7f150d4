package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// LoggerOptions selects where diagnostic entries go
type LoggerOptions struct {
	Verbose  bool      // Debug entries to Stderr
	DebugLog string    // Debug entries to this file (appended)
	Stderr   io.Writer // Defaults to os.Stderr
}

// NewLogger builds the diagnostic logger. With neither option set it discards
// everything below warnings, which still reach stderr. The returned closer
// releases the debug log file and is never nil.
func NewLogger(opts LoggerOptions) (*logrus.Logger, io.Closer, error) {
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: !opts.Verbose,
		FullTimestamp:    true,
	})
	log.SetOutput(stderr)
	log.SetLevel(logrus.WarnLevel)

	var closer io.Closer = nopCloser{}
	if opts.Verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	if opts.DebugLog != "" {
		f, err := os.OpenFile(opts.DebugLog, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening debug log: %w", err)
		}
		closer = f
		log.SetLevel(logrus.DebugLevel)

		if opts.Verbose {
			log.SetOutput(io.MultiWriter(stderr, f))
		} else {
			// Debug entries go to the file only; warnings still reach the terminal
			log.SetOutput(f)
			log.AddHook(&levelHook{out: stderr, levels: []logrus.Level{logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel, logrus.WarnLevel}})
		}
	}

	return log, closer, nil
}

// levelHook copies entries at the given levels to a second writer
type levelHook struct {
	out    io.Writer
	levels []logrus.Level
}

func (h *levelHook) Levels() []logrus.Level {
	return h.levels
}

func (h *levelHook) Fire(entry *logrus.Entry) error {
	line, err := entry.String()
	if err != nil {
		return err
	}
	_, err = io.WriteString(h.out, line)
	return err
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
