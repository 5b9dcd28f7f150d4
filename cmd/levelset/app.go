package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/linuxmatters/levelset/internal/audio"
	"github.com/linuxmatters/levelset/internal/batch"
	"github.com/linuxmatters/levelset/internal/cache"
	"github.com/linuxmatters/levelset/internal/cli"
	"github.com/linuxmatters/levelset/internal/config"
	"github.com/linuxmatters/levelset/internal/ffmpeg"
	"github.com/linuxmatters/levelset/internal/logging"
	"github.com/linuxmatters/levelset/internal/loudness"
	"github.com/linuxmatters/levelset/internal/pipeline"
	"github.com/linuxmatters/levelset/internal/processor"
	"github.com/linuxmatters/levelset/internal/ui"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

// App is everything a command needs, built once from the global flags
type App struct {
	Settings *config.Settings
	Log      *logrus.Logger
	Pipeline *pipeline.Pipeline
	Relay    *ui.Relay
	Meter    string

	// Store is the measurement cache, nil when disabled or unavailable
	Store *cache.Store

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Live progress display instead of line progress
	TUI bool

	closers []io.Closer
}

// newApp loads settings, checks for ffmpeg and wires the measurement stack.
// Without audioTools only the measurement cache is opened.
func newApp(g Globals, audioTools bool, stdin io.Reader, stdout, stderr io.Writer) (*App, error) {
	settings, err := config.Load(g.Config)
	if err != nil {
		return nil, err
	}
	if g.Meter != "" {
		settings.Meter = strings.ToLower(g.Meter)
	}
	if g.Cache != "" {
		settings.CachePath = g.Cache
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	log, logCloser, err := logging.NewLogger(logging.LoggerOptions{
		Verbose:  g.Verbose,
		DebugLog: g.DebugLog,
		Stderr:   stderr,
	})
	if err != nil {
		return nil, err
	}

	app := &App{
		Settings: settings,
		Log:      log,
		Relay:    &ui.Relay{},
		Meter:    settings.Meter,
		Stdin:    stdin,
		Stdout:   stdout,
		Stderr:   stderr,
		TUI:      !g.NoTUI && isTerminal(stdout),
		closers:  []io.Closer{logCloser},
	}

	if !audioTools {
		if !g.NoCache {
			app.openStore()
		}
		return app, nil
	}

	runner, err := ffmpeg.NewRunner(settings.FFmpegPath, settings.FFprobePath, settings.AnalysisTimeout.Duration, log)
	if err != nil {
		app.Close()
		return nil, err
	}

	loader := audio.NewLoader(runner, settings.InputFormats)

	codecs := make(map[audio.Format][]string)
	for name, enc := range settings.Encoders {
		format, err := audio.ParseFormat(name)
		if err != nil {
			log.WithField("format", name).Warn("ignoring encoder for unknown format")
			continue
		}
		codecs[format] = enc.Args()
	}

	var measurer loudness.Measurer
	switch settings.Meter {
	case "native":
		measurer = loudness.NewNativeMeter(loader)
	default:
		measurer = loudness.NewFFmpegMeasurer(runner, app.Relay.State, log)
	}

	if !g.NoCache {
		measurer = app.withCache(measurer)
	}

	app.Pipeline = &pipeline.Pipeline{
		Loader:    loader,
		Measurer:  measurer,
		Processor: processor.New(settings.Limits()),
		Exporter:  audio.NewExporter(runner, codecs),
		Jobs:      settings.Jobs,
		Log:       log,
	}

	log.WithFields(logrus.Fields{
		"meter":    settings.Meter,
		"max_gain": settings.MaxGainDB,
		"jobs":     settings.Jobs,
	}).Debug("settings loaded")
	return app, nil
}

// withCache wraps m with the measurement cache. A cache that cannot be
// opened is reported and skipped.
func (a *App) withCache(m loudness.Measurer) loudness.Measurer {
	if !a.openStore() {
		return m
	}
	return cache.NewCachedMeasurer(m, a.Store, a.Settings.Meter, a.Log)
}

// openStore opens the measurement cache into a.Store and reports whether
// it is available.
func (a *App) openStore() bool {
	path := a.Settings.CachePath
	if path == "" {
		path = config.DefaultCachePath()
	}
	store, err := cache.Open(path)
	if err != nil {
		cli.PrintWarning(fmt.Sprintf("Measurement cache unavailable: %v", err))
		a.Log.WithError(err).WithField("path", path).Warn("cache disabled")
		return false
	}
	a.Store = store
	a.closers = append(a.closers, store)
	return true
}

// Close releases the cache and the debug log
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.Log.WithError(err).Debug("close failed")
		}
	}
	a.closers = nil
}

// jobs applies a command's --jobs override
func (a *App) jobs(n int) {
	if n > 0 {
		a.Pipeline.Jobs = n
	}
}

// collect expands the command line paths into audio files. Missing paths
// are fatal; unsupported files are reported and skipped.
func (a *App) collect(paths []string, recursive bool) ([]string, error) {
	c, err := batch.Collect(paths, recursive, a.Settings.InputFormats)
	if err != nil {
		return nil, err
	}
	if len(c.Missing) > 0 {
		return nil, fmt.Errorf("path not found: %s", strings.Join(c.Missing, ", "))
	}
	for _, path := range c.Skipped {
		cli.PrintWarning(fmt.Sprintf("Skipping %s: unsupported format", path))
	}
	return c.Files, nil
}

// withProgress runs work with the live display when stdout is a terminal,
// or with line progress on stderr otherwise. quiet suppresses line progress.
func (a *App) withProgress(ctx context.Context, title string, paths []string, quiet bool, work func(ctx context.Context, observe pipeline.Observer)) error {
	if a.TUI && !quiet {
		final, err := a.Relay.Run(ctx, ui.NewModel(title, paths), a.Stdout, func(ctx context.Context) {
			work(ctx, a.Relay.Observe)
		})
		if err != nil {
			return err
		}
		if final.Quit {
			return errInterrupted
		}
		return ctx.Err()
	}

	var observe pipeline.Observer
	if !quiet {
		observe = ui.LineObserver(a.Stderr, len(paths))
	}
	work(ctx, observe)
	return ctx.Err()
}

// analyze measures every file and prints nothing but progress
func (a *App) analyze(ctx context.Context, files []string, quiet bool) ([]pipeline.AnalysisResult, error) {
	var results []pipeline.AnalysisResult
	err := a.withProgress(ctx, "Analysing", files, quiet, func(ctx context.Context, observe pipeline.Observer) {
		results = a.Pipeline.AnalyzeAll(ctx, files, observe)
	})
	return results, err
}

// render processes every job
func (a *App) render(ctx context.Context, jobs []pipeline.RenderJob, clip bool) ([]pipeline.RenderResult, error) {
	paths := make([]string, len(jobs))
	for i, job := range jobs {
		paths[i] = job.Analysis.Path
	}
	var results []pipeline.RenderResult
	err := a.withProgress(ctx, "Processing", paths, false, func(ctx context.Context, observe pipeline.Observer) {
		results = a.Pipeline.RenderAll(ctx, jobs, clip, observe)
	})
	return results, err
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
