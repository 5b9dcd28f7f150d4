package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/linuxmatters/levelset/internal/audio"
	"github.com/linuxmatters/levelset/internal/batch"
	"github.com/linuxmatters/levelset/internal/cli"
	"github.com/linuxmatters/levelset/internal/logging"
	"github.com/linuxmatters/levelset/internal/pipeline"
	"github.com/linuxmatters/levelset/internal/processor"
)

// AnalyzeCmd measures files without changing them
type AnalyzeCmd struct {
	Paths     []string `arg:"" name:"paths" help:"Audio files or directories to analyse"`
	Recursive bool     `short:"r" help:"Search directories recursively"`
	JSON      bool     `name:"json" help:"Print results as JSON"`
	Jobs      int      `short:"j" help:"Files measured in parallel (overrides settings)"`
}

func (c *AnalyzeCmd) Run(ctx context.Context, app *App) error {
	app.jobs(c.Jobs)

	files, err := app.collect(c.Paths, c.Recursive)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		cli.PrintWarning("No audio files found.")
		return nil
	}

	results, err := app.analyze(ctx, files, c.JSON)
	if err != nil {
		return err
	}
	for _, r := range results {
		if !r.OK() {
			cli.PrintError(fmt.Sprintf("Error analyzing %s: %v", filepath.Base(r.Path), r.Err))
		}
	}

	if c.JSON {
		return logging.WriteJSON(app.Stdout, results)
	}
	fmt.Fprintln(app.Stdout)
	fmt.Fprint(app.Stdout, logging.AnalysisTable("Loudness Analysis", results))
	return nil
}

// ProcessCmd applies a gain to each file and exports the results
type ProcessCmd struct {
	Paths      []string `arg:"" name:"paths" optional:"" help:"Audio files or directories (defaults to the files in --config-file)"`
	Output     string   `short:"o" required:"" type:"path" help:"Output directory"`
	Format     string   `short:"f" default:"wav" enum:"wav,ogg,flac,mp3" help:"Output format"`
	ConfigFile string   `type:"existingfile" help:"CSV or JSON file with a gain or target per file"`
	Clip       bool     `help:"Hard clip peaks at the clip threshold after the gain"`
	Recursive  bool     `short:"r" help:"Search directories recursively"`
	DryRun     bool     `help:"Process and compare without exporting"`
	Logs       bool     `help:"Write a loudness report per file"`
	Jobs       int      `short:"j" help:"Files processed in parallel (overrides settings)"`
}

func (c *ProcessCmd) Run(ctx context.Context, app *App) error {
	app.jobs(c.Jobs)
	start := time.Now()
	out := app.Stdout

	format, err := audio.ParseFormat(c.Format)
	if err != nil {
		return err
	}

	var specs batch.FileSpecs
	paths := c.Paths
	if c.ConfigFile != "" {
		specs, err = batch.LoadConfig(c.ConfigFile)
		if err != nil {
			return err
		}
		if len(paths) == 0 {
			paths = specs.Paths()
		}
	}
	if len(paths) == 0 {
		return errors.New("provide audio files or use --config-file")
	}

	files, err := app.collect(paths, c.Recursive)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		cli.PrintWarning("No audio files found.")
		return nil
	}
	fmt.Fprintf(out, "Found %d audio file(s)\n", len(files))

	cli.PrintStep(out, "Step 1: Analyzing original loudness...")
	results, err := app.analyze(ctx, files, false)
	if err != nil {
		return err
	}
	for _, r := range results {
		if !r.OK() {
			cli.PrintFailure(out, fmt.Sprintf("%s: %v", filepath.Base(r.Path), r.Err))
		}
	}
	fmt.Fprint(out, logging.AnalysisTable("Original Loudness", results))

	cli.PrintStep(out, "Step 2: Setting gain adjustments...")
	var jobs []pipeline.RenderJob
	if specs != nil {
		jobs = planFromConfig(out, app.Pipeline.Processor, results, specs)
	} else {
		prompter := cli.NewGainPrompter(app.Stdin, out)
		jobs, err = interruptible(ctx, func() ([]pipeline.RenderJob, error) {
			return promptGains(prompter, out, app.Pipeline.Processor, results)
		})
		if err != nil {
			return err
		}
	}
	if len(jobs) == 0 {
		cli.PrintWarning("No files to process.")
		return nil
	}

	cli.PrintStep(out, "Step 3: Processing and previewing...")
	rendered, err := app.render(ctx, jobs, c.Clip)
	if err != nil {
		return err
	}
	var outcomes []*pipeline.Outcome
	for _, r := range rendered {
		if r.Err != nil {
			cli.PrintFailure(out, fmt.Sprintf("%s: %v", filepath.Base(r.Path), r.Err))
			continue
		}
		outcomes = append(outcomes, r.Outcome)
	}

	fmt.Fprint(out, logging.ComparisonTable(comparisonTitle("Before/After Comparison", c.Clip), outcomes))
	warnClipping(outcomes)

	if c.DryRun {
		if c.Logs {
			app.writeReports(outcomes, nil, c.Output, format, start)
		}
		fmt.Fprintln(out)
		cli.PrintWarning("Dry run - no files exported.")
		return nil
	}

	cli.PrintStep(out, fmt.Sprintf("Step 4: Exporting to %s...", format))
	if err := os.MkdirAll(c.Output, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	clashes := outputClashes(outcomes, format)
	written := make(map[*pipeline.Outcome]string)
	for _, o := range outcomes {
		if err := ctx.Err(); err != nil {
			return errInterrupted
		}
		if first, ok := clashes[o]; ok {
			cli.PrintFailure(out, fmt.Sprintf("%s: %s would overwrite the export of %s", o.Path, pipeline.OutputName(o.Path, format), first))
			continue
		}
		path, err := app.Pipeline.Export(ctx, o, c.Output, format)
		if err != nil {
			cli.PrintFailure(out, fmt.Sprintf("%s: %v", filepath.Base(o.Path), err))
			continue
		}
		written[o] = path
		cli.PrintSuccess(out, filepath.Base(path))
	}
	if c.Logs {
		app.writeReports(outcomes, written, c.Output, format, start)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, cli.SuccessStyle.Render(fmt.Sprintf("Done! Exported %d file(s) to %s", len(written), c.Output)))
	return nil
}

// outputClashes maps each outcome whose output name was already taken by an
// earlier outcome to that earlier input path.
func outputClashes(outcomes []*pipeline.Outcome, format audio.Format) map[*pipeline.Outcome]string {
	owners := make(map[string]string, len(outcomes))
	clashes := make(map[*pipeline.Outcome]string)
	for _, o := range outcomes {
		name := pipeline.OutputName(o.Path, format)
		if first, ok := owners[name]; ok {
			clashes[o] = first
			continue
		}
		owners[name] = o.Path
	}
	return clashes
}

// writeReports writes a report per outcome. Outcomes missing from written
// were not exported and get a dry run report in outDir.
func (a *App) writeReports(outcomes []*pipeline.Outcome, written map[*pipeline.Outcome]string, outDir string, format audio.Format, start time.Time) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		cli.PrintWarning(fmt.Sprintf("Cannot write reports: %v", err))
		return
	}
	for _, o := range outcomes {
		data := logging.ReportData{
			InputPath:  o.Path,
			OutputPath: written[o],
			StartTime:  start,
			EndTime:    time.Now(),
			Outcome:    o,
			Meter:      a.Meter,
			ClipDBFS:   a.Settings.ClipThresholdDBFS,
			MaxGainDB:  a.Settings.MaxGainDB,
			Format:     format,
		}
		path := logging.ReportPath(data, outDir)
		if err := logging.GenerateReport(path, data); err != nil {
			cli.PrintWarning(fmt.Sprintf("Failed to write report for %s: %v", filepath.Base(o.Path), err))
			continue
		}
		a.Log.WithField("file", filepath.Base(path)).Debug("report written")
	}
}

// PreviewCmd shows the effect of a gain on one file without exporting
type PreviewCmd struct {
	File   string   `arg:"" name:"file" help:"Audio file to preview"`
	Gain   *float64 `short:"g" help:"Gain adjustment in dB"`
	Target *float64 `short:"t" help:"Target integrated loudness in LUFS"`
	Clip   bool     `help:"Hard clip peaks at the clip threshold after the gain"`
}

func (c *PreviewCmd) Run(ctx context.Context, app *App) error {
	out := app.Stdout
	limits := app.Pipeline.Processor.Limits()
	req, err := processor.NewProcessingRequest(c.Gain, c.Target, c.Clip, limits.ClipThresholdDBFS)
	if err != nil {
		return err
	}
	if _, err := os.Stat(c.File); err != nil {
		return fmt.Errorf("file not found: %s", c.File)
	}

	fmt.Fprintf(out, "Loading %s...\n", filepath.Base(c.File))
	state, err := app.Pipeline.Prepare(ctx, c.File)
	if err != nil {
		return err
	}

	res, err := app.Pipeline.Processor.Resolve(req.Gain, state.Original.Integrated)
	if err != nil {
		return err
	}
	if req.Gain.IsTarget() {
		fmt.Fprintf(out, "Target: %.1f LUFS -> Calculated gain: %+.1f dB\n", req.Gain.Value(), res.GainDB)
		if res.Clamped {
			cli.PrintWarning(fmt.Sprintf("Gain limited to ±%.1f dB, %.1f LU short of target", limits.MaxGainDB, res.Shortfall()))
		}
	}

	outcome, err := app.Pipeline.RenderWith(ctx, state, res, req.Options(res))
	if err != nil {
		return err
	}

	fmt.Fprintln(out)
	fmt.Fprint(out, logging.ComparisonTable(comparisonTitle("Preview", req.Clip), []*pipeline.Outcome{outcome}))
	warnClipping([]*pipeline.Outcome{outcome})
	return nil
}

// CacheCmd reports on the measurement cache and can empty it
type CacheCmd struct {
	Purge bool `help:"Remove every stored measurement"`
}

func (c *CacheCmd) Run(app *App) error {
	if app.Store == nil {
		cli.PrintWarning("Measurement cache is disabled.")
		return nil
	}
	if c.Purge {
		n, err := app.Store.Purge()
		if err != nil {
			return err
		}
		fmt.Fprintf(app.Stdout, "Removed %d cached measurement(s)\n", n)
		return nil
	}
	n, err := app.Store.Count()
	if err != nil {
		return err
	}
	fmt.Fprintf(app.Stdout, "%s %d\n", cli.KeyStyle.Render("Cached measurements:"), n)
	return nil
}

// planFromConfig matches analysed files to configuration records by base
// name. Unmatched and unmeasured files are skipped.
func planFromConfig(w io.Writer, proc *processor.Processor, results []pipeline.AnalysisResult, specs batch.FileSpecs) []pipeline.RenderJob {
	var jobs []pipeline.RenderJob
	for _, r := range results {
		if !r.OK() {
			continue
		}
		name := filepath.Base(r.Path)
		spec, ok := specs.Lookup(r.Path)
		if !ok {
			fmt.Fprintln(w, cli.WarningStyle.Render(fmt.Sprintf("No config for %s, skipping", name)))
			continue
		}

		res, err := proc.Resolve(spec.Gain, r.Measurement.Integrated)
		if err != nil {
			cli.PrintFailure(w, fmt.Sprintf("%s: %v", name, err))
			continue
		}

		switch {
		case spec.Unset:
			fmt.Fprintf(w, "%s: No adjustment specified\n", cli.FileStyle.Render(name))
		case spec.Gain.IsTarget():
			fmt.Fprintf(w, "%s: Target %.1f LUFS -> %+.1f dB%s\n", cli.FileStyle.Render(name), spec.Gain.Value(), res.GainDB, clampNote(res))
		default:
			fmt.Fprintf(w, "%s: Manual %+.1f dB\n", cli.FileStyle.Render(name), res.GainDB)
		}
		jobs = append(jobs, pipeline.RenderJob{Analysis: r, Resolution: res})
	}
	return jobs
}

// promptGains asks for a gain per measured file. Answers the processor
// rejects are asked again. When input ends, the files not yet asked about
// are left out.
func promptGains(p *cli.GainPrompter, w io.Writer, proc *processor.Processor, results []pipeline.AnalysisResult) ([]pipeline.RenderJob, error) {
	p.Intro()

	var jobs []pipeline.RenderJob
	for _, r := range results {
		if !r.OK() {
			continue
		}
		name := filepath.Base(r.Path)
		for {
			spec, err := p.Ask(name, r.Measurement.Integrated)
			if errors.Is(err, io.EOF) {
				return jobs, nil
			}
			if err != nil {
				return nil, err
			}
			res, err := proc.Resolve(spec, r.Measurement.Integrated)
			if err != nil {
				fmt.Fprintln(w, cli.ErrorStyle.Render(err.Error()))
				continue
			}
			if spec.IsTarget() {
				fmt.Fprintf(w, "  -> %+.1f dB%s\n", res.GainDB, clampNote(res))
			}
			jobs = append(jobs, pipeline.RenderJob{Analysis: r, Resolution: res})
			break
		}
	}
	return jobs, nil
}

// interruptible runs a blocking fn, returning early when ctx is cancelled.
// fn is left blocked on its read; the process is about to exit.
func interruptible[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn()
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, errInterrupted
	}
}

func clampNote(res processor.Resolution) string {
	if !res.Clamped {
		return ""
	}
	return fmt.Sprintf(" (limited, %.1f LU short)", res.Shortfall())
}

func comparisonTitle(title string, clip bool) string {
	if clip {
		return title + " (with clipper)"
	}
	return title
}

// warnClipping flags outcomes whose gain clips without the clipper
func warnClipping(outcomes []*pipeline.Outcome) {
	for _, o := range outcomes {
		if o.WillClip {
			cli.PrintWarning(fmt.Sprintf("Warning: %s: this gain will cause clipping. Consider using --clip to enable hard clipper.", filepath.Base(o.Path)))
		}
	}
}
