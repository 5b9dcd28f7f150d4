// Package pipeline drives files through analysis, gain resolution, processing,
// re-measurement and export.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/linuxmatters/levelset/internal/audio"
	"github.com/linuxmatters/levelset/internal/loudness"
	"github.com/linuxmatters/levelset/internal/processor"
	"github.com/sirupsen/logrus"
)

// Exporter writes processed audio. *audio.Exporter satisfies it.
type Exporter interface {
	Export(ctx context.Context, req audio.ExportRequest) (string, error)
}

// Stage is the step a file is in
type Stage int

const (
	StageAnalyze Stage = iota
	StageProcess
	StageExport
)

func (s Stage) String() string {
	switch s {
	case StageAnalyze:
		return "analyzing"
	case StageProcess:
		return "processing"
	case StageExport:
		return "exporting"
	default:
		return "unknown"
	}
}

// Event reports progress on one file. Index is the file's position in the
// batch; Done is false when the stage starts and true when it ends.
type Event struct {
	Index int
	Path  string
	Stage Stage
	Done  bool
	Err   error

	// Measurement is the reading produced by the stage, if any
	Measurement *loudness.Measurement
}

// Observer receives events. It may be called from several goroutines.
type Observer func(Event)

// Pipeline holds the collaborators shared by every file in a batch.
type Pipeline struct {
	Loader    loudness.FileLoader
	Measurer  loudness.Measurer
	Processor *processor.Processor
	Exporter  Exporter
	Jobs      int
	Log       logrus.FieldLogger
}

var discard = &logrus.Logger{Out: io.Discard, Formatter: new(logrus.TextFormatter), Hooks: make(logrus.LevelHooks), Level: logrus.PanicLevel}

func (p *Pipeline) log() logrus.FieldLogger {
	if p.Log == nil {
		return discard
	}
	return p.Log
}

// AnalysisResult is the original measurement of one file. Err is set when
// the file could not be measured; the rest of the batch is unaffected.
type AnalysisResult struct {
	Path        string
	Measurement loudness.Measurement
	Err         error
}

// OK reports whether the file was measured
func (r AnalysisResult) OK() bool { return r.Err == nil }

// AnalyzeAll measures every path, Jobs at a time. Results are returned in
// input order regardless of completion order.
func (p *Pipeline) AnalyzeAll(ctx context.Context, paths []string, observe Observer) []AnalysisResult {
	results := make([]AnalysisResult, len(paths))
	p.forEach(ctx, len(paths), func(i int) {
		path := paths[i]
		emit(observe, Event{Index: i, Path: path, Stage: StageAnalyze})

		start := time.Now()
		m, err := p.Measurer.MeasureFile(ctx, path)
		results[i] = AnalysisResult{Path: path, Measurement: m, Err: err}

		log := p.log().WithFields(logrus.Fields{"file": filepath.Base(path), "elapsed": time.Since(start)})
		ev := Event{Index: i, Path: path, Stage: StageAnalyze, Done: true, Err: err}
		if err != nil {
			log.WithError(err).Warn("analysis failed")
		} else {
			log.WithField("integrated", m.Integrated).Debug("analysis complete")
			ev.Measurement = &m
		}
		emit(observe, ev)
	}, func(i int, err error) {
		results[i] = AnalysisResult{Path: paths[i], Err: err}
	})
	return results
}

// FileState is a decoded file together with its original measurement
type FileState struct {
	Path     string
	Buffer   *audio.SampleBuffer
	Metadata *audio.Metadata
	Original loudness.Measurement
}

// Prepare decodes and measures a single file
func (p *Pipeline) Prepare(ctx context.Context, path string) (*FileState, error) {
	m, err := p.Measurer.MeasureFile(ctx, path)
	if err != nil {
		return nil, err
	}
	return p.Load(ctx, AnalysisResult{Path: path, Measurement: m})
}

// Load decodes an already analysed file
func (p *Pipeline) Load(ctx context.Context, result AnalysisResult) (*FileState, error) {
	if result.Err != nil {
		return nil, result.Err
	}
	buf, meta, err := p.Loader.Load(ctx, result.Path)
	if err != nil {
		return nil, err
	}
	return &FileState{
		Path:     result.Path,
		Buffer:   buf,
		Metadata: meta,
		Original: result.Measurement,
	}, nil
}

// Outcome is a processed file awaiting export
type Outcome struct {
	Path       string
	Buffer     *audio.SampleBuffer
	Metadata   *audio.Metadata
	Original   loudness.Measurement
	Processed  loudness.Measurement
	Resolution processor.Resolution
	Clip       bool

	// ClipThresholdDBFS is the clipper ceiling used when Clip is set
	ClipThresholdDBFS float64

	// WillClip is set when the gain pushes peaks past full scale and no
	// clipper was applied
	WillClip bool
}

// Deviation is how far the processed integrated loudness landed from a
// requested target; zero for explicit gains.
func (o *Outcome) Deviation() float64 {
	if !o.Resolution.Spec.IsTarget() {
		return 0
	}
	return o.Processed.Integrated - o.Resolution.Spec.Value()
}

// Render applies the resolved gain and optional clipper, then re-measures
// the result. The original buffer is left untouched.
func (p *Pipeline) Render(ctx context.Context, state *FileState, res processor.Resolution, clip bool) (*Outcome, error) {
	return p.RenderWith(ctx, state, res, p.Processor.Options(res.GainDB, clip))
}

// RenderWith is Render with explicit processing options, e.g. from a
// processor.ProcessingRequest.
func (p *Pipeline) RenderWith(ctx context.Context, state *FileState, res processor.Resolution, opts processor.Options) (*Outcome, error) {
	log := p.log().WithFields(logrus.Fields{"file": filepath.Base(state.Path), "gain_db": opts.GainDB})

	processed, err := p.Processor.Process(state.Buffer, opts)
	if err != nil {
		return nil, err
	}

	m, err := p.Measurer.MeasureBuffer(ctx, processed)
	if err != nil {
		return nil, fmt.Errorf("measuring processed audio: %w", err)
	}

	out := &Outcome{
		Path:       state.Path,
		Buffer:     processed,
		Metadata:   state.Metadata,
		Original:   state.Original,
		Processed:  m,
		Resolution: res,
		Clip:       opts.Clip,
		WillClip:   !opts.Clip && processor.WillClip(state.Buffer, opts.GainDB),

		ClipThresholdDBFS: opts.ClipThresholdDBFS,
	}
	if res.Clamped {
		log.WithField("shortfall", res.Shortfall()).Warn("target gain clamped")
	}
	log.WithField("integrated", m.Integrated).Debug("render complete")
	return out, nil
}

// RenderJob pairs an analysed file with the gain to apply
type RenderJob struct {
	Analysis   AnalysisResult
	Resolution processor.Resolution
}

// RenderResult is the outcome of one RenderJob
type RenderResult struct {
	Path    string
	Outcome *Outcome
	Err     error
}

// RenderAll decodes, processes and re-measures every job, Jobs at a time,
// keeping input order.
func (p *Pipeline) RenderAll(ctx context.Context, jobs []RenderJob, clip bool, observe Observer) []RenderResult {
	results := make([]RenderResult, len(jobs))
	p.forEach(ctx, len(jobs), func(i int) {
		job := jobs[i]
		path := job.Analysis.Path
		emit(observe, Event{Index: i, Path: path, Stage: StageProcess})

		result := RenderResult{Path: path}
		state, err := p.Load(ctx, job.Analysis)
		if err == nil {
			result.Outcome, err = p.Render(ctx, state, job.Resolution, clip)
		}
		result.Err = err
		results[i] = result

		ev := Event{Index: i, Path: path, Stage: StageProcess, Done: true, Err: err}
		if err != nil {
			p.log().WithField("file", filepath.Base(path)).WithError(err).Warn("processing failed")
		} else {
			ev.Measurement = &result.Outcome.Processed
		}
		emit(observe, ev)
	}, func(i int, err error) {
		results[i] = RenderResult{Path: jobs[i].Analysis.Path, Err: err}
	})
	return results
}

// Export writes an outcome to outDir as <stem>.<format>. Source tags are
// carried over and the comment records the applied gain.
func (p *Pipeline) Export(ctx context.Context, out *Outcome, outDir string, format audio.Format) (string, error) {

	var tags audio.Tags
	if out.Metadata != nil {
		tags = out.Metadata.Tags
	}
	tags.Comment = p.gainComment(out)

	return p.Exporter.Export(ctx, audio.ExportRequest{
		Buffer:      out.Buffer,
		Destination: filepath.Join(outDir, outputStem(out.Path)),
		Format:      format,
		Tags:        tags,
	})
}

// OutputName is the file name Export writes for an input path
func OutputName(path string, format audio.Format) string {
	return outputStem(path) + format.Extension()
}

func outputStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (p *Pipeline) gainComment(out *Outcome) string {
	comment := fmt.Sprintf("levelset: %+.1f dB", out.Resolution.GainDB)
	if out.Resolution.Spec.IsTarget() {
		comment += fmt.Sprintf(" (target %.1f LUFS)", out.Resolution.Spec.Value())
	}
	if out.Clip {
		comment += fmt.Sprintf(", hard clip at %.1f dBFS", out.ClipThresholdDBFS)
	}
	return comment
}

// forEach runs fn for indices [0, n) on up to Jobs workers. Indices not yet
// started when ctx is cancelled are handed to skip instead.
func (p *Pipeline) forEach(ctx context.Context, n int, fn func(i int), skip func(i int, err error)) {
	workers := min(max(p.Jobs, 1), max(n, 1))

	var wg sync.WaitGroup
	indices := make(chan int)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indices {
				if err := ctx.Err(); err != nil {
					skip(i, err)
					continue
				}
				fn(i)
			}
		}()
	}

	for i := 0; i < n; i++ {
		indices <- i
	}
	close(indices)
	wg.Wait()
}

func emit(observe Observer, ev Event) {
	if observe != nil {
		observe(ev)
	}
}
