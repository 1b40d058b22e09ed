// Package pipeline runs one configured job end to end: extract the raw
// dataset, clean, group and sort it, render the chart and export the table.
//
// Stages report failures as typed errors; the Runner is the only place that
// logs them, records metrics and marks trace spans. A run stops at the first
// failing step and no later step writes anything.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"gonum.org/v1/plot/vg"

	"genrechart/internal/chart"
	"genrechart/internal/config"
	"genrechart/internal/datasource"
	"genrechart/internal/datasource/httpds"
	"genrechart/internal/exporter"
	"genrechart/internal/metrics"
	pcsv "genrechart/internal/parser/csv"
	"genrechart/internal/table"
	"genrechart/internal/telemetry"
	"genrechart/internal/transformer"
)

// Step names, used in logs, metric labels and span names.
const (
	StepExtract = "extract"
	StepRender  = "render"
	StepExport  = "export"
	StepPublish = "publish"
)

// Summary describes a finished (or aborted) run.
type Summary struct {
	RunID string

	Parsed  int
	Skipped int
	Cleaned int
	Groups  int

	// Download is set when the source is remote.
	Download *httpds.Result

	ChartPath string
	Exports   []string

	// Table is the final sorted table; nil if the run failed.
	Table *table.Table

	Duration time.Duration
}

// StepError wraps the error of a failed step.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string { return fmt.Sprintf("pipeline: step %s: %v", e.Step, e.Err) }
func (e *StepError) Unwrap() error { return e.Err }

// Runner executes a pipeline configuration.
type Runner struct {
	cfg    config.Pipeline
	source datasource.Source
	log    *slog.Logger
	tracer trace.Tracer
	runID  string
}

// Option customises a Runner.
type Option func(*Runner)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option { return func(r *Runner) { r.log = l } }

// WithTracer sets the tracer. Defaults to the global provider's tracer.
func WithTracer(t trace.Tracer) Option { return func(r *Runner) { r.tracer = t } }

// WithRunID fixes the run ID instead of generating one.
func WithRunID(id string) Option { return func(r *Runner) { r.runID = id } }

// New returns a Runner reading from src.
func New(cfg config.Pipeline, src datasource.Source, opts ...Option) *Runner {
	r := &Runner{cfg: cfg, source: src}
	for _, o := range opts {
		o(r)
	}
	if r.log == nil {
		r.log = slog.Default()
	}
	if r.tracer == nil {
		r.tracer = otel.Tracer(telemetry.TracerName)
	}
	if r.runID == "" {
		r.runID = uuid.NewString()
	}
	r.log = r.log.With(slog.String("job", cfg.Job), slog.String("run_id", r.runID))
	return r
}

// RunID returns the identifier attached to every log line, metric and span.
func (r *Runner) RunID() string { return r.runID }

// Run executes every step in order and returns at the first failure.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	sum := Summary{RunID: r.runID}

	r.log.Info("pipeline started", slog.String("source", fmt.Sprint(r.source)))

	var t *table.Table
	err := r.step(ctx, StepExtract, 0, func(ctx context.Context) (int, error) {
		var err error
		t, err = r.extract(ctx, &sum)
		if err != nil {
			return 0, err
		}
		return t.Len(), nil
	})
	if err != nil {
		return r.finish(sum, start, err)
	}

	classes := transformer.ClassFilter(r.cfg.Transform.Classes)
	for _, stage := range transformer.Standard(r.cfg.Transform.Features, classes) {
		in := t.Len()
		err := r.step(ctx, stage.Name(), in, func(context.Context) (int, error) {
			next, err := stage.Apply(t)
			if err != nil {
				return 0, err
			}
			t = next
			return t.Len(), nil
		})
		if err != nil {
			return r.finish(sum, start, err)
		}
		switch stage.(type) {
		case transformer.Cleaner:
			sum.Cleaned = t.Len()
			metrics.RecordRows(r.cfg.Job, "cleaned", t.Len())
		case transformer.Aggregator:
			sum.Groups = t.Len()
			metrics.RecordRows(r.cfg.Job, "groups", t.Len())
		}
	}

	// Outputs are written to staged siblings and published together, so a
	// failing render or export leaves no chart or export behind.
	var out staging
	fail := func(err error) (Summary, error) {
		if derr := out.discard(); derr != nil {
			r.log.Warn("discard staged outputs", slog.Any("error", derr))
		}
		return r.finish(sum, start, err)
	}

	if path := r.cfg.Chart.Path; path != "" {
		err := r.step(ctx, StepRender, t.Len(), func(context.Context) (int, error) {
			staged, err := out.path(path)
			if err != nil {
				return 0, err
			}
			return t.Len(), r.render(t, staged)
		})
		if err != nil {
			return fail(err)
		}
	}

	if paths := r.cfg.Export.Paths; len(paths) > 0 {
		err := r.step(ctx, StepExport, t.Len(), func(ctx context.Context) (int, error) {
			for _, p := range paths {
				if err := ctx.Err(); err != nil {
					return 0, err
				}
				staged, err := out.path(p)
				if err != nil {
					return 0, err
				}
				if err := exporter.Write(staged, t, r.cfg.Job); err != nil {
					return 0, err
				}
			}
			return t.Len(), nil
		})
		if err != nil {
			return fail(err)
		}
	}

	if len(out.staged) > 0 {
		err := r.step(ctx, StepPublish, t.Len(), func(context.Context) (int, error) {
			return t.Len(), out.commit()
		})
		if err != nil {
			return fail(err)
		}
		sum.ChartPath = r.cfg.Chart.Path
		sum.Exports = append(sum.Exports, r.cfg.Export.Paths...)
	}

	sum.Table = t
	return r.finish(sum, start, nil)
}

func (r *Runner) finish(sum Summary, start time.Time, err error) (Summary, error) {
	sum.Duration = time.Since(start)
	if err != nil {
		r.log.Error("pipeline failed", slog.Duration("duration", sum.Duration), slog.Any("error", err))
		return sum, err
	}
	r.log.Info("pipeline completed",
		slog.Int("parsed", sum.Parsed),
		slog.Int("skipped", sum.Skipped),
		slog.Int("cleaned", sum.Cleaned),
		slog.Int("groups", sum.Groups),
		slog.Duration("duration", sum.Duration),
	)
	return sum, nil
}

// step runs fn as one named step: it opens a span, times the call, records
// the step metric and logs the outcome. fn returns the rows it produced.
func (r *Runner) step(ctx context.Context, name string, rowsIn int, fn func(context.Context) (int, error)) error {
	if err := ctx.Err(); err != nil {
		return &StepError{Step: name, Err: err}
	}

	ctx, span := telemetry.StartStep(ctx, r.tracer, r.cfg.Job, r.runID, name)
	began := time.Now()
	rowsOut, err := fn(ctx)
	d := time.Since(began)
	telemetry.EndStep(span, rowsIn, rowsOut, err)

	kind := string(transformer.KindOf(err))
	metrics.RecordStep(r.cfg.Job, name, kind, err, d)

	attrs := []any{
		slog.String("step", name),
		slog.Int("rows_in", rowsIn),
		slog.Int("rows_out", rowsOut),
		slog.Duration("duration", d),
	}
	if err != nil {
		r.log.Error("step failed", append(attrs, slog.Any("error", err), slog.String("kind", kind))...)
		return &StepError{Step: name, Err: err}
	}
	r.log.Info("step completed", attrs...)
	return nil
}

func (r *Runner) extract(ctx context.Context, sum *Summary) (*table.Table, error) {
	if r.source == nil {
		return nil, errors.New("no datasource configured")
	}
	rc, err := r.source.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	if hs, ok := r.source.(*httpds.Source); ok {
		res := hs.Last()
		sum.Download = &res
		switch {
		case res.Fallback:
			metrics.RecordDownload(r.cfg.Job, "fallback", 0)
		case res.NotModified:
			metrics.RecordDownload(r.cfg.Job, "not_modified", 0)
		default:
			metrics.RecordDownload(r.cfg.Job, "fetched", res.Bytes)
		}
		r.log.Debug("source refreshed",
			slog.String("path", res.Path),
			slog.Int64("bytes", res.Bytes),
			slog.Bool("not_modified", res.NotModified),
			slog.Bool("fallback", res.Fallback))
	}

	p := pcsv.NewParser(ParserOptions(r.cfg.Parser, r.log))
	t, skipped, err := p.Parse(rc)
	if err != nil {
		return nil, err
	}
	sum.Parsed, sum.Skipped = t.Len(), skipped
	metrics.RecordRows(r.cfg.Job, "parsed", t.Len())
	metrics.RecordRows(r.cfg.Job, "skipped", skipped)
	return t, nil
}

func (r *Runner) render(t *table.Table, path string) error {
	c := r.cfg.Chart
	b := chart.NewBarPlot(chart.Options{
		Title:       c.Title,
		XLabel:      c.XLabel,
		YLabel:      c.YLabel,
		LegendTitle: c.LegendTitle,
		Width:       vg.Length(c.WidthInches) * vg.Inch,
		Height:      vg.Length(c.HeightInches) * vg.Inch,
	})
	if err := b.Create(t); err != nil {
		return err
	}
	pv := b.Pivot()
	r.log.Debug("chart laid out",
		slog.Int("groups", len(pv.Index)),
		slog.Int("series", len(pv.Series)))
	return b.Save(path)
}
