package pipeline

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"genrechart/internal/config"
	"genrechart/internal/datasource/file"
	"genrechart/internal/logging"
	"genrechart/internal/metrics"
	"genrechart/internal/transformer"
)

var samplePath = filepath.Join("..", "..", "testdata", "games_sample.csv")

// recorder collects counter increments keyed by metric name and one label.
type recorder struct {
	mu       sync.Mutex
	counters map[string]float64
}

func (r *recorder) IncCounter(name string, delta float64, labels metrics.Labels) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := name
	for _, l := range []string{"kind", "result", "status"} {
		if v, ok := labels[l]; ok && v != "" {
			key += "/" + v
		}
	}
	r.counters[key] += delta
}

func (r *recorder) ObserveHistogram(string, float64, metrics.Labels) {}
func (r *recorder) Flush() error                                   { return nil }

func (r *recorder) get(key string) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counters[key]
}

func installRecorder(t *testing.T) *recorder {
	t.Helper()
	rec := &recorder{counters: map[string]float64{}}
	metrics.SetBackend(rec)
	return rec
}

func gamesConfig(dir string) config.Pipeline {
	p := config.Pipeline{
		Job:    "games",
		Source: config.Source{Kind: "file", File: config.SourceFile{Path: samplePath}},
		Transform: config.Transform{
			Features: []string{"platform", "genre"},
			Classes:  map[string][]string{"platform": {"PS4", "XOne", "PC", "WiiU"}},
		},
		Chart:  config.Chart{Path: filepath.Join(dir, "graphs", "graph.png"), WidthInches: 4, HeightInches: 3},
		Export: config.Export{Paths: []string{filepath.Join(dir, "out", "groups.csv"), filepath.Join(dir, "out", "groups.xlsx")}},
	}
	p.ApplyDefaults()
	return p
}

func spanNames(rec *tracetest.SpanRecorder) []string {
	var out []string
	for _, s := range rec.Ended() {
		out = append(out, s.Name())
	}
	return out
}

func TestRun_File(t *testing.T) {
	dir := t.TempDir()
	cfg := gamesConfig(dir)
	mrec := installRecorder(t)
	srec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(srec))

	var logs bytes.Buffer
	r := New(cfg, file.NewLocal(cfg.Source.File.Path),
		WithLogger(logging.New(&logs, logging.ParseLevel("debug"), "json")),
		WithTracer(tp.Tracer("test")),
		WithRunID("run-1"),
	)
	sum, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "run-1", sum.RunID)
	assert.Equal(t, 15, sum.Parsed)
	assert.Equal(t, 0, sum.Skipped)
	assert.Equal(t, 8, sum.Cleaned)
	assert.Equal(t, 7, sum.Groups)
	assert.Nil(t, sum.Download)

	require.NotNil(t, sum.Table)
	assert.Equal(t, []string{"platform", "genre", "count"}, sum.Table.Columns())
	assert.Equal(t, [][]any{
		{"PS4", "Action", int64(1)},
		{"PS4", "Sports", int64(1)},
		{"XOne", "Role-Playing", int64(1)},
		{"PC", "Role-Playing", int64(2)},
		{"PC", "Simulation", int64(1)},
		{"WiiU", "Racing", int64(1)},
		{"WiiU", "Shooter", int64(1)},
	}, sum.Table.Rows())

	for _, p := range append([]string{cfg.Chart.Path}, cfg.Export.Paths...) {
		info, err := os.Stat(p)
		require.NoError(t, err, p)
		assert.Positive(t, info.Size(), p)
	}
	assert.Equal(t, cfg.Chart.Path, sum.ChartPath)
	assert.Equal(t, cfg.Export.Paths, sum.Exports)
	assert.Contains(t, logs.String(), `"msg":"chart laid out"`)
	assert.Contains(t, logs.String(), `"groups":4`)
	assert.Contains(t, logs.String(), `"series":6`)

	assert.Equal(t, []string{
		"pipeline.extract", "pipeline.clean", "pipeline.group",
		"pipeline.sort", "pipeline.render", "pipeline.export", "pipeline.publish",
	}, spanNames(srec))

	assert.EqualValues(t, 15, mrec.get(metrics.RowsTotal+"/parsed"))
	assert.EqualValues(t, 8, mrec.get(metrics.RowsTotal+"/cleaned"))
	assert.EqualValues(t, 7, mrec.get(metrics.RowsTotal+"/groups"))
	assert.EqualValues(t, 7, mrec.get(metrics.StepTotal+"/success"))

	for _, sub := range []string{"graphs", "out"} {
		entries, err := os.ReadDir(filepath.Join(dir, sub))
		require.NoError(t, err)
		for _, e := range entries {
			assert.NotContains(t, e.Name(), ".staged", "staged file left in %s", sub)
		}
	}
}

func TestRun_FailedExportPublishesNothing(t *testing.T) {
	dir := t.TempDir()
	cfg := gamesConfig(dir)
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	cfg.Export.Paths = []string{filepath.Join(dir, "out", "groups.csv"), filepath.Join(blocker, "groups.xlsx")}
	installRecorder(t)

	sum, err := New(cfg, file.NewLocal(cfg.Source.File.Path), WithLogger(logging.Discard())).Run(context.Background())
	require.Error(t, err)

	var se *StepError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, StepExport, se.Step)
	assert.Empty(t, sum.ChartPath)
	assert.Empty(t, sum.Exports)

	_, statErr := os.Stat(cfg.Chart.Path)
	assert.True(t, os.IsNotExist(statErr), "chart published despite a failed export")
	_, statErr = os.Stat(cfg.Export.Paths[0])
	assert.True(t, os.IsNotExist(statErr), "first export published despite a failed export")

	for _, sub := range []string{"graphs", "out"} {
		entries, err := os.ReadDir(filepath.Join(dir, sub))
		require.NoError(t, err)
		assert.Empty(t, entries, "staged files left in %s", sub)
	}
}

func TestRun_StopsAtFirstFailure(t *testing.T) {
	dir := t.TempDir()
	cfg := gamesConfig(dir)
	cfg.Transform.Features = []string{"platform", "studio"}
	mrec := installRecorder(t)

	var logs bytes.Buffer
	r := New(cfg, file.NewLocal(cfg.Source.File.Path), WithLogger(logging.New(&logs, logging.ParseLevel("info"), "json")))
	sum, err := r.Run(context.Background())
	require.Error(t, err)

	var se *StepError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "clean", se.Step)
	assert.Equal(t, transformer.KindSchema, transformer.KindOf(err))
	assert.Nil(t, sum.Table)

	assert.Contains(t, logs.String(), `"kind":"schema"`)
	assert.Contains(t, logs.String(), `"run_id":"`+r.RunID()+`"`)
	assert.EqualValues(t, 1, mrec.get(metrics.StepTotal+"/schema/failure"))

	_, statErr := os.Stat(cfg.Chart.Path)
	assert.True(t, os.IsNotExist(statErr), "no chart after a failed step")
	_, statErr = os.Stat(filepath.Join(dir, "out"))
	assert.True(t, os.IsNotExist(statErr), "no exports after a failed step")
}

func TestRun_EmptyAfterCleaning(t *testing.T) {
	cfg := gamesConfig(t.TempDir())
	cfg.Transform.Classes = map[string][]string{"platform": {"Dreamcast"}}
	installRecorder(t)

	_, err := New(cfg, file.NewLocal(cfg.Source.File.Path), WithLogger(logging.Discard())).Run(context.Background())
	require.Error(t, err)

	var se *StepError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, StepRender, se.Step)
}

func TestRun_CanceledContext(t *testing.T) {
	cfg := gamesConfig(t.TempDir())
	installRecorder(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(cfg, file.NewLocal(cfg.Source.File.Path), WithLogger(logging.Discard())).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_HTTPWithCache(t *testing.T) {
	body, err := os.ReadFile(samplePath)
	require.NoError(t, err)

	var hits, notModified int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if r.Header.Get("If-None-Match") == `"v1"` {
			notModified++
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	dir := t.TempDir()
	cfg := gamesConfig(dir)
	cfg.Source = config.Source{Kind: "http", HTTP: config.SourceHTTP{URL: srv.URL + "/games.csv", CacheDir: filepath.Join(dir, "data")}}
	cfg.Cache.DSN = filepath.Join(dir, "manifest.db")
	cfg.Chart.Path = ""
	cfg.Export.Paths = nil
	mrec := installRecorder(t)

	for i := 0; i < 2; i++ {
		src, cleanup, err := OpenSource(context.Background(), cfg, logging.Discard())
		require.NoError(t, err)

		sum, err := New(cfg, src, WithLogger(logging.Discard())).Run(context.Background())
		cleanup()
		require.NoError(t, err)

		require.NotNil(t, sum.Download)
		assert.Equal(t, filepath.Join(dir, "data", "games.csv"), sum.Download.Path)
		assert.Equal(t, i == 1, sum.Download.NotModified)
		assert.Equal(t, 7, sum.Groups)
	}

	assert.Equal(t, 2, hits)
	assert.Equal(t, 1, notModified)
	assert.EqualValues(t, 1, mrec.get(metrics.DownloadsTotal+"/fetched"))
	assert.EqualValues(t, 1, mrec.get(metrics.DownloadsTotal+"/not_modified"))
}

func TestOpenSource_Unsupported(t *testing.T) {
	_, cleanup, err := OpenSource(context.Background(), config.Pipeline{Source: config.Source{Kind: "ftp"}}, logging.Discard())
	require.Error(t, err)
	require.NotNil(t, cleanup)
	cleanup()
}

func TestParserOptions(t *testing.T) {
	o := ParserOptions(config.Parser{Kind: "csv", Options: config.Options{
		"comma":       ";",
		"infer_types": false,
		"header_map":  map[string]any{"Plattform": "platform"},
		"na_values":   []any{"-"},
	}}, nil)

	assert.True(t, o.HasHeader)
	assert.True(t, o.TrimSpace)
	assert.Equal(t, ';', o.Comma)
	assert.True(t, o.KeepTypes)
	assert.Equal(t, map[string]string{"Plattform": "platform"}, o.HeaderMap)
	assert.Equal(t, []string{"-"}, o.NAValues)
}
