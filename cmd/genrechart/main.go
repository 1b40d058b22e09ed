// Command genrechart downloads the games dataset, counts genres per platform
// and renders the result as a grouped bar chart.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"genrechart/internal/config"
	"genrechart/internal/logging"
	"genrechart/internal/metrics"
	"genrechart/internal/metrics/datadog"
	"genrechart/internal/metrics/prompush"
	"genrechart/internal/pipeline"
	"genrechart/internal/probe"
	"genrechart/internal/telemetry"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	var (
		cfgPath           string
		metricsBackendFlg string
		pushGatewayURLFlg string
		datadogAddrFlg    string
		traceExporter     string
		validate          bool
		probeSource       bool
	)

	flag.StringVar(&cfgPath, "config", "configs/pipelines/games.json", "pipeline config path (.json, .yaml or .yml)")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "", "metrics backend: pushgateway, datadog or none (overrides env METRICS_BACKEND)")
	flag.StringVar(&pushGatewayURLFlg, "pushgateway-url", "", "Pushgateway base URL (overrides env PUSHGATEWAY_URL)")
	flag.StringVar(&datadogAddrFlg, "datadog-addr", "", "DogStatsD address (overrides env DATADOG_ADDR)")
	flag.StringVar(&traceExporter, "trace", "none", "trace exporter: stdout or none")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	flag.BoolVar(&probeSource, "probe", false, "sample the source and check its columns against the configuration")
	verbose := flag.Bool("v", false, "enable debug logs")

	flag.Parse()

	env, err := config.LoadEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	level := logging.ParseLevel(env.LogLevel)
	if *verbose {
		level = slog.LevelDebug
	}
	logger := logging.New(os.Stderr, level, env.LogFormat)
	slog.SetDefault(logger)

	p, err := config.Load(cfgPath)
	if err != nil {
		logger.Error("Failed to load configuration", slog.String("path", cfgPath), slog.Any("error", err))
		return 1
	}
	env.Apply(&p)

	issues := config.ValidatePipeline(p)
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		logger.Error("Configuration is invalid", slog.String("path", cfgPath))
		return 1
	}
	if probeSource {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		rep, err := probe.Probe(ctx, p, probe.Options{Logger: logger})
		cancel()
		if err != nil {
			logger.Error("Probe failed", slog.Any("error", err))
			return 1
		}
		for _, c := range rep.Columns {
			logger.Debug("probe column", slog.String("name", c.Name), slog.String("kind", c.Kind), slog.Int("missing", c.Missing))
		}
		issues := rep.Issues()
		for _, iss := range issues {
			fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
		}
		if config.HasErrors(issues) {
			logger.Error("Source does not match configuration", slog.String("source", rep.Source))
			return 1
		}
	}
	if validate {
		logger.Info("Configuration is valid", slog.String("path", cfgPath))
		return 0
	}

	flush := setupMetrics(logger, p.Job,
		pick(metricsBackendFlg, env.MetricsBackend),
		pick(pushGatewayURLFlg, env.PushgatewayURL, "http://localhost:9091"),
		pick(datadogAddrFlg, env.DatadogAddr, "127.0.0.1:8125"),
	)
	defer flush()

	tp, err := telemetry.Setup(telemetry.Config{Exporter: traceExporter, ServiceVersion: version})
	if err != nil {
		logger.Error("Failed to set up tracing", slog.Any("error", err))
		return 1
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Warn("Trace shutdown failed", slog.Any("error", err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src, cleanup, err := pipeline.OpenSource(ctx, p, logger)
	if err != nil {
		logger.Error("Failed to open source", slog.Any("error", err))
		return 1
	}
	defer cleanup()

	logger.Debug("pipeline configured",
		slog.String("source", p.Source.Kind),
		slog.String("parser", p.Parser.Kind),
		slog.Any("features", p.Transform.Features),
		slog.String("chart", p.Chart.Path),
		slog.Any("exports", p.Export.Paths))

	r := pipeline.New(p, src, pipeline.WithLogger(logger), pipeline.WithTracer(tp.Tracer()))
	if _, err := r.Run(ctx); err != nil {
		return 1
	}
	return 0
}

// setupMetrics installs the selected backend and returns a flush func that
// pushes whatever was recorded. Backend failures disable metrics rather than
// the run.
func setupMetrics(logger *slog.Logger, job, backendName, gwURL, ddAddr string) func() {
	nop := func() {}
	var b metrics.Backend
	switch backendName {
	case "pushgateway":
		pb, err := prompush.NewBackend(job, gwURL)
		if err != nil {
			logger.Warn("metrics: failed to init prom push backend; using nop", slog.Any("error", err))
			return nop
		}
		b = pb
		logger.Debug("metrics: pushgateway", slog.String("url", gwURL), slog.String("job", job))

	case "datadog":
		db, err := datadog.NewBackend(datadog.Config{
			Addr:       ddAddr,
			Namespace:  "genrechart.",
			GlobalTags: []string{"job:" + job},
		})
		if err != nil {
			logger.Warn("metrics: failed to init datadog backend; using nop", slog.Any("error", err))
			return nop
		}
		b = db
		logger.Debug("metrics: datadog", slog.String("addr", ddAddr))

	case "", "none":
		logger.Debug("metrics: disabled")
		return nop

	default:
		logger.Warn("metrics: unknown backend; metrics disabled", slog.String("backend", backendName))
		return nop
	}

	metrics.SetBackend(b)
	return func() {
		if err := metrics.Flush(); err != nil {
			logger.Warn("metrics: flush error", slog.Any("error", err))
		}
	}
}

// pick returns the first non-empty value.
func pick(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
