// Package probe samples the head of a configured source and checks it against
// the pipeline configuration before a full run: the configured features must
// exist as columns, and class allow-lists should match values that actually
// occur.
package probe

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	"genrechart/internal/config"
	"genrechart/internal/datasource/file"
	"genrechart/internal/datasource/httpds"
	pcsv "genrechart/internal/parser/csv"
	"genrechart/internal/pipeline"
	"genrechart/internal/table"
)

// DefaultMaxBytes is the sample size used when Options.MaxBytes is zero.
const DefaultMaxBytes = 64 << 10

// Options controls sampling.
type Options struct {
	// MaxBytes to sample from the start of the source.
	MaxBytes int
	Logger   *slog.Logger
}

// Column describes one column seen in the sample.
type Column struct {
	Name    string
	Kind    string
	Missing int
}

// Report is the outcome of a probe.
type Report struct {
	Source  string
	Bytes   int
	Rows    int
	Skipped int
	Columns []Column

	// MissingFeatures lists configured features absent from the header.
	MissingFeatures []string

	// UnseenClasses lists, per class column, allow-list entries that never
	// occur in the sample.
	UnseenClasses map[string][]string
}

// peekFn fetches the first n bytes of the configured source. Tests replace it
// to avoid real I/O.
var peekFn = func(ctx context.Context, s config.Source, n int) ([]byte, error) {
	switch s.Kind {
	case "file":
		rc, err := file.NewLocal(s.File.Path).Open(ctx)
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(io.LimitReader(rc, int64(n)))
	case "http":
		client := httpds.NewClient(httpds.Config{
			Timeout:            time.Duration(s.HTTP.TimeoutSeconds) * time.Second,
			MaxRetries:         s.HTTP.MaxRetries,
			InsecureSkipVerify: s.HTTP.InsecureSkipVerify,
		})
		return client.FetchFirstBytes(ctx, s.HTTP.URL, n)
	}
	return nil, fmt.Errorf("probe: unsupported source.kind=%q", s.Kind)
}

// Probe samples the source of p and parses the sample with the pipeline's
// parser options.
func Probe(ctx context.Context, p config.Pipeline, opt Options) (Report, error) {
	if opt.MaxBytes <= 0 {
		opt.MaxBytes = DefaultMaxBytes
	}
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}

	sample, err := peekFn(ctx, p.Source, opt.MaxBytes)
	if err != nil {
		return Report{}, fmt.Errorf("probe: fetch sample: %w", err)
	}
	rep := Report{Source: sourceName(p.Source), Bytes: len(sample)}

	// A full sample likely ends mid-record.
	if len(sample) >= opt.MaxBytes {
		if i := bytes.LastIndexByte(sample, '\n'); i > 0 {
			sample = sample[:i+1]
		}
	}

	t, skipped, err := pcsv.NewParser(pipeline.ParserOptions(p.Parser, opt.Logger)).Parse(bytes.NewReader(sample))
	if err != nil {
		return rep, fmt.Errorf("probe: parse sample: %w", err)
	}
	rep.Rows, rep.Skipped = t.Len(), skipped

	for _, name := range t.Columns() {
		vals, _ := t.Column(name)
		rep.Columns = append(rep.Columns, describe(name, vals))
	}
	rep.MissingFeatures = t.Missing(p.Transform.Features...)

	for col, allowed := range p.Transform.Classes {
		vals, ok := t.Column(col)
		if !ok {
			continue
		}
		seen := make(map[string]bool, len(vals))
		for _, v := range vals {
			seen[table.Key(v)] = true
		}
		var unseen []string
		for _, a := range allowed {
			if !seen[a] {
				unseen = append(unseen, a)
			}
		}
		if len(unseen) > 0 {
			if rep.UnseenClasses == nil {
				rep.UnseenClasses = map[string][]string{}
			}
			rep.UnseenClasses[col] = unseen
		}
	}
	return rep, nil
}

// Issues turns the report into config issues. Missing features are errors;
// unseen class values are warnings since the sample may not cover them.
func (r Report) Issues() []config.Issue {
	var out []config.Issue
	for _, f := range r.MissingFeatures {
		out = append(out, config.Issue{
			Severity: config.SeverityError,
			Path:     "transform.features",
			Message:  fmt.Sprintf("column %q not found in %s (have: %s)", f, r.Source, strings.Join(r.columnNames(), ", ")),
		})
	}
	cols := make([]string, 0, len(r.UnseenClasses))
	for c := range r.UnseenClasses {
		cols = append(cols, c)
	}
	slices.Sort(cols)
	for _, c := range cols {
		out = append(out, config.Issue{
			Severity: config.SeverityWarning,
			Path:     "transform.classes." + c,
			Message:  fmt.Sprintf("values not seen in the first %d rows: %s", r.Rows, strings.Join(r.UnseenClasses[c], ", ")),
		})
	}
	return out
}

func (r Report) columnNames() []string {
	out := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		out[i] = c.Name
	}
	return out
}

// describe reports the kind of the first present value; the parser gives
// every present cell of a column the same type.
func describe(name string, vals []any) Column {
	c := Column{Name: name, Kind: "empty"}
	for _, v := range vals {
		if table.IsNull(v) {
			c.Missing++
			continue
		}
		if c.Kind != "empty" {
			continue
		}
		switch v.(type) {
		case int64:
			c.Kind = pcsv.KindInteger.String()
		case float64:
			c.Kind = pcsv.KindReal.String()
		case bool:
			c.Kind = pcsv.KindBoolean.String()
		default:
			c.Kind = pcsv.KindText.String()
		}
	}
	return c
}

func sourceName(s config.Source) string {
	if s.Kind == "http" {
		return s.HTTP.URL
	}
	return s.File.Path
}
