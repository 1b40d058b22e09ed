package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"genrechart/internal/cache"
	"genrechart/internal/config"
	"genrechart/internal/datasource"
	"genrechart/internal/datasource/file"
	"genrechart/internal/datasource/httpds"
	pcsv "genrechart/internal/parser/csv"
)

// OpenSource builds the datasource named by p.Source. The returned cleanup
// releases the download manifest, if one was opened, and is never nil.
func OpenSource(ctx context.Context, p config.Pipeline, logger *slog.Logger) (datasource.Source, func(), error) {
	noop := func() {}
	switch p.Source.Kind {
	case "file":
		return file.NewLocal(p.Source.File.Path), noop, nil

	case "http":
		h := p.Source.HTTP
		client := httpds.NewClient(httpds.Config{
			Timeout:            time.Duration(h.TimeoutSeconds) * time.Second,
			MaxRetries:         h.MaxRetries,
			InsecureSkipVerify: h.InsecureSkipVerify,
		})

		var (
			manifest httpds.Manifest
			cleanup  = noop
		)
		if p.Cache.DSN != "" {
			repo, closeRepo, err := cache.Open(ctx, p.Cache.DSN)
			if err != nil {
				return nil, noop, err
			}
			manifest, cleanup = repo, closeRepo
		}

		path := h.Path
		if path == "" {
			path = httpds.DefaultPath(h.CacheDir, h.URL)
		}
		src := httpds.NewSource(httpds.NewDownloader(client, manifest), httpds.SourceConfig{
			URL:             h.URL,
			Path:            path,
			OfflineFallback: h.OfflineFallback,
			Logger:          logger,
		})
		return src, cleanup, nil

	default:
		return nil, noop, fmt.Errorf("pipeline: unsupported source.kind=%q", p.Source.Kind)
	}
}

// ParserOptions maps the parser options bag onto CSV parser options.
func ParserOptions(p config.Parser, logger *slog.Logger) pcsv.Options {
	o := p.Options
	return pcsv.Options{
		HasHeader:      o.Bool("has_header", true),
		Comma:          o.Rune("comma", ','),
		TrimSpace:      o.Bool("trim_space", true),
		ExpectedFields: o.Int("expected_fields", 0),
		HeaderMap:      o.StringMap("header_map"),
		NAValues:       o.StringSlice("na_values"),
		KeepTypes:      !o.Bool("infer_types", true),
		Logger:         logger,
	}
}
