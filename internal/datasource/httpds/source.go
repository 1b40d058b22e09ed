package httpds

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// SourceConfig configures a Source.
type SourceConfig struct {
	URL  string
	Path string

	// OfflineFallback opens an existing copy at Path when the download fails.
	OfflineFallback bool

	Logger *slog.Logger
}

// Source is a datasource.Source that refreshes a local copy of a remote file
// before opening it.
type Source struct {
	d    *Downloader
	cfg  SourceConfig
	last Result
}

// NewSource returns a Source that downloads through d.
func NewSource(d *Downloader, cfg SourceConfig) *Source {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Source{d: d, cfg: cfg}
}

// Open fetches the file and opens the local copy for reading.
func (s *Source) Open(ctx context.Context) (io.ReadCloser, error) {
	res, err := s.d.Fetch(ctx, s.cfg.URL, s.cfg.Path)
	if err != nil {
		if !s.cfg.OfflineFallback || ctx.Err() != nil {
			return nil, err
		}
		if _, statErr := os.Stat(s.cfg.Path); statErr != nil {
			return nil, err
		}
		s.cfg.Logger.Warn("Download failed, using local copy",
			slog.String("url", s.cfg.URL),
			slog.String("path", s.cfg.Path),
			slog.Any("error", err))
		res = Result{Path: s.cfg.Path, Fallback: true}
	}
	s.last = res

	f, err := os.Open(res.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", res.Path, err)
	}
	return f, nil
}

// Last returns the result of the most recent successful Open.
func (s *Source) Last() Result { return s.last }

// String names the source for logs.
func (s *Source) String() string { return s.cfg.URL }
