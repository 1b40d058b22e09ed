package httpds

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/zeebo/xxh3"

	"genrechart/internal/cache"
)

// Manifest remembers what has been downloaded. *cache.Repository satisfies it.
type Manifest interface {
	Lookup(ctx context.Context, url string) (cache.Entry, error)
	Record(ctx context.Context, e cache.Entry) error
	Forget(ctx context.Context, url string) error
}

// Result describes the outcome of a Fetch.
type Result struct {
	Path        string
	Bytes       int64
	Checksum    uint64
	NotModified bool

	// Fallback is set by Source when the download failed and an existing
	// local copy was opened instead.
	Fallback bool
}

// Downloader saves remote files to disk, revalidating against a manifest.
type Downloader struct {
	client   *Client
	manifest Manifest
	now      func() time.Time
}

// NewDownloader returns a Downloader. manifest may be nil, in which case every
// Fetch is an unconditional GET.
func NewDownloader(client *Client, manifest Manifest) *Downloader {
	if client == nil {
		client = NewClient(Config{})
	}
	return &Downloader{client: client, manifest: manifest, now: time.Now}
}

// Fetch downloads url to dest.
//
// When the manifest has an entry for url at dest and the file on disk still
// matches its checksum, the request carries If-None-Match/If-Modified-Since
// and a 304 reuses the file. A 200 is streamed to a temporary file next to
// dest and renamed into place, so dest is never left half written. Any other
// status is an error and dest is untouched.
func (d *Downloader) Fetch(ctx context.Context, url, dest string) (Result, error) {
	if dest == "" {
		return Result{}, fmt.Errorf("httpds: destination path must not be empty")
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return Result{}, fmt.Errorf("httpds: create dir for %s: %w", dest, err)
	}

	prev, conditional, err := d.previous(ctx, url, dest)
	if err != nil {
		return Result{}, err
	}

	h := make(http.Header)
	if conditional {
		if prev.ETag != "" {
			h.Set("If-None-Match", prev.ETag)
		}
		if prev.LastModified != "" {
			h.Set("If-Modified-Since", prev.LastModified)
		}
	}

	resp, err := d.client.Get(ctx, url, h)
	if err != nil {
		return Result{}, fmt.Errorf("httpds: GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified && conditional:
		prev.FetchedAt = d.now().UTC()
		if err := d.manifest.Record(ctx, prev); err != nil {
			return Result{}, err
		}
		return Result{Path: dest, Bytes: prev.Size, Checksum: prev.Checksum, NotModified: true}, nil
	case resp.StatusCode != http.StatusOK:
		return Result{}, fmt.Errorf("httpds: GET %s: unexpected status %s", url, resp.Status)
	}

	n, sum, err := saveAtomic(resp.Body, dest)
	if err != nil {
		return Result{}, err
	}

	if d.manifest != nil {
		e := cache.Entry{
			URL:          url,
			Path:         dest,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
			Size:         n,
			Checksum:     sum,
			FetchedAt:    d.now().UTC(),
		}
		if err := d.manifest.Record(ctx, e); err != nil {
			return Result{}, err
		}
	}
	return Result{Path: dest, Bytes: n, Checksum: sum}, nil
}

// previous returns the manifest entry for url and whether it can back a
// conditional request.
func (d *Downloader) previous(ctx context.Context, url, dest string) (cache.Entry, bool, error) {
	if d.manifest == nil {
		return cache.Entry{}, false, nil
	}
	e, err := d.manifest.Lookup(ctx, url)
	if errors.Is(err, cache.ErrNotFound) {
		return cache.Entry{}, false, nil
	}
	if err != nil {
		return cache.Entry{}, false, err
	}
	if e.Path != dest || (e.ETag == "" && e.LastModified == "") {
		return e, false, nil
	}
	ok, err := cache.Verify(e)
	if err != nil {
		return cache.Entry{}, false, err
	}
	if !ok {
		// The copy on disk no longer matches; drop the entry so a failed
		// refetch does not leave it describing the wrong bytes.
		if err := d.manifest.Forget(ctx, url); err != nil {
			return cache.Entry{}, false, err
		}
	}
	return e, ok, nil
}

// saveAtomic writes r to a temp file in dest's directory, then renames it.
func saveAtomic(r io.Reader, dest string) (int64, uint64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*.part")
	if err != nil {
		return 0, 0, fmt.Errorf("httpds: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	h := xxh3.New()
	n, err := io.Copy(io.MultiWriter(tmp, h), r)
	if err != nil {
		_ = tmp.Close()
		cleanup()
		return 0, 0, fmt.Errorf("httpds: write %s: %w", dest, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return 0, 0, fmt.Errorf("httpds: close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		cleanup()
		return 0, 0, fmt.Errorf("httpds: rename into %s: %w", dest, err)
	}
	return n, h.Sum64(), nil
}
