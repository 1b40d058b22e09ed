// Package datasource defines where raw input bytes come from. Implementations
// live in subpackages: file for local paths, httpds for remote downloads.
package datasource

import (
	"context"
	"io"
)

// Source opens the raw dataset for reading. The caller closes the reader.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}
