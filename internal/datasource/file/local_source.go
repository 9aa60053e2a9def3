// Package file implements local filesystem inputs: single files opened as a
// datasource.Source, directory listings of vector files, and list files.
package file

import (
	"context"
	"fmt"
	"io"
	"os"

	"geoetl/internal/datasource"
)

var _ datasource.Source = (*Local)(nil)

// Local opens one file from the local disk.
type Local struct{ path string }

// NewLocal returns a Local bound to path.
func NewLocal(path string) *Local { return &Local{path: path} }

// Path returns the bound path.
func (l *Local) Path() string { return l.path }

// Open returns the file as an io.ReadCloser. A canceled ctx short-circuits
// before the filesystem is touched; filesystem errors are wrapped with the
// path and still match errors.Is(err, os.ErrNotExist).
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", l.path, err)
	}
	return f, nil
}
