// Package datasource defines how raw input bytes are opened. Concrete
// sources live in subpackages (file).
package datasource

import (
	"context"
	"io"
)

// Source opens one input for reading. Implementations must honor an already
// canceled ctx.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}
