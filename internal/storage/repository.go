// Package storage contains the storage-agnostic contracts used by the loader:
// a Repository per backend, selected by kind through a small registry, and
// the Dialect that renders each backend's DDL.
//
// Backends register themselves from init (see internal/storage/all).
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Execer runs statements and bulk inserts. Both a Repository and an open Tx
// satisfy it, so the load steps are written once for either mode.
type Execer interface {
	// Exec runs a single statement that returns no rows.
	Exec(ctx context.Context, sql string) error

	// CopyFrom bulk-inserts rows into table (an unquoted, possibly
	// schema-qualified name). Every row must align with columns. It returns
	// the number of rows the backend reports as inserted.
	CopyFrom(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)
}

// Tx is an open transaction on a Repository.
type Tx interface {
	Execer
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Repository is a pooled connection to one destination database.
type Repository interface {
	Execer
	BeginTx(ctx context.Context) (Tx, error)
	Dialect() Dialect
	Close()
}

// Config selects and configures a backend.
type Config struct {
	// Kind is the registered backend name: "mssql", "postgres", "mysql",
	// "sqlite".
	Kind string
	// DSN is passed to the backend driver unchanged.
	DSN string
}

// Factory opens a Repository for cfg.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	regMu     sync.RWMutex
	factories = map[string]Factory{}
)

// Register installs (or replaces) the factory for kind.
func Register(kind string, f Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	factories[kind] = f
}

// New opens a Repository using the factory registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	regMu.RLock()
	f, ok := factories[cfg.Kind]
	regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

// ListKinds returns the registered kinds, sorted. The slice is a copy.
func ListKinds() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
