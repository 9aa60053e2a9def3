// Package sqlite wires the SQLite backend into the storage factory. It exposes
// a storage.Repository implementation without forcing callers to import this
// package directly; registration happens in init.
package sqlite

import (
	"context"

	"geoetl/internal/storage"
	sqliteddl "geoetl/internal/storage/sqlite/ddl"
)

// newRepository is a test hook that points to NewRepository by default.
// Tests may replace this variable to avoid real DB connections.
var newRepository = NewRepository

// wrappedRepo adapts *sqlite.Repository to the storage.Repository interface,
// adding a Close method that calls the cleanup function returned by
// NewRepository.
type wrappedRepo struct {
	*Repository
	closeFn func()
}

// Close implements storage.Repository.Close.
func (w *wrappedRepo) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

func (w *wrappedRepo) BeginTx(ctx context.Context) (storage.Tx, error) {
	tx, err := w.Repository.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

func (w *wrappedRepo) Dialect() storage.Dialect { return sqliteddl.Dialect{} }

// Ensure wrappedRepo satisfies the interface at compile time.
var (
	_ storage.Repository = (*wrappedRepo)(nil)
	_ storage.Tx         = (*Tx)(nil)
	_ storage.Dialect    = sqliteddl.Dialect{}
)

func init() {
	storage.Register("sqlite", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{DSN: cfg.DSN, BusyTimeout: DefaultBusyTimeout})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})
}
