// Package postgres provides a Postgres-backed storage.Repository implementation.
// This adapter wires the Postgres backend into the storage-agnostic factory.
package postgres

import (
	"context"

	"geoetl/internal/storage"
	pgddl "geoetl/internal/storage/postgres/ddl"
)

// newRepository is a test hook that points to NewRepository by default.
// Tests may replace this variable to avoid real DB connections.
var newRepository = NewRepository

var (
	_ storage.Repository = (*wrappedRepo)(nil)
	_ storage.Tx         = (*Tx)(nil)
	_ storage.Dialect    = pgddl.Dialect{}
)

func init() {
	storage.Register("postgres", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{DSN: cfg.DSN})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})
}

// wrappedRepo adapts *postgres.Repository to storage.Repository and provides Close.
type wrappedRepo struct {
	*Repository
	closeFn func()
}

func (w *wrappedRepo) Close() { w.closeFn() }

func (w *wrappedRepo) BeginTx(ctx context.Context) (storage.Tx, error) {
	tx, err := w.Repository.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

func (w *wrappedRepo) Dialect() storage.Dialect { return pgddl.Dialect{} }
