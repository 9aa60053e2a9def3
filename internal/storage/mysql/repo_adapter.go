// Package mysql provides a MySQL-backed storage.Repository implementation.
// This adapter wires the MySQL backend into the storage-agnostic factory.
package mysql

import (
	"context"

	"geoetl/internal/storage"
	mysqlddl "geoetl/internal/storage/mysql/ddl"
)

// newRepository is a test hook that points to NewRepository by default.
// Tests may replace this variable to avoid real DB connections.
var newRepository = NewRepository

var (
	_ storage.Repository = (*wrappedRepo)(nil)
	_ storage.Tx         = (*Tx)(nil)
	_ storage.Dialect    = mysqlddl.Dialect{}
)

// init registers the "mysql" backend with the factory.
func init() {
	storage.Register("mysql", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{DSN: cfg.DSN})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})
}

// wrappedRepo adapts *mysql.Repository to storage.Repository and provides Close.
type wrappedRepo struct {
	*Repository
	closeFn func()
}

// Close closes the underlying connection pool.
func (w *wrappedRepo) Close() { w.closeFn() }

func (w *wrappedRepo) BeginTx(ctx context.Context) (storage.Tx, error) {
	tx, err := w.Repository.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

func (w *wrappedRepo) Dialect() storage.Dialect { return mysqlddl.Dialect{} }
