// Package postgres implements a PostGIS repository using pgx v5. Rows are
// loaded with COPY and the spatial column is a geography(Geometry, 4326).
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Config holds Postgres repository configuration.
type Config struct {
	DSN string // connection string for pgxpool
}

// Repository is a Postgres-backed implementation of storage.Repository.
type Repository struct {
	pool *pgxpool.Pool
	cfg  Config
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}
	close := func() { pool.Close() }
	return &Repository{pool: pool, cfg: cfg}, close, nil
}

// pgExecer is the subset of pgxpool.Pool and pgx.Tx the repository uses.
type pgExecer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// Exec executes a SQL statement against the pool.
func (r *Repository) Exec(ctx context.Context, sql string) error {
	return execSQL(ctx, r.pool, sql)
}

// CopyFrom streams rows into table using COPY FROM STDIN.
func (r *Repository) CopyFrom(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	return copyRows(ctx, r.pool, table, columns, rows)
}

// BeginTx opens a transaction. Postgres DDL is transactional.
func (r *Repository) BeginTx(ctx context.Context) (*Tx, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return &Tx{tx: tx}, nil
}

// Tx is an open Postgres transaction.
type Tx struct {
	tx pgx.Tx
}

func (t *Tx) Exec(ctx context.Context, sql string) error { return execSQL(ctx, t.tx, sql) }

func (t *Tx) CopyFrom(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	return copyRows(ctx, t.tx, table, columns, rows)
}

func (t *Tx) Commit(ctx context.Context) error { return t.tx.Commit(ctx) }

func (t *Tx) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }

func execSQL(ctx context.Context, ex pgExecer, sql string) error {
	if _, err := ex.Exec(ctx, sql); err != nil {
		return pgError(err)
	}
	return nil
}

func copyRows(ctx context.Context, ex pgExecer, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	n, err := ex.CopyFrom(ctx, Identifier(table), columns, pgx.CopyFromRows(rows))
	if err != nil {
		return n, fmt.Errorf("copy into %s: %w", table, pgError(err))
	}
	return n, nil
}

// Identifier splits a dotted table name into a pgx.Identifier, which pgx
// quotes segment by segment.
func Identifier(table string) pgx.Identifier {
	parts := strings.Split(table, ".")
	out := make(pgx.Identifier, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// pgError surfaces the server's detail and SQLSTATE when present.
func pgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Detail != "" {
		return fmt.Errorf("%w (%s: %s)", err, pgErr.SQLState(), pgErr.Detail)
	}
	return err
}
