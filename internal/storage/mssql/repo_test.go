package mssql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"strings"
	"sync"
	"testing"
)

// TestCopyFromEmptyRows verifies that CopyFrom short-circuits when no rows
// are provided and does not require a live database connection.
func TestCopyFromEmptyRows(t *testing.T) {
	t.Parallel()

	r := &Repository{db: nil} // must not be used in this path

	got, err := r.CopyFrom(context.Background(), "dbo.t", []string{"id", "name"}, nil)
	if err != nil {
		t.Fatalf("CopyFrom(nil...) error = %v, want nil", err)
	}
	if got != 0 {
		t.Fatalf("CopyFrom(nil...) = %d, want 0", got)
	}

	tx := &Tx{tx: nil}
	got, err = tx.CopyFrom(context.Background(), "dbo.t", []string{"id"}, nil)
	if err != nil || got != 0 {
		t.Fatalf("Tx.CopyFrom(nil...) = %d, %v, want 0, nil", got, err)
	}
}

// --- Test driver plumbing for exercising Exec and CopyFrom without a real DB --

type errDriver struct{}

type errConn struct{}

func (d *errDriver) Open(name string) (driver.Conn, error) {
	return &errConn{}, nil
}

// Prepare is not expected to be called in our tests; if it is, fail loudly.
func (c *errConn) Prepare(query string) (driver.Stmt, error) {
	return nil, errors.New("unexpected Prepare call")
}

func (c *errConn) Close() error { return nil }

// Begin is required by driver.Conn; database/sql calls BeginTx when available.
func (c *errConn) Begin() (driver.Tx, error) {
	return nil, errors.New("begin (legacy) should not be called")
}

// BeginTx implements driver.ConnBeginTx and always fails, to exercise the
// error paths in Repository.CopyFrom and Repository.BeginTx.
func (c *errConn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	return nil, errors.New("begin failed")
}

// ExecContext implements driver.ExecerContext and always fails, to exercise
// the error path in Repository.Exec.
func (c *errConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	return nil, errors.New("exec failed")
}

// We don't expect queries in these tests.
func (c *errConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	return nil, errors.New("unexpected QueryContext call")
}

var (
	testDriverOnce sync.Once
	testDriverName = "mssql_test_err"
)

// openErrDB registers and opens a test driver that fails BeginTx and ExecContext.
func openErrDB(t *testing.T) *sql.DB {
	t.Helper()

	testDriverOnce.Do(func() {
		sql.Register(testDriverName, &errDriver{})
	})
	db, err := sql.Open(testDriverName, "")
	if err != nil {
		t.Fatalf("sql.Open(%q) error = %v", testDriverName, err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// --- Tests ---

// TestExecPropagatesError verifies that Exec forwards errors from the underlying
// *sql.DB.ExecContext call when the driver returns an error.
func TestExecPropagatesError(t *testing.T) {
	t.Parallel()

	r := &Repository{db: openErrDB(t)}

	err := r.Exec(context.Background(), "SELECT 1")
	if err == nil {
		t.Fatalf("Exec() error = nil, want non-nil")
	}
	if !strings.Contains(err.Error(), "exec failed") {
		t.Fatalf("Exec() error = %q, want it to contain %q", err.Error(), "exec failed")
	}
}

// TestCopyFromBeginTxError verifies that CopyFrom surfaces errors from
// db.BeginTx before any bulk-copy logic runs.
func TestCopyFromBeginTxError(t *testing.T) {
	t.Parallel()

	r := &Repository{db: openErrDB(t)}

	rows := [][]any{
		{int64(1), "alice"},
		{int64(2), "bob"},
	}

	n, err := r.CopyFrom(context.Background(), "dbo.t", []string{"id", "name"}, rows)
	if err == nil {
		t.Fatalf("CopyFrom() error = nil, want non-nil when BeginTx fails")
	}
	if n != 0 {
		t.Fatalf("CopyFrom() rows = %d, want 0 on error", n)
	}
	if !strings.Contains(err.Error(), "begin tx:") {
		t.Fatalf("CopyFrom() error = %q, want it wrapped with 'begin tx:'", err.Error())
	}
}

// TestBeginTxError verifies that BeginTx wraps driver failures.
func TestBeginTxError(t *testing.T) {
	t.Parallel()

	r := &Repository{db: openErrDB(t)}

	tx, err := r.BeginTx(context.Background())
	if err == nil || tx != nil {
		t.Fatalf("BeginTx() = %v, %v, want nil tx and error", tx, err)
	}
	if !strings.Contains(err.Error(), "begin failed") {
		t.Fatalf("BeginTx() error = %q", err)
	}
}
