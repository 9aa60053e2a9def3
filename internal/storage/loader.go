package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"geoetl/internal/ddl"
	"geoetl/internal/feature"
	"geoetl/internal/record"
)

// CopyFn abstracts a backend's bulk insert capability. Implementations should
// insert the provided rows (aligned to 'columns' order) and return the number
// of rows reported as inserted. The function should be safe for repeated calls
// and cancel promptly when ctx is done.
type CopyFn func(ctx context.Context, columns []string, rows [][]any) (int64, error)

// LoadBatches drains typed rows from 'in', groups them into batches of size
// 'batchSize', and calls 'copyFn' for each non-empty batch. It returns the total
// number of rows reported by copyFn and the first error encountered.
//
// Cancellation: returns (total, ctx.Err()) when canceled. Progress is logged on
// each successful flush.
func LoadBatches(
	ctx context.Context,
	logger *log.Logger,
	columns []string,
	in <-chan []any,
	batchSize int,
	copyFn CopyFn,
) (int64, error) {
	if batchSize <= 0 {
		return 0, fmt.Errorf("batchSize must be > 0")
	}
	if copyFn == nil {
		return 0, fmt.Errorf("copyFn must not be nil")
	}
	if logger == nil {
		logger = log.Default()
	}

	var (
		total       int64
		batches     int64
		batch       = make([][]any, 0, batchSize)
		start       = time.Now()
		lastFlushTS = start
		lastTotal   int64
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := copyFn(ctx, columns, batch)
		total += n

		// Reuse allocated slice; keep capacity to avoid churn.
		batch = batch[:0]

		if err != nil {
			logger.Printf("loader: COPY failed after=%d total=%d err=%v", n, total, err)

			return err
		}

		batches++
		now := time.Now()
		sinceLast := now.Sub(lastFlushTS)
		insertedSinceLast := total - lastTotal
		rps := float64(0)
		if sinceLast > 0 {
			rps = float64(insertedSinceLast) / sinceLast.Seconds()
		}
		logger.Printf(
			"loader: batch #%d: rps=%.0f inserted=%d total_inserted=%d elapsed=%s since_last=%s",
			batches,
			rps,
			n,
			total,
			now.Sub(start).Truncate(time.Millisecond),
			sinceLast.Truncate(time.Millisecond),
		)
		lastFlushTS = now
		lastTotal = total

		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return total, ctx.Err()

		case row, ok := <-in:
			if !ok {
				// Channel closed: flush remaining rows.
				if err := flush(); err != nil {
					return total, err
				}
				logger.Printf("loader: input closed, total_inserted=%d", total)

				return total, nil
			}
			batch = append(batch, row)
			if len(batch) >= batchSize {
				if err := flush(); err != nil {
					return total, err
				}
			}
		}
	}
}

// Step identifies one statement of the table load.
type Step int

const (
	StepBegin Step = iota
	StepDropTable
	StepCreateTable
	StepInsert
	StepAddGeography
	StepPopulateGeography
	StepDropWKB
	StepCommit
)

func (s Step) String() string {
	switch s {
	case StepBegin:
		return "begin"
	case StepDropTable:
		return "drop_table"
	case StepCreateTable:
		return "create_table"
	case StepInsert:
		return "insert"
	case StepAddGeography:
		return "add_geography"
	case StepPopulateGeography:
		return "populate_geography"
	case StepDropWKB:
		return "drop_wkb_column"
	case StepCommit:
		return "commit"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

// StepError reports the load step that failed. SQL is empty for the insert
// and transaction steps.
type StepError struct {
	Step  Step
	Table string
	SQL   string
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("storage: table=%s step=%s: %v", e.Table, e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// LoaderOptions controls table naming and the spatial conversion.
type LoaderOptions struct {
	// Schema qualifies the table name. Empty falls back to the dialect's
	// default schema.
	Schema string
	// GeographyColumn is the native spatial column. Default "geom".
	GeographyColumn string
	// WKBColumn is the transient hex WKB text column. Default "wkb_hex".
	WKBColumn string
	// SRID stamped on the spatial values. Default 4326.
	SRID int
	// Transactional wraps the whole load in one transaction when the
	// dialect supports transactional DDL.
	Transactional bool
	// BatchSize is the number of rows per CopyFrom call. Default 1000.
	BatchSize int
}

func (o LoaderOptions) withDefaults() LoaderOptions {
	if o.GeographyColumn == "" {
		o.GeographyColumn = "geom"
	}
	if o.WKBColumn == "" {
		o.WKBColumn = "wkb_hex"
	}
	if o.SRID == 0 {
		o.SRID = 4326
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 1000
	}
	return o
}

// LoadResult describes a completed load.
type LoadResult struct {
	Table string
	// Columns are the attribute columns left in the table, in order. The
	// spatial column is not included.
	Columns       []string
	Rows          int64
	Transactional bool
}

// Loader replaces one destination table per feature set.
type Loader struct {
	repo   Repository
	opts   LoaderOptions
	logger *log.Logger
}

// NewLoader returns a Loader writing through repo.
func NewLoader(repo Repository, opts LoaderOptions, logger *log.Logger) *Loader {
	if logger == nil {
		logger = log.Default()
	}
	return &Loader{repo: repo, opts: opts.withDefaults(), logger: logger}
}

// Options returns the effective options, defaults applied.
func (l *Loader) Options() LoaderOptions { return l.opts }

// TableName returns the unquoted destination name for a dataset id.
func (l *Loader) TableName(dataset string) string {
	name := ddl.SanitizeIdent(dataset)
	schema := strings.TrimSpace(l.opts.Schema)
	if schema == "" {
		schema = l.repo.Dialect().DefaultSchema()
	}
	if schema == "" {
		return name
	}
	return schema + "." + name
}

// TableDef builds the CREATE TABLE model for fs: one column per attribute in
// schema order, kinds inferred from the first non-Null value, and the
// transient WKB column last. The feature values are returned aligned with
// the columns.
func (l *Loader) TableDef(table string, fs *feature.FeatureSet) (ddl.TableDef, [][]record.Value, error) {
	d := l.repo.Dialect()
	wkb := l.opts.WKBColumn

	if fs.Len() > 0 && !fs.HasField(wkb) {
		return ddl.TableDef{}, nil, fmt.Errorf("storage: dataset=%s: column %s missing, geometries not encoded", fs.Name, wkb)
	}

	schema := make([]string, 0, len(fs.Schema())+1)
	for _, k := range fs.Schema() {
		if k == wkb {
			continue
		}
		if strings.EqualFold(k, l.opts.GeographyColumn) {
			return ddl.TableDef{}, nil, fmt.Errorf("storage: dataset=%s: attribute %q collides with geography column", fs.Name, k)
		}
		schema = append(schema, k)
	}
	schema = append(schema, wkb)

	vals := make([][]record.Value, fs.Len())
	for i, f := range fs.Features {
		row := make([]record.Value, len(schema))
		if f.Attrs != nil {
			for j, k := range schema {
				if v, ok := f.Attrs.Get(k); ok {
					row[j] = v
				}
			}
		}
		vals[i] = row
	}

	cols := ddl.InferColumns(schema, vals)
	cols[len(cols)-1].Kind = ddl.Text
	for i := range cols {
		cols[i].SQLType = d.ColumnType(cols[i].Kind)
	}
	return ddl.TableDef{FQN: table, Columns: cols}, vals, nil
}

// Load drops and recreates the table for dataset, inserts every feature,
// converts the WKB column into the geography column and drops the WKB
// column.
//
// When the options ask for it and the dialect allows it, the steps share one
// transaction and a failure leaves the previous table untouched. Otherwise a
// failure leaves whatever the completed steps produced.
func (l *Loader) Load(ctx context.Context, dataset string, fs *feature.FeatureSet) (LoadResult, error) {
	d := l.repo.Dialect()
	table := l.TableName(dataset)

	def, vals, err := l.TableDef(table, fs)
	if err != nil {
		return LoadResult{Table: table}, err
	}
	names := def.Names()
	res := LoadResult{Table: table, Columns: names[:len(names)-1]}

	useTx := l.opts.Transactional && d.TransactionalDDL()
	if l.opts.Transactional && !useTx {
		l.logger.Printf("WARN loader: dialect=%s has no transactional DDL; table=%s steps run independently", d.Name(), table)
	}
	res.Transactional = useTx

	start := time.Now()
	if !useTx {
		res.Rows, err = l.run(ctx, l.repo, def, vals)
		if err != nil {
			return res, err
		}
		l.logger.Printf("loader: table=%s rows=%d elapsed=%s", table, res.Rows, time.Since(start).Truncate(time.Millisecond))
		return res, nil
	}

	tx, err := l.repo.BeginTx(ctx)
	if err != nil {
		return res, &StepError{Step: StepBegin, Table: table, Err: err}
	}
	res.Rows, err = l.run(ctx, tx, def, vals)
	if err != nil {
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
			l.logger.Printf("ERROR loader: table=%s rollback: %v", table, rbErr)
			err = errors.Join(err, rbErr)
		} else {
			l.logger.Printf("loader: table=%s rolled back", table)
		}
		return res, err
	}
	if err := tx.Commit(ctx); err != nil {
		return res, &StepError{Step: StepCommit, Table: table, Err: err}
	}
	l.logger.Printf("loader: table=%s rows=%d elapsed=%s tx=true", table, res.Rows, time.Since(start).Truncate(time.Millisecond))
	return res, nil
}

func (l *Loader) run(ctx context.Context, ex Execer, def ddl.TableDef, vals [][]record.Value) (int64, error) {
	d := l.repo.Dialect()
	table := def.FQN
	geo, wkb := l.opts.GeographyColumn, l.opts.WKBColumn

	exec := func(step Step, sql string) error {
		if err := ex.Exec(ctx, sql); err != nil {
			return &StepError{Step: step, Table: table, SQL: sql, Err: err}
		}
		l.logger.Printf("loader: table=%s step=%s ok", table, step)
		return nil
	}

	if err := exec(StepDropTable, d.DropTableIfExists(table)); err != nil {
		return 0, err
	}
	create, err := d.CreateTable(def)
	if err != nil {
		return 0, &StepError{Step: StepCreateTable, Table: table, Err: err}
	}
	if err := exec(StepCreateTable, create); err != nil {
		return 0, err
	}

	n, err := l.insert(ctx, ex, def, vals)
	if err != nil {
		return n, &StepError{Step: StepInsert, Table: table, Err: err}
	}
	if n != int64(len(vals)) {
		l.logger.Printf("WARN loader: table=%s inserted=%d features=%d", table, n, len(vals))
	}

	if err := exec(StepAddGeography, d.AddGeographyColumn(table, geo)); err != nil {
		return n, err
	}
	if err := exec(StepPopulateGeography, d.PopulateGeography(table, geo, wkb, l.opts.SRID)); err != nil {
		return n, err
	}
	if err := exec(StepDropWKB, d.DropColumn(table, wkb)); err != nil {
		return n, err
	}
	return n, nil
}

// insert streams the rows through LoadBatches.
func (l *Loader) insert(ctx context.Context, ex Execer, def ddl.TableDef, vals [][]record.Value) (int64, error) {
	if len(vals) == 0 {
		return 0, nil
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	in := make(chan []any, l.opts.BatchSize)
	go func() {
		defer close(in)
		for _, row := range vals {
			select {
			case in <- bindRow(def.Columns, row):
			case <-ctx.Done():
				return
			}
		}
	}()

	return LoadBatches(ctx, l.logger, def.Names(), in, l.opts.BatchSize,
		func(ctx context.Context, columns []string, rows [][]any) (int64, error) {
			return ex.CopyFrom(ctx, def.FQN, columns, rows)
		})
}

func bindRow(cols []ddl.ColumnDef, row []record.Value) []any {
	out := make([]any, len(cols))
	for i, c := range cols {
		out[i] = BindValue(c.Kind, row[i])
	}
	return out
}

// BindValue converts v to the driver value for a column of kind k. Text
// columns always receive strings, Float columns accept Int values and
// Timestamp columns parse date strings; any other mismatch is passed through
// for the database to accept or reject.
func BindValue(k ddl.Kind, v record.Value) any {
	if v.IsNull() {
		return nil
	}
	switch {
	case k == ddl.Text:
		return v.String()
	case k == ddl.Float && v.Kind == record.Int:
		return float64(v.Int)
	case k == ddl.Timestamp && v.Kind == record.String:
		if t, ok := record.ParseTime(v.Str); ok {
			return t
		}
		return v.Str
	default:
		return v.Any()
	}
}
