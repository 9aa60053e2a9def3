package storage

import "geoetl/internal/ddl"

// Dialect renders the backend-specific SQL for each load step. Table names
// passed in are unquoted and may be schema-qualified ("dbo.parcels"); the
// dialect quotes them.
type Dialect interface {
	// Name is the storage kind the dialect belongs to.
	Name() string

	QuoteIdent(id string) string
	QuoteFQN(fqn string) string

	// ColumnType maps an inferred column kind to a SQL type.
	ColumnType(k ddl.Kind) string

	DropTableIfExists(fqn string) string
	CreateTable(t ddl.TableDef) (string, error)

	// AddGeographyColumn adds the nullable native spatial column.
	AddGeographyColumn(fqn, col string) string

	// PopulateGeography fills geo from the hex WKB text in wkb for every
	// row where wkb is not NULL.
	PopulateGeography(fqn, geo, wkb string, srid int) string

	DropColumn(fqn, col string) string

	// TransactionalDDL reports whether DDL statements can be rolled back
	// inside a transaction.
	TransactionalDDL() bool

	// DefaultSchema is used when the pipeline names none. Empty means the
	// table name is used unqualified.
	DefaultSchema() string
}
