package ddl

import (
	"fmt"
	"strings"

	gddl "geoetl/internal/ddl"
)

// Dialect renders T-SQL for a table load. Identifiers use [bracket] quoting.
type Dialect struct{}

func (Dialect) Name() string { return "mssql" }

func (Dialect) QuoteIdent(id string) string { return quoteIdent(id) }

func (Dialect) QuoteFQN(fqn string) string { return QuoteFQN(fqn) }

func (Dialect) ColumnType(k gddl.Kind) string { return MapType(k) }

// DropTableIfExists guards DROP TABLE with OBJECT_ID since the target may
// run on versions without DROP TABLE IF EXISTS.
//
//	IF OBJECT_ID(N'[dbo].[t]', N'U') IS NOT NULL DROP TABLE [dbo].[t];
func (Dialect) DropTableIfExists(fqn string) string {
	q := QuoteFQN(fqn)
	return fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NOT NULL DROP TABLE %s;",
		strings.ReplaceAll(q, "'", "''"), q)
}

// CreateTable renders a plain CREATE TABLE; the drop step runs first.
func (Dialect) CreateTable(t gddl.TableDef) (string, error) {
	s, err := gddl.BuildCreateTableSQL(t, quoteIdent)
	if err != nil {
		return "", fmt.Errorf("mssql %w", err)
	}
	return s, nil
}

func (Dialect) AddGeographyColumn(fqn, col string) string {
	return fmt.Sprintf("ALTER TABLE %s ADD %s GEOGRAPHY NULL;", QuoteFQN(fqn), quoteIdent(col))
}

// PopulateGeography converts the hex text (style 2: no 0x prefix) to
// VARBINARY and builds the geography from it.
func (Dialect) PopulateGeography(fqn, geo, wkb string, srid int) string {
	w := quoteIdent(wkb)
	return fmt.Sprintf(
		"UPDATE %s SET %s = geography::STGeomFromWKB(CONVERT(VARBINARY(MAX), %s, 2), %d) WHERE %s IS NOT NULL;",
		QuoteFQN(fqn), quoteIdent(geo), w, srid, w,
	)
}

func (Dialect) DropColumn(fqn, col string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s;", QuoteFQN(fqn), quoteIdent(col))
}

func (Dialect) TransactionalDDL() bool { return true }

func (Dialect) DefaultSchema() string { return "dbo" }

// quoteIdent quotes a single identifier segment for SQL Server using
// bracket syntax, escaping any closing brackets.
//
//	name      -> [name]
//	weird]id  -> [weird]]id]
func quoteIdent(id string) string {
	return "[" + strings.ReplaceAll(id, "]", "]]") + "]"
}

// QuoteFQN quotes a possibly schema-qualified table name, e.g.:
//
//	"dbo.Users"   -> [dbo].[Users]
//	"Users"       -> [Users]
//	"a.b.c"       -> [a].[b].[c]
func QuoteFQN(fqn string) string {
	return gddl.QuoteFQN(fqn, quoteIdent)
}
