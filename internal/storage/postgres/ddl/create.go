package ddl

import (
	"fmt"
	"strings"

	gddl "geoetl/internal/ddl"
)

// Dialect renders PostGIS SQL for a table load.
type Dialect struct{}

func (Dialect) Name() string { return "postgres" }

func (Dialect) QuoteIdent(id string) string { return quoteIdent(id) }

func (Dialect) QuoteFQN(fqn string) string { return gddl.QuoteFQN(fqn, quoteIdent) }

func (Dialect) ColumnType(k gddl.Kind) string { return MapType(k) }

func (d Dialect) DropTableIfExists(fqn string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s;", d.QuoteFQN(fqn))
}

// CreateTable is the generic builder with double-quote quoting, which is
// already Postgres syntax.
func (Dialect) CreateTable(t gddl.TableDef) (string, error) {
	return gddl.BuildCreateTableSQL(t, quoteIdent)
}

func (d Dialect) AddGeographyColumn(fqn, col string) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s geography(Geometry, 4326);", d.QuoteFQN(fqn), quoteIdent(col))
}

func (d Dialect) PopulateGeography(fqn, geo, wkb string, srid int) string {
	w := quoteIdent(wkb)
	return fmt.Sprintf(
		"UPDATE %s SET %s = ST_GeomFromWKB(decode(%s, 'hex'), %d)::geography WHERE %s IS NOT NULL;",
		d.QuoteFQN(fqn), quoteIdent(geo), w, srid, w,
	)
}

func (d Dialect) DropColumn(fqn, col string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s;", d.QuoteFQN(fqn), quoteIdent(col))
}

func (Dialect) TransactionalDDL() bool { return true }

func (Dialect) DefaultSchema() string { return "public" }

// quoteIdent safely quotes a single identifier segment for Postgres.
func quoteIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }
