package ddl

import (
	"fmt"
	"strings"

	gddl "geoetl/internal/ddl"
)

// Dialect renders SQLite SQL for a table load. The spatial column is a BLOB
// of WKB bytes; SQLite has no geography type of its own.
type Dialect struct{}

func (Dialect) Name() string { return "sqlite" }

func (Dialect) QuoteIdent(id string) string { return QuoteIdent(id) }

func (Dialect) QuoteFQN(fqn string) string { return QuoteFQN(fqn) }

func (Dialect) ColumnType(k gddl.Kind) string { return MapType(k) }

func (Dialect) DropTableIfExists(fqn string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s;", QuoteFQN(fqn))
}

func (Dialect) CreateTable(t gddl.TableDef) (string, error) {
	s, err := gddl.BuildCreateTableSQL(t, QuoteIdent)
	if err != nil {
		return "", fmt.Errorf("sqlite %w", err)
	}
	return s, nil
}

func (Dialect) AddGeographyColumn(fqn, col string) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s BLOB;", QuoteFQN(fqn), QuoteIdent(col))
}

// PopulateGeography decodes the hex text to WKB bytes. The SRID is not
// stored; it is always 4326.
func (Dialect) PopulateGeography(fqn, geo, wkb string, _ int) string {
	w := QuoteIdent(wkb)
	return fmt.Sprintf("UPDATE %s SET %s = unhex(%s) WHERE %s IS NOT NULL;",
		QuoteFQN(fqn), QuoteIdent(geo), w, w)
}

func (Dialect) DropColumn(fqn, col string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s;", QuoteFQN(fqn), QuoteIdent(col))
}

func (Dialect) TransactionalDDL() bool { return true }

func (Dialect) DefaultSchema() string { return "" }

// QuoteIdent double-quotes one identifier.
func QuoteIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// QuoteFQN quotes each segment of a dotted name ("main.events").
func QuoteFQN(fqn string) string {
	return gddl.QuoteFQN(fqn, QuoteIdent)
}
