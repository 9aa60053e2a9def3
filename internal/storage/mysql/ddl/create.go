package ddl

import (
	"fmt"
	"strings"

	gddl "geoetl/internal/ddl"
)

// Dialect renders MySQL 8 SQL for a table load. The schema segment of a
// table name is a database.
type Dialect struct{}

func (Dialect) Name() string { return "mysql" }

func (Dialect) QuoteIdent(id string) string { return QuoteIdent(id) }

func (Dialect) QuoteFQN(fqn string) string { return QuoteFQN(fqn) }

func (Dialect) ColumnType(k gddl.Kind) string { return MapType(k) }

func (Dialect) DropTableIfExists(fqn string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s;", QuoteFQN(fqn))
}

func (Dialect) CreateTable(t gddl.TableDef) (string, error) {
	s, err := gddl.BuildCreateTableSQL(t, QuoteIdent)
	if err != nil {
		return "", fmt.Errorf("mysql %w", err)
	}
	return s, nil
}

// AddGeographyColumn uses GEOMETRY with a geographic SRID; MySQL has no
// separate geography type but computes on the ellipsoid for SRID 4326.
func (Dialect) AddGeographyColumn(fqn, col string) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s GEOMETRY SRID 4326 NULL;", QuoteFQN(fqn), QuoteIdent(col))
}

// PopulateGeography reads the WKB as longitude-latitude, the order it was
// encoded in.
func (Dialect) PopulateGeography(fqn, geo, wkb string, srid int) string {
	w := QuoteIdent(wkb)
	return fmt.Sprintf(
		"UPDATE %s SET %s = ST_GeomFromWKB(UNHEX(%s), %d, 'axis-order=long-lat') WHERE %s IS NOT NULL;",
		QuoteFQN(fqn), QuoteIdent(geo), w, srid, w,
	)
}

func (Dialect) DropColumn(fqn, col string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s;", QuoteFQN(fqn), QuoteIdent(col))
}

// TransactionalDDL is false: every DDL statement commits implicitly.
func (Dialect) TransactionalDDL() bool { return false }

// DefaultSchema is empty so tables land in the DSN's database.
func (Dialect) DefaultSchema() string { return "" }

// QuoteIdent quotes a single identifier with backticks, doubling any
// embedded backtick.
func QuoteIdent(id string) string { return "`" + strings.ReplaceAll(id, "`", "``") + "`" }

// QuoteFQN quotes each segment of a dotted name.
func QuoteFQN(fqn string) string { return gddl.QuoteFQN(fqn, QuoteIdent) }
