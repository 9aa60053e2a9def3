// Package ddl defines a small, backend-agnostic model for SQL DDL, the
// column type inference used when a table is created from a feature set,
// and helpers to render CREATE TABLE statements from that model.
//
// Backend packages (internal/storage/<backend>/ddl) supply identifier
// quoting and the mapping from Kind to a SQL type.
package ddl

import (
	"fmt"
	"strings"
)

// Quoter quotes one identifier segment.
type Quoter func(id string) string

// QuoteFQN quotes each dot-separated segment of fqn with q. Empty segments
// are dropped.
func QuoteFQN(fqn string, q Quoter) string {
	parts := strings.Split(fqn, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, q(p))
	}
	return strings.Join(out, ".")
}

// BuildCreateTableSQL renders a CREATE TABLE statement from a TableDef,
// quoting the table and column names with q.
//
// Rules:
//
//   - t.FQN must be non-empty.
//
//   - Each column must have a non-empty Name and SQLType.
//
//   - A column is rendered as:
//
//     <Name> <SQLType> [NOT NULL] [DEFAULT <Default>]
//
//   - Columns with PrimaryKey == true are collected into a trailing
//     PRIMARY KEY (<col1>, <col2>, ...) clause.
//
// The result has the form:
//
//	CREATE TABLE <FQN> (
//	  <col1-def>,
//	  <col2-def>
//	);
func BuildCreateTableSQL(t TableDef, q Quoter) (string, error) {
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return "", fmt.Errorf("ddl: table FQN must not be empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("ddl: at least one column is required")
	}

	cols := make([]string, 0, len(t.Columns)+1)
	pks := make([]string, 0, len(t.Columns))
	seen := make(map[string]struct{}, len(t.Columns))

	for _, c := range t.Columns {
		name := c.Name
		if strings.TrimSpace(name) == "" {
			return "", fmt.Errorf("ddl: column with empty name in table %s", fqn)
		}
		if _, dup := seen[name]; dup {
			return "", fmt.Errorf("ddl: duplicate column %s in table %s", name, fqn)
		}
		seen[name] = struct{}{}
		typ := strings.TrimSpace(c.SQLType)
		if typ == "" {
			return "", fmt.Errorf("ddl: column %s missing SQLType", name)
		}

		var sb strings.Builder
		sb.WriteString(q(name))
		sb.WriteByte(' ')
		sb.WriteString(typ)

		if !c.Nullable {
			sb.WriteString(" NOT NULL")
		}

		if def := strings.TrimSpace(c.Default); def != "" {
			sb.WriteString(" DEFAULT ")
			// Default is emitted as raw SQL expression.
			sb.WriteString(def)
		}

		cols = append(cols, sb.String())

		if c.PrimaryKey {
			pks = append(pks, q(name))
		}
	}

	if len(pks) > 0 {
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pks, ", ")))
	}

	stmt := fmt.Sprintf(
		"CREATE TABLE %s (\n  %s\n);",
		QuoteFQN(fqn, q),
		strings.Join(cols, ",\n  "),
	)

	return stmt, nil
}
