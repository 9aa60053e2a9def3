// Package ddl contains SQLite-specific helpers for generating DDL.
package ddl

import gddl "geoetl/internal/ddl"

// MapType maps an inferred column kind into a SQLite column type.
//
// SQLite supports dynamic typing, so this mapping prefers canonical affinities:
//   - integer   -> INTEGER
//   - boolean   -> INTEGER (0/1)
//   - float     -> REAL
//   - timestamp -> TEXT (the driver writes a sortable timestamp string)
//   - others    -> TEXT
func MapType(k gddl.Kind) string {
	switch k {
	case gddl.Integer, gddl.Boolean:
		return "INTEGER"
	case gddl.Float:
		return "REAL"
	default:
		return "TEXT"
	}
}
