// Package ddl contains MySQL-specific helpers for generating DDL.
package ddl

import gddl "geoetl/internal/ddl"

// MapType maps an inferred column kind into a MySQL column type.
func MapType(k gddl.Kind) string {
	switch k {
	case gddl.Integer:
		return "BIGINT"
	case gddl.Float:
		return "DOUBLE"
	case gddl.Boolean:
		return "TINYINT(1)"
	case gddl.Timestamp:
		return "DATETIME(6)"
	default:
		return "LONGTEXT"
	}
}
