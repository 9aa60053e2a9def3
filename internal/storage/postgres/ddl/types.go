// Package ddl contains Postgres/PostGIS-specific helpers for generating DDL.
package ddl

import gddl "geoetl/internal/ddl"

// MapType maps an inferred column kind into a Postgres SQL type.
//
//	Integer   -> BIGINT
//	Float     -> DOUBLE PRECISION
//	Boolean   -> BOOLEAN
//	Timestamp -> TIMESTAMPTZ
//	everything else -> TEXT
func MapType(k gddl.Kind) string {
	switch k {
	case gddl.Integer:
		return "BIGINT"
	case gddl.Float:
		return "DOUBLE PRECISION"
	case gddl.Boolean:
		return "BOOLEAN"
	case gddl.Timestamp:
		return "TIMESTAMPTZ"
	default:
		return "TEXT"
	}
}
