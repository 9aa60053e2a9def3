// Package ddl contains MSSQL-specific helpers for generating DDL.
//
// It maps inferred column kinds into SQL Server types and renders the
// statements of a table load (see Dialect).
package ddl

import gddl "geoetl/internal/ddl"

// MapType maps an inferred column kind into a SQL Server column type.
// Text and unknown kinds map to NVARCHAR(MAX).
func MapType(k gddl.Kind) string {
	switch k {
	case gddl.Integer:
		return "BIGINT"
	case gddl.Float:
		return "FLOAT"
	case gddl.Boolean:
		return "BIT"
	case gddl.Timestamp:
		return "DATETIME2"
	default:
		return "NVARCHAR(MAX)"
	}
}
