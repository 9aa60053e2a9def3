package ddl

import "geoetl/internal/record"

// InferKind maps one sampled value to a column kind. Null and String values
// give Text.
func InferKind(v record.Value) Kind {
	switch v.Kind {
	case record.Int:
		return Integer
	case record.Float:
		return Float
	case record.Bool:
		return Boolean
	case record.Time:
		return Timestamp
	default:
		return Text
	}
}

// InferColumns returns one nullable column per name in schema. Each column's
// kind comes from the first non-Null value in that position across rows; a
// column with no such value is Text. Later values are not consulted, so a
// column whose first value is text stays text.
//
// Every row must have len(schema) values.
func InferColumns(schema []string, rows [][]record.Value) []ColumnDef {
	cols := make([]ColumnDef, len(schema))
	for i, name := range schema {
		cols[i] = ColumnDef{Name: name, Kind: Text, Nullable: true}
		for _, row := range rows {
			if i >= len(row) || row[i].IsNull() {
				continue
			}
			cols[i].Kind = InferKind(row[i])
			break
		}
	}
	return cols
}
