// Package config defines the canonical configuration model for a geoetl run.
// A pipeline document is JSON or YAML and is passed through the program as a
// plain value; Load applies environment overrides and defaults on top of the
// decoded file.
//
// Example (YAML):
//
//	job: parcels-nightly
//	input:    { dir: ./data/in, extensions: [.geojson, .shp] }
//	output:   { dir: ./data/out, format: geojson }
//	mapping:  { workbook: ./mapping.xlsx }
//	geometry: { target_srid: 4326, workers: 4 }
//	storage:
//	  kind: mssql
//	  db: { dsn: "sqlserver://...", schema: dbo }
//	  options: { batch_size: 2000 }
//	logging:  { dir: ./logs }
//	metrics:  { backend: pushgateway, pushgateway_url: http://localhost:9091 }
package config

import "encoding/json"

// Pipeline is the top-level object decoded from a pipeline file.
type Pipeline struct {
	// Job names the run; it labels metrics and log lines.
	Job string `json:"job" yaml:"job"`

	Input    Input    `json:"input" yaml:"input"`
	Output   Output   `json:"output" yaml:"output"`
	Mapping  Mapping  `json:"mapping" yaml:"mapping"`
	Geometry Geometry `json:"geometry" yaml:"geometry"`
	Storage  Storage  `json:"storage" yaml:"storage"`
	Logging  Logging  `json:"logging" yaml:"logging"`
	Metrics  Metrics  `json:"metrics" yaml:"metrics"`
}

// Input selects the vector files to ingest.
type Input struct {
	// Dir is scanned non-recursively.
	Dir string `json:"dir" yaml:"dir"`

	// Extensions filters files by extension, case-insensitively.
	// Defaults to .geojson, .json and .shp.
	Extensions []string `json:"extensions" yaml:"extensions"`
}

// Output controls the per-dataset transformed copy written after a
// successful load. An empty Format disables it.
type Output struct {
	Dir    string `json:"dir" yaml:"dir"`
	Format string `json:"format" yaml:"format"`
}

// Mapping points at the rename workbook: one sheet per dataset, old name in
// column A, new name in column B.
type Mapping struct {
	Workbook string `json:"workbook" yaml:"workbook"`
}

// Geometry configures reprojection and WKB encoding.
type Geometry struct {
	// TargetSRID is the output CRS. Only 4326 is supported.
	TargetSRID int `json:"target_srid" yaml:"target_srid"`

	// SourceSRIDOverride, when positive, replaces the CRS read from every
	// input file.
	SourceSRIDOverride int `json:"source_srid_override" yaml:"source_srid_override"`

	// Workers bounds per-file parallelism; 0 means GOMAXPROCS.
	Workers int `json:"workers" yaml:"workers"`
}

// Storage selects the spatial database the datasets are loaded into.
type Storage struct {
	// Kind selects the storage backend: mssql, postgres, mysql or sqlite.
	Kind string `json:"kind" yaml:"kind"`

	DB DBConfig `json:"db" yaml:"db"`

	// Options carries loader tuning such as batch_size.
	Options Options `json:"options" yaml:"options"`
}

// DBConfig configures the target database and the table layout.
type DBConfig struct {
	// DSN is the driver connection string.
	DSN string `json:"dsn" yaml:"dsn"`

	// Schema qualifies every table. Empty uses the backend default
	// (dbo for mssql, public for postgres).
	Schema string `json:"schema" yaml:"schema"`

	// GeographyColumn names the spatial column. Defaults to "geom".
	GeographyColumn string `json:"geography_column" yaml:"geography_column"`

	// WKBColumn names the transient hex WKB column. Defaults to "wkb_hex".
	WKBColumn string `json:"wkb_column" yaml:"wkb_column"`

	// Transactional runs each table replacement in one transaction where the
	// backend allows it. Nil means true.
	Transactional *bool `json:"transactional" yaml:"transactional"`
}

// IsTransactional reports the effective transactional setting.
func (d DBConfig) IsTransactional() bool {
	return d.Transactional == nil || *d.Transactional
}

// Logging configures the run log file.
type Logging struct {
	// Dir receives geoetl_YYYYMMDD_HHMMSS.log. Defaults to "logs".
	Dir     string `json:"dir" yaml:"dir"`
	Verbose bool   `json:"verbose" yaml:"verbose"`
}

// Metrics selects a metrics backend: none, pushgateway or datadog.
type Metrics struct {
	Backend        string `json:"backend" yaml:"backend"`
	PushgatewayURL string `json:"pushgateway_url" yaml:"pushgateway_url"`
	DatadogAddr    string `json:"datadog_addr" yaml:"datadog_addr"`
}

// Options is a small helper to fetch typed values from a free-form JSON or
// YAML map. It performs only minimal type coercion and returns provided
// defaults when a key is absent or of an unexpected type.
type Options map[string]any

// String returns the string value for key or def if key is missing or not a string.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool value for key or def if key is missing or not a bool.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the int value for key or def. encoding/json decodes numbers as
// float64 and yaml.v3 as int, so both are accepted.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		}
	}
	return def
}

// StringSlice returns a []string for key when the value is an array of strings
// (or an array of interface values containing strings). Returns nil when the
// key is missing or the value is not an array.
func (o Options) StringSlice(key string) []string {
	if v, ok := o[key]; ok {
		switch vv := v.(type) {
		case []any:
			out := make([]string, 0, len(vv))
			for _, x := range vv {
				if s, ok := x.(string); ok {
					out = append(out, s)
				}
			}
			return out
		case []string:
			return vv
		}
	}
	return nil
}

// UnmarshalJSON implements json.Unmarshaler so that a missing or null "options"
// object in JSON decodes to a non-nil, empty Options map. This simplifies call
// sites by removing the need to nil-check Options values.
func (o *Options) UnmarshalJSON(b []byte) error {
	var tmp map[string]any
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}
