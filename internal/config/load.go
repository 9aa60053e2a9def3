package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Defaults applied by Load when the document leaves a field empty.
const (
	DefaultTargetSRID      = 4326
	DefaultGeographyColumn = "geom"
	DefaultWKBColumn       = "wkb_hex"
	DefaultLogDir          = "logs"
	DefaultJob             = "geoetl"
)

// DefaultExtensions are the input extensions scanned when none are set.
var DefaultExtensions = []string{".geojson", ".json", ".shp"}

// Environment variables that override file values.
const (
	EnvDSN             = "GEOETL_DSN"
	EnvInputDir        = "GEOETL_INPUT_DIR"
	EnvMappingWorkbook = "GEOETL_MAPPING_WORKBOOK"
	EnvMetricsBackend  = "METRICS_BACKEND"
	EnvPushgatewayURL  = "PUSHGATEWAY_URL"
)

// Load reads the pipeline file at path, decodes it as YAML for .yaml/.yml
// and JSON otherwise, then applies environment overrides and defaults.
func Load(path string) (Pipeline, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Pipeline{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	p, err := Parse(b, filepath.Ext(path))
	if err != nil {
		return Pipeline{}, fmt.Errorf("config: %s: %w", path, err)
	}
	ApplyEnv(&p, os.LookupEnv)
	ApplyDefaults(&p)
	return p, nil
}

// Parse decodes a pipeline document. ext selects the format (".yaml" and
// ".yml" are YAML, anything else JSON). Unknown fields are rejected.
func Parse(b []byte, ext string) (Pipeline, error) {
	var p Pipeline
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(b))
		dec.KnownFields(true)
		if err := dec.Decode(&p); err != nil {
			return Pipeline{}, fmt.Errorf("decode yaml: %w", err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(b))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&p); err != nil {
			return Pipeline{}, fmt.Errorf("decode json: %w", err)
		}
	}
	return p, nil
}

// ApplyEnv overrides file values with non-empty environment variables.
func ApplyEnv(p *Pipeline, lookup func(string) (string, bool)) {
	set := func(dst *string, key string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = v
		}
	}
	set(&p.Storage.DB.DSN, EnvDSN)
	set(&p.Input.Dir, EnvInputDir)
	set(&p.Mapping.Workbook, EnvMappingWorkbook)
	set(&p.Metrics.Backend, EnvMetricsBackend)
	set(&p.Metrics.PushgatewayURL, EnvPushgatewayURL)
}

// ApplyDefaults fills empty fields. Extensions are normalized to lower case
// with a leading dot.
func ApplyDefaults(p *Pipeline) {
	if strings.TrimSpace(p.Job) == "" {
		p.Job = DefaultJob
	}
	if len(p.Input.Extensions) == 0 {
		p.Input.Extensions = append([]string(nil), DefaultExtensions...)
	}
	for i, e := range p.Input.Extensions {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" && !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		p.Input.Extensions[i] = e
	}
	if p.Geometry.TargetSRID == 0 {
		p.Geometry.TargetSRID = DefaultTargetSRID
	}
	if p.Storage.DB.GeographyColumn == "" {
		p.Storage.DB.GeographyColumn = DefaultGeographyColumn
	}
	if p.Storage.DB.WKBColumn == "" {
		p.Storage.DB.WKBColumn = DefaultWKBColumn
	}
	if p.Storage.Options == nil {
		p.Storage.Options = Options{}
	}
	if p.Logging.Dir == "" {
		p.Logging.Dir = DefaultLogDir
	}
	p.Output.Format = strings.ToLower(strings.TrimSpace(p.Output.Format))
}
