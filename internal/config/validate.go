// Package config provides configuration models and helpers for geoetl runs.
//
// This file adds a lightweight linter/validator for Pipeline values. It
// performs static checks over a decoded Pipeline and returns a list of issues
// (errors and warnings) that callers can surface in a CLI or tests.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"geoetl/internal/geometry"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a configuration warning that should be surfaced
	// to users but may not necessarily block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation/lint finding for a Pipeline.
//
// Path is a dotted path into the config (e.g. "storage.kind",
// "transform[1].options.contract"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// ValidatePipeline performs static validation / linting of a Pipeline.
//
// It does not mutate the pipeline. Instead it returns a slice of Issue values.
// Callers may decide whether to treat warnings as fatal or not. Run it after
// Load so defaults are in place.
//
// Example:
//
//	p, err := config.Load(path)
//	if err != nil { ... }
//	for _, iss := range config.ValidatePipeline(p) {
//	    fmt.Printf("%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
//	}
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue

	if strings.TrimSpace(p.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it is used for metrics labeling and identifying runs",
		})
	}
	issues = append(issues, validateInput(p.Input)...)
	issues = append(issues, validateOutput(p.Output)...)
	issues = append(issues, validateMapping(p.Mapping)...)
	issues = append(issues, validateGeometry(p.Geometry)...)
	issues = append(issues, validateStorage(p.Storage)...)
	issues = append(issues, validateLogging(p.Logging)...)
	issues = append(issues, validateMetrics(p.Metrics)...)

	return issues
}

// HasErrors reports whether any issue has error severity.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

func validateInput(in Input) []Issue {
	var issues []Issue

	if strings.TrimSpace(in.Dir) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "input.dir",
			Message:  "input.dir must not be empty",
		})
	}

	known := map[string]struct{}{
		".geojson": {},
		".json":    {},
		".shp":     {},
	}
	for i, e := range in.Extensions {
		if _, ok := known[strings.ToLower(e)]; !ok {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     fmt.Sprintf("input.extensions[%d]", i),
				Message:  fmt.Sprintf("extension %q has no reader; matching files will fail", e),
			})
		}
	}
	return issues
}

func validateOutput(o Output) []Issue {
	var issues []Issue

	switch o.Format {
	case "":
		return nil
	case "geojson":
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "output.format",
			Message:  fmt.Sprintf("unsupported output format %q; want geojson or empty", o.Format),
		})
	}
	if strings.TrimSpace(o.Dir) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "output.dir",
			Message:  "output.dir must not be empty when output.format is set",
		})
	}
	return issues
}

func validateMapping(m Mapping) []Issue {
	if strings.TrimSpace(m.Workbook) == "" {
		return []Issue{{
			Severity: SeverityWarning,
			Path:     "mapping.workbook",
			Message:  "no mapping workbook; attribute names are loaded unchanged",
		}}
	}
	if ext := strings.ToLower(filepath.Ext(m.Workbook)); ext != ".xlsx" && ext != ".xlsm" {
		return []Issue{{
			Severity: SeverityWarning,
			Path:     "mapping.workbook",
			Message:  fmt.Sprintf("workbook extension %q is not .xlsx/.xlsm; it may not open", ext),
		}}
	}
	return nil
}

func validateGeometry(g Geometry) []Issue {
	var issues []Issue

	if g.TargetSRID != DefaultTargetSRID {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "geometry.target_srid",
			Message:  fmt.Sprintf("target_srid=%d; only %d (WGS84) is supported", g.TargetSRID, DefaultTargetSRID),
		})
	}
	if g.SourceSRIDOverride < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "geometry.source_srid_override",
			Message:  "source_srid_override must not be negative",
		})
	} else if o := g.SourceSRIDOverride; o > 0 && o != geometry.WGS84 {
		if _, err := geometry.TransformFor(o); err != nil {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "geometry.source_srid_override",
				Message:  fmt.Sprintf("no transform from EPSG:%d to WGS84", o),
			})
		}
	}
	if g.Workers < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "geometry.workers",
			Message:  "workers must not be negative",
		})
	}
	return issues
}

// validateStorage validates storage configuration and DB settings.
func validateStorage(s Storage) []Issue {
	var issues []Issue

	if strings.TrimSpace(s.Kind) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.kind",
			Message:  "storage.kind must not be empty",
		})
		return issues
	}

	known := map[string]struct{}{
		"postgres": {},
		"mysql":    {},
		"mssql":    {},
		"sqlite":   {},
	}
	if _, ok := known[s.Kind]; !ok {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "storage.kind",
			Message:  fmt.Sprintf("unknown storage kind %q; ensure a matching backend is registered", s.Kind),
		})
	}

	db := s.DB
	if strings.TrimSpace(db.DSN) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.db.dsn",
			Message:  "storage.db.dsn must not be empty",
		})
	}
	if db.GeographyColumn != "" && strings.EqualFold(db.GeographyColumn, db.WKBColumn) {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.db.wkb_column",
			Message:  "wkb_column must differ from geography_column",
		})
	}
	if s.Kind == "mysql" && db.IsTransactional() {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "storage.db.transactional",
			Message:  "mysql commits DDL implicitly; a failed load can leave a partial table",
		})
	}
	if n := s.Options.Int("batch_size", 0); n < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.options.batch_size",
			Message:  fmt.Sprintf("batch_size=%d must not be negative", n),
		})
	}

	return issues
}

func validateLogging(l Logging) []Issue {
	if strings.TrimSpace(l.Dir) == "" {
		return []Issue{{
			Severity: SeverityError,
			Path:     "logging.dir",
			Message:  "logging.dir must not be empty",
		}}
	}
	return nil
}

func validateMetrics(m Metrics) []Issue {
	switch m.Backend {
	case "", "none":
	case "pushgateway":
		if strings.TrimSpace(m.PushgatewayURL) == "" {
			return []Issue{{
				Severity: SeverityWarning,
				Path:     "metrics.pushgateway_url",
				Message:  "pushgateway backend without a URL; metrics are disabled",
			}}
		}
	case "datadog":
		if strings.TrimSpace(m.DatadogAddr) == "" {
			return []Issue{{
				Severity: SeverityWarning,
				Path:     "metrics.datadog_addr",
				Message:  "datadog backend without an agent address; metrics are disabled",
			}}
		}
	default:
		return []Issue{{
			Severity: SeverityWarning,
			Path:     "metrics.backend",
			Message:  fmt.Sprintf("unknown metrics backend %q; metrics are disabled", m.Backend),
		}}
	}
	return nil
}
