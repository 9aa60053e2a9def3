package config

import (
	"strings"
	"testing"
)

// hasIssue reports whether issues contains an Issue with the given severity,
// path, and a Message containing msgSubstr.
func hasIssue(t *testing.T, issues []Issue, sev IssueSeverity, path, msgSubstr string) bool {
	t.Helper()
	for _, iss := range issues {
		if iss.Severity == sev && iss.Path == path && strings.Contains(iss.Message, msgSubstr) {
			return true
		}
	}
	return false
}

// validPipeline returns a pipeline that lints clean once defaults are applied.
func validPipeline() Pipeline {
	p := Pipeline{
		Job:     "parcels",
		Input:   Input{Dir: "in"},
		Output:  Output{Dir: "out", Format: "geojson"},
		Mapping: Mapping{Workbook: "mapping.xlsx"},
		Storage: Storage{
			Kind: "mssql",
			DB:   DBConfig{DSN: "sqlserver://sa:pw@localhost?database=gis"},
		},
	}
	ApplyDefaults(&p)
	return p
}

/*
TestValidatePipeline_ValidMinimal verifies that a well-formed pipeline produces
no issues (errors or warnings).
*/
func TestValidatePipeline_ValidMinimal(t *testing.T) {
	t.Parallel()

	if issues := ValidatePipeline(validPipeline()); len(issues) != 0 {
		t.Fatalf("ValidatePipeline() = %+v, want no issues", issues)
	}
}

/*
TestValidatePipeline_Issues mutates a valid pipeline one field at a time and
checks the single expected finding.
*/
func TestValidatePipeline_Issues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(p *Pipeline)
		sev    IssueSeverity
		path   string
		msg    string
	}{
		{"empty job", func(p *Pipeline) { p.Job = " " }, SeverityError, "job", "must not be empty"},
		{"no input dir", func(p *Pipeline) { p.Input.Dir = "" }, SeverityError, "input.dir", "must not be empty"},
		{"unknown extension", func(p *Pipeline) { p.Input.Extensions = []string{".gpkg"} }, SeverityWarning, "input.extensions[0]", "no reader"},
		{"bad output format", func(p *Pipeline) { p.Output.Format = "kml" }, SeverityError, "output.format", "unsupported"},
		{"output without dir", func(p *Pipeline) { p.Output.Dir = "" }, SeverityError, "output.dir", "must not be empty"},
		{"no workbook", func(p *Pipeline) { p.Mapping.Workbook = "" }, SeverityWarning, "mapping.workbook", "unchanged"},
		{"csv workbook", func(p *Pipeline) { p.Mapping.Workbook = "m.csv" }, SeverityWarning, "mapping.workbook", ".csv"},
		{"web mercator target", func(p *Pipeline) { p.Geometry.TargetSRID = 3857 }, SeverityError, "geometry.target_srid", "only 4326"},
		{"negative override", func(p *Pipeline) { p.Geometry.SourceSRIDOverride = -1 }, SeverityError, "geometry.source_srid_override", "negative"},
		{"unknown override", func(p *Pipeline) { p.Geometry.SourceSRIDOverride = 999999 }, SeverityError, "geometry.source_srid_override", "EPSG:999999"},
		{"negative workers", func(p *Pipeline) { p.Geometry.Workers = -2 }, SeverityError, "geometry.workers", "negative"},
		{"no storage kind", func(p *Pipeline) { p.Storage.Kind = "" }, SeverityError, "storage.kind", "must not be empty"},
		{"unknown storage kind", func(p *Pipeline) { p.Storage.Kind = "oracle" }, SeverityWarning, "storage.kind", "unknown storage kind"},
		{"no dsn", func(p *Pipeline) { p.Storage.DB.DSN = "" }, SeverityError, "storage.db.dsn", "must not be empty"},
		{"wkb equals geography", func(p *Pipeline) { p.Storage.DB.WKBColumn = "GEOM" }, SeverityError, "storage.db.wkb_column", "must differ"},
		{"mysql transactional", func(p *Pipeline) { p.Storage.Kind = "mysql" }, SeverityWarning, "storage.db.transactional", "implicitly"},
		{"negative batch", func(p *Pipeline) { p.Storage.Options = Options{"batch_size": -5} }, SeverityError, "storage.options.batch_size", "negative"},
		{"no log dir", func(p *Pipeline) { p.Logging.Dir = "" }, SeverityError, "logging.dir", "must not be empty"},
		{"pushgateway without url", func(p *Pipeline) { p.Metrics.Backend = "pushgateway" }, SeverityWarning, "metrics.pushgateway_url", "disabled"},
		{"datadog without addr", func(p *Pipeline) { p.Metrics.Backend = "datadog" }, SeverityWarning, "metrics.datadog_addr", "disabled"},
		{"unknown metrics backend", func(p *Pipeline) { p.Metrics.Backend = "graphite" }, SeverityWarning, "metrics.backend", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := validPipeline()
			tt.mutate(&p)
			issues := ValidatePipeline(p)
			if !hasIssue(t, issues, tt.sev, tt.path, tt.msg) {
				t.Fatalf("want %s at %s containing %q; got %+v", tt.sev, tt.path, tt.msg, issues)
			}
			if len(issues) != 1 {
				t.Fatalf("want exactly one issue; got %+v", issues)
			}
		})
	}
}

func TestValidatePipeline_MySQLNonTransactionalIsClean(t *testing.T) {
	t.Parallel()

	p := validPipeline()
	p.Storage.Kind = "mysql"
	off := false
	p.Storage.DB.Transactional = &off
	if issues := ValidatePipeline(p); len(issues) != 0 {
		t.Fatalf("ValidatePipeline() = %+v, want none", issues)
	}
}

func TestHasErrors(t *testing.T) {
	t.Parallel()

	warn := Issue{Severity: SeverityWarning, Path: "a", Message: "w"}
	fail := Issue{Severity: SeverityError, Path: "b", Message: "e"}

	if HasErrors(nil) || HasErrors([]Issue{warn}) {
		t.Fatal("HasErrors reported an error for warnings only")
	}
	if !HasErrors([]Issue{warn, fail}) {
		t.Fatal("HasErrors missed an error")
	}
	if got, want := fail.Error(), "error at b: e"; got != want {
		t.Fatalf("Issue.Error() = %q, want %q", got, want)
	}
}
