package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
	"github.com/zeebo/xxh3"
)

const pointsGeoJSON = `{"type":"FeatureCollection","features":[
 {"type":"Feature","geometry":{"type":"Point","coordinates":[1,2]},
  "properties":{"blockid":"B1","created_date":"2024-01-01","last_edited_date":"2024-01-01"}}
]}`

type workspace struct {
	dir, in, out, logs, config string
}

// newWorkspace writes a sqlite-backed pipeline config and an input dir.
// mutate may edit the config document before it is written.
func newWorkspace(t *testing.T, mutate func(doc map[string]any)) workspace {
	t.Helper()

	dir := t.TempDir()
	w := workspace{
		dir:    dir,
		in:     filepath.Join(dir, "in"),
		out:    filepath.Join(dir, "out"),
		logs:   filepath.Join(dir, "logs"),
		config: filepath.Join(dir, "pipeline.json"),
	}
	if err := os.MkdirAll(w.in, 0o755); err != nil {
		t.Fatal(err)
	}
	doc := map[string]any{
		"job":     "cli-test",
		"input":   map[string]any{"dir": w.in},
		"output":  map[string]any{"dir": w.out, "format": "geojson"},
		"storage": map[string]any{"kind": "sqlite", "db": map[string]any{"dsn": filepath.Join(dir, "geo.db")}},
		"logging": map[string]any{"dir": w.logs},
		"metrics": map[string]any{"backend": "none"},
	}
	if mutate != nil {
		mutate(doc)
	}
	b, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(w.config, b, 0o644); err != nil {
		t.Fatal(err)
	}
	return w
}

func (w workspace) input(t *testing.T, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(w.in, name), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func run(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRunCommand(t *testing.T) {
	t.Parallel()

	w := newWorkspace(t, nil)
	w.input(t, "parcels.geojson", pointsGeoJSON)
	w.input(t, "broken.geojson", "{")
	w.input(t, "readme.md", "ignored: not a vector extension")

	code, stdout, stderr := run("run", "--config", w.config)
	if code != exitOK {
		t.Fatalf("exit = %d\nstdout:\n%s\nstderr:\n%s", code, stdout, stderr)
	}
	if !strings.Contains(stdout, "files=2 succeeded=1 failed=1") {
		t.Fatalf("summary missing:\n%s", stdout)
	}
	if _, err := os.Stat(filepath.Join(w.out, "parcels.geojson")); err != nil {
		t.Fatalf("output file: %v", err)
	}
	if _, err := os.Stat(filepath.Join(w.out, "broken.geojson")); !os.IsNotExist(err) {
		t.Fatal("output written for a failed file")
	}

	logs, err := filepath.Glob(filepath.Join(w.logs, "geoetl_*.log"))
	if err != nil || len(logs) != 1 {
		t.Fatalf("log files = %v (%v)", logs, err)
	}
	b, err := os.ReadFile(logs[0])
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), "ERROR pipeline: file=broken.geojson") {
		t.Fatalf("log file:\n%s", b)
	}
	// console output mirrors the log file
	if !strings.Contains(stderr, "ERROR pipeline: file=broken.geojson") {
		t.Fatalf("stderr:\n%s", stderr)
	}
}

func TestRunFailOnError(t *testing.T) {
	t.Parallel()

	w := newWorkspace(t, nil)
	w.input(t, "broken.geojson", "{")

	code, _, stderr := run("run", "--config", w.config, "--fail-on-error")
	if code != exitFileFailed {
		t.Fatalf("exit = %d, want %d\n%s", code, exitFileFailed, stderr)
	}
	if !strings.Contains(stderr, "1 of 1 files failed") {
		t.Fatalf("stderr:\n%s", stderr)
	}
}

func TestRunInputList(t *testing.T) {
	t.Parallel()

	w := newWorkspace(t, nil)
	w.input(t, "a.geojson", pointsGeoJSON)
	w.input(t, "b.geojson", pointsGeoJSON)
	list := filepath.Join(w.dir, "inputs.txt")
	if err := os.WriteFile(list, []byte("# only b\nin/b.geojson\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	code, stdout, stderr := run("run", "-c", w.config, "--list", list)
	if code != exitOK || !strings.Contains(stdout, "files=1 succeeded=1") {
		t.Fatalf("exit = %d\nstdout:\n%s\nstderr:\n%s", code, stdout, stderr)
	}
	if fp := fmt.Sprintf("%016x", xxh3.Hash([]byte(pointsGeoJSON))); !strings.Contains(stdout, fp) {
		t.Errorf("summary missing fingerprint %s:\n%s", fp, stdout)
	}
}

func TestRunFatalErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(doc map[string]any)
		want   string
	}{
		{
			name: "missing input dir",
			mutate: func(doc map[string]any) {
				doc["input"] = map[string]any{"dir": filepath.Join(os.TempDir(), "geoetl-no-such-dir-4711")}
			},
			want: "geoetl-no-such-dir-4711",
		},
		{
			name:   "invalid config",
			mutate: func(doc map[string]any) { doc["storage"] = map[string]any{"kind": "sqlite"} },
			want:   "storage.db.dsn",
		},
		{
			name: "unregistered storage kind",
			mutate: func(doc map[string]any) {
				doc["storage"] = map[string]any{"kind": "oracle", "db": map[string]any{"dsn": "x"}}
			},
			want: "unsupported storage.kind=oracle",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w := newWorkspace(t, tt.mutate)
			code, _, stderr := run("run", "--config", w.config)
			if code != exitFatal || !strings.Contains(stderr, tt.want) {
				t.Fatalf("exit = %d, stderr:\n%s\nwant %q", code, stderr, tt.want)
			}
		})
	}
}

func TestValidateCommand(t *testing.T) {
	t.Parallel()

	good := newWorkspace(t, nil)
	code, stdout, _ := run("validate", "--config", good.config)
	if code != exitOK || !strings.Contains(stdout, "configuration is valid") {
		t.Fatalf("exit = %d stdout = %q", code, stdout)
	}

	bad := newWorkspace(t, func(doc map[string]any) { doc["geometry"] = map[string]any{"target_srid": 3857} })
	code, _, stderr := run("validate", "--config", bad.config)
	if code != exitFatal || !strings.Contains(stderr, "error: geometry.target_srid") {
		t.Fatalf("exit = %d stderr:\n%s", code, stderr)
	}
}

func TestMappingsCommand(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "mapping.xlsx")
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", "Parcels"); err != nil {
		t.Fatal(err)
	}
	rows := [][]string{{"old", "new"}, {"blockid", "block_id"}, {"NAME", "name"}}
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			if err := f.SetCellValue("Parcels", cell, v); err != nil {
				t.Fatal(err)
			}
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
	f.Close()

	tests := []struct {
		args []string
		want []string
	}{
		{[]string{"mappings", "-w", path}, []string{"Parcels\n"}},
		{[]string{"mappings", "-w", path, "parcels"}, []string{`sheet "Parcels", 2 renames`, "blockid -> block_id", "NAME -> name"}},
		{[]string{"mappings", "-w", path, "roads"}, []string{"no sheet"}},
	}
	for _, tt := range tests {
		code, stdout, stderr := run(tt.args...)
		if code != exitOK {
			t.Fatalf("%v: exit = %d stderr:\n%s", tt.args, code, stderr)
		}
		for _, w := range tt.want {
			if !strings.Contains(stdout, w) {
				t.Errorf("%v: stdout missing %q:\n%s", tt.args, w, stdout)
			}
		}
	}

	if code, _, _ := run("mappings", "-w", filepath.Join(t.TempDir(), "missing.xlsx")); code != exitFatal {
		t.Fatalf("missing workbook exit = %d", code)
	}
}
