package pipeline

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"log"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/zeebo/xxh3"

	"geoetl/internal/geometry"
	"geoetl/internal/schemamap"
	"geoetl/internal/storage"
	_ "geoetl/internal/storage/sqlite"
)

const parcelsGeoJSON = `{"type":"FeatureCollection","features":[
 {"type":"Feature","geometry":{"type":"Point","coordinates":[1,2]},
  "properties":{"blockid":"B1","created_date":"2024-01-01","last_edited_date":"2024-01-01"}},
 {"type":"Feature","geometry":{"type":"Point","coordinates":[3,4]},
  "properties":{"blockid":"B2","created_date":"2024-01-01","last_edited_date":"2024-02-01"}},
 {"type":"Feature","geometry":null,
  "properties":{"blockid":"B3","created_date":"2024-01-01","last_edited_date":null}}
]}`

const noDatesGeoJSON = `{"type":"FeatureCollection","features":[
 {"type":"Feature","geometry":{"type":"LineString","coordinates":[[0,0],[1,1]]},"properties":{"name":"river"}}
]}`

const mercatorGeoJSON = `{"type":"FeatureCollection",
 "crs":{"type":"name","properties":{"name":"urn:ogc:def:crs:EPSG::3857"}},
 "features":[
 {"type":"Feature","geometry":{"type":"Point","coordinates":[111319.49079327357,111325.14286638486]},"properties":{"id":1}}
]}`

const unregisteredCRSGeoJSON = `{"type":"FeatureCollection",
 "crs":{"type":"name","properties":{"name":"EPSG:999999"}},
 "features":[{"type":"Feature","geometry":{"type":"Point","coordinates":[2600000,1200000]},"properties":{"id":1}}]}`

// fakeProvider serves rename pairs from memory.
type fakeProvider struct {
	sheets map[string][]schemamap.Pair
	err    error
}

func (p fakeProvider) SheetNames() ([]string, error) {
	if p.err != nil {
		return nil, p.err
	}
	var names []string
	for n := range p.sheets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

func (p fakeProvider) PairsFor(sheet string) ([]schemamap.Pair, error) {
	return p.sheets[sheet], nil
}

// failingRepo fails every statement containing match.
type failingRepo struct {
	storage.Repository
	match string
}

func (f *failingRepo) Exec(ctx context.Context, sql string) error {
	if f.match != "" && strings.Contains(sql, f.match) {
		return errors.New("injected failure")
	}
	return f.Repository.Exec(ctx, sql)
}

func (f *failingRepo) BeginTx(ctx context.Context) (storage.Tx, error) {
	tx, err := f.Repository.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	return &failingTx{Tx: tx, match: f.match}, nil
}

type failingTx struct {
	storage.Tx
	match string
}

func (f *failingTx) Exec(ctx context.Context, sql string) error {
	if f.match != "" && strings.Contains(sql, f.match) {
		return errors.New("injected failure")
	}
	return f.Tx.Exec(ctx, sql)
}

type env struct {
	runner *Runner
	db     *sql.DB
	in     string
	out    string
	logs   *bytes.Buffer
}

// newEnv wires a Runner to an in-memory SQLite database. wrap, when set,
// decorates the repository the loader sees.
func newEnv(t *testing.T, p schemamap.Provider, wrap func(storage.Repository) storage.Repository) *env {
	t.Helper()

	repo, err := storage.New(context.Background(), storage.Config{Kind: "sqlite", DSN: ":memory:"})
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	t.Cleanup(repo.Close)
	db := repo.(interface{ DB() *sql.DB }).DB()

	loaderRepo := repo
	if wrap != nil {
		loaderRepo = wrap(repo)
	}

	var logs bytes.Buffer
	logger := log.New(&logs, "", 0)
	dir := t.TempDir()
	e := &env{
		db:   db,
		in:   filepath.Join(dir, "in"),
		out:  filepath.Join(dir, "out"),
		logs: &logs,
	}
	if err := os.MkdirAll(e.in, 0o755); err != nil {
		t.Fatal(err)
	}
	e.runner = New(
		schemamap.NewMapper(p, logger),
		geometry.New(2, logger),
		storage.NewLoader(loaderRepo, storage.LoaderOptions{Transactional: true}, logger),
		logger,
		Options{Job: "test", OutputDir: e.out},
	)
	return e
}

func (e *env) write(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(e.in, name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func (e *env) columns(t *testing.T, table string) map[string]bool {
	t.Helper()
	rows, err := e.db.Query(`SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		t.Fatal(err)
	}
	defer rows.Close()
	cols := map[string]bool{}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			t.Fatal(err)
		}
		cols[c] = true
	}
	return cols
}

func TestRunEndToEnd(t *testing.T) {
	t.Parallel()

	e := newEnv(t, fakeProvider{sheets: map[string][]schemamap.Pair{
		"PARCELS": {{Old: "blockid", New: "block_id"}},
	}}, nil)
	parcels := e.write(t, "parcels.geojson", parcelsGeoJSON)

	sum := e.runner.Run(context.Background(), []string{parcels})
	if sum.Succeeded() != 1 || sum.Failed() != 0 {
		t.Fatalf("summary = %+v", sum)
	}
	res := sum.Results[0]
	if res.State != Done || res.Table != "parcels" || res.Features != 3 || res.Rows != 3 {
		t.Fatalf("result = %+v", res)
	}
	if want := xxh3.Hash([]byte(parcelsGeoJSON)); res.Fingerprint != want {
		t.Errorf("Fingerprint = %016x, want %016x", res.Fingerprint, want)
	}

	cols := e.columns(t, "parcels")
	for _, want := range []string{"block_id", "puid", "created_date", "last_edited_date", "Geometry_Type", "Geometry_Status", "geom"} {
		if !cols[want] {
			t.Errorf("table missing column %q; have %v", want, cols)
		}
	}
	for _, absent := range []string{"blockid", "wkb_hex"} {
		if cols[absent] {
			t.Errorf("table has column %q", absent)
		}
	}

	rows, err := e.db.Query(`SELECT block_id, puid, Geometry_Type, Geometry_Status, geom FROM parcels ORDER BY puid`)
	if err != nil {
		t.Fatal(err)
	}
	defer rows.Close()

	want := []struct {
		id, typ, status string
		geom            orb.Geometry
	}{
		{"B1", "Point", "New", orb.Point{1, 2}},
		{"B2", "Point", "Updated", orb.Point{3, 4}},
		{"B3", "Unknown", "Unknown", nil},
	}
	i := 0
	for rows.Next() {
		var (
			blockID, puid, typ, status string
			geom                       []byte
		)
		if err := rows.Scan(&blockID, &puid, &typ, &status, &geom); err != nil {
			t.Fatal(err)
		}
		w := want[i]
		if blockID != w.id || puid != w.id || typ != w.typ || status != w.status {
			t.Errorf("row %d = (%s, %s, %s, %s), want (%s, %s, %s, %s)", i, blockID, puid, typ, status, w.id, w.id, w.typ, w.status)
		}
		switch {
		case w.geom == nil && geom != nil:
			t.Errorf("row %d geom = %x, want NULL", i, geom)
		case w.geom != nil:
			g, err := wkb.Unmarshal(geom)
			if err != nil || !orb.Equal(g, w.geom) {
				t.Errorf("row %d geom = %v (%v), want %v", i, g, err, w.geom)
			}
		}
		i++
	}
	if i != len(want) {
		t.Fatalf("rows = %d, want %d", i, len(want))
	}

	out, err := os.ReadFile(filepath.Join(e.out, "parcels.geojson"))
	if err != nil {
		t.Fatalf("output file: %v", err)
	}
	if res.Output != filepath.Join(e.out, "parcels.geojson") {
		t.Errorf("Output = %q", res.Output)
	}
	if strings.Contains(string(out), "wkb_hex") || !strings.Contains(string(out), `"block_id":"B1"`) {
		t.Errorf("output file = %s", out)
	}

	logs := e.logs.String()
	for _, s := range []string{
		"state=pending->loaded",
		"state=loaded->enriched",
		"state=enriched->normalized",
		"state=normalized->uploaded",
		"state=uploaded->done",
		"WARN geometry: dataset=parcels declares no coordinate system",
		"succeeded=1 failed=0",
	} {
		if !strings.Contains(logs, s) {
			t.Errorf("log missing %q:\n%s", s, logs)
		}
	}
}

func TestRunNoDatesNoMapping(t *testing.T) {
	t.Parallel()

	e := newEnv(t, nil, nil)
	rivers := e.write(t, "rivers.geojson", noDatesGeoJSON)

	sum := e.runner.Run(context.Background(), []string{rivers})
	if sum.Failed() != 0 {
		t.Fatalf("failures: %+v", sum.Failures())
	}
	var typ, status string
	if err := e.db.QueryRow(`SELECT Geometry_Type, Geometry_Status FROM rivers`).Scan(&typ, &status); err != nil {
		t.Fatal(err)
	}
	if typ != "LineString" || status != "Unknown" {
		t.Fatalf("got (%s, %s), want (LineString, Unknown)", typ, status)
	}
	if cols := e.columns(t, "rivers"); cols["puid"] {
		t.Fatalf("puid created without blockid: %v", cols)
	}
}

func TestRunReprojectsWebMercator(t *testing.T) {
	t.Parallel()

	e := newEnv(t, nil, nil)
	f := e.write(t, "sites.geojson", mercatorGeoJSON)

	if sum := e.runner.Run(context.Background(), []string{f}); sum.Failed() != 0 {
		t.Fatalf("failures: %+v", sum.Failures())
	}
	var geom []byte
	if err := e.db.QueryRow(`SELECT geom FROM sites`).Scan(&geom); err != nil {
		t.Fatal(err)
	}
	g, err := wkb.Unmarshal(geom)
	if err != nil {
		t.Fatal(err)
	}
	p, ok := g.(orb.Point)
	if !ok || math.Abs(p.Lon()-1) > 1e-6 || math.Abs(p.Lat()-1) > 1e-6 {
		t.Fatalf("geom = %v, want ~POINT(1 1)", g)
	}
}

func TestRunSourceSRIDOverride(t *testing.T) {
	t.Parallel()

	e := newEnv(t, nil, nil)
	e.runner.Opts.SourceSRIDOverride = 3857
	// The file declares nothing; the override makes it Web Mercator.
	f := e.write(t, "sites.geojson", strings.Replace(mercatorGeoJSON,
		`"crs":{"type":"name","properties":{"name":"urn:ogc:def:crs:EPSG::3857"}},`, "", 1))

	if sum := e.runner.Run(context.Background(), []string{f}); sum.Failed() != 0 {
		t.Fatalf("failures: %+v", sum.Failures())
	}
	if !strings.Contains(e.logs.String(), "srid=0 overridden with 3857") {
		t.Fatalf("override not logged:\n%s", e.logs.String())
	}
}

func TestRunContinuesPastFailures(t *testing.T) {
	t.Parallel()

	e := newEnv(t, nil, nil)
	files := []string{
		e.write(t, "broken.geojson", `{not json`),
		e.write(t, "offgrid.geojson", unregisteredCRSGeoJSON),
		e.write(t, "notes.txt", "plain text"),
		e.write(t, "rivers.geojson", noDatesGeoJSON),
	}

	sum := e.runner.Run(context.Background(), files)
	if sum.Succeeded() != 1 || sum.Failed() != 3 {
		t.Fatalf("succeeded=%d failed=%d", sum.Succeeded(), sum.Failed())
	}

	tests := []struct {
		idx   int
		kind  error
		stage State
	}{
		{0, ErrSourceRead, Pending},
		{1, ErrTransform, Enriched},
		{2, ErrSourceRead, Pending},
	}
	for _, tt := range tests {
		r := sum.Results[tt.idx]
		if r.State != Failed || !r.IsKind(tt.kind) {
			t.Errorf("%s: state=%s err=%v, want Failed %v", r.Dataset, r.State, r.Err, tt.kind)
			continue
		}
		var se *StageError
		if !errors.As(r.Err, &se) || se.Stage != tt.stage || se.File != filepath.Base(r.Path) {
			t.Errorf("%s: StageError = %+v, want stage %s", r.Dataset, se, tt.stage)
		}
		if _, err := os.Stat(filepath.Join(e.out, r.Dataset+".geojson")); !os.IsNotExist(err) {
			t.Errorf("%s: output file exists for a failed file", r.Dataset)
		}
	}
	if sum.Results[3].State != Done {
		t.Fatalf("rivers = %+v", sum.Results[3])
	}
	if !strings.Contains(e.logs.String(), "ERROR pipeline: file=broken.geojson failed in state=pending") {
		t.Fatalf("failure not logged:\n%s", e.logs.String())
	}
}

func TestRunSQLFailureKeepsPreviousTable(t *testing.T) {
	t.Parallel()

	var bad *failingRepo
	e := newEnv(t, nil, func(r storage.Repository) storage.Repository {
		bad = &failingRepo{Repository: r}
		return bad
	})
	f := e.write(t, "parcels.geojson", parcelsGeoJSON)
	ctx := context.Background()

	if sum := e.runner.Run(ctx, []string{f}); sum.Failed() != 0 {
		t.Fatalf("seed run failed: %+v", sum.Failures())
	}
	if err := os.RemoveAll(e.out); err != nil {
		t.Fatal(err)
	}

	bad.match = "unhex"
	sum := e.runner.Run(ctx, []string{f})
	r := sum.Results[0]
	if !r.IsKind(ErrSQLExecution) || KindOf(r.Err) != ErrSQLExecution {
		t.Fatalf("result = %+v", r)
	}
	var se *storage.StepError
	if !errors.As(r.Err, &se) || se.Step != storage.StepPopulateGeography {
		t.Fatalf("cause = %v, want populate_geography step error", r.Err)
	}
	if r.Table != "parcels" {
		t.Errorf("Table = %q", r.Table)
	}
	var n int
	if err := e.db.QueryRow(`SELECT COUNT(*) FROM parcels`).Scan(&n); err != nil || n != 3 {
		t.Fatalf("previous table rows = %d (%v), want 3", n, err)
	}
	if _, err := os.Stat(filepath.Join(e.out, "parcels.geojson")); !os.IsNotExist(err) {
		t.Fatal("output written for a failed load")
	}
}

func TestRunLoadTwiceReplacesTable(t *testing.T) {
	t.Parallel()

	e := newEnv(t, nil, nil)
	first := e.write(t, "zones.geojson", parcelsGeoJSON)
	ctx := context.Background()
	if sum := e.runner.Run(ctx, []string{first}); sum.Failed() != 0 {
		t.Fatalf("first run: %+v", sum.Failures())
	}
	second := e.write(t, "zones.geojson", noDatesGeoJSON)
	if sum := e.runner.Run(ctx, []string{second}); sum.Failed() != 0 {
		t.Fatalf("second run: %+v", sum.Failures())
	}

	var n int
	if err := e.db.QueryRow(`SELECT COUNT(*) FROM zones`).Scan(&n); err != nil || n != 1 {
		t.Fatalf("rows = %d (%v), want 1", n, err)
	}
	cols := e.columns(t, "zones")
	if cols["blockid"] || cols["wkb_hex"] || !cols["name"] || !cols["geom"] {
		t.Fatalf("columns after reload = %v", cols)
	}
}

func TestRunCanceledContext(t *testing.T) {
	t.Parallel()

	e := newEnv(t, nil, nil)
	f := e.write(t, "parcels.geojson", parcelsGeoJSON)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := e.runner.ProcessFile(ctx, f)
	if r.State != Failed || !errors.Is(r.Err, context.Canceled) || !r.IsKind(ErrSourceRead) {
		t.Fatalf("result = %+v", r)
	}
}

func TestStateString(t *testing.T) {
	t.Parallel()

	want := []string{"pending", "loaded", "enriched", "normalized", "uploaded", "done", "failed"}
	for i, w := range want {
		if got := State(i).String(); got != w {
			t.Errorf("State(%d) = %q, want %q", i, got, w)
		}
	}
	if got := State(99).String(); got != "state(99)" {
		t.Errorf("State(99) = %q", got)
	}
}

func TestStageError(t *testing.T) {
	t.Parallel()

	cause := errors.New("disk gone")
	err := error(&StageError{Kind: ErrSourceRead, Stage: Pending, File: "a.shp", Err: cause})

	if !errors.Is(err, ErrSourceRead) || errors.Is(err, ErrTransform) {
		t.Fatal("kind matching is wrong")
	}
	if !errors.Is(err, cause) {
		t.Fatal("cause not unwrapped")
	}
	if want := "pipeline: file=a.shp state=pending: source read error: disk gone"; err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
	if KindOf(cause) != nil || KindOf(err) != ErrSourceRead {
		t.Fatal("KindOf")
	}
}
