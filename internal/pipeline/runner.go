// Package pipeline runs every input file through load, enrich, normalize and
// upload, one file at a time. A failed file is logged and recorded in the
// Summary; the batch always continues with the next file.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"geoetl/internal/datasource/vector"
	"geoetl/internal/feature"
	"geoetl/internal/geometry"
	"geoetl/internal/metrics"
	"geoetl/internal/schemamap"
	"geoetl/internal/storage"
	"geoetl/internal/transformer"
)

// State is a file's position in the per-file state machine.
type State int

const (
	Pending State = iota
	Loaded
	Enriched
	Normalized
	Uploaded
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Loaded:
		return "loaded"
	case Enriched:
		return "enriched"
	case Normalized:
		return "normalized"
	case Uploaded:
		return "uploaded"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Options configures a Runner.
type Options struct {
	// Job labels metrics.
	Job string
	// TargetSRID is the output coordinate system (4326).
	TargetSRID int
	// SourceSRIDOverride, when positive, replaces each file's declared CRS.
	SourceSRIDOverride int
	// OutputDir receives <dataset>.geojson per successful file. Empty
	// disables output files.
	OutputDir string
}

// FileResult is the outcome of one input file.
type FileResult struct {
	Path    string
	Dataset string
	Table   string
	// State is Done on success. On failure it is Failed and Err is a
	// *StageError naming the state the file was in.
	State    State
	Err      error
	Features int
	Rows     int64
	Output   string
	// Fingerprint is the xxh3 hash of the input file, zero if it was
	// never read.
	Fingerprint uint64
	Duration    time.Duration
}

// IsKind reports whether the result failed with the given kind.
func (r FileResult) IsKind(kind error) bool { return r.Err != nil && errors.Is(r.Err, kind) }

// Summary collects the results of a run in input order.
type Summary struct {
	Results  []FileResult
	Duration time.Duration
}

// Succeeded returns the number of files that reached Done.
func (s Summary) Succeeded() int {
	n := 0
	for _, r := range s.Results {
		if r.State == Done {
			n++
		}
	}
	return n
}

// Failed returns the number of files that ended in Failed.
func (s Summary) Failed() int { return len(s.Results) - s.Succeeded() }

// Failures returns the failed results.
func (s Summary) Failures() []FileResult {
	var out []FileResult
	for _, r := range s.Results {
		if r.State == Failed {
			out = append(out, r)
		}
	}
	return out
}

// Runner processes input files sequentially against one repository.
type Runner struct {
	Mapper     *schemamap.Mapper
	Normalizer *geometry.Normalizer
	Loader     *storage.Loader
	Logger     *log.Logger
	Opts       Options
}

// New returns a Runner. The loader's repository is shared by every file and
// is closed by the caller.
func New(mapper *schemamap.Mapper, norm *geometry.Normalizer, loader *storage.Loader, logger *log.Logger, opts Options) *Runner {
	if logger == nil {
		logger = log.Default()
	}
	if opts.TargetSRID == 0 {
		opts.TargetSRID = geometry.WGS84
	}
	if opts.Job == "" {
		opts.Job = "geoetl"
	}
	return &Runner{Mapper: mapper, Normalizer: norm, Loader: loader, Logger: logger, Opts: opts}
}

// Run processes files in order and returns one result per file.
func (r *Runner) Run(ctx context.Context, files []string) Summary {
	start := time.Now()
	r.Logger.Printf("pipeline: job=%s files=%d", r.Opts.Job, len(files))

	sum := Summary{Results: make([]FileResult, 0, len(files))}
	for _, path := range files {
		sum.Results = append(sum.Results, r.ProcessFile(ctx, path))
	}
	sum.Duration = time.Since(start)

	r.Logger.Printf("pipeline: job=%s done files=%d succeeded=%d failed=%d elapsed=%s",
		r.Opts.Job, len(files), sum.Succeeded(), sum.Failed(), sum.Duration.Truncate(time.Millisecond))
	return sum
}

// ProcessFile runs one file through the state machine. It makes exactly one
// attempt and never panics.
func (r *Runner) ProcessFile(ctx context.Context, path string) (res FileResult) {
	start := time.Now()
	res = FileResult{Path: path, Dataset: vector.DatasetName(path), State: Pending}
	file := filepath.Base(path)

	fail := func(kind error, err error) {
		se := &StageError{Kind: kind, Stage: res.State, File: file, Err: err}
		r.Logger.Printf("ERROR pipeline: file=%s failed in state=%s kind=%q: %v", file, res.State, kind, err)
		res.State = Failed
		res.Err = se
	}
	defer func() {
		if p := recover(); p != nil {
			fail(ErrTransform, fmt.Errorf("panic: %v", p))
		}
		res.Duration = time.Since(start)
		metrics.RecordFile(r.Opts.Job, res.Err)
	}()

	// Pending -> Loaded
	var fs *feature.FeatureSet
	err := r.stage(ctx, "load", func(ctx context.Context) error {
		var err error
		fs, err = vector.Open(ctx, path)
		return err
	})
	if err != nil {
		fail(ErrSourceRead, err)
		return res
	}
	res.Features = fs.Len()
	res.Fingerprint = fs.Fingerprint
	metrics.RecordRow(r.Opts.Job, "read", int64(fs.Len()))
	if r.Opts.SourceSRIDOverride > 0 && fs.SourceSRID != r.Opts.SourceSRIDOverride {
		r.Logger.Printf("pipeline: file=%s srid=%d overridden with %d", file, fs.SourceSRID, r.Opts.SourceSRIDOverride)
		fs.SourceSRID = r.Opts.SourceSRIDOverride
	}
	r.transition(&res, Loaded, "features=%d srid=%d fingerprint=%016x", fs.Len(), fs.SourceSRID, fs.Fingerprint)

	// Loaded -> Enriched
	err = r.stage(ctx, "enrich", func(context.Context) error {
		mapping := r.Mapper.Lookup(fs.Name)
		if mapping.Empty() {
			r.Logger.Printf("pipeline: file=%s no rename mapping for dataset=%s", file, fs.Name)
		}
		_, err := transformer.Enrich(fs, mapping, r.Logger)
		return err
	})
	if err != nil {
		fail(ErrTransform, err)
		return res
	}
	r.transition(&res, Enriched, "columns=%d", len(fs.Schema()))

	// Enriched -> Normalized
	wkbColumn := r.Loader.Options().WKBColumn
	err = r.stage(ctx, "normalize", func(ctx context.Context) error {
		if err := r.Normalizer.Reproject(ctx, fs, r.Opts.TargetSRID); err != nil {
			return err
		}
		return r.Normalizer.Encode(ctx, fs, wkbColumn)
	})
	if err != nil {
		fail(ErrTransform, err)
		return res
	}
	r.transition(&res, Normalized, "srid=%d", r.Opts.TargetSRID)

	// Normalized -> Uploaded
	var lr storage.LoadResult
	err = r.stage(ctx, "upload", func(ctx context.Context) error {
		var err error
		lr, err = r.Loader.Load(ctx, fs.Name, fs)
		return err
	})
	res.Table = lr.Table
	if err != nil {
		fail(ErrSQLExecution, err)
		return res
	}
	res.Rows = lr.Rows
	metrics.RecordRow(r.Opts.Job, "loaded", lr.Rows)
	r.transition(&res, Uploaded, "table=%s rows=%d transactional=%t", lr.Table, lr.Rows, lr.Transactional)

	// Uploaded -> Done
	if r.Opts.OutputDir != "" {
		out := filepath.Join(r.Opts.OutputDir, fs.Name+".geojson")
		err = r.stage(ctx, "write", func(context.Context) error {
			return vector.WriteGeoJSON(out, fs, wkbColumn)
		})
		if err != nil {
			fail(ErrOutputWrite, err)
			return res
		}
		res.Output = out
	}
	r.transition(&res, Done, "elapsed=%s", time.Since(start).Truncate(time.Millisecond))
	return res
}

// stage runs fn and records its duration and outcome. A canceled context
// fails the stage before it starts.
func (r *Runner) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	start := time.Now()
	err := ctx.Err()
	if err == nil {
		err = fn(ctx)
	}
	metrics.RecordStep(r.Opts.Job, name, err, time.Since(start))
	return err
}

func (r *Runner) transition(res *FileResult, to State, format string, args ...any) {
	r.Logger.Printf("pipeline: file=%s state=%s->%s "+format,
		append([]any{filepath.Base(res.Path), res.State, to}, args...)...)
	res.State = to
}
