// Package logging opens the run-scoped log: every line goes to stderr and to
// a timestamped file <dir>/geoetl_YYYYMMDD_HHMMSS.log, prefixed with a short
// run id. Components receive the *log.Logger from Run.Logger and write
// `component: key=value` lines, with WARN/ERROR prefixes for problems.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// FileLayout is the time layout of the log file name.
const FileLayout = "20060102_150405"

// Run is one pipeline run's log destination. Close it on every exit path.
type Run struct {
	id      string
	path    string
	verbose bool
	file    *os.File
	logger  *log.Logger

	closeOnce sync.Once
	closeErr  error
}

// Open creates dir if needed and opens a new log file in it. Failure to open
// the destination is returned so the caller can abort before processing.
func Open(dir string, verbose bool) (*Run, error) {
	return open(dir, verbose, os.Stderr, time.Now())
}

// OpenWith is Open with console output going to w instead of stderr.
func OpenWith(dir string, verbose bool, w io.Writer) (*Run, error) {
	return open(dir, verbose, w, time.Now())
}

func open(dir string, verbose bool, console io.Writer, now time.Time) (*Run, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("logging: create dir %s: %w", dir, err)
	}
	path := filepath.Join(dir, "geoetl_"+now.Format(FileLayout)+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logging: open %s: %w", path, err)
	}

	id := uuid.NewString()
	r := &Run{
		id:      id,
		path:    path,
		verbose: verbose,
		file:    f,
		logger:  log.New(io.MultiWriter(console, f), "["+id[:8]+"] ", log.LstdFlags|log.Lmsgprefix),
	}
	r.logger.Printf("run: id=%s log=%s started", id, path)
	return r, nil
}

// ID returns the full run id.
func (r *Run) ID() string { return r.id }

// Path returns the log file path.
func (r *Run) Path() string { return r.path }

// Logger returns the logger components write to.
func (r *Run) Logger() *log.Logger { return r.logger }

// IsVerbose reports whether -v was given.
func (r *Run) IsVerbose() bool { return r.verbose }

func (r *Run) Info(format string, args ...any) {
	r.logger.Printf("INFO "+format, args...)
}

func (r *Run) Warn(format string, args ...any) {
	r.logger.Printf("WARN "+format, args...)
}

func (r *Run) Error(format string, args ...any) {
	r.logger.Printf("ERROR "+format, args...)
}

// Verbose logs only when the run is verbose.
func (r *Run) Verbose(format string, args ...any) {
	if r.verbose {
		r.logger.Printf(format, args...)
	}
}

// Close writes a final line, syncs and closes the file. Calling it more than
// once is safe; later calls return the first result.
func (r *Run) Close() error {
	r.closeOnce.Do(func() {
		r.logger.Printf("run: id=%s finished", r.id)
		r.logger.SetOutput(io.Discard)
		if err := r.file.Sync(); err != nil {
			r.closeErr = fmt.Errorf("logging: sync %s: %w", r.path, err)
		}
		if err := r.file.Close(); err != nil && r.closeErr == nil {
			r.closeErr = fmt.Errorf("logging: close %s: %w", r.path, err)
		}
	})
	return r.closeErr
}
