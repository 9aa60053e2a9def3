package pipeline

import (
	"errors"
	"fmt"
)

// Error kinds. A *StageError matches its kind with errors.Is.
var (
	ErrSourceRead   = errors.New("source read error")
	ErrSchemaLookup = errors.New("schema lookup error")
	ErrTransform    = errors.New("transform error")
	ErrSQLExecution = errors.New("sql execution error")
	ErrOutputWrite  = errors.New("output write error")
)

// StageError records which file failed, in which state and why.
type StageError struct {
	Kind  error
	Stage State
	File  string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("pipeline: file=%s state=%s: %v: %v", e.File, e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Is reports whether target is the error's kind.
func (e *StageError) Is(target error) bool { return e.Kind != nil && target == e.Kind }

// KindOf returns the kind of err, or nil when err carries none.
func KindOf(err error) error {
	var se *StageError
	if errors.As(err, &se) {
		return se.Kind
	}
	return nil
}
