package stage

import (
	"errors"
	"fmt"
)

// ErrEmptyStageName is returned when a stage is registered without a name.
var ErrEmptyStageName = errors.New("stage name must not be empty")

// UnknownStageError is returned when a stage name has no cached result,
// because it was never registered, failed, or was evicted by truncation.
type UnknownStageError struct {
	Name      string
	Available []string
}

func (e *UnknownStageError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("unknown stage %q (no stages cached)", e.Name)
	}
	return fmt.Sprintf("unknown stage %q\nCached stages: %v", e.Name, e.Available)
}

// StageExecutionError wraps a store failure together with the fully
// composed statement that triggered it. Stage is empty for ad-hoc queries.
type StageExecutionError struct {
	Stage string
	SQL   string
	Err   error
}

func (e *StageExecutionError) Error() string {
	if e.Stage == "" {
		return fmt.Sprintf("query failed: %v", e.Err)
	}
	return fmt.Sprintf("stage %q failed: %v", e.Stage, e.Err)
}

func (e *StageExecutionError) Unwrap() error {
	return e.Err
}
