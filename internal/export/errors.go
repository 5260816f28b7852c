package export

import (
	"errors"
	"fmt"

	"github.com/yourorg/table-export/internal/format"
)

var (
	// ErrFormatting is returned when a row value cannot be coerced for its column.
	ErrFormatting = format.ErrFormatting
	// ErrInvalidColumns is returned when the column descriptors fail validation.
	ErrInvalidColumns = errors.New("invalid columns")
	// ErrRender is returned when a chunk could not be turned into a document.
	ErrRender = errors.New("render failed")
	// ErrPackaging is returned when artifacts could not be packaged.
	ErrPackaging = errors.New("packaging failed")
	// ErrChannel is returned when the worker itself failed, outside any export phase.
	ErrChannel = errors.New("worker channel failed")
)

// Phase names the half of the pipeline a failure belongs to.
type Phase string

const (
	PhaseProcess Phase = "process"
	PhaseExport  Phase = "export"
)

// Error is a terminal export failure.
type Error struct {
	Phase Phase
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Phase, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// PhaseOf reports the phase of err, or "" if err is not an *Error.
func PhaseOf(err error) Phase {
	var e *Error
	if errors.As(err, &e) {
		return e.Phase
	}
	return ""
}
