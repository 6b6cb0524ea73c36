package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for expected failure modes
var (
	ErrNotFound          = errors.New("not found")
	ErrFileNotFound      = errors.New("file not found")
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrCorruptedFile     = errors.New("file corrupted or unreadable")
	ErrFileTooLarge      = errors.New("file exceeds size limit")
	ErrNoOriginalFile    = errors.New("no original file uploaded")
	ErrNoLyrics          = errors.New("no lyrics available")
	ErrNoStems           = errors.New("no stems available")
)

// StageError represents a failure in a pipeline stage
type StageError struct {
	Stage string // "decode", "effects", "stems", "transcribe", "notation"
	Input string
	Cause error
}

func (e *StageError) Error() string {
	if e.Input != "" {
		return fmt.Sprintf("%s failed for %s: %v", e.Stage, e.Input, e.Cause)
	}
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Cause)
}

func (e *StageError) Unwrap() error {
	return e.Cause
}

// IsRecoverable returns true if the pipeline can continue without this result.
// Per-stem transcription and notation failures skip the stem; everything else aborts.
func (e *StageError) IsRecoverable() bool {
	return e.Stage == "transcribe" || e.Stage == "notation"
}

// NewStageError creates a StageError
func NewStageError(stage, input string, cause error) *StageError {
	return &StageError{
		Stage: stage,
		Input: input,
		Cause: cause,
	}
}
