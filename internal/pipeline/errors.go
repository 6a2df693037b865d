package pipeline

import (
	"errors"
	"fmt"
)

// Stage names the pipeline step an error came from.
type Stage string

const (
	StageConfig        Stage = "config"
	StageValidation    Stage = "validation"
	StageConversion    Stage = "conversion"
	StageTranscription Stage = "transcription"
	StageTranslation   Stage = "translation"
	StageInternal      Stage = "internal"
)

// Error is a fatal pipeline error tagged with the stage that produced it.
// The cause stays reachable with errors.As, including *remote.Error.
type Error struct {
	Stage Stage
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// StageOf returns the stage of a pipeline error, or StageInternal for any
// other non-nil error.
func StageOf(err error) Stage {
	if err == nil {
		return ""
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Stage
	}
	return StageInternal
}

func fail(stage Stage, err error) *Error {
	return &Error{Stage: stage, Err: err}
}
