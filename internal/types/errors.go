package types

import (
	"errors"
	"fmt"
)

var (
	// ErrMediaUnreadable aborts the run: without a duration nothing can be sampled.
	ErrMediaUnreadable = errors.New("media unreadable")
	// ErrInsufficientDuration aborts the run: the clip length does not fit in the source.
	ErrInsufficientDuration = errors.New("insufficient duration")

	ErrEncodeFailed             = errors.New("encode failed")
	ErrValidationFailed         = errors.New("validation failed")
	ErrTranscriptionUnavailable = errors.New("transcription unavailable")
	ErrBurnFailed               = errors.New("burn failed")
	ErrEmptyTranscript          = errors.New("empty transcript")
)

// StageError ties a per-clip failure to the stage that produced it.
type StageError struct {
	ClipID string
	Stage  Stage
	Err    error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("clip %s: %s: %v", e.ClipID, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
