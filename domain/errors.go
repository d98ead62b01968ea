package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrResolution indicates the queue address could not be found or created.
	ErrResolution = errors.New("queue resolution failed")
	// ErrInvalidMessage marks a queue message that is not a valid increment event.
	ErrInvalidMessage = errors.New("invalid message")
	// ErrPersistence covers event store reads and writes.
	ErrPersistence = errors.New("persistence failure")
	// ErrDispatch indicates the report could not be sent.
	ErrDispatch = errors.New("dispatch failure")
	// ErrPublish indicates an increment event could not be handed to the queue.
	ErrPublish = errors.New("publish failure")
)

// ResolutionError reports the queue name that could not be resolved.
type ResolutionError struct {
	Queue string
	Err   error
}

func (e *ResolutionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("resolve queue %q", e.Queue)
	}
	return fmt.Sprintf("resolve queue %q: %v", e.Queue, e.Err)
}

func (e *ResolutionError) Unwrap() []error { return unwrapWith(ErrResolution, e.Err) }

// InvalidMessageError explains why a message body was rejected.
type InvalidMessageError struct {
	Reason string
	Err    error
}

func (e *InvalidMessageError) Error() string {
	if e.Err == nil {
		return "invalid message: " + e.Reason
	}
	return fmt.Sprintf("invalid message: %s: %v", e.Reason, e.Err)
}

func (e *InvalidMessageError) Unwrap() []error { return unwrapWith(ErrInvalidMessage, e.Err) }

// StageError tags a persistence, dispatch or publish failure with the stage
// that produced it.
type StageError struct {
	Kind  error
	Stage string
	Err   error
}

// NewStageError wraps err with one of the failure kinds above.
func NewStageError(kind error, stage string, err error) *StageError {
	return &StageError{Kind: kind, Stage: stage, Err: err}
}

func (e *StageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%v (%s)", e.Kind, e.Stage)
	}
	return fmt.Sprintf("%v (%s): %v", e.Kind, e.Stage, e.Err)
}

func (e *StageError) Unwrap() []error { return unwrapWith(e.Kind, e.Err) }

func unwrapWith(kind, cause error) []error {
	if cause == nil {
		return []error{kind}
	}
	return []error{kind, cause}
}
