package workflow

import (
	"errors"
	"fmt"

	"github.com/menta2k/photo-translator/pkg/camera"
	"github.com/menta2k/photo-translator/pkg/capability"
	"github.com/menta2k/photo-translator/pkg/recognize"
	"github.com/menta2k/photo-translator/pkg/translation"
)

var (
	// ErrBlocked is returned for every request once the workflow is blocked
	ErrBlocked = errors.New("workflow blocked")
	// ErrInvalidTransition is returned for moves other than one step forward or any step back
	ErrInvalidTransition = errors.New("invalid stage transition")
	// ErrPrecondition is returned when the current stage has not produced its output yet
	ErrPrecondition = errors.New("stage precondition not met")
	// ErrSuperseded is returned when a restart invalidated the operation while it ran
	ErrSuperseded = errors.New("superseded by restart")
)

// ErrorKind is the user-facing error category
type ErrorKind string

const (
	KindCapabilityMissing ErrorKind = "capability_missing"
	KindPermissionDenied  ErrorKind = "permission_denied"
	KindTransportFailure  ErrorKind = "transport_failure"
	KindJobFailed         ErrorKind = "job_failed"
	KindTimedOut          ErrorKind = "timed_out"
	KindRecognitionFailed ErrorKind = "recognition_failed"
	KindInvalidRequest    ErrorKind = "invalid_request"
)

// Fatal reports whether the kind blocks the workflow
func (k ErrorKind) Fatal() bool {
	return k == KindCapabilityMissing || k == KindPermissionDenied
}

// StageError is a stage-aware error surfaced to the user
type StageError struct {
	Stage   Stage     `json:"-"`
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *StageError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil || e.Err.Error() == e.Message {
		return fmt.Sprintf("%s: %s", e.Stage, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Message, e.Err)
}

// Unwrap exposes underlying error for errors.Is / errors.As.
func (e *StageError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Classify maps an error onto an ErrorKind
func Classify(err error) ErrorKind {
	var stageErr *StageError
	var accessErr *camera.AccessError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &stageErr) && stageErr.Kind != "":
		return stageErr.Kind
	case errors.Is(err, capability.ErrCapabilityMissing), errors.Is(err, camera.ErrNoDevice):
		return KindCapabilityMissing
	case errors.Is(err, camera.ErrPermissionDenied), errors.As(err, &accessErr):
		return KindPermissionDenied
	case errors.Is(err, translation.ErrTimedOut), errors.Is(err, camera.ErrSettleTimeout):
		return KindTimedOut
	case errors.Is(err, translation.ErrJobFailed):
		return KindJobFailed
	case errors.Is(err, translation.ErrTransport):
		return KindTransportFailure
	case errors.Is(err, recognize.ErrMalformedRaster):
		return KindRecognitionFailed
	default:
		return KindInvalidRequest
	}
}

// Message returns the human-readable text for err
func Message(err error) string {
	var stageErr *StageError
	var missing *capability.MissingError
	var accessErr *camera.AccessError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &stageErr):
		return stageErr.Message
	case errors.As(err, &missing):
		return missing.Reason
	case errors.As(err, &accessErr):
		return accessErr.Reason
	}
	return err.Error()
}

func newStageError(stage Stage, err error) *StageError {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr
	}
	return &StageError{Stage: stage, Kind: Classify(err), Message: Message(err), Err: err}
}

func stageErrorf(stage Stage, kind ErrorKind, sentinel error, format string, args ...any) *StageError {
	return &StageError{Stage: stage, Kind: kind, Message: fmt.Sprintf(format, args...), Err: sentinel}
}
