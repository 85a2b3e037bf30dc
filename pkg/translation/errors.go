package translation

import (
	"errors"
	"fmt"
)

var (
	// ErrJobInFlight is returned by Submit while another job is running
	ErrJobInFlight = errors.New("a translation job is already in progress")
	// ErrNoPair is returned when no language pair has been chosen
	ErrNoPair = errors.New("no language pair selected")
	// ErrTransport wraps network and HTTP failures on any service call
	ErrTransport = errors.New("translation service unreachable")
	// ErrJobFailed is returned when the service reports a failed job
	ErrJobFailed = errors.New("translation job failed")
	// ErrTimedOut is returned when a job exceeds the configured wait
	ErrTimedOut = errors.New("translation job timed out")
)

// APIError is a non-200 reply from the service
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("service returned status %d: %s", e.StatusCode, e.Body)
}

// Is matches ErrTransport
func (e *APIError) Is(target error) bool {
	return target == ErrTransport
}
