// Package camera opens a video input stream and waits until the device
// reports usable frame dimensions.
package camera

import (
	"context"
	"errors"
	"image"
)

// Sentinel errors reported by devices and sessions.
var (
	// ErrPermissionDenied is returned when the user refuses camera access.
	ErrPermissionDenied = errors.New("camera: permission denied")

	// ErrNoDevice is returned when no video input exists.
	ErrNoDevice = errors.New("camera: no device")

	// ErrSourcesUnsupported is returned by devices that cannot enumerate sources.
	ErrSourcesUnsupported = errors.New("camera: source enumeration not supported")

	// ErrSettleTimeout is returned when frame dimensions never become known.
	ErrSettleTimeout = errors.New("camera: frame dimensions not reported in time")

	// ErrClosed is returned when reading from a closed stream.
	ErrClosed = errors.New("camera: stream closed")
)

// Facing describes which way a camera points
type Facing string

const (
	FacingUnknown     Facing = ""
	FacingEnvironment Facing = "environment"
	FacingUser        Facing = "user"
)

// Source is one video input reported by a device
type Source struct {
	ID     string `json:"id"`
	Kind   string `json:"kind"`
	Facing Facing `json:"facing"`
}

// Constraints are soft hints passed to Device.Open
type Constraints struct {
	FacingMode Facing
	SourceID   string
	MinWidth   int
	MinHeight  int
}

// Device is the platform camera driver
type Device interface {
	// Available reports whether a camera API exists at all.
	Available() bool
	// Sources lists video inputs. Devices without metadata return ErrSourcesUnsupported.
	Sources(ctx context.Context) ([]Source, error)
	// Open starts a stream. Dimensions may read (0,0) for a while after it returns.
	Open(ctx context.Context, c Constraints) (Stream, error)
}

// Stream is a live video feed
type Stream interface {
	Dimensions() (width, height int)
	Snapshot() (image.Image, error)
	Pause()
	Resume()
	Close() error
}

// AccessError is the rejection reported when a stream cannot be opened
type AccessError struct {
	Reason string
	Err    error
}

func (e *AccessError) Error() string {
	return e.Reason
}

// Unwrap exposes the device error
func (e *AccessError) Unwrap() error {
	return e.Err
}
