// Package capability checks that the host can capture camera frames and
// process images before the workflow starts.
package capability

import (
	"errors"
	"fmt"
)

// ErrCapabilityMissing is returned when a required capability is absent.
var ErrCapabilityMissing = errors.New("capability missing")

// Descriptor lists the capabilities the workflow depends on
type Descriptor struct {
	HasCameraAPI bool `json:"has_camera_api"`
	HasRasterAPI bool `json:"has_raster_api"`
}

// CameraProbe reports whether a camera API is available
type CameraProbe interface {
	Available() bool
}

// RasterProbe initializes the image processing backend
type RasterProbe interface {
	SelfTest() error
}

// MissingError names the capability that is absent
type MissingError struct {
	Capability string
	Reason     string
	Err        error
}

func (e *MissingError) Error() string {
	return e.Reason
}

// Unwrap exposes the probe failure, if any
func (e *MissingError) Unwrap() error {
	return e.Err
}

// Is matches ErrCapabilityMissing
func (e *MissingError) Is(target error) bool {
	return target == ErrCapabilityMissing
}

// Detect runs the probes and returns the descriptor.
// A nil probe counts as an absent capability.
func Detect(camera CameraProbe, raster RasterProbe) (Descriptor, error) {
	var d Descriptor
	if camera != nil {
		d.HasCameraAPI = camera.Available()
	}
	if !d.HasCameraAPI {
		return d, &MissingError{
			Capability: "camera",
			Reason:     "Your system doesn't support camera capture.",
		}
	}

	if raster == nil {
		return d, &MissingError{
			Capability: "raster",
			Reason:     "Image processing is not available on this system.",
		}
	}
	if err := raster.SelfTest(); err != nil {
		return d, &MissingError{
			Capability: "raster",
			Reason:     "Sorry, the image filter engine failed to initialize.",
			Err:        fmt.Errorf("raster self test: %w", err),
		}
	}
	d.HasRasterAPI = true

	return d, nil
}

// Check validates a descriptor obtained elsewhere
func Check(d Descriptor) error {
	if !d.HasCameraAPI {
		return &MissingError{Capability: "camera", Reason: "Your system doesn't support camera capture."}
	}
	if !d.HasRasterAPI {
		return &MissingError{Capability: "raster", Reason: "Image processing is not available on this system."}
	}
	return nil
}
