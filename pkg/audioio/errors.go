package audioio

import (
	"errors"
	"fmt"
)

// ErrDeviceUnavailable indicates an audio device could not be acquired.
var ErrDeviceUnavailable = errors.New("audioio: device unavailable")

// DeviceError describes a failed device acquisition.
type DeviceError struct {
	// Backend is the backend that failed (e.g., "exec").
	Backend string

	// Device is the device identifier, if any.
	Device string

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *DeviceError) Error() string {
	dev := e.Device
	if dev == "" {
		dev = "default"
	}
	if e.Cause != nil {
		return fmt.Sprintf("audioio: %s device %q unavailable: %v", e.Backend, dev, e.Cause)
	}
	return fmt.Sprintf("audioio: %s device %q unavailable", e.Backend, dev)
}

// Unwrap returns the underlying cause.
func (e *DeviceError) Unwrap() error {
	return e.Cause
}

// Is reports ErrDeviceUnavailable for every DeviceError.
func (e *DeviceError) Is(target error) bool {
	return target == ErrDeviceUnavailable
}

// IsDeviceUnavailable returns true if err reports a missing or busy device.
func IsDeviceUnavailable(err error) bool {
	return errors.Is(err, ErrDeviceUnavailable)
}
