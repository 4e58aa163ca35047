package vdev

import "errors"

// Domain errors for the vdev package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, vdev.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when a device ID does not exist.
	ErrDeviceNotFound = errors.New("vdev: not found")

	// ErrDeviceExists is returned when creating a device with an ID that already exists.
	ErrDeviceExists = errors.New("vdev: already exists")

	// ErrInvalidDevice is returned when a device is missing its ID or type.
	ErrInvalidDevice = errors.New("vdev: invalid device")
)
