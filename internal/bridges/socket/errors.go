package socket

import "errors"

var (
	// ErrSensorReadOnly is returned by Translate for sensor device
	// types. Sensors report state and never accept commands.
	ErrSensorReadOnly = errors.New("socket: sensor devices are read-only")

	// ErrNotConnected is returned by Send when no connection is open
	// and one could not be established in time. The message is dropped.
	ErrNotConnected = errors.New("socket: not connected")

	// ErrStopped is returned by Send after Stop has been called.
	ErrStopped = errors.New("socket: stopped")
)
