package device

import "errors"

// Domain errors for the device registry. Check with errors.Is.
var (
	// ErrNotFound indicates no device exists with the given id.
	ErrNotFound = errors.New("device: not found")

	// ErrExists indicates a device with the same id already exists.
	ErrExists = errors.New("device: already exists")

	// ErrInvalidName indicates the device name is empty or blank.
	ErrInvalidName = errors.New("device: invalid name")
)
