package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when a device ID does not exist.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrDeviceExists is returned when creating a device with an ID that already exists.
	ErrDeviceExists = errors.New("device: already exists")

	// ErrInvalidDevice is returned when device validation fails.
	ErrInvalidDevice = errors.New("device: invalid")

	// ErrInvalidName is returned when a device name is empty or too long.
	ErrInvalidName = errors.New("device: invalid name")

	// ErrInvalidPlatform is returned when a platform value is not recognised.
	ErrInvalidPlatform = errors.New("device: invalid platform")

	// ErrUnknownDeviceType is returned when a cloud type suffix has no
	// platform mapping. The device is surfaced as unmapped, not dropped.
	ErrUnknownDeviceType = errors.New("device: unknown type")

	// ErrInvalidTopic is returned when a device has no cloud topic.
	ErrInvalidTopic = errors.New("device: invalid topic")

	// ErrInvalidState is returned when state validation fails.
	ErrInvalidState = errors.New("device: invalid state")
)
