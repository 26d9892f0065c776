package bridge

import "errors"

// Bridge errors.
var (
	// ErrInvalidCommand indicates a command payload that could not be parsed
	// or is missing a required field.
	ErrInvalidCommand = errors.New("bridge: invalid command")

	// ErrUnknownAction indicates a command action the target platform does
	// not recognise.
	ErrUnknownAction = errors.New("bridge: unknown action")

	// ErrUnsupportedCommand indicates a platform that never accepts commands,
	// such as sensors.
	ErrUnsupportedCommand = errors.New("bridge: platform does not accept commands")

	// ErrNoAdapter indicates a device platform with no registered adapter.
	ErrNoAdapter = errors.New("bridge: no adapter for platform")
)
