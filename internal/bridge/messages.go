package bridge

import (
	"encoding/json"
	"fmt"
	"time"
)

// Command actions accepted on the command topics. Not every platform accepts
// every action; the adapter for the target platform decides.
const (
	ActionTurnOn        = "turn_on"
	ActionTurnOff       = "turn_off"
	ActionOpen          = "open"
	ActionClose         = "close"
	ActionStop          = "stop"
	ActionSetPosition   = "set_position"
	ActionSetPercentage = "set_percentage"
	ActionSetTemp       = "set_temperature"
	ActionSetMode       = "set_mode"
	ActionSetPreset     = "set_preset"
	ActionVolumeUp      = "volume_up"
	ActionVolumeDown    = "volume_down"
	ActionChannelUp     = "channel_up"
	ActionChannelDown   = "channel_down"
)

// Command is a device command received on behome/command/{platform}/{id}.
// ID is optional; when absent the bridge generates one so the ack can still
// be correlated with the state that follows.
type Command struct {
	ID     string `json:"id,omitempty"`
	Action string `json:"action"`

	// Action parameters. Pointers distinguish "absent" from zero.
	Brightness  *int     `json:"brightness,omitempty"`
	Percentage  *int     `json:"percentage,omitempty"`
	Position    *int     `json:"position,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	Mode        string   `json:"mode,omitempty"`
	Preset      string   `json:"preset,omitempty"`
}

// ParseCommand decodes a command payload.
//
// Returns:
//   - Command: the decoded command
//   - error: ErrInvalidCommand (wrapped) when the payload is not valid JSON
//     or names no action
func ParseCommand(payload []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return Command{}, fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	if cmd.Action == "" {
		return Command{}, fmt.Errorf("%w: missing action", ErrInvalidCommand)
	}
	return cmd, nil
}

// AckStatus reports the outcome of a command.
type AckStatus string

const (
	// AckAccepted indicates the command was translated and sent to the cloud.
	AckAccepted AckStatus = "accepted"

	// AckFailed indicates the command could not be executed.
	AckFailed AckStatus = "failed"
)

// Ack acknowledges a command on behome/ack/{platform}/{id}.
type Ack struct {
	// CommandID is the ID from the original command, generated when the
	// command carried none.
	CommandID string `json:"command_id"`

	// Timestamp is when the acknowledgment was sent (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// DeviceID is the bridge device identifier.
	DeviceID string `json:"device_id"`

	// Status indicates the acknowledgment status.
	Status AckStatus `json:"status"`

	// Error holds a human-readable description when Status is "failed".
	Error string `json:"error,omitempty"`
}

// StateMessage is published retained on behome/state/{platform}/{id} whenever
// a device's state changes.
type StateMessage struct {
	// DeviceID is the bridge device identifier.
	DeviceID string `json:"device_id"`

	// Timestamp is when the state was observed (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// State contains the platform-level state attributes.
	// Structure depends on the platform:
	//   Light: {"on": true, "brightness": 50}
	//   Climate: {"on": true, "hvac_mode": "cool", "target_temperature": 25}
	State map[string]any `json:"state"`
}

// Availability payloads for behome/availability/{id}.
const (
	AvailabilityOnline  = "online"
	AvailabilityOffline = "offline"
)

// NewAck creates a successful acknowledgment for a command.
func NewAck(commandID, deviceID string) Ack {
	return Ack{
		CommandID: commandID,
		Timestamp: time.Now().UTC(),
		DeviceID:  deviceID,
		Status:    AckAccepted,
	}
}

// NewAckError creates a failed acknowledgment with error details.
func NewAckError(commandID, deviceID, message string) Ack {
	return Ack{
		CommandID: commandID,
		Timestamp: time.Now().UTC(),
		DeviceID:  deviceID,
		Status:    AckFailed,
		Error:     message,
	}
}

// NewStateMessage creates a state message for a device.
func NewStateMessage(deviceID string, state map[string]any) StateMessage {
	return StateMessage{
		DeviceID:  deviceID,
		Timestamp: time.Now().UTC(),
		State:     state,
	}
}
