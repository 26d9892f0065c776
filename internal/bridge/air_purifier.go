package bridge

import (
	"fmt"

	"github.com/nerrad567/behome-bridge/internal/device"
)

// airPurifierPresets are the operation presets the firmware accepts.
var airPurifierPresets = map[string]bool{
	"auto":   true,
	"sleep":  true,
	"strong": true,
}

// airPurifierAdapter serves air purifiers. State arrives only in the
// vendor's plain-string form, "on,auto": power then active preset.
type airPurifierAdapter struct{}

func (airPurifierAdapter) Platform() device.Platform { return device.PlatformAirPurifier }

func (airPurifierAdapter) State(d device.Device) map[string]any {
	parts := rawParts(d.RawState)

	on := len(parts) > 0 && parts[0] != "off"
	state := map[string]any{"on": on}
	if on && len(parts) > 1 && airPurifierPresets[parts[1]] {
		state["preset"] = parts[1]
	}
	return state
}

func (airPurifierAdapter) Translate(d device.Device, cmd Command) (Translation, error) {
	switch cmd.Action {
	case ActionTurnOn:
		return Translation{
			Message:    map[string]any{"on": true},
			Optimistic: device.State{"on": true},
		}, nil
	case ActionTurnOff:
		return Translation{
			Message:    map[string]any{"on": false},
			Optimistic: device.State{"on": false},
		}, nil
	case ActionSetPreset:
		if !airPurifierPresets[cmd.Preset] {
			return Translation{}, fmt.Errorf("%w: preset %q", ErrInvalidCommand, cmd.Preset)
		}
		return Translation{
			Message:    map[string]any{"on": true, "mode": cmd.Preset},
			Optimistic: device.State{"on": true, "preset": cmd.Preset},
		}, nil
	default:
		return Translation{}, fmt.Errorf("%w: %q", ErrUnknownAction, cmd.Action)
	}
}
