package bridge

import (
	"fmt"

	"github.com/nerrad567/behome-bridge/internal/device"
)

// coverAdapter serves curtains and blinds. Position runs 0-100 where 0 is
// fully closed. Movement direction comes only through the vendor's raw state
// string ("opening", "closing", "stop").
type coverAdapter struct{}

func (coverAdapter) Platform() device.Platform { return device.PlatformCover }

func (coverAdapter) State(d device.Device) map[string]any {
	state := map[string]any{}

	position, hasPosition := stateNumber(d.State, "v")
	if hasPosition {
		state["position"] = clampInt(int(position), 0, 100)
	}

	switch d.RawState {
	case "opening":
		state["moving"] = "opening"
	case "closing":
		state["moving"] = "closing"
	}

	if hasPosition {
		state["closed"] = int(position) == 0
	} else {
		state["closed"] = d.RawState == "off"
	}
	return state
}

func (coverAdapter) Translate(d device.Device, cmd Command) (Translation, error) {
	switch cmd.Action {
	case ActionOpen:
		return Translation{
			Message:    map[string]any{"on": true},
			Optimistic: device.State{"v": float64(100)},
		}, nil
	case ActionClose:
		return Translation{
			Message:    map[string]any{"on": false},
			Optimistic: device.State{"v": float64(0)},
		}, nil
	case ActionStop:
		// Stop has no sensible optimistic position; the next poll reports
		// wherever the cover halted.
		return Translation{Message: map[string]any{"pause": true}}, nil
	case ActionSetPosition:
		if cmd.Position == nil {
			return Translation{}, fmt.Errorf("%w: set_position requires position", ErrInvalidCommand)
		}
		pos := clampInt(*cmd.Position, 0, 100)
		return Translation{
			Message:    map[string]any{"on": true, "v": pos},
			Optimistic: device.State{"v": float64(pos)},
		}, nil
	default:
		return Translation{}, fmt.Errorf("%w: %q", ErrUnknownAction, cmd.Action)
	}
}
