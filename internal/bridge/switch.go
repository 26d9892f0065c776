package bridge

import (
	"fmt"

	"github.com/nerrad567/behome-bridge/internal/device"
)

// switchAdapter serves plain on/off devices: sockets, relays and anything
// else with no further attributes.
type switchAdapter struct{}

func (switchAdapter) Platform() device.Platform { return device.PlatformSwitch }

func (switchAdapter) State(d device.Device) map[string]any {
	return map[string]any{"on": stateBool(d.State, "on")}
}

func (switchAdapter) Translate(d device.Device, cmd Command) (Translation, error) {
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
	default:
		return Translation{}, fmt.Errorf("%w: %q", ErrUnknownAction, cmd.Action)
	}
}
