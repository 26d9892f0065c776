package bridge

import (
	"fmt"

	"github.com/nerrad567/behome-bridge/internal/device"
)

// lightAdapter serves lights. Brightness runs 0-100 on the wire and is only
// offered when the device advertises brightness support; non-dimmable lights
// behave like switches.
type lightAdapter struct{}

func (lightAdapter) Platform() device.Platform { return device.PlatformLight }

func (lightAdapter) State(d device.Device) map[string]any {
	state := map[string]any{"on": stateBool(d.State, "on")}
	if d.Brightness {
		if bri, ok := stateNumber(d.State, "bri"); ok {
			state["brightness"] = clampInt(int(bri), 0, 100)
		}
	}
	return state
}

func (lightAdapter) Translate(d device.Device, cmd Command) (Translation, error) {
	switch cmd.Action {
	case ActionTurnOn:
		msg := map[string]any{"on": true}
		opt := device.State{"on": true}
		if d.Brightness && cmd.Brightness != nil {
			bri := clampInt(*cmd.Brightness, 1, 100)
			msg["bri"] = bri
			opt["bri"] = float64(bri)
		}
		return Translation{Message: msg, Optimistic: opt}, nil
	case ActionTurnOff:
		opt := device.State{"on": false}
		if d.Brightness {
			opt["bri"] = float64(0)
		}
		return Translation{
			Message:    map[string]any{"on": false},
			Optimistic: opt,
		}, nil
	default:
		return Translation{}, fmt.Errorf("%w: %q", ErrUnknownAction, cmd.Action)
	}
}
