package bridge

import (
	"fmt"

	"github.com/nerrad567/behome-bridge/internal/device"
)

// mediaPlayerAdapter serves infrared media controllers. These expose power
// plus stateless volume and channel steps; the device reports only whether
// it is off.
type mediaPlayerAdapter struct{}

func (mediaPlayerAdapter) Platform() device.Platform { return device.PlatformMediaPlayer }

func (mediaPlayerAdapter) State(d device.Device) map[string]any {
	on := d.RawState != "" && d.RawState != "off"
	return map[string]any{"on": on}
}

func (mediaPlayerAdapter) Translate(d device.Device, cmd Command) (Translation, error) {
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
	case ActionVolumeUp:
		return mediaStep("volup"), nil
	case ActionVolumeDown:
		return mediaStep("voldown"), nil
	case ActionChannelUp:
		return mediaStep("chup"), nil
	case ActionChannelDown:
		return mediaStep("chdown"), nil
	default:
		return Translation{}, fmt.Errorf("%w: %q", ErrUnknownAction, cmd.Action)
	}
}

// mediaStep builds a stateless step command. No optimistic update: volume
// and channel are not reported back by the device.
func mediaStep(command string) Translation {
	return Translation{Message: map[string]any{"command": command}}
}
