package bridge

import (
	"fmt"
	"strconv"

	"github.com/nerrad567/behome-bridge/internal/device"
)

// Water heater operation modes.
const (
	waterHeaterModeEco         = "eco"
	waterHeaterModePerformance = "performance"

	// waterHeaterDefaultTemp is the target used when a device reports none.
	waterHeaterDefaultTemp = 55.0
)

// waterHeaterAdapter serves water heaters. These devices report only the
// vendor's plain-string state form, "on,55,eco": power, target temperature,
// operation mode. The wire protocol carries only power and temperature, so a
// mode change is reflected locally and confirmed by the next poll.
type waterHeaterAdapter struct{}

func (waterHeaterAdapter) Platform() device.Platform { return device.PlatformWaterHeater }

func (waterHeaterAdapter) State(d device.Device) map[string]any {
	parts := rawParts(d.RawState)

	on := len(parts) > 0 && parts[0] == "on"
	state := map[string]any{"on": on}
	if !on {
		state["mode"] = "off"
		return state
	}

	temp := waterHeaterDefaultTemp
	if len(parts) > 1 {
		if t, err := strconv.ParseFloat(parts[1], 64); err == nil {
			temp = t
		}
	}
	state["target_temperature"] = temp

	mode := waterHeaterModePerformance
	if len(parts) > 2 {
		switch parts[2] {
		case "eco":
			mode = waterHeaterModeEco
		case "perf", "performance":
			mode = waterHeaterModePerformance
		}
	}
	state["mode"] = mode
	return state
}

func (w waterHeaterAdapter) Translate(d device.Device, cmd Command) (Translation, error) {
	switch cmd.Action {
	case ActionTurnOn:
		return w.heatTo(d, w.currentTemp(d), ""), nil
	case ActionTurnOff:
		return Translation{Message: map[string]any{"on": false}}, nil
	case ActionSetTemp:
		if cmd.Temperature == nil {
			return Translation{}, fmt.Errorf("%w: set_temperature requires temperature", ErrInvalidCommand)
		}
		return w.heatTo(d, *cmd.Temperature, ""), nil
	case ActionSetMode:
		switch cmd.Mode {
		case "off":
			return Translation{Message: map[string]any{"on": false}}, nil
		case waterHeaterModeEco, waterHeaterModePerformance:
			return w.heatTo(d, w.currentTemp(d), cmd.Mode), nil
		default:
			return Translation{}, fmt.Errorf("%w: mode %q", ErrInvalidCommand, cmd.Mode)
		}
	default:
		return Translation{}, fmt.Errorf("%w: %q", ErrUnknownAction, cmd.Action)
	}
}

// heatTo builds the on+temperature message. A non-empty mode is only applied
// optimistically; the wire has no field for it.
func (waterHeaterAdapter) heatTo(d device.Device, temp float64, mode string) Translation {
	t := Translation{
		Message:    map[string]any{"on": true, "v": temp},
		Optimistic: device.State{"on": true, "t": temp},
	}
	if mode != "" {
		t.Optimistic["mode"] = mode
	}
	return t
}

func (w waterHeaterAdapter) currentTemp(d device.Device) float64 {
	state := w.State(d)
	if t, ok := state["target_temperature"].(float64); ok {
		return t
	}
	return waterHeaterDefaultTemp
}
