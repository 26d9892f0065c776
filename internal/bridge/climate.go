package bridge

import (
	"fmt"

	"github.com/nerrad567/behome-bridge/internal/device"
)

// Thermostat mode codes on the wire. Codes 6 and 7 are preset variants of
// automatic operation rather than distinct HVAC modes.
const (
	climateModeAuto    = 1
	climateModeCool    = 2
	climateModeHeat    = 3
	climateModeFanOnly = 4
	climateModeDry     = 5
	climateModeSleep   = 6
	climateModeEco     = 7

	// climateDefaultTemp is the target used when a device reports none.
	climateDefaultTemp = 25.0
)

var climateModeCodes = map[string]int{
	"auto":     climateModeAuto,
	"cool":     climateModeCool,
	"heat":     climateModeHeat,
	"fan_only": climateModeFanOnly,
	"dry":      climateModeDry,
}

var climateModeNames = map[int]string{
	climateModeAuto:    "auto",
	climateModeCool:    "cool",
	climateModeHeat:    "heat",
	climateModeFanOnly: "fan_only",
	climateModeDry:     "dry",
}

var climatePresetCodes = map[string]int{
	"sleep": climateModeSleep,
	"eco":   climateModeEco,
}

var climatePresetNames = map[int]string{
	climateModeSleep: "sleep",
	climateModeEco:   "eco",
}

// climateAdapter serves thermostats and air conditioners.
type climateAdapter struct{}

func (climateAdapter) Platform() device.Platform { return device.PlatformClimate }

func (climateAdapter) State(d device.Device) map[string]any {
	if !stateBool(d.State, "on") {
		return map[string]any{"on": false, "hvac_mode": "off"}
	}

	state := map[string]any{"on": true}

	code := climateModeAuto
	if v, ok := stateNumber(d.State, "mode"); ok {
		code = int(v)
	}
	if preset, ok := climatePresetNames[code]; ok {
		// Preset codes run as automatic operation with a preset attached.
		state["hvac_mode"] = "auto"
		state["preset"] = preset
	} else if name, ok := climateModeNames[code]; ok {
		state["hvac_mode"] = name
	} else {
		state["hvac_mode"] = "auto"
	}

	if t, ok := stateNumber(d.State, "t"); ok {
		state["target_temperature"] = t
	}
	return state
}

func (climateAdapter) Translate(d device.Device, cmd Command) (Translation, error) {
	switch cmd.Action {
	case ActionTurnOff:
		return Translation{
			Message:    map[string]any{"on": false},
			Optimistic: device.State{"on": false},
		}, nil
	case ActionTurnOn:
		return climateSet(d, climateTargetTemp(d), climateCurrentMode(d)), nil
	case ActionSetTemp:
		if cmd.Temperature == nil {
			return Translation{}, fmt.Errorf("%w: set_temperature requires temperature", ErrInvalidCommand)
		}
		return climateSet(d, *cmd.Temperature, climateCurrentMode(d)), nil
	case ActionSetMode:
		code, ok := climateModeCodes[cmd.Mode]
		if !ok {
			return Translation{}, fmt.Errorf("%w: hvac mode %q", ErrInvalidCommand, cmd.Mode)
		}
		return climateSet(d, climateTargetTemp(d), code), nil
	case ActionSetPreset:
		code, ok := climatePresetCodes[cmd.Preset]
		if !ok {
			return Translation{}, fmt.Errorf("%w: preset %q", ErrInvalidCommand, cmd.Preset)
		}
		return climateSet(d, climateTargetTemp(d), code), nil
	default:
		return Translation{}, fmt.Errorf("%w: %q", ErrUnknownAction, cmd.Action)
	}
}

// climateSet builds the full set message the firmware expects: every set
// carries on, target temperature and mode together.
func climateSet(d device.Device, temp float64, mode int) Translation {
	return Translation{
		Message: map[string]any{"on": true, "t": temp, "mode": mode},
		Optimistic: device.State{
			"on":   true,
			"t":    temp,
			"mode": float64(mode),
		},
	}
}

func climateTargetTemp(d device.Device) float64 {
	if t, ok := stateNumber(d.State, "t"); ok && t > 0 {
		return t
	}
	return climateDefaultTemp
}

func climateCurrentMode(d device.Device) int {
	if v, ok := stateNumber(d.State, "mode"); ok {
		code := int(v)
		if _, known := climateModeNames[code]; known {
			return code
		}
		if _, known := climatePresetNames[code]; known {
			return code
		}
	}
	return climateModeAuto
}
