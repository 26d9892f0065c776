package bridge

import (
	"fmt"
	"math"

	"github.com/nerrad567/behome-bridge/internal/device"
)

// Fan speed levels on the wire. The vendor exposes three discrete speeds;
// percentages map onto them.
const (
	fanMinLevel = 1
	fanMaxLevel = 3

	// fanDefaultLevel is used when a fan is turned on without a percentage.
	fanDefaultLevel = 2
)

// fanAdapter serves three-speed fans.
type fanAdapter struct{}

func (fanAdapter) Platform() device.Platform { return device.PlatformFan }

func (fanAdapter) State(d device.Device) map[string]any {
	state := map[string]any{"on": stateBool(d.State, "on")}
	if speed, ok := stateNumber(d.State, "speed"); ok {
		level := clampInt(int(speed), fanMinLevel, fanMaxLevel)
		state["speed"] = level
		state["percentage"] = levelToPercentage(level)
	}
	return state
}

func (fanAdapter) Translate(d device.Device, cmd Command) (Translation, error) {
	switch cmd.Action {
	case ActionTurnOn, ActionSetPercentage:
		level := fanDefaultLevel
		if cmd.Percentage != nil {
			pct := clampInt(*cmd.Percentage, 0, 100)
			if pct == 0 {
				return fanOff(), nil
			}
			level = percentageToLevel(pct)
		}
		return Translation{
			Message:    map[string]any{"on": true, "v": level},
			Optimistic: device.State{"on": true, "speed": float64(level)},
		}, nil
	case ActionTurnOff:
		return fanOff(), nil
	default:
		return Translation{}, fmt.Errorf("%w: %q", ErrUnknownAction, cmd.Action)
	}
}

func fanOff() Translation {
	return Translation{
		Message:    map[string]any{"on": false},
		Optimistic: device.State{"on": false},
	}
}

// percentageToLevel maps a 1-100 percentage onto speed levels 1-3, rounding
// up so any non-zero percentage reaches at least level 1.
func percentageToLevel(pct int) int {
	level := int(math.Ceil(float64(pct) * fanMaxLevel / 100))
	return clampInt(level, fanMinLevel, fanMaxLevel)
}

// levelToPercentage maps a speed level back to the top of its percentage
// band (33, 66, 100).
func levelToPercentage(level int) int {
	return level * 100 / fanMaxLevel
}
