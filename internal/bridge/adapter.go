package bridge

import (
	"strconv"
	"strings"

	"github.com/nerrad567/behome-bridge/internal/device"
)

// Translation is the result of translating a platform command into a vendor
// cloud message.
type Translation struct {
	// Message is the JSON object sent to the cloud for this command.
	Message map[string]any

	// Optimistic is the local state merged into the registry immediately,
	// before the next poll confirms it. Nil means no optimistic update.
	Optimistic device.State
}

// Adapter translates between vendor device state and one entity platform.
//
// Adapters are stateless: all device context comes in through the Device
// argument, so a single instance serves every device of its platform.
type Adapter interface {
	// Platform returns the platform this adapter serves.
	Platform() device.Platform

	// State maps the device's vendor state fields to platform attributes.
	State(d device.Device) map[string]any

	// Translate converts a platform command into a vendor cloud message.
	//
	// Returns:
	//   - Translation: the cloud message plus the optimistic local state
	//   - error: ErrUnknownAction, ErrUnsupportedCommand, or ErrInvalidCommand
	Translate(d device.Device, cmd Command) (Translation, error)
}

// Adapters returns one adapter per supported platform, keyed by platform.
func Adapters() map[device.Platform]Adapter {
	all := []Adapter{
		switchAdapter{},
		lightAdapter{},
		fanAdapter{},
		climateAdapter{},
		coverAdapter{},
		waterHeaterAdapter{},
		mediaPlayerAdapter{},
		airPurifierAdapter{},
		sensorAdapter{},
	}
	m := make(map[device.Platform]Adapter, len(all))
	for _, a := range all {
		m[a.Platform()] = a
	}
	return m
}

// stateBool reads a boolean state field, tolerating the numeric form some
// firmware generations report.
func stateBool(s device.State, key string) bool {
	switch v := s[key].(type) {
	case bool:
		return v
	case float64:
		return v != 0
	default:
		return false
	}
}

// stateNumber reads a numeric state field.
func stateNumber(s device.State, key string) (float64, bool) {
	switch v := s[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// rawParts splits the vendor's plain-string state form ("on,55,eco") into
// trimmed segments. An empty raw state yields nil.
func rawParts(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// clampInt bounds v to [lo, hi].
func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
