package device

import "time"

// Device represents a single BeHome cloud device known to the bridge.
// This matches the database schema in migrations/20260829_100000_initial_schema.up.sql.
type Device struct {
	// Identity
	ID   string `json:"id"`
	Name string `json:"name"`

	// Topic is the cloud-side message topic used when sending commands.
	// The trailing segment of the topic identifies the device kind.
	Topic      string `json:"topic"`
	TypeSuffix string `json:"type_suffix"`
	TypeCode   int    `json:"type_code"`

	// Platform is the entity platform this device is exposed as.
	Platform Platform `json:"platform"`

	// Room is the suggested area name reported by the cloud, already trimmed.
	Room string `json:"room,omitempty"`

	// Online mirrors the cloud availability flag from the last poll.
	Online bool `json:"online"`

	// Brightness reports whether the device advertises brightness control.
	// Only meaningful for lights.
	Brightness bool `json:"brightness"`

	// Current state
	State          State      `json:"state"`
	StateUpdatedAt *time.Time `json:"state_updated_at,omitempty"`

	// RawState is the vendor's plain-string state field, carried alongside
	// the structured state. Some device generations (water heaters, media
	// players, air purifiers) report only this form.
	RawState string `json:"raw_state,omitempty"`

	// LastSeen is when the device last appeared in a successful listing.
	LastSeen *time.Time `json:"last_seen,omitempty"`

	// Timestamps
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeepCopy creates a complete independent copy of the Device.
// All map fields are cloned so modifications to the copy do not affect
// the original. This is essential for cache isolation.
func (d *Device) DeepCopy() *Device {
	if d == nil {
		return nil
	}

	cpy := *d // Shallow copy of value fields

	cpy.State = deepCopyMap(d.State)

	// Pointer fields (*time.Time) don't need deep copy
	// because time.Time is immutable in Go

	return &cpy
}

// deepCopyMap creates a deep copy of a map[string]any.
// Nested maps and slices are recursively copied.
func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cpy := make(map[string]any, len(m))
	for k, v := range m {
		cpy[k] = deepCopyValue(v)
	}
	return cpy
}

// deepCopyValue recursively copies a value, handling nested maps and slices.
func deepCopyValue(v any) any {
	if v == nil {
		return nil
	}
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		cpy := make([]any, len(val))
		for i, elem := range val {
			cpy[i] = deepCopyValue(elem)
		}
		return cpy
	default:
		// Primitives (string, bool, int, float64, etc.) are safe to copy by value
		return v
	}
}

// State holds the current device state as a JSON map.
//
// The keys mirror the cloud message payloads:
//   - Light: {"on": true, "bri": 75}
//   - Climate: {"on": true, "t": 21.5, "mode": 2}
//   - Sensor: {"t": 21.5, "h": 40, "pm25": 12}
type State map[string]any

// Platform identifies which entity platform a device is surfaced under.
type Platform string

// Platform constants.
const (
	PlatformSwitch      Platform = "switch"
	PlatformLight       Platform = "light"
	PlatformFan         Platform = "fan"
	PlatformSensor      Platform = "sensor"
	PlatformClimate     Platform = "climate"
	PlatformCover       Platform = "cover"
	PlatformWaterHeater Platform = "water_heater"
	PlatformMediaPlayer Platform = "media_player"
	PlatformAirPurifier Platform = "air_purifier"
)

// AllPlatforms returns all valid platform values.
func AllPlatforms() []Platform {
	return []Platform{
		PlatformSwitch, PlatformLight, PlatformFan, PlatformSensor,
		PlatformClimate, PlatformCover, PlatformWaterHeater,
		PlatformMediaPlayer, PlatformAirPurifier,
	}
}
