package bridge

import (
	"github.com/nerrad567/behome-bridge/internal/device"
)

// sensorReadingKeys maps vendor message keys to reading names. A sensor
// device yields one reading topic per key present in its state.
var sensorReadingKeys = []struct {
	wire    string
	reading string
}{
	{"t", "temperature"},
	{"h", "humidity"},
	{"air", "air_quality"},
	{"pm25", "pm25"},
	{"co2", "co2"},
	{"pa", "pressure"},
}

// sensorAdapter serves multi-reading environmental sensors. Sensors are
// read-only; commands are rejected.
type sensorAdapter struct{}

func (sensorAdapter) Platform() device.Platform { return device.PlatformSensor }

func (sensorAdapter) State(d device.Device) map[string]any {
	readings := SensorReadings(d)
	state := make(map[string]any, len(readings))
	for name, value := range readings {
		state[name] = value
	}
	return state
}

func (sensorAdapter) Translate(d device.Device, cmd Command) (Translation, error) {
	return Translation{}, ErrUnsupportedCommand
}

// SensorReadings extracts the named numeric readings present in a sensor
// device's state. Absent keys produce no entry.
func SensorReadings(d device.Device) map[string]float64 {
	readings := make(map[string]float64)
	for _, k := range sensorReadingKeys {
		if v, ok := stateNumber(d.State, k.wire); ok {
			readings[k.reading] = v
		}
	}
	return readings
}
