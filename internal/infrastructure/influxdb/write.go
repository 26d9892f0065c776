package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteSensorReading records one environmental reading in the
// sensor_readings measurement, tagged by device and reading name:
//
//	client.WriteSensorReading("env-1", "temperature", 21.5)
//
// The write is batched; it never blocks the caller.
func (c *Client) WriteSensorReading(deviceID, reading string, value float64) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(
		"sensor_readings",
		map[string]string{"device_id": deviceID, "reading": reading},
		map[string]interface{}{"value": value},
		time.Now(),
	))
}

// WritePoint records an arbitrary measurement. The bridge uses this to
// mirror device state snapshots; tags should stay low-cardinality.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}
