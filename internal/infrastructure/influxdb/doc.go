// Package influxdb mirrors the bridge's device state and sensor telemetry
// to InfluxDB v2.
//
// Two measurements are written: device_state holds numeric and boolean
// state attributes per device, and sensor_readings holds one value per
// environmental reading. Writes are batched and non-blocking; batch
// failures surface through the SetOnError callback so a slow or absent
// InfluxDB never stalls the poll loop.
//
// The integration is optional. When disabled in config.yaml, Connect
// returns ErrDisabled and the bridge simply runs without a mirror.
package influxdb
