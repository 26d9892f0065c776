// Package metrics defines the bridge's Prometheus instrumentation.
//
// A single Metrics value is shared across components and registered on one
// registry served by the API's /metrics endpoint. Components treat a nil
// *Metrics as "instrumentation disabled".
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every collector the bridge exports.
type Metrics struct {
	PollTotal       *prometheus.CounterVec
	PollDuration    prometheus.Histogram
	DevicesTotal    *prometheus.GaugeVec
	UnknownTypes    prometheus.Gauge
	CommandsTotal   *prometheus.CounterVec
	TokenRefreshes  *prometheus.CounterVec
	LastPollSuccess prometheus.Gauge
	CloudReachable  prometheus.Gauge
	StateChanges    prometheus.Counter
}

// New constructs all collectors with the behome_ prefix.
func New() *Metrics {
	return &Metrics{
		PollTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "behome_poll_total",
			Help: "Device listing polls by result",
		}, []string{"result"}),
		PollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "behome_poll_duration_seconds",
			Help:    "Duration of device listing polls",
			Buckets: prometheus.DefBuckets,
		}),
		DevicesTotal: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "behome_devices",
			Help: "Devices known to the bridge per platform",
		}, []string{"platform"}),
		UnknownTypes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "behome_unknown_device_types",
			Help: "Devices in the last listing with an unrecognised type",
		}),
		CommandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "behome_commands_total",
			Help: "Commands sent to the cloud by platform and result",
		}, []string{"platform", "result"}),
		TokenRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "behome_token_refreshes_total",
			Help: "OAuth token refreshes by result",
		}, []string{"result"}),
		LastPollSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "behome_last_poll_success_timestamp_seconds",
			Help: "Unix time of the last successful poll",
		}),
		CloudReachable: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "behome_cloud_reachable",
			Help: "1 when the last poll succeeded, 0 otherwise",
		}),
		StateChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "behome_state_changes_total",
			Help: "Device state changes observed by the bridge",
		}),
	}
}

// Register adds every collector to reg.
func (m *Metrics) Register(reg *prometheus.Registry) {
	reg.MustRegister(
		m.PollTotal,
		m.PollDuration,
		m.DevicesTotal,
		m.UnknownTypes,
		m.CommandsTotal,
		m.TokenRefreshes,
		m.LastPollSuccess,
		m.CloudReachable,
		m.StateChanges,
	)
}

// ObservePollSuccess records a successful poll cycle.
func (m *Metrics) ObservePollSuccess(duration time.Duration) {
	if m == nil {
		return
	}
	m.PollTotal.WithLabelValues("success").Inc()
	m.PollDuration.Observe(duration.Seconds())
	m.LastPollSuccess.SetToCurrentTime()
	m.CloudReachable.Set(1)
}

// ObservePollFailure records a failed poll cycle.
func (m *Metrics) ObservePollFailure(duration time.Duration) {
	if m == nil {
		return
	}
	m.PollTotal.WithLabelValues("failure").Inc()
	m.PollDuration.Observe(duration.Seconds())
	m.CloudReachable.Set(0)
}

// ObserveCommand records a command attempt for a platform.
func (m *Metrics) ObserveCommand(platform string, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.CommandsTotal.WithLabelValues(platform, result).Inc()
}

// ObserveRefresh records a token refresh attempt.
func (m *Metrics) ObserveRefresh(err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.TokenRefreshes.WithLabelValues(result).Inc()
}

// SetDeviceCounts replaces the per-platform device gauges.
func (m *Metrics) SetDeviceCounts(byPlatform map[string]int, unknown int) {
	if m == nil {
		return
	}
	m.DevicesTotal.Reset()
	for platform, count := range byPlatform {
		m.DevicesTotal.WithLabelValues(platform).Set(float64(count))
	}
	m.UnknownTypes.Set(float64(unknown))
}

// IncStateChanges counts observed device state changes.
func (m *Metrics) IncStateChanges(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.StateChanges.Add(float64(n))
}
