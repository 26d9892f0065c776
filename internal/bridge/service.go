package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/behome-bridge/internal/device"
	"github.com/nerrad567/behome-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/behome-bridge/internal/metrics"
)

const (
	// commandTimeout bounds the cloud call for a single command.
	commandTimeout = 10 * time.Second

	// stateHoldWindow is how long an optimistic state update is protected
	// from being overwritten by a poll snapshot.
	stateHoldWindow = 5 * time.Second

	// postCommandRefresh is the delay before the poll requested after a
	// successful command. Long enough for the device to act and report.
	postCommandRefresh = 3 * time.Second

	// commandTopicParts is the segment count of a device command topic,
	// behome/command/{platform}/{id}.
	commandTopicParts = 4
)

// Publisher is the MQTT surface the service needs. Satisfied by
// *mqtt.Client.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// CloudSender sends translated commands to the cloud. Satisfied by
// *cloud.Client.
type CloudSender interface {
	SendCommand(ctx context.Context, topic string, typeCode int, message map[string]any) error
}

// DeviceStore is the registry surface the service needs. Satisfied by
// *device.Registry.
type DeviceStore interface {
	GetDevice(ctx context.Context, id string) (*device.Device, error)
	SetDeviceState(ctx context.Context, id string, state device.State) error
	HoldState(id string, window time.Duration)
	ReleaseState(id string)
}

// Refresher requests an early poll cycle. Satisfied by *poller.Poller.
type Refresher interface {
	RequestRefresh(delay time.Duration)
}

// HistoryRecorder persists observed state changes. Satisfied by
// device.StateHistoryRepository implementations.
type HistoryRecorder interface {
	RecordStateChange(ctx context.Context, deviceID string, state device.State, source string) error
}

// MetricWriter mirrors state changes and sensor telemetry to a time-series
// store. Satisfied by *influxdb.Client.
type MetricWriter interface {
	WritePoint(measurement string, tags map[string]string, fields map[string]interface{})
	WriteSensorReading(deviceID, reading string, value float64)
}

// Logger is the minimal logging interface used by the service.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Service connects the platform adapters to MQTT and the cloud.
//
// Thread Safety: all methods are safe for concurrent use.
type Service struct {
	mqtt     Publisher
	cloud    CloudSender
	store    DeviceStore
	poller   Refresher
	adapters map[device.Platform]Adapter
	topics   mqtt.Topics

	logger  Logger
	metrics *metrics.Metrics
	history HistoryRecorder
	tsdb    MetricWriter

	mu  sync.RWMutex
	ctx context.Context
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics attaches Prometheus metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithHistory attaches a state history recorder.
func WithHistory(h HistoryRecorder) Option {
	return func(s *Service) { s.history = h }
}

// WithMetricWriter attaches a time-series mirror for state changes.
func WithMetricWriter(w MetricWriter) Option {
	return func(s *Service) { s.tsdb = w }
}

// NewService creates a bridge service.
//
// Parameters:
//   - mqttClient: connected MQTT client
//   - cloudClient: cloud command sender
//   - store: device registry
//   - refresher: poll scheduler, asked for an early cycle after commands
//   - opts: optional configuration
func NewService(mqttClient Publisher, cloudClient CloudSender, store DeviceStore, refresher Refresher, opts ...Option) *Service {
	s := &Service{
		mqtt:     mqttClient,
		cloud:    cloudClient,
		store:    store,
		poller:   refresher,
		adapters: Adapters(),
		logger:   noopLogger{},
		ctx:      context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start subscribes to the device command topics. The context bounds all
// command execution started by incoming messages.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	if err := s.mqtt.Subscribe(s.topics.AllDeviceCommands(), 1, s.handleCommandMessage); err != nil {
		return fmt.Errorf("subscribing to command topics: %w", err)
	}
	s.logger.Info("bridge service started", "commands", s.topics.AllDeviceCommands())
	return nil
}

// HandleResult publishes the outcome of a poll reconciliation: retained
// state and availability for every changed device, and offline availability
// for removed ones. Intended as the poller's result handler.
func (s *Service) HandleResult(result device.ReconcileResult) {
	for i := range result.Changed {
		s.publishDevice(&result.Changed[i], device.StateHistorySourcePoll)
	}
	for _, id := range result.Removed {
		s.publishAvailability(id, false)
	}
}

// PublishHealth publishes a retained bridge health document to
// behome/bridge/health.
func (s *Service) PublishHealth(health any) error {
	payload, err := json.Marshal(health)
	if err != nil {
		return fmt.Errorf("marshalling health: %w", err)
	}
	return s.mqtt.Publish(s.topics.BridgeHealth(), payload, 1, true)
}

// handleCommandMessage is the MQTT handler for behome/command/+/+.
func (s *Service) handleCommandMessage(topic string, payload []byte) error {
	platform, deviceID, err := parseCommandTopic(topic)
	if err != nil {
		s.logger.Warn("ignoring malformed command topic", "topic", topic)
		return err
	}

	cmd, err := ParseCommand(payload)
	if err != nil {
		s.publishAck(platform, deviceID, NewAckError("", deviceID, err.Error()))
		s.observeCommand(platform, err)
		return err
	}
	if cmd.ID == "" {
		cmd.ID = uuid.New().String()
	}

	s.mu.RLock()
	baseCtx := s.ctx
	s.mu.RUnlock()
	ctx, cancel := context.WithTimeout(baseCtx, commandTimeout)
	defer cancel()

	if err := s.executeCommand(ctx, platform, deviceID, cmd); err != nil {
		s.publishAck(platform, deviceID, NewAckError(cmd.ID, deviceID, err.Error()))
		s.observeCommand(platform, err)
		s.logger.Error("command failed",
			"command_id", cmd.ID,
			"device_id", deviceID,
			"action", cmd.Action,
			"error", err)
		return err
	}

	s.publishAck(platform, deviceID, NewAck(cmd.ID, deviceID))
	s.observeCommand(platform, nil)
	s.logger.Info("command executed",
		"command_id", cmd.ID,
		"device_id", deviceID,
		"action", cmd.Action)
	return nil
}

// executeCommand translates the command, sends it to the cloud and applies
// the optimistic local state.
func (s *Service) executeCommand(ctx context.Context, platform device.Platform, deviceID string, cmd Command) error {
	adapter, ok := s.adapters[platform]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNoAdapter, platform)
	}

	d, err := s.store.GetDevice(ctx, deviceID)
	if err != nil {
		return fmt.Errorf("looking up device %q: %w", deviceID, err)
	}
	if d.Platform != platform {
		return fmt.Errorf("%w: device %q is %q, not %q", ErrInvalidCommand, deviceID, d.Platform, platform)
	}

	translation, err := adapter.Translate(*d, cmd)
	if err != nil {
		return err
	}

	if err := s.cloud.SendCommand(ctx, d.Topic, d.TypeCode, translation.Message); err != nil {
		return fmt.Errorf("sending command to cloud: %w", err)
	}

	if translation.Optimistic != nil {
		// Hold before writing so a poll completing right now cannot slip a
		// stale snapshot in between.
		s.store.HoldState(deviceID, stateHoldWindow)
		if err := s.store.SetDeviceState(ctx, deviceID, translation.Optimistic); err != nil {
			// The hold protects state we never managed to write, so lift it
			// and let the next poll correct the device.
			s.store.ReleaseState(deviceID)
			s.logger.Warn("optimistic state update failed", "device_id", deviceID, "error", err)
		} else if updated, err := s.store.GetDevice(ctx, deviceID); err == nil {
			s.publishDevice(updated, device.StateHistorySourceCommand)
		}
	}

	s.poller.RequestRefresh(postCommandRefresh)
	return nil
}

// publishDevice publishes retained state and availability for one device,
// records the change in history and mirrors it to the time-series store.
func (s *Service) publishDevice(d *device.Device, source string) {
	adapter, ok := s.adapters[d.Platform]
	if !ok {
		return
	}

	state := adapter.State(*d)
	s.publishState(d, state)
	s.publishAvailability(d.ID, d.Online)

	if d.Platform == device.PlatformSensor {
		s.publishSensorReadings(d)
	}

	if s.history != nil {
		if err := s.history.RecordStateChange(context.Background(), d.ID, d.State, source); err != nil {
			s.logger.Warn("recording state history failed", "device_id", d.ID, "error", err)
		}
	}
	s.mirrorState(d, state)
}

func (s *Service) publishState(d *device.Device, state map[string]any) {
	msg := NewStateMessage(d.ID, state)
	payload, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("marshalling state message failed", "device_id", d.ID, "error", err)
		return
	}
	topic := s.topics.DeviceState(string(d.Platform), d.ID)
	if err := s.mqtt.Publish(topic, payload, 1, true); err != nil {
		s.logger.Warn("publishing state failed", "topic", topic, "error", err)
	}
}

func (s *Service) publishAvailability(deviceID string, online bool) {
	payload := AvailabilityOffline
	if online {
		payload = AvailabilityOnline
	}
	topic := s.topics.DeviceAvailability(deviceID)
	if err := s.mqtt.Publish(topic, []byte(payload), 1, true); err != nil {
		s.logger.Warn("publishing availability failed", "topic", topic, "error", err)
	}
}

// publishSensorReadings publishes one retained topic per reading so
// consumers can subscribe to a single measurement, and mirrors each reading
// to the time-series store.
func (s *Service) publishSensorReadings(d *device.Device) {
	for reading, value := range SensorReadings(*d) {
		topic := s.topics.SensorState(d.ID, reading)
		payload, err := json.Marshal(value)
		if err != nil {
			continue
		}
		if err := s.mqtt.Publish(topic, payload, 1, true); err != nil {
			s.logger.Warn("publishing sensor reading failed", "topic", topic, "error", err)
		}
		if s.tsdb != nil {
			s.tsdb.WriteSensorReading(d.ID, reading, value)
		}
	}
}

// mirrorState writes the numeric and boolean state attributes as a
// time-series point. No-op without a configured writer.
func (s *Service) mirrorState(d *device.Device, state map[string]any) {
	if s.tsdb == nil {
		return
	}

	fields := make(map[string]interface{})
	for k, v := range state {
		switch val := v.(type) {
		case bool:
			if val {
				fields[k] = 1.0
			} else {
				fields[k] = 0.0
			}
		case float64:
			fields[k] = val
		case int:
			fields[k] = float64(val)
		}
	}
	if len(fields) == 0 {
		return
	}

	tags := map[string]string{
		"device_id": d.ID,
		"platform":  string(d.Platform),
	}
	if d.Room != "" {
		tags["room"] = d.Room
	}
	s.tsdb.WritePoint("device_state", tags, fields)
}

func (s *Service) publishAck(platform device.Platform, deviceID string, ack Ack) {
	payload, err := json.Marshal(ack)
	if err != nil {
		return
	}
	topic := s.topics.DeviceAck(string(platform), deviceID)
	if err := s.mqtt.Publish(topic, payload, 1, false); err != nil {
		s.logger.Warn("publishing ack failed", "topic", topic, "error", err)
	}
}

func (s *Service) observeCommand(platform device.Platform, err error) {
	s.metrics.ObserveCommand(string(platform), err)
}

// parseCommandTopic extracts the platform and device ID from a command
// topic, behome/command/{platform}/{id}.
func parseCommandTopic(topic string) (device.Platform, string, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != commandTopicParts || parts[0] != mqtt.TopicPrefix || parts[1] != "command" {
		return "", "", fmt.Errorf("%w: topic %q", ErrInvalidCommand, topic)
	}
	platform := device.Platform(parts[2])
	if parts[2] == "" || parts[3] == "" {
		return "", "", fmt.Errorf("%w: topic %q", ErrInvalidCommand, topic)
	}
	return platform, parts[3], nil
}
