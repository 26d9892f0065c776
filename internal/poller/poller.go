package poller

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nerrad567/behome-bridge/internal/cloud"
	"github.com/nerrad567/behome-bridge/internal/device"
	"github.com/nerrad567/behome-bridge/internal/metrics"
)

// pollInterval is fixed by the cloud's rate expectations.
const pollInterval = 60 * time.Second

// failureThreshold is how many consecutive failed cycles mark the poller
// degraded.
const failureThreshold = 3

// manualRefreshCooldown limits how often an on-demand refresh may run.
const manualRefreshCooldown = 8 * time.Second

// ErrRefreshCooldown indicates a manual refresh was requested too soon
// after the previous cycle.
var ErrRefreshCooldown = errors.New("poller: refresh requested during cooldown")

// Lister fetches the full device listing from the cloud.
type Lister interface {
	ListDevices(ctx context.Context) ([]cloud.DeviceRecord, error)
}

// Reconciler applies a full device listing to the registry.
type Reconciler interface {
	Reconcile(ctx context.Context, devices []device.Device) (device.ReconcileResult, error)
}

// Logger is the minimal logging interface the poller needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Health is a snapshot of the poller's recent behaviour.
type Health struct {
	Healthy             bool           `json:"healthy"`
	ConsecutiveFailures int            `json:"consecutive_failures"`
	LastSuccess         time.Time      `json:"last_success,omitempty"`
	LastError           string         `json:"last_error,omitempty"`
	UnknownTypes        map[string]int `json:"unknown_types,omitempty"`
}

// Poller owns the listing cycle.
//
// Thread Safety:
//   - Run must be called from exactly one goroutine.
//   - RequestRefresh, RefreshNow, and Health are safe from any goroutine.
type Poller struct {
	client   Lister
	registry Reconciler
	logger   Logger
	metrics  *metrics.Metrics
	interval time.Duration
	onResult func(device.ReconcileResult)

	// kick wakes the run loop for an out-of-band cycle.
	kick chan struct{}

	mu           sync.Mutex
	failures     int
	lastSuccess  time.Time
	lastError    error
	lastCycle    time.Time
	unknownTypes map[string]int
}

// Option configures a Poller.
type Option func(*Poller)

// WithInterval overrides the poll interval, for tests.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) { p.interval = d }
}

// WithMetrics attaches Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Poller) { p.metrics = m }
}

// WithResultHandler registers a function called after every successful
// cycle that changed something. Invoked from the run loop goroutine.
func WithResultHandler(fn func(device.ReconcileResult)) Option {
	return func(p *Poller) { p.onResult = fn }
}

// New creates a poller.
func New(client Lister, registry Reconciler, logger Logger, opts ...Option) *Poller {
	p := &Poller{
		client:       client,
		registry:     registry,
		logger:       logger,
		interval:     pollInterval,
		kick:         make(chan struct{}, 1),
		unknownTypes: make(map[string]int),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run polls until ctx is cancelled. The first cycle runs immediately.
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info("poller started", "interval", p.interval)

	p.poll(ctx)

	timer := time.NewTimer(p.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("poller stopped")
			return
		case <-timer.C:
			p.poll(ctx)
		case <-p.kick:
			p.poll(ctx)
		}

		// Re-arm after the cycle completes so a slow poll delays the next
		// tick instead of overlapping it.
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(p.interval)
	}
}

// RequestRefresh schedules an out-of-band cycle after the given delay.
// Used to pick up device state shortly after a command. A refresh already
// pending is not duplicated.
func (p *Poller) RequestRefresh(delay time.Duration) {
	time.AfterFunc(delay, func() {
		select {
		case p.kick <- struct{}{}:
		default:
		}
	})
}

// RefreshNow schedules an immediate cycle, subject to a cooldown so
// repeated manual refreshes cannot hammer the cloud.
func (p *Poller) RefreshNow() error {
	p.mu.Lock()
	since := time.Since(p.lastCycle)
	p.mu.Unlock()

	if since < manualRefreshCooldown {
		return ErrRefreshCooldown
	}

	select {
	case p.kick <- struct{}{}:
	default:
	}
	return nil
}

// Health reports the poller's current condition.
func (p *Poller) Health() Health {
	p.mu.Lock()
	defer p.mu.Unlock()

	h := Health{
		Healthy:             p.failures < failureThreshold,
		ConsecutiveFailures: p.failures,
		LastSuccess:         p.lastSuccess,
	}
	if p.lastError != nil {
		h.LastError = p.lastError.Error()
	}
	if len(p.unknownTypes) > 0 {
		h.UnknownTypes = make(map[string]int, len(p.unknownTypes))
		for k, v := range p.unknownTypes {
			h.UnknownTypes[k] = v
		}
	}
	return h
}

// poll runs one listing cycle.
func (p *Poller) poll(ctx context.Context) {
	start := time.Now()

	records, err := p.client.ListDevices(ctx)
	if err != nil {
		// Shutdown mid-poll: abandon without recording anything.
		if ctx.Err() != nil {
			return
		}
		p.recordFailure(time.Since(start), err)
		return
	}

	devices, unknown := p.convert(records)

	if ctx.Err() != nil {
		return
	}

	result, err := p.registry.Reconcile(ctx, devices)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.recordFailure(time.Since(start), err)
		return
	}

	p.recordSuccess(time.Since(start), len(devices), unknown)

	if p.onResult != nil && result.HasChanges() {
		p.onResult(result)
	}
	p.metrics.IncStateChanges(len(result.Changed))
}

// convert maps wire records to registry devices. Records whose type has no
// platform mapping are counted and logged, never silently discarded.
func (p *Poller) convert(records []cloud.DeviceRecord) ([]device.Device, map[string]int) {
	devices := make([]device.Device, 0, len(records))
	unknown := make(map[string]int)

	for _, rec := range records {
		platform, err := device.PlatformForType(rec.TypeSuffix)
		if err != nil {
			unknown[rec.TypeSuffix]++
			p.logger.Warn("device has unrecognised type, not mapped",
				"device_id", rec.DeviceID,
				"name", rec.Name,
				"type", rec.TypeSuffix)
			continue
		}

		state := rec.State
		if state == nil {
			state = map[string]any{}
		}

		devices = append(devices, device.Device{
			ID:         rec.DeviceID,
			Name:       rec.Name,
			Topic:      rec.Topic,
			TypeSuffix: rec.TypeSuffix,
			TypeCode:   rec.TypeCode,
			Platform:   platform,
			Room:       device.NormaliseRoom(rec.Room),
			Online:     rec.Online,
			Brightness: rec.Dimmable,
			State:      state,
			RawState:   rec.RawState,
		})
	}

	return devices, unknown
}

func (p *Poller) recordSuccess(duration time.Duration, total int, unknown map[string]int) {
	p.mu.Lock()
	wasDegraded := p.failures >= failureThreshold
	p.failures = 0
	p.lastSuccess = time.Now()
	p.lastCycle = time.Now()
	p.lastError = nil
	p.unknownTypes = unknown
	p.mu.Unlock()

	p.metrics.ObservePollSuccess(duration)

	unknownCount := 0
	for _, n := range unknown {
		unknownCount += n
	}
	if wasDegraded {
		p.logger.Info("cloud connection recovered", "devices", total)
	}
	p.logger.Debug("poll complete", "devices", total, "unknown", unknownCount, "duration", duration)
}

func (p *Poller) recordFailure(duration time.Duration, err error) {
	p.mu.Lock()
	p.failures++
	p.lastError = err
	p.lastCycle = time.Now()
	failures := p.failures
	p.mu.Unlock()

	p.metrics.ObservePollFailure(duration)

	if failures == failureThreshold {
		p.logger.Error("poll failing persistently, bridge degraded",
			"consecutive_failures", failures, "error", err)
		return
	}
	p.logger.Warn("poll failed, keeping known devices", "error", err)
}
