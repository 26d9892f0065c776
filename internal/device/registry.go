package device

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry provides device management with caching and thread safety.
// It wraps a Repository and adds an in-memory cache for fast lookups.
//
// The cache is populated on startup via RefreshCache() and kept in sync
// by cache-invalidating operations. Cloud poll results are applied through
// Reconcile(), which treats each successful listing as the full device set.
//
// All public methods are thread-safe.
type Registry struct {
	repo    Repository
	cache   map[string]*Device // Cached devices by ID
	holds   map[string]time.Time
	cacheMu sync.RWMutex // Protects cache and holds
	logger  Logger
}

// NewRegistry creates a new device registry.
// The repository is used for persistence; the registry adds caching.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		cache:  make(map[string]*Device),
		holds:  make(map[string]time.Time),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// RefreshCache reloads all devices from the repository into the cache.
// This should be called on application startup.
func (r *Registry) RefreshCache(ctx context.Context) error {
	devices, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	// Clear and rebuild cache with deep copies
	r.cache = make(map[string]*Device, len(devices))
	for i := range devices {
		d := devices[i]
		r.cache[d.ID] = d.DeepCopy()
	}

	r.logger.Info("device cache refreshed", "count", len(devices))
	return nil
}

// GetDevice retrieves a device by ID.
// Returns ErrDeviceNotFound if the device does not exist.
// The returned device is a deep copy; callers can safely modify it.
func (r *Registry) GetDevice(ctx context.Context, id string) (*Device, error) {
	// Try cache first
	r.cacheMu.RLock()
	cached, ok := r.cache[id]
	r.cacheMu.RUnlock()

	if ok {
		// Return a deep copy to prevent external mutation of cache
		return cached.DeepCopy(), nil
	}

	// Fall back to repository (might be a new device not yet cached)
	device, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	// Cache for future lookups (store a deep copy)
	r.cacheMu.Lock()
	r.cache[id] = device.DeepCopy()
	r.cacheMu.Unlock()

	return device, nil
}

// ListDevices retrieves all devices.
// The returned devices are deep copies; callers can safely modify them.
func (r *Registry) ListDevices(ctx context.Context) ([]Device, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	// Return from cache if populated
	if len(r.cache) > 0 {
		devices := make([]Device, 0, len(r.cache))
		for _, d := range r.cache {
			// Deep copy to prevent external mutation of cache
			devices = append(devices, *d.DeepCopy())
		}
		return devices, nil
	}

	// Fall back to repository
	return r.repo.List(ctx)
}

// GetDevicesByPlatform retrieves all devices surfaced under a platform.
// The returned devices are deep copies; callers can safely modify them.
func (r *Registry) GetDevicesByPlatform(ctx context.Context, platform Platform) ([]Device, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	// Filter from cache if populated
	if len(r.cache) > 0 {
		var devices []Device
		for _, d := range r.cache {
			if d.Platform == platform {
				devices = append(devices, *d.DeepCopy())
			}
		}
		return devices, nil
	}

	return r.repo.ListByPlatform(ctx, platform)
}

// GetDevicesByRoom retrieves all devices in a specific room.
// The returned devices are deep copies; callers can safely modify them.
func (r *Registry) GetDevicesByRoom(ctx context.Context, room string) ([]Device, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	// Filter from cache if populated
	if len(r.cache) > 0 {
		var devices []Device
		for _, d := range r.cache {
			if d.Room == room {
				devices = append(devices, *d.DeepCopy())
			}
		}
		return devices, nil
	}

	return r.repo.ListByRoom(ctx, room)
}

// ReconcileResult summarises the effect of applying a cloud listing.
type ReconcileResult struct {
	Created []string
	Updated []string
	Removed []string

	// Changed holds deep copies of devices whose state or availability
	// changed during reconciliation, for downstream publication.
	Changed []Device
}

// HasChanges reports whether the reconciliation altered the device set or
// any device state.
func (r ReconcileResult) HasChanges() bool {
	return len(r.Created) > 0 || len(r.Updated) > 0 || len(r.Removed) > 0 || len(r.Changed) > 0
}

// Reconcile applies a successful full cloud listing to the registry.
//
// Devices present in the snapshot are created or updated; devices missing
// from the snapshot are removed. Reconcile must only be called with the
// result of a successful full listing: on poll failure the previous device
// set is retained by simply not calling Reconcile.
//
// Devices with an active hold window (see HoldState) keep their locally
// applied state; the snapshot still refreshes name, room and availability.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - snapshot: Complete device set from the cloud listing
//
// Returns:
//   - ReconcileResult: IDs created, updated and removed, plus changed devices
//   - error: First persistence error encountered
func (r *Registry) Reconcile(ctx context.Context, snapshot []Device) (ReconcileResult, error) {
	var result ReconcileResult
	now := time.Now().UTC()

	seen := make(map[string]struct{}, len(snapshot))

	for i := range snapshot {
		incoming := snapshot[i]
		if err := ValidateDevice(&incoming); err != nil {
			return result, fmt.Errorf("reconciling device %q: %w", incoming.ID, err)
		}
		seen[incoming.ID] = struct{}{}

		r.cacheMu.RLock()
		existing, known := r.cache[incoming.ID]
		held := r.stateHeldLocked(incoming.ID, now)
		var prior *Device
		if known {
			prior = existing.DeepCopy()
		}
		r.cacheMu.RUnlock()

		incoming.LastSeen = &now

		if !known {
			incoming.StateUpdatedAt = &now
			if err := r.repo.Create(ctx, &incoming); err != nil {
				return result, fmt.Errorf("creating device %q: %w", incoming.ID, err)
			}
			r.storeCached(&incoming)
			result.Created = append(result.Created, incoming.ID)
			result.Changed = append(result.Changed, *incoming.DeepCopy())
			r.logger.Info("device discovered", "id", incoming.ID, "name", incoming.Name, "platform", incoming.Platform)
			continue
		}

		incoming.CreatedAt = prior.CreatedAt

		if held {
			// A command was just applied locally; trust our state over the
			// (possibly stale) cloud snapshot until the hold expires.
			incoming.State = deepCopyMap(prior.State)
			incoming.RawState = prior.RawState
			incoming.StateUpdatedAt = prior.StateUpdatedAt
		}

		stateChanged := !held && (!reflect.DeepEqual(prior.State, incoming.State) || prior.RawState != incoming.RawState)
		availabilityChanged := prior.Online != incoming.Online

		if stateChanged {
			incoming.StateUpdatedAt = &now
		} else if incoming.StateUpdatedAt == nil {
			incoming.StateUpdatedAt = prior.StateUpdatedAt
		}

		if err := r.repo.Update(ctx, &incoming); err != nil {
			return result, fmt.Errorf("updating device %q: %w", incoming.ID, err)
		}
		r.storeCached(&incoming)
		result.Updated = append(result.Updated, incoming.ID)

		if stateChanged || availabilityChanged {
			result.Changed = append(result.Changed, *incoming.DeepCopy())
		}
	}

	// Remove devices absent from the snapshot. A device only disappears
	// here after a successful full listing, never on poll failure.
	r.cacheMu.RLock()
	var missing []string
	for id := range r.cache {
		if _, ok := seen[id]; !ok {
			missing = append(missing, id)
		}
	}
	r.cacheMu.RUnlock()

	for _, id := range missing {
		if err := r.repo.Delete(ctx, id); err != nil {
			return result, fmt.Errorf("removing device %q: %w", id, err)
		}
		r.cacheMu.Lock()
		delete(r.cache, id)
		delete(r.holds, id)
		r.cacheMu.Unlock()
		result.Removed = append(result.Removed, id)
		r.logger.Info("device removed", "id", id)
	}

	return result, nil
}

// storeCached replaces the cached entry with a deep copy of the device.
func (r *Registry) storeCached(d *Device) {
	r.cacheMu.Lock()
	r.cache[d.ID] = d.DeepCopy()
	r.cacheMu.Unlock()
}

// SetDeviceState merges state fields into a device's state.
// This is used for optimistic updates after a command is accepted.
func (r *Registry) SetDeviceState(ctx context.Context, id string, state State) error {
	if err := r.repo.UpdateState(ctx, id, state); err != nil {
		return err
	}

	// Update cache using deep copy to prevent race conditions
	r.cacheMu.Lock()
	if cached, ok := r.cache[id]; ok {
		// Create a deep copy with merged state (atomic replacement)
		updated := cached.DeepCopy()
		if updated.State == nil {
			updated.State = State{}
		}
		for k, v := range state {
			updated.State[k] = deepCopyValue(v)
		}
		now := time.Now().UTC()
		updated.StateUpdatedAt = &now
		r.cache[id] = updated
	}
	r.cacheMu.Unlock()

	r.logger.Debug("device state updated", "id", id)
	return nil
}

// HoldState marks a device's local state as authoritative until the given
// window elapses. Reconcile will not overwrite the state of a held device,
// preventing a just-commanded state from being reverted by a stale poll.
func (r *Registry) HoldState(id string, window time.Duration) {
	r.cacheMu.Lock()
	r.holds[id] = time.Now().UTC().Add(window)
	r.cacheMu.Unlock()
}

// ReleaseState clears any hold window for a device.
func (r *Registry) ReleaseState(id string) {
	r.cacheMu.Lock()
	delete(r.holds, id)
	r.cacheMu.Unlock()
}

// stateHeldLocked reports whether a device's hold window is active.
// Callers must hold cacheMu (read or write).
func (r *Registry) stateHeldLocked(id string, now time.Time) bool {
	until, ok := r.holds[id]
	return ok && now.Before(until)
}

// GetDeviceCount returns the number of cached devices.
func (r *Registry) GetDeviceCount() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}

// Stats returns registry statistics for monitoring.
type Stats struct {
	TotalDevices int
	ByPlatform   map[Platform]int
	Online       int
	Offline      int
}

// GetStats returns current registry statistics.
func (r *Registry) GetStats() Stats {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	stats := Stats{
		TotalDevices: len(r.cache),
		ByPlatform:   make(map[Platform]int),
	}

	for _, d := range r.cache {
		stats.ByPlatform[d.Platform]++
		if d.Online {
			stats.Online++
		} else {
			stats.Offline++
		}
	}

	return stats
}
