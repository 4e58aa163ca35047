package vdev

import (
	"context"
	"fmt"
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

// Registry provides virtual device management with caching, metric
// events and command dispatch. It wraps a Repository and adds an
// in-memory cache for fast lookups.
//
// The cache is populated on startup via RefreshCache() and kept in sync
// by cache-invalidating operations.
//
// All public methods are thread-safe.
type Registry struct {
	repo    Repository
	cache   map[string]*Device // Cached devices by ID
	cacheMu sync.RWMutex       // Protects cache
	logger  Logger

	subs    map[EventKind]map[SubscriptionID]MetricHandler
	subsMu  sync.RWMutex // Protects subs and nextSub
	nextSub SubscriptionID
}

// NewRegistry creates a new device registry.
// The repository is used for persistence; the registry adds caching.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		cache:  make(map[string]*Device),
		logger: noopLogger{},
		subs:   make(map[EventKind]map[SubscriptionID]MetricHandler),
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

// CreateDevice creates a new device.
// It validates the device and persists it.
func (r *Registry) CreateDevice(ctx context.Context, device *Device) error {
	if device.ID == "" || device.DeviceType == "" {
		return ErrInvalidDevice
	}
	if device.Metrics == nil {
		device.Metrics = make(Metrics)
	}

	if err := r.repo.Create(ctx, device); err != nil {
		return err
	}

	// Update cache (store a deep copy to prevent external modification)
	r.cacheMu.Lock()
	r.cache[device.ID] = device.DeepCopy()
	r.cacheMu.Unlock()

	r.logger.Info("device created", "id", device.ID, "type", device.DeviceType)
	return nil
}

// DeleteDevice removes a device.
func (r *Registry) DeleteDevice(ctx context.Context, id string) error {
	if err := r.repo.Delete(ctx, id); err != nil {
		return err
	}

	// Update cache
	r.cacheMu.Lock()
	delete(r.cache, id)
	r.cacheMu.Unlock()

	r.logger.Info("device deleted", "id", id)
	return nil
}

// GetDeviceCount returns the number of cached devices.
func (r *Registry) GetDeviceCount() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}

// Subscribe registers a handler for the given event kind and returns an
// ID that can be passed to Unsubscribe.
func (r *Registry) Subscribe(kind EventKind, handler MetricHandler) SubscriptionID {
	r.subsMu.Lock()
	defer r.subsMu.Unlock()

	r.nextSub++
	id := r.nextSub
	if r.subs[kind] == nil {
		r.subs[kind] = make(map[SubscriptionID]MetricHandler)
	}
	r.subs[kind][id] = handler
	return id
}

// Unsubscribe removes a previously registered handler.
// Unsubscribing an unknown ID is a no-op.
func (r *Registry) Unsubscribe(kind EventKind, id SubscriptionID) {
	r.subsMu.Lock()
	defer r.subsMu.Unlock()
	delete(r.subs[kind], id)
}

// SetLevel writes the level metric of a device.
//
// Every call fires EventMetricChange. When the written value differs
// from the current one, the previous value is moved into the lastLevel
// metric, the device's modification time is bumped, and
// EventMetricModify fires as well (after the change event).
//
// Returns ErrDeviceNotFound if the device does not exist.
func (r *Registry) SetLevel(ctx context.Context, id string, value any) error {
	r.cacheMu.Lock()
	cached, ok := r.cache[id]
	if !ok {
		r.cacheMu.Unlock()
		device, err := r.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		r.cacheMu.Lock()
		// Another writer may have populated the cache meanwhile
		if existing, found := r.cache[id]; found {
			cached = existing
		} else {
			cached = device.DeepCopy()
			r.cache[id] = cached
		}
	}

	updated := cached.DeepCopy()
	if updated.Metrics == nil {
		updated.Metrics = make(Metrics)
	}

	prev := updated.Metrics.Level()
	changed := !valuesEqual(prev, value)

	now := time.Now().UTC()
	if changed && prev != nil {
		updated.Metrics[MetricLastLevel] = prev
	}
	updated.Metrics[MetricLevel] = value
	updated.UpdateTime = now.Unix()
	if changed {
		updated.ModificationTime = now.Unix()
	}
	updated.UpdatedAt = now

	if err := r.repo.UpdateMetrics(ctx, id, updated.Metrics, updated.UpdateTime, updated.ModificationTime); err != nil {
		r.cacheMu.Unlock()
		return err
	}
	r.cache[id] = updated
	r.cacheMu.Unlock()

	r.logger.Debug("level metric written", "id", id, "value", value, "changed", changed)

	r.emit(MetricEvent{Kind: EventMetricChange, DeviceID: id, Value: value, Previous: prev})
	if changed {
		r.emit(MetricEvent{Kind: EventMetricModify, DeviceID: id, Value: value, Previous: prev})
	}
	return nil
}

// emit delivers an event to all handlers registered for its kind.
// Handlers are collected under the read lock, then invoked without it,
// so a handler may trigger further writes.
func (r *Registry) emit(ev MetricEvent) {
	r.subsMu.RLock()
	handlers := make([]MetricHandler, 0, len(r.subs[ev.Kind]))
	for _, h := range r.subs[ev.Kind] {
		handlers = append(handlers, h)
	}
	r.subsMu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}

// valuesEqual compares two level values.
// Numeric values compare by magnitude regardless of Go type, so an
// int 55 written by a command equals a float64 55 decoded from JSON.
func valuesEqual(a, b any) bool {
	// Handle nil cases
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}

	if af, aok := toFloat(a); aok {
		bf, bok := toFloat(b)
		if !bok {
			return false
		}
		return af == bf
	}

	// Level values are scalars (JSON numbers, strings, bools), so
	// direct comparison is safe here.
	return a == b
}

// toFloat converts numeric types to float64 for comparison.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
