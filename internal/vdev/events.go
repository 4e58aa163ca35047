package vdev

// EventKind identifies a class of registry notification.
type EventKind string

// Event kinds for metric-level notifications.
const (
	// EventMetricModify fires when the level metric changes to a new
	// value. This is the data-change signal consumers forward outward.
	EventMetricModify EventKind = "modify:metrics:level"

	// EventMetricChange fires on every write to the level metric,
	// including writes that re-set the current value. Useful as a
	// liveness signal.
	EventMetricChange EventKind = "change:metrics:level"
)

// MetricEvent describes a single metric write on a device.
type MetricEvent struct {
	Kind     EventKind
	DeviceID string

	// Value is the level value that was written.
	Value any

	// Previous is the level value before the write. Nil when the device
	// had no level metric yet.
	Previous any
}

// MetricHandler receives metric events. Handlers run synchronously on
// the goroutine performing the write and must return promptly.
type MetricHandler func(MetricEvent)

// SubscriptionID identifies a registered handler for later removal.
type SubscriptionID uint64
