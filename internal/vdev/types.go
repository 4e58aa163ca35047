package vdev

import "time"

// Metric keys with registry-level semantics.
const (
	// MetricLevel is the primary observable metric. Numeric for dimmable
	// devices, symbolic ("on", "off", "open"...) for binary ones.
	MetricLevel = "level"

	// MetricLastLevel holds the previous level value, captured whenever
	// the level metric changes to a new value.
	MetricLastLevel = "lastLevel"

	// MetricTitle is the display title shown to peers. Falls back to the
	// device name when unset.
	MetricTitle = "title"

	// MetricColor holds an RGB colour map for switchRGBW devices.
	MetricColor = "color"
)

// Metrics holds a device's live attribute map.
// Keys mirror the Z-Way metrics object. Values are JSON-compatible
// (string, float64, bool, nested maps).
type Metrics map[string]any

// Level returns the current level metric, or nil if unset.
func (m Metrics) Level() any {
	return m[MetricLevel]
}

// LastLevel returns the previous level metric, or nil if unset.
func (m Metrics) LastLevel() any {
	return m[MetricLastLevel]
}

// Device represents a single Z-Way virtual device.
type Device struct {
	// ID is the stable virtual device identifier, e.g.
	// "ZWayVDev_zway_30-0-38".
	ID string

	// Name is the human-readable device name.
	Name string

	// DeviceType drives command dispatch: "switchBinary",
	// "switchMultilevel", "switchRGBW", "switchControl", "toggleButton",
	// "thermostat", "sensorBinary", "sensorMultilevel", ...
	DeviceType string

	// Metrics is the live attribute map.
	Metrics Metrics

	// UpdateTime is the Unix timestamp of the last metric write.
	UpdateTime int64

	// ModificationTime is the Unix timestamp of the last metric write
	// that changed a value.
	ModificationTime int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Title returns the display title, falling back to the device name.
func (d *Device) Title() string {
	if t, ok := d.Metrics[MetricTitle].(string); ok && t != "" {
		return t
	}
	return d.Name
}

// DeepCopy returns a copy of the device sharing no mutable state with
// the original. Used by the registry to keep its cache isolated from
// callers.
func (d *Device) DeepCopy() *Device {
	if d == nil {
		return nil
	}
	copied := *d
	copied.Metrics = deepCopyMetrics(d.Metrics)
	return &copied
}

// deepCopyMetrics recursively copies a metrics map.
func deepCopyMetrics(m Metrics) Metrics {
	if m == nil {
		return nil
	}
	copied := make(Metrics, len(m))
	for k, v := range m {
		copied[k] = deepCopyValue(v)
	}
	return copied
}

// deepCopyValue copies nested maps and slices; scalars are returned as-is.
func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		copied := make(map[string]any, len(val))
		for k, inner := range val {
			copied[k] = deepCopyValue(inner)
		}
		return copied
	case Metrics:
		return map[string]any(deepCopyMetrics(val))
	case []any:
		copied := make([]any, len(val))
		for i, inner := range val {
			copied[i] = deepCopyValue(inner)
		}
		return copied
	default:
		return v
	}
}
