// Package vdev provides the virtual device registry.
//
// The registry holds the live set of Z-Way virtual devices: their type,
// name and metrics (level, lastLevel and friends). It wraps a SQLite
// repository with an in-memory cache and adds two things the rest of the
// bridge depends on:
//
//   - Metric events: subscribers receive a notification on every write to
//     a device's level metric ("change") and a second, filtered
//     notification only when the value actually differs ("modify").
//   - Command dispatch: PerformCommand applies an abstract action to a
//     device by writing its metrics, which in turn fires the events above.
//
// Event semantics:
//
//	EventMetricChange fires on EVERY SetLevel call, including writes that
//	re-set the current value. EventMetricModify fires only when the value
//	changes; the previous level is preserved in the lastLevel metric and
//	the device's modification time is bumped.
//
// All public methods are thread-safe. Event handlers are invoked
// synchronously on the calling goroutine; handlers must not call back
// into Subscribe/Unsubscribe from within themselves.
package vdev
