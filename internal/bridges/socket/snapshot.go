package socket

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/nerrad567/zway-socket-bridge/internal/vdev"
)

// numericLevel matches a signed integer or decimal metric string.
var numericLevel = regexp.MustCompile(`^-?\d+(\.\d+)?$`)

// DeviceSnapshot is the wire representation of one device's state.
// It is derived from live registry state on every send, never stored.
type DeviceSnapshot struct {
	VDevID           string  `json:"vDevId"`
	OnOff            string  `json:"onoff"`
	Level            float64 `json:"level"`
	LastLevel        any     `json:"lastLevel"`
	Name             string  `json:"name"`
	Title            string  `json:"title"`
	Type             string  `json:"type"`
	ModificationTime int64   `json:"modificationTime"`
}

// Snapshot encodes a device into its wire representation.
// Missing metrics surface as zero values, never an error.
func Snapshot(d *vdev.Device) DeviceSnapshot {
	level, onoff := convertLevel(d.Metrics.Level())
	return DeviceSnapshot{
		VDevID:           d.ID,
		OnOff:            onoff,
		Level:            level,
		LastLevel:        d.Metrics.LastLevel(),
		Name:             d.Name,
		Title:            d.Title(),
		Type:             d.DeviceType,
		ModificationTime: d.ModificationTime,
	}
}

// convertLevel normalises a raw level metric into a numeric level and
// an on/off indicator. This is the only place numeric and symbolic
// metrics are reconciled.
//
// Numeric metrics (native numbers or digit strings) map directly:
// the level is the value and onoff is "off" exactly when it is zero.
// Symbolic metrics keep their raw text as onoff; the level becomes 0
// when the text contains "off" or "close" (any case), otherwise 100.
func convertLevel(metric any) (float64, string) {
	if n, ok := toNumber(metric); ok {
		if n == 0 {
			return 0, "off"
		}
		return n, "on"
	}

	s, ok := metric.(string)
	if !ok {
		// Unset or unrecognised metric. Report the device as off.
		return 0, "off"
	}

	if numericLevel.MatchString(s) {
		n, err := strconv.ParseFloat(s, 64)
		if err == nil {
			if n == 0 {
				return 0, "off"
			}
			return n, "on"
		}
	}

	lower := strings.ToLower(s)
	if strings.Contains(lower, "off") || strings.Contains(lower, "close") {
		return 0, s
	}
	return 100, s
}

// toNumber converts native numeric metric values to float64.
func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
