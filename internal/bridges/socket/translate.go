package socket

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nerrad567/zway-socket-bridge/internal/vdev"
)

// Device types with translation rules of their own. Anything else
// (switchBinary, doorlock, ...) takes the plain-command fallback.
const (
	typeSwitchMultilevel = "switchMultilevel"
	typeSwitchRGBW       = "switchRGBW"
	typeSwitchControl    = "switchControl"
	typeToggleButton     = "toggleButton"
	typeThermostat       = "thermostat"
)

// changeTokens are the switchControl level values that translate to a
// "change" action rather than an exact level.
var changeTokens = map[string]bool{
	"upstart":   true,
	"upstop":    true,
	"downstart": true,
	"downstop":  true,
}

// LevelValue is a level argument from the peer, which may arrive as a
// JSON number or a string token.
type LevelValue struct {
	value any
}

// UnmarshalJSON accepts either form and keeps the decoded value.
func (v *LevelValue) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v.value = s
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("level must be a number or string: %w", err)
	}
	v.value = n
	return nil
}

// Value returns the decoded level, a float64 or string.
func (v *LevelValue) Value() any {
	return v.value
}

// Extra carries the optional arguments of a setDevice command.
type Extra struct {
	Level *LevelValue `json:"level"`
	Red   *int        `json:"r"`
	Green *int        `json:"g"`
	Blue  *int        `json:"b"`
}

// Translate maps an inbound command onto a registry action for the
// given device type.
//
// Sensor types always reject with ErrSensorReadOnly. Multilevel and
// thermostat devices honour an explicit level over the command verb.
// RGBW devices honour a full colour triple. switchControl devices
// treat the recognised scene tokens as change actions and any other
// level as an exact value. Toggle buttons always fire "on". Every
// other type passes the command through unchanged.
func Translate(deviceType, command string, extra Extra) (vdev.Action, error) {
	if strings.Contains(strings.ToLower(deviceType), "sensor") {
		return vdev.Action{}, ErrSensorReadOnly
	}

	switch deviceType {
	case typeSwitchMultilevel, typeThermostat:
		if extra.Level != nil {
			return exactAction(vdev.ArgLevel, extra.Level.Value()), nil
		}
		return plainAction(command), nil

	case typeSwitchRGBW:
		if extra.Red != nil && extra.Green != nil && extra.Blue != nil {
			return vdev.Action{
				Command: vdev.CommandExact,
				Args: map[string]any{
					vdev.ArgRed:   *extra.Red,
					vdev.ArgGreen: *extra.Green,
					vdev.ArgBlue:  *extra.Blue,
				},
			}, nil
		}
		return plainAction(command), nil

	case typeSwitchControl:
		if extra.Level == nil {
			return plainAction(command), nil
		}
		if token, ok := extra.Level.Value().(string); ok && changeTokens[token] {
			return exactAction(vdev.ArgChange, token), nil
		}
		return exactAction(vdev.ArgLevel, extra.Level.Value()), nil

	case typeToggleButton:
		// Toggle buttons have a single stateless action.
		return plainAction("on"), nil

	default:
		return plainAction(command), nil
	}
}

func plainAction(command string) vdev.Action {
	return vdev.Action{Command: command}
}

func exactAction(arg string, value any) vdev.Action {
	return vdev.Action{
		Command: vdev.CommandExact,
		Args:    map[string]any{arg: value},
	}
}
