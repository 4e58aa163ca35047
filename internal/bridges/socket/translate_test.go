package socket

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/nerrad567/zway-socket-bridge/internal/vdev"
)

func levelNumber(n float64) *LevelValue {
	return &LevelValue{value: n}
}

func levelToken(s string) *LevelValue {
	return &LevelValue{value: s}
}

func intPtr(n int) *int {
	return &n
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		name       string
		deviceType string
		command    string
		extra      Extra
		want       vdev.Action
		wantErr    error
	}{
		{
			name:       "multilevel with explicit level overrides command",
			deviceType: "switchMultilevel",
			command:    "on",
			extra:      Extra{Level: levelNumber(55)},
			want: vdev.Action{
				Command: vdev.CommandExact,
				Args:    map[string]any{vdev.ArgLevel: float64(55)},
			},
		},
		{
			name:       "multilevel without extra passes command through",
			deviceType: "switchMultilevel",
			command:    "off",
			want:       vdev.Action{Command: "off"},
		},
		{
			name:       "thermostat with level",
			deviceType: "thermostat",
			command:    "on",
			extra:      Extra{Level: levelNumber(21.5)},
			want: vdev.Action{
				Command: vdev.CommandExact,
				Args:    map[string]any{vdev.ArgLevel: float64(21.5)},
			},
		},
		{
			name:       "rgbw with full colour triple",
			deviceType: "switchRGBW",
			command:    "on",
			extra:      Extra{Red: intPtr(255), Green: intPtr(128), Blue: intPtr(0)},
			want: vdev.Action{
				Command: vdev.CommandExact,
				Args: map[string]any{
					vdev.ArgRed:   255,
					vdev.ArgGreen: 128,
					vdev.ArgBlue:  0,
				},
			},
		},
		{
			name:       "rgbw with partial colour falls back to command",
			deviceType: "switchRGBW",
			command:    "on",
			extra:      Extra{Red: intPtr(255), Green: intPtr(128)},
			want:       vdev.Action{Command: "on"},
		},
		{
			name:       "switchControl scene token",
			deviceType: "switchControl",
			command:    "on",
			extra:      Extra{Level: levelToken("upstart")},
			want: vdev.Action{
				Command: vdev.CommandExact,
				Args:    map[string]any{vdev.ArgChange: "upstart"},
			},
		},
		{
			name:       "switchControl numeric level",
			deviceType: "switchControl",
			command:    "on",
			extra:      Extra{Level: levelNumber(40)},
			want: vdev.Action{
				Command: vdev.CommandExact,
				Args:    map[string]any{vdev.ArgLevel: float64(40)},
			},
		},
		{
			name:       "switchControl unknown token is an exact level",
			deviceType: "switchControl",
			command:    "on",
			extra:      Extra{Level: levelToken("sideways")},
			want: vdev.Action{
				Command: vdev.CommandExact,
				Args:    map[string]any{vdev.ArgLevel: "sideways"},
			},
		},
		{
			name:       "switchControl without extra passes command through",
			deviceType: "switchControl",
			command:    "stop",
			want:       vdev.Action{Command: "stop"},
		},
		{
			name:       "toggleButton ignores supplied command",
			deviceType: "toggleButton",
			command:    "off",
			want:       vdev.Action{Command: "on"},
		},
		{
			name:       "switchBinary passes command through",
			deviceType: "switchBinary",
			command:    "on",
			want:       vdev.Action{Command: "on"},
		},
		{
			name:       "doorlock passes command through",
			deviceType: "doorlock",
			command:    "open",
			want:       vdev.Action{Command: "open"},
		},
		{
			name:       "binary sensor rejected",
			deviceType: "sensorBinary",
			command:    "on",
			wantErr:    ErrSensorReadOnly,
		},
		{
			name:       "multilevel sensor rejected even with level extra",
			deviceType: "sensorMultilevel",
			command:    "on",
			extra:      Extra{Level: levelNumber(55)},
			wantErr:    ErrSensorReadOnly,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Translate(tt.deviceType, tt.command, tt.extra)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("action = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestLevelValue_UnmarshalJSON(t *testing.T) {
	var v LevelValue
	if err := json.Unmarshal([]byte(`55`), &v); err != nil {
		t.Fatalf("number: %v", err)
	}
	if v.Value() != float64(55) {
		t.Errorf("number value = %v, want 55", v.Value())
	}

	if err := json.Unmarshal([]byte(`"upstart"`), &v); err != nil {
		t.Fatalf("string: %v", err)
	}
	if v.Value() != "upstart" {
		t.Errorf("string value = %v, want upstart", v.Value())
	}

	if err := json.Unmarshal([]byte(`true`), &v); err == nil {
		t.Error("expected error for boolean level")
	}
}

func TestExtra_Decoding(t *testing.T) {
	var cmd InboundCommand
	frame := `{"socketCommand":"setDevice","vDevId":"ZWayVDev_zway_30-0-38","command":"on","extra":{"level":55}}`
	if err := json.Unmarshal([]byte(frame), &cmd); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if cmd.Extra.Level == nil || cmd.Extra.Level.Value() != float64(55) {
		t.Errorf("extra.level = %v, want 55", cmd.Extra.Level)
	}
	if cmd.Extra.Red != nil {
		t.Errorf("extra.r = %v, want nil", cmd.Extra.Red)
	}
}
