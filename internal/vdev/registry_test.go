package vdev

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// MockRepository is a test implementation of Repository.
type MockRepository struct {
	mu      sync.Mutex
	devices map[string]*Device
	// For testing error paths
	createErr        error
	deleteErr        error
	updateMetricsErr error
}

func NewMockRepository() *MockRepository {
	return &MockRepository{
		devices: make(map[string]*Device),
	}
}

func (m *MockRepository) GetByID(_ context.Context, id string) (*Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if d, ok := m.devices[id]; ok {
		return d.DeepCopy(), nil
	}
	return nil, ErrDeviceNotFound
}

func (m *MockRepository) List(_ context.Context) ([]Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	devices := make([]Device, 0, len(m.devices))
	for _, d := range m.devices {
		devices = append(devices, *d.DeepCopy())
	}
	return devices, nil
}

func (m *MockRepository) Create(_ context.Context, device *Device) error {
	if m.createErr != nil {
		return m.createErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.devices[device.ID]; exists {
		return ErrDeviceExists
	}
	m.devices[device.ID] = device.DeepCopy()
	return nil
}

func (m *MockRepository) Delete(_ context.Context, id string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.devices[id]; !exists {
		return ErrDeviceNotFound
	}
	delete(m.devices, id)
	return nil
}

func (m *MockRepository) UpdateMetrics(_ context.Context, id string, metrics Metrics, updateTime, modificationTime int64) error {
	if m.updateMetricsErr != nil {
		return m.updateMetricsErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	d, exists := m.devices[id]
	if !exists {
		return ErrDeviceNotFound
	}
	d.Metrics = deepCopyMetrics(metrics)
	d.UpdateTime = updateTime
	d.ModificationTime = modificationTime
	return nil
}

// newTestRegistry creates a registry backed by a mock repository with
// one dimmer and one binary switch pre-loaded.
func newTestRegistry(t *testing.T) (*Registry, *MockRepository) {
	t.Helper()

	repo := NewMockRepository()
	repo.devices["ZWayVDev_zway_30-0-38"] = &Device{
		ID:         "ZWayVDev_zway_30-0-38",
		Name:       "Hall Dimmer",
		DeviceType: "switchMultilevel",
		Metrics:    Metrics{MetricLevel: float64(20)},
	}
	repo.devices["ZWayVDev_zway_7-0-37"] = &Device{
		ID:         "ZWayVDev_zway_7-0-37",
		Name:       "Porch Light",
		DeviceType: "switchBinary",
		Metrics:    Metrics{MetricLevel: "off"},
	}

	registry := NewRegistry(repo)
	if err := registry.RefreshCache(context.Background()); err != nil {
		t.Fatalf("RefreshCache() error = %v", err)
	}
	return registry, repo
}

func TestRegistry_SetLevel_FiresModifyOnChange(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := context.Background()

	var modifyEvents, changeEvents []MetricEvent
	registry.Subscribe(EventMetricModify, func(ev MetricEvent) {
		modifyEvents = append(modifyEvents, ev)
	})
	registry.Subscribe(EventMetricChange, func(ev MetricEvent) {
		changeEvents = append(changeEvents, ev)
	})

	if err := registry.SetLevel(ctx, "ZWayVDev_zway_30-0-38", float64(55)); err != nil {
		t.Fatalf("SetLevel() error = %v", err)
	}

	if len(modifyEvents) != 1 {
		t.Fatalf("expected 1 modify event, got %d", len(modifyEvents))
	}
	if len(changeEvents) != 1 {
		t.Fatalf("expected 1 change event, got %d", len(changeEvents))
	}
	if modifyEvents[0].DeviceID != "ZWayVDev_zway_30-0-38" {
		t.Errorf("DeviceID = %q", modifyEvents[0].DeviceID)
	}
	if modifyEvents[0].Value != float64(55) {
		t.Errorf("Value = %v, want 55", modifyEvents[0].Value)
	}
	if modifyEvents[0].Previous != float64(20) {
		t.Errorf("Previous = %v, want 20", modifyEvents[0].Previous)
	}
}

func TestRegistry_SetLevel_SameValueFiresChangeOnly(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := context.Background()

	var modifyCount, changeCount int
	registry.Subscribe(EventMetricModify, func(MetricEvent) { modifyCount++ })
	registry.Subscribe(EventMetricChange, func(MetricEvent) { changeCount++ })

	// Re-set the current value
	if err := registry.SetLevel(ctx, "ZWayVDev_zway_30-0-38", float64(20)); err != nil {
		t.Fatalf("SetLevel() error = %v", err)
	}

	if modifyCount != 0 {
		t.Errorf("modify events = %d, want 0", modifyCount)
	}
	if changeCount != 1 {
		t.Errorf("change events = %d, want 1", changeCount)
	}
}

func TestRegistry_SetLevel_MovesLastLevel(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := context.Background()

	if err := registry.SetLevel(ctx, "ZWayVDev_zway_30-0-38", float64(80)); err != nil {
		t.Fatalf("SetLevel() error = %v", err)
	}

	device, err := registry.GetDevice(ctx, "ZWayVDev_zway_30-0-38")
	if err != nil {
		t.Fatalf("GetDevice() error = %v", err)
	}
	if device.Metrics.Level() != float64(80) {
		t.Errorf("level = %v, want 80", device.Metrics.Level())
	}
	if device.Metrics.LastLevel() != float64(20) {
		t.Errorf("lastLevel = %v, want 20", device.Metrics.LastLevel())
	}
	if device.ModificationTime == 0 {
		t.Error("ModificationTime should be set after a value change")
	}
}

func TestRegistry_SetLevel_NumericTypesCompareEqual(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := context.Background()

	var modifyCount int
	registry.Subscribe(EventMetricModify, func(MetricEvent) { modifyCount++ })

	// int 20 equals the stored float64 20, so no modify event
	if err := registry.SetLevel(ctx, "ZWayVDev_zway_30-0-38", 20); err != nil {
		t.Fatalf("SetLevel() error = %v", err)
	}
	if modifyCount != 0 {
		t.Errorf("modify events = %d, want 0", modifyCount)
	}
}

func TestRegistry_SetLevel_NotFound(t *testing.T) {
	registry, _ := newTestRegistry(t)

	err := registry.SetLevel(context.Background(), "ZWayVDev_zway_99-0-0", float64(1))
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("error = %v, want ErrDeviceNotFound", err)
	}
}

func TestRegistry_Unsubscribe(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := context.Background()

	var count int
	id := registry.Subscribe(EventMetricChange, func(MetricEvent) { count++ })

	registry.Unsubscribe(EventMetricChange, id)
	// Second unsubscribe is a no-op
	registry.Unsubscribe(EventMetricChange, id)

	if err := registry.SetLevel(ctx, "ZWayVDev_zway_30-0-38", float64(1)); err != nil {
		t.Fatalf("SetLevel() error = %v", err)
	}
	if count != 0 {
		t.Errorf("handler invoked %d times after unsubscribe, want 0", count)
	}
}

func TestRegistry_PerformCommand(t *testing.T) {
	tests := []struct {
		name      string
		action    Action
		wantLevel any
	}{
		{
			name:      "plain verb writes symbolic level",
			action:    Action{Command: "on"},
			wantLevel: "on",
		},
		{
			name:      "exact level writes value",
			action:    Action{Command: CommandExact, Args: map[string]any{ArgLevel: float64(55)}},
			wantLevel: float64(55),
		},
		{
			name:      "exact change token writes token",
			action:    Action{Command: CommandExact, Args: map[string]any{ArgChange: "upstart"}},
			wantLevel: "upstart",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry, _ := newTestRegistry(t)
			ctx := context.Background()

			if err := registry.PerformCommand(ctx, "ZWayVDev_zway_30-0-38", tt.action); err != nil {
				t.Fatalf("PerformCommand() error = %v", err)
			}

			device, err := registry.GetDevice(ctx, "ZWayVDev_zway_30-0-38")
			if err != nil {
				t.Fatalf("GetDevice() error = %v", err)
			}
			if device.Metrics.Level() != tt.wantLevel {
				t.Errorf("level = %v, want %v", device.Metrics.Level(), tt.wantLevel)
			}
		})
	}
}

func TestRegistry_PerformCommand_Colour(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := context.Background()

	var changeCount int
	registry.Subscribe(EventMetricChange, func(MetricEvent) { changeCount++ })

	action := Action{Command: CommandExact, Args: map[string]any{
		ArgRed:   float64(255),
		ArgGreen: float64(128),
		ArgBlue:  float64(0),
	}}
	if err := registry.PerformCommand(ctx, "ZWayVDev_zway_30-0-38", action); err != nil {
		t.Fatalf("PerformCommand() error = %v", err)
	}

	device, err := registry.GetDevice(ctx, "ZWayVDev_zway_30-0-38")
	if err != nil {
		t.Fatalf("GetDevice() error = %v", err)
	}
	colour, ok := device.Metrics[MetricColor].(map[string]any)
	if !ok {
		t.Fatalf("colour metric missing or wrong type: %v", device.Metrics[MetricColor])
	}
	if colour["r"] != float64(255) || colour["g"] != float64(128) || colour["b"] != float64(0) {
		t.Errorf("colour = %v", colour)
	}
	if changeCount != 0 {
		t.Errorf("colour write fired %d level events, want 0", changeCount)
	}
}

func TestRegistry_PerformCommand_ExactWithoutArgs(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := context.Background()

	if err := registry.PerformCommand(ctx, "ZWayVDev_zway_30-0-38", Action{Command: CommandExact}); err != nil {
		t.Fatalf("PerformCommand() error = %v", err)
	}

	device, err := registry.GetDevice(ctx, "ZWayVDev_zway_30-0-38")
	if err != nil {
		t.Fatalf("GetDevice() error = %v", err)
	}
	if device.Metrics.Level() != float64(20) {
		t.Errorf("level = %v, want unchanged 20", device.Metrics.Level())
	}
}

func TestRegistry_CreateDevice(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := context.Background()

	t.Run("rejects missing id", func(t *testing.T) {
		err := registry.CreateDevice(ctx, &Device{DeviceType: "switchBinary"})
		if !errors.Is(err, ErrInvalidDevice) {
			t.Errorf("error = %v, want ErrInvalidDevice", err)
		}
	})

	t.Run("rejects duplicate", func(t *testing.T) {
		err := registry.CreateDevice(ctx, &Device{
			ID:         "ZWayVDev_zway_30-0-38",
			DeviceType: "switchMultilevel",
		})
		if !errors.Is(err, ErrDeviceExists) {
			t.Errorf("error = %v, want ErrDeviceExists", err)
		}
	})

	t.Run("creates and caches", func(t *testing.T) {
		err := registry.CreateDevice(ctx, &Device{
			ID:         "ZWayVDev_zway_12-0-48-1",
			Name:       "Motion Sensor",
			DeviceType: "sensorBinary",
		})
		if err != nil {
			t.Fatalf("CreateDevice() error = %v", err)
		}
		if registry.GetDeviceCount() != 3 {
			t.Errorf("GetDeviceCount() = %d, want 3", registry.GetDeviceCount())
		}
	})
}

func TestRegistry_DeleteDevice(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := context.Background()

	if err := registry.DeleteDevice(ctx, "ZWayVDev_zway_7-0-37"); err != nil {
		t.Fatalf("DeleteDevice() error = %v", err)
	}

	_, err := registry.GetDevice(ctx, "ZWayVDev_zway_7-0-37")
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("error = %v, want ErrDeviceNotFound", err)
	}
}

func TestRegistry_GetDevice_ReturnsCopy(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := context.Background()

	device, err := registry.GetDevice(ctx, "ZWayVDev_zway_30-0-38")
	if err != nil {
		t.Fatalf("GetDevice() error = %v", err)
	}

	// Mutating the returned copy must not affect the cache
	device.Metrics[MetricLevel] = float64(99)

	again, err := registry.GetDevice(ctx, "ZWayVDev_zway_30-0-38")
	if err != nil {
		t.Fatalf("GetDevice() error = %v", err)
	}
	if again.Metrics.Level() != float64(20) {
		t.Errorf("cache was mutated through returned copy: level = %v", again.Metrics.Level())
	}
}

func TestValuesEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{"both nil", nil, nil, true},
		{"one nil", nil, "off", false},
		{"equal strings", "on", "on", true},
		{"different strings", "on", "off", false},
		{"int vs float64", 55, float64(55), true},
		{"different numbers", 55, float64(56), false},
		{"number vs string", 0, "off", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := valuesEqual(tt.a, tt.b); got != tt.want {
				t.Errorf("valuesEqual(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}
