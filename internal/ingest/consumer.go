package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/nerrad567/zway-socket-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/zway-socket-bridge/internal/vdev"
)

// subscribeQoS is the QoS level for the state subscription.
const subscribeQoS = 1

// MQTTClient is the interface for MQTT operations.
// This allows mocking in tests and flexibility in implementation.
type MQTTClient interface {
	// Subscribe registers a handler for a topic pattern.
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error

	// Unsubscribe removes a subscription.
	Unsubscribe(topic string) error
}

// DeviceRegistry provides device lookup and metric writes.
// This interface is satisfied by *vdev.Registry.
type DeviceRegistry interface {
	// GetDevice retrieves a device by ID.
	GetDevice(ctx context.Context, id string) (*vdev.Device, error)

	// CreateDevice inserts a new device.
	CreateDevice(ctx context.Context, device *vdev.Device) error

	// SetLevel writes the level metric of a device.
	SetLevel(ctx context.Context, id string, value any) error
}

// MetricWriter records metric history.
// This interface is satisfied by *influxdb.Client.
// It is optional - if nil, the consumer operates without history.
type MetricWriter interface {
	WriteDeviceMetric(deviceID string, measurement string, value float64)
}

// Logger is optional structured logging support.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// stateMessage is the wire shape of a zway/state/{device_id} payload.
type stateMessage struct {
	DeviceID   string         `json:"device_id"`
	DeviceType string         `json:"device_type"`
	Name       string         `json:"name"`
	Metrics    map[string]any `json:"metrics"`
}

// Consumer subscribes to Z-Way state topics and applies metric updates
// to the device registry.
//
// Thread Safety: All methods are safe for concurrent use.
type Consumer struct {
	mqtt     MQTTClient
	registry DeviceRegistry
	writer   MetricWriter // May be nil (optional)

	started  bool
	stopOnce sync.Once
	mu       sync.Mutex

	// Consumer-level context, cancelled on Stop()
	ctx       context.Context
	ctxCancel context.CancelFunc

	logger   Logger
	loggerMu sync.RWMutex
}

// ConsumerOptions holds configuration for creating a consumer.
type ConsumerOptions struct {
	// MQTTClient is the MQTT client implementation.
	MQTTClient MQTTClient

	// Registry is the device registry metric updates are applied to.
	Registry DeviceRegistry

	// Writer is optional metric history storage.
	// If nil, the consumer operates without history.
	Writer MetricWriter

	// Logger is optional structured logger.
	Logger Logger
}

// NewConsumer creates a new consumer instance.
// Call Start() to begin receiving updates.
func NewConsumer(opts ConsumerOptions) (*Consumer, error) {
	if opts.MQTTClient == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}

	// Consumer-level context so in-flight handlers stop at shutdown
	ctx, ctxCancel := context.WithCancel(context.Background())

	return &Consumer{
		mqtt:      opts.MQTTClient,
		registry:  opts.Registry,
		writer:    opts.Writer,
		ctx:       ctx,
		ctxCancel: ctxCancel,
		logger:    opts.Logger,
	}, nil
}

// Start subscribes to the state topic pattern.
func (c *Consumer) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return nil
	}

	topic := mqtt.Topics{}.AllDeviceStates()
	if err := c.mqtt.Subscribe(topic, subscribeQoS, c.handleStateMessage); err != nil {
		return fmt.Errorf("subscribe to state updates: %w", err)
	}
	c.started = true

	c.logInfo("state ingest started", "topic", topic)
	return nil
}

// Stop unsubscribes from the state topic and cancels in-flight message
// handlers. Safe to call multiple times.
func (c *Consumer) Stop() {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		defer c.mu.Unlock()

		c.ctxCancel()

		if !c.started {
			return
		}
		topic := mqtt.Topics{}.AllDeviceStates()
		if err := c.mqtt.Unsubscribe(topic); err != nil {
			c.logWarn("unsubscribe failed", "topic", topic, "error", err)
		}
		c.started = false

		c.logInfo("state ingest stopped")
	})
}

// handleStateMessage applies a single state update.
// Malformed payloads are logged and dropped; returning nil keeps the
// subscription alive.
func (c *Consumer) handleStateMessage(topic string, payload []byte) error {
	var msg stateMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		c.logWarn("dropping malformed state message", "topic", topic, "error", err)
		return nil
	}

	deviceID := msg.DeviceID
	if deviceID == "" {
		deviceID = mqtt.Topics{}.DeviceIDFromStateTopic(topic)
	}
	if deviceID == "" {
		c.logWarn("dropping state message without device id", "topic", topic)
		return nil
	}

	level, ok := msg.Metrics[vdev.MetricLevel]
	if !ok {
		c.logDebug("state message without level metric ignored", "device_id", deviceID)
		return nil
	}

	ctx := c.ctx
	if ctx.Err() != nil {
		// Delivered after Stop; drop without touching the registry.
		return nil
	}

	// Seed unknown devices when the message carries enough to create one
	if _, err := c.registry.GetDevice(ctx, deviceID); err != nil {
		if !errors.Is(err, vdev.ErrDeviceNotFound) || msg.DeviceType == "" {
			c.logWarn("state update for unknown device dropped", "device_id", deviceID, "error", err)
			return nil
		}
		seed := &vdev.Device{
			ID:         deviceID,
			Name:       msg.Name,
			DeviceType: msg.DeviceType,
			Metrics:    vdev.Metrics{},
		}
		if err := c.registry.CreateDevice(ctx, seed); err != nil && !errors.Is(err, vdev.ErrDeviceExists) {
			c.logWarn("device seed failed", "device_id", deviceID, "error", err)
			return nil
		}
		c.logInfo("device seeded from state message", "device_id", deviceID, "type", msg.DeviceType)
	}

	if err := c.registry.SetLevel(ctx, deviceID, level); err != nil {
		c.logWarn("level write failed", "device_id", deviceID, "error", err)
		return nil
	}

	// Record numeric levels for history; symbolic levels map to 0/100
	if c.writer != nil {
		if v, ok := levelToFloat(level); ok {
			c.writer.WriteDeviceMetric(deviceID, vdev.MetricLevel, v)
		}
	}

	return nil
}

// levelToFloat converts a level value to a float64 for history storage.
// Symbolic levels record as 0 for off-like verbs and 100 otherwise.
func levelToFloat(level any) (float64, bool) {
	switch v := level.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case string:
		if v == "" {
			return 0, false
		}
		if isOffLike(v) {
			return 0, true
		}
		return 100, true
	default:
		return 0, false
	}
}

// isOffLike reports whether a symbolic level represents an off state.
func isOffLike(s string) bool {
	lower := strings.ToLower(s)
	return strings.Contains(lower, "off") || strings.Contains(lower, "close")
}

// logDebug logs at debug level if a logger is set.
func (c *Consumer) logDebug(msg string, args ...any) {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

// logInfo logs at info level if a logger is set.
func (c *Consumer) logInfo(msg string, args ...any) {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	if c.logger != nil {
		c.logger.Info(msg, args...)
	}
}

// logWarn logs at warn level if a logger is set.
func (c *Consumer) logWarn(msg string, args ...any) {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}
