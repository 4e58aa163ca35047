package socket

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/nerrad567/zway-socket-bridge/internal/infrastructure/config"
	"github.com/nerrad567/zway-socket-bridge/internal/vdev"
)

// DeviceRegistry is the registry surface the bridge consumes.
// Satisfied by *vdev.Registry.
type DeviceRegistry interface {
	// GetDevice retrieves a device by ID.
	GetDevice(ctx context.Context, id string) (*vdev.Device, error)

	// ListDevices retrieves all devices.
	ListDevices(ctx context.Context) ([]vdev.Device, error)

	// PerformCommand applies an abstract action to a device.
	PerformCommand(ctx context.Context, id string, action vdev.Action) error

	// Subscribe registers a metric event handler.
	Subscribe(kind vdev.EventKind, handler vdev.MetricHandler) vdev.SubscriptionID

	// Unsubscribe removes a handler. Unknown IDs are a no-op.
	Unsubscribe(kind vdev.EventKind, id vdev.SubscriptionID)
}

// Options holds configuration for creating a bridge.
type Options struct {
	// Config is the socket section of the loaded configuration.
	Config *config.SocketConfig

	// Registry is the device registry.
	Registry DeviceRegistry

	// Dialer is optional; defaults to a gorilla/websocket dialer using
	// the configured handshake timeout.
	Dialer Dialer

	// Logger is optional structured logger.
	Logger Logger
}

// Bridge wires registry metric events to the outbound connection and
// inbound peer commands back into the registry.
//
// Thread safety: all methods are safe for concurrent use. Event
// handlers run synchronously on the registry's emitting goroutine.
type Bridge struct {
	cfg      *config.SocketConfig
	registry DeviceRegistry
	conn     *Conn
	logger   Logger

	modifySub vdev.SubscriptionID
	changeSub vdev.SubscriptionID
	started   bool
	mu        sync.Mutex
	stopOnce  sync.Once

	// Bridge-level context, cancelled on Stop()
	ctx       context.Context
	ctxCancel context.CancelFunc
}

// NewBridge creates a bridge instance. Call Start() to begin operation.
func NewBridge(opts Options) (*Bridge, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if opts.Config.Address == "" {
		return nil, fmt.Errorf("socket address is required")
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	if opts.Dialer == nil {
		opts.Dialer = NewWebSocketDialer(opts.Config.GetHandshakeTimeout())
	}

	ctx, ctxCancel := context.WithCancel(context.Background())

	b := &Bridge{
		cfg:       opts.Config,
		registry:  opts.Registry,
		logger:    opts.Logger,
		ctx:       ctx,
		ctxCancel: ctxCancel,
	}

	conn, err := NewConn(ConnOptions{
		Address:      opts.Config.Address,
		Dialer:       opts.Dialer,
		GuardRelease: opts.Config.GetGuardRelease(),
		OnOpen:       b.handleOpen,
		OnMessage:    b.handleMessage,
		Logger:       opts.Logger,
	})
	if err != nil {
		ctxCancel()
		return nil, err
	}
	b.conn = conn

	return b, nil
}

// Start subscribes to registry metric events and attempts the first
// connection. A failed dial is not an error; the bridge reconnects on
// the next trigger.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return fmt.Errorf("bridge already started")
	}
	b.started = true
	b.mu.Unlock()

	b.changeSub = b.registry.Subscribe(vdev.EventMetricChange, b.onMetricChange)
	b.modifySub = b.registry.Subscribe(vdev.EventMetricModify, b.onMetricModify)

	b.conn.EnsureConnected()

	b.logger.Info("socket bridge started", "address", b.cfg.Address)
	return nil
}

// Stop unsubscribes from the registry and closes the connection.
// Unsubscribing first stops new triggers before the transport goes
// away. Idempotent and safe to call before Start.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		b.registry.Unsubscribe(vdev.EventMetricModify, b.modifySub)
		b.registry.Unsubscribe(vdev.EventMetricChange, b.changeSub)
		b.conn.Stop()
		b.ctxCancel()
		b.logger.Info("socket bridge stopped")
	})
}

// onMetricModify sends a deviceChange message when a level metric
// takes a new value.
func (b *Bridge) onMetricModify(ev vdev.MetricEvent) {
	device, err := b.registry.GetDevice(b.ctx, ev.DeviceID)
	if err != nil {
		b.logger.Error("device lookup for change notification failed", "id", ev.DeviceID, "error", err)
		return
	}
	if err := b.conn.Send(MessageDeviceChange, Snapshot(device)); err != nil {
		b.logger.Debug("deviceChange dropped", "id", ev.DeviceID, "error", err)
	}
}

// onMetricChange fires on every level write, changed or not. It is a
// liveness signal only: reconnect if the peer is away.
func (b *Bridge) onMetricChange(vdev.MetricEvent) {
	if !b.conn.Connected() {
		b.conn.EnsureConnected()
	}
}

// handleOpen resynchronises the peer after each successful dial.
func (b *Bridge) handleOpen() {
	if b.cfg.SendFullState {
		b.sendAllDevices()
	}
}

// handleMessage parses and dispatches one inbound frame.
func (b *Bridge) handleMessage(data string) {
	var cmd InboundCommand
	if err := json.Unmarshal([]byte(data), &cmd); err != nil {
		b.logger.Warn("malformed inbound frame dropped", "error", err)
		return
	}

	switch cmd.SocketCommand {
	case commandSetDevice:
		b.handleSetDevice(cmd)
	case commandGetAll:
		b.sendAllDevices()
	default:
		// Unknown commands are silently ignored.
	}
}

// handleSetDevice translates and applies one inbound command.
// Failures are logged and dropped; the command channel is
// fire-and-forget, so the peer gets no reply either way.
func (b *Bridge) handleSetDevice(cmd InboundCommand) {
	if cmd.VDevID == "" || cmd.Command == "" {
		b.logger.Error("setDevice frame missing vDevId or command")
		return
	}

	device, err := b.registry.GetDevice(b.ctx, cmd.VDevID)
	if err != nil {
		b.logger.Error("setDevice for unknown device dropped", "id", cmd.VDevID, "error", err)
		return
	}

	action, err := Translate(device.DeviceType, cmd.Command, cmd.Extra)
	if err != nil {
		b.logger.Error("command rejected", "id", cmd.VDevID, "type", device.DeviceType, "error", err)
		return
	}

	if err := b.registry.PerformCommand(b.ctx, cmd.VDevID, action); err != nil {
		b.logger.Error("command failed", "id", cmd.VDevID, "error", err)
	}
}

// sendAllDevices sends the full keyed snapshot of every device whose
// ID matches the configured prefix.
func (b *Bridge) sendAllDevices() {
	devices, err := b.registry.ListDevices(b.ctx)
	if err != nil {
		b.logger.Error("device list for full-state message failed", "error", err)
		return
	}

	snapshots := make(map[string]DeviceSnapshot)
	for i := range devices {
		d := &devices[i]
		if b.cfg.IDPrefix != "" && !strings.Contains(d.ID, b.cfg.IDPrefix) {
			continue
		}
		snapshots[d.ID] = Snapshot(d)
	}

	if err := b.conn.Send(MessageAllDevices, snapshots); err != nil {
		b.logger.Debug("allDevices dropped", "count", len(snapshots), "error", err)
	}
}
