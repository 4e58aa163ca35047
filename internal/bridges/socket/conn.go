package socket

import (
	"fmt"
	"sync"
	"time"
)

// Logger is the minimal logging interface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger discards everything.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// ConnOptions configures a connection manager.
type ConnOptions struct {
	// Address is the WebSocket server to dial.
	Address string

	// Dialer opens the transport.
	Dialer Dialer

	// GuardRelease is how long the connect guard stays held after a
	// successful dial, absorbing reconnect triggers that arrive in
	// quick succession.
	GuardRelease time.Duration

	// OnOpen fires after each successful dial. Optional.
	OnOpen func()

	// OnMessage receives each inbound text frame. Optional.
	OnMessage func(data string)

	// Logger is optional.
	Logger Logger
}

// Conn owns the single outbound connection: its transport handle, its
// lifecycle state and the reconnect guard. At most one dial attempt is
// in flight at any time.
//
// All methods are safe for concurrent use.
type Conn struct {
	address      string
	dial         Dialer
	guardRelease time.Duration
	onOpen       func()
	onMessage    func(data string)
	logger       Logger

	mu         sync.Mutex
	connecting bool
	connected  bool
	stopped    bool
	transport  Transport

	// Dial generations. The transport's read pump starts inside the
	// dial, so close/error callbacks can fire before the dial resolves;
	// generations let those early callbacks invalidate the attempt
	// instead of being mistaken for a live connection dropping.
	dialGen   uint64 // incremented per dial attempt
	liveGen   uint64 // generation of the installed transport
	closedGen uint64 // highest generation seen by a close/error callback
}

// NewConn creates a connection manager. No dial happens until
// EnsureConnected or Send is called.
func NewConn(opts ConnOptions) (*Conn, error) {
	if opts.Address == "" {
		return nil, fmt.Errorf("address is required")
	}
	if opts.Dialer == nil {
		return nil, fmt.Errorf("dialer is required")
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}

	return &Conn{
		address:      opts.Address,
		dial:         opts.Dialer,
		guardRelease: opts.GuardRelease,
		onOpen:       opts.OnOpen,
		onMessage:    opts.OnMessage,
		logger:       opts.Logger,
	}, nil
}

// Connected reports whether a connection is currently open.
func (c *Conn) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// EnsureConnected dials the peer if no connection is open and no dial
// is already in flight. Failures are logged, not returned; the next
// trigger retries.
func (c *Conn) EnsureConnected() {
	c.mu.Lock()
	if c.stopped || c.connected || c.connecting {
		c.mu.Unlock()
		return
	}
	c.connecting = true
	c.dialGen++
	gen := c.dialGen
	c.mu.Unlock()

	t, err := c.dial(c.address, Callbacks{
		OnMessage: c.handleMessage,
		OnClose:   func() { c.handleClose(gen) },
		OnError:   func(err error) { c.handleError(gen, err) },
	})
	if err != nil {
		c.mu.Lock()
		c.connecting = false
		c.mu.Unlock()
		c.logger.Warn("connect failed", "address", c.address, "error", err)
		return
	}

	c.mu.Lock()
	if c.stopped {
		// Stop raced the dial; discard the fresh connection.
		c.connecting = false
		c.mu.Unlock()
		//nolint:errcheck // Connection was never exposed
		t.Close()
		return
	}
	if c.closedGen >= gen {
		// The connection died before the dial resolved.
		c.connecting = false
		c.mu.Unlock()
		//nolint:errcheck // Connection is already dead
		t.Close()
		c.logger.Warn("connection dropped during dial", "address", c.address)
		return
	}
	c.transport = t
	c.connected = true
	c.liveGen = gen
	c.mu.Unlock()

	c.logger.Info("connected", "address", c.address)

	// Hold the guard briefly so near-simultaneous triggers collapse
	// into this one attempt.
	time.AfterFunc(c.guardRelease, func() {
		c.mu.Lock()
		c.connecting = false
		c.mu.Unlock()
	})

	if c.onOpen != nil {
		c.onOpen()
	}
}

// Send wraps data in an envelope and transmits it. If no connection is
// open it first attempts one; the message is dropped with
// ErrNotConnected if the connection is still not open afterwards.
func (c *Conn) Send(msgType string, data any) error {
	c.mu.Lock()
	stopped := c.stopped
	connected := c.connected
	c.mu.Unlock()

	if stopped {
		return ErrStopped
	}
	if !connected {
		c.EnsureConnected()
	}

	c.mu.Lock()
	t := c.transport
	connected = c.connected
	c.mu.Unlock()

	if !connected || t == nil {
		return ErrNotConnected
	}

	frame, err := encodeEnvelope(msgType, data)
	if err != nil {
		return err
	}
	if err := t.Send(frame); err != nil {
		c.markDown(t)
		return fmt.Errorf("sending %s message: %w", msgType, err)
	}
	return nil
}

// Stop closes the connection and prevents further dials. Idempotent;
// late transport callbacks become no-ops.
func (c *Conn) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	c.connected = false
	c.connecting = false
	t := c.transport
	c.transport = nil
	c.mu.Unlock()

	if t != nil {
		//nolint:errcheck // Best-effort close on shutdown
		t.Close()
	}
}

// handleMessage forwards an inbound frame unless stopped.
func (c *Conn) handleMessage(data string) {
	c.mu.Lock()
	stopped := c.stopped
	c.mu.Unlock()
	if stopped || c.onMessage == nil {
		return
	}
	c.onMessage(data)
}

// handleClose marks the connection down. No immediate reconnect; the
// next send or metric event dials again.
func (c *Conn) handleClose(gen uint64) {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	if gen > c.closedGen {
		c.closedGen = gen
	}
	if !c.connected || gen != c.liveGen {
		// A pending dial; its resume path discards the transport.
		c.mu.Unlock()
		return
	}
	c.connected = false
	c.transport = nil
	c.mu.Unlock()

	c.logger.Info("connection closed", "address", c.address)
}

// handleError marks the connection down and releases the guard.
func (c *Conn) handleError(gen uint64, err error) {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	if gen > c.closedGen {
		c.closedGen = gen
	}
	if !c.connected || gen != c.liveGen {
		// A pending dial still owns the guard; its resume path releases
		// it and discards the transport.
		c.mu.Unlock()
		c.logger.Warn("connection error during dial", "address", c.address, "error", err)
		return
	}
	c.connected = false
	c.connecting = false
	c.transport = nil
	c.mu.Unlock()

	c.logger.Warn("connection error", "address", c.address, "error", err)
}

// markDown drops a transport after a failed write.
func (c *Conn) markDown(t Transport) {
	c.mu.Lock()
	if !c.stopped && c.transport == t {
		c.connected = false
		c.transport = nil
	}
	c.mu.Unlock()

	//nolint:errcheck // Connection is already broken
	t.Close()
}
