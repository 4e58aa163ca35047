package socket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// writeTimeout bounds a single outbound frame write.
const writeTimeout = 10 * time.Second

// Transport is a single open connection to the peer.
type Transport interface {
	// Send transmits one text frame.
	Send(text string) error

	// Close tears down the connection. Safe to call more than once.
	Close() error
}

// Callbacks receive transport events. They are invoked from the
// transport's read goroutine, one at a time.
type Callbacks struct {
	OnMessage func(data string)
	OnClose   func()
	OnError   func(err error)
}

// Dialer opens a Transport to the given address. The returned
// transport delivers events through cb until it closes.
type Dialer func(address string, cb Callbacks) (Transport, error)

// NewWebSocketDialer returns a Dialer backed by a gorilla/websocket
// client connection.
func NewWebSocketDialer(handshakeTimeout time.Duration) Dialer {
	return func(address string, cb Callbacks) (Transport, error) {
		dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
		conn, resp, err := dialer.Dial(address, nil)
		if resp != nil && resp.Body != nil {
			//nolint:errcheck // Handshake response body is not used
			resp.Body.Close()
		}
		if err != nil {
			return nil, err
		}

		t := &wsTransport{conn: conn}
		go t.readPump(cb)
		return t, nil
	}
}

// wsTransport wraps a gorilla connection. Writes are serialised by a
// mutex; gorilla supports one concurrent writer only.
type wsTransport struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
}

func (t *wsTransport) Send(text string) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	//nolint:errcheck // Best-effort deadline; write error caught below
	t.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return t.conn.WriteMessage(websocket.TextMessage, []byte(text))
}

func (t *wsTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		err = t.conn.Close()
	})
	return err
}

// readPump delivers inbound frames until the connection dies, then
// fires OnError (for abnormal closure) and OnClose.
func (t *wsTransport) readPump(cb Callbacks) {
	defer func() {
		//nolint:errcheck // Connection is already dead at this point
		t.Close()
		if cb.OnClose != nil {
			cb.OnClose()
		}
	}()

	for {
		msgType, data, err := t.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				if cb.OnError != nil {
					cb.OnError(err)
				}
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		if cb.OnMessage != nil {
			cb.OnMessage(string(data))
		}
	}
}
