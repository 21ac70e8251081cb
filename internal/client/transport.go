package client

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"chatsync/internal/protocol"
)

const (
	reconnectAttempts = 5
	reconnectDelay    = 2 * time.Second
)

// Transport is one persistent bidirectional connection to the relay.
type Transport interface {
	Emit(event protocol.EventType, payload any) error
	Close() error
}

// Callbacks receives transport lifecycle signals and inbound frames. Frames
// are delivered sequentially from a single reader goroutine.
type Callbacks struct {
	OnFrame      func(data []byte)
	OnConnect    func()
	OnDisconnect func(reason string)
	OnError      func(err error)
}

// Dialer opens a transport. Tests substitute a fake.
type Dialer func(url, token string, cb Callbacks) (Transport, error)

// wsTransport is the production transport on a gorilla websocket. It
// reconnects on its own up to reconnectAttempts times with a fixed delay;
// beyond that it reports a final disconnect.
type wsTransport struct {
	url   string
	token string
	cb    Callbacks

	mu     sync.Mutex // guards conn and closed across reconnects
	conn   *websocket.Conn
	closed bool
}

// DialWebsocket opens a websocket session carrying the bearer token for
// server-side authentication.
func DialWebsocket(url, token string, cb Callbacks) (Transport, error) {
	t := &wsTransport{url: url, token: token, cb: cb}
	conn, err := t.dial()
	if err != nil {
		return nil, err
	}
	t.conn = conn
	go t.readLoop(conn)
	return t, nil
}

func (t *wsTransport) dial() (*websocket.Conn, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+t.token)
	conn, resp, err := websocket.DefaultDialer.Dial(t.url, header)
	if err != nil {
		if resp != nil {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			resp.Body.Close()
			if len(body) > 0 {
				return nil, fmt.Errorf("handshake failed: %s: %w", string(body), err)
			}
			return nil, fmt.Errorf("handshake failed: status %d %s: %w", resp.StatusCode, http.StatusText(resp.StatusCode), err)
		}
		return nil, err
	}
	return conn, nil
}

func (t *wsTransport) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err == nil {
			if t.cb.OnFrame != nil {
				t.cb.OnFrame(data)
			}
			continue
		}

		t.mu.Lock()
		closed := t.closed
		t.mu.Unlock()
		if closed {
			t.notifyDisconnect("closed")
			return
		}

		if !t.reconnect() {
			t.notifyDisconnect(err.Error())
			return
		}
		t.mu.Lock()
		conn = t.conn
		t.mu.Unlock()
	}
}

// reconnect tries to re-establish the connection. Returns false once the
// attempt budget is spent or the transport was closed meanwhile.
func (t *wsTransport) reconnect() bool {
	for attempt := 1; attempt <= reconnectAttempts; attempt++ {
		time.Sleep(reconnectDelay)

		t.mu.Lock()
		if t.closed {
			t.mu.Unlock()
			return false
		}
		t.mu.Unlock()

		conn, err := t.dial()
		if err != nil {
			log.Printf("reconnect attempt %d/%d failed: %v", attempt, reconnectAttempts, err)
			if t.cb.OnError != nil {
				t.cb.OnError(err)
			}
			t.mu.Lock()
			closed := t.closed
			t.mu.Unlock()
			if closed {
				// the error callback tore the session down (auth failure)
				return false
			}
			continue
		}

		t.mu.Lock()
		t.conn = conn
		t.mu.Unlock()
		if t.cb.OnConnect != nil {
			t.cb.OnConnect()
		}
		return true
	}
	return false
}

func (t *wsTransport) notifyDisconnect(reason string) {
	if t.cb.OnDisconnect != nil {
		t.cb.OnDisconnect(reason)
	}
}

// Emit sends one event envelope. Writes are serialized; the websocket does
// not allow concurrent writers.
func (t *wsTransport) Emit(event protocol.EventType, payload any) error {
	data, err := json.Marshal(protocol.NewEnvelope(event, payload))
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || t.conn == nil {
		return ErrNotConnected
	}
	t.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *wsTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	if t.conn != nil {
		return t.conn.Close()
	}
	return nil
}
