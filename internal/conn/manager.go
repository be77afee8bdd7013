package conn

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// State is the connection lifecycle state.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosed
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

const (
	baseBackoff      = time.Second
	maxBackoff       = 10 * time.Second
	maxReconnects    = 5
	handshakeTimeout = 10 * time.Second
)

// BackoffDelay returns the reconnect delay for attempt n (1-based):
// min(1s·2ⁿ, 10s).
func BackoffDelay(attempt int) time.Duration {
	delay := baseBackoff << uint(attempt)
	if delay > maxBackoff || delay <= 0 {
		delay = maxBackoff
	}
	return delay
}

// socket is the slice of *websocket.Conn the manager needs. Tests substitute
// in-memory implementations through the dial hook.
type socket interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Hooks are the manager's outbound callbacks. All are optional. OnOpen fires
// on every successful open, including reconnects, so the caller can redo the
// configuration handshake and resume its capture pipelines.
type Hooks struct {
	OnOpen    func(reconnected bool)
	OnMessage func(raw []byte)
	OnError   func(err error)
	OnState   func(state State)
}

// Manager owns the duplex channel: it is the only component that knows the
// socket exists. Everything else sees Send/SendBinary, which silently refuse
// while the connection is not open.
type Manager struct {
	hooks  Hooks
	active func() bool
	dial   func(ctx context.Context, url string) (socket, error)
	sleep  func(d time.Duration)
	logf   func(format string, args ...any)

	mu       sync.Mutex
	state    State
	ws       socket
	url      string
	attempt  int
	explicit bool
	gen      int
}

// NewManager builds a manager. The active predicate gates automatic
// reconnection: an unexpected closure triggers reconnects only while it
// returns true (i.e. the session is Active).
func NewManager(hooks Hooks, active func() bool) *Manager {
	if active == nil {
		active = func() bool { return false }
	}
	return &Manager{
		hooks:  hooks,
		active: active,
		dial:   gorillaDial,
		sleep:  time.Sleep,
		logf:   log.Printf,
		state:  StateIdle,
	}
}

func gorillaDial(ctx context.Context, url string) (socket, error) {
	dialer := &websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	ws, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return ws, nil
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Open dials the meeting endpoint and starts the read loop. Dial failures
// are reported both as the return error and through the error hook, so
// callers that treat Open as fire-and-forget still hear about them.
func (m *Manager) Open(ctx context.Context, url string) error {
	m.mu.Lock()
	if m.state == StateOpen || m.state == StateConnecting || m.state == StateReconnecting {
		m.mu.Unlock()
		return ErrAlreadyOpen
	}
	m.url = url
	m.explicit = false
	m.attempt = 0
	m.setStateLocked(StateConnecting)
	m.mu.Unlock()

	ws, err := m.dial(ctx, url)
	if err != nil {
		m.mu.Lock()
		m.setStateLocked(StateClosed)
		m.mu.Unlock()
		m.reportError(fmt.Errorf("open connection: %w", err))
		return fmt.Errorf("open connection: %w", err)
	}

	m.adopt(ws, false)
	return nil
}

// adopt installs a freshly dialed socket, resets the attempt counter, and
// starts a read loop bound to this socket's generation. A Close issued while
// the dial was in flight wins: the socket is discarded, not installed.
func (m *Manager) adopt(ws socket, reconnected bool) {
	m.mu.Lock()
	if m.explicit {
		m.mu.Unlock()
		_ = ws.Close()
		return
	}
	m.ws = ws
	m.attempt = 0
	m.gen++
	gen := m.gen
	m.setStateLocked(StateOpen)
	m.mu.Unlock()

	if m.hooks.OnOpen != nil {
		m.hooks.OnOpen(reconnected)
	}
	go m.readLoop(ws, gen)
}

// Send marshals msg as JSON and writes it as a text frame. It is a no-op
// unless the connection is open; the state check and the write are atomic
// under the manager's lock so a frame is never written to a closing socket.
func (m *Manager) Send(msg any) {
	payload, err := json.Marshal(msg)
	if err != nil {
		m.reportError(fmt.Errorf("marshal outbound message: %w", err))
		return
	}
	m.write(websocket.TextMessage, payload)
}

// SendBinary writes one raw binary frame (an AudioFrame). No-op unless open.
func (m *Manager) SendBinary(frame []byte) {
	m.write(websocket.BinaryMessage, frame)
}

func (m *Manager) write(messageType int, payload []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateOpen || m.ws == nil {
		return
	}
	if err := m.ws.WriteMessage(messageType, payload); err != nil {
		m.logf("conn: write failed: %v", err)
	}
}

// Close tears the connection down explicitly and suppresses the automatic
// reconnect path. Safe to call in any state.
func (m *Manager) Close() {
	m.mu.Lock()
	m.explicit = true
	ws := m.ws
	m.ws = nil
	if m.state != StateIdle {
		m.setStateLocked(StateClosed)
	}
	m.mu.Unlock()

	if ws != nil {
		_ = ws.Close()
	}
}

func (m *Manager) readLoop(ws socket, gen int) {
	for {
		messageType, raw, err := ws.ReadMessage()
		if err != nil {
			m.handleDisconnect(ws, gen, err)
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		if m.hooks.OnMessage != nil {
			m.hooks.OnMessage(raw)
		}
	}
}

func (m *Manager) handleDisconnect(ws socket, gen int, cause error) {
	_ = ws.Close()

	m.mu.Lock()
	if gen != m.gen {
		// A newer socket has been adopted; this loop is stale.
		m.mu.Unlock()
		return
	}
	m.ws = nil
	if m.explicit {
		m.mu.Unlock()
		return
	}
	if !m.active() {
		m.setStateLocked(StateClosed)
		m.mu.Unlock()
		return
	}
	m.setStateLocked(StateReconnecting)
	m.mu.Unlock()

	m.logf("conn: connection lost (%v), reconnecting", cause)
	go m.reconnectLoop()
}

func (m *Manager) reconnectLoop() {
	for attempt := 1; attempt <= maxReconnects; attempt++ {
		m.mu.Lock()
		if m.explicit || m.state != StateReconnecting {
			m.mu.Unlock()
			return
		}
		m.attempt = attempt
		url := m.url
		m.mu.Unlock()

		m.sleep(BackoffDelay(attempt))

		m.mu.Lock()
		if m.explicit || m.state != StateReconnecting {
			m.mu.Unlock()
			return
		}
		m.mu.Unlock()

		if !m.active() {
			m.mu.Lock()
			m.setStateLocked(StateClosed)
			m.mu.Unlock()
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), handshakeTimeout)
		ws, err := m.dial(ctx, url)
		cancel()
		if err != nil {
			m.logf("conn: reconnect attempt %d/%d failed: %v", attempt, maxReconnects, err)
			continue
		}

		m.adopt(ws, true)
		return
	}

	m.mu.Lock()
	m.setStateLocked(StateClosed)
	m.mu.Unlock()
	m.reportError(ErrRetriesExhausted)
}

func (m *Manager) setStateLocked(state State) {
	if m.state == state {
		return
	}
	m.state = state
	if m.hooks.OnState != nil {
		go m.hooks.OnState(state)
	}
}

func (m *Manager) reportError(err error) {
	if m.hooks.OnError != nil {
		m.hooks.OnError(err)
	}
}
