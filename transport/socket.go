// Package transport maintains the single persistent WebSocket connection to
// the Asterisk ARI event stream. It survives connection drops with
// exponential-backoff reconnects, probes liveness with ping/pong keepalives,
// and publishes decoded events and connection lifecycle notifications on a
// dispatcher bus.
package transport

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/PerMoeller/asterisk-ari/events"
	"github.com/PerMoeller/asterisk-ari/logging"
	"github.com/PerMoeller/asterisk-ari/metrics"
)

// Lifecycle notification types emitted on the bus.
const (
	EventConnected    = "connected"
	EventReconnecting = "reconnecting"
	EventReconnected  = "reconnected"
	EventDisconnected = "disconnected"
	EventMessage      = "message"
)

const (
	writeWait        = 10 * time.Second
	maxFrameSize     = 512 * 1024
	handshakeTimeout = 30 * time.Second
)

// Notification is the payload of a lifecycle or message notification.
type Notification struct {
	Type string

	// Event carries the decoded frame for EventMessage notifications.
	Event *events.Event

	// Attempt and Delay describe the upcoming attempt for
	// EventReconnecting notifications. Attempt starts at 0.
	Attempt int
	Delay   time.Duration

	// Intentional reports whether an EventDisconnected notification was
	// caused by Close rather than a connection fault.
	Intentional bool
	Err         error
}

// Options configures the socket manager. Use DefaultOptions as the
// starting point; zero durations and multipliers are filled with defaults,
// but Reconnect is taken as given.
type Options struct {
	// URL is the HTTP base address of the ARI server, e.g.
	// "http://pbx.example.com:8088". The stream URL is derived from it.
	URL         string
	Username    string
	Password    string
	Application string

	// SubscribeAll asks the server to deliver events for all resources,
	// not only those subscribed to the application.
	SubscribeAll bool

	// Reconnect enables automatic reconnection after unexpected closes.
	Reconnect            bool
	ReconnectInterval    time.Duration
	MaxReconnectInterval time.Duration
	BackoffMultiplier    float64

	// PingInterval is the keepalive probe period; PingTimeout is how long
	// an unanswered probe may stay outstanding before the socket is
	// forcibly closed.
	PingInterval time.Duration
	PingTimeout  time.Duration

	Logger logging.Logger
}

// DefaultOptions returns the documented option defaults.
func DefaultOptions() Options {
	return Options{
		Reconnect:            true,
		ReconnectInterval:    1000 * time.Millisecond,
		MaxReconnectInterval: 30000 * time.Millisecond,
		BackoffMultiplier:    1.5,
		PingInterval:         30000 * time.Millisecond,
		PingTimeout:          5000 * time.Millisecond,
	}
}

func normalizeOptions(opts Options) Options {
	if opts.ReconnectInterval <= 0 {
		opts.ReconnectInterval = 1000 * time.Millisecond
	}
	if opts.MaxReconnectInterval <= 0 {
		opts.MaxReconnectInterval = 30000 * time.Millisecond
	}
	if opts.BackoffMultiplier <= 0 {
		opts.BackoffMultiplier = 1.5
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30000 * time.Millisecond
	}
	if opts.PingTimeout <= 0 {
		opts.PingTimeout = 5000 * time.Millisecond
	}
	return opts
}

// Manager owns the event-stream connection. All state transitions happen
// under one mutex; the read pump, keepalive loop and reconnect timer are
// the only goroutines touching the socket.
type Manager struct {
	opts   Options
	logger logging.Logger
	bus    *events.Dispatcher[Notification]

	mu             sync.Mutex
	conn           *websocket.Conn
	connected      bool
	everConnected  bool
	intentional    bool
	reconnecting   bool
	attempts       int
	reconnectTimer *time.Timer
	pongTimer      *time.Timer
	keepaliveStop  chan struct{}
}

// NewManager creates a socket manager. No connection is opened until
// Connect is called.
func NewManager(opts Options) *Manager {
	opts = normalizeOptions(opts)
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewLoggerWithComponent("transport")
	}
	return &Manager{
		opts:   opts,
		logger: logger,
		bus:    events.NewDispatcher[Notification](logger),
	}
}

// Bus returns the lifecycle/message notification bus.
func (m *Manager) Bus() *events.Dispatcher[Notification] {
	return m.bus
}

// On subscribes a handler to a notification type on the bus.
func (m *Manager) On(notificationType string, h events.Handler[Notification]) *events.Subscription[Notification] {
	return m.bus.On(notificationType, h)
}

// Connected reports whether the socket is currently open.
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Connect opens the event-stream connection. It is idempotent: when the
// socket is already open it returns immediately. A handshake failure on
// this initial path is returned to the caller and is not retried
// automatically; retrying Connect is the caller's responsibility.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	m.intentional = false
	m.mu.Unlock()
	return m.dial(ctx, false)
}

// Close marks the disconnect as intentional, cancels pending reconnect and
// keepalive timers and closes the socket with a normal-closure frame. No
// automatic reconnection fires afterwards.
func (m *Manager) Close() error {
	m.mu.Lock()
	m.intentional = true
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
	wasReconnecting := m.reconnecting
	m.reconnecting = false
	m.stopKeepaliveLocked()
	conn := m.conn
	m.mu.Unlock()

	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		// The read pump observes the close and emits the terminal
		// disconnected notification.
		return conn.Close()
	}
	if wasReconnecting {
		m.bus.Emit(EventDisconnected, Notification{Type: EventDisconnected, Intentional: true}, nil)
	}
	return nil
}

// streamURL derives the WebSocket URL from the configured HTTP base
// address, upgrading the scheme and attaching credentials and the
// subscribing application as query parameters.
func (m *Manager) streamURL() (string, error) {
	u, err := url.Parse(m.opts.URL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL %q: %w", m.opts.URL, err)
	}
	scheme := "ws"
	if u.Scheme == "https" || u.Scheme == "wss" {
		scheme = "wss"
	}

	query := url.Values{}
	query.Set("app", m.opts.Application)
	if m.opts.Username != "" || m.opts.Password != "" {
		query.Set("api_key", m.opts.Username+":"+m.opts.Password)
	}
	if m.opts.SubscribeAll {
		query.Set("subscribeAll", "true")
	}

	wsURL := &url.URL{
		Scheme:   scheme,
		Host:     u.Host,
		Path:     "/ari/events",
		RawQuery: query.Encode(),
	}
	return wsURL.String(), nil
}

func (m *Manager) dial(ctx context.Context, isReconnect bool) error {
	m.mu.Lock()
	if m.connected {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	wsURL, err := m.streamURL()
	if err != nil {
		return err
	}

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("failed to connect to event stream (status: %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("failed to connect to event stream: %w", err)
	}

	conn.SetReadLimit(maxFrameSize)
	conn.SetPongHandler(func(string) error {
		m.mu.Lock()
		if m.pongTimer != nil {
			m.pongTimer.Stop()
			m.pongTimer = nil
		}
		m.mu.Unlock()
		return nil
	})

	m.mu.Lock()
	if m.intentional {
		// Close raced the dial; drop the socket.
		m.mu.Unlock()
		conn.Close()
		return nil
	}
	m.conn = conn
	m.connected = true
	m.attempts = 0
	first := !m.everConnected
	m.everConnected = true
	stop := make(chan struct{})
	m.keepaliveStop = stop
	m.mu.Unlock()

	go m.readPump(conn)
	go m.keepalive(conn, stop)

	if isReconnect && !first {
		metrics.RecordReconnect()
		m.logger.Info("Reconnected to ARI event stream")
		m.bus.Emit(EventReconnected, Notification{Type: EventReconnected}, nil)
	} else {
		m.logger.WithFields(logging.Fields{
			"application": m.opts.Application,
		}).Info("Connected to ARI event stream")
		m.bus.Emit(EventConnected, Notification{Type: EventConnected}, nil)
	}
	return nil
}

// readPump reads frames until the connection fails. Malformed frames are
// logged and dropped without affecting the connection.
func (m *Manager) readPump(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			m.handleClose(conn, err)
			return
		}
		ev, err := events.Decode(data)
		if err != nil {
			metrics.RecordFrameDropped()
			m.logger.WithError(err).Warn("Dropping unparseable event frame")
			continue
		}
		metrics.RecordEventReceived(ev.Type)
		m.bus.Emit(EventMessage, Notification{Type: EventMessage, Event: ev}, nil)
	}
}

// keepalive sends a ping every PingInterval and arms a pong-timeout timer.
// An unanswered probe forcibly closes the socket, which sends the read
// pump through the reconnect path.
func (m *Manager) keepalive(conn *websocket.Conn, stop chan struct{}) {
	ticker := time.NewTicker(m.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.mu.Lock()
			if m.conn != conn || !m.connected {
				m.mu.Unlock()
				return
			}
			if m.pongTimer == nil {
				m.pongTimer = time.AfterFunc(m.opts.PingTimeout, func() {
					m.logger.Warn("Keepalive probe unanswered, terminating socket")
					conn.Close()
				})
			}
			m.mu.Unlock()

			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				m.logger.WithError(err).Warn("Failed to send keepalive probe")
				conn.Close()
				return
			}
		}
	}
}

// stopKeepaliveLocked cancels the keepalive loop and any pending
// pong-timeout timer. Caller holds m.mu.
func (m *Manager) stopKeepaliveLocked() {
	if m.keepaliveStop != nil {
		close(m.keepaliveStop)
		m.keepaliveStop = nil
	}
	if m.pongTimer != nil {
		m.pongTimer.Stop()
		m.pongTimer = nil
	}
}

// handleClose runs when the read pump observes a connection failure or
// close. Intentional closes emit the terminal disconnected notification;
// unexpected ones additionally schedule a reconnect when enabled.
func (m *Manager) handleClose(conn *websocket.Conn, err error) {
	m.mu.Lock()
	if m.conn != conn {
		// A newer connection already replaced this one.
		m.mu.Unlock()
		return
	}
	m.conn = nil
	m.connected = false
	m.stopKeepaliveLocked()
	intentional := m.intentional
	m.mu.Unlock()

	conn.Close()

	if intentional {
		m.bus.Emit(EventDisconnected, Notification{Type: EventDisconnected, Intentional: true}, nil)
		return
	}

	if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		m.logger.WithError(err).Warn("Event stream connection lost")
	}
	m.bus.Emit(EventDisconnected, Notification{Type: EventDisconnected, Err: err}, nil)

	if m.opts.Reconnect {
		m.scheduleReconnect()
	}
}

// scheduleReconnect schedules exactly one reconnect attempt; the
// reconnecting flag prevents overlapping cycles.
func (m *Manager) scheduleReconnect() {
	m.mu.Lock()
	if m.intentional || m.reconnecting {
		m.mu.Unlock()
		return
	}
	m.reconnecting = true
	attempt := m.attempts
	delay := m.backoffDelay(attempt)
	m.attempts++
	m.reconnectTimer = time.AfterFunc(delay, m.attemptReconnect)
	m.mu.Unlock()

	m.logger.WithFields(logging.Fields{
		"attempt": attempt,
		"delay":   delay.String(),
	}).Info("Scheduling event stream reconnect")
	m.bus.Emit(EventReconnecting, Notification{Type: EventReconnecting, Attempt: attempt, Delay: delay}, nil)
}

func (m *Manager) attemptReconnect() {
	m.mu.Lock()
	m.reconnecting = false
	m.reconnectTimer = nil
	if m.intentional {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	if err := m.dial(context.Background(), true); err != nil {
		m.logger.WithError(err).Warn("Reconnect attempt failed")
		m.scheduleReconnect()
	}
}

// backoffDelay computes interval × multiplier^attempt capped at the
// configured maximum.
func (m *Manager) backoffDelay(attempt int) time.Duration {
	delay := time.Duration(float64(m.opts.ReconnectInterval) * math.Pow(m.opts.BackoffMultiplier, float64(attempt)))
	if delay > m.opts.MaxReconnectInterval {
		delay = m.opts.MaxReconnectInterval
	}
	return delay
}
