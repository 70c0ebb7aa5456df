// Package testutil provides a mock Asterisk REST Interface server for
// exercising the client against controlled REST responses and a real
// WebSocket event stream.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/PerMoeller/asterisk-ari/logging"
)

// RecordedRequest captures one REST request received by the mock server.
type RecordedRequest struct {
	Method string
	Path   string
	Query  string
	Body   []byte
}

// MockARIServer serves /ari REST paths and the /ari/events WebSocket from
// an httptest server. REST behavior is customized per method+path; events
// are pushed to every connected stream.
type MockARIServer struct {
	server   *httptest.Server
	upgrader websocket.Upgrader
	logger   logging.Logger

	connMutex   sync.RWMutex
	connections []*mockStream

	handlerMutex sync.RWMutex
	handlers     map[string]http.HandlerFunc

	reqMutex sync.Mutex
	requests []RecordedRequest

	// Version reported by the default /ari/asterisk/info handler.
	Version string
	// RefuseUpgrade makes the event endpoint reject connections.
	RefuseUpgrade bool
}

type mockStream struct {
	conn   *websocket.Conn
	send   chan []byte
	closed bool
	mutex  sync.Mutex
}

// NewMockARIServer starts a mock server reporting the given Asterisk
// version (empty defaults to "18.9.0").
func NewMockARIServer(version string) *MockARIServer {
	if version == "" {
		version = "18.9.0"
	}
	mock := &MockARIServer{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger:   logging.NewLogger(),
		handlers: make(map[string]http.HandlerFunc),
		Version:  version,
	}
	mock.server = httptest.NewServer(http.HandlerFunc(mock.handle))
	return mock
}

// URL returns the server's base HTTP URL.
func (m *MockARIServer) URL() string {
	return m.server.URL
}

// Close drops all event streams and shuts the server down.
func (m *MockARIServer) Close() {
	m.DropConnections()
	m.server.Close()
}

// Handle installs a REST handler for an exact method and path under /ari,
// e.g. Handle("POST", "/channels/c1/answer", fn).
func (m *MockARIServer) Handle(method, path string, fn http.HandlerFunc) {
	m.handlerMutex.Lock()
	defer m.handlerMutex.Unlock()
	m.handlers[method+" "+path] = fn
}

// HandleJSON installs a REST handler answering with a fixed status and
// JSON-encoded body.
func (m *MockARIServer) HandleJSON(method, path string, status int, body any) {
	m.Handle(method, path, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if body != nil {
			_ = json.NewEncoder(w).Encode(body) //nolint:errcheck // test utility
		}
	})
}

// Requests returns a copy of all REST requests received so far.
func (m *MockARIServer) Requests() []RecordedRequest {
	m.reqMutex.Lock()
	defer m.reqMutex.Unlock()
	out := make([]RecordedRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// Push sends one event to every connected stream.
func (m *MockARIServer) Push(event map[string]any) {
	data, err := json.Marshal(event)
	if err != nil {
		m.logger.WithError(err).Error("Failed to marshal mock event")
		return
	}
	m.connMutex.RLock()
	defer m.connMutex.RUnlock()
	for _, stream := range m.connections {
		stream.write(data)
	}
}

// PushRaw sends a raw frame to every connected stream, valid JSON or not.
func (m *MockARIServer) PushRaw(data []byte) {
	m.connMutex.RLock()
	defer m.connMutex.RUnlock()
	for _, stream := range m.connections {
		stream.write(data)
	}
}

// DropConnections force-closes every event stream without closing the
// server, simulating a network drop.
func (m *MockARIServer) DropConnections() {
	m.connMutex.Lock()
	streams := m.connections
	m.connections = nil
	m.connMutex.Unlock()
	for _, stream := range streams {
		stream.close()
	}
}

// ConnectionCount returns the number of live event streams.
func (m *MockARIServer) ConnectionCount() int {
	m.connMutex.RLock()
	defer m.connMutex.RUnlock()
	return len(m.connections)
}

// WaitForConnection blocks until a stream connects or the timeout expires.
func (m *MockARIServer) WaitForConnection(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if m.ConnectionCount() > 0 {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func (m *MockARIServer) handle(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/ari")
	if path == "/events" {
		m.handleEvents(w, r)
		return
	}

	var body []byte
	if r.Body != nil {
		buf := make([]byte, 1<<16)
		n, _ := r.Body.Read(buf)
		body = buf[:n]
	}
	m.reqMutex.Lock()
	m.requests = append(m.requests, RecordedRequest{
		Method: r.Method,
		Path:   path,
		Query:  r.URL.RawQuery,
		Body:   body,
	})
	m.reqMutex.Unlock()

	m.handlerMutex.RLock()
	fn, ok := m.handlers[r.Method+" "+path]
	m.handlerMutex.RUnlock()
	if ok {
		fn(w, r)
		return
	}

	if r.Method == http.MethodGet && path == "/asterisk/info" {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck // test utility
			"system": map[string]any{"version": m.Version},
		})
		return
	}

	http.NotFound(w, r)
}

func (m *MockARIServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	if m.RefuseUpgrade {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logger.WithError(err).Error("Failed to upgrade event stream")
		return
	}

	stream := &mockStream{
		conn: conn,
		send: make(chan []byte, 64),
	}
	m.connMutex.Lock()
	m.connections = append(m.connections, stream)
	m.connMutex.Unlock()

	go stream.writePump()
	go stream.readPump(m)
}

func (s *mockStream) write(data []byte) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.closed {
		return
	}
	select {
	case s.send <- data:
	default:
		// Channel full, drop frame
	}
}

func (s *mockStream) close() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if !s.closed {
		s.closed = true
		close(s.send)
		s.conn.Close()
	}
}

func (s *mockStream) writePump() {
	for data := range s.send {
		_ = s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second)) //nolint:errcheck // test utility
		if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}

func (s *mockStream) readPump(m *MockARIServer) {
	defer func() {
		m.connMutex.Lock()
		for i, stream := range m.connections {
			if stream == s {
				m.connections = append(m.connections[:i], m.connections[i+1:]...)
				break
			}
		}
		m.connMutex.Unlock()
		s.close()
	}()

	s.conn.SetPingHandler(func(appData string) error {
		return s.conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(time.Second))
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}
