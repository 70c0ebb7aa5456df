package transport

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/PerMoeller/asterisk-ari/events"
	"github.com/PerMoeller/asterisk-ari/testutil"
)

func TestBackoffDelaySequence(t *testing.T) {
	m := NewManager(DefaultOptions())

	want := []time.Duration{
		1000 * time.Millisecond,
		1500 * time.Millisecond,
		2250 * time.Millisecond,
		3375 * time.Millisecond,
	}
	for attempt, expected := range want {
		if got := m.backoffDelay(attempt); got != expected {
			t.Errorf("Attempt %d: expected %v, got %v", attempt, expected, got)
		}
	}
	if got := m.backoffDelay(50); got != 30000*time.Millisecond {
		t.Errorf("Expected cap at 30s, got %v", got)
	}
}

func TestStreamURL(t *testing.T) {
	opts := DefaultOptions()
	opts.URL = "http://pbx.example.com:8088"
	opts.Username = "ari"
	opts.Password = "secret"
	opts.Application = "my-app"
	opts.SubscribeAll = true
	m := NewManager(opts)

	u, err := m.streamURL()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(u, "ws://pbx.example.com:8088/ari/events?") {
		t.Errorf("Unexpected stream URL: %s", u)
	}
	for _, part := range []string{"app=my-app", "api_key=ari%3Asecret", "subscribeAll=true"} {
		if !strings.Contains(u, part) {
			t.Errorf("Stream URL missing %q: %s", part, u)
		}
	}

	opts.URL = "https://pbx.example.com:8089"
	m = NewManager(opts)
	u, err = m.streamURL()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(u, "wss://") {
		t.Errorf("https base must upgrade to wss, got %s", u)
	}
}

func testOptions(serverURL string) Options {
	opts := DefaultOptions()
	opts.URL = serverURL
	opts.Username = "ari"
	opts.Password = "secret"
	opts.Application = "test-app"
	opts.ReconnectInterval = 10 * time.Millisecond
	opts.MaxReconnectInterval = 50 * time.Millisecond
	return opts
}

func TestConnectAndReceiveEvents(t *testing.T) {
	server := testutil.NewMockARIServer("")
	defer server.Close()

	m := NewManager(testOptions(server.URL()))
	received := make(chan *events.Event, 8)
	m.On(EventMessage, func(n Notification, _ any) {
		received <- n.Event
	})

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer m.Close()

	if !m.Connected() {
		t.Fatal("Expected connected state after Connect")
	}

	server.Push(map[string]any{
		"type":    "ChannelStateChange",
		"channel": map[string]any{"id": "c1", "state": "Up"},
	})

	select {
	case ev := <-received:
		if ev.Type != events.TypeChannelStateChange {
			t.Errorf("Expected ChannelStateChange, got %s", ev.Type)
		}
		if ev.Channel == nil || ev.Channel.ID != "c1" {
			t.Errorf("Channel reference missing: %+v", ev.Channel)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for event")
	}
}

func TestMalformedFrameDropped(t *testing.T) {
	server := testutil.NewMockARIServer("")
	defer server.Close()

	m := NewManager(testOptions(server.URL()))
	received := make(chan *events.Event, 8)
	m.On(EventMessage, func(n Notification, _ any) {
		received <- n.Event
	})

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer m.Close()

	server.PushRaw([]byte(`{{{not json`))
	server.PushRaw([]byte(`{"no_type": true}`))
	server.Push(map[string]any{"type": "StasisEnd", "channel": map[string]any{"id": "c1"}})

	select {
	case ev := <-received:
		if ev.Type != events.TypeStasisEnd {
			t.Errorf("Expected only the valid frame, got %s", ev.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Connection must survive malformed frames")
	}
}

func TestReconnectAfterDrop(t *testing.T) {
	server := testutil.NewMockARIServer("")
	defer server.Close()

	m := NewManager(testOptions(server.URL()))
	reconnecting := make(chan Notification, 8)
	reconnected := make(chan struct{}, 1)
	m.On(EventReconnecting, func(n Notification, _ any) {
		reconnecting <- n
	})
	m.On(EventReconnected, func(n Notification, _ any) {
		select {
		case reconnected <- struct{}{}:
		default:
		}
	})

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer m.Close()

	server.DropConnections()

	select {
	case n := <-reconnecting:
		if n.Attempt != 0 {
			t.Errorf("First reconnect attempt must be 0, got %d", n.Attempt)
		}
		if n.Delay != 10*time.Millisecond {
			t.Errorf("First delay must equal the reconnect interval, got %v", n.Delay)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Expected a reconnecting notification after drop")
	}

	select {
	case <-reconnected:
	case <-time.After(2 * time.Second):
		t.Fatal("Expected a reconnected notification")
	}
	if !server.WaitForConnection(2 * time.Second) {
		t.Fatal("Server never saw the new connection")
	}

	// A successful open resets the attempt counter; a second drop starts
	// the backoff sequence over.
	server.DropConnections()
	select {
	case n := <-reconnecting:
		if n.Attempt != 0 || n.Delay != 10*time.Millisecond {
			t.Errorf("Backoff must reset after a successful open, got attempt %d delay %v", n.Attempt, n.Delay)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Expected a reconnecting notification after second drop")
	}
}

func TestNoReconnectAfterClose(t *testing.T) {
	server := testutil.NewMockARIServer("")
	defer server.Close()

	m := NewManager(testOptions(server.URL()))
	disconnected := make(chan Notification, 4)
	m.On(EventDisconnected, func(n Notification, _ any) {
		disconnected <- n
	})
	reconnecting := make(chan Notification, 4)
	m.On(EventReconnecting, func(n Notification, _ any) {
		reconnecting <- n
	})

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	select {
	case n := <-disconnected:
		if !n.Intentional {
			t.Error("Close must report an intentional disconnect")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Expected a disconnected notification")
	}

	// Give a would-be reconnect time to fire.
	time.Sleep(100 * time.Millisecond)
	if m.Connected() {
		t.Error("No reconnection may happen after Close")
	}
	select {
	case <-reconnecting:
		t.Error("No reconnecting notification may fire after Close")
	default:
	}
	if server.ConnectionCount() != 0 {
		t.Errorf("Expected 0 connections after Close, got %d", server.ConnectionCount())
	}
}

func TestConnectFailureReturned(t *testing.T) {
	server := testutil.NewMockARIServer("")
	server.RefuseUpgrade = true
	defer server.Close()

	m := NewManager(testOptions(server.URL()))
	if err := m.Connect(context.Background()); err == nil {
		t.Fatal("Expected handshake failure")
	}
	if m.Connected() {
		t.Error("Manager must not report connected after a failed dial")
	}
}
