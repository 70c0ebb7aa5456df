package ari

import (
	"context"
	"fmt"
	"sync"

	"github.com/PerMoeller/asterisk-ari/capability"
	"github.com/PerMoeller/asterisk-ari/events"
	"github.com/PerMoeller/asterisk-ari/logging"
	"github.com/PerMoeller/asterisk-ari/queue"
	"github.com/PerMoeller/asterisk-ari/rest"
	"github.com/PerMoeller/asterisk-ari/transport"
)

// Client is the session facade: it owns the REST client, the event-stream
// transport, the request queue, the capability set and the per-kind entity
// registries. Multiple independent sessions may coexist in one process.
type Client struct {
	opts   Options
	logger logging.Logger

	rest      *rest.Client
	queue     *queue.Queue
	transport *transport.Manager
	bus       *events.Dispatcher[*events.Event]
	caps      *capability.Set
	res       *resources

	mu         sync.Mutex
	channels   map[string]*Channel
	bridges    map[string]*Bridge
	playbacks  map[string]*Playback
	recordings map[string]*LiveRecording
}

// Connect bootstraps a session: it detects the server version over REST,
// opens the event stream and wires inbound events into the registries and
// the public event bus. A handshake failure on this first connect is
// returned to the caller and not retried.
func Connect(ctx context.Context, opts Options) (*Client, error) {
	opts = normalizeOptions(opts)
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewLogger()
	}

	restClient := rest.New(rest.Config{
		BaseURL:  opts.URL,
		Username: opts.Username,
		Password: opts.Password,
		Timeout:  opts.RequestTimeout,
		Logger:   logger,
		// The request queue is the only layer that retries; see queue.
		RetryConfig: &rest.RetryConfig{MaxRetries: 0},
	})

	queueCfg := queue.DefaultConfig()
	if opts.Queue != nil {
		queueCfg = *opts.Queue
	}
	if queueCfg.Name == "" || queueCfg.Name == "default" {
		queueCfg.Name = opts.Application
	}
	queueCfg.Logger = logger

	c := &Client{
		opts:       opts,
		logger:     logger,
		rest:       restClient,
		queue:      queue.New(queueCfg),
		bus:        events.NewDispatcher[*events.Event](logger),
		channels:   make(map[string]*Channel),
		bridges:    make(map[string]*Bridge),
		playbacks:  make(map[string]*Playback),
		recordings: make(map[string]*LiveRecording),
	}
	c.res = &resources{client: c}

	var info events.AsteriskInfo
	if err := restClient.Get(ctx, "/asterisk/info", nil, &info); err != nil {
		return nil, fmt.Errorf("failed to detect server version: %w", err)
	}
	version, err := capability.ParseVersion(info.System.Version)
	if err != nil {
		logger.WithError(err).WithFields(logging.Fields{
			"reported": info.System.Version,
		}).Warn("Could not parse server version, capability gating disabled")
	} else {
		c.caps = capability.FromVersion(version)
		logger.WithFields(logging.Fields{
			"version": version.String(),
		}).Info("Detected Asterisk version")
	}

	c.transport = transport.NewManager(transport.Options{
		URL:                  opts.URL,
		Username:             opts.Username,
		Password:             opts.Password,
		Application:          opts.Application,
		SubscribeAll:         opts.SubscribeAll,
		Reconnect:            opts.Reconnect,
		ReconnectInterval:    opts.ReconnectInterval,
		MaxReconnectInterval: opts.MaxReconnectInterval,
		BackoffMultiplier:    opts.BackoffMultiplier,
		PingInterval:         opts.PingInterval,
		PingTimeout:          opts.PingTimeout,
		Logger:               logger,
	})
	c.transport.On(transport.EventMessage, func(n transport.Notification, _ any) {
		c.dispatch(n.Event)
	})

	if err := c.transport.Connect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// dispatch routes one inbound event to its entity proxy, then delivers it
// to the global listeners with the routed proxy as the convenience
// argument. An event referencing an identifier nobody registered yet, the
// StasisStart of an incoming call being the common case, creates and
// registers the proxy on the spot.
func (c *Client) dispatch(e *events.Event) {
	if e == nil {
		return
	}
	instance := c.route(e, CreateOnMiss)
	c.bus.Emit(e.Type, e, instance)
}

// On subscribes a handler to a server event type, or to every event with
// events.Any. The handler's second argument is the proxy of the event's
// primary entity, created on first sight when necessary; it is nil only
// for event types that carry no primary reference.
func (c *Client) On(eventType string, h events.Handler[*events.Event]) *events.Subscription[*events.Event] {
	return c.bus.On(eventType, h)
}

// Once subscribes a handler that is removed after its first invocation.
func (c *Client) Once(eventType string, h events.Handler[*events.Event]) *events.Subscription[*events.Event] {
	return c.bus.Once(eventType, h)
}

// RemoveAllListeners clears the listeners of the given event types, or all
// listeners when called without arguments.
func (c *Client) RemoveAllListeners(eventTypes ...string) {
	c.bus.RemoveAll(eventTypes...)
}

// Transport exposes the socket manager, mainly for lifecycle notification
// subscriptions (reconnecting, disconnected, ...).
func (c *Client) Transport() *transport.Manager {
	return c.transport
}

// Queue exposes the request queue for observability and manual control.
func (c *Client) Queue() *queue.Queue {
	return c.queue
}

// Capabilities returns the detected capability set, or nil when version
// detection failed.
func (c *Client) Capabilities() *capability.Set {
	return c.caps
}

// REST exposes the low-level REST client.
func (c *Client) REST() *rest.Client {
	return c.rest
}

// Stop disconnects the event stream and clears all entity registries.
// Operations already in flight are not rejected.
func (c *Client) Stop() error {
	err := c.transport.Close()

	c.mu.Lock()
	c.channels = make(map[string]*Channel)
	c.bridges = make(map[string]*Bridge)
	c.playbacks = make(map[string]*Playback)
	c.recordings = make(map[string]*LiveRecording)
	c.mu.Unlock()

	return err
}

// Reconnect closes and reopens the event stream, preserving registry
// contents.
func (c *Client) Reconnect(ctx context.Context) error {
	if err := c.transport.Close(); err != nil {
		c.logger.WithError(err).Debug("Error closing event stream before reconnect")
	}
	return c.transport.Connect(ctx)
}

// validateMethod gates version-dependent methods; a nil capability set
// (version detection failed) gates nothing.
func (c *Client) validateMethod(method string) error {
	if c.caps == nil {
		return nil
	}
	return c.caps.ValidateMethod(method)
}
