package ari

import (
	"time"

	"github.com/PerMoeller/asterisk-ari/config"
	"github.com/PerMoeller/asterisk-ari/logging"
	"github.com/PerMoeller/asterisk-ari/queue"
)

// Options configures a session. Build it from DefaultOptions or
// OptionsFromEnv and override what you need; note that a zero-value
// Options has automatic reconnection disabled.
type Options struct {
	// URL is the HTTP base address of the ARI server, e.g.
	// "http://pbx.example.com:8088".
	URL      string
	Username string
	Password string

	// Application is the Stasis application name this session subscribes
	// as.
	Application string

	// SubscribeAll delivers events for all resources instead of only
	// those subscribed to the application.
	SubscribeAll bool

	// Reconnect enables automatic reconnection of the event stream.
	Reconnect            bool
	ReconnectInterval    time.Duration
	MaxReconnectInterval time.Duration
	BackoffMultiplier    float64

	PingInterval time.Duration
	PingTimeout  time.Duration

	// RequestTimeout bounds each REST call.
	RequestTimeout time.Duration

	// Queue overrides the request queue configuration.
	Queue *queue.Config

	Logger logging.Logger
}

// DefaultOptions returns the documented defaults: reconnect on, 1s initial
// reconnect interval, 30s cap, 1.5 multiplier, 30s ping interval, 5s ping
// timeout, 30s request timeout.
func DefaultOptions() Options {
	return Options{
		Reconnect:            true,
		ReconnectInterval:    1000 * time.Millisecond,
		MaxReconnectInterval: 30000 * time.Millisecond,
		BackoffMultiplier:    1.5,
		PingInterval:         30000 * time.Millisecond,
		PingTimeout:          5000 * time.Millisecond,
		RequestTimeout:       30000 * time.Millisecond,
	}
}

// OptionsFromEnv builds Options from ARI_* environment variables on top of
// the defaults.
func OptionsFromEnv() Options {
	opts := DefaultOptions()
	opts.URL = config.GetEnv("ARI_URL", "http://localhost:8088")
	opts.Username = config.GetEnv("ARI_USERNAME", "")
	opts.Password = config.GetEnv("ARI_PASSWORD", "")
	opts.Application = config.GetEnv("ARI_APPLICATION", "")
	opts.SubscribeAll = config.GetEnvBool("ARI_SUBSCRIBE_ALL", false)
	opts.Reconnect = config.GetEnvBool("ARI_RECONNECT", true)
	opts.ReconnectInterval = config.GetEnvDuration("ARI_RECONNECT_INTERVAL", opts.ReconnectInterval)
	opts.MaxReconnectInterval = config.GetEnvDuration("ARI_MAX_RECONNECT_INTERVAL", opts.MaxReconnectInterval)
	opts.BackoffMultiplier = config.GetEnvFloat("ARI_BACKOFF_MULTIPLIER", opts.BackoffMultiplier)
	opts.PingInterval = config.GetEnvDuration("ARI_PING_INTERVAL", opts.PingInterval)
	opts.PingTimeout = config.GetEnvDuration("ARI_PING_TIMEOUT", opts.PingTimeout)
	opts.RequestTimeout = config.GetEnvDuration("ARI_REQUEST_TIMEOUT", opts.RequestTimeout)
	return opts
}

func normalizeOptions(opts Options) Options {
	def := DefaultOptions()
	if opts.ReconnectInterval <= 0 {
		opts.ReconnectInterval = def.ReconnectInterval
	}
	if opts.MaxReconnectInterval <= 0 {
		opts.MaxReconnectInterval = def.MaxReconnectInterval
	}
	if opts.BackoffMultiplier <= 0 {
		opts.BackoffMultiplier = def.BackoffMultiplier
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = def.PingInterval
	}
	if opts.PingTimeout <= 0 {
		opts.PingTimeout = def.PingTimeout
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = def.RequestTimeout
	}
	return opts
}
