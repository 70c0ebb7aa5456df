package ari

import (
	"testing"
	"time"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	if !opts.Reconnect {
		t.Error("Reconnect must default to on")
	}
	if opts.ReconnectInterval != time.Second {
		t.Errorf("Expected 1s reconnect interval, got %v", opts.ReconnectInterval)
	}
	if opts.MaxReconnectInterval != 30*time.Second {
		t.Errorf("Expected 30s reconnect cap, got %v", opts.MaxReconnectInterval)
	}
	if opts.BackoffMultiplier != 1.5 {
		t.Errorf("Expected multiplier 1.5, got %v", opts.BackoffMultiplier)
	}
	if opts.PingInterval != 30*time.Second || opts.PingTimeout != 5*time.Second {
		t.Errorf("Unexpected keepalive defaults: %v / %v", opts.PingInterval, opts.PingTimeout)
	}
	if opts.RequestTimeout != 30*time.Second {
		t.Errorf("Expected 30s request timeout, got %v", opts.RequestTimeout)
	}
}

func TestOptionsFromEnv(t *testing.T) {
	t.Setenv("ARI_URL", "http://pbx.internal:8088")
	t.Setenv("ARI_USERNAME", "ari")
	t.Setenv("ARI_PASSWORD", "secret")
	t.Setenv("ARI_APPLICATION", "my-app")
	t.Setenv("ARI_RECONNECT_INTERVAL", "2s")
	t.Setenv("ARI_SUBSCRIBE_ALL", "true")

	opts := OptionsFromEnv()
	if opts.URL != "http://pbx.internal:8088" || opts.Username != "ari" || opts.Password != "secret" {
		t.Errorf("Environment not applied: %+v", opts)
	}
	if opts.Application != "my-app" {
		t.Errorf("Expected application my-app, got %s", opts.Application)
	}
	if opts.ReconnectInterval != 2*time.Second {
		t.Errorf("Expected 2s reconnect interval, got %v", opts.ReconnectInterval)
	}
	if !opts.SubscribeAll {
		t.Error("Expected SubscribeAll true")
	}
}
