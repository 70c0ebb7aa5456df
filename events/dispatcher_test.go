package events

import (
	"testing"
)

func TestDispatcherExactDelivery(t *testing.T) {
	d := NewDispatcher[string](nil)

	var got []string
	d.On("ChannelDtmfReceived", func(ev string, instance any) {
		got = append(got, ev)
	})

	d.Emit("ChannelDtmfReceived", "first", nil)
	d.Emit("ChannelStateChange", "other", nil)
	d.Emit("ChannelDtmfReceived", "second", nil)

	if len(got) != 2 || got[0] != "first" || got[1] != "second" {
		t.Errorf("Expected [first second], got %v", got)
	}
}

func TestDispatcherWildcardReceivesEveryType(t *testing.T) {
	d := NewDispatcher[string](nil)

	var types []string
	d.On(Any, func(ev string, instance any) {
		if instance != nil {
			t.Errorf("Wildcard handler must receive nil instance, got %v", instance)
		}
		types = append(types, ev)
	})

	d.Emit("StasisStart", "a", "some-proxy")
	d.Emit("ChannelDestroyed", "b", "some-proxy")

	if len(types) != 2 {
		t.Fatalf("Expected 2 deliveries, got %d", len(types))
	}
}

func TestDispatcherExactBeforeWildcard(t *testing.T) {
	d := NewDispatcher[string](nil)

	var order []string
	d.On(Any, func(ev string, instance any) {
		order = append(order, "wildcard")
	})
	d.On("StasisStart", func(ev string, instance any) {
		order = append(order, "exact")
	})

	d.Emit("StasisStart", "ev", nil)

	if len(order) != 2 || order[0] != "exact" || order[1] != "wildcard" {
		t.Errorf("Expected exact before wildcard, got %v", order)
	}

	// A type with no exact listener reaches only the wildcard.
	order = nil
	d.Emit("StasisEnd", "ev", nil)
	if len(order) != 1 || order[0] != "wildcard" {
		t.Errorf("Expected only the wildcard, got %v", order)
	}
}

func TestDispatcherInstanceArgument(t *testing.T) {
	d := NewDispatcher[string](nil)

	proxy := &struct{ id string }{id: "c1"}
	var received any
	d.On("StasisStart", func(ev string, instance any) {
		received = instance
	})

	d.Emit("StasisStart", "ev", proxy)
	if received != proxy {
		t.Errorf("Expected instance %v, got %v", proxy, received)
	}
}

func TestDispatcherOnce(t *testing.T) {
	d := NewDispatcher[string](nil)

	calls := 0
	d.Once("StasisEnd", func(ev string, instance any) {
		calls++
	})

	d.Emit("StasisEnd", "a", nil)
	d.Emit("StasisEnd", "b", nil)

	if calls != 1 {
		t.Errorf("Expected once handler to run exactly once, ran %d times", calls)
	}
	if d.ListenerCount("StasisEnd") != 0 {
		t.Errorf("Expected once handler removed, count %d", d.ListenerCount("StasisEnd"))
	}
}

func TestSubscriptionRemove(t *testing.T) {
	d := NewDispatcher[string](nil)

	calls := 0
	sub := d.On("ChannelHangupRequest", func(ev string, instance any) {
		calls++
	})

	d.Emit("ChannelHangupRequest", "a", nil)
	sub.Remove()
	sub.Remove() // second removal is a no-op
	d.Emit("ChannelHangupRequest", "b", nil)

	if calls != 1 {
		t.Errorf("Expected 1 call after removal, got %d", calls)
	}
}

func TestRemoveAllByType(t *testing.T) {
	d := NewDispatcher[string](nil)

	d.On("A", func(string, any) {})
	d.On("A", func(string, any) {})
	d.On("B", func(string, any) {})
	d.On(Any, func(string, any) {})

	d.RemoveAll("A")
	if d.ListenerCount("A") != 0 {
		t.Errorf("Expected A cleared, count %d", d.ListenerCount("A"))
	}
	if d.ListenerCount("B") != 1 || d.ListenerCount(Any) != 1 {
		t.Error("RemoveAll(A) must not touch other types")
	}

	d.RemoveAll()
	if d.ListenerCount("B") != 0 || d.ListenerCount(Any) != 0 {
		t.Error("RemoveAll() must clear everything")
	}
}

func TestPanickingHandlerIsolated(t *testing.T) {
	d := NewDispatcher[string](nil)

	var after int
	d.On("StasisStart", func(ev string, instance any) {
		panic("handler bug")
	})
	d.On("StasisStart", func(ev string, instance any) {
		after++
	})

	d.Emit("StasisStart", "ev", nil)
	if after != 1 {
		t.Errorf("Handler after panic must still run, ran %d times", after)
	}

	// The dispatcher itself must stay usable.
	d.Emit("StasisStart", "ev", nil)
	if after != 2 {
		t.Errorf("Dispatcher unusable after panic, calls %d", after)
	}
}

func TestHandlerAddedDuringEmitNotInvoked(t *testing.T) {
	d := NewDispatcher[string](nil)

	var nested int
	d.On("Dial", func(ev string, instance any) {
		d.On("Dial", func(string, any) {
			nested++
		})
	})

	d.Emit("Dial", "ev", nil)
	if nested != 0 {
		t.Errorf("Handler added during emit must not see the same event, ran %d times", nested)
	}
	d.Emit("Dial", "ev", nil)
	if nested != 1 {
		t.Errorf("Handler added during emit must see later events, ran %d times", nested)
	}
}
