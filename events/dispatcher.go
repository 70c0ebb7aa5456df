package events

import (
	"sync"

	"github.com/PerMoeller/asterisk-ari/logging"
	"github.com/PerMoeller/asterisk-ari/metrics"
)

// Any subscribes a handler to every emitted type.
const Any = "*"

// Handler receives an emitted value plus an optional instance argument
// (the proxy of the event's primary entity for facade-level dispatch, or
// nil). Wildcard handlers always receive a nil instance.
type Handler[T any] func(ev T, instance any)

// Subscription identifies one registered handler. Handlers are removed
// through their subscription since Go functions are not comparable.
type Subscription[T any] struct {
	d         *Dispatcher[T]
	eventType string
	handler   Handler[T]
	once      bool
	removed   bool
}

// Remove unregisters the subscription. Removing twice is a no-op.
func (s *Subscription[T]) Remove() {
	s.d.Off(s)
}

// Dispatcher is a typed publish/subscribe hub with per-type subscriptions
// plus a wildcard list, kept as two explicit collections. Delivery within
// one Emit call is synchronous: exact-type handlers in insertion order,
// then wildcard handlers in insertion order. No ordering is promised
// between the two sets across emits.
type Dispatcher[T any] struct {
	mu       sync.Mutex
	exact    map[string][]*Subscription[T]
	wildcard []*Subscription[T]
	logger   logging.Logger
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher[T any](logger logging.Logger) *Dispatcher[T] {
	if logger == nil {
		logger = logging.NewLoggerWithComponent("dispatcher")
	}
	return &Dispatcher[T]{
		exact:  make(map[string][]*Subscription[T]),
		logger: logger,
	}
}

// On registers a handler for an exact event type, or for every type when
// eventType is Any.
func (d *Dispatcher[T]) On(eventType string, h Handler[T]) *Subscription[T] {
	return d.subscribe(eventType, h, false)
}

// Once registers a handler that is removed after its first invocation.
func (d *Dispatcher[T]) Once(eventType string, h Handler[T]) *Subscription[T] {
	return d.subscribe(eventType, h, true)
}

func (d *Dispatcher[T]) subscribe(eventType string, h Handler[T], once bool) *Subscription[T] {
	sub := &Subscription[T]{d: d, eventType: eventType, handler: h, once: once}
	d.mu.Lock()
	defer d.mu.Unlock()
	if eventType == Any {
		d.wildcard = append(d.wildcard, sub)
	} else {
		d.exact[eventType] = append(d.exact[eventType], sub)
	}
	return sub
}

// Off removes a subscription. Unknown or already-removed subscriptions are
// ignored.
func (d *Dispatcher[T]) Off(sub *Subscription[T]) {
	if sub == nil || sub.d != d {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.removeLocked(sub)
}

func (d *Dispatcher[T]) removeLocked(sub *Subscription[T]) {
	if sub.removed {
		return
	}
	sub.removed = true
	if sub.eventType == Any {
		d.wildcard = deleteSub(d.wildcard, sub)
		return
	}
	subs := deleteSub(d.exact[sub.eventType], sub)
	if len(subs) == 0 {
		delete(d.exact, sub.eventType)
	} else {
		d.exact[sub.eventType] = subs
	}
}

func deleteSub[T any](subs []*Subscription[T], sub *Subscription[T]) []*Subscription[T] {
	for i, s := range subs {
		if s == sub {
			return append(subs[:i], subs[i+1:]...)
		}
	}
	return subs
}

// RemoveAll clears the listeners of the given types. With no arguments it
// clears every exact-type listener and the wildcard list.
func (d *Dispatcher[T]) RemoveAll(eventTypes ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(eventTypes) == 0 {
		for _, subs := range d.exact {
			for _, s := range subs {
				s.removed = true
			}
		}
		for _, s := range d.wildcard {
			s.removed = true
		}
		d.exact = make(map[string][]*Subscription[T])
		d.wildcard = nil
		return
	}
	for _, eventType := range eventTypes {
		if eventType == Any {
			for _, s := range d.wildcard {
				s.removed = true
			}
			d.wildcard = nil
			continue
		}
		for _, s := range d.exact[eventType] {
			s.removed = true
		}
		delete(d.exact, eventType)
	}
}

// ListenerCount reports the number of exact-type listeners for a type, or
// the wildcard listener count for Any.
func (d *Dispatcher[T]) ListenerCount(eventType string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if eventType == Any {
		return len(d.wildcard)
	}
	return len(d.exact[eventType])
}

// Emit delivers ev to every exact-type handler with (ev, instance), then
// to every wildcard handler with (ev, nil). A panicking handler is
// recovered and logged; it never prevents delivery to the remaining
// handlers and never propagates to the emitter.
func (d *Dispatcher[T]) Emit(eventType string, ev T, instance any) {
	d.mu.Lock()
	targets := make([]*Subscription[T], 0, len(d.exact[eventType])+len(d.wildcard))
	targets = append(targets, d.exact[eventType]...)
	targets = append(targets, d.wildcard...)
	for _, sub := range targets {
		if sub.once {
			d.removeLocked(sub)
		}
	}
	d.mu.Unlock()

	for _, sub := range targets {
		if sub.eventType == Any {
			d.invoke(eventType, sub.handler, ev, nil)
		} else {
			d.invoke(eventType, sub.handler, ev, instance)
		}
	}
}

func (d *Dispatcher[T]) invoke(eventType string, h Handler[T], ev T, instance any) {
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordHandlerPanic(eventType)
			d.logger.WithFields(logging.Fields{
				"event_type": eventType,
				"panic":      r,
			}).Error("Event handler panicked")
		}
	}()
	h(ev, instance)
}
