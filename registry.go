package ari

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/PerMoeller/asterisk-ari/events"
)

// RoutePolicy states whether routing may create a proxy for an identifier
// that has no registered one yet. The facade routes inbound events with
// CreateOnMiss, so every event carrying a primary reference resolves to a
// live proxy. LookupOnly restricts routing to already-registered proxies.
type RoutePolicy int

const (
	LookupOnly RoutePolicy = iota
	CreateOnMiss
)

// Channel returns the live proxy for the given channel id, creating and
// registering one when none exists. An empty id yields a locally generated
// identifier, to be confirmed by a later create/originate call. The
// construction is purely local.
func (c *Client) Channel(id string) *Channel {
	return c.getOrCreateChannel(id, nil)
}

// Playback returns the live proxy for the given playback id, creating one
// when none exists. An empty id yields a locally generated identifier.
func (c *Client) Playback(id string) *Playback {
	return c.getOrCreatePlayback(id, nil)
}

// LiveRecording returns the live proxy for the given recording name,
// creating one when none exists. An empty name yields a locally generated
// identifier.
func (c *Client) LiveRecording(name string) *LiveRecording {
	return c.getOrCreateRecording(name, nil)
}

// Bridge returns the registered proxy for the given bridge id, or nil.
// Unlike the other kinds, bridges have no local synchronous factory: they
// are acquired through Bridges().Create, which performs the remote
// creation call as part of proxy acquisition. This asymmetry mirrors the
// upstream client and is kept deliberately.
func (c *Client) Bridge(id string) *Bridge {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bridges[id]
}

// Release removes the identifier from its kind's registry, detaching the
// proxy from future routing. Callers still holding the proxy keep a valid
// but unrouted object. Releasing an absent identifier is a no-op; the
// registry never releases proxies on its own, not even on terminal events.
func (c *Client) Release(kind events.Kind, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch kind {
	case events.KindChannel:
		if ch, ok := c.channels[id]; ok {
			ch.dispatcher.RemoveAll()
			delete(c.channels, id)
		}
	case events.KindBridge:
		if b, ok := c.bridges[id]; ok {
			b.dispatcher.RemoveAll()
			delete(c.bridges, id)
		}
	case events.KindPlayback:
		if p, ok := c.playbacks[id]; ok {
			p.dispatcher.RemoveAll()
			delete(c.playbacks, id)
		}
	case events.KindRecording:
		if r, ok := c.recordings[id]; ok {
			r.dispatcher.RemoveAll()
			delete(c.recordings, id)
		}
	}
}

func (c *Client) getOrCreateChannel(id string, initial json.RawMessage) *Channel {
	if id == "" {
		id = extractID(initial)
	}
	if id == "" {
		id = uuid.NewString()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if ch, ok := c.channels[id]; ok {
		ch.update(initial)
		return ch
	}
	ch := newChannel(c, id)
	ch.update(initial)
	c.channels[id] = ch
	return ch
}

func (c *Client) getOrCreateBridge(id string, initial json.RawMessage) *Bridge {
	if id == "" {
		id = extractID(initial)
	}
	if id == "" {
		id = uuid.NewString()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := c.bridges[id]; ok {
		b.update(initial)
		return b
	}
	b := newBridge(c, id)
	b.update(initial)
	c.bridges[id] = b
	return b
}

func (c *Client) getOrCreatePlayback(id string, initial json.RawMessage) *Playback {
	if id == "" {
		id = extractID(initial)
	}
	if id == "" {
		id = uuid.NewString()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.playbacks[id]; ok {
		p.update(initial)
		return p
	}
	p := newPlayback(c, id)
	p.update(initial)
	c.playbacks[id] = p
	return p
}

func (c *Client) getOrCreateRecording(name string, initial json.RawMessage) *LiveRecording {
	if name == "" {
		name = extractName(initial)
	}
	if name == "" {
		name = uuid.NewString()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if r, ok := c.recordings[name]; ok {
		r.update(initial)
		return r
	}
	r := newLiveRecording(c, name)
	r.update(initial)
	c.recordings[name] = r
	return r
}

// route looks up the event's primary entity, merges the server-reported
// fields into the proxy's snapshot and re-emits the event on the proxy's
// scoped listener set with (event, proxy). It returns the routed proxy,
// or nil when the event carries no primary reference or references an
// identifier without a registered proxy under LookupOnly.
func (c *Client) route(e *events.Event, policy RoutePolicy) any {
	ref, ok := events.PrimaryRef(e)
	if !ok {
		return nil
	}

	switch ref.Kind {
	case events.KindChannel:
		ch := c.lookupChannel(ref, policy)
		if ch == nil {
			return nil
		}
		ch.update(ref.Data)
		ch.dispatcher.Emit(e.Type, e, ch)
		return ch
	case events.KindBridge:
		b := c.lookupBridge(ref, policy)
		if b == nil {
			return nil
		}
		b.update(ref.Data)
		b.dispatcher.Emit(e.Type, e, b)
		return b
	case events.KindPlayback:
		p := c.lookupPlayback(ref, policy)
		if p == nil {
			return nil
		}
		p.update(ref.Data)
		p.dispatcher.Emit(e.Type, e, p)
		return p
	case events.KindRecording:
		r := c.lookupRecording(ref, policy)
		if r == nil {
			return nil
		}
		r.update(ref.Data)
		r.dispatcher.Emit(e.Type, e, r)
		return r
	}
	return nil
}

func (c *Client) lookupChannel(ref events.Ref, policy RoutePolicy) *Channel {
	c.mu.Lock()
	ch := c.channels[ref.ID]
	c.mu.Unlock()
	if ch == nil && policy == CreateOnMiss {
		ch = c.getOrCreateChannel(ref.ID, nil)
	}
	return ch
}

func (c *Client) lookupBridge(ref events.Ref, policy RoutePolicy) *Bridge {
	c.mu.Lock()
	b := c.bridges[ref.ID]
	c.mu.Unlock()
	if b == nil && policy == CreateOnMiss {
		b = c.getOrCreateBridge(ref.ID, nil)
	}
	return b
}

func (c *Client) lookupPlayback(ref events.Ref, policy RoutePolicy) *Playback {
	c.mu.Lock()
	p := c.playbacks[ref.ID]
	c.mu.Unlock()
	if p == nil && policy == CreateOnMiss {
		p = c.getOrCreatePlayback(ref.ID, nil)
	}
	return p
}

func (c *Client) lookupRecording(ref events.Ref, policy RoutePolicy) *LiveRecording {
	c.mu.Lock()
	r := c.recordings[ref.ID]
	c.mu.Unlock()
	if r == nil && policy == CreateOnMiss {
		r = c.getOrCreateRecording(ref.ID, nil)
	}
	return r
}

// extractID reads the id field of a raw entity object.
func extractID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var probe struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return ""
	}
	return probe.ID
}

// extractName reads the name field of a raw entity object; live
// recordings are keyed by name.
func extractName(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var probe struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return ""
	}
	return probe.Name
}
