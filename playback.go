package ari

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"

	"github.com/PerMoeller/asterisk-ari/events"
	"github.com/PerMoeller/asterisk-ari/logging"
)

// Playback is the stateful local proxy of one media playback.
type Playback struct {
	client     *Client
	id         string
	dispatcher *events.Dispatcher[*events.Event]

	mu   sync.RWMutex
	data events.PlaybackData
}

func newPlayback(c *Client, id string) *Playback {
	return &Playback{
		client:     c,
		id:         id,
		dispatcher: events.NewDispatcher[*events.Event](c.logger),
		data:       events.PlaybackData{ID: id},
	}
}

// ID returns the playback's stable identifier.
func (p *Playback) ID() string {
	return p.id
}

// Data returns a copy of the cached snapshot.
func (p *Playback) Data() events.PlaybackData {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.data
}

// On subscribes a handler to events routed to this playback.
func (p *Playback) On(eventType string, h events.Handler[*events.Event]) *events.Subscription[*events.Event] {
	return p.dispatcher.On(eventType, h)
}

// Once subscribes a handler removed after its first invocation.
func (p *Playback) Once(eventType string, h events.Handler[*events.Event]) *events.Subscription[*events.Event] {
	return p.dispatcher.Once(eventType, h)
}

// RemoveAllListeners clears this playback's scoped listeners.
func (p *Playback) RemoveAllListeners(eventTypes ...string) {
	p.dispatcher.RemoveAll(eventTypes...)
}

func (p *Playback) update(raw json.RawMessage) {
	if len(raw) == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := json.Unmarshal(raw, &p.data); err != nil {
		p.client.logger.WithError(err).WithFields(logging.Fields{
			"playback_id": p.id,
		}).Warn("Failed to merge playback snapshot")
	}
	p.data.ID = p.id
}

// PlaybackService wraps the /playbacks catalog.
type PlaybackService struct {
	res *resources
}

// Playbacks returns the playback catalog.
func (c *Client) Playbacks() *PlaybackService { return &PlaybackService{res: c.res} }

// Get fetches one playback and returns its proxy with a refreshed snapshot.
func (s *PlaybackService) Get(ctx context.Context, id string) (*Playback, error) {
	var raw json.RawMessage
	if err := s.res.get(ctx, "/playbacks/"+url.PathEscape(id), nil, &raw); err != nil {
		return nil, err
	}
	return s.res.client.getOrCreatePlayback(id, raw), nil
}

func (p *Playback) path(suffix string) string {
	return "/playbacks/" + url.PathEscape(p.id) + suffix
}

// Refresh fetches the current server state and updates the snapshot.
func (p *Playback) Refresh(ctx context.Context) (events.PlaybackData, error) {
	var raw json.RawMessage
	if err := p.client.res.get(ctx, p.path(""), nil, &raw); err != nil {
		return events.PlaybackData{}, err
	}
	p.update(raw)
	return p.Data(), nil
}

// Control sends a control operation to the playback: restart, pause,
// unpause, reverse or forward.
func (p *Playback) Control(ctx context.Context, operation string) error {
	query := url.Values{}
	query.Set("operation", operation)
	return p.client.res.post(ctx, p.path("/control"), query, nil, nil)
}

// Pause pauses the playback.
func (p *Playback) Pause(ctx context.Context) error { return p.Control(ctx, "pause") }

// Resume unpauses the playback.
func (p *Playback) Resume(ctx context.Context) error { return p.Control(ctx, "unpause") }

// Restart restarts the playback from the beginning.
func (p *Playback) Restart(ctx context.Context) error { return p.Control(ctx, "restart") }

// Stop stops and removes the playback.
func (p *Playback) Stop(ctx context.Context) error {
	return p.client.res.delete(ctx, p.path(""), nil)
}

func (p *Playback) String() string {
	return fmt.Sprintf("Playback(%s)", p.id)
}
