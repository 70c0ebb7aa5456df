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

// LiveRecording is the stateful local proxy of one in-progress recording.
// Recordings are addressed by name rather than a server-generated id.
type LiveRecording struct {
	client     *Client
	name       string
	dispatcher *events.Dispatcher[*events.Event]

	mu   sync.RWMutex
	data events.LiveRecordingData
}

func newLiveRecording(c *Client, name string) *LiveRecording {
	return &LiveRecording{
		client:     c,
		name:       name,
		dispatcher: events.NewDispatcher[*events.Event](c.logger),
		data:       events.LiveRecordingData{Name: name},
	}
}

// Name returns the recording's name, its stable identifier.
func (r *LiveRecording) Name() string {
	return r.name
}

// Data returns a copy of the cached snapshot.
func (r *LiveRecording) Data() events.LiveRecordingData {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.data
}

// On subscribes a handler to events routed to this recording.
func (r *LiveRecording) On(eventType string, h events.Handler[*events.Event]) *events.Subscription[*events.Event] {
	return r.dispatcher.On(eventType, h)
}

// Once subscribes a handler removed after its first invocation.
func (r *LiveRecording) Once(eventType string, h events.Handler[*events.Event]) *events.Subscription[*events.Event] {
	return r.dispatcher.Once(eventType, h)
}

// RemoveAllListeners clears this recording's scoped listeners.
func (r *LiveRecording) RemoveAllListeners(eventTypes ...string) {
	r.dispatcher.RemoveAll(eventTypes...)
}

func (r *LiveRecording) update(raw json.RawMessage) {
	if len(raw) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := json.Unmarshal(raw, &r.data); err != nil {
		r.client.logger.WithError(err).WithFields(logging.Fields{
			"recording_name": r.name,
		}).Warn("Failed to merge recording snapshot")
	}
	r.data.Name = r.name
}

func (r *LiveRecording) path(suffix string) string {
	return "/recordings/live/" + url.PathEscape(r.name) + suffix
}

// Refresh fetches the current server state and updates the snapshot.
func (r *LiveRecording) Refresh(ctx context.Context) (events.LiveRecordingData, error) {
	var raw json.RawMessage
	if err := r.client.res.get(ctx, r.path(""), nil, &raw); err != nil {
		return events.LiveRecordingData{}, err
	}
	r.update(raw)
	return r.Data(), nil
}

// Stop ends the recording and stores the result.
func (r *LiveRecording) Stop(ctx context.Context) error {
	return r.client.res.post(ctx, r.path("/stop"), nil, nil, nil)
}

// Pause suspends the recording; recorded time does not advance while
// paused.
func (r *LiveRecording) Pause(ctx context.Context) error {
	return r.client.res.post(ctx, r.path("/pause"), nil, nil, nil)
}

// Unpause resumes a paused recording.
func (r *LiveRecording) Unpause(ctx context.Context) error {
	return r.client.res.delete(ctx, r.path("/pause"), nil)
}

// Mute keeps the recording running but writes silence.
func (r *LiveRecording) Mute(ctx context.Context) error {
	return r.client.res.post(ctx, r.path("/mute"), nil, nil, nil)
}

// Unmute resumes capturing audio.
func (r *LiveRecording) Unmute(ctx context.Context) error {
	return r.client.res.delete(ctx, r.path("/mute"), nil)
}

// Cancel ends the recording and discards the result.
func (r *LiveRecording) Cancel(ctx context.Context) error {
	return r.client.res.delete(ctx, r.path(""), nil)
}

func (r *LiveRecording) String() string {
	return fmt.Sprintf("LiveRecording(%s)", r.name)
}
