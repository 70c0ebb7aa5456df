package ari

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"sync"

	"github.com/PerMoeller/asterisk-ari/events"
	"github.com/PerMoeller/asterisk-ari/logging"
)

// Channel is the stateful local proxy of one remote channel. It caches the
// last-known server snapshot and hosts its own scoped event listeners,
// invoked with (event, channel) whenever an inbound event references this
// channel.
type Channel struct {
	client     *Client
	id         string
	dispatcher *events.Dispatcher[*events.Event]

	mu   sync.RWMutex
	data events.ChannelData
}

func newChannel(c *Client, id string) *Channel {
	return &Channel{
		client:     c,
		id:         id,
		dispatcher: events.NewDispatcher[*events.Event](c.logger),
		data:       events.ChannelData{ID: id},
	}
}

// ID returns the channel's stable identifier.
func (ch *Channel) ID() string {
	return ch.id
}

// Data returns a copy of the cached snapshot.
func (ch *Channel) Data() events.ChannelData {
	ch.mu.RLock()
	defer ch.mu.RUnlock()
	return ch.data
}

// On subscribes a handler to events routed to this channel.
func (ch *Channel) On(eventType string, h events.Handler[*events.Event]) *events.Subscription[*events.Event] {
	return ch.dispatcher.On(eventType, h)
}

// Once subscribes a handler removed after its first invocation.
func (ch *Channel) Once(eventType string, h events.Handler[*events.Event]) *events.Subscription[*events.Event] {
	return ch.dispatcher.Once(eventType, h)
}

// RemoveAllListeners clears this channel's scoped listeners.
func (ch *Channel) RemoveAllListeners(eventTypes ...string) {
	ch.dispatcher.RemoveAll(eventTypes...)
}

// update merges raw server-reported fields onto the snapshot. Only fields
// present in the JSON overwrite; the identifier never changes.
func (ch *Channel) update(raw json.RawMessage) {
	if len(raw) == 0 {
		return
	}
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if err := json.Unmarshal(raw, &ch.data); err != nil {
		ch.client.logger.WithError(err).WithFields(logging.Fields{
			"channel_id": ch.id,
		}).Warn("Failed to merge channel snapshot")
	}
	ch.data.ID = ch.id
}

// OriginateRequest describes an outbound call. Zero fields are omitted.
type OriginateRequest struct {
	Endpoint       string            `json:"endpoint"`
	Extension      string            `json:"extension,omitempty"`
	Context        string            `json:"context,omitempty"`
	Priority       int64             `json:"priority,omitempty"`
	Label          string            `json:"label,omitempty"`
	App            string            `json:"app,omitempty"`
	AppArgs        string            `json:"appArgs,omitempty"`
	CallerID       string            `json:"callerId,omitempty"`
	Timeout        int               `json:"timeout,omitempty"`
	ChannelID      string            `json:"channelId,omitempty"`
	OtherChannelID string            `json:"otherChannelId,omitempty"`
	Originator     string            `json:"originator,omitempty"`
	Formats        string            `json:"formats,omitempty"`
	Variables      map[string]string `json:"variables,omitempty"`
}

// RecordParams configures a live recording.
type RecordParams struct {
	Format             string `json:"format,omitempty"`
	MaxDurationSeconds int    `json:"maxDurationSeconds,omitempty"`
	MaxSilenceSeconds  int    `json:"maxSilenceSeconds,omitempty"`
	IfExists           string `json:"ifExists,omitempty"`
	Beep               bool   `json:"beep,omitempty"`
	TerminateOn        string `json:"terminateOn,omitempty"`
}

// SnoopParams configures a snoop channel.
type SnoopParams struct {
	Spy     string `json:"spy,omitempty"`
	Whisper string `json:"whisper,omitempty"`
	App     string `json:"app"`
	AppArgs string `json:"appArgs,omitempty"`
}

// ChannelService wraps the /channels catalog.
type ChannelService struct {
	res *resources
}

// Channels returns the channel catalog.
func (c *Client) Channels() *ChannelService { return &ChannelService{res: c.res} }

// List fetches all active channels.
func (s *ChannelService) List(ctx context.Context) ([]*Channel, error) {
	var out []json.RawMessage
	if err := s.res.get(ctx, "/channels", nil, &out); err != nil {
		return nil, err
	}
	channels := make([]*Channel, 0, len(out))
	for _, raw := range out {
		channels = append(channels, s.res.client.getOrCreateChannel("", raw))
	}
	return channels, nil
}

// Get fetches one channel and returns its (possibly existing) proxy with a
// refreshed snapshot.
func (s *ChannelService) Get(ctx context.Context, id string) (*Channel, error) {
	var raw json.RawMessage
	if err := s.res.get(ctx, "/channels/"+url.PathEscape(id), nil, &raw); err != nil {
		return nil, err
	}
	return s.res.client.getOrCreateChannel(id, raw), nil
}

// Originate places an outbound call and returns the proxy for the new
// channel.
func (s *ChannelService) Originate(ctx context.Context, req OriginateRequest) (*Channel, error) {
	var raw json.RawMessage
	if err := s.res.post(ctx, "/channels", nil, req, &raw); err != nil {
		return nil, err
	}
	return s.res.client.getOrCreateChannel(req.ChannelID, raw), nil
}

// Create creates a channel without dialing it. Requires Asterisk 14.
func (s *ChannelService) Create(ctx context.Context, endpoint, app, appArgs, channelID string) (*Channel, error) {
	if err := s.res.client.validateMethod("channels.create"); err != nil {
		return nil, err
	}
	body := struct {
		Endpoint  string `json:"endpoint"`
		App       string `json:"app"`
		AppArgs   string `json:"appArgs,omitempty"`
		ChannelID string `json:"channelId,omitempty"`
	}{Endpoint: endpoint, App: app, AppArgs: appArgs, ChannelID: channelID}
	var raw json.RawMessage
	if err := s.res.post(ctx, "/channels/create", nil, body, &raw); err != nil {
		return nil, err
	}
	return s.res.client.getOrCreateChannel(channelID, raw), nil
}

// ExternalMedia starts an external media channel. Requires Asterisk 16.
func (s *ChannelService) ExternalMedia(ctx context.Context, app, externalHost, format string) (*Channel, error) {
	if err := s.res.client.validateMethod("channels.externalMedia"); err != nil {
		return nil, err
	}
	query := url.Values{}
	query.Set("app", app)
	query.Set("external_host", externalHost)
	query.Set("format", format)
	var raw json.RawMessage
	if err := s.res.post(ctx, "/channels/externalMedia", query, nil, &raw); err != nil {
		return nil, err
	}
	return s.res.client.getOrCreateChannel("", raw), nil
}

// Hangup hangs up a channel by id.
func (s *ChannelService) Hangup(ctx context.Context, id, reason string) error {
	query := url.Values{}
	if reason != "" {
		query.Set("reason", reason)
	}
	return s.res.delete(ctx, "/channels/"+url.PathEscape(id), query)
}

// Channel proxy operations. Each delegates to the catalog path for this
// channel's identifier.

func (ch *Channel) path(suffix string) string {
	return "/channels/" + url.PathEscape(ch.id) + suffix
}

// Originate places the call for a locally created channel proxy.
func (ch *Channel) Originate(ctx context.Context, req OriginateRequest) error {
	req.ChannelID = ch.id
	var raw json.RawMessage
	if err := ch.client.res.post(ctx, "/channels", nil, req, &raw); err != nil {
		return err
	}
	ch.update(raw)
	return nil
}

// Refresh fetches the current server state and updates the snapshot.
func (ch *Channel) Refresh(ctx context.Context) (events.ChannelData, error) {
	var raw json.RawMessage
	if err := ch.client.res.get(ctx, ch.path(""), nil, &raw); err != nil {
		return events.ChannelData{}, err
	}
	ch.update(raw)
	return ch.Data(), nil
}

// Answer answers the channel.
func (ch *Channel) Answer(ctx context.Context) error {
	return ch.client.res.post(ctx, ch.path("/answer"), nil, nil, nil)
}

// Hangup hangs up the channel. reason may be empty.
func (ch *Channel) Hangup(ctx context.Context, reason string) error {
	query := url.Values{}
	if reason != "" {
		query.Set("reason", reason)
	}
	return ch.client.res.delete(ctx, ch.path(""), query)
}

// Ring starts ringing indication.
func (ch *Channel) Ring(ctx context.Context) error {
	return ch.client.res.post(ctx, ch.path("/ring"), nil, nil, nil)
}

// RingStop stops ringing indication.
func (ch *Channel) RingStop(ctx context.Context) error {
	return ch.client.res.delete(ctx, ch.path("/ring"), nil)
}

// SendDTMF sends DTMF digits to the channel.
func (ch *Channel) SendDTMF(ctx context.Context, dtmf string) error {
	query := url.Values{}
	query.Set("dtmf", dtmf)
	return ch.client.res.post(ctx, ch.path("/dtmf"), query, nil, nil)
}

// Mute mutes the channel in the given direction (in, out or both).
func (ch *Channel) Mute(ctx context.Context, direction string) error {
	query := url.Values{}
	if direction != "" {
		query.Set("direction", direction)
	}
	return ch.client.res.post(ctx, ch.path("/mute"), query, nil, nil)
}

// Unmute unmutes the channel in the given direction.
func (ch *Channel) Unmute(ctx context.Context, direction string) error {
	query := url.Values{}
	if direction != "" {
		query.Set("direction", direction)
	}
	return ch.client.res.delete(ctx, ch.path("/mute"), query)
}

// Hold puts the channel on hold.
func (ch *Channel) Hold(ctx context.Context) error {
	return ch.client.res.post(ctx, ch.path("/hold"), nil, nil, nil)
}

// Unhold takes the channel off hold.
func (ch *Channel) Unhold(ctx context.Context) error {
	return ch.client.res.delete(ctx, ch.path("/hold"), nil)
}

// StartMOH starts music on hold. mohClass may be empty.
func (ch *Channel) StartMOH(ctx context.Context, mohClass string) error {
	query := url.Values{}
	if mohClass != "" {
		query.Set("mohClass", mohClass)
	}
	return ch.client.res.post(ctx, ch.path("/moh"), query, nil, nil)
}

// StopMOH stops music on hold.
func (ch *Channel) StopMOH(ctx context.Context) error {
	return ch.client.res.delete(ctx, ch.path("/moh"), nil)
}

// StartSilence plays silence on the channel.
func (ch *Channel) StartSilence(ctx context.Context) error {
	return ch.client.res.post(ctx, ch.path("/silence"), nil, nil, nil)
}

// StopSilence stops playing silence.
func (ch *Channel) StopSilence(ctx context.Context) error {
	return ch.client.res.delete(ctx, ch.path("/silence"), nil)
}

// Play starts a playback of media on the channel and returns its playback
// proxy. A nil playback creates one with a generated identifier.
func (ch *Channel) Play(ctx context.Context, media string, pb *Playback) (*Playback, error) {
	if pb == nil {
		pb = ch.client.Playback("")
	}
	query := url.Values{}
	query.Set("media", media)
	var raw json.RawMessage
	if err := ch.client.res.post(ctx, ch.path("/play/"+url.PathEscape(pb.ID())), query, nil, &raw); err != nil {
		return nil, err
	}
	pb.update(raw)
	return pb, nil
}

// Record starts recording the channel under the recording proxy's name.
// A nil recording creates one with a generated name.
func (ch *Channel) Record(ctx context.Context, rec *LiveRecording, params RecordParams) (*LiveRecording, error) {
	if rec == nil {
		rec = ch.client.LiveRecording("")
	}
	if params.Format == "" {
		params.Format = "wav"
	}
	body := struct {
		Name string `json:"name"`
		RecordParams
	}{Name: rec.Name(), RecordParams: params}
	var raw json.RawMessage
	if err := ch.client.res.post(ctx, ch.path("/record"), nil, body, &raw); err != nil {
		return nil, err
	}
	rec.update(raw)
	return rec, nil
}

// ContinueInDialplan returns the channel to the dialplan at the given
// location; empty fields keep the channel's current position.
func (ch *Channel) ContinueInDialplan(ctx context.Context, dialplanContext, extension string, priority int, label string) error {
	query := url.Values{}
	if dialplanContext != "" {
		query.Set("context", dialplanContext)
	}
	if extension != "" {
		query.Set("extension", extension)
	}
	if priority != 0 {
		query.Set("priority", strconv.Itoa(priority))
	}
	if label != "" {
		query.Set("label", label)
	}
	return ch.client.res.post(ctx, ch.path("/continue"), query, nil, nil)
}

// GetVariable reads a channel variable or function.
func (ch *Channel) GetVariable(ctx context.Context, name string) (string, error) {
	query := url.Values{}
	query.Set("variable", name)
	var out struct {
		Value string `json:"value"`
	}
	if err := ch.client.res.get(ctx, ch.path("/variable"), query, &out); err != nil {
		return "", err
	}
	return out.Value, nil
}

// SetVariable writes a channel variable or function.
func (ch *Channel) SetVariable(ctx context.Context, name, value string) error {
	query := url.Values{}
	query.Set("variable", name)
	query.Set("value", value)
	return ch.client.res.post(ctx, ch.path("/variable"), query, nil, nil)
}

// Snoop starts a snoop channel spying on this one and returns its proxy.
func (ch *Channel) Snoop(ctx context.Context, params SnoopParams) (*Channel, error) {
	var raw json.RawMessage
	if err := ch.client.res.post(ctx, ch.path("/snoop"), nil, params, &raw); err != nil {
		return nil, err
	}
	return ch.client.getOrCreateChannel("", raw), nil
}

// Dial dials a created (not yet dialed) channel. Requires Asterisk 14.
func (ch *Channel) Dial(ctx context.Context, caller string, timeoutSeconds int) error {
	if err := ch.client.validateMethod("channels.dial"); err != nil {
		return err
	}
	query := url.Values{}
	if caller != "" {
		query.Set("caller", caller)
	}
	if timeoutSeconds != 0 {
		query.Set("timeout", strconv.Itoa(timeoutSeconds))
	}
	return ch.client.res.post(ctx, ch.path("/dial"), query, nil, nil)
}

// Move moves the channel to another Stasis application. Requires
// Asterisk 17.
func (ch *Channel) Move(ctx context.Context, app, appArgs string) error {
	if err := ch.client.validateMethod("channels.move"); err != nil {
		return err
	}
	query := url.Values{}
	query.Set("app", app)
	if appArgs != "" {
		query.Set("appArgs", appArgs)
	}
	return ch.client.res.post(ctx, ch.path("/move"), query, nil, nil)
}

func (ch *Channel) String() string {
	return fmt.Sprintf("Channel(%s)", ch.id)
}
