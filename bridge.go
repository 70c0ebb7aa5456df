package ari

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/PerMoeller/asterisk-ari/events"
	"github.com/PerMoeller/asterisk-ari/logging"
)

// Bridge is the stateful local proxy of one remote bridge. Unlike channels,
// bridge proxies are only created from server responses and inbound events;
// to get one, call Bridges().Create or Bridges().Get.
type Bridge struct {
	client     *Client
	id         string
	dispatcher *events.Dispatcher[*events.Event]

	mu   sync.RWMutex
	data events.BridgeData
}

func newBridge(c *Client, id string) *Bridge {
	return &Bridge{
		client:     c,
		id:         id,
		dispatcher: events.NewDispatcher[*events.Event](c.logger),
		data:       events.BridgeData{ID: id},
	}
}

// ID returns the bridge's stable identifier.
func (b *Bridge) ID() string {
	return b.id
}

// Data returns a copy of the cached snapshot.
func (b *Bridge) Data() events.BridgeData {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.data
}

// On subscribes a handler to events routed to this bridge.
func (b *Bridge) On(eventType string, h events.Handler[*events.Event]) *events.Subscription[*events.Event] {
	return b.dispatcher.On(eventType, h)
}

// Once subscribes a handler removed after its first invocation.
func (b *Bridge) Once(eventType string, h events.Handler[*events.Event]) *events.Subscription[*events.Event] {
	return b.dispatcher.Once(eventType, h)
}

// RemoveAllListeners clears this bridge's scoped listeners.
func (b *Bridge) RemoveAllListeners(eventTypes ...string) {
	b.dispatcher.RemoveAll(eventTypes...)
}

func (b *Bridge) update(raw json.RawMessage) {
	if len(raw) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := json.Unmarshal(raw, &b.data); err != nil {
		b.client.logger.WithError(err).WithFields(logging.Fields{
			"bridge_id": b.id,
		}).Warn("Failed to merge bridge snapshot")
	}
	b.data.ID = b.id
}

// BridgeService wraps the /bridges catalog.
type BridgeService struct {
	res *resources
}

// Bridges returns the bridge catalog.
func (c *Client) Bridges() *BridgeService { return &BridgeService{res: c.res} }

// List fetches all active bridges.
func (s *BridgeService) List(ctx context.Context) ([]*Bridge, error) {
	var out []json.RawMessage
	if err := s.res.get(ctx, "/bridges", nil, &out); err != nil {
		return nil, err
	}
	bridges := make([]*Bridge, 0, len(out))
	for _, raw := range out {
		bridges = append(bridges, s.res.client.getOrCreateBridge("", raw))
	}
	return bridges, nil
}

// Get fetches one bridge and returns its proxy with a refreshed snapshot.
func (s *BridgeService) Get(ctx context.Context, id string) (*Bridge, error) {
	var raw json.RawMessage
	if err := s.res.get(ctx, "/bridges/"+url.PathEscape(id), nil, &raw); err != nil {
		return nil, err
	}
	return s.res.client.getOrCreateBridge(id, raw), nil
}

// Create asks the server to create a bridge and returns its proxy once the
// server has confirmed it. bridgeType is a comma-joined set such as
// "mixing" or "mixing,dtmf_events"; empty defaults to "mixing". id and name
// may be empty.
func (s *BridgeService) Create(ctx context.Context, bridgeType, id, name string) (*Bridge, error) {
	if bridgeType == "" {
		bridgeType = "mixing"
	}
	query := url.Values{}
	query.Set("type", bridgeType)
	if name != "" {
		query.Set("name", name)
	}
	path := "/bridges"
	if id != "" {
		path += "/" + url.PathEscape(id)
	}
	var raw json.RawMessage
	if err := s.res.post(ctx, path, query, nil, &raw); err != nil {
		return nil, err
	}
	return s.res.client.getOrCreateBridge(id, raw), nil
}

// Destroy shuts down a bridge by id.
func (s *BridgeService) Destroy(ctx context.Context, id string) error {
	return s.res.delete(ctx, "/bridges/"+url.PathEscape(id), nil)
}

func (b *Bridge) path(suffix string) string {
	return "/bridges/" + url.PathEscape(b.id) + suffix
}

// Refresh fetches the current server state and updates the snapshot.
func (b *Bridge) Refresh(ctx context.Context) (events.BridgeData, error) {
	var raw json.RawMessage
	if err := b.client.res.get(ctx, b.path(""), nil, &raw); err != nil {
		return events.BridgeData{}, err
	}
	b.update(raw)
	return b.Data(), nil
}

// AddChannels adds one or more channels to the bridge.
func (b *Bridge) AddChannels(ctx context.Context, channelIDs ...string) error {
	query := url.Values{}
	query.Set("channel", strings.Join(channelIDs, ","))
	return b.client.res.post(ctx, b.path("/addChannel"), query, nil, nil)
}

// AddChannel adds a single channel proxy to the bridge.
func (b *Bridge) AddChannel(ctx context.Context, ch *Channel) error {
	return b.AddChannels(ctx, ch.ID())
}

// RemoveChannels removes one or more channels from the bridge.
func (b *Bridge) RemoveChannels(ctx context.Context, channelIDs ...string) error {
	query := url.Values{}
	query.Set("channel", strings.Join(channelIDs, ","))
	return b.client.res.post(ctx, b.path("/removeChannel"), query, nil, nil)
}

// RemoveChannel removes a single channel proxy from the bridge.
func (b *Bridge) RemoveChannel(ctx context.Context, ch *Channel) error {
	return b.RemoveChannels(ctx, ch.ID())
}

// Play starts a playback of media on the bridge and returns its playback
// proxy. A nil playback creates one with a generated identifier.
func (b *Bridge) Play(ctx context.Context, media string, pb *Playback) (*Playback, error) {
	if pb == nil {
		pb = b.client.Playback("")
	}
	query := url.Values{}
	query.Set("media", media)
	var raw json.RawMessage
	if err := b.client.res.post(ctx, b.path("/play/"+url.PathEscape(pb.ID())), query, nil, &raw); err != nil {
		return nil, err
	}
	pb.update(raw)
	return pb, nil
}

// Record starts recording the bridge under the recording proxy's name.
// A nil recording creates one with a generated name.
func (b *Bridge) Record(ctx context.Context, rec *LiveRecording, params RecordParams) (*LiveRecording, error) {
	if rec == nil {
		rec = b.client.LiveRecording("")
	}
	if params.Format == "" {
		params.Format = "wav"
	}
	body := struct {
		Name string `json:"name"`
		RecordParams
	}{Name: rec.Name(), RecordParams: params}
	var raw json.RawMessage
	if err := b.client.res.post(ctx, b.path("/record"), nil, body, &raw); err != nil {
		return nil, err
	}
	rec.update(raw)
	return rec, nil
}

// StartMOH starts music on hold on the bridge. mohClass may be empty.
func (b *Bridge) StartMOH(ctx context.Context, mohClass string) error {
	query := url.Values{}
	if mohClass != "" {
		query.Set("mohClass", mohClass)
	}
	return b.client.res.post(ctx, b.path("/moh"), query, nil, nil)
}

// StopMOH stops music on hold on the bridge.
func (b *Bridge) StopMOH(ctx context.Context) error {
	return b.client.res.delete(ctx, b.path("/moh"), nil)
}

// SetVideoSource pins the bridge's video feed to one channel. Requires
// Asterisk 14.
func (b *Bridge) SetVideoSource(ctx context.Context, channelID string) error {
	if err := b.client.validateMethod("bridges.setVideoSource"); err != nil {
		return err
	}
	return b.client.res.post(ctx, b.path("/videoSource/"+url.PathEscape(channelID)), nil, nil, nil)
}

// ClearVideoSource returns the bridge to automatic video source selection.
// Requires Asterisk 14.
func (b *Bridge) ClearVideoSource(ctx context.Context) error {
	if err := b.client.validateMethod("bridges.clearVideoSource"); err != nil {
		return err
	}
	return b.client.res.delete(ctx, b.path("/videoSource"), nil)
}

// Destroy shuts down the bridge.
func (b *Bridge) Destroy(ctx context.Context) error {
	return b.client.res.delete(ctx, b.path(""), nil)
}

func (b *Bridge) String() string {
	return fmt.Sprintf("Bridge(%s)", b.id)
}
