package events

import "encoding/json"

// Event type names as sent by Asterisk.
const (
	TypeStasisStart            = "StasisStart"
	TypeStasisEnd              = "StasisEnd"
	TypeChannelCreated         = "ChannelCreated"
	TypeChannelDestroyed       = "ChannelDestroyed"
	TypeChannelStateChange     = "ChannelStateChange"
	TypeChannelDtmfReceived    = "ChannelDtmfReceived"
	TypeChannelDialplan        = "ChannelDialplan"
	TypeChannelCallerID        = "ChannelCallerId"
	TypeChannelHangupRequest   = "ChannelHangupRequest"
	TypeChannelVarset          = "ChannelVarset"
	TypeChannelHold            = "ChannelHold"
	TypeChannelUnhold          = "ChannelUnhold"
	TypeChannelTalkingStarted  = "ChannelTalkingStarted"
	TypeChannelTalkingFinished = "ChannelTalkingFinished"
	TypeChannelConnectedLine   = "ChannelConnectedLine"
	TypeChannelEnteredBridge   = "ChannelEnteredBridge"
	TypeChannelLeftBridge      = "ChannelLeftBridge"
	TypeDial                   = "Dial"

	TypeBridgeCreated            = "BridgeCreated"
	TypeBridgeDestroyed          = "BridgeDestroyed"
	TypeBridgeMerged             = "BridgeMerged"
	TypeBridgeBlindTransfer      = "BridgeBlindTransfer"
	TypeBridgeAttendedTransfer   = "BridgeAttendedTransfer"
	TypeBridgeVideoSourceChanged = "BridgeVideoSourceChanged"

	TypePlaybackStarted    = "PlaybackStarted"
	TypePlaybackContinuing = "PlaybackContinuing"
	TypePlaybackFinished   = "PlaybackFinished"

	TypeRecordingStarted  = "RecordingStarted"
	TypeRecordingFinished = "RecordingFinished"
	TypeRecordingFailed   = "RecordingFailed"

	TypeEndpointStateChange   = "EndpointStateChange"
	TypeDeviceStateChanged    = "DeviceStateChanged"
	TypePeerStatusChange      = "PeerStatusChange"
	TypeApplicationReplaced   = "ApplicationReplaced"
	TypeApplicationMoveFailed = "ApplicationMoveFailed"
	TypeTextMessageReceived   = "TextMessageReceived"
	TypeContactStatusChange   = "ContactStatusChange"
)

// Ref is the primary entity reference of an event: the entity whose proxy
// receives the event during instance routing, and the convenience argument
// of the facade's global listeners.
type Ref struct {
	Kind Kind
	ID   string
	// Data is the raw JSON of the referenced entity, used to merge the
	// server-reported fields onto the proxy's cached snapshot.
	Data json.RawMessage
}

// RefExtractor resolves an event's primary reference. Extractors report
// false when the reference field is absent from the payload.
type RefExtractor func(e *Event) (Ref, bool)

func channelRef(e *Event) (Ref, bool) {
	if e.Channel == nil || e.Channel.ID == "" {
		return Ref{}, false
	}
	return Ref{Kind: KindChannel, ID: e.Channel.ID, Data: rawField(e.Raw, "channel")}, true
}

func peerRef(e *Event) (Ref, bool) {
	if e.Peer == nil || e.Peer.ID == "" {
		return Ref{}, false
	}
	return Ref{Kind: KindChannel, ID: e.Peer.ID, Data: rawField(e.Raw, "peer")}, true
}

func bridgeRef(e *Event) (Ref, bool) {
	if e.Bridge == nil || e.Bridge.ID == "" {
		return Ref{}, false
	}
	return Ref{Kind: KindBridge, ID: e.Bridge.ID, Data: rawField(e.Raw, "bridge")}, true
}

func playbackRef(e *Event) (Ref, bool) {
	if e.Playback == nil || e.Playback.ID == "" {
		return Ref{}, false
	}
	return Ref{Kind: KindPlayback, ID: e.Playback.ID, Data: rawField(e.Raw, "playback")}, true
}

func recordingRef(e *Event) (Ref, bool) {
	if e.Recording == nil || e.Recording.Name == "" {
		return Ref{}, false
	}
	return Ref{Kind: KindRecording, ID: e.Recording.Name, Data: rawField(e.Raw, "recording")}, true
}

// primaryRefs fixes, per event type, which embedded reference is the
// event's primary entity. Types absent from the table route nowhere.
var primaryRefs = map[string]RefExtractor{
	TypeStasisStart:            channelRef,
	TypeStasisEnd:              channelRef,
	TypeChannelCreated:         channelRef,
	TypeChannelDestroyed:       channelRef,
	TypeChannelStateChange:     channelRef,
	TypeChannelDtmfReceived:    channelRef,
	TypeChannelDialplan:        channelRef,
	TypeChannelCallerID:        channelRef,
	TypeChannelHangupRequest:   channelRef,
	TypeChannelVarset:          channelRef,
	TypeChannelHold:            channelRef,
	TypeChannelUnhold:          channelRef,
	TypeChannelTalkingStarted:  channelRef,
	TypeChannelTalkingFinished: channelRef,
	TypeChannelConnectedLine:   channelRef,
	TypeDial:                   peerRef,

	TypeChannelEnteredBridge:     bridgeRef,
	TypeChannelLeftBridge:        bridgeRef,
	TypeBridgeCreated:            bridgeRef,
	TypeBridgeDestroyed:          bridgeRef,
	TypeBridgeMerged:             bridgeRef,
	TypeBridgeVideoSourceChanged: bridgeRef,

	TypePlaybackStarted:    playbackRef,
	TypePlaybackContinuing: playbackRef,
	TypePlaybackFinished:   playbackRef,

	TypeRecordingStarted:  recordingRef,
	TypeRecordingFinished: recordingRef,
	TypeRecordingFailed:   recordingRef,
}

// PrimaryRef returns the primary entity reference of e, or false when the
// event type routes to no entity or the reference field is missing.
func PrimaryRef(e *Event) (Ref, bool) {
	extract, ok := primaryRefs[e.Type]
	if !ok {
		return Ref{}, false
	}
	return extract(e)
}

// rawField extracts one top-level field of a raw JSON object.
func rawField(raw json.RawMessage, key string) json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil
	}
	return fields[key]
}
