// Package events defines the ARI event model and the typed dispatcher used
// for both transport lifecycle notifications and application-level event
// delivery. Each inbound WebSocket frame decodes into one Event envelope;
// the primary-reference table in refs.go determines which entity an event
// belongs to for instance routing.
package events

import (
	"encoding/json"
	"fmt"
)

// Kind identifies an entity kind for the instance registry.
type Kind string

const (
	KindChannel   Kind = "channel"
	KindBridge    Kind = "bridge"
	KindPlayback  Kind = "playback"
	KindRecording Kind = "recording"
)

// CallerID describes a caller id as reported by Asterisk.
type CallerID struct {
	Name   string `json:"name"`
	Number string `json:"number"`
}

// DialplanCEP describes a dialplan location.
type DialplanCEP struct {
	Context  string `json:"context"`
	Exten    string `json:"exten"`
	Priority int64  `json:"priority"`
	AppName  string `json:"app_name,omitempty"`
	AppData  string `json:"app_data,omitempty"`
}

// ChannelData is the server-reported snapshot of a channel.
type ChannelData struct {
	ID           string            `json:"id"`
	Name         string            `json:"name,omitempty"`
	State        string            `json:"state,omitempty"`
	ProtocolID   string            `json:"protocol_id,omitempty"`
	Caller       CallerID          `json:"caller,omitempty"`
	Connected    CallerID          `json:"connected,omitempty"`
	AccountCode  string            `json:"accountcode,omitempty"`
	Dialplan     DialplanCEP       `json:"dialplan,omitempty"`
	CreationTime string            `json:"creationtime,omitempty"`
	Language     string            `json:"language,omitempty"`
	ChannelVars  map[string]string `json:"channelvars,omitempty"`
}

// BridgeData is the server-reported snapshot of a bridge.
type BridgeData struct {
	ID           string   `json:"id"`
	Technology   string   `json:"technology,omitempty"`
	BridgeType   string   `json:"bridge_type,omitempty"`
	BridgeClass  string   `json:"bridge_class,omitempty"`
	Creator      string   `json:"creator,omitempty"`
	Name         string   `json:"name,omitempty"`
	ChannelIDs   []string `json:"channels,omitempty"`
	VideoMode    string   `json:"video_mode,omitempty"`
	VideoSource  string   `json:"video_source_id,omitempty"`
	CreationTime string   `json:"creationtime,omitempty"`
}

// PlaybackData is the server-reported snapshot of a playback operation.
type PlaybackData struct {
	ID        string `json:"id"`
	MediaURI  string `json:"media_uri,omitempty"`
	NextMedia string `json:"next_media_uri,omitempty"`
	TargetURI string `json:"target_uri,omitempty"`
	Language  string `json:"language,omitempty"`
	State     string `json:"state,omitempty"`
}

// LiveRecordingData is the server-reported snapshot of an in-progress
// recording. Live recordings are identified by name, not id.
type LiveRecordingData struct {
	Name            string `json:"name"`
	Format          string `json:"format,omitempty"`
	State           string `json:"state,omitempty"`
	TargetURI       string `json:"target_uri,omitempty"`
	Duration        int64  `json:"duration,omitempty"`
	TalkingDuration int64  `json:"talking_duration,omitempty"`
	SilenceDuration int64  `json:"silence_duration,omitempty"`
	Cause           string `json:"cause,omitempty"`
}

// StoredRecordingData describes a finished recording on disk.
type StoredRecordingData struct {
	Name   string `json:"name"`
	Format string `json:"format,omitempty"`
}

// EndpointData describes a telephony endpoint.
type EndpointData struct {
	Technology string   `json:"technology"`
	Resource   string   `json:"resource"`
	State      string   `json:"state,omitempty"`
	ChannelIDs []string `json:"channel_ids,omitempty"`
}

// SoundData describes an installed sound file.
type SoundData struct {
	ID      string `json:"id"`
	Text    string `json:"text,omitempty"`
	Formats []struct {
		Language string `json:"language"`
		Format   string `json:"format"`
	} `json:"formats,omitempty"`
}

// MailboxData describes a voicemail mailbox state.
type MailboxData struct {
	Name        string `json:"name"`
	OldMessages int    `json:"old_messages"`
	NewMessages int    `json:"new_messages"`
}

// DeviceStateData describes a named device state.
type DeviceStateData struct {
	Name  string `json:"name"`
	State string `json:"state"`
}

// ApplicationData describes a registered Stasis application.
type ApplicationData struct {
	Name          string   `json:"name"`
	ChannelIDs    []string `json:"channel_ids,omitempty"`
	BridgeIDs     []string `json:"bridge_ids,omitempty"`
	EndpointIDs   []string `json:"endpoint_ids,omitempty"`
	DeviceNames   []string `json:"device_names,omitempty"`
	EventsAllowed []struct {
		Type string `json:"type"`
	} `json:"events_allowed,omitempty"`
}

// AsteriskInfo is the response of GET /asterisk/info.
type AsteriskInfo struct {
	System struct {
		Version  string `json:"version"`
		EntityID string `json:"entity_id,omitempty"`
	} `json:"system"`
	Build struct {
		OS      string `json:"os,omitempty"`
		Kernel  string `json:"kernel,omitempty"`
		Machine string `json:"machine,omitempty"`
		Date    string `json:"date,omitempty"`
	} `json:"build,omitempty"`
	Status struct {
		StartupTime    string `json:"startup_time,omitempty"`
		LastReloadTime string `json:"last_reload_time,omitempty"`
	} `json:"status,omitempty"`
}

// Event is the decoded envelope of one inbound ARI event frame. Reference
// fields are populated only when the event type carries them; the primary
// reference for routing is resolved through the table in refs.go, never by
// probing which pointers happen to be non-nil.
type Event struct {
	Type        string `json:"type"`
	Application string `json:"application,omitempty"`
	Timestamp   string `json:"timestamp,omitempty"`

	// Entity references
	Channel   *ChannelData       `json:"channel,omitempty"`
	Peer      *ChannelData       `json:"peer,omitempty"`
	Bridge    *BridgeData        `json:"bridge,omitempty"`
	Playback  *PlaybackData      `json:"playback,omitempty"`
	Recording *LiveRecordingData `json:"recording,omitempty"`
	Endpoint  *EndpointData      `json:"endpoint,omitempty"`

	// Event-specific scalars
	Digit      string   `json:"digit,omitempty"`
	DurationMs int      `json:"duration_ms,omitempty"`
	Cause      int      `json:"cause,omitempty"`
	CauseTxt   string   `json:"cause_txt,omitempty"`
	Variable   string   `json:"variable,omitempty"`
	Value      string   `json:"value,omitempty"`
	Dialstring string   `json:"dialstring,omitempty"`
	DialStatus string   `json:"dialstatus,omitempty"`
	Args       []string `json:"args,omitempty"`

	// Raw retains the full frame for access to fields the envelope does
	// not model and for merge-onto-snapshot routing.
	Raw json.RawMessage `json:"-"`
}

// Decode parses one WebSocket text frame into an Event. Frames without a
// type field are rejected.
func Decode(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("failed to parse event frame: %w", err)
	}
	if e.Type == "" {
		return nil, fmt.Errorf("event frame has no type")
	}
	e.Raw = append(json.RawMessage(nil), data...)
	return &e, nil
}
