package events

import (
	"testing"
)

func TestDecodeEvent(t *testing.T) {
	frame := []byte(`{
		"type": "ChannelDtmfReceived",
		"application": "my-app",
		"timestamp": "2024-01-15T10:30:00.000+0000",
		"digit": "5",
		"duration_ms": 120,
		"channel": {"id": "c1", "name": "PJSIP/alice-00000001", "state": "Up"}
	}`)

	e, err := Decode(frame)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if e.Type != TypeChannelDtmfReceived {
		t.Errorf("Expected type %s, got %s", TypeChannelDtmfReceived, e.Type)
	}
	if e.Digit != "5" || e.DurationMs != 120 {
		t.Errorf("Scalar fields not decoded: digit=%q duration=%d", e.Digit, e.DurationMs)
	}
	if e.Channel == nil || e.Channel.ID != "c1" || e.Channel.State != "Up" {
		t.Errorf("Channel reference not decoded: %+v", e.Channel)
	}
	if len(e.Raw) == 0 {
		t.Error("Raw frame must be retained")
	}
}

func TestDecodeRejectsBadFrames(t *testing.T) {
	if _, err := Decode([]byte(`not json`)); err == nil {
		t.Error("Expected error for malformed JSON")
	}
	if _, err := Decode([]byte(`{"application": "my-app"}`)); err == nil {
		t.Error("Expected error for frame without type")
	}
}

func TestDecodeUnknownTypeIsNotAnError(t *testing.T) {
	e, err := Decode([]byte(`{"type": "SomeFutureEvent", "application": "my-app"}`))
	if err != nil {
		t.Fatalf("Unknown event types must still decode: %v", err)
	}
	if e.Type != "SomeFutureEvent" {
		t.Errorf("Got type %s", e.Type)
	}
}

func TestPrimaryRefChannel(t *testing.T) {
	e, err := Decode([]byte(`{
		"type": "StasisStart",
		"channel": {"id": "c1", "state": "Ring"}
	}`))
	if err != nil {
		t.Fatal(err)
	}

	ref, ok := PrimaryRef(e)
	if !ok {
		t.Fatal("Expected a primary reference")
	}
	if ref.Kind != KindChannel || ref.ID != "c1" {
		t.Errorf("Expected channel c1, got %s %s", ref.Kind, ref.ID)
	}
	if len(ref.Data) == 0 {
		t.Error("Expected raw channel payload in ref")
	}
}

func TestPrimaryRefDialUsesPeer(t *testing.T) {
	e, err := Decode([]byte(`{
		"type": "Dial",
		"caller": {"id": "c1"},
		"peer": {"id": "c2", "state": "Ringing"},
		"dialstatus": "RINGING"
	}`))
	if err != nil {
		t.Fatal(err)
	}

	ref, ok := PrimaryRef(e)
	if !ok {
		t.Fatal("Expected a primary reference")
	}
	if ref.Kind != KindChannel || ref.ID != "c2" {
		t.Errorf("Dial must route to the peer, got %s %s", ref.Kind, ref.ID)
	}
}

func TestPrimaryRefBridgeMembership(t *testing.T) {
	e, err := Decode([]byte(`{
		"type": "ChannelEnteredBridge",
		"bridge": {"id": "b1", "channels": ["c1"]},
		"channel": {"id": "c1"}
	}`))
	if err != nil {
		t.Fatal(err)
	}

	ref, ok := PrimaryRef(e)
	if !ok {
		t.Fatal("Expected a primary reference")
	}
	if ref.Kind != KindBridge || ref.ID != "b1" {
		t.Errorf("Bridge membership events route to the bridge, got %s %s", ref.Kind, ref.ID)
	}
}

func TestPrimaryRefRecordingKeyedByName(t *testing.T) {
	e, err := Decode([]byte(`{
		"type": "RecordingFinished",
		"recording": {"name": "greeting", "format": "wav", "state": "done"}
	}`))
	if err != nil {
		t.Fatal(err)
	}

	ref, ok := PrimaryRef(e)
	if !ok {
		t.Fatal("Expected a primary reference")
	}
	if ref.Kind != KindRecording || ref.ID != "greeting" {
		t.Errorf("Recordings are keyed by name, got %s %s", ref.Kind, ref.ID)
	}
}

func TestPrimaryRefAbsent(t *testing.T) {
	// Type not in the routing table.
	e, err := Decode([]byte(`{"type": "PeerStatusChange", "endpoint": {"technology": "PJSIP", "resource": "alice"}}`))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := PrimaryRef(e); ok {
		t.Error("PeerStatusChange must not route to an entity")
	}

	// Routed type with the reference field missing.
	e, err = Decode([]byte(`{"type": "StasisStart"}`))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := PrimaryRef(e); ok {
		t.Error("StasisStart without a channel must not produce a ref")
	}
}
