package logging

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestNewLoggerEmitsJSON(t *testing.T) {
	logger := NewLogger()
	var buf bytes.Buffer
	logger.SetOutput(&buf)

	logger.WithFields(Fields{"channel_id": "c1"}).Info("test entry")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Log output is not JSON: %v (%s)", err, buf.String())
	}
	if entry["msg"] != "test entry" {
		t.Errorf("Expected message field, got %v", entry["msg"])
	}
	if entry["channel_id"] != "c1" {
		t.Errorf("Expected structured field, got %v", entry["channel_id"])
	}
}
