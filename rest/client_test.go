package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(serverURL string) *Client {
	return New(Config{
		BaseURL:     serverURL,
		Username:    "ari",
		Password:    "secret",
		Timeout:     2 * time.Second,
		RetryConfig: &RetryConfig{MaxRetries: 0},
	})
}

func TestGetDecodesResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ari/channels/c1" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "ari" || pass != "secret" {
			t.Error("Expected basic auth credentials")
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "c1", "state": "Up"})
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	var out struct {
		ID    string `json:"id"`
		State string `json:"state"`
	}
	if err := c.Get(context.Background(), "/channels/c1", nil, &out); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if out.ID != "c1" || out.State != "Up" {
		t.Errorf("Unexpected payload: %+v", out)
	}
}

func TestPostSendsJSONBody(t *testing.T) {
	var gotContentType string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	body := map[string]string{"endpoint": "PJSIP/alice"}
	if err := c.Post(context.Background(), "/channels", nil, body, nil); err != nil {
		t.Fatalf("Post failed: %v", err)
	}
	if gotContentType != "application/json" {
		t.Errorf("Expected JSON content type, got %q", gotContentType)
	}
	if gotBody["endpoint"] != "PJSIP/alice" {
		t.Errorf("Body not sent: %v", gotBody)
	}
}

func TestQueryParameters(t *testing.T) {
	var gotQuery url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	query := url.Values{}
	query.Set("reason", "busy")
	if err := c.Delete(context.Background(), "/channels/c1", query); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if gotQuery.Get("reason") != "busy" {
		t.Errorf("Query not sent: %v", gotQuery)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message": "Channel not found"}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	err := c.Get(context.Background(), "/channels/missing", nil, nil)
	if err == nil {
		t.Fatal("Expected error for 404")
	}
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("Expected *RequestError, got %T", err)
	}
	if reqErr.Status != 404 {
		t.Errorf("Expected status 404, got %d", reqErr.Status)
	}
	if string(reqErr.Body) != `{"message": "Channel not found"}` {
		t.Errorf("Expected raw body preserved, got %q", reqErr.Body)
	}
}

func TestNetworkFailureHasStatusZero(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // refuse connections

	c := newTestClient(server.URL)
	err := c.Get(context.Background(), "/channels", nil, nil)
	if err == nil {
		t.Fatal("Expected connection error")
	}
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("Expected *RequestError, got %T", err)
	}
	if reqErr.Status != 0 {
		t.Errorf("Local faults must carry status 0, got %d", reqErr.Status)
	}
	if reqErr.Unwrap() == nil {
		t.Error("Local faults must wrap their cause")
	}
}

func TestEmptyResponseLeavesOutUntouched(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	out := map[string]string{"sentinel": "kept"}
	if err := c.Get(context.Background(), "/channels/c1", nil, &out); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if out["sentinel"] != "kept" {
		t.Errorf("204 must leave out untouched, got %v", out)
	}
}

func TestRetryOnServerError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	c := New(Config{
		BaseURL: server.URL,
		RetryConfig: &RetryConfig{
			MaxRetries: 3,
			BaseDelay:  time.Millisecond,
			MaxDelay:   5 * time.Millisecond,
		},
	})
	if err := c.Post(context.Background(), "/channels/c1/answer", nil, nil, nil); err != nil {
		t.Fatalf("Expected success after retries, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("Expected 3 attempts, got %d", got)
	}
}

func TestNoRetryOnClientError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	c := New(Config{
		BaseURL: server.URL,
		RetryConfig: &RetryConfig{
			MaxRetries: 3,
			BaseDelay:  time.Millisecond,
		},
	})
	if err := c.Get(context.Background(), "/channels", nil, nil); err == nil {
		t.Fatal("Expected error for 400")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("4xx must not be retried, got %d attempts", got)
	}
}
