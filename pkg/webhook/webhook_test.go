package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/jvs-project/timelock/pkg/logging"
	"github.com/jvs-project/timelock/pkg/model"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Enabled {
		t.Error("default config should be disabled")
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("expected MaxRetries 3, got %d", cfg.MaxRetries)
	}
	if cfg.RetryDelay != 5*time.Second {
		t.Errorf("expected RetryDelay 5s, got %v", cfg.RetryDelay)
	}
	if cfg.AsyncQueueSize != 100 {
		t.Errorf("expected AsyncQueueSize 100, got %d", cfg.AsyncQueueSize)
	}
}

func TestTypeOf(t *testing.T) {
	for _, et := range model.EventTypes {
		got := TypeOf(et)
		if string(got) != "vault."+string(et) {
			t.Errorf("TypeOf(%s) = %s", et, got)
		}
	}
	if TypeOf(model.EventWithdrawn) != EventWithdrawn {
		t.Errorf("withdrawn maps to %s", TypeOf(model.EventWithdrawn))
	}
}

func TestFromModel(t *testing.T) {
	enabled := false
	ts := time.Date(2026, 5, 1, 8, 30, 0, 0, time.UTC)
	ev := model.Event{
		ID:        "ev-1",
		Type:      model.EventDepositsToggled,
		Vault:     common.HexToAddress("0x00000000000000000000000000000000000000aa"),
		Actor:     common.HexToAddress("0x00000000000000000000000000000000000000bb"),
		Enabled:   &enabled,
		Timestamp: ts,
	}

	got := FromModel(ev)
	if got.Event != EventDepositsToggled {
		t.Errorf("event = %s", got.Event)
	}
	if got.Timestamp != "2026-05-01T08:30:00Z" {
		t.Errorf("timestamp = %s", got.Timestamp)
	}
	if got.Amount != "" {
		t.Errorf("zero amount should be omitted, got %q", got.Amount)
	}
	if got.Enabled == nil || *got.Enabled {
		t.Error("enabled flag lost")
	}

	big := FromModel(model.Event{Type: model.EventDeposited, Amount: model.MaxAmount})
	if big.Amount != "18446744073709551615" {
		t.Errorf("amount = %s", big.Amount)
	}
}

func TestClientSendSync(t *testing.T) {
	var received map[string]any
	var eventHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		eventHeader = r.Header.Get("X-Timelock-Event")
		_ = json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(&Config{
		Enabled:    true,
		MaxRetries: 1,
		RetryDelay: 10 * time.Millisecond,
		Hooks: []HookConfig{
			{URL: server.URL, Events: []EventType{EventDeposited}, Enabled: true},
		},
	}, WithLogger(logging.Discard()))
	defer client.Close()

	err := client.Send(Event{Event: EventDeposited, ID: "x", Amount: "42"}, false)
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if received == nil {
		t.Fatal("expected event to be received")
	}
	if received["event"] != string(EventDeposited) {
		t.Errorf("expected event %s, got %v", EventDeposited, received["event"])
	}
	if received["amount"] != "42" {
		t.Errorf("expected amount 42, got %v", received["amount"])
	}
	if eventHeader != string(EventDeposited) {
		t.Errorf("event header = %q", eventHeader)
	}
}

func TestClientSignsWithHookSecret(t *testing.T) {
	var body []byte
	var signature string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		signature = r.Header.Get(SignatureHeader)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewClient(&Config{
		Enabled: true,
		Hooks: []HookConfig{
			{URL: server.URL, Secret: "s3cret", Events: []EventType{EventAll}, Enabled: true},
		},
	}, WithLogger(logging.Discard()), WithSigningKey([]byte("fallback")))
	defer client.Close()

	if err := client.Send(Event{Event: EventWithdrawn}, false); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if !Verify(body, []byte("s3cret"), signature) {
		t.Errorf("signature %q does not verify with hook secret", signature)
	}
	if Verify(body, []byte("fallback"), signature) {
		t.Error("hook secret should take precedence over the signing key")
	}
}

func TestClientSignsWithSigningKey(t *testing.T) {
	var body []byte
	var signature string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		signature = r.Header.Get(SignatureHeader)
	}))
	defer server.Close()

	client := NewClient(&Config{
		Enabled: true,
		Hooks:   []HookConfig{{URL: server.URL, Events: []EventType{EventAll}, Enabled: true}},
	}, WithLogger(logging.Discard()), WithSigningKey([]byte("derived")))
	defer client.Close()

	if err := client.Send(Event{Event: EventDeployed}, false); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if !Verify(body, []byte("derived"), signature) {
		t.Errorf("signature %q does not verify with signing key", signature)
	}
}

func TestClientRetries(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(&Config{
		Enabled:    true,
		MaxRetries: 3,
		RetryDelay: time.Millisecond,
		Hooks:      []HookConfig{{URL: server.URL, Events: []EventType{EventAll}, Enabled: true}},
	}, WithLogger(logging.Discard()))
	defer client.Close()

	if err := client.Send(Event{Event: EventDeposited}, false); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if got := atomic.LoadInt32(&attempts); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
}

func TestClientGivesUp(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(&Config{
		Enabled:    true,
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
		Hooks:      []HookConfig{{URL: server.URL, Events: []EventType{EventAll}, Enabled: true}},
	}, WithLogger(logging.Discard()))
	defer client.Close()

	err := client.Send(Event{Event: EventDeposited}, false)
	if err == nil {
		t.Fatal("expected error")
	}
	if got := atomic.LoadInt32(&attempts); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
}

func TestClientFiltersEvents(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer server.Close()

	client := NewClient(&Config{
		Enabled: true,
		Hooks: []HookConfig{
			{URL: server.URL, Events: []EventType{EventWithdrawn}, Enabled: true},
			{URL: server.URL, Events: []EventType{EventAll}, Enabled: false},
		},
	}, WithLogger(logging.Discard()))
	defer client.Close()

	_ = client.Send(Event{Event: EventDeposited}, false)
	_ = client.Send(Event{Event: EventWithdrawn}, false)

	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Errorf("expected 1 delivery, got %d", got)
	}
}

func TestClientDisabled(t *testing.T) {
	client := NewClient(&Config{
		Enabled: false,
		Hooks:   []HookConfig{{URL: "http://127.0.0.1:1", Events: []EventType{EventAll}, Enabled: true}},
	})
	if err := client.Send(Event{Event: EventDeposited}, false); err != nil {
		t.Errorf("disabled client should not send: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("close: %v", err)
	}
}

func TestClientHandleIsAsync(t *testing.T) {
	var mu sync.Mutex
	var got []string
	done := make(chan struct{}, 2)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ev Event
		_ = json.NewDecoder(r.Body).Decode(&ev)
		mu.Lock()
		got = append(got, ev.ID)
		mu.Unlock()
		done <- struct{}{}
	}))
	defer server.Close()

	client := NewClient(&Config{
		Enabled: true,
		Hooks:   []HookConfig{{URL: server.URL, Events: []EventType{EventAll}, Enabled: true}},
	}, WithLogger(logging.Discard()))

	ctx := context.Background()
	if err := client.Handle(ctx, model.Event{ID: "a", Type: model.EventDeposited, Amount: 1}); err != nil {
		t.Fatal(err)
	}
	if err := client.Handle(ctx, model.Event{ID: "b", Type: model.EventWithdrawn, Amount: 1}); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for delivery")
		}
	}
	_ = client.Close()

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("deliveries = %v", got)
	}
}

func TestClientCloseIsIdempotent(t *testing.T) {
	client := NewClient(&Config{Enabled: true}, WithLogger(logging.Discard()))
	if err := client.Close(); err != nil {
		t.Fatal(err)
	}
	if err := client.Close(); err != nil {
		t.Fatal(err)
	}
	if err := client.Send(Event{Event: EventDeposited}, true); err != nil {
		t.Errorf("send after close: %v", err)
	}
}
