package events

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func testEvents(n int) []Event {
	evs := make([]Event, n)
	for i := range evs {
		evs[i] = Event{
			Entity:  EntityMemberships,
			Action:  ActionMove,
			ActorID: "ana",
			At:      time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC),
		}
	}
	return evs
}

func TestWebhookSinkDelivers(t *testing.T) {
	var mu sync.Mutex
	var bodies [][]byte
	var signatures []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, body)
		signatures = append(signatures, r.Header.Get("X-Cadence-Signature"))
		mu.Unlock()
	}))
	defer srv.Close()

	sink := &WebhookSink{URL: srv.URL, Secret: "shh", ChunkSize: 3, MaxElapsed: time.Second}
	if err := sink.Emit(context.Background(), testEvents(7)); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(bodies) != 3 {
		t.Fatalf("requests = %d, want 3 chunks of <=3", len(bodies))
	}

	total := 0
	for i, body := range bodies {
		var payload struct {
			Events []Event `json:"events"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Fatalf("request %d: bad body: %v", i, err)
		}
		total += len(payload.Events)

		mac := hmac.New(sha256.New, []byte("shh"))
		mac.Write(body)
		if want := hex.EncodeToString(mac.Sum(nil)); signatures[i] != want {
			t.Errorf("request %d: signature = %q, want %q", i, signatures[i], want)
		}
	}
	if total != 7 {
		t.Errorf("delivered %d events, want 7", total)
	}
}

func TestWebhookSinkRetriesServerErrors(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts++
		n := attempts
		mu.Unlock()
		if n < 3 {
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	sink := &WebhookSink{URL: srv.URL, MaxElapsed: 5 * time.Second}
	if err := sink.Emit(context.Background(), testEvents(1)); err != nil {
		t.Fatalf("Emit should succeed after retries: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestWebhookSinkClientErrorIsPermanent(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts++
		mu.Unlock()
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	sink := &WebhookSink{URL: srv.URL, MaxElapsed: 5 * time.Second}
	if err := sink.Emit(context.Background(), testEvents(1)); err == nil {
		t.Fatal("Emit should surface the 4xx")
	}
	mu.Lock()
	defer mu.Unlock()
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (no retry on client error)", attempts)
	}
}

func TestWebhookSinkNoURL(t *testing.T) {
	sink := &WebhookSink{}
	if err := sink.Emit(context.Background(), testEvents(2)); err != nil {
		t.Errorf("unconfigured sink should be a no-op: %v", err)
	}
}
