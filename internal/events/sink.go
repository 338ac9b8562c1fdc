package events

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"
)

// Event is one structured audit event handed to a sink.
type Event struct {
	Entity  EntityType     `json:"entity"`
	Action  ActionType     `json:"action"`
	ActorID string         `json:"actor_id,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
	At      time.Time      `json:"at"`
}

// Sink receives batches of audit events. Delivery is at-least-once and
// asynchronous from the caller's perspective; implementations must not block
// the engine's synchronous path.
type Sink interface {
	Emit(ctx context.Context, events []Event) error
}

// NoopSink discards events. Used when no webhook is configured.
type NoopSink struct{}

func (NoopSink) Emit(ctx context.Context, events []Event) error { return nil }

// LogSink writes events to slog at debug level. Useful in tests and when
// diagnosing carry-over behavior.
type LogSink struct{}

func (LogSink) Emit(ctx context.Context, events []Event) error {
	for _, ev := range events {
		slog.Debug("audit event", "entity", ev.Entity, "action", ev.Action, "actor", ev.ActorID, "payload", ev.Payload)
	}
	return nil
}

// WebhookSink POSTs event batches as JSON to a configured URL, signing the
// body with an optional HMAC secret. Batches are chunked and delivered
// concurrently; each chunk retries with exponential backoff.
type WebhookSink struct {
	URL       string
	Secret    string
	Client    *http.Client
	ChunkSize int

	// MaxElapsed caps the retry window per chunk. Zero means the backoff
	// default (15 minutes), which is far too long for a CLI process; callers
	// normally set something on the order of seconds.
	MaxElapsed time.Duration
}

// Emit delivers events in chunks. A chunk that exhausts its retries fails the
// whole call, but delivery is at-least-once: some chunks may have landed.
func (s *WebhookSink) Emit(ctx context.Context, evs []Event) error {
	if s.URL == "" || len(evs) == 0 {
		return nil
	}

	chunk := s.ChunkSize
	if chunk <= 0 {
		chunk = 50
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for start := 0; start < len(evs); start += chunk {
		end := start + chunk
		if end > len(evs) {
			end = len(evs)
		}
		batch := evs[start:end]
		g.Go(func() error {
			return s.deliver(ctx, batch)
		})
	}
	return g.Wait()
}

func (s *WebhookSink) deliver(ctx context.Context, batch []Event) error {
	body, err := json.Marshal(map[string]any{"events": batch})
	if err != nil {
		return fmt.Errorf("marshal events: %w", err)
	}

	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	bo := backoff.NewExponentialBackOff()
	if s.MaxElapsed > 0 {
		bo.MaxElapsedTime = s.MaxElapsed
	}

	attempt := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		if s.Secret != "" {
			mac := hmac.New(sha256.New, []byte(s.Secret))
			mac.Write(body)
			req.Header.Set("X-Cadence-Signature", hex.EncodeToString(mac.Sum(nil)))
		}

		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return fmt.Errorf("webhook returned %d", resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			// Client errors will not improve on retry.
			return backoff.Permanent(fmt.Errorf("webhook returned %d", resp.StatusCode))
		}
		return nil
	}

	if err := backoff.Retry(attempt, backoff.WithContext(bo, ctx)); err != nil {
		slog.Debug("webhook delivery failed", "url", s.URL, "events", len(batch), "err", err)
		return err
	}
	return nil
}
