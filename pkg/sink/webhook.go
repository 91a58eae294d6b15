package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"batchrun/pkg/core"

	"go.uber.org/zap"
)

// WebhookConfig configures WebhookSink.
type WebhookConfig struct {
	URL     string
	Method  string
	Headers map[string]string
	Timeout time.Duration
	Filter  Filter
	Client  *http.Client
	// Logger receives the swallowed second-attempt failure, if set.
	Logger *zap.Logger
}

// WebhookSink streams RowResults as outbound HTTP calls. A failed call is
// retried exactly once after a one-second pause; a second failure is
// swallowed rather than propagated, per §4.C's documented asymmetry with the
// file-based sinks.
type WebhookSink struct {
	cfg    WebhookConfig
	client *http.Client
}

func NewWebhookSink(cfg WebhookConfig) *WebhookSink {
	if cfg.Method == "" {
		cfg.Method = http.MethodPost
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &WebhookSink{cfg: cfg, client: client}
}

// Initialize is a no-op for webhooks.
func (s *WebhookSink) Initialize(ctx context.Context) error { return nil }

// ExportResult posts the wrapped {timestamp, result} payload, retrying once
// on failure before swallowing the error.
func (s *WebhookSink) ExportResult(ctx context.Context, result core.RowResult) error {
	kvs := project(result, s.cfg.Filter)
	projected := make(map[string]any, len(kvs))
	for _, kv := range kvs {
		projected[kv.Key] = kv.Value
	}
	payload := map[string]any{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"result":    projected,
	}

	if err := s.post(ctx, payload); err != nil {
		time.Sleep(time.Second)
		if err := s.post(ctx, payload); err != nil {
			if s.cfg.Logger != nil {
				s.cfg.Logger.Warn("webhook export failed after retry, swallowing", zap.Error(err), zap.Int("row_index", result.Index))
			}
			return nil
		}
	}
	return nil
}

func (s *WebhookSink) post(ctx context.Context, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("sink: marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, s.cfg.Method, s.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("sink: build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range s.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sink: webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sink: webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Finalize is a no-op for webhooks.
func (s *WebhookSink) Finalize(ctx context.Context) error { return nil }
