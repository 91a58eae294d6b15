package exporter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"batchrun/pkg/core"
	"batchrun/pkg/sink"

	"go.uber.org/zap"
)

// WebhookBulkConfig configures the bulk (post-hoc) webhook export path,
// distinct from the Streaming Sink's per-row webhook posts: each call here
// carries a batch of projected rows rather than one.
type WebhookBulkConfig struct {
	URL       string
	Method    string
	Headers   map[string]string
	Timeout   time.Duration
	BatchSize int
	Client    *http.Client
	Logger    *zap.Logger
}

// exportWebhook posts results in batches of cfg.Webhook.BatchSize (default
// 50), each body shaped {"timestamp", "results": [...], "count": N} per
// §6's bulk webhook protocol. A batch failure is retried once after a
// one-second pause, matching the Streaming Sink's webhook retry policy, but
// here a final failure propagates to the caller rather than being
// swallowed: bulk export has no row-level retry loop to fall back on.
func exportWebhook(ctx context.Context, results []core.RowResult, cfg Config) error {
	w := cfg.Webhook
	method := w.Method
	if method == "" {
		method = http.MethodPost
	}
	timeout := w.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := w.Client
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	batchSize := w.BatchSize
	if batchSize <= 0 {
		batchSize = 50
	}

	for start := 0; start < len(results); start += batchSize {
		end := start + batchSize
		if end > len(results) {
			end = len(results)
		}
		chunk := results[start:end]

		projected := make([]map[string]any, 0, len(chunk))
		for _, r := range chunk {
			kvs := sink.Project(r, cfg.Filter)
			obj := make(map[string]any, len(kvs))
			for _, kv := range kvs {
				obj[kv.Key] = kv.Value
			}
			projected = append(projected, obj)
		}

		payload := map[string]any{
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"results":   projected,
			"count":     len(projected),
		}

		if err := postBulk(ctx, client, method, w.URL, w.Headers, payload); err != nil {
			time.Sleep(time.Second)
			if err := postBulk(ctx, client, method, w.URL, w.Headers, payload); err != nil {
				if w.Logger != nil {
					w.Logger.Warn("bulk webhook export failed after retry", zap.Error(err), zap.Int("batch_start", start))
				}
				return fmt.Errorf("exporter: bulk webhook export failed for rows %d-%d: %w", start, end-1, err)
			}
		}
	}
	return nil
}

func postBulk(ctx context.Context, client *http.Client, method, url string, headers map[string]string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("exporter: marshal webhook payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("exporter: build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("exporter: webhook request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("exporter: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
