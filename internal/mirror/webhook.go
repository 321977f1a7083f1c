package mirror

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"signal-recorder/internal/store"
)

// WebhookConfig holds the HTTP upload target.
type WebhookConfig struct {
	Enabled bool              `mapstructure:"enabled"`
	URL     string            `mapstructure:"url"`
	Headers map[string]string `mapstructure:"headers"`
}

// WebhookSink uploads the snapshot as a CSV document via HTTP POST.
type WebhookSink struct {
	url     string
	headers map[string]string
	client  *http.Client
}

// NewWebhookSink creates a new WebhookSink.
func NewWebhookSink(cfg WebhookConfig) *WebhookSink {
	return &WebhookSink{
		url:     cfg.URL,
		headers: cfg.Headers,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Name returns the name of the sink.
func (w *WebhookSink) Name() string {
	return "webhook"
}

// Mirror posts the snapshot.
func (w *WebhookSink) Mirror(ctx context.Context, snapshot Snapshot) error {
	var body bytes.Buffer
	if err := store.EncodeCSV(&body, snapshot.Records); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, &body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "text/csv")
	req.Header.Set("X-Snapshot-ID", snapshot.ID)
	req.Header.Set("X-Snapshot-Records", fmt.Sprintf("%d", len(snapshot.Records)))
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send snapshot: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}
