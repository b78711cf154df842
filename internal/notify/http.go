package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// HTTPEmitter sends events to an HTTP endpoint as JSON.
type HTTPEmitter struct {
	endpoint string
	client   *http.Client
	log      *slog.Logger
}

// NewHTTPEmitter creates a new HTTP emitter.
func NewHTTPEmitter(endpoint string) *HTTPEmitter {
	return &HTTPEmitter{
		endpoint: endpoint,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: slog.With("component", "notify"),
	}
}

// Emit sends the event to the configured endpoint with retries.
func (e *HTTPEmitter) Emit(ctx context.Context, evt Event) error {
	var lastErr error
	retries := 3
	delay := time.Second

	for attempt := 1; attempt <= retries; attempt++ {
		err := e.post(ctx, evt)
		if err == nil {
			return nil
		}

		lastErr = err
		if attempt < retries {
			e.log.Warn("emit attempt failed, retrying",
				"attempt", attempt, "retries", retries, "delay", delay.String(), "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
	}

	return fmt.Errorf("all %d attempts failed: %w", retries, lastErr)
}

// post sends a single POST request to the endpoint.
func (e *HTTPEmitter) post(ctx context.Context, evt Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", e.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	respBody, _ := io.ReadAll(resp.Body)
	return fmt.Errorf("http %d: %s", resp.StatusCode, string(respBody))
}

// Close releases resources.
func (e *HTTPEmitter) Close() error {
	return nil
}

var _ Emitter = (*HTTPEmitter)(nil)
