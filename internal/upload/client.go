package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const maxAttempts = 3

// Client sends export payloads to an ingest server over HTTP.
type Client struct {
	serverURL  string
	httpClient *http.Client
	backoff    time.Duration
}

// NewClient creates a new HTTP client for the ingest server.
func NewClient(serverURL string) *Client {
	return &Client{
		serverURL: strings.TrimRight(serverURL, "/"),
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		backoff: time.Second,
	}
}

// StatusError is a non-200 answer from the server.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upload failed (status %d): %s", e.Code, e.Body)
}

// retryable reports whether resending the same body could succeed.
// Validation failures are final; server-side trouble is not.
func (e *StatusError) retryable() bool {
	return e.Code >= 500 || e.Code == http.StatusRequestTimeout || e.Code == http.StatusTooManyRequests
}

// SendMetrics POSTs a metrics payload to /upload.
func (c *Client) SendMetrics(ctx context.Context, payload []byte) error {
	return c.send(ctx, "/upload", payload)
}

// SendWorkouts POSTs a workouts payload to /upload/workouts.
func (c *Client) SendWorkouts(ctx context.Context, payload []byte) error {
	return c.send(ctx, "/upload/workouts", payload)
}

// send retries up to 3 times with exponential backoff. Resending is safe
// because the server ignores rows it already has.
func (c *Client) send(ctx context.Context, path string, payload []byte) error {
	var lastErr error
	for attempt := range maxAttempts {
		if attempt > 0 {
			wait := c.backoff << uint(attempt-1)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}

		lastErr = c.post(ctx, path, payload)
		if lastErr == nil {
			return nil
		}
		var se *StatusError
		if errors.As(lastErr, &se) && !se.retryable() {
			return lastErr
		}
	}

	return fmt.Errorf("after %d attempts: %w", maxAttempts, lastErr)
}

func (c *Client) post(ctx context.Context, path string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusOK {
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return nil
}
