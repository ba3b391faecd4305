// Package delivery implements the outbound HTTP delivery client, the
// backoff policy, and the delivery-consumer message handler.
package delivery

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Outcome classifies the result of a single delivery attempt.
type Outcome int

const (
	Success Outcome = iota
	RetryableFailure
	NonRetryableFailure
)

// Result carries the classification plus enough detail for logging and the
// last_error column.
type Result struct {
	Outcome    Outcome
	StatusCode int // 0 when no response was received
	Detail     string
}

// Client delivers a webhook payload over HTTP POST and classifies the
// outcome per the fixed table: 2xx is Success; 429, any 5xx, or a
// connection/timeout/DNS/TLS failure before a response (StatusCode 0) is
// RetryableFailure; every other 4xx, and any 3xx taken as-is, is
// NonRetryableFailure.
type Client struct {
	httpClient *http.Client
}

func NewClient(timeout time.Duration) *Client {
	return &Client{httpClient: &http.Client{
		Timeout: timeout,
		// Redirects are not followed, so a 3xx is classified as received.
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}}
}

// Deliver POSTs payload to targetURL and reports the classified outcome.
// eventID/attempt populate the standard delivery headers.
func (c *Client) Deliver(ctx context.Context, targetURL string, payload []byte, eventID string, attempt int) Result {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, targetURL, bytes.NewReader(payload))
	if err != nil {
		return Result{Outcome: NonRetryableFailure, Detail: fmt.Sprintf("building request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-ID", eventID)
	req.Header.Set("X-Webhook-Attempt", fmt.Sprintf("%d", attempt))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{Outcome: RetryableFailure, StatusCode: 0, Detail: err.Error()}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return Result{Outcome: Success, StatusCode: resp.StatusCode}
	case resp.StatusCode == 429 || resp.StatusCode >= 500:
		return Result{Outcome: RetryableFailure, StatusCode: resp.StatusCode, Detail: string(body)}
	default:
		return Result{Outcome: NonRetryableFailure, StatusCode: resp.StatusCode, Detail: string(body)}
	}
}
