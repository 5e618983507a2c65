package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hazyhaar/covwatch/guard"
	"github.com/hazyhaar/covwatch/kit"
)

// maxErrorBody bounds how much of a rejected delivery's response ends up
// in the returned error.
const maxErrorBody = 512

// Webhook POSTs each report as a JSON envelope. The report ID and the
// caller's trace ID travel as headers so receivers can deduplicate.
type Webhook struct {
	url        string
	client     *http.Client
	maxRetries int
	backoff    time.Duration
	logger     *slog.Logger
}

// WebhookOption configures a Webhook sink.
type WebhookOption func(*Webhook)

// WithWebhookRetries sets the maximum number of retries. Default: 3.
func WithWebhookRetries(n int) WebhookOption {
	return func(w *Webhook) { w.maxRetries = n }
}

// WithWebhookBackoff sets the delay before the first retry; it doubles on
// every further attempt. Default: 1s.
func WithWebhookBackoff(d time.Duration) WebhookOption {
	return func(w *Webhook) { w.backoff = d }
}

// WithWebhookClient replaces the HTTP client.
func WithWebhookClient(c *http.Client) WebhookOption {
	return func(w *Webhook) { w.client = c }
}

// WithWebhookLogger sets a custom logger.
func WithWebhookLogger(l *slog.Logger) WebhookOption {
	return func(w *Webhook) { w.logger = l }
}

// NewWebhook creates a Webhook sink targeting url.
func NewWebhook(url string, opts ...WebhookOption) *Webhook {
	w := &Webhook{
		url:        url,
		client:     &http.Client{Timeout: 10 * time.Second},
		maxRetries: 3,
		backoff:    time.Second,
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

func (w *Webhook) Close() error { return nil }

// Send delivers rep. 5xx, 429 and transport failures are retried; any other
// non-2xx status fails at once since repeating the same payload cannot fix it.
func (w *Webhook) Send(ctx context.Context, rep *Report) error {
	body, err := json.Marshal(Envelope{Type: "report", Data: rep})
	if err != nil {
		return fmt.Errorf("webhook: marshal: %w", err)
	}

	log := w.logger.With("report", rep.ID, "url", w.url)
	delay := w.backoff
	var lastErr error
	for attempt := 1; attempt <= w.maxRetries+1; attempt++ {
		if attempt > 1 {
			if err := wait(ctx, delay); err != nil {
				return err
			}
			delay *= 2
		}
		retry, err := w.deliver(ctx, rep.ID, body)
		if err == nil {
			return nil
		}
		lastErr = err
		log.Warn("webhook: delivery failed", "attempt", attempt, "error", err)
		if !retry {
			return err
		}
	}
	return fmt.Errorf("webhook: all retries exhausted: %w", lastErr)
}

func (w *Webhook) deliver(ctx context.Context, reportID string, body []byte) (retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("webhook: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "covwatch")
	req.Header.Set("X-Covwatch-Report", reportID)
	if id := kit.GetTraceID(ctx); id != "" {
		req.Header.Set("X-Trace-ID", id)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return ctx.Err() == nil, fmt.Errorf("webhook: post: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return false, nil
	}

	detail, _ := guard.LimitedReadAll(resp.Body, maxErrorBody)
	err = fmt.Errorf("webhook: status %d", resp.StatusCode)
	if len(detail) > 0 {
		err = fmt.Errorf("webhook: status %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
	}
	return resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests, err
}

func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
