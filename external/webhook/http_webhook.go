package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/foxseedlab/gymvoice/internal/webhook"
)

const (
	webhookTimeout   = 15 * time.Second
	maxSendAttempts  = 3
	retryBaseBackoff = 500 * time.Millisecond
	errorBodyLimit   = 512

	headerSessionID = "X-GymVoice-Session-ID"
	headerSchema    = "X-GymVoice-Schema-Version"
)

var ErrRejected = errors.New("report webhook rejected the payload")

type HTTPSender struct {
	reportURL string
	client    *http.Client
	backoff   time.Duration
}

// NewHTTPSender posts report payloads as JSON. An empty URL disables delivery.
func NewHTTPSender(reportURL string) *HTTPSender {
	return &HTTPSender{
		reportURL: reportURL,
		client:    &http.Client{Timeout: webhookTimeout},
		backoff:   retryBaseBackoff,
	}
}

// SendReport delivers one finished report. Server errors and transport failures are
// retried; a 4xx answer is final.
func (s *HTTPSender) SendReport(ctx context.Context, payload webhook.ReportWebhookPayload) error {
	if s.reportURL == "" {
		return nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode report payload: %w", err)
	}

	attempt := 0
	send := func() error {
		attempt++
		retry, err := s.post(ctx, payload, body)
		if err != nil && !retry {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		slog.Warn("report webhook failed; retrying", "error", err, "session_id", payload.SessionID, "attempt", attempt, "wait", wait)
	}
	if err := backoff.RetryNotify(send, s.retryPolicy(ctx), notify); err != nil {
		return err
	}
	slog.Info("report webhook delivered", "session_id", payload.SessionID, "attempt", attempt)
	return nil
}

func (s *HTTPSender) retryPolicy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.backoff
	b.RandomizationFactor = 0.2
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, maxSendAttempts-1), ctx)
}

func (s *HTTPSender) post(ctx context.Context, payload webhook.ReportWebhookPayload, body []byte) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.reportURL, bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerSessionID, payload.SessionID)
	req.Header.Set(headerSchema, fmt.Sprint(payload.SchemaVersion))

	resp, err := s.client.Do(req)
	if err != nil {
		return ctx.Err() == nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return false, nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
	err = fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, bytes.TrimSpace(snippet))
	return resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests, err
}
