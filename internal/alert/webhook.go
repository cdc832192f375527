package alert

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/probitylabs/sealchain/internal/incident"
)

// MetricsRecorder is an optional callback for recording delivery outcomes.
type MetricsRecorder func(success bool)

// WebhookNotifier POSTs incidents as JSON to a single endpoint, signing
// each request with HMAC-SHA256 so receivers can verify the origin.
type WebhookNotifier struct {
	url        string
	secret     string
	httpClient *http.Client
	logger     *zap.Logger
	onMetrics  MetricsRecorder

	// delays[attempt] is slept before that attempt; index 0 is unused.
	delays []time.Duration
}

// NewWebhookNotifier creates a WebhookNotifier for the given endpoint.
// The secret signs every payload; receivers recompute the HMAC from the
// raw body and compare it to the X-Sealchain-Signature header.
func NewWebhookNotifier(url, secret string, logger *zap.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		url:        url,
		secret:     secret,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
		delays:     []time.Duration{0, time.Second, 5 * time.Second, 25 * time.Second},
	}
}

// SetMetricsRecorder configures the metrics callback.
func (w *WebhookNotifier) SetMetricsRecorder(fn MetricsRecorder) {
	w.onMetrics = fn
}

// Notify implements Notifier. Delivery is retried with exponential
// backoff: 1s, 5s, 25s.
func (w *WebhookNotifier) Notify(ctx context.Context, inc *incident.Incident) error {
	body, err := json.Marshal(inc)
	if err != nil {
		return fmt.Errorf("marshal incident: %w", err)
	}
	signature := signPayload(body, w.secret)

	var lastErr string
	for attempt := 1; attempt <= 3; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(w.delays[attempt]):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		success, statusCode, errMsg := w.deliver(ctx, body, signature)
		if w.onMetrics != nil {
			w.onMetrics(success)
		}
		if success {
			return nil
		}

		lastErr = errMsg
		w.logger.Warn("alert: webhook delivery failed",
			zap.String("url", w.url),
			zap.Int("attempt", attempt),
			zap.Int("status", statusCode),
			zap.String("error", errMsg),
		)
	}
	return fmt.Errorf("webhook delivery to %s failed after 3 attempts: %s", w.url, lastErr)
}

// deliver performs a single HTTP POST delivery.
func (w *WebhookNotifier) deliver(ctx context.Context, body []byte, signature string) (bool, int, string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return false, 0, err.Error()
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Sealchain-Signature", signature)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return false, 0, err.Error()
	}
	defer resp.Body.Close()
	io.ReadAll(io.LimitReader(resp.Body, 1024)) //nolint:errcheck

	success := resp.StatusCode >= 200 && resp.StatusCode < 300
	errMsg := ""
	if !success {
		errMsg = fmt.Sprintf("HTTP %d", resp.StatusCode)
	}
	return success, resp.StatusCode, errMsg
}

// signPayload computes an HMAC-SHA256 signature.
func signPayload(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
