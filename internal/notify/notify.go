// Package notify delivers best-effort notifications. Delivery failures are
// logged and swallowed; they never propagate to trading code.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Notifier delivers a single message to a recipient.
type Notifier interface {
	Send(ctx context.Context, subject, body, recipient string) error
}

// WebhookNotifier posts messages as JSON to a configured webhook URL.
type WebhookNotifier struct {
	url        string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewWebhookNotifier creates a webhook-backed notifier.
func NewWebhookNotifier(url string, logger *zap.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		url:        url,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger.Named("webhook_notifier"),
	}
}

type webhookPayload struct {
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	Recipient string `json:"recipient"`
}

// Send posts the message to the webhook.
func (n *WebhookNotifier) Send(ctx context.Context, subject, body, recipient string) error {
	payload, err := json.Marshal(webhookPayload{Subject: subject, Body: body, Recipient: recipient})
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post notification: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("notification webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Dispatcher sends notifications on detached goroutines so callers never
// block on delivery and never see delivery errors.
type Dispatcher struct {
	notifier Notifier
	logger   *zap.Logger
	timeout  time.Duration
	wg       sync.WaitGroup
}

// NewDispatcher creates a dispatcher around the given notifier. A nil
// notifier disables dispatch entirely.
func NewDispatcher(notifier Notifier, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		notifier: notifier,
		logger:   logger.Named("notify_dispatcher"),
		timeout:  10 * time.Second,
	}
}

// Dispatch queues a best-effort send and returns immediately.
func (d *Dispatcher) Dispatch(subject, body, recipient string) {
	if d.notifier == nil {
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := d.notifier.Send(ctx, subject, body, recipient); err != nil {
			d.logger.Warn("Notification delivery failed",
				zap.String("subject", subject),
				zap.String("recipient", recipient),
				zap.Error(err))
			return
		}
		d.logger.Debug("Notification delivered",
			zap.String("subject", subject),
			zap.String("recipient", recipient))
	}()
}

// Wait blocks until all in-flight sends have finished. Used on shutdown and
// in tests.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
