package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/qorlgns1/binbang-sub001/internal/model"
)

// Webhook forwards notification payloads to the outbound-messaging
// collaborator over HTTP. With no URL configured it degrades to logging the
// payload, which keeps local runs self-contained.
type Webhook struct {
	url    string
	client *http.Client
	log    *zap.Logger
}

// NewWebhook creates the notifier.
func NewWebhook(url string, log *zap.Logger) *Webhook {
	return &Webhook{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
	}
}

// Notify posts one payload. The dedupe key has already been claimed by the
// caller, so a delivery failure here means the notification is lost rather
// than duplicated; the error is surfaced for the caller to log.
func (n *Webhook) Notify(ctx context.Context, payload model.NotificationPayload) error {
	if n.url == "" {
		n.log.Info("notification (no webhook configured)",
			zap.String("accommodation", payload.AccommodationName),
			zap.String("price", payload.Price),
			zap.String("url", payload.URL))
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post notification: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("notification webhook returned %d", resp.StatusCode)
	}
	return nil
}
