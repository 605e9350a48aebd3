package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/referralguard/referral-integrity-backend/internal/domain/errors"
	"github.com/referralguard/referral-integrity-backend/internal/infrastructure/config"
	"github.com/referralguard/referral-integrity-backend/internal/service/alerting"
)

// WebhookNotifier implements alerting.Notifier by POSTing notifications
// to a configured security webhook.
type WebhookNotifier struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

// NewWebhookNotifier creates a webhook notifier from the notification
// configuration.
func NewWebhookNotifier(cfg *config.NotificationConfig, logger *zap.Logger) *WebhookNotifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WebhookNotifier{
		url: cfg.WebhookURL,
		client: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Send delivers one notification. Callers treat failures as best effort.
func (n *WebhookNotifier) Send(ctx context.Context, msg alerting.Notification) error {
	if n.url == "" {
		n.logger.Debug("webhook url not configured, dropping notification",
			zap.String("channel", msg.Channel),
			zap.String("subject", msg.Subject))
		return nil
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return errors.NewInternalError("failed to marshal notification").WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewBuffer(body))
	if err != nil {
		return errors.NewInternalError("failed to create webhook request").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Notification-Channel", msg.Channel)

	resp, err := n.client.Do(req)
	if err != nil {
		return errors.NewExternalError("webhook", "delivery failed").WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.NewExternalError("webhook", fmt.Sprintf("returned status: %d", resp.StatusCode))
	}

	n.logger.Debug("notification delivered",
		zap.String("channel", msg.Channel),
		zap.String("subject", msg.Subject))
	return nil
}
