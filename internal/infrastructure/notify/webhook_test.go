package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/referralguard/referral-integrity-backend/internal/infrastructure/config"
	"github.com/referralguard/referral-integrity-backend/internal/service/alerting"
)

func TestWebhookNotifier_Send(t *testing.T) {
	var received alerting.Notification
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, alerting.SecurityChannel, r.Header.Get("X-Notification-Channel"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(&config.NotificationConfig{
		WebhookURL: srv.URL,
		Timeout:    time.Second,
	}, zap.NewNop())

	err := n.Send(context.Background(), alerting.Notification{
		Channel: alerting.SecurityChannel,
		Subject: "velocity spike for user-1",
		Body:    "10 referral events in 10 minutes",
	})
	require.NoError(t, err)
	assert.Equal(t, "velocity spike for user-1", received.Subject)
}

func TestWebhookNotifier_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(&config.NotificationConfig{WebhookURL: srv.URL, Timeout: time.Second}, zap.NewNop())
	err := n.Send(context.Background(), alerting.Notification{Channel: alerting.SecurityChannel, Subject: "s"})
	assert.Error(t, err)
}

func TestWebhookNotifier_UnconfiguredDropsSilently(t *testing.T) {
	n := NewWebhookNotifier(&config.NotificationConfig{Timeout: time.Second}, zap.NewNop())
	err := n.Send(context.Background(), alerting.Notification{Channel: alerting.SecurityChannel, Subject: "s"})
	assert.NoError(t, err)
}

func TestWebhookNotifier_ConnectionRefused(t *testing.T) {
	n := NewWebhookNotifier(&config.NotificationConfig{
		WebhookURL: "http://127.0.0.1:1/hook",
		Timeout:    time.Second,
	}, zap.NewNop())
	err := n.Send(context.Background(), alerting.Notification{Channel: alerting.SecurityChannel, Subject: "s"})
	assert.Error(t, err)
}
