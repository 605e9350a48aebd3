package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/referralguard/referral-integrity-backend/internal/domain/alert"
)

// CooldownPrefix namespaces cooldown keys in Redis.
const CooldownPrefix = "cooldown:alert:"

// AlertCooldown deduplicates alerts per user and alert type. The first
// call within the window claims the slot with SETNX; later calls are
// suppressed until the key expires.
type AlertCooldown struct {
	client *redis.Client
	window time.Duration
	logger *zap.Logger
}

// NewAlertCooldown creates a Redis-backed alert cooldown.
func NewAlertCooldown(client *redis.Client, window time.Duration, logger *zap.Logger) *AlertCooldown {
	return &AlertCooldown{
		client: client,
		window: window,
		logger: logger,
	}
}

// Allow reports whether an alert for this user and type may be emitted.
// A backend error is returned alongside true so callers can fail open.
func (c *AlertCooldown) Allow(ctx context.Context, userID string, alertType alert.Type) (bool, error) {
	key := fmt.Sprintf("%s%s:%s", CooldownPrefix, userID, alertType)

	claimed, err := c.client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), c.window).Result()
	if err != nil {
		c.logger.Error("cooldown check failed",
			zap.String("user_id", userID),
			zap.String("alert_type", string(alertType)),
			zap.Error(err))
		return true, fmt.Errorf("cooldown check failed: %w", err)
	}

	if !claimed {
		c.logger.Debug("alert suppressed by cooldown",
			zap.String("user_id", userID),
			zap.String("alert_type", string(alertType)))
	}
	return claimed, nil
}

// Reset clears the cooldown for a user and alert type.
func (c *AlertCooldown) Reset(ctx context.Context, userID string, alertType alert.Type) error {
	key := fmt.Sprintf("%s%s:%s", CooldownPrefix, userID, alertType)
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("cooldown reset failed: %w", err)
	}
	return nil
}
