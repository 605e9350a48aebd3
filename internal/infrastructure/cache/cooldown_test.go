package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/referralguard/referral-integrity-backend/internal/domain/alert"
)

func newTestCooldown(t *testing.T, window time.Duration) (*AlertCooldown, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewAlertCooldown(client, window, zap.NewNop()), mr
}

func TestAlertCooldown_FirstAllowedThenSuppressed(t *testing.T) {
	cd, _ := newTestCooldown(t, 15*time.Minute)
	ctx := context.Background()

	allowed, err := cd.Allow(ctx, "user-1", alert.TypeVelocitySpike)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = cd.Allow(ctx, "user-1", alert.TypeVelocitySpike)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestAlertCooldown_IndependentPerUserAndType(t *testing.T) {
	cd, _ := newTestCooldown(t, 15*time.Minute)
	ctx := context.Background()

	allowed, err := cd.Allow(ctx, "user-1", alert.TypeVelocitySpike)
	require.NoError(t, err)
	require.True(t, allowed)

	// A different type for the same user has its own window.
	allowed, err = cd.Allow(ctx, "user-1", alert.TypePatternDeviation)
	require.NoError(t, err)
	assert.True(t, allowed)

	// A different user is unaffected.
	allowed, err = cd.Allow(ctx, "user-2", alert.TypeVelocitySpike)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestAlertCooldown_ExpiryReopensWindow(t *testing.T) {
	cd, mr := newTestCooldown(t, time.Minute)
	ctx := context.Background()

	allowed, err := cd.Allow(ctx, "user-1", alert.TypeVelocitySpike)
	require.NoError(t, err)
	require.True(t, allowed)

	mr.FastForward(2 * time.Minute)

	allowed, err = cd.Allow(ctx, "user-1", alert.TypeVelocitySpike)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestAlertCooldown_BackendErrorFailsOpen(t *testing.T) {
	cd, mr := newTestCooldown(t, time.Minute)
	mr.Close()

	allowed, err := cd.Allow(context.Background(), "user-1", alert.TypeVelocitySpike)
	require.Error(t, err)
	assert.True(t, allowed)
}

func TestAlertCooldown_Reset(t *testing.T) {
	cd, _ := newTestCooldown(t, 15*time.Minute)
	ctx := context.Background()

	allowed, err := cd.Allow(ctx, "user-1", alert.TypeVelocitySpike)
	require.NoError(t, err)
	require.True(t, allowed)

	require.NoError(t, cd.Reset(ctx, "user-1", alert.TypeVelocitySpike))

	allowed, err = cd.Allow(ctx, "user-1", alert.TypeVelocitySpike)
	require.NoError(t, err)
	assert.True(t, allowed)
}
