package account

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAccountFreeze(t *testing.T) {
	t.Run("defaults to full-account sentinel", func(t *testing.T) {
		f, err := NewAccountFreeze("user-1", "referral farming", "op-1", nil, nil)
		require.NoError(t, err)
		assert.Equal(t, FrozenFeatures{FeatureAll}, f.FrozenFeatures)
		assert.True(t, f.Active(time.Now()))
	})

	t.Run("rejects missing fields", func(t *testing.T) {
		_, err := NewAccountFreeze("", "reason", "op-1", nil, nil)
		require.Error(t, err)
		_, err = NewAccountFreeze("user-1", "  ", "op-1", nil, nil)
		require.Error(t, err)
		_, err = NewAccountFreeze("user-1", "reason", "", nil, nil)
		require.Error(t, err)
	})
}

func TestAccountFreeze_Active(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name      string
		expiresAt *time.Time
		liftedAt  *time.Time
		active    bool
	}{
		{"no expiry, not lifted", nil, nil, true},
		{"future expiry", &future, nil, true},
		{"past expiry", &past, nil, false},
		{"lifted early", &future, &past, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &AccountFreeze{UserID: "u", ExpiresAt: tt.expiresAt, LiftedAt: tt.liftedAt}
			assert.Equal(t, tt.active, f.Active(now))
		})
	}
}

func TestFrozenFeatures(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		data, err := FrozenFeatures{"invite", "withdraw"}.Marshal()
		require.NoError(t, err)
		got := UnmarshalFrozenFeatures(data)
		assert.Equal(t, FrozenFeatures{"invite", "withdraw"}, got)
	})

	t.Run("sentinel covers everything", func(t *testing.T) {
		f := FrozenFeatures{FeatureAll}
		assert.True(t, f.Covers("invite"))
		assert.True(t, f.Covers("withdraw"))
	})

	t.Run("specific tags cover only themselves", func(t *testing.T) {
		f := FrozenFeatures{"invite"}
		assert.True(t, f.Covers("invite"))
		assert.False(t, f.Covers("withdraw"))
	})

	t.Run("malformed payload degrades to empty set", func(t *testing.T) {
		assert.Empty(t, UnmarshalFrozenFeatures([]byte(`{"oops":1}`)))
		assert.Empty(t, UnmarshalFrozenFeatures(nil))
	})
}

func TestParseRiskLevel(t *testing.T) {
	assert.Equal(t, RiskHigh, ParseRiskLevel("high"))
	assert.Equal(t, RiskCritical, ParseRiskLevel("CRITICAL"))
	assert.Equal(t, RiskLow, ParseRiskLevel("garbage"))
	assert.Equal(t, RiskLow, ParseRiskLevel(""))
}
