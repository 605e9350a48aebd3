package account

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/referralguard/referral-integrity-backend/internal/domain/errors"
)

// FeatureAll is the sentinel capability tag meaning every account
// capability is frozen.
const FeatureAll = "all"

// FrozenFeatures is the set of capability tags restricted by a freeze.
type FrozenFeatures []string

// Marshal serializes the set for persistence.
func (f FrozenFeatures) Marshal() ([]byte, error) {
	if f == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(f)
}

// UnmarshalFrozenFeatures deserializes a persisted set, degrading to an
// empty set on malformed data so that a corrupt row never blocks the
// status read path.
func UnmarshalFrozenFeatures(data []byte) FrozenFeatures {
	if len(data) == 0 {
		return FrozenFeatures{}
	}
	var f FrozenFeatures
	if err := json.Unmarshal(data, &f); err != nil || f == nil {
		return FrozenFeatures{}
	}
	return f
}

// Covers reports whether the set restricts the given capability.
func (f FrozenFeatures) Covers(feature string) bool {
	for _, tag := range f {
		if tag == FeatureAll || tag == feature {
			return true
		}
	}
	return false
}

// AccountFreeze is a time-bounded restriction on some or all of a user's
// account capabilities.
type AccountFreeze struct {
	ID             uuid.UUID      `json:"id"`
	UserID         string         `json:"user_id"`
	Reason         string         `json:"reason"`
	FrozenFeatures FrozenFeatures `json:"frozen_features"`
	FrozenBy       string         `json:"frozen_by"`
	CreatedAt      time.Time      `json:"created_at"`
	ExpiresAt      *time.Time     `json:"expires_at,omitempty"`
	LiftedAt       *time.Time     `json:"lifted_at,omitempty"`
	LiftedBy       *string        `json:"lifted_by,omitempty"`
}

// NewAccountFreeze builds a freeze record; an empty feature set defaults
// to the full-account sentinel.
func NewAccountFreeze(userID, reason, frozenBy string, features FrozenFeatures, expiresAt *time.Time) (*AccountFreeze, error) {
	if userID == "" {
		return nil, errors.NewValidationError("INVALID_USER_ID", "freeze user id is required")
	}
	if strings.TrimSpace(reason) == "" {
		return nil, errors.NewValidationError("INVALID_REASON", "freeze reason is required")
	}
	if frozenBy == "" {
		return nil, errors.NewValidationError("INVALID_OPERATOR", "freeze operator id is required")
	}
	if len(features) == 0 {
		features = FrozenFeatures{FeatureAll}
	}

	return &AccountFreeze{
		ID:             uuid.New(),
		UserID:         userID,
		Reason:         reason,
		FrozenFeatures: features,
		FrozenBy:       frozenBy,
		CreatedAt:      time.Now().UTC(),
		ExpiresAt:      expiresAt,
	}, nil
}

// Active reports whether the freeze is in force at the given instant.
func (f *AccountFreeze) Active(now time.Time) bool {
	if f.LiftedAt != nil && !f.LiftedAt.After(now) {
		return false
	}
	if f.ExpiresAt != nil && !f.ExpiresAt.After(now) {
		return false
	}
	return true
}

// RiskLevel is the baseline classification supplied by the external
// fraud oracle.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// ParseRiskLevel maps a string to a RiskLevel, defaulting to low; the
// status read path must always produce a usable level.
func ParseRiskLevel(s string) RiskLevel {
	switch RiskLevel(strings.ToLower(s)) {
	case RiskMedium:
		return RiskMedium
	case RiskHigh:
		return RiskHigh
	case RiskCritical:
		return RiskCritical
	default:
		return RiskLow
	}
}

// AccountStatus is the derived, display-oriented view of a user's
// standing. It is computed on demand and never stored.
type AccountStatus struct {
	UserID                string          `json:"user_id"`
	IsFrozen              bool            `json:"is_frozen"`
	FrozenFeatures        FrozenFeatures  `json:"frozen_features"`
	FreezeReason          string          `json:"freeze_reason,omitempty"`
	RiskLevel             RiskLevel       `json:"risk_level"`
	TotalRecoveredRewards decimal.Decimal `json:"total_recovered_rewards"`
	ActiveReviewCases     int             `json:"active_review_cases"`
}
