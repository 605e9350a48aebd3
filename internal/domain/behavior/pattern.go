package behavior

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/referralguard/referral-integrity-backend/internal/domain/errors"
)

// FeatureMap holds the flat numeric feature vector extracted from one event.
// Keys are feature names such as "hour_of_day" or "daily_frequency".
type FeatureMap map[string]float64

// Get returns the named feature, or the fallback when it is absent.
func (f FeatureMap) Get(name string, fallback float64) float64 {
	if v, ok := f[name]; ok {
		return v
	}
	return fallback
}

// Marshal serializes the feature map for persistence.
func (f FeatureMap) Marshal() ([]byte, error) {
	if f == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(f)
}

// UnmarshalFeatureMap deserializes a persisted feature map. Malformed
// payloads yield an empty map rather than an error; a missing feature is
// indistinguishable from a zero deviation on the read path.
func UnmarshalFeatureMap(data []byte) FeatureMap {
	if len(data) == 0 {
		return FeatureMap{}
	}
	var f FeatureMap
	if err := json.Unmarshal(data, &f); err != nil || f == nil {
		return FeatureMap{}
	}
	return f
}

// BehaviorPattern is a timestamped, scored snapshot of a user's feature
// vector for one event type. Patterns are immutable once written.
type BehaviorPattern struct {
	ID          uuid.UUID  `json:"id"`
	UserID      string     `json:"user_id"`
	PatternType string     `json:"pattern_type"`
	Features    FeatureMap `json:"features"`
	RiskScore   float64    `json:"risk_score"` // 0.0 - 1.0
	CreatedAt   time.Time  `json:"created_at"`
}

// NewBehaviorPattern builds a pattern row, clamping the risk score into [0,1].
func NewBehaviorPattern(userID, patternType string, features FeatureMap, riskScore float64) (*BehaviorPattern, error) {
	if userID == "" {
		return nil, errors.NewValidationError("INVALID_USER_ID", "user id is required")
	}
	if patternType == "" {
		return nil, errors.NewValidationError("INVALID_PATTERN_TYPE", "pattern type is required")
	}
	if features == nil {
		features = FeatureMap{}
	}

	return &BehaviorPattern{
		ID:          uuid.New(),
		UserID:      userID,
		PatternType: patternType,
		Features:    features,
		RiskScore:   ClampScore(riskScore),
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// ClampScore bounds a risk score or derived rate into [0,1].
func ClampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// Well-known feature names shared between the extractor and the analyzer.
const (
	FeatureHourOfDay      = "hour_of_day"
	FeatureDayOfWeek      = "day_of_week"
	FeatureDailyFrequency = "daily_frequency"
	FeatureOffHours       = "off_hours"
	FeatureIPPrivate      = "ip_private"
	FeatureUALength       = "ua_length"
	FeatureUAMissing      = "ua_missing"
	FeatureMetadataCount  = "metadata_count"
)
