package behavior

import (
	"context"
	"time"

	"github.com/referralguard/referral-integrity-backend/internal/domain/behavior"
)

// Service analyzes behavioral events into scored patterns.
type Service interface {
	// AnalyzeBehaviorPattern extracts features from an event context,
	// scores them against the user's history and persists the result.
	AnalyzeBehaviorPattern(ctx context.Context, userID, patternType string, event EventContext) (*behavior.BehaviorPattern, error)
}

// PatternRepository is the pattern storage capability consumed by the
// analyzer and the anomaly detector.
type PatternRepository interface {
	// Save inserts one pattern row.
	Save(ctx context.Context, pattern *behavior.BehaviorPattern) error
	// GetRecentByType returns up to limit patterns of one type for a
	// user, most recent first.
	GetRecentByType(ctx context.Context, userID, patternType string, limit int) ([]*behavior.BehaviorPattern, error)
	// GetRecent returns up to limit patterns of any type for a user,
	// most recent first.
	GetRecent(ctx context.Context, userID string, limit int) ([]*behavior.BehaviorPattern, error)
}

// EventContext carries the raw signals of one behavioral event. Metadata
// values that parse as numbers are folded into the feature map.
type EventContext struct {
	OccurredAt time.Time
	IP         string
	UserAgent  string
	Metadata   map[string]string
}
