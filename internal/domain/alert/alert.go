package alert

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/referralguard/referral-integrity-backend/internal/domain/errors"
)

// Type classifies what kind of anomaly an alert reports.
type Type string

const (
	TypeVelocitySpike    Type = "velocity_spike"
	TypePatternDeviation Type = "pattern_deviation"
	TypeBehaviorAnomaly  Type = "behavior_anomaly"
)

// Severity ranks how urgent an alert is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ParseSeverity maps a string to a Severity, defaulting to low.
func ParseSeverity(s string) Severity {
	switch Severity(strings.ToLower(s)) {
	case SeverityMedium:
		return SeverityMedium
	case SeverityHigh:
		return SeverityHigh
	case SeverityCritical:
		return SeverityCritical
	default:
		return SeverityLow
	}
}

// Status tracks where an alert is in the triage flow.
type Status string

const (
	StatusPending   Status = "pending"
	StatusReviewed  Status = "reviewed"
	StatusDismissed Status = "dismissed"
)

// Terminal reports whether the status ends the alert lifecycle.
func (s Status) Terminal() bool {
	return s == StatusReviewed || s == StatusDismissed
}

// Evidence is the structured payload attached to an alert explaining why
// it fired.
type Evidence struct {
	Reason  string             `json:"reason"`
	Metrics map[string]float64 `json:"metrics,omitempty"`
}

// Marshal serializes evidence for persistence.
func (e Evidence) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalEvidence deserializes persisted evidence, degrading to an empty
// payload on malformed data.
func UnmarshalEvidence(data []byte) Evidence {
	if len(data) == 0 {
		return Evidence{}
	}
	var e Evidence
	if err := json.Unmarshal(data, &e); err != nil {
		return Evidence{}
	}
	return e
}

// AnomalyAlert is a flagged deviation from expected behavior.
type AnomalyAlert struct {
	ID          string    `json:"id"` // "alert_" prefixed, assigned at creation
	UserID      string    `json:"user_id"`
	AlertType   Type      `json:"alert_type"`
	Severity    Severity  `json:"severity"`
	Description string    `json:"description"`
	Evidence    Evidence  `json:"evidence"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// Validate checks the fields a caller must supply before creation. The ID
// is assigned by the store, not the caller.
func (a *AnomalyAlert) Validate() error {
	if a.UserID == "" {
		return errors.NewValidationError("INVALID_USER_ID", "alert user id is required")
	}
	if a.AlertType == "" {
		return errors.NewValidationError("INVALID_ALERT_TYPE", "alert type is required")
	}
	return nil
}
