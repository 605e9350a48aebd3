package review

import (
	"encoding/json"
	"time"

	"github.com/referralguard/referral-integrity-backend/internal/domain/errors"
)

// Priority ranks how quickly a case should be picked up.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Status tracks a case through the triage workflow.
type Status string

const (
	StatusPending  Status = "pending"
	StatusInReview Status = "in_review"
	StatusResolved Status = "resolved"
	StatusRejected Status = "rejected"
)

// Terminal reports whether the status ends the case lifecycle.
func (s Status) Terminal() bool {
	return s == StatusResolved || s == StatusRejected
}

// validTransitions encodes the forward-only state machine
// pending -> in_review -> {resolved, rejected}.
var validTransitions = map[Status][]Status{
	StatusPending:  {StatusInReview},
	StatusInReview: {StatusResolved, StatusRejected},
}

// CanTransition reports whether moving from to next is a legal step.
func CanTransition(from, to Status) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// EvidenceItem is one opaque piece of supporting material attached to
// a case, typically an alert snapshot or an operator note.
type EvidenceItem struct {
	Kind    string          `json:"kind"`
	AddedAt time.Time       `json:"added_at"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// MarshalEvidence serializes the ordered evidence list for persistence.
func MarshalEvidence(items []EvidenceItem) ([]byte, error) {
	if items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(items)
}

// UnmarshalEvidence deserializes persisted evidence, degrading to an
// empty list on malformed data.
func UnmarshalEvidence(data []byte) []EvidenceItem {
	if len(data) == 0 {
		return []EvidenceItem{}
	}
	var items []EvidenceItem
	if err := json.Unmarshal(data, &items); err != nil || items == nil {
		return []EvidenceItem{}
	}
	return items
}

// ReviewCase is a human-triage workstream created in response to one or
// more alerts.
type ReviewCase struct {
	ID         string         `json:"id"` // "case_" prefixed, assigned at creation
	UserID     string         `json:"user_id"`
	CaseType   string         `json:"case_type"`
	Priority   Priority       `json:"priority"`
	Status     Status         `json:"status"`
	AssignedTo *string        `json:"assigned_to,omitempty"`
	Evidence   []EvidenceItem `json:"evidence"`
	Decision   *string        `json:"decision,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// Validate checks the caller-supplied fields before creation.
func (c *ReviewCase) Validate() error {
	if c.UserID == "" {
		return errors.NewValidationError("INVALID_USER_ID", "case user id is required")
	}
	if c.CaseType == "" {
		return errors.NewValidationError("INVALID_CASE_TYPE", "case type is required")
	}
	return nil
}

// Assign moves the case into in_review and records the operator.
func (c *ReviewCase) Assign(operatorID string) error {
	if operatorID == "" {
		return errors.NewValidationError("INVALID_OPERATOR", "operator id is required")
	}
	if !CanTransition(c.Status, StatusInReview) {
		return errors.ErrInvalidTransition.WithDetails(map[string]interface{}{
			"from": string(c.Status),
			"to":   string(StatusInReview),
		})
	}
	c.Status = StatusInReview
	c.AssignedTo = &operatorID
	c.UpdatedAt = time.Now().UTC()
	return nil
}

// Close moves the case into a terminal status and records the decision.
func (c *ReviewCase) Close(to Status, decision string) error {
	if !to.Terminal() {
		return errors.NewValidationError("INVALID_STATUS", "close requires a terminal status")
	}
	if !CanTransition(c.Status, to) {
		return errors.ErrInvalidTransition.WithDetails(map[string]interface{}{
			"from": string(c.Status),
			"to":   string(to),
		})
	}
	c.Status = to
	c.Decision = &decision
	c.UpdatedAt = time.Now().UTC()
	return nil
}
