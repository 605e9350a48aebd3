package review

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		to      Status
		allowed bool
	}{
		{"pending to in_review", StatusPending, StatusInReview, true},
		{"in_review to resolved", StatusInReview, StatusResolved, true},
		{"in_review to rejected", StatusInReview, StatusRejected, true},
		{"pending to resolved skips review", StatusPending, StatusResolved, false},
		{"pending to rejected skips review", StatusPending, StatusRejected, false},
		{"resolved is terminal", StatusResolved, StatusInReview, false},
		{"rejected is terminal", StatusRejected, StatusPending, false},
		{"in_review back to pending", StatusInReview, StatusPending, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, CanTransition(tt.from, tt.to))
		})
	}
}

func TestReviewCase_Assign(t *testing.T) {
	c := &ReviewCase{
		ID:        "case_abc",
		UserID:    "user-1",
		CaseType:  "suspicious_behavior",
		Status:    StatusPending,
		CreatedAt: time.Now().Add(-time.Hour),
	}

	require.NoError(t, c.Assign("op-7"))
	assert.Equal(t, StatusInReview, c.Status)
	require.NotNil(t, c.AssignedTo)
	assert.Equal(t, "op-7", *c.AssignedTo)
	assert.False(t, c.UpdatedAt.IsZero())

	// Already in review; a second assignment is an invalid transition.
	err := c.Assign("op-8")
	require.Error(t, err)
	assert.Equal(t, "op-7", *c.AssignedTo)
}

func TestReviewCase_Close(t *testing.T) {
	t.Run("resolve from in_review", func(t *testing.T) {
		c := &ReviewCase{Status: StatusInReview}
		require.NoError(t, c.Close(StatusResolved, "confirmed self-referral ring"))
		assert.Equal(t, StatusResolved, c.Status)
		require.NotNil(t, c.Decision)
		assert.Equal(t, "confirmed self-referral ring", *c.Decision)
	})

	t.Run("cannot resolve from pending", func(t *testing.T) {
		c := &ReviewCase{Status: StatusPending}
		err := c.Close(StatusRejected, "n/a")
		require.Error(t, err)
		assert.Equal(t, StatusPending, c.Status)
		assert.Nil(t, c.Decision)
	})

	t.Run("close requires terminal target", func(t *testing.T) {
		c := &ReviewCase{Status: StatusInReview}
		require.Error(t, c.Close(StatusInReview, "loop"))
	})
}

func TestEvidenceRoundTrip(t *testing.T) {
	items := []EvidenceItem{
		{Kind: "alert", AddedAt: time.Now().UTC(), Payload: []byte(`{"alert_id":"alert_x"}`)},
		{Kind: "note", AddedAt: time.Now().UTC()},
	}

	data, err := MarshalEvidence(items)
	require.NoError(t, err)

	got := UnmarshalEvidence(data)
	require.Len(t, got, 2)
	assert.Equal(t, "alert", got[0].Kind)
}

func TestUnmarshalEvidence_Malformed(t *testing.T) {
	assert.Empty(t, UnmarshalEvidence([]byte("{not json")))
	assert.Empty(t, UnmarshalEvidence(nil))
	assert.NotNil(t, UnmarshalEvidence(nil))
}
