package alert

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_Terminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.True(t, StatusReviewed.Terminal())
	assert.True(t, StatusDismissed.Terminal())
}

func TestParseSeverity(t *testing.T) {
	assert.Equal(t, SeverityCritical, ParseSeverity("critical"))
	assert.Equal(t, SeverityHigh, ParseSeverity("HIGH"))
	assert.Equal(t, SeverityLow, ParseSeverity("unknown"))
}

func TestEvidenceRoundTrip(t *testing.T) {
	e := Evidence{
		Reason:  "12 events in 60s",
		Metrics: map[string]float64{"count": 12, "window_seconds": 60},
	}

	data, err := e.Marshal()
	require.NoError(t, err)

	got := UnmarshalEvidence(data)
	assert.Equal(t, e.Reason, got.Reason)
	assert.Equal(t, 12.0, got.Metrics["count"])
}

func TestUnmarshalEvidence_Malformed(t *testing.T) {
	assert.Equal(t, Evidence{}, UnmarshalEvidence([]byte("not json")))
	assert.Equal(t, Evidence{}, UnmarshalEvidence(nil))
}

func TestAnomalyAlert_Validate(t *testing.T) {
	a := &AnomalyAlert{UserID: "user-1", AlertType: TypeVelocitySpike}
	require.NoError(t, a.Validate())

	require.Error(t, (&AnomalyAlert{AlertType: TypeVelocitySpike}).Validate())
	require.Error(t, (&AnomalyAlert{UserID: "user-1"}).Validate())
}
