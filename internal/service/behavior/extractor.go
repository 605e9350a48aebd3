package behavior

import (
	"net/netip"
	"strconv"

	"github.com/referralguard/referral-integrity-backend/internal/domain/behavior"
)

// FeatureExtractor turns a raw event context into a flat numeric feature
// map. All values are float64 so the deviation scorer can treat features
// uniformly.
type FeatureExtractor struct{}

// NewFeatureExtractor creates a feature extractor.
func NewFeatureExtractor() *FeatureExtractor {
	return &FeatureExtractor{}
}

// Extract derives the feature map for one event.
func (e *FeatureExtractor) Extract(event EventContext) behavior.FeatureMap {
	features := behavior.FeatureMap{}

	ts := event.OccurredAt
	hour := float64(ts.Hour())
	features[behavior.FeatureHourOfDay] = hour
	features[behavior.FeatureDayOfWeek] = float64(int(ts.Weekday()))

	if isOffHours(ts.Hour()) {
		features[behavior.FeatureOffHours] = 1
	} else {
		features[behavior.FeatureOffHours] = 0
	}

	if event.UserAgent == "" {
		features[behavior.FeatureUAMissing] = 1
		features[behavior.FeatureUALength] = 0
	} else {
		features[behavior.FeatureUAMissing] = 0
		features[behavior.FeatureUALength] = float64(len(event.UserAgent))
	}

	if addr, err := netip.ParseAddr(event.IP); err == nil && addr.IsPrivate() {
		features[behavior.FeatureIPPrivate] = 1
	} else {
		features[behavior.FeatureIPPrivate] = 0
	}

	features[behavior.FeatureMetadataCount] = float64(len(event.Metadata))

	// Numeric metadata values become features directly; everything
	// else is dropped rather than coerced.
	for key, raw := range event.Metadata {
		if _, exists := features[key]; exists {
			continue
		}
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			features[key] = v
		}
	}

	return features
}

func isOffHours(hour int) bool {
	return hour >= OffHoursStart || hour < OffHoursEnd
}
