package behavior

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/referralguard/referral-integrity-backend/internal/domain/behavior"
	"github.com/referralguard/referral-integrity-backend/internal/domain/errors"
)

// analyzer implements the Service interface
type analyzer struct {
	repo      PatternRepository
	extractor *FeatureExtractor
	logger    *slog.Logger
}

// NewAnalyzer creates the behavior pattern analyzer.
func NewAnalyzer(repo PatternRepository, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &analyzer{
		repo:      repo,
		extractor: NewFeatureExtractor(),
		logger:    logger,
	}
}

// AnalyzeBehaviorPattern extracts features, scores the event against the
// user's history for the same pattern type and persists the result. The
// pattern is written even when the risk is low; a complete history matters
// more than alert volume. A failed write propagates so the caller knows
// the analysis was not durably recorded.
func (a *analyzer) AnalyzeBehaviorPattern(ctx context.Context, userID, patternType string, event EventContext) (*behavior.BehaviorPattern, error) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	features := a.extractor.Extract(event)

	history, err := a.repo.GetRecentByType(ctx, userID, patternType, HistoryLimit)
	if err != nil {
		// History is an input to scoring, not a side effect; degrade to
		// a cold start rather than failing the event flow.
		a.logger.WarnContext(ctx, "pattern history unavailable, scoring cold",
			"user_id", userID, "pattern_type", patternType, "error", err)
		history = nil
	}

	features[behavior.FeatureDailyFrequency] = dailyFrequency(history, event.OccurredAt)

	var score float64
	if len(history) == 0 {
		score = a.coldStartScore(features)
	} else {
		score = a.deviationScore(features, history)
	}

	pattern, err := behavior.NewBehaviorPattern(userID, patternType, features, score)
	if err != nil {
		return nil, err
	}
	pattern.CreatedAt = event.OccurredAt

	if err := a.repo.Save(ctx, pattern); err != nil {
		return nil, errors.NewInternalError("failed to persist behavior pattern").WithCause(err)
	}

	return pattern, nil
}

// coldStartScore rates an event with no history from static context
// heuristics alone. The weights sum below 1.0, so the result is always
// inside [0,1] with no division anywhere.
func (a *analyzer) coldStartScore(features behavior.FeatureMap) float64 {
	score := ColdStartBase
	score += ColdStartOffHours * features.Get(behavior.FeatureOffHours, 0)
	score += ColdStartNoUA * features.Get(behavior.FeatureUAMissing, 0)
	score += ColdStartPrivateIP * features.Get(behavior.FeatureIPPrivate, 0)
	return behavior.ClampScore(score)
}

// deviationScore combines how far the new feature vector sits from the
// historical distribution with the historical average risk. Both inputs
// raise the result monotonically.
func (a *analyzer) deviationScore(features behavior.FeatureMap, history []*behavior.BehaviorPattern) float64 {
	hourDev := hourDeviation(features, history)
	freqDev := frequencyDeviation(features, history)
	deviation := 0.5*hourDev + 0.5*freqDev

	var histSum float64
	for _, p := range history {
		histSum += p.RiskScore
	}
	histMean := histSum / float64(len(history))

	return behavior.ClampScore(DeviationWeight*deviation + HistoricalWeight*histMean)
}

// hourDeviation measures circular distance between the event hour and the
// historical mean hour, normalized so 12 hours apart scores 1.0.
func hourDeviation(features behavior.FeatureMap, history []*behavior.BehaviorPattern) float64 {
	var sum, n float64
	for _, p := range history {
		if v, ok := p.Features[behavior.FeatureHourOfDay]; ok {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	mean := sum / n

	d := math.Abs(features.Get(behavior.FeatureHourOfDay, mean) - mean)
	if d > 12 {
		d = 24 - d
	}
	return d / 12
}

// frequencyDeviation measures the relative distance of daily_frequency
// from its historical mean, squashed into [0,1).
func frequencyDeviation(features behavior.FeatureMap, history []*behavior.BehaviorPattern) float64 {
	var sum, n float64
	for _, p := range history {
		if v, ok := p.Features[behavior.FeatureDailyFrequency]; ok {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	mean := sum / n

	rel := math.Abs(features.Get(behavior.FeatureDailyFrequency, mean)-mean) / (mean + 1)
	return rel / (rel + 1)
}

// dailyFrequency counts prior events inside the lookback window, plus the
// event being analyzed.
func dailyFrequency(history []*behavior.BehaviorPattern, now time.Time) float64 {
	cutoff := now.Add(-DailyFrequencyWindow * time.Hour)
	count := 1.0
	for _, p := range history {
		if p.CreatedAt.After(cutoff) {
			count++
		}
	}
	return count
}
