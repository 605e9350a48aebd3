package anomaly

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/referralguard/referral-integrity-backend/internal/domain/alert"
	"github.com/referralguard/referral-integrity-backend/internal/domain/behavior"
	svcbehavior "github.com/referralguard/referral-integrity-backend/internal/service/behavior"
)

// Service evaluates a user's recent pattern history against the
// detection rules.
type Service interface {
	// DetectPatternAnomalies returns zero or more alerts for the user.
	// Detection is best-effort: storage failures yield an empty result,
	// never an error, so the caller's primary flow is never blocked.
	DetectPatternAnomalies(ctx context.Context, userID string) []*alert.AnomalyAlert
}

// Cooldown suppresses duplicate alerts for the same (user, type) while a
// condition persists. Implementations are best-effort; a cooldown error
// must not swallow an alert.
type Cooldown interface {
	// Allow reports whether an alert of this type may fire for the user,
	// and if so opens the cooldown window.
	Allow(ctx context.Context, userID string, alertType alert.Type) (bool, error)
}

// MetricsCollector receives detection outcome metrics. Implementations
// must be safe for concurrent use.
type MetricsCollector interface {
	// RecordAlertSuppressed records one alert dropped by cooldown.
	RecordAlertSuppressed(ctx context.Context, alertType string)
}

// DetectionRules configures the independent detection rules.
type DetectionRules struct {
	// MinHistory is the smallest history that carries statistical signal.
	MinHistory int
	// HistoryLimit bounds how many recent patterns one detection reads.
	HistoryLimit int
	// VelocityMaxCount is the event count that trips the velocity rule.
	VelocityMaxCount int
	// VelocityWindow is the rolling window the velocity rule counts in.
	VelocityWindow time.Duration
	// DeviationDelta is the margin the latest score must exceed the
	// prior mean by to trip the deviation rule.
	DeviationDelta float64
}

// DefaultDetectionRules returns the production rule thresholds.
func DefaultDetectionRules() DetectionRules {
	return DetectionRules{
		MinHistory:       5,
		HistoryLimit:     50,
		VelocityMaxCount: 10,
		VelocityWindow:   10 * time.Minute,
		DeviationDelta:   0.3,
	}
}

// detector implements the Service interface
type detector struct {
	repo     svcbehavior.PatternRepository
	cooldown Cooldown
	rules    DetectionRules
	metrics  MetricsCollector
	logger   *slog.Logger
}

// NewDetector creates the anomaly detector. cooldown and metrics may be
// nil; without a cooldown every detected condition emits.
func NewDetector(repo svcbehavior.PatternRepository, cooldown Cooldown, rules DetectionRules, metrics MetricsCollector, logger *slog.Logger) Service {
	if rules.MinHistory <= 0 {
		rules = DefaultDetectionRules()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &detector{
		repo:     repo,
		cooldown: cooldown,
		rules:    rules,
		metrics:  metrics,
		logger:   logger,
	}
}

// DetectPatternAnomalies reads the user's recent patterns across all
// pattern types (a burst of mixed registration and invite events is
// exactly the signal the velocity rule exists for) and runs each rule
// independently. Rules are additive; one call may return alerts of
// several types.
func (d *detector) DetectPatternAnomalies(ctx context.Context, userID string) []*alert.AnomalyAlert {
	history, err := d.repo.GetRecent(ctx, userID, d.rules.HistoryLimit)
	if err != nil {
		d.logger.WarnContext(ctx, "anomaly detection skipped, history unavailable",
			"user_id", userID, "error", err)
		return []*alert.AnomalyAlert{}
	}

	if len(history) < d.rules.MinHistory {
		return []*alert.AnomalyAlert{}
	}

	alerts := []*alert.AnomalyAlert{}
	if a := d.checkVelocitySpike(userID, history); a != nil {
		alerts = append(alerts, a)
	}
	if a := d.checkPatternDeviation(userID, history); a != nil {
		alerts = append(alerts, a)
	}

	return d.applyCooldown(ctx, userID, alerts)
}

// checkVelocitySpike counts patterns inside the rolling window ending at
// the newest event. Severity scales with how far the count overshoots
// the threshold.
func (d *detector) checkVelocitySpike(userID string, history []*behavior.BehaviorPattern) *alert.AnomalyAlert {
	newest := history[0].CreatedAt
	cutoff := newest.Add(-d.rules.VelocityWindow)

	count := 0
	for _, p := range history {
		if !p.CreatedAt.Before(cutoff) {
			count++
		}
	}

	if count < d.rules.VelocityMaxCount {
		return nil
	}

	ratio := float64(count) / float64(d.rules.VelocityMaxCount)
	severity := alert.SeverityMedium
	switch {
	case ratio >= 3:
		severity = alert.SeverityCritical
	case ratio >= 2:
		severity = alert.SeverityHigh
	}

	return &alert.AnomalyAlert{
		UserID:      userID,
		AlertType:   alert.TypeVelocitySpike,
		Severity:    severity,
		Description: fmt.Sprintf("%d behavioral events within %s", count, d.rules.VelocityWindow),
		Evidence: alert.Evidence{
			Reason: "event velocity exceeded threshold",
			Metrics: map[string]float64{
				"count":          float64(count),
				"threshold":      float64(d.rules.VelocityMaxCount),
				"window_seconds": d.rules.VelocityWindow.Seconds(),
			},
		},
		Status: alert.StatusPending,
	}
}

// checkPatternDeviation compares the newest risk score with the mean of
// the prior history; a jump beyond the configured margin trips the rule.
func (d *detector) checkPatternDeviation(userID string, history []*behavior.BehaviorPattern) *alert.AnomalyAlert {
	latest := history[0]
	prior := history[1:]
	if len(prior) == 0 {
		return nil
	}

	var sum float64
	for _, p := range prior {
		sum += p.RiskScore
	}
	mean := sum / float64(len(prior))

	excess := latest.RiskScore - mean
	if excess <= d.rules.DeviationDelta {
		return nil
	}

	severity := alert.SeverityMedium
	if excess > 2*d.rules.DeviationDelta {
		severity = alert.SeverityHigh
	}

	return &alert.AnomalyAlert{
		UserID:      userID,
		AlertType:   alert.TypePatternDeviation,
		Severity:    severity,
		Description: fmt.Sprintf("risk score %.2f deviates from historical mean %.2f", latest.RiskScore, mean),
		Evidence: alert.Evidence{
			Reason: "latest risk score exceeds historical baseline",
			Metrics: map[string]float64{
				"latest_score":    latest.RiskScore,
				"historical_mean": mean,
				"margin":          d.rules.DeviationDelta,
			},
		},
		Status: alert.StatusPending,
	}
}

// applyCooldown drops alerts still inside their suppression window. On a
// cooldown backend error the alert passes through: a noisy alert beats a
// silently dropped one.
func (d *detector) applyCooldown(ctx context.Context, userID string, alerts []*alert.AnomalyAlert) []*alert.AnomalyAlert {
	if d.cooldown == nil || len(alerts) == 0 {
		return alerts
	}

	kept := alerts[:0]
	for _, a := range alerts {
		allowed, err := d.cooldown.Allow(ctx, userID, a.AlertType)
		if err != nil {
			d.logger.WarnContext(ctx, "alert cooldown check failed, emitting anyway",
				"user_id", userID, "alert_type", a.AlertType, "error", err)
			allowed = true
		}
		if allowed {
			kept = append(kept, a)
			continue
		}
		d.logger.DebugContext(ctx, "alert suppressed by cooldown",
			"user_id", userID, "alert_type", a.AlertType)
		if d.metrics != nil {
			d.metrics.RecordAlertSuppressed(ctx, string(a.AlertType))
		}
	}
	return kept
}
