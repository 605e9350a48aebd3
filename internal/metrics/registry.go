package metrics

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Registry holds all domain-specific metrics for the application
type Registry struct {
	meter metric.Meter

	// Behavior analysis metrics
	PatternAnalysisDuration metric.Float64Histogram
	PatternsAnalyzedCounter metric.Int64Counter
	RiskScoreDistribution   metric.Float64Histogram

	// Anomaly detection metrics
	DetectionDuration metric.Float64Histogram
	AlertsRaised      metric.Int64Counter
	AlertsSuppressed  metric.Int64Counter

	// Case and freeze metrics
	CasesOpened      metric.Int64Counter
	CasesClosed      metric.Int64Counter
	AccountsFrozen   metric.Int64Counter
	AccountsUnfrozen metric.Int64Counter

	// System metrics
	APIRequestDuration metric.Float64Histogram
	APIRequestCounter  metric.Int64Counter
}

// NewRegistry creates a new metrics registry with all domain metrics
func NewRegistry(meterName string) (*Registry, error) {
	r := &Registry{meter: otel.Meter(meterName)}

	if err := r.initBehaviorMetrics(); err != nil {
		return nil, err
	}
	if err := r.initDetectionMetrics(); err != nil {
		return nil, err
	}
	if err := r.initCaseMetrics(); err != nil {
		return nil, err
	}
	if err := r.initSystemMetrics(); err != nil {
		return nil, err
	}

	return r, nil
}

func (r *Registry) initBehaviorMetrics() error {
	var err error

	r.PatternAnalysisDuration, err = r.meter.Float64Histogram(
		"rib.behavior.analysis_duration",
		metric.WithDescription("Duration of behavior pattern analysis in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 5, 10, 50, 100, 500),
	)
	if err != nil {
		return err
	}

	r.PatternsAnalyzedCounter, err = r.meter.Int64Counter(
		"rib.behavior.patterns_analyzed_total",
		metric.WithDescription("Total number of behavior patterns analyzed"),
	)
	if err != nil {
		return err
	}

	r.RiskScoreDistribution, err = r.meter.Float64Histogram(
		"rib.behavior.risk_score",
		metric.WithDescription("Distribution of computed risk scores"),
		metric.WithExplicitBucketBoundaries(0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9),
	)
	return err
}

func (r *Registry) initDetectionMetrics() error {
	var err error

	r.DetectionDuration, err = r.meter.Float64Histogram(
		"rib.anomaly.detection_duration",
		metric.WithDescription("Duration of anomaly detection runs in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 5, 10, 50, 100, 500),
	)
	if err != nil {
		return err
	}

	r.AlertsRaised, err = r.meter.Int64Counter(
		"rib.anomaly.alerts_raised_total",
		metric.WithDescription("Total number of anomaly alerts raised"),
	)
	if err != nil {
		return err
	}

	r.AlertsSuppressed, err = r.meter.Int64Counter(
		"rib.anomaly.alerts_suppressed_total",
		metric.WithDescription("Total number of alerts suppressed by cooldown"),
	)
	return err
}

func (r *Registry) initCaseMetrics() error {
	var err error

	r.CasesOpened, err = r.meter.Int64Counter(
		"rib.review.cases_opened_total",
		metric.WithDescription("Total number of review cases opened"),
	)
	if err != nil {
		return err
	}

	r.CasesClosed, err = r.meter.Int64Counter(
		"rib.review.cases_closed_total",
		metric.WithDescription("Total number of review cases closed"),
	)
	if err != nil {
		return err
	}

	r.AccountsFrozen, err = r.meter.Int64Counter(
		"rib.account.freezes_total",
		metric.WithDescription("Total number of account freezes applied"),
	)
	if err != nil {
		return err
	}

	r.AccountsUnfrozen, err = r.meter.Int64Counter(
		"rib.account.unfreezes_total",
		metric.WithDescription("Total number of account freezes lifted"),
	)
	return err
}

func (r *Registry) initSystemMetrics() error {
	var err error

	r.APIRequestDuration, err = r.meter.Float64Histogram(
		"rib.api.request_duration",
		metric.WithDescription("API request duration in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 50, 100, 500, 1000, 5000),
	)
	if err != nil {
		return err
	}

	r.APIRequestCounter, err = r.meter.Int64Counter(
		"rib.api.requests_total",
		metric.WithDescription("Total number of API requests"),
	)
	return err
}

// RecordPatternAnalysis records one analysis run
func (r *Registry) RecordPatternAnalysis(ctx context.Context, durationMS float64, patternType string, riskScore float64) {
	attrs := []attribute.KeyValue{
		attribute.String("pattern_type", patternType),
	}

	r.PatternAnalysisDuration.Record(ctx, durationMS, metric.WithAttributes(attrs...))
	r.PatternsAnalyzedCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
	r.RiskScoreDistribution.Record(ctx, riskScore, metric.WithAttributes(attrs...))
}

// RecordDetection records the duration of one detection run. Raised
// alerts are counted separately per type.
func (r *Registry) RecordDetection(ctx context.Context, durationMS float64) {
	r.DetectionDuration.Record(ctx, durationMS)
}

// RecordAlertRaised records one raised alert by type and severity
func (r *Registry) RecordAlertRaised(ctx context.Context, alertType, severity string) {
	r.AlertsRaised.Add(ctx, 1, metric.WithAttributes(
		attribute.String("alert_type", alertType),
		attribute.String("severity", severity),
	))
}

// RecordAlertSuppressed records one alert suppressed by cooldown
func (r *Registry) RecordAlertSuppressed(ctx context.Context, alertType string) {
	r.AlertsSuppressed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("alert_type", alertType),
	))
}

// RecordCaseOpened records one opened review case
func (r *Registry) RecordCaseOpened(ctx context.Context, caseType, priority string) {
	r.CasesOpened.Add(ctx, 1, metric.WithAttributes(
		attribute.String("case_type", caseType),
		attribute.String("priority", priority),
	))
}

// RecordCaseClosed records one closed review case
func (r *Registry) RecordCaseClosed(ctx context.Context, status string) {
	r.CasesClosed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", status),
	))
}

// RecordFreeze records one account freeze
func (r *Registry) RecordFreeze(ctx context.Context, fullAccount bool) {
	r.AccountsFrozen.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("full_account", fullAccount),
	))
}

// RecordUnfreeze records one lifted freeze
func (r *Registry) RecordUnfreeze(ctx context.Context) {
	r.AccountsUnfrozen.Add(ctx, 1)
}

// RecordAPIRequest records API request metrics
func (r *Registry) RecordAPIRequest(ctx context.Context, durationMS float64, method, path string, statusCode int) {
	attrs := []attribute.KeyValue{
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.Int("status_code", statusCode),
	}

	r.APIRequestDuration.Record(ctx, durationMS, metric.WithAttributes(attrs...))
	r.APIRequestCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
}
