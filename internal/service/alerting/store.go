package alerting

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/referralguard/referral-integrity-backend/internal/domain/alert"
	"github.com/referralguard/referral-integrity-backend/internal/domain/errors"
	"github.com/referralguard/referral-integrity-backend/internal/domain/id"
)

// Service is the alert persistence and query surface.
type Service interface {
	// CreateAnomalyAlert assigns an id, persists the alert and fires a
	// best-effort operator notification. The returned id is "alert_"
	// prefixed. Storage failures propagate; notification failures never do.
	CreateAnomalyAlert(ctx context.Context, a *alert.AnomalyAlert) (string, error)
	// GetActiveAlerts returns non-terminal alerts, optionally narrowed
	// by severity; limit <= 0 applies the default bound.
	GetActiveAlerts(ctx context.Context, severity *alert.Severity, limit int) ([]*alert.AnomalyAlert, error)
	// UpdateAlertStatus moves a pending alert into a terminal status.
	UpdateAlertStatus(ctx context.Context, alertID string, status alert.Status) (*alert.AnomalyAlert, error)
}

// Repository is the alert storage capability.
type Repository interface {
	Create(ctx context.Context, a *alert.AnomalyAlert) error
	GetByID(ctx context.Context, alertID string) (*alert.AnomalyAlert, error)
	ListActive(ctx context.Context, severity *alert.Severity, limit int) ([]*alert.AnomalyAlert, error)
	UpdateStatus(ctx context.Context, alertID string, status alert.Status) error
}

// Notification is a fire-and-forget message for the security channel.
type Notification struct {
	Channel  string            `json:"channel"`
	Subject  string            `json:"subject"`
	Body     string            `json:"body"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Notifier dispatches notifications. Errors are caught by callers and
// never surface past the alerting layer.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
}

// SecurityChannel is where anomaly alerts are announced.
const SecurityChannel = "security-alerts"

// DefaultActiveLimit bounds unfiltered active-alert queries.
const DefaultActiveLimit = 100

// store implements the Service interface
type store struct {
	repo     Repository
	notifier Notifier
	ids      id.Generator
	logger   *slog.Logger
}

// NewStore creates the alert store. notifier may be nil.
func NewStore(repo Repository, notifier Notifier, ids id.Generator, logger *slog.Logger) Service {
	if ids == nil {
		ids = id.NewGenerator()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &store{
		repo:     repo,
		notifier: notifier,
		ids:      ids,
		logger:   logger,
	}
}

func (s *store) CreateAnomalyAlert(ctx context.Context, a *alert.AnomalyAlert) (string, error) {
	if a == nil {
		return "", errors.NewValidationError("INVALID_ALERT", "alert cannot be nil")
	}
	if err := a.Validate(); err != nil {
		return "", err
	}

	a.ID = s.ids.AlertID()
	if a.Status == "" {
		a.Status = alert.StatusPending
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	if err := s.repo.Create(ctx, a); err != nil {
		return "", errors.NewInternalError("failed to persist anomaly alert").WithCause(err)
	}

	s.notify(ctx, a)

	return a.ID, nil
}

func (s *store) GetActiveAlerts(ctx context.Context, severity *alert.Severity, limit int) ([]*alert.AnomalyAlert, error) {
	if limit <= 0 {
		limit = DefaultActiveLimit
	}

	alerts, err := s.repo.ListActive(ctx, severity, limit)
	if err != nil {
		return nil, errors.NewInternalError("failed to query active alerts").WithCause(err)
	}
	if alerts == nil {
		alerts = []*alert.AnomalyAlert{}
	}
	return alerts, nil
}

// UpdateAlertStatus applies a reviewer's disposition. An alert moves
// from pending to reviewed or dismissed exactly once.
func (s *store) UpdateAlertStatus(ctx context.Context, alertID string, status alert.Status) (*alert.AnomalyAlert, error) {
	if !status.Terminal() {
		return nil, errors.NewValidationError("INVALID_STATUS", "alert status must be reviewed or dismissed")
	}

	a, err := s.repo.GetByID(ctx, alertID)
	if err != nil {
		return nil, errors.ErrAlertNotFound
	}
	if a.Status.Terminal() {
		return nil, errors.NewBusinessError("INVALID_TRANSITION",
			fmt.Sprintf("alert is already %s", a.Status))
	}

	if err := s.repo.UpdateStatus(ctx, alertID, status); err != nil {
		return nil, errors.NewInternalError("failed to update alert status").WithCause(err)
	}

	a.Status = status
	return a, nil
}

// notify announces the alert on the security channel. Dispatch failures
// are logged and swallowed; the alert was already durably recorded.
func (s *store) notify(ctx context.Context, a *alert.AnomalyAlert) {
	if s.notifier == nil {
		return
	}

	n := Notification{
		Channel: SecurityChannel,
		Subject: fmt.Sprintf("[%s] %s for user %s", a.Severity, a.AlertType, a.UserID),
		Body:    a.Description,
		Metadata: map[string]string{
			"alert_id":   a.ID,
			"user_id":    a.UserID,
			"alert_type": string(a.AlertType),
			"severity":   string(a.Severity),
		},
	}

	if err := s.notifier.Send(ctx, n); err != nil {
		s.logger.WarnContext(ctx, "alert notification failed",
			"alert_id", a.ID, "user_id", a.UserID, "error", err)
	}
}
