package repository

import (
	"context"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/referralguard/referral-integrity-backend/internal/domain/alert"
	"github.com/referralguard/referral-integrity-backend/internal/domain/errors"
)

// AlertRepository implements alerting.Repository on PostgreSQL.
type AlertRepository struct {
	db *pgxpool.Pool
}

// NewAlertRepository creates a new PostgreSQL alert repository
func NewAlertRepository(db *pgxpool.Pool) *AlertRepository {
	return &AlertRepository{db: db}
}

// Create inserts one alert row.
func (r *AlertRepository) Create(ctx context.Context, a *alert.AnomalyAlert) error {
	evidence, err := a.Evidence.Marshal()
	if err != nil {
		return errors.NewInternalError("failed to marshal evidence").WithCause(err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO anomaly_alerts (
			id, user_id, alert_type, severity, description, evidence, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, a.ID, a.UserID, a.AlertType, a.Severity, a.Description, evidence, a.Status, a.CreatedAt)

	if err != nil {
		if IsDuplicateKeyViolation(err) {
			return errors.NewConflictError("alert already exists").WithCause(err)
		}
		return errors.NewInternalError("failed to save alert").WithCause(err)
	}
	return nil
}

// ListActive returns pending alerts, newest first, optionally narrowed
// by severity.
func (r *AlertRepository) ListActive(ctx context.Context, severity *alert.Severity, limit int) ([]*alert.AnomalyAlert, error) {
	query := `
		SELECT id, user_id, alert_type, severity, description, evidence, status, created_at
		FROM anomaly_alerts
		WHERE status = $1`
	args := []any{alert.StatusPending}

	if severity != nil {
		query += ` AND severity = $2`
		args = append(args, *severity)
	}
	query += ` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(len(args)+1)
	args = append(args, limit)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.NewInternalError("failed to query alerts").WithCause(err)
	}
	defer rows.Close()

	return scanAlerts(rows)
}

// GetByID retrieves one alert.
func (r *AlertRepository) GetByID(ctx context.Context, alertID string) (*alert.AnomalyAlert, error) {
	var a alert.AnomalyAlert
	var evidence []byte

	err := r.db.QueryRow(ctx, `
		SELECT id, user_id, alert_type, severity, description, evidence, status, created_at
		FROM anomaly_alerts
		WHERE id = $1
	`, alertID).Scan(&a.ID, &a.UserID, &a.AlertType, &a.Severity, &a.Description, &evidence, &a.Status, &a.CreatedAt)

	if err != nil {
		if IsNotFound(err) {
			return nil, errors.ErrAlertNotFound
		}
		return nil, errors.NewInternalError("failed to get alert").WithCause(err)
	}
	a.Evidence = alert.UnmarshalEvidence(evidence)
	return &a, nil
}

// UpdateStatus moves an alert to a new status.
func (r *AlertRepository) UpdateStatus(ctx context.Context, alertID string, status alert.Status) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE anomaly_alerts SET status = $2 WHERE id = $1
	`, alertID, status)
	if err != nil {
		return errors.NewInternalError("failed to update alert status").WithCause(err)
	}
	if tag.RowsAffected() == 0 {
		return errors.ErrAlertNotFound
	}
	return nil
}

func scanAlerts(rows pgx.Rows) ([]*alert.AnomalyAlert, error) {
	var alerts []*alert.AnomalyAlert
	for rows.Next() {
		var a alert.AnomalyAlert
		var evidence []byte
		if err := rows.Scan(&a.ID, &a.UserID, &a.AlertType, &a.Severity, &a.Description, &evidence, &a.Status, &a.CreatedAt); err != nil {
			return nil, errors.NewInternalError("failed to scan alert").WithCause(err)
		}
		a.Evidence = alert.UnmarshalEvidence(evidence)
		alerts = append(alerts, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternalError("failed to iterate alerts").WithCause(err)
	}
	return alerts, nil
}
