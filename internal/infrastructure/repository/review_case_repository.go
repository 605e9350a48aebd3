package repository

import (
	"context"
	"database/sql"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/referralguard/referral-integrity-backend/internal/domain/errors"
	"github.com/referralguard/referral-integrity-backend/internal/domain/review"
)

// ReviewCaseRepository implements review.Repository on PostgreSQL.
type ReviewCaseRepository struct {
	db *pgxpool.Pool
}

// NewReviewCaseRepository creates a new PostgreSQL review case repository
func NewReviewCaseRepository(db *pgxpool.Pool) *ReviewCaseRepository {
	return &ReviewCaseRepository{db: db}
}

// Create inserts one case row.
func (r *ReviewCaseRepository) Create(ctx context.Context, c *review.ReviewCase) error {
	evidence, err := review.MarshalEvidence(c.Evidence)
	if err != nil {
		return errors.NewInternalError("failed to marshal case evidence").WithCause(err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO review_cases (
			id, user_id, case_type, priority, status, assigned_to,
			evidence, decision, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, c.ID, c.UserID, c.CaseType, c.Priority, c.Status, nullString(c.AssignedTo),
		evidence, nullString(c.Decision), c.CreatedAt, c.UpdatedAt)

	if err != nil {
		if IsDuplicateKeyViolation(err) {
			return errors.NewConflictError("case already exists").WithCause(err)
		}
		return errors.NewInternalError("failed to save review case").WithCause(err)
	}
	return nil
}

// GetByID retrieves one case.
func (r *ReviewCaseRepository) GetByID(ctx context.Context, caseID string) (*review.ReviewCase, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, user_id, case_type, priority, status, assigned_to,
		       evidence, decision, created_at, updated_at
		FROM review_cases
		WHERE id = $1
	`, caseID)

	c, err := scanCase(row)
	if err != nil {
		if IsNotFound(err) {
			return nil, errors.ErrCaseNotFound
		}
		return nil, errors.NewInternalError("failed to get review case").WithCause(err)
	}
	return c, nil
}

// List returns cases matching the optional status and assignee filters,
// newest first. Both filters apply together when both are set.
func (r *ReviewCaseRepository) List(ctx context.Context, status *review.Status, assignedTo *string) ([]*review.ReviewCase, error) {
	query := `
		SELECT id, user_id, case_type, priority, status, assigned_to,
		       evidence, decision, created_at, updated_at
		FROM review_cases
		WHERE 1=1`
	var args []any

	if status != nil {
		args = append(args, *status)
		query += ` AND status = $` + strconv.Itoa(len(args))
	}
	if assignedTo != nil {
		args = append(args, *assignedTo)
		query += ` AND assigned_to = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.NewInternalError("failed to query review cases").WithCause(err)
	}
	defer rows.Close()

	var cases []*review.ReviewCase
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, errors.NewInternalError("failed to scan review case").WithCause(err)
		}
		cases = append(cases, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternalError("failed to iterate review cases").WithCause(err)
	}
	return cases, nil
}

// Update persists the mutable fields of a case.
func (r *ReviewCaseRepository) Update(ctx context.Context, c *review.ReviewCase) error {
	evidence, err := review.MarshalEvidence(c.Evidence)
	if err != nil {
		return errors.NewInternalError("failed to marshal case evidence").WithCause(err)
	}

	tag, err := r.db.Exec(ctx, `
		UPDATE review_cases SET
			priority = $2, status = $3, assigned_to = $4,
			evidence = $5, decision = $6, updated_at = $7
		WHERE id = $1
	`, c.ID, c.Priority, c.Status, nullString(c.AssignedTo),
		evidence, nullString(c.Decision), c.UpdatedAt)

	if err != nil {
		return errors.NewInternalError("failed to update review case").WithCause(err)
	}
	if tag.RowsAffected() == 0 {
		return errors.ErrCaseNotFound
	}
	return nil
}

// CountActiveByUser counts a user's cases not in a terminal status.
func (r *ReviewCaseRepository) CountActiveByUser(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM review_cases
		WHERE user_id = $1 AND status NOT IN ($2, $3)
	`, userID, review.StatusResolved, review.StatusRejected).Scan(&count)
	if err != nil {
		return 0, errors.NewInternalError("failed to count review cases").WithCause(err)
	}
	return count, nil
}

func scanCase(row pgx.Row) (*review.ReviewCase, error) {
	var c review.ReviewCase
	var assignedTo, decision sql.NullString
	var evidence []byte

	err := row.Scan(&c.ID, &c.UserID, &c.CaseType, &c.Priority, &c.Status, &assignedTo,
		&evidence, &decision, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if assignedTo.Valid {
		c.AssignedTo = &assignedTo.String
	}
	if decision.Valid {
		c.Decision = &decision.String
	}
	c.Evidence = review.UnmarshalEvidence(evidence)
	return &c, nil
}

func nullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
