package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/referralguard/referral-integrity-backend/internal/domain/behavior"
	"github.com/referralguard/referral-integrity-backend/internal/domain/errors"
)

// PatternRepository implements behavior.PatternRepository on PostgreSQL.
type PatternRepository struct {
	db *pgxpool.Pool
}

// NewPatternRepository creates a new PostgreSQL pattern repository
func NewPatternRepository(db *pgxpool.Pool) *PatternRepository {
	return &PatternRepository{db: db}
}

// Save inserts one pattern row.
func (r *PatternRepository) Save(ctx context.Context, p *behavior.BehaviorPattern) error {
	features, err := p.Features.Marshal()
	if err != nil {
		return errors.NewInternalError("failed to marshal features").WithCause(err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO behavior_patterns (
			id, user_id, pattern_type, features, risk_score, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`, p.ID, p.UserID, p.PatternType, features, p.RiskScore, p.CreatedAt)

	if err != nil {
		return errors.NewInternalError("failed to save behavior pattern").WithCause(err)
	}
	return nil
}

// GetRecentByType returns up to limit patterns of one type for a user,
// most recent first.
func (r *PatternRepository) GetRecentByType(ctx context.Context, userID, patternType string, limit int) ([]*behavior.BehaviorPattern, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, pattern_type, features, risk_score, created_at
		FROM behavior_patterns
		WHERE user_id = $1 AND pattern_type = $2
		ORDER BY created_at DESC
		LIMIT $3
	`, userID, patternType, limit)
	if err != nil {
		return nil, errors.NewInternalError("failed to query behavior patterns").WithCause(err)
	}
	defer rows.Close()

	return scanPatterns(rows)
}

// GetRecent returns up to limit patterns of any type for a user, most
// recent first.
func (r *PatternRepository) GetRecent(ctx context.Context, userID string, limit int) ([]*behavior.BehaviorPattern, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, pattern_type, features, risk_score, created_at
		FROM behavior_patterns
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, errors.NewInternalError("failed to query behavior patterns").WithCause(err)
	}
	defer rows.Close()

	return scanPatterns(rows)
}

func scanPatterns(rows pgx.Rows) ([]*behavior.BehaviorPattern, error) {
	var patterns []*behavior.BehaviorPattern
	for rows.Next() {
		var p behavior.BehaviorPattern
		var features []byte
		if err := rows.Scan(&p.ID, &p.UserID, &p.PatternType, &features, &p.RiskScore, &p.CreatedAt); err != nil {
			return nil, errors.NewInternalError("failed to scan behavior pattern").WithCause(err)
		}
		p.Features = behavior.UnmarshalFeatureMap(features)
		patterns = append(patterns, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternalError("failed to iterate behavior patterns").WithCause(err)
	}
	return patterns, nil
}
