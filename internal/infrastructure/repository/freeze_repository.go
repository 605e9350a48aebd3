package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/referralguard/referral-integrity-backend/internal/domain/account"
	"github.com/referralguard/referral-integrity-backend/internal/domain/errors"
)

// FreezeRepository implements account.FreezeRepository on PostgreSQL.
type FreezeRepository struct {
	db *pgxpool.Pool
}

// NewFreezeRepository creates a new PostgreSQL freeze repository
func NewFreezeRepository(db *pgxpool.Pool) *FreezeRepository {
	return &FreezeRepository{db: db}
}

// Create inserts one freeze row.
func (r *FreezeRepository) Create(ctx context.Context, f *account.AccountFreeze) error {
	features, err := f.FrozenFeatures.Marshal()
	if err != nil {
		return errors.NewInternalError("failed to marshal frozen features").WithCause(err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO account_freezes (
			id, user_id, reason, frozen_features, frozen_by,
			created_at, expires_at, lifted_at, lifted_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, f.ID, f.UserID, f.Reason, features, f.FrozenBy,
		f.CreatedAt, f.ExpiresAt, f.LiftedAt, nullString(f.LiftedBy))

	if err != nil {
		return errors.NewInternalError("failed to save account freeze").WithCause(err)
	}
	return nil
}

// GetActiveByUser returns the most recent freeze still in force, or nil
// when the user is not frozen. A freeze is in force when it has not been
// lifted and has not expired.
func (r *FreezeRepository) GetActiveByUser(ctx context.Context, userID string, now time.Time) (*account.AccountFreeze, error) {
	var f account.AccountFreeze
	var features []byte
	var liftedBy sql.NullString

	err := r.db.QueryRow(ctx, `
		SELECT id, user_id, reason, frozen_features, frozen_by,
		       created_at, expires_at, lifted_at, lifted_by
		FROM account_freezes
		WHERE user_id = $1
		  AND lifted_at IS NULL
		  AND (expires_at IS NULL OR expires_at > $2)
		ORDER BY created_at DESC
		LIMIT 1
	`, userID, now).Scan(&f.ID, &f.UserID, &f.Reason, &features, &f.FrozenBy,
		&f.CreatedAt, &f.ExpiresAt, &f.LiftedAt, &liftedBy)

	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, errors.NewInternalError("failed to query account freezes").WithCause(err)
	}

	f.FrozenFeatures = account.UnmarshalFrozenFeatures(features)
	if liftedBy.Valid {
		f.LiftedBy = &liftedBy.String
	}
	return &f, nil
}

// LiftActiveByUser marks every active freeze lifted, returning how many
// rows changed.
func (r *FreezeRepository) LiftActiveByUser(ctx context.Context, userID, liftedBy string, now time.Time) (int, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE account_freezes
		SET lifted_at = $2, lifted_by = $3
		WHERE user_id = $1
		  AND lifted_at IS NULL
		  AND (expires_at IS NULL OR expires_at > $2)
	`, userID, now, liftedBy)
	if err != nil {
		return 0, errors.NewInternalError("failed to lift account freezes").WithCause(err)
	}
	return int(tag.RowsAffected()), nil
}
