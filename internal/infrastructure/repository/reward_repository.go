package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/referralguard/referral-integrity-backend/internal/domain/errors"
)

// RewardRecoveryRepository implements account.RewardLedger on PostgreSQL.
// Recovery entries are written by the rewards bookkeeping pipeline; this
// repository only aggregates them.
type RewardRecoveryRepository struct {
	db *pgxpool.Pool
}

// NewRewardRecoveryRepository creates a new PostgreSQL reward recovery repository
func NewRewardRecoveryRepository(db *pgxpool.Pool) *RewardRecoveryRepository {
	return &RewardRecoveryRepository{db: db}
}

// TotalRecovered sums the rewards clawed back from a user.
func (r *RewardRecoveryRepository) TotalRecovered(ctx context.Context, userID string) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM reward_recoveries
		WHERE user_id = $1
	`, userID).Scan(&total)
	if err != nil {
		return decimal.Zero, errors.NewInternalError("failed to sum reward recoveries").WithCause(err)
	}
	return total, nil
}

// RecordRecovery appends one clawback entry.
func (r *RewardRecoveryRepository) RecordRecovery(ctx context.Context, userID, reason string, amount decimal.Decimal) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO reward_recoveries (user_id, amount, reason, recovered_at)
		VALUES ($1, $2, $3, NOW())
	`, userID, amount, reason)
	if err != nil {
		return errors.NewInternalError("failed to record reward recovery").WithCause(err)
	}
	return nil
}
