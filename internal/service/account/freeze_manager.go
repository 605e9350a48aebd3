package account

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/referralguard/referral-integrity-backend/internal/domain/account"
	"github.com/referralguard/referral-integrity-backend/internal/domain/errors"
	"github.com/referralguard/referral-integrity-backend/internal/service/alerting"
)

// Service is the account freeze and status surface.
type Service interface {
	// FreezeAccount persists a freeze record and notifies best-effort.
	// An empty feature set freezes everything.
	FreezeAccount(ctx context.Context, req FreezeRequest) error
	// UnfreezeAccount lifts every active freeze for the user.
	UnfreezeAccount(ctx context.Context, userID, liftedBy string) error
	// GetAccountStatus composes the user's standing from the freeze
	// table, review cases, the risk oracle and the reward ledger. This
	// is a display read path: failed sub-queries degrade to safe
	// defaults instead of failing the call.
	GetAccountStatus(ctx context.Context, userID string) *account.AccountStatus
}

// FreezeRequest carries an operator's freeze decision.
type FreezeRequest struct {
	UserID         string
	Reason         string
	FrozenBy       string
	FrozenFeatures account.FrozenFeatures
	ExpiresAt      *time.Time
}

// FreezeRepository is the freeze storage capability.
type FreezeRepository interface {
	Create(ctx context.Context, f *account.AccountFreeze) error
	// GetActiveByUser returns the most recent freeze still in force, or
	// nil when the user is not frozen.
	GetActiveByUser(ctx context.Context, userID string, now time.Time) (*account.AccountFreeze, error)
	// LiftActiveByUser marks every active freeze lifted, returning how
	// many rows changed.
	LiftActiveByUser(ctx context.Context, userID, liftedBy string, now time.Time) (int, error)
}

// CaseCounter exposes the active review-case count for a user.
type CaseCounter interface {
	CountActiveByUser(ctx context.Context, userID string) (int, error)
}

// RiskOracle is the external baseline fraud service.
type RiskOracle interface {
	GetUserRiskLevel(ctx context.Context, userID string) (account.RiskLevel, error)
	BanUser(ctx context.Context, userID string) error
}

// RewardLedger exposes reward recovery totals from the external
// bookkeeping service.
type RewardLedger interface {
	TotalRecovered(ctx context.Context, userID string) (decimal.Decimal, error)
}

// manager implements the Service interface
type manager struct {
	freezes  FreezeRepository
	cases    CaseCounter
	oracle   RiskOracle
	rewards  RewardLedger
	notifier alerting.Notifier
	logger   *slog.Logger
}

// NewManager creates the account freeze manager. cases, oracle, rewards
// and notifier may each be nil; the status read path then uses defaults.
func NewManager(freezes FreezeRepository, cases CaseCounter, oracle RiskOracle, rewards RewardLedger, notifier alerting.Notifier, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &manager{
		freezes:  freezes,
		cases:    cases,
		oracle:   oracle,
		rewards:  rewards,
		notifier: notifier,
		logger:   logger,
	}
}

func (m *manager) FreezeAccount(ctx context.Context, req FreezeRequest) error {
	freeze, err := account.NewAccountFreeze(req.UserID, req.Reason, req.FrozenBy, req.FrozenFeatures, req.ExpiresAt)
	if err != nil {
		return err
	}

	if err := m.freezes.Create(ctx, freeze); err != nil {
		return errors.NewInternalError("failed to persist account freeze").WithCause(err)
	}

	m.notify(ctx, alerting.Notification{
		Channel: alerting.SecurityChannel,
		Subject: fmt.Sprintf("account %s frozen", req.UserID),
		Body:    fmt.Sprintf("features [%s] frozen by %s: %s", strings.Join(freeze.FrozenFeatures, ", "), req.FrozenBy, req.Reason),
		Metadata: map[string]string{
			"user_id":   req.UserID,
			"frozen_by": req.FrozenBy,
		},
	})

	return nil
}

func (m *manager) UnfreezeAccount(ctx context.Context, userID, liftedBy string) error {
	if userID == "" {
		return errors.NewValidationError("INVALID_USER_ID", "user id is required")
	}
	if liftedBy == "" {
		return errors.NewValidationError("INVALID_OPERATOR", "operator id is required")
	}

	lifted, err := m.freezes.LiftActiveByUser(ctx, userID, liftedBy, time.Now().UTC())
	if err != nil {
		return errors.NewInternalError("failed to lift account freeze").WithCause(err)
	}
	if lifted == 0 {
		return errors.ErrFreezeNotFound
	}

	m.notify(ctx, alerting.Notification{
		Channel: alerting.SecurityChannel,
		Subject: fmt.Sprintf("account %s unfrozen", userID),
		Body:    fmt.Sprintf("freeze lifted by %s", liftedBy),
		Metadata: map[string]string{
			"user_id":   userID,
			"lifted_by": liftedBy,
		},
	})

	return nil
}

func (m *manager) GetAccountStatus(ctx context.Context, userID string) *account.AccountStatus {
	status := &account.AccountStatus{
		UserID:                userID,
		FrozenFeatures:        account.FrozenFeatures{},
		RiskLevel:             account.RiskLow,
		TotalRecoveredRewards: decimal.Zero,
	}

	now := time.Now().UTC()
	if freeze, err := m.freezes.GetActiveByUser(ctx, userID, now); err != nil {
		m.logger.WarnContext(ctx, "freeze lookup failed, reporting unfrozen",
			"user_id", userID, "error", err)
	} else if freeze != nil && freeze.Active(now) {
		status.IsFrozen = true
		status.FrozenFeatures = freeze.FrozenFeatures
		status.FreezeReason = freeze.Reason
	}

	if m.cases != nil {
		if count, err := m.cases.CountActiveByUser(ctx, userID); err != nil {
			m.logger.WarnContext(ctx, "active case count failed, reporting zero",
				"user_id", userID, "error", err)
		} else {
			status.ActiveReviewCases = count
		}
	}

	if m.oracle != nil {
		if level, err := m.oracle.GetUserRiskLevel(ctx, userID); err != nil {
			m.logger.WarnContext(ctx, "risk oracle unavailable, defaulting to low",
				"user_id", userID, "error", err)
		} else {
			status.RiskLevel = account.ParseRiskLevel(string(level))
		}
	}

	if m.rewards != nil {
		if total, err := m.rewards.TotalRecovered(ctx, userID); err != nil {
			m.logger.WarnContext(ctx, "reward ledger unavailable, reporting zero",
				"user_id", userID, "error", err)
		} else {
			status.TotalRecoveredRewards = total
		}
	}

	return status
}

func (m *manager) notify(ctx context.Context, n alerting.Notification) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Send(ctx, n); err != nil {
		m.logger.WarnContext(ctx, "freeze notification failed",
			"subject", n.Subject, "error", err)
	}
}
