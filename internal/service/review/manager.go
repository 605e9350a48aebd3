package review

import (
	"context"
	"log/slog"
	"time"

	"github.com/referralguard/referral-integrity-backend/internal/domain/errors"
	"github.com/referralguard/referral-integrity-backend/internal/domain/id"
	"github.com/referralguard/referral-integrity-backend/internal/domain/review"
)

// Service is the review-case management surface.
type Service interface {
	// CreateReviewCase assigns a "case_" prefixed id and persists the
	// case. The caller supplies the initial status (typically pending).
	CreateReviewCase(ctx context.Context, c *review.ReviewCase) (string, error)
	// GetReviewCases lists cases; the optional status and assignee
	// filters compose with AND semantics.
	GetReviewCases(ctx context.Context, status *review.Status, assignedTo *string) ([]*review.ReviewCase, error)
	// AssignCase moves a pending case into in_review for the operator.
	AssignCase(ctx context.Context, caseID, operatorID string) (*review.ReviewCase, error)
	// CloseCase moves an in_review case into a terminal status with the
	// operator's decision.
	CloseCase(ctx context.Context, caseID string, status review.Status, decision string) (*review.ReviewCase, error)
}

// Repository is the review-case storage capability.
type Repository interface {
	Create(ctx context.Context, c *review.ReviewCase) error
	GetByID(ctx context.Context, caseID string) (*review.ReviewCase, error)
	List(ctx context.Context, status *review.Status, assignedTo *string) ([]*review.ReviewCase, error)
	Update(ctx context.Context, c *review.ReviewCase) error
	// CountActiveByUser counts a user's cases not in a terminal status.
	CountActiveByUser(ctx context.Context, userID string) (int, error)
}

// manager implements the Service interface
type manager struct {
	repo   Repository
	ids    id.Generator
	logger *slog.Logger
}

// NewManager creates the review case manager.
func NewManager(repo Repository, ids id.Generator, logger *slog.Logger) Service {
	if ids == nil {
		ids = id.NewGenerator()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &manager{repo: repo, ids: ids, logger: logger}
}

func (m *manager) CreateReviewCase(ctx context.Context, c *review.ReviewCase) (string, error) {
	if c == nil {
		return "", errors.NewValidationError("INVALID_CASE", "review case cannot be nil")
	}
	if err := c.Validate(); err != nil {
		return "", err
	}

	c.ID = m.ids.CaseID()
	if c.Status == "" {
		c.Status = review.StatusPending
	}
	if c.Priority == "" {
		c.Priority = review.PriorityMedium
	}
	if c.Evidence == nil {
		c.Evidence = []review.EvidenceItem{}
	}
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	if err := m.repo.Create(ctx, c); err != nil {
		return "", errors.NewInternalError("failed to persist review case").WithCause(err)
	}

	return c.ID, nil
}

func (m *manager) GetReviewCases(ctx context.Context, status *review.Status, assignedTo *string) ([]*review.ReviewCase, error) {
	cases, err := m.repo.List(ctx, status, assignedTo)
	if err != nil {
		return nil, errors.NewInternalError("failed to query review cases").WithCause(err)
	}
	if cases == nil {
		cases = []*review.ReviewCase{}
	}
	return cases, nil
}

func (m *manager) AssignCase(ctx context.Context, caseID, operatorID string) (*review.ReviewCase, error) {
	c, err := m.load(ctx, caseID)
	if err != nil {
		return nil, err
	}

	if err := c.Assign(operatorID); err != nil {
		return nil, err
	}

	if err := m.repo.Update(ctx, c); err != nil {
		return nil, errors.NewInternalError("failed to update review case").WithCause(err)
	}
	return c, nil
}

func (m *manager) CloseCase(ctx context.Context, caseID string, status review.Status, decision string) (*review.ReviewCase, error) {
	c, err := m.load(ctx, caseID)
	if err != nil {
		return nil, err
	}

	if err := c.Close(status, decision); err != nil {
		return nil, err
	}

	if err := m.repo.Update(ctx, c); err != nil {
		return nil, errors.NewInternalError("failed to update review case").WithCause(err)
	}
	return c, nil
}

func (m *manager) load(ctx context.Context, caseID string) (*review.ReviewCase, error) {
	if caseID == "" {
		return nil, errors.NewValidationError("INVALID_CASE_ID", "case id is required")
	}
	c, err := m.repo.GetByID(ctx, caseID)
	if err != nil {
		return nil, errors.ErrCaseNotFound.WithCause(err)
	}
	return c, nil
}
