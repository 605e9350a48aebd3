package riskclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/referralguard/referral-integrity-backend/internal/domain/account"
	"github.com/referralguard/referral-integrity-backend/internal/domain/errors"
	"github.com/referralguard/referral-integrity-backend/internal/infrastructure/config"
)

// Client talks to the platform's baseline fraud-score service. It
// implements the account.RiskOracle capability.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewClient creates a risk service client.
func NewClient(cfg *config.RiskServiceConfig, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type riskResponse struct {
	UserID    string `json:"user_id"`
	RiskLevel string `json:"risk_level"`
}

// GetUserRiskLevel fetches the user's baseline risk level. Callers on
// the status read path degrade to low on error.
func (c *Client) GetUserRiskLevel(ctx context.Context, userID string) (account.RiskLevel, error) {
	if c.baseURL == "" {
		return account.RiskLow, nil
	}

	endpoint := fmt.Sprintf("%s/v1/users/%s/risk", c.baseURL, url.PathEscape(userID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return account.RiskLow, errors.NewInternalError("failed to create risk request").WithCause(err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return account.RiskLow, errors.NewExternalError("risk", "request failed").WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return account.RiskLow, errors.NewExternalError("risk", fmt.Sprintf("returned status: %d", resp.StatusCode))
	}

	var body riskResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return account.RiskLow, errors.NewExternalError("risk", "malformed response").WithCause(err)
	}

	return account.ParseRiskLevel(body.RiskLevel), nil
}

// BanUser asks the platform to ban the user outright.
func (c *Client) BanUser(ctx context.Context, userID string) error {
	if c.baseURL == "" {
		return errors.NewExternalError("risk", "service not configured")
	}

	endpoint := fmt.Sprintf("%s/v1/users/%s/ban", c.baseURL, url.PathEscape(userID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return errors.NewInternalError("failed to create ban request").WithCause(err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.NewExternalError("risk", "request failed").WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.NewExternalError("risk", fmt.Sprintf("returned status: %d", resp.StatusCode))
	}

	c.logger.Info("user banned via risk service", zap.String("user_id", userID))
	return nil
}
