package riskclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/referralguard/referral-integrity-backend/internal/domain/account"
	"github.com/referralguard/referral-integrity-backend/internal/infrastructure/config"
)

func newTestClient(baseURL string) *Client {
	return NewClient(&config.RiskServiceConfig{BaseURL: baseURL, Timeout: time.Second}, zap.NewNop())
}

func TestGetUserRiskLevel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/users/user-1/risk", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"user_id":"user-1","risk_level":"high"}`))
	}))
	defer srv.Close()

	level, err := newTestClient(srv.URL).GetUserRiskLevel(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, account.RiskHigh, level)
}

func TestGetUserRiskLevel_UnknownLevelDefaultsLow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"user_id":"user-1","risk_level":"volcanic"}`))
	}))
	defer srv.Close()

	level, err := newTestClient(srv.URL).GetUserRiskLevel(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, account.RiskLow, level)
}

func TestGetUserRiskLevel_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	level, err := newTestClient(srv.URL).GetUserRiskLevel(context.Background(), "user-1")
	require.Error(t, err)
	assert.Equal(t, account.RiskLow, level)
}

func TestGetUserRiskLevel_Unconfigured(t *testing.T) {
	level, err := newTestClient("").GetUserRiskLevel(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, account.RiskLow, level)
}

func TestBanUser(t *testing.T) {
	var banned string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		banned = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	require.NoError(t, newTestClient(srv.URL).BanUser(context.Background(), "user-2"))
	assert.Equal(t, "/v1/users/user-2/ban", banned)
}

func TestBanUser_Unconfigured(t *testing.T) {
	assert.Error(t, newTestClient("").BanUser(context.Background(), "user-2"))
}
