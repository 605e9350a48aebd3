package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/referralguard/referral-integrity-backend/internal/domain/account"
	"github.com/referralguard/referral-integrity-backend/internal/domain/alert"
	"github.com/referralguard/referral-integrity-backend/internal/domain/behavior"
	"github.com/referralguard/referral-integrity-backend/internal/domain/errors"
	"github.com/referralguard/referral-integrity-backend/internal/domain/review"
	"github.com/referralguard/referral-integrity-backend/internal/infrastructure/config"
	svcaccount "github.com/referralguard/referral-integrity-backend/internal/service/account"
	svcbehavior "github.com/referralguard/referral-integrity-backend/internal/service/behavior"
)

type mockBehaviorService struct {
	mock.Mock
}

func (m *mockBehaviorService) AnalyzeBehaviorPattern(ctx context.Context, userID, patternType string, event svcbehavior.EventContext) (*behavior.BehaviorPattern, error) {
	args := m.Called(ctx, userID, patternType, event)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*behavior.BehaviorPattern), args.Error(1)
}

type mockAnomalyService struct {
	mock.Mock
}

func (m *mockAnomalyService) DetectPatternAnomalies(ctx context.Context, userID string) []*alert.AnomalyAlert {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]*alert.AnomalyAlert)
}

type mockAlertService struct {
	mock.Mock
}

func (m *mockAlertService) CreateAnomalyAlert(ctx context.Context, a *alert.AnomalyAlert) (string, error) {
	args := m.Called(ctx, a)
	return args.String(0), args.Error(1)
}

func (m *mockAlertService) UpdateAlertStatus(ctx context.Context, alertID string, status alert.Status) (*alert.AnomalyAlert, error) {
	args := m.Called(ctx, alertID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*alert.AnomalyAlert), args.Error(1)
}

func (m *mockAlertService) GetActiveAlerts(ctx context.Context, severity *alert.Severity, limit int) ([]*alert.AnomalyAlert, error) {
	args := m.Called(ctx, severity, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*alert.AnomalyAlert), args.Error(1)
}

type mockReviewService struct {
	mock.Mock
}

func (m *mockReviewService) CreateReviewCase(ctx context.Context, c *review.ReviewCase) (string, error) {
	args := m.Called(ctx, c)
	return args.String(0), args.Error(1)
}

func (m *mockReviewService) GetReviewCases(ctx context.Context, status *review.Status, assignedTo *string) ([]*review.ReviewCase, error) {
	args := m.Called(ctx, status, assignedTo)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*review.ReviewCase), args.Error(1)
}

func (m *mockReviewService) AssignCase(ctx context.Context, caseID, operatorID string) (*review.ReviewCase, error) {
	args := m.Called(ctx, caseID, operatorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*review.ReviewCase), args.Error(1)
}

func (m *mockReviewService) CloseCase(ctx context.Context, caseID string, status review.Status, decision string) (*review.ReviewCase, error) {
	args := m.Called(ctx, caseID, status, decision)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*review.ReviewCase), args.Error(1)
}

type mockAccountService struct {
	mock.Mock
}

func (m *mockAccountService) FreezeAccount(ctx context.Context, req svcaccount.FreezeRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *mockAccountService) UnfreezeAccount(ctx context.Context, userID, liftedBy string) error {
	args := m.Called(ctx, userID, liftedBy)
	return args.Error(0)
}

func (m *mockAccountService) GetAccountStatus(ctx context.Context, userID string) *account.AccountStatus {
	args := m.Called(ctx, userID)
	return args.Get(0).(*account.AccountStatus)
}

type testDeps struct {
	behavior  *mockBehaviorService
	anomalies *mockAnomalyService
	alerts    *mockAlertService
	cases     *mockReviewService
	accounts  *mockAccountService
}

func newTestServer(t *testing.T) (*httptest.Server, *testDeps) {
	t.Helper()

	deps := &testDeps{
		behavior:  new(mockBehaviorService),
		anomalies: new(mockAnomalyService),
		alerts:    new(mockAlertService),
		cases:     new(mockReviewService),
		accounts:  new(mockAccountService),
	}

	logger := slog.New(slog.DiscardHandler)
	handler := NewHandler(deps.behavior, deps.anomalies, deps.alerts, deps.cases, deps.accounts, nil, logger)

	cfg := &config.Config{}
	cfg.Server.Port = 0
	cfg.Server.RateLimit.RequestsPerSecond = 1000
	cfg.Server.RateLimit.BurstSize = 1000
	cfg.Server.ShutdownTimeout = time.Second

	srv := NewServer(cfg, handler, logger)
	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)

	return ts, deps
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decodeEnvelope(t *testing.T, resp *http.Response) ResponseEnvelope {
	t.Helper()
	defer resp.Body.Close()
	var envelope ResponseEnvelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return envelope
}

func TestHandleAnalyzeBehavior(t *testing.T) {
	ts, deps := newTestServer(t)

	pattern := &behavior.BehaviorPattern{
		ID:          uuid.New(),
		UserID:      "user-1",
		PatternType: "referral_submit",
		Features:    behavior.FeatureMap{behavior.FeatureHourOfDay: 14},
		RiskScore:   0.35,
		CreatedAt:   time.Now().UTC(),
	}
	deps.behavior.On("AnalyzeBehaviorPattern", mock.Anything, "user-1", "referral_submit", mock.Anything).
		Return(pattern, nil)

	resp := postJSON(t, ts.URL+"/api/v1/behavior/analyze", map[string]interface{}{
		"user_id":      "user-1",
		"pattern_type": "referral_submit",
		"ip":           "203.0.113.9",
		"user_agent":   "Mozilla/5.0",
	})

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	envelope := decodeEnvelope(t, resp)
	assert.True(t, envelope.Success)
	assert.NotEmpty(t, envelope.Meta.RequestID)
	deps.behavior.AssertExpectations(t)
}

func TestHandleAnalyzeBehavior_MissingUserID(t *testing.T) {
	ts, deps := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/v1/behavior/analyze", map[string]interface{}{
		"pattern_type": "referral_submit",
	})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	envelope := decodeEnvelope(t, resp)
	assert.False(t, envelope.Success)
	assert.Equal(t, "INVALID_INPUT", envelope.Error.Code)
	deps.behavior.AssertNotCalled(t, "AnalyzeBehaviorPattern")
}

func TestHandleDetectAnomalies_PersistsAlerts(t *testing.T) {
	ts, deps := newTestServer(t)

	found := []*alert.AnomalyAlert{
		{
			UserID:      "user-1",
			AlertType:   alert.TypeVelocitySpike,
			Severity:    alert.SeverityHigh,
			Description: "velocity spike",
			Status:      alert.StatusPending,
		},
	}
	deps.anomalies.On("DetectPatternAnomalies", mock.Anything, "user-1").Return(found)
	deps.alerts.On("CreateAnomalyAlert", mock.Anything, found[0]).Return("alert_1", nil)

	resp := postJSON(t, ts.URL+"/api/v1/anomalies/detect", map[string]string{"user_id": "user-1"})

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	envelope := decodeEnvelope(t, resp)
	data := envelope.Data.(map[string]interface{})
	assert.Equal(t, float64(1), data["count"])
	deps.alerts.AssertExpectations(t)
}

func TestHandleDetectAnomalies_Quiet(t *testing.T) {
	ts, deps := newTestServer(t)

	deps.anomalies.On("DetectPatternAnomalies", mock.Anything, "user-2").Return([]*alert.AnomalyAlert{})

	resp := postJSON(t, ts.URL+"/api/v1/anomalies/detect", map[string]string{"user_id": "user-2"})

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	envelope := decodeEnvelope(t, resp)
	data := envelope.Data.(map[string]interface{})
	assert.Equal(t, float64(0), data["count"])
	deps.alerts.AssertNotCalled(t, "CreateAnomalyAlert")
}

func TestHandleCreateAlert(t *testing.T) {
	ts, deps := newTestServer(t)

	deps.alerts.On("CreateAnomalyAlert", mock.Anything, mock.MatchedBy(func(a *alert.AnomalyAlert) bool {
		return a.UserID == "user-1" && a.AlertType == alert.TypeBehaviorAnomaly && a.Severity == alert.SeverityMedium
	})).Return("alert_9", nil)

	resp := postJSON(t, ts.URL+"/api/v1/alerts", map[string]interface{}{
		"user_id":     "user-1",
		"alert_type":  "behavior_anomaly",
		"severity":    "medium",
		"description": "manual flag",
	})

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	envelope := decodeEnvelope(t, resp)
	data := envelope.Data.(map[string]interface{})
	assert.Equal(t, "alert_9", data["alert_id"])
}

func TestHandleCreateAlert_BadType(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/v1/alerts", map[string]interface{}{
		"user_id":     "user-1",
		"alert_type":  "unknown_type",
		"description": "manual flag",
	})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleListAlerts_SeverityFilter(t *testing.T) {
	ts, deps := newTestServer(t)

	high := alert.SeverityHigh
	deps.alerts.On("GetActiveAlerts", mock.Anything, &high, 5).Return([]*alert.AnomalyAlert{
		{ID: "alert_1", UserID: "user-1", AlertType: alert.TypeVelocitySpike, Severity: high},
	}, nil)

	resp, err := http.Get(ts.URL + "/api/v1/alerts?severity=high&limit=5")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	envelope := decodeEnvelope(t, resp)
	data := envelope.Data.(map[string]interface{})
	assert.Equal(t, float64(1), data["count"])
}

func TestHandleUpdateAlert(t *testing.T) {
	ts, deps := newTestServer(t)

	updated := &alert.AnomalyAlert{ID: "alert_1", UserID: "user-1", Status: alert.StatusDismissed}
	deps.alerts.On("UpdateAlertStatus", mock.Anything, "alert_1", alert.StatusDismissed).Return(updated, nil)

	req, err := http.NewRequest(http.MethodPatch, ts.URL+"/api/v1/alerts/alert_1",
		bytes.NewReader([]byte(`{"status":"dismissed"}`)))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	envelope := decodeEnvelope(t, resp)
	assert.True(t, envelope.Success)
}

func TestHandleUpdateAlert_BadStatus(t *testing.T) {
	ts, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodPatch, ts.URL+"/api/v1/alerts/alert_1",
		bytes.NewReader([]byte(`{"status":"pending"}`)))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleUpdateCase_Assign(t *testing.T) {
	ts, deps := newTestServer(t)

	updated := &review.ReviewCase{ID: "case_1", UserID: "user-1", Status: review.StatusInReview}
	deps.cases.On("AssignCase", mock.Anything, "case_1", "op-2").Return(updated, nil)

	req, err := http.NewRequest(http.MethodPatch, ts.URL+"/api/v1/cases/case_1",
		bytes.NewReader([]byte(`{"action":"assign","operator_id":"op-2"}`)))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	envelope := decodeEnvelope(t, resp)
	assert.True(t, envelope.Success)
}

func TestHandleUpdateCase_NotFound(t *testing.T) {
	ts, deps := newTestServer(t)

	deps.cases.On("AssignCase", mock.Anything, "case_missing", "op-2").
		Return(nil, errors.ErrCaseNotFound)

	req, err := http.NewRequest(http.MethodPatch, ts.URL+"/api/v1/cases/case_missing",
		bytes.NewReader([]byte(`{"action":"assign","operator_id":"op-2"}`)))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	envelope := decodeEnvelope(t, resp)
	assert.Equal(t, "RESOURCE_NOT_FOUND", envelope.Error.Code)
}

func TestHandleUpdateCase_Resolve(t *testing.T) {
	ts, deps := newTestServer(t)

	decision := "confirmed fraud"
	closed := &review.ReviewCase{ID: "case_1", UserID: "user-1", Status: review.StatusResolved, Decision: &decision}
	deps.cases.On("CloseCase", mock.Anything, "case_1", review.StatusResolved, decision).Return(closed, nil)

	req, err := http.NewRequest(http.MethodPatch, ts.URL+"/api/v1/cases/case_1",
		bytes.NewReader([]byte(`{"action":"resolve","decision":"confirmed fraud"}`)))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHandleFreezeAccount(t *testing.T) {
	ts, deps := newTestServer(t)

	deps.accounts.On("FreezeAccount", mock.Anything, mock.MatchedBy(func(req svcaccount.FreezeRequest) bool {
		return req.UserID == "user-1" && req.Reason == "velocity spike" && len(req.FrozenFeatures) == 0
	})).Return(nil)

	resp := postJSON(t, ts.URL+"/api/v1/accounts/user-1/freeze", map[string]interface{}{
		"reason":    "velocity spike",
		"frozen_by": "system",
	})

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	deps.accounts.AssertExpectations(t)
}

func TestHandleUnfreezeAccount_NotFrozen(t *testing.T) {
	ts, deps := newTestServer(t)

	deps.accounts.On("UnfreezeAccount", mock.Anything, "user-1", "op-3").
		Return(errors.ErrFreezeNotFound)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/v1/accounts/user-1/freeze?lifted_by=op-3", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandleAccountStatus(t *testing.T) {
	ts, deps := newTestServer(t)

	deps.accounts.On("GetAccountStatus", mock.Anything, "user-1").Return(&account.AccountStatus{
		UserID:    "user-1",
		IsFrozen:  true,
		RiskLevel: account.RiskHigh,
	})

	resp, err := http.Get(ts.URL + "/api/v1/accounts/user-1/status")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	envelope := decodeEnvelope(t, resp)
	data := envelope.Data.(map[string]interface{})
	assert.Equal(t, true, data["is_frozen"])
}

func TestHealthEndpoints(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/readyz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
