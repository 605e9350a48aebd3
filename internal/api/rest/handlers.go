package rest

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/referralguard/referral-integrity-backend/internal/domain/account"
	"github.com/referralguard/referral-integrity-backend/internal/domain/alert"
	"github.com/referralguard/referral-integrity-backend/internal/domain/errors"
	"github.com/referralguard/referral-integrity-backend/internal/domain/review"
	"github.com/referralguard/referral-integrity-backend/internal/metrics"
	svcaccount "github.com/referralguard/referral-integrity-backend/internal/service/account"
	svcalerting "github.com/referralguard/referral-integrity-backend/internal/service/alerting"
	svcanomaly "github.com/referralguard/referral-integrity-backend/internal/service/anomaly"
	svcbehavior "github.com/referralguard/referral-integrity-backend/internal/service/behavior"
	svcreview "github.com/referralguard/referral-integrity-backend/internal/service/review"
)

const maxBodySize = 1 << 20 // 1MB

// Handler serves the fraud detection API surface.
type Handler struct {
	behavior  svcbehavior.Service
	anomalies svcanomaly.Service
	alerts    svcalerting.Service
	cases     svcreview.Service
	accounts  svcaccount.Service
	metrics   *metrics.Registry
	validate  *validator.Validate
	logger    *slog.Logger
}

// NewHandler creates the API handler. metrics may be nil.
func NewHandler(
	behavior svcbehavior.Service,
	anomalies svcanomaly.Service,
	alerts svcalerting.Service,
	cases svcreview.Service,
	accounts svcaccount.Service,
	reg *metrics.Registry,
	logger *slog.Logger,
) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		behavior:  behavior,
		anomalies: anomalies,
		alerts:    alerts,
		cases:     cases,
		accounts:  accounts,
		metrics:   reg,
		validate:  validator.New(),
		logger:    logger,
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.NewValidationError("INVALID_BODY", "request body is not valid JSON")
	}
	if err := h.validate.Struct(dst); err != nil {
		return errors.NewValidationError("INVALID_INPUT", err.Error())
	}
	return nil
}

type analyzeRequest struct {
	UserID      string            `json:"user_id" validate:"required"`
	PatternType string            `json:"pattern_type" validate:"required"`
	OccurredAt  *time.Time        `json:"occurred_at,omitempty"`
	IP          string            `json:"ip,omitempty"`
	UserAgent   string            `json:"user_agent,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

func (h *Handler) handleAnalyzeBehavior(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	occurredAt := time.Now().UTC()
	if req.OccurredAt != nil {
		occurredAt = *req.OccurredAt
	}

	start := time.Now()
	pattern, err := h.behavior.AnalyzeBehaviorPattern(r.Context(), req.UserID, req.PatternType, svcbehavior.EventContext{
		OccurredAt: occurredAt,
		IP:         req.IP,
		UserAgent:  req.UserAgent,
		Metadata:   req.Metadata,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordPatternAnalysis(r.Context(),
			float64(time.Since(start).Microseconds())/1000.0,
			req.PatternType, pattern.RiskScore)
	}

	writeSuccess(w, r, http.StatusCreated, pattern)
}

type detectRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

func (h *Handler) handleDetectAnomalies(w http.ResponseWriter, r *http.Request) {
	var req detectRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	start := time.Now()
	found := h.anomalies.DetectPatternAnomalies(r.Context(), req.UserID)

	// Persist every detected anomaly so operators see it in the queue.
	created := make([]*alert.AnomalyAlert, 0, len(found))
	for _, a := range found {
		if _, err := h.alerts.CreateAnomalyAlert(r.Context(), a); err != nil {
			writeError(w, r, err)
			return
		}
		created = append(created, a)
		if h.metrics != nil {
			h.metrics.RecordAlertRaised(r.Context(), string(a.AlertType), string(a.Severity))
		}
	}

	if h.metrics != nil {
		h.metrics.RecordDetection(r.Context(),
			float64(time.Since(start).Microseconds())/1000.0)
	}

	writeSuccess(w, r, http.StatusOK, map[string]interface{}{
		"alerts": created,
		"count":  len(created),
	})
}

type createAlertRequest struct {
	UserID      string             `json:"user_id" validate:"required"`
	AlertType   string             `json:"alert_type" validate:"required,oneof=velocity_spike pattern_deviation behavior_anomaly"`
	Severity    string             `json:"severity,omitempty"`
	Description string             `json:"description" validate:"required"`
	Reason      string             `json:"reason,omitempty"`
	Metrics     map[string]float64 `json:"metrics,omitempty"`
}

func (h *Handler) handleCreateAlert(w http.ResponseWriter, r *http.Request) {
	var req createAlertRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	a := &alert.AnomalyAlert{
		UserID:      req.UserID,
		AlertType:   alert.Type(req.AlertType),
		Severity:    alert.ParseSeverity(req.Severity),
		Description: req.Description,
		Evidence: alert.Evidence{
			Reason:  req.Reason,
			Metrics: req.Metrics,
		},
	}

	alertID, err := h.alerts.CreateAnomalyAlert(r.Context(), a)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordAlertRaised(r.Context(), req.AlertType, string(a.Severity))
	}

	writeSuccess(w, r, http.StatusCreated, map[string]string{"alert_id": alertID})
}

func (h *Handler) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	var severity *alert.Severity
	if s := r.URL.Query().Get("severity"); s != "" {
		parsed := alert.ParseSeverity(s)
		severity = &parsed
	}

	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 0 {
			writeError(w, r, errors.NewValidationError("INVALID_LIMIT", "limit must be a non-negative integer"))
			return
		}
		limit = parsed
	}

	alerts, err := h.alerts.GetActiveAlerts(r.Context(), severity, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, r, http.StatusOK, map[string]interface{}{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

type updateAlertRequest struct {
	Status string `json:"status" validate:"required,oneof=reviewed dismissed"`
}

func (h *Handler) handleUpdateAlert(w http.ResponseWriter, r *http.Request) {
	alertID := r.PathValue("id")

	var req updateAlertRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	a, err := h.alerts.UpdateAlertStatus(r.Context(), alertID, alert.Status(req.Status))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, r, http.StatusOK, a)
}

type createCaseRequest struct {
	UserID   string              `json:"user_id" validate:"required"`
	CaseType string              `json:"case_type" validate:"required"`
	Priority string              `json:"priority,omitempty" validate:"omitempty,oneof=low medium high"`
	Evidence []caseEvidenceInput `json:"evidence,omitempty"`
}

type caseEvidenceInput struct {
	Kind    string          `json:"kind" validate:"required"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func (h *Handler) handleCreateCase(w http.ResponseWriter, r *http.Request) {
	var req createCaseRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	now := time.Now().UTC()
	evidence := make([]review.EvidenceItem, 0, len(req.Evidence))
	for _, e := range req.Evidence {
		evidence = append(evidence, review.EvidenceItem{
			Kind:    e.Kind,
			AddedAt: now,
			Payload: e.Payload,
		})
	}

	c := &review.ReviewCase{
		UserID:   req.UserID,
		CaseType: req.CaseType,
		Priority: review.Priority(req.Priority),
		Evidence: evidence,
	}

	caseID, err := h.cases.CreateReviewCase(r.Context(), c)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordCaseOpened(r.Context(), c.CaseType, string(c.Priority))
	}

	writeSuccess(w, r, http.StatusCreated, map[string]string{"case_id": caseID})
}

func (h *Handler) handleListCases(w http.ResponseWriter, r *http.Request) {
	var status *review.Status
	if s := r.URL.Query().Get("status"); s != "" {
		parsed := review.Status(s)
		status = &parsed
	}

	var assignedTo *string
	if a := r.URL.Query().Get("assigned_to"); a != "" {
		assignedTo = &a
	}

	cases, err := h.cases.GetReviewCases(r.Context(), status, assignedTo)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, r, http.StatusOK, map[string]interface{}{
		"cases": cases,
		"count": len(cases),
	})
}

type updateCaseRequest struct {
	Action     string `json:"action" validate:"required,oneof=assign resolve reject"`
	OperatorID string `json:"operator_id,omitempty"`
	Decision   string `json:"decision,omitempty"`
}

func (h *Handler) handleUpdateCase(w http.ResponseWriter, r *http.Request) {
	caseID := r.PathValue("id")

	var req updateCaseRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	var (
		c   *review.ReviewCase
		err error
	)
	switch req.Action {
	case "assign":
		if req.OperatorID == "" {
			writeError(w, r, errors.NewValidationError("INVALID_OPERATOR", "operator_id is required to assign"))
			return
		}
		c, err = h.cases.AssignCase(r.Context(), caseID, req.OperatorID)
	case "resolve":
		c, err = h.cases.CloseCase(r.Context(), caseID, review.StatusResolved, req.Decision)
	case "reject":
		c, err = h.cases.CloseCase(r.Context(), caseID, review.StatusRejected, req.Decision)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	if h.metrics != nil && c.Status.Terminal() {
		h.metrics.RecordCaseClosed(r.Context(), string(c.Status))
	}

	writeSuccess(w, r, http.StatusOK, c)
}

type freezeRequest struct {
	Reason         string     `json:"reason" validate:"required"`
	FrozenBy       string     `json:"frozen_by" validate:"required"`
	FrozenFeatures []string   `json:"frozen_features,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
}

func (h *Handler) handleFreezeAccount(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")

	var req freezeRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	err := h.accounts.FreezeAccount(r.Context(), svcaccount.FreezeRequest{
		UserID:         userID,
		Reason:         req.Reason,
		FrozenBy:       req.FrozenBy,
		FrozenFeatures: account.FrozenFeatures(req.FrozenFeatures),
		ExpiresAt:      req.ExpiresAt,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordFreeze(r.Context(), len(req.FrozenFeatures) == 0)
	}

	writeSuccess(w, r, http.StatusCreated, map[string]string{"user_id": userID, "state": "frozen"})
}

func (h *Handler) handleUnfreezeAccount(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")

	liftedBy := r.URL.Query().Get("lifted_by")
	if liftedBy == "" {
		liftedBy = "system"
	}

	if err := h.accounts.UnfreezeAccount(r.Context(), userID, liftedBy); err != nil {
		writeError(w, r, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordUnfreeze(r.Context())
	}

	writeSuccess(w, r, http.StatusOK, map[string]string{"user_id": userID, "state": "unfrozen"})
}

func (h *Handler) handleAccountStatus(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")

	status := h.accounts.GetAccountStatus(r.Context(), userID)

	writeSuccess(w, r, http.StatusOK, status)
}
