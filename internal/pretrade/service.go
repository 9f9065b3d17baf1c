// Package pretrade provides the HTTP handlers and business logic for
// running pre-trade compliance checks, recording approved trades, and
// managing asset master data and fund portfolios.
//
// All monetary values use shopspring/decimal — never float64 for money.
package pretrade

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fundwatch/compliance-engine/internal/asset"
	"github.com/fundwatch/compliance-engine/internal/compliance"
	"github.com/fundwatch/compliance-engine/internal/metrics"
	"github.com/fundwatch/compliance-engine/internal/model"
	"github.com/fundwatch/compliance-engine/internal/store"
)

// Service handles compliance operations. Uses a mutex to serialize
// check-then-apply on trade recording (single-instance). For horizontal
// scaling, replace with distributed locking or database-level optimistic
// concurrency.
type Service struct {
	store     store.Store
	evaluator *compliance.Evaluator
	mu        sync.Mutex
	wsHub     *WSHub // optional WebSocket hub for decision broadcasts
}

// NewService creates a new pre-trade compliance service.
// Pass nil for hub if WebSocket broadcasting is not needed.
func NewService(st store.Store, evaluator *compliance.Evaluator, hub *WSHub) *Service {
	return &Service{
		store:     st,
		evaluator: evaluator,
		wsHub:     hub,
	}
}

// --- Request/Response types ---

// CheckRequest is the JSON body for POST /check and POST /trades.
type CheckRequest struct {
	FundID        string          `json:"fund_id"`
	Ticker        string          `json:"ticker"`
	QuantityDelta decimal.Decimal `json:"quantity_delta"` // positive = buy, negative = sell
	TradePrice    decimal.Decimal `json:"trade_price"`
}

// CheckResponse is the JSON body returned from POST /check.
type CheckResponse struct {
	CheckID     string         `json:"check_id"`
	FundID      string         `json:"fund_id"`
	Ticker      string         `json:"ticker"`
	OverallPass bool           `json:"overall_pass"`
	Messages    []string       `json:"messages"`
	Breaches    []model.Breach `json:"breaches"`
}

// UpsertPositionRequest is the JSON body for POST /funds/{fundID}/positions.
type UpsertPositionRequest struct {
	Ticker   string          `json:"ticker"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// SetCashRequest is the JSON body for PUT /funds/{fundID}/cash.
type SetCashRequest struct {
	Cash decimal.Decimal `json:"cash"`
}

// ExposureResponse mirrors the exposure retrieval contract: current
// pre-trade exposure of the fund to the candidate ticker's issuer and group.
type ExposureResponse struct {
	FundID            string          `json:"fund_id"`
	Ticker            string          `json:"ticker"`
	IssuerName        string          `json:"issuer_name"`
	IssuerGroup       string          `json:"issuer_group"`
	IssuerExposureEUR decimal.Decimal `json:"total_exposure_to_issuer_eur"`
	GroupExposureEUR  decimal.Decimal `json:"total_exposure_to_group_eur"`
}

// --- HTTP Handlers ---

// CheckTrade handles POST /api/v1/check
// Runs the compliance engine against the fund's current portfolio and
// returns the structured result. Every evaluation is written to the
// immutable audit log, pass or fail.
func (s *Service) CheckTrade(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCheckRequest(w, r)
	if !ok {
		return
	}

	resp, err := s.runCheck(r, req)
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// RecordTrade handles POST /api/v1/trades
// Evaluates the trade and, only when it passes, applies it to the fund's
// positions. A failing check returns 409 with the full result.
func (s *Service) RecordTrade(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCheckRequest(w, r)
	if !ok {
		return
	}

	ctx := r.Context()

	// Serialize check-then-apply.
	s.mu.Lock()
	defer s.mu.Unlock()

	resp, err := s.runCheck(r, req)
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if !resp.OverallPass {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(resp)
		return
	}

	if err := s.store.ApplyTrade(ctx, model.TradeRequest(req)); err != nil {
		writeError(w, "failed to apply trade", http.StatusInternalServerError)
		return
	}
	metrics.TradesRecorded.Inc()

	slog.Info("trade recorded",
		"check_id", resp.CheckID,
		"fund", req.FundID,
		"ticker", req.Ticker,
		"quantity_delta", req.QuantityDelta.String(),
		"trade_price", req.TradePrice.String(),
	)

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:          "trade_recorded",
			CheckID:       resp.CheckID,
			FundID:        req.FundID,
			Ticker:        req.Ticker,
			OverallPass:   true,
			QuantityDelta: req.QuantityDelta.String(),
			TradePrice:    req.TradePrice.String(),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// runCheck loads the fund snapshot and master data, evaluates the trade,
// records the audit entry, and broadcasts the decision.
func (s *Service) runCheck(r *http.Request, req CheckRequest) (CheckResponse, error) {
	ctx := r.Context()

	snap, err := s.store.GetSnapshot(ctx, req.FundID)
	if err != nil {
		return CheckResponse{}, err
	}

	records, err := s.store.ListAssets(ctx)
	if err != nil {
		return CheckResponse{}, err
	}
	lookup := make(compliance.MapLookup, len(records))
	for _, rec := range records {
		lookup[rec.Ticker] = rec
	}

	start := time.Now()
	result := s.evaluator.Evaluate(*snap, model.TradeRequest(req), lookup)
	elapsed := time.Since(start).Seconds()

	outcome := "pass"
	if !result.OverallPass {
		outcome = "fail"
	}
	metrics.ChecksTotal.WithLabelValues(outcome).Inc()
	metrics.CheckLatency.WithLabelValues(outcome).Observe(elapsed)
	if !result.OverallPass && len(result.Breaches) == 0 {
		metrics.EligibilityRejections.Inc()
	}
	breachRules := make([]string, 0, len(result.Breaches))
	for _, b := range result.Breaches {
		metrics.BreachesTotal.WithLabelValues(b.RuleID).Inc()
		breachRules = append(breachRules, b.RuleID)
	}

	rec := model.CheckRecord{
		ID:            uuid.New().String(),
		FundID:        req.FundID,
		Ticker:        req.Ticker,
		QuantityDelta: req.QuantityDelta,
		TradePrice:    req.TradePrice,
		OverallPass:   result.OverallPass,
		Messages:      result.Messages,
		Breaches:      result.Breaches,
		CheckedAt:     time.Now().UTC(),
	}
	if err := s.store.InsertCheckRecord(ctx, &rec); err != nil {
		return CheckResponse{}, err
	}

	slog.Info("compliance check completed",
		"check_id", rec.ID,
		"fund", req.FundID,
		"ticker", req.Ticker,
		"quantity_delta", req.QuantityDelta.String(),
		"pass", result.OverallPass,
		"breaches", len(result.Breaches),
	)

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:          "check_completed",
			CheckID:       rec.ID,
			FundID:        req.FundID,
			Ticker:        req.Ticker,
			OverallPass:   result.OverallPass,
			BreachRules:   breachRules,
			QuantityDelta: req.QuantityDelta.String(),
			TradePrice:    req.TradePrice.String(),
		})
	}

	return CheckResponse{
		CheckID:     rec.ID,
		FundID:      req.FundID,
		Ticker:      req.Ticker,
		OverallPass: result.OverallPass,
		Messages:    result.Messages,
		Breaches:    result.Breaches,
	}, nil
}

// GetPortfolio handles GET /api/v1/funds/{fundID}/portfolio
func (s *Service) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	fundID := chi.URLParam(r, "fundID")

	snap, err := s.store.GetSnapshot(r.Context(), fundID)
	if err != nil {
		writeError(w, "failed to load portfolio", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snap)
}

// GetExposures handles GET /api/v1/funds/{fundID}/exposures?ticker=...
// Implements the exposure retrieval contract: resolves the candidate
// ticker's issuer and group, then returns the fund's current exposure
// amounts to each.
func (s *Service) GetExposures(w http.ResponseWriter, r *http.Request) {
	fundID := chi.URLParam(r, "fundID")
	ticker := r.URL.Query().Get("ticker")
	if ticker == "" {
		writeError(w, "ticker query parameter is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	rec, err := s.store.GetAsset(ctx, ticker)
	if err != nil {
		if errors.Is(err, store.ErrAssetNotFound) {
			writeError(w, "asset not found: "+ticker, http.StatusNotFound)
			return
		}
		writeError(w, "failed to load asset", http.StatusInternalServerError)
		return
	}

	issuer, group, err := s.store.GetFundExposures(ctx, fundID, rec.IssuerName, rec.IssuerGroup)
	if err != nil {
		writeError(w, "failed to compute exposures", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ExposureResponse{
		FundID:            fundID,
		Ticker:            ticker,
		IssuerName:        rec.IssuerName,
		IssuerGroup:       rec.IssuerGroup,
		IssuerExposureEUR: issuer,
		GroupExposureEUR:  group,
	})
}

// GetCheckHistory handles GET /api/v1/funds/{fundID}/checks
// Returns the fund's compliance audit trail in chronological order.
func (s *Service) GetCheckHistory(w http.ResponseWriter, r *http.Request) {
	fundID := chi.URLParam(r, "fundID")

	records, err := s.store.GetCheckRecordsByFund(r.Context(), fundID)
	if err != nil {
		writeError(w, "failed to load check history", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []model.CheckRecord{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(records)
}

// UpsertPosition handles POST /api/v1/funds/{fundID}/positions
func (s *Service) UpsertPosition(w http.ResponseWriter, r *http.Request) {
	fundID := chi.URLParam(r, "fundID")

	var req UpsertPositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Ticker == "" {
		writeError(w, "ticker is required", http.StatusBadRequest)
		return
	}
	if req.Quantity.IsNegative() {
		writeError(w, "quantity must not be negative", http.StatusBadRequest)
		return
	}
	if !req.Quantity.IsZero() && req.Price.LessThanOrEqual(decimal.Zero) {
		writeError(w, "price must be positive", http.StatusBadRequest)
		return
	}

	pos := &model.Position{
		FundID:      fundID,
		Ticker:      req.Ticker,
		Quantity:    req.Quantity,
		Price:       req.Price,
		MarketValue: req.Quantity.Mul(req.Price),
	}
	if err := s.store.UpsertPosition(r.Context(), pos); err != nil {
		writeError(w, "failed to store position", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(pos)
}

// SetCash handles PUT /api/v1/funds/{fundID}/cash
func (s *Service) SetCash(w http.ResponseWriter, r *http.Request) {
	fundID := chi.URLParam(r, "fundID")

	var req SetCashRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Cash.IsNegative() {
		writeError(w, "cash must not be negative", http.StatusBadRequest)
		return
	}

	if err := s.store.SetCash(r.Context(), fundID, req.Cash); err != nil {
		writeError(w, "failed to set cash", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"fund_id": fundID, "cash": req.Cash.String()})
}

// CreateAsset handles POST /api/v1/assets
// Registers a master data record after validating the ticker format and,
// when present, the ISIN check digit.
func (s *Service) CreateAsset(w http.ResponseWriter, r *http.Request) {
	var rec model.AssetRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := asset.ValidateTicker(rec.Ticker); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if rec.ISIN != "" {
		if err := asset.ValidateISIN(rec.ISIN); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	if rec.IssuerName == "" {
		writeError(w, "issuer_name is required", http.StatusBadRequest)
		return
	}
	if rec.IssuerGroup == "" {
		rec.IssuerGroup = rec.IssuerName // standalone issuer is its own group
	}

	if err := s.store.UpsertAsset(r.Context(), &rec); err != nil {
		writeError(w, "failed to store asset", http.StatusInternalServerError)
		return
	}

	slog.Info("asset registered",
		"ticker", rec.Ticker,
		"issuer", rec.IssuerName,
		"group", rec.IssuerGroup,
		"ucits_eligible", rec.UCITSEligible,
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(rec)
}

// GetAsset handles GET /api/v1/assets/{ticker}
func (s *Service) GetAsset(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")

	rec, err := s.store.GetAsset(r.Context(), ticker)
	if err != nil {
		writeError(w, "asset not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rec)
}

// ListAssets handles GET /api/v1/assets
func (s *Service) ListAssets(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.ListAssets(r.Context())
	if err != nil {
		writeError(w, "failed to list assets", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []model.AssetRecord{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(records)
}

// decodeCheckRequest decodes and validates the shared check/trade body.
func decodeCheckRequest(w http.ResponseWriter, r *http.Request) (CheckRequest, bool) {
	var req CheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return req, false
	}
	if req.FundID == "" {
		writeError(w, "fund_id is required", http.StatusBadRequest)
		return req, false
	}
	if req.Ticker == "" {
		writeError(w, "ticker is required", http.StatusBadRequest)
		return req, false
	}
	return req, true
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
