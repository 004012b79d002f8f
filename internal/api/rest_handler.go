package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"listing_governance/internal/domain"
	"listing_governance/internal/ingest"
	"listing_governance/internal/processor"
	"listing_governance/internal/repository"
	"listing_governance/pkg/crypto"
	"listing_governance/pkg/validator"
)

const version = "1.0.0"

type APIHandler struct {
	processor      *processor.GovernanceProcessor
	comparator     *ingest.Comparator
	signer         *crypto.Signer
	logger         *slog.Logger
	requestTimeout time.Duration
}

func NewAPIHandler(
	processor *processor.GovernanceProcessor,
	comparator *ingest.Comparator,
	signer *crypto.Signer,
	logger *slog.Logger,
) *APIHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &APIHandler{
		processor:      processor,
		comparator:     comparator,
		signer:         signer,
		logger:         logger,
		requestTimeout: 30 * time.Second,
	}
}

func (h *APIHandler) WithRequestTimeout(d time.Duration) *APIHandler {
	if d > 0 {
		h.requestTimeout = d
	}
	return h
}

type SubmitSignalRequest struct {
	ID        string            `json:"id,omitempty"`
	Type      domain.SignalType `json:"type"`
	Payload   json.RawMessage   `json:"payload"`
	Source    string            `json:"source,omitempty"`
	ListingID string            `json:"listing_id,omitempty"`
	Signature string            `json:"signature,omitempty"`
}

type ObservationResponse struct {
	Signals   int                `json:"signals"`
	Decisions []*domain.Decision `json:"decisions"`
}

type RuleResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Priority    int    `json:"priority"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func (h *APIHandler) SubmitSignalHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	var req SubmitSignalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, "Invalid request body", http.StatusBadRequest, "INVALID_REQUEST")
		return
	}

	if req.Signature != "" && h.signer.Enabled() {
		if valid, err := h.signer.VerifySignal(req.ID, string(req.Type), req.Payload, req.Signature); !valid || err != nil {
			h.sendError(w, "Invalid signature", http.StatusUnauthorized, "INVALID_SIGNATURE")
			return
		}
	}

	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	sig := domain.Signal{
		ID:         req.ID,
		Type:       req.Type,
		Payload:    req.Payload,
		Source:     req.Source,
		ListingID:  req.ListingID,
		DetectedAt: time.Now().UTC(),
	}

	decision, err := h.processor.ProcessSignal(ctx, sig)
	if err != nil {
		h.sendProcessingError(w, sig.ID, err)
		return
	}

	h.sendJSON(w, decision, http.StatusCreated)
}

func (h *APIHandler) SubmitObservationHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	var obs ingest.Observation
	if err := json.NewDecoder(r.Body).Decode(&obs); err != nil {
		h.sendError(w, "Invalid request body", http.StatusBadRequest, "INVALID_REQUEST")
		return
	}

	signals, err := h.comparator.Compare(obs)
	if err != nil {
		h.sendError(w, err.Error(), http.StatusBadRequest, "VALIDATION_ERROR")
		return
	}

	resp := ObservationResponse{Signals: len(signals), Decisions: make([]*domain.Decision, 0, len(signals))}
	for _, sig := range signals {
		decision, err := h.processor.ProcessSignal(ctx, sig)
		if err != nil {
			h.sendProcessingError(w, sig.ID, err)
			return
		}
		resp.Decisions = append(resp.Decisions, decision)
	}

	h.sendJSON(w, resp, http.StatusCreated)
}

func (h *APIHandler) GetDecisionHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	signalID := r.URL.Query().Get("signal_id")
	if signalID == "" {
		h.listDecisions(ctx, w, r)
		return
	}

	decision, err := h.processor.GetDecision(ctx, signalID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			h.sendError(w, "Decision not found", http.StatusNotFound, "NOT_FOUND")
		} else {
			h.sendError(w, "Failed to get decision", http.StatusInternalServerError, "SERVER_ERROR")
		}
		return
	}

	h.sendJSON(w, decision, http.StatusOK)
}

func (h *APIHandler) listDecisions(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 50)
	if err != nil || limit < 0 {
		h.sendError(w, "limit must be a non-negative integer", http.StatusBadRequest, "INVALID_REQUEST")
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		h.sendError(w, "offset must be a non-negative integer", http.StatusBadRequest, "INVALID_REQUEST")
		return
	}

	decisions, err := h.processor.ListDecisions(ctx, limit, offset)
	if err != nil {
		h.sendError(w, "Failed to list decisions", http.StatusInternalServerError, "SERVER_ERROR")
		return
	}

	h.sendJSON(w, decisions, http.StatusOK)
}

func (h *APIHandler) ListRulesHandler(w http.ResponseWriter, r *http.Request) {
	ordered := h.processor.Engine().Catalog().Ordered()

	rules := make([]RuleResponse, 0, len(ordered))
	for _, rule := range ordered {
		rules = append(rules, RuleResponse{
			ID:          rule.ID,
			Name:        rule.Name,
			Description: rule.Description,
			Priority:    rule.Priority,
		})
	}

	h.sendJSON(w, rules, http.StatusOK)
}

func (h *APIHandler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	stats, err := h.processor.Stats(ctx)
	if err != nil {
		h.logger.Error("Failed to collect stats", slog.String("error", err.Error()))
		h.sendError(w, "Failed to collect stats", http.StatusInternalServerError, "SERVER_ERROR")
		return
	}

	h.sendJSON(w, stats, http.StatusOK)
}

func (h *APIHandler) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   version,
		"rules":     h.processor.Engine().Catalog().Len(),
	}
	h.sendJSON(w, response, http.StatusOK)
}

func (h *APIHandler) sendProcessingError(w http.ResponseWriter, signalID string, err error) {
	h.logger.Error("Signal processing failed",
		slog.String("error", err.Error()),
		slog.String("signal_id", signalID))

	switch {
	case errors.Is(err, repository.ErrDuplicate):
		h.sendError(w, err.Error(), http.StatusConflict, "DUPLICATE_SIGNAL")
	case errors.Is(err, validator.ErrPayloadTooLarge):
		h.sendError(w, err.Error(), http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE")
	case errors.Is(err, validator.ErrMissingID),
		errors.Is(err, validator.ErrInvalidType),
		errors.Is(err, validator.ErrInvalidSignalDoc),
		errors.Is(err, validator.ErrFutureSignal):
		h.sendError(w, err.Error(), http.StatusBadRequest, "VALIDATION_ERROR")
	default:
		h.sendError(w, "Signal processing failed", http.StatusInternalServerError, "PROCESSING_ERROR")
	}
}

func (h *APIHandler) sendJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode JSON response", slog.String("error", err.Error()))
	}
}

func (h *APIHandler) sendError(w http.ResponseWriter, message string, statusCode int, code string) {
	errorResponse := ErrorResponse{
		Error: message,
		Code:  code,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorResponse)

	h.logger.Warn("API error response",
		slog.String("message", message),
		slog.String("code", code),
		slog.Int("status", statusCode))
}

func (h *APIHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/signals", h.SubmitSignalHandler)
	mux.HandleFunc("POST /api/v1/observations", h.SubmitObservationHandler)
	mux.HandleFunc("GET /api/v1/decisions", h.GetDecisionHandler)
	mux.HandleFunc("GET /api/v1/rules", h.ListRulesHandler)
	mux.HandleFunc("GET /api/v1/stats", h.StatsHandler)
	mux.HandleFunc("GET /api/health", h.HealthCheckHandler)
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
