package stock

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/meridian-oms/stockcore/internal/platform/httpx"
)

// Handler wires the JSON endpoints for the stock engine.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	cache     *Cache
	validator *validator.Validate
}

// NewHandler constructs stock handler.
func NewHandler(logger *slog.Logger, service *Service, cache *Cache) *Handler {
	return &Handler{logger: logger, service: service, cache: cache, validator: validator.New()}
}

// MountRoutes registers stock routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/reservations", h.handleReserve)
	r.Post("/releases", h.handleRelease)
	r.Post("/allocations", h.handleAllocate)
	r.Post("/adjustments", h.handleAdjust)
	r.Post("/returns", h.handleReturn)
	r.Get("/{variantID}", h.handleGetState)
	r.Get("/{variantID}/availability", h.handleAvailability)
	r.Get("/{variantID}/ledger", h.handleLedger)
}

type movementRequest struct {
	VariantID   uuid.UUID  `json:"variant_id" validate:"required"`
	Quantity    int64      `json:"quantity" validate:"required,gt=0"`
	Reason      string     `json:"reason"`
	ReferenceID *uuid.UUID `json:"reference_id"`
}

type adjustmentRequest struct {
	VariantID   uuid.UUID  `json:"variant_id" validate:"required"`
	Delta       int64      `json:"delta" validate:"required"`
	Reason      string     `json:"reason"`
	ReferenceID *uuid.UUID `json:"reference_id"`
}

type allocationRequest struct {
	OrderID uuid.UUID               `json:"order_id" validate:"required"`
	Lines   []allocationLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type allocationLineRequest struct {
	VariantID uuid.UUID `json:"variant_id" validate:"required"`
	Quantity  int64     `json:"quantity" validate:"required,gt=0"`
}

type returnRequest struct {
	VariantID   uuid.UUID  `json:"variant_id" validate:"required"`
	Quantity    int64      `json:"quantity" validate:"required,gt=0"`
	Reason      string     `json:"reason"`
	ReferenceID *uuid.UUID `json:"reference_id" validate:"required"`
}

type stateResponse struct {
	VariantID string    `json:"variant_id"`
	OnHand    int64     `json:"on_hand"`
	Reserved  int64     `json:"reserved"`
	Available int64     `json:"available"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ledgerEntryResponse struct {
	ID            int64     `json:"id"`
	VariantID     string    `json:"variant_id"`
	QuantityDelta int64     `json:"quantity_delta"`
	Reason        string    `json:"reason"`
	ReferenceID   *string   `json:"reference_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func (h *Handler) handleReserve(w http.ResponseWriter, r *http.Request) {
	var req movementRequest
	if !h.decode(w, r, &req) {
		return
	}
	err := h.service.Reserve(r.Context(), MovementInput{
		VariantID:   req.VariantID,
		Quantity:    req.Quantity,
		Reason:      Reason(req.Reason),
		ReferenceID: req.ReferenceID,
	})
	h.respondOutcome(w, r, "reserve", err)
}

func (h *Handler) handleRelease(w http.ResponseWriter, r *http.Request) {
	var req movementRequest
	if !h.decode(w, r, &req) {
		return
	}
	err := h.service.Release(r.Context(), MovementInput{
		VariantID:   req.VariantID,
		Quantity:    req.Quantity,
		Reason:      Reason(req.Reason),
		ReferenceID: req.ReferenceID,
	})
	h.respondOutcome(w, r, "release", err)
}

func (h *Handler) handleAllocate(w http.ResponseWriter, r *http.Request) {
	var req allocationRequest
	if !h.decode(w, r, &req) {
		return
	}
	lines := make([]AllocationLine, 0, len(req.Lines))
	for _, line := range req.Lines {
		lines = append(lines, AllocationLine{VariantID: line.VariantID, Quantity: line.Quantity})
	}
	err := h.service.AllocateForOrder(r.Context(), req.OrderID, lines)
	h.respondOutcome(w, r, "allocate", err)
}

func (h *Handler) handleAdjust(w http.ResponseWriter, r *http.Request) {
	var req adjustmentRequest
	if !h.decode(w, r, &req) {
		return
	}
	err := h.service.Adjust(r.Context(), AdjustmentInput{
		VariantID:   req.VariantID,
		Delta:       req.Delta,
		Reason:      Reason(req.Reason),
		ReferenceID: req.ReferenceID,
	})
	h.respondOutcome(w, r, "adjust", err)
}

func (h *Handler) handleReturn(w http.ResponseWriter, r *http.Request) {
	var req returnRequest
	if !h.decode(w, r, &req) {
		return
	}
	err := h.service.ReturnReceipt(r.Context(), MovementInput{
		VariantID:   req.VariantID,
		Quantity:    req.Quantity,
		Reason:      Reason(req.Reason),
		ReferenceID: req.ReferenceID,
	})
	h.respondOutcome(w, r, "return", err)
}

func (h *Handler) handleGetState(w http.ResponseWriter, r *http.Request) {
	variantID, ok := h.parseVariantID(w, r)
	if !ok {
		return
	}
	st, err := h.service.GetState(r.Context(), variantID)
	if err != nil {
		h.respondError(w, r, "get state", err)
		return
	}
	httpx.JSON(w, http.StatusOK, stateResponse{
		VariantID: st.VariantID.String(),
		OnHand:    st.OnHand,
		Reserved:  st.Reserved,
		Available: st.Available(),
		UpdatedAt: st.UpdatedAt,
	})
}

func (h *Handler) handleAvailability(w http.ResponseWriter, r *http.Request) {
	variantID, ok := h.parseVariantID(w, r)
	if !ok {
		return
	}
	available, err := h.cache.FetchAvailability(r.Context(), variantID, func(ctx context.Context) (int64, error) {
		st, err := h.service.GetState(ctx, variantID)
		if err != nil {
			return 0, err
		}
		return st.Available(), nil
	})
	if err != nil {
		h.respondError(w, r, "get availability", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"variant_id": variantID.String(),
		"available":  available,
	})
}

func (h *Handler) handleLedger(w http.ResponseWriter, r *http.Request) {
	variantID, ok := h.parseVariantID(w, r)
	if !ok {
		return
	}
	filter := LedgerFilter{VariantID: variantID}
	q := r.URL.Query()
	if fromStr := q.Get("from"); fromStr != "" {
		from, err := time.Parse(time.RFC3339, fromStr)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid from timestamp")
			return
		}
		filter.From = from
	}
	if toStr := q.Get("to"); toStr != "" {
		to, err := time.Parse(time.RFC3339, toStr)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid to timestamp")
			return
		}
		filter.To = to
	}
	if limitStr := q.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}
	entries, err := h.service.ListLedger(r.Context(), filter)
	if err != nil {
		h.respondError(w, r, "list ledger", err)
		return
	}
	out := make([]ledgerEntryResponse, 0, len(entries))
	for _, entry := range entries {
		item := ledgerEntryResponse{
			ID:            entry.ID,
			VariantID:     entry.VariantID.String(),
			QuantityDelta: entry.QuantityDelta,
			Reason:        string(entry.Reason),
			CreatedAt:     entry.CreatedAt,
		}
		if entry.ReferenceID != nil {
			ref := entry.ReferenceID.String()
			item.ReferenceID = &ref
		}
		out = append(out, item)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": out})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return false
	}
	if err := h.validator.Struct(target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

func (h *Handler) parseVariantID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	variantID, err := uuid.Parse(chi.URLParam(r, "variantID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid variant id")
		return uuid.Nil, false
	}
	return variantID, true
}

func (h *Handler) respondOutcome(w http.ResponseWriter, r *http.Request, operation string, err error) {
	if err != nil {
		h.respondError(w, r, operation, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	switch {
	case errors.Is(err, ErrVariantNotFound), errors.Is(err, ErrOrderNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrStockConflict):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrInsufficientStock), errors.Is(err, ErrInsufficientReserved), errors.Is(err, ErrLineNotOwned):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Business Rule Violation", err.Error())
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrReferenceRequired):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error(operation+" failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
