package catalog

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/meridian-oms/stockcore/internal/platform/httpx"
)

// Handler wires variant registration endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs catalog handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.handleRegister)
	r.Get("/{variantID}", h.handleGet)
}

type registerRequest struct {
	SKU    string `json:"sku"`
	Name   string `json:"name"`
	Active *bool  `json:"active"`
}

type variantResponse struct {
	ID        string    `json:"id"`
	SKU       string    `json:"sku"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	variant, err := h.service.Register(r.Context(), Variant{SKU: req.SKU, Name: req.Name, Active: active})
	if err != nil {
		switch {
		case errors.Is(err, ErrDuplicateSKU):
			httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
		case errors.Is(err, ErrInvalidVariant):
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		default:
			h.logger.Error("register variant", slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		}
		return
	}
	httpx.JSON(w, http.StatusCreated, variantResponse{
		ID:     variant.ID.String(),
		SKU:    variant.SKU,
		Name:   variant.Name,
		Active: variant.Active,
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "variantID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid variant id")
		return
	}
	variant, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrVariantNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
			return
		}
		h.logger.Error("get variant", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, variantResponse{
		ID:        variant.ID.String(),
		SKU:       variant.SKU,
		Name:      variant.Name,
		Active:    variant.Active,
		CreatedAt: variant.CreatedAt,
	})
}
