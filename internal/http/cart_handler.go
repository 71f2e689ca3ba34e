package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/fjod/go_cart/cart-service/internal/domain"
	"github.com/go-chi/chi/v5"
)

type CartService interface {
	GetCart(ctx context.Context, userID string) (*domain.CartView, error)
	AddItem(ctx context.Context, userID, productID, optionID string, quantity int64) (*domain.CartView, error)
	UpdateQuantity(ctx context.Context, userID, productID, optionID string, quantity int64) (*domain.CartView, error)
	RemoveItem(ctx context.Context, userID, productID, optionID string) (*domain.CartView, error)
	ClearCart(ctx context.Context, userID string) (*domain.CartView, error)
}

type CartHandler struct {
	carts   CartService
	timeout time.Duration
	log     *slog.Logger
}

func NewCartHandler(carts CartService, timeout time.Duration, log *slog.Logger) *CartHandler {
	if log == nil {
		log = slog.Default()
	}
	return &CartHandler{
		carts:   carts,
		timeout: timeout,
		log:     log,
	}
}

type AddItemRequestDTO struct {
	ProductID string `json:"product_id"`
	OptionID  string `json:"option_id"`
	Quantity  int64  `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int64 `json:"quantity"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cart, err := h.carts.GetCart(ctx, getUserIDFromContext(r.Context()))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, cart)
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body", err.Error())
		return
	}
	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required", "")
		return
	}

	cart, err := h.carts.AddItem(ctx, getUserIDFromContext(r.Context()), req.ProductID, req.OptionID, req.Quantity)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, cart)
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body", err.Error())
		return
	}

	cart, err := h.carts.UpdateQuantity(ctx, getUserIDFromContext(r.Context()),
		chi.URLParam(r, "product_id"), chi.URLParam(r, "option_id"), req.Quantity)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, cart)
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cart, err := h.carts.RemoveItem(ctx, getUserIDFromContext(r.Context()),
		chi.URLParam(r, "product_id"), chi.URLParam(r, "option_id"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, cart)
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cart, err := h.carts.ClearCart(ctx, getUserIDFromContext(r.Context()))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, cart)
}

// handleServiceError maps error kinds to HTTP status codes.
// handleServiceError maps an error kind to a status. The body carries the kind as error
// and the full cause as details; unexpected errors are logged and never echoed.
func (h *CartHandler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var httpStatus int
	var code string
	var kind error

	switch {
	case errors.Is(err, domain.ErrNotFound):
		httpStatus, code, kind = http.StatusNotFound, "not_found", domain.ErrNotFound
	case errors.Is(err, domain.ErrInvalidRequest):
		httpStatus, code, kind = http.StatusBadRequest, "invalid_argument", domain.ErrInvalidRequest
	case errors.Is(err, domain.ErrConflict):
		httpStatus, code, kind = http.StatusConflict, "conflict", domain.ErrConflict
	case errors.Is(err, domain.ErrUnavailable):
		httpStatus, code, kind = http.StatusServiceUnavailable, "service_unavailable", domain.ErrUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		httpStatus, code, kind = http.StatusGatewayTimeout, "timeout", context.DeadlineExceeded
	default:
		h.log.ErrorContext(r.Context(), "cart request failed",
			"method", r.Method, "path", r.URL.Path, "request_id", getRequestID(r.Context()), "err", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", "")
		return
	}

	respondError(w, httpStatus, code, kind.Error(), err.Error())
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "err", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message, details string) {
	respondJSON(w, status, ErrorResponse{
		Error:   message,
		Code:    code,
		Details: details,
	})
}
