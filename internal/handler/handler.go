// Package handler exposes the order workflows over HTTP. It is thin
// glue: decode and validate the payload, call the service, map domain
// errors to status codes.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/lumishop/lumishop/internal/domain/coupon"
	"github.com/lumishop/lumishop/internal/domain/order"
	"github.com/lumishop/lumishop/internal/domain/payment"
	"github.com/lumishop/lumishop/internal/domain/product"
)

const maxBodyBytes = 1 << 20 // 1 MB

// Handler holds the services behind the HTTP API.
type Handler struct {
	orders   *order.Service
	store    order.Store
	refunds  *payment.Service
	validate *validator.Validate
}

// New creates a Handler.
func New(orders *order.Service, store order.Store, refunds *payment.Service) *Handler {
	return &Handler{
		orders:   orders,
		store:    store,
		refunds:  refunds,
		validate: validator.New(),
	}
}

// Routes returns the API router.
func (h *Handler) Routes() *mux.Router {
	r := mux.NewRouter()

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/orders", h.placeOrder).Methods(http.MethodPost)
	api.HandleFunc("/orders/crowdfunding", h.placeCrowdfundingOrder).Methods(http.MethodPost)
	api.HandleFunc("/orders/{no}/refund", h.refundOrder).Methods(http.MethodPost)

	r.HandleFunc("/webhooks/wechat/refunds", h.wechatRefundNotify).Methods(http.MethodPost)
	return r
}

// decode reads and validates a JSON payload into dst.
func (h *Handler) decode(r *http.Request, dst any) error {
	body := http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		return errors.Wrap(err, "decode payload")
	}
	return h.validate.Struct(dst)
}

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Code: status, Message: message})
}

// writeDomainError maps domain errors to HTTP responses: business-rule
// failures surface their message with 422, unknown errors stay opaque.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, order.ErrEmptyItems):
		writeError(w, http.StatusBadRequest, err.Error())
	case isBusinessRuleError(err):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, order.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		zctx.From(r.Context()).Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func isBusinessRuleError(err error) bool {
	var (
		iqErr  *order.InvalidQuantityError
		snfErr *product.SKUNotFoundError
	)
	return errors.Is(err, order.ErrInsufficientStock) ||
		errors.Is(err, order.ErrProductNotOnSale) ||
		errors.Is(err, order.ErrCampaignClosed) ||
		errors.Is(err, order.ErrAddressNotOwned) ||
		errors.Is(err, coupon.ErrInvalid) ||
		errors.Is(err, coupon.ErrNotStarted) ||
		errors.Is(err, coupon.ErrExpired) ||
		errors.Is(err, coupon.ErrExhausted) ||
		errors.Is(err, coupon.ErrMinAmount) ||
		errors.Is(err, payment.ErrOrderNotPaid) ||
		errors.As(err, &iqErr) ||
		errors.As(err, &snfErr)
}
