package handler

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/lumishop/lumishop/internal/domain/order"
)

type orderItemPayload struct {
	SKUID    string `json:"sku_id" validate:"required,uuid"`
	Quantity int    `json:"quantity" validate:"required,gt=0"`
}

type placeOrderPayload struct {
	UserID     string             `json:"user_id" validate:"required,uuid"`
	AddressID  string             `json:"address_id" validate:"required,uuid"`
	Remark     string             `json:"remark"`
	CouponCode string             `json:"coupon_code"`
	Items      []orderItemPayload `json:"items" validate:"required,min=1,dive"`
}

type crowdfundingOrderPayload struct {
	UserID    string `json:"user_id" validate:"required,uuid"`
	AddressID string `json:"address_id" validate:"required,uuid"`
	SKUID     string `json:"sku_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

type orderResponse struct {
	ID           string    `json:"id"`
	No           string    `json:"no"`
	TotalAmount  string    `json:"total_amount"`
	Type         string    `json:"type"`
	RefundStatus string    `json:"refund_status"`
	CreatedAt    time.Time `json:"created_at"`
}

func toOrderResponse(o *order.Order) orderResponse {
	return orderResponse{
		ID:           o.ID,
		No:           o.No,
		TotalAmount:  o.TotalAmount.StringFixed(2),
		Type:         string(o.Type),
		RefundStatus: string(o.RefundStatus),
		CreatedAt:    o.CreatedAt,
	}
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var payload placeOrderPayload
	if err := h.decode(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items := make([]order.LineItem, len(payload.Items))
	for i, item := range payload.Items {
		items[i] = order.LineItem{SKUID: item.SKUID, Quantity: item.Quantity}
	}

	o, err := h.orders.PlaceOrder(r.Context(), order.PlaceOrderRequest{
		UserID:     payload.UserID,
		AddressID:  payload.AddressID,
		Remark:     payload.Remark,
		Items:      items,
		CouponCode: payload.CouponCode,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(o))
}

func (h *Handler) placeCrowdfundingOrder(w http.ResponseWriter, r *http.Request) {
	var payload crowdfundingOrderPayload
	if err := h.decode(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	o, err := h.orders.PlaceCrowdfundingOrder(r.Context(), order.PlaceCrowdfundingRequest{
		UserID:    payload.UserID,
		AddressID: payload.AddressID,
		SKUID:     payload.SKUID,
		Quantity:  payload.Quantity,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(o))
}

func (h *Handler) refundOrder(w http.ResponseWriter, r *http.Request) {
	no := mux.Vars(r)["no"]

	o, err := h.store.GetByNo(r.Context(), no)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	if err := h.refunds.Refund(r.Context(), o); err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"refund_no":     o.RefundNo,
		"refund_status": string(o.RefundStatus),
	})
}
