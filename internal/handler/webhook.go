package handler

import (
	"net/http"
)

// wechatRefundNotifyPayload is the asynchronous refund outcome the
// WeChat gateway posts back. refund_status is SUCCESS on success; any
// other value is a failure and is recorded on the order.
type wechatRefundNotifyPayload struct {
	OutRefundNo  string `json:"out_refund_no" validate:"required"`
	RefundStatus string `json:"refund_status" validate:"required"`
}

const wechatRefundSuccess = "SUCCESS"

func (h *Handler) wechatRefundNotify(w http.ResponseWriter, r *http.Request) {
	var payload wechatRefundNotifyPayload
	if err := h.decode(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	succeeded := payload.RefundStatus == wechatRefundSuccess
	failCode := ""
	if !succeeded {
		failCode = payload.RefundStatus
	}

	if err := h.refunds.ReconcileWechatRefund(r.Context(), payload.OutRefundNo, succeeded, failCode); err != nil {
		writeDomainError(w, r, err)
		return
	}

	// The gateway retries until it sees this acknowledgement.
	writeJSON(w, http.StatusOK, map[string]string{"code": "SUCCESS"})
}
