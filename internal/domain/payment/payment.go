package payment

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/lumishop/lumishop/internal/domain/order"
)

// ErrOrderNotPaid is returned when a refund is attempted on an order
// that was never paid.
var ErrOrderNotPaid = errors.New("order has not been paid")

// UnknownPaymentMethodError indicates an order whose payment method
// matches no supported gateway. Upstream validation should make this
// unreachable, so it fails loudly instead of doing nothing.
type UnknownPaymentMethodError struct {
	Method order.PaymentMethod
}

func (e *UnknownPaymentMethodError) Error() string {
	return fmt.Sprintf("unknown order payment method %q", string(e.Method))
}

// AlipayRefund is the request for Alipay's synchronous refund API.
// Amounts are in the major currency unit (yuan).
type AlipayRefund struct {
	TradeNo      string
	RefundAmount decimal.Decimal
	OutRequestNo string
}

// AlipayRefundResult is the synchronous refund response. A non-empty
// SubCode means the refund failed.
type AlipayRefundResult struct {
	SubCode string
	SubMsg  string
}

// AlipayClient is the narrow contract consumed from the Alipay gateway.
type AlipayClient interface {
	Refund(ctx context.Context, req AlipayRefund) (*AlipayRefundResult, error)
}

// WechatRefund is the request for WeChat Pay's refund API. Fees are in
// the minor currency unit (cents). The outcome arrives later on the
// refund-notify webhook, not in the call's response.
type WechatRefund struct {
	OutTradeNo  string
	OutRefundNo string
	TotalFee    int64
	RefundFee   int64
}

// WechatClient is the narrow contract consumed from the WeChat Pay gateway.
type WechatClient interface {
	Refund(ctx context.Context, req WechatRefund) error
}

// OrderStore persists refund state transitions on orders.
type OrderStore interface {
	FindByRefundNo(ctx context.Context, refundNo string) (*order.Order, error)
	MarkRefundProcessing(ctx context.Context, orderID, refundNo string) error
	MarkRefundSucceeded(ctx context.Context, orderID, refundNo string) error
	// MarkRefundFailed records the failure and merges failCode into the
	// order's extra metadata without discarding existing keys.
	MarkRefundFailed(ctx context.Context, orderID, refundNo, failCode string) error
}
