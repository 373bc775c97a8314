package payment

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/lumishop/lumishop/internal/domain/order"
)

// ExtraRefundFailedCode is the key under which a gateway's failure code
// is recorded in the order's extra metadata.
const ExtraRefundFailedCode = "refund_failed_code"

// Service implements refund reconciliation against the payment gateways.
type Service struct {
	orders OrderStore
	alipay AlipayClient
	wechat WechatClient
}

// NewService creates a refund Service with explicit gateway clients.
func NewService(orders OrderStore, alipay AlipayClient, wechat WechatClient) *Service {
	return &Service{orders: orders, alipay: alipay, wechat: wechat}
}

// Refund initiates a refund for a paid order, dispatching on the
// gateway that processed the original payment, and records the
// resulting state on the order.
//
// Alipay answers synchronously: a sub-code in the response is a
// recorded failure, not an error return. WeChat Pay answers via the
// refund-notify webhook, so the call here only initiates the refund and
// leaves the order in the processing state.
func (s *Service) Refund(ctx context.Context, o *order.Order) error {
	if o.PaidAt == nil {
		return ErrOrderNotPaid
	}

	switch o.PaymentMethod {
	case order.PaymentAlipay:
		return s.refundAlipay(ctx, o)
	case order.PaymentWechat:
		return s.refundWechat(ctx, o)
	default:
		return &UnknownPaymentMethodError{Method: o.PaymentMethod}
	}
}

func (s *Service) refundAlipay(ctx context.Context, o *order.Order) error {
	refundNo := order.NewRefundNo()

	res, err := s.alipay.Refund(ctx, AlipayRefund{
		TradeNo:      o.No,
		RefundAmount: o.TotalAmount,
		OutRequestNo: refundNo,
	})
	if err != nil {
		return errors.Wrap(err, "alipay refund call")
	}

	if res.SubCode != "" {
		if err := s.orders.MarkRefundFailed(ctx, o.ID, refundNo, res.SubCode); err != nil {
			return errors.Wrap(err, "mark refund failed")
		}
		o.RefundNo = refundNo
		o.RefundStatus = order.RefundFailed
		if o.Extra == nil {
			o.Extra = make(map[string]string, 1)
		}
		o.Extra[ExtraRefundFailedCode] = res.SubCode
		return nil
	}

	if err := s.orders.MarkRefundSucceeded(ctx, o.ID, refundNo); err != nil {
		return errors.Wrap(err, "mark refund succeeded")
	}
	o.RefundNo = refundNo
	o.RefundStatus = order.RefundSuccess
	return nil
}

func (s *Service) refundWechat(ctx context.Context, o *order.Order) error {
	refundNo := order.NewRefundNo()

	// WeChat fees are in cents.
	fee := o.TotalAmount.Shift(2).IntPart()
	err := s.wechat.Refund(ctx, WechatRefund{
		OutTradeNo:  o.No,
		OutRefundNo: refundNo,
		TotalFee:    fee,
		RefundFee:   fee,
	})
	if err != nil {
		return errors.Wrap(err, "wechat refund call")
	}

	if err := s.orders.MarkRefundProcessing(ctx, o.ID, refundNo); err != nil {
		return errors.Wrap(err, "mark refund processing")
	}
	o.RefundNo = refundNo
	o.RefundStatus = order.RefundProcessing
	return nil
}

// ReconcileWechatRefund applies the outcome delivered on the WeChat
// refund-notify webhook to the order identified by its refund number.
func (s *Service) ReconcileWechatRefund(ctx context.Context, refundNo string, succeeded bool, failCode string) error {
	o, err := s.orders.FindByRefundNo(ctx, refundNo)
	if err != nil {
		return errors.Wrap(err, "find order by refund no")
	}

	if succeeded {
		if err := s.orders.MarkRefundSucceeded(ctx, o.ID, refundNo); err != nil {
			return errors.Wrap(err, "mark refund succeeded")
		}
		return nil
	}
	if err := s.orders.MarkRefundFailed(ctx, o.ID, refundNo, failCode); err != nil {
		return errors.Wrap(err, "mark refund failed")
	}
	return nil
}
