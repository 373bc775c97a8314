package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumishop/lumishop/internal/domain/order"
	"github.com/lumishop/lumishop/internal/domain/payment"
)

const (
	orderColumns = `id, no, user_id, address, remark, total_amount, type,
		paid_at, payment_method, payment_no, refund_no, refund_status,
		closed, coupon_code_id, extra, created_at`

	getOrderByNoSQL       = `SELECT ` + orderColumns + ` FROM orders WHERE no = $1`
	getOrderByIDSQL       = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	getOrderByRefundNoSQL = `SELECT ` + orderColumns + ` FROM orders WHERE refund_no = $1`

	markRefundProcessingSQL = `UPDATE orders
		SET refund_no = $2, refund_status = 'processing' WHERE id = $1`
	markRefundSucceededSQL = `UPDATE orders
		SET refund_no = $2, refund_status = 'success' WHERE id = $1`
	// Merges the failure code into extra so other extra keys survive.
	markRefundFailedSQL = `UPDATE orders
		SET refund_no = $2, refund_status = 'failed',
		    extra = COALESCE(extra, '{}'::jsonb) || jsonb_build_object($3::text, $4::text)
		WHERE id = $1`
)

var (
	_ order.Store        = (*OrderStore)(nil)
	_ payment.OrderStore = (*OrderStore)(nil)
)

// OrderStore implements order.Store and payment.OrderStore backed by
// PostgreSQL. Transact gives workflow code a transaction-scoped view of
// every table checkout and cancellation touch.
type OrderStore struct {
	pool *pgxpool.Pool
}

// NewOrderStore returns an OrderStore that uses the given pool.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

// Transact runs fn inside a single read-committed transaction. An error
// from fn rolls everything back.
func (s *OrderStore) Transact(ctx context.Context, fn func(tx order.Tx) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&orderTx{tx: tx})
	})
}

// GetByNo loads an order by its human-readable number.
func (s *OrderStore) GetByNo(ctx context.Context, no string) (*order.Order, error) {
	return s.getOrder(ctx, getOrderByNoSQL, no)
}

// FindByRefundNo loads the order that owns the given refund number.
func (s *OrderStore) FindByRefundNo(ctx context.Context, refundNo string) (*order.Order, error) {
	return s.getOrder(ctx, getOrderByRefundNoSQL, refundNo)
}

func (s *OrderStore) getOrder(ctx context.Context, sql, arg string) (*order.Order, error) {
	rows, err := s.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, errors.Wrap(err, "query order")
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrap(err, "scan order")
	}
	return &o, nil
}

// MarkRefundProcessing records an initiated refund awaiting the
// gateway's asynchronous result.
func (s *OrderStore) MarkRefundProcessing(ctx context.Context, orderID, refundNo string) error {
	_, err := s.pool.Exec(ctx, markRefundProcessingSQL, orderID, refundNo)
	if err != nil {
		return errors.Wrapf(err, "mark order %s refund processing", orderID)
	}
	return nil
}

// MarkRefundSucceeded records a completed refund.
func (s *OrderStore) MarkRefundSucceeded(ctx context.Context, orderID, refundNo string) error {
	_, err := s.pool.Exec(ctx, markRefundSucceededSQL, orderID, refundNo)
	if err != nil {
		return errors.Wrapf(err, "mark order %s refund succeeded", orderID)
	}
	return nil
}

// MarkRefundFailed records a failed refund and merges the gateway's
// failure code into the order's extra metadata.
func (s *OrderStore) MarkRefundFailed(ctx context.Context, orderID, refundNo, failCode string) error {
	_, err := s.pool.Exec(ctx, markRefundFailedSQL,
		orderID, refundNo, payment.ExtraRefundFailedCode, failCode)
	if err != nil {
		return errors.Wrapf(err, "mark order %s refund failed", orderID)
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o             order.Order
		addressJSON   []byte
		paidAt        *time.Time
		paymentMethod *string
		paymentNo     *string
		refundNo      *string
		couponCodeID  *string
		extraJSON     []byte
	)
	err := row.Scan(
		&o.ID, &o.No, &o.UserID, &addressJSON, &o.Remark, &o.TotalAmount, &o.Type,
		&paidAt, &paymentMethod, &paymentNo, &refundNo, &o.RefundStatus,
		&o.Closed, &couponCodeID, &extraJSON, &o.CreatedAt,
	)
	if err != nil {
		return order.Order{}, err
	}

	if err := json.Unmarshal(addressJSON, &o.Address); err != nil {
		return order.Order{}, errors.Wrap(err, "unmarshal order address")
	}
	if len(extraJSON) > 0 {
		if err := json.Unmarshal(extraJSON, &o.Extra); err != nil {
			return order.Order{}, errors.Wrap(err, "unmarshal order extra")
		}
	}

	o.PaidAt = paidAt
	if paymentMethod != nil {
		o.PaymentMethod = order.PaymentMethod(*paymentMethod)
	}
	if paymentNo != nil {
		o.PaymentNo = *paymentNo
	}
	if refundNo != nil {
		o.RefundNo = *refundNo
	}
	if couponCodeID != nil {
		o.CouponCodeID = *couponCodeID
	}
	return o, nil
}
