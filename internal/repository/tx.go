package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/lumishop/lumishop/internal/domain/coupon"
	"github.com/lumishop/lumishop/internal/domain/order"
	"github.com/lumishop/lumishop/internal/domain/product"
	"github.com/lumishop/lumishop/internal/domain/user"
)

const (
	createOrderSQL = `INSERT INTO orders
		(id, no, user_id, address, remark, total_amount, type, refund_status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	addItemSQL = `INSERT INTO order_items (id, order_id, product_id, sku_id, amount, price)
		VALUES ($1, $2, $3, $4, $5, $6)`

	itemsByOrderSQL = `SELECT id, order_id, product_id, sku_id, amount, price
		FROM order_items WHERE order_id = $1`

	setTotalSQL = `UPDATE orders SET total_amount = $2 WHERE id = $1`

	closeOrderSQL = `UPDATE orders SET closed = TRUE
		WHERE id = $1 AND paid_at IS NULL AND NOT closed`

	getSKUSQL = `SELECT s.id, s.product_id, s.title, s.price, s.stock,
			p.type, p.title, p.on_sale, p.price,
			c.id, c.target_amount, c.total_amount, c.user_count, c.status, c.end_at
		FROM product_skus s
		JOIN products p ON p.id = s.product_id
		LEFT JOIN crowdfundings c ON c.product_id = p.id
		WHERE s.id = $1`

	// Conditional decrement: the WHERE clause makes racing checkouts for
	// the last units serialize on the row, and the affected-row count is
	// the success signal.
	decreaseStockSQL = `UPDATE product_skus SET stock = stock - $2
		WHERE id = $1 AND stock >= $2`
	increaseStockSQL = `UPDATE product_skus SET stock = stock + $2 WHERE id = $1`

	redeemCouponSQL = `UPDATE coupon_codes SET used = used + 1
		WHERE id = $1 AND used < total`
	releaseCouponSQL = `UPDATE coupon_codes SET used = used - 1
		WHERE id = $1 AND used > 0`
	attachCouponSQL = `UPDATE orders SET coupon_code_id = $2 WHERE id = $1`

	getAddressSQL = `SELECT id, user_id, address, zip, contact_name, contact_phone, last_used_at
		FROM user_addresses WHERE id = $1`
	touchAddressSQL = `UPDATE user_addresses SET last_used_at = $2 WHERE id = $1`
)

var _ order.Tx = (*orderTx)(nil)

// orderTx implements order.Tx over a single pgx transaction.
type orderTx struct {
	tx pgx.Tx
}

func (t *orderTx) Order(ctx context.Context, id string) (*order.Order, error) {
	rows, err := t.tx.Query(ctx, getOrderByIDSQL, id)
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

func (t *orderTx) CreateOrder(ctx context.Context, o *order.Order) error {
	addressJSON, err := json.Marshal(o.Address)
	if err != nil {
		return errors.Wrap(err, "marshal order address")
	}
	_, err = t.tx.Exec(ctx, createOrderSQL,
		o.ID, o.No, o.UserID, addressJSON, o.Remark,
		o.TotalAmount, string(o.Type), string(o.RefundStatus), o.CreatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "create order %q", o.No)
	}
	return nil
}

func (t *orderTx) AddItem(ctx context.Context, item *order.Item) error {
	_, err := t.tx.Exec(ctx, addItemSQL,
		item.ID, item.OrderID, item.ProductID, item.SKUID, item.Amount, item.Price,
	)
	if err != nil {
		return errors.Wrapf(err, "add item to order %s", item.OrderID)
	}
	return nil
}

func (t *orderTx) Items(ctx context.Context, orderID string) ([]order.Item, error) {
	rows, err := t.tx.Query(ctx, itemsByOrderSQL, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "query order items")
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.Item, error) {
		var (
			item   order.Item
			amount int32
		)
		err := row.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.SKUID, &amount, &item.Price)
		item.Amount = int(amount)
		return item, err
	})
}

func (t *orderTx) SetTotal(ctx context.Context, orderID string, total decimal.Decimal) error {
	_, err := t.tx.Exec(ctx, setTotalSQL, orderID, total)
	if err != nil {
		return errors.Wrapf(err, "set total for order %s", orderID)
	}
	return nil
}

func (t *orderTx) CloseOrder(ctx context.Context, orderID string) error {
	_, err := t.tx.Exec(ctx, closeOrderSQL, orderID)
	if err != nil {
		return errors.Wrapf(err, "close order %s", orderID)
	}
	return nil
}

func (t *orderTx) SKU(ctx context.Context, skuID string) (*product.SKU, error) {
	rows, err := t.tx.Query(ctx, getSKUSQL, skuID)
	if err != nil {
		return nil, errors.Wrap(err, "query sku")
	}
	sku, err := pgx.CollectExactlyOneRow(rows, scanSKU)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &product.SKUNotFoundError{SKUID: skuID}
		}
		return nil, errors.Wrap(err, "scan sku")
	}
	return &sku, nil
}

func (t *orderTx) DecreaseStock(ctx context.Context, skuID string, n int) (bool, error) {
	tag, err := t.tx.Exec(ctx, decreaseStockSQL, skuID, n)
	if err != nil {
		return false, errors.Wrapf(err, "decrease stock for sku %s", skuID)
	}
	return tag.RowsAffected() > 0, nil
}

func (t *orderTx) IncreaseStock(ctx context.Context, skuID string, n int) error {
	_, err := t.tx.Exec(ctx, increaseStockSQL, skuID, n)
	if err != nil {
		return errors.Wrapf(err, "increase stock for sku %s", skuID)
	}
	return nil
}

func (t *orderTx) CouponByCode(ctx context.Context, code string) (*coupon.Code, error) {
	rows, err := t.tx.Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, errors.Wrap(err, "query coupon")
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrInvalid
		}
		return nil, errors.Wrap(err, "scan coupon")
	}
	return &c, nil
}

func (t *orderTx) RedeemCoupon(ctx context.Context, couponID string) (bool, error) {
	tag, err := t.tx.Exec(ctx, redeemCouponSQL, couponID)
	if err != nil {
		return false, errors.Wrapf(err, "redeem coupon %s", couponID)
	}
	return tag.RowsAffected() > 0, nil
}

func (t *orderTx) ReleaseCoupon(ctx context.Context, couponID string) error {
	_, err := t.tx.Exec(ctx, releaseCouponSQL, couponID)
	if err != nil {
		return errors.Wrapf(err, "release coupon %s", couponID)
	}
	return nil
}

func (t *orderTx) AttachCoupon(ctx context.Context, orderID, couponID string) error {
	_, err := t.tx.Exec(ctx, attachCouponSQL, orderID, couponID)
	if err != nil {
		return errors.Wrapf(err, "attach coupon to order %s", orderID)
	}
	return nil
}

func (t *orderTx) Address(ctx context.Context, addressID string) (*user.Address, error) {
	var addr user.Address
	err := t.tx.QueryRow(ctx, getAddressSQL, addressID).Scan(
		&addr.ID, &addr.UserID, &addr.Address, &addr.Zip,
		&addr.ContactName, &addr.ContactPhone, &addr.LastUsedAt,
	)
	if err != nil {
		return nil, errors.Wrapf(err, "query address %s", addressID)
	}
	return &addr, nil
}

func (t *orderTx) TouchAddress(ctx context.Context, addressID string, usedAt time.Time) error {
	_, err := t.tx.Exec(ctx, touchAddressSQL, addressID, usedAt)
	if err != nil {
		return errors.Wrapf(err, "touch address %s", addressID)
	}
	return nil
}

func scanSKU(row pgx.CollectableRow) (product.SKU, error) {
	var (
		sku    product.SKU
		stock  int32
		cfID   *string
		target *decimal.Decimal
		raised *decimal.Decimal
		users  *int32
		status *string
		endAt  *time.Time
	)
	err := row.Scan(
		&sku.ID, &sku.ProductID, &sku.Title, &sku.Price, &stock,
		&sku.Product.Type, &sku.Product.Title, &sku.Product.OnSale, &sku.Product.Price,
		&cfID, &target, &raised, &users, &status, &endAt,
	)
	if err != nil {
		return product.SKU{}, err
	}
	sku.Stock = int(stock)
	sku.Product.ID = sku.ProductID

	if cfID != nil {
		sku.Crowdfunding = &product.Crowdfunding{
			ID:           *cfID,
			ProductID:    sku.ProductID,
			TargetAmount: *target,
			TotalAmount:  *raised,
			UserCount:    int(*users),
			Status:       product.CrowdfundingStatus(*status),
			EndAt:        *endAt,
		}
	}
	return sku, nil
}
