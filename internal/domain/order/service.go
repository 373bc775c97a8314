package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/lumishop/lumishop/internal/domain/coupon"
	"github.com/lumishop/lumishop/internal/domain/product"
)

// LineItem is a (sku, quantity) pair from the buyer's cart.
type LineItem struct {
	SKUID    string
	Quantity int
}

// PlaceOrderRequest holds the input for placing a normal order.
type PlaceOrderRequest struct {
	UserID     string
	AddressID  string
	Remark     string
	Items      []LineItem
	CouponCode string
}

// PlaceCrowdfundingRequest holds the input for backing a crowdfunding
// campaign: a single SKU, no coupon.
type PlaceCrowdfundingRequest struct {
	UserID    string
	AddressID string
	SKUID     string
	Quantity  int
}

// Service implements the order placement and cancellation workflows.
type Service struct {
	store     Store
	coupons   coupon.Repository
	filter    *coupon.Filter
	cart      Cart
	canceller Canceller
	cancelTTL time.Duration
	now       func() time.Time
}

// NewService creates an order Service. filter may be nil, in which case
// coupon codes always hit the repository.
func NewService(
	store Store,
	coupons coupon.Repository,
	filter *coupon.Filter,
	cart Cart,
	canceller Canceller,
	cancelTTL time.Duration,
) *Service {
	return &Service{
		store:     store,
		coupons:   coupons,
		filter:    filter,
		cart:      cart,
		canceller: canceller,
		cancelTTL: cancelTTL,
		now:       time.Now,
	}
}

// PlaceOrder atomically creates an order with one line item per cart
// entry, decrements stock, applies the optional coupon, and persists
// the final total. On success it clears the purchased SKUs from the
// buyer's cart and schedules the delayed auto-cancel job.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*Order, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	for _, line := range req.Items {
		if line.Quantity <= 0 {
			return nil, &InvalidQuantityError{SKUID: line.SKUID}
		}
	}

	now := s.now()

	// Preliminary amount-independent coupon check, so a bogus or
	// exhausted code fails before any inventory is touched.
	if req.CouponCode != "" {
		if s.filter != nil && !s.filter.MayContain(req.CouponCode) {
			return nil, coupon.ErrInvalid
		}
		c, err := s.coupons.FindByCode(ctx, req.CouponCode)
		if err != nil {
			return nil, err
		}
		if err := c.CheckAvailable(now, nil); err != nil {
			return nil, err
		}
	}

	var (
		o      *Order
		skuIDs []string
	)
	err := s.store.Transact(ctx, func(tx Tx) error {
		addr, err := s.snapshotAddress(ctx, tx, req.UserID, req.AddressID, now)
		if err != nil {
			return err
		}

		o = &Order{
			ID:           uuid.New().String(),
			No:           NewNo(now),
			UserID:       req.UserID,
			Address:      addr,
			Remark:       req.Remark,
			TotalAmount:  decimal.Zero,
			Type:         TypeNormal,
			RefundStatus: RefundPending,
			CreatedAt:    now,
		}
		if err := tx.CreateOrder(ctx, o); err != nil {
			return errors.Wrap(err, "create order")
		}

		total := decimal.Zero
		skuIDs = skuIDs[:0]
		for _, line := range req.Items {
			sku, err := tx.SKU(ctx, line.SKUID)
			if err != nil {
				return err
			}
			if !sku.Product.OnSale {
				return ErrProductNotOnSale
			}

			item := &Item{
				ID:        uuid.New().String(),
				OrderID:   o.ID,
				ProductID: sku.ProductID,
				SKUID:     sku.ID,
				Amount:    line.Quantity,
				Price:     sku.Price,
			}
			if err := tx.AddItem(ctx, item); err != nil {
				return errors.Wrap(err, "add order item")
			}
			total = total.Add(sku.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))

			ok, err := tx.DecreaseStock(ctx, sku.ID, line.Quantity)
			if err != nil {
				return errors.Wrap(err, "decrease stock")
			}
			if !ok {
				return ErrInsufficientStock
			}
			skuIDs = append(skuIDs, sku.ID)
		}

		if req.CouponCode != "" {
			total, err = s.applyCoupon(ctx, tx, o, req.CouponCode, total, now)
			if err != nil {
				return err
			}
		}

		if err := tx.SetTotal(ctx, o.ID, total); err != nil {
			return errors.Wrap(err, "set order total")
		}
		o.TotalAmount = total
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.clearCart(ctx, req.UserID, skuIDs, o.No)

	s.scheduleCancel(ctx, o, s.cancelTTL)
	return o, nil
}

// PlaceCrowdfundingOrder creates a single-SKU crowdfunding order. The
// total is price × quantity computed up front and the auto-cancel TTL
// is capped at the campaign's remaining time.
func (s *Service) PlaceCrowdfundingOrder(ctx context.Context, req PlaceCrowdfundingRequest) (*Order, error) {
	if req.Quantity <= 0 {
		return nil, &InvalidQuantityError{SKUID: req.SKUID}
	}

	now := s.now()

	var (
		o     *Order
		endAt time.Time
	)
	err := s.store.Transact(ctx, func(tx Tx) error {
		addr, err := s.snapshotAddress(ctx, tx, req.UserID, req.AddressID, now)
		if err != nil {
			return err
		}

		sku, err := tx.SKU(ctx, req.SKUID)
		if err != nil {
			return err
		}
		if !sku.Product.OnSale {
			return ErrProductNotOnSale
		}
		if sku.Product.Type != product.TypeCrowdfunding || sku.Crowdfunding == nil ||
			sku.Crowdfunding.Status != product.StatusFunding {
			return ErrCampaignClosed
		}
		endAt = sku.Crowdfunding.EndAt

		o = &Order{
			ID:           uuid.New().String(),
			No:           NewNo(now),
			UserID:       req.UserID,
			Address:      addr,
			TotalAmount:  sku.Price.Mul(decimal.NewFromInt(int64(req.Quantity))),
			Type:         TypeCrowdfunding,
			RefundStatus: RefundPending,
			CreatedAt:    now,
		}
		if err := tx.CreateOrder(ctx, o); err != nil {
			return errors.Wrap(err, "create order")
		}

		item := &Item{
			ID:        uuid.New().String(),
			OrderID:   o.ID,
			ProductID: sku.ProductID,
			SKUID:     sku.ID,
			Amount:    req.Quantity,
			Price:     sku.Price,
		}
		if err := tx.AddItem(ctx, item); err != nil {
			return errors.Wrap(err, "add order item")
		}

		ok, err := tx.DecreaseStock(ctx, sku.ID, req.Quantity)
		if err != nil {
			return errors.Wrap(err, "decrease stock")
		}
		if !ok {
			return ErrInsufficientStock
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.scheduleCancel(ctx, o, crowdfundingCancelTTL(s.cancelTTL, endAt, now))
	return o, nil
}

// CancelUnpaid closes an order that is still unpaid, returning its
// stock and releasing its coupon use. Paid or already-closed orders are
// left untouched, so the at-least-once job queue may fire it repeatedly.
func (s *Service) CancelUnpaid(ctx context.Context, orderID string) error {
	return s.store.Transact(ctx, func(tx Tx) error {
		o, err := tx.Order(ctx, orderID)
		if err != nil {
			return err
		}
		if o.PaidAt != nil || o.Closed {
			return nil
		}

		if err := tx.CloseOrder(ctx, o.ID); err != nil {
			return errors.Wrap(err, "close order")
		}

		items, err := tx.Items(ctx, o.ID)
		if err != nil {
			return errors.Wrap(err, "load order items")
		}
		for _, item := range items {
			if err := tx.IncreaseStock(ctx, item.SKUID, item.Amount); err != nil {
				return errors.Wrap(err, "return stock")
			}
		}

		if o.CouponCodeID != "" {
			if err := tx.ReleaseCoupon(ctx, o.CouponCodeID); err != nil {
				return errors.Wrap(err, "release coupon")
			}
		}
		return nil
	})
}

// snapshotAddress loads the shipping address, verifies ownership,
// stamps last_used_at, and returns the snapshot to store on the order.
func (s *Service) snapshotAddress(ctx context.Context, tx Tx, userID, addressID string, now time.Time) (Address, error) {
	addr, err := tx.Address(ctx, addressID)
	if err != nil {
		return Address{}, err
	}
	if addr.UserID != userID {
		return Address{}, ErrAddressNotOwned
	}
	if err := tx.TouchAddress(ctx, addr.ID, now); err != nil {
		return Address{}, errors.Wrap(err, "touch address")
	}
	return Address{
		Address:      addr.Address,
		Zip:          addr.Zip,
		ContactName:  addr.ContactName,
		ContactPhone: addr.ContactPhone,
	}, nil
}

// applyCoupon re-validates the coupon against the known running total,
// attaches it to the order, and redeems one use. The conditional redeem
// catches the race where a concurrent checkout takes the last use
// between the preliminary check and here.
func (s *Service) applyCoupon(ctx context.Context, tx Tx, o *Order, code string, total decimal.Decimal, now time.Time) (decimal.Decimal, error) {
	c, err := tx.CouponByCode(ctx, code)
	if err != nil {
		return decimal.Zero, err
	}
	if err := c.CheckAvailable(now, &total); err != nil {
		return decimal.Zero, err
	}

	adjusted, err := c.AdjustedPrice(total)
	if err != nil {
		return decimal.Zero, err
	}

	if err := tx.AttachCoupon(ctx, o.ID, c.ID); err != nil {
		return decimal.Zero, errors.Wrap(err, "attach coupon")
	}
	ok, err := tx.RedeemCoupon(ctx, c.ID)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "redeem coupon")
	}
	if !ok {
		return decimal.Zero, coupon.ErrExhausted
	}
	o.CouponCodeID = c.ID
	return adjusted, nil
}

// cartClearAttempts bounds the retries when clearing purchased SKUs
// from the buyer's cart after commit.
const cartClearAttempts = 3

// clearCart removes the purchased SKUs from the cart. The cart lives
// outside the transactional store, so this runs just after commit.
// Removal is idempotent, so transient failures are retried; if every
// attempt fails the order stands and the failure is logged, since at
// worst the buyer sees already-bought items in their cart.
func (s *Service) clearCart(ctx context.Context, userID string, skuIDs []string, orderNo string) {
	var err error
	for attempt := 0; attempt < cartClearAttempts; attempt++ {
		if err = s.cart.RemoveItems(ctx, userID, skuIDs); err == nil {
			return
		}
	}
	zctx.From(ctx).Warn("clear cart after checkout",
		zap.String("order_no", orderNo), zap.Error(err))
}

// scheduleCancel fires the delayed auto-cancel job. Scheduling happens
// after commit; a failure means the order simply stays open, so it is
// logged rather than surfaced.
func (s *Service) scheduleCancel(ctx context.Context, o *Order, delay time.Duration) {
	if err := s.canceller.ScheduleCancel(ctx, o.ID, delay); err != nil {
		zctx.From(ctx).Error("schedule order cancel",
			zap.String("order_no", o.No), zap.Error(err))
	}
}

// crowdfundingCancelTTL caps the default cancel TTL at the campaign's
// remaining time, clamped to zero when the campaign is already past due.
func crowdfundingCancelTTL(defaultTTL time.Duration, endAt, now time.Time) time.Duration {
	ttl := defaultTTL
	if remaining := endAt.Sub(now); remaining < ttl {
		ttl = remaining
	}
	if ttl < 0 {
		ttl = 0
	}
	return ttl
}
