package order

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumishop/lumishop/internal/domain/coupon"
	"github.com/lumishop/lumishop/internal/domain/product"
	"github.com/lumishop/lumishop/internal/domain/user"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// memStore is an in-memory Store with real transaction semantics: fn
// runs against a deep copy of the state, which replaces the live state
// only when fn returns nil. It doubles as the coupon.Repository used
// for the preliminary check, so both views share one source of truth.
type memStore struct {
	skus    map[string]*product.SKU
	coupons map[string]*coupon.Code
	addrs   map[string]*user.Address
	orders  map[string]*Order
	items   map[string][]Item

	// forceRedeemConflict simulates a concurrent checkout winning the
	// coupon's last use between the preliminary check and the redeem.
	forceRedeemConflict bool
}

func newMemStore() *memStore {
	return &memStore{
		skus:    make(map[string]*product.SKU),
		coupons: make(map[string]*coupon.Code),
		addrs:   make(map[string]*user.Address),
		orders:  make(map[string]*Order),
		items:   make(map[string][]Item),
	}
}

func (s *memStore) clone() *memStore {
	c := newMemStore()
	c.forceRedeemConflict = s.forceRedeemConflict
	for id, sku := range s.skus {
		cp := *sku
		if sku.Crowdfunding != nil {
			cf := *sku.Crowdfunding
			cp.Crowdfunding = &cf
		}
		c.skus[id] = &cp
	}
	for id, cc := range s.coupons {
		cp := *cc
		c.coupons[id] = &cp
	}
	for id, a := range s.addrs {
		cp := *a
		c.addrs[id] = &cp
	}
	for id, o := range s.orders {
		cp := *o
		c.orders[id] = &cp
	}
	for id, items := range s.items {
		c.items[id] = append([]Item(nil), items...)
	}
	return c
}

func (s *memStore) Transact(_ context.Context, fn func(tx Tx) error) error {
	staged := s.clone()
	if err := fn(&memTx{state: staged}); err != nil {
		return err
	}
	*s = *staged
	return nil
}

func (s *memStore) GetByNo(_ context.Context, no string) (*Order, error) {
	for _, o := range s.orders {
		if o.No == no {
			cp := *o
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memStore) FindByCode(_ context.Context, code string) (*coupon.Code, error) {
	for _, c := range s.coupons {
		if c.Code == code {
			cp := *c
			return &cp, nil
		}
	}
	return nil, coupon.ErrInvalid
}

func (s *memStore) ListCodes(_ context.Context) ([]string, error) {
	codes := make([]string, 0, len(s.coupons))
	for _, c := range s.coupons {
		codes = append(codes, c.Code)
	}
	return codes, nil
}

type memTx struct {
	state *memStore
}

var _ Tx = (*memTx)(nil)

func (t *memTx) Order(_ context.Context, id string) (*Order, error) {
	o, ok := t.state.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (t *memTx) CreateOrder(_ context.Context, o *Order) error {
	cp := *o
	t.state.orders[o.ID] = &cp
	return nil
}

func (t *memTx) AddItem(_ context.Context, item *Item) error {
	t.state.items[item.OrderID] = append(t.state.items[item.OrderID], *item)
	return nil
}

func (t *memTx) Items(_ context.Context, orderID string) ([]Item, error) {
	return append([]Item(nil), t.state.items[orderID]...), nil
}

func (t *memTx) SetTotal(_ context.Context, orderID string, total decimal.Decimal) error {
	t.state.orders[orderID].TotalAmount = total
	return nil
}

func (t *memTx) CloseOrder(_ context.Context, orderID string) error {
	o := t.state.orders[orderID]
	if o.PaidAt == nil && !o.Closed {
		o.Closed = true
	}
	return nil
}

func (t *memTx) SKU(_ context.Context, skuID string) (*product.SKU, error) {
	sku, ok := t.state.skus[skuID]
	if !ok {
		return nil, &product.SKUNotFoundError{SKUID: skuID}
	}
	cp := *sku
	return &cp, nil
}

func (t *memTx) DecreaseStock(_ context.Context, skuID string, n int) (bool, error) {
	sku := t.state.skus[skuID]
	if sku.Stock < n {
		return false, nil
	}
	sku.Stock -= n
	return true, nil
}

func (t *memTx) IncreaseStock(_ context.Context, skuID string, n int) error {
	t.state.skus[skuID].Stock += n
	return nil
}

func (t *memTx) CouponByCode(_ context.Context, code string) (*coupon.Code, error) {
	for _, c := range t.state.coupons {
		if c.Code == code {
			cp := *c
			return &cp, nil
		}
	}
	return nil, coupon.ErrInvalid
}

func (t *memTx) RedeemCoupon(_ context.Context, couponID string) (bool, error) {
	if t.state.forceRedeemConflict {
		return false, nil
	}
	c := t.state.coupons[couponID]
	if c.Used >= c.Total {
		return false, nil
	}
	c.Used++
	return true, nil
}

func (t *memTx) ReleaseCoupon(_ context.Context, couponID string) error {
	t.state.coupons[couponID].Used--
	return nil
}

func (t *memTx) AttachCoupon(_ context.Context, orderID, couponID string) error {
	t.state.orders[orderID].CouponCodeID = couponID
	return nil
}

func (t *memTx) Address(_ context.Context, addressID string) (*user.Address, error) {
	a, ok := t.state.addrs[addressID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (t *memTx) TouchAddress(_ context.Context, addressID string, usedAt time.Time) error {
	t.state.addrs[addressID].LastUsedAt = &usedAt
	return nil
}

type stubCart struct {
	userID    string
	skuIDs    []string
	removes   int
	failFirst int
	err       error
}

func (c *stubCart) RemoveItems(_ context.Context, userID string, skuIDs []string) error {
	c.userID = userID
	c.skuIDs = skuIDs
	c.removes++
	if c.failFirst > 0 {
		c.failFirst--
		return context.DeadlineExceeded
	}
	return c.err
}

type stubCanceller struct {
	orderID string
	delay   time.Duration
	calls   int
}

func (c *stubCanceller) ScheduleCancel(_ context.Context, orderID string, delay time.Duration) error {
	c.orderID = orderID
	c.delay = delay
	c.calls++
	return nil
}

func seedStore() *memStore {
	store := newMemStore()
	store.skus["sku-tee"] = &product.SKU{
		ID: "sku-tee", ProductID: "prod-tee", Title: "Tee / M",
		Price: dec("49.90"), Stock: 10,
		Product: product.Product{ID: "prod-tee", Type: product.TypeNormal, OnSale: true},
	}
	store.skus["sku-mug"] = &product.SKU{
		ID: "sku-mug", ProductID: "prod-mug", Title: "Mug",
		Price: dec("12.50"), Stock: 3,
		Product: product.Product{ID: "prod-mug", Type: product.TypeNormal, OnSale: true},
	}
	store.skus["sku-retired"] = &product.SKU{
		ID: "sku-retired", ProductID: "prod-retired", Title: "Retired",
		Price: dec("5.00"), Stock: 100,
		Product: product.Product{ID: "prod-retired", Type: product.TypeNormal, OnSale: false},
	}
	store.addrs["addr-1"] = &user.Address{
		ID: "addr-1", UserID: "user-1",
		Address: "1 Main St", Zip: "10001",
		ContactName: "Ada", ContactPhone: "555-0100",
	}
	store.coupons["cpn-10"] = &coupon.Code{
		ID: "cpn-10", Code: "SAVE10", Type: coupon.TypeFixed,
		Value: dec("10"), Total: 5, Enabled: true,
	}
	return store
}

func newTestService(store *memStore, cart Cart, canceller Canceller, cancelTTL time.Duration) *Service {
	filter, _ := coupon.WarmFilter(context.Background(), store)
	svc := NewService(store, store, filter, cart, canceller, cancelTTL)
	svc.now = func() time.Time { return testNow }
	return svc
}

func TestPlaceOrder(t *testing.T) {
	store := seedStore()
	cart := &stubCart{}
	canceller := &stubCanceller{}
	svc := newTestService(store, cart, canceller, 30*time.Minute)

	o, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		UserID:    "user-1",
		AddressID: "addr-1",
		Remark:    "ring the bell",
		Items: []LineItem{
			{SKUID: "sku-tee", Quantity: 2},
			{SKUID: "sku-mug", Quantity: 1},
		},
	})
	require.NoError(t, err)

	// 2 × 49.90 + 1 × 12.50
	assert.True(t, dec("112.30").Equal(o.TotalAmount), "total %s", o.TotalAmount)
	assert.Equal(t, TypeNormal, o.Type)
	assert.Equal(t, RefundPending, o.RefundStatus)
	assert.Equal(t, "20250615", o.No[:8])
	assert.Equal(t, Address{
		Address: "1 Main St", Zip: "10001",
		ContactName: "Ada", ContactPhone: "555-0100",
	}, o.Address)

	persisted, err := store.GetByNo(context.Background(), o.No)
	require.NoError(t, err)
	assert.True(t, o.TotalAmount.Equal(persisted.TotalAmount))
	assert.Len(t, store.items[o.ID], 2)
	assert.Equal(t, 8, store.skus["sku-tee"].Stock)
	assert.Equal(t, 2, store.skus["sku-mug"].Stock)

	require.NotNil(t, store.addrs["addr-1"].LastUsedAt)
	assert.Equal(t, testNow, *store.addrs["addr-1"].LastUsedAt)

	assert.Equal(t, "user-1", cart.userID)
	assert.ElementsMatch(t, []string{"sku-tee", "sku-mug"}, cart.skuIDs)
	assert.Equal(t, o.ID, canceller.orderID)
	assert.Equal(t, 30*time.Minute, canceller.delay)
}

func TestPlaceOrder_EmptyItems(t *testing.T) {
	svc := newTestService(seedStore(), &stubCart{}, &stubCanceller{}, time.Minute)

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		UserID:    "user-1",
		AddressID: "addr-1",
	})
	assert.ErrorIs(t, err, ErrEmptyItems)
}

func TestPlaceOrder_InvalidQuantity(t *testing.T) {
	svc := newTestService(seedStore(), &stubCart{}, &stubCanceller{}, time.Minute)

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		UserID:    "user-1",
		AddressID: "addr-1",
		Items:     []LineItem{{SKUID: "sku-tee", Quantity: 0}},
	})

	var invalidErr *InvalidQuantityError
	require.ErrorAs(t, err, &invalidErr)
	assert.Equal(t, "sku-tee", invalidErr.SKUID)
}

func TestPlaceOrder_SKUNotFound(t *testing.T) {
	svc := newTestService(seedStore(), &stubCart{}, &stubCanceller{}, time.Minute)

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		UserID:    "user-1",
		AddressID: "addr-1",
		Items:     []LineItem{{SKUID: "sku-ghost", Quantity: 1}},
	})

	var notFound *product.SKUNotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestPlaceOrder_ProductNotOnSale(t *testing.T) {
	svc := newTestService(seedStore(), &stubCart{}, &stubCanceller{}, time.Minute)

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		UserID:    "user-1",
		AddressID: "addr-1",
		Items:     []LineItem{{SKUID: "sku-retired", Quantity: 1}},
	})
	assert.ErrorIs(t, err, ErrProductNotOnSale)
}

func TestPlaceOrder_AddressNotOwned(t *testing.T) {
	store := seedStore()
	store.addrs["addr-other"] = &user.Address{ID: "addr-other", UserID: "user-2"}
	svc := newTestService(store, &stubCart{}, &stubCanceller{}, time.Minute)

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		UserID:    "user-1",
		AddressID: "addr-other",
		Items:     []LineItem{{SKUID: "sku-tee", Quantity: 1}},
	})
	assert.ErrorIs(t, err, ErrAddressNotOwned)
}

func TestPlaceOrder_InsufficientStockRollsBack(t *testing.T) {
	store := seedStore()
	cart := &stubCart{}
	canceller := &stubCanceller{}
	svc := newTestService(store, cart, canceller, time.Minute)

	// First line succeeds, second exceeds stock: the whole order must
	// roll back, including the first line's decrement.
	_, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		UserID:    "user-1",
		AddressID: "addr-1",
		Items: []LineItem{
			{SKUID: "sku-tee", Quantity: 1},
			{SKUID: "sku-mug", Quantity: 4},
		},
	})
	assert.ErrorIs(t, err, ErrInsufficientStock)

	assert.Equal(t, 10, store.skus["sku-tee"].Stock)
	assert.Equal(t, 3, store.skus["sku-mug"].Stock)
	assert.Empty(t, store.orders)
	assert.Zero(t, cart.removes)
	assert.Zero(t, canceller.calls)
}

func TestPlaceOrder_WithCoupon(t *testing.T) {
	store := seedStore()
	svc := newTestService(store, &stubCart{}, &stubCanceller{}, time.Minute)

	o, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		UserID:     "user-1",
		AddressID:  "addr-1",
		Items:      []LineItem{{SKUID: "sku-tee", Quantity: 2}},
		CouponCode: "SAVE10",
	})
	require.NoError(t, err)

	// 2 × 49.90 - 10
	assert.True(t, dec("89.80").Equal(o.TotalAmount), "total %s", o.TotalAmount)
	assert.Equal(t, "cpn-10", o.CouponCodeID)
	assert.Equal(t, 1, store.coupons["cpn-10"].Used)
	assert.Equal(t, "cpn-10", store.orders[o.ID].CouponCodeID)
}

func TestPlaceOrder_CouponBelowMinimumRollsBack(t *testing.T) {
	store := seedStore()
	store.coupons["cpn-big"] = &coupon.Code{
		ID: "cpn-big", Code: "BIGSPEND", Type: coupon.TypeFixed,
		Value: dec("50"), Total: 5, MinAmount: dec("500"), Enabled: true,
	}
	svc := newTestService(store, &stubCart{}, &stubCanceller{}, time.Minute)

	// The minimum-amount constraint is only checkable once the total is
	// known, inside the transaction. Its failure must undo the stock
	// decrement already performed.
	_, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		UserID:     "user-1",
		AddressID:  "addr-1",
		Items:      []LineItem{{SKUID: "sku-tee", Quantity: 1}},
		CouponCode: "BIGSPEND",
	})
	assert.ErrorIs(t, err, coupon.ErrMinAmount)

	assert.Equal(t, 10, store.skus["sku-tee"].Stock)
	assert.Empty(t, store.orders)
	assert.Equal(t, 0, store.coupons["cpn-big"].Used)
}

func TestPlaceOrder_CouponExhaustedBeforeCheckout(t *testing.T) {
	store := seedStore()
	store.coupons["cpn-10"].Used = 5
	svc := newTestService(store, &stubCart{}, &stubCanceller{}, time.Minute)

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		UserID:     "user-1",
		AddressID:  "addr-1",
		Items:      []LineItem{{SKUID: "sku-tee", Quantity: 1}},
		CouponCode: "SAVE10",
	})
	assert.ErrorIs(t, err, coupon.ErrExhausted)

	// Fail-fast path: inventory was never touched.
	assert.Equal(t, 10, store.skus["sku-tee"].Stock)
	assert.Empty(t, store.orders)
}

func TestPlaceOrder_CouponRedeemRace(t *testing.T) {
	store := seedStore()
	store.forceRedeemConflict = true
	svc := newTestService(store, &stubCart{}, &stubCanceller{}, time.Minute)

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		UserID:     "user-1",
		AddressID:  "addr-1",
		Items:      []LineItem{{SKUID: "sku-tee", Quantity: 1}},
		CouponCode: "SAVE10",
	})
	assert.ErrorIs(t, err, coupon.ErrExhausted)

	assert.Equal(t, 10, store.skus["sku-tee"].Stock)
	assert.Empty(t, store.orders)
}

func TestPlaceOrder_UnknownCodeRejectedByFilter(t *testing.T) {
	svc := newTestService(seedStore(), &stubCart{}, &stubCanceller{}, time.Minute)

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		UserID:     "user-1",
		AddressID:  "addr-1",
		Items:      []LineItem{{SKUID: "sku-tee", Quantity: 1}},
		CouponCode: "NO-SUCH-CODE",
	})
	assert.ErrorIs(t, err, coupon.ErrInvalid)
}

func TestPlaceOrder_CartClearRetriesTransientFailure(t *testing.T) {
	store := seedStore()
	cart := &stubCart{failFirst: 2}
	svc := newTestService(store, cart, &stubCanceller{}, time.Minute)

	o, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		UserID:    "user-1",
		AddressID: "addr-1",
		Items:     []LineItem{{SKUID: "sku-tee", Quantity: 1}},
	})
	require.NoError(t, err)

	// Two failed attempts, then the third succeeds.
	assert.Equal(t, 3, cart.removes)
	assert.ElementsMatch(t, []string{"sku-tee"}, cart.skuIDs)
	assert.NotNil(t, store.orders[o.ID])
}

func TestPlaceOrder_CartFailureDoesNotFailOrder(t *testing.T) {
	store := seedStore()
	cart := &stubCart{err: context.DeadlineExceeded}
	svc := newTestService(store, cart, &stubCanceller{}, time.Minute)

	o, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		UserID:    "user-1",
		AddressID: "addr-1",
		Items:     []LineItem{{SKUID: "sku-tee", Quantity: 1}},
	})
	require.NoError(t, err)

	// Every attempt failed; the order still stands.
	assert.Equal(t, cartClearAttempts, cart.removes)
	assert.NotNil(t, store.orders[o.ID])
}

func seedCrowdfunding(store *memStore, status product.CrowdfundingStatus, endAt time.Time) {
	store.skus["sku-cf"] = &product.SKU{
		ID: "sku-cf", ProductID: "prod-cf", Title: "Backer Kit",
		Price: dec("200.00"), Stock: 50,
		Product: product.Product{ID: "prod-cf", Type: product.TypeCrowdfunding, OnSale: true},
		Crowdfunding: &product.Crowdfunding{
			ID: "cf-1", ProductID: "prod-cf",
			TargetAmount: dec("10000"), Status: status, EndAt: endAt,
		},
	}
}

func TestPlaceCrowdfundingOrder(t *testing.T) {
	store := seedStore()
	seedCrowdfunding(store, product.StatusFunding, testNow.Add(48*time.Hour))
	canceller := &stubCanceller{}
	svc := newTestService(store, &stubCart{}, canceller, 30*time.Minute)

	o, err := svc.PlaceCrowdfundingOrder(context.Background(), PlaceCrowdfundingRequest{
		UserID:    "user-1",
		AddressID: "addr-1",
		SKUID:     "sku-cf",
		Quantity:  2,
	})
	require.NoError(t, err)

	assert.Equal(t, TypeCrowdfunding, o.Type)
	assert.True(t, dec("400.00").Equal(o.TotalAmount), "total %s", o.TotalAmount)
	assert.Equal(t, 48, store.skus["sku-cf"].Stock)
	// Campaign end is far enough out that the default TTL applies.
	assert.Equal(t, 30*time.Minute, canceller.delay)
}

func TestPlaceCrowdfundingOrder_TTLCappedByCampaignEnd(t *testing.T) {
	store := seedStore()
	seedCrowdfunding(store, product.StatusFunding, testNow.Add(10*time.Minute))
	canceller := &stubCanceller{}
	svc := newTestService(store, &stubCart{}, canceller, 30*time.Minute)

	_, err := svc.PlaceCrowdfundingOrder(context.Background(), PlaceCrowdfundingRequest{
		UserID:    "user-1",
		AddressID: "addr-1",
		SKUID:     "sku-cf",
		Quantity:  1,
	})
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, canceller.delay)
}

func TestPlaceCrowdfundingOrder_CampaignNotFunding(t *testing.T) {
	store := seedStore()
	seedCrowdfunding(store, product.StatusSuccess, testNow.Add(48*time.Hour))
	svc := newTestService(store, &stubCart{}, &stubCanceller{}, time.Minute)

	_, err := svc.PlaceCrowdfundingOrder(context.Background(), PlaceCrowdfundingRequest{
		UserID:    "user-1",
		AddressID: "addr-1",
		SKUID:     "sku-cf",
		Quantity:  1,
	})
	assert.ErrorIs(t, err, ErrCampaignClosed)
	assert.Empty(t, store.orders)
}

func TestPlaceCrowdfundingOrder_NormalProductRejected(t *testing.T) {
	svc := newTestService(seedStore(), &stubCart{}, &stubCanceller{}, time.Minute)

	_, err := svc.PlaceCrowdfundingOrder(context.Background(), PlaceCrowdfundingRequest{
		UserID:    "user-1",
		AddressID: "addr-1",
		SKUID:     "sku-tee",
		Quantity:  1,
	})
	assert.ErrorIs(t, err, ErrCampaignClosed)
}

func TestCrowdfundingCancelTTL(t *testing.T) {
	tests := []struct {
		name  string
		endAt time.Time
		want  time.Duration
	}{
		{"campaign end beyond default", testNow.Add(2 * time.Hour), 30 * time.Minute},
		{"campaign end within default", testNow.Add(5 * time.Minute), 5 * time.Minute},
		{"campaign already past due", testNow.Add(-time.Minute), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := crowdfundingCancelTTL(30*time.Minute, tt.endAt, testNow)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCancelUnpaid(t *testing.T) {
	store := seedStore()
	svc := newTestService(store, &stubCart{}, &stubCanceller{}, time.Minute)

	o, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		UserID:     "user-1",
		AddressID:  "addr-1",
		Items:      []LineItem{{SKUID: "sku-tee", Quantity: 3}},
		CouponCode: "SAVE10",
	})
	require.NoError(t, err)
	require.Equal(t, 7, store.skus["sku-tee"].Stock)
	require.Equal(t, 1, store.coupons["cpn-10"].Used)

	require.NoError(t, svc.CancelUnpaid(context.Background(), o.ID))

	assert.True(t, store.orders[o.ID].Closed)
	assert.Equal(t, 10, store.skus["sku-tee"].Stock)
	assert.Equal(t, 0, store.coupons["cpn-10"].Used)
}

func TestCancelUnpaid_Idempotent(t *testing.T) {
	store := seedStore()
	svc := newTestService(store, &stubCart{}, &stubCanceller{}, time.Minute)

	o, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		UserID:    "user-1",
		AddressID: "addr-1",
		Items:     []LineItem{{SKUID: "sku-mug", Quantity: 2}},
	})
	require.NoError(t, err)

	// The queue is at-least-once; a redelivered job must not return
	// stock twice.
	require.NoError(t, svc.CancelUnpaid(context.Background(), o.ID))
	require.NoError(t, svc.CancelUnpaid(context.Background(), o.ID))

	assert.Equal(t, 3, store.skus["sku-mug"].Stock)
}

func TestCancelUnpaid_SkipsPaidOrder(t *testing.T) {
	store := seedStore()
	svc := newTestService(store, &stubCart{}, &stubCanceller{}, time.Minute)

	o, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		UserID:    "user-1",
		AddressID: "addr-1",
		Items:     []LineItem{{SKUID: "sku-tee", Quantity: 1}},
	})
	require.NoError(t, err)

	paidAt := testNow.Add(time.Minute)
	store.orders[o.ID].PaidAt = &paidAt

	require.NoError(t, svc.CancelUnpaid(context.Background(), o.ID))

	assert.False(t, store.orders[o.ID].Closed)
	assert.Equal(t, 9, store.skus["sku-tee"].Stock)
}

func TestNewNo(t *testing.T) {
	no := NewNo(testNow)
	assert.Len(t, no, 20)
	assert.Equal(t, "20250615", no[:8])
	assert.NotEqual(t, no, NewNo(testNow))
}
