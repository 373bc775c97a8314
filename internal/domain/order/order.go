package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lumishop/lumishop/internal/domain/coupon"
	"github.com/lumishop/lumishop/internal/domain/product"
	"github.com/lumishop/lumishop/internal/domain/user"
)

// Type enumerates the supported order kinds.
type Type string

const (
	TypeNormal       Type = "normal"
	TypeCrowdfunding Type = "crowdfunding"
)

// PaymentMethod identifies the gateway that processed an order's payment.
type PaymentMethod string

const (
	PaymentAlipay PaymentMethod = "alipay"
	PaymentWechat PaymentMethod = "wechat"
)

// RefundStatus tracks the refund lifecycle of an order.
type RefundStatus string

const (
	// RefundPending means no refund has been requested.
	RefundPending RefundStatus = "pending"
	// RefundProcessing means a refund was initiated and awaits the
	// gateway's asynchronous result.
	RefundProcessing RefundStatus = "processing"
	RefundSuccess    RefundStatus = "success"
	RefundFailed     RefundStatus = "failed"
)

// Sentinel errors for order placement.
var (
	ErrEmptyItems        = errors.New("items required")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrProductNotOnSale  = errors.New("product is not on sale")
	ErrCampaignClosed    = errors.New("crowdfunding campaign is not accepting orders")
	ErrAddressNotOwned   = errors.New("address does not belong to user")
	ErrNotFound          = errors.New("order not found")
)

// InvalidQuantityError indicates a line item with a non-positive quantity.
type InvalidQuantityError struct {
	SKUID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for sku %s", e.SKUID)
}

// Address is the shipping-address snapshot stored on the order. The
// fields are copied from the user's address at placement time, so later
// edits to the address book never change historical orders.
type Address struct {
	Address      string `json:"address"`
	Zip          string `json:"zip"`
	ContactName  string `json:"contact_name"`
	ContactPhone string `json:"contact_phone"`
}

// Order is a placed customer order. Orders are never deleted, only
// state-transitioned: payment sets PaidAt, the cancellation job sets
// Closed, refunds move RefundStatus.
type Order struct {
	ID            string
	No            string
	UserID        string
	Address       Address
	Remark        string
	TotalAmount   decimal.Decimal
	Type          Type
	PaidAt        *time.Time
	PaymentMethod PaymentMethod
	PaymentNo     string
	RefundNo      string
	RefundStatus  RefundStatus
	Closed        bool
	CouponCodeID  string
	Extra         map[string]string
	CreatedAt     time.Time
}

// Item is a single order line. Price is the SKU's unit price at the
// time of purchase, not a live reference.
type Item struct {
	ID        string
	OrderID   string
	ProductID string
	SKUID     string
	Amount    int
	Price     decimal.Decimal
}

// NewNo generates a human-readable order number: date prefix plus a
// random suffix. The orders.no UNIQUE index catches the unlikely collision.
func NewNo(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
	return now.Format("20060102") + strings.ToUpper(suffix)
}

// NewRefundNo generates a globally-unique refund reference number.
func NewRefundNo() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// Tx is the set of storage operations available inside a checkout or
// cancellation transaction. Every mutation either commits with the rest
// of the transaction or rolls back with it.
type Tx interface {
	Order(ctx context.Context, id string) (*Order, error)
	CreateOrder(ctx context.Context, o *Order) error
	AddItem(ctx context.Context, item *Item) error
	Items(ctx context.Context, orderID string) ([]Item, error)
	SetTotal(ctx context.Context, orderID string, total decimal.Decimal) error
	CloseOrder(ctx context.Context, orderID string) error

	SKU(ctx context.Context, skuID string) (*product.SKU, error)
	// DecreaseStock atomically decrements stock if at least n units
	// remain, reporting whether the decrement happened.
	DecreaseStock(ctx context.Context, skuID string, n int) (bool, error)
	IncreaseStock(ctx context.Context, skuID string, n int) error

	CouponByCode(ctx context.Context, code string) (*coupon.Code, error)
	// RedeemCoupon atomically increments the usage counter if uses
	// remain, reporting whether the increment happened.
	RedeemCoupon(ctx context.Context, couponID string) (bool, error)
	ReleaseCoupon(ctx context.Context, couponID string) error
	AttachCoupon(ctx context.Context, orderID, couponID string) error

	Address(ctx context.Context, addressID string) (*user.Address, error)
	TouchAddress(ctx context.Context, addressID string, usedAt time.Time) error
}

// Store provides transactional access to the order tables.
type Store interface {
	// Transact runs fn inside a single database transaction. Any error
	// returned by fn rolls the whole transaction back.
	Transact(ctx context.Context, fn func(tx Tx) error) error
	GetByNo(ctx context.Context, no string) (*Order, error)
}

// Cart removes purchased SKUs from a buyer's cart after checkout.
type Cart interface {
	RemoveItems(ctx context.Context, userID string, skuIDs []string) error
}

// Canceller schedules the delayed auto-cancel job for unpaid orders.
type Canceller interface {
	ScheduleCancel(ctx context.Context, orderID string, delay time.Duration) error
}
