package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Type enumerates the supported discount strategies.
type Type string

const (
	// TypeFixed subtracts a fixed monetary value from the order total.
	TypeFixed Type = "fixed"
	// TypePercent applies a percentage discount to the order total.
	TypePercent Type = "percent"
)

var (
	// ErrInvalid is returned when a coupon code does not exist or is disabled.
	ErrInvalid = errors.New("coupon code does not exist")
	// ErrNotStarted is returned when a coupon's validity window has not opened yet.
	ErrNotStarted = errors.New("coupon is not active yet")
	// ErrExpired is returned when a coupon's validity window has closed.
	ErrExpired = errors.New("coupon has expired")
	// ErrExhausted is returned when a coupon has no uses left.
	ErrExhausted = errors.New("coupon has been fully redeemed")
	// ErrMinAmount is returned when the order total is below the coupon's minimum.
	ErrMinAmount = errors.New("order amount does not meet the coupon minimum")
)

// minAdjusted is the floor for a fixed-discount total. A coupon may not
// push an order total to zero or below.
var minAdjusted = decimal.RequireFromString("0.01")

// Code is a discount code with usage constraints and an adjustment rule.
type Code struct {
	ID        string
	Name      string
	Code      string
	Type      Type
	Value     decimal.Decimal
	Total     int
	Used      int
	MinAmount decimal.Decimal
	NotBefore *time.Time
	NotAfter  *time.Time
	Enabled   bool
}

// CheckAvailable reports whether the coupon can be used at the given
// time. Pass a nil amount for the preliminary, amount-independent check
// performed before the order total is known; pass the running total to
// also enforce the minimum-amount constraint.
func (c *Code) CheckAvailable(now time.Time, amount *decimal.Decimal) error {
	if !c.Enabled {
		return ErrInvalid
	}
	if c.Total-c.Used <= 0 {
		return ErrExhausted
	}
	if c.NotBefore != nil && now.Before(*c.NotBefore) {
		return ErrNotStarted
	}
	if c.NotAfter != nil && now.After(*c.NotAfter) {
		return ErrExpired
	}
	if amount != nil && amount.LessThan(c.MinAmount) {
		return ErrMinAmount
	}
	return nil
}

// AdjustedPrice returns the order total after applying the coupon.
// Fixed discounts are floored at 0.01 so a paid order always has a
// positive amount; percent discounts are rounded to 2 decimal places.
func (c *Code) AdjustedPrice(amount decimal.Decimal) (decimal.Decimal, error) {
	switch c.Type {
	case TypeFixed:
		return decimal.Max(minAdjusted, amount.Sub(c.Value)), nil
	case TypePercent:
		pct := decimal.NewFromInt(100).Sub(c.Value)
		return amount.Mul(pct).Div(decimal.NewFromInt(100)).Round(2), nil
	default:
		return decimal.Zero, errors.Errorf("unsupported coupon type: %q", c.Type)
	}
}

// Repository provides coupon lookups outside the checkout transaction.
type Repository interface {
	// FindByCode returns the coupon for the given code (case-insensitive).
	// Returns ErrInvalid when no such coupon exists.
	FindByCode(ctx context.Context, code string) (*Code, error)
	// ListCodes returns every known coupon code, used to warm the
	// in-memory pre-filter at startup.
	ListCodes(ctx context.Context) ([]string, error)
}
