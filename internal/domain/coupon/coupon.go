// Package coupon defines code-redeemable discounts with usage-count
// enforcement. Codes are case-insensitive: they are canonicalized to upper
// case for storage and lookup.
package coupon

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"souq/internal/domain/offer"
)

var (
	// ErrNotFound is returned when no coupon exists for a code.
	ErrNotFound = errors.New("invalid coupon code")
	// ErrExpired is returned when a coupon is inactive or past its expiry.
	ErrExpired = errors.New("coupon expired")
	// ErrLimitReached is returned when a coupon has exhausted its usage limit.
	ErrLimitReached = errors.New("coupon usage limit reached")
)

// MinPurchaseError indicates the discountable amount is below the coupon's
// minimum purchase threshold.
type MinPurchaseError struct {
	MinPurchase decimal.Decimal
}

func (e *MinPurchaseError) Error() string {
	return fmt.Sprintf("minimum purchase of %s required", e.MinPurchase)
}

// Coupon is a redeemable discount rule.
//
// Invariant: UsedCount <= *Limit whenever Limit is non-nil. UsedCount is
// mutated only inside the same transaction as order creation/cancellation.
type Coupon struct {
	ID          string
	Code        string
	Type        offer.Type
	Value       decimal.Decimal
	MinPurchase *decimal.Decimal
	Limit       *int
	UsedCount   int
	ExpireAt    time.Time
	Active      bool
}

// Canonicalize upper-cases and trims a user-supplied coupon code.
func Canonicalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate checks redeemability at the given instant, before any discount
// math. Limit enforcement here is advisory: the store-level conditional
// increment is the authoritative guard under concurrency.
func (c *Coupon) Validate(now time.Time) error {
	if !c.Active || !c.ExpireAt.After(now) {
		return ErrExpired
	}
	if c.Limit != nil && c.UsedCount >= *c.Limit {
		return ErrLimitReached
	}
	return nil
}

// DiscountOn computes the coupon's discount against a taxable amount,
// clamped so it never exceeds the amount it applies to. The result is
// unrounded; rounding happens at the order's aggregate boundary.
func (c *Coupon) DiscountOn(taxable decimal.Decimal) (decimal.Decimal, error) {
	if c.MinPurchase != nil && taxable.LessThan(*c.MinPurchase) {
		return decimal.Zero, &MinPurchaseError{MinPurchase: *c.MinPurchase}
	}

	var d decimal.Decimal
	if c.Type == offer.TypePercentage {
		d = taxable.Mul(c.Value).Div(decimal.NewFromInt(100))
	} else {
		d = c.Value
	}
	return decimal.Min(d, taxable), nil
}

// Repository provides coupon lookup. Usage-count mutation is deliberately
// absent: it happens inside the order repository's transactions so the
// increment/decrement is atomic with order creation and cancellation.
type Repository interface {
	// FindByCode looks up a coupon by canonical (upper-cased) code.
	// Returns ErrNotFound when no such coupon exists.
	FindByCode(ctx context.Context, code string) (*Coupon, error)
}
