// Package offer implements the discount engine: pure price math for
// store-wide and product-scoped offers. No I/O happens here; callers pass
// immutable snapshots and an explicit clock.
package offer

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Type enumerates the supported discount strategies.
type Type string

const (
	// TypePercentage discounts a percentage of the base amount.
	TypePercentage Type = "PERCENTAGE"
	// TypeFixed discounts a fixed monetary amount, capped at the base.
	TypeFixed Type = "FIXED"
)

// Scope determines what an offer applies to.
type Scope string

const (
	// ScopeGlobal applies store-wide to the whole order subtotal.
	ScopeGlobal Scope = "GLOBAL"
	// ScopeProduct applies only to products the offer is attached to.
	ScopeProduct Scope = "PRODUCT"
)

// Offer is a time-bounded discount rule.
type Offer struct {
	ID        string
	Name      string
	Type      Type
	Value     decimal.Decimal
	Scope     Scope
	Active    bool
	StartDate time.Time
	EndDate   time.Time
	CreatedAt time.Time
}

var hundred = decimal.NewFromInt(100)

// IsActive reports whether the offer applies at the given instant.
// The validity window is half-open: [StartDate, EndDate). A nil offer is
// never active.
func (o *Offer) IsActive(now time.Time) bool {
	if o == nil || !o.Active {
		return false
	}
	return !now.Before(o.StartDate) && now.Before(o.EndDate)
}

// Discount returns the raw discount amount the offer yields against base.
// The result is not rounded and not clamped; use Apply for a clamped price.
func (o *Offer) Discount(base decimal.Decimal) decimal.Decimal {
	if o.Type == TypePercentage {
		return base.Mul(o.Value).Div(hundred)
	}
	return o.Value
}

// Apply returns the price after the offer's discount, floored at zero.
// The result is intentionally unrounded: running totals keep full precision
// and are rounded only at aggregate boundaries.
func Apply(price decimal.Decimal, o *Offer) decimal.Decimal {
	if o == nil {
		return price
	}
	discounted := price.Sub(o.Discount(price))
	if discounted.IsNegative() {
		return decimal.Zero
	}
	return discounted
}

// Repository provides offer lookup for pricing.
type Repository interface {
	// ActiveGlobal returns the single authoritative store-wide offer: the
	// most recently created GLOBAL offer active at now, or nil when none is.
	ActiveGlobal(ctx context.Context, now time.Time) (*Offer, error)
}

// PriceQuote describes a product's effective price after its attached offer.
type PriceQuote struct {
	OriginalPrice decimal.Decimal
	FinalPrice    decimal.Decimal
	HasOffer      bool
	Discount      decimal.Decimal
	OfferName     string
}

// Quote computes the display price for a base price and its attached offer.
// The discount is rounded to 2 decimal places (half away from zero); an
// inactive or absent offer yields a zero discount and the original price.
func Quote(price decimal.Decimal, o *Offer, now time.Time) PriceQuote {
	q := PriceQuote{
		OriginalPrice: price,
		FinalPrice:    price,
		Discount:      decimal.Zero,
	}
	if !o.IsActive(now) {
		return q
	}

	q.HasOffer = true
	q.OfferName = o.Name
	q.FinalPrice = Apply(price, o)
	q.Discount = o.Discount(price).Round(2)
	return q
}
