package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"souq/internal/domain/coupon"
	"souq/internal/domain/offer"
	"souq/internal/domain/product"
)

// ItemRequest is a single requested order line before pricing.
type ItemRequest struct {
	ProductID string
	Quantity  int
	Modifiers []ModifierRef
}

// ModifierRef names a modifier option the customer selected.
type ModifierRef struct {
	ModifierID string
	OptionID   string
}

// Pricing is the result of resolving an item list, the active global offer,
// and an optional coupon into a final payable amount.
type Pricing struct {
	Items          []Item
	Subtotal       decimal.Decimal // sum of line totals, pre-discount
	GlobalDiscount decimal.Decimal
	CouponDiscount decimal.Decimal
	DiscountAmount decimal.Decimal // global + coupon, rounded to 2 places
	Total          decimal.Decimal // final payable, rounded to 2 places
	Coupon         *coupon.Coupon
	GlobalOffer    *offer.Offer
}

// Pricer resolves order pricing against catalog, coupon, and offer snapshots.
// It performs reads only; nothing is persisted here and every failure aborts
// the whole attempt.
type Pricer struct {
	products product.Repository
	coupons  coupon.Repository
	offers   offer.Repository

	now func() time.Time
}

// NewPricer creates a Pricer with the required read dependencies.
func NewPricer(products product.Repository, coupons coupon.Repository, offers offer.Repository) *Pricer {
	return &Pricer{
		products: products,
		coupons:  coupons,
		offers:   offers,
		now:      time.Now,
	}
}

// Resolve computes pricing for the requested items and optional coupon code.
//
// Discounts apply in a fixed order: product offer (per item, before
// aggregation), then the global offer against the subtotal, then the coupon
// against what remains. Each later discount is computed on the
// post-previous-discount base, so reordering would change results.
// Running amounts keep full precision; only the final aggregates are rounded.
func (p *Pricer) Resolve(ctx context.Context, items []ItemRequest, couponCode string) (*Pricing, error) {
	if len(items) == 0 {
		return nil, ErrEmptyItems
	}
	now := p.now()

	pricing := &Pricing{
		Items:    make([]Item, 0, len(items)),
		Subtotal: decimal.Zero,
	}

	for _, req := range items {
		if req.Quantity <= 0 {
			return nil, &InvalidQuantityError{ProductID: req.ProductID}
		}

		prod, err := p.products.GetByID(ctx, req.ProductID)
		if err != nil {
			if errors.Is(err, product.ErrNotFound) {
				return nil, &ProductUnavailableError{ProductID: req.ProductID}
			}
			return nil, errors.Wrap(err, "get product")
		}
		if !prod.Active {
			return nil, &ProductUnavailableError{ProductID: req.ProductID}
		}

		unitPrice := prod.Price
		if prod.Offer.IsActive(now) {
			unitPrice = offer.Apply(unitPrice, prod.Offer)
		}

		// Unresolved modifier/option references are skipped rather than
		// rejected; the catalog may have changed since the client loaded it.
		var selections []ModifierSelection
		for _, ref := range req.Modifiers {
			mod, opt := prod.FindOption(ref.ModifierID, ref.OptionID)
			if opt == nil {
				continue
			}
			unitPrice = unitPrice.Add(opt.Price)
			selections = append(selections, ModifierSelection{
				ModifierName: mod.Name,
				OptionName:   opt.Name,
				Price:        opt.Price,
			})
		}

		lineTotal := unitPrice.Mul(decimal.NewFromInt(int64(req.Quantity)))
		pricing.Subtotal = pricing.Subtotal.Add(lineTotal)
		pricing.Items = append(pricing.Items, Item{
			ProductID:         req.ProductID,
			Quantity:          req.Quantity,
			UnitPrice:         unitPrice,
			TotalPrice:        lineTotal,
			SelectedModifiers: selections,
		})
	}

	globalDiscount := decimal.Zero
	global, err := p.offers.ActiveGlobal(ctx, now)
	if err != nil {
		return nil, errors.Wrap(err, "get global offer")
	}
	if global != nil {
		globalDiscount = decimal.Min(global.Discount(pricing.Subtotal), pricing.Subtotal)
		pricing.GlobalOffer = global
	}
	pricing.GlobalDiscount = globalDiscount

	couponDiscount := decimal.Zero
	if couponCode != "" {
		c, err := p.coupons.FindByCode(ctx, coupon.Canonicalize(couponCode))
		if err != nil {
			if errors.Is(err, coupon.ErrNotFound) {
				return nil, coupon.ErrNotFound
			}
			return nil, errors.Wrap(err, "find coupon")
		}
		if err := c.Validate(now); err != nil {
			return nil, err
		}

		taxable := pricing.Subtotal.Sub(globalDiscount)
		couponDiscount, err = c.DiscountOn(taxable)
		if err != nil {
			return nil, err
		}
		pricing.Coupon = c
	}
	pricing.CouponDiscount = couponDiscount

	total := pricing.Subtotal.Sub(globalDiscount).Sub(couponDiscount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	pricing.Total = total.Round(2)
	pricing.DiscountAmount = globalDiscount.Add(couponDiscount).Round(2)

	return pricing, nil
}
