package order

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"souq/internal/domain/coupon"
	"souq/internal/domain/offer"
	"souq/internal/domain/product"
)

// --- Mock implementations ---

type mockProductRepo struct {
	byID   map[string]*product.Product
	getErr error
}

func (m *mockProductRepo) List(_ context.Context) ([]product.Product, error) {
	return nil, nil
}

func (m *mockProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return p, nil
}

type mockCouponRepo struct {
	byCode map[string]*coupon.Coupon
}

func (m *mockCouponRepo) FindByCode(_ context.Context, code string) (*coupon.Coupon, error) {
	c, ok := m.byCode[code]
	if !ok {
		return nil, coupon.ErrNotFound
	}
	return c, nil
}

type mockOfferRepo struct {
	global *offer.Offer
}

func (m *mockOfferRepo) ActiveGlobal(_ context.Context, _ time.Time) (*offer.Offer, error) {
	return m.global, nil
}

// --- Helpers ---

var fixedNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func intPtr(v int) *int { return &v }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func newTestProduct(id string, price string) *product.Product {
	return &product.Product{
		ID:       id,
		Name:     "Product " + id,
		Price:    dec(price),
		Category: "test",
		Active:   true,
	}
}

func activeOffer(typ offer.Type, value string, scope offer.Scope) *offer.Offer {
	return &offer.Offer{
		Name:      "Sale",
		Type:      typ,
		Value:     dec(value),
		Scope:     scope,
		Active:    true,
		StartDate: fixedNow.Add(-time.Hour),
		EndDate:   fixedNow.Add(time.Hour),
	}
}

func validCoupon(code string, typ offer.Type, value string) *coupon.Coupon {
	return &coupon.Coupon{
		ID:       "coupon-" + code,
		Code:     code,
		Type:     typ,
		Value:    dec(value),
		ExpireAt: fixedNow.Add(24 * time.Hour),
		Active:   true,
	}
}

func newPricer(products *mockProductRepo, coupons *mockCouponRepo, offers *mockOfferRepo) *Pricer {
	p := NewPricer(products, coupons, offers)
	p.now = func() time.Time { return fixedNow }
	return p
}

func productRepo(products ...*product.Product) *mockProductRepo {
	byID := make(map[string]*product.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return &mockProductRepo{byID: byID}
}

// --- Tests ---

func TestResolve_EmptyItems(t *testing.T) {
	p := newPricer(productRepo(), &mockCouponRepo{}, &mockOfferRepo{})

	_, err := p.Resolve(context.Background(), nil, "")
	require.ErrorIs(t, err, ErrEmptyItems)
}

func TestResolve_InvalidQuantity(t *testing.T) {
	p := newPricer(productRepo(newTestProduct("p1", "10")), &mockCouponRepo{}, &mockOfferRepo{})

	_, err := p.Resolve(context.Background(), []ItemRequest{{ProductID: "p1", Quantity: 0}}, "")

	var iqErr *InvalidQuantityError
	require.ErrorAs(t, err, &iqErr)
	assert.Equal(t, "p1", iqErr.ProductID)
}

func TestResolve_ProductNotFound(t *testing.T) {
	p := newPricer(productRepo(), &mockCouponRepo{}, &mockOfferRepo{})

	_, err := p.Resolve(context.Background(), []ItemRequest{{ProductID: "missing", Quantity: 1}}, "")

	var puErr *ProductUnavailableError
	require.ErrorAs(t, err, &puErr)
	assert.Equal(t, "missing", puErr.ProductID)
}

func TestResolve_InactiveProduct(t *testing.T) {
	prod := newTestProduct("p1", "10")
	prod.Active = false
	p := newPricer(productRepo(prod), &mockCouponRepo{}, &mockOfferRepo{})

	_, err := p.Resolve(context.Background(), []ItemRequest{{ProductID: "p1", Quantity: 1}}, "")

	var puErr *ProductUnavailableError
	require.ErrorAs(t, err, &puErr)
}

func TestResolve_PlainItems(t *testing.T) {
	p := newPricer(
		productRepo(newTestProduct("p1", "10.00"), newTestProduct("p2", "20.00")),
		&mockCouponRepo{}, &mockOfferRepo{},
	)

	got, err := p.Resolve(context.Background(), []ItemRequest{
		{ProductID: "p1", Quantity: 2},
		{ProductID: "p2", Quantity: 1},
	}, "")

	require.NoError(t, err)
	assert.True(t, dec("40.00").Equal(got.Total), "got %s", got.Total)
	assert.True(t, got.DiscountAmount.IsZero())
	require.Len(t, got.Items, 2)
	assert.True(t, dec("10.00").Equal(got.Items[0].UnitPrice))
	assert.True(t, dec("20.00").Equal(got.Items[0].TotalPrice))
}

func TestResolve_ProductOfferLowersUnitPrice(t *testing.T) {
	// Scenario: price 100 with an active 20% offer prices at 80 per unit.
	prod := newTestProduct("p1", "100")
	prod.Offer = activeOffer(offer.TypePercentage, "20", offer.ScopeProduct)
	p := newPricer(productRepo(prod), &mockCouponRepo{}, &mockOfferRepo{})

	got, err := p.Resolve(context.Background(), []ItemRequest{{ProductID: "p1", Quantity: 2}}, "")

	require.NoError(t, err)
	assert.True(t, dec("80").Equal(got.Items[0].UnitPrice), "got %s", got.Items[0].UnitPrice)
	assert.True(t, dec("160").Equal(got.Total))
	// Product-level offers are not reported as order-level discount.
	assert.True(t, got.DiscountAmount.IsZero())
}

func TestResolve_ExpiredProductOfferIgnored(t *testing.T) {
	prod := newTestProduct("p1", "100")
	prod.Offer = activeOffer(offer.TypePercentage, "20", offer.ScopeProduct)
	prod.Offer.EndDate = fixedNow.Add(-time.Minute)
	p := newPricer(productRepo(prod), &mockCouponRepo{}, &mockOfferRepo{})

	got, err := p.Resolve(context.Background(), []ItemRequest{{ProductID: "p1", Quantity: 1}}, "")

	require.NoError(t, err)
	assert.True(t, dec("100").Equal(got.Total))
}

func TestResolve_Modifiers(t *testing.T) {
	prod := newTestProduct("p1", "10.00")
	prod.Modifiers = []product.Modifier{
		{
			ID:   "size",
			Name: "Size",
			Options: []product.Option{
				{ID: "small", Name: "Small", Price: dec("0")},
				{ID: "large", Name: "Large", Price: dec("2.50")},
			},
		},
	}
	p := newPricer(productRepo(prod), &mockCouponRepo{}, &mockOfferRepo{})

	t.Run("resolved option adds its price and summary", func(t *testing.T) {
		got, err := p.Resolve(context.Background(), []ItemRequest{{
			ProductID: "p1",
			Quantity:  2,
			Modifiers: []ModifierRef{{ModifierID: "size", OptionID: "large"}},
		}}, "")

		require.NoError(t, err)
		assert.True(t, dec("12.50").Equal(got.Items[0].UnitPrice))
		assert.True(t, dec("25.00").Equal(got.Total))
		require.Len(t, got.Items[0].SelectedModifiers, 1)
		assert.Equal(t, "Size", got.Items[0].SelectedModifiers[0].ModifierName)
		assert.Equal(t, "Large", got.Items[0].SelectedModifiers[0].OptionName)
	})

	t.Run("unresolved references are skipped silently", func(t *testing.T) {
		got, err := p.Resolve(context.Background(), []ItemRequest{{
			ProductID: "p1",
			Quantity:  1,
			Modifiers: []ModifierRef{
				{ModifierID: "size", OptionID: "nonexistent"},
				{ModifierID: "nonexistent", OptionID: "large"},
			},
		}}, "")

		require.NoError(t, err)
		assert.True(t, dec("10.00").Equal(got.Items[0].UnitPrice))
		assert.Empty(t, got.Items[0].SelectedModifiers)
	})
}

func TestResolve_GlobalOffer(t *testing.T) {
	t.Run("fixed global discount", func(t *testing.T) {
		p := newPricer(
			productRepo(newTestProduct("p1", "100")),
			&mockCouponRepo{},
			&mockOfferRepo{global: activeOffer(offer.TypeFixed, "10", offer.ScopeGlobal)},
		)

		got, err := p.Resolve(context.Background(), []ItemRequest{{ProductID: "p1", Quantity: 1}}, "")

		require.NoError(t, err)
		assert.True(t, dec("10").Equal(got.GlobalDiscount))
		assert.True(t, dec("90").Equal(got.Total))
	})

	t.Run("fixed global discount clamped to subtotal", func(t *testing.T) {
		p := newPricer(
			productRepo(newTestProduct("p1", "5")),
			&mockCouponRepo{},
			&mockOfferRepo{global: activeOffer(offer.TypeFixed, "10", offer.ScopeGlobal)},
		)

		got, err := p.Resolve(context.Background(), []ItemRequest{{ProductID: "p1", Quantity: 1}}, "")

		require.NoError(t, err)
		assert.True(t, dec("5").Equal(got.GlobalDiscount))
		assert.True(t, got.Total.IsZero())
	})

	t.Run("percentage global discount", func(t *testing.T) {
		p := newPricer(
			productRepo(newTestProduct("p1", "200")),
			&mockCouponRepo{},
			&mockOfferRepo{global: activeOffer(offer.TypePercentage, "25", offer.ScopeGlobal)},
		)

		got, err := p.Resolve(context.Background(), []ItemRequest{{ProductID: "p1", Quantity: 1}}, "")

		require.NoError(t, err)
		assert.True(t, dec("50").Equal(got.GlobalDiscount))
		assert.True(t, dec("150").Equal(got.Total))
	})
}

func TestResolve_Coupon(t *testing.T) {
	products := productRepo(newTestProduct("p1", "100"))

	t.Run("unknown code", func(t *testing.T) {
		p := newPricer(products, &mockCouponRepo{}, &mockOfferRepo{})

		_, err := p.Resolve(context.Background(), []ItemRequest{{ProductID: "p1", Quantity: 1}}, "BOGUS")
		require.ErrorIs(t, err, coupon.ErrNotFound)
	})

	t.Run("lookup is case-insensitive", func(t *testing.T) {
		coupons := &mockCouponRepo{byCode: map[string]*coupon.Coupon{
			"SAVE10": validCoupon("SAVE10", offer.TypePercentage, "10"),
		}}
		p := newPricer(products, coupons, &mockOfferRepo{})

		got, err := p.Resolve(context.Background(), []ItemRequest{{ProductID: "p1", Quantity: 1}}, "save10")

		require.NoError(t, err)
		assert.True(t, dec("10").Equal(got.CouponDiscount))
	})

	t.Run("expired coupon", func(t *testing.T) {
		c := validCoupon("OLD", offer.TypePercentage, "10")
		c.ExpireAt = fixedNow.Add(-time.Minute)
		p := newPricer(products, &mockCouponRepo{byCode: map[string]*coupon.Coupon{"OLD": c}}, &mockOfferRepo{})

		_, err := p.Resolve(context.Background(), []ItemRequest{{ProductID: "p1", Quantity: 1}}, "OLD")
		require.ErrorIs(t, err, coupon.ErrExpired)
	})

	t.Run("usage limit reached", func(t *testing.T) {
		c := validCoupon("FULL", offer.TypePercentage, "10")
		c.Limit = intPtr(5)
		c.UsedCount = 5
		p := newPricer(products, &mockCouponRepo{byCode: map[string]*coupon.Coupon{"FULL": c}}, &mockOfferRepo{})

		_, err := p.Resolve(context.Background(), []ItemRequest{{ProductID: "p1", Quantity: 1}}, "FULL")
		require.ErrorIs(t, err, coupon.ErrLimitReached)
	})

	t.Run("minimum purchase checked against post-global-discount amount", func(t *testing.T) {
		c := validCoupon("MIN", offer.TypePercentage, "10")
		c.MinPurchase = decPtr("95")
		p := newPricer(products,
			&mockCouponRepo{byCode: map[string]*coupon.Coupon{"MIN": c}},
			&mockOfferRepo{global: activeOffer(offer.TypeFixed, "10", offer.ScopeGlobal)},
		)

		// Subtotal 100, global discount 10 -> taxable 90 < 95.
		_, err := p.Resolve(context.Background(), []ItemRequest{{ProductID: "p1", Quantity: 1}}, "MIN")

		var mpErr *coupon.MinPurchaseError
		require.ErrorAs(t, err, &mpErr)
	})
}

func TestResolve_DiscountStacking(t *testing.T) {
	// Cart total 100, global FIXED 10, coupon 10% with minPurchase 50:
	// taxable 90, coupon discount 9, final total 81.
	c := validCoupon("STACK", offer.TypePercentage, "10")
	c.MinPurchase = decPtr("50")

	p := newPricer(
		productRepo(newTestProduct("p1", "100")),
		&mockCouponRepo{byCode: map[string]*coupon.Coupon{"STACK": c}},
		&mockOfferRepo{global: activeOffer(offer.TypeFixed, "10", offer.ScopeGlobal)},
	)

	got, err := p.Resolve(context.Background(), []ItemRequest{{ProductID: "p1", Quantity: 1}}, "STACK")

	require.NoError(t, err)
	assert.True(t, dec("10").Equal(got.GlobalDiscount), "global: %s", got.GlobalDiscount)
	assert.True(t, dec("9").Equal(got.CouponDiscount), "coupon: %s", got.CouponDiscount)
	assert.True(t, dec("19").Equal(got.DiscountAmount), "discount: %s", got.DiscountAmount)
	assert.True(t, dec("81").Equal(got.Total), "total: %s", got.Total)
}

func TestResolve_RoundsOnlyAtAggregates(t *testing.T) {
	// 3 units at 9.99 with a 33% product offer: unit price 6.6933 stays
	// unrounded, line total 20.0799, and the order total rounds to 20.08.
	prod := newTestProduct("p1", "9.99")
	prod.Offer = activeOffer(offer.TypePercentage, "33", offer.ScopeProduct)
	p := newPricer(productRepo(prod), &mockCouponRepo{}, &mockOfferRepo{})

	got, err := p.Resolve(context.Background(), []ItemRequest{{ProductID: "p1", Quantity: 3}}, "")

	require.NoError(t, err)
	assert.True(t, dec("6.6933").Equal(got.Items[0].UnitPrice), "unit: %s", got.Items[0].UnitPrice)
	assert.True(t, dec("20.0799").Equal(got.Items[0].TotalPrice), "line: %s", got.Items[0].TotalPrice)
	assert.True(t, dec("20.08").Equal(got.Total), "total: %s", got.Total)
}

func TestResolve_TotalNeverNegative(t *testing.T) {
	c := validCoupon("BIG", offer.TypeFixed, "500")
	p := newPricer(
		productRepo(newTestProduct("p1", "30")),
		&mockCouponRepo{byCode: map[string]*coupon.Coupon{"BIG": c}},
		&mockOfferRepo{global: activeOffer(offer.TypeFixed, "20", offer.ScopeGlobal)},
	)

	got, err := p.Resolve(context.Background(), []ItemRequest{{ProductID: "p1", Quantity: 1}}, "BIG")

	require.NoError(t, err)
	assert.False(t, got.Total.IsNegative())
	assert.True(t, got.Total.IsZero())
	// Coupon discount clamped to the 10 left after the global discount.
	assert.True(t, dec("10").Equal(got.CouponDiscount))
}
