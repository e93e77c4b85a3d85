// Package product defines catalog snapshots used for pricing. The pricing
// code only ever reads these; mutations belong to the admin catalog, which
// lives outside this service.
package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"souq/internal/domain/offer"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product is an immutable-at-computation-time snapshot of a catalog item.
type Product struct {
	ID        string
	Name      string
	Price     decimal.Decimal
	Category  string
	Active    bool
	Offer     *offer.Offer
	Modifiers []Modifier
}

// Modifier is a named group of options a customer can pick for a product,
// e.g. "Size" with options "Small"/"Large".
type Modifier struct {
	ID      string
	Name    string
	Options []Option
}

// Option is a single modifier choice with its price delta.
type Option struct {
	ID    string
	Name  string
	Price decimal.Decimal
}

// FindOption resolves a modifier and option pair on the product.
// It returns nils when either reference does not exist; callers decide
// whether that is an error.
func (p *Product) FindOption(modifierID, optionID string) (*Modifier, *Option) {
	for i := range p.Modifiers {
		m := &p.Modifiers[i]
		if m.ID != modifierID {
			continue
		}
		for j := range m.Options {
			if m.Options[j].ID == optionID {
				return m, &m.Options[j]
			}
		}
		return nil, nil
	}
	return nil, nil
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
}
