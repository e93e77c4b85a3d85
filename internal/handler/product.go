package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"souq/internal/domain/offer"
	"souq/internal/domain/product"
)

type productResponse struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Category      string          `json:"category"`
	Price         decimal.Decimal `json:"price"`
	OriginalPrice decimal.Decimal `json:"originalPrice"`
	FinalPrice    decimal.Decimal `json:"finalPrice"`
	HasOffer      bool            `json:"hasOffer"`
	Discount      decimal.Decimal `json:"discount"`
	OfferName     string          `json:"offerName,omitempty"`
}

// listProducts returns the active catalog with effective prices: each
// product's attached offer is quoted so clients can render strike-through
// pricing without re-implementing discount math.
func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		writeDomainError(w, r, errors.Wrap(err, "list products"))
		return
	}

	now := h.now()
	resp := make([]productResponse, 0, len(products))
	for _, p := range products {
		if !p.Active {
			continue
		}
		resp = append(resp, toProductResponse(p, now))
	}

	writeJSON(w, http.StatusOK, map[string]any{"products": resp})
}

func toProductResponse(p product.Product, now time.Time) productResponse {
	q := offer.Quote(p.Price, p.Offer, now)
	return productResponse{
		ID:            p.ID,
		Name:          p.Name,
		Category:      p.Category,
		Price:         q.FinalPrice.Round(2),
		OriginalPrice: q.OriginalPrice,
		FinalPrice:    q.FinalPrice.Round(2),
		HasOffer:      q.HasOffer,
		Discount:      q.Discount,
		OfferName:     q.OfferName,
	}
}
