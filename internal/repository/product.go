package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"souq/internal/domain/offer"
	"souq/internal/domain/product"
)

const (
	// Product rows carry their attached offer via LEFT JOIN so pricing gets
	// a complete snapshot in one round trip. The offer columns are nullable.
	productColumns = `p.id, p.name, p.price, p.category, p.active,
		o.id, o.name, o.type, o.value, o.scope, o.active, o.start_date, o.end_date, o.created_at`

	listProductsSQL = `SELECT ` + productColumns + `
		FROM products p
		LEFT JOIN offers o ON o.id = p.offer_id
		ORDER BY p.id`

	getProductByIDSQL = `SELECT ` + productColumns + `
		FROM products p
		LEFT JOIN offers o ON o.id = p.offer_id
		WHERE p.id = $1`

	getModifiersSQL = `SELECT m.id, m.name, opt.id, opt.name, opt.price
		FROM modifiers m
		JOIN modifier_options opt ON opt.modifier_id = m.id
		WHERE m.product_id = $1
		ORDER BY m.id, opt.id`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns all catalog products with their attached offers, ordered by
// ID. Modifiers are not loaded for listings.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByID returns a single product with its attached offer and modifier
// groups.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p.Modifiers, err = r.loadModifiers(ctx, id)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProductRepository) loadModifiers(ctx context.Context, productID string) ([]product.Modifier, error) {
	rows, err := r.pool.Query(ctx, getModifiersSQL, productID)
	if err != nil {
		return nil, fmt.Errorf("loading modifiers for product %q: %w", productID, err)
	}
	defer rows.Close()

	var modifiers []product.Modifier
	for rows.Next() {
		var (
			modID, modName string
			opt            product.Option
		)
		if err := rows.Scan(&modID, &modName, &opt.ID, &opt.Name, &opt.Price); err != nil {
			return nil, fmt.Errorf("scanning modifier row: %w", err)
		}

		// Rows arrive ordered by modifier ID, so options group onto the tail.
		if len(modifiers) == 0 || modifiers[len(modifiers)-1].ID != modID {
			modifiers = append(modifiers, product.Modifier{ID: modID, Name: modName})
		}
		last := &modifiers[len(modifiers)-1]
		last.Options = append(last.Options, opt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("loading modifiers for product %q: %w", productID, err)
	}
	return modifiers, nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var (
		p product.Product

		offerID, offerName, offerType, offerScope *string
		offerValue                                *decimal.Decimal
		offerActive                               *bool
		offerStart, offerEnd, offerCreated        *time.Time
	)
	err := row.Scan(
		&p.ID, &p.Name, &p.Price, &p.Category, &p.Active,
		&offerID, &offerName, &offerType, &offerValue, &offerScope,
		&offerActive, &offerStart, &offerEnd, &offerCreated,
	)
	if err != nil {
		return p, err
	}

	if offerID != nil {
		p.Offer = &offer.Offer{
			ID:        *offerID,
			Name:      *offerName,
			Type:      offer.Type(*offerType),
			Value:     *offerValue,
			Scope:     offer.Scope(*offerScope),
			Active:    *offerActive,
			StartDate: *offerStart,
			EndDate:   *offerEnd,
			CreatedAt: *offerCreated,
		}
	}
	return p, nil
}
