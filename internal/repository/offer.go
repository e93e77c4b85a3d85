package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"souq/internal/domain/offer"
)

// activeGlobalOfferSQL picks the single authoritative store-wide offer:
// the most recently created GLOBAL offer whose half-open validity window
// [start_date, end_date) contains the given instant.
const activeGlobalOfferSQL = `SELECT id, name, type, value, scope, active, start_date, end_date, created_at
	FROM offers
	WHERE scope = 'GLOBAL' AND active = TRUE AND start_date <= $1 AND end_date > $1
	ORDER BY created_at DESC
	LIMIT 1`

var _ offer.Repository = (*OfferRepository)(nil)

// OfferRepository implements offer.Repository backed by PostgreSQL.
type OfferRepository struct {
	pool *pgxpool.Pool
}

// NewOfferRepository returns an OfferRepository that uses the given pool.
func NewOfferRepository(pool *pgxpool.Pool) *OfferRepository {
	return &OfferRepository{pool: pool}
}

// ActiveGlobal returns the active store-wide offer at now, or nil when none
// applies.
func (r *OfferRepository) ActiveGlobal(ctx context.Context, now time.Time) (*offer.Offer, error) {
	rows, err := r.pool.Query(ctx, activeGlobalOfferSQL, now)
	if err != nil {
		return nil, fmt.Errorf("querying active global offer: %w", err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOffer)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying active global offer: %w", err)
	}
	return &o, nil
}

func scanOffer(row pgx.CollectableRow) (offer.Offer, error) {
	var (
		o     offer.Offer
		typ   string
		scope string
	)
	err := row.Scan(
		&o.ID, &o.Name, &typ, &o.Value, &scope,
		&o.Active, &o.StartDate, &o.EndDate, &o.CreatedAt,
	)
	o.Type = offer.Type(typ)
	o.Scope = offer.Scope(scope)
	return o, err
}
