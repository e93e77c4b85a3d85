package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"souq/internal/domain/coupon"
	"souq/internal/domain/offer"
)

const getCouponByCodeSQL = `SELECT id, code, type, value, min_purchase, usage_limit, used_count, expire_at, active
	FROM coupons WHERE code = UPPER($1)`

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
// Usage-count mutation lives in OrderRepository so it shares the order
// transaction.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up a coupon by its code. Codes are stored upper-cased;
// the lookup canonicalizes its argument the same way. Returns
// coupon.ErrNotFound when no such coupon exists.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	return &c, nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c           coupon.Coupon
		typ         string
		minPurchase *decimal.Decimal
		usageLimit  *int32
		usedCount   int32
	)
	err := row.Scan(
		&c.ID, &c.Code, &typ, &c.Value, &minPurchase,
		&usageLimit, &usedCount, &c.ExpireAt, &c.Active,
	)
	c.Type = offer.Type(typ)
	c.MinPurchase = minPurchase
	if usageLimit != nil {
		limit := int(*usageLimit)
		c.Limit = &limit
	}
	c.UsedCount = int(usedCount)
	return c, err
}
