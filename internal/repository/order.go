package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"souq/internal/domain/coupon"
	"souq/internal/domain/order"
)

const (
	// reserveCouponSlotSQL is the authoritative usage-limit guard: the
	// increment only happens while a slot remains, inside the order-creation
	// transaction. Zero rows affected means the limit is exhausted (or the
	// coupon was deactivated since pricing).
	reserveCouponSlotSQL = `UPDATE coupons SET used_count = used_count + 1
		WHERE id = $1 AND active = TRUE
		AND (usage_limit IS NULL OR used_count < usage_limit)`

	// releaseCouponSlotSQL clamps at zero so repeated releases can never
	// drive the counter negative.
	releaseCouponSlotSQL = `UPDATE coupons SET used_count = GREATEST(used_count - 1, 0)
		WHERE id = $1`

	insertOrderSQL = `INSERT INTO orders (id, customer_id, status, payment_status, payment_method,
		total_amount, discount_amount, total_subunits, currency, coupon_id,
		shipping_address, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING order_number`

	insertOrderItemSQL = `INSERT INTO order_items (order_id, product_id, quantity,
		unit_price, total_price, selected_modifiers)
		VALUES ($1, $2, $3, $4, $5, $6)`

	orderColumns = `id, order_number, customer_id, status, payment_status, payment_method,
		total_amount, discount_amount, total_subunits, currency, coupon_id,
		COALESCE(payment_id, ''), shipping_address, created_at, updated_at`

	getOrderByIDSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	getOrderByPaymentIDSQL = `SELECT ` + orderColumns + ` FROM orders WHERE payment_id = $1`

	listOrdersByCustomerSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE customer_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	countOrdersByCustomerSQL = `SELECT COUNT(*) FROM orders WHERE customer_id = $1`

	getOrderItemsSQL = `SELECT order_id, product_id, quantity, unit_price, total_price, selected_modifiers
		FROM order_items WHERE order_id = ANY($1) ORDER BY id`

	cancelOrderSQL = `UPDATE orders SET status = 'CANCELLED', updated_at = now()
		WHERE id = $1 AND status = 'PENDING'
		RETURNING coupon_id`

	// updateOrderStatusSQL returns the pre-update status so the caller can
	// tell whether the order just entered CANCELLED.
	updateOrderStatusSQL = `UPDATE orders o SET status = $2, updated_at = now()
		FROM (SELECT status AS old_status, coupon_id FROM orders WHERE id = $1 FOR UPDATE) prev
		WHERE o.id = $1
		RETURNING prev.old_status, prev.coupon_id`

	setPaymentIDSQL = `UPDATE orders SET payment_id = $2, updated_at = now()
		WHERE id = $1 AND payment_id IS NULL`

	// updatePaymentStatusSQL is the compare-and-swap behind every payment
	// transition. Flipping to PAID also advances a PENDING order to
	// CONFIRMED so webhook and poll paths converge in a single statement.
	updatePaymentStatusSQL = `UPDATE orders SET payment_status = $2,
		status = CASE WHEN $2 = 'PAID' AND status = 'PENDING' THEN 'CONFIRMED' ELSE status END,
		updated_at = now()
		WHERE id = $1 AND payment_status = ANY($3)`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. Every
// mutation that touches both an order and its coupon runs as one transaction.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists the order and its items, reserving the coupon usage slot in
// the same transaction when the order carries one. The assigned order number
// is written back onto o.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if o.CouponID != nil {
		tag, err := tx.Exec(ctx, reserveCouponSlotSQL, *o.CouponID)
		if err != nil {
			return fmt.Errorf("reserving coupon slot: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return coupon.ErrLimitReached
		}
	}

	addressJSON, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return fmt.Errorf("marshaling shipping address: %w", err)
	}

	err = tx.QueryRow(ctx, insertOrderSQL,
		o.ID, o.CustomerID, o.Status, o.PaymentStatus, o.PaymentMethod,
		o.TotalAmount, o.DiscountAmount, o.TotalSubunits, o.Currency, o.CouponID,
		addressJSON, o.CreatedAt, o.UpdatedAt,
	).Scan(&o.OrderNumber)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}

	batch := &pgx.Batch{}
	for _, item := range o.Items {
		modifiersJSON, err := json.Marshal(item.SelectedModifiers)
		if err != nil {
			return fmt.Errorf("marshaling item modifiers: %w", err)
		}
		batch.Queue(insertOrderItemSQL,
			o.ID, item.ProductID, item.Quantity,
			item.UnitPrice, item.TotalPrice, modifiersJSON,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("creating order items for %q: %w", o.ID, err)
	}

	return tx.Commit(ctx)
}

// GetByID returns a single order with its items.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	return r.getOne(ctx, getOrderByIDSQL, id)
}

// GetByPaymentID returns the order carrying the given gateway payment ID.
func (r *OrderRepository) GetByPaymentID(ctx context.Context, paymentID string) (*order.Order, error) {
	return r.getOne(ctx, getOrderByPaymentIDSQL, paymentID)
}

func (r *OrderRepository) getOne(ctx context.Context, sql, arg string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("getting order: %w", err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order: %w", err)
	}

	if err := r.loadItems(ctx, []*order.Order{&o}); err != nil {
		return nil, err
	}
	return &o, nil
}

// ListByCustomer returns a page of the customer's orders, newest first, with
// their items, and the total order count for the customer.
func (r *OrderRepository) ListByCustomer(ctx context.Context, customerID string, limit, offset int) ([]order.Order, int, error) {
	rows, err := r.pool.Query(ctx, listOrdersByCustomerSQL, customerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing orders for customer %q: %w", customerID, err)
	}

	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, 0, fmt.Errorf("listing orders for customer %q: %w", customerID, err)
	}

	refs := make([]*order.Order, len(orders))
	for i := range orders {
		refs[i] = &orders[i]
	}
	if err := r.loadItems(ctx, refs); err != nil {
		return nil, 0, err
	}

	var total int
	if err := r.pool.QueryRow(ctx, countOrdersByCustomerSQL, customerID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting orders for customer %q: %w", customerID, err)
	}
	return orders, total, nil
}

// Cancel atomically transitions a PENDING order to CANCELLED and releases its
// coupon slot in the same transaction. It reports false when the order is no
// longer PENDING (or does not exist) and nothing was changed.
func (r *OrderRepository) Cancel(ctx context.Context, id string) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var couponID *string
	err = tx.QueryRow(ctx, cancelOrderSQL, id).Scan(&couponID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("cancelling order %q: %w", id, err)
	}

	if couponID != nil {
		if _, err := tx.Exec(ctx, releaseCouponSlotSQL, *couponID); err != nil {
			return false, fmt.Errorf("releasing coupon slot: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("cancelling order %q: %w", id, err)
	}
	return true, nil
}

// UpdateStatus sets the order status directly. Entering CANCELLED from any
// other status releases the coupon slot, mirroring the customer cancel path.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status order.Status) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		oldStatus string
		couponID  *string
	)
	err = tx.QueryRow(ctx, updateOrderStatusSQL, id, status).Scan(&oldStatus, &couponID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return order.ErrNotFound
		}
		return fmt.Errorf("updating status of order %q: %w", id, err)
	}

	entersCancelled := status == order.StatusCancelled && order.Status(oldStatus) != order.StatusCancelled
	if entersCancelled && couponID != nil {
		if _, err := tx.Exec(ctx, releaseCouponSlotSQL, *couponID); err != nil {
			return fmt.Errorf("releasing coupon slot: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// SetPaymentID records the gateway payment ID, at most once. A second write
// is silently ignored so retried payment creation cannot reassign an order.
func (r *OrderRepository) SetPaymentID(ctx context.Context, id, paymentID string) error {
	_, err := r.pool.Exec(ctx, setPaymentIDSQL, id, paymentID)
	if err != nil {
		return fmt.Errorf("setting payment id on order %q: %w", id, err)
	}
	return nil
}

// UpdatePaymentStatus performs the conditional payment transition described
// on order.Repository. It reports whether a row actually changed.
func (r *OrderRepository) UpdatePaymentStatus(ctx context.Context, id string, to order.PaymentStatus, from ...order.PaymentStatus) (bool, error) {
	fromStates := make([]string, len(from))
	for i, s := range from {
		fromStates[i] = string(s)
	}

	tag, err := r.pool.Exec(ctx, updatePaymentStatusSQL, id, to, fromStates)
	if err != nil {
		return false, fmt.Errorf("updating payment status of order %q: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *OrderRepository) loadItems(ctx context.Context, orders []*order.Order) error {
	if len(orders) == 0 {
		return nil
	}

	byID := make(map[string]*order.Order, len(orders))
	ids := make([]string, len(orders))
	for i, o := range orders {
		byID[o.ID] = o
		ids[i] = o.ID
	}

	rows, err := r.pool.Query(ctx, getOrderItemsSQL, ids)
	if err != nil {
		return fmt.Errorf("loading order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID       string
			item          order.Item
			modifiersJSON []byte
		)
		if err := rows.Scan(&orderID, &item.ProductID, &item.Quantity,
			&item.UnitPrice, &item.TotalPrice, &modifiersJSON); err != nil {
			return fmt.Errorf("scanning order item: %w", err)
		}
		if len(modifiersJSON) > 0 {
			if err := json.Unmarshal(modifiersJSON, &item.SelectedModifiers); err != nil {
				return fmt.Errorf("unmarshaling item modifiers: %w", err)
			}
		}
		if o, ok := byID[orderID]; ok {
			o.Items = append(o.Items, item)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("loading order items: %w", err)
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o             order.Order
		status        string
		paymentStatus string
		paymentMethod string
		addressJSON   []byte
	)
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.CustomerID, &status, &paymentStatus, &paymentMethod,
		&o.TotalAmount, &o.DiscountAmount, &o.TotalSubunits, &o.Currency, &o.CouponID,
		&o.PaymentID, &addressJSON, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return o, err
	}

	o.Status = order.Status(status)
	o.PaymentStatus = order.PaymentStatus(paymentStatus)
	o.PaymentMethod = order.PaymentMethod(paymentMethod)
	if len(addressJSON) > 0 {
		if err := json.Unmarshal(addressJSON, &o.ShippingAddress); err != nil {
			return o, fmt.Errorf("unmarshaling shipping address: %w", err)
		}
	}
	return o, nil
}
