// Package order owns order placement pricing and the order lifecycle state
// machine, including payment status reconciliation entry points.
package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Status is the fulfillment state of an order.
type Status string

const (
	StatusPending        Status = "PENDING"
	StatusConfirmed      Status = "CONFIRMED"
	StatusPreparing      Status = "PREPARING"
	StatusReadyForPickup Status = "READY_FOR_PICKUP"
	StatusAssigned       Status = "ASSIGNED"
	StatusPickedUp       Status = "PICKED_UP"
	StatusOnTheWay       Status = "ON_THE_WAY"
	StatusDelivered      Status = "DELIVERED"
	StatusCancelled      Status = "CANCELLED"
)

// Valid reports whether s is a known order status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusPreparing, StatusReadyForPickup,
		StatusAssigned, StatusPickedUp, StatusOnTheWay, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// PaymentStatus is the settlement state of an order's payment.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentPaid     PaymentStatus = "PAID"
	PaymentFailed   PaymentStatus = "FAILED"
	PaymentRefunded PaymentStatus = "REFUNDED"
)

// PaymentMethod selects how an order is settled.
type PaymentMethod string

const (
	// PaymentCOD is cash on delivery: the order is confirmed for fulfillment
	// immediately, payment settles later.
	PaymentCOD PaymentMethod = "COD"
	// PaymentOnline is gateway-hosted card payment: the order stays PENDING
	// until the gateway confirms.
	PaymentOnline PaymentMethod = "ONLINE"
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	return m == PaymentCOD || m == PaymentOnline
}

var (
	// ErrNotFound is returned when an order does not exist or is not visible
	// to the requester.
	ErrNotFound = errors.New("order not found")
	// ErrEmptyItems is returned when an order request has no items.
	ErrEmptyItems = errors.New("items required")
)

// ProductUnavailableError indicates a requested product is missing or inactive.
type ProductUnavailableError struct {
	ProductID string
}

func (e *ProductUnavailableError) Error() string {
	return fmt.Sprintf("product not found or inactive: %s", e.ProductID)
}

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// InvalidTransitionError indicates a lifecycle transition is not allowed from
// the order's current status.
type InvalidTransitionError struct {
	From Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot cancel order with status %s: only PENDING orders can be cancelled", e.From)
}

// ModifierSelection is the snapshot of one chosen modifier option, captured
// at placement time and never recomputed.
type ModifierSelection struct {
	ModifierName string          `json:"modifierName"`
	OptionName   string          `json:"optionName"`
	Price        decimal.Decimal `json:"price"`
}

// Item is a priced order line. Unit price and line total are snapshots taken
// by the pricing resolver; later catalog edits do not affect placed orders.
type Item struct {
	ProductID         string
	Quantity          int
	UnitPrice         decimal.Decimal
	TotalPrice        decimal.Decimal
	SelectedModifiers []ModifierSelection
}

// Address is a shipping address snapshot. It is copied onto the order, not
// referenced, so later address-book edits never change a placed order.
type Address struct {
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	Region     string `json:"region,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
}

// Order is a placed customer order. Status, PaymentStatus and PaymentID are
// the only fields that change after creation, always through the lifecycle
// operations on Service.
type Order struct {
	ID              string
	OrderNumber     int64
	CustomerID      string
	Items           []Item
	TotalAmount     decimal.Decimal // final payable, post-discount
	DiscountAmount  decimal.Decimal
	TotalSubunits   int64 // gateway smallest-unit amount, ONLINE orders only
	Currency        string
	CouponID        *string
	PaymentMethod   PaymentMethod
	PaymentStatus   PaymentStatus
	Status          Status
	PaymentID       string
	ShippingAddress Address
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Repository defines persistence for orders. Multi-step mutations (create +
// coupon increment, cancel + coupon decrement) are single transactions; the
// store is the only serialization boundary.
type Repository interface {
	// Create persists the order and its items. When the order carries a
	// coupon, the coupon's used_count is incremented in the same transaction
	// with a store-level guard; Create returns coupon.ErrLimitReached when
	// the guard rejects the increment.
	Create(ctx context.Context, o *Order) error

	GetByID(ctx context.Context, id string) (*Order, error)
	GetByPaymentID(ctx context.Context, paymentID string) (*Order, error)
	ListByCustomer(ctx context.Context, customerID string, limit, offset int) ([]Order, int, error)

	// Cancel atomically sets the order to CANCELLED if it is still PENDING,
	// restoring the coupon usage slot in the same transaction. It reports
	// whether the order was actually transitioned.
	Cancel(ctx context.Context, id string) (bool, error)

	// UpdateStatus sets the order status directly (admin path). Entering
	// CANCELLED from a non-cancelled state restores the coupon slot in the
	// same transaction.
	UpdateStatus(ctx context.Context, id string, status Status) error

	// SetPaymentID records the gateway payment ID, at most once.
	SetPaymentID(ctx context.Context, id, paymentID string) error

	// UpdatePaymentStatus performs a conditional (compare-and-swap) payment
	// status transition: the write only happens while the current status is
	// one of from. A PAID transition also advances a PENDING order to
	// CONFIRMED in the same statement. It reports whether a row changed;
	// false means the transition already happened or is not allowed, which
	// callers treat as an idempotent no-op.
	UpdatePaymentStatus(ctx context.Context, id string, to PaymentStatus, from ...PaymentStatus) (bool, error)
}

// EventType labels order lifecycle notifications.
type EventType string

const (
	EventPlaced    EventType = "order.placed"
	EventPaid      EventType = "order.paid"
	EventCancelled EventType = "order.cancelled"
)

// Event is a lifecycle notification emitted after a successful transition.
type Event struct {
	Type       EventType       `json:"type"`
	OrderID    string          `json:"orderId"`
	CustomerID string          `json:"customerId,omitempty"`
	Total      decimal.Decimal `json:"total"`
	At         time.Time       `json:"at"`
}

// EventSink receives lifecycle events. Implementations must not block order
// processing; publishing happens after the transaction commits and failures
// are the sink's problem to log.
type EventSink interface {
	Publish(ctx context.Context, ev Event)
}
