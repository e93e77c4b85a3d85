package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrUnknownStatus is returned by AdminUpdateStatus for an unrecognized
// target status.
var ErrUnknownStatus = errors.New("unknown order status")

// ErrUnknownPaymentMethod is returned when a placement request carries a
// payment method other than COD or ONLINE.
var ErrUnknownPaymentMethod = errors.New("unknown payment method")

// SubunitsFunc converts a final total to the payment gateway's smallest
// currency unit integer representation.
type SubunitsFunc func(amount decimal.Decimal) int64

// Service owns the order lifecycle: placement, cancellation, admin status
// updates, and idempotent payment status transitions. Every multi-step
// mutation is delegated to the repository as one transaction.
type Service struct {
	pricer   *Pricer
	orders   Repository
	events   EventSink
	currency string
	subunits SubunitsFunc

	now func() time.Time
}

// NewService creates an order Service.
// events may be nil when no notification sink is configured.
func NewService(pricer *Pricer, orders Repository, events EventSink, currency string, subunits SubunitsFunc) *Service {
	return &Service{
		pricer:   pricer,
		orders:   orders,
		events:   events,
		currency: currency,
		subunits: subunits,
		now:      time.Now,
	}
}

// PlaceOrderRequest holds the input for placing an order.
type PlaceOrderRequest struct {
	CustomerID    string
	Items         []ItemRequest
	CouponCode    string
	PaymentMethod PaymentMethod
	Address       Address
}

// PlaceOrderResult holds a successfully placed order with its full pricing
// breakdown.
type PlaceOrderResult struct {
	Order   *Order
	Pricing *Pricing
}

// PlaceOrder resolves pricing and persists the order in one transaction that
// also reserves the coupon usage slot. No order row exists if any pricing or
// coupon check fails.
//
// COD orders are created CONFIRMED with payment still PENDING: they are
// confirmed for fulfillment regardless of payment timing. ONLINE orders stay
// PENDING until the gateway settles.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	if !req.PaymentMethod.Valid() {
		return nil, ErrUnknownPaymentMethod
	}

	pricing, err := s.pricer.Resolve(ctx, req.Items, req.CouponCode)
	if err != nil {
		return nil, err
	}

	now := s.now()
	o := &Order{
		ID:              uuid.New().String(),
		CustomerID:      req.CustomerID,
		Items:           pricing.Items,
		TotalAmount:     pricing.Total,
		DiscountAmount:  pricing.DiscountAmount,
		Currency:        s.currency,
		PaymentMethod:   req.PaymentMethod,
		PaymentStatus:   PaymentPending,
		Status:          StatusPending,
		ShippingAddress: req.Address,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if req.PaymentMethod == PaymentCOD {
		o.Status = StatusConfirmed
	} else {
		o.TotalSubunits = s.subunits(pricing.Total)
	}
	if pricing.Coupon != nil {
		id := pricing.Coupon.ID
		o.CouponID = &id
	}

	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	s.publish(ctx, EventPlaced, o)
	return &PlaceOrderResult{Order: o, Pricing: pricing}, nil
}

// GetOrder returns an order visible to the given customer.
// Orders belonging to other customers are reported as not found.
func (s *Service) GetOrder(ctx context.Context, id, customerID string) (*Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.CustomerID != customerID {
		return nil, ErrNotFound
	}
	return o, nil
}

// FindByPaymentID resolves an order from its gateway payment ID. Used by the
// payment callback, which only knows the gateway's identifier.
func (s *Service) FindByPaymentID(ctx context.Context, paymentID string) (*Order, error) {
	return s.orders.GetByPaymentID(ctx, paymentID)
}

// ListOrders returns a page of the customer's orders, newest first, along
// with the total count.
func (s *Service) ListOrders(ctx context.Context, customerID string, limit, offset int) ([]Order, int, error) {
	return s.orders.ListByCustomer(ctx, customerID, limit, offset)
}

// CancelOrder cancels a PENDING order owned by the customer and releases the
// coupon usage slot in the same transaction. The repository re-checks the
// PENDING precondition inside the transaction, so a concurrent transition
// cannot slip a cancellation through.
func (s *Service) CancelOrder(ctx context.Context, id, customerID string) error {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if o.CustomerID != customerID {
		return ErrNotFound
	}
	if o.Status != StatusPending {
		return &InvalidTransitionError{From: o.Status}
	}

	cancelled, err := s.orders.Cancel(ctx, id)
	if err != nil {
		return errors.Wrap(err, "cancel order")
	}
	if !cancelled {
		// Lost the race against another transition since the read above.
		cur, err := s.orders.GetByID(ctx, id)
		if err != nil {
			return err
		}
		return &InvalidTransitionError{From: cur.Status}
	}

	s.publish(ctx, EventCancelled, o)
	return nil
}

// AdminUpdateStatus sets the order status directly, without adjacency
// validation: admin overrides of the linear flow are an accepted policy.
// Transitioning into CANCELLED restores the coupon slot, mirroring the
// customer cancel path.
func (s *Service) AdminUpdateStatus(ctx context.Context, id string, status Status) error {
	if !status.Valid() {
		return ErrUnknownStatus
	}
	if _, err := s.orders.GetByID(ctx, id); err != nil {
		return err
	}
	return s.orders.UpdateStatus(ctx, id, status)
}

// AttachPayment records the gateway payment ID on an order before the client
// is redirected to the hosted payment form. The ID is written at most once.
func (s *Service) AttachPayment(ctx context.Context, id, paymentID string) error {
	return s.orders.SetPaymentID(ctx, id, paymentID)
}

// MarkPaid transitions the payment to PAID and advances a PENDING order to
// CONFIRMED. Re-invoking on an already-PAID order is a no-op. A FAILED order
// may still become PAID: a late gateway success wins over an earlier
// failure determination.
func (s *Service) MarkPaid(ctx context.Context, id string) error {
	changed, err := s.orders.UpdatePaymentStatus(ctx, id, PaymentPaid, PaymentPending, PaymentFailed)
	if err != nil {
		return err
	}
	if changed {
		if o, err := s.orders.GetByID(ctx, id); err == nil {
			s.publish(ctx, EventPaid, o)
		}
	}
	return nil
}

// MarkFailed transitions the payment to FAILED. It never overwrites PAID or
// REFUNDED: an out-of-order failure event after a success is a no-op.
func (s *Service) MarkFailed(ctx context.Context, id string) error {
	_, err := s.orders.UpdatePaymentStatus(ctx, id, PaymentFailed, PaymentPending)
	return err
}

// MarkRefunded transitions a PAID payment to REFUNDED.
func (s *Service) MarkRefunded(ctx context.Context, id string) error {
	_, err := s.orders.UpdatePaymentStatus(ctx, id, PaymentRefunded, PaymentPaid)
	return err
}

func (s *Service) publish(ctx context.Context, typ EventType, o *Order) {
	if s.events == nil {
		return
	}
	s.events.Publish(ctx, Event{
		Type:       typ,
		OrderID:    o.ID,
		CustomerID: o.CustomerID,
		Total:      o.TotalAmount,
		At:         s.now(),
	})
}
