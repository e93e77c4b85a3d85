// Package payment reconciles external gateway state with local order state.
// Two entry points converge on the same lifecycle transitions: webhook
// deliveries pushed by the gateway, and poll-driven verification triggered by
// clients. Both are idempotent under duplicate or out-of-order delivery; the
// conditional payment-status update in the order store is what makes
// re-applying a transition a no-op.
package payment

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"souq/internal/domain/order"
	"souq/internal/moyasar"
)

// Gateway is the slice of the payment gateway the reconciler depends on.
type Gateway interface {
	VerifyPayment(ctx context.Context, id string, expectedAmount int64, expectedCurrency string) (*moyasar.Payment, error)
}

// Lifecycle is the slice of the order service the reconciler drives.
type Lifecycle interface {
	MarkPaid(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
	MarkRefunded(ctx context.Context, id string) error
}

// OrderSource reads orders for reconciliation.
type OrderSource interface {
	GetByID(ctx context.Context, id string) (*order.Order, error)
	GetByPaymentID(ctx context.Context, paymentID string) (*order.Order, error)
}

// Reconciler aligns local payment state with the gateway's.
type Reconciler struct {
	orders    OrderSource
	lifecycle Lifecycle
	gateway   Gateway
}

// NewReconciler creates a Reconciler.
func NewReconciler(orders OrderSource, lifecycle Lifecycle, gateway Gateway) *Reconciler {
	return &Reconciler{
		orders:    orders,
		lifecycle: lifecycle,
		gateway:   gateway,
	}
}

// HandleEvent applies a webhook event to the matching order.
//
// A delivery for an unknown payment ID is logged and dropped, not an error:
// surfacing an error would make the gateway retry a delivery that can never
// succeed. Informational events (authorized/captured/verified) are no-ops;
// payment_paid carries the final state.
func (r *Reconciler) HandleEvent(ctx context.Context, ev *moyasar.Event) error {
	lg := zctx.From(ctx).With(
		zap.String("event_type", ev.Type),
		zap.String("payment_id", ev.Payment.ID),
	)

	o, err := r.orders.GetByPaymentID(ctx, ev.Payment.ID)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			lg.Info("webhook for unknown payment, dropping")
			return nil
		}
		return errors.Wrap(err, "find order by payment id")
	}
	lg = lg.With(zap.String("order_id", o.ID))

	switch ev.Type {
	case moyasar.EventPaymentPaid:
		if err := r.lifecycle.MarkPaid(ctx, o.ID); err != nil {
			return errors.Wrap(err, "mark paid")
		}
		lg.Info("order marked paid")
	case moyasar.EventPaymentFailed, moyasar.EventPaymentVoided:
		if err := r.lifecycle.MarkFailed(ctx, o.ID); err != nil {
			return errors.Wrap(err, "mark failed")
		}
		lg.Info("order marked failed")
	case moyasar.EventPaymentRefunded:
		if err := r.lifecycle.MarkRefunded(ctx, o.ID); err != nil {
			return errors.Wrap(err, "mark refunded")
		}
		lg.Info("order marked refunded")
	case moyasar.EventPaymentAuthorized, moyasar.EventPaymentCaptured, moyasar.EventPaymentVerified:
		lg.Debug("informational payment event, no action")
	default:
		lg.Warn("unknown payment event type")
	}
	return nil
}

// VerifyPending is the poll-driven path: when the order's payment is still
// PENDING and a gateway payment exists, it synchronously verifies the
// payment (amount and currency must match exactly what was computed at
// placement) and applies the same transitions the webhook path would.
//
// Transient gateway failures (network, timeout, 5xx) leave the order PENDING
// for a later poll or webhook; only an explicit failed/voided determination
// from the gateway flips the payment to FAILED. The refreshed order is
// returned in all non-error cases.
func (r *Reconciler) VerifyPending(ctx context.Context, orderID string) (*order.Order, error) {
	o, err := r.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.PaymentStatus != order.PaymentPending || o.PaymentID == "" {
		return o, nil
	}

	lg := zctx.From(ctx).With(
		zap.String("order_id", o.ID),
		zap.String("payment_id", o.PaymentID),
	)

	_, err = r.gateway.VerifyPayment(ctx, o.PaymentID, o.TotalSubunits, o.Currency)
	switch {
	case err == nil:
		if err := r.lifecycle.MarkPaid(ctx, o.ID); err != nil {
			return nil, errors.Wrap(err, "mark paid")
		}
		lg.Info("poll verification succeeded, order marked paid")

	case isDefinitiveFailure(err):
		if err := r.lifecycle.MarkFailed(ctx, o.ID); err != nil {
			return nil, errors.Wrap(err, "mark failed")
		}
		lg.Info("gateway reported payment failed", zap.Error(err))

	default:
		// Transient or inconclusive (gateway unreachable, payment still in
		// progress, mismatch on a non-final state): keep PENDING.
		lg.Warn("payment verification inconclusive, order stays pending", zap.Error(err))
	}

	return r.orders.GetByID(ctx, orderID)
}

// isDefinitiveFailure reports whether the verification error is a final
// not-paid determination from the gateway rather than a transient failure.
func isDefinitiveFailure(err error) bool {
	var vErr *moyasar.VerificationError
	if !errors.As(err, &vErr) {
		return false
	}
	return vErr.Status == moyasar.StatusFailed || vErr.Status == moyasar.StatusVoided
}
