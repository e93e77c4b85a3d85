package handler

import (
	"net/http"
	"net/url"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"souq/internal/domain/order"
)

type paymentStatusResponse struct {
	OrderID       string              `json:"orderId"`
	Status        order.Status        `json:"status"`
	PaymentStatus order.PaymentStatus `json:"paymentStatus"`
}

// paymentStatus is the poll path of reconciliation: it re-verifies a PENDING
// payment against the gateway before answering, so a missed webhook cannot
// leave the customer staring at a stale status.
func (h *Handler) paymentStatus(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.customerID(w, r)
	if !ok {
		return
	}

	orderID := r.PathValue("orderID")
	o, err := h.orders.GetOrder(r.Context(), orderID, customerID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	o, err = h.reconciler.VerifyPending(r.Context(), o.ID)
	if err != nil {
		writeDomainError(w, r, errors.Wrap(err, "verify payment"))
		return
	}

	writeJSON(w, http.StatusOK, paymentStatusResponse{
		OrderID:       o.ID,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
	})
}

// paymentCallback lands the customer's browser after the hosted payment
// form. The gateway appends the payment id; we resolve it to an order, run
// verification, and bounce the browser to the storefront result page. The
// callback is a UX surface only: the webhook and poll paths carry the
// authoritative state, so every failure here degrades to a redirect with
// status=pending rather than an error page.
func (h *Handler) paymentCallback(w http.ResponseWriter, r *http.Request) {
	paymentID := r.URL.Query().Get("id")
	lg := zctx.From(r.Context()).With(zap.String("payment_id", paymentID))

	status := "pending"
	orderID := ""

	if paymentID != "" {
		if o, err := h.orders.FindByPaymentID(r.Context(), paymentID); err == nil {
			orderID = o.ID
			if refreshed, err := h.reconciler.VerifyPending(r.Context(), o.ID); err == nil {
				status = callbackStatus(refreshed.PaymentStatus)
			} else {
				lg.Warn("callback verification failed", zap.Error(err))
			}
		} else {
			lg.Warn("callback for unknown payment", zap.Error(err))
		}
	}

	q := url.Values{}
	q.Set("status", status)
	if orderID != "" {
		q.Set("orderId", orderID)
	}
	http.Redirect(w, r, h.cfg.FrontendURL+"/payment/result?"+q.Encode(), http.StatusFound)
}

func callbackStatus(s order.PaymentStatus) string {
	switch s {
	case order.PaymentPaid:
		return "paid"
	case order.PaymentFailed:
		return "failed"
	default:
		return "pending"
	}
}
