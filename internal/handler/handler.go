// Package handler exposes the HTTP API: catalog reads, order placement and
// lifecycle, payment status and callbacks, the gateway webhook, and the
// admin surface. Handlers stay thin; all business rules live in the domain
// services.
package handler

import (
	"context"
	"net/http"
	"time"

	"souq/internal/domain/auth"
	"souq/internal/domain/order"
	"souq/internal/domain/product"
	"souq/internal/moyasar"
	"souq/internal/payment"
)

// customerHeader identifies the requesting customer. Full authentication is
// out of scope for this service; the gateway in front of it fills the header.
const customerHeader = "X-Customer-ID"

// PaymentGateway is the slice of the gateway client the handlers use
// directly. Verification goes through the payment.Reconciler instead.
type PaymentGateway interface {
	CreatePayment(ctx context.Context, req moyasar.CreatePaymentRequest) (*moyasar.Payment, error)
}

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// PublicBaseURL is this service's externally reachable base URL, used to
	// build the gateway callback URL.
	PublicBaseURL string
	// FrontendURL is where payment callbacks redirect the customer to.
	FrontendURL string
	// WebhookSecret signs gateway webhook deliveries. Empty disables
	// signature verification only when SkipWebhookVerify is also set.
	WebhookSecret string
	// SkipWebhookVerify explicitly opts out of webhook signature checks.
	// Meant for local development against the gateway sandbox.
	SkipWebhookVerify bool
	// APIKeyPepper is the HMAC key for hashing admin API keys.
	APIKeyPepper []byte
	// Currency is the store currency, e.g. "SAR".
	Currency string
}

// Handler carries the wired dependencies for every route.
type Handler struct {
	cfg        Config
	products   product.Repository
	orders     *order.Service
	reconciler *payment.Reconciler
	gateway    PaymentGateway
	apikeys    auth.Repository
	metrics    *Metrics

	now func() time.Time
}

// NewHandler constructs a Handler with the required domain dependencies.
// A nil metrics falls back to noop instruments.
func NewHandler(
	cfg Config,
	products product.Repository,
	orders *order.Service,
	reconciler *payment.Reconciler,
	gateway PaymentGateway,
	apikeys auth.Repository,
	metrics *Metrics,
) *Handler {
	if metrics == nil {
		metrics = noopMetrics()
	}
	return &Handler{
		cfg:        cfg,
		products:   products,
		orders:     orders,
		reconciler: reconciler,
		gateway:    gateway,
		apikeys:    apikeys,
		metrics:    metrics,
		now:        time.Now,
	}
}

// Routes returns the route table. Method and path matching is delegated to
// the standard mux patterns.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/products", h.listProducts)

	mux.HandleFunc("POST /api/v1/orders", h.placeOrder)
	mux.HandleFunc("GET /api/v1/orders", h.listOrders)
	mux.HandleFunc("GET /api/v1/orders/{id}", h.getOrder)
	mux.HandleFunc("POST /api/v1/orders/{id}/cancel", h.cancelOrder)

	mux.HandleFunc("GET /api/v1/payments/{orderID}/status", h.paymentStatus)
	mux.HandleFunc("GET /api/v1/payments/callback", h.paymentCallback)

	mux.HandleFunc("PUT /api/v1/admin/orders/{id}/status", h.requireAPIKey(h.adminUpdateStatus))

	mux.HandleFunc("POST /api/webhooks/moyasar", h.webhook)

	return mux
}

// customerID extracts the caller identity, or writes 401 and reports false.
func (h *Handler) customerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.Header.Get(customerHeader)
	if id == "" {
		writeError(w, http.StatusUnauthorized, "customer identification required")
		return "", false
	}
	return id, true
}
