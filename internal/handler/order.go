package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"souq/internal/domain/order"
	"souq/internal/moyasar"
)

type placeOrderRequest struct {
	Items           []orderItemRequest `json:"items"`
	CouponCode      string             `json:"couponCode,omitempty"`
	PaymentMethod   string             `json:"paymentMethod"`
	ShippingAddress order.Address      `json:"shippingAddress"`
}

type orderItemRequest struct {
	ProductID string        `json:"productId"`
	Quantity  int           `json:"quantity"`
	Modifiers []modifierRef `json:"modifiers,omitempty"`
}

type modifierRef struct {
	ModifierID string `json:"modifierId"`
	OptionID   string `json:"optionId"`
}

type orderItemResponse struct {
	ProductID         string                    `json:"productId"`
	Quantity          int                       `json:"quantity"`
	UnitPrice         decimal.Decimal           `json:"unitPrice"`
	TotalPrice        decimal.Decimal           `json:"totalPrice"`
	SelectedModifiers []order.ModifierSelection `json:"selectedModifiers,omitempty"`
}

type orderResponse struct {
	ID             string              `json:"id"`
	OrderNumber    int64               `json:"orderNumber"`
	Status         order.Status        `json:"status"`
	PaymentStatus  order.PaymentStatus `json:"paymentStatus"`
	PaymentMethod  order.PaymentMethod `json:"paymentMethod"`
	Items          []orderItemResponse `json:"items"`
	TotalAmount    decimal.Decimal     `json:"totalAmount"`
	DiscountAmount decimal.Decimal     `json:"discountAmount"`
	Currency       string              `json:"currency"`
	CreatedAt      string              `json:"createdAt"`
}

type placeOrderResponse struct {
	orderResponse
	Payment *paymentRedirect `json:"payment,omitempty"`
}

type paymentRedirect struct {
	PaymentID      string `json:"paymentId"`
	TransactionURL string `json:"transactionUrl,omitempty"`
}

func toOrderResponse(o *order.Order) orderResponse {
	items := make([]orderItemResponse, len(o.Items))
	for i, it := range o.Items {
		items[i] = orderItemResponse{
			ProductID:         it.ProductID,
			Quantity:          it.Quantity,
			UnitPrice:         it.UnitPrice.Round(2),
			TotalPrice:        it.TotalPrice.Round(2),
			SelectedModifiers: it.SelectedModifiers,
		}
	}
	return orderResponse{
		ID:             o.ID,
		OrderNumber:    o.OrderNumber,
		Status:         o.Status,
		PaymentStatus:  o.PaymentStatus,
		PaymentMethod:  o.PaymentMethod,
		Items:          items,
		TotalAmount:    o.TotalAmount,
		DiscountAmount: o.DiscountAmount,
		Currency:       o.Currency,
		CreatedAt:      o.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

// placeOrder prices and persists an order. For ONLINE payment it then
// initiates a gateway payment and returns the 3DS redirect URL; a gateway
// failure at that point leaves the placed order PENDING so the client can
// retry payment, rather than rolling back a priced order.
func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.customerID(w, r)
	if !ok {
		return
	}

	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	items := make([]order.ItemRequest, len(req.Items))
	for i, it := range req.Items {
		refs := make([]order.ModifierRef, len(it.Modifiers))
		for j, m := range it.Modifiers {
			refs[j] = order.ModifierRef{ModifierID: m.ModifierID, OptionID: m.OptionID}
		}
		items[i] = order.ItemRequest{ProductID: it.ProductID, Quantity: it.Quantity, Modifiers: refs}
	}

	result, err := h.orders.PlaceOrder(r.Context(), order.PlaceOrderRequest{
		CustomerID:    customerID,
		Items:         items,
		CouponCode:    req.CouponCode,
		PaymentMethod: order.PaymentMethod(req.PaymentMethod),
		Address:       req.ShippingAddress,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	h.metrics.ordersPlaced.Add(r.Context(), 1, metric.WithAttributes(
		attribute.String("payment_method", string(result.Order.PaymentMethod)),
	))

	resp := placeOrderResponse{orderResponse: toOrderResponse(result.Order)}
	if result.Order.PaymentMethod == order.PaymentOnline {
		redirect, err := h.initiatePayment(r, result.Order)
		if err != nil {
			// The order is already placed; surface the id so payment can be
			// retried or reconciled later.
			zctx.From(r.Context()).Error("initiate payment",
				zap.String("order_id", result.Order.ID), zap.Error(err))
			writeJSON(w, http.StatusBadGateway, map[string]any{
				"code":    http.StatusBadGateway,
				"message": "payment initiation failed, retry later",
				"orderId": result.Order.ID,
			})
			return
		}
		resp.Payment = redirect
	}

	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) initiatePayment(r *http.Request, o *order.Order) (*paymentRedirect, error) {
	p, err := h.gateway.CreatePayment(r.Context(), moyasar.CreatePaymentRequest{
		Amount:      o.TotalSubunits,
		Currency:    o.Currency,
		Description: "order #" + strconv.FormatInt(o.OrderNumber, 10),
		CallbackURL: h.cfg.PublicBaseURL + "/api/v1/payments/callback",
		Metadata:    map[string]string{"order_id": o.ID},
	})
	if err != nil {
		return nil, errors.Wrap(err, "create gateway payment")
	}

	if err := h.orders.AttachPayment(r.Context(), o.ID, p.ID); err != nil {
		return nil, errors.Wrap(err, "attach payment")
	}

	redirect := &paymentRedirect{PaymentID: p.ID}
	if p.RequiresRedirect() {
		redirect.TransactionURL = p.Source.TransactionURL
	}
	return redirect, nil
}

// listOrders returns a page of the customer's orders, newest first.
func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.customerID(w, r)
	if !ok {
		return
	}

	limit := queryInt(r, "limit", 20, 100)
	offset := queryInt(r, "offset", 0, 1<<30)

	orders, total, err := h.orders.ListOrders(r.Context(), customerID, limit, offset)
	if err != nil {
		writeDomainError(w, r, errors.Wrap(err, "list orders"))
		return
	}

	resp := make([]orderResponse, len(orders))
	for i := range orders {
		resp[i] = toOrderResponse(&orders[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"orders": resp,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// getOrder returns one of the customer's orders.
func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.customerID(w, r)
	if !ok {
		return
	}

	o, err := h.orders.GetOrder(r.Context(), r.PathValue("id"), customerID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

// cancelOrder cancels a PENDING order owned by the customer.
func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.customerID(w, r)
	if !ok {
		return
	}

	id := r.PathValue("id")
	if err := h.orders.CancelOrder(r.Context(), id, customerID); err != nil {
		writeDomainError(w, r, err)
		return
	}

	o, err := h.orders.GetOrder(r.Context(), id, customerID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func queryInt(r *http.Request, name string, def, max int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	if v > max {
		return max
	}
	return v
}
