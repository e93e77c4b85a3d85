package handler

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"souq/internal/domain/auth"
	"souq/internal/domain/coupon"
	"souq/internal/domain/offer"
	"souq/internal/domain/order"
	"souq/internal/domain/product"
	"souq/internal/moyasar"
	"souq/internal/payment"
)

const (
	testCustomer = "cust-1"
	testAdminKey = "admin-test-key"
	testPepper   = "test-pepper"
	testSecret   = "webhook-secret"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// --- Mocks ---

type mockProductRepo struct {
	products map[string]*product.Product
}

func (m *mockProductRepo) List(_ context.Context) ([]product.Product, error) {
	out := make([]product.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, *p)
	}
	return out, nil
}

func (m *mockProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return p, nil
}

type mockCouponRepo struct {
	byCode map[string]*coupon.Coupon
}

func (m *mockCouponRepo) FindByCode(_ context.Context, code string) (*coupon.Coupon, error) {
	c, ok := m.byCode[code]
	if !ok {
		return nil, coupon.ErrNotFound
	}
	return c, nil
}

type mockOfferRepo struct {
	global *offer.Offer
}

func (m *mockOfferRepo) ActiveGlobal(_ context.Context, _ time.Time) (*offer.Offer, error) {
	return m.global, nil
}

// mockOrderRepo must be safe for concurrent use: webhook processing mutates
// it from a detached goroutine while the test polls.
type mockOrderRepo struct {
	mu   sync.Mutex
	byID map[string]*order.Order

	paymentIDs map[string]string
}

func newMockOrderRepo(orders ...*order.Order) *mockOrderRepo {
	byID := make(map[string]*order.Order, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
	}
	return &mockOrderRepo{byID: byID, paymentIDs: make(map[string]string)}
}

func (m *mockOrderRepo) Create(_ context.Context, o *order.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o.OrderNumber = int64(len(m.byID) + 1)
	m.byID[o.ID] = o
	return nil
}

func (m *mockOrderRepo) GetByID(_ context.Context, id string) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *mockOrderRepo) GetByPaymentID(_ context.Context, paymentID string) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.byID {
		if o.PaymentID == paymentID {
			cp := *o
			return &cp, nil
		}
	}
	return nil, order.ErrNotFound
}

func (m *mockOrderRepo) ListByCustomer(_ context.Context, customerID string, _, _ int) ([]order.Order, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []order.Order
	for _, o := range m.byID {
		if o.CustomerID == customerID {
			out = append(out, *o)
		}
	}
	return out, len(out), nil
}

func (m *mockOrderRepo) Cancel(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[id]
	if !ok || o.Status != order.StatusPending {
		return false, nil
	}
	o.Status = order.StatusCancelled
	return true, nil
}

func (m *mockOrderRepo) UpdateStatus(_ context.Context, id string, status order.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.byID[id]; ok {
		o.Status = status
	}
	return nil
}

func (m *mockOrderRepo) SetPaymentID(_ context.Context, id, paymentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paymentIDs[id] = paymentID
	if o, ok := m.byID[id]; ok && o.PaymentID == "" {
		o.PaymentID = paymentID
	}
	return nil
}

func (m *mockOrderRepo) UpdatePaymentStatus(_ context.Context, id string, to order.PaymentStatus, from ...order.PaymentStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[id]
	if !ok {
		return false, nil
	}
	allowed := false
	for _, f := range from {
		if o.PaymentStatus == f {
			allowed = true
			break
		}
	}
	if !allowed {
		return false, nil
	}
	o.PaymentStatus = to
	if to == order.PaymentPaid && o.Status == order.StatusPending {
		o.Status = order.StatusConfirmed
	}
	return true, nil
}

func (m *mockOrderRepo) paymentStatusOf(id string) order.PaymentStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byID[id].PaymentStatus
}

type mockGateway struct {
	payment   *moyasar.Payment
	createErr error
	verifyErr error

	mu      sync.Mutex
	created []moyasar.CreatePaymentRequest
}

func (m *mockGateway) CreatePayment(_ context.Context, req moyasar.CreatePaymentRequest) (*moyasar.Payment, error) {
	m.mu.Lock()
	m.created = append(m.created, req)
	m.mu.Unlock()
	if m.createErr != nil {
		return nil, m.createErr
	}
	return m.payment, nil
}

func (m *mockGateway) VerifyPayment(_ context.Context, _ string, _ int64, _ string) (*moyasar.Payment, error) {
	if m.verifyErr != nil {
		return nil, m.verifyErr
	}
	return m.payment, nil
}

type mockAPIKeyRepo struct {
	byHash map[string]*auth.APIKeyInfo
}

func (m *mockAPIKeyRepo) FindByHash(_ context.Context, hash string) (*auth.APIKeyInfo, error) {
	info, ok := m.byHash[hash]
	if !ok {
		return nil, errors.New("api key not found")
	}
	return info, nil
}

// --- Harness ---

type fixture struct {
	handler *Handler
	mux     *http.ServeMux
	orders  *mockOrderRepo
	gateway *mockGateway
}

func hmacHex(key []byte, data []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil))
}

func newFixture(t *testing.T, orders ...*order.Order) *fixture {
	t.Helper()

	products := &mockProductRepo{products: map[string]*product.Product{
		"p1": {ID: "p1", Name: "Shawarma", Price: dec("25"), Category: "food", Active: true},
		"p2": {ID: "p2", Name: "Karak", Price: dec("5"), Category: "drinks", Active: true},
		"p3": {ID: "p3", Name: "Laban", Price: dec("4"), Category: "drinks", Active: false},
	}}

	orderRepo := newMockOrderRepo(orders...)
	gw := &mockGateway{payment: &moyasar.Payment{
		ID:     "pay_1",
		Status: moyasar.StatusInitiated,
		Source: moyasar.Source{Type: "creditcard", TransactionURL: "https://gw.example/3ds"},
	}}

	pricer := order.NewPricer(products, &mockCouponRepo{}, &mockOfferRepo{})
	subunits := func(amount decimal.Decimal) int64 {
		return moyasar.ToSubunits(amount, "SAR")
	}
	svc := order.NewService(pricer, orderRepo, nil, "SAR", subunits)
	reconciler := payment.NewReconciler(orderRepo, svc, gw)

	adminHash := hmacHex([]byte(testPepper), []byte(testAdminKey))
	apikeys := &mockAPIKeyRepo{byHash: map[string]*auth.APIKeyInfo{
		adminHash: {ID: "k1", KeyHash: adminHash, Name: "test", Scopes: []string{"admin"}},
	}}

	h := NewHandler(
		Config{
			PublicBaseURL: "https://api.souq.example",
			FrontendURL:   "https://souq.example",
			WebhookSecret: testSecret,
			APIKeyPepper:  []byte(testPepper),
			Currency:      "SAR",
		},
		products, svc, reconciler, gw, apikeys, nil,
	)

	return &fixture{handler: h, mux: h.Routes(), orders: orderRepo, gateway: gw}
}

func (f *fixture) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func asCustomer() map[string]string {
	return map[string]string{customerHeader: testCustomer}
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

// --- Products ---

func TestListProducts_ActiveOnly(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/products", nil, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[struct {
		Products []productResponse `json:"products"`
	}](t, rec)
	require.Len(t, resp.Products, 2, "inactive products must be hidden")
	for _, p := range resp.Products {
		assert.NotEqual(t, "p3", p.ID)
	}
}

// --- Order placement ---

func codOrderBody() map[string]any {
	return map[string]any{
		"items":         []map[string]any{{"productId": "p1", "quantity": 2}},
		"paymentMethod": "COD",
		"shippingAddress": map[string]any{
			"name": "A", "phone": "+966500000000", "line1": "King Fahd Rd", "city": "Riyadh",
		},
	}
}

func TestPlaceOrder_RequiresCustomer(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/orders", codOrderBody(), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPlaceOrder_InvalidBody(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader("{not json"))
	req.Header.Set(customerHeader, testCustomer)
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPlaceOrder_EmptyItems(t *testing.T) {
	f := newFixture(t)
	body := codOrderBody()
	body["items"] = []map[string]any{}

	rec := f.do(t, http.MethodPost, "/api/v1/orders", body, asCustomer())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPlaceOrder_UnknownProduct(t *testing.T) {
	f := newFixture(t)
	body := codOrderBody()
	body["items"] = []map[string]any{{"productId": "missing", "quantity": 1}}

	rec := f.do(t, http.MethodPost, "/api/v1/orders", body, asCustomer())
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestPlaceOrder_UnknownPaymentMethod(t *testing.T) {
	f := newFixture(t)
	body := codOrderBody()
	body["paymentMethod"] = "WIRE"

	rec := f.do(t, http.MethodPost, "/api/v1/orders", body, asCustomer())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPlaceOrder_COD(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/orders", codOrderBody(), asCustomer())

	require.Equal(t, http.StatusCreated, rec.Code)
	resp := decodeBody[placeOrderResponse](t, rec)
	assert.Equal(t, order.StatusConfirmed, resp.Status)
	assert.Equal(t, order.PaymentPending, resp.PaymentStatus)
	assert.True(t, dec("50").Equal(resp.TotalAmount))
	assert.Nil(t, resp.Payment, "COD orders never get a gateway payment")
	assert.Empty(t, f.gateway.created)
}

func TestPlaceOrder_Online_RedirectsToGateway(t *testing.T) {
	f := newFixture(t)
	body := codOrderBody()
	body["paymentMethod"] = "ONLINE"

	rec := f.do(t, http.MethodPost, "/api/v1/orders", body, asCustomer())

	require.Equal(t, http.StatusCreated, rec.Code)
	resp := decodeBody[placeOrderResponse](t, rec)
	assert.Equal(t, order.StatusPending, resp.Status)
	require.NotNil(t, resp.Payment)
	assert.Equal(t, "pay_1", resp.Payment.PaymentID)
	assert.Equal(t, "https://gw.example/3ds", resp.Payment.TransactionURL)

	require.Len(t, f.gateway.created, 1)
	created := f.gateway.created[0]
	assert.Equal(t, int64(5000), created.Amount)
	assert.Equal(t, "SAR", created.Currency)
	assert.Equal(t, "https://api.souq.example/api/v1/payments/callback", created.CallbackURL)
	assert.Equal(t, resp.ID, created.Metadata["order_id"])
	assert.Equal(t, "pay_1", f.orders.paymentIDs[resp.ID])
}

func TestPlaceOrder_Online_GatewayDown(t *testing.T) {
	f := newFixture(t)
	f.gateway.createErr = &moyasar.APIError{StatusCode: 503, Message: "unavailable"}
	body := codOrderBody()
	body["paymentMethod"] = "ONLINE"

	rec := f.do(t, http.MethodPost, "/api/v1/orders", body, asCustomer())

	// The order survives so the client can retry payment later.
	require.Equal(t, http.StatusBadGateway, rec.Code)
	resp := decodeBody[map[string]any](t, rec)
	orderID, _ := resp["orderId"].(string)
	require.NotEmpty(t, orderID)

	o, err := f.orders.GetByID(context.Background(), orderID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusPending, o.Status)
}

// --- Order reads and cancellation ---

func TestGetOrder_OwnerScoped(t *testing.T) {
	f := newFixture(t, &order.Order{ID: "o1", CustomerID: testCustomer, Status: order.StatusPending})

	rec := f.do(t, http.MethodGet, "/api/v1/orders/o1", nil, asCustomer())
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/orders/o1", nil,
		map[string]string{customerHeader: "someone-else"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListOrders(t *testing.T) {
	f := newFixture(t,
		&order.Order{ID: "o1", CustomerID: testCustomer},
		&order.Order{ID: "o2", CustomerID: "other"},
	)

	rec := f.do(t, http.MethodGet, "/api/v1/orders?limit=5", nil, asCustomer())

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[struct {
		Orders []orderResponse `json:"orders"`
		Total  int             `json:"total"`
		Limit  int             `json:"limit"`
	}](t, rec)
	assert.Equal(t, 1, resp.Total)
	assert.Equal(t, 5, resp.Limit)
	require.Len(t, resp.Orders, 1)
	assert.Equal(t, "o1", resp.Orders[0].ID)
}

func TestCancelOrder(t *testing.T) {
	t.Run("pending order cancels", func(t *testing.T) {
		f := newFixture(t, &order.Order{ID: "o1", CustomerID: testCustomer, Status: order.StatusPending})

		rec := f.do(t, http.MethodPost, "/api/v1/orders/o1/cancel", nil, asCustomer())

		require.Equal(t, http.StatusOK, rec.Code)
		resp := decodeBody[orderResponse](t, rec)
		assert.Equal(t, order.StatusCancelled, resp.Status)
	})

	t.Run("confirmed order conflicts", func(t *testing.T) {
		f := newFixture(t, &order.Order{ID: "o1", CustomerID: testCustomer, Status: order.StatusConfirmed})

		rec := f.do(t, http.MethodPost, "/api/v1/orders/o1/cancel", nil, asCustomer())
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

// --- Admin ---

func TestAdminUpdateStatus(t *testing.T) {
	body := map[string]string{"status": "PREPARING"}

	t.Run("no key", func(t *testing.T) {
		f := newFixture(t, &order.Order{ID: "o1", Status: order.StatusConfirmed})

		rec := f.do(t, http.MethodPut, "/api/v1/admin/orders/o1/status", body, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong key", func(t *testing.T) {
		f := newFixture(t, &order.Order{ID: "o1", Status: order.StatusConfirmed})

		rec := f.do(t, http.MethodPut, "/api/v1/admin/orders/o1/status", body,
			map[string]string{apiKeyHeader: "not-the-key"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid key updates status", func(t *testing.T) {
		f := newFixture(t, &order.Order{ID: "o1", Status: order.StatusConfirmed})

		rec := f.do(t, http.MethodPut, "/api/v1/admin/orders/o1/status", body,
			map[string]string{apiKeyHeader: testAdminKey})

		require.Equal(t, http.StatusOK, rec.Code)
		o, err := f.orders.GetByID(context.Background(), "o1")
		require.NoError(t, err)
		assert.Equal(t, order.StatusPreparing, o.Status)
	})

	t.Run("unknown status rejected", func(t *testing.T) {
		f := newFixture(t, &order.Order{ID: "o1", Status: order.StatusConfirmed})

		rec := f.do(t, http.MethodPut, "/api/v1/admin/orders/o1/status",
			map[string]string{"status": "TELEPORTED"},
			map[string]string{apiKeyHeader: testAdminKey})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

// --- Payment status and callback ---

func pendingOnlineOrder() *order.Order {
	return &order.Order{
		ID:            "o1",
		CustomerID:    testCustomer,
		Status:        order.StatusPending,
		PaymentStatus: order.PaymentPending,
		PaymentMethod: order.PaymentOnline,
		PaymentID:     "pay_1",
		TotalSubunits: 5000,
		Currency:      "SAR",
	}
}

func TestPaymentStatus_VerifiesPending(t *testing.T) {
	f := newFixture(t, pendingOnlineOrder())
	f.gateway.payment = &moyasar.Payment{ID: "pay_1", Status: moyasar.StatusPaid, Amount: 5000, Currency: "SAR"}

	rec := f.do(t, http.MethodGet, "/api/v1/payments/o1/status", nil, asCustomer())

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[paymentStatusResponse](t, rec)
	assert.Equal(t, order.PaymentPaid, resp.PaymentStatus)
	assert.Equal(t, order.StatusConfirmed, resp.Status)
}

func TestPaymentStatus_GatewayUnreachableStaysPending(t *testing.T) {
	f := newFixture(t, pendingOnlineOrder())
	f.gateway.verifyErr = &moyasar.APIError{StatusCode: 503, Message: "unavailable"}

	rec := f.do(t, http.MethodGet, "/api/v1/payments/o1/status", nil, asCustomer())

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[paymentStatusResponse](t, rec)
	assert.Equal(t, order.PaymentPending, resp.PaymentStatus)
}

func TestPaymentCallback_RedirectsPaid(t *testing.T) {
	f := newFixture(t, pendingOnlineOrder())
	f.gateway.payment = &moyasar.Payment{ID: "pay_1", Status: moyasar.StatusPaid, Amount: 5000, Currency: "SAR"}

	rec := f.do(t, http.MethodGet, "/api/v1/payments/callback?id=pay_1", nil, nil)

	require.Equal(t, http.StatusFound, rec.Code)
	loc := rec.Header().Get("Location")
	assert.Contains(t, loc, "https://souq.example/payment/result")
	assert.Contains(t, loc, "status=paid")
	assert.Contains(t, loc, "orderId=o1")
}

func TestPaymentCallback_UnknownPaymentDegradesToPending(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/payments/callback?id=pay_unknown", nil, nil)

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), "status=pending")
}

// --- Webhook ---

func webhookBody(t *testing.T, eventType, paymentID string) []byte {
	t.Helper()
	data, err := json.Marshal(map[string]any{
		"type": eventType,
		"data": map[string]any{"id": paymentID, "status": "paid", "amount": 5000, "currency": "SAR"},
	})
	require.NoError(t, err)
	return data
}

func postWebhook(t *testing.T, f *fixture, body []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/moyasar", bytes.NewReader(body))
	if signature != "" {
		req.Header.Set(moyasar.SignatureHeader, signature)
	}
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func TestWebhook_RejectsBadSignature(t *testing.T) {
	f := newFixture(t, pendingOnlineOrder())
	body := webhookBody(t, moyasar.EventPaymentPaid, "pay_1")

	rec := postWebhook(t, f, body, "deadbeef")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = postWebhook(t, f, body, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebhook_RejectsBadPayload(t *testing.T) {
	f := newFixture(t)
	body := []byte(`{"no_type": true}`)

	rec := postWebhook(t, f, body, hmacHex([]byte(testSecret), body))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhook_PaidEventMarksOrderPaid(t *testing.T) {
	f := newFixture(t, pendingOnlineOrder())
	body := webhookBody(t, moyasar.EventPaymentPaid, "pay_1")

	rec := postWebhook(t, f, body, hmacHex([]byte(testSecret), body))

	// Ack is synchronous, processing is not.
	require.Equal(t, http.StatusOK, rec.Code)
	require.Eventually(t, func() bool {
		return f.orders.paymentStatusOf("o1") == order.PaymentPaid
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWebhook_DuplicateDeliveryIsIdempotent(t *testing.T) {
	f := newFixture(t, pendingOnlineOrder())
	body := webhookBody(t, moyasar.EventPaymentPaid, "pay_1")
	sig := hmacHex([]byte(testSecret), body)

	for i := 0; i < 3; i++ {
		rec := postWebhook(t, f, body, sig)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	require.Eventually(t, func() bool {
		return f.orders.paymentStatusOf("o1") == order.PaymentPaid
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWebhook_UnknownPaymentAcked(t *testing.T) {
	f := newFixture(t)
	body := webhookBody(t, moyasar.EventPaymentPaid, "pay_ghost")

	rec := postWebhook(t, f, body, hmacHex([]byte(testSecret), body))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhook_SkipVerification(t *testing.T) {
	f := newFixture(t, pendingOnlineOrder())
	f.handler.cfg.SkipWebhookVerify = true
	body := webhookBody(t, moyasar.EventPaymentPaid, "pay_1")

	rec := postWebhook(t, f, body, "")

	require.Equal(t, http.StatusOK, rec.Code)
	require.Eventually(t, func() bool {
		return f.orders.paymentStatusOf("o1") == order.PaymentPaid
	}, 2*time.Second, 10*time.Millisecond)
}
