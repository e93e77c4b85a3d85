// Package moyasar is a minimal client for the Moyasar payment gateway API
// (https://docs.moyasar.com/): payment creation, retrieval, verification,
// refunds, and webhook signature checking. Amounts on the wire are integers
// in the smallest currency unit.
package moyasar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
)

// DefaultBaseURL is the production Moyasar API endpoint.
const DefaultBaseURL = "https://api.moyasar.com/v1"

// defaultTimeout bounds every gateway call. Verification treats a timeout as
// transient, so a stuck gateway never blocks a request handler for long.
const defaultTimeout = 10 * time.Second

// Payment statuses reported by the gateway.
const (
	StatusInitiated = "initiated"
	StatusPaid      = "paid"
	StatusFailed    = "failed"
	StatusRefunded  = "refunded"
	StatusVoided    = "voided"
)

// Payment is a gateway payment resource.
type Payment struct {
	ID          string            `json:"id"`
	Status      string            `json:"status"`
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Description string            `json:"description,omitempty"`
	Source      Source            `json:"source"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Source describes how a payment is (being) settled.
type Source struct {
	Type           string `json:"type"`
	TransactionURL string `json:"transaction_url,omitempty"`
}

// RequiresRedirect reports whether the payer must be redirected to complete
// 3-D Secure authentication.
func (p *Payment) RequiresRedirect() bool {
	return p.Status == StatusInitiated && p.Source.TransactionURL != ""
}

// CreatePaymentRequest holds the parameters for creating a payment.
type CreatePaymentRequest struct {
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Description string            `json:"description,omitempty"`
	CallbackURL string            `json:"callback_url,omitempty"`
	Source      map[string]string `json:"source,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// APIError is a non-2xx response from the gateway.
type APIError struct {
	StatusCode int
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("moyasar: %d %s", e.StatusCode, e.Message)
}

// Temporary reports whether retrying later could succeed. Gateway 5xx and
// 429 responses are transient; 4xx are not.
func (e *APIError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// VerificationError means the gateway answered but the payment does not
// match what we expected. Status carries the gateway's reported payment
// status so callers can tell a final failure from a payment still in flight.
type VerificationError struct {
	Status string
	Reason string
}

func (e *VerificationError) Error() string {
	return "payment verification failed: " + e.Reason
}

// Client calls the Moyasar REST API using secret-key basic auth.
type Client struct {
	baseURL   string
	secretKey string
	httpc     *http.Client
}

// NewClient creates a Client. baseURL may be empty to use the production API.
func NewClient(baseURL, secretKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		secretKey: secretKey,
		httpc:     &http.Client{Timeout: defaultTimeout},
	}
}

// CreatePayment creates a payment and returns the gateway resource,
// including the 3DS transaction URL when a redirect is required.
func (c *Client) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*Payment, error) {
	return c.do(ctx, http.MethodPost, "/payments", req)
}

// GetPayment fetches a payment by its gateway ID.
func (c *Client) GetPayment(ctx context.Context, id string) (*Payment, error) {
	return c.do(ctx, http.MethodGet, "/payments/"+id, nil)
}

// RefundPayment refunds a payment. A zero amount refunds in full.
func (c *Client) RefundPayment(ctx context.Context, id string, amount int64) (*Payment, error) {
	body := struct {
		Amount int64 `json:"amount,omitempty"`
	}{Amount: amount}
	return c.do(ctx, http.MethodPost, "/payments/"+id+"/refund", body)
}

// VerifyPayment fetches the payment and checks that it is paid with exactly
// the expected amount and currency. A mismatch or a non-paid status yields a
// *VerificationError; transport and gateway errors pass through unchanged so
// callers can distinguish transient failures from determinations.
func (c *Client) VerifyPayment(ctx context.Context, id string, expectedAmount int64, expectedCurrency string) (*Payment, error) {
	p, err := c.GetPayment(ctx, id)
	if err != nil {
		return nil, err
	}

	if p.Status != StatusPaid {
		return p, &VerificationError{Status: p.Status, Reason: fmt.Sprintf("payment status is %s, expected paid", p.Status)}
	}
	if p.Amount != expectedAmount {
		return p, &VerificationError{Status: p.Status, Reason: fmt.Sprintf("amount mismatch: expected %d, got %d", expectedAmount, p.Amount)}
	}
	if !strings.EqualFold(p.Currency, expectedCurrency) {
		return p, &VerificationError{Status: p.Status, Reason: fmt.Sprintf("currency mismatch: expected %s, got %s", expectedCurrency, p.Currency)}
	}
	return p, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*Payment, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "encode request")
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.SetBasicAuth(c.secretKey, "")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "call gateway")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return nil, apiErr
	}

	var p Payment
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, errors.Wrap(err, "decode payment")
	}
	return &p, nil
}
