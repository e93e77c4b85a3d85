package moyasar

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// SignatureHeader carries the webhook HMAC signature.
const SignatureHeader = "X-Moyasar-Signature"

// Webhook event types.
const (
	EventPaymentPaid       = "payment_paid"
	EventPaymentFailed     = "payment_failed"
	EventPaymentRefunded   = "payment_refunded"
	EventPaymentVoided     = "payment_voided"
	EventPaymentAuthorized = "payment_authorized"
	EventPaymentCaptured   = "payment_captured"
	EventPaymentVerified   = "payment_verified"
)

// Event is a decoded webhook delivery.
type Event struct {
	Type    string
	Payment Payment
}

// VerifySignature checks the HMAC-SHA256 hex signature over the raw request
// body using a constant-time comparison. Verification must run on the exact
// bytes received, before any decoding.
func VerifySignature(secret, body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expected))
}

// ParseEvent decodes a webhook payload. Unknown fields are skipped: the
// gateway adds fields over time and deliveries must keep parsing.
func ParseEvent(body []byte) (*Event, error) {
	var ev Event
	d := jx.DecodeBytes(body)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "type":
			v, err := d.Str()
			if err != nil {
				return err
			}
			ev.Type = v
			return nil
		case "data":
			return decodePayment(d, &ev.Payment)
		default:
			return d.Skip()
		}
	}); err != nil {
		return nil, errors.Wrap(err, "decode webhook payload")
	}

	if ev.Type == "" {
		return nil, errors.New("webhook payload missing type")
	}
	return &ev, nil
}

func decodePayment(d *jx.Decoder, p *Payment) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			p.ID, err = d.Str()
		case "status":
			p.Status, err = d.Str()
		case "amount":
			p.Amount, err = d.Int64()
		case "currency":
			p.Currency, err = d.Str()
		case "description":
			p.Description, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
}
