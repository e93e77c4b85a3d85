package handler

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"souq/internal/moyasar"
)

// maxWebhookBody bounds webhook payload reads.
const maxWebhookBody = 1 << 20

// webhook receives gateway event deliveries. The signature is checked over
// the raw body before parsing; the delivery is acknowledged with 200 first
// and processed asynchronously, so slow database writes never make the
// gateway time out and re-deliver. Processing failures are logged only; the
// poll path converges the state later.
func (h *Handler) webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "cannot read body")
		return
	}

	lg := zctx.From(r.Context())

	if h.cfg.SkipWebhookVerify {
		lg.Warn("webhook signature verification disabled")
	} else if !moyasar.VerifySignature([]byte(h.cfg.WebhookSecret), body, r.Header.Get(moyasar.SignatureHeader)) {
		writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	ev, err := moyasar.ParseEvent(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	w.WriteHeader(http.StatusOK)

	h.metrics.webhookEvents.Add(r.Context(), 1, metric.WithAttributes(
		attribute.String("event_type", ev.Type),
	))

	// Detached from the request context: the gateway got its ack, processing
	// must not die with the connection. Values (logger, trace) survive.
	ctx := context.WithoutCancel(r.Context())
	go func() {
		ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()

		// The request span ends with the ack, so processing gets its own.
		ctx, span := h.metrics.tracer.Start(ctx, "webhook.process",
			trace.WithAttributes(
				attribute.String("event_type", ev.Type),
				attribute.String("payment_id", ev.Payment.ID),
			))
		defer span.End()

		if err := h.reconciler.HandleEvent(ctx, ev); err != nil {
			span.RecordError(err)
			zctx.From(ctx).Error("webhook processing failed",
				zap.String("event_type", ev.Type),
				zap.String("payment_id", ev.Payment.ID),
				zap.Error(err))
		}
	}()
}
