package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"souq/internal/domain/coupon"
	"souq/internal/domain/order"
	"souq/internal/domain/product"
)

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Code: status, Message: message})
}

// writeDomainError maps domain errors onto HTTP statuses. Pricing and coupon
// rejections are 422 (the request was well-formed but cannot be fulfilled);
// lifecycle conflicts are 409; anything unrecognized is a logged 500.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		unavailable *order.ProductUnavailableError
		quantity    *order.InvalidQuantityError
		minPurchase *coupon.MinPurchaseError
		transition  *order.InvalidTransitionError
	)

	switch {
	case errors.Is(err, order.ErrEmptyItems),
		errors.Is(err, order.ErrUnknownPaymentMethod),
		errors.Is(err, order.ErrUnknownStatus):
		writeError(w, http.StatusBadRequest, err.Error())

	case errors.Is(err, order.ErrNotFound),
		errors.Is(err, product.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())

	case errors.As(err, &unavailable),
		errors.As(err, &quantity),
		errors.As(err, &minPurchase),
		errors.Is(err, coupon.ErrNotFound),
		errors.Is(err, coupon.ErrExpired),
		errors.Is(err, coupon.ErrLimitReached):
		writeError(w, http.StatusUnprocessableEntity, err.Error())

	case errors.As(err, &transition):
		writeError(w, http.StatusConflict, err.Error())

	default:
		zctx.From(r.Context()).Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
