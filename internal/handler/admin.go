package handler

import (
	"encoding/json"
	"net/http"

	"souq/internal/domain/order"
)

type adminStatusRequest struct {
	Status string `json:"status"`
}

// adminUpdateStatus sets an order's status directly. Admin overrides skip
// linear-flow validation on purpose; only entering CANCELLED has extra
// behavior (the coupon slot is restored, same as a customer cancel).
func (h *Handler) adminUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req adminStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id := r.PathValue("id")
	if err := h.orders.AdminUpdateStatus(r.Context(), id, order.Status(req.Status)); err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"id":     id,
		"status": req.Status,
	})
}
