package handler

import (
	"net/http"
	"strconv"

	"bazaar-economy-api/internal/service"
	"bazaar-economy-api/pkg/apierror"
	"bazaar-economy-api/pkg/response"

	"github.com/go-chi/chi/v5"
)

// DeliveryHandler exposes the delivery mailbox.
type DeliveryHandler struct {
	econ *service.Economy
}

// NewDeliveryHandler creates a new delivery handler.
func NewDeliveryHandler(econ *service.Economy) *DeliveryHandler {
	return &DeliveryHandler{econ: econ}
}

// Claim handles POST /api/v1/accounts/{account}/deliveries/claim
// An optional limit query parameter caps how many deliveries one call
// processes.
func (h *DeliveryHandler) Claim(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	if account == "" {
		response.Error(w, apierror.BadRequest("account is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	writeResult(w, h.econ.ClaimDeliveries(r.Context(), account, limit))
}

// PendingCount handles GET /api/v1/accounts/{account}/deliveries/count
func (h *DeliveryHandler) PendingCount(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	if account == "" {
		response.Error(w, apierror.BadRequest("account is required"))
		return
	}

	count, err := h.econ.PendingDeliveries(r.Context(), account)
	if err != nil {
		response.Error(w, apierror.InternalError("failed to count deliveries"))
		return
	}
	response.OK(w, map[string]interface{}{"account": account, "pending": count})
}
