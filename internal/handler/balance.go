package handler

import (
	"encoding/json"
	"net/http"

	"bazaar-economy-api/internal/service"
	"bazaar-economy-api/pkg/apierror"
	"bazaar-economy-api/pkg/response"

	"github.com/go-chi/chi/v5"
)

// BalanceHandler exposes wallet reads and admin money grants.
type BalanceHandler struct {
	econ *service.Economy
}

// NewBalanceHandler creates a new balance handler.
func NewBalanceHandler(econ *service.Economy) *BalanceHandler {
	return &BalanceHandler{econ: econ}
}

// GetBalance handles GET /api/v1/accounts/{account}/balance
func (h *BalanceHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	if account == "" {
		response.Error(w, apierror.BadRequest("account is required"))
		return
	}

	writeResult(w, h.econ.GetBalance(r.Context(), account, r.URL.Query().Get("currency")))
}

// AdjustRequest is the admin grant/take payload.
type AdjustRequest struct {
	Currency string `json:"currency,omitempty"`
	Amount   int64  `json:"amount"`
}

// Grant handles POST /api/v1/admin/accounts/{account}/grant
func (h *BalanceHandler) Grant(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	var req AdjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid request body"))
		return
	}
	defer r.Body.Close()

	writeResult(w, h.econ.Credit(r.Context(), account, req.Currency, req.Amount))
}

// Take handles POST /api/v1/admin/accounts/{account}/take
func (h *BalanceHandler) Take(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	var req AdjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid request body"))
		return
	}
	defer r.Body.Close()

	writeResult(w, h.econ.Debit(r.Context(), account, req.Currency, req.Amount))
}
