package handler

import (
	"encoding/json"
	"net/http"

	"bazaar-economy-api/internal/gateway"
	"bazaar-economy-api/pkg/apierror"
	"bazaar-economy-api/pkg/itemref"
	"bazaar-economy-api/pkg/response"

	"github.com/go-chi/chi/v5"
)

// SessionHandler manages live actor sessions on the hub. The game
// server calls these when a player joins or leaves.
type SessionHandler struct {
	hub *gateway.Hub
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(hub *gateway.Hub) *SessionHandler {
	return &SessionHandler{hub: hub}
}

// ConnectRequest is the session registration payload.
type ConnectRequest struct {
	Capacity int              `json:"capacity"`
	Wallets  map[string]int64 `json:"wallets,omitempty"`
	Stacks   []itemref.Stack  `json:"stacks,omitempty"`
}

// Connect handles POST /api/v1/sessions/{account}/connect
func (h *SessionHandler) Connect(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	if account == "" {
		response.Error(w, apierror.BadRequest("account is required"))
		return
	}

	var req ConnectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid request body"))
		return
	}
	defer r.Body.Close()

	if req.Capacity <= 0 {
		response.Error(w, apierror.BadRequest("capacity must be positive"))
		return
	}

	ctx := r.Context()
	if err := h.hub.Connect(ctx, account, req.Capacity); err != nil {
		response.Error(w, apierror.InternalError("failed to register session"))
		return
	}
	for currency, amount := range req.Wallets {
		if err := h.hub.SetWallet(ctx, account, currency, amount); err != nil {
			response.Error(w, apierror.InternalError("failed to seed wallet"))
			return
		}
	}
	for _, stack := range req.Stacks {
		if err := h.hub.GiveStack(ctx, account, stack); err != nil {
			response.Error(w, apierror.BadRequest("invalid stack: "+err.Error()))
			return
		}
	}

	response.OK(w, map[string]string{"status": "connected", "account": account})
}

// Disconnect handles POST /api/v1/sessions/{account}/disconnect
func (h *SessionHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	if account == "" {
		response.Error(w, apierror.BadRequest("account is required"))
		return
	}

	if err := h.hub.Disconnect(r.Context(), account); err != nil {
		response.Error(w, apierror.InternalError("failed to close session"))
		return
	}
	response.OK(w, map[string]string{"status": "disconnected", "account": account})
}

// Online handles GET /api/v1/sessions/{account}
func (h *SessionHandler) Online(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	if account == "" {
		response.Error(w, apierror.BadRequest("account is required"))
		return
	}

	online, err := h.hub.IsOnline(r.Context(), account)
	if err != nil {
		response.Error(w, apierror.InternalError("failed to query session"))
		return
	}
	response.OK(w, map[string]interface{}{"account": account, "online": online})
}
