package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"bazaar-economy-api/internal/catalog"
	"bazaar-economy-api/internal/service"
	"bazaar-economy-api/pkg/apierror"
	"bazaar-economy-api/pkg/response"

	"github.com/go-chi/chi/v5"
)

// ShopHandler handles shop trade HTTP requests.
type ShopHandler struct {
	econ *service.Economy
}

// NewShopHandler creates a new shop handler.
func NewShopHandler(econ *service.Economy) *ShopHandler {
	return &ShopHandler{econ: econ}
}

// CreateOffer handles POST /api/v1/admin/offers
func (h *ShopHandler) CreateOffer(w http.ResponseWriter, r *http.Request) {
	var seed catalog.SeedOffer
	if err := json.NewDecoder(r.Body).Decode(&seed); err != nil {
		response.Error(w, apierror.BadRequest("invalid request body"))
		return
	}
	defer r.Body.Close()

	writeResult(w, h.econ.CreateOffer(r.Context(), seed))
}

// ImportOffers handles POST /api/v1/admin/offers/import
func (h *ShopHandler) ImportOffers(w http.ResponseWriter, r *http.Request) {
	var seeds []catalog.SeedOffer
	if err := json.NewDecoder(r.Body).Decode(&seeds); err != nil {
		response.Error(w, apierror.BadRequest("invalid request body"))
		return
	}
	defer r.Body.Close()

	writeResult(w, h.econ.ImportOffers(r.Context(), seeds))
}

// ListOffers handles GET /api/v1/shops/{shop_id}/offers
func (h *ShopHandler) ListOffers(w http.ResponseWriter, r *http.Request) {
	shopID := chi.URLParam(r, "shop_id")
	if shopID == "" {
		response.Error(w, apierror.BadRequest("shop_id is required"))
		return
	}
	page, limit := pagination(r)

	offers, total, err := h.econ.ListOffers(r.Context(), shopID, page, limit)
	if err != nil {
		response.Error(w, apierror.InternalError("failed to list offers"))
		return
	}
	response.JSONWithMeta(w, http.StatusOK, offers, page, limit, total)
}

// TradeRequest is the buy/sell payload.
type TradeRequest struct {
	Account string `json:"account"`
	Units   int64  `json:"units"`
}

// Buy handles POST /api/v1/offers/{offer_id}/buy
func (h *ShopHandler) Buy(w http.ResponseWriter, r *http.Request) {
	offerID := chi.URLParam(r, "offer_id")
	req, ok := h.tradeRequest(w, r)
	if !ok {
		return
	}
	writeResult(w, h.econ.BuyOffer(r.Context(), req.Account, offerID, req.Units))
}

// Sell handles POST /api/v1/offers/{offer_id}/sell
func (h *ShopHandler) Sell(w http.ResponseWriter, r *http.Request) {
	offerID := chi.URLParam(r, "offer_id")
	req, ok := h.tradeRequest(w, r)
	if !ok {
		return
	}
	writeResult(w, h.econ.SellToShop(r.Context(), req.Account, offerID, req.Units))
}

func (h *ShopHandler) tradeRequest(w http.ResponseWriter, r *http.Request) (TradeRequest, bool) {
	var req TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid request body"))
		return req, false
	}
	defer r.Body.Close()

	if req.Account == "" {
		response.Error(w, apierror.BadRequest("account is required"))
		return req, false
	}
	return req, true
}

// PriceCheckRequest is the quote payload. Count defaults to 1.
type PriceCheckRequest struct {
	RegistryID string          `json:"registry_id"`
	Data       json.RawMessage `json:"data,omitempty"`
	Category   string          `json:"category,omitempty"`
	Count      int64           `json:"count,omitempty"`
}

// PriceCheck handles POST /api/v1/shops/{shop_id}/price-check
func (h *ShopHandler) PriceCheck(w http.ResponseWriter, r *http.Request) {
	shopID := chi.URLParam(r, "shop_id")
	var req PriceCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid request body"))
		return
	}
	defer r.Body.Close()

	if req.RegistryID == "" {
		response.Error(w, apierror.BadRequest("registry_id is required"))
		return
	}

	quote, err := h.econ.PriceCheck(r.Context(), shopID, req.RegistryID, req.Data, req.Category, req.Count)
	if err != nil {
		response.Error(w, apierror.BadRequest("invalid item data"))
		return
	}
	response.OK(w, quote)
}

// pagination parses page/limit query parameters with sane bounds.
func pagination(r *http.Request) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}
