package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"bazaar-economy-api/internal/service"
	"bazaar-economy-api/pkg/apierror"
	"bazaar-economy-api/pkg/response"

	"github.com/go-chi/chi/v5"
)

// AuctionHandler handles auction house HTTP requests.
type AuctionHandler struct {
	econ *service.Economy
}

// NewAuctionHandler creates a new auction handler.
func NewAuctionHandler(econ *service.Economy) *AuctionHandler {
	return &AuctionHandler{econ: econ}
}

// CreateListingRequest is the listing creation payload. Duration is in
// seconds.
type CreateListingRequest struct {
	Account       string          `json:"account"`
	RegistryID    string          `json:"registry_id"`
	Data          json.RawMessage `json:"data,omitempty"`
	Count         int64           `json:"count"`
	StartingPrice int64           `json:"starting_price"`
	BuyoutPrice   int64           `json:"buyout_price,omitempty"`
	BidIncrement  int64           `json:"bid_increment,omitempty"`
	DurationSec   int64           `json:"duration_seconds"`
}

// Create handles POST /api/v1/listings
func (h *AuctionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid request body"))
		return
	}
	defer r.Body.Close()

	if req.Account == "" {
		response.Error(w, apierror.BadRequest("account is required"))
		return
	}
	if req.RegistryID == "" {
		response.Error(w, apierror.BadRequest("registry_id is required"))
		return
	}

	params := service.CreateListingParams{
		RegistryID:    req.RegistryID,
		Data:          req.Data,
		Count:         req.Count,
		StartingPrice: req.StartingPrice,
		BuyoutPrice:   req.BuyoutPrice,
		BidIncrement:  req.BidIncrement,
		Duration:      time.Duration(req.DurationSec) * time.Second,
	}
	writeResult(w, h.econ.CreateListing(r.Context(), req.Account, params))
}

// List handles GET /api/v1/listings
func (h *AuctionHandler) List(w http.ResponseWriter, r *http.Request) {
	page, limit := pagination(r)
	query := r.URL.Query().Get("q")

	listings, total, err := h.econ.ListOpenListings(r.Context(), query, page, limit)
	if err != nil {
		response.Error(w, apierror.InternalError("failed to list listings"))
		return
	}
	response.JSONWithMeta(w, http.StatusOK, listings, page, limit, total)
}

// Get handles GET /api/v1/listings/{listing_id}
func (h *AuctionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "listing_id")
	l, err := h.econ.GetListing(r.Context(), id)
	if err != nil {
		response.Error(w, apierror.InternalError("failed to load listing"))
		return
	}
	if l == nil {
		response.Error(w, apierror.NotFound("listing not found"))
		return
	}
	response.OK(w, l)
}

// BidRequest is the bid payload.
type BidRequest struct {
	Account string `json:"account"`
	Amount  int64  `json:"amount"`
}

// Bid handles POST /api/v1/listings/{listing_id}/bid
func (h *AuctionHandler) Bid(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "listing_id")
	var req BidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid request body"))
		return
	}
	defer r.Body.Close()

	if req.Account == "" {
		response.Error(w, apierror.BadRequest("account is required"))
		return
	}
	writeResult(w, h.econ.PlaceBid(r.Context(), req.Account, id, req.Amount))
}

// ActorRequest carries just the acting account.
type ActorRequest struct {
	Account string `json:"account"`
}

// Buyout handles POST /api/v1/listings/{listing_id}/buyout
func (h *AuctionHandler) Buyout(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "listing_id")
	req, ok := actorRequest(w, r)
	if !ok {
		return
	}
	writeResult(w, h.econ.Buyout(r.Context(), req.Account, id))
}

// Cancel handles POST /api/v1/listings/{listing_id}/cancel
func (h *AuctionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "listing_id")
	req, ok := actorRequest(w, r)
	if !ok {
		return
	}
	writeResult(w, h.econ.CancelListing(r.Context(), req.Account, id))
}

func actorRequest(w http.ResponseWriter, r *http.Request) (ActorRequest, bool) {
	var req ActorRequest
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
