package model

import "time"

// ListingStatus is the lifecycle state of an auction listing.
// Values are persisted verbatim; do not rename.
type ListingStatus string

const (
	ListingOpen      ListingStatus = "OPEN"
	ListingClosed    ListingStatus = "CLOSED"
	ListingCancelled ListingStatus = "CANCELLED"
	ListingExpired   ListingStatus = "EXPIRED"
)

// Terminal reports whether the status admits no further transitions.
func (s ListingStatus) Terminal() bool {
	return s != ListingOpen
}

// AuctionListing is a seller-listed, time-boxed marketplace entry.
// The escrowed item count equals Count until the listing reaches a
// terminal status; after that the item has been delivered to exactly
// one of buyer or seller.
//
// Version is the optimistic-concurrency stamp: every accepted update
// increments it, and updates carrying a stale version are rejected.
type AuctionListing struct {
	ID             string        `json:"id"`
	Seller         string        `json:"seller"`
	ItemRegistryID string        `json:"item_registry_id"`
	ItemHash       string        `json:"item_hash"`
	ItemPayload    []byte        `json:"item_payload"`
	Count          int64         `json:"count"`
	StartingPrice  int64         `json:"starting_price"`
	BuyoutPrice    int64         `json:"buyout_price,omitempty"` // 0 = no buyout
	BidIncrement   int64         `json:"bid_increment"`
	CurrencyID     string        `json:"currency_id"`
	CreatedAt      time.Time     `json:"created_at"`
	ExpiresAt      time.Time     `json:"expires_at"`
	Status         ListingStatus `json:"status"`
	HighestBidder  string        `json:"highest_bidder,omitempty"`
	HighestBid     int64         `json:"highest_bid,omitempty"`
	Version        int64         `json:"version"`
}

// HasBid reports whether a bid has been placed. HighestBidder and
// HighestBid are always set together.
func (l *AuctionListing) HasBid() bool {
	return l.HighestBidder != ""
}

// HasBuyout reports whether instant buyout is configured.
func (l *AuctionListing) HasBuyout() bool {
	return l.BuyoutPrice > 0
}
