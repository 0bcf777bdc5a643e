package model

import "time"

// ShopOffer is a fixed-price offer in a shop catalog. Count is the
// number of items per purchased unit; Price is per unit. Stock is
// ignored when InfiniteStock is set and never goes negative otherwise.
type ShopOffer struct {
	ID             string    `json:"id"`
	ShopID         string    `json:"shop_id"`
	ItemRegistryID string    `json:"item_registry_id"`
	ItemHash       string    `json:"item_hash"`
	ItemPayload    []byte    `json:"item_payload"`
	Count          int64     `json:"count"`
	Price          int64     `json:"price"`
	Stock          int64     `json:"stock"`
	InfiniteStock  bool      `json:"infinite_stock"`
	BuyEnabled     bool      `json:"buy_enabled"`
	SellEnabled    bool      `json:"sell_enabled"`
	Category       string    `json:"category"`
	Version        int64     `json:"version"`
	CreatedAt      time.Time `json:"created_at"`
}

// Quote is the result of a price check against a shop.
type Quote struct {
	UnitPrice int64 `json:"unit_price"`
	Total     int64 `json:"total"`
	Buyable   bool  `json:"buyable"`
}

// ImportReport summarizes a bulk offer import. Each entry is
// classified independently; one bad entry never aborts the batch.
type ImportReport struct {
	Created int      `json:"created"`
	Skipped int      `json:"skipped"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}
