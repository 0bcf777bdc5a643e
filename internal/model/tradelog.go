package model

import "time"

// TradeLog records a completed economy operation for the admin surface
// and support tooling. Rows are append-only.
type TradeLog struct {
	ID             int64     `json:"id"`
	Kind           string    `json:"kind"` // shop_buy, shop_sell, listing_created, bid, buyout, expiry, claim, ...
	Actor          string    `json:"actor"`
	Counterparty   string    `json:"counterparty,omitempty"`
	ItemRegistryID string    `json:"item_registry_id,omitempty"`
	ItemCount      int64     `json:"item_count,omitempty"`
	Amount         int64     `json:"amount,omitempty"`
	CurrencyID     string    `json:"currency_id,omitempty"`
	MessageKey     string    `json:"message_key"`
	CreatedAt      time.Time `json:"created_at"`
}
