package model

import "time"

// DeliveryType distinguishes item handoffs from money handoffs.
type DeliveryType string

const (
	DeliveryItem  DeliveryType = "ITEM"
	DeliveryMoney DeliveryType = "MONEY"
)

// DeliveryStatus is persisted verbatim.
type DeliveryStatus string

const (
	DeliveryPending DeliveryStatus = "PENDING"
	DeliveryClaimed DeliveryStatus = "CLAIMED"
)

// Delivery is a durable at-least-once handoff of an item stack or a
// money amount that could not be delivered synchronously. Exactly one
// of the item field group or the money field group is populated,
// matching Type. A delivery is marked CLAIMED only after the owner's
// live container or ledger actually absorbed the value.
type Delivery struct {
	ID         string         `json:"id"`
	Owner      string         `json:"owner"`
	Type       DeliveryType   `json:"type"`
	ItemHash   string         `json:"item_hash,omitempty"`
	ItemBlob   []byte         `json:"item_payload,omitempty"`
	ItemCount  int64          `json:"item_count,omitempty"`
	CurrencyID string         `json:"currency_id,omitempty"`
	Amount     int64          `json:"amount,omitempty"`
	Status     DeliveryStatus `json:"status"`
	CreatedAt  time.Time      `json:"created_at"`
	Attempts   int            `json:"attempts"`
}
