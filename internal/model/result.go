package model

// EconomyResult is the terminal return value of every public economy
// operation. MessageKey is a stable, localizable key; callers must not
// parse it as free text.
type EconomyResult struct {
	Success    bool        `json:"success"`
	MessageKey string      `json:"message_key"`
	Data       interface{} `json:"data,omitempty"`
}

// Stable message keys. Stored clients localize on these; changing one
// is a breaking change.
const (
	MsgPlayerOffline       = "player_offline"
	MsgCurrencyUnsupported = "currency_unsupported"
	MsgInsufficientFunds   = "insufficient_funds"
	MsgBalanceUpdated      = "balance_updated"
	MsgBalanceUpdateFailed = "balance_update_failed"
	MsgInvalidAmount       = "invalid_amount"
	MsgInvalidCount        = "invalid_count"
	MsgInvalidPrice        = "invalid_price"
	MsgQuantityTooLarge    = "quantity_too_large"
	MsgUnknownItem         = "unknown_item"

	MsgOfferCreated      = "offer_created"
	MsgOfferExists       = "offer_exists"
	MsgOfferNotFound     = "offer_not_found"
	MsgOfferBuyDisabled  = "offer_buy_disabled"
	MsgOfferSellDisabled = "offer_sell_disabled"
	MsgOfferUnavailable  = "offer_unavailable"
	MsgItemsPurchased    = "items_purchased"
	MsgItemsSentDelivery = "items_sent_delivery"
	MsgSoldItems         = "sold_items"
	MsgSoldAvailable     = "sold_available_items"
	MsgNoItemsToSell     = "no_items_to_sell"

	MsgListingCreated     = "listing_created"
	MsgListingNotFound    = "listing_not_found"
	MsgListingNotOpen     = "listing_not_open"
	MsgListingCapReached  = "listing_cap_reached"
	MsgListingHasBids     = "listing_has_bids"
	MsgListingCancelled   = "listing_cancelled"
	MsgItemsMissing       = "items_missing"
	MsgOwnListing         = "own_listing"
	MsgPriceBelowMinimum  = "price_below_minimum"
	MsgBidTooLow          = "bid_too_low"
	MsgBidAccepted        = "bid_accepted"
	MsgBuyoutUnavailable  = "buyout_unavailable"
	MsgBuyoutComplete     = "buyout_complete"
	MsgCancelForbidden    = "cancel_forbidden"
	MsgTryAgain           = "try_again"
	MsgDeliveriesClaimed  = "deliveries_claimed"
	MsgNothingToClaim     = "nothing_to_claim"
	MsgImportComplete     = "import_complete"
	MsgInternalError      = "internal_error"
)

// Ok builds a successful result.
func Ok(key string, data interface{}) EconomyResult {
	return EconomyResult{Success: true, MessageKey: key, Data: data}
}

// Fail builds a failed result.
func Fail(key string) EconomyResult {
	return EconomyResult{Success: false, MessageKey: key}
}

// FailWith builds a failed result carrying a payload, e.g. the minimum
// acceptable bid.
func FailWith(key string, data interface{}) EconomyResult {
	return EconomyResult{Success: false, MessageKey: key, Data: data}
}
