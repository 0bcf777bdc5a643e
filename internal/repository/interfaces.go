package repository

import (
	"context"
	"time"

	"bazaar-economy-api/internal/model"
)

// ListingRepository defines durable access to auction listings.
//
// UpdateListing is the only way to mutate a listing and is a
// compare-and-swap: the write is accepted only if the stored version
// still equals expectedVersion, in which case the stored row (and the
// passed struct) get version expectedVersion+1. A false return with a
// nil error is an ordinary, retryable conflict.
type ListingRepository interface {
	CreateListing(ctx context.Context, l *model.AuctionListing) error

	// GetListing returns (nil, nil) when the listing does not exist.
	GetListing(ctx context.Context, id string) (*model.AuctionListing, error)

	UpdateListing(ctx context.Context, l *model.AuctionListing, expectedVersion int64) (bool, error)

	// ListOpenListings returns a page of OPEN listings whose item
	// registry id contains query (empty query matches all), ordered by
	// soonest expiry, plus the total match count.
	ListOpenListings(ctx context.Context, query string, page, limit int) ([]model.AuctionListing, int64, error)

	// CountOpenListings counts OPEN listings for one seller.
	CountOpenListings(ctx context.Context, seller string) (int, error)

	// ListExpiredListings returns up to limit OPEN listings whose
	// expiry is before the given instant.
	ListExpiredListings(ctx context.Context, before time.Time, limit int) ([]model.AuctionListing, error)
}

// OfferRepository defines durable access to shop offers. Stock
// decrements go through UpdateOfferStock under the same
// compare-and-swap discipline as listings.
type OfferRepository interface {
	CreateOffer(ctx context.Context, o *model.ShopOffer) error

	// GetOffer returns (nil, nil) when the offer does not exist.
	GetOffer(ctx context.Context, id string) (*model.ShopOffer, error)

	// FindOffer looks an offer up by shop and item key. An empty
	// category matches any category. Returns (nil, nil) when absent.
	FindOffer(ctx context.Context, shopID, registryID, hash, category string) (*model.ShopOffer, error)

	UpdateOfferStock(ctx context.Context, id string, newStock int64, expectedVersion int64) (bool, error)

	ListOffers(ctx context.Context, shopID string, page, limit int) ([]model.ShopOffer, int64, error)
}

// DeliveryRepository defines durable access to the delivery mailbox.
type DeliveryRepository interface {
	InsertDelivery(ctx context.Context, d *model.Delivery) error

	// ListPendingDeliveries returns up to limit PENDING deliveries for
	// the owner in creation order.
	ListPendingDeliveries(ctx context.Context, owner string, limit int) ([]model.Delivery, error)

	MarkDeliveryClaimed(ctx context.Context, id string) error

	UpdateDeliveryAttempt(ctx context.Context, id string, attempts int) error

	CountPendingDeliveries(ctx context.Context, owner string) (int64, error)
}

// TradeLogRepository stores the append-only record of completed
// economy operations.
type TradeLogRepository interface {
	InsertTradeLog(ctx context.Context, entry *model.TradeLog) error
	ListTradeLogs(ctx context.Context, page, limit int) ([]model.TradeLog, int64, error)
}

// Store is the full durable marketplace store. It exclusively owns
// persisted record lifetime; services never write rows any other way.
type Store interface {
	ListingRepository
	OfferRepository
	DeliveryRepository
	TradeLogRepository

	// Stats returns backend statistics for the admin surface.
	Stats(ctx context.Context) (map[string]interface{}, error)

	Close() error
}
