package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"bazaar-economy-api/internal/model"
)

// MemoryStore is an in-process Store for development and tests. It
// honors the same version-CAS contract as the SQL backends.
type MemoryStore struct {
	mu         sync.RWMutex
	listings   map[string]*model.AuctionListing
	offers     map[string]*model.ShopOffer
	deliveries map[string]*model.Delivery
	delivOrder []string // delivery ids in insertion order
	logs       []model.TradeLog
	nextLogID  int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		listings:   make(map[string]*model.AuctionListing),
		offers:     make(map[string]*model.ShopOffer),
		deliveries: make(map[string]*model.Delivery),
		nextLogID:  1,
	}
}

func copyListing(l *model.AuctionListing) *model.AuctionListing {
	c := *l
	c.ItemPayload = append([]byte(nil), l.ItemPayload...)
	return &c
}

func copyOffer(o *model.ShopOffer) *model.ShopOffer {
	c := *o
	c.ItemPayload = append([]byte(nil), o.ItemPayload...)
	return &c
}

func copyDelivery(d *model.Delivery) *model.Delivery {
	c := *d
	c.ItemBlob = append([]byte(nil), d.ItemBlob...)
	return &c
}

// CreateListing stores a new listing with version 1.
func (s *MemoryStore) CreateListing(ctx context.Context, l *model.AuctionListing) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l.Version = 1
	s.listings[l.ID] = copyListing(l)
	return nil
}

// GetListing returns a copy of the listing, or (nil, nil) when absent.
func (s *MemoryStore) GetListing(ctx context.Context, id string) (*model.AuctionListing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.listings[id]
	if !ok {
		return nil, nil
	}
	return copyListing(l), nil
}

// UpdateListing applies a version-checked update.
func (s *MemoryStore) UpdateListing(ctx context.Context, l *model.AuctionListing, expectedVersion int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.listings[l.ID]
	if !ok || cur.Version != expectedVersion {
		return false, nil
	}

	l.Version = expectedVersion + 1
	s.listings[l.ID] = copyListing(l)
	return true, nil
}

// ListOpenListings returns a page of OPEN listings ordered by soonest expiry.
func (s *MemoryStore) ListOpenListings(ctx context.Context, query string, page, limit int) ([]model.AuctionListing, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := strings.ToLower(query)
	matched := make([]*model.AuctionListing, 0)
	for _, l := range s.listings {
		if l.Status != model.ListingOpen {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(l.ItemRegistryID), q) {
			continue
		}
		matched = append(matched, l)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].ExpiresAt.Equal(matched[j].ExpiresAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].ExpiresAt.Before(matched[j].ExpiresAt)
	})

	total := int64(len(matched))
	start, end := pageBounds(len(matched), page, limit)
	out := make([]model.AuctionListing, 0, end-start)
	for _, l := range matched[start:end] {
		out = append(out, *copyListing(l))
	}
	return out, total, nil
}

// CountOpenListings counts OPEN listings for one seller.
func (s *MemoryStore) CountOpenListings(ctx context.Context, seller string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, l := range s.listings {
		if l.Status == model.ListingOpen && l.Seller == seller {
			n++
		}
	}
	return n, nil
}

// ListExpiredListings returns up to limit OPEN listings past expiry.
func (s *MemoryStore) ListExpiredListings(ctx context.Context, before time.Time, limit int) ([]model.AuctionListing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.AuctionListing, 0)
	for _, l := range s.listings {
		if l.Status == model.ListingOpen && l.ExpiresAt.Before(before) {
			out = append(out, *copyListing(l))
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// CreateOffer stores a new offer with version 1.
func (s *MemoryStore) CreateOffer(ctx context.Context, o *model.ShopOffer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o.Version = 1
	s.offers[o.ID] = copyOffer(o)
	return nil
}

// GetOffer returns a copy of the offer, or (nil, nil) when absent.
func (s *MemoryStore) GetOffer(ctx context.Context, id string) (*model.ShopOffer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.offers[id]
	if !ok {
		return nil, nil
	}
	return copyOffer(o), nil
}

// FindOffer looks an offer up by shop and item key.
func (s *MemoryStore) FindOffer(ctx context.Context, shopID, registryID, hash, category string) (*model.ShopOffer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, o := range s.offers {
		if o.ShopID != shopID || o.ItemRegistryID != registryID || o.ItemHash != hash {
			continue
		}
		if category != "" && o.Category != category {
			continue
		}
		return copyOffer(o), nil
	}
	return nil, nil
}

// UpdateOfferStock applies a version-checked stock write.
func (s *MemoryStore) UpdateOfferStock(ctx context.Context, id string, newStock int64, expectedVersion int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.offers[id]
	if !ok || cur.Version != expectedVersion {
		return false, nil
	}

	cur.Stock = newStock
	cur.Version = expectedVersion + 1
	return true, nil
}

// ListOffers returns a page of offers for a shop ordered by category and id.
func (s *MemoryStore) ListOffers(ctx context.Context, shopID string, page, limit int) ([]model.ShopOffer, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*model.ShopOffer, 0)
	for _, o := range s.offers {
		if o.ShopID == shopID {
			matched = append(matched, o)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Category == matched[j].Category {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].Category < matched[j].Category
	})

	total := int64(len(matched))
	start, end := pageBounds(len(matched), page, limit)
	out := make([]model.ShopOffer, 0, end-start)
	for _, o := range matched[start:end] {
		out = append(out, *copyOffer(o))
	}
	return out, total, nil
}

// InsertDelivery appends a delivery row.
func (s *MemoryStore) InsertDelivery(ctx context.Context, d *model.Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deliveries[d.ID] = copyDelivery(d)
	s.delivOrder = append(s.delivOrder, d.ID)
	return nil
}

// ListPendingDeliveries returns PENDING deliveries in creation order.
func (s *MemoryStore) ListPendingDeliveries(ctx context.Context, owner string, limit int) ([]model.Delivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Delivery, 0)
	for _, id := range s.delivOrder {
		d := s.deliveries[id]
		if d == nil || d.Owner != owner || d.Status != model.DeliveryPending {
			continue
		}
		out = append(out, *copyDelivery(d))
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

// MarkDeliveryClaimed transitions a delivery to CLAIMED.
func (s *MemoryStore) MarkDeliveryClaimed(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d, ok := s.deliveries[id]; ok {
		d.Status = model.DeliveryClaimed
	}
	return nil
}

// UpdateDeliveryAttempt records a failed claim attempt.
func (s *MemoryStore) UpdateDeliveryAttempt(ctx context.Context, id string, attempts int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d, ok := s.deliveries[id]; ok {
		d.Attempts = attempts
	}
	return nil
}

// CountPendingDeliveries counts PENDING deliveries for an owner.
func (s *MemoryStore) CountPendingDeliveries(ctx context.Context, owner string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, d := range s.deliveries {
		if d.Owner == owner && d.Status == model.DeliveryPending {
			n++
		}
	}
	return n, nil
}

// InsertTradeLog appends a trade log row.
func (s *MemoryStore) InsertTradeLog(ctx context.Context, entry *model.TradeLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry.ID = s.nextLogID
	s.nextLogID++
	s.logs = append(s.logs, *entry)
	return nil
}

// ListTradeLogs returns trade logs newest first.
func (s *MemoryStore) ListTradeLogs(ctx context.Context, page, limit int) ([]model.TradeLog, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := int64(len(s.logs))
	reversed := make([]model.TradeLog, len(s.logs))
	for i, entry := range s.logs {
		reversed[len(s.logs)-1-i] = entry
	}
	start, end := pageBounds(len(reversed), page, limit)
	return reversed[start:end], total, nil
}

// Stats returns row counts.
func (s *MemoryStore) Stats(ctx context.Context) (map[string]interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pending := 0
	for _, d := range s.deliveries {
		if d.Status == model.DeliveryPending {
			pending++
		}
	}
	return map[string]interface{}{
		"backend":            "memory",
		"listings":           len(s.listings),
		"offers":             len(s.offers),
		"deliveries":         len(s.deliveries),
		"pending_deliveries": pending,
		"trade_logs":         len(s.logs),
	}, nil
}

// Close is a no-op for the in-memory backend.
func (s *MemoryStore) Close() error {
	return nil
}

// pageBounds clamps a 1-based page window onto a slice of length n.
func pageBounds(n, page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	start := (page - 1) * limit
	if start > n {
		start = n
	}
	end := start + limit
	if end > n {
		end = n
	}
	return start, end
}

// Ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)
