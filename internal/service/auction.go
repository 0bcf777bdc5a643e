package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"bazaar-economy-api/internal/async"
	"bazaar-economy-api/internal/cache"
	"bazaar-economy-api/internal/gateway"
	"bazaar-economy-api/internal/model"
	"bazaar-economy-api/internal/notify"
	"bazaar-economy-api/internal/repository"
	"bazaar-economy-api/pkg/itemref"
	"bazaar-economy-api/pkg/uid"
)

// Listing duration bounds. Requests outside the range are clamped, not
// rejected.
const (
	minListingDuration = 5 * time.Minute
	maxListingDuration = 7 * 24 * time.Hour
)

// AuctionConfig holds auction house tuning.
type AuctionConfig struct {
	FeeRate         float64
	ListingFee      int64
	MinStartPrice   int64
	MaxOpenListings int64
	Currency        string
	CacheTTL        time.Duration
}

// AuctionService runs the auction house: time-boxed listings with
// sealed escrow, incremental bidding, instant buyout and expiry
// settlement.
//
// Listing state is guarded by the version stamp on every row: a stale
// write is refused by the store and surfaces to the caller as an
// ordinary "try again", never as corrupted state. The listed item is
// escrowed inside the listing row itself, so a listing in a terminal
// status has delivered its item to exactly one party.
type AuctionService struct {
	store    repository.Store
	inv      gateway.InventoryAdapter
	ledger   gateway.CurrencyLedger
	mailbox  *MailboxService
	pool     *async.Pool
	cache    cache.Cache
	notifier notify.Notifier
	cfg      AuctionConfig

	// now is swappable for expiry tests.
	now func() time.Time
}

// NewAuctionService creates the auction service.
func NewAuctionService(
	store repository.Store,
	inv gateway.InventoryAdapter,
	ledger gateway.CurrencyLedger,
	mailbox *MailboxService,
	pool *async.Pool,
	c cache.Cache,
	notifier notify.Notifier,
	cfg AuctionConfig,
) *AuctionService {
	if cfg.MinStartPrice < 1 {
		cfg.MinStartPrice = 1
	}
	if cfg.MaxOpenListings < 1 {
		cfg.MaxOpenListings = 10
	}
	return &AuctionService{
		store:    store,
		inv:      inv,
		ledger:   ledger,
		mailbox:  mailbox,
		pool:     pool,
		cache:    c,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
	}
}

// CreateListingParams are the seller-supplied listing parameters.
type CreateListingParams struct {
	RegistryID    string          `json:"registry_id"`
	Data          json.RawMessage `json:"data,omitempty"`
	Count         int64           `json:"count"`
	StartingPrice int64           `json:"starting_price"`
	BuyoutPrice   int64           `json:"buyout_price"`
	BidIncrement  int64           `json:"bid_increment"`
	Duration      time.Duration   `json:"duration"`
}

// CreateListing escrows items out of the seller's live container into
// a new OPEN listing. The listing fee, if configured, is charged up
// front and not returned on cancellation.
func (s *AuctionService) CreateListing(ctx context.Context, seller string, p CreateListingParams) model.EconomyResult {
	if p.Count <= 0 {
		return model.Fail(model.MsgInvalidCount)
	}
	if p.StartingPrice < s.cfg.MinStartPrice {
		return model.FailWith(model.MsgPriceBelowMinimum, map[string]interface{}{"minimum": s.cfg.MinStartPrice})
	}
	if p.BuyoutPrice != 0 && p.BuyoutPrice < p.StartingPrice {
		return model.Fail(model.MsgInvalidPrice)
	}
	if p.BidIncrement <= 0 {
		p.BidIncrement = 1
	}
	if p.Duration < minListingDuration {
		p.Duration = minListingDuration
	}
	if p.Duration > maxListingDuration {
		p.Duration = maxListingDuration
	}

	feeCharged := int64(0)
	if s.cfg.ListingFee > 0 {
		if !s.ledger.Available() {
			return model.Fail(model.MsgCurrencyUnsupported)
		}
		ok, err := s.ledger.Withdraw(ctx, seller, s.cfg.Currency, s.cfg.ListingFee)
		if err == gateway.ErrOffline {
			return model.Fail(model.MsgPlayerOffline)
		}
		if err != nil {
			return model.Fail(model.MsgInternalError)
		}
		if !ok {
			return model.FailWith(model.MsgInsufficientFunds, map[string]interface{}{"required": s.cfg.ListingFee})
		}
		feeCharged = s.cfg.ListingFee
	}

	hash, err := itemref.HashOf(p.RegistryID, p.Data)
	if err != nil {
		s.refundSeller(ctx, seller, feeCharged)
		return model.Fail(model.MsgUnknownItem)
	}
	key := itemref.Key{RegistryID: p.RegistryID, Hash: hash}

	snap, err := s.inv.RemoveMatching(ctx, seller, key, p.Count)
	if err == gateway.ErrOffline {
		s.refundSeller(ctx, seller, feeCharged)
		return model.Fail(model.MsgPlayerOffline)
	}
	if err != nil {
		s.refundSeller(ctx, seller, feeCharged)
		return model.Fail(model.MsgInternalError)
	}
	if snap == nil {
		s.refundSeller(ctx, seller, feeCharged)
		return model.Fail(model.MsgItemsMissing)
	}

	// The open-listing cap is enforced at commit time, against the
	// count as it stands now, not as it stood when the call started.
	var open int
	err = s.pool.Do(ctx, func(ctx context.Context) error {
		var err error
		open, err = s.store.CountOpenListings(ctx, seller)
		return err
	})
	if err != nil {
		log.Printf("[Auction] Failed to count listings for %s: %v", seller, err)
		s.returnSnapshot(ctx, seller, snap)
		s.refundSeller(ctx, seller, feeCharged)
		return model.Fail(model.MsgInternalError)
	}
	if int64(open) >= s.cfg.MaxOpenListings {
		s.returnSnapshot(ctx, seller, snap)
		s.refundSeller(ctx, seller, feeCharged)
		return model.FailWith(model.MsgListingCapReached, map[string]interface{}{"limit": s.cfg.MaxOpenListings})
	}

	now := s.now()
	listing := &model.AuctionListing{
		ID:             uid.New(),
		Seller:         seller,
		ItemRegistryID: p.RegistryID,
		ItemHash:       snap.Key.Hash,
		ItemPayload:    snap.Payload,
		Count:          p.Count,
		StartingPrice:  p.StartingPrice,
		BuyoutPrice:    p.BuyoutPrice,
		BidIncrement:   p.BidIncrement,
		CurrencyID:     s.cfg.Currency,
		CreatedAt:      now,
		ExpiresAt:      now.Add(p.Duration),
		Status:         model.ListingOpen,
	}
	if err := s.pool.Do(ctx, func(ctx context.Context) error {
		return s.store.CreateListing(ctx, listing)
	}); err != nil {
		// The item is out of the container but not in the store yet;
		// push it back before reporting failure.
		log.Printf("[Auction] Failed to persist listing for %s: %v", seller, err)
		s.returnSnapshot(ctx, seller, snap)
		s.refundSeller(ctx, seller, feeCharged)
		return model.Fail(model.MsgInternalError)
	}

	s.cache.DeletePrefix(ctx, cache.KeyListingPage)
	s.logTrade(ctx, "listing_created", seller, "", listing, p.StartingPrice)
	log.Printf("[Auction] Listing %s created by %s: %dx %s", listing.ID, seller, p.Count, p.RegistryID)
	return model.Ok(model.MsgListingCreated, listing)
}

// PlaceBid places a sealed incremental bid. The bid amount is held by
// the house the moment the bid is accepted; the previous bidder's hold
// is released in the same operation.
func (s *AuctionService) PlaceBid(ctx context.Context, bidder, listingID string, amount int64) model.EconomyResult {
	if amount <= 0 {
		return model.Fail(model.MsgInvalidAmount)
	}
	if !s.ledger.Available() {
		return model.Fail(model.MsgCurrencyUnsupported)
	}

	l, err := s.getListing(ctx, listingID)
	if err != nil {
		return model.Fail(model.MsgInternalError)
	}
	if l == nil {
		return model.Fail(model.MsgListingNotFound)
	}
	if l.Seller == bidder {
		return model.Fail(model.MsgOwnListing)
	}
	if l.Status != model.ListingOpen || !s.now().Before(l.ExpiresAt) {
		return model.Fail(model.MsgListingNotOpen)
	}

	minBid := l.StartingPrice
	if l.HasBid() {
		minBid = l.HighestBid + l.BidIncrement
	}
	if amount < minBid {
		return model.FailWith(model.MsgBidTooLow, map[string]interface{}{"minimum": minBid})
	}

	ok, err := s.ledger.Withdraw(ctx, bidder, l.CurrencyID, amount)
	if err == gateway.ErrOffline {
		return model.Fail(model.MsgPlayerOffline)
	}
	if err != nil {
		return model.Fail(model.MsgInternalError)
	}
	if !ok {
		return model.FailWith(model.MsgInsufficientFunds, map[string]interface{}{"required": amount})
	}

	prevBidder, prevBid := l.HighestBidder, l.HighestBid

	updated := *l
	updated.HighestBidder = bidder
	updated.HighestBid = amount
	accepted, err := s.casListing(ctx, &updated, l.Version)
	if err != nil || !accepted {
		s.payOrMailbox(ctx, bidder, l.CurrencyID, amount)
		if err != nil {
			log.Printf("[Auction] Bid write failed on %s: %v", listingID, err)
			return model.Fail(model.MsgInternalError)
		}
		return model.Fail(model.MsgTryAgain)
	}

	if prevBidder != "" {
		s.payOrMailbox(ctx, prevBidder, l.CurrencyID, prevBid)
	}

	s.cache.DeletePrefix(ctx, cache.KeyListingPage)
	s.logTrade(ctx, "bid", bidder, l.Seller, l, amount)
	return model.Ok(model.MsgBidAccepted, map[string]interface{}{"amount": amount})
}

// Buyout closes a listing instantly at its buyout price.
func (s *AuctionService) Buyout(ctx context.Context, buyer, listingID string) model.EconomyResult {
	if !s.ledger.Available() {
		return model.Fail(model.MsgCurrencyUnsupported)
	}

	l, err := s.getListing(ctx, listingID)
	if err != nil {
		return model.Fail(model.MsgInternalError)
	}
	if l == nil {
		return model.Fail(model.MsgListingNotFound)
	}
	if l.Seller == buyer {
		return model.Fail(model.MsgOwnListing)
	}
	if !l.HasBuyout() {
		return model.Fail(model.MsgBuyoutUnavailable)
	}
	if l.Status != model.ListingOpen || !s.now().Before(l.ExpiresAt) {
		return model.Fail(model.MsgListingNotOpen)
	}

	price := l.BuyoutPrice
	ok, err := s.ledger.Withdraw(ctx, buyer, l.CurrencyID, price)
	if err == gateway.ErrOffline {
		return model.Fail(model.MsgPlayerOffline)
	}
	if err != nil {
		return model.Fail(model.MsgInternalError)
	}
	if !ok {
		return model.FailWith(model.MsgInsufficientFunds, map[string]interface{}{"required": price})
	}

	// Re-read after the withdrawal: a bid or another buyout may have
	// landed in between, and the close must be stamped on fresh state.
	fresh, err := s.getListing(ctx, listingID)
	if err != nil || fresh == nil || fresh.Status != model.ListingOpen {
		s.payOrMailbox(ctx, buyer, l.CurrencyID, price)
		if err != nil {
			return model.Fail(model.MsgInternalError)
		}
		return model.Fail(model.MsgListingNotOpen)
	}

	prevBidder, prevBid := fresh.HighestBidder, fresh.HighestBid

	updated := *fresh
	updated.Status = model.ListingClosed
	updated.HighestBidder = buyer
	updated.HighestBid = price
	accepted, err := s.casListing(ctx, &updated, fresh.Version)
	if err != nil || !accepted {
		s.payOrMailbox(ctx, buyer, l.CurrencyID, price)
		if err != nil {
			log.Printf("[Auction] Buyout write failed on %s: %v", listingID, err)
			return model.Fail(model.MsgInternalError)
		}
		return model.Fail(model.MsgTryAgain)
	}

	// Settlement. The listing is terminally CLOSED; everything below is
	// delivery and cannot be contested by another writer.
	if prevBidder != "" && prevBidder != buyer {
		s.payOrMailbox(ctx, prevBidder, fresh.CurrencyID, prevBid)
	}

	proceeds := price - cutOf(price, s.cfg.FeeRate)
	s.payOrMailbox(ctx, fresh.Seller, fresh.CurrencyID, proceeds)

	delivered := s.deliverItem(ctx, buyer, fresh)

	s.cache.DeletePrefix(ctx, cache.KeyListingPage)
	s.logTrade(ctx, "buyout", buyer, fresh.Seller, fresh, price)
	s.notifier.Publish(ctx, notify.Event{
		Type:    notify.EventAuctionSettled,
		Account: fresh.Seller,
		Payload: map[string]interface{}{"listing_id": fresh.ID, "price": price},
	})

	data := map[string]interface{}{"price": price}
	if delivered {
		return model.Ok(model.MsgBuyoutComplete, data)
	}
	return model.Ok(model.MsgItemsSentDelivery, data)
}

// CancelListing withdraws an unbid listing. The escrowed item goes
// back through the mailbox so cancellation works identically whether
// the seller's container has room or not.
func (s *AuctionService) CancelListing(ctx context.Context, seller, listingID string) model.EconomyResult {
	l, err := s.getListing(ctx, listingID)
	if err != nil {
		return model.Fail(model.MsgInternalError)
	}
	if l == nil {
		return model.Fail(model.MsgListingNotFound)
	}
	if l.Seller != seller {
		return model.Fail(model.MsgCancelForbidden)
	}
	if l.Status != model.ListingOpen {
		return model.Fail(model.MsgListingNotOpen)
	}
	if l.HasBid() {
		return model.Fail(model.MsgListingHasBids)
	}

	updated := *l
	updated.Status = model.ListingCancelled
	accepted, err := s.casListing(ctx, &updated, l.Version)
	if err != nil {
		log.Printf("[Auction] Cancel write failed on %s: %v", listingID, err)
		return model.Fail(model.MsgInternalError)
	}
	if !accepted {
		return model.Fail(model.MsgTryAgain)
	}

	snap := itemref.Snapshot{
		Key:     itemref.Key{RegistryID: l.ItemRegistryID, Hash: l.ItemHash},
		Count:   l.Count,
		Payload: l.ItemPayload,
	}
	if err := s.mailbox.CreateItemDelivery(ctx, seller, snap); err != nil {
		log.Printf("[Auction] CRITICAL: escrow return for cancelled listing %s failed: %v", l.ID, err)
	}

	s.cache.DeletePrefix(ctx, cache.KeyListingPage)
	s.logTrade(ctx, "cancel", seller, "", l, 0)
	return model.Ok(model.MsgListingCancelled, nil)
}

// ProcessExpirations settles a batch of expired listings. Each listing
// is settled independently; one failure is logged and never blocks the
// rest. Returns the number of listings settled.
func (s *AuctionService) ProcessExpirations(ctx context.Context, batch int) (int, error) {
	now := s.now()
	var expired []model.AuctionListing
	err := s.pool.Do(ctx, func(ctx context.Context) error {
		var err error
		expired, err = s.store.ListExpiredListings(ctx, now, batch)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to list expired listings: %w", err)
	}

	settled := 0
	for i := range expired {
		if err := s.settleExpired(ctx, expired[i].ID, now); err != nil {
			log.Printf("[Auction] Failed to settle listing %s: %v", expired[i].ID, err)
			continue
		}
		settled++
	}

	if settled > 0 {
		s.cache.DeletePrefix(ctx, cache.KeyListingPage)
	}
	return settled, nil
}

// settleExpired settles one listing from a fresh read, so state that
// changed since the batch scan (a last-second buyout, a concurrent
// sweep) is respected.
func (s *AuctionService) settleExpired(ctx context.Context, listingID string, now time.Time) error {
	l, err := s.getListing(ctx, listingID)
	if err != nil {
		return err
	}
	if l == nil || l.Status != model.ListingOpen || now.Before(l.ExpiresAt) {
		return nil
	}

	updated := *l
	if l.HasBid() {
		updated.Status = model.ListingClosed
	} else {
		updated.Status = model.ListingExpired
	}
	accepted, err := s.casListing(ctx, &updated, l.Version)
	if err != nil {
		return err
	}
	if !accepted {
		// Another writer got there first; the next sweep re-evaluates.
		return nil
	}

	if l.HasBid() {
		proceeds := l.HighestBid - cutOf(l.HighestBid, s.cfg.FeeRate)
		s.payOrMailbox(ctx, l.Seller, l.CurrencyID, proceeds)
		s.deliverItem(ctx, l.HighestBidder, l)
		s.logTrade(ctx, "expiry_sale", l.HighestBidder, l.Seller, l, l.HighestBid)
		s.notifier.Publish(ctx, notify.Event{
			Type:    notify.EventAuctionSettled,
			Account: l.Seller,
			Payload: map[string]interface{}{"listing_id": l.ID, "price": l.HighestBid},
		})
	} else {
		s.deliverItem(ctx, l.Seller, l)
		s.logTrade(ctx, "expiry_return", l.Seller, "", l, 0)
	}
	return nil
}

// ListOpenListings returns a page of OPEN listings, cached briefly for
// the browse screen.
func (s *AuctionService) ListOpenListings(ctx context.Context, query string, page, limit int) ([]model.AuctionListing, int64, error) {
	type pageData struct {
		Items []model.AuctionListing `json:"items"`
		Total int64                  `json:"total"`
	}

	cacheKey := fmt.Sprintf("%s%s:%d:%d", cache.KeyListingPage, query, page, limit)
	raw, err := s.cache.GetOrSet(ctx, cacheKey, s.cfg.CacheTTL, func() ([]byte, error) {
		var pd pageData
		err := s.pool.Do(ctx, func(ctx context.Context) error {
			var err error
			pd.Items, pd.Total, err = s.store.ListOpenListings(ctx, query, page, limit)
			return err
		})
		if err != nil {
			return nil, err
		}
		return json.Marshal(pd)
	})
	if err != nil {
		return nil, 0, err
	}

	var pd pageData
	if err := json.Unmarshal(raw, &pd); err != nil {
		return nil, 0, err
	}
	return pd.Items, pd.Total, nil
}

// GetListing exposes a single listing for the detail view.
func (s *AuctionService) GetListing(ctx context.Context, id string) (*model.AuctionListing, error) {
	return s.getListing(ctx, id)
}

func (s *AuctionService) getListing(ctx context.Context, id string) (*model.AuctionListing, error) {
	var l *model.AuctionListing
	err := s.pool.Do(ctx, func(ctx context.Context) error {
		var err error
		l, err = s.store.GetListing(ctx, id)
		return err
	})
	if err != nil {
		log.Printf("[Auction] Failed to load listing %s: %v", id, err)
	}
	return l, err
}

func (s *AuctionService) casListing(ctx context.Context, l *model.AuctionListing, expectedVersion int64) (bool, error) {
	var accepted bool
	err := s.pool.Do(ctx, func(ctx context.Context) error {
		var err error
		accepted, err = s.store.UpdateListing(ctx, l, expectedVersion)
		return err
	})
	return accepted, err
}

// deliverItem hands the escrowed item to the account, live first, then
// mailbox. Returns true when the live container took it.
func (s *AuctionService) deliverItem(ctx context.Context, account string, l *model.AuctionListing) bool {
	stack, err := itemref.Materialize(l.ItemPayload, l.Count)
	if err == nil {
		if inserted, insErr := s.inv.InsertStack(ctx, account, stack); insErr == nil && inserted {
			return true
		}
	}

	snap := itemref.Snapshot{
		Key:     itemref.Key{RegistryID: l.ItemRegistryID, Hash: l.ItemHash},
		Count:   l.Count,
		Payload: l.ItemPayload,
	}
	if mbErr := s.mailbox.CreateItemDelivery(ctx, account, snap); mbErr != nil {
		log.Printf("[Auction] CRITICAL: item delivery for listing %s to %s lost both paths: %v", l.ID, account, mbErr)
	}
	return false
}

// returnSnapshot pushes an escrowed snapshot back to its owner, live
// container first, mailbox when that fails.
func (s *AuctionService) returnSnapshot(ctx context.Context, account string, snap *itemref.Snapshot) {
	stack, err := itemref.Materialize(snap.Payload, snap.Count)
	if err == nil {
		if inserted, insErr := s.inv.InsertStack(ctx, account, stack); insErr == nil && inserted {
			return
		}
	}
	if mbErr := s.mailbox.CreateItemDelivery(ctx, account, *snap); mbErr != nil {
		log.Printf("[Auction] CRITICAL: escrow return to %s lost both paths: %v", account, mbErr)
	}
}

// payOrMailbox deposits directly, mailboxing the amount when the actor
// is unreachable or the deposit is refused.
func (s *AuctionService) payOrMailbox(ctx context.Context, account, currencyID string, amount int64) {
	if amount <= 0 {
		return
	}
	ok, err := s.ledger.Deposit(ctx, account, currencyID, amount)
	if err == nil && ok {
		return
	}
	if mbErr := s.mailbox.CreateMoneyDelivery(ctx, account, currencyID, amount); mbErr != nil {
		log.Printf("[Auction] CRITICAL: payment of %d to %s lost both paths: deposit=%v mailbox=%v", amount, account, err, mbErr)
	}
}

func (s *AuctionService) refundSeller(ctx context.Context, seller string, fee int64) {
	if fee > 0 {
		s.payOrMailbox(ctx, seller, s.cfg.Currency, fee)
	}
}

func (s *AuctionService) logTrade(ctx context.Context, kind, actor, counterparty string, l *model.AuctionListing, amount int64) {
	entry := &model.TradeLog{
		Kind:           kind,
		Actor:          actor,
		Counterparty:   counterparty,
		ItemRegistryID: l.ItemRegistryID,
		ItemCount:      l.Count,
		Amount:         amount,
		CurrencyID:     l.CurrencyID,
		MessageKey:     kind,
		CreatedAt:      time.Now(),
	}
	if err := s.pool.Do(ctx, func(ctx context.Context) error {
		return s.store.InsertTradeLog(ctx, entry)
	}); err != nil {
		log.Printf("[Auction] Failed to write trade log: %v", err)
	}
}
