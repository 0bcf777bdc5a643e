package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"bazaar-economy-api/internal/async"
	"bazaar-economy-api/internal/cache"
	"bazaar-economy-api/internal/catalog"
	"bazaar-economy-api/internal/gateway"
	"bazaar-economy-api/internal/model"
	"bazaar-economy-api/internal/repository"
	"bazaar-economy-api/pkg/itemref"
	"bazaar-economy-api/pkg/uid"
)

// ShopService handles fixed-price shop trade: buying from offers,
// selling matching items back, price checks and bulk imports.
//
// Money always moves before stock or items do. Every partial failure
// after a withdrawal is compensated: the money comes back directly or,
// if the actor dropped offline in between, through the mailbox.
type ShopService struct {
	store   repository.Store
	inv     gateway.InventoryAdapter
	ledger  gateway.CurrencyLedger
	mailbox *MailboxService
	pool    *async.Pool
	cache   cache.Cache
	catalog *catalog.Catalog

	taxRate  float64
	currency string
	cacheTTL time.Duration
}

// NewShopService creates the shop service.
func NewShopService(
	store repository.Store,
	inv gateway.InventoryAdapter,
	ledger gateway.CurrencyLedger,
	mailbox *MailboxService,
	pool *async.Pool,
	c cache.Cache,
	cat *catalog.Catalog,
	taxRate float64,
	currency string,
	cacheTTL time.Duration,
) *ShopService {
	if cat == nil {
		cat = catalog.Empty()
	}
	return &ShopService{
		store:    store,
		inv:      inv,
		ledger:   ledger,
		mailbox:  mailbox,
		pool:     pool,
		cache:    c,
		catalog:  cat,
		taxRate:  taxRate,
		currency: currency,
		cacheTTL: cacheTTL,
	}
}

// CreateOffer validates and persists a single shop offer.
func (s *ShopService) CreateOffer(ctx context.Context, seed catalog.SeedOffer) model.EconomyResult {
	offer, key, err := s.createOffer(ctx, seed)
	if err != nil {
		log.Printf("[Shop] Failed to create offer for %s/%s: %v", seed.ShopID, seed.RegistryID, err)
		return model.Fail(model.MsgInternalError)
	}
	if key != "" {
		return model.Fail(key)
	}
	return model.Ok(model.MsgOfferCreated, offer)
}

// createOffer returns a non-empty message key for rejections and a
// non-nil error only for infrastructure failures.
func (s *ShopService) createOffer(ctx context.Context, seed catalog.SeedOffer) (*model.ShopOffer, string, error) {
	if seed.ShopID == "" || seed.RegistryID == "" {
		return nil, model.MsgUnknownItem, nil
	}
	if !s.catalog.Knows(seed.RegistryID) {
		return nil, model.MsgUnknownItem, nil
	}
	if seed.Count <= 0 {
		return nil, model.MsgInvalidCount, nil
	}
	if seed.Price <= 0 {
		return nil, model.MsgInvalidPrice, nil
	}
	if seed.Stock < 0 && !seed.InfiniteStock {
		return nil, model.MsgInvalidCount, nil
	}

	data, err := seed.ItemData()
	if err != nil {
		return nil, model.MsgUnknownItem, nil
	}
	snap, err := itemref.Take(itemref.Stack{RegistryID: seed.RegistryID, Count: 1, Data: data})
	if err != nil {
		return nil, "", err
	}

	var existing *model.ShopOffer
	err = s.pool.Do(ctx, func(ctx context.Context) error {
		var err error
		existing, err = s.store.FindOffer(ctx, seed.ShopID, seed.RegistryID, snap.Key.Hash, seed.Category)
		return err
	})
	if err != nil {
		return nil, "", err
	}
	if existing != nil {
		return nil, model.MsgOfferExists, nil
	}

	offer := &model.ShopOffer{
		ID:             uid.New(),
		ShopID:         seed.ShopID,
		ItemRegistryID: seed.RegistryID,
		ItemHash:       snap.Key.Hash,
		ItemPayload:    snap.Payload,
		Count:          seed.Count,
		Price:          seed.Price,
		Stock:          seed.Stock,
		InfiniteStock:  seed.InfiniteStock,
		BuyEnabled:     seed.BuyEnabled,
		SellEnabled:    seed.SellEnabled,
		Category:       seed.Category,
		CreatedAt:      time.Now(),
	}
	if err := s.pool.Do(ctx, func(ctx context.Context) error {
		return s.store.CreateOffer(ctx, offer)
	}); err != nil {
		return nil, "", err
	}

	s.cache.DeletePrefix(ctx, cache.KeyQuote+seed.ShopID)
	return offer, "", nil
}

// ImportOffers bulk-creates offers, classifying each entry on its own.
func (s *ShopService) ImportOffers(ctx context.Context, seeds []catalog.SeedOffer) model.EconomyResult {
	report := model.ImportReport{}
	for i, seed := range seeds {
		_, key, err := s.createOffer(ctx, seed)
		switch {
		case err != nil:
			report.Failed++
			report.Errors = append(report.Errors, fmt.Sprintf("entry %d (%s): %v", i, seed.RegistryID, err))
		case key == model.MsgOfferExists:
			report.Skipped++
		case key != "":
			report.Failed++
			report.Errors = append(report.Errors, fmt.Sprintf("entry %d (%s): %s", i, seed.RegistryID, key))
		default:
			report.Created++
		}
	}
	log.Printf("[Shop] Import complete: %d created, %d skipped, %d failed", report.Created, report.Skipped, report.Failed)
	return model.Ok(model.MsgImportComplete, report)
}

// BuyOffer purchases units of an offer for the account. The item goes
// to the live container when it fits, to the mailbox otherwise.
func (s *ShopService) BuyOffer(ctx context.Context, account, offerID string, units int64) model.EconomyResult {
	if units <= 0 {
		return model.Fail(model.MsgInvalidCount)
	}
	if !s.ledger.Available() {
		return model.Fail(model.MsgCurrencyUnsupported)
	}

	offer, err := s.getOffer(ctx, offerID)
	if err != nil {
		return model.Fail(model.MsgInternalError)
	}
	if offer == nil {
		return model.Fail(model.MsgOfferNotFound)
	}
	if !offer.BuyEnabled {
		return model.Fail(model.MsgOfferBuyDisabled)
	}

	total, ok := totalOf(offer.Price, units)
	if !ok {
		return model.Fail(model.MsgQuantityTooLarge)
	}
	cost := total + cutOf(total, s.taxRate)
	itemCount, ok := countOf(offer.Count, units)
	if !ok {
		return model.Fail(model.MsgQuantityTooLarge)
	}

	// Stock is counted in items, not offer units.
	if !offer.InfiniteStock && offer.Stock < itemCount {
		return model.FailWith(model.MsgOfferUnavailable, map[string]interface{}{"stock": offer.Stock})
	}

	withdrawn, err := s.ledger.Withdraw(ctx, account, s.currency, cost)
	if err == gateway.ErrOffline {
		return model.Fail(model.MsgPlayerOffline)
	}
	if err != nil {
		log.Printf("[Shop] Withdraw failed for %s: %v", account, err)
		return model.Fail(model.MsgInternalError)
	}
	if !withdrawn {
		return model.FailWith(model.MsgInsufficientFunds, map[string]interface{}{"required": cost})
	}

	// The money is out; from here every exit either delivers or refunds.
	if !offer.InfiniteStock {
		accepted, err := s.casStock(ctx, offer.ID, offer.Stock-itemCount, offer.Version)
		if err != nil || !accepted {
			s.refund(ctx, account, cost)
			if err != nil {
				log.Printf("[Shop] Stock update failed for offer %s: %v", offer.ID, err)
				return model.Fail(model.MsgInternalError)
			}
			return model.Fail(model.MsgTryAgain)
		}
	}

	stack, err := itemref.Materialize(offer.ItemPayload, itemCount)
	if err != nil {
		// Corrupt payload. The stock is gone but the money must not be.
		log.Printf("[Shop] Offer %s payload unusable: %v", offer.ID, err)
		s.refund(ctx, account, cost)
		return model.Fail(model.MsgInternalError)
	}

	delivered := false
	inserted, err := s.inv.InsertStack(ctx, account, stack)
	if err == nil && inserted {
		delivered = true
	}
	if !delivered {
		snap := itemref.Snapshot{
			Key:     itemref.Key{RegistryID: offer.ItemRegistryID, Hash: offer.ItemHash},
			Count:   itemCount,
			Payload: offer.ItemPayload,
		}
		if err := s.mailbox.CreateItemDelivery(ctx, account, snap); err != nil {
			log.Printf("[Shop] Mailbox fallback failed for %s: %v", account, err)
			s.refund(ctx, account, cost)
			return model.Fail(model.MsgInternalError)
		}
	}

	s.cache.DeletePrefix(ctx, cache.KeyQuote+offer.ShopID)
	s.logTrade(ctx, "shop_buy", account, offer, itemCount, cost)

	data := map[string]interface{}{"units": units, "items": itemCount, "cost": cost}
	if delivered {
		return model.Ok(model.MsgItemsPurchased, data)
	}
	return model.Ok(model.MsgItemsSentDelivery, data)
}

// SellToShop sells up to units of the offer's item from the account's
// live container. Holdings below the requested amount clamp the sale
// rather than failing it. Shops pay the buyback value per unit, not
// the listed price.
func (s *ShopService) SellToShop(ctx context.Context, account, offerID string, units int64) model.EconomyResult {
	if units <= 0 {
		return model.Fail(model.MsgInvalidCount)
	}
	if !s.ledger.Available() {
		return model.Fail(model.MsgCurrencyUnsupported)
	}

	offer, err := s.getOffer(ctx, offerID)
	if err != nil {
		return model.Fail(model.MsgInternalError)
	}
	if offer == nil {
		return model.Fail(model.MsgOfferNotFound)
	}
	if !offer.SellEnabled {
		return model.Fail(model.MsgOfferSellDisabled)
	}

	key := itemref.Key{RegistryID: offer.ItemRegistryID, Hash: offer.ItemHash}
	held, err := s.inv.CountMatching(ctx, account, key)
	if err == gateway.ErrOffline {
		return model.Fail(model.MsgPlayerOffline)
	}
	if err != nil {
		return model.Fail(model.MsgInternalError)
	}

	sellUnits := units
	if max := held / offer.Count; max < sellUnits {
		sellUnits = max
	}
	if sellUnits == 0 {
		return model.Fail(model.MsgNoItemsToSell)
	}
	clamped := sellUnits < units

	itemCount, ok := countOf(offer.Count, sellUnits)
	if !ok {
		return model.Fail(model.MsgQuantityTooLarge)
	}
	total, ok := totalOf(buybackOf(offer.Price), sellUnits)
	if !ok {
		return model.Fail(model.MsgQuantityTooLarge)
	}
	proceeds := total - cutOf(total, s.taxRate)

	snap, err := s.inv.RemoveMatching(ctx, account, key, itemCount)
	if err == gateway.ErrOffline {
		return model.Fail(model.MsgPlayerOffline)
	}
	if err != nil {
		return model.Fail(model.MsgInternalError)
	}
	if snap == nil {
		// The container changed between count and removal.
		return model.Fail(model.MsgNoItemsToSell)
	}

	deposited, err := s.ledger.Deposit(ctx, account, s.currency, proceeds)
	if err != nil || !deposited {
		// Put the items back. If the actor dropped offline or the
		// container filled up in between, the mailbox keeps them safe.
		s.returnItems(ctx, account, snap)
		if err == gateway.ErrOffline {
			return model.Fail(model.MsgPlayerOffline)
		}
		return model.Fail(model.MsgBalanceUpdateFailed)
	}

	// Restock best effort; a conflict just means someone traded first.
	if !offer.InfiniteStock {
		if _, err := s.casStock(ctx, offer.ID, offer.Stock+itemCount, offer.Version); err != nil {
			log.Printf("[Shop] Restock failed for offer %s: %v", offer.ID, err)
		}
	}

	s.cache.DeletePrefix(ctx, cache.KeyQuote+offer.ShopID)
	s.logTrade(ctx, "shop_sell", account, offer, itemCount, proceeds)

	data := map[string]interface{}{"units": sellUnits, "items": itemCount, "proceeds": proceeds}
	if clamped {
		return model.Ok(model.MsgSoldAvailable, data)
	}
	return model.Ok(model.MsgSoldItems, data)
}

// PriceCheck quotes count units of an item against a shop without
// trading.
func (s *ShopService) PriceCheck(ctx context.Context, shopID, registryID string, data json.RawMessage, category string, count int64) (*model.Quote, error) {
	hash, err := itemref.HashOf(registryID, data)
	if err != nil {
		return nil, err
	}

	cacheKey := cache.KeyQuote + shopID + ":" + registryID + ":" + hash + ":" + category
	raw, err := s.cache.GetOrSet(ctx, cacheKey, s.cacheTTL, func() ([]byte, error) {
		var offer *model.ShopOffer
		err := s.pool.Do(ctx, func(ctx context.Context) error {
			var err error
			offer, err = s.store.FindOffer(ctx, shopID, registryID, hash, category)
			return err
		})
		if err != nil {
			return nil, err
		}
		if offer == nil {
			// No matching offer quotes as zero, never as an error.
			return json.Marshal(&model.Quote{})
		}
		unit := offer.Price + cutOf(offer.Price, s.taxRate)
		quote := &model.Quote{
			UnitPrice: unit,
			Total:     unit,
			Buyable:   offer.BuyEnabled && (offer.InfiniteStock || offer.Stock > 0),
		}
		return json.Marshal(quote)
	})
	if err != nil {
		return nil, err
	}

	var quote model.Quote
	if err := json.Unmarshal(raw, &quote); err != nil {
		return nil, err
	}
	if quote.UnitPrice > 0 {
		if count < 1 {
			count = 1
		}
		total, ok := totalOf(quote.UnitPrice, count)
		if !ok {
			return nil, fmt.Errorf("quote total overflows for count %d", count)
		}
		quote.Total = total
	}
	return &quote, nil
}

// ListOffers returns a page of a shop's offers.
func (s *ShopService) ListOffers(ctx context.Context, shopID string, page, limit int) ([]model.ShopOffer, int64, error) {
	var (
		offers []model.ShopOffer
		total  int64
	)
	err := s.pool.Do(ctx, func(ctx context.Context) error {
		var err error
		offers, total, err = s.store.ListOffers(ctx, shopID, page, limit)
		return err
	})
	return offers, total, err
}

func (s *ShopService) getOffer(ctx context.Context, id string) (*model.ShopOffer, error) {
	var offer *model.ShopOffer
	err := s.pool.Do(ctx, func(ctx context.Context) error {
		var err error
		offer, err = s.store.GetOffer(ctx, id)
		return err
	})
	if err != nil {
		log.Printf("[Shop] Failed to load offer %s: %v", id, err)
	}
	return offer, err
}

func (s *ShopService) casStock(ctx context.Context, offerID string, newStock, expectedVersion int64) (bool, error) {
	if newStock < 0 {
		newStock = 0
	}
	var accepted bool
	err := s.pool.Do(ctx, func(ctx context.Context) error {
		var err error
		accepted, err = s.store.UpdateOfferStock(ctx, offerID, newStock, expectedVersion)
		return err
	})
	return accepted, err
}

// refund returns withdrawn money to the account, falling back to the
// mailbox so a failed purchase can never eat the buyer's funds.
func (s *ShopService) refund(ctx context.Context, account string, amount int64) {
	ok, err := s.ledger.Deposit(ctx, account, s.currency, amount)
	if err == nil && ok {
		return
	}
	if mbErr := s.mailbox.CreateMoneyDelivery(ctx, account, s.currency, amount); mbErr != nil {
		log.Printf("[Shop] CRITICAL: refund of %d to %s lost both paths: deposit=%v mailbox=%v", amount, account, err, mbErr)
	}
}

// returnItems re-inserts a removed snapshot, mailboxing it when the
// live container cannot take it back.
func (s *ShopService) returnItems(ctx context.Context, account string, snap *itemref.Snapshot) {
	stack, err := itemref.Materialize(snap.Payload, snap.Count)
	if err == nil {
		if inserted, insErr := s.inv.InsertStack(ctx, account, stack); insErr == nil && inserted {
			return
		}
	}
	if mbErr := s.mailbox.CreateItemDelivery(ctx, account, *snap); mbErr != nil {
		log.Printf("[Shop] CRITICAL: item return to %s lost both paths: %v", account, mbErr)
	}
}

func (s *ShopService) logTrade(ctx context.Context, kind, account string, offer *model.ShopOffer, itemCount, amount int64) {
	entry := &model.TradeLog{
		Kind:           kind,
		Actor:          account,
		Counterparty:   offer.ShopID,
		ItemRegistryID: offer.ItemRegistryID,
		ItemCount:      itemCount,
		Amount:         amount,
		CurrencyID:     s.currency,
		MessageKey:     kind,
		CreatedAt:      time.Now(),
	}
	if err := s.pool.Do(ctx, func(ctx context.Context) error {
		return s.store.InsertTradeLog(ctx, entry)
	}); err != nil {
		log.Printf("[Shop] Failed to write trade log: %v", err)
	}
}
