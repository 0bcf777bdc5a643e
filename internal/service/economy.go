package service

import (
	"context"
	"encoding/json"

	"bazaar-economy-api/internal/catalog"
	"bazaar-economy-api/internal/model"
)

// Economy composes the balance, shop, auction and mailbox services
// into the single operation set programmatic callers consume. The HTTP
// handlers talk to this facade, never to the services underneath.
type Economy struct {
	balances *BalanceService
	shops    *ShopService
	auctions *AuctionService
	mailbox  *MailboxService
}

// NewEconomy creates the economy facade.
func NewEconomy(balances *BalanceService, shops *ShopService, auctions *AuctionService, mailbox *MailboxService) *Economy {
	return &Economy{
		balances: balances,
		shops:    shops,
		auctions: auctions,
		mailbox:  mailbox,
	}
}

// Balance operations.

func (e *Economy) GetBalance(ctx context.Context, account, currencyID string) model.EconomyResult {
	return e.balances.Balance(ctx, account, currencyID)
}

func (e *Economy) Credit(ctx context.Context, account, currencyID string, amount int64) model.EconomyResult {
	return e.balances.Grant(ctx, account, currencyID, amount)
}

func (e *Economy) Debit(ctx context.Context, account, currencyID string, amount int64) model.EconomyResult {
	return e.balances.Take(ctx, account, currencyID, amount)
}

// Shop operations.

func (e *Economy) CreateOffer(ctx context.Context, seed catalog.SeedOffer) model.EconomyResult {
	return e.shops.CreateOffer(ctx, seed)
}

func (e *Economy) ImportOffers(ctx context.Context, seeds []catalog.SeedOffer) model.EconomyResult {
	return e.shops.ImportOffers(ctx, seeds)
}

func (e *Economy) BuyOffer(ctx context.Context, account, offerID string, units int64) model.EconomyResult {
	return e.shops.BuyOffer(ctx, account, offerID, units)
}

func (e *Economy) SellToShop(ctx context.Context, account, offerID string, units int64) model.EconomyResult {
	return e.shops.SellToShop(ctx, account, offerID, units)
}

func (e *Economy) PriceCheck(ctx context.Context, shopID, registryID string, data json.RawMessage, category string, count int64) (*model.Quote, error) {
	return e.shops.PriceCheck(ctx, shopID, registryID, data, category, count)
}

func (e *Economy) ListOffers(ctx context.Context, shopID string, page, limit int) ([]model.ShopOffer, int64, error) {
	return e.shops.ListOffers(ctx, shopID, page, limit)
}

// Auction operations.

func (e *Economy) CreateListing(ctx context.Context, seller string, p CreateListingParams) model.EconomyResult {
	return e.auctions.CreateListing(ctx, seller, p)
}

func (e *Economy) PlaceBid(ctx context.Context, bidder, listingID string, amount int64) model.EconomyResult {
	return e.auctions.PlaceBid(ctx, bidder, listingID, amount)
}

func (e *Economy) Buyout(ctx context.Context, buyer, listingID string) model.EconomyResult {
	return e.auctions.Buyout(ctx, buyer, listingID)
}

func (e *Economy) CancelListing(ctx context.Context, seller, listingID string) model.EconomyResult {
	return e.auctions.CancelListing(ctx, seller, listingID)
}

func (e *Economy) ListOpenListings(ctx context.Context, query string, page, limit int) ([]model.AuctionListing, int64, error) {
	return e.auctions.ListOpenListings(ctx, query, page, limit)
}

func (e *Economy) GetListing(ctx context.Context, id string) (*model.AuctionListing, error) {
	return e.auctions.GetListing(ctx, id)
}

// Mailbox operations.

func (e *Economy) ClaimDeliveries(ctx context.Context, account string, limit int) model.EconomyResult {
	return e.mailbox.ClaimDeliveries(ctx, account, limit)
}

func (e *Economy) PendingDeliveries(ctx context.Context, account string) (int64, error) {
	return e.mailbox.PendingCount(ctx, account)
}
