package service

import (
	"context"
	"encoding/json"
	"testing"

	"bazaar-economy-api/internal/catalog"
	"bazaar-economy-api/internal/model"
	"bazaar-economy-api/pkg/itemref"
)

func seedOffer(t *testing.T, e *testEconomy, seed catalog.SeedOffer) *model.ShopOffer {
	t.Helper()
	res := e.shops.CreateOffer(context.Background(), seed)
	expectResult(t, res, true, model.MsgOfferCreated)
	offer, ok := res.Data.(*model.ShopOffer)
	if !ok {
		t.Fatalf("CreateOffer data = %T, want *model.ShopOffer", res.Data)
	}
	return offer
}

func appleOffer() catalog.SeedOffer {
	return catalog.SeedOffer{
		ShopID:      "general",
		RegistryID:  "bazaar:apple",
		Count:       2,
		Price:       10,
		Stock:       10,
		BuyEnabled:  true,
		SellEnabled: true,
		Category:    "food",
	}
}

func TestCreateOfferValidation(t *testing.T) {
	e := newTestEconomy(t)
	ctx := context.Background()

	res := e.shops.CreateOffer(ctx, catalog.SeedOffer{ShopID: "general", RegistryID: "bazaar:unknown", Count: 1, Price: 1})
	expectResult(t, res, false, model.MsgUnknownItem)

	seed := appleOffer()
	seed.Price = 0
	res = e.shops.CreateOffer(ctx, seed)
	expectResult(t, res, false, model.MsgInvalidPrice)

	seedOffer(t, e, appleOffer())
	res = e.shops.CreateOffer(ctx, appleOffer())
	expectResult(t, res, false, model.MsgOfferExists)
}

func TestBuyOffer(t *testing.T) {
	e := newTestEconomy(t)
	ctx := context.Background()
	offer := seedOffer(t, e, appleOffer())
	e.connect(t, "alice", 4, 100)

	res := e.shops.BuyOffer(ctx, "alice", offer.ID, 3)
	expectResult(t, res, true, model.MsgItemsPurchased)

	if bal := e.balance(t, "alice"); bal != 70 {
		t.Fatalf("balance after buy = %d, want 70", bal)
	}

	key := itemref.Key{RegistryID: offer.ItemRegistryID, Hash: offer.ItemHash}
	held, err := e.inv.CountMatching(ctx, "alice", key)
	if err != nil || held != 6 {
		t.Fatalf("held = %d, %v; want 6", held, err)
	}

	stored, err := e.store.GetOffer(ctx, offer.ID)
	if err != nil || stored == nil {
		t.Fatalf("GetOffer: %v", err)
	}
	// 3 units of a count-2 offer consume 6 items of stock.
	if stored.Stock != 4 {
		t.Fatalf("stock after buy = %d, want 4", stored.Stock)
	}
}

func TestBuyOfferInsufficientFunds(t *testing.T) {
	e := newTestEconomy(t)
	offer := seedOffer(t, e, appleOffer())
	e.connect(t, "alice", 4, 5)

	res := e.shops.BuyOffer(context.Background(), "alice", offer.ID, 1)
	expectResult(t, res, false, model.MsgInsufficientFunds)
	if bal := e.balance(t, "alice"); bal != 5 {
		t.Fatalf("balance changed on failed buy: %d", bal)
	}
}

func TestBuyOfferOfflineActor(t *testing.T) {
	e := newTestEconomy(t)
	offer := seedOffer(t, e, appleOffer())

	res := e.shops.BuyOffer(context.Background(), "ghost", offer.ID, 1)
	expectResult(t, res, false, model.MsgPlayerOffline)
}

func TestBuyOfferInsufficientStock(t *testing.T) {
	e := newTestEconomy(t)
	offer := seedOffer(t, e, appleOffer())
	e.connect(t, "alice", 4, 1000)

	// 6 units is 12 items, more than the 10 in stock.
	res := e.shops.BuyOffer(context.Background(), "alice", offer.ID, 6)
	expectResult(t, res, false, model.MsgOfferUnavailable)
}

func TestBuySellRoundTripConservesStock(t *testing.T) {
	e := newTestEconomy(t)
	ctx := context.Background()
	offer := seedOffer(t, e, appleOffer())
	e.connect(t, "alice", 4, 100)

	res := e.shops.BuyOffer(ctx, "alice", offer.ID, 2)
	expectResult(t, res, true, model.MsgItemsPurchased)

	stored, err := e.store.GetOffer(ctx, offer.ID)
	if err != nil || stored == nil {
		t.Fatalf("GetOffer: %v", err)
	}
	if stored.Stock != 6 {
		t.Fatalf("stock after buy = %d, want 6", stored.Stock)
	}

	res = e.shops.SellToShop(ctx, "alice", offer.ID, 2)
	expectResult(t, res, true, model.MsgSoldItems)

	stored, err = e.store.GetOffer(ctx, offer.ID)
	if err != nil || stored == nil {
		t.Fatalf("GetOffer: %v", err)
	}
	if stored.Stock != 10 {
		t.Fatalf("stock after round trip = %d, want 10", stored.Stock)
	}
}

func TestBuyOfferFullContainerGoesToMailbox(t *testing.T) {
	e := newTestEconomy(t)
	ctx := context.Background()
	offer := seedOffer(t, e, appleOffer())
	e.connect(t, "bob", 1, 100)

	// Occupy the only slot with an unrelated item.
	if err := e.hub.GiveStack(ctx, "bob", itemref.Stack{RegistryID: "bazaar:iron_sword", Count: 1, Data: json.RawMessage(`{"sharpness":1}`)}); err != nil {
		t.Fatalf("GiveStack: %v", err)
	}

	res := e.shops.BuyOffer(ctx, "bob", offer.ID, 1)
	expectResult(t, res, true, model.MsgItemsSentDelivery)

	// Money is spent and the items wait in the mailbox.
	if bal := e.balance(t, "bob"); bal != 90 {
		t.Fatalf("balance = %d, want 90", bal)
	}
	pending, err := e.mailbox.PendingCount(ctx, "bob")
	if err != nil || pending != 1 {
		t.Fatalf("pending = %d, %v; want 1", pending, err)
	}
}

func TestSellToShop(t *testing.T) {
	e := newTestEconomy(t)
	ctx := context.Background()
	offer := seedOffer(t, e, appleOffer())
	e.connect(t, "alice", 4, 0)

	if err := e.hub.GiveStack(ctx, "alice", itemref.Stack{RegistryID: "bazaar:apple", Count: 10}); err != nil {
		t.Fatalf("GiveStack: %v", err)
	}

	res := e.shops.SellToShop(ctx, "alice", offer.ID, 2)
	expectResult(t, res, true, model.MsgSoldItems)

	// 2 units at buyback value 1 (a tenth of the list price of 10).
	if bal := e.balance(t, "alice"); bal != 2 {
		t.Fatalf("balance after sell = %d, want 2", bal)
	}
	key := itemref.Key{RegistryID: offer.ItemRegistryID, Hash: offer.ItemHash}
	held, _ := e.inv.CountMatching(ctx, "alice", key)
	if held != 6 {
		t.Fatalf("held after sell = %d, want 6", held)
	}
}

func TestSellToShopClampsToHoldings(t *testing.T) {
	e := newTestEconomy(t)
	ctx := context.Background()
	offer := seedOffer(t, e, appleOffer())
	e.connect(t, "alice", 4, 0)

	// 5 apples = 2 full units of 2, one apple left over.
	if err := e.hub.GiveStack(ctx, "alice", itemref.Stack{RegistryID: "bazaar:apple", Count: 5}); err != nil {
		t.Fatalf("GiveStack: %v", err)
	}

	res := e.shops.SellToShop(ctx, "alice", offer.ID, 100)
	expectResult(t, res, true, model.MsgSoldAvailable)

	if bal := e.balance(t, "alice"); bal != 2 {
		t.Fatalf("balance = %d, want 2", bal)
	}
	key := itemref.Key{RegistryID: offer.ItemRegistryID, Hash: offer.ItemHash}
	held, _ := e.inv.CountMatching(ctx, "alice", key)
	if held != 1 {
		t.Fatalf("leftover = %d, want 1", held)
	}
}

func TestSellToShopNothingHeld(t *testing.T) {
	e := newTestEconomy(t)
	offer := seedOffer(t, e, appleOffer())
	e.connect(t, "alice", 4, 0)

	res := e.shops.SellToShop(context.Background(), "alice", offer.ID, 1)
	expectResult(t, res, false, model.MsgNoItemsToSell)
}

func TestBuyAppliesTax(t *testing.T) {
	e := newTestEconomy(t)
	e.shops.taxRate = 0.05
	offer := seedOffer(t, e, appleOffer())
	e.connect(t, "alice", 4, 100)

	// 1 unit: 10 + round(0.5) = 11.
	res := e.shops.BuyOffer(context.Background(), "alice", offer.ID, 1)
	expectResult(t, res, true, model.MsgItemsPurchased)
	if bal := e.balance(t, "alice"); bal != 89 {
		t.Fatalf("balance = %d, want 89", bal)
	}
}

func TestImportOffersReport(t *testing.T) {
	e := newTestEconomy(t)
	seedOffer(t, e, appleOffer())

	res := e.shops.ImportOffers(context.Background(), []catalog.SeedOffer{
		appleOffer(), // duplicate -> skipped
		{ShopID: "general", RegistryID: "bazaar:iron_sword", Count: 1, Price: 50, Stock: 1, BuyEnabled: true},
		{ShopID: "general", RegistryID: "bazaar:nope", Count: 1, Price: 1}, // unknown -> failed
	})
	expectResult(t, res, true, model.MsgImportComplete)

	report, ok := res.Data.(model.ImportReport)
	if !ok {
		t.Fatalf("data = %T, want model.ImportReport", res.Data)
	}
	if report.Created != 1 || report.Skipped != 1 || report.Failed != 1 {
		t.Fatalf("report = %+v, want 1/1/1", report)
	}
}

func TestPriceCheck(t *testing.T) {
	e := newTestEconomy(t)
	ctx := context.Background()
	seedOffer(t, e, appleOffer())

	quote, err := e.shops.PriceCheck(ctx, "general", "bazaar:apple", nil, "", 3)
	if err != nil {
		t.Fatalf("PriceCheck: %v", err)
	}
	if quote == nil || quote.UnitPrice != 10 || quote.Total != 30 || !quote.Buyable {
		t.Fatalf("quote = %+v, want unit 10 total 30 buyable", quote)
	}

	// An unlisted item quotes as zero, not as an error.
	quote, err = e.shops.PriceCheck(ctx, "general", "bazaar:iron_sword", nil, "", 1)
	if err != nil {
		t.Fatalf("PriceCheck: %v", err)
	}
	if quote == nil || quote.UnitPrice != 0 || quote.Total != 0 || quote.Buyable {
		t.Fatalf("quote for unlisted item = %+v, want zero quote", quote)
	}
}
