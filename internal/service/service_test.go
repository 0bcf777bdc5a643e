package service

import (
	"context"
	"testing"
	"time"

	"bazaar-economy-api/internal/async"
	"bazaar-economy-api/internal/cache"
	"bazaar-economy-api/internal/catalog"
	"bazaar-economy-api/internal/gateway"
	"bazaar-economy-api/internal/model"
	"bazaar-economy-api/internal/notify"
	"bazaar-economy-api/internal/repository"
)

// testEconomy wires every service against the in-memory store and a
// real hub, close to the production object graph minus Redis.
type testEconomy struct {
	hub      *gateway.Hub
	inv      gateway.InventoryAdapter
	ledger   gateway.CurrencyLedger
	store    *repository.MemoryStore
	mailbox  *MailboxService
	shops    *ShopService
	auctions *AuctionService
	balances *BalanceService
}

func newTestEconomy(t *testing.T) *testEconomy {
	t.Helper()

	hub := gateway.NewHub()
	t.Cleanup(hub.Close)

	memCache := cache.NewMemoryCache()
	t.Cleanup(func() { memCache.Close() })

	store := repository.NewMemoryStore()
	t.Cleanup(func() { store.Close() })

	inv := gateway.NewHubInventory(hub)
	ledger := gateway.NewHubLedger(hub, true)
	pool := async.NewPool(4)

	cat := catalog.New([]catalog.ItemDef{
		{RegistryID: "bazaar:iron_sword", Name: "Iron Sword", MaxStack: 64},
		{RegistryID: "bazaar:apple", Name: "Apple", MaxStack: 64},
	}, nil)

	mailbox := NewMailboxService(store, inv, ledger, pool, memCache, notify.NopNotifier{}, 25, time.Minute)
	shops := NewShopService(store, inv, ledger, mailbox, pool, memCache, cat, 0, "coins", time.Minute)
	auctions := NewAuctionService(store, inv, ledger, mailbox, pool, memCache, notify.NopNotifier{}, AuctionConfig{
		FeeRate:         0,
		ListingFee:      0,
		MinStartPrice:   1,
		MaxOpenListings: 3,
		Currency:        "coins",
		CacheTTL:        time.Minute,
	})
	balances := NewBalanceService(ledger, mailbox, "coins")

	return &testEconomy{
		hub:      hub,
		inv:      inv,
		ledger:   ledger,
		store:    store,
		mailbox:  mailbox,
		shops:    shops,
		auctions: auctions,
		balances: balances,
	}
}

// connect registers a live session with a wallet balance.
func (e *testEconomy) connect(t *testing.T, account string, capacity int, coins int64) {
	t.Helper()
	ctx := context.Background()
	if err := e.hub.Connect(ctx, account, capacity); err != nil {
		t.Fatalf("Connect(%s): %v", account, err)
	}
	if err := e.hub.SetWallet(ctx, account, "coins", coins); err != nil {
		t.Fatalf("SetWallet(%s): %v", account, err)
	}
}

func (e *testEconomy) balance(t *testing.T, account string) int64 {
	t.Helper()
	bal, err := e.ledger.Balance(context.Background(), account, "coins")
	if err != nil {
		t.Fatalf("Balance(%s): %v", account, err)
	}
	return bal
}

func expectResult(t *testing.T, res model.EconomyResult, success bool, key string) {
	t.Helper()
	if res.Success != success || res.MessageKey != key {
		t.Fatalf("result = {success:%v key:%s data:%v}, want {success:%v key:%s}",
			res.Success, res.MessageKey, res.Data, success, key)
	}
}
