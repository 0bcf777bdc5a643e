package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"bazaar-economy-api/internal/model"
	"bazaar-economy-api/pkg/itemref"
)

func swordStack(count int64) itemref.Stack {
	return itemref.Stack{RegistryID: "bazaar:iron_sword", Count: count, Data: json.RawMessage(`{"sharpness":3}`)}
}

func swordParams(count int64) CreateListingParams {
	return CreateListingParams{
		RegistryID:    "bazaar:iron_sword",
		Data:          json.RawMessage(`{"sharpness":3}`),
		Count:         count,
		StartingPrice: 100,
		BidIncrement:  10,
		Duration:      time.Hour,
	}
}

func createListing(t *testing.T, e *testEconomy, seller string, p CreateListingParams) *model.AuctionListing {
	t.Helper()
	res := e.auctions.CreateListing(context.Background(), seller, p)
	expectResult(t, res, true, model.MsgListingCreated)
	l, ok := res.Data.(*model.AuctionListing)
	if !ok {
		t.Fatalf("CreateListing data = %T, want *model.AuctionListing", res.Data)
	}
	return l
}

func TestCreateListingEscrowsItem(t *testing.T) {
	e := newTestEconomy(t)
	ctx := context.Background()
	e.connect(t, "alice", 4, 0)
	if err := e.hub.GiveStack(ctx, "alice", swordStack(3)); err != nil {
		t.Fatalf("GiveStack: %v", err)
	}

	l := createListing(t, e, "alice", swordParams(3))

	// The items left the live container the moment the listing opened.
	key := itemref.Key{RegistryID: l.ItemRegistryID, Hash: l.ItemHash}
	held, err := e.inv.CountMatching(ctx, "alice", key)
	if err != nil || held != 0 {
		t.Fatalf("held after listing = %d, %v; want 0", held, err)
	}

	stored, err := e.store.GetListing(ctx, l.ID)
	if err != nil || stored == nil || stored.Status != model.ListingOpen {
		t.Fatalf("stored listing = %+v, %v", stored, err)
	}
}

func TestCreateListingMissingItems(t *testing.T) {
	e := newTestEconomy(t)
	e.connect(t, "alice", 4, 0)

	res := e.auctions.CreateListing(context.Background(), "alice", swordParams(1))
	expectResult(t, res, false, model.MsgItemsMissing)
}

func TestCreateListingCap(t *testing.T) {
	e := newTestEconomy(t)
	e.auctions.cfg.ListingFee = 5
	ctx := context.Background()
	e.connect(t, "alice", 4, 100)
	if err := e.hub.GiveStack(ctx, "alice", swordStack(4)); err != nil {
		t.Fatalf("GiveStack: %v", err)
	}

	var l *model.AuctionListing
	for i := 0; i < 3; i++ {
		l = createListing(t, e, "alice", swordParams(1))
	}
	if bal := e.balance(t, "alice"); bal != 85 {
		t.Fatalf("balance after three fees = %d, want 85", bal)
	}

	res := e.auctions.CreateListing(ctx, "alice", swordParams(1))
	expectResult(t, res, false, model.MsgListingCapReached)

	// The rejected attempt compensates in full: the fee comes back and
	// the escrowed sword returns to the live container.
	if bal := e.balance(t, "alice"); bal != 85 {
		t.Fatalf("balance after rejected listing = %d, want 85", bal)
	}
	key := itemref.Key{RegistryID: l.ItemRegistryID, Hash: l.ItemHash}
	held, err := e.inv.CountMatching(ctx, "alice", key)
	if err != nil || held != 1 {
		t.Fatalf("held after rejected listing = %d, %v; want 1", held, err)
	}
}

func TestBidLadder(t *testing.T) {
	e := newTestEconomy(t)
	ctx := context.Background()
	e.connect(t, "alice", 4, 0)
	e.connect(t, "bob", 4, 500)
	e.connect(t, "carol", 4, 500)
	if err := e.hub.GiveStack(ctx, "alice", swordStack(1)); err != nil {
		t.Fatalf("GiveStack: %v", err)
	}
	l := createListing(t, e, "alice", swordParams(1))

	// Below the starting price.
	res := e.auctions.PlaceBid(ctx, "bob", l.ID, 90)
	expectResult(t, res, false, model.MsgBidTooLow)

	// Exactly the starting price is accepted.
	res = e.auctions.PlaceBid(ctx, "bob", l.ID, 100)
	expectResult(t, res, true, model.MsgBidAccepted)
	if bal := e.balance(t, "bob"); bal != 400 {
		t.Fatalf("bob balance after bid = %d, want 400", bal)
	}

	// Next bid must clear highest + increment.
	res = e.auctions.PlaceBid(ctx, "carol", l.ID, 105)
	expectResult(t, res, false, model.MsgBidTooLow)

	res = e.auctions.PlaceBid(ctx, "carol", l.ID, 110)
	expectResult(t, res, true, model.MsgBidAccepted)

	// Outbid money comes straight back.
	if bal := e.balance(t, "bob"); bal != 500 {
		t.Fatalf("bob balance after outbid = %d, want 500", bal)
	}
	if bal := e.balance(t, "carol"); bal != 390 {
		t.Fatalf("carol balance = %d, want 390", bal)
	}
}

func TestBidOwnListing(t *testing.T) {
	e := newTestEconomy(t)
	ctx := context.Background()
	e.connect(t, "alice", 4, 500)
	if err := e.hub.GiveStack(ctx, "alice", swordStack(1)); err != nil {
		t.Fatalf("GiveStack: %v", err)
	}
	l := createListing(t, e, "alice", swordParams(1))

	res := e.auctions.PlaceBid(ctx, "alice", l.ID, 100)
	expectResult(t, res, false, model.MsgOwnListing)
}

func TestConcurrentBidsSingleWinner(t *testing.T) {
	e := newTestEconomy(t)
	ctx := context.Background()
	e.connect(t, "alice", 4, 0)
	e.connect(t, "bob", 4, 500)
	e.connect(t, "carol", 4, 500)
	if err := e.hub.GiveStack(ctx, "alice", swordStack(1)); err != nil {
		t.Fatalf("GiveStack: %v", err)
	}
	l := createListing(t, e, "alice", swordParams(1))

	// Two bidders race for the opening bid. Exactly one wins; the other
	// is either rejected outright or told to retry, with a full refund.
	var wg sync.WaitGroup
	results := make([]model.EconomyResult, 2)
	for i, bidder := range []string{"bob", "carol"} {
		wg.Add(1)
		go func(i int, bidder string) {
			defer wg.Done()
			results[i] = e.auctions.PlaceBid(ctx, bidder, l.ID, 100)
		}(i, bidder)
	}
	wg.Wait()

	accepted := 0
	for _, res := range results {
		if res.Success {
			accepted++
		}
	}
	if accepted != 1 {
		t.Fatalf("accepted bids = %d, want exactly 1", accepted)
	}

	// Only the winning 100 is held in escrow.
	if total := e.balance(t, "bob") + e.balance(t, "carol"); total != 900 {
		t.Fatalf("combined bidder balances = %d, want 900", total)
	}
	stored, _ := e.store.GetListing(ctx, l.ID)
	if stored.HighestBid != 100 {
		t.Fatalf("highest bid = %d, want 100", stored.HighestBid)
	}
}

func TestEscrowReturnFallsBackToMailbox(t *testing.T) {
	e := newTestEconomy(t)
	ctx := context.Background()

	// Owner offline: the returned escrow parks in the mailbox.
	snap := snapshotOf(t, swordStack(2))
	e.auctions.returnSnapshot(ctx, "ghost", &snap)
	pending, err := e.store.CountPendingDeliveries(ctx, "ghost")
	if err != nil || pending != 1 {
		t.Fatalf("pending = %d, %v; want 1", pending, err)
	}

	// Owner online with room: the items go straight back.
	e.connect(t, "alice", 4, 0)
	snap = snapshotOf(t, swordStack(2))
	e.auctions.returnSnapshot(ctx, "alice", &snap)
	held, _ := e.inv.CountMatching(ctx, "alice", snap.Key)
	if held != 2 {
		t.Fatalf("held after return = %d, want 2", held)
	}
	if p, _ := e.store.CountPendingDeliveries(ctx, "alice"); p != 0 {
		t.Fatalf("pending for online owner = %d, want 0", p)
	}
}

func TestBuyoutSettles(t *testing.T) {
	e := newTestEconomy(t)
	e.auctions.cfg.FeeRate = 0.05
	ctx := context.Background()
	e.connect(t, "alice", 4, 0)
	e.connect(t, "bob", 4, 500)
	if err := e.hub.GiveStack(ctx, "alice", swordStack(1)); err != nil {
		t.Fatalf("GiveStack: %v", err)
	}
	p := swordParams(1)
	p.BuyoutPrice = 200
	l := createListing(t, e, "alice", p)

	res := e.auctions.Buyout(ctx, "bob", l.ID)
	expectResult(t, res, true, model.MsgBuyoutComplete)

	if bal := e.balance(t, "bob"); bal != 300 {
		t.Fatalf("buyer balance = %d, want 300", bal)
	}
	// Seller receives the price minus the 5% house fee.
	if bal := e.balance(t, "alice"); bal != 190 {
		t.Fatalf("seller balance = %d, want 190", bal)
	}

	key := itemref.Key{RegistryID: l.ItemRegistryID, Hash: l.ItemHash}
	held, _ := e.inv.CountMatching(ctx, "bob", key)
	if held != 1 {
		t.Fatalf("buyer holds %d, want 1", held)
	}

	stored, _ := e.store.GetListing(ctx, l.ID)
	if stored.Status != model.ListingClosed {
		t.Fatalf("listing status = %s, want CLOSED", stored.Status)
	}
}

func TestBuyoutRefundsPreviousBidder(t *testing.T) {
	e := newTestEconomy(t)
	ctx := context.Background()
	e.connect(t, "alice", 4, 0)
	e.connect(t, "bob", 4, 500)
	e.connect(t, "carol", 4, 500)
	if err := e.hub.GiveStack(ctx, "alice", swordStack(1)); err != nil {
		t.Fatalf("GiveStack: %v", err)
	}
	p := swordParams(1)
	p.BuyoutPrice = 200
	l := createListing(t, e, "alice", p)

	expectResult(t, e.auctions.PlaceBid(ctx, "bob", l.ID, 100), true, model.MsgBidAccepted)
	expectResult(t, e.auctions.Buyout(ctx, "carol", l.ID), true, model.MsgBuyoutComplete)

	if bal := e.balance(t, "bob"); bal != 500 {
		t.Fatalf("outbid bidder balance = %d, want 500", bal)
	}
	if bal := e.balance(t, "alice"); bal != 200 {
		t.Fatalf("seller balance = %d, want 200", bal)
	}
}

func TestBuyoutUnavailable(t *testing.T) {
	e := newTestEconomy(t)
	ctx := context.Background()
	e.connect(t, "alice", 4, 0)
	e.connect(t, "bob", 4, 500)
	if err := e.hub.GiveStack(ctx, "alice", swordStack(1)); err != nil {
		t.Fatalf("GiveStack: %v", err)
	}
	l := createListing(t, e, "alice", swordParams(1))

	res := e.auctions.Buyout(ctx, "bob", l.ID)
	expectResult(t, res, false, model.MsgBuyoutUnavailable)
}

func TestCancelListingReturnsItemViaMailbox(t *testing.T) {
	e := newTestEconomy(t)
	ctx := context.Background()
	e.connect(t, "alice", 4, 0)
	if err := e.hub.GiveStack(ctx, "alice", swordStack(1)); err != nil {
		t.Fatalf("GiveStack: %v", err)
	}
	l := createListing(t, e, "alice", swordParams(1))

	res := e.auctions.CancelListing(ctx, "alice", l.ID)
	expectResult(t, res, true, model.MsgListingCancelled)

	stored, _ := e.store.GetListing(ctx, l.ID)
	if stored.Status != model.ListingCancelled {
		t.Fatalf("status = %s, want CANCELLED", stored.Status)
	}

	// The escrowed item waits in the mailbox, not the live container.
	pending, err := e.mailbox.PendingCount(ctx, "alice")
	if err != nil || pending != 1 {
		t.Fatalf("pending = %d, %v; want 1", pending, err)
	}

	claim := e.mailbox.ClaimDeliveries(ctx, "alice", 0)
	expectResult(t, claim, true, model.MsgDeliveriesClaimed)
	key := itemref.Key{RegistryID: l.ItemRegistryID, Hash: l.ItemHash}
	held, _ := e.inv.CountMatching(ctx, "alice", key)
	if held != 1 {
		t.Fatalf("held after claim = %d, want 1", held)
	}
}

func TestCancelListingGuards(t *testing.T) {
	e := newTestEconomy(t)
	ctx := context.Background()
	e.connect(t, "alice", 4, 0)
	e.connect(t, "bob", 4, 500)
	if err := e.hub.GiveStack(ctx, "alice", swordStack(2)); err != nil {
		t.Fatalf("GiveStack: %v", err)
	}
	l := createListing(t, e, "alice", swordParams(1))

	res := e.auctions.CancelListing(ctx, "bob", l.ID)
	expectResult(t, res, false, model.MsgCancelForbidden)

	expectResult(t, e.auctions.PlaceBid(ctx, "bob", l.ID, 100), true, model.MsgBidAccepted)
	res = e.auctions.CancelListing(ctx, "alice", l.ID)
	expectResult(t, res, false, model.MsgListingHasBids)
}

func TestExpirySettlesWinner(t *testing.T) {
	e := newTestEconomy(t)
	ctx := context.Background()
	base := time.Now()
	e.auctions.now = func() time.Time { return base }

	e.connect(t, "alice", 4, 0)
	e.connect(t, "bob", 4, 500)
	if err := e.hub.GiveStack(ctx, "alice", swordStack(1)); err != nil {
		t.Fatalf("GiveStack: %v", err)
	}
	p := swordParams(1)
	p.Duration = 10 * time.Minute
	l := createListing(t, e, "alice", p)
	expectResult(t, e.auctions.PlaceBid(ctx, "bob", l.ID, 100), true, model.MsgBidAccepted)

	e.auctions.now = func() time.Time { return base.Add(11 * time.Minute) }
	settled, err := e.auctions.ProcessExpirations(ctx, 50)
	if err != nil || settled != 1 {
		t.Fatalf("ProcessExpirations = %d, %v; want 1", settled, err)
	}

	stored, _ := e.store.GetListing(ctx, l.ID)
	if stored.Status != model.ListingClosed {
		t.Fatalf("status = %s, want CLOSED", stored.Status)
	}
	if bal := e.balance(t, "alice"); bal != 100 {
		t.Fatalf("seller balance = %d, want 100", bal)
	}
	key := itemref.Key{RegistryID: l.ItemRegistryID, Hash: l.ItemHash}
	held, _ := e.inv.CountMatching(ctx, "bob", key)
	if held != 1 {
		t.Fatalf("winner holds %d, want 1", held)
	}
}

func TestExpiryWithoutBidsReturnsItem(t *testing.T) {
	e := newTestEconomy(t)
	ctx := context.Background()
	base := time.Now()
	e.auctions.now = func() time.Time { return base }

	e.connect(t, "alice", 4, 0)
	if err := e.hub.GiveStack(ctx, "alice", swordStack(1)); err != nil {
		t.Fatalf("GiveStack: %v", err)
	}
	p := swordParams(1)
	p.Duration = 10 * time.Minute
	l := createListing(t, e, "alice", p)

	e.auctions.now = func() time.Time { return base.Add(11 * time.Minute) }
	settled, err := e.auctions.ProcessExpirations(ctx, 50)
	if err != nil || settled != 1 {
		t.Fatalf("ProcessExpirations = %d, %v; want 1", settled, err)
	}

	stored, _ := e.store.GetListing(ctx, l.ID)
	if stored.Status != model.ListingExpired {
		t.Fatalf("status = %s, want EXPIRED", stored.Status)
	}
	key := itemref.Key{RegistryID: l.ItemRegistryID, Hash: l.ItemHash}
	held, _ := e.inv.CountMatching(ctx, "alice", key)
	if held != 1 {
		t.Fatalf("seller holds %d after return, want 1", held)
	}
}

func TestExpiredListingRejectsBid(t *testing.T) {
	e := newTestEconomy(t)
	ctx := context.Background()
	base := time.Now()
	e.auctions.now = func() time.Time { return base }

	e.connect(t, "alice", 4, 0)
	e.connect(t, "bob", 4, 500)
	if err := e.hub.GiveStack(ctx, "alice", swordStack(1)); err != nil {
		t.Fatalf("GiveStack: %v", err)
	}
	p := swordParams(1)
	p.Duration = 10 * time.Minute
	l := createListing(t, e, "alice", p)

	e.auctions.now = func() time.Time { return base.Add(11 * time.Minute) }
	res := e.auctions.PlaceBid(ctx, "bob", l.ID, 100)
	expectResult(t, res, false, model.MsgListingNotOpen)
	if bal := e.balance(t, "bob"); bal != 500 {
		t.Fatalf("balance changed on rejected bid: %d", bal)
	}
}
