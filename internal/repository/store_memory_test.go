package repository

import (
	"context"
	"testing"
	"time"

	"bazaar-economy-api/internal/model"
)

func openListing(id, seller string, expires time.Time) *model.AuctionListing {
	return &model.AuctionListing{
		ID:             id,
		Seller:         seller,
		ItemRegistryID: "bazaar:iron_ingot",
		ItemHash:       "abc",
		ItemPayload:    []byte(`{"registry_id":"bazaar:iron_ingot"}`),
		Count:          10,
		StartingPrice:  100,
		BidIncrement:   10,
		CurrencyID:     "coins",
		CreatedAt:      time.Now(),
		ExpiresAt:      expires,
		Status:         model.ListingOpen,
	}
}

func TestListingVersionCAS(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	l := openListing("l1", "alice", time.Now().Add(time.Hour))
	if err := store.CreateListing(ctx, l); err != nil {
		t.Fatalf("CreateListing: %v", err)
	}
	if l.Version != 1 {
		t.Fatalf("new listing version = %d, want 1", l.Version)
	}

	// Two writers read the same version. Only one write is accepted.
	a, _ := store.GetListing(ctx, "l1")
	b, _ := store.GetListing(ctx, "l1")

	a.HighestBidder = "bob"
	a.HighestBid = 100
	ok, err := store.UpdateListing(ctx, a, a.Version)
	if err != nil || !ok {
		t.Fatalf("first CAS write rejected: ok=%v err=%v", ok, err)
	}
	if a.Version != 2 {
		t.Fatalf("winner version = %d, want 2", a.Version)
	}

	b.HighestBidder = "carol"
	b.HighestBid = 120
	ok, err = store.UpdateListing(ctx, b, b.Version)
	if err != nil {
		t.Fatalf("second CAS write errored: %v", err)
	}
	if ok {
		t.Fatalf("stale CAS write was accepted; lost update")
	}

	cur, _ := store.GetListing(ctx, "l1")
	if cur.HighestBidder != "bob" || cur.HighestBid != 100 {
		t.Fatalf("stored bid = %s/%d, want bob/100", cur.HighestBidder, cur.HighestBid)
	}
}

func TestOfferStockCAS(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	o := &model.ShopOffer{
		ID: "o1", ShopID: "smithy", ItemRegistryID: "bazaar:iron_ingot", ItemHash: "abc",
		ItemPayload: []byte(`{"registry_id":"bazaar:iron_ingot"}`),
		Count:       1, Price: 5, Stock: 5, BuyEnabled: true, CreatedAt: time.Now(),
	}
	if err := store.CreateOffer(ctx, o); err != nil {
		t.Fatalf("CreateOffer: %v", err)
	}

	ok, _ := store.UpdateOfferStock(ctx, "o1", 2, 1)
	if !ok {
		t.Fatalf("first stock write rejected")
	}
	ok, _ = store.UpdateOfferStock(ctx, "o1", 0, 1)
	if ok {
		t.Fatalf("stale stock write accepted")
	}

	cur, _ := store.GetOffer(ctx, "o1")
	if cur.Stock != 2 || cur.Version != 2 {
		t.Fatalf("offer stock/version = %d/%d, want 2/2", cur.Stock, cur.Version)
	}
}

func TestPendingDeliveriesOrdered(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	base := time.Now()
	for i, id := range []string{"d1", "d2", "d3"} {
		d := &model.Delivery{
			ID: id, Owner: "alice", Type: model.DeliveryMoney,
			CurrencyID: "coins", Amount: int64(i + 1),
			Status: model.DeliveryPending, CreatedAt: base.Add(time.Duration(i) * time.Millisecond),
		}
		if err := store.InsertDelivery(ctx, d); err != nil {
			t.Fatalf("InsertDelivery: %v", err)
		}
	}

	got, err := store.ListPendingDeliveries(ctx, "alice", 10)
	if err != nil {
		t.Fatalf("ListPendingDeliveries: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("pending count = %d, want 3", len(got))
	}
	for i, id := range []string{"d1", "d2", "d3"} {
		if got[i].ID != id {
			t.Fatalf("delivery %d = %s, want %s (creation order)", i, got[i].ID, id)
		}
	}

	if err := store.MarkDeliveryClaimed(ctx, "d2"); err != nil {
		t.Fatalf("MarkDeliveryClaimed: %v", err)
	}
	got, _ = store.ListPendingDeliveries(ctx, "alice", 10)
	if len(got) != 2 || got[0].ID != "d1" || got[1].ID != "d3" {
		t.Fatalf("expected d1,d3 pending after claiming d2, got %v", got)
	}

	n, _ := store.CountPendingDeliveries(ctx, "alice")
	if n != 2 {
		t.Fatalf("CountPendingDeliveries = %d, want 2", n)
	}
}

func TestListOpenListingsPagination(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	base := time.Now().Add(time.Hour)
	ids := []string{"a", "b", "c", "d", "e"}
	for i, id := range ids {
		l := openListing(id, "alice", base.Add(time.Duration(i)*time.Minute))
		if err := store.CreateListing(ctx, l); err != nil {
			t.Fatalf("CreateListing: %v", err)
		}
	}

	page1, total, err := store.ListOpenListings(ctx, "", 1, 2)
	if err != nil {
		t.Fatalf("ListOpenListings: %v", err)
	}
	if total != 5 || len(page1) != 2 {
		t.Fatalf("page1 total=%d len=%d, want 5/2", total, len(page1))
	}
	if page1[0].ID != "a" || page1[1].ID != "b" {
		t.Fatalf("page1 = %s,%s, want a,b (soonest expiry first)", page1[0].ID, page1[1].ID)
	}

	page3, _, _ := store.ListOpenListings(ctx, "", 3, 2)
	if len(page3) != 1 || page3[0].ID != "e" {
		t.Fatalf("page3 unexpected: %v", page3)
	}

	none, total, _ := store.ListOpenListings(ctx, "diamond", 1, 10)
	if total != 0 || len(none) != 0 {
		t.Fatalf("query filter failed: total=%d len=%d", total, len(none))
	}
}
