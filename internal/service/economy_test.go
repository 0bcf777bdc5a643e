package service

import (
	"context"
	"testing"

	"bazaar-economy-api/internal/model"
)

func TestEconomyFacade(t *testing.T) {
	e := newTestEconomy(t)
	econ := NewEconomy(e.balances, e.shops, e.auctions, e.mailbox)
	ctx := context.Background()
	e.connect(t, "alice", 4, 100)

	res := econ.GetBalance(ctx, "alice", "")
	expectResult(t, res, true, model.MsgBalanceUpdated)

	res = econ.CreateOffer(ctx, appleOffer())
	expectResult(t, res, true, model.MsgOfferCreated)
	offer, ok := res.Data.(*model.ShopOffer)
	if !ok {
		t.Fatalf("CreateOffer data = %T, want *model.ShopOffer", res.Data)
	}

	res = econ.BuyOffer(ctx, "alice", offer.ID, 1)
	expectResult(t, res, true, model.MsgItemsPurchased)

	quote, err := econ.PriceCheck(ctx, offer.ShopID, offer.ItemRegistryID, nil, offer.Category, 2)
	if err != nil || quote == nil || quote.Total != 20 {
		t.Fatalf("quote = %+v, %v; want total 20", quote, err)
	}

	pending, err := econ.PendingDeliveries(ctx, "alice")
	if err != nil || pending != 0 {
		t.Fatalf("pending = %d, %v; want 0", pending, err)
	}
}
