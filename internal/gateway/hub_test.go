package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"bazaar-economy-api/pkg/itemref"
)

func TestHubOfflineActor(t *testing.T) {
	ctx := context.Background()
	hub := NewHub()
	defer hub.Close()

	inv := NewHubInventory(hub)
	ledger := NewHubLedger(hub, true)

	if _, err := inv.CountMatching(ctx, "ghost", itemref.Key{RegistryID: "bazaar:dirt"}); err != ErrOffline {
		t.Fatalf("CountMatching for offline actor: err = %v, want ErrOffline", err)
	}
	if _, err := ledger.Withdraw(ctx, "ghost", "coins", 10); err != ErrOffline {
		t.Fatalf("Withdraw for offline actor: err = %v, want ErrOffline", err)
	}
}

func TestInventoryInsertRemoveCount(t *testing.T) {
	ctx := context.Background()
	hub := NewHub()
	defer hub.Close()
	inv := NewHubInventory(hub)

	if err := hub.Connect(ctx, "alice", 2); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	sword := itemref.Stack{RegistryID: "bazaar:iron_sword", Count: 3, Data: json.RawMessage(`{"sharpness":3}`)}
	ok, err := inv.InsertStack(ctx, "alice", sword)
	if err != nil || !ok {
		t.Fatalf("InsertStack: ok=%v err=%v", ok, err)
	}

	snap, err := itemref.Take(sword)
	if err != nil {
		t.Fatalf("Take: %v", err)
	}

	n, err := inv.CountMatching(ctx, "alice", snap.Key)
	if err != nil || n != 3 {
		t.Fatalf("CountMatching = %d, %v; want 3", n, err)
	}

	// Same key merges into the existing stack rather than using a slot.
	if ok, _ := inv.InsertStack(ctx, "alice", sword); !ok {
		t.Fatalf("merge insert failed")
	}
	n, _ = inv.CountMatching(ctx, "alice", snap.Key)
	if n != 6 {
		t.Fatalf("after merge count = %d, want 6", n)
	}

	// Removing more than held removes nothing.
	got, err := inv.RemoveMatching(ctx, "alice", snap.Key, 10)
	if err != nil || got != nil {
		t.Fatalf("over-remove: snap=%v err=%v, want nil/nil", got, err)
	}
	n, _ = inv.CountMatching(ctx, "alice", snap.Key)
	if n != 6 {
		t.Fatalf("count changed after failed removal: %d", n)
	}

	got, err = inv.RemoveMatching(ctx, "alice", snap.Key, 4)
	if err != nil || got == nil {
		t.Fatalf("RemoveMatching: snap=%v err=%v", got, err)
	}
	if got.Count != 4 || got.Key != snap.Key {
		t.Fatalf("removed snapshot = %+v, want key %+v count 4", got, snap.Key)
	}
	n, _ = inv.CountMatching(ctx, "alice", snap.Key)
	if n != 2 {
		t.Fatalf("remaining count = %d, want 2", n)
	}
}

func TestInventoryCapacity(t *testing.T) {
	ctx := context.Background()
	hub := NewHub()
	defer hub.Close()
	inv := NewHubInventory(hub)

	if err := hub.Connect(ctx, "bob", 1); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	first := itemref.Stack{RegistryID: "bazaar:dirt", Count: 1}
	second := itemref.Stack{RegistryID: "bazaar:stone", Count: 1}

	if ok, _ := inv.InsertStack(ctx, "bob", first); !ok {
		t.Fatalf("first insert should fit")
	}
	ok, err := inv.InsertStack(ctx, "bob", second)
	if err != nil {
		t.Fatalf("InsertStack: %v", err)
	}
	if ok {
		t.Fatalf("insert into full container succeeded")
	}
}

func TestLedgerWithdrawDeposit(t *testing.T) {
	ctx := context.Background()
	hub := NewHub()
	defer hub.Close()
	ledger := NewHubLedger(hub, true)

	if err := hub.Connect(ctx, "alice", 4); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := hub.SetWallet(ctx, "alice", "coins", 100); err != nil {
		t.Fatalf("SetWallet: %v", err)
	}

	ok, err := ledger.Withdraw(ctx, "alice", "coins", 150)
	if err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	if ok {
		t.Fatalf("overdraft accepted")
	}

	if ok, _ := ledger.Withdraw(ctx, "alice", "coins", 40); !ok {
		t.Fatalf("withdraw within balance rejected")
	}
	if ok, _ := ledger.Deposit(ctx, "alice", "coins", 15); !ok {
		t.Fatalf("deposit rejected")
	}

	bal, err := ledger.Balance(ctx, "alice", "coins")
	if err != nil || bal != 75 {
		t.Fatalf("balance = %d, %v; want 75", bal, err)
	}
}

func TestHubSerializesWalletMutations(t *testing.T) {
	ctx := context.Background()
	hub := NewHub()
	defer hub.Close()
	ledger := NewHubLedger(hub, true)

	if err := hub.Connect(ctx, "alice", 4); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ledger.Deposit(ctx, "alice", "coins", 2)
		}()
	}
	wg.Wait()

	bal, err := ledger.Balance(ctx, "alice", "coins")
	if err != nil || bal != 100 {
		t.Fatalf("balance after concurrent deposits = %d, %v; want 100", bal, err)
	}
}
