package gateway

import (
	"context"

	"bazaar-economy-api/pkg/itemref"
)

// InventoryAdapter is the capability the economy core needs from an
// actor's live item container. All implementations must serialize
// operations per actor; the hub-backed one does so by construction.
type InventoryAdapter interface {
	// RemoveMatching removes exactly count items matching key from the
	// actor's container and returns a snapshot of what was removed.
	// Returns (nil, nil) when the actor holds fewer than count matching
	// items (nothing is removed), and ErrOffline when unreachable.
	RemoveMatching(ctx context.Context, account string, key itemref.Key, count int64) (*itemref.Snapshot, error)

	// InsertStack places a stack into the actor's container. Returns
	// false when the container cannot accept it (full), ErrOffline when
	// unreachable.
	InsertStack(ctx context.Context, account string, stack itemref.Stack) (bool, error)

	// CountMatching counts items matching key in the actor's container.
	CountMatching(ctx context.Context, account string, key itemref.Key) (int64, error)
}

// HubInventory adapts the session hub as an InventoryAdapter.
type HubInventory struct {
	hub *Hub
}

// NewHubInventory creates the hub-backed inventory adapter.
func NewHubInventory(hub *Hub) *HubInventory {
	return &HubInventory{hub: hub}
}

// RemoveMatching removes count matching items on the hub goroutine.
func (g *HubInventory) RemoveMatching(ctx context.Context, account string, key itemref.Key, count int64) (*itemref.Snapshot, error) {
	if count <= 0 {
		return nil, nil
	}

	var (
		template itemref.Stack
		removed  bool
		opErr    error
	)
	err := g.hub.do(ctx, func() {
		s, ok := g.hub.sessions[account]
		if !ok {
			opErr = ErrOffline
			return
		}
		template, removed = s.removeMatching(key, count)
	})
	if err != nil {
		return nil, err
	}
	if opErr != nil {
		return nil, opErr
	}
	if !removed {
		return nil, nil
	}

	template.Count = count
	snap, err := itemref.Take(template)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// InsertStack inserts a stack on the hub goroutine.
func (g *HubInventory) InsertStack(ctx context.Context, account string, stack itemref.Stack) (bool, error) {
	hash, err := itemref.HashOf(stack.RegistryID, stack.Data)
	if err != nil {
		return false, err
	}

	var (
		inserted bool
		opErr    error
	)
	doErr := g.hub.do(ctx, func() {
		s, ok := g.hub.sessions[account]
		if !ok {
			opErr = ErrOffline
			return
		}
		inserted = s.insert(stack, hash, false)
	})
	if doErr != nil {
		return false, doErr
	}
	if opErr != nil {
		return false, opErr
	}
	return inserted, nil
}

// CountMatching counts matching items on the hub goroutine.
func (g *HubInventory) CountMatching(ctx context.Context, account string, key itemref.Key) (int64, error) {
	var (
		total int64
		opErr error
	)
	err := g.hub.do(ctx, func() {
		s, ok := g.hub.sessions[account]
		if !ok {
			opErr = ErrOffline
			return
		}
		total = s.countMatching(key)
	})
	if err != nil {
		return 0, err
	}
	if opErr != nil {
		return 0, opErr
	}
	return total, nil
}

// Ensure HubInventory implements InventoryAdapter
var _ InventoryAdapter = (*HubInventory)(nil)
