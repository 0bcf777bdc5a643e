package gateway

import (
	"context"
	"errors"
	"log"
	"sync"

	"bazaar-economy-api/pkg/itemref"
)

// ErrOffline is returned by gateway calls when the target actor has no
// live session. Callers treat it as the normal "recipient unreachable"
// case and fall back to the delivery mailbox, never as a fault.
var ErrOffline = errors.New("actor is not reachable")

// ErrHubClosed is returned once the hub has shut down.
var ErrHubClosed = errors.New("session hub is closed")

// stackEntry pairs a live stack with its precomputed content hash so
// matching does not rehash on every touch.
type stackEntry struct {
	stack itemref.Stack
	hash  string
}

// session is one live actor: their container and wallets. Only the hub
// goroutine ever touches a session.
type session struct {
	account  string
	capacity int // max distinct stacks in the container
	stacks   []stackEntry
	wallets  map[string]int64
}

// Hub is the single authoritative execution context for all live-actor
// state. Every reachability check, container mutation and wallet
// mutation runs on the hub goroutine; callers submit a closure and
// suspend until it has executed. This serializes all money and
// inventory operations against any single actor without locks.
type Hub struct {
	ops      chan func()
	quit     chan struct{}
	stopOnce sync.Once
	sessions map[string]*session
}

// NewHub starts the hub goroutine.
func NewHub() *Hub {
	h := &Hub{
		ops:      make(chan func()),
		quit:     make(chan struct{}),
		sessions: make(map[string]*session),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case fn := <-h.ops:
			fn()
		case <-h.quit:
			return
		}
	}
}

// do submits fn to the hub goroutine and waits for it to finish.
// ctx gates admission only; once submitted, fn always runs to
// completion so captured results are safe to read afterwards.
func (h *Hub) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	wrapped := func() {
		defer close(done)
		fn()
	}

	select {
	case h.ops <- wrapped:
	case <-ctx.Done():
		return ctx.Err()
	case <-h.quit:
		return ErrHubClosed
	}

	<-done
	return nil
}

// Connect registers (or replaces) a live session for an account.
// capacity is the number of distinct stacks the container holds.
func (h *Hub) Connect(ctx context.Context, account string, capacity int) error {
	if capacity < 1 {
		capacity = 1
	}
	return h.do(ctx, func() {
		h.sessions[account] = &session{
			account:  account,
			capacity: capacity,
			wallets:  make(map[string]int64),
		}
		log.Printf("[SessionHub] %s connected (capacity=%d)", account, capacity)
	})
}

// Disconnect removes an account's live session. Subsequent gateway
// calls for the account observe ErrOffline.
func (h *Hub) Disconnect(ctx context.Context, account string) error {
	return h.do(ctx, func() {
		delete(h.sessions, account)
		log.Printf("[SessionHub] %s disconnected", account)
	})
}

// IsOnline reports whether the account has a live session.
func (h *Hub) IsOnline(ctx context.Context, account string) (bool, error) {
	var online bool
	err := h.do(ctx, func() {
		_, online = h.sessions[account]
	})
	return online, err
}

// GiveStack places a stack directly into a connected actor's container,
// bypassing capacity checks. Used when seeding sessions at connect time.
func (h *Hub) GiveStack(ctx context.Context, account string, stack itemref.Stack) error {
	hash, err := itemref.HashOf(stack.RegistryID, stack.Data)
	if err != nil {
		return err
	}
	var opErr error
	doErr := h.do(ctx, func() {
		s, ok := h.sessions[account]
		if !ok {
			opErr = ErrOffline
			return
		}
		s.insert(stack, hash, true)
	})
	if doErr != nil {
		return doErr
	}
	return opErr
}

// SetWallet sets an actor's wallet to an absolute amount. Used when
// seeding sessions at connect time.
func (h *Hub) SetWallet(ctx context.Context, account, currencyID string, amount int64) error {
	var opErr error
	doErr := h.do(ctx, func() {
		s, ok := h.sessions[account]
		if !ok {
			opErr = ErrOffline
			return
		}
		s.wallets[currencyID] = amount
	})
	if doErr != nil {
		return doErr
	}
	return opErr
}

// SessionCount returns the number of live sessions, for the admin surface.
func (h *Hub) SessionCount(ctx context.Context) (int, error) {
	var n int
	err := h.do(ctx, func() {
		n = len(h.sessions)
	})
	return n, err
}

// Close stops the hub goroutine. In-flight submissions fail with
// ErrHubClosed.
func (h *Hub) Close() {
	h.stopOnce.Do(func() {
		close(h.quit)
		log.Printf("[SessionHub] Stopped")
	})
}

// insert merges a stack into the session container. force bypasses the
// capacity check. Returns false when the container is full.
func (s *session) insert(stack itemref.Stack, hash string, force bool) bool {
	for i := range s.stacks {
		if s.stacks[i].hash == hash {
			s.stacks[i].stack.Count += stack.Count
			return true
		}
	}
	if !force && len(s.stacks) >= s.capacity {
		return false
	}
	s.stacks = append(s.stacks, stackEntry{stack: stack, hash: hash})
	return true
}

// countMatching sums counts across entries matching the key.
func (s *session) countMatching(key itemref.Key) int64 {
	var total int64
	for i := range s.stacks {
		if s.stacks[i].hash == key.Hash && s.stacks[i].stack.RegistryID == key.RegistryID {
			total += s.stacks[i].stack.Count
		}
	}
	return total
}

// removeMatching removes exactly count matching items, or nothing at
// all when fewer are present. Returns the stack template the items
// came from, for snapshotting.
func (s *session) removeMatching(key itemref.Key, count int64) (itemref.Stack, bool) {
	if s.countMatching(key) < count {
		return itemref.Stack{}, false
	}

	var template itemref.Stack
	remaining := count
	kept := s.stacks[:0]
	for _, e := range s.stacks {
		if remaining > 0 && e.hash == key.Hash && e.stack.RegistryID == key.RegistryID {
			if template.RegistryID == "" {
				template = e.stack
			}
			take := e.stack.Count
			if take > remaining {
				take = remaining
			}
			e.stack.Count -= take
			remaining -= take
			if e.stack.Count == 0 {
				continue
			}
		}
		kept = append(kept, e)
	}
	s.stacks = kept
	return template, true
}
