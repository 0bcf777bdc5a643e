package gateway

import (
	"context"
	"log"
)

// CurrencyLedger is the capability the economy core needs from the
// currency system. The currency representation itself lives outside
// this module; the ledger only moves authoritative per-actor values.
//
// Available reports whether a currency backend was found at startup.
// When it returns false every mutation is answered with a normal
// "unsupported" result by the services, never a crash.
type CurrencyLedger interface {
	Available() bool

	// Withdraw removes amount from the actor's wallet. Returns false on
	// insufficient funds, ErrOffline when the actor is unreachable.
	Withdraw(ctx context.Context, account, currencyID string, amount int64) (bool, error)

	// Deposit adds amount to the actor's wallet. ErrOffline when the
	// actor is unreachable.
	Deposit(ctx context.Context, account, currencyID string, amount int64) (bool, error)

	// Balance returns the actor's wallet value, ErrOffline when the
	// actor is unreachable.
	Balance(ctx context.Context, account, currencyID string) (int64, error)
}

// HubLedger adapts the session hub as a CurrencyLedger. The enabled
// flag is the startup probe result for the optional currency backend:
// the ledger is constructed either way so callers get uniform
// "unsupported" answers instead of nil checks.
type HubLedger struct {
	hub     *Hub
	enabled bool
}

// NewHubLedger creates the hub-backed ledger. enabled is the result of
// probing for the currency backend at startup.
func NewHubLedger(hub *Hub, enabled bool) *HubLedger {
	if !enabled {
		log.Printf("[CurrencyLedger] No currency backend configured; money operations disabled")
	}
	return &HubLedger{hub: hub, enabled: enabled}
}

// Available reports whether the currency backend was found.
func (g *HubLedger) Available() bool {
	return g.enabled
}

// Withdraw removes amount from the wallet on the hub goroutine.
func (g *HubLedger) Withdraw(ctx context.Context, account, currencyID string, amount int64) (bool, error) {
	var (
		ok    bool
		opErr error
	)
	err := g.hub.do(ctx, func() {
		s, online := g.hub.sessions[account]
		if !online {
			opErr = ErrOffline
			return
		}
		if s.wallets[currencyID] < amount {
			return
		}
		s.wallets[currencyID] -= amount
		ok = true
	})
	if err != nil {
		return false, err
	}
	if opErr != nil {
		return false, opErr
	}
	return ok, nil
}

// Deposit adds amount to the wallet on the hub goroutine.
func (g *HubLedger) Deposit(ctx context.Context, account, currencyID string, amount int64) (bool, error) {
	var opErr error
	err := g.hub.do(ctx, func() {
		s, online := g.hub.sessions[account]
		if !online {
			opErr = ErrOffline
			return
		}
		s.wallets[currencyID] += amount
	})
	if err != nil {
		return false, err
	}
	if opErr != nil {
		return false, opErr
	}
	return true, nil
}

// Balance reads the wallet value on the hub goroutine.
func (g *HubLedger) Balance(ctx context.Context, account, currencyID string) (int64, error) {
	var (
		amount int64
		opErr  error
	)
	err := g.hub.do(ctx, func() {
		s, online := g.hub.sessions[account]
		if !online {
			opErr = ErrOffline
			return
		}
		amount = s.wallets[currencyID]
	})
	if err != nil {
		return 0, err
	}
	if opErr != nil {
		return 0, opErr
	}
	return amount, nil
}

// Ensure HubLedger implements CurrencyLedger
var _ CurrencyLedger = (*HubLedger)(nil)
