package service

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"bazaar-economy-api/internal/async"
	"bazaar-economy-api/internal/cache"
	"bazaar-economy-api/internal/gateway"
	"bazaar-economy-api/internal/model"
	"bazaar-economy-api/internal/notify"
	"bazaar-economy-api/internal/repository"
	"bazaar-economy-api/pkg/itemref"
	"bazaar-economy-api/pkg/uid"
)

// MailboxService owns the offline-safe delivery mailbox. Anything the
// economy could not hand to a live actor lands here and is claimed
// later; a delivery is marked CLAIMED only after the value was actually
// absorbed, so a crash between insert and mark re-delivers rather than
// destroys.
type MailboxService struct {
	store    repository.Store
	inv      gateway.InventoryAdapter
	ledger   gateway.CurrencyLedger
	pool     *async.Pool
	cache    cache.Cache
	notifier notify.Notifier

	claimLimit int
	cacheTTL   time.Duration
}

// NewMailboxService creates the mailbox service.
func NewMailboxService(
	store repository.Store,
	inv gateway.InventoryAdapter,
	ledger gateway.CurrencyLedger,
	pool *async.Pool,
	c cache.Cache,
	notifier notify.Notifier,
	claimLimit int,
	cacheTTL time.Duration,
) *MailboxService {
	if claimLimit < 1 {
		claimLimit = 25
	}
	return &MailboxService{
		store:      store,
		inv:        inv,
		ledger:     ledger,
		pool:       pool,
		cache:      c,
		notifier:   notifier,
		claimLimit: claimLimit,
		cacheTTL:   cacheTTL,
	}
}

// CreateItemDelivery durably parks an item snapshot for the owner.
func (s *MailboxService) CreateItemDelivery(ctx context.Context, owner string, snap itemref.Snapshot) error {
	d := &model.Delivery{
		ID:        uid.New(),
		Owner:     owner,
		Type:      model.DeliveryItem,
		ItemHash:  snap.Key.Hash,
		ItemBlob:  snap.Payload,
		ItemCount: snap.Count,
		Status:    model.DeliveryPending,
		CreatedAt: time.Now(),
	}
	return s.insert(ctx, d)
}

// CreateMoneyDelivery durably parks a money amount for the owner.
func (s *MailboxService) CreateMoneyDelivery(ctx context.Context, owner, currencyID string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("money delivery amount must be positive, got %d", amount)
	}
	d := &model.Delivery{
		ID:         uid.New(),
		Owner:      owner,
		Type:       model.DeliveryMoney,
		CurrencyID: currencyID,
		Amount:     amount,
		Status:     model.DeliveryPending,
		CreatedAt:  time.Now(),
	}
	return s.insert(ctx, d)
}

func (s *MailboxService) insert(ctx context.Context, d *model.Delivery) error {
	err := s.pool.Do(ctx, func(ctx context.Context) error {
		return s.store.InsertDelivery(ctx, d)
	})
	if err != nil {
		return fmt.Errorf("failed to insert delivery: %w", err)
	}

	s.cache.Delete(ctx, cache.KeyPendingCount+d.Owner)
	s.notifier.Publish(ctx, notify.Event{
		Type:    notify.EventDeliveryCreated,
		Account: d.Owner,
		Payload: map[string]interface{}{"delivery_id": d.ID, "type": d.Type},
	})
	log.Printf("[Mailbox] Created %s delivery %s for %s", d.Type, d.ID, d.Owner)
	return nil
}

// ClaimDeliveries hands pending deliveries to the owner's live session
// in strict creation order. A delivery that cannot be absorbed right
// now (full container, deposit refused) stays PENDING with its attempt
// counter bumped; the rest of the batch still runs. A non-positive
// limit means the configured batch size; larger limits are clamped.
func (s *MailboxService) ClaimDeliveries(ctx context.Context, account string, limit int) model.EconomyResult {
	if limit <= 0 || limit > s.claimLimit {
		limit = s.claimLimit
	}
	var pending []model.Delivery
	err := s.pool.Do(ctx, func(ctx context.Context) error {
		var err error
		pending, err = s.store.ListPendingDeliveries(ctx, account, limit)
		return err
	})
	if err != nil {
		log.Printf("[Mailbox] Failed to list deliveries for %s: %v", account, err)
		return model.Fail(model.MsgInternalError)
	}
	if len(pending) == 0 {
		return model.Ok(model.MsgNothingToClaim, map[string]interface{}{"claimed": 0, "remaining": 0})
	}

	claimed := 0
	wentOffline := false
	for i := range pending {
		d := &pending[i]
		absorbed, err := s.absorb(ctx, account, d)
		if err == gateway.ErrOffline {
			wentOffline = true
			break
		}
		if err != nil {
			log.Printf("[Mailbox] Delivery %s failed: %v", d.ID, err)
			s.bumpAttempt(ctx, d)
			continue
		}
		if !absorbed {
			s.bumpAttempt(ctx, d)
			continue
		}

		if err := s.pool.Do(ctx, func(ctx context.Context) error {
			return s.store.MarkDeliveryClaimed(ctx, d.ID)
		}); err != nil {
			// The value was absorbed but the mark failed; the delivery
			// will be offered again. At-least-once, never silently lost.
			log.Printf("[Mailbox] Failed to mark delivery %s claimed: %v", d.ID, err)
		}
		claimed++
	}

	s.cache.Delete(ctx, cache.KeyPendingCount+account)

	if wentOffline && claimed == 0 {
		return model.Fail(model.MsgPlayerOffline)
	}

	remaining, _ := s.PendingCount(ctx, account)
	if claimed > 0 {
		s.logClaim(ctx, account, claimed)
	}
	return model.Ok(model.MsgDeliveriesClaimed, map[string]interface{}{
		"claimed":   claimed,
		"remaining": remaining,
	})
}

// absorb tries to hand one delivery to the live actor. Returns false
// with a nil error when the actor cannot take it right now.
func (s *MailboxService) absorb(ctx context.Context, account string, d *model.Delivery) (bool, error) {
	switch d.Type {
	case model.DeliveryItem:
		stack, err := itemref.Materialize(d.ItemBlob, d.ItemCount)
		if err != nil {
			return false, err
		}
		return s.inv.InsertStack(ctx, account, stack)
	case model.DeliveryMoney:
		if !s.ledger.Available() {
			return false, nil
		}
		return s.ledger.Deposit(ctx, account, d.CurrencyID, d.Amount)
	default:
		return false, fmt.Errorf("unknown delivery type %q", d.Type)
	}
}

func (s *MailboxService) bumpAttempt(ctx context.Context, d *model.Delivery) {
	if err := s.pool.Do(ctx, func(ctx context.Context) error {
		return s.store.UpdateDeliveryAttempt(ctx, d.ID, d.Attempts+1)
	}); err != nil {
		log.Printf("[Mailbox] Failed to record attempt on delivery %s: %v", d.ID, err)
	}
}

func (s *MailboxService) logClaim(ctx context.Context, account string, claimed int) {
	entry := &model.TradeLog{
		Kind:       "claim",
		Actor:      account,
		ItemCount:  int64(claimed),
		MessageKey: model.MsgDeliveriesClaimed,
		CreatedAt:  time.Now(),
	}
	if err := s.pool.Do(ctx, func(ctx context.Context) error {
		return s.store.InsertTradeLog(ctx, entry)
	}); err != nil {
		log.Printf("[Mailbox] Failed to write trade log: %v", err)
	}
}

// PendingCount returns the number of pending deliveries, cached for
// the UI badge poll.
func (s *MailboxService) PendingCount(ctx context.Context, account string) (int64, error) {
	data, err := s.cache.GetOrSet(ctx, cache.KeyPendingCount+account, s.cacheTTL, func() ([]byte, error) {
		var n int64
		err := s.pool.Do(ctx, func(ctx context.Context) error {
			var err error
			n, err = s.store.CountPendingDeliveries(ctx, account)
			return err
		})
		if err != nil {
			return nil, err
		}
		return []byte(strconv.FormatInt(n, 10)), nil
	})
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(string(data), 10, 64)
}
