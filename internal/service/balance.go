package service

import (
	"context"
	"log"

	"bazaar-economy-api/internal/gateway"
	"bazaar-economy-api/internal/model"
)

// BalanceService exposes wallet reads and administrative grants on top
// of the currency ledger.
type BalanceService struct {
	ledger   gateway.CurrencyLedger
	mailbox  *MailboxService
	currency string
}

// NewBalanceService creates the balance service.
func NewBalanceService(ledger gateway.CurrencyLedger, mailbox *MailboxService, currency string) *BalanceService {
	return &BalanceService{ledger: ledger, mailbox: mailbox, currency: currency}
}

// resolve falls back to the configured default currency.
func (s *BalanceService) resolve(currencyID string) string {
	if currencyID == "" {
		return s.currency
	}
	return currencyID
}

// Balance reads an actor's wallet.
func (s *BalanceService) Balance(ctx context.Context, account, currencyID string) model.EconomyResult {
	if !s.ledger.Available() {
		return model.Fail(model.MsgCurrencyUnsupported)
	}
	bal, err := s.ledger.Balance(ctx, account, s.resolve(currencyID))
	if err == gateway.ErrOffline {
		return model.Fail(model.MsgPlayerOffline)
	}
	if err != nil {
		return model.Fail(model.MsgInternalError)
	}
	return model.Ok(model.MsgBalanceUpdated, map[string]interface{}{"balance": bal})
}

// Grant credits an actor's wallet, mailboxing the amount when the
// actor is offline. Admin surface only.
func (s *BalanceService) Grant(ctx context.Context, account, currencyID string, amount int64) model.EconomyResult {
	if amount <= 0 {
		return model.Fail(model.MsgInvalidAmount)
	}
	if !s.ledger.Available() {
		return model.Fail(model.MsgCurrencyUnsupported)
	}

	cur := s.resolve(currencyID)
	ok, err := s.ledger.Deposit(ctx, account, cur, amount)
	if err == nil && ok {
		return model.Ok(model.MsgBalanceUpdated, map[string]interface{}{"delivered": "direct"})
	}

	if mbErr := s.mailbox.CreateMoneyDelivery(ctx, account, cur, amount); mbErr != nil {
		log.Printf("[Balance] Grant of %d to %s failed both paths: deposit=%v mailbox=%v", amount, account, err, mbErr)
		return model.Fail(model.MsgBalanceUpdateFailed)
	}
	return model.Ok(model.MsgBalanceUpdated, map[string]interface{}{"delivered": "mailbox"})
}

// Take debits an actor's wallet. Admin surface only.
func (s *BalanceService) Take(ctx context.Context, account, currencyID string, amount int64) model.EconomyResult {
	if amount <= 0 {
		return model.Fail(model.MsgInvalidAmount)
	}
	if !s.ledger.Available() {
		return model.Fail(model.MsgCurrencyUnsupported)
	}

	ok, err := s.ledger.Withdraw(ctx, account, s.resolve(currencyID), amount)
	if err == gateway.ErrOffline {
		return model.Fail(model.MsgPlayerOffline)
	}
	if err != nil {
		return model.Fail(model.MsgInternalError)
	}
	if !ok {
		return model.Fail(model.MsgInsufficientFunds)
	}
	return model.Ok(model.MsgBalanceUpdated, nil)
}
