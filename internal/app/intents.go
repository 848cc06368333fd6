/**
 * @description
 * This file implements intent creation for the two gateway-mediated flows:
 * top-up (external money in) and cashout (wallet money out to a bank
 * account). Both record a PENDING intent before any gateway call, and both
 * call the gateway outside any database transaction. No ledger entry is
 * written at initiation; the ledger effect happens once, at reconciliation.
 *
 * @notes
 * - The intent id doubles as the gateway reference so the provider's
 *   callback can be correlated without a separate mapping table.
 * - The cashout balance check here is advisory fail-fast only; funds are
 *   debited at confirmation time, matching the provider's settlement model.
 */

package app

import (
	"context"
	"log"

	"github.com/google/uuid"
	"github.com/vaultpay/wallet-service/internal/domain"
	"github.com/vaultpay/wallet-service/internal/store"
)

// TopUpResult carries the created intent and the hosted checkout URL the
// caller is redirected to.
type TopUpResult struct {
	Intent     *domain.TopUpIntent `json:"intent"`
	PaymentURL string              `json:"payment_url"`
}

// InitiateTopUp creates a PENDING top-up intent and opens a checkout session
// with the gateway. The wallet is credited only when the charge is confirmed
// through the reconciliation path.
func (s *Service) InitiateTopUp(ctx context.Context, userID uuid.UUID, req domain.TopUpRequest) (*TopUpResult, error) {
	if req.Amount <= 0 {
		return nil, store.ErrInvalidAmount
	}
	if !domain.IsSupportedCurrency(req.Currency) {
		return nil, ErrUnsupportedCurrency
	}

	user, err := s.repo.FindUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	walletID, ok := user.Wallets[req.Currency]
	if !ok {
		return nil, store.ErrWalletNotFound
	}
	wallet, err := s.repo.FindWalletByID(ctx, walletID)
	if err != nil {
		return nil, err
	}
	if !wallet.IsActive {
		return nil, store.ErrWalletInactive
	}

	intent := &domain.TopUpIntent{
		ID:       uuid.New(),
		UserID:   user.ID,
		Amount:   req.Amount,
		Currency: req.Currency,
		Status:   domain.IntentPending,
	}
	intent.Reference = intent.ID.String()
	if err := s.repo.CreateTopUpIntent(ctx, intent); err != nil {
		return nil, err
	}

	paymentURL, err := s.gateway.InitializePayment(ctx, intent.Reference, req.Amount, user.Email, req.Currency)
	if err != nil {
		// The intent stays pending; a checkout session was never opened so
		// no webhook will arrive and the reverify sweep will fail it out.
		log.Printf("level=error component=app msg=\"payment initialization failed\" intent_id=%s err=%v", intent.ID, err)
		return nil, err
	}

	log.Printf("level=info component=app msg=\"top-up initiated\" intent_id=%s user_id=%s amount=%d currency=%s", intent.ID, user.ID, req.Amount, req.Currency)
	return &TopUpResult{Intent: intent, PaymentURL: paymentURL}, nil
}

// InitiateCashout creates a PENDING cashout intent and asks the gateway to
// pay out to the given bank account. The wallet is debited only when the
// provider confirms the payout through the reconciliation path.
func (s *Service) InitiateCashout(ctx context.Context, userID uuid.UUID, req domain.CashoutRequest) (*domain.CashoutIntent, error) {
	if req.Amount <= 0 {
		return nil, store.ErrInvalidAmount
	}
	if !domain.IsSupportedCurrency(req.Currency) {
		return nil, ErrUnsupportedCurrency
	}

	user, err := s.repo.FindUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	walletID, ok := user.Wallets[req.Currency]
	if !ok {
		return nil, store.ErrWalletNotFound
	}
	wallet, err := s.repo.FindWalletByID(ctx, walletID)
	if err != nil {
		return nil, err
	}
	if !wallet.IsActive {
		return nil, store.ErrWalletInactive
	}

	balance, err := s.repo.WalletBalance(ctx, walletID)
	if err != nil {
		return nil, err
	}
	if balance < req.Amount {
		return nil, store.ErrInsufficientFunds
	}

	intent := &domain.CashoutIntent{
		ID:                uuid.New(),
		UserID:            user.ID,
		Amount:            req.Amount,
		Currency:          req.Currency,
		Status:            domain.IntentPending,
		BankAccountNumber: req.BankAccountNumber,
		BankCode:          req.BankCode,
	}
	intent.Reference = intent.ID.String()
	if err := s.repo.CreateCashoutIntent(ctx, intent); err != nil {
		return nil, err
	}

	if _, err := s.gateway.CreatePayout(ctx, req.BankAccountNumber, req.BankCode, req.Amount, req.Currency, intent.Reference); err != nil {
		// The payout never left the building; fail the intent so it cannot
		// be confirmed by a stray webhook later.
		if failErr := s.repo.FailCashoutIntent(ctx, intent.ID, nil); failErr != nil {
			log.Printf("level=error component=app msg=\"failed to mark cashout intent failed\" intent_id=%s err=%v", intent.ID, failErr)
		}
		return nil, err
	}

	log.Printf("level=info component=app msg=\"cashout initiated\" intent_id=%s user_id=%s amount=%d currency=%s", intent.ID, user.ID, req.Amount, req.Currency)
	return intent, nil
}
