/**
 * @description
 * This file implements the wallet-to-wallet transfer flow. The service layer
 * resolves the sender and destination wallets and enforces the fail-fast
 * preconditions (existence, active state, currency match); the repository's
 * CreateTransfer then runs the balance check, both ledger legs and the
 * transfer record inside one database transaction with both wallet rows
 * locked, so no interleaving of concurrent transfers can overdraw a wallet.
 *
 * @notes
 * - A retried request with an already-used idempotency key returns the
 *   original transfer; the repository resolves the race where two identical
 *   requests pass the fast-path check simultaneously.
 */

package app

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/vaultpay/wallet-service/internal/domain"
	"github.com/vaultpay/wallet-service/internal/store"
)

// Transfer moves funds from the authenticated user's wallet in the request
// currency to the destination user's wallet in the same currency.
func (s *Service) Transfer(ctx context.Context, senderUserID uuid.UUID, req domain.TransferRequest) (*domain.Transfer, error) {
	if req.IdempotencyKey == "" {
		return nil, ErrMissingIdempotencyKey
	}
	if !domain.IsSupportedCurrency(req.Currency) {
		return nil, ErrUnsupportedCurrency
	}

	sender, err := s.repo.FindUserByID(ctx, senderUserID)
	if err != nil {
		return nil, err
	}
	recipient, err := s.repo.FindUserByUsername(ctx, req.DestinationUsername)
	if err != nil {
		return nil, err
	}

	sourceWalletID, ok := sender.Wallets[req.Currency]
	if !ok {
		return nil, store.ErrWalletNotFound
	}
	destWalletID, ok := recipient.Wallets[req.Currency]
	if !ok {
		return nil, store.ErrWalletNotFound
	}

	sourceWallet, err := s.repo.FindWalletByID(ctx, sourceWalletID)
	if err != nil {
		return nil, err
	}
	destWallet, err := s.repo.FindWalletByID(ctx, destWalletID)
	if err != nil {
		return nil, err
	}
	if !sourceWallet.IsActive || !destWallet.IsActive {
		return nil, store.ErrWalletInactive
	}
	if sourceWallet.Currency != destWallet.Currency {
		return nil, store.ErrCurrencyMismatch
	}

	transfer, err := s.repo.CreateTransfer(ctx, store.CreateTransferParams{
		FromWalletID:   sourceWallet.ID,
		ToWalletID:     destWallet.ID,
		Amount:         req.Amount,
		Currency:       req.Currency,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, "transfer.completed", domain.TransferCompletedEvent{
		TransferID:          transfer.ID,
		FromWalletID:        transfer.FromWalletID,
		ToWalletID:          transfer.ToWalletID,
		FromUserID:          sender.ID,
		ToUserID:            recipient.ID,
		DebitTransactionID:  transfer.DebitTransactionID,
		CreditTransactionID: transfer.CreditTransactionID,
		Amount:              transfer.Amount,
		Currency:            transfer.Currency,
		Timestamp:           time.Now().UTC(),
	})
	return transfer, nil
}

// GetTransfer retrieves a transfer by id.
func (s *Service) GetTransfer(ctx context.Context, transferID uuid.UUID) (*domain.Transfer, error) {
	return s.repo.FindTransferByID(ctx, transferID)
}

// ListWalletTransfers returns every transfer a wallet participated in,
// on either side, most recent first.
func (s *Service) ListWalletTransfers(ctx context.Context, walletID uuid.UUID) ([]domain.Transfer, error) {
	if _, err := s.repo.FindWalletByID(ctx, walletID); err != nil {
		return nil, err
	}
	return s.repo.ListTransfersByWallet(ctx, walletID)
}
