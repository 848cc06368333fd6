/**
 * @description
 * This file implements webhook reconciliation for the payment gateway. The
 * provider reports charge and payout outcomes asynchronously; this handler
 * authenticates the callback, correlates it to a pending intent by reference
 * and applies the intent's ledger effect exactly once.
 *
 * Key features:
 * - HMAC-SHA512 signature verification in constant time, before any parsing
 *   or database lookup, so unauthenticated bodies touch nothing.
 * - Top-up credits are gated on an independent verify call to the gateway:
 *   a webhook body alone, even correctly signed, never moves money in.
 * - Replays are absorbed twice over: a terminal intent short-circuits, and
 *   the ledger append is keyed by the intent id inside the same database
 *   transaction that finalizes the intent.
 *
 * @dependencies
 * - crypto/hmac, crypto/sha512, encoding/hex, encoding/json: Standard Go libraries.
 * - internal/domain, internal/store: For domain models and data access.
 */

package app

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"

	"github.com/vaultpay/wallet-service/internal/domain"
	"github.com/vaultpay/wallet-service/internal/store"
)

// VerifyWebhookSignature checks the hex HMAC-SHA512 of the raw body against
// the signature header in constant time.
func (s *Service) VerifyWebhookSignature(body []byte, signature string) bool {
	mac := hmac.New(sha512.New, []byte(s.webhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// HandlePaystackWebhook processes a gateway callback. The raw body is
// authenticated first; a bad signature returns ErrInvalidSignature with no
// other observable effect. Unknown references surface store.ErrIntentNotFound
// so the transport layer can acknowledge without retrying.
func (s *Service) HandlePaystackWebhook(ctx context.Context, body []byte, signature string) error {
	if !s.VerifyWebhookSignature(body, signature) {
		return ErrInvalidSignature
	}

	var event domain.PaystackWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return err
	}

	switch {
	case event.IsChargeEvent():
		return s.reconcileTopUp(ctx, &event, body)
	case event.IsTransferEvent():
		return s.reconcileCashout(ctx, &event, body)
	default:
		log.Printf("level=info component=app msg=\"ignoring unhandled webhook event\" event=%s", event.Event)
		return nil
	}
}

func (s *Service) reconcileTopUp(ctx context.Context, event *domain.PaystackWebhookEvent, body []byte) error {
	intent, err := s.repo.FindTopUpIntentByReference(ctx, event.Data.Reference)
	if err != nil {
		return err
	}
	if intent.Status.IsTerminal() {
		log.Printf("level=info component=app msg=\"replayed webhook for finalized top-up intent\" intent_id=%s status=%s", intent.ID, intent.Status)
		return nil
	}

	if !event.ChargeSucceeded() {
		if err := s.repo.FailTopUpIntent(ctx, intent.ID, body); err != nil {
			return err
		}
		log.Printf("level=info component=app msg=\"top-up intent failed\" intent_id=%s event=%s", intent.ID, event.Event)
		return nil
	}

	// Independent confirmation with the gateway before crediting. A transient
	// verify failure is returned so the provider redelivers; the reverify
	// sweep also picks the intent up later.
	verified, err := s.gateway.VerifyTransaction(ctx, intent.Reference)
	if err != nil {
		return err
	}
	if verified.Status != "success" {
		log.Printf("level=warn component=app msg=\"charge webhook claimed success but verification disagreed\" intent_id=%s verified_status=%s", intent.ID, verified.Status)
		return nil
	}

	user, err := s.repo.FindUserByID(ctx, intent.UserID)
	if err != nil {
		return err
	}
	walletID, ok := user.Wallets[intent.Currency]
	if !ok {
		return store.ErrWalletNotFound
	}

	entry, err := s.repo.CompleteTopUpIntent(ctx, intent.ID, walletID, body)
	if err != nil {
		return err
	}

	s.publish(ctx, "wallet.credited", domain.WalletCreditedEvent{
		WalletID:      walletID,
		UserID:        user.ID,
		TransactionID: entry.ID,
		Amount:        entry.Amount,
		Currency:      entry.Currency,
		Source:        "topup",
		Timestamp:     time.Now().UTC(),
	})
	log.Printf("level=info component=app msg=\"top-up reconciled\" intent_id=%s wallet_id=%s amount=%d", intent.ID, walletID, entry.Amount)
	return nil
}

func (s *Service) reconcileCashout(ctx context.Context, event *domain.PaystackWebhookEvent, body []byte) error {
	intent, err := s.repo.FindCashoutIntentByReference(ctx, event.Data.Reference)
	if err != nil {
		return err
	}
	if intent.Status.IsTerminal() {
		log.Printf("level=info component=app msg=\"replayed webhook for finalized cashout intent\" intent_id=%s status=%s", intent.ID, intent.Status)
		return nil
	}

	user, err := s.repo.FindUserByID(ctx, intent.UserID)
	if err != nil {
		return err
	}
	walletID, ok := user.Wallets[intent.Currency]
	if !ok {
		return store.ErrWalletNotFound
	}

	if event.TransferSucceeded() {
		entry, err := s.repo.CompleteCashoutIntent(ctx, intent.ID, walletID, body)
		if err != nil {
			return err
		}
		s.publish(ctx, "wallet.debited", domain.WalletDebitedEvent{
			WalletID:      walletID,
			UserID:        user.ID,
			TransactionID: entry.ID,
			Amount:        entry.Amount,
			Currency:      entry.Currency,
			Source:        "cashout",
			Timestamp:     time.Now().UTC(),
		})
		log.Printf("level=info component=app msg=\"cashout reconciled\" intent_id=%s wallet_id=%s amount=%d", intent.ID, walletID, entry.Amount)
		return nil
	}

	switch event.Event {
	case "transfer.failed", "transfer.reversed":
		if err := s.repo.FailCashoutIntent(ctx, intent.ID, body); err != nil {
			return err
		}
		s.publish(ctx, "cashout.failed", domain.CashoutFailedEvent{
			IntentID:  intent.ID,
			UserID:    user.ID,
			Amount:    intent.Amount,
			Currency:  intent.Currency,
			Reference: intent.Reference,
			Timestamp: time.Now().UTC(),
		})
		log.Printf("level=info component=app msg=\"cashout intent failed; no funds were debited\" intent_id=%s event=%s", intent.ID, event.Event)
		return nil
	}

	// transfer.success with a disagreeing inner status, or an in-flight
	// notification: leave the intent pending for a later, decisive callback.
	log.Printf("level=info component=app msg=\"cashout webhook left intent pending\" intent_id=%s event=%s data_status=%s", intent.ID, event.Event, event.Data.Status)
	return nil
}
