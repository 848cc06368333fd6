/**
 * @description
 * This file defines the message payloads published to the `wallet_events`
 * RabbitMQ exchange. Notification and analytics collaborators consume these
 * facts asynchronously; delivery is best-effort and never blocks or rolls
 * back a ledger write.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransferCompletedEvent is published after a transfer's debit, credit and
// transfer record have all committed.
type TransferCompletedEvent struct {
	TransferID          uuid.UUID `json:"transfer_id"`
	FromWalletID        uuid.UUID `json:"from_wallet_id"`
	ToWalletID          uuid.UUID `json:"to_wallet_id"`
	FromUserID          uuid.UUID `json:"from_user_id"`
	ToUserID            uuid.UUID `json:"to_user_id"`
	DebitTransactionID  uuid.UUID `json:"debit_transaction_id"`
	CreditTransactionID uuid.UUID `json:"credit_transaction_id"`
	Amount              int64     `json:"amount"`
	Currency            string    `json:"currency"`
	Timestamp           time.Time `json:"timestamp"`
}

// WalletCreditedEvent is published after a successful CREDIT ledger append
// (top-up completion or direct funding).
type WalletCreditedEvent struct {
	WalletID      uuid.UUID `json:"wallet_id"`
	UserID        uuid.UUID `json:"user_id"`
	TransactionID uuid.UUID `json:"transaction_id"`
	Amount        int64     `json:"amount"`
	Currency      string    `json:"currency"`
	Source        string    `json:"source"` // e.g. "topup", "funding"
	Timestamp     time.Time `json:"timestamp"`
}

// WalletDebitedEvent is published after a successful DEBIT ledger append
// driven by a confirmed cashout.
type WalletDebitedEvent struct {
	WalletID      uuid.UUID `json:"wallet_id"`
	UserID        uuid.UUID `json:"user_id"`
	TransactionID uuid.UUID `json:"transaction_id"`
	Amount        int64     `json:"amount"`
	Currency      string    `json:"currency"`
	Source        string    `json:"source"` // e.g. "cashout"
	Timestamp     time.Time `json:"timestamp"`
}

// CashoutFailedEvent is published when the provider reports a failed payout.
// No ledger effect accompanies it: funds were never debited pre-confirmation.
type CashoutFailedEvent struct {
	IntentID  uuid.UUID `json:"intent_id"`
	UserID    uuid.UUID `json:"user_id"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	Reference string    `json:"reference"`
	Timestamp time.Time `json:"timestamp"`
}

// WalletActivatedEvent is published when a wallet is switched on for use.
type WalletActivatedEvent struct {
	WalletID  uuid.UUID `json:"wallet_id"`
	Currency  string    `json:"currency"`
	Timestamp time.Time `json:"timestamp"`
}
