/**
 * @description
 * This file defines the transfer model and its request DTO. A transfer is a
 * paired debit+credit atomic unit moving funds between two wallets of the
 * same currency. It always owns exactly one debit and one credit ledger
 * entry, created together in one database transaction, and is never mutated
 * after creation.
 *
 * @notes
 * - `idempotency_key` is globally unique across transfers. A retried call
 *   with the same key returns the original transfer instead of creating a
 *   second one.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Transfer links the two ledger entries of a same-currency wallet-to-wallet
// movement. This struct maps directly to the `transfers` table.
type Transfer struct {
	ID                  uuid.UUID `json:"id"`
	FromWalletID        uuid.UUID `json:"from_wallet_id"`
	ToWalletID          uuid.UUID `json:"to_wallet_id"`
	Amount              int64     `json:"amount"` // in minor units
	Currency            string    `json:"currency"`
	DebitTransactionID  uuid.UUID `json:"debit_transaction_id"`
	CreditTransactionID uuid.UUID `json:"credit_transaction_id"`
	IdempotencyKey      string    `json:"idempotency_key"`
	CreatedAt           time.Time `json:"created_at"`
}

// TransferRequest is the DTO for incoming transfer API requests. The sender
// is resolved from the authenticated user; the destination is addressed by
// username and currency, mirroring how the identity collaborator exposes
// the per-currency wallet mapping.
type TransferRequest struct {
	DestinationUsername string `json:"destination_username"`
	Currency            string `json:"currency"`
	Amount              int64  `json:"amount"` // in minor units
	IdempotencyKey      string `json:"idempotency_key"`
}

// DebitLegKey and CreditLegKey derive the per-leg ledger idempotency keys
// from a transfer's business key. The derivation is deterministic so a
// retried call reproduces the same pair.
func DebitLegKey(idempotencyKey string) string  { return idempotencyKey + ":debit" }
func CreditLegKey(idempotencyKey string) string { return idempotencyKey + ":credit" }
