/**
 * @description
 * This file defines the ledger entry model (`Transaction`) and its status
 * state machine. A transaction is an immutable, directional record of money
 * movement against exactly one wallet; once written, its amount, direction
 * and wallet never change. Only `Status` may transition, and only along the
 * edges declared in `StatusTransitions`.
 *
 * @notes
 * - `(wallet_id, idempotency_key)` is unique in the database. That constraint
 *   is the sole duplicate-suppression mechanism for ledger appends.
 * - Balances are derived exclusively from SUCCESSFUL entries; PENDING and
 *   FAILED entries never affect a balance.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransactionDirection indicates which side of the ledger an entry sits on.
type TransactionDirection string

const (
	DirectionDebit  TransactionDirection = "debit"
	DirectionCredit TransactionDirection = "credit"
)

// TransactionStatus is the lifecycle state of a ledger entry.
type TransactionStatus string

const (
	StatusPending    TransactionStatus = "pending"
	StatusSuccessful TransactionStatus = "successful"
	StatusFailed     TransactionStatus = "failed"
)

// StatusTransitions declares the legal status edges. SUCCESSFUL and FAILED
// are absorbing: their transition sets are empty.
var StatusTransitions = map[TransactionStatus][]TransactionStatus{
	StatusPending:    {StatusSuccessful, StatusFailed},
	StatusSuccessful: {},
	StatusFailed:     {},
}

// CanTransition reports whether moving a transaction from `from` to `to` is legal.
func CanTransition(from, to TransactionStatus) bool {
	for _, allowed := range StatusTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a status is absorbing.
func (s TransactionStatus) IsTerminal() bool {
	return s == StatusSuccessful || s == StatusFailed
}

// Transaction represents one ledger entry. This struct maps directly to the
// `transactions` table.
type Transaction struct {
	ID             uuid.UUID              `json:"id"`
	WalletID       uuid.UUID              `json:"wallet_id"`
	Amount         int64                  `json:"amount"` // in minor units, always positive
	Currency       string                 `json:"currency"`
	Direction      TransactionDirection   `json:"direction"`
	Status         TransactionStatus      `json:"status"`
	IdempotencyKey string                 `json:"idempotency_key"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
}

// TransactionListOptions controls filtering and pagination for ledger history queries.
type TransactionListOptions struct {
	Status    string
	Direction string
	Sort      string // "ASC" or "DESC"; defaults to DESC
	Page      int
	Limit     int
}

// TransactionHistoryItem is a ledger entry enriched with its counterparty
// wallet, resolved through the shared idempotency key prefix of a transfer pair.
type TransactionHistoryItem struct {
	ID                  uuid.UUID            `json:"id"`
	Amount              int64                `json:"amount"`
	Currency            string               `json:"currency"`
	Direction           TransactionDirection `json:"direction"`
	Status              TransactionStatus    `json:"status"`
	SourceWalletID      uuid.UUID            `json:"source_wallet_id"`
	DestinationWalletID *uuid.UUID           `json:"destination_wallet_id,omitempty"`
	CreatedAt           time.Time            `json:"created_at"`
}
