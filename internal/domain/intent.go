/**
 * @description
 * This file defines the top-up and cashout intent models. An intent is a
 * pre-authorization record for money movement through the external payment
 * rail: it is created before any money moves, carries the reference used to
 * correlate the provider's asynchronous callback, and transitions to a
 * terminal state exactly once when reconciliation applies its ledger effect.
 *
 * @notes
 * - The intent's own id doubles as the gateway reference and as the
 *   idempotency key of the ledger entry its completion produces, so a
 *   replayed webhook can never double-credit or double-debit.
 * - Cashout funds are debited only at webhook confirmation, matching the
 *   provider's settlement model; no pending debit is ever written.
 */

package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// IntentStatus is the lifecycle state of a top-up or cashout intent.
type IntentStatus string

const (
	IntentPending   IntentStatus = "pending"
	IntentCompleted IntentStatus = "completed"
	IntentFailed    IntentStatus = "failed"
)

// IsTerminal reports whether an intent status is absorbing.
func (s IntentStatus) IsTerminal() bool {
	return s == IntentCompleted || s == IntentFailed
}

// TopUpIntent records the intention to fund a wallet through the payment
// gateway. Maps to the `wallet_topup_intents` table.
type TopUpIntent struct {
	ID             uuid.UUID       `json:"id"`
	UserID         uuid.UUID       `json:"user_id"`
	Amount         int64           `json:"amount"` // in minor units
	Currency       string          `json:"currency"`
	Reference      string          `json:"reference"`
	Status         IntentStatus    `json:"status"`
	WebhookPayload json.RawMessage `json:"webhook_payload,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// CashoutIntent records the intention to pay wallet funds out to an external
// bank account. Maps to the `wallet_cashout_intents` table.
type CashoutIntent struct {
	ID                uuid.UUID       `json:"id"`
	UserID            uuid.UUID       `json:"user_id"`
	Amount            int64           `json:"amount"` // in minor units
	Currency          string          `json:"currency"`
	Reference         string          `json:"reference"`
	Status            IntentStatus    `json:"status"`
	BankAccountNumber string          `json:"bank_account_number"`
	BankCode          string          `json:"bank_code"`
	WebhookPayload    json.RawMessage `json:"webhook_payload,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// TopUpRequest is the DTO for initiating a wallet top-up.
type TopUpRequest struct {
	Amount   int64  `json:"amount"` // in minor units
	Currency string `json:"currency"`
}

// CashoutRequest is the DTO for initiating a wallet cashout.
type CashoutRequest struct {
	Amount            int64  `json:"amount"` // in minor units
	Currency          string `json:"currency"`
	BankAccountNumber string `json:"bank_account_number"`
	BankCode          string `json:"bank_code"`
}
