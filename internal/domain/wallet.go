/**
 * @description
 * This file defines the wallet model and the supported-currency helpers.
 * A wallet is a currency-scoped container of value for one user. It owns no
 * balance column: the balance is always derived from the ledger (see the
 * `wallet_balances` view in db/schema.sql), so there is nothing to drift.
 *
 * @notes
 * - Amounts everywhere in this service are `int64` minor units (kobo, cents)
 *   to avoid floating-point inaccuracies with financial data.
 * - Wallets are never deleted; `IsActive` soft-disables all debit/credit
 *   eligibility instead.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// SupportedCurrencies lists the ISO codes a wallet can be denominated in.
var SupportedCurrencies = map[string]bool{
	"NGN": true,
	"USD": true,
	"GHS": true,
	"KES": true,
}

// IsSupportedCurrency reports whether the service can hold balances in the
// given ISO currency code.
func IsSupportedCurrency(code string) bool {
	return SupportedCurrencies[code]
}

// Wallet represents a currency-scoped custodial wallet.
// This struct maps directly to the `wallets` table.
type Wallet struct {
	ID        uuid.UUID `json:"id"`
	Currency  string    `json:"currency"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WalletBalance is the response shape for balance queries. The balance is
// computed from successful ledger entries at read time, never stored.
type WalletBalance struct {
	WalletID         uuid.UUID `json:"wallet_id"`
	AvailableBalance int64     `json:"available_balance"` // in minor units
	Currency         string    `json:"currency"`
}

// User is a simplified view of an account holder, containing only the data
// the wallet service needs: identity and the per-currency wallet mapping
// supplied by the identity collaborator.
type User struct {
	ID       uuid.UUID            `json:"id"`
	Username string               `json:"username"`
	Email    string               `json:"email"`
	Wallets  map[string]uuid.UUID `json:"wallets"` // currency code -> wallet id
}
