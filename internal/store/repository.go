/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract
 * for all data access operations required by the wallet service. Defining an
 * interface decouples the business logic from the PostgreSQL implementation
 * and lets tests substitute an in-memory fake.
 *
 * The balance-affecting operations (`CreateTransfer`, `CompleteTopUpIntent`,
 * `CompleteCashoutIntent`) are deliberately coarse: each is one atomic unit
 * of work so that a balance check and its dependent writes can never be
 * separated by a concurrent writer.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID generation and handling.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/vaultpay/wallet-service/internal/domain"
)

var (
	ErrUserNotFound             = errors.New("user not found")
	ErrWalletNotFound           = errors.New("wallet not found")
	ErrWalletInactive           = errors.New("wallet is inactive")
	ErrWalletStateUnchanged     = errors.New("wallet already in requested state")
	ErrTransactionNotFound      = errors.New("transaction not found")
	ErrTransferNotFound         = errors.New("transfer not found")
	ErrIntentNotFound           = errors.New("intent not found")
	ErrInsufficientFunds        = errors.New("insufficient funds")
	ErrInvalidAmount            = errors.New("amount must be positive")
	ErrCurrencyMismatch         = errors.New("wallet currencies do not match")
	ErrDuplicateTransaction     = errors.New("duplicate ledger entry")
	ErrInvalidStatusTransition  = errors.New("invalid transaction status transition")
	ErrIntentAlreadyFinal       = errors.New("intent already in a terminal state")
)

// AppendTransactionParams carries the fields for a single ledger append.
type AppendTransactionParams struct {
	WalletID       uuid.UUID
	Amount         int64
	Currency       string
	Direction      domain.TransactionDirection
	Status         domain.TransactionStatus
	IdempotencyKey string
	Metadata       map[string]interface{}
}

// CreateTransferParams carries the fields for the atomic two-sided transfer.
type CreateTransferParams struct {
	FromWalletID   uuid.UUID
	ToWalletID     uuid.UUID
	Amount         int64
	Currency       string
	IdempotencyKey string
}

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// User methods. The identity collaborator owns this data; the wallet
	// service only reads the authenticated user's per-currency wallet map.
	FindUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	FindUserByUsername(ctx context.Context, username string) (*domain.User, error)
	FindUserByWalletID(ctx context.Context, walletID uuid.UUID) (*domain.User, error)

	// Wallet registry methods
	CreateWallet(ctx context.Context, wallet *domain.Wallet) error
	FindWalletByID(ctx context.Context, walletID uuid.UUID) (*domain.Wallet, error)
	// SetWalletActive flips is_active; returns ErrWalletStateUnchanged when
	// the wallet is already in the requested state.
	SetWalletActive(ctx context.Context, walletID uuid.UUID, active bool) (*domain.Wallet, error)

	// Ledger methods
	AppendTransaction(ctx context.Context, params AppendTransactionParams) (*domain.Transaction, error)
	WalletBalance(ctx context.Context, walletID uuid.UUID) (int64, error)
	UpdateTransactionStatus(ctx context.Context, transactionID uuid.UUID, newStatus domain.TransactionStatus) (*domain.Transaction, error)
	FindTransactionByID(ctx context.Context, transactionID uuid.UUID) (*domain.Transaction, error)
	FindTransactionByIdempotencyKey(ctx context.Context, walletID uuid.UUID, key string) (*domain.Transaction, error)
	ListTransactionsByWallet(ctx context.Context, walletID uuid.UUID, opts domain.TransactionListOptions) ([]domain.Transaction, error)
	// FindCounterpartTransaction resolves the opposite leg of a transfer pair
	// through the shared idempotency key prefix.
	FindCounterpartTransaction(ctx context.Context, idempotencyKey string, excludeWalletID uuid.UUID) (*domain.Transaction, error)

	// Transfer methods. CreateTransfer runs the balance check and all three
	// inserts in one database transaction with both wallet rows locked; on an
	// idempotency-key conflict it returns the existing transfer and no error.
	CreateTransfer(ctx context.Context, params CreateTransferParams) (*domain.Transfer, error)
	FindTransferByID(ctx context.Context, transferID uuid.UUID) (*domain.Transfer, error)
	FindTransferByIdempotencyKey(ctx context.Context, key string) (*domain.Transfer, error)
	ListTransfersByWallet(ctx context.Context, walletID uuid.UUID) ([]domain.Transfer, error)

	// Intent methods. Complete* transitions the intent to its terminal state
	// and appends the single ledger entry in one database transaction, keyed
	// by the intent id so replays cannot double-post.
	CreateTopUpIntent(ctx context.Context, intent *domain.TopUpIntent) error
	FindTopUpIntentByReference(ctx context.Context, reference string) (*domain.TopUpIntent, error)
	ListPendingTopUpIntents(ctx context.Context, olderThan time.Time, limit int) ([]domain.TopUpIntent, error)
	CompleteTopUpIntent(ctx context.Context, intentID uuid.UUID, walletID uuid.UUID, payload []byte) (*domain.Transaction, error)
	FailTopUpIntent(ctx context.Context, intentID uuid.UUID, payload []byte) error
	CreateCashoutIntent(ctx context.Context, intent *domain.CashoutIntent) error
	FindCashoutIntentByReference(ctx context.Context, reference string) (*domain.CashoutIntent, error)
	CompleteCashoutIntent(ctx context.Context, intentID uuid.UUID, walletID uuid.UUID, payload []byte) (*domain.Transaction, error)
	FailCashoutIntent(ctx context.Context, intentID uuid.UUID, payload []byte) error
}
