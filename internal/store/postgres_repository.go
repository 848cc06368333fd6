/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository`
 * interface. It contains all the SQL for wallets, the append-only ledger,
 * transfers and payment intents.
 *
 * The two correctness-critical paths live here:
 * - `CreateTransfer` locks both wallet rows, re-derives the source balance
 *   inside the same transaction and writes the debit, credit and transfer
 *   rows together, so two concurrent transfers can never both spend the same
 *   funds.
 * - `CompleteTopUpIntent` / `CompleteCashoutIntent` move the intent to its
 *   terminal state and append the single ledger entry in one transaction,
 *   keyed by the intent id, so a replayed webhook cannot post twice.
 *
 * @dependencies
 * - context, encoding/json, errors, fmt, time: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vaultpay/wallet-service/internal/domain"
)

const uniqueViolation = "23505"

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// FindUserByID retrieves a user and their per-currency wallet map.
func (r *PostgresRepository) FindUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	return r.scanUser(r.db.QueryRow(ctx,
		`SELECT id, username, email, wallets FROM users WHERE id = $1`, userID))
}

// FindUserByUsername retrieves a user by their username.
func (r *PostgresRepository) FindUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.scanUser(r.db.QueryRow(ctx,
		`SELECT id, username, email, wallets FROM users WHERE lower(btrim(username)) = lower(btrim($1))`, username))
}

// FindUserByWalletID resolves the owner of a wallet through the user's
// currency -> wallet mapping.
func (r *PostgresRepository) FindUserByWalletID(ctx context.Context, walletID uuid.UUID) (*domain.User, error) {
	return r.scanUser(r.db.QueryRow(ctx, `
		SELECT u.id, u.username, u.email, u.wallets
		FROM users u, jsonb_each_text(u.wallets) kv
		WHERE kv.value = $1`, walletID.String()))
}

func (r *PostgresRepository) scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	var walletsJSON []byte
	if err := row.Scan(&user.ID, &user.Username, &user.Email, &walletsJSON); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	raw := map[string]string{}
	if len(walletsJSON) > 0 {
		if err := json.Unmarshal(walletsJSON, &raw); err != nil {
			return nil, fmt.Errorf("decode user wallets: %w", err)
		}
	}
	user.Wallets = make(map[string]uuid.UUID, len(raw))
	for currency, id := range raw {
		walletID, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("decode user wallets: %w", err)
		}
		user.Wallets[currency] = walletID
	}
	return &user, nil
}

// CreateWallet inserts a new wallet row.
func (r *PostgresRepository) CreateWallet(ctx context.Context, wallet *domain.Wallet) error {
	query := `
		INSERT INTO wallets (id, currency, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	now := time.Now().UTC()
	wallet.CreatedAt = now
	wallet.UpdatedAt = now
	_, err := r.db.Exec(ctx, query, wallet.ID, wallet.Currency, wallet.IsActive, wallet.CreatedAt, wallet.UpdatedAt)
	return err
}

// FindWalletByID retrieves a wallet by its id.
func (r *PostgresRepository) FindWalletByID(ctx context.Context, walletID uuid.UUID) (*domain.Wallet, error) {
	var wallet domain.Wallet
	query := `SELECT id, currency, is_active, created_at, updated_at FROM wallets WHERE id = $1`
	err := r.db.QueryRow(ctx, query, walletID).Scan(
		&wallet.ID, &wallet.Currency, &wallet.IsActive, &wallet.CreatedAt, &wallet.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return &wallet, nil
}

// SetWalletActive flips the is_active flag. The WHERE clause doubles as the
// already-in-that-state guard: zero rows updated means either the wallet is
// missing or the flag already holds the requested value.
func (r *PostgresRepository) SetWalletActive(ctx context.Context, walletID uuid.UUID, active bool) (*domain.Wallet, error) {
	var wallet domain.Wallet
	query := `
		UPDATE wallets
		SET is_active = $2, updated_at = now()
		WHERE id = $1 AND is_active <> $2
		RETURNING id, currency, is_active, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query, walletID, active).Scan(
		&wallet.ID, &wallet.Currency, &wallet.IsActive, &wallet.CreatedAt, &wallet.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, findErr := r.FindWalletByID(ctx, walletID); findErr != nil {
				return nil, findErr
			}
			return nil, ErrWalletStateUnchanged
		}
		return nil, err
	}
	return &wallet, nil
}

// AppendTransaction inserts one ledger entry. The unique constraint on
// (wallet_id, idempotency_key) turns duplicate appends into ErrDuplicateTransaction.
func (r *PostgresRepository) AppendTransaction(ctx context.Context, params AppendTransactionParams) (*domain.Transaction, error) {
	if params.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	tx, err := appendTransactionTx(ctx, r.db, params)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateTransaction
		}
		return nil, err
	}
	return tx, nil
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, letting the append
// run standalone or inside a larger unit of work.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func appendTransactionTx(ctx context.Context, q querier, params AppendTransactionParams) (*domain.Transaction, error) {
	metadataJSON, err := json.Marshal(params.Metadata)
	if err != nil {
		return nil, fmt.Errorf("encode transaction metadata: %w", err)
	}
	entry := domain.Transaction{
		ID:             uuid.New(),
		WalletID:       params.WalletID,
		Amount:         params.Amount,
		Currency:       params.Currency,
		Direction:      params.Direction,
		Status:         params.Status,
		IdempotencyKey: params.IdempotencyKey,
		Metadata:       params.Metadata,
	}
	query := `
		INSERT INTO transactions (id, wallet_id, amount, currency, direction, status, idempotency_key, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		RETURNING created_at, updated_at
	`
	err = q.QueryRow(ctx, query,
		entry.ID, entry.WalletID, entry.Amount, entry.Currency, entry.Direction,
		entry.Status, entry.IdempotencyKey, metadataJSON,
	).Scan(&entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// WalletBalance reads the derived balance from the wallet_balances view:
// SUM of successful credits minus SUM of successful debits.
func (r *PostgresRepository) WalletBalance(ctx context.Context, walletID uuid.UUID) (int64, error) {
	if _, err := r.FindWalletByID(ctx, walletID); err != nil {
		return 0, err
	}
	var balance int64
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(available_balance, 0) FROM wallet_balances WHERE wallet_id = $1`, walletID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return balance, nil
}

// balanceForWallet derives the balance inside an open transaction so the
// read shares the caller's isolation and row locks.
func balanceForWallet(ctx context.Context, tx pgx.Tx, walletID uuid.UUID) (int64, error) {
	const query = `
		SELECT COALESCE(SUM(CASE direction WHEN 'credit' THEN amount ELSE -amount END), 0)
		FROM transactions
		WHERE wallet_id = $1 AND status = 'successful'
	`
	var balance int64
	if err := tx.QueryRow(ctx, query, walletID).Scan(&balance); err != nil {
		return 0, err
	}
	return balance, nil
}

// UpdateTransactionStatus applies the PENDING -> {SUCCESSFUL, FAILED} state
// machine. Terminal states are absorbing; any other transition fails.
func (r *PostgresRepository) UpdateTransactionStatus(ctx context.Context, transactionID uuid.UUID, newStatus domain.TransactionStatus) (*domain.Transaction, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var current domain.TransactionStatus
	err = tx.QueryRow(ctx,
		`SELECT status FROM transactions WHERE id = $1 FOR UPDATE`, transactionID).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	if !domain.CanTransition(current, newStatus) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, current, newStatus)
	}

	updated, err := scanTransaction(tx.QueryRow(ctx, `
		UPDATE transactions SET status = $2, updated_at = now()
		WHERE id = $1
		RETURNING id, wallet_id, amount, currency, direction, status, idempotency_key, metadata, created_at, updated_at`,
		transactionID, newStatus))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return updated, nil
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var entry domain.Transaction
	var metadataJSON []byte
	err := row.Scan(
		&entry.ID, &entry.WalletID, &entry.Amount, &entry.Currency, &entry.Direction,
		&entry.Status, &entry.IdempotencyKey, &metadataJSON, &entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &entry.Metadata); err != nil {
			return nil, fmt.Errorf("decode transaction metadata: %w", err)
		}
	}
	return &entry, nil
}

// FindTransactionByID retrieves a single ledger entry.
func (r *PostgresRepository) FindTransactionByID(ctx context.Context, transactionID uuid.UUID) (*domain.Transaction, error) {
	entry, err := scanTransaction(r.db.QueryRow(ctx, `
		SELECT id, wallet_id, amount, currency, direction, status, idempotency_key, metadata, created_at, updated_at
		FROM transactions WHERE id = $1`, transactionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return entry, nil
}

// FindTransactionByIdempotencyKey retrieves the ledger entry a given
// (wallet, key) pair produced, if any.
func (r *PostgresRepository) FindTransactionByIdempotencyKey(ctx context.Context, walletID uuid.UUID, key string) (*domain.Transaction, error) {
	entry, err := scanTransaction(r.db.QueryRow(ctx, `
		SELECT id, wallet_id, amount, currency, direction, status, idempotency_key, metadata, created_at, updated_at
		FROM transactions WHERE wallet_id = $1 AND idempotency_key = $2`, walletID, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return entry, nil
}

// ListTransactionsByWallet returns a page of ledger entries, newest first by default.
func (r *PostgresRepository) ListTransactionsByWallet(ctx context.Context, walletID uuid.UUID, opts domain.TransactionListOptions) ([]domain.Transaction, error) {
	query := `
		SELECT id, wallet_id, amount, currency, direction, status, idempotency_key, metadata, created_at, updated_at
		FROM transactions
		WHERE wallet_id = $1
		AND ($2 = '' OR status = $2)
		AND ($3 = '' OR direction = $3)
	`
	if opts.Sort == "ASC" {
		query += ` ORDER BY created_at ASC`
	} else {
		query += ` ORDER BY created_at DESC`
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	page := opts.Page
	if page <= 0 {
		page = 1
	}
	query += ` LIMIT $4 OFFSET $5`

	rows, err := r.db.Query(ctx, query, walletID, opts.Status, opts.Direction, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.Transaction
	for rows.Next() {
		entry, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

// trimLegSuffix strips a per-leg suffix so either leg's key yields the
// transfer's business key.
func trimLegSuffix(key string) string {
	key = strings.TrimSuffix(key, ":debit")
	return strings.TrimSuffix(key, ":credit")
}

// FindCounterpartTransaction locates the opposite leg of a transfer pair.
// Both legs share the business key prefix of their derived per-leg keys.
func (r *PostgresRepository) FindCounterpartTransaction(ctx context.Context, idempotencyKey string, excludeWalletID uuid.UUID) (*domain.Transaction, error) {
	entry, err := scanTransaction(r.db.QueryRow(ctx, `
		SELECT id, wallet_id, amount, currency, direction, status, idempotency_key, metadata, created_at, updated_at
		FROM transactions
		WHERE idempotency_key IN ($1 || ':debit', $1 || ':credit')
		AND wallet_id <> $2
		LIMIT 1`, trimLegSuffix(idempotencyKey), excludeWalletID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return entry, nil
}

// CreateTransfer executes the whole two-sided transfer as one unit of work:
// lock both wallet rows, re-check the source balance under the lock, insert
// the debit and credit legs and the transfer record. If the idempotency key
// has already been used, the existing transfer is returned instead.
func (r *PostgresRepository) CreateTransfer(ctx context.Context, params CreateTransferParams) (*domain.Transfer, error) {
	// Fast path for retries: an existing transfer under this key is the answer.
	if existing, err := r.FindTransferByIdempotencyKey(ctx, params.IdempotencyKey); err == nil {
		return existing, nil
	} else if !errors.Is(err, ErrTransferNotFound) {
		return nil, err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// Lock the source first: it is the balance-bearing side of the check.
	lockQuery := `SELECT id FROM wallets WHERE id = $1 FOR UPDATE`
	var lockedID uuid.UUID
	if err := tx.QueryRow(ctx, lockQuery, params.FromWalletID).Scan(&lockedID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	if err := tx.QueryRow(ctx, lockQuery, params.ToWalletID).Scan(&lockedID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}

	// The balance check and the writes below share this transaction; two
	// concurrent transfers on the same source serialize on the row lock.
	balance, err := balanceForWallet(ctx, tx, params.FromWalletID)
	if err != nil {
		return nil, err
	}
	if balance < params.Amount {
		return nil, ErrInsufficientFunds
	}
	if params.Amount <= 0 {
		return nil, ErrInvalidAmount
	}

	debit, err := appendTransactionTx(ctx, tx, AppendTransactionParams{
		WalletID:       params.FromWalletID,
		Amount:         params.Amount,
		Currency:       params.Currency,
		Direction:      domain.DirectionDebit,
		Status:         domain.StatusSuccessful,
		IdempotencyKey: domain.DebitLegKey(params.IdempotencyKey),
	})
	if err != nil {
		return r.transferConflict(ctx, params.IdempotencyKey, err)
	}
	credit, err := appendTransactionTx(ctx, tx, AppendTransactionParams{
		WalletID:       params.ToWalletID,
		Amount:         params.Amount,
		Currency:       params.Currency,
		Direction:      domain.DirectionCredit,
		Status:         domain.StatusSuccessful,
		IdempotencyKey: domain.CreditLegKey(params.IdempotencyKey),
	})
	if err != nil {
		return r.transferConflict(ctx, params.IdempotencyKey, err)
	}

	transfer := domain.Transfer{
		ID:                  uuid.New(),
		FromWalletID:        params.FromWalletID,
		ToWalletID:          params.ToWalletID,
		Amount:              params.Amount,
		Currency:            params.Currency,
		DebitTransactionID:  debit.ID,
		CreditTransactionID: credit.ID,
		IdempotencyKey:      params.IdempotencyKey,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO transfers (id, from_wallet_id, to_wallet_id, amount, currency, debit_transaction_id, credit_transaction_id, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		RETURNING created_at`,
		transfer.ID, transfer.FromWalletID, transfer.ToWalletID, transfer.Amount, transfer.Currency,
		transfer.DebitTransactionID, transfer.CreditTransactionID, transfer.IdempotencyKey,
	).Scan(&transfer.CreatedAt)
	if err != nil {
		return r.transferConflict(ctx, params.IdempotencyKey, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &transfer, nil
}

// transferConflict resolves a unique-violation race on the transfer key by
// returning the transfer the concurrent caller created.
func (r *PostgresRepository) transferConflict(ctx context.Context, key string, cause error) (*domain.Transfer, error) {
	if !isUniqueViolation(cause) {
		return nil, cause
	}
	existing, err := r.FindTransferByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, cause
	}
	return existing, nil
}

func scanTransfer(row pgx.Row) (*domain.Transfer, error) {
	var transfer domain.Transfer
	err := row.Scan(
		&transfer.ID, &transfer.FromWalletID, &transfer.ToWalletID, &transfer.Amount, &transfer.Currency,
		&transfer.DebitTransactionID, &transfer.CreditTransactionID, &transfer.IdempotencyKey, &transfer.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &transfer, nil
}

// FindTransferByID retrieves a transfer by its id.
func (r *PostgresRepository) FindTransferByID(ctx context.Context, transferID uuid.UUID) (*domain.Transfer, error) {
	transfer, err := scanTransfer(r.db.QueryRow(ctx, `
		SELECT id, from_wallet_id, to_wallet_id, amount, currency, debit_transaction_id, credit_transaction_id, idempotency_key, created_at
		FROM transfers WHERE id = $1`, transferID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransferNotFound
		}
		return nil, err
	}
	return transfer, nil
}

// FindTransferByIdempotencyKey retrieves a transfer by its business key.
func (r *PostgresRepository) FindTransferByIdempotencyKey(ctx context.Context, key string) (*domain.Transfer, error) {
	transfer, err := scanTransfer(r.db.QueryRow(ctx, `
		SELECT id, from_wallet_id, to_wallet_id, amount, currency, debit_transaction_id, credit_transaction_id, idempotency_key, created_at
		FROM transfers WHERE idempotency_key = $1`, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransferNotFound
		}
		return nil, err
	}
	return transfer, nil
}

// ListTransfersByWallet returns all transfers touching a wallet on either side.
func (r *PostgresRepository) ListTransfersByWallet(ctx context.Context, walletID uuid.UUID) ([]domain.Transfer, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, from_wallet_id, to_wallet_id, amount, currency, debit_transaction_id, credit_transaction_id, idempotency_key, created_at
		FROM transfers
		WHERE from_wallet_id = $1 OR to_wallet_id = $1
		ORDER BY created_at DESC`, walletID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transfers []domain.Transfer
	for rows.Next() {
		transfer, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		transfers = append(transfers, *transfer)
	}
	return transfers, rows.Err()
}

// CreateTopUpIntent inserts a new PENDING top-up intent.
func (r *PostgresRepository) CreateTopUpIntent(ctx context.Context, intent *domain.TopUpIntent) error {
	query := `
		INSERT INTO wallet_topup_intents (id, user_id, amount, currency, reference, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		RETURNING created_at, updated_at
	`
	return r.db.QueryRow(ctx, query,
		intent.ID, intent.UserID, intent.Amount, intent.Currency, intent.Reference, intent.Status,
	).Scan(&intent.CreatedAt, &intent.UpdatedAt)
}

// FindTopUpIntentByReference retrieves a top-up intent by its gateway reference.
func (r *PostgresRepository) FindTopUpIntentByReference(ctx context.Context, reference string) (*domain.TopUpIntent, error) {
	var intent domain.TopUpIntent
	err := r.db.QueryRow(ctx, `
		SELECT id, user_id, amount, currency, reference, status, webhook_payload, created_at, updated_at
		FROM wallet_topup_intents WHERE reference = $1`, reference).Scan(
		&intent.ID, &intent.UserID, &intent.Amount, &intent.Currency, &intent.Reference,
		&intent.Status, &intent.WebhookPayload, &intent.CreatedAt, &intent.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrIntentNotFound
		}
		return nil, err
	}
	return &intent, nil
}

// ListPendingTopUpIntents returns PENDING top-up intents created before the
// cutoff, oldest first. Used by the reconciliation sweeper.
func (r *PostgresRepository) ListPendingTopUpIntents(ctx context.Context, olderThan time.Time, limit int) ([]domain.TopUpIntent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, amount, currency, reference, status, webhook_payload, created_at, updated_at
		FROM wallet_topup_intents
		WHERE status = 'pending' AND created_at < $1
		ORDER BY created_at ASC
		LIMIT $2`, olderThan, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var intents []domain.TopUpIntent
	for rows.Next() {
		var intent domain.TopUpIntent
		err := rows.Scan(
			&intent.ID, &intent.UserID, &intent.Amount, &intent.Currency, &intent.Reference,
			&intent.Status, &intent.WebhookPayload, &intent.CreatedAt, &intent.UpdatedAt)
		if err != nil {
			return nil, err
		}
		intents = append(intents, intent)
	}
	return intents, rows.Err()
}

// CompleteTopUpIntent transitions a PENDING top-up intent to COMPLETED and
// appends the single CREDIT entry, keyed by the intent id, in one unit of
// work. When the intent is already terminal the entry it produced (if any)
// is returned without further effect.
func (r *PostgresRepository) CompleteTopUpIntent(ctx context.Context, intentID uuid.UUID, walletID uuid.UUID, payload []byte) (*domain.Transaction, error) {
	return r.finalizeIntent(ctx, finalizeIntentParams{
		table:     "wallet_topup_intents",
		intentID:  intentID,
		walletID:  walletID,
		payload:   payload,
		direction: domain.DirectionCredit,
	})
}

// FailTopUpIntent transitions a PENDING top-up intent to FAILED. No ledger
// effect occurs. Already-terminal intents are left untouched.
func (r *PostgresRepository) FailTopUpIntent(ctx context.Context, intentID uuid.UUID, payload []byte) error {
	return r.failIntent(ctx, "wallet_topup_intents", intentID, payload)
}

// CreateCashoutIntent inserts a new PENDING cashout intent.
func (r *PostgresRepository) CreateCashoutIntent(ctx context.Context, intent *domain.CashoutIntent) error {
	query := `
		INSERT INTO wallet_cashout_intents (id, user_id, amount, currency, reference, status, bank_account_number, bank_code, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		RETURNING created_at, updated_at
	`
	return r.db.QueryRow(ctx, query,
		intent.ID, intent.UserID, intent.Amount, intent.Currency, intent.Reference,
		intent.Status, intent.BankAccountNumber, intent.BankCode,
	).Scan(&intent.CreatedAt, &intent.UpdatedAt)
}

// FindCashoutIntentByReference retrieves a cashout intent by its gateway reference.
func (r *PostgresRepository) FindCashoutIntentByReference(ctx context.Context, reference string) (*domain.CashoutIntent, error) {
	var intent domain.CashoutIntent
	err := r.db.QueryRow(ctx, `
		SELECT id, user_id, amount, currency, reference, status, bank_account_number, bank_code, webhook_payload, created_at, updated_at
		FROM wallet_cashout_intents WHERE reference = $1`, reference).Scan(
		&intent.ID, &intent.UserID, &intent.Amount, &intent.Currency, &intent.Reference, &intent.Status,
		&intent.BankAccountNumber, &intent.BankCode, &intent.WebhookPayload, &intent.CreatedAt, &intent.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrIntentNotFound
		}
		return nil, err
	}
	return &intent, nil
}

// CompleteCashoutIntent transitions a PENDING cashout intent to COMPLETED and
// appends the single DEBIT entry, keyed by the intent id, in one unit of work.
func (r *PostgresRepository) CompleteCashoutIntent(ctx context.Context, intentID uuid.UUID, walletID uuid.UUID, payload []byte) (*domain.Transaction, error) {
	return r.finalizeIntent(ctx, finalizeIntentParams{
		table:     "wallet_cashout_intents",
		intentID:  intentID,
		walletID:  walletID,
		payload:   payload,
		direction: domain.DirectionDebit,
	})
}

// FailCashoutIntent transitions a PENDING cashout intent to FAILED.
func (r *PostgresRepository) FailCashoutIntent(ctx context.Context, intentID uuid.UUID, payload []byte) error {
	return r.failIntent(ctx, "wallet_cashout_intents", intentID, payload)
}

type finalizeIntentParams struct {
	table     string
	intentID  uuid.UUID
	walletID  uuid.UUID
	payload   []byte
	direction domain.TransactionDirection
}

func (r *PostgresRepository) finalizeIntent(ctx context.Context, params finalizeIntentParams) (*domain.Transaction, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var amount int64
	var currency string
	var status domain.IntentStatus
	err = tx.QueryRow(ctx,
		`SELECT amount, currency, status FROM `+params.table+` WHERE id = $1 FOR UPDATE`,
		params.intentID).Scan(&amount, &currency, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrIntentNotFound
		}
		return nil, err
	}
	if status.IsTerminal() {
		// Replayed completion. The ledger entry keyed by the intent id is the
		// prior outcome, if the intent completed successfully.
		entry, findErr := r.FindTransactionByIdempotencyKey(ctx, params.walletID, params.intentID.String())
		if findErr != nil {
			if errors.Is(findErr, ErrTransactionNotFound) {
				return nil, ErrIntentAlreadyFinal
			}
			return nil, findErr
		}
		return entry, nil
	}

	_, err = tx.Exec(ctx,
		`UPDATE `+params.table+` SET status = $2, webhook_payload = $3, updated_at = now() WHERE id = $1`,
		params.intentID, domain.IntentCompleted, params.payload)
	if err != nil {
		return nil, err
	}

	entry, err := appendTransactionTx(ctx, tx, AppendTransactionParams{
		WalletID:       params.walletID,
		Amount:         amount,
		Currency:       currency,
		Direction:      params.direction,
		Status:         domain.StatusSuccessful,
		IdempotencyKey: params.intentID.String(),
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateTransaction
		}
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return entry, nil
}

func (r *PostgresRepository) failIntent(ctx context.Context, table string, intentID uuid.UUID, payload []byte) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE `+table+` SET status = $2, webhook_payload = $3, updated_at = now() WHERE id = $1 AND status = $4`,
		intentID, domain.IntentFailed, payload, domain.IntentPending)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.db.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM `+table+` WHERE id = $1)`, intentID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrIntentNotFound
		}
		// Already terminal: failure redelivery is a no-op.
	}
	return nil
}
