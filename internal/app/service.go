/**
 * @description
 * This file contains the core business logic for the wallet service. The
 * `Service` struct orchestrates all money movement operations, coordinating
 * between the database repository, the Paystack gateway client, and the
 * message broker.
 *
 * Key features:
 * - Wallet registry: creation, activation lifecycle, derived balance reads.
 * - Direct wallet funding with idempotent ledger appends.
 * - Publishes wallet facts to RabbitMQ for asynchronous processing by the
 *   notification and analytics collaborators; publish failures are logged
 *   and never surface to callers.
 *
 * @dependencies
 * - context, errors, log, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID generation.
 * - internal/domain, internal/store: For domain models and data access.
 * - pkg/paystackclient, pkg/rabbitmq: For external service communication.
 */

package app

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/vaultpay/wallet-service/internal/domain"
	"github.com/vaultpay/wallet-service/internal/store"
	"github.com/vaultpay/wallet-service/pkg/paystackclient"
	"github.com/vaultpay/wallet-service/pkg/rabbitmq"
)

var (
	// ErrInvalidSignature indicates a webhook body whose HMAC does not match.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrUnsupportedCurrency indicates a currency code the service does not hold.
	ErrUnsupportedCurrency = errors.New("unsupported currency")
	// ErrMissingIdempotencyKey indicates a money-moving request without a business key.
	ErrMissingIdempotencyKey = errors.New("idempotency key is required")
)

// Gateway is the payment rail contract the service depends on. It is
// satisfied by *paystackclient.Client and faked in tests.
type Gateway interface {
	InitializePayment(ctx context.Context, reference string, amount int64, email, currency string) (string, error)
	CreatePayout(ctx context.Context, accountNumber, bankCode string, amount int64, currency, reference string) (*paystackclient.PayoutResponse, error)
	VerifyTransaction(ctx context.Context, reference string) (*paystackclient.VerifyData, error)
}

// Service provides the core business logic for the wallet backend.
type Service struct {
	repo                 store.Repository
	gateway              Gateway
	producer             rabbitmq.Publisher
	eventExchange        string
	webhookSecret        string
	walletActiveOnCreate bool
}

// NewService creates a new wallet service instance.
func NewService(repo store.Repository, gateway Gateway, producer rabbitmq.Publisher, eventExchange, webhookSecret string, walletActiveOnCreate bool) *Service {
	return &Service{
		repo:                 repo,
		gateway:              gateway,
		producer:             producer,
		eventExchange:        eventExchange,
		webhookSecret:        webhookSecret,
		walletActiveOnCreate: walletActiveOnCreate,
	}
}

// publish sends a fact to the wallet events exchange. Delivery is
// best-effort: a broker failure is logged and suppressed so it can never
// convert a committed ledger write into a caller-visible error.
func (s *Service) publish(ctx context.Context, routingKey string, body interface{}) {
	if s.producer == nil {
		return
	}
	if err := s.producer.Publish(ctx, s.eventExchange, routingKey, body); err != nil {
		log.Printf("level=warn component=app msg=\"event publish failed\" routing_key=%s err=%v", routingKey, err)
	}
}

// CreateWallet registers a new currency-scoped wallet. Whether it starts
// active is a deployment decision (WALLET_ACTIVE_ON_CREATE); the default
// requires explicit activation before first use.
func (s *Service) CreateWallet(ctx context.Context, currency string) (*domain.Wallet, error) {
	if !domain.IsSupportedCurrency(currency) {
		return nil, ErrUnsupportedCurrency
	}
	wallet := &domain.Wallet{
		ID:       uuid.New(),
		Currency: currency,
		IsActive: s.walletActiveOnCreate,
	}
	if err := s.repo.CreateWallet(ctx, wallet); err != nil {
		return nil, err
	}
	return wallet, nil
}

// GetWallet retrieves a wallet by id.
func (s *Service) GetWallet(ctx context.Context, walletID uuid.UUID) (*domain.Wallet, error) {
	return s.repo.FindWalletByID(ctx, walletID)
}

// ActivateWallet switches a wallet on for debits and credits. Activating an
// already-active wallet fails with store.ErrWalletStateUnchanged.
func (s *Service) ActivateWallet(ctx context.Context, walletID uuid.UUID) (*domain.Wallet, error) {
	wallet, err := s.repo.SetWalletActive(ctx, walletID, true)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, "wallet.activated", domain.WalletActivatedEvent{
		WalletID:  wallet.ID,
		Currency:  wallet.Currency,
		Timestamp: time.Now().UTC(),
	})
	return wallet, nil
}

// DeactivateWallet soft-disables a wallet. Deactivating an already-inactive
// wallet fails with store.ErrWalletStateUnchanged.
func (s *Service) DeactivateWallet(ctx context.Context, walletID uuid.UUID) (*domain.Wallet, error) {
	return s.repo.SetWalletActive(ctx, walletID, false)
}

// GetWalletBalance derives the wallet's balance from its successful ledger entries.
func (s *Service) GetWalletBalance(ctx context.Context, walletID uuid.UUID) (*domain.WalletBalance, error) {
	wallet, err := s.repo.FindWalletByID(ctx, walletID)
	if err != nil {
		return nil, err
	}
	balance, err := s.repo.WalletBalance(ctx, walletID)
	if err != nil {
		return nil, err
	}
	return &domain.WalletBalance{
		WalletID:         wallet.ID,
		AvailableBalance: balance,
		Currency:         wallet.Currency,
	}, nil
}

// FundWallet appends a direct successful CREDIT to a wallet's ledger. A
// replayed key returns the original entry instead of double-writing.
func (s *Service) FundWallet(ctx context.Context, walletID uuid.UUID, amount int64, idempotencyKey string) (*domain.Transaction, error) {
	if idempotencyKey == "" {
		return nil, ErrMissingIdempotencyKey
	}
	wallet, err := s.repo.FindWalletByID(ctx, walletID)
	if err != nil {
		return nil, err
	}
	if !wallet.IsActive {
		return nil, store.ErrWalletInactive
	}

	entry, err := s.repo.AppendTransaction(ctx, store.AppendTransactionParams{
		WalletID:       wallet.ID,
		Amount:         amount,
		Currency:       wallet.Currency,
		Direction:      domain.DirectionCredit,
		Status:         domain.StatusSuccessful,
		IdempotencyKey: idempotencyKey,
		Metadata:       map[string]interface{}{"source": "funding"},
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateTransaction) {
			// Success by idempotence: hand back the entry the first call made.
			return s.repo.FindTransactionByIdempotencyKey(ctx, walletID, idempotencyKey)
		}
		return nil, err
	}

	event := domain.WalletCreditedEvent{
		WalletID:      wallet.ID,
		TransactionID: entry.ID,
		Amount:        entry.Amount,
		Currency:      entry.Currency,
		Source:        "funding",
		Timestamp:     time.Now().UTC(),
	}
	if owner, ownerErr := s.repo.FindUserByWalletID(ctx, wallet.ID); ownerErr == nil {
		event.UserID = owner.ID
	}
	s.publish(ctx, "wallet.credited", event)
	return entry, nil
}

// UpdateTransactionStatus applies the ledger status state machine:
// PENDING may move to SUCCESSFUL or FAILED; terminal states are absorbing.
func (s *Service) UpdateTransactionStatus(ctx context.Context, transactionID uuid.UUID, newStatus domain.TransactionStatus) (*domain.Transaction, error) {
	return s.repo.UpdateTransactionStatus(ctx, transactionID, newStatus)
}

// GetTransactionHistory returns a wallet's ledger entries enriched with the
// counterparty wallet of each transfer pair, resolved through the shared
// idempotency key prefix.
func (s *Service) GetTransactionHistory(ctx context.Context, walletID uuid.UUID, opts domain.TransactionListOptions) ([]domain.TransactionHistoryItem, error) {
	if _, err := s.repo.FindWalletByID(ctx, walletID); err != nil {
		return nil, err
	}
	entries, err := s.repo.ListTransactionsByWallet(ctx, walletID, opts)
	if err != nil {
		return nil, err
	}

	items := make([]domain.TransactionHistoryItem, 0, len(entries))
	for _, entry := range entries {
		item := domain.TransactionHistoryItem{
			ID:             entry.ID,
			Amount:         entry.Amount,
			Currency:       entry.Currency,
			Direction:      entry.Direction,
			Status:         entry.Status,
			SourceWalletID: entry.WalletID,
			CreatedAt:      entry.CreatedAt,
		}
		counterpart, err := s.repo.FindCounterpartTransaction(ctx, entry.IdempotencyKey, entry.WalletID)
		if err == nil {
			item.DestinationWalletID = &counterpart.WalletID
		} else if !errors.Is(err, store.ErrTransactionNotFound) {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}
