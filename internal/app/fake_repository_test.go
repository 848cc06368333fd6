package app

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vaultpay/wallet-service/internal/domain"
	"github.com/vaultpay/wallet-service/internal/store"
	"github.com/vaultpay/wallet-service/pkg/paystackclient"
)

// fakeRepository is an in-memory store.Repository. Like the real one, every
// balance-affecting method is a single atomic unit: the mutex is held for the
// whole operation, so concurrent transfers serialize the same way the
// database's row locks do.
type fakeRepository struct {
	mu        sync.Mutex
	users     map[uuid.UUID]*domain.User
	wallets   map[uuid.UUID]*domain.Wallet
	txs       []*domain.Transaction
	transfers []*domain.Transfer
	topups    map[uuid.UUID]*domain.TopUpIntent
	cashouts  map[uuid.UUID]*domain.CashoutIntent
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		users:    make(map[uuid.UUID]*domain.User),
		wallets:  make(map[uuid.UUID]*domain.Wallet),
		topups:   make(map[uuid.UUID]*domain.TopUpIntent),
		cashouts: make(map[uuid.UUID]*domain.CashoutIntent),
	}
}

// addUser seeds a user with one active wallet per given currency and returns
// the user. Balances start at zero.
func (r *fakeRepository) addUser(username string, currencies ...string) *domain.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	user := &domain.User{
		ID:       uuid.New(),
		Username: username,
		Email:    username + "@example.com",
		Wallets:  make(map[string]uuid.UUID),
	}
	for _, currency := range currencies {
		wallet := &domain.Wallet{
			ID:        uuid.New(),
			Currency:  currency,
			IsActive:  true,
			CreatedAt: time.Now(),
		}
		r.wallets[wallet.ID] = wallet
		user.Wallets[currency] = wallet.ID
	}
	r.users[user.ID] = user
	return user
}

// seedBalance appends a successful credit so the wallet holds the amount.
func (r *fakeRepository) seedBalance(walletID uuid.UUID, amount int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	wallet := r.wallets[walletID]
	r.txs = append(r.txs, &domain.Transaction{
		ID:             uuid.New(),
		WalletID:       walletID,
		Amount:         amount,
		Currency:       wallet.Currency,
		Direction:      domain.DirectionCredit,
		Status:         domain.StatusSuccessful,
		IdempotencyKey: "seed:" + uuid.NewString(),
		CreatedAt:      time.Now(),
	})
}

func (r *fakeRepository) balanceLocked(walletID uuid.UUID) int64 {
	var balance int64
	for _, tx := range r.txs {
		if tx.WalletID != walletID || tx.Status != domain.StatusSuccessful {
			continue
		}
		if tx.Direction == domain.DirectionCredit {
			balance += tx.Amount
		} else {
			balance -= tx.Amount
		}
	}
	return balance
}

func (r *fakeRepository) appendLocked(params store.AppendTransactionParams) (*domain.Transaction, error) {
	for _, tx := range r.txs {
		if tx.WalletID == params.WalletID && tx.IdempotencyKey == params.IdempotencyKey {
			return nil, store.ErrDuplicateTransaction
		}
	}
	if params.Amount <= 0 {
		return nil, store.ErrInvalidAmount
	}
	tx := &domain.Transaction{
		ID:             uuid.New(),
		WalletID:       params.WalletID,
		Amount:         params.Amount,
		Currency:       params.Currency,
		Direction:      params.Direction,
		Status:         params.Status,
		IdempotencyKey: params.IdempotencyKey,
		Metadata:       params.Metadata,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	r.txs = append(r.txs, tx)
	return tx, nil
}

func (r *fakeRepository) FindUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userID]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	return user, nil
}

func (r *fakeRepository) FindUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Username == username {
			return user, nil
		}
	}
	return nil, store.ErrUserNotFound
}

func (r *fakeRepository) FindUserByWalletID(ctx context.Context, walletID uuid.UUID) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		for _, id := range user.Wallets {
			if id == walletID {
				return user, nil
			}
		}
	}
	return nil, store.ErrUserNotFound
}

func (r *fakeRepository) CreateWallet(ctx context.Context, wallet *domain.Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *wallet
	copied.CreatedAt = time.Now()
	r.wallets[wallet.ID] = &copied
	return nil
}

func (r *fakeRepository) FindWalletByID(ctx context.Context, walletID uuid.UUID) (*domain.Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	wallet, ok := r.wallets[walletID]
	if !ok {
		return nil, store.ErrWalletNotFound
	}
	copied := *wallet
	return &copied, nil
}

func (r *fakeRepository) SetWalletActive(ctx context.Context, walletID uuid.UUID, active bool) (*domain.Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	wallet, ok := r.wallets[walletID]
	if !ok {
		return nil, store.ErrWalletNotFound
	}
	if wallet.IsActive == active {
		return nil, store.ErrWalletStateUnchanged
	}
	wallet.IsActive = active
	copied := *wallet
	return &copied, nil
}

func (r *fakeRepository) AppendTransaction(ctx context.Context, params store.AppendTransactionParams) (*domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.appendLocked(params)
}

func (r *fakeRepository) WalletBalance(ctx context.Context, walletID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.wallets[walletID]; !ok {
		return 0, store.ErrWalletNotFound
	}
	return r.balanceLocked(walletID), nil
}

func (r *fakeRepository) UpdateTransactionStatus(ctx context.Context, transactionID uuid.UUID, newStatus domain.TransactionStatus) (*domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, tx := range r.txs {
		if tx.ID == transactionID {
			if !domain.CanTransition(tx.Status, newStatus) {
				return nil, store.ErrInvalidStatusTransition
			}
			tx.Status = newStatus
			tx.UpdatedAt = time.Now()
			copied := *tx
			return &copied, nil
		}
	}
	return nil, store.ErrTransactionNotFound
}

func (r *fakeRepository) FindTransactionByID(ctx context.Context, transactionID uuid.UUID) (*domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, tx := range r.txs {
		if tx.ID == transactionID {
			copied := *tx
			return &copied, nil
		}
	}
	return nil, store.ErrTransactionNotFound
}

func (r *fakeRepository) FindTransactionByIdempotencyKey(ctx context.Context, walletID uuid.UUID, key string) (*domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, tx := range r.txs {
		if tx.WalletID == walletID && tx.IdempotencyKey == key {
			copied := *tx
			return &copied, nil
		}
	}
	return nil, store.ErrTransactionNotFound
}

func (r *fakeRepository) ListTransactionsByWallet(ctx context.Context, walletID uuid.UUID, opts domain.TransactionListOptions) ([]domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Transaction
	for _, tx := range r.txs {
		if tx.WalletID != walletID {
			continue
		}
		if opts.Status != "" && string(tx.Status) != opts.Status {
			continue
		}
		if opts.Direction != "" && string(tx.Direction) != opts.Direction {
			continue
		}
		out = append(out, *tx)
	}
	if opts.Sort == "ASC" {
		sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	} else {
		sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	page := opts.Page
	if page <= 0 {
		page = 1
	}
	start := (page - 1) * limit
	if start >= len(out) {
		return nil, nil
	}
	out = out[start:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeRepository) FindCounterpartTransaction(ctx context.Context, idempotencyKey string, excludeWalletID uuid.UUID) (*domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	base := strings.TrimSuffix(idempotencyKey, ":debit")
	base = strings.TrimSuffix(base, ":credit")
	for _, tx := range r.txs {
		if tx.WalletID == excludeWalletID {
			continue
		}
		if tx.IdempotencyKey == domain.DebitLegKey(base) || tx.IdempotencyKey == domain.CreditLegKey(base) {
			copied := *tx
			return &copied, nil
		}
	}
	return nil, store.ErrTransactionNotFound
}

func (r *fakeRepository) CreateTransfer(ctx context.Context, params store.CreateTransferParams) (*domain.Transfer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, transfer := range r.transfers {
		if transfer.IdempotencyKey == params.IdempotencyKey {
			copied := *transfer
			return &copied, nil
		}
	}

	if r.balanceLocked(params.FromWalletID) < params.Amount {
		return nil, store.ErrInsufficientFunds
	}
	if params.Amount <= 0 {
		return nil, store.ErrInvalidAmount
	}

	debit, err := r.appendLocked(store.AppendTransactionParams{
		WalletID:       params.FromWalletID,
		Amount:         params.Amount,
		Currency:       params.Currency,
		Direction:      domain.DirectionDebit,
		Status:         domain.StatusSuccessful,
		IdempotencyKey: domain.DebitLegKey(params.IdempotencyKey),
	})
	if err != nil {
		return nil, err
	}
	credit, err := r.appendLocked(store.AppendTransactionParams{
		WalletID:       params.ToWalletID,
		Amount:         params.Amount,
		Currency:       params.Currency,
		Direction:      domain.DirectionCredit,
		Status:         domain.StatusSuccessful,
		IdempotencyKey: domain.CreditLegKey(params.IdempotencyKey),
	})
	if err != nil {
		return nil, err
	}

	transfer := &domain.Transfer{
		ID:                  uuid.New(),
		FromWalletID:        params.FromWalletID,
		ToWalletID:          params.ToWalletID,
		Amount:              params.Amount,
		Currency:            params.Currency,
		DebitTransactionID:  debit.ID,
		CreditTransactionID: credit.ID,
		IdempotencyKey:      params.IdempotencyKey,
		CreatedAt:           time.Now(),
	}
	r.transfers = append(r.transfers, transfer)
	copied := *transfer
	return &copied, nil
}

func (r *fakeRepository) FindTransferByID(ctx context.Context, transferID uuid.UUID) (*domain.Transfer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, transfer := range r.transfers {
		if transfer.ID == transferID {
			copied := *transfer
			return &copied, nil
		}
	}
	return nil, store.ErrTransferNotFound
}

func (r *fakeRepository) FindTransferByIdempotencyKey(ctx context.Context, key string) (*domain.Transfer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, transfer := range r.transfers {
		if transfer.IdempotencyKey == key {
			copied := *transfer
			return &copied, nil
		}
	}
	return nil, store.ErrTransferNotFound
}

func (r *fakeRepository) ListTransfersByWallet(ctx context.Context, walletID uuid.UUID) ([]domain.Transfer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Transfer
	for _, transfer := range r.transfers {
		if transfer.FromWalletID == walletID || transfer.ToWalletID == walletID {
			out = append(out, *transfer)
		}
	}
	return out, nil
}

func (r *fakeRepository) CreateTopUpIntent(ctx context.Context, intent *domain.TopUpIntent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *intent
	copied.CreatedAt = time.Now()
	r.topups[intent.ID] = &copied
	return nil
}

func (r *fakeRepository) FindTopUpIntentByReference(ctx context.Context, reference string) (*domain.TopUpIntent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, intent := range r.topups {
		if intent.Reference == reference {
			copied := *intent
			return &copied, nil
		}
	}
	return nil, store.ErrIntentNotFound
}

func (r *fakeRepository) ListPendingTopUpIntents(ctx context.Context, olderThan time.Time, limit int) ([]domain.TopUpIntent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.TopUpIntent
	for _, intent := range r.topups {
		if intent.Status == domain.IntentPending && intent.CreatedAt.Before(olderThan) {
			out = append(out, *intent)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *fakeRepository) CompleteTopUpIntent(ctx context.Context, intentID uuid.UUID, walletID uuid.UUID, payload []byte) (*domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	intent, ok := r.topups[intentID]
	if !ok {
		return nil, store.ErrIntentNotFound
	}
	key := intentID.String()
	if intent.Status.IsTerminal() {
		for _, tx := range r.txs {
			if tx.WalletID == walletID && tx.IdempotencyKey == key {
				copied := *tx
				return &copied, nil
			}
		}
		return nil, store.ErrIntentAlreadyFinal
	}
	entry, err := r.appendLocked(store.AppendTransactionParams{
		WalletID:       walletID,
		Amount:         intent.Amount,
		Currency:       intent.Currency,
		Direction:      domain.DirectionCredit,
		Status:         domain.StatusSuccessful,
		IdempotencyKey: key,
	})
	if err != nil {
		return nil, err
	}
	intent.Status = domain.IntentCompleted
	intent.WebhookPayload = payload
	intent.UpdatedAt = time.Now()
	return entry, nil
}

func (r *fakeRepository) FailTopUpIntent(ctx context.Context, intentID uuid.UUID, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	intent, ok := r.topups[intentID]
	if !ok {
		return store.ErrIntentNotFound
	}
	if intent.Status.IsTerminal() {
		return nil
	}
	intent.Status = domain.IntentFailed
	intent.WebhookPayload = payload
	intent.UpdatedAt = time.Now()
	return nil
}

func (r *fakeRepository) CreateCashoutIntent(ctx context.Context, intent *domain.CashoutIntent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *intent
	copied.CreatedAt = time.Now()
	r.cashouts[intent.ID] = &copied
	return nil
}

func (r *fakeRepository) FindCashoutIntentByReference(ctx context.Context, reference string) (*domain.CashoutIntent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, intent := range r.cashouts {
		if intent.Reference == reference {
			copied := *intent
			return &copied, nil
		}
	}
	return nil, store.ErrIntentNotFound
}

func (r *fakeRepository) CompleteCashoutIntent(ctx context.Context, intentID uuid.UUID, walletID uuid.UUID, payload []byte) (*domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	intent, ok := r.cashouts[intentID]
	if !ok {
		return nil, store.ErrIntentNotFound
	}
	key := intentID.String()
	if intent.Status.IsTerminal() {
		for _, tx := range r.txs {
			if tx.WalletID == walletID && tx.IdempotencyKey == key {
				copied := *tx
				return &copied, nil
			}
		}
		return nil, store.ErrIntentAlreadyFinal
	}
	entry, err := r.appendLocked(store.AppendTransactionParams{
		WalletID:       walletID,
		Amount:         intent.Amount,
		Currency:       intent.Currency,
		Direction:      domain.DirectionDebit,
		Status:         domain.StatusSuccessful,
		IdempotencyKey: key,
	})
	if err != nil {
		return nil, err
	}
	intent.Status = domain.IntentCompleted
	intent.WebhookPayload = payload
	intent.UpdatedAt = time.Now()
	return entry, nil
}

func (r *fakeRepository) FailCashoutIntent(ctx context.Context, intentID uuid.UUID, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	intent, ok := r.cashouts[intentID]
	if !ok {
		return store.ErrIntentNotFound
	}
	if intent.Status.IsTerminal() {
		return nil
	}
	intent.Status = domain.IntentFailed
	intent.WebhookPayload = payload
	intent.UpdatedAt = time.Now()
	return nil
}

// fakeGateway is a scriptable Gateway implementation.
type fakeGateway struct {
	mu           sync.Mutex
	verifyStatus string
	verifyErr    error
	payoutErr    error
	initErr      error
	verifyCalls  int
	payoutCalls  int
	initCalls    int
}

func (g *fakeGateway) InitializePayment(ctx context.Context, reference string, amount int64, email, currency string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.initCalls++
	if g.initErr != nil {
		return "", g.initErr
	}
	return "https://checkout.example.com/" + reference, nil
}

func (g *fakeGateway) CreatePayout(ctx context.Context, accountNumber, bankCode string, amount int64, currency, reference string) (*paystackclient.PayoutResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.payoutCalls++
	if g.payoutErr != nil {
		return nil, g.payoutErr
	}
	return &paystackclient.PayoutResponse{Status: true}, nil
}

func (g *fakeGateway) VerifyTransaction(ctx context.Context, reference string) (*paystackclient.VerifyData, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.verifyCalls++
	if g.verifyErr != nil {
		return nil, g.verifyErr
	}
	status := g.verifyStatus
	if status == "" {
		status = "success"
	}
	return &paystackclient.VerifyData{Status: status, Reference: reference}, nil
}

// recordingPublisher captures published facts for assertions.
type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

type publishedEvent struct {
	exchange   string
	routingKey string
	body       interface{}
}

func (p *recordingPublisher) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{exchange: exchange, routingKey: routingKey, body: body})
	return nil
}

func (p *recordingPublisher) Close() {}

func (p *recordingPublisher) routingKeys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	keys := make([]string, 0, len(p.events))
	for _, e := range p.events {
		keys = append(keys, e.routingKey)
	}
	return keys
}

func newTestService(repo *fakeRepository, gateway *fakeGateway) (*Service, *recordingPublisher) {
	publisher := &recordingPublisher{}
	svc := NewService(repo, gateway, publisher, "wallet_events", "test-webhook-secret", false)
	return svc, publisher
}
