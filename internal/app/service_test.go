package app

import (
	"context"
	"errors"
	"testing"

	"github.com/vaultpay/wallet-service/internal/domain"
	"github.com/vaultpay/wallet-service/internal/store"
)

func TestCreateWallet(t *testing.T) {
	repo := newFakeRepository()
	svc, _ := newTestService(repo, &fakeGateway{})

	wallet, err := svc.CreateWallet(context.Background(), "NGN")
	if err != nil {
		t.Fatalf("create wallet failed: %v", err)
	}
	if wallet.IsActive {
		t.Fatalf("new wallets must require explicit activation")
	}

	if _, err := svc.CreateWallet(context.Background(), "XYZ"); !errors.Is(err, ErrUnsupportedCurrency) {
		t.Fatalf("expected ErrUnsupportedCurrency, got %v", err)
	}
}

func TestWalletActivationLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepository()
	svc, publisher := newTestService(repo, &fakeGateway{})

	wallet, err := svc.CreateWallet(ctx, "NGN")
	if err != nil {
		t.Fatalf("create wallet failed: %v", err)
	}

	activated, err := svc.ActivateWallet(ctx, wallet.ID)
	if err != nil {
		t.Fatalf("activate failed: %v", err)
	}
	if !activated.IsActive {
		t.Fatalf("wallet should be active")
	}
	keys := publisher.routingKeys()
	if len(keys) != 1 || keys[0] != "wallet.activated" {
		t.Fatalf("expected wallet.activated fact, got %v", keys)
	}

	// Activating again is rejected, not silently absorbed.
	if _, err := svc.ActivateWallet(ctx, wallet.ID); !errors.Is(err, store.ErrWalletStateUnchanged) {
		t.Fatalf("expected ErrWalletStateUnchanged, got %v", err)
	}

	if _, err := svc.DeactivateWallet(ctx, wallet.ID); err != nil {
		t.Fatalf("deactivate failed: %v", err)
	}
	if _, err := svc.DeactivateWallet(ctx, wallet.ID); !errors.Is(err, store.ErrWalletStateUnchanged) {
		t.Fatalf("expected ErrWalletStateUnchanged on repeat deactivate, got %v", err)
	}
}

func TestFundWallet(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepository()
	svc, publisher := newTestService(repo, &fakeGateway{})

	user := repo.addUser("erin", "NGN")
	walletID := user.Wallets["NGN"]

	entry, err := svc.FundWallet(ctx, walletID, 2500, "fund-1")
	if err != nil {
		t.Fatalf("fund failed: %v", err)
	}
	if entry.Direction != domain.DirectionCredit || entry.Status != domain.StatusSuccessful {
		t.Fatalf("unexpected entry: %+v", entry)
	}

	balance, err := svc.GetWalletBalance(ctx, walletID)
	if err != nil {
		t.Fatalf("balance read failed: %v", err)
	}
	if balance.AvailableBalance != 2500 {
		t.Fatalf("expected balance 2500, got %d", balance.AvailableBalance)
	}

	// Replaying the key returns the original entry without a second credit.
	replayed, err := svc.FundWallet(ctx, walletID, 2500, "fund-1")
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if replayed.ID != entry.ID {
		t.Fatalf("replay created a new entry: %s vs %s", replayed.ID, entry.ID)
	}
	balance, _ = svc.GetWalletBalance(ctx, walletID)
	if balance.AvailableBalance != 2500 {
		t.Fatalf("replay changed balance: %d", balance.AvailableBalance)
	}

	var credited int
	for _, key := range publisher.routingKeys() {
		if key == "wallet.credited" {
			credited++
		}
	}
	if credited != 1 {
		t.Fatalf("expected one wallet.credited fact, got %d", credited)
	}
}

func TestFundWalletRejectsInactive(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepository()
	svc, _ := newTestService(repo, &fakeGateway{})

	user := repo.addUser("erin", "NGN")
	walletID := user.Wallets["NGN"]
	if _, err := repo.SetWalletActive(ctx, walletID, false); err != nil {
		t.Fatalf("deactivate failed: %v", err)
	}

	if _, err := svc.FundWallet(ctx, walletID, 100, "fund-1"); !errors.Is(err, store.ErrWalletInactive) {
		t.Fatalf("expected ErrWalletInactive, got %v", err)
	}
}

func TestTransactionHistoryCounterparty(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepository()
	svc, _ := newTestService(repo, &fakeGateway{})

	alice := repo.addUser("alice", "USD")
	bob := repo.addUser("bob", "USD")
	repo.seedBalance(alice.Wallets["USD"], 1000)

	if _, err := svc.Transfer(ctx, alice.ID, domain.TransferRequest{
		DestinationUsername: "bob",
		Currency:            "USD",
		Amount:              300,
		IdempotencyKey:      "hist-1",
	}); err != nil {
		t.Fatalf("transfer failed: %v", err)
	}

	history, err := svc.GetTransactionHistory(ctx, alice.Wallets["USD"], domain.TransactionListOptions{})
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}

	var foundDebit bool
	for _, item := range history {
		if item.Direction != domain.DirectionDebit {
			continue
		}
		foundDebit = true
		if item.DestinationWalletID == nil || *item.DestinationWalletID != bob.Wallets["USD"] {
			t.Fatalf("debit leg missing counterparty wallet: %+v", item)
		}
	}
	if !foundDebit {
		t.Fatalf("debit entry not found in history")
	}
}

func TestUpdateTransactionStatusStateMachine(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepository()
	svc, _ := newTestService(repo, &fakeGateway{})

	user := repo.addUser("erin", "NGN")
	entry, err := repo.AppendTransaction(ctx, store.AppendTransactionParams{
		WalletID:       user.Wallets["NGN"],
		Amount:         100,
		Currency:       "NGN",
		Direction:      domain.DirectionCredit,
		Status:         domain.StatusPending,
		IdempotencyKey: "pending-1",
	})
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}

	// Pending entries never count toward the balance.
	if balance, _ := repo.WalletBalance(ctx, user.Wallets["NGN"]); balance != 0 {
		t.Fatalf("pending entry affected balance: %d", balance)
	}

	updated, err := svc.UpdateTransactionStatus(ctx, entry.ID, domain.StatusSuccessful)
	if err != nil {
		t.Fatalf("transition failed: %v", err)
	}
	if updated.Status != domain.StatusSuccessful {
		t.Fatalf("expected successful, got %s", updated.Status)
	}
	if balance, _ := repo.WalletBalance(ctx, user.Wallets["NGN"]); balance != 100 {
		t.Fatalf("successful entry not counted: %d", balance)
	}

	// Terminal states are absorbing.
	if _, err := svc.UpdateTransactionStatus(ctx, entry.ID, domain.StatusFailed); !errors.Is(err, store.ErrInvalidStatusTransition) {
		t.Fatalf("expected ErrInvalidStatusTransition, got %v", err)
	}
}
