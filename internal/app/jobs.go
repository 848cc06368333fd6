/**
 * @description
 * This file implements the background reverification sweep for top-up
 * intents. Webhooks can be lost; the sweep periodically asks the gateway for
 * the authoritative state of aged pending intents and finalizes them through
 * the same exactly-once completion path the webhook handler uses.
 *
 * @dependencies
 * - github.com/robfig/cron/v3: For scheduling the periodic sweep.
 * - internal/domain, internal/store: For domain models and data access.
 */

package app

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/vaultpay/wallet-service/internal/domain"
	"github.com/vaultpay/wallet-service/internal/store"
)

const reverifyBatchSize = 50

// ReverifyPendingTopUps finalizes pending top-up intents older than minAge by
// querying the gateway directly. Safe to run concurrently with webhook
// delivery: completion is keyed on the intent and absorbs the race.
func (s *Service) ReverifyPendingTopUps(ctx context.Context, minAge time.Duration) {
	cutoff := time.Now().UTC().Add(-minAge)
	intents, err := s.repo.ListPendingTopUpIntents(ctx, cutoff, reverifyBatchSize)
	if err != nil {
		log.Printf("level=error component=reverify_job msg=\"failed to list pending top-up intents\" err=%v", err)
		return
	}
	if len(intents) == 0 {
		return
	}
	log.Printf("level=info component=reverify_job msg=\"reverifying aged top-up intents\" count=%d", len(intents))

	for i := range intents {
		intent := &intents[i]
		verified, err := s.gateway.VerifyTransaction(ctx, intent.Reference)
		if err != nil {
			log.Printf("level=warn component=reverify_job msg=\"verification call failed\" intent_id=%s err=%v", intent.ID, err)
			continue
		}

		switch verified.Status {
		case "success":
			user, err := s.repo.FindUserByID(ctx, intent.UserID)
			if err != nil {
				log.Printf("level=error component=reverify_job msg=\"owner lookup failed\" intent_id=%s err=%v", intent.ID, err)
				continue
			}
			walletID, ok := user.Wallets[intent.Currency]
			if !ok {
				log.Printf("level=error component=reverify_job msg=\"owner has no wallet for intent currency\" intent_id=%s currency=%s", intent.ID, intent.Currency)
				continue
			}
			entry, err := s.repo.CompleteTopUpIntent(ctx, intent.ID, walletID, nil)
			if err != nil {
				log.Printf("level=error component=reverify_job msg=\"completion failed\" intent_id=%s err=%v", intent.ID, err)
				continue
			}
			s.publish(ctx, "wallet.credited", domain.WalletCreditedEvent{
				WalletID:      walletID,
				UserID:        user.ID,
				TransactionID: entry.ID,
				Amount:        entry.Amount,
				Currency:      entry.Currency,
				Source:        "topup",
				Timestamp:     time.Now().UTC(),
			})
			log.Printf("level=info component=reverify_job msg=\"top-up recovered without webhook\" intent_id=%s amount=%d", intent.ID, entry.Amount)

		case "failed", "abandoned":
			if err := s.repo.FailTopUpIntent(ctx, intent.ID, nil); err != nil && !errors.Is(err, store.ErrIntentNotFound) {
				log.Printf("level=error component=reverify_job msg=\"failed to mark intent failed\" intent_id=%s err=%v", intent.ID, err)
				continue
			}
			log.Printf("level=info component=reverify_job msg=\"top-up intent failed on reverify\" intent_id=%s status=%s", intent.ID, verified.Status)

		default:
			// Still in flight at the gateway; leave pending.
		}
	}
}

// Scheduler runs the service's periodic jobs on cron schedules.
type Scheduler struct {
	cron *cron.Cron
	svc  *Service
}

// NewScheduler wires the reverification sweep onto the given cron spec.
func NewScheduler(svc *Service, reverifySpec string, reverifyMinAge time.Duration) (*Scheduler, error) {
	c := cron.New()
	_, err := c.AddFunc(reverifySpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		svc.ReverifyPendingTopUps(ctx, reverifyMinAge)
	})
	if err != nil {
		return nil, err
	}
	return &Scheduler{cron: c, svc: svc}, nil
}

// Start launches the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	log.Printf("level=info component=scheduler msg=\"background jobs started\"")
}

// Stop halts the scheduler and waits for any running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Printf("level=info component=scheduler msg=\"background jobs stopped\"")
}
