/**
 * @description
 * This file contains the HTTP handler for incoming Paystack webhooks. The
 * raw body must be read before any parsing because the signature covers the
 * exact bytes Paystack sent. Response codes steer the provider's retry
 * behavior: 2xx acknowledges, anything else causes redelivery.
 *
 * @dependencies
 * - io, net/http: Standard Go libraries.
 * - internal/app, internal/store: For reconciliation logic and custom errors.
 */

package api

import (
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/vaultpay/wallet-service/internal/app"
	"github.com/vaultpay/wallet-service/internal/store"
)

const maxWebhookBodyBytes = 1 << 20 // 1 MiB

// PaystackWebhookHandler handles POST /webhooks/paystack.
func (h *WalletHandlers) PaystackWebhookHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Unable to read request body")
		return
	}
	signature := r.Header.Get("x-paystack-signature")

	// The replay cache is only consulted after the signature would be checked
	// anyway; verify first so unauthenticated bodies cannot poison the cache.
	if !h.service.VerifyWebhookSignature(body, signature) {
		log.Printf("level=warn component=api msg=\"webhook rejected: bad signature\" remote=%s", r.RemoteAddr)
		h.writeError(w, http.StatusUnauthorized, "Invalid signature")
		return
	}

	if h.replayCache != nil && h.replayCache.Seen(r.Context(), body) {
		log.Printf("level=info component=api msg=\"webhook replay suppressed\"")
		w.WriteHeader(http.StatusOK)
		return
	}

	err = h.service.HandlePaystackWebhook(r.Context(), body, signature)
	switch {
	case err == nil:
		if h.replayCache != nil {
			h.replayCache.MarkSeen(r.Context(), body)
		}
		w.WriteHeader(http.StatusOK)
	case errors.Is(err, app.ErrInvalidSignature):
		h.writeError(w, http.StatusUnauthorized, "Invalid signature")
	case errors.Is(err, store.ErrIntentNotFound):
		// Unknown reference: not ours, or created by another environment.
		// Acknowledge so the provider stops retrying, but keep a trace.
		log.Printf("level=warn component=api msg=\"webhook for unknown reference acknowledged\"")
		w.WriteHeader(http.StatusOK)
	default:
		// A transient failure mid-reconciliation; a non-2xx makes the
		// provider redeliver and the handler is safe to re-enter.
		log.Printf("level=error component=api msg=\"webhook processing failed\" err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Webhook processing failed")
	}
}
