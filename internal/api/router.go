/**
 * @description
 * This file sets up the HTTP router for the wallet service. It defines the
 * API endpoints, associates them with their corresponding handlers, and
 * applies middleware for logging, panic recovery, CORS and authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/go-chi/cors: For cross-origin request handling.
 */

package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// WalletRoutes creates and returns the router for the wallet service.
func WalletRoutes(h *WalletHandlers, jwtSecret, corsAllowedOrigins string) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	if corsAllowedOrigins != "" {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   strings.Split(corsAllowedOrigins, ","),
			AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Paystack calls this; it is authenticated by signature, not by JWT.
	r.Post("/webhooks/paystack", h.PaystackWebhookHandler)

	// Group routes that require authentication.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(jwtSecret))

		// Wallet registry and ledger reads
		r.Post("/wallets", h.CreateWalletHandler)
		r.Get("/wallets/{walletID}", h.GetWalletHandler)
		r.Put("/wallets/{walletID}/activate", h.ActivateWalletHandler)
		r.Put("/wallets/{walletID}/deactivate", h.DeactivateWalletHandler)
		r.Get("/wallets/{walletID}/balance", h.GetBalanceHandler)
		r.Get("/wallets/{walletID}/transactions", h.ListTransactionsHandler)
		r.Get("/wallets/{walletID}/transfers", h.ListWalletTransfersHandler)

		// Money movement
		r.Post("/wallets/fund", h.FundWalletHandler)
		r.Post("/wallets/topup", h.TopUpHandler)
		r.Post("/wallets/cashout", h.CashoutHandler)
		r.Post("/transfers", h.TransferHandler)
		r.Get("/transfers/{transferID}", h.GetTransferHandler)
	})

	return r
}
