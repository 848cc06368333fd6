/**
 * @description
 * This file contains the HTTP handlers for the wallet service's API
 * endpoints. Handlers parse incoming requests, call the appropriate methods
 * on the application service, and write the HTTP response. They act as the
 * bridge between the web layer and the business logic layer.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - github.com/go-chi/chi/v5: For URL parameter extraction.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/vaultpay/wallet-service/internal/app"
	"github.com/vaultpay/wallet-service/internal/domain"
	"github.com/vaultpay/wallet-service/internal/store"
)

// WalletHandlers holds the application service that handlers will use.
type WalletHandlers struct {
	service     *app.Service
	replayCache app.ReplayCache
}

// NewWalletHandlers creates a new instance of WalletHandlers. The replay
// cache may be nil; webhook handling then relies on the database alone.
func NewWalletHandlers(service *app.Service, replayCache app.ReplayCache) *WalletHandlers {
	return &WalletHandlers{service: service, replayCache: replayCache}
}

// writeJSON is a helper for writing JSON responses.
func (h *WalletHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *WalletHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// writeServiceError maps service-layer errors onto HTTP statuses.
func (h *WalletHandlers) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrUserNotFound),
		errors.Is(err, store.ErrWalletNotFound),
		errors.Is(err, store.ErrTransactionNotFound),
		errors.Is(err, store.ErrTransferNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrInvalidAmount),
		errors.Is(err, store.ErrCurrencyMismatch),
		errors.Is(err, store.ErrWalletInactive),
		errors.Is(err, store.ErrWalletStateUnchanged),
		errors.Is(err, app.ErrUnsupportedCurrency),
		errors.Is(err, app.ErrMissingIdempotencyKey):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrInsufficientFunds):
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		log.Printf("level=error component=api msg=\"unexpected service error\" err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "An internal error occurred")
	}
}

// authUserID resolves the authenticated user's UUID or writes a 401.
func (h *WalletHandlers) authUserID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	sub, ok := GetAuthUserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "User not authenticated")
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, "Invalid user identifier in token")
		return uuid.Nil, false
	}
	return userID, true
}

// walletIDParam parses the {walletID} URL parameter or writes a 400.
func (h *WalletHandlers) walletIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	walletID, err := uuid.Parse(chi.URLParam(r, "walletID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid wallet ID")
		return uuid.Nil, false
	}
	return walletID, true
}

// CreateWalletHandler handles POST /wallets.
func (h *WalletHandlers) CreateWalletHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Currency string `json:"currency"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	wallet, err := h.service.CreateWallet(r.Context(), req.Currency)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, wallet)
}

// GetWalletHandler handles GET /wallets/{walletID}.
func (h *WalletHandlers) GetWalletHandler(w http.ResponseWriter, r *http.Request) {
	walletID, ok := h.walletIDParam(w, r)
	if !ok {
		return
	}
	wallet, err := h.service.GetWallet(r.Context(), walletID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, wallet)
}

// ActivateWalletHandler handles PUT /wallets/{walletID}/activate.
func (h *WalletHandlers) ActivateWalletHandler(w http.ResponseWriter, r *http.Request) {
	walletID, ok := h.walletIDParam(w, r)
	if !ok {
		return
	}
	wallet, err := h.service.ActivateWallet(r.Context(), walletID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, wallet)
}

// DeactivateWalletHandler handles PUT /wallets/{walletID}/deactivate.
func (h *WalletHandlers) DeactivateWalletHandler(w http.ResponseWriter, r *http.Request) {
	walletID, ok := h.walletIDParam(w, r)
	if !ok {
		return
	}
	wallet, err := h.service.DeactivateWallet(r.Context(), walletID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, wallet)
}

// GetBalanceHandler handles GET /wallets/{walletID}/balance.
func (h *WalletHandlers) GetBalanceHandler(w http.ResponseWriter, r *http.Request) {
	walletID, ok := h.walletIDParam(w, r)
	if !ok {
		return
	}
	balance, err := h.service.GetWalletBalance(r.Context(), walletID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, balance)
}

// ListTransactionsHandler handles GET /wallets/{walletID}/transactions.
func (h *WalletHandlers) ListTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	walletID, ok := h.walletIDParam(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	opts := domain.TransactionListOptions{
		Status:    q.Get("status"),
		Direction: q.Get("direction"),
		Sort:      q.Get("sort"),
		Limit:     20,
		Page:      1,
	}
	if raw := q.Get("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil && limit > 0 && limit <= 200 {
			opts.Limit = limit
		}
	}
	if raw := q.Get("page"); raw != "" {
		if page, err := strconv.Atoi(raw); err == nil && page > 0 {
			opts.Page = page
		}
	}

	history, err := h.service.GetTransactionHistory(r.Context(), walletID, opts)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"transactions": history})
}

// FundWalletHandler handles POST /wallets/fund. This is an internal/admin
// path for seeding funds without a gateway charge.
func (h *WalletHandlers) FundWalletHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		WalletID       uuid.UUID `json:"wallet_id"`
		Amount         int64     `json:"amount"`
		IdempotencyKey string    `json:"idempotency_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Amount <= 0 {
		h.writeError(w, http.StatusBadRequest, "Amount must be positive")
		return
	}

	entry, err := h.service.FundWallet(r.Context(), req.WalletID, req.Amount, req.IdempotencyKey)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, entry)
}

// TopUpHandler handles POST /wallets/topup.
func (h *WalletHandlers) TopUpHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authUserID(w, r)
	if !ok {
		return
	}

	var req domain.TopUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.service.InitiateTopUp(r.Context(), userID, req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, result)
}

// CashoutHandler handles POST /wallets/cashout.
func (h *WalletHandlers) CashoutHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authUserID(w, r)
	if !ok {
		return
	}

	var req domain.CashoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.BankAccountNumber == "" || req.BankCode == "" {
		h.writeError(w, http.StatusBadRequest, "Bank account number and bank code are required")
		return
	}

	intent, err := h.service.InitiateCashout(r.Context(), userID, req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, intent)
}

// TransferHandler handles POST /transfers.
func (h *WalletHandlers) TransferHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authUserID(w, r)
	if !ok {
		return
	}

	var req domain.TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	transfer, err := h.service.Transfer(r.Context(), userID, req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	// A retried idempotency key also lands here with the original transfer,
	// so the success status is 200 rather than 201.
	h.writeJSON(w, http.StatusOK, transfer)
}

// GetTransferHandler handles GET /transfers/{transferID}.
func (h *WalletHandlers) GetTransferHandler(w http.ResponseWriter, r *http.Request) {
	transferID, err := uuid.Parse(chi.URLParam(r, "transferID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid transfer ID")
		return
	}
	transfer, err := h.service.GetTransfer(r.Context(), transferID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, transfer)
}

// ListWalletTransfersHandler handles GET /wallets/{walletID}/transfers.
func (h *WalletHandlers) ListWalletTransfersHandler(w http.ResponseWriter, r *http.Request) {
	walletID, ok := h.walletIDParam(w, r)
	if !ok {
		return
	}
	transfers, err := h.service.ListWalletTransfers(r.Context(), walletID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"transfers": transfers})
}
