/**
 * @description
 * This package provides a client for interacting with the Paystack API. It
 * encapsulates the logic for making authenticated HTTP requests to Paystack's
 * endpoints, handling request body construction, and parsing responses.
 *
 * The wallet service uses three operations: initialize a payment (top-up),
 * create a payout (cashout: transfer recipient + transfer) and verify a
 * charge by reference.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, net/http, time: Standard Go libraries.
 */
package paystackclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client is a client for the Paystack API.
type Client struct {
	BaseURL    string
	SecretKey  string
	HTTPClient *http.Client
}

// NewClient creates a new Paystack API client.
func NewClient(baseURL, secretKey string) *Client {
	return &Client{
		BaseURL:   baseURL,
		SecretKey: secretKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// InitializePaymentRequest is the payload for POST /transaction/initialize.
type InitializePaymentRequest struct {
	Amount    int64  `json:"amount"` // in minor units
	Email     string `json:"email"`
	Reference string `json:"reference"`
	Currency  string `json:"currency,omitempty"`
}

type initializePaymentResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	} `json:"data"`
}

type createRecipientResponse struct {
	Status bool `json:"status"`
	Data   struct {
		RecipientCode string `json:"recipient_code"`
	} `json:"data"`
}

// PayoutResponse is the trimmed response from POST /transfer.
type PayoutResponse struct {
	Status bool `json:"status"`
	Data   struct {
		Reference    string `json:"reference"`
		TransferCode string `json:"transfer_code"`
		Status       string `json:"status"`
	} `json:"data"`
}

// VerifyData is the trimmed response from GET /transaction/verify/{reference}.
type VerifyData struct {
	Status    string `json:"status"` // e.g. "success", "failed", "abandoned"
	Reference string `json:"reference"`
	Amount    int64  `json:"amount"` // in minor units
	Currency  string `json:"currency"`
}

type verifyResponse struct {
	Status bool       `json:"status"`
	Data   VerifyData `json:"data"`
}

// APIError represents a non-2xx response from Paystack.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("paystack api error: status=%d message=%s", e.StatusCode, e.Message)
}

// InitializePayment creates a hosted checkout session for a top-up and
// returns the authorization URL the payer is redirected to. The reference is
// the intent id; Paystack echoes it back in the charge webhook.
func (c *Client) InitializePayment(ctx context.Context, reference string, amount int64, email, currency string) (string, error) {
	var resp initializePaymentResponse
	err := c.post(ctx, "/transaction/initialize", InitializePaymentRequest{
		Amount:    amount,
		Email:     email,
		Reference: reference,
		Currency:  currency,
	}, &resp)
	if err != nil {
		return "", err
	}
	if !resp.Status || resp.Data.AuthorizationURL == "" {
		return "", &APIError{StatusCode: http.StatusOK, Message: resp.Message}
	}
	return resp.Data.AuthorizationURL, nil
}

// CreatePayout registers a transfer recipient for the destination bank
// account and initiates the transfer, correlated by the given reference.
func (c *Client) CreatePayout(ctx context.Context, accountNumber, bankCode string, amount int64, currency, reference string) (*PayoutResponse, error) {
	var recipient createRecipientResponse
	err := c.post(ctx, "/transferrecipient", map[string]interface{}{
		"type":           "nuban",
		"name":           "Cashout Recipient",
		"account_number": accountNumber,
		"bank_code":      bankCode,
		"currency":       currency,
	}, &recipient)
	if err != nil {
		return nil, fmt.Errorf("create transfer recipient: %w", err)
	}

	var payout PayoutResponse
	err = c.post(ctx, "/transfer", map[string]interface{}{
		"source":    "balance",
		"amount":    amount,
		"recipient": recipient.Data.RecipientCode,
		"reference": reference,
		"reason":    "Wallet Cashout",
	}, &payout)
	if err != nil {
		return nil, fmt.Errorf("initiate transfer: %w", err)
	}
	return &payout, nil
}

// VerifyTransaction confirms a charge's state directly with Paystack. The
// reconciliation path calls this before crediting a top-up so a forged or
// stale webhook body alone can never move money.
func (c *Client) VerifyTransaction(ctx context.Context, reference string) (*VerifyData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.BaseURL+"/transaction/verify/"+reference, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)

	res, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, c.errorFromResponse(res)
	}

	var resp verifyResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode verify response: %w", err)
	}
	return &resp.Data, nil
}

func (c *Client) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return c.errorFromResponse(res)
	}
	return json.NewDecoder(res.Body).Decode(out)
}

func (c *Client) errorFromResponse(res *http.Response) error {
	raw, _ := io.ReadAll(res.Body)
	var parsed struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(raw, &parsed)
	if parsed.Message == "" {
		parsed.Message = string(raw)
	}
	return &APIError{StatusCode: res.StatusCode, Message: parsed.Message}
}
