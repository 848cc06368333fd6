/**
 * @description
 * This file defines the shapes of inbound Paystack webhook deliveries. The
 * provider signs the raw body with HMAC-SHA512 and posts
 * `{event, data: {status, reference, amount, currency, metadata}}`.
 *
 * @notes
 * - A delivery is treated as successful only when the event name AND the
 *   inner status field agree; neither is trusted alone.
 * - `data.amount` arrives in minor units and is used as-is.
 */

package domain

import "strings"

// PaystackWebhookEvent is the decoded webhook body.
type PaystackWebhookEvent struct {
	Event string              `json:"event"`
	Data  PaystackWebhookData `json:"data"`
}

// PaystackWebhookData is the inner payload of a webhook delivery.
type PaystackWebhookData struct {
	Status    string                 `json:"status"`
	Reference string                 `json:"reference"`
	Amount    int64                  `json:"amount"` // in minor units
	Currency  string                 `json:"currency"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// IsChargeEvent reports whether the delivery belongs to the top-up (charge)
// family of events.
func (e PaystackWebhookEvent) IsChargeEvent() bool {
	return strings.HasPrefix(e.Event, "charge.")
}

// IsTransferEvent reports whether the delivery belongs to the payout
// (transfer) family of events.
func (e PaystackWebhookEvent) IsTransferEvent() bool {
	return strings.HasPrefix(e.Event, "transfer.")
}

// ChargeSucceeded reports provider-confirmed top-up success. Both the event
// name and the inner status must agree.
func (e PaystackWebhookEvent) ChargeSucceeded() bool {
	return e.Event == "charge.success" && e.Data.Status == "success"
}

// TransferSucceeded reports provider-confirmed payout success. Both the
// event name and the inner status must agree.
func (e PaystackWebhookEvent) TransferSucceeded() bool {
	return e.Event == "transfer.success" && e.Data.Status == "success"
}
