package domain

import "testing"

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from TransactionStatus
		to   TransactionStatus
		want bool
	}{
		{name: "pending to successful", from: StatusPending, to: StatusSuccessful, want: true},
		{name: "pending to failed", from: StatusPending, to: StatusFailed, want: true},
		{name: "successful is absorbing", from: StatusSuccessful, to: StatusFailed, want: false},
		{name: "successful cannot revert", from: StatusSuccessful, to: StatusPending, want: false},
		{name: "failed is absorbing", from: StatusFailed, to: StatusSuccessful, want: false},
		{name: "failed cannot revert", from: StatusFailed, to: StatusPending, want: false},
		{name: "pending cannot self-loop", from: StatusPending, to: StatusPending, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Fatalf("CanTransition(%s, %s) = %t, want %t", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestIsTerminal(t *testing.T) {
	if StatusPending.IsTerminal() {
		t.Fatalf("pending must not be terminal")
	}
	if !StatusSuccessful.IsTerminal() || !StatusFailed.IsTerminal() {
		t.Fatalf("successful and failed must be terminal")
	}
}

func TestLegKeyDerivation(t *testing.T) {
	if DebitLegKey("k1") != "k1:debit" || CreditLegKey("k1") != "k1:credit" {
		t.Fatalf("leg keys not derived deterministically: %s / %s", DebitLegKey("k1"), CreditLegKey("k1"))
	}
	if DebitLegKey("k1") == CreditLegKey("k1") {
		t.Fatalf("leg keys must differ")
	}
}

func TestWebhookSuccessRequiresAgreement(t *testing.T) {
	tests := []struct {
		name  string
		event PaystackWebhookEvent
		want  bool
	}{
		{
			name:  "charge success agrees",
			event: PaystackWebhookEvent{Event: "charge.success", Data: PaystackWebhookData{Status: "success"}},
			want:  true,
		},
		{
			name:  "charge event name alone is not enough",
			event: PaystackWebhookEvent{Event: "charge.success", Data: PaystackWebhookData{Status: "failed"}},
			want:  false,
		},
		{
			name:  "inner status alone is not enough",
			event: PaystackWebhookEvent{Event: "charge.failed", Data: PaystackWebhookData{Status: "success"}},
			want:  false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.event.ChargeSucceeded(); got != tt.want {
				t.Fatalf("ChargeSucceeded() = %t, want %t", got, tt.want)
			}
		})
	}

	transfer := PaystackWebhookEvent{Event: "transfer.success", Data: PaystackWebhookData{Status: "pending"}}
	if transfer.TransferSucceeded() {
		t.Fatalf("transfer success must require the inner status to agree")
	}
}

func TestIsSupportedCurrency(t *testing.T) {
	for _, code := range []string{"NGN", "USD", "GHS", "KES"} {
		if !IsSupportedCurrency(code) {
			t.Fatalf("%s should be supported", code)
		}
	}
	if IsSupportedCurrency("BTC") || IsSupportedCurrency("") || IsSupportedCurrency("ngn") {
		t.Fatalf("unsupported codes must be rejected")
	}
}
