package stripe_test

import (
	"context"
	"errors"
	"testing"

	stripeapi "github.com/stripe/stripe-go/v76"

	"github.com/xraph/tally"
	"github.com/xraph/tally/gateway/stripe"
)

type fakeIntents map[string]*stripeapi.PaymentIntent

func (f fakeIntents) Get(id string, _ *stripeapi.PaymentIntentParams) (*stripeapi.PaymentIntent, error) {
	pi, ok := f[id]
	if !ok {
		return nil, &stripeapi.Error{HTTPStatusCode: 404, Msg: "No such payment_intent"}
	}
	return pi, nil
}

func TestConfirm(t *testing.T) {
	g := stripe.NewWithIntents(fakeIntents{
		"pi_done": {
			ID:             "pi_done",
			Amount:         13800,
			AmountReceived: 13800,
			Currency:       stripeapi.CurrencyUSD,
			Status:         stripeapi.PaymentIntentStatusSucceeded,
		},
		"pi_pending": {
			ID:       "pi_pending",
			Amount:   5000,
			Currency: stripeapi.CurrencyUSD,
			Status:   stripeapi.PaymentIntentStatusProcessing,
		},
	})
	ctx := context.Background()

	tests := []struct {
		ref     string
		settled bool
		amount  int64
		status  string
	}{
		{"pi_done", true, 13800, "succeeded"},
		{"pi_pending", false, 5000, "processing"},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			gp, err := g.Confirm(ctx, tt.ref)
			if err != nil {
				t.Fatalf("Confirm: %v", err)
			}
			if gp.Settled != tt.settled || gp.Amount.Amount != tt.amount || gp.Status != tt.status {
				t.Errorf("got %+v", gp)
			}
			if gp.Amount.Currency != "usd" {
				t.Errorf("currency: got %q", gp.Amount.Currency)
			}
		})
	}
}

func TestConfirmErrors(t *testing.T) {
	g := stripe.NewWithIntents(fakeIntents{})
	ctx := context.Background()

	if _, err := g.Confirm(ctx, "ch_123"); !tally.IsValidation(err) {
		t.Errorf("non intent ref: got %v, want validation error", err)
	}
	if _, err := g.Confirm(ctx, "pi_missing"); !errors.Is(err, tally.ErrPaymentNotFound) {
		t.Errorf("missing intent: got %v, want ErrPaymentNotFound", err)
	}
}
