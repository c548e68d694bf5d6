// Package stripe confirms Tally payments against Stripe PaymentIntents.
package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	stripeapi "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/paymentintent"

	"github.com/xraph/tally"
	"github.com/xraph/tally/types"
)

// Ensure Gateway implements tally.PaymentGateway at compile time.
var _ tally.PaymentGateway = (*Gateway)(nil)

// Intents is the slice of the Stripe PaymentIntent API the gateway needs.
// *paymentintent.Client satisfies it.
type Intents interface {
	Get(id string, params *stripeapi.PaymentIntentParams) (*stripeapi.PaymentIntent, error)
}

// Gateway looks up PaymentIntents by ID.
type Gateway struct {
	intents Intents
}

// New returns a Gateway authenticating with secretKey.
func New(secretKey string) *Gateway {
	return NewWithIntents(&paymentintent.Client{
		B:   stripeapi.GetBackend(stripeapi.APIBackend),
		Key: secretKey,
	})
}

// NewWithIntents returns a Gateway over an existing PaymentIntent client.
func NewWithIntents(intents Intents) *Gateway {
	return &Gateway{intents: intents}
}

// Name implements tally.PaymentGateway.
func (g *Gateway) Name() string { return "stripe" }

// Confirm implements tally.PaymentGateway. Only succeeded intents are
// settled; the amount is what Stripe actually received.
func (g *Gateway) Confirm(ctx context.Context, ref string) (*tally.GatewayPayment, error) {
	if !strings.HasPrefix(ref, "pi_") {
		return nil, tally.ValidationError{Field: "gateway_ref", Message: "must be a Stripe PaymentIntent ID"}
	}

	params := &stripeapi.PaymentIntentParams{}
	params.Context = ctx

	pi, err := g.intents.Get(ref, params)
	if err != nil {
		var serr *stripeapi.Error
		if errors.As(err, &serr) && serr.HTTPStatusCode == 404 {
			return nil, fmt.Errorf("%w: stripe payment intent %s", tally.ErrPaymentNotFound, ref)
		}
		return nil, fmt.Errorf("tally/stripe: get payment intent %s: %w", ref, err)
	}

	settled := pi.Status == stripeapi.PaymentIntentStatusSucceeded
	amount := pi.AmountReceived
	if !settled {
		amount = pi.Amount
	}

	return &tally.GatewayPayment{
		Ref:     pi.ID,
		Amount:  types.NewMoney(amount, string(pi.Currency)),
		Settled: settled,
		Status:  string(pi.Status),
	}, nil
}
