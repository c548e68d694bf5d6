package tally

import (
	"context"

	"github.com/xraph/tally/types"
)

// PaymentGateway confirms payments taken by an external processor.
type PaymentGateway interface {
	Name() string
	// Confirm looks up a processor reference such as a Stripe PaymentIntent
	// ID.
	Confirm(ctx context.Context, ref string) (*GatewayPayment, error)
}

// GatewayPayment is the processor's view of a payment.
type GatewayPayment struct {
	Ref     string
	Amount  types.Money
	Settled bool
	// Status is the processor's own status string.
	Status string
}
