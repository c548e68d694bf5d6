package payment

import (
	"context"

	"github.com/xraph/tally/id"
)

type Store interface {
	// CreatePayment returns tally.ErrAlreadyExists when GatewayRef is
	// already recorded.
	CreatePayment(ctx context.Context, p *Payment) error
	GetPayment(ctx context.Context, paymentID id.PaymentID) (*Payment, error)
	GetPaymentByGatewayRef(ctx context.Context, ref string) (*Payment, error)
	ListPayments(ctx context.Context, opts ListOpts) ([]*Payment, error)
}

// ListOpts filters payment scans. Results are ordered by payment date,
// oldest first.
type ListOpts struct {
	UserID    string
	InvoiceID id.InvoiceID
	ClientID  id.ClientID
	Status    Status
	Limit     int
	Offset    int
}
