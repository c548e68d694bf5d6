package invoice

import (
	"context"
	"time"

	"github.com/xraph/tally/id"
)

type Store interface {
	CreateInvoice(ctx context.Context, inv *Invoice) error
	GetInvoice(ctx context.Context, invID id.InvoiceID) (*Invoice, error)
	ListInvoices(ctx context.Context, opts ListOpts) ([]*Invoice, error)
	// UpdateInvoice writes items, totals, dates and notes while the stored
	// status still equals inv.Status, else it returns tally.ErrStatusChanged.
	// Status and paid date only change through TransitionInvoiceStatus.
	UpdateInvoice(ctx context.Context, inv *Invoice) error
	// DeleteInvoice removes the invoice while its stored status still equals
	// status, else it returns tally.ErrStatusChanged.
	DeleteInvoice(ctx context.Context, invID id.InvoiceID, status Status) error

	// TransitionInvoiceStatus moves the invoice from t.From to t.To only if
	// its stored status still equals t.From. Otherwise it returns
	// tally.ErrStatusChanged and leaves the invoice untouched.
	TransitionInvoiceStatus(ctx context.Context, invID id.InvoiceID, t Transition) error

	// SumInvoiceTotals adds the totals of every matching invoice.
	SumInvoiceTotals(ctx context.Context, opts SumOpts) (int64, error)
}

// Transition is a compare-and-set status change.
type Transition struct {
	From Status
	To   Status
	At   time.Time
	// PaymentMethod is recorded when To is StatusPaid.
	PaymentMethod string
}

// ListOpts filters invoice scans. Results are newest first.
type ListOpts struct {
	UserID    string
	ClientID  id.ClientID
	ProjectID id.ProjectID
	Statuses  []Status
	// DueBefore keeps invoices with a due date strictly before it.
	DueBefore time.Time
	Limit     int
	Offset    int
}

// SumOpts filters SumInvoiceTotals. Zero fields match everything.
type SumOpts struct {
	UserID   string
	ClientID id.ClientID
	Statuses []Status
	// PaidFrom and PaidTo bound paid_at as [PaidFrom, PaidTo).
	PaidFrom time.Time
	PaidTo   time.Time
}
