// Package invoice defines invoices, their totals and their status lifecycle.
package invoice

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/tally/id"
	"github.com/xraph/tally/types"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusSent      Status = "sent"
	StatusPaid      Status = "paid"
	StatusOverdue   Status = "overdue"
	StatusCancelled Status = "cancelled"
)

// Statuses lists every invoice status in lifecycle order.
var Statuses = []Status{
	StatusDraft,
	StatusSent,
	StatusPaid,
	StatusOverdue,
	StatusCancelled,
}

func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

type Invoice struct {
	types.Entity
	ID        id.InvoiceID `json:"id"`
	UserID    string       `json:"user_id"`
	ClientID  id.ClientID  `json:"client_id"`
	ProjectID id.ProjectID `json:"project_id,omitempty"`
	Number    string       `json:"invoice_number"`
	Status    Status       `json:"status"`
	Currency  string       `json:"currency"`
	LineItems []LineItem   `json:"line_items"`

	// TaxPercent is a percentage of the subtotal, 10 meaning 10%.
	TaxPercent decimal.Decimal `json:"tax_percent"`
	Discount   types.Money     `json:"discount"`
	Subtotal   types.Money     `json:"subtotal"`
	TaxAmount  types.Money     `json:"tax_amount"`
	Total      types.Money     `json:"total"`

	IssueDate     time.Time  `json:"issue_date"`
	DueDate       *time.Time `json:"due_date,omitempty"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
	PaymentMethod string     `json:"payment_method,omitempty"`
	Notes         string     `json:"notes,omitempty"`

	// TimeEntryIDs are the time entries billed by this invoice.
	TimeEntryIDs []id.TimeEntryID `json:"time_entry_ids,omitempty"`
}

// Editable reports whether items, tax, discount and dates may still change.
func (inv *Invoice) Editable() bool {
	return !inv.Status.Terminal()
}

// PastDue reports whether the invoice has an elapsed due date at now.
func (inv *Invoice) PastDue(now time.Time) bool {
	return inv.DueDate != nil && now.After(*inv.DueDate)
}

// LineItem is one billed row. Amount is always Quantity × Rate as computed
// by Compute; a caller-supplied Amount is ignored.
type LineItem struct {
	ID          id.LineItemID   `json:"id"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	Rate        types.Money     `json:"rate"`
	Amount      types.Money     `json:"amount"`
}
