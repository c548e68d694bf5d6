// Package payment defines money received against an invoice.
package payment

import (
	"time"

	"github.com/xraph/tally/id"
	"github.com/xraph/tally/types"
)

type Method string

const (
	MethodStripe       Method = "stripe"
	MethodBankTransfer Method = "bank_transfer"
	MethodCash         Method = "cash"
	MethodCheck        Method = "check"
	MethodOther        Method = "other"
)

func (m Method) Valid() bool {
	switch m {
	case MethodStripe, MethodBankTransfer, MethodCash, MethodCheck, MethodOther:
		return true
	}
	return false
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusRefunded  Status = "refunded"
)

type Payment struct {
	types.Entity
	ID            id.PaymentID `json:"id"`
	UserID        string       `json:"user_id"`
	InvoiceID     id.InvoiceID `json:"invoice_id"`
	ClientID      id.ClientID  `json:"client_id"`
	Amount        types.Money  `json:"amount"`
	Method        Method       `json:"method"`
	Status        Status       `json:"status"`
	TransactionID string       `json:"transaction_id,omitempty"`
	// GatewayRef identifies the payment at the processor. Recording the
	// same reference twice yields the first payment.
	GatewayRef  string    `json:"gateway_ref,omitempty"`
	PaymentDate time.Time `json:"payment_date"`
	Notes       string    `json:"notes,omitempty"`
}
