package tally

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/tally/id"
	"github.com/xraph/tally/invoice"
	"github.com/xraph/tally/payment"
	"github.com/xraph/tally/types"
)

// PaymentInput records money received against an invoice. Amount is in
// minor units of the ledger currency.
type PaymentInput struct {
	InvoiceID     id.InvoiceID   `json:"invoice_id"`
	Amount        int64          `json:"amount" validate:"gt=0"`
	Method        payment.Method `json:"method" validate:"required,oneof=stripe bank_transfer cash check other"`
	TransactionID string         `json:"transaction_id" validate:"max=200"`
	GatewayRef    string         `json:"gateway_ref" validate:"max=200"`
	PaymentDate   time.Time      `json:"payment_date"`
	Notes         string         `json:"notes" validate:"max=2000"`
}

// RecordPayment stores a completed payment. Once completed payments cover
// the invoice total the invoice enters paid. Recording a GatewayRef a
// second time returns the first payment unchanged.
func (e *Engine) RecordPayment(ctx context.Context, in PaymentInput) (*payment.Payment, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if in.InvoiceID.IsNil() {
		return nil, ValidationError{Field: "invoice_id", Message: "is required"}
	}

	if in.GatewayRef != "" {
		existing, err := e.paymentByRef(ctx, userID, in.GatewayRef)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, ErrPaymentNotFound) {
			return nil, err
		}
	}

	inv, err := e.ownedInvoice(ctx, userID, in.InvoiceID)
	if err != nil {
		return nil, err
	}
	switch inv.Status {
	case invoice.StatusCancelled:
		return nil, ErrInvoiceCancelled
	case invoice.StatusPaid:
		return nil, ErrInvoicePaid
	}

	now := e.clock()
	p := &payment.Payment{
		Entity:        types.NewEntity(now),
		ID:            id.NewPaymentID(),
		UserID:        userID,
		InvoiceID:     inv.ID,
		ClientID:      inv.ClientID,
		Amount:        types.NewMoney(in.Amount, e.currency),
		Method:        in.Method,
		Status:        payment.StatusCompleted,
		TransactionID: in.TransactionID,
		GatewayRef:    in.GatewayRef,
		PaymentDate:   in.PaymentDate.UTC(),
		Notes:         in.Notes,
	}
	if p.PaymentDate.IsZero() {
		p.PaymentDate = now
	}

	if err := e.store.CreatePayment(ctx, p); err != nil {
		if errors.Is(err, ErrAlreadyExists) && p.GatewayRef != "" {
			return e.paymentByRef(ctx, userID, p.GatewayRef)
		}
		return nil, err
	}
	e.plugins.EmitPaymentRecorded(ctx, p)

	if err := e.settle(ctx, inv, p.Method); err != nil {
		e.logger.Warn("payment recorded but invoice not settled",
			"payment_id", p.ID.String(),
			"invoice_id", inv.ID.String(),
			"error", err,
		)
	}
	return p, nil
}

// settle marks inv paid when its completed payments cover the total. An
// empty method takes the latest payment's method.
func (e *Engine) settle(ctx context.Context, inv *invoice.Invoice, method payment.Method) error {
	payments, err := e.completedPayments(ctx, inv.ID)
	if err != nil {
		return err
	}
	paid := sumPayments(payments, e.currency)
	if len(payments) == 0 || paid.Amount < inv.Total.Amount {
		e.logger.Debug("invoice not covered",
			"invoice_id", inv.ID.String(),
			"paid", paid.String(),
			"total", inv.Total.String(),
		)
		return nil
	}
	if method == "" {
		method = payments[len(payments)-1].Method
	}

	cur, err := e.store.GetInvoice(ctx, inv.ID)
	if err != nil {
		return err
	}
	_, err = e.transition(ctx, cur, invoice.StatusPaid, string(method))
	return err
}

// PaidAmount sums the completed payments of an invoice.
func (e *Engine) PaidAmount(ctx context.Context, invID id.InvoiceID) (types.Money, error) {
	payments, err := e.completedPayments(ctx, invID)
	if err != nil {
		return types.Money{}, err
	}
	return sumPayments(payments, e.currency), nil
}

func (e *Engine) completedPayments(ctx context.Context, invID id.InvoiceID) ([]*payment.Payment, error) {
	return e.store.ListPayments(ctx, payment.ListOpts{
		InvoiceID: invID,
		Status:    payment.StatusCompleted,
	})
}

func sumPayments(payments []*payment.Payment, currency string) types.Money {
	total := types.Zero(currency)
	for _, p := range payments {
		total = total.Add(p.Amount)
	}
	return total
}

// ListPayments lists the calling user's payments, oldest first.
func (e *Engine) ListPayments(ctx context.Context, opts payment.ListOpts) ([]*payment.Payment, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	opts.UserID = userID
	return e.store.ListPayments(ctx, opts)
}

// ConfirmGatewayPayment checks a processor reference with the configured
// gateway and records it against the invoice once settled.
func (e *Engine) ConfirmGatewayPayment(ctx context.Context, invID id.InvoiceID, ref string) (*payment.Payment, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if e.gateway == nil {
		return nil, ErrGatewayNotConfigured
	}
	if ref == "" {
		return nil, ValidationError{Field: "gateway_ref", Message: "is required"}
	}

	if existing, err := e.paymentByRef(ctx, userID, ref); err == nil {
		return existing, nil
	} else if !errors.Is(err, ErrPaymentNotFound) {
		return nil, err
	}

	gp, err := e.gateway.Confirm(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("tally: confirm %s payment %s: %w", e.gateway.Name(), ref, err)
	}
	if !gp.Settled {
		return nil, fmt.Errorf("%w: %s is %s", ErrPaymentNotSettled, ref, gp.Status)
	}
	if !types.Zero(e.currency).SameCurrency(gp.Amount) {
		return nil, ValidationError{Field: "currency", Message: fmt.Sprintf("gateway charged %s, ledger uses %s", gp.Amount.Currency, e.currency)}
	}

	method := payment.Method(e.gateway.Name())
	if !method.Valid() {
		method = payment.MethodOther
	}

	return e.RecordPayment(ctx, PaymentInput{
		InvoiceID:     invID,
		Amount:        gp.Amount.Amount,
		Method:        method,
		TransactionID: gp.Ref,
		GatewayRef:    ref,
		PaymentDate:   e.clock(),
		Notes:         "confirmed via " + e.gateway.Name(),
	})
}

// paymentByRef finds a payment by processor reference. A reference already
// recorded by another user is a conflict, not a match.
func (e *Engine) paymentByRef(ctx context.Context, userID, ref string) (*payment.Payment, error) {
	p, err := e.store.GetPaymentByGatewayRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, fmt.Errorf("%w: gateway reference %s", ErrAlreadyExists, ref)
	}
	return p, nil
}
