package tally

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/tally/aggregate"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/invoice"
	"github.com/xraph/tally/numbering"
	"github.com/xraph/tally/timeentry"
	"github.com/xraph/tally/types"
)

// LineItemInput is one billed row. Rate is in minor units of the ledger
// currency; the amount is always computed.
type LineItemInput struct {
	Description string          `json:"description" validate:"required,max=1000"`
	Quantity    decimal.Decimal `json:"quantity"`
	Rate        int64           `json:"rate"`
}

// InvoiceInput creates an invoice. Status may be draft (default) or sent.
type InvoiceInput struct {
	ClientID     id.ClientID      `json:"client_id"`
	ProjectID    id.ProjectID     `json:"project_id"`
	Status       invoice.Status   `json:"status" validate:"omitempty,oneof=draft sent"`
	LineItems    []LineItemInput  `json:"line_items" validate:"dive"`
	TaxPercent   decimal.Decimal  `json:"tax_percent"`
	Discount     int64            `json:"discount"`
	IssueDate    time.Time        `json:"issue_date"`
	DueDate      *time.Time       `json:"due_date"`
	Notes        string           `json:"notes" validate:"max=5000"`
	TimeEntryIDs []id.TimeEntryID `json:"time_entry_ids"`
}

// InvoiceUpdate edits an invoice that is neither paid nor cancelled.
// Nil fields are left as they are.
type InvoiceUpdate struct {
	LineItems  *[]LineItemInput `json:"line_items"`
	TaxPercent *decimal.Decimal `json:"tax_percent"`
	Discount   *int64           `json:"discount"`
	IssueDate  *time.Time       `json:"issue_date"`
	DueDate    *time.Time       `json:"due_date"`
	Notes      *string          `json:"notes" validate:"omitempty,max=5000"`
}

func (e *Engine) lineItems(in []LineItemInput) []invoice.LineItem {
	items := make([]invoice.LineItem, len(in))
	for i, it := range in {
		items[i] = invoice.LineItem{
			ID:          id.NewLineItemID(),
			Description: it.Description,
			Quantity:    it.Quantity,
			Rate:        types.NewMoney(it.Rate, e.currency),
		}
	}
	return items
}

// CreateInvoice stores a new invoice with a fresh number and computed
// totals, and links the given time entries to it.
func (e *Engine) CreateInvoice(ctx context.Context, in InvoiceInput) (*invoice.Invoice, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if in.ClientID.IsNil() {
		return nil, ValidationError{Field: "client_id", Message: "is required"}
	}

	c, err := e.ownedClient(ctx, userID, in.ClientID)
	if err != nil {
		return nil, err
	}
	if !in.ProjectID.IsNil() {
		p, err := e.ownedProject(ctx, userID, in.ProjectID)
		if err != nil {
			return nil, err
		}
		if p.ClientID.String() != c.ID.String() {
			return nil, ValidationError{Field: "project_id", Message: "belongs to another client"}
		}
	}
	if err := e.checkBillable(ctx, userID, c.ID, in.TimeEntryIDs); err != nil {
		return nil, err
	}

	now := e.clock()
	inv := &invoice.Invoice{
		Entity:       types.NewEntity(now),
		ID:           id.NewInvoiceID(),
		UserID:       userID,
		ClientID:     c.ID,
		ProjectID:    in.ProjectID,
		Status:       invoice.StatusDraft,
		LineItems:    e.lineItems(in.LineItems),
		TaxPercent:   in.TaxPercent,
		Discount:     types.NewMoney(in.Discount, e.currency),
		IssueDate:    in.IssueDate.UTC(),
		DueDate:      in.DueDate,
		Notes:        in.Notes,
		TimeEntryIDs: slices.Clone(in.TimeEntryIDs),
	}
	if in.Status != "" {
		inv.Status = in.Status
	}
	if inv.IssueDate.IsZero() {
		inv.IssueDate = now
	}
	if err := e.calc.Apply(inv); err != nil {
		return nil, fromCalculator(err)
	}

	num, err := e.storeNumbered(ctx, inv)
	if err != nil {
		return nil, err
	}

	if len(inv.TimeEntryIDs) > 0 {
		if err := e.store.LinkTimeEntries(ctx, inv.TimeEntryIDs, inv.ID); err != nil {
			if e.rollbackInvoice(ctx, inv) {
				e.numbers.Release(context.WithoutCancel(ctx), num)
			}
			return nil, err
		}
	}

	e.logger.Info("invoice created",
		"invoice_id", inv.ID.String(),
		"number", inv.Number,
		"total", inv.Total.String(),
	)
	e.plugins.EmitInvoiceCreated(ctx, inv)
	return inv, nil
}

// checkBillable requires every entry to be a completed, unbilled entry of
// the user on the client.
func (e *Engine) checkBillable(ctx context.Context, userID string, clientID id.ClientID, entryIDs []id.TimeEntryID) error {
	for i, eid := range entryIDs {
		entry, err := e.ownedTimeEntry(ctx, userID, eid)
		if err != nil {
			return err
		}
		field := fmt.Sprintf("time_entry_ids[%d]", i)
		switch {
		case entry.Running():
			return ValidationError{Field: field, Message: "timer is still running"}
		case entry.ClientID.String() != clientID.String():
			return ValidationError{Field: field, Message: "belongs to another client"}
		case entry.Invoiced:
			return ErrTimeEntryInvoiced
		}
	}
	return nil
}

// maxNumberAttempts bounds how many numbers CreateInvoice draws when the
// store reports the drawn number as taken.
const maxNumberAttempts = 5

// storeNumbered draws a number and stores inv under it. A number the store
// already holds is skipped, never released.
func (e *Engine) storeNumbered(ctx context.Context, inv *invoice.Invoice) (numbering.Number, error) {
	for attempt := 1; ; attempt++ {
		num, err := e.numbers.Next(ctx)
		if err != nil {
			return numbering.Number{}, fmt.Errorf("%w: %w", ErrNumberingFailed, err)
		}
		inv.Number = num.Text

		err = e.store.CreateInvoice(ctx, inv)
		switch {
		case err == nil:
			return num, nil
		case errors.Is(err, ErrDuplicateNumber) && attempt < maxNumberAttempts:
			e.logger.Warn("invoice number taken, drawing another",
				"number", num.Text,
				"attempt", attempt,
			)
		case errors.Is(err, ErrDuplicateNumber):
			return numbering.Number{}, err
		default:
			e.numbers.Release(context.WithoutCancel(ctx), num)
			return numbering.Number{}, err
		}
	}
}

// rollbackInvoice removes an invoice whose creation failed part way and
// reports whether it is gone.
func (e *Engine) rollbackInvoice(ctx context.Context, inv *invoice.Invoice) bool {
	ctx = context.WithoutCancel(ctx)
	if err := e.store.DeleteInvoice(ctx, inv.ID, inv.Status); err != nil {
		e.logger.Error("rollback invoice", "invoice_id", inv.ID.String(), "error", err)
		return false
	}
	return true
}

// GetInvoice returns an invoice owned by the calling user.
func (e *Engine) GetInvoice(ctx context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	return e.ownedInvoice(ctx, userID, invID)
}

// ListInvoices lists the calling user's invoices, newest first.
func (e *Engine) ListInvoices(ctx context.Context, opts invoice.ListOpts) ([]*invoice.Invoice, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	opts.UserID = userID
	return e.store.ListInvoices(ctx, opts)
}

// UpdateInvoice edits items, tax, discount, dates or notes and recomputes
// the totals. Paid and cancelled invoices are frozen. When completed
// payments already cover the new total the invoice enters paid.
func (e *Engine) UpdateInvoice(ctx context.Context, invID id.InvoiceID, upd InvoiceUpdate) (*invoice.Invoice, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateInput(upd); err != nil {
		return nil, err
	}
	if upd.LineItems != nil {
		for i, it := range *upd.LineItems {
			if err := validateInput(it); err != nil {
				var ve ValidationError
				if errors.As(err, &ve) {
					ve.Field = fmt.Sprintf("line_items[%d].%s", i, ve.Field)
					return nil, ve
				}
				return nil, err
			}
		}
	}

	inv, err := e.ownedInvoice(ctx, userID, invID)
	if err != nil {
		return nil, err
	}
	if !inv.Editable() {
		return nil, ErrInvoiceNotEditable
	}

	if upd.LineItems != nil {
		inv.LineItems = e.lineItems(*upd.LineItems)
	}
	if upd.TaxPercent != nil {
		inv.TaxPercent = *upd.TaxPercent
	}
	if upd.Discount != nil {
		inv.Discount = types.NewMoney(*upd.Discount, e.currency)
	}
	if upd.IssueDate != nil {
		inv.IssueDate = upd.IssueDate.UTC()
	}
	if upd.DueDate != nil {
		inv.DueDate = upd.DueDate
	}
	if upd.Notes != nil {
		inv.Notes = *upd.Notes
	}
	if err := e.calc.Apply(inv); err != nil {
		return nil, fromCalculator(err)
	}
	inv.Touch(e.clock())

	if err := e.store.UpdateInvoice(ctx, inv); err != nil {
		return nil, err
	}

	// A lowered total may already be covered by recorded payments.
	if err := e.settle(ctx, inv, ""); err != nil {
		return nil, err
	}
	return e.store.GetInvoice(ctx, inv.ID)
}

// SendInvoice moves a draft invoice to sent.
func (e *Engine) SendInvoice(ctx context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	return e.UpdateInvoiceStatus(ctx, invID, invoice.StatusSent, "")
}

// UpdateInvoiceStatus moves an invoice through its lifecycle. Saving the
// current status again is a no-op. Entering paid stamps the paid date and
// adds the total to the client's revenue exactly once; method records how
// it was paid.
func (e *Engine) UpdateInvoiceStatus(ctx context.Context, invID id.InvoiceID, to invoice.Status, method string) (*invoice.Invoice, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if !to.Valid() {
		return nil, ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", to)}
	}

	inv, err := e.ownedInvoice(ctx, userID, invID)
	if err != nil {
		return nil, err
	}
	return e.transition(ctx, inv, to, method)
}

// transition performs a checked compare-and-set status change on inv.
func (e *Engine) transition(ctx context.Context, inv *invoice.Invoice, to invoice.Status, method string) (*invoice.Invoice, error) {
	from := inv.Status
	if from == to {
		return inv, nil
	}
	if !invoice.CanTransition(from, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	now := e.clock()
	if to == invoice.StatusOverdue && !inv.PastDue(now) {
		return nil, fmt.Errorf("%w: %s is not past its due date", ErrInvalidTransition, inv.Number)
	}

	updated, changed, err := e.storeTransition(ctx, inv.ID, invoice.Transition{
		From:          from,
		To:            to,
		At:            now,
		PaymentMethod: method,
	})
	if err != nil || !changed {
		return updated, err
	}

	if to == invoice.StatusPaid {
		e.logger.Info("invoice paid",
			"invoice_id", updated.ID.String(),
			"number", updated.Number,
			"total", updated.Total.String(),
		)
		e.plugins.EmitInvoicePaid(ctx, updated)
	}
	e.plugins.EmitInvoiceStatusChanged(ctx, updated, from)
	return updated, nil
}

// storeTransition writes t and, on entering paid, counts the total into the
// client's revenue. changed is false when a concurrent caller already made
// the same change.
func (e *Engine) storeTransition(ctx context.Context, invID id.InvoiceID, t invoice.Transition) (*invoice.Invoice, bool, error) {
	e.aggMu.RLock()
	defer e.aggMu.RUnlock()

	err := e.store.TransitionInvoiceStatus(ctx, invID, t)
	if errors.Is(err, ErrStatusChanged) {
		cur, getErr := e.store.GetInvoice(ctx, invID)
		if getErr == nil && cur.Status == t.To {
			return cur, false, nil
		}
		return nil, false, err
	}
	if err != nil {
		return nil, false, err
	}

	// Paid invoices are frozen, so the stored total is the one to count.
	updated, err := e.store.GetInvoice(ctx, invID)
	if err != nil {
		return nil, false, err
	}
	if t.To == invoice.StatusPaid {
		e.applyDeltas(ctx, aggregate.ClientRevenue(updated.ClientID, updated.Total.Amount, "invoice_paid"))
	}
	return updated, true, nil
}

// DeleteInvoice removes an invoice and unlinks its time entries. Deleting
// a paid invoice takes its total back out of the client's revenue.
func (e *Engine) DeleteInvoice(ctx context.Context, invID id.InvoiceID) error {
	userID, err := requireUser(ctx)
	if err != nil {
		return err
	}

	inv, err := e.ownedInvoice(ctx, userID, invID)
	if err != nil {
		return err
	}

	e.aggMu.RLock()
	if err := e.store.DeleteInvoice(ctx, invID, inv.Status); err != nil {
		e.aggMu.RUnlock()
		return err
	}
	if inv.Status == invoice.StatusPaid {
		e.applyDeltas(ctx, aggregate.ClientRevenue(inv.ClientID, -inv.Total.Amount, "paid_invoice_deleted"))
	}
	e.aggMu.RUnlock()

	if err := e.store.UnlinkTimeEntries(ctx, invID); err != nil {
		e.logger.Warn("time entries still linked to deleted invoice",
			"invoice_id", invID.String(),
			"error", err,
		)
	}

	e.plugins.EmitInvoiceDeleted(ctx, inv)
	return nil
}

// SweepOverdue marks every sent invoice whose due date has passed as
// overdue and returns how many it moved.
func (e *Engine) SweepOverdue(ctx context.Context) (int, error) {
	due, err := e.store.ListInvoices(ctx, invoice.ListOpts{
		Statuses:  []invoice.Status{invoice.StatusSent},
		DueBefore: e.clock(),
	})
	if err != nil {
		return 0, err
	}

	moved := 0
	for _, inv := range due {
		if _, err := e.transition(ctx, inv, invoice.StatusOverdue, ""); err != nil {
			if !errors.Is(err, ErrStatusChanged) && !errors.Is(err, ErrInvalidTransition) {
				e.logger.Warn("overdue sweep", "invoice_id", inv.ID.String(), "error", err)
			}
			continue
		}
		moved++
	}

	if moved > 0 {
		e.logger.Info("invoices marked overdue", "count", moved)
	}
	return moved, nil
}

// RenderInvoice writes an invoice through the formatter plugin registered
// for format.
func (e *Engine) RenderInvoice(ctx context.Context, invID id.InvoiceID, format string, w io.Writer) error {
	userID, err := requireUser(ctx)
	if err != nil {
		return err
	}

	f := e.plugins.InvoiceFormatter(format)
	if f == nil {
		return ValidationError{Field: "format", Message: fmt.Sprintf("no formatter for %q", format)}
	}

	inv, err := e.ownedInvoice(ctx, userID, invID)
	if err != nil {
		return err
	}
	c, err := e.store.GetClient(ctx, inv.ClientID)
	if err != nil {
		return err
	}
	return f.Render(ctx, inv, c, w)
}

// InvoiceEntries lists the time entries billed by an invoice.
func (e *Engine) InvoiceEntries(ctx context.Context, invID id.InvoiceID) ([]*timeentry.TimeEntry, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := e.ownedInvoice(ctx, userID, invID); err != nil {
		return nil, err
	}
	return e.store.ListTimeEntries(ctx, timeentry.ListOpts{UserID: userID, InvoiceID: invID})
}

func (e *Engine) ownedInvoice(ctx context.Context, userID string, invID id.InvoiceID) (*invoice.Invoice, error) {
	inv, err := e.store.GetInvoice(ctx, invID)
	if err != nil {
		return nil, err
	}
	if inv.UserID != userID {
		return nil, ErrInvoiceNotFound
	}
	return inv, nil
}
