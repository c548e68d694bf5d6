package invoice_test

import (
	"testing"
	"time"

	"github.com/xraph/tally/invoice"
)

func TestCanTransition(t *testing.T) {
	allowed := map[invoice.Status][]invoice.Status{
		invoice.StatusDraft:   {invoice.StatusSent, invoice.StatusPaid, invoice.StatusCancelled},
		invoice.StatusSent:    {invoice.StatusPaid, invoice.StatusOverdue, invoice.StatusCancelled},
		invoice.StatusOverdue: {invoice.StatusPaid, invoice.StatusCancelled},
	}

	for _, from := range invoice.Statuses {
		for _, to := range invoice.Statuses {
			want := false
			for _, s := range allowed[from] {
				if s == to {
					want = true
				}
			}
			if got := invoice.CanTransition(from, to); got != want {
				t.Errorf("%s -> %s: got %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestTerminal(t *testing.T) {
	for _, s := range invoice.Statuses {
		want := s == invoice.StatusPaid || s == invoice.StatusCancelled
		if s.Terminal() != want {
			t.Errorf("%s: Terminal() = %v", s, s.Terminal())
		}
		if (&invoice.Invoice{Status: s}).Editable() == want {
			t.Errorf("%s: Editable() should be %v", s, !want)
		}
	}
}

func TestPastDue(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	yesterday := now.AddDate(0, 0, -1)
	tomorrow := now.AddDate(0, 0, 1)

	if (&invoice.Invoice{}).PastDue(now) {
		t.Error("invoice without due date is never past due")
	}
	if !(&invoice.Invoice{DueDate: &yesterday}).PastDue(now) {
		t.Error("expected past due")
	}
	if (&invoice.Invoice{DueDate: &tomorrow}).PastDue(now) {
		t.Error("expected not past due")
	}
}
