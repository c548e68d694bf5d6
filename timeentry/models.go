// Package timeentry defines tracked work intervals and the timer derivations.
package timeentry

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/tally/id"
	"github.com/xraph/tally/types"
)

// TimeEntry is a tracked interval on a project. An entry without EndTime is
// a running timer.
type TimeEntry struct {
	types.Entity
	ID          id.TimeEntryID `json:"id"`
	UserID      string         `json:"user_id"`
	ProjectID   id.ProjectID   `json:"project_id"`
	ClientID    id.ClientID    `json:"client_id"`
	Description string         `json:"description"`
	StartTime   time.Time      `json:"start_time"`
	EndTime     *time.Time     `json:"end_time,omitempty"`
	// HourlyRate is the project rate captured when the entry was created.
	HourlyRate types.Money `json:"hourly_rate"`
	Billable   bool        `json:"billable"`
	Tags       []string    `json:"tags,omitempty"`

	// Duration is whole minutes and Amount is Duration × HourlyRate / 60.
	// Both stay zero while the entry is running.
	Duration int64       `json:"duration"`
	Amount   types.Money `json:"amount"`

	Invoiced  bool         `json:"invoiced"`
	InvoiceID id.InvoiceID `json:"invoice_id,omitempty"`
}

// Running reports whether the timer is still open.
func (e *TimeEntry) Running() bool {
	return e.EndTime == nil
}

// Contribution is what a completed entry adds to its project totals.
func (e *TimeEntry) Contribution() (minutes, earned int64) {
	if e.Running() {
		return 0, 0
	}
	return e.Duration, e.Amount.Amount
}

// Derive recomputes Duration and Amount from the interval and rate.
func (e *TimeEntry) Derive() {
	if e.Running() {
		e.Duration = 0
		e.Amount = types.Zero(e.HourlyRate.Currency)
		return
	}
	e.Duration = DurationMinutes(e.StartTime, *e.EndTime)
	e.Amount = AmountFor(e.Duration, e.HourlyRate)
}

// Elapsed is the time since StartTime for a running entry, or the recorded
// interval for a completed one.
func (e *TimeEntry) Elapsed(now time.Time) time.Duration {
	if e.EndTime != nil {
		return e.EndTime.Sub(e.StartTime)
	}
	return now.Sub(e.StartTime)
}

// DurationMinutes rounds end-start to the nearest whole minute, halves away
// from zero.
func DurationMinutes(start, end time.Time) int64 {
	return int64(math.Round(end.Sub(start).Minutes()))
}

// AmountFor returns minutes × rate / 60 rounded half-even to minor units.
func AmountFor(minutes int64, rate types.Money) types.Money {
	minor := decimal.NewFromInt(minutes).Mul(rate.Minor()).Div(decimal.NewFromInt(60))
	return types.MoneyFromMinor(minor, rate.Currency)
}
