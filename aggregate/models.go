// Package aggregate describes changes to derived totals and the queue of
// changes that could not be applied.
package aggregate

import (
	"fmt"
	"time"

	"github.com/xraph/tally/id"
)

type Kind string

const (
	// KindClientRevenue adjusts a client's lifetime revenue by Amount.
	KindClientRevenue Kind = "client_revenue"
	// KindClientProjects adjusts a client's project count by Count.
	KindClientProjects Kind = "client_projects"
	// KindProjectTotals adjusts a project's tracked minutes and earnings.
	KindProjectTotals Kind = "project_totals"
)

// Delta is one increment against a derived field.
type Delta struct {
	Kind     Kind   `json:"kind"`
	TargetID string `json:"target_id"`
	Amount   int64  `json:"amount,omitempty"`
	Minutes  int64  `json:"minutes,omitempty"`
	Count    int64  `json:"count,omitempty"`
	// Cause names the event that produced the delta.
	Cause string `json:"cause"`
}

// Zero reports whether applying d would change nothing.
func (d Delta) Zero() bool {
	return d.Amount == 0 && d.Minutes == 0 && d.Count == 0
}

// Negate returns the compensating delta.
func (d Delta) Negate() Delta {
	d.Amount, d.Minutes, d.Count = -d.Amount, -d.Minutes, -d.Count
	return d
}

func (d Delta) String() string {
	switch d.Kind {
	case KindClientRevenue:
		return fmt.Sprintf("%s %s revenue%+d", d.Cause, d.TargetID, d.Amount)
	case KindClientProjects:
		return fmt.Sprintf("%s %s projects%+d", d.Cause, d.TargetID, d.Count)
	default:
		return fmt.Sprintf("%s %s minutes%+d earned%+d", d.Cause, d.TargetID, d.Minutes, d.Amount)
	}
}

func ClientRevenue(clientID id.ClientID, amount int64, cause string) Delta {
	return Delta{Kind: KindClientRevenue, TargetID: clientID.String(), Amount: amount, Cause: cause}
}

func ClientProjects(clientID id.ClientID, count int64, cause string) Delta {
	return Delta{Kind: KindClientProjects, TargetID: clientID.String(), Count: count, Cause: cause}
}

func ProjectTotals(projectID id.ProjectID, minutes, earned int64, cause string) Delta {
	return Delta{Kind: KindProjectTotals, TargetID: projectID.String(), Minutes: minutes, Amount: earned, Cause: cause}
}

// SyncFailure is a delta whose application failed and awaits retry or
// reconciliation.
type SyncFailure struct {
	ID          id.SyncFailureID `json:"id"`
	Delta       Delta            `json:"delta"`
	Error       string           `json:"error"`
	Attempts    int              `json:"attempts"`
	CreatedAt   time.Time        `json:"created_at"`
	LastAttempt time.Time        `json:"last_attempt"`
}
