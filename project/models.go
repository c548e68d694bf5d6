// Package project defines billable work for a client.
package project

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/tally/id"
	"github.com/xraph/tally/types"
)

type Status string

const (
	StatusPlanning   Status = "planning"
	StatusInProgress Status = "in-progress"
	StatusOnHold     Status = "on-hold"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Statuses lists every project status in display order.
var Statuses = []Status{
	StatusPlanning,
	StatusInProgress,
	StatusOnHold,
	StatusCompleted,
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

type BillingType string

const (
	BillingHourly   BillingType = "hourly"
	BillingFixed    BillingType = "fixed"
	BillingRetainer BillingType = "retainer"
)

func (b BillingType) Valid() bool {
	return b == BillingHourly || b == BillingFixed || b == BillingRetainer
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Project is a unit of work billed to exactly one client.
//
// TotalMinutes and TotalEarned sum the completed time entries of the project
// and are written only through store increments.
type Project struct {
	types.Entity
	ID          id.ProjectID `json:"id"`
	UserID      string       `json:"user_id"`
	ClientID    id.ClientID  `json:"client_id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Status      Status       `json:"status"`
	Priority    Priority     `json:"priority"`
	BillingType BillingType  `json:"billing_type"`
	HourlyRate  types.Money  `json:"hourly_rate"`
	Budget      types.Money  `json:"budget"`
	StartDate   *time.Time   `json:"start_date,omitempty"`
	EndDate     *time.Time   `json:"end_date,omitempty"`
	Tags        []string     `json:"tags,omitempty"`

	TotalMinutes int64       `json:"total_minutes"`
	TotalEarned  types.Money `json:"total_earned"`
}

// TotalHours returns tracked time in hours rounded to two places.
func (p *Project) TotalHours() decimal.Decimal {
	return types.Hours(p.TotalMinutes, 2)
}
