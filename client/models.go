// Package client defines the billed party of a freelancer ledger.
package client

import (
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/types"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusArchived Status = "archived"
)

// Valid reports whether s is a known client status.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusArchived:
		return true
	}
	return false
}

type Address struct {
	Street  string `json:"street,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	ZipCode string `json:"zip_code,omitempty"`
	Country string `json:"country,omitempty"`
}

// Client is a customer account owned by one user.
//
// TotalRevenue and ProjectCount are aggregates maintained by the engine from
// invoices and projects. Client edits never write them.
type Client struct {
	types.Entity
	ID      id.ClientID `json:"id"`
	UserID  string      `json:"user_id"`
	Name    string      `json:"name"`
	Email   string      `json:"email"`
	Phone   string      `json:"phone,omitempty"`
	Company string      `json:"company,omitempty"`
	Address Address     `json:"address"`
	Notes   string      `json:"notes,omitempty"`
	Status  Status      `json:"status"`

	TotalRevenue types.Money `json:"total_revenue"`
	ProjectCount int64       `json:"project_count"`
}
