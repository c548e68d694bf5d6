// Package report holds the read models of the dashboard and its charts.
package report

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/tally/id"
	"github.com/xraph/tally/invoice"
	"github.com/xraph/tally/project"
	"github.com/xraph/tally/types"
)

// MonthlyRevenue is the paid total of one calendar month.
type MonthlyRevenue struct {
	Month   time.Time   `json:"month"`
	Label   string      `json:"label"`
	Revenue types.Money `json:"revenue"`
}

// StatusCount is the number of projects in one status.
type StatusCount struct {
	Status project.Status `json:"status"`
	Count  int64          `json:"count"`
}

// ClientRevenue ranks a client by lifetime revenue.
type ClientRevenue struct {
	ClientID     id.ClientID `json:"client_id"`
	Name         string      `json:"name"`
	Company      string      `json:"company,omitempty"`
	Revenue      types.Money `json:"revenue"`
	ProjectCount int64       `json:"project_count"`
}

// Dashboard is the headline view of a user's ledger.
type Dashboard struct {
	GeneratedAt       time.Time          `json:"generated_at"`
	TotalClients      int64              `json:"total_clients"`
	TotalProjects     int64              `json:"total_projects"`
	ActiveProjects    int64              `json:"active_projects"`
	TotalRevenue      types.Money        `json:"total_revenue"`
	PendingRevenue    types.Money        `json:"pending_revenue"`
	MonthlyRevenue    types.Money        `json:"monthly_revenue"`
	TotalHoursTracked decimal.Decimal    `json:"total_hours_tracked"`
	RecentInvoices    []*invoice.Invoice `json:"recent_invoices"`
	RecentProjects    []*project.Project `json:"recent_projects"`
}

// Bundle is everything the exporters render.
type Bundle struct {
	Dashboard    *Dashboard       `json:"dashboard"`
	Revenue      []MonthlyRevenue `json:"revenue"`
	Distribution []StatusCount    `json:"distribution"`
	TopClients   []ClientRevenue  `json:"top_clients"`
}
