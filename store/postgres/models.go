package postgres

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xraph/grove"

	"github.com/xraph/tally/aggregate"
	"github.com/xraph/tally/client"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/invoice"
	"github.com/xraph/tally/payment"
	"github.com/xraph/tally/project"
	"github.com/xraph/tally/timeentry"
	"github.com/xraph/tally/types"
)

// ==================== Client models ====================

type clientModel struct {
	grove.BaseModel `grove:"table:tally_clients"`

	ID           string          `grove:"id,pk"`
	UserID       string          `grove:"user_id"`
	Name         string          `grove:"name"`
	Email        string          `grove:"email"`
	Phone        string          `grove:"phone"`
	Company      string          `grove:"company"`
	Address      json.RawMessage `grove:"address,type:jsonb"`
	Notes        string          `grove:"notes"`
	Status       string          `grove:"status"`
	Currency     string          `grove:"currency"`
	TotalRevenue int64           `grove:"total_revenue"`
	ProjectCount int64           `grove:"project_count"`
	CreatedAt    time.Time       `grove:"created_at"`
	UpdatedAt    time.Time       `grove:"updated_at"`
}

func toClientModel(c *client.Client) *clientModel {
	address, _ := json.Marshal(c.Address) //nolint:errcheck // plain struct

	return &clientModel{
		ID:           c.ID.String(),
		UserID:       c.UserID,
		Name:         c.Name,
		Email:        c.Email,
		Phone:        c.Phone,
		Company:      c.Company,
		Address:      address,
		Notes:        c.Notes,
		Status:       string(c.Status),
		Currency:     c.TotalRevenue.Currency,
		TotalRevenue: c.TotalRevenue.Amount,
		ProjectCount: c.ProjectCount,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

func fromClientModel(m *clientModel) (*client.Client, error) {
	clientID, err := id.ParseClientID(m.ID)
	if err != nil {
		return nil, err
	}

	var address client.Address
	if len(m.Address) > 0 {
		if err := json.Unmarshal(m.Address, &address); err != nil {
			return nil, err
		}
	}

	return &client.Client{
		Entity:       types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:           clientID,
		UserID:       m.UserID,
		Name:         m.Name,
		Email:        m.Email,
		Phone:        m.Phone,
		Company:      m.Company,
		Address:      address,
		Notes:        m.Notes,
		Status:       client.Status(m.Status),
		TotalRevenue: types.NewMoney(m.TotalRevenue, m.Currency),
		ProjectCount: m.ProjectCount,
	}, nil
}

// ==================== Project models ====================

type projectModel struct {
	grove.BaseModel `grove:"table:tally_projects"`

	ID           string     `grove:"id,pk"`
	UserID       string     `grove:"user_id"`
	ClientID     string     `grove:"client_id"`
	Name         string     `grove:"name"`
	Description  string     `grove:"description"`
	Status       string     `grove:"status"`
	Priority     string     `grove:"priority"`
	BillingType  string     `grove:"billing_type"`
	Currency     string     `grove:"currency"`
	HourlyRate   int64      `grove:"hourly_rate"`
	Budget       int64      `grove:"budget"`
	StartDate    *time.Time `grove:"start_date"`
	EndDate      *time.Time `grove:"end_date"`
	Tags         []string   `grove:"tags,type:jsonb"`
	TotalMinutes int64      `grove:"total_minutes"`
	TotalEarned  int64      `grove:"total_earned"`
	CreatedAt    time.Time  `grove:"created_at"`
	UpdatedAt    time.Time  `grove:"updated_at"`
}

func toProjectModel(p *project.Project) *projectModel {
	return &projectModel{
		ID:           p.ID.String(),
		UserID:       p.UserID,
		ClientID:     p.ClientID.String(),
		Name:         p.Name,
		Description:  p.Description,
		Status:       string(p.Status),
		Priority:     string(p.Priority),
		BillingType:  string(p.BillingType),
		Currency:     p.HourlyRate.Currency,
		HourlyRate:   p.HourlyRate.Amount,
		Budget:       p.Budget.Amount,
		StartDate:    p.StartDate,
		EndDate:      p.EndDate,
		Tags:         nonNil(p.Tags),
		TotalMinutes: p.TotalMinutes,
		TotalEarned:  p.TotalEarned.Amount,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

func fromProjectModel(m *projectModel) (*project.Project, error) {
	projectID, err := id.ParseProjectID(m.ID)
	if err != nil {
		return nil, err
	}
	clientID, err := id.ParseClientID(m.ClientID)
	if err != nil {
		return nil, err
	}

	return &project.Project{
		Entity:       types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:           projectID,
		UserID:       m.UserID,
		ClientID:     clientID,
		Name:         m.Name,
		Description:  m.Description,
		Status:       project.Status(m.Status),
		Priority:     project.Priority(m.Priority),
		BillingType:  project.BillingType(m.BillingType),
		HourlyRate:   types.NewMoney(m.HourlyRate, m.Currency),
		Budget:       types.NewMoney(m.Budget, m.Currency),
		StartDate:    m.StartDate,
		EndDate:      m.EndDate,
		Tags:         m.Tags,
		TotalMinutes: m.TotalMinutes,
		TotalEarned:  types.NewMoney(m.TotalEarned, m.Currency),
	}, nil
}

// ==================== Time entry models ====================

type timeEntryModel struct {
	grove.BaseModel `grove:"table:tally_time_entries"`

	ID          string     `grove:"id,pk"`
	UserID      string     `grove:"user_id"`
	ProjectID   string     `grove:"project_id"`
	ClientID    string     `grove:"client_id"`
	Description string     `grove:"description"`
	StartTime   time.Time  `grove:"start_time"`
	EndTime     *time.Time `grove:"end_time"`
	Currency    string     `grove:"currency"`
	HourlyRate  int64      `grove:"hourly_rate"`
	Billable    bool       `grove:"billable"`
	Tags        []string   `grove:"tags,type:jsonb"`
	Duration    int64      `grove:"duration"`
	Amount      int64      `grove:"amount"`
	Invoiced    bool       `grove:"invoiced"`
	InvoiceID   string     `grove:"invoice_id"`
	CreatedAt   time.Time  `grove:"created_at"`
	UpdatedAt   time.Time  `grove:"updated_at"`
}

func toTimeEntryModel(e *timeentry.TimeEntry) *timeEntryModel {
	return &timeEntryModel{
		ID:          e.ID.String(),
		UserID:      e.UserID,
		ProjectID:   e.ProjectID.String(),
		ClientID:    e.ClientID.String(),
		Description: e.Description,
		StartTime:   e.StartTime,
		EndTime:     e.EndTime,
		Currency:    e.HourlyRate.Currency,
		HourlyRate:  e.HourlyRate.Amount,
		Billable:    e.Billable,
		Tags:        nonNil(e.Tags),
		Duration:    e.Duration,
		Amount:      e.Amount.Amount,
		Invoiced:    e.Invoiced,
		InvoiceID:   e.InvoiceID.String(),
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

func fromTimeEntryModel(m *timeEntryModel) (*timeentry.TimeEntry, error) {
	entryID, err := id.ParseTimeEntryID(m.ID)
	if err != nil {
		return nil, err
	}
	projectID, err := id.ParseProjectID(m.ProjectID)
	if err != nil {
		return nil, err
	}
	clientID, err := id.ParseClientID(m.ClientID)
	if err != nil {
		return nil, err
	}
	invoiceID, err := id.ParseOptional(m.InvoiceID, id.PrefixInvoice)
	if err != nil {
		return nil, err
	}

	return &timeentry.TimeEntry{
		Entity:      types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:          entryID,
		UserID:      m.UserID,
		ProjectID:   projectID,
		ClientID:    clientID,
		Description: m.Description,
		StartTime:   m.StartTime,
		EndTime:     m.EndTime,
		HourlyRate:  types.NewMoney(m.HourlyRate, m.Currency),
		Billable:    m.Billable,
		Tags:        m.Tags,
		Duration:    m.Duration,
		Amount:      types.NewMoney(m.Amount, m.Currency),
		Invoiced:    m.Invoiced,
		InvoiceID:   invoiceID,
	}, nil
}

// ==================== Invoice models ====================

type invoiceModel struct {
	grove.BaseModel `grove:"table:tally_invoices"`

	ID            string          `grove:"id,pk"`
	UserID        string          `grove:"user_id"`
	ClientID      string          `grove:"client_id"`
	ProjectID     string          `grove:"project_id"`
	Number        string          `grove:"number"`
	Status        string          `grove:"status"`
	Currency      string          `grove:"currency"`
	LineItems     json.RawMessage `grove:"line_items,type:jsonb"`
	TaxPercent    string          `grove:"tax_percent"`
	Discount      int64           `grove:"discount"`
	Subtotal      int64           `grove:"subtotal"`
	TaxAmount     int64           `grove:"tax_amount"`
	Total         int64           `grove:"total"`
	IssueDate     time.Time       `grove:"issue_date"`
	DueDate       *time.Time      `grove:"due_date"`
	PaidAt        *time.Time      `grove:"paid_at"`
	PaymentMethod string          `grove:"payment_method"`
	Notes         string          `grove:"notes"`
	TimeEntryIDs  []string        `grove:"time_entry_ids,type:jsonb"`
	CreatedAt     time.Time       `grove:"created_at"`
	UpdatedAt     time.Time       `grove:"updated_at"`
}

func toInvoiceModel(inv *invoice.Invoice) *invoiceModel {
	lineItems, _ := json.Marshal(inv.LineItems) //nolint:errcheck // plain structs

	entryIDs := make([]string, len(inv.TimeEntryIDs))
	for i, eid := range inv.TimeEntryIDs {
		entryIDs[i] = eid.String()
	}

	return &invoiceModel{
		ID:            inv.ID.String(),
		UserID:        inv.UserID,
		ClientID:      inv.ClientID.String(),
		ProjectID:     inv.ProjectID.String(),
		Number:        inv.Number,
		Status:        string(inv.Status),
		Currency:      inv.Currency,
		LineItems:     lineItems,
		TaxPercent:    inv.TaxPercent.String(),
		Discount:      inv.Discount.Amount,
		Subtotal:      inv.Subtotal.Amount,
		TaxAmount:     inv.TaxAmount.Amount,
		Total:         inv.Total.Amount,
		IssueDate:     inv.IssueDate,
		DueDate:       inv.DueDate,
		PaidAt:        inv.PaidAt,
		PaymentMethod: inv.PaymentMethod,
		Notes:         inv.Notes,
		TimeEntryIDs:  entryIDs,
		CreatedAt:     inv.CreatedAt,
		UpdatedAt:     inv.UpdatedAt,
	}
}

func fromInvoiceModel(m *invoiceModel) (*invoice.Invoice, error) {
	invID, err := id.ParseInvoiceID(m.ID)
	if err != nil {
		return nil, err
	}
	clientID, err := id.ParseClientID(m.ClientID)
	if err != nil {
		return nil, err
	}
	projectID, err := id.ParseOptional(m.ProjectID, id.PrefixProject)
	if err != nil {
		return nil, err
	}
	tax, err := decimal.NewFromString(m.TaxPercent)
	if err != nil {
		return nil, err
	}

	var items []invoice.LineItem
	if len(m.LineItems) > 0 {
		if err := json.Unmarshal(m.LineItems, &items); err != nil {
			return nil, err
		}
	}

	entryIDs := make([]id.TimeEntryID, 0, len(m.TimeEntryIDs))
	for _, s := range m.TimeEntryIDs {
		eid, err := id.ParseTimeEntryID(s)
		if err != nil {
			return nil, err
		}
		entryIDs = append(entryIDs, eid)
	}

	return &invoice.Invoice{
		Entity:        types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:            invID,
		UserID:        m.UserID,
		ClientID:      clientID,
		ProjectID:     projectID,
		Number:        m.Number,
		Status:        invoice.Status(m.Status),
		Currency:      m.Currency,
		LineItems:     items,
		TaxPercent:    tax,
		Discount:      types.NewMoney(m.Discount, m.Currency),
		Subtotal:      types.NewMoney(m.Subtotal, m.Currency),
		TaxAmount:     types.NewMoney(m.TaxAmount, m.Currency),
		Total:         types.NewMoney(m.Total, m.Currency),
		IssueDate:     m.IssueDate,
		DueDate:       m.DueDate,
		PaidAt:        m.PaidAt,
		PaymentMethod: m.PaymentMethod,
		Notes:         m.Notes,
		TimeEntryIDs:  entryIDs,
	}, nil
}

// ==================== Payment models ====================

type paymentModel struct {
	grove.BaseModel `grove:"table:tally_payments"`

	ID            string    `grove:"id,pk"`
	UserID        string    `grove:"user_id"`
	InvoiceID     string    `grove:"invoice_id"`
	ClientID      string    `grove:"client_id"`
	Amount        int64     `grove:"amount"`
	Currency      string    `grove:"currency"`
	Method        string    `grove:"method"`
	Status        string    `grove:"status"`
	TransactionID string    `grove:"transaction_id"`
	GatewayRef    string    `grove:"gateway_ref"`
	PaymentDate   time.Time `grove:"payment_date"`
	Notes         string    `grove:"notes"`
	CreatedAt     time.Time `grove:"created_at"`
	UpdatedAt     time.Time `grove:"updated_at"`
}

func toPaymentModel(p *payment.Payment) *paymentModel {
	return &paymentModel{
		ID:            p.ID.String(),
		UserID:        p.UserID,
		InvoiceID:     p.InvoiceID.String(),
		ClientID:      p.ClientID.String(),
		Amount:        p.Amount.Amount,
		Currency:      p.Amount.Currency,
		Method:        string(p.Method),
		Status:        string(p.Status),
		TransactionID: p.TransactionID,
		GatewayRef:    p.GatewayRef,
		PaymentDate:   p.PaymentDate,
		Notes:         p.Notes,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func fromPaymentModel(m *paymentModel) (*payment.Payment, error) {
	paymentID, err := id.ParsePaymentID(m.ID)
	if err != nil {
		return nil, err
	}
	invID, err := id.ParseInvoiceID(m.InvoiceID)
	if err != nil {
		return nil, err
	}
	clientID, err := id.ParseClientID(m.ClientID)
	if err != nil {
		return nil, err
	}

	return &payment.Payment{
		Entity:        types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:            paymentID,
		UserID:        m.UserID,
		InvoiceID:     invID,
		ClientID:      clientID,
		Amount:        types.NewMoney(m.Amount, m.Currency),
		Method:        payment.Method(m.Method),
		Status:        payment.Status(m.Status),
		TransactionID: m.TransactionID,
		GatewayRef:    m.GatewayRef,
		PaymentDate:   m.PaymentDate,
		Notes:         m.Notes,
	}, nil
}

// ==================== Sync failure models ====================

type syncFailureModel struct {
	grove.BaseModel `grove:"table:tally_sync_failures"`

	ID          string    `grove:"id,pk"`
	Kind        string    `grove:"kind"`
	TargetID    string    `grove:"target_id"`
	Amount      int64     `grove:"amount"`
	Minutes     int64     `grove:"minutes"`
	Count       int64     `grove:"count"`
	Cause       string    `grove:"cause"`
	Error       string    `grove:"error"`
	Attempts    int       `grove:"attempts"`
	CreatedAt   time.Time `grove:"created_at"`
	LastAttempt time.Time `grove:"last_attempt"`
}

func toSyncFailureModel(f *aggregate.SyncFailure) *syncFailureModel {
	return &syncFailureModel{
		ID:          f.ID.String(),
		Kind:        string(f.Delta.Kind),
		TargetID:    f.Delta.TargetID,
		Amount:      f.Delta.Amount,
		Minutes:     f.Delta.Minutes,
		Count:       f.Delta.Count,
		Cause:       f.Delta.Cause,
		Error:       f.Error,
		Attempts:    f.Attempts,
		CreatedAt:   f.CreatedAt,
		LastAttempt: f.LastAttempt,
	}
}

func fromSyncFailureModel(m *syncFailureModel) (*aggregate.SyncFailure, error) {
	failureID, err := id.ParseSyncFailureID(m.ID)
	if err != nil {
		return nil, err
	}

	return &aggregate.SyncFailure{
		ID: failureID,
		Delta: aggregate.Delta{
			Kind:     aggregate.Kind(m.Kind),
			TargetID: m.TargetID,
			Amount:   m.Amount,
			Minutes:  m.Minutes,
			Count:    m.Count,
			Cause:    m.Cause,
		},
		Error:       m.Error,
		Attempts:    m.Attempts,
		CreatedAt:   m.CreatedAt,
		LastAttempt: m.LastAttempt,
	}, nil
}

// ==================== Sequence models ====================

type sequenceModel struct {
	grove.BaseModel `grove:"table:tally_sequences"`

	Name  string `grove:"name,pk"`
	Value int64  `grove:"value"`
}

func nonNil(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
