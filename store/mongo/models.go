package mongo

import (
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

	ID           string       `grove:"id,pk"         bson:"_id"`
	UserID       string       `grove:"user_id"       bson:"user_id"`
	Name         string       `grove:"name"          bson:"name"`
	Email        string       `grove:"email"         bson:"email"`
	Phone        string       `grove:"phone"         bson:"phone"`
	Company      string       `grove:"company"       bson:"company"`
	Address      addressModel `grove:"address"       bson:"address"`
	Notes        string       `grove:"notes"         bson:"notes"`
	Status       string       `grove:"status"        bson:"status"`
	Currency     string       `grove:"currency"      bson:"currency"`
	TotalRevenue int64        `grove:"total_revenue" bson:"total_revenue"`
	ProjectCount int64        `grove:"project_count" bson:"project_count"`
	CreatedAt    time.Time    `grove:"created_at"    bson:"created_at"`
	UpdatedAt    time.Time    `grove:"updated_at"    bson:"updated_at"`
}

type addressModel struct {
	Street  string `bson:"street,omitempty"`
	City    string `bson:"city,omitempty"`
	State   string `bson:"state,omitempty"`
	ZipCode string `bson:"zip_code,omitempty"`
	Country string `bson:"country,omitempty"`
}

func toClientModel(c *client.Client) *clientModel {
	return &clientModel{
		ID:           c.ID.String(),
		UserID:       c.UserID,
		Name:         c.Name,
		Email:        c.Email,
		Phone:        c.Phone,
		Company:      c.Company,
		Address:      addressModel(c.Address),
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

	return &client.Client{
		Entity:       types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:           clientID,
		UserID:       m.UserID,
		Name:         m.Name,
		Email:        m.Email,
		Phone:        m.Phone,
		Company:      m.Company,
		Address:      client.Address(m.Address),
		Notes:        m.Notes,
		Status:       client.Status(m.Status),
		TotalRevenue: types.NewMoney(m.TotalRevenue, m.Currency),
		ProjectCount: m.ProjectCount,
	}, nil
}

// ==================== Project models ====================

type projectModel struct {
	grove.BaseModel `grove:"table:tally_projects"`

	ID           string     `grove:"id,pk"         bson:"_id"`
	UserID       string     `grove:"user_id"       bson:"user_id"`
	ClientID     string     `grove:"client_id"     bson:"client_id"`
	Name         string     `grove:"name"          bson:"name"`
	Description  string     `grove:"description"   bson:"description"`
	Status       string     `grove:"status"        bson:"status"`
	Priority     string     `grove:"priority"      bson:"priority"`
	BillingType  string     `grove:"billing_type"  bson:"billing_type"`
	Currency     string     `grove:"currency"      bson:"currency"`
	HourlyRate   int64      `grove:"hourly_rate"   bson:"hourly_rate"`
	Budget       int64      `grove:"budget"        bson:"budget"`
	StartDate    *time.Time `grove:"start_date"    bson:"start_date,omitempty"`
	EndDate      *time.Time `grove:"end_date"      bson:"end_date,omitempty"`
	Tags         []string   `grove:"tags"          bson:"tags,omitempty"`
	TotalMinutes int64      `grove:"total_minutes" bson:"total_minutes"`
	TotalEarned  int64      `grove:"total_earned"  bson:"total_earned"`
	CreatedAt    time.Time  `grove:"created_at"    bson:"created_at"`
	UpdatedAt    time.Time  `grove:"updated_at"    bson:"updated_at"`
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
		Tags:         p.Tags,
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

// timeEntryModel stores Running alongside EndTime so a partial unique
// index can hold one running timer per user.
type timeEntryModel struct {
	grove.BaseModel `grove:"table:tally_time_entries"`

	ID          string     `grove:"id,pk"       bson:"_id"`
	UserID      string     `grove:"user_id"     bson:"user_id"`
	ProjectID   string     `grove:"project_id"  bson:"project_id"`
	ClientID    string     `grove:"client_id"   bson:"client_id"`
	Description string     `grove:"description" bson:"description"`
	StartTime   time.Time  `grove:"start_time"  bson:"start_time"`
	EndTime     *time.Time `grove:"end_time"    bson:"end_time"`
	Running     bool       `grove:"running"     bson:"running"`
	Currency    string     `grove:"currency"    bson:"currency"`
	HourlyRate  int64      `grove:"hourly_rate" bson:"hourly_rate"`
	Billable    bool       `grove:"billable"    bson:"billable"`
	Tags        []string   `grove:"tags"        bson:"tags,omitempty"`
	Duration    int64      `grove:"duration"    bson:"duration"`
	Amount      int64      `grove:"amount"      bson:"amount"`
	Invoiced    bool       `grove:"invoiced"    bson:"invoiced"`
	InvoiceID   string     `grove:"invoice_id"  bson:"invoice_id"`
	CreatedAt   time.Time  `grove:"created_at"  bson:"created_at"`
	UpdatedAt   time.Time  `grove:"updated_at"  bson:"updated_at"`
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
		Running:     e.Running(),
		Currency:    e.HourlyRate.Currency,
		HourlyRate:  e.HourlyRate.Amount,
		Billable:    e.Billable,
		Tags:        e.Tags,
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

	ID            string          `grove:"id,pk"          bson:"_id"`
	UserID        string          `grove:"user_id"        bson:"user_id"`
	ClientID      string          `grove:"client_id"      bson:"client_id"`
	ProjectID     string          `grove:"project_id"     bson:"project_id"`
	Number        string          `grove:"number"         bson:"number"`
	Status        string          `grove:"status"         bson:"status"`
	Currency      string          `grove:"currency"       bson:"currency"`
	LineItems     []lineItemModel `grove:"line_items"     bson:"line_items"`
	TaxPercent    string          `grove:"tax_percent"    bson:"tax_percent"`
	Discount      int64           `grove:"discount"       bson:"discount"`
	Subtotal      int64           `grove:"subtotal"       bson:"subtotal"`
	TaxAmount     int64           `grove:"tax_amount"     bson:"tax_amount"`
	Total         int64           `grove:"total"          bson:"total"`
	IssueDate     time.Time       `grove:"issue_date"     bson:"issue_date"`
	DueDate       *time.Time      `grove:"due_date"       bson:"due_date,omitempty"`
	PaidAt        *time.Time      `grove:"paid_at"        bson:"paid_at,omitempty"`
	PaymentMethod string          `grove:"payment_method" bson:"payment_method"`
	Notes         string          `grove:"notes"          bson:"notes"`
	TimeEntryIDs  []string        `grove:"time_entry_ids" bson:"time_entry_ids,omitempty"`
	CreatedAt     time.Time       `grove:"created_at"     bson:"created_at"`
	UpdatedAt     time.Time       `grove:"updated_at"     bson:"updated_at"`
}

// lineItemModel keeps quantities as decimal strings; amounts share the
// invoice currency.
type lineItemModel struct {
	ID          string `bson:"id"`
	Description string `bson:"description"`
	Quantity    string `bson:"quantity"`
	Rate        int64  `bson:"rate"`
	Amount      int64  `bson:"amount"`
}

func toInvoiceModel(inv *invoice.Invoice) *invoiceModel {
	items := make([]lineItemModel, len(inv.LineItems))
	for i, li := range inv.LineItems {
		items[i] = lineItemModel{
			ID:          li.ID.String(),
			Description: li.Description,
			Quantity:    li.Quantity.String(),
			Rate:        li.Rate.Amount,
			Amount:      li.Amount.Amount,
		}
	}

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
		LineItems:     items,
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

	items := make([]invoice.LineItem, len(m.LineItems))
	for i, li := range m.LineItems {
		itemID, err := id.ParseLineItemID(li.ID)
		if err != nil {
			return nil, err
		}
		qty, err := decimal.NewFromString(li.Quantity)
		if err != nil {
			return nil, err
		}
		items[i] = invoice.LineItem{
			ID:          itemID,
			Description: li.Description,
			Quantity:    qty,
			Rate:        types.NewMoney(li.Rate, m.Currency),
			Amount:      types.NewMoney(li.Amount, m.Currency),
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

	ID            string    `grove:"id,pk"          bson:"_id"`
	UserID        string    `grove:"user_id"        bson:"user_id"`
	InvoiceID     string    `grove:"invoice_id"     bson:"invoice_id"`
	ClientID      string    `grove:"client_id"      bson:"client_id"`
	Amount        int64     `grove:"amount"         bson:"amount"`
	Currency      string    `grove:"currency"       bson:"currency"`
	Method        string    `grove:"method"         bson:"method"`
	Status        string    `grove:"status"         bson:"status"`
	TransactionID string    `grove:"transaction_id" bson:"transaction_id"`
	GatewayRef    string    `grove:"gateway_ref"    bson:"gateway_ref"`
	PaymentDate   time.Time `grove:"payment_date"   bson:"payment_date"`
	Notes         string    `grove:"notes"          bson:"notes"`
	CreatedAt     time.Time `grove:"created_at"     bson:"created_at"`
	UpdatedAt     time.Time `grove:"updated_at"     bson:"updated_at"`
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

	ID          string     `grove:"id,pk"        bson:"_id"`
	Delta       deltaModel `grove:"delta"        bson:"delta"`
	Error       string     `grove:"error"        bson:"error"`
	Attempts    int        `grove:"attempts"     bson:"attempts"`
	CreatedAt   time.Time  `grove:"created_at"   bson:"created_at"`
	LastAttempt time.Time  `grove:"last_attempt" bson:"last_attempt"`
}

type deltaModel struct {
	Kind     aggregate.Kind `bson:"kind"`
	TargetID string         `bson:"target_id"`
	Amount   int64          `bson:"amount,omitempty"`
	Minutes  int64          `bson:"minutes,omitempty"`
	Count    int64          `bson:"count,omitempty"`
	Cause    string         `bson:"cause,omitempty"`
}

func toSyncFailureModel(f *aggregate.SyncFailure) *syncFailureModel {
	return &syncFailureModel{
		ID:          f.ID.String(),
		Delta:       deltaModel(f.Delta),
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
		ID:          failureID,
		Delta:       aggregate.Delta(m.Delta),
		Error:       m.Error,
		Attempts:    m.Attempts,
		CreatedAt:   m.CreatedAt,
		LastAttempt: m.LastAttempt,
	}, nil
}

// ==================== Sequence models ====================

type sequenceModel struct {
	Name  string `bson:"_id"`
	Value int64  `bson:"value"`
}
