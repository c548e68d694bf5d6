package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/tally"
	"github.com/xraph/tally/aggregate"
	"github.com/xraph/tally/client"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/invoice"
	"github.com/xraph/tally/payment"
	"github.com/xraph/tally/project"
	tallystore "github.com/xraph/tally/store"
	"github.com/xraph/tally/timeentry"
)

// compile-time interface check
var _ tallystore.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL via Grove ORM.
//
// Aggregate increments are single UPDATE statements, the running timer and
// invoice numbers are guarded by unique indexes, and every status change is a
// conditional UPDATE on the expected status.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("tally/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("%w: postgres: %w", tally.ErrMigrationFailed, err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Client Store ====================

func (s *Store) CreateClient(ctx context.Context, c *client.Client) error {
	_, err := s.pg.NewInsert(toClientModel(c)).Exec(ctx)
	if _, ok := uniqueViolation(err); ok {
		return tally.ErrAlreadyExists
	}
	return err
}

func (s *Store) GetClient(ctx context.Context, clientID id.ClientID) (*client.Client, error) {
	m := new(clientModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", clientID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, tally.ErrClientNotFound
		}
		return nil, err
	}
	return fromClientModel(m)
}

func clientConds(opts client.ListOpts) *conds {
	c := new(conds)
	if opts.UserID != "" {
		c.add("user_id = $%d", opts.UserID)
	}
	if opts.Status != "" {
		c.add("status = $%d", string(opts.Status))
	}
	return c
}

func (s *Store) ListClients(ctx context.Context, opts client.ListOpts) ([]*client.Client, error) {
	var models []clientModel
	q := s.pg.NewSelect(&models)

	if c := clientConds(opts); !c.empty() {
		q = q.Where(c.sql(), c.args...)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	if opts.ByRevenue {
		q = q.OrderExpr("total_revenue DESC, created_at ASC, id ASC")
	} else {
		q = q.OrderExpr("created_at DESC, id DESC")
	}

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*client.Client, len(models))
	for i := range models {
		c, err := fromClientModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = c
	}
	return result, nil
}

func (s *Store) CountClients(ctx context.Context, opts client.ListOpts) (int64, error) {
	return s.count(ctx, "tally_clients", clientConds(opts))
}

func (s *Store) UpdateClient(ctx context.Context, c *client.Client) error {
	m := toClientModel(c)
	res, err := s.pg.NewUpdate((*clientModel)(nil)).
		Set("name = $1", m.Name).
		Set("email = $2", m.Email).
		Set("phone = $3", m.Phone).
		Set("company = $4", m.Company).
		Set("address = $5", string(m.Address)).
		Set("notes = $6", m.Notes).
		Set("status = $7", m.Status).
		Set("updated_at = $8", m.UpdatedAt).
		Where("id = $9", m.ID).
		Exec(ctx)
	return affected(res, err, tally.ErrClientNotFound)
}

func (s *Store) DeleteClient(ctx context.Context, clientID id.ClientID) error {
	res, err := s.pg.NewDelete((*clientModel)(nil)).
		Where("id = $1", clientID.String()).
		Where("NOT EXISTS (SELECT 1 FROM tally_projects WHERE client_id = $2)", clientID.String()).
		Exec(ctx)
	if err := affected(res, err, tally.ErrClientHasProjects); !errors.Is(err, tally.ErrClientHasProjects) {
		return err
	}
	return s.missingOr(ctx, "tally_clients", clientID.String(), tally.ErrClientNotFound, tally.ErrClientHasProjects)
}

func (s *Store) IncrementClientRevenue(ctx context.Context, clientID id.ClientID, delta int64) error {
	res, err := s.pg.NewUpdate((*clientModel)(nil)).
		Set("total_revenue = total_revenue + $1", delta).
		Where("id = $2", clientID.String()).
		Exec(ctx)
	return affected(res, err, tally.ErrClientNotFound)
}

func (s *Store) IncrementClientProjectCount(ctx context.Context, clientID id.ClientID, delta int64) error {
	res, err := s.pg.NewUpdate((*clientModel)(nil)).
		Set("project_count = project_count + $1", delta).
		Where("id = $2", clientID.String()).
		Exec(ctx)
	return affected(res, err, tally.ErrClientNotFound)
}

// ==================== Project Store ====================

func (s *Store) CreateProject(ctx context.Context, p *project.Project) error {
	_, err := s.pg.NewInsert(toProjectModel(p)).Exec(ctx)
	if _, ok := uniqueViolation(err); ok {
		return tally.ErrAlreadyExists
	}
	return err
}

func (s *Store) GetProject(ctx context.Context, projectID id.ProjectID) (*project.Project, error) {
	m := new(projectModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", projectID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, tally.ErrProjectNotFound
		}
		return nil, err
	}
	return fromProjectModel(m)
}

func projectConds(opts project.ListOpts) *conds {
	c := new(conds)
	if opts.UserID != "" {
		c.add("user_id = $%d", opts.UserID)
	}
	if !opts.ClientID.IsNil() {
		c.add("client_id = $%d", opts.ClientID.String())
	}
	if opts.Status != "" {
		c.add("status = $%d", string(opts.Status))
	}
	return c
}

func (s *Store) ListProjects(ctx context.Context, opts project.ListOpts) ([]*project.Project, error) {
	var models []projectModel
	q := s.pg.NewSelect(&models)

	if c := projectConds(opts); !c.empty() {
		q = q.Where(c.sql(), c.args...)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at DESC, id DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*project.Project, len(models))
	for i := range models {
		p, err := fromProjectModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = p
	}
	return result, nil
}

func (s *Store) CountProjects(ctx context.Context, opts project.ListOpts) (int64, error) {
	return s.count(ctx, "tally_projects", projectConds(opts))
}

func (s *Store) UpdateProject(ctx context.Context, p *project.Project) error {
	m := toProjectModel(p)
	res, err := s.pg.NewUpdate((*projectModel)(nil)).
		Set("client_id = $1", m.ClientID).
		Set("name = $2", m.Name).
		Set("description = $3", m.Description).
		Set("status = $4", m.Status).
		Set("priority = $5", m.Priority).
		Set("billing_type = $6", m.BillingType).
		Set("currency = $7", m.Currency).
		Set("hourly_rate = $8", m.HourlyRate).
		Set("budget = $9", m.Budget).
		Set("start_date = $10", m.StartDate).
		Set("end_date = $11", m.EndDate).
		Set("tags = $12", jsonText(m.Tags)).
		Set("updated_at = $13", m.UpdatedAt).
		Where("id = $14", m.ID).
		Exec(ctx)
	return affected(res, err, tally.ErrProjectNotFound)
}

func (s *Store) DeleteProject(ctx context.Context, projectID id.ProjectID) error {
	res, err := s.pg.NewDelete((*projectModel)(nil)).
		Where("id = $1", projectID.String()).
		Exec(ctx)
	return affected(res, err, tally.ErrProjectNotFound)
}

func (s *Store) IncrementProjectTotals(ctx context.Context, projectID id.ProjectID, minutes, earned int64) error {
	res, err := s.pg.NewUpdate((*projectModel)(nil)).
		Set("total_minutes = total_minutes + $1", minutes).
		Set("total_earned = total_earned + $2", earned).
		Where("id = $3", projectID.String()).
		Exec(ctx)
	return affected(res, err, tally.ErrProjectNotFound)
}

// ==================== Time Entry Store ====================

func (s *Store) CreateTimeEntry(ctx context.Context, e *timeentry.TimeEntry) error {
	_, err := s.pg.NewInsert(toTimeEntryModel(e)).Exec(ctx)
	if constraint, ok := uniqueViolation(err); ok {
		if constraint == runningTimerIndex {
			return tally.ErrTimerRunning
		}
		return tally.ErrAlreadyExists
	}
	return err
}

func (s *Store) GetTimeEntry(ctx context.Context, entryID id.TimeEntryID) (*timeentry.TimeEntry, error) {
	m := new(timeEntryModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", entryID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, tally.ErrTimeEntryNotFound
		}
		return nil, err
	}
	return fromTimeEntryModel(m)
}

func (s *Store) GetRunningTimeEntry(ctx context.Context, userID string) (*timeentry.TimeEntry, error) {
	m := new(timeEntryModel)
	err := s.pg.NewSelect(m).
		Where("user_id = $1", userID).
		Where("end_time IS NULL").
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, tally.ErrTimeEntryNotFound
		}
		return nil, err
	}
	return fromTimeEntryModel(m)
}

func (s *Store) ListTimeEntries(ctx context.Context, opts timeentry.ListOpts) ([]*timeentry.TimeEntry, error) {
	var models []timeEntryModel
	q := s.pg.NewSelect(&models)

	c := new(conds)
	if opts.UserID != "" {
		c.add("user_id = $%d", opts.UserID)
	}
	if !opts.ProjectID.IsNil() {
		c.add("project_id = $%d", opts.ProjectID.String())
	}
	if !opts.ClientID.IsNil() {
		c.add("client_id = $%d", opts.ClientID.String())
	}
	if !opts.InvoiceID.IsNil() {
		c.add("invoice_id = $%d", opts.InvoiceID.String())
	}
	if opts.Running != nil {
		if *opts.Running {
			c.raw("end_time IS NULL")
		} else {
			c.raw("end_time IS NOT NULL")
		}
	}
	if !opts.StartFrom.IsZero() {
		c.add("start_time >= $%d", opts.StartFrom)
	}
	if !opts.StartTo.IsZero() {
		c.add("start_time <= $%d", opts.StartTo)
	}
	if !c.empty() {
		q = q.Where(c.sql(), c.args...)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("start_time DESC, id DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*timeentry.TimeEntry, len(models))
	for i := range models {
		e, err := fromTimeEntryModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = e
	}
	return result, nil
}

func (s *Store) UpdateTimeEntry(ctx context.Context, e *timeentry.TimeEntry) error {
	m := toTimeEntryModel(e)
	running := "end_time IS NOT NULL"
	if e.Running() {
		running = "end_time IS NULL"
	}
	res, err := s.pg.NewUpdate((*timeEntryModel)(nil)).
		Set("project_id = $1", m.ProjectID).
		Set("client_id = $2", m.ClientID).
		Set("description = $3", m.Description).
		Set("start_time = $4", m.StartTime).
		Set("end_time = $5", m.EndTime).
		Set("currency = $6", m.Currency).
		Set("hourly_rate = $7", m.HourlyRate).
		Set("billable = $8", m.Billable).
		Set("tags = $9", jsonText(m.Tags)).
		Set("duration = $10", m.Duration).
		Set("amount = $11", m.Amount).
		Set("updated_at = $12", m.UpdatedAt).
		Where("id = $13", m.ID).
		Where(running).
		Exec(ctx)
	if err := affected(res, err, tally.ErrConflict); !errors.Is(err, tally.ErrConflict) {
		return err
	}
	return s.missingOr(ctx, "tally_time_entries", m.ID, tally.ErrTimeEntryNotFound, tally.ErrConflict)
}

func (s *Store) DeleteTimeEntry(ctx context.Context, entryID id.TimeEntryID, running bool) error {
	state := "end_time IS NOT NULL"
	if running {
		state = "end_time IS NULL"
	}
	res, err := s.pg.NewDelete((*timeEntryModel)(nil)).
		Where("id = $1", entryID.String()).
		Where(state).
		Exec(ctx)
	if err := affected(res, err, tally.ErrConflict); !errors.Is(err, tally.ErrConflict) {
		return err
	}
	return s.missingOr(ctx, "tally_time_entries", entryID.String(), tally.ErrTimeEntryNotFound, tally.ErrConflict)
}

func (s *Store) StopTimeEntry(ctx context.Context, entryID id.TimeEntryID, stop timeentry.Stop) error {
	res, err := s.pg.NewUpdate((*timeEntryModel)(nil)).
		Set("end_time = $1", stop.EndTime).
		Set("duration = $2", stop.Duration).
		Set("amount = $3", stop.Amount).
		Set("updated_at = $4", stop.EndTime).
		Where("id = $5", entryID.String()).
		Where("end_time IS NULL").
		Exec(ctx)
	if err := affected(res, err, tally.ErrTimerAlreadyStopped); !errors.Is(err, tally.ErrTimerAlreadyStopped) {
		return err
	}
	return s.missingOr(ctx, "tally_time_entries", entryID.String(), tally.ErrTimeEntryNotFound, tally.ErrTimerAlreadyStopped)
}

func (s *Store) DeleteTimeEntriesByProject(ctx context.Context, projectID id.ProjectID) (int64, error) {
	res, err := s.pg.NewDelete((*timeEntryModel)(nil)).
		Where("project_id = $1", projectID.String()).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) LinkTimeEntries(ctx context.Context, entryIDs []id.TimeEntryID, invoiceID id.InvoiceID) error {
	ids := uniqueIDs(entryIDs)
	if len(ids) == 0 {
		return nil
	}

	var models []timeEntryModel
	c := new(conds)
	c.in("id", ids)
	if err := s.pg.NewSelect(&models).Where(c.sql(), c.args...).Scan(ctx); err != nil {
		return err
	}
	if len(models) != len(ids) {
		return tally.ErrTimeEntryNotFound
	}

	var fresh []string
	for _, m := range models {
		switch {
		case m.Invoiced && m.InvoiceID != invoiceID.String():
			return tally.ErrTimeEntryInvoiced
		case !m.Invoiced:
			fresh = append(fresh, m.ID)
		}
	}
	if len(fresh) == 0 {
		return nil
	}

	c = after(2)
	c.in("id", fresh)
	c.raw("invoiced = FALSE")
	res, err := s.pg.NewUpdate((*timeEntryModel)(nil)).
		Set("invoiced = $1", true).
		Set("invoice_id = $2", invoiceID.String()).
		Where(c.sql(), c.args...).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == int64(len(fresh)) {
		return nil
	}

	// Another invoice claimed some entries between the read and the update.
	c = after(2)
	c.in("id", fresh)
	c.add("invoice_id = $%d", invoiceID.String())
	if _, err := s.pg.NewUpdate((*timeEntryModel)(nil)).
		Set("invoiced = $1", false).
		Set("invoice_id = $2", "").
		Where(c.sql(), c.args...).
		Exec(ctx); err != nil {
		return err
	}
	return tally.ErrTimeEntryInvoiced
}

func (s *Store) UnlinkTimeEntries(ctx context.Context, invoiceID id.InvoiceID) error {
	_, err := s.pg.NewUpdate((*timeEntryModel)(nil)).
		Set("invoiced = $1", false).
		Set("invoice_id = $2", "").
		Where("invoice_id = $3", invoiceID.String()).
		Exec(ctx)
	return err
}

func (s *Store) SumTimeEntries(ctx context.Context, opts timeentry.SumOpts) (timeentry.Totals, error) {
	c := new(conds)
	c.raw("end_time IS NOT NULL")
	if opts.UserID != "" {
		c.add("user_id = $%d", opts.UserID)
	}
	if !opts.ProjectID.IsNil() {
		c.add("project_id = $%d", opts.ProjectID.String())
	}

	var t timeentry.Totals
	err := s.pg.NewRaw(
		"SELECT COALESCE(SUM(duration), 0), COALESCE(SUM(amount), 0) FROM tally_time_entries WHERE "+c.sql(),
		c.args...,
	).Scan(ctx, &t.Minutes, &t.Amount)
	if err != nil {
		return timeentry.Totals{}, err
	}
	return t, nil
}

// ==================== Invoice Store ====================

func (s *Store) CreateInvoice(ctx context.Context, inv *invoice.Invoice) error {
	_, err := s.pg.NewInsert(toInvoiceModel(inv)).Exec(ctx)
	if constraint, ok := uniqueViolation(err); ok {
		if constraint == invoiceNumberIndex {
			return tally.ErrDuplicateNumber
		}
		return tally.ErrAlreadyExists
	}
	return err
}

func (s *Store) GetInvoice(ctx context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	m := new(invoiceModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", invID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, tally.ErrInvoiceNotFound
		}
		return nil, err
	}
	return fromInvoiceModel(m)
}

func (s *Store) ListInvoices(ctx context.Context, opts invoice.ListOpts) ([]*invoice.Invoice, error) {
	var models []invoiceModel
	q := s.pg.NewSelect(&models)

	c := new(conds)
	if opts.UserID != "" {
		c.add("user_id = $%d", opts.UserID)
	}
	if !opts.ClientID.IsNil() {
		c.add("client_id = $%d", opts.ClientID.String())
	}
	if !opts.ProjectID.IsNil() {
		c.add("project_id = $%d", opts.ProjectID.String())
	}
	if len(opts.Statuses) > 0 {
		c.in("status", statusStrings(opts.Statuses))
	}
	if !opts.DueBefore.IsZero() {
		c.add("due_date < $%d", opts.DueBefore)
	}
	if !c.empty() {
		q = q.Where(c.sql(), c.args...)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at DESC, id DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*invoice.Invoice, len(models))
	for i := range models {
		inv, err := fromInvoiceModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = inv
	}
	return result, nil
}

func (s *Store) UpdateInvoice(ctx context.Context, inv *invoice.Invoice) error {
	m := toInvoiceModel(inv)
	res, err := s.pg.NewUpdate((*invoiceModel)(nil)).
		Set("client_id = $1", m.ClientID).
		Set("project_id = $2", m.ProjectID).
		Set("currency = $3", m.Currency).
		Set("line_items = $4", string(m.LineItems)).
		Set("tax_percent = $5", m.TaxPercent).
		Set("discount = $6", m.Discount).
		Set("subtotal = $7", m.Subtotal).
		Set("tax_amount = $8", m.TaxAmount).
		Set("total = $9", m.Total).
		Set("issue_date = $10", m.IssueDate).
		Set("due_date = $11", m.DueDate).
		Set("notes = $12", m.Notes).
		Set("time_entry_ids = $13", jsonText(m.TimeEntryIDs)).
		Set("updated_at = $14", m.UpdatedAt).
		Where("id = $15", m.ID).
		Where("status = $16", m.Status).
		Exec(ctx)
	return s.invoiceCAS(ctx, res, err, m.ID)
}

func (s *Store) DeleteInvoice(ctx context.Context, invID id.InvoiceID, status invoice.Status) error {
	res, err := s.pg.NewDelete((*invoiceModel)(nil)).
		Where("id = $1", invID.String()).
		Where("status = $2", string(status)).
		Exec(ctx)
	return s.invoiceCAS(ctx, res, err, invID.String())
}

func (s *Store) TransitionInvoiceStatus(ctx context.Context, invID id.InvoiceID, t invoice.Transition) error {
	q := s.pg.NewUpdate((*invoiceModel)(nil)).
		Set("status = $1", string(t.To)).
		Set("updated_at = $2", t.At)

	argIdx := 2
	if t.To == invoice.StatusPaid {
		q = q.Set("paid_at = $3", t.At).
			Set("payment_method = $4", t.PaymentMethod)
		argIdx = 4
	}
	res, err := q.
		Where(fmt.Sprintf("id = $%d", argIdx+1), invID.String()).
		Where(fmt.Sprintf("status = $%d", argIdx+2), string(t.From)).
		Exec(ctx)
	return s.invoiceCAS(ctx, res, err, invID.String())
}

// invoiceCAS resolves a conditional invoice write that touched no row into
// not-found or a concurrent status change.
func (s *Store) invoiceCAS(ctx context.Context, res result, err error, invID string) error {
	if err := affected(res, err, tally.ErrStatusChanged); !errors.Is(err, tally.ErrStatusChanged) {
		return err
	}
	return s.missingOr(ctx, "tally_invoices", invID, tally.ErrInvoiceNotFound, tally.ErrStatusChanged)
}

func (s *Store) SumInvoiceTotals(ctx context.Context, opts invoice.SumOpts) (int64, error) {
	c := new(conds)
	if opts.UserID != "" {
		c.add("user_id = $%d", opts.UserID)
	}
	if !opts.ClientID.IsNil() {
		c.add("client_id = $%d", opts.ClientID.String())
	}
	if len(opts.Statuses) > 0 {
		c.in("status", statusStrings(opts.Statuses))
	}
	if !opts.PaidFrom.IsZero() {
		c.add("paid_at >= $%d", opts.PaidFrom)
	}
	if !opts.PaidTo.IsZero() {
		c.add("paid_at < $%d", opts.PaidTo)
	}

	var total int64
	err := s.pg.NewRaw(
		"SELECT COALESCE(SUM(total), 0) FROM tally_invoices WHERE "+c.sql(),
		c.args...,
	).Scan(ctx, &total)
	if err != nil {
		return 0, err
	}
	return total, nil
}

// ==================== Payment Store ====================

func (s *Store) CreatePayment(ctx context.Context, p *payment.Payment) error {
	_, err := s.pg.NewInsert(toPaymentModel(p)).Exec(ctx)
	if _, ok := uniqueViolation(err); ok {
		return tally.ErrAlreadyExists
	}
	return err
}

func (s *Store) GetPayment(ctx context.Context, paymentID id.PaymentID) (*payment.Payment, error) {
	m := new(paymentModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", paymentID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, tally.ErrPaymentNotFound
		}
		return nil, err
	}
	return fromPaymentModel(m)
}

func (s *Store) GetPaymentByGatewayRef(ctx context.Context, ref string) (*payment.Payment, error) {
	if ref == "" {
		return nil, tally.ErrPaymentNotFound
	}
	m := new(paymentModel)
	err := s.pg.NewSelect(m).
		Where("gateway_ref = $1", ref).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, tally.ErrPaymentNotFound
		}
		return nil, err
	}
	return fromPaymentModel(m)
}

func (s *Store) ListPayments(ctx context.Context, opts payment.ListOpts) ([]*payment.Payment, error) {
	var models []paymentModel
	q := s.pg.NewSelect(&models)

	c := new(conds)
	if opts.UserID != "" {
		c.add("user_id = $%d", opts.UserID)
	}
	if !opts.InvoiceID.IsNil() {
		c.add("invoice_id = $%d", opts.InvoiceID.String())
	}
	if !opts.ClientID.IsNil() {
		c.add("client_id = $%d", opts.ClientID.String())
	}
	if opts.Status != "" {
		c.add("status = $%d", string(opts.Status))
	}
	if !c.empty() {
		q = q.Where(c.sql(), c.args...)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("payment_date ASC, created_at ASC, id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*payment.Payment, len(models))
	for i := range models {
		p, err := fromPaymentModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = p
	}
	return result, nil
}

// ==================== Sync Failure Store ====================

func (s *Store) EnqueueSyncFailure(ctx context.Context, f *aggregate.SyncFailure) error {
	_, err := s.pg.NewInsert(toSyncFailureModel(f)).Exec(ctx)
	return err
}

func (s *Store) ListSyncFailures(ctx context.Context, limit int) ([]*aggregate.SyncFailure, error) {
	var models []syncFailureModel
	q := s.pg.NewSelect(&models)
	if limit > 0 {
		q = q.Limit(limit)
	}
	q = q.OrderExpr("created_at ASC, id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*aggregate.SyncFailure, len(models))
	for i := range models {
		f, err := fromSyncFailureModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = f
	}
	return result, nil
}

func (s *Store) UpdateSyncFailure(ctx context.Context, f *aggregate.SyncFailure) error {
	res, err := s.pg.NewUpdate(toSyncFailureModel(f)).WherePK().Exec(ctx)
	return affected(res, err, tally.ErrSyncFailureNotFound)
}

func (s *Store) DeleteSyncFailure(ctx context.Context, failureID id.SyncFailureID) error {
	res, err := s.pg.NewDelete((*syncFailureModel)(nil)).
		Where("id = $1", failureID.String()).
		Exec(ctx)
	return affected(res, err, tally.ErrSyncFailureNotFound)
}

// ==================== Sequences ====================

func (s *Store) NextSequence(ctx context.Context, name string) (int64, error) {
	var value int64
	err := s.pg.NewRaw(`
		INSERT INTO tally_sequences (name, value) VALUES ($1, 1)
		ON CONFLICT (name) DO UPDATE SET value = tally_sequences.value + 1
		RETURNING value
	`, name).Scan(ctx, &value)
	if err != nil {
		return 0, err
	}
	return value, nil
}

func (s *Store) ReleaseSequence(ctx context.Context, name string, n int64) (bool, error) {
	res, err := s.pg.NewUpdate((*sequenceModel)(nil)).
		Set("value = value - 1").
		Where("name = $1", name).
		Where("value = $2", n).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

// ==================== Helpers ====================

// conds accumulates AND-ed conditions with globally numbered placeholders.
type conds struct {
	exprs  []string
	args   []any
	offset int
}

// after starts numbering at $n+1, following n placeholders used by SET.
func after(n int) *conds { return &conds{offset: n} }

// add appends a condition whose single placeholder is written as $%d.
func (c *conds) add(format string, arg any) {
	c.args = append(c.args, arg)
	c.exprs = append(c.exprs, fmt.Sprintf(format, c.offset+len(c.args)))
}

func (c *conds) raw(expr string) {
	c.exprs = append(c.exprs, expr)
}

func (c *conds) in(column string, values []string) {
	placeholders := make([]string, len(values))
	for i, v := range values {
		c.args = append(c.args, v)
		placeholders[i] = fmt.Sprintf("$%d", c.offset+len(c.args))
	}
	c.exprs = append(c.exprs, column+" IN ("+strings.Join(placeholders, ", ")+")")
}

func (c *conds) empty() bool { return len(c.exprs) == 0 }

func (c *conds) sql() string {
	if c.empty() {
		return "TRUE"
	}
	return strings.Join(c.exprs, " AND ")
}

func (s *Store) count(ctx context.Context, table string, c *conds) (int64, error) {
	var n int64
	err := s.pg.NewRaw("SELECT COUNT(*) FROM "+table+" WHERE "+c.sql(), c.args...).Scan(ctx, &n)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// missingOr reports notFound when the row is gone and otherwise err.
func (s *Store) missingOr(ctx context.Context, table, rowID string, notFound, err error) error {
	var exists bool
	qerr := s.pg.NewRaw("SELECT EXISTS (SELECT 1 FROM "+table+" WHERE id = $1)", rowID).Scan(ctx, &exists)
	if qerr != nil {
		return qerr
	}
	if !exists {
		return notFound
	}
	return err
}

// result is the part of a grove exec result the store inspects.
type result interface {
	RowsAffected() (int64, error)
}

// affected maps a write that touched no row to miss.
func affected(res result, err, miss error) error {
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return miss
	}
	return nil
}

// uniqueViolation reports the violated constraint of a unique_violation.
func uniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return pgErr.ConstraintName, true
	}
	return "", false
}

func uniqueIDs(ids []id.TimeEntryID) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, eid := range ids {
		k := eid.String()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

func statusStrings(statuses []invoice.Status) []string {
	out := make([]string, len(statuses))
	for i, st := range statuses {
		out[i] = string(st)
	}
	return out
}

// jsonText encodes v for a JSONB parameter.
func jsonText(v any) string {
	b, _ := json.Marshal(v) //nolint:errcheck // slices of strings
	return string(b)
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
