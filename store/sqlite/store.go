package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
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

// Store implements store.Store using SQLite via Grove ORM.
//
// Times are stored as UTC text so range filters compare lexically.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("tally/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("%w: sqlite: %w", tally.ErrMigrationFailed, err)
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
	_, err := s.sdb.NewInsert(toClientModel(c)).Exec(ctx)
	if _, ok := uniqueViolation(err); ok {
		return tally.ErrAlreadyExists
	}
	return err
}

func (s *Store) GetClient(ctx context.Context, clientID id.ClientID) (*client.Client, error) {
	m := new(clientModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", clientID.String()).
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
		c.add("user_id = ?", opts.UserID)
	}
	if opts.Status != "" {
		c.add("status = ?", string(opts.Status))
	}
	return c
}

func (s *Store) ListClients(ctx context.Context, opts client.ListOpts) ([]*client.Client, error) {
	var models []clientModel
	q := s.sdb.NewSelect(&models)

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
	res, err := s.sdb.NewUpdate((*clientModel)(nil)).
		Set("name = ?", m.Name).
		Set("email = ?", m.Email).
		Set("phone = ?", m.Phone).
		Set("company = ?", m.Company).
		Set("address = ?", m.Address).
		Set("notes = ?", m.Notes).
		Set("status = ?", m.Status).
		Set("updated_at = ?", m.UpdatedAt).
		Where("id = ?", m.ID).
		Exec(ctx)
	return affected(res, err, tally.ErrClientNotFound)
}

func (s *Store) DeleteClient(ctx context.Context, clientID id.ClientID) error {
	res, err := s.sdb.NewDelete((*clientModel)(nil)).
		Where("id = ?", clientID.String()).
		Where("NOT EXISTS (SELECT 1 FROM tally_projects WHERE client_id = ?)", clientID.String()).
		Exec(ctx)
	if err := affected(res, err, tally.ErrClientHasProjects); !errors.Is(err, tally.ErrClientHasProjects) {
		return err
	}
	return s.missingOr(ctx, "tally_clients", clientID.String(), tally.ErrClientNotFound, tally.ErrClientHasProjects)
}

func (s *Store) IncrementClientRevenue(ctx context.Context, clientID id.ClientID, delta int64) error {
	res, err := s.sdb.NewUpdate((*clientModel)(nil)).
		Set("total_revenue = total_revenue + ?", delta).
		Where("id = ?", clientID.String()).
		Exec(ctx)
	return affected(res, err, tally.ErrClientNotFound)
}

func (s *Store) IncrementClientProjectCount(ctx context.Context, clientID id.ClientID, delta int64) error {
	res, err := s.sdb.NewUpdate((*clientModel)(nil)).
		Set("project_count = project_count + ?", delta).
		Where("id = ?", clientID.String()).
		Exec(ctx)
	return affected(res, err, tally.ErrClientNotFound)
}

// ==================== Project Store ====================

func (s *Store) CreateProject(ctx context.Context, p *project.Project) error {
	_, err := s.sdb.NewInsert(toProjectModel(p)).Exec(ctx)
	if _, ok := uniqueViolation(err); ok {
		return tally.ErrAlreadyExists
	}
	return err
}

func (s *Store) GetProject(ctx context.Context, projectID id.ProjectID) (*project.Project, error) {
	m := new(projectModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", projectID.String()).
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
		c.add("user_id = ?", opts.UserID)
	}
	if !opts.ClientID.IsNil() {
		c.add("client_id = ?", opts.ClientID.String())
	}
	if opts.Status != "" {
		c.add("status = ?", string(opts.Status))
	}
	return c
}

func (s *Store) ListProjects(ctx context.Context, opts project.ListOpts) ([]*project.Project, error) {
	var models []projectModel
	q := s.sdb.NewSelect(&models)

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
	res, err := s.sdb.NewUpdate((*projectModel)(nil)).
		Set("client_id = ?", m.ClientID).
		Set("name = ?", m.Name).
		Set("description = ?", m.Description).
		Set("status = ?", m.Status).
		Set("priority = ?", m.Priority).
		Set("billing_type = ?", m.BillingType).
		Set("currency = ?", m.Currency).
		Set("hourly_rate = ?", m.HourlyRate).
		Set("budget = ?", m.Budget).
		Set("start_date = ?", m.StartDate).
		Set("end_date = ?", m.EndDate).
		Set("tags = ?", m.Tags).
		Set("updated_at = ?", m.UpdatedAt).
		Where("id = ?", m.ID).
		Exec(ctx)
	return affected(res, err, tally.ErrProjectNotFound)
}

func (s *Store) DeleteProject(ctx context.Context, projectID id.ProjectID) error {
	res, err := s.sdb.NewDelete((*projectModel)(nil)).
		Where("id = ?", projectID.String()).
		Exec(ctx)
	return affected(res, err, tally.ErrProjectNotFound)
}

func (s *Store) IncrementProjectTotals(ctx context.Context, projectID id.ProjectID, minutes, earned int64) error {
	res, err := s.sdb.NewUpdate((*projectModel)(nil)).
		Set("total_minutes = total_minutes + ?", minutes).
		Set("total_earned = total_earned + ?", earned).
		Where("id = ?", projectID.String()).
		Exec(ctx)
	return affected(res, err, tally.ErrProjectNotFound)
}

// ==================== Time Entry Store ====================

func (s *Store) CreateTimeEntry(ctx context.Context, e *timeentry.TimeEntry) error {
	_, err := s.sdb.NewInsert(toTimeEntryModel(e)).Exec(ctx)
	if constraint, ok := uniqueViolation(err); ok {
		if constraint == runningTimerColumns {
			return tally.ErrTimerRunning
		}
		return tally.ErrAlreadyExists
	}
	return err
}

func (s *Store) GetTimeEntry(ctx context.Context, entryID id.TimeEntryID) (*timeentry.TimeEntry, error) {
	m := new(timeEntryModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", entryID.String()).
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
	err := s.sdb.NewSelect(m).
		Where("user_id = ?", userID).
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
	q := s.sdb.NewSelect(&models)

	c := new(conds)
	if opts.UserID != "" {
		c.add("user_id = ?", opts.UserID)
	}
	if !opts.ProjectID.IsNil() {
		c.add("project_id = ?", opts.ProjectID.String())
	}
	if !opts.ClientID.IsNil() {
		c.add("client_id = ?", opts.ClientID.String())
	}
	if !opts.InvoiceID.IsNil() {
		c.add("invoice_id = ?", opts.InvoiceID.String())
	}
	if opts.Running != nil {
		if *opts.Running {
			c.raw("end_time IS NULL")
		} else {
			c.raw("end_time IS NOT NULL")
		}
	}
	if !opts.StartFrom.IsZero() {
		c.add("start_time >= ?", opts.StartFrom.UTC())
	}
	if !opts.StartTo.IsZero() {
		c.add("start_time <= ?", opts.StartTo.UTC())
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
	res, err := s.sdb.NewUpdate((*timeEntryModel)(nil)).
		Set("project_id = ?", m.ProjectID).
		Set("client_id = ?", m.ClientID).
		Set("description = ?", m.Description).
		Set("start_time = ?", m.StartTime).
		Set("end_time = ?", m.EndTime).
		Set("currency = ?", m.Currency).
		Set("hourly_rate = ?", m.HourlyRate).
		Set("billable = ?", m.Billable).
		Set("tags = ?", m.Tags).
		Set("duration = ?", m.Duration).
		Set("amount = ?", m.Amount).
		Set("updated_at = ?", m.UpdatedAt).
		Where("id = ?", m.ID).
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
	res, err := s.sdb.NewDelete((*timeEntryModel)(nil)).
		Where("id = ?", entryID.String()).
		Where(state).
		Exec(ctx)
	if err := affected(res, err, tally.ErrConflict); !errors.Is(err, tally.ErrConflict) {
		return err
	}
	return s.missingOr(ctx, "tally_time_entries", entryID.String(), tally.ErrTimeEntryNotFound, tally.ErrConflict)
}

func (s *Store) StopTimeEntry(ctx context.Context, entryID id.TimeEntryID, stop timeentry.Stop) error {
	res, err := s.sdb.NewUpdate((*timeEntryModel)(nil)).
		Set("end_time = ?", stop.EndTime.UTC()).
		Set("duration = ?", stop.Duration).
		Set("amount = ?", stop.Amount).
		Set("updated_at = ?", stop.EndTime.UTC()).
		Where("id = ?", entryID.String()).
		Where("end_time IS NULL").
		Exec(ctx)
	if err := affected(res, err, tally.ErrTimerAlreadyStopped); !errors.Is(err, tally.ErrTimerAlreadyStopped) {
		return err
	}
	return s.missingOr(ctx, "tally_time_entries", entryID.String(), tally.ErrTimeEntryNotFound, tally.ErrTimerAlreadyStopped)
}

func (s *Store) DeleteTimeEntriesByProject(ctx context.Context, projectID id.ProjectID) (int64, error) {
	res, err := s.sdb.NewDelete((*timeEntryModel)(nil)).
		Where("project_id = ?", projectID.String()).
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
	if err := s.sdb.NewSelect(&models).Where(c.sql(), c.args...).Scan(ctx); err != nil {
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

	c = new(conds)
	c.in("id", fresh)
	c.raw("invoiced = 0")
	res, err := s.sdb.NewUpdate((*timeEntryModel)(nil)).
		Set("invoiced = ?", true).
		Set("invoice_id = ?", invoiceID.String()).
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
	c = new(conds)
	c.in("id", fresh)
	c.add("invoice_id = ?", invoiceID.String())
	if _, err := s.sdb.NewUpdate((*timeEntryModel)(nil)).
		Set("invoiced = ?", false).
		Set("invoice_id = ?", "").
		Where(c.sql(), c.args...).
		Exec(ctx); err != nil {
		return err
	}
	return tally.ErrTimeEntryInvoiced
}

func (s *Store) UnlinkTimeEntries(ctx context.Context, invoiceID id.InvoiceID) error {
	_, err := s.sdb.NewUpdate((*timeEntryModel)(nil)).
		Set("invoiced = ?", false).
		Set("invoice_id = ?", "").
		Where("invoice_id = ?", invoiceID.String()).
		Exec(ctx)
	return err
}

func (s *Store) SumTimeEntries(ctx context.Context, opts timeentry.SumOpts) (timeentry.Totals, error) {
	c := new(conds)
	c.raw("end_time IS NOT NULL")
	if opts.UserID != "" {
		c.add("user_id = ?", opts.UserID)
	}
	if !opts.ProjectID.IsNil() {
		c.add("project_id = ?", opts.ProjectID.String())
	}

	var t timeentry.Totals
	err := s.sdb.NewRaw(
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
	_, err := s.sdb.NewInsert(toInvoiceModel(inv)).Exec(ctx)
	if constraint, ok := uniqueViolation(err); ok {
		if constraint == invoiceNumberColumns {
			return tally.ErrDuplicateNumber
		}
		return tally.ErrAlreadyExists
	}
	return err
}

func (s *Store) GetInvoice(ctx context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	m := new(invoiceModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", invID.String()).
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
	q := s.sdb.NewSelect(&models)

	c := new(conds)
	if opts.UserID != "" {
		c.add("user_id = ?", opts.UserID)
	}
	if !opts.ClientID.IsNil() {
		c.add("client_id = ?", opts.ClientID.String())
	}
	if !opts.ProjectID.IsNil() {
		c.add("project_id = ?", opts.ProjectID.String())
	}
	if len(opts.Statuses) > 0 {
		c.in("status", statusStrings(opts.Statuses))
	}
	if !opts.DueBefore.IsZero() {
		c.add("due_date < ?", opts.DueBefore.UTC())
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
	res, err := s.sdb.NewUpdate((*invoiceModel)(nil)).
		Set("client_id = ?", m.ClientID).
		Set("project_id = ?", m.ProjectID).
		Set("currency = ?", m.Currency).
		Set("line_items = ?", m.LineItems).
		Set("tax_percent = ?", m.TaxPercent).
		Set("discount = ?", m.Discount).
		Set("subtotal = ?", m.Subtotal).
		Set("tax_amount = ?", m.TaxAmount).
		Set("total = ?", m.Total).
		Set("issue_date = ?", m.IssueDate).
		Set("due_date = ?", m.DueDate).
		Set("notes = ?", m.Notes).
		Set("time_entry_ids = ?", m.TimeEntryIDs).
		Set("updated_at = ?", m.UpdatedAt).
		Where("id = ?", m.ID).
		Where("status = ?", m.Status).
		Exec(ctx)
	return s.invoiceCAS(ctx, res, err, m.ID)
}

func (s *Store) DeleteInvoice(ctx context.Context, invID id.InvoiceID, status invoice.Status) error {
	res, err := s.sdb.NewDelete((*invoiceModel)(nil)).
		Where("id = ?", invID.String()).
		Where("status = ?", string(status)).
		Exec(ctx)
	return s.invoiceCAS(ctx, res, err, invID.String())
}

func (s *Store) TransitionInvoiceStatus(ctx context.Context, invID id.InvoiceID, t invoice.Transition) error {
	q := s.sdb.NewUpdate((*invoiceModel)(nil)).
		Set("status = ?", string(t.To)).
		Set("updated_at = ?", t.At.UTC())
	if t.To == invoice.StatusPaid {
		q = q.Set("paid_at = ?", t.At.UTC()).
			Set("payment_method = ?", t.PaymentMethod)
	}
	res, err := q.
		Where("id = ?", invID.String()).
		Where("status = ?", string(t.From)).
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
		c.add("user_id = ?", opts.UserID)
	}
	if !opts.ClientID.IsNil() {
		c.add("client_id = ?", opts.ClientID.String())
	}
	if len(opts.Statuses) > 0 {
		c.in("status", statusStrings(opts.Statuses))
	}
	if !opts.PaidFrom.IsZero() {
		c.add("paid_at >= ?", opts.PaidFrom.UTC())
	}
	if !opts.PaidTo.IsZero() {
		c.add("paid_at < ?", opts.PaidTo.UTC())
	}

	var total int64
	err := s.sdb.NewRaw(
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
	_, err := s.sdb.NewInsert(toPaymentModel(p)).Exec(ctx)
	if _, ok := uniqueViolation(err); ok {
		return tally.ErrAlreadyExists
	}
	return err
}

func (s *Store) GetPayment(ctx context.Context, paymentID id.PaymentID) (*payment.Payment, error) {
	m := new(paymentModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", paymentID.String()).
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
	err := s.sdb.NewSelect(m).
		Where("gateway_ref = ?", ref).
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
	q := s.sdb.NewSelect(&models)

	c := new(conds)
	if opts.UserID != "" {
		c.add("user_id = ?", opts.UserID)
	}
	if !opts.InvoiceID.IsNil() {
		c.add("invoice_id = ?", opts.InvoiceID.String())
	}
	if !opts.ClientID.IsNil() {
		c.add("client_id = ?", opts.ClientID.String())
	}
	if opts.Status != "" {
		c.add("status = ?", string(opts.Status))
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
	_, err := s.sdb.NewInsert(toSyncFailureModel(f)).Exec(ctx)
	return err
}

func (s *Store) ListSyncFailures(ctx context.Context, limit int) ([]*aggregate.SyncFailure, error) {
	var models []syncFailureModel
	q := s.sdb.NewSelect(&models)
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
	res, err := s.sdb.NewUpdate(toSyncFailureModel(f)).WherePK().Exec(ctx)
	return affected(res, err, tally.ErrSyncFailureNotFound)
}

func (s *Store) DeleteSyncFailure(ctx context.Context, failureID id.SyncFailureID) error {
	res, err := s.sdb.NewDelete((*syncFailureModel)(nil)).
		Where("id = ?", failureID.String()).
		Exec(ctx)
	return affected(res, err, tally.ErrSyncFailureNotFound)
}

// ==================== Sequences ====================

func (s *Store) NextSequence(ctx context.Context, name string) (int64, error) {
	var value int64
	err := s.sdb.NewRaw(`
		INSERT INTO tally_sequences (name, value) VALUES (?, 1)
		ON CONFLICT (name) DO UPDATE SET value = tally_sequences.value + 1
		RETURNING value
	`, name).Scan(ctx, &value)
	if err != nil {
		return 0, err
	}
	return value, nil
}

func (s *Store) ReleaseSequence(ctx context.Context, name string, n int64) (bool, error) {
	res, err := s.sdb.NewUpdate((*sequenceModel)(nil)).
		Set("value = value - 1").
		Where("name = ?", name).
		Where("value = ?", n).
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

// conds accumulates AND-ed conditions bound to positional placeholders.
type conds struct {
	exprs []string
	args  []any
}

func (c *conds) add(expr string, arg any) {
	c.exprs = append(c.exprs, expr)
	c.args = append(c.args, arg)
}

func (c *conds) raw(expr string) {
	c.exprs = append(c.exprs, expr)
}

func (c *conds) in(column string, values []string) {
	for _, v := range values {
		c.args = append(c.args, v)
	}
	c.exprs = append(c.exprs, column+" IN (?"+strings.Repeat(", ?", len(values)-1)+")")
}

func (c *conds) empty() bool { return len(c.exprs) == 0 }

func (c *conds) sql() string {
	if c.empty() {
		return "1 = 1"
	}
	return strings.Join(c.exprs, " AND ")
}

func (s *Store) count(ctx context.Context, table string, c *conds) (int64, error) {
	var n int64
	err := s.sdb.NewRaw("SELECT COUNT(*) FROM "+table+" WHERE "+c.sql(), c.args...).Scan(ctx, &n)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// missingOr reports notFound when the row is gone and otherwise err.
func (s *Store) missingOr(ctx context.Context, table, rowID string, notFound, err error) error {
	var exists bool
	qerr := s.sdb.NewRaw("SELECT EXISTS (SELECT 1 FROM "+table+" WHERE id = ?)", rowID).Scan(ctx, &exists)
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

// uniqueViolation reports the columns named by a UNIQUE constraint failure,
// such as "tally_invoices.number".
func uniqueViolation(err error) (string, bool) {
	if err == nil {
		return "", false
	}
	const marker = "UNIQUE constraint failed: "
	msg := err.Error()
	i := strings.Index(msg, marker)
	if i < 0 {
		return "", false
	}
	columns, _, _ := strings.Cut(msg[i+len(marker):], " ")
	return strings.TrimSuffix(columns, ")"), true
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

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
