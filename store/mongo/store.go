package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

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

// Collection name constants.
const (
	colClients      = "tally_clients"
	colProjects     = "tally_projects"
	colTimeEntries  = "tally_time_entries"
	colInvoices     = "tally_invoices"
	colPayments     = "tally_payments"
	colSyncFailures = "tally_sync_failures"
	colSequences    = "tally_sequences"
)

// Index names inspected on duplicate key errors.
const (
	idxRunningTimer  = "running_timer_per_user"
	idxInvoiceNumber = "invoice_number"
	idxGatewayRef    = "payment_gateway_ref"
)

// compile-time interface check
var _ tallystore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all tally collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("%w: mongo %s indexes: %w", tally.ErrMigrationFailed, col, err)
		}
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
	_, err := s.mdb.NewInsert(toClientModel(c)).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return tally.ErrAlreadyExists
		}
		return fmt.Errorf("tally/mongo: create client: %w", err)
	}
	return nil
}

func (s *Store) GetClient(ctx context.Context, clientID id.ClientID) (*client.Client, error) {
	var m clientModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": clientID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, tally.ErrClientNotFound
		}
		return nil, fmt.Errorf("tally/mongo: get client: %w", err)
	}
	return fromClientModel(&m)
}

func clientFilter(opts client.ListOpts) bson.M {
	filter := bson.M{}
	if opts.UserID != "" {
		filter["user_id"] = opts.UserID
	}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}
	return filter
}

func (s *Store) ListClients(ctx context.Context, opts client.ListOpts) ([]*client.Client, error) {
	var models []clientModel

	sort := bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}
	if opts.ByRevenue {
		sort = bson.D{{Key: "total_revenue", Value: -1}, {Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}
	}

	q := s.mdb.NewFind(&models).
		Filter(clientFilter(opts)).
		Sort(sort)

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("tally/mongo: list clients: %w", err)
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
	n, err := s.mdb.Collection(colClients).CountDocuments(ctx, clientFilter(opts))
	if err != nil {
		return 0, fmt.Errorf("tally/mongo: count clients: %w", err)
	}
	return n, nil
}

func (s *Store) UpdateClient(ctx context.Context, c *client.Client) error {
	m := toClientModel(c)
	res, err := s.mdb.NewUpdate((*clientModel)(nil)).
		Filter(bson.M{"_id": m.ID}).
		Set("name", m.Name).
		Set("email", m.Email).
		Set("phone", m.Phone).
		Set("company", m.Company).
		Set("address", m.Address).
		Set("notes", m.Notes).
		Set("status", m.Status).
		Set("updated_at", m.UpdatedAt).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("tally/mongo: update client: %w", err)
	}
	if res.MatchedCount() == 0 {
		return tally.ErrClientNotFound
	}
	return nil
}

// DeleteClient checks for projects before deleting. Mongo offers no
// single-statement guard across collections; CreateProject rechecks its
// client after inserting, which closes the gap from the other side.
func (s *Store) DeleteClient(ctx context.Context, clientID id.ClientID) error {
	n, err := s.mdb.Collection(colProjects).CountDocuments(ctx, bson.M{"client_id": clientID.String()})
	if err != nil {
		return fmt.Errorf("tally/mongo: count client projects: %w", err)
	}
	if n > 0 {
		return tally.ErrClientHasProjects
	}

	res, err := s.mdb.NewDelete((*clientModel)(nil)).
		Filter(bson.M{"_id": clientID.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("tally/mongo: delete client: %w", err)
	}
	if res.DeletedCount() == 0 {
		return tally.ErrClientNotFound
	}
	return nil
}

func (s *Store) IncrementClientRevenue(ctx context.Context, clientID id.ClientID, delta int64) error {
	return s.inc(ctx, (*clientModel)(nil), clientID.String(), bson.M{"total_revenue": delta}, tally.ErrClientNotFound)
}

func (s *Store) IncrementClientProjectCount(ctx context.Context, clientID id.ClientID, delta int64) error {
	return s.inc(ctx, (*clientModel)(nil), clientID.String(), bson.M{"project_count": delta}, tally.ErrClientNotFound)
}

// ==================== Project Store ====================

func (s *Store) CreateProject(ctx context.Context, p *project.Project) error {
	_, err := s.mdb.NewInsert(toProjectModel(p)).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return tally.ErrAlreadyExists
		}
		return fmt.Errorf("tally/mongo: create project: %w", err)
	}
	return nil
}

func (s *Store) GetProject(ctx context.Context, projectID id.ProjectID) (*project.Project, error) {
	var m projectModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": projectID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, tally.ErrProjectNotFound
		}
		return nil, fmt.Errorf("tally/mongo: get project: %w", err)
	}
	return fromProjectModel(&m)
}

func projectFilter(opts project.ListOpts) bson.M {
	filter := bson.M{}
	if opts.UserID != "" {
		filter["user_id"] = opts.UserID
	}
	if !opts.ClientID.IsNil() {
		filter["client_id"] = opts.ClientID.String()
	}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}
	return filter
}

func (s *Store) ListProjects(ctx context.Context, opts project.ListOpts) ([]*project.Project, error) {
	var models []projectModel

	q := s.mdb.NewFind(&models).
		Filter(projectFilter(opts)).
		Sort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("tally/mongo: list projects: %w", err)
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
	n, err := s.mdb.Collection(colProjects).CountDocuments(ctx, projectFilter(opts))
	if err != nil {
		return 0, fmt.Errorf("tally/mongo: count projects: %w", err)
	}
	return n, nil
}

func (s *Store) UpdateProject(ctx context.Context, p *project.Project) error {
	m := toProjectModel(p)
	res, err := s.mdb.NewUpdate((*projectModel)(nil)).
		Filter(bson.M{"_id": m.ID}).
		Set("client_id", m.ClientID).
		Set("name", m.Name).
		Set("description", m.Description).
		Set("status", m.Status).
		Set("priority", m.Priority).
		Set("billing_type", m.BillingType).
		Set("currency", m.Currency).
		Set("hourly_rate", m.HourlyRate).
		Set("budget", m.Budget).
		Set("start_date", m.StartDate).
		Set("end_date", m.EndDate).
		Set("tags", m.Tags).
		Set("updated_at", m.UpdatedAt).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("tally/mongo: update project: %w", err)
	}
	if res.MatchedCount() == 0 {
		return tally.ErrProjectNotFound
	}
	return nil
}

func (s *Store) DeleteProject(ctx context.Context, projectID id.ProjectID) error {
	res, err := s.mdb.NewDelete((*projectModel)(nil)).
		Filter(bson.M{"_id": projectID.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("tally/mongo: delete project: %w", err)
	}
	if res.DeletedCount() == 0 {
		return tally.ErrProjectNotFound
	}
	return nil
}

func (s *Store) IncrementProjectTotals(ctx context.Context, projectID id.ProjectID, minutes, earned int64) error {
	return s.inc(ctx, (*projectModel)(nil), projectID.String(),
		bson.M{"total_minutes": minutes, "total_earned": earned}, tally.ErrProjectNotFound)
}

// ==================== Time Entry Store ====================

func (s *Store) CreateTimeEntry(ctx context.Context, e *timeentry.TimeEntry) error {
	_, err := s.mdb.NewInsert(toTimeEntryModel(e)).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			if strings.Contains(err.Error(), idxRunningTimer) {
				return tally.ErrTimerRunning
			}
			return tally.ErrAlreadyExists
		}
		return fmt.Errorf("tally/mongo: create time entry: %w", err)
	}
	return nil
}

func (s *Store) GetTimeEntry(ctx context.Context, entryID id.TimeEntryID) (*timeentry.TimeEntry, error) {
	var m timeEntryModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": entryID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, tally.ErrTimeEntryNotFound
		}
		return nil, fmt.Errorf("tally/mongo: get time entry: %w", err)
	}
	return fromTimeEntryModel(&m)
}

func (s *Store) GetRunningTimeEntry(ctx context.Context, userID string) (*timeentry.TimeEntry, error) {
	var m timeEntryModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"user_id": userID, "running": true}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, tally.ErrTimeEntryNotFound
		}
		return nil, fmt.Errorf("tally/mongo: get running time entry: %w", err)
	}
	return fromTimeEntryModel(&m)
}

func (s *Store) ListTimeEntries(ctx context.Context, opts timeentry.ListOpts) ([]*timeentry.TimeEntry, error) {
	var models []timeEntryModel

	filter := bson.M{}
	if opts.UserID != "" {
		filter["user_id"] = opts.UserID
	}
	if !opts.ProjectID.IsNil() {
		filter["project_id"] = opts.ProjectID.String()
	}
	if !opts.ClientID.IsNil() {
		filter["client_id"] = opts.ClientID.String()
	}
	if !opts.InvoiceID.IsNil() {
		filter["invoice_id"] = opts.InvoiceID.String()
	}
	if opts.Running != nil {
		filter["running"] = *opts.Running
	}
	if !opts.StartFrom.IsZero() || !opts.StartTo.IsZero() {
		start := bson.M{}
		if !opts.StartFrom.IsZero() {
			start["$gte"] = opts.StartFrom
		}
		if !opts.StartTo.IsZero() {
			start["$lte"] = opts.StartTo
		}
		filter["start_time"] = start
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "start_time", Value: -1}, {Key: "_id", Value: -1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("tally/mongo: list time entries: %w", err)
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
	res, err := s.mdb.NewUpdate((*timeEntryModel)(nil)).
		Filter(bson.M{"_id": m.ID, "running": m.Running}).
		Set("project_id", m.ProjectID).
		Set("client_id", m.ClientID).
		Set("description", m.Description).
		Set("start_time", m.StartTime).
		Set("end_time", m.EndTime).
		Set("currency", m.Currency).
		Set("hourly_rate", m.HourlyRate).
		Set("billable", m.Billable).
		Set("tags", m.Tags).
		Set("duration", m.Duration).
		Set("amount", m.Amount).
		Set("updated_at", m.UpdatedAt).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("tally/mongo: update time entry: %w", err)
	}
	if res.MatchedCount() == 0 {
		return s.missingOr(ctx, colTimeEntries, m.ID, tally.ErrTimeEntryNotFound, tally.ErrConflict)
	}
	return nil
}

func (s *Store) DeleteTimeEntry(ctx context.Context, entryID id.TimeEntryID, running bool) error {
	res, err := s.mdb.NewDelete((*timeEntryModel)(nil)).
		Filter(bson.M{"_id": entryID.String(), "running": running}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("tally/mongo: delete time entry: %w", err)
	}
	if res.DeletedCount() == 0 {
		return s.missingOr(ctx, colTimeEntries, entryID.String(), tally.ErrTimeEntryNotFound, tally.ErrConflict)
	}
	return nil
}

func (s *Store) StopTimeEntry(ctx context.Context, entryID id.TimeEntryID, stop timeentry.Stop) error {
	res, err := s.mdb.NewUpdate((*timeEntryModel)(nil)).
		Filter(bson.M{"_id": entryID.String(), "running": true}).
		Set("end_time", stop.EndTime).
		Set("running", false).
		Set("duration", stop.Duration).
		Set("amount", stop.Amount).
		Set("updated_at", stop.EndTime).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("tally/mongo: stop time entry: %w", err)
	}
	if res.MatchedCount() == 0 {
		return s.missingOr(ctx, colTimeEntries, entryID.String(), tally.ErrTimeEntryNotFound, tally.ErrTimerAlreadyStopped)
	}
	return nil
}

func (s *Store) DeleteTimeEntriesByProject(ctx context.Context, projectID id.ProjectID) (int64, error) {
	res, err := s.mdb.NewDelete((*timeEntryModel)(nil)).
		Filter(bson.M{"project_id": projectID.String()}).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("tally/mongo: delete project time entries: %w", err)
	}
	return res.DeletedCount(), nil
}

func (s *Store) LinkTimeEntries(ctx context.Context, entryIDs []id.TimeEntryID, invoiceID id.InvoiceID) error {
	ids := uniqueIDs(entryIDs)
	if len(ids) == 0 {
		return nil
	}

	var models []timeEntryModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{"_id": bson.M{"$in": ids}}).
		Scan(ctx)
	if err != nil {
		return fmt.Errorf("tally/mongo: link time entries: %w", err)
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

	col := s.mdb.Collection(colTimeEntries)
	res, err := col.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": fresh}, "invoiced": false},
		bson.M{"$set": bson.M{"invoiced": true, "invoice_id": invoiceID.String()}},
	)
	if err != nil {
		return fmt.Errorf("tally/mongo: link time entries: %w", err)
	}
	if res.ModifiedCount == int64(len(fresh)) {
		return nil
	}

	// Another invoice claimed some entries between the read and the update.
	_, err = col.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": fresh}, "invoice_id": invoiceID.String()},
		bson.M{"$set": bson.M{"invoiced": false, "invoice_id": ""}},
	)
	if err != nil {
		return fmt.Errorf("tally/mongo: revert time entry links: %w", err)
	}
	return tally.ErrTimeEntryInvoiced
}

func (s *Store) UnlinkTimeEntries(ctx context.Context, invoiceID id.InvoiceID) error {
	_, err := s.mdb.Collection(colTimeEntries).UpdateMany(ctx,
		bson.M{"invoice_id": invoiceID.String()},
		bson.M{"$set": bson.M{"invoiced": false, "invoice_id": ""}},
	)
	if err != nil {
		return fmt.Errorf("tally/mongo: unlink time entries: %w", err)
	}
	return nil
}

func (s *Store) SumTimeEntries(ctx context.Context, opts timeentry.SumOpts) (timeentry.Totals, error) {
	match := bson.M{"running": false}
	if opts.UserID != "" {
		match["user_id"] = opts.UserID
	}
	if !opts.ProjectID.IsNil() {
		match["project_id"] = opts.ProjectID.String()
	}

	pipeline := bson.A{
		bson.M{"$match": match},
		bson.M{
			"$group": bson.M{
				"_id":     nil,
				"minutes": bson.M{"$sum": "$duration"},
				"amount":  bson.M{"$sum": "$amount"},
			},
		},
	}

	var results []struct {
		Minutes int64 `bson:"minutes"`
		Amount  int64 `bson:"amount"`
	}
	if err := s.aggregate(ctx, colTimeEntries, pipeline, &results); err != nil {
		return timeentry.Totals{}, fmt.Errorf("tally/mongo: sum time entries: %w", err)
	}
	if len(results) == 0 {
		return timeentry.Totals{}, nil
	}
	return timeentry.Totals{Minutes: results[0].Minutes, Amount: results[0].Amount}, nil
}

// ==================== Invoice Store ====================

func (s *Store) CreateInvoice(ctx context.Context, inv *invoice.Invoice) error {
	_, err := s.mdb.NewInsert(toInvoiceModel(inv)).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			if strings.Contains(err.Error(), idxInvoiceNumber) {
				return tally.ErrDuplicateNumber
			}
			return tally.ErrAlreadyExists
		}
		return fmt.Errorf("tally/mongo: create invoice: %w", err)
	}
	return nil
}

func (s *Store) GetInvoice(ctx context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	var m invoiceModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": invID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, tally.ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("tally/mongo: get invoice: %w", err)
	}
	return fromInvoiceModel(&m)
}

func (s *Store) ListInvoices(ctx context.Context, opts invoice.ListOpts) ([]*invoice.Invoice, error) {
	var models []invoiceModel

	filter := bson.M{}
	if opts.UserID != "" {
		filter["user_id"] = opts.UserID
	}
	if !opts.ClientID.IsNil() {
		filter["client_id"] = opts.ClientID.String()
	}
	if !opts.ProjectID.IsNil() {
		filter["project_id"] = opts.ProjectID.String()
	}
	if len(opts.Statuses) > 0 {
		filter["status"] = bson.M{"$in": statusStrings(opts.Statuses)}
	}
	if !opts.DueBefore.IsZero() {
		filter["due_date"] = bson.M{"$lt": opts.DueBefore}
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("tally/mongo: list invoices: %w", err)
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
	res, err := s.mdb.NewUpdate((*invoiceModel)(nil)).
		Filter(bson.M{"_id": m.ID, "status": m.Status}).
		Set("client_id", m.ClientID).
		Set("project_id", m.ProjectID).
		Set("currency", m.Currency).
		Set("line_items", m.LineItems).
		Set("tax_percent", m.TaxPercent).
		Set("discount", m.Discount).
		Set("subtotal", m.Subtotal).
		Set("tax_amount", m.TaxAmount).
		Set("total", m.Total).
		Set("issue_date", m.IssueDate).
		Set("due_date", m.DueDate).
		Set("notes", m.Notes).
		Set("time_entry_ids", m.TimeEntryIDs).
		Set("updated_at", m.UpdatedAt).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("tally/mongo: update invoice: %w", err)
	}
	if res.MatchedCount() == 0 {
		return s.missingOr(ctx, colInvoices, m.ID, tally.ErrInvoiceNotFound, tally.ErrStatusChanged)
	}
	return nil
}

func (s *Store) DeleteInvoice(ctx context.Context, invID id.InvoiceID, status invoice.Status) error {
	res, err := s.mdb.NewDelete((*invoiceModel)(nil)).
		Filter(bson.M{"_id": invID.String(), "status": string(status)}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("tally/mongo: delete invoice: %w", err)
	}
	if res.DeletedCount() == 0 {
		return s.missingOr(ctx, colInvoices, invID.String(), tally.ErrInvoiceNotFound, tally.ErrStatusChanged)
	}
	return nil
}

func (s *Store) TransitionInvoiceStatus(ctx context.Context, invID id.InvoiceID, t invoice.Transition) error {
	set := bson.M{"status": string(t.To), "updated_at": t.At}
	if t.To == invoice.StatusPaid {
		set["paid_at"] = t.At
		set["payment_method"] = t.PaymentMethod
	}

	res, err := s.mdb.NewUpdate((*invoiceModel)(nil)).
		Filter(bson.M{"_id": invID.String(), "status": string(t.From)}).
		SetUpdate(bson.M{"$set": set}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("tally/mongo: transition invoice: %w", err)
	}
	if res.MatchedCount() == 0 {
		return s.missingOr(ctx, colInvoices, invID.String(), tally.ErrInvoiceNotFound, tally.ErrStatusChanged)
	}
	return nil
}

func (s *Store) SumInvoiceTotals(ctx context.Context, opts invoice.SumOpts) (int64, error) {
	match := bson.M{}
	if opts.UserID != "" {
		match["user_id"] = opts.UserID
	}
	if !opts.ClientID.IsNil() {
		match["client_id"] = opts.ClientID.String()
	}
	if len(opts.Statuses) > 0 {
		match["status"] = bson.M{"$in": statusStrings(opts.Statuses)}
	}
	if !opts.PaidFrom.IsZero() || !opts.PaidTo.IsZero() {
		paid := bson.M{}
		if !opts.PaidFrom.IsZero() {
			paid["$gte"] = opts.PaidFrom
		}
		if !opts.PaidTo.IsZero() {
			paid["$lt"] = opts.PaidTo
		}
		match["paid_at"] = paid
	}

	pipeline := bson.A{
		bson.M{"$match": match},
		bson.M{
			"$group": bson.M{
				"_id":   nil,
				"total": bson.M{"$sum": "$total"},
			},
		},
	}

	var results []struct {
		Total int64 `bson:"total"`
	}
	if err := s.aggregate(ctx, colInvoices, pipeline, &results); err != nil {
		return 0, fmt.Errorf("tally/mongo: sum invoices: %w", err)
	}
	if len(results) == 0 {
		return 0, nil
	}
	return results[0].Total, nil
}

// ==================== Payment Store ====================

func (s *Store) CreatePayment(ctx context.Context, p *payment.Payment) error {
	_, err := s.mdb.NewInsert(toPaymentModel(p)).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return tally.ErrAlreadyExists
		}
		return fmt.Errorf("tally/mongo: create payment: %w", err)
	}
	return nil
}

func (s *Store) GetPayment(ctx context.Context, paymentID id.PaymentID) (*payment.Payment, error) {
	var m paymentModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": paymentID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, tally.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("tally/mongo: get payment: %w", err)
	}
	return fromPaymentModel(&m)
}

func (s *Store) GetPaymentByGatewayRef(ctx context.Context, ref string) (*payment.Payment, error) {
	if ref == "" {
		return nil, tally.ErrPaymentNotFound
	}
	var m paymentModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"gateway_ref": ref}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, tally.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("tally/mongo: get payment by gateway ref: %w", err)
	}
	return fromPaymentModel(&m)
}

func (s *Store) ListPayments(ctx context.Context, opts payment.ListOpts) ([]*payment.Payment, error) {
	var models []paymentModel

	filter := bson.M{}
	if opts.UserID != "" {
		filter["user_id"] = opts.UserID
	}
	if !opts.InvoiceID.IsNil() {
		filter["invoice_id"] = opts.InvoiceID.String()
	}
	if !opts.ClientID.IsNil() {
		filter["client_id"] = opts.ClientID.String()
	}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "payment_date", Value: 1}, {Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("tally/mongo: list payments: %w", err)
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
	_, err := s.mdb.NewInsert(toSyncFailureModel(f)).Exec(ctx)
	if err != nil {
		return fmt.Errorf("tally/mongo: enqueue sync failure: %w", err)
	}
	return nil
}

func (s *Store) ListSyncFailures(ctx context.Context, limit int) ([]*aggregate.SyncFailure, error) {
	var models []syncFailureModel

	q := s.mdb.NewFind(&models).
		Filter(bson.M{}).
		Sort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	if limit > 0 {
		q = q.Limit(int64(limit))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("tally/mongo: list sync failures: %w", err)
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
	m := toSyncFailureModel(f)
	res, err := s.mdb.NewUpdate((*syncFailureModel)(nil)).
		Filter(bson.M{"_id": m.ID}).
		Set("error", m.Error).
		Set("attempts", m.Attempts).
		Set("last_attempt", m.LastAttempt).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("tally/mongo: update sync failure: %w", err)
	}
	if res.MatchedCount() == 0 {
		return tally.ErrSyncFailureNotFound
	}
	return nil
}

func (s *Store) DeleteSyncFailure(ctx context.Context, failureID id.SyncFailureID) error {
	res, err := s.mdb.NewDelete((*syncFailureModel)(nil)).
		Filter(bson.M{"_id": failureID.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("tally/mongo: delete sync failure: %w", err)
	}
	if res.DeletedCount() == 0 {
		return tally.ErrSyncFailureNotFound
	}
	return nil
}

// ==================== Sequences ====================

func (s *Store) NextSequence(ctx context.Context, name string) (int64, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var seq sequenceModel
	err := s.mdb.Collection(colSequences).FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"value": int64(1)}},
		opts,
	).Decode(&seq)
	if err != nil {
		return 0, fmt.Errorf("tally/mongo: next sequence: %w", err)
	}
	return seq.Value, nil
}

func (s *Store) ReleaseSequence(ctx context.Context, name string, n int64) (bool, error) {
	res, err := s.mdb.Collection(colSequences).UpdateOne(ctx,
		bson.M{"_id": name, "value": n},
		bson.M{"$inc": bson.M{"value": int64(-1)}},
	)
	if err != nil {
		return false, fmt.Errorf("tally/mongo: release sequence: %w", err)
	}
	return res.ModifiedCount == 1, nil
}

// ==================== Helpers ====================

// inc applies an atomic $inc to the document with the given id.
func (s *Store) inc(ctx context.Context, model any, docID string, fields bson.M, notFound error) error {
	res, err := s.mdb.NewUpdate(model).
		Filter(bson.M{"_id": docID}).
		SetUpdate(bson.M{"$inc": fields}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("tally/mongo: increment: %w", err)
	}
	if res.MatchedCount() == 0 {
		return notFound
	}
	return nil
}

func (s *Store) aggregate(ctx context.Context, col string, pipeline bson.A, results any) error {
	cursor, err := s.mdb.Collection(col).Aggregate(ctx, pipeline)
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)
	return cursor.All(ctx, results)
}

// missingOr reports notFound when the document is gone and otherwise err.
func (s *Store) missingOr(ctx context.Context, col, docID string, notFound, err error) error {
	n, cerr := s.mdb.Collection(col).CountDocuments(ctx, bson.M{"_id": docID})
	if cerr != nil {
		return fmt.Errorf("tally/mongo: count %s: %w", col, cerr)
	}
	if n == 0 {
		return notFound
	}
	return err
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

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all tally collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colClients: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "total_revenue", Value: -1}}},
		},
		colProjects: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "client_id", Value: 1}}},
		},
		colTimeEntries: {
			{
				Keys: bson.D{{Key: "user_id", Value: 1}},
				Options: options.Index().
					SetName(idxRunningTimer).
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"running": true}),
			},
			{Keys: bson.D{{Key: "project_id", Value: 1}, {Key: "start_time", Value: -1}}},
			{Keys: bson.D{{Key: "invoice_id", Value: 1}}},
		},
		colInvoices: {
			{
				Keys:    bson.D{{Key: "number", Value: 1}},
				Options: options.Index().SetName(idxInvoiceNumber).SetUnique(true),
			},
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "due_date", Value: 1}}},
		},
		colPayments: {
			{
				Keys: bson.D{{Key: "gateway_ref", Value: 1}},
				Options: options.Index().
					SetName(idxGatewayRef).
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"gateway_ref": bson.M{"$gt": ""}}),
			},
			{Keys: bson.D{{Key: "invoice_id", Value: 1}, {Key: "payment_date", Value: 1}}},
		},
		colSyncFailures: {
			{Keys: bson.D{{Key: "created_at", Value: 1}}},
		},
	}
}
