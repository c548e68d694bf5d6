// Package memory is an in-process Store for tests, the CLI and single-node
// embedding. Every method holds one mutex, so increments and
// compare-and-set operations are trivially atomic.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/xraph/tally"
	"github.com/xraph/tally/aggregate"
	"github.com/xraph/tally/client"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/invoice"
	"github.com/xraph/tally/payment"
	"github.com/xraph/tally/project"
	"github.com/xraph/tally/store"
	"github.com/xraph/tally/timeentry"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	mu sync.RWMutex

	clients     map[string]*client.Client
	projects    map[string]*project.Project
	entries     map[string]*timeentry.TimeEntry
	invoices    map[string]*invoice.Invoice
	payments    map[string]*payment.Payment
	failures    map[string]*aggregate.SyncFailure
	sequences   map[string]int64
	gatewayRefs map[string]string

	// order records insertion order for stable tie-breaks.
	order   map[string]int64
	counter int64
}

func New() *Store {
	s := &Store{}
	s.reset()
	return s
}

func (s *Store) reset() {
	s.clients = make(map[string]*client.Client)
	s.projects = make(map[string]*project.Project)
	s.entries = make(map[string]*timeentry.TimeEntry)
	s.invoices = make(map[string]*invoice.Invoice)
	s.payments = make(map[string]*payment.Payment)
	s.failures = make(map[string]*aggregate.SyncFailure)
	s.sequences = make(map[string]int64)
	s.gatewayRefs = make(map[string]string)
	s.order = make(map[string]int64)
	s.counter = 0
}

func (s *Store) track(key string) {
	s.counter++
	s.order[key] = s.counter
}

func page[T any](items []T, limit, offset int) []T {
	start := min(offset, len(items))
	end := len(items)
	if limit > 0 && start+limit < end {
		end = start + limit
	}
	return items[start:end]
}

// ==================== Clients ====================

func (s *Store) CreateClient(_ context.Context, c *client.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := c.ID.String()
	if _, exists := s.clients[key]; exists {
		return tally.ErrAlreadyExists
	}
	cp := *c
	s.clients[key] = &cp
	s.track(key)
	return nil
}

func (s *Store) GetClient(_ context.Context, clientID id.ClientID) (*client.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if c, ok := s.clients[clientID.String()]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, tally.ErrClientNotFound
}

func (s *Store) matchClients(opts client.ListOpts) []*client.Client {
	result := make([]*client.Client, 0)
	for _, c := range s.clients {
		if opts.UserID != "" && c.UserID != opts.UserID {
			continue
		}
		if opts.Status != "" && c.Status != opts.Status {
			continue
		}
		cp := *c
		result = append(result, &cp)
	}
	return result
}

func (s *Store) ListClients(_ context.Context, opts client.ListOpts) ([]*client.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := s.matchClients(opts)
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if !opts.ByRevenue {
			return s.order[a.ID.String()] > s.order[b.ID.String()]
		}
		if a.TotalRevenue.Amount != b.TotalRevenue.Amount {
			return a.TotalRevenue.Amount > b.TotalRevenue.Amount
		}
		return s.order[a.ID.String()] < s.order[b.ID.String()]
	})
	return page(result, opts.Limit, opts.Offset), nil
}

func (s *Store) CountClients(_ context.Context, opts client.ListOpts) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.matchClients(opts))), nil
}

func (s *Store) UpdateClient(_ context.Context, c *client.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.clients[c.ID.String()]
	if !ok {
		return tally.ErrClientNotFound
	}
	cp := *c
	cp.CreatedAt = cur.CreatedAt
	cp.TotalRevenue = cur.TotalRevenue
	cp.ProjectCount = cur.ProjectCount
	s.clients[c.ID.String()] = &cp
	return nil
}

func (s *Store) DeleteClient(_ context.Context, clientID id.ClientID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := clientID.String()
	if _, ok := s.clients[key]; !ok {
		return tally.ErrClientNotFound
	}
	for _, p := range s.projects {
		if p.ClientID.String() == key {
			return tally.ErrClientHasProjects
		}
	}
	delete(s.clients, key)
	delete(s.order, key)
	return nil
}

func (s *Store) IncrementClientRevenue(_ context.Context, clientID id.ClientID, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.clients[clientID.String()]
	if !ok {
		return tally.ErrClientNotFound
	}
	c.TotalRevenue.Amount += delta
	return nil
}

func (s *Store) IncrementClientProjectCount(_ context.Context, clientID id.ClientID, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.clients[clientID.String()]
	if !ok {
		return tally.ErrClientNotFound
	}
	c.ProjectCount += delta
	return nil
}

// ==================== Projects ====================

func cloneProject(p *project.Project) *project.Project {
	cp := *p
	cp.Tags = slices.Clone(p.Tags)
	return &cp
}

func (s *Store) CreateProject(_ context.Context, p *project.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := p.ID.String()
	if _, exists := s.projects[key]; exists {
		return tally.ErrAlreadyExists
	}
	s.projects[key] = cloneProject(p)
	s.track(key)
	return nil
}

func (s *Store) GetProject(_ context.Context, projectID id.ProjectID) (*project.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.projects[projectID.String()]; ok {
		return cloneProject(p), nil
	}
	return nil, tally.ErrProjectNotFound
}

func (s *Store) matchProjects(opts project.ListOpts) []*project.Project {
	result := make([]*project.Project, 0)
	for _, p := range s.projects {
		if opts.UserID != "" && p.UserID != opts.UserID {
			continue
		}
		if !opts.ClientID.IsNil() && p.ClientID.String() != opts.ClientID.String() {
			continue
		}
		if opts.Status != "" && p.Status != opts.Status {
			continue
		}
		result = append(result, cloneProject(p))
	}
	return result
}

func (s *Store) ListProjects(_ context.Context, opts project.ListOpts) ([]*project.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := s.matchProjects(opts)
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return s.order[a.ID.String()] > s.order[b.ID.String()]
	})
	return page(result, opts.Limit, opts.Offset), nil
}

func (s *Store) CountProjects(_ context.Context, opts project.ListOpts) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.matchProjects(opts))), nil
}

func (s *Store) UpdateProject(_ context.Context, p *project.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.projects[p.ID.String()]
	if !ok {
		return tally.ErrProjectNotFound
	}
	cp := cloneProject(p)
	cp.CreatedAt = cur.CreatedAt
	cp.TotalMinutes = cur.TotalMinutes
	cp.TotalEarned = cur.TotalEarned
	s.projects[p.ID.String()] = cp
	return nil
}

func (s *Store) DeleteProject(_ context.Context, projectID id.ProjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := projectID.String()
	if _, ok := s.projects[key]; !ok {
		return tally.ErrProjectNotFound
	}
	delete(s.projects, key)
	delete(s.order, key)
	return nil
}

func (s *Store) IncrementProjectTotals(_ context.Context, projectID id.ProjectID, minutes, earned int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[projectID.String()]
	if !ok {
		return tally.ErrProjectNotFound
	}
	p.TotalMinutes += minutes
	p.TotalEarned.Amount += earned
	return nil
}

// ==================== Time entries ====================

func cloneEntry(e *timeentry.TimeEntry) *timeentry.TimeEntry {
	cp := *e
	cp.Tags = slices.Clone(e.Tags)
	if e.EndTime != nil {
		end := *e.EndTime
		cp.EndTime = &end
	}
	return &cp
}

func (s *Store) runningFor(userID string) *timeentry.TimeEntry {
	for _, e := range s.entries {
		if e.UserID == userID && e.Running() {
			return e
		}
	}
	return nil
}

func (s *Store) CreateTimeEntry(_ context.Context, e *timeentry.TimeEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := e.ID.String()
	if _, exists := s.entries[key]; exists {
		return tally.ErrAlreadyExists
	}
	if e.Running() && s.runningFor(e.UserID) != nil {
		return tally.ErrTimerRunning
	}
	s.entries[key] = cloneEntry(e)
	s.track(key)
	return nil
}

func (s *Store) GetTimeEntry(_ context.Context, entryID id.TimeEntryID) (*timeentry.TimeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if e, ok := s.entries[entryID.String()]; ok {
		return cloneEntry(e), nil
	}
	return nil, tally.ErrTimeEntryNotFound
}

func (s *Store) GetRunningTimeEntry(_ context.Context, userID string) (*timeentry.TimeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if e := s.runningFor(userID); e != nil {
		return cloneEntry(e), nil
	}
	return nil, tally.ErrTimeEntryNotFound
}

func (s *Store) ListTimeEntries(_ context.Context, opts timeentry.ListOpts) ([]*timeentry.TimeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*timeentry.TimeEntry, 0)
	for _, e := range s.entries {
		if opts.UserID != "" && e.UserID != opts.UserID {
			continue
		}
		if !opts.ProjectID.IsNil() && e.ProjectID.String() != opts.ProjectID.String() {
			continue
		}
		if !opts.ClientID.IsNil() && e.ClientID.String() != opts.ClientID.String() {
			continue
		}
		if !opts.InvoiceID.IsNil() && e.InvoiceID.String() != opts.InvoiceID.String() {
			continue
		}
		if opts.Running != nil && e.Running() != *opts.Running {
			continue
		}
		if !opts.StartFrom.IsZero() && e.StartTime.Before(opts.StartFrom) {
			continue
		}
		if !opts.StartTo.IsZero() && e.StartTime.After(opts.StartTo) {
			continue
		}
		result = append(result, cloneEntry(e))
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if !a.StartTime.Equal(b.StartTime) {
			return a.StartTime.After(b.StartTime)
		}
		return s.order[a.ID.String()] > s.order[b.ID.String()]
	})
	return page(result, opts.Limit, opts.Offset), nil
}

func (s *Store) UpdateTimeEntry(_ context.Context, e *timeentry.TimeEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.entries[e.ID.String()]
	if !ok {
		return tally.ErrTimeEntryNotFound
	}
	if cur.Running() != e.Running() {
		return tally.ErrConflict
	}
	cp := cloneEntry(e)
	cp.CreatedAt = cur.CreatedAt
	cp.Invoiced = cur.Invoiced
	cp.InvoiceID = cur.InvoiceID
	s.entries[e.ID.String()] = cp
	return nil
}

func (s *Store) DeleteTimeEntry(_ context.Context, entryID id.TimeEntryID, running bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := entryID.String()
	cur, ok := s.entries[key]
	if !ok {
		return tally.ErrTimeEntryNotFound
	}
	if cur.Running() != running {
		return tally.ErrConflict
	}
	delete(s.entries, key)
	delete(s.order, key)
	return nil
}

func (s *Store) StopTimeEntry(_ context.Context, entryID id.TimeEntryID, stop timeentry.Stop) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[entryID.String()]
	if !ok {
		return tally.ErrTimeEntryNotFound
	}
	if !e.Running() {
		return tally.ErrTimerAlreadyStopped
	}
	end := stop.EndTime
	e.EndTime = &end
	e.Duration = stop.Duration
	e.Amount.Amount = stop.Amount
	e.UpdatedAt = stop.EndTime
	return nil
}

func (s *Store) DeleteTimeEntriesByProject(_ context.Context, projectID id.ProjectID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for key, e := range s.entries {
		if e.ProjectID.String() == projectID.String() {
			delete(s.entries, key)
			delete(s.order, key)
			n++
		}
	}
	return n, nil
}

func (s *Store) LinkTimeEntries(_ context.Context, entryIDs []id.TimeEntryID, invoiceID id.InvoiceID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, eid := range entryIDs {
		e, ok := s.entries[eid.String()]
		if !ok {
			return tally.ErrTimeEntryNotFound
		}
		if e.Invoiced && e.InvoiceID.String() != invoiceID.String() {
			return tally.ErrTimeEntryInvoiced
		}
	}
	for _, eid := range entryIDs {
		e := s.entries[eid.String()]
		e.Invoiced = true
		e.InvoiceID = invoiceID
	}
	return nil
}

func (s *Store) UnlinkTimeEntries(_ context.Context, invoiceID id.InvoiceID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries {
		if e.Invoiced && e.InvoiceID.String() == invoiceID.String() {
			e.Invoiced = false
			e.InvoiceID = id.Nil
		}
	}
	return nil
}

func (s *Store) SumTimeEntries(_ context.Context, opts timeentry.SumOpts) (timeentry.Totals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var t timeentry.Totals
	for _, e := range s.entries {
		if e.Running() {
			continue
		}
		if opts.UserID != "" && e.UserID != opts.UserID {
			continue
		}
		if !opts.ProjectID.IsNil() && e.ProjectID.String() != opts.ProjectID.String() {
			continue
		}
		t.Minutes += e.Duration
		t.Amount += e.Amount.Amount
	}
	return t, nil
}

// ==================== Invoices ====================

func cloneInvoice(inv *invoice.Invoice) *invoice.Invoice {
	cp := *inv
	cp.LineItems = slices.Clone(inv.LineItems)
	cp.TimeEntryIDs = slices.Clone(inv.TimeEntryIDs)
	return &cp
}

func (s *Store) CreateInvoice(_ context.Context, inv *invoice.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := inv.ID.String()
	if _, exists := s.invoices[key]; exists {
		return tally.ErrAlreadyExists
	}
	for _, other := range s.invoices {
		if other.Number == inv.Number {
			return tally.ErrDuplicateNumber
		}
	}
	s.invoices[key] = cloneInvoice(inv)
	s.track(key)
	return nil
}

func (s *Store) GetInvoice(_ context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if inv, ok := s.invoices[invID.String()]; ok {
		return cloneInvoice(inv), nil
	}
	return nil, tally.ErrInvoiceNotFound
}

func (s *Store) ListInvoices(_ context.Context, opts invoice.ListOpts) ([]*invoice.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*invoice.Invoice, 0)
	for _, inv := range s.invoices {
		if opts.UserID != "" && inv.UserID != opts.UserID {
			continue
		}
		if !opts.ClientID.IsNil() && inv.ClientID.String() != opts.ClientID.String() {
			continue
		}
		if !opts.ProjectID.IsNil() && inv.ProjectID.String() != opts.ProjectID.String() {
			continue
		}
		if len(opts.Statuses) > 0 && !slices.Contains(opts.Statuses, inv.Status) {
			continue
		}
		if !opts.DueBefore.IsZero() && (inv.DueDate == nil || !inv.DueDate.Before(opts.DueBefore)) {
			continue
		}
		result = append(result, cloneInvoice(inv))
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return s.order[a.ID.String()] > s.order[b.ID.String()]
	})
	return page(result, opts.Limit, opts.Offset), nil
}

func (s *Store) UpdateInvoice(_ context.Context, inv *invoice.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.invoices[inv.ID.String()]
	if !ok {
		return tally.ErrInvoiceNotFound
	}
	if cur.Status != inv.Status {
		return tally.ErrStatusChanged
	}
	cp := cloneInvoice(inv)
	cp.CreatedAt = cur.CreatedAt
	cp.Number = cur.Number
	cp.PaidAt = cur.PaidAt
	cp.PaymentMethod = cur.PaymentMethod
	s.invoices[inv.ID.String()] = cp
	return nil
}

func (s *Store) DeleteInvoice(_ context.Context, invID id.InvoiceID, status invoice.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := invID.String()
	cur, ok := s.invoices[key]
	if !ok {
		return tally.ErrInvoiceNotFound
	}
	if cur.Status != status {
		return tally.ErrStatusChanged
	}
	delete(s.invoices, key)
	delete(s.order, key)
	return nil
}

func (s *Store) TransitionInvoiceStatus(_ context.Context, invID id.InvoiceID, t invoice.Transition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.invoices[invID.String()]
	if !ok {
		return tally.ErrInvoiceNotFound
	}
	if inv.Status != t.From {
		return tally.ErrStatusChanged
	}
	inv.Status = t.To
	inv.UpdatedAt = t.At
	if t.To == invoice.StatusPaid {
		at := t.At
		inv.PaidAt = &at
		inv.PaymentMethod = t.PaymentMethod
	}
	return nil
}

func (s *Store) SumInvoiceTotals(_ context.Context, opts invoice.SumOpts) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	for _, inv := range s.invoices {
		if opts.UserID != "" && inv.UserID != opts.UserID {
			continue
		}
		if !opts.ClientID.IsNil() && inv.ClientID.String() != opts.ClientID.String() {
			continue
		}
		if len(opts.Statuses) > 0 && !slices.Contains(opts.Statuses, inv.Status) {
			continue
		}
		if !opts.PaidFrom.IsZero() || !opts.PaidTo.IsZero() {
			if inv.PaidAt == nil {
				continue
			}
			if !opts.PaidFrom.IsZero() && inv.PaidAt.Before(opts.PaidFrom) {
				continue
			}
			if !opts.PaidTo.IsZero() && !inv.PaidAt.Before(opts.PaidTo) {
				continue
			}
		}
		total += inv.Total.Amount
	}
	return total, nil
}

// ==================== Payments ====================

func (s *Store) CreatePayment(_ context.Context, p *payment.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := p.ID.String()
	if _, exists := s.payments[key]; exists {
		return tally.ErrAlreadyExists
	}
	if p.GatewayRef != "" {
		if _, exists := s.gatewayRefs[p.GatewayRef]; exists {
			return tally.ErrAlreadyExists
		}
		s.gatewayRefs[p.GatewayRef] = key
	}
	cp := *p
	s.payments[key] = &cp
	s.track(key)
	return nil
}

func (s *Store) GetPayment(_ context.Context, paymentID id.PaymentID) (*payment.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.payments[paymentID.String()]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, tally.ErrPaymentNotFound
}

func (s *Store) GetPaymentByGatewayRef(_ context.Context, ref string) (*payment.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if key, ok := s.gatewayRefs[ref]; ok {
		cp := *s.payments[key]
		return &cp, nil
	}
	return nil, tally.ErrPaymentNotFound
}

func (s *Store) ListPayments(_ context.Context, opts payment.ListOpts) ([]*payment.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*payment.Payment, 0)
	for _, p := range s.payments {
		if opts.UserID != "" && p.UserID != opts.UserID {
			continue
		}
		if !opts.InvoiceID.IsNil() && p.InvoiceID.String() != opts.InvoiceID.String() {
			continue
		}
		if !opts.ClientID.IsNil() && p.ClientID.String() != opts.ClientID.String() {
			continue
		}
		if opts.Status != "" && p.Status != opts.Status {
			continue
		}
		cp := *p
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if !a.PaymentDate.Equal(b.PaymentDate) {
			return a.PaymentDate.Before(b.PaymentDate)
		}
		return s.order[a.ID.String()] < s.order[b.ID.String()]
	})
	return page(result, opts.Limit, opts.Offset), nil
}

// ==================== Sync failures ====================

func (s *Store) EnqueueSyncFailure(_ context.Context, f *aggregate.SyncFailure) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := f.ID.String()
	cp := *f
	s.failures[key] = &cp
	s.track(key)
	return nil
}

func (s *Store) ListSyncFailures(_ context.Context, limit int) ([]*aggregate.SyncFailure, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*aggregate.SyncFailure, 0, len(s.failures))
	for _, f := range s.failures {
		cp := *f
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		return s.order[result[i].ID.String()] < s.order[result[j].ID.String()]
	})
	return page(result, limit, 0), nil
}

func (s *Store) UpdateSyncFailure(_ context.Context, f *aggregate.SyncFailure) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.failures[f.ID.String()]; !ok {
		return tally.ErrSyncFailureNotFound
	}
	cp := *f
	s.failures[f.ID.String()] = &cp
	return nil
}

func (s *Store) DeleteSyncFailure(_ context.Context, failureID id.SyncFailureID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := failureID.String()
	if _, ok := s.failures[key]; !ok {
		return tally.ErrSyncFailureNotFound
	}
	delete(s.failures, key)
	delete(s.order, key)
	return nil
}

// ==================== Sequences ====================

func (s *Store) NextSequence(_ context.Context, name string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sequences[name]++
	return s.sequences[name], nil
}

func (s *Store) ReleaseSequence(_ context.Context, name string, n int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sequences[name] != n {
		return false, nil
	}
	s.sequences[name]--
	return true, nil
}

// ==================== Core ====================

func (s *Store) Migrate(_ context.Context) error { return nil }

func (s *Store) Ping(_ context.Context) error { return nil }

func (s *Store) Close() error { return nil }
