package memory

import (
	"cmp"
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/xraph/tally/aggregate"
	"github.com/xraph/tally/client"
	"github.com/xraph/tally/invoice"
	"github.com/xraph/tally/payment"
	"github.com/xraph/tally/project"
	"github.com/xraph/tally/timeentry"
)

// Snapshot is a JSON-portable dump of a store. Aggregates are exported as
// stored, so a snapshot taken from a drifted database still shows the drift.
type Snapshot struct {
	Clients      []*client.Client         `json:"clients"`
	Projects     []*project.Project       `json:"projects"`
	TimeEntries  []*timeentry.TimeEntry   `json:"time_entries"`
	Invoices     []*invoice.Invoice       `json:"invoices"`
	Payments     []*payment.Payment       `json:"payments"`
	SyncFailures []*aggregate.SyncFailure `json:"sync_failures,omitempty"`
	Sequences    map[string]int64         `json:"sequences,omitempty"`
}

// Load replaces the store contents with snap. Records keep the order in
// which they appear.
func (s *Store) Load(snap *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reset()

	for _, c := range snap.Clients {
		cp := *c
		s.clients[c.ID.String()] = &cp
		s.track(c.ID.String())
	}
	for _, p := range snap.Projects {
		s.projects[p.ID.String()] = cloneProject(p)
		s.track(p.ID.String())
	}
	for _, e := range snap.TimeEntries {
		s.entries[e.ID.String()] = cloneEntry(e)
		s.track(e.ID.String())
	}
	for _, inv := range snap.Invoices {
		s.invoices[inv.ID.String()] = cloneInvoice(inv)
		s.track(inv.ID.String())
	}
	for _, p := range snap.Payments {
		cp := *p
		s.payments[p.ID.String()] = &cp
		if p.GatewayRef != "" {
			s.gatewayRefs[p.GatewayRef] = p.ID.String()
		}
		s.track(p.ID.String())
	}
	for _, f := range snap.SyncFailures {
		cp := *f
		s.failures[f.ID.String()] = &cp
		s.track(f.ID.String())
	}
	for name, n := range snap.Sequences {
		s.sequences[name] = n
	}
	return nil
}

// Snapshot exports the store contents in insertion order.
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &Snapshot{Sequences: make(map[string]int64, len(s.sequences))}
	for _, c := range s.clients {
		cp := *c
		snap.Clients = append(snap.Clients, &cp)
	}
	for _, p := range s.projects {
		snap.Projects = append(snap.Projects, cloneProject(p))
	}
	for _, e := range s.entries {
		snap.TimeEntries = append(snap.TimeEntries, cloneEntry(e))
	}
	for _, inv := range s.invoices {
		snap.Invoices = append(snap.Invoices, cloneInvoice(inv))
	}
	for _, p := range s.payments {
		cp := *p
		snap.Payments = append(snap.Payments, &cp)
	}
	for _, f := range s.failures {
		cp := *f
		snap.SyncFailures = append(snap.SyncFailures, &cp)
	}
	for name, n := range s.sequences {
		snap.Sequences[name] = n
	}

	sortByOrder(s, snap.Clients, func(c *client.Client) string { return c.ID.String() })
	sortByOrder(s, snap.Projects, func(p *project.Project) string { return p.ID.String() })
	sortByOrder(s, snap.TimeEntries, func(e *timeentry.TimeEntry) string { return e.ID.String() })
	sortByOrder(s, snap.Invoices, func(inv *invoice.Invoice) string { return inv.ID.String() })
	sortByOrder(s, snap.Payments, func(p *payment.Payment) string { return p.ID.String() })
	sortByOrder(s, snap.SyncFailures, func(f *aggregate.SyncFailure) string { return f.ID.String() })
	return snap
}

func sortByOrder[T any](s *Store, items []T, key func(T) string) {
	slices.SortFunc(items, func(a, b T) int {
		return cmp.Compare(s.order[key(a)], s.order[key(b)])
	})
}

// ReadSnapshot decodes a JSON snapshot.
func ReadSnapshot(r io.Reader) (*Snapshot, error) {
	var snap Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("memory: decode snapshot: %w", err)
	}
	return &snap, nil
}

// WriteSnapshot encodes snap as indented JSON.
func WriteSnapshot(w io.Writer, snap *Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("memory: encode snapshot: %w", err)
	}
	return nil
}
