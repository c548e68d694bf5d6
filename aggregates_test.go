package tally_test

import (
	"errors"
	"testing"
	"time"

	"github.com/xraph/tally"
	"github.com/xraph/tally/client"
	"github.com/xraph/tally/project"
	"github.com/xraph/tally/timeentry"
)

func TestProjectCountFollowsProjects(t *testing.T) {
	h := newHarness(t)
	acme := h.client("Acme")
	globex := h.client("Globex")

	p1 := h.project(acme, 5000)
	h.project(acme, 5000)

	if got := h.reloadClient(acme).ProjectCount; got != 2 {
		t.Fatalf("after create: got %d, want 2", got)
	}

	in := tally.ProjectInput{ClientID: globex.ID, Name: "Moved", HourlyRate: 5000}
	if _, err := h.engine.UpdateProject(h.ctx, p1.ID, in); err != nil {
		t.Fatalf("UpdateProject: %v", err)
	}
	if got := h.reloadClient(acme).ProjectCount; got != 1 {
		t.Errorf("old client after move: got %d, want 1", got)
	}
	if got := h.reloadClient(globex).ProjectCount; got != 1 {
		t.Errorf("new client after move: got %d, want 1", got)
	}

	if err := h.engine.DeleteProject(h.ctx, p1.ID); err != nil {
		t.Fatalf("DeleteProject: %v", err)
	}
	if got := h.reloadClient(globex).ProjectCount; got != 0 {
		t.Errorf("after delete: got %d, want 0", got)
	}
}

func TestTimeEntryDeltas(t *testing.T) {
	h := newHarness(t)
	c := h.client("Acme")
	p := h.project(c, 10000)
	other := h.project(c, 6000)

	entry := h.entry(p, t0, 90*time.Minute)
	h.wantProjectTotals(p, 90, 15000)

	// Same project, longer interval.
	end := t0.Add(2 * time.Hour)
	updated, err := h.engine.UpdateTimeEntry(h.ctx, entry.ID, tally.TimeEntryInput{
		ProjectID:   p.ID,
		Description: "longer",
		StartTime:   t0,
		EndTime:     &end,
	})
	if err != nil {
		t.Fatalf("UpdateTimeEntry: %v", err)
	}
	if updated.Duration != 120 || updated.Amount.Amount != 20000 {
		t.Errorf("updated entry: got %d min / %d", updated.Duration, updated.Amount.Amount)
	}
	h.wantProjectTotals(p, 120, 20000)

	// Moving captures the target's rate.
	moved, err := h.engine.UpdateTimeEntry(h.ctx, entry.ID, tally.TimeEntryInput{
		ProjectID:   other.ID,
		Description: "moved",
		StartTime:   t0,
		EndTime:     &end,
	})
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if moved.HourlyRate.Amount != 6000 || moved.Amount.Amount != 12000 {
		t.Errorf("moved entry: rate %d amount %d, want 6000 / 12000", moved.HourlyRate.Amount, moved.Amount.Amount)
	}
	h.wantProjectTotals(p, 0, 0)
	h.wantProjectTotals(other, 120, 12000)

	if err := h.engine.DeleteTimeEntry(h.ctx, entry.ID); err != nil {
		t.Fatalf("DeleteTimeEntry: %v", err)
	}
	h.wantProjectTotals(other, 0, 0)
}

func TestRateChangeDoesNotRewriteEntries(t *testing.T) {
	h := newHarness(t)
	c := h.client("Acme")
	p := h.project(c, 10000)

	h.entry(p, t0, time.Hour)

	in := tally.ProjectInput{ClientID: c.ID, Name: p.Name, HourlyRate: 20000}
	if _, err := h.engine.UpdateProject(h.ctx, p.ID, in); err != nil {
		t.Fatalf("UpdateProject: %v", err)
	}
	h.wantProjectTotals(p, 60, 10000)

	h.entry(p, t0.Add(2*time.Hour), time.Hour)
	h.wantProjectTotals(p, 120, 30000)
}

func TestDeleteProjectCascadesEntries(t *testing.T) {
	h := newHarness(t)
	c := h.client("Acme")
	p := h.project(c, 10000)
	h.entry(p, t0, time.Hour)
	h.entry(p, t0.Add(time.Hour), time.Hour)

	if err := h.engine.DeleteProject(h.ctx, p.ID); err != nil {
		t.Fatalf("DeleteProject: %v", err)
	}
	entries, err := h.store.ListTimeEntries(h.ctx, timeentryOpts(p))
	if err != nil {
		t.Fatalf("ListTimeEntries: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("entries left: %d", len(entries))
	}
}

func TestDeleteClientWithProjects(t *testing.T) {
	h := newHarness(t)
	c := h.client("Acme")
	p := h.project(c, 1000)

	if err := h.engine.DeleteClient(h.ctx, c.ID); !errors.Is(err, tally.ErrClientHasProjects) {
		t.Fatalf("DeleteClient: got %v, want ErrClientHasProjects", err)
	}
	if err := h.engine.DeleteProject(h.ctx, p.ID); err != nil {
		t.Fatalf("DeleteProject: %v", err)
	}
	if err := h.engine.DeleteClient(h.ctx, c.ID); err != nil {
		t.Fatalf("DeleteClient: %v", err)
	}
	if _, err := h.engine.GetClient(h.ctx, c.ID); !errors.Is(err, tally.ErrClientNotFound) {
		t.Errorf("GetClient after delete: got %v", err)
	}
}

func TestOwnership(t *testing.T) {
	h := newHarness(t)
	c := h.client("Acme")
	p := h.project(c, 1000)
	other := h.as("user_2")

	if _, err := h.engine.GetClient(other, c.ID); !errors.Is(err, tally.ErrClientNotFound) {
		t.Errorf("GetClient: got %v, want ErrClientNotFound", err)
	}
	if _, err := h.engine.GetProject(other, p.ID); !errors.Is(err, tally.ErrProjectNotFound) {
		t.Errorf("GetProject: got %v, want ErrProjectNotFound", err)
	}
	if _, err := h.engine.CreateProject(other, tally.ProjectInput{ClientID: c.ID, Name: "x"}); !errors.Is(err, tally.ErrClientNotFound) {
		t.Errorf("CreateProject on foreign client: got %v", err)
	}

	list, err := h.engine.ListProjects(other, project.ListOpts{})
	if err != nil {
		t.Fatalf("ListProjects: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("foreign projects visible: %d", len(list))
	}
}

func TestClientValidation(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name  string
		in    tally.ClientInput
		field string
	}{
		{"missing name", tally.ClientInput{Email: "a@b.co"}, "name"},
		{"bad email", tally.ClientInput{Name: "A", Email: "nope"}, "email"},
		{"bad status", tally.ClientInput{Name: "A", Email: "a@b.co", Status: "gone"}, "status"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.engine.CreateClient(h.ctx, tt.in)
			var ve tally.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("got %v, want ValidationError", err)
			}
			if ve.Field != tt.field {
				t.Errorf("field: got %q, want %q", ve.Field, tt.field)
			}
		})
	}
}

func TestDeleteTimeEntryLosesToStop(t *testing.T) {
	h := newHarness(t)
	c := h.client("Acme")
	p := h.project(c, 6000)

	running, err := h.engine.StartTimer(h.ctx, p.ID, "support")
	if err != nil {
		t.Fatalf("StartTimer: %v", err)
	}
	h.clock.Advance(30 * time.Minute)

	stop := func() {
		if _, err := h.engine.StopTimer(h.ctx, running.ID); err != nil {
			t.Errorf("StopTimer: %v", err)
		}
	}
	h.store.afterGetTimeEntry.Store(&stop)

	if err := h.engine.DeleteTimeEntry(h.ctx, running.ID); !errors.Is(err, tally.ErrConflict) {
		t.Fatalf("DeleteTimeEntry: got %v, want ErrConflict", err)
	}
	h.wantProjectTotals(p, 30, 3000)

	// The stopped entry can still be deleted, and takes its totals along.
	if err := h.engine.DeleteTimeEntry(h.ctx, running.ID); err != nil {
		t.Fatalf("DeleteTimeEntry: %v", err)
	}
	h.wantProjectTotals(p, 0, 0)
}

func TestListTimeEntriesByStartRange(t *testing.T) {
	h := newHarness(t)
	c := h.client("Acme")
	p := h.project(c, 6000)

	day := 24 * time.Hour
	for i := range 4 {
		h.entry(p, t0.Add(time.Duration(i)*day), time.Hour)
	}

	tests := []struct {
		name     string
		from, to time.Time
		want     int
	}{
		{"open", time.Time{}, time.Time{}, 4},
		{"from inclusive", t0.Add(2 * day), time.Time{}, 2},
		{"to inclusive", time.Time{}, t0.Add(day), 2},
		{"window", t0.Add(day), t0.Add(2 * day), 2},
		{"empty", t0.Add(10 * day), time.Time{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := h.engine.ListTimeEntries(h.ctx, timeentry.ListOpts{StartFrom: tt.from, StartTo: tt.to})
			if err != nil {
				t.Fatalf("ListTimeEntries: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d entries, want %d", len(got), tt.want)
			}
		})
	}
}

func TestCreateProjectForDeletedClient(t *testing.T) {
	h := newHarness(t)
	c := h.client("Acme")

	// The client vanishes between the ownership check and the insert.
	vanish := func() {
		if err := h.store.DeleteClient(h.ctx, c.ID); err != nil {
			t.Errorf("DeleteClient: %v", err)
		}
	}
	h.store.afterGetClient.Store(&vanish)

	_, err := h.engine.CreateProject(h.ctx, tally.ProjectInput{ClientID: c.ID, Name: "Late", HourlyRate: 1000})
	if !tally.IsNotFound(err) {
		t.Fatalf("CreateProject: got %v, want not found", err)
	}
	n, err := h.store.CountProjects(h.ctx, project.ListOpts{ClientID: c.ID})
	if err != nil {
		t.Fatalf("CountProjects: %v", err)
	}
	if n != 0 {
		t.Errorf("orphaned projects: %d", n)
	}
}

func TestStoreRefusesClientWithProjects(t *testing.T) {
	h := newHarness(t)
	c := h.client("Acme")
	h.project(c, 1000)

	if err := h.store.DeleteClient(h.ctx, c.ID); !errors.Is(err, tally.ErrClientHasProjects) {
		t.Errorf("store DeleteClient: got %v, want ErrClientHasProjects", err)
	}
}

func TestListClientsNewestFirst(t *testing.T) {
	h := newHarness(t)
	first := h.client("First")
	h.clock.Advance(time.Minute)
	second := h.client("Second")

	got, err := h.engine.ListClients(h.ctx, client.ListOpts{})
	if err != nil {
		t.Fatalf("ListClients: %v", err)
	}
	if len(got) != 2 || got[0].ID != second.ID || got[1].ID != first.ID {
		t.Errorf("order: got %v, want Second then First", names(got))
	}
}

func names(cs []*client.Client) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Name
	}
	return out
}
