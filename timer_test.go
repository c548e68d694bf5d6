package tally_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/xraph/tally"
	"github.com/xraph/tally/timeentry"
)

func TestStartStopTimer(t *testing.T) {
	h := newHarness(t)
	p := h.project(h.client("Acme"), 10000)

	entry, err := h.engine.StartTimer(h.ctx, p.ID, "Homepage")
	if err != nil {
		t.Fatalf("StartTimer: %v", err)
	}
	if !entry.Running() {
		t.Fatal("new timer should be running")
	}
	if !entry.HourlyRate.Equal(p.HourlyRate) {
		t.Errorf("rate snapshot: got %v, want %v", entry.HourlyRate, p.HourlyRate)
	}

	h.clock.Advance(90 * time.Minute)

	active, err := h.engine.ActiveTimer(h.ctx)
	if err != nil {
		t.Fatalf("ActiveTimer: %v", err)
	}
	if active.Elapsed != 90*time.Minute {
		t.Errorf("elapsed: got %v, want 90m", active.Elapsed)
	}

	stopped, err := h.engine.StopTimer(h.ctx, entry.ID)
	if err != nil {
		t.Fatalf("StopTimer: %v", err)
	}
	if stopped.Duration != 90 || stopped.Amount.Amount != 15000 {
		t.Errorf("stopped entry: got %d min / %d, want 90 / 15000", stopped.Duration, stopped.Amount.Amount)
	}
	h.wantProjectTotals(p, 90, 15000)

	if _, err := h.engine.ActiveTimer(h.ctx); !errors.Is(err, tally.ErrTimeEntryNotFound) {
		t.Errorf("ActiveTimer after stop: got %v, want ErrTimeEntryNotFound", err)
	}
}

func TestStartTimerWhileRunning(t *testing.T) {
	h := newHarness(t)
	p := h.project(h.client("Acme"), 10000)

	if _, err := h.engine.StartTimer(h.ctx, p.ID, "first"); err != nil {
		t.Fatalf("StartTimer: %v", err)
	}
	if _, err := h.engine.StartTimer(h.ctx, p.ID, "second"); !errors.Is(err, tally.ErrTimerRunning) {
		t.Errorf("second StartTimer: got %v, want ErrTimerRunning", err)
	}

	// A running manual entry is held to the same rule.
	_, err := h.engine.CreateTimeEntry(h.ctx, tally.TimeEntryInput{
		ProjectID:   p.ID,
		Description: "manual",
		StartTime:   t0,
	})
	if !errors.Is(err, tally.ErrTimerRunning) {
		t.Errorf("running CreateTimeEntry: got %v, want ErrTimerRunning", err)
	}

	// Other users have their own timer.
	other := h.as("user_2")
	if _, err := h.engine.StartTimer(other, p.ID, "theirs"); !errors.Is(err, tally.ErrProjectNotFound) {
		t.Errorf("foreign project: got %v, want ErrProjectNotFound", err)
	}
}

func TestConcurrentStartTimer(t *testing.T) {
	h := newHarness(t)
	p := h.project(h.client("Acme"), 10000)

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.engine.StartTimer(h.ctx, p.ID, "race")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	started := 0
	for err := range errs {
		switch {
		case err == nil:
			started++
		case errors.Is(err, tally.ErrTimerRunning):
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if started != 1 {
		t.Errorf("started %d timers, want 1", started)
	}
}

func TestStopTimerTwice(t *testing.T) {
	h := newHarness(t)
	p := h.project(h.client("Acme"), 6000)

	entry, err := h.engine.StartTimer(h.ctx, p.ID, "once")
	if err != nil {
		t.Fatalf("StartTimer: %v", err)
	}
	h.clock.Advance(30 * time.Minute)

	var wg sync.WaitGroup
	var mu sync.Mutex
	stops := 0
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.engine.StopTimer(h.ctx, entry.ID)
			if err == nil {
				mu.Lock()
				stops++
				mu.Unlock()
				return
			}
			if !errors.Is(err, tally.ErrTimerAlreadyStopped) {
				t.Errorf("StopTimer: %v", err)
			}
		}()
	}
	wg.Wait()

	if stops != 1 {
		t.Errorf("stopped %d times, want 1", stops)
	}
	h.wantProjectTotals(p, 30, 3000)
}

func TestStartTimerValidation(t *testing.T) {
	h := newHarness(t)
	p := h.project(h.client("Acme"), 6000)

	if _, err := h.engine.StartTimer(h.ctx, p.ID, "  "); !tally.IsValidation(err) {
		t.Errorf("blank description: got %v, want validation error", err)
	}
	if _, err := h.engine.StartTimer(t.Context(), p.ID, "anon"); !errors.Is(err, tally.ErrUnauthorized) {
		t.Errorf("no user: got %v, want ErrUnauthorized", err)
	}
}

func TestRunningEntryCannotBeCompletedByUpdate(t *testing.T) {
	h := newHarness(t)
	p := h.project(h.client("Acme"), 6000)

	entry, err := h.engine.StartTimer(h.ctx, p.ID, "open")
	if err != nil {
		t.Fatalf("StartTimer: %v", err)
	}
	end := t0.Add(time.Hour)
	_, err = h.engine.UpdateTimeEntry(h.ctx, entry.ID, tally.TimeEntryInput{
		ProjectID:   p.ID,
		Description: "open",
		StartTime:   entry.StartTime,
		EndTime:     &end,
	})
	if !tally.IsValidation(err) {
		t.Errorf("closing via update: got %v, want validation error", err)
	}

	completed, err := h.engine.ListTimeEntries(h.ctx, timeentry.ListOpts{Running: new(bool)})
	if err != nil {
		t.Fatalf("ListTimeEntries: %v", err)
	}
	if len(completed) != 0 {
		t.Errorf("completed entries: got %d, want 0", len(completed))
	}
}
