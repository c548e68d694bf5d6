package timeentry_test

import (
	"testing"
	"time"

	"github.com/xraph/tally/timeentry"
	"github.com/xraph/tally/types"
)

func at(h, m, s int) time.Time {
	return time.Date(2026, 5, 4, h, m, s, 0, time.UTC)
}

func TestDerive(t *testing.T) {
	tests := []struct {
		name     string
		start    time.Time
		end      time.Time
		rate     int64
		duration int64
		amount   int64
	}{
		{"ninety minutes", at(10, 0, 0), at(11, 30, 0), 10000, 90, 15000},
		{"rounds down below half minute", at(10, 0, 0), at(10, 10, 29), 6000, 10, 1000},
		{"rounds up at half minute", at(10, 0, 0), at(10, 10, 30), 6000, 11, 1100},
		{"amount rounds half even", at(9, 0, 0), at(9, 1, 0), 30, 1, 0},
		{"amount rounds half even up", at(9, 0, 0), at(9, 1, 0), 90, 1, 2},
		{"zero length", at(9, 0, 0), at(9, 0, 0), 10000, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			end := tt.end
			e := &timeentry.TimeEntry{StartTime: tt.start, EndTime: &end, HourlyRate: types.USD(tt.rate)}
			e.Derive()
			if e.Duration != tt.duration {
				t.Errorf("duration: got %d, want %d", e.Duration, tt.duration)
			}
			if e.Amount.Amount != tt.amount {
				t.Errorf("amount: got %d, want %d", e.Amount.Amount, tt.amount)
			}
		})
	}
}

func TestRunningEntry(t *testing.T) {
	e := &timeentry.TimeEntry{StartTime: at(10, 0, 0), HourlyRate: types.USD(10000)}
	e.Derive()

	if !e.Running() {
		t.Fatal("entry without end time should be running")
	}
	if m, a := e.Contribution(); m != 0 || a != 0 {
		t.Errorf("running contribution: got %d/%d", m, a)
	}
	if got := e.Elapsed(at(10, 45, 0)); got != 45*time.Minute {
		t.Errorf("elapsed: got %v", got)
	}
}

func TestContribution(t *testing.T) {
	end := at(11, 30, 0)
	e := &timeentry.TimeEntry{StartTime: at(10, 0, 0), EndTime: &end, HourlyRate: types.USD(10000)}
	e.Derive()

	m, a := e.Contribution()
	if m != 90 || a != 15000 {
		t.Errorf("got %d minutes / %d cents, want 90 / 15000", m, a)
	}
	if got := e.Elapsed(at(23, 0, 0)); got != 90*time.Minute {
		t.Errorf("elapsed of completed entry: got %v", got)
	}
}
