package aggregate_test

import (
	"testing"

	"github.com/xraph/tally/aggregate"
	"github.com/xraph/tally/id"
)

func TestDeltaNegate(t *testing.T) {
	d := aggregate.ProjectTotals(id.NewProjectID(), 90, 15000, "timer_stopped")
	n := d.Negate()
	if n.Minutes != -90 || n.Amount != -15000 {
		t.Errorf("got %+v", n)
	}
	if n.Kind != d.Kind || n.TargetID != d.TargetID {
		t.Error("negate must keep kind and target")
	}
}

func TestDeltaZero(t *testing.T) {
	tests := []struct {
		name string
		d    aggregate.Delta
		want bool
	}{
		{"empty project totals", aggregate.ProjectTotals(id.NewProjectID(), 0, 0, "update"), true},
		{"minutes only", aggregate.ProjectTotals(id.NewProjectID(), 5, 0, "update"), false},
		{"revenue", aggregate.ClientRevenue(id.NewClientID(), 100, "paid"), false},
		{"projects", aggregate.ClientProjects(id.NewClientID(), -1, "deleted"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.d.Zero(); got != tt.want {
				t.Errorf("Zero() = %v, want %v", got, tt.want)
			}
		})
	}
}
