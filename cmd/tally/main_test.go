package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xraph/tally/aggregate"
	"github.com/xraph/tally/client"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/store/memory"
	"github.com/xraph/tally/types"
)

func writeLedger(t *testing.T, dir string) string {
	t.Helper()

	c := &client.Client{
		Entity:       types.NewEntity(time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)),
		ID:           id.NewClientID(),
		UserID:       "user_1",
		Name:         "Acme",
		Email:        "billing@acme.test",
		Status:       client.StatusActive,
		TotalRevenue: types.USD(50000),
		ProjectCount: 2,
	}

	var buf bytes.Buffer
	if err := memory.WriteSnapshot(&buf, &memory.Snapshot{Clients: []*client.Client{c}}); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "ledger.json")
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func TestReconcileCorrectsSnapshot(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	in := writeLedger(t, dir)
	out := filepath.Join(dir, "fixed.json")

	stdout, err := run(t, "reconcile", "--snapshot", in, "--out", out, "--report-json")
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	var report aggregate.Report
	if err := json.Unmarshal([]byte(stdout), &report); err != nil {
		t.Fatalf("decode report: %v\n%s", err, stdout)
	}
	if len(report.Drifts) != 2 {
		t.Fatalf("expected revenue and project count drift, got %+v", report.Drifts)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	snap, err := memory.ReadSnapshot(f)
	if err != nil {
		t.Fatal(err)
	}
	if got := snap.Clients[0]; got.TotalRevenue.Amount != 0 || got.ProjectCount != 0 {
		t.Errorf("corrected client: revenue %d, projects %d", got.TotalRevenue.Amount, got.ProjectCount)
	}
}

func TestReportWritesWorkbook(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	in := writeLedger(t, dir)
	out := filepath.Join(dir, "report.xlsx")

	if _, err := run(t, "report", "--snapshot", in, "--user", "user_1", "--out", out); err != nil {
		t.Fatalf("report: %v", err)
	}
	info, err := os.Stat(out)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() == 0 {
		t.Error("empty workbook")
	}
}

func TestCommandErrors(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"reconcile without snapshot", []string{"reconcile"}, "--snapshot"},
		{"report without user", []string{"report", "--snapshot", "x.json"}, "--user"},
		{"sequence without redis", []string{"sequence", "peek"}, "Redis address"},
		{"seed bad value", []string{"sequence", "seed", "abc"}, "non-negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("got %v, want error containing %q", err, tt.want)
			}
		})
	}
}
