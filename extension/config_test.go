package extension

import (
	"testing"
	"time"
)

func TestMergeWithDefaults(t *testing.T) {
	cfg := mergeWithDefaults(Config{})
	want := DefaultConfig()

	if cfg.Currency != want.Currency || cfg.InvoicePrefix != want.InvoicePrefix || cfg.InvoiceWidth != want.InvoiceWidth {
		t.Errorf("got %+v, want defaults", cfg.Config)
	}
	if cfg.SyncRetry != want.SyncRetry {
		t.Errorf("sync retry: got %+v, want %+v", cfg.SyncRetry, want.SyncRetry)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("merged defaults should validate: %v", err)
	}
}

func TestMergeConfigurations(t *testing.T) {
	yaml := Config{}
	yaml.Currency = "eur"
	yaml.ReconcileInterval = 10 * time.Minute

	prog := Config{DisableMigrate: true}
	prog.Currency = "usd"
	prog.InvoicePrefix = "F-"
	prog.Stripe.SecretKey = "sk_test"

	got := mergeConfigurations(yaml, prog)

	tests := []struct {
		name string
		ok   bool
	}{
		{"yaml currency wins", got.Currency == "eur"},
		{"yaml interval wins", got.ReconcileInterval == 10*time.Minute},
		{"programmatic prefix fills gap", got.InvoicePrefix == "F-"},
		{"programmatic stripe key fills gap", got.Stripe.SecretKey == "sk_test"},
		{"programmatic bool flag", got.DisableMigrate},
		{"default fills remaining", got.OverdueSweepInterval == time.Hour},
	}
	for _, tt := range tests {
		if !tt.ok {
			t.Errorf("%s: got %+v", tt.name, got)
		}
	}
}
