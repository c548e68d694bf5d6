package main

import (
	"fmt"
	"os"

	"github.com/xraph/tally"
	"github.com/xraph/tally/store/memory"
)

// openSnapshot loads a JSON ledger export into a memory store and builds
// an engine over it. Background workers are not started.
func (c *cli) openSnapshot(path string) (*tally.Engine, *memory.Store, error) {
	if path == "" {
		return nil, nil, fmt.Errorf("--snapshot is required")
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	snap, err := memory.ReadSnapshot(f)
	if err != nil {
		return nil, nil, err
	}

	st := memory.New()
	if err := st.Load(snap); err != nil {
		return nil, nil, fmt.Errorf("load snapshot %s: %w", path, err)
	}

	// Redis and the gateway are never needed for snapshot jobs.
	cfg := c.cfg
	cfg.Stripe.SecretKey = ""
	opts, err := cfg.EngineOptions(c.engineLogger(), nil)
	if err != nil {
		return nil, nil, err
	}
	return tally.New(st, opts...), st, nil
}

func writeSnapshot(path string, st *memory.Store) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	if err := memory.WriteSnapshot(f, st.Snapshot()); err != nil {
		_ = f.Close() //nolint:errcheck // write error takes precedence
		return err
	}
	return f.Close()
}
