package aggregate

import "time"

// Drift is one derived field whose stored value differed from the value
// recomputed from source records.
type Drift struct {
	Kind     Kind   `json:"kind"`
	TargetID string `json:"target_id"`
	Name     string `json:"name"`
	Field    string `json:"field"`
	Stored   int64  `json:"stored"`
	Actual   int64  `json:"actual"`
	// Corrected is set when the compensating increment was applied.
	Corrected bool `json:"corrected"`
}

// Diff is the increment that brings Stored to Actual.
func (d Drift) Diff() int64 {
	return d.Actual - d.Stored
}

// Report summarises a reconciliation pass.
type Report struct {
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	ClientsChecked  int       `json:"clients_checked"`
	ProjectsChecked int       `json:"projects_checked"`
	Drifts          []Drift   `json:"drifts"`
	// Purged counts queued sync failures the recomputed totals superseded.
	Purged int64    `json:"purged"`
	Errors []string `json:"errors,omitempty"`
}

// Clean reports whether every aggregate matched its source records.
func (r *Report) Clean() bool {
	return len(r.Drifts) == 0 && len(r.Errors) == 0
}
