package project

import (
	"context"

	"github.com/xraph/tally/id"
)

type Store interface {
	CreateProject(ctx context.Context, p *Project) error
	GetProject(ctx context.Context, projectID id.ProjectID) (*Project, error)
	ListProjects(ctx context.Context, opts ListOpts) ([]*Project, error)
	CountProjects(ctx context.Context, opts ListOpts) (int64, error)
	// UpdateProject writes editable fields. Totals are left alone.
	UpdateProject(ctx context.Context, p *Project) error
	DeleteProject(ctx context.Context, projectID id.ProjectID) error

	// IncrementProjectTotals adds minutes and earned minor units atomically.
	IncrementProjectTotals(ctx context.Context, projectID id.ProjectID, minutes, earned int64) error
}

// ListOpts filters project scans. Results are newest first.
type ListOpts struct {
	UserID   string
	ClientID id.ClientID
	Status   Status
	Limit    int
	Offset   int
}
