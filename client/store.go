package client

import (
	"context"

	"github.com/xraph/tally/id"
)

type Store interface {
	CreateClient(ctx context.Context, c *Client) error
	GetClient(ctx context.Context, clientID id.ClientID) (*Client, error)
	ListClients(ctx context.Context, opts ListOpts) ([]*Client, error)
	CountClients(ctx context.Context, opts ListOpts) (int64, error)
	// UpdateClient writes contact fields and status. Aggregates are left alone.
	UpdateClient(ctx context.Context, c *Client) error
	// DeleteClient returns tally.ErrClientHasProjects while any project
	// still belongs to the client.
	DeleteClient(ctx context.Context, clientID id.ClientID) error

	IncrementClientRevenue(ctx context.Context, clientID id.ClientID, delta int64) error
	IncrementClientProjectCount(ctx context.Context, clientID id.ClientID, delta int64) error
}

// ListOpts filters client scans. An empty UserID scans every user.
type ListOpts struct {
	UserID string
	Status Status
	// ByRevenue orders by total revenue descending, ties oldest first.
	// Without it clients are listed newest first.
	ByRevenue bool
	Limit     int
	Offset    int
}
