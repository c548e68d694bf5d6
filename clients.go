package tally

import (
	"context"

	"github.com/xraph/tally/client"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/types"
)

// ClientInput holds the editable fields of a client.
type ClientInput struct {
	Name    string         `json:"name" validate:"required,max=200"`
	Email   string         `json:"email" validate:"required,email,max=320"`
	Phone   string         `json:"phone" validate:"max=50"`
	Company string         `json:"company" validate:"max=200"`
	Address client.Address `json:"address"`
	Notes   string         `json:"notes" validate:"max=5000"`
	Status  client.Status  `json:"status" validate:"omitempty,oneof=active inactive archived"`
}

func (in ClientInput) apply(c *client.Client) {
	c.Name = in.Name
	c.Email = in.Email
	c.Phone = in.Phone
	c.Company = in.Company
	c.Address = in.Address
	c.Notes = in.Notes
	if in.Status != "" {
		c.Status = in.Status
	}
}

// CreateClient adds a client for the calling user with zero aggregates.
func (e *Engine) CreateClient(ctx context.Context, in ClientInput) (*client.Client, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}

	c := &client.Client{
		Entity:       types.NewEntity(e.clock()),
		ID:           id.NewClientID(),
		UserID:       userID,
		Status:       client.StatusActive,
		TotalRevenue: types.Zero(e.currency),
	}
	in.apply(c)

	if err := e.store.CreateClient(ctx, c); err != nil {
		return nil, err
	}

	e.plugins.EmitClientCreated(ctx, c)
	return c, nil
}

// GetClient returns a client owned by the calling user.
func (e *Engine) GetClient(ctx context.Context, clientID id.ClientID) (*client.Client, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	return e.ownedClient(ctx, userID, clientID)
}

// ListClients lists the calling user's clients.
func (e *Engine) ListClients(ctx context.Context, opts client.ListOpts) ([]*client.Client, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	opts.UserID = userID
	return e.store.ListClients(ctx, opts)
}

// UpdateClient replaces the contact fields of a client. Revenue and project
// count are never written here.
func (e *Engine) UpdateClient(ctx context.Context, clientID id.ClientID, in ClientInput) (*client.Client, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}

	c, err := e.ownedClient(ctx, userID, clientID)
	if err != nil {
		return nil, err
	}
	in.apply(c)
	c.Touch(e.clock())

	if err := e.store.UpdateClient(ctx, c); err != nil {
		return nil, err
	}
	return e.store.GetClient(ctx, clientID)
}

// DeleteClient removes a client that has no projects left. The store
// checks for projects and deletes in one step, and CreateProject drops a
// project whose client vanished under it.
func (e *Engine) DeleteClient(ctx context.Context, clientID id.ClientID) error {
	userID, err := requireUser(ctx)
	if err != nil {
		return err
	}

	c, err := e.ownedClient(ctx, userID, clientID)
	if err != nil {
		return err
	}

	if err := e.store.DeleteClient(ctx, clientID); err != nil {
		return err
	}

	e.plugins.EmitClientDeleted(ctx, c)
	return nil
}

func (e *Engine) ownedClient(ctx context.Context, userID string, clientID id.ClientID) (*client.Client, error) {
	c, err := e.store.GetClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if c.UserID != userID {
		return nil, ErrClientNotFound
	}
	return c, nil
}
