package tally

import (
	"context"
	"slices"
	"time"

	"github.com/xraph/tally/aggregate"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/project"
	"github.com/xraph/tally/types"
)

// ProjectInput holds the editable fields of a project. Rates are minor
// units of the ledger currency.
type ProjectInput struct {
	ClientID    id.ClientID         `json:"client_id"`
	Name        string              `json:"name" validate:"required,max=200"`
	Description string              `json:"description" validate:"max=5000"`
	Status      project.Status      `json:"status" validate:"omitempty,oneof=planning in-progress on-hold completed cancelled"`
	Priority    project.Priority    `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	BillingType project.BillingType `json:"billing_type" validate:"omitempty,oneof=hourly fixed retainer"`
	HourlyRate  int64               `json:"hourly_rate" validate:"gte=0"`
	Budget      int64               `json:"budget" validate:"gte=0"`
	StartDate   *time.Time          `json:"start_date"`
	EndDate     *time.Time          `json:"end_date"`
	Tags        []string            `json:"tags" validate:"max=20,dive,required,max=50"`
}

func (in ProjectInput) check() error {
	if err := validateInput(in); err != nil {
		return err
	}
	if in.ClientID.IsNil() {
		return ValidationError{Field: "client_id", Message: "is required"}
	}
	if in.StartDate != nil && in.EndDate != nil && in.EndDate.Before(*in.StartDate) {
		return ValidationError{Field: "end_date", Message: "must not be before start_date"}
	}
	return nil
}

func (in ProjectInput) apply(p *project.Project, currency string) {
	p.ClientID = in.ClientID
	p.Name = in.Name
	p.Description = in.Description
	if in.Status != "" {
		p.Status = in.Status
	}
	if in.Priority != "" {
		p.Priority = in.Priority
	}
	if in.BillingType != "" {
		p.BillingType = in.BillingType
	}
	p.HourlyRate = types.NewMoney(in.HourlyRate, currency)
	p.Budget = types.NewMoney(in.Budget, currency)
	p.StartDate = in.StartDate
	p.EndDate = in.EndDate
	p.Tags = slices.Clone(in.Tags)
}

// CreateProject adds a project and counts it against its client.
func (e *Engine) CreateProject(ctx context.Context, in ProjectInput) (*project.Project, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := in.check(); err != nil {
		return nil, err
	}
	if _, err := e.ownedClient(ctx, userID, in.ClientID); err != nil {
		return nil, err
	}

	p := &project.Project{
		Entity:      types.NewEntity(e.clock()),
		ID:          id.NewProjectID(),
		UserID:      userID,
		Status:      project.StatusPlanning,
		Priority:    project.PriorityMedium,
		BillingType: project.BillingHourly,
		TotalEarned: types.Zero(e.currency),
	}
	in.apply(p, e.currency)

	e.aggMu.RLock()
	if err := e.store.CreateProject(ctx, p); err != nil {
		e.aggMu.RUnlock()
		return nil, err
	}
	// DeleteClient refuses while projects exist; a client deleted between
	// the ownership check and the insert takes the new project with it.
	if _, err := e.store.GetClient(ctx, p.ClientID); err != nil {
		e.aggMu.RUnlock()
		if delErr := e.store.DeleteProject(context.WithoutCancel(ctx), p.ID); delErr != nil {
			e.logger.Error("orphaned project after client delete",
				"project_id", p.ID.String(),
				"error", delErr,
			)
		}
		return nil, err
	}
	e.applyDeltas(ctx, aggregate.ClientProjects(p.ClientID, 1, "project_created"))
	e.aggMu.RUnlock()

	e.plugins.EmitProjectCreated(ctx, p)
	return p, nil
}

// GetProject returns a project owned by the calling user.
func (e *Engine) GetProject(ctx context.Context, projectID id.ProjectID) (*project.Project, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	return e.ownedProject(ctx, userID, projectID)
}

// ListProjects lists the calling user's projects, newest first.
func (e *Engine) ListProjects(ctx context.Context, opts project.ListOpts) ([]*project.Project, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	opts.UserID = userID
	return e.store.ListProjects(ctx, opts)
}

// UpdateProject rewrites the editable fields. Moving the project to another
// client moves its count. Totals are untouched.
func (e *Engine) UpdateProject(ctx context.Context, projectID id.ProjectID, in ProjectInput) (*project.Project, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := in.check(); err != nil {
		return nil, err
	}

	p, err := e.ownedProject(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	oldClient := p.ClientID
	moved := oldClient.String() != in.ClientID.String()
	if moved {
		if _, err := e.ownedClient(ctx, userID, in.ClientID); err != nil {
			return nil, err
		}
	}

	in.apply(p, e.currency)
	p.Touch(e.clock())

	e.aggMu.RLock()
	if err := e.store.UpdateProject(ctx, p); err != nil {
		e.aggMu.RUnlock()
		return nil, err
	}
	if moved {
		e.applyDeltas(ctx,
			aggregate.ClientProjects(oldClient, -1, "project_moved"),
			aggregate.ClientProjects(in.ClientID, 1, "project_moved"),
		)
	}
	e.aggMu.RUnlock()

	if moved {
		e.logger.Info("project moved",
			"project_id", projectID.String(),
			"from_client", oldClient.String(),
			"to_client", in.ClientID.String(),
		)
	}

	return e.store.GetProject(ctx, projectID)
}

// DeleteProject removes a project with its time entries and uncounts it
// from its client.
func (e *Engine) DeleteProject(ctx context.Context, projectID id.ProjectID) error {
	userID, err := requireUser(ctx)
	if err != nil {
		return err
	}

	p, err := e.ownedProject(ctx, userID, projectID)
	if err != nil {
		return err
	}

	e.aggMu.RLock()
	if err := e.store.DeleteProject(ctx, projectID); err != nil {
		e.aggMu.RUnlock()
		return err
	}
	e.applyDeltas(ctx, aggregate.ClientProjects(p.ClientID, -1, "project_deleted"))
	e.aggMu.RUnlock()

	entries, err := e.store.DeleteTimeEntriesByProject(ctx, projectID)
	if err != nil {
		e.logger.Error("orphaned time entries after project delete",
			"project_id", projectID.String(),
			"error", err,
		)
	}

	e.plugins.EmitProjectDeleted(ctx, p, entries)
	return nil
}

func (e *Engine) ownedProject(ctx context.Context, userID string, projectID id.ProjectID) (*project.Project, error) {
	p, err := e.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, ErrProjectNotFound
	}
	return p, nil
}
