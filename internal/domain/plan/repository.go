package plan

import (
	"context"
	"time"
)

// ListOptions controls pagination for list queries.
type ListOptions struct {
	Limit  int
	Offset int
}

// Filter narrows plan list queries. Zero values mean "no filter".
type Filter struct {
	UserID   string   `json:"user_id,omitempty"`
	Statuses []Status `json:"statuses,omitempty"`
	Limit    int      `json:"limit,omitempty"`
	Offset   int      `json:"offset,omitempty"`
}

// StatusCounts aggregates plan counts per status for a user.
type StatusCounts map[Status]int

// Repository defines the persistence contract for plans.
// Implementations live in infrastructure/persistence.
type Repository interface {
	// Create persists a new plan.
	Create(ctx context.Context, p *Plan) error

	// GetByID returns a plan by ID.
	// Returns shared.ErrPlanNotFound if the plan does not exist.
	GetByID(ctx context.Context, id string) (*Plan, error)

	// Update persists changed plan fields.
	// Returns shared.ErrPlanNotFound if the plan does not exist.
	Update(ctx context.Context, p *Plan) error

	// List returns plans matching the filter, newest first.
	List(ctx context.Context, filter Filter) ([]*Plan, error)

	// CountByUser returns how many plans the user has, in any status.
	CountByUser(ctx context.Context, userID string) (int, error)

	// CountByStatusForUser aggregates the user's plans per status.
	CountByStatusForUser(ctx context.Context, userID string) (StatusCounts, error)

	// HasOpenPlan reports whether the user holds a plan in
	// {PLANNING, ACTIVE, PAUSED}.
	HasOpenPlan(ctx context.Context, userID string) (bool, error)

	// ActivateDue promotes all PLANNING plans whose start date has arrived
	// to ACTIVE in a single batch update, returning the affected plans.
	ActivateDue(ctx context.Context, now time.Time) ([]*Plan, error)
}
