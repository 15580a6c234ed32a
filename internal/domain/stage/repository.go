package stage

import (
	"context"
	"time"
)

// Repository defines the persistence contract for stages.
// Implementations live in infrastructure/persistence.
type Repository interface {
	// Create persists a new stage.
	// Returns shared.ErrStageOrderConflict when the (plan, order) pair is taken.
	Create(ctx context.Context, s *Stage) error

	// GetByID returns a stage by ID.
	// Returns shared.ErrStageNotFound if the stage does not exist.
	GetByID(ctx context.Context, id string) (*Stage, error)

	// Update persists changed stage fields.
	// Returns shared.ErrStageNotFound if the stage does not exist and
	// shared.ErrStageOrderConflict on a unique order violation.
	Update(ctx context.Context, s *Stage) error

	// ListByPlan returns the plan's stages ordered by stage order,
	// excluding soft-deleted ones.
	ListByPlan(ctx context.Context, planID string) ([]*Stage, error)

	// CountCompletedByPlan returns how many of the plan's stages are COMPLETED.
	CountCompletedByPlan(ctx context.Context, planID string) (int, error)

	// Reorder applies the validated order assignments as a single atomic
	// unit. Implementations stage everything to temporary negative orders
	// first to dodge transient unique-constraint collisions, then assign
	// the final orders, both inside one transaction.
	Reorder(ctx context.Context, planID string, assignments []OrderAssignment) error

	// SoftDelete marks a stage deleted without removing the row.
	SoftDelete(ctx context.Context, id string, now time.Time) error

	// ActivateDue promotes all PENDING stages whose start date has arrived
	// and whose plan is ACTIVE, returning the affected stages together with
	// the owning user of each plan.
	ActivateDue(ctx context.Context, now time.Time) ([]ActivatedStage, error)
}

// ActivatedStage pairs a promoted stage with its plan's owning user,
// so the sweep can fan out cache invalidation without extra lookups.
type ActivatedStage struct {
	Stage  *Stage
	UserID string
}
