package badge

import (
	"context"
)

// ListOptions controls pagination for badge listings.
type ListOptions struct {
	Limit  int
	Offset int
}

// Repository defines the persistence contract for badge definitions.
type Repository interface {
	// GetByID returns a badge by ID.
	// Returns shared.ErrBadgeNotFound if the badge does not exist.
	GetByID(ctx context.Context, id string) (*Badge, error)

	// ListActive returns active badges ordered by sort order, paginated.
	ListActive(ctx context.Context, opts ListOptions) ([]*Badge, error)
}

// UserBadgeRepository defines the persistence contract for awarded badges.
type UserBadgeRepository interface {
	// HasBadge reports whether the user already holds an active award
	// for the badge.
	HasBadge(ctx context.Context, userID, badgeID string) (bool, error)

	// Award creates the award record.
	// Returns shared.ErrBadgeAlreadyAwarded on a duplicate active award.
	Award(ctx context.Context, ub *UserBadge) error

	// ListByUser returns the user's awards, newest first.
	ListByUser(ctx context.Context, userID string) ([]*UserBadge, error)
}
