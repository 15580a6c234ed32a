package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/exhale-hub/exhale-backend/internal/domain/badge"
	"github.com/exhale-hub/exhale-backend/internal/domain/shared"
)

// BadgeRepository implements badge.Repository over PostgreSQL.
type BadgeRepository struct {
	conn   *Connection
	logger *slog.Logger
}

// NewBadgeRepository creates a new badge repository.
func NewBadgeRepository(conn *Connection, logger *slog.Logger) *BadgeRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &BadgeRepository{conn: conn, logger: logger}
}

const badgeColumns = `id, name, description, requirements, active, sort_order, created_at, updated_at`

// GetByID returns a badge by ID.
func (r *BadgeRepository) GetByID(ctx context.Context, id string) (*badge.Badge, error) {
	var b badge.Badge
	err := r.conn.QueryRow(ctx,
		`SELECT `+badgeColumns+` FROM badges WHERE id = $1`, id,
	).Scan(
		&b.ID, &b.Name, &b.Description, &b.Requirements,
		&b.Active, &b.SortOrder, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, ErrNoRows) {
			return nil, shared.ErrBadgeNotFound
		}
		return nil, shared.WrapError("badge", "GetByID", shared.ErrExternalService, "failed to query badge", err)
	}
	return &b, nil
}

// ListActive returns active badges ordered by sort order, paginated.
func (r *BadgeRepository) ListActive(ctx context.Context, opts badge.ListOptions) ([]*badge.Badge, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.conn.Query(ctx, `
		SELECT `+badgeColumns+`
		FROM badges
		WHERE active
		ORDER BY sort_order, name
		LIMIT $1 OFFSET $2`, limit, opts.Offset)
	if err != nil {
		return nil, shared.WrapError("badge", "ListActive", shared.ErrExternalService, "failed to list badges", err)
	}
	defer rows.Close()

	var badges []*badge.Badge
	for rows.Next() {
		var b badge.Badge
		err := rows.Scan(
			&b.ID, &b.Name, &b.Description, &b.Requirements,
			&b.Active, &b.SortOrder, &b.CreatedAt, &b.UpdatedAt,
		)
		if err != nil {
			return nil, shared.WrapError("badge", "ListActive", shared.ErrExternalService, "failed to scan badge", err)
		}
		badges = append(badges, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.WrapError("badge", "ListActive", shared.ErrExternalService, "row iteration failed", err)
	}

	return badges, nil
}

// UserBadgeRepository implements badge.UserBadgeRepository over PostgreSQL.
type UserBadgeRepository struct {
	conn   *Connection
	logger *slog.Logger
}

// NewUserBadgeRepository creates a new user badge repository.
func NewUserBadgeRepository(conn *Connection, logger *slog.Logger) *UserBadgeRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserBadgeRepository{conn: conn, logger: logger}
}

// HasBadge reports whether the user already holds an award for the badge.
func (r *UserBadgeRepository) HasBadge(ctx context.Context, userID, badgeID string) (bool, error) {
	var exists bool
	err := r.conn.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM user_badges WHERE user_id = $1 AND badge_id = $2
		)`, userID, badgeID).Scan(&exists)
	if err != nil {
		return false, shared.WrapError("badge", "HasBadge", shared.ErrExternalService, "failed to check award", err)
	}
	return exists, nil
}

// Award creates the award record. The UNIQUE (user_id, badge_id) constraint
// is the last line of defense against concurrent double awards; a violation
// maps to ErrBadgeAlreadyAwarded so callers can treat it as a no-op.
func (r *UserBadgeRepository) Award(ctx context.Context, ub *badge.UserBadge) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO user_badges (id, user_id, badge_id, awarded_at)
		VALUES ($1, $2, $3, $4)`,
		ub.ID, ub.UserID, ub.BadgeID, ub.AwardedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrBadgeAlreadyAwarded
		}
		return shared.WrapError("badge", "Award", shared.ErrExternalService, "failed to insert award", err)
	}
	return nil
}

// ListByUser returns the user's awards, newest first.
func (r *UserBadgeRepository) ListByUser(ctx context.Context, userID string) ([]*badge.UserBadge, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT id, user_id, badge_id, awarded_at
		FROM user_badges
		WHERE user_id = $1
		ORDER BY awarded_at DESC`, userID)
	if err != nil {
		return nil, shared.WrapError("badge", "ListByUser", shared.ErrExternalService, "failed to list awards", err)
	}
	defer rows.Close()

	var awards []*badge.UserBadge
	for rows.Next() {
		var ub badge.UserBadge
		if err := rows.Scan(&ub.ID, &ub.UserID, &ub.BadgeID, &ub.AwardedAt); err != nil {
			return nil, shared.WrapError("badge", "ListByUser", shared.ErrExternalService, "failed to scan award", err)
		}
		awards = append(awards, &ub)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.WrapError("badge", "ListByUser", shared.ErrExternalService, "row iteration failed", err)
	}

	return awards, nil
}
