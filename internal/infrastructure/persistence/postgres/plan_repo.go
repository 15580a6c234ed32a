package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/exhale-hub/exhale-backend/internal/domain/plan"
	"github.com/exhale-hub/exhale-backend/internal/domain/shared"
)

// PlanRepository implements plan.Repository over PostgreSQL.
type PlanRepository struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPlanRepository creates a new plan repository.
func NewPlanRepository(conn *Connection, logger *slog.Logger) *PlanRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PlanRepository{conn: conn, logger: logger}
}

const planColumns = `id, user_id, template_id, reason, start_date, target_date, status, is_custom, created_at, updated_at`

func scanPlan(row pgx.Row) (*plan.Plan, error) {
	var p plan.Plan
	var templateID *string
	var status string

	err := row.Scan(
		&p.ID, &p.UserID, &templateID, &p.Reason,
		&p.StartDate, &p.TargetDate, &status, &p.IsCustom,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if templateID != nil {
		p.TemplateID = *templateID
	}
	p.Status = plan.Status(status)
	return &p, nil
}

// nullIfEmpty maps an empty string to SQL NULL for nullable UUID columns.
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// Create persists a new plan.
func (r *PlanRepository) Create(ctx context.Context, p *plan.Plan) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO plans (`+planColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.ID, p.UserID, nullIfEmpty(p.TemplateID), p.Reason,
		p.StartDate, p.TargetDate, string(p.Status), p.IsCustom,
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrPlanAlreadyOpen
		}
		return shared.WrapError("plan", "Create", shared.ErrExternalService, "failed to insert plan", err)
	}
	return nil
}

// GetByID returns a plan by ID.
func (r *PlanRepository) GetByID(ctx context.Context, id string) (*plan.Plan, error) {
	p, err := scanPlan(r.conn.QueryRow(ctx,
		`SELECT `+planColumns+` FROM plans WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, ErrNoRows) {
			return nil, shared.ErrPlanNotFound
		}
		return nil, shared.WrapError("plan", "GetByID", shared.ErrExternalService, "failed to query plan", err)
	}
	return p, nil
}

// Update persists changed plan fields.
func (r *PlanRepository) Update(ctx context.Context, p *plan.Plan) error {
	tag, err := r.conn.Exec(ctx, `
		UPDATE plans
		SET reason = $2, start_date = $3, target_date = $4, status = $5,
		    is_custom = $6, updated_at = $7
		WHERE id = $1`,
		p.ID, p.Reason, p.StartDate, p.TargetDate, string(p.Status),
		p.IsCustom, p.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrPlanAlreadyOpen
		}
		return shared.WrapError("plan", "Update", shared.ErrExternalService, "failed to update plan", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrPlanNotFound
	}
	return nil
}

// List returns plans matching the filter, newest first.
func (r *PlanRepository) List(ctx context.Context, filter plan.Filter) ([]*plan.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans WHERE 1=1`
	args := []interface{}{}
	argN := 0

	if filter.UserID != "" {
		argN++
		query += fmt.Sprintf(" AND user_id = $%d", argN)
		args = append(args, filter.UserID)
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		argN++
		query += fmt.Sprintf(" AND status = ANY($%d)", argN)
		args = append(args, statuses)
	}

	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		argN++
		query += fmt.Sprintf(" LIMIT $%d", argN)
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		argN++
		query += fmt.Sprintf(" OFFSET $%d", argN)
		args = append(args, filter.Offset)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, shared.WrapError("plan", "List", shared.ErrExternalService, "failed to list plans", err)
	}
	defer rows.Close()

	var plans []*plan.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, shared.WrapError("plan", "List", shared.ErrExternalService, "failed to scan plan", err)
		}
		plans = append(plans, p)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.WrapError("plan", "List", shared.ErrExternalService, "row iteration failed", err)
	}

	return plans, nil
}

// CountByUser returns how many plans the user has, in any status.
func (r *PlanRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.conn.QueryRow(ctx,
		`SELECT COUNT(*) FROM plans WHERE user_id = $1`, userID,
	).Scan(&count)
	if err != nil {
		return 0, shared.WrapError("plan", "CountByUser", shared.ErrExternalService, "failed to count plans", err)
	}
	return count, nil
}

// CountByStatusForUser aggregates the user's plans per status.
func (r *PlanRepository) CountByStatusForUser(ctx context.Context, userID string) (plan.StatusCounts, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT status, COUNT(*)
		FROM plans
		WHERE user_id = $1
		GROUP BY status`, userID)
	if err != nil {
		return nil, shared.WrapError("plan", "CountByStatusForUser", shared.ErrExternalService, "failed to aggregate plans", err)
	}
	defer rows.Close()

	counts := make(plan.StatusCounts)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, shared.WrapError("plan", "CountByStatusForUser", shared.ErrExternalService, "failed to scan count", err)
		}
		counts[plan.Status(status)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, shared.WrapError("plan", "CountByStatusForUser", shared.ErrExternalService, "row iteration failed", err)
	}

	return counts, nil
}

// HasOpenPlan reports whether the user holds a plan in {PLANNING, ACTIVE, PAUSED}.
func (r *PlanRepository) HasOpenPlan(ctx context.Context, userID string) (bool, error) {
	open := plan.OpenStatuses()
	statuses := make([]string, len(open))
	for i, s := range open {
		statuses[i] = string(s)
	}

	var exists bool
	err := r.conn.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM plans WHERE user_id = $1 AND status = ANY($2)
		)`, userID, statuses).Scan(&exists)
	if err != nil {
		return false, shared.WrapError("plan", "HasOpenPlan", shared.ErrExternalService, "failed to check open plan", err)
	}
	return exists, nil
}

// ActivateDue promotes all PLANNING plans whose start date has arrived to
// ACTIVE in a single batch update and returns the affected plans.
func (r *PlanRepository) ActivateDue(ctx context.Context, now time.Time) ([]*plan.Plan, error) {
	rows, err := r.conn.Query(ctx, `
		UPDATE plans
		SET status = $1, updated_at = $2
		WHERE status = $3 AND start_date <= $2
		RETURNING `+planColumns,
		string(plan.StatusActive), now, string(plan.StatusPlanning))
	if err != nil {
		return nil, shared.WrapError("plan", "ActivateDue", shared.ErrExternalService, "failed to activate due plans", err)
	}
	defer rows.Close()

	var plans []*plan.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, shared.WrapError("plan", "ActivateDue", shared.ErrExternalService, "failed to scan plan", err)
		}
		plans = append(plans, p)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.WrapError("plan", "ActivateDue", shared.ErrExternalService, "row iteration failed", err)
	}

	return plans, nil
}
