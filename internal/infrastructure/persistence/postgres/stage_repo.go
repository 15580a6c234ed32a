package postgres

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/exhale-hub/exhale-backend/internal/domain/plan"
	"github.com/exhale-hub/exhale-backend/internal/domain/shared"
	"github.com/exhale-hub/exhale-backend/internal/domain/stage"
)

// StageRepository implements stage.Repository over PostgreSQL.
type StageRepository struct {
	conn   *Connection
	logger *slog.Logger
}

// NewStageRepository creates a new stage repository.
func NewStageRepository(conn *Connection, logger *slog.Logger) *StageRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &StageRepository{conn: conn, logger: logger}
}

const stageColumns = `id, plan_id, template_stage_id, stage_order, title, start_date, end_date, status, deleted, created_at, updated_at`

func scanStage(row pgx.Row) (*stage.Stage, error) {
	var s stage.Stage
	var templateStageID *string
	var status string

	err := row.Scan(
		&s.ID, &s.PlanID, &templateStageID, &s.Order, &s.Title,
		&s.StartDate, &s.EndDate, &status, &s.Deleted,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if templateStageID != nil {
		s.TemplateStageID = *templateStageID
	}
	s.Status = stage.Status(status)
	return &s, nil
}

// Create persists a new stage.
func (r *StageRepository) Create(ctx context.Context, s *stage.Stage) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO stages (`+stageColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		s.ID, s.PlanID, nullIfEmpty(s.TemplateStageID), s.Order, s.Title,
		s.StartDate, s.EndDate, string(s.Status), s.Deleted,
		s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrStageOrderConflict
		}
		return shared.WrapError("stage", "Create", shared.ErrExternalService, "failed to insert stage", err)
	}
	return nil
}

// GetByID returns a stage by ID.
func (r *StageRepository) GetByID(ctx context.Context, id string) (*stage.Stage, error) {
	s, err := scanStage(r.conn.QueryRow(ctx,
		`SELECT `+stageColumns+` FROM stages WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, ErrNoRows) {
			return nil, shared.ErrStageNotFound
		}
		return nil, shared.WrapError("stage", "GetByID", shared.ErrExternalService, "failed to query stage", err)
	}
	return s, nil
}

// Update persists changed stage fields.
func (r *StageRepository) Update(ctx context.Context, s *stage.Stage) error {
	tag, err := r.conn.Exec(ctx, `
		UPDATE stages
		SET stage_order = $2, title = $3, start_date = $4, end_date = $5,
		    status = $6, deleted = $7, updated_at = $8
		WHERE id = $1`,
		s.ID, s.Order, s.Title, s.StartDate, s.EndDate,
		string(s.Status), s.Deleted, s.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrStageOrderConflict
		}
		return shared.WrapError("stage", "Update", shared.ErrExternalService, "failed to update stage", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrStageNotFound
	}
	return nil
}

// ListByPlan returns the plan's stages ordered by stage order,
// excluding soft-deleted ones.
func (r *StageRepository) ListByPlan(ctx context.Context, planID string) ([]*stage.Stage, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT `+stageColumns+`
		FROM stages
		WHERE plan_id = $1 AND NOT deleted
		ORDER BY stage_order`, planID)
	if err != nil {
		return nil, shared.WrapError("stage", "ListByPlan", shared.ErrExternalService, "failed to list stages", err)
	}
	defer rows.Close()

	var stages []*stage.Stage
	for rows.Next() {
		s, err := scanStage(rows)
		if err != nil {
			return nil, shared.WrapError("stage", "ListByPlan", shared.ErrExternalService, "failed to scan stage", err)
		}
		stages = append(stages, s)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.WrapError("stage", "ListByPlan", shared.ErrExternalService, "row iteration failed", err)
	}

	return stages, nil
}

// CountCompletedByPlan returns how many of the plan's stages are COMPLETED.
func (r *StageRepository) CountCompletedByPlan(ctx context.Context, planID string) (int, error) {
	var count int
	err := r.conn.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM stages
		WHERE plan_id = $1 AND status = $2 AND NOT deleted`,
		planID, string(stage.StatusCompleted),
	).Scan(&count)
	if err != nil {
		return 0, shared.WrapError("stage", "CountCompletedByPlan", shared.ErrExternalService, "failed to count stages", err)
	}
	return count, nil
}

// Reorder applies the order assignments atomically. Live stages carry a
// partial unique index on (plan_id, stage_order), so a naive row-by-row
// update collides whenever two stages swap positions. Phase one parks every
// stage on the negation of its target order, which can never clash with a
// live positive order; phase two assigns the final values. Both phases run
// in one transaction, so readers never observe the parked state.
func (r *StageRepository) Reorder(ctx context.Context, planID string, assignments []stage.OrderAssignment) error {
	err := r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		for _, a := range assignments {
			tag, err := tx.Exec(ctx, `
				UPDATE stages SET stage_order = $3
				WHERE id = $1 AND plan_id = $2`,
				a.StageID, planID, -a.Order)
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				return shared.ErrStageNotFound
			}
		}

		now := time.Now().UTC()
		for _, a := range assignments {
			if _, err := tx.Exec(ctx, `
				UPDATE stages SET stage_order = $3, updated_at = $4
				WHERE id = $1 AND plan_id = $2`,
				a.StageID, planID, a.Order, now); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return err
		}
		if IsUniqueViolation(err) {
			return shared.ErrStageOrderConflict
		}
		return shared.WrapError("stage", "Reorder", shared.ErrExternalService, "failed to reorder stages", err)
	}
	return nil
}

// SoftDelete marks a stage deleted without removing the row.
func (r *StageRepository) SoftDelete(ctx context.Context, id string, now time.Time) error {
	tag, err := r.conn.Exec(ctx, `
		UPDATE stages SET deleted = TRUE, updated_at = $2
		WHERE id = $1 AND NOT deleted`, id, now)
	if err != nil {
		return shared.WrapError("stage", "SoftDelete", shared.ErrExternalService, "failed to soft delete stage", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrStageNotFound
	}
	return nil
}

// ActivateDue promotes all PENDING stages whose start date has arrived and
// whose plan is ACTIVE, returning each promoted stage with its plan's owner.
func (r *StageRepository) ActivateDue(ctx context.Context, now time.Time) ([]stage.ActivatedStage, error) {
	rows, err := r.conn.Query(ctx, `
		UPDATE stages s
		SET status = $1, updated_at = $2
		FROM plans p
		WHERE s.plan_id = p.id
		  AND s.status = $3
		  AND NOT s.deleted
		  AND s.start_date IS NOT NULL
		  AND s.start_date <= $2
		  AND p.status = $4
		RETURNING s.id, s.plan_id, s.template_stage_id, s.stage_order, s.title,
		          s.start_date, s.end_date, s.status, s.deleted, s.created_at,
		          s.updated_at, p.user_id`,
		string(stage.StatusActive), now, string(stage.StatusPending),
		string(plan.StatusActive))
	if err != nil {
		return nil, shared.WrapError("stage", "ActivateDue", shared.ErrExternalService, "failed to activate due stages", err)
	}
	defer rows.Close()

	var activated []stage.ActivatedStage
	for rows.Next() {
		var s stage.Stage
		var templateStageID *string
		var status, userID string

		err := rows.Scan(
			&s.ID, &s.PlanID, &templateStageID, &s.Order, &s.Title,
			&s.StartDate, &s.EndDate, &status, &s.Deleted,
			&s.CreatedAt, &s.UpdatedAt, &userID,
		)
		if err != nil {
			return nil, shared.WrapError("stage", "ActivateDue", shared.ErrExternalService, "failed to scan stage", err)
		}

		if templateStageID != nil {
			s.TemplateStageID = *templateStageID
		}
		s.Status = stage.Status(status)
		activated = append(activated, stage.ActivatedStage{Stage: &s, UserID: userID})
	}
	if err := rows.Err(); err != nil {
		return nil, shared.WrapError("stage", "ActivateDue", shared.ErrExternalService, "row iteration failed", err)
	}

	return activated, nil
}
