package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/exhale-hub/exhale-backend/internal/domain/shared"
	"github.com/exhale-hub/exhale-backend/internal/domain/stage"
	rediscache "github.com/exhale-hub/exhale-backend/internal/infrastructure/persistence/redis"
	"github.com/exhale-hub/exhale-backend/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACTIVATE DUE STAGES JOB
// ══════════════════════════════════════════════════════════════════════════════

// ActivateDueStagesJob promotes PENDING stages whose start date has arrived,
// but only within plans that are themselves ACTIVE. A paused or abandoned
// plan freezes its stages in place.
//
// Idempotent for the same reason as the plan sweep: promoted stages fall
// out of the PENDING filter.
type ActivateDueStagesJob struct {
	stageRepo stage.Repository
	cache     CacheInvalidator
	publisher shared.EventPublisher
	logger    *slog.Logger

	lastRunStats atomic.Value // *SweepStats
}

// NewActivateDueStagesJob creates the stage activation sweep.
func NewActivateDueStagesJob(
	stageRepo stage.Repository,
	cache CacheInvalidator,
	publisher shared.EventPublisher,
	logger *slog.Logger,
) *ActivateDueStagesJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &ActivateDueStagesJob{
		stageRepo: stageRepo,
		cache:     cache,
		publisher: publisher,
		logger:    logger,
	}
}

// Name returns the unique name of the job.
func (j *ActivateDueStagesJob) Name() string {
	return "activate_due_stages"
}

// Description returns a human-readable description of the job.
func (j *ActivateDueStagesJob) Description() string {
	return "Promotes PENDING stages of active plans whose start date has arrived"
}

// Run executes the sweep.
func (j *ActivateDueStagesJob) Run(ctx context.Context) error {
	now := timeutil.Now()

	promoted, err := j.stageRepo.ActivateDue(ctx, now)
	if err != nil {
		return fmt.Errorf("activate due stages: %w", err)
	}

	stats := &SweepStats{RunAt: now, Promoted: len(promoted)}
	defer j.lastRunStats.Store(stats)

	if len(promoted) == 0 {
		j.logger.Debug("no stages due for activation")
		return nil
	}

	for _, a := range promoted {
		s := a.Stage
		j.cache.InvalidateMany(ctx,
			rediscache.InvalidationTarget{Prefix: rediscache.PrefixStage, EntityID: s.ID},
			rediscache.InvalidationTarget{Prefix: rediscache.PrefixPlan, EntityID: s.PlanID},
			rediscache.InvalidationTarget{Prefix: rediscache.PrefixUser, EntityID: a.UserID},
		)

		if err := j.publisher.Publish(shared.NewStageStatusChangedEvent(
			s.ID, s.PlanID, a.UserID, string(stage.StatusPending), string(stage.StatusActive),
		)); err != nil {
			stats.Errors++
			j.logger.Error("failed to publish stage activation event",
				"stage_id", s.ID, "error", err)
		}
	}

	if err := j.publisher.Publish(shared.NewSweepCompletedEvent(j.Name(), len(promoted))); err != nil {
		j.logger.Error("failed to publish sweep completion", "error", err)
	}

	j.logger.Info("stage activation sweep completed",
		"promoted", len(promoted), "errors", stats.Errors)

	return nil
}

// LastRunStats returns the stats of the most recent run, nil before the first.
func (j *ActivateDueStagesJob) LastRunStats() *SweepStats {
	v, _ := j.lastRunStats.Load().(*SweepStats)
	return v
}
