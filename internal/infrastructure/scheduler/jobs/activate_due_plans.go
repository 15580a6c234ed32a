// Package jobs contains the scheduled sweeps of the progression engine.
// Sweeps promote time-gated entities whose start dates have arrived, so
// transitions happen on schedule even when the user never opens the app.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/exhale-hub/exhale-backend/internal/domain/notification"
	"github.com/exhale-hub/exhale-backend/internal/domain/plan"
	"github.com/exhale-hub/exhale-backend/internal/domain/shared"
	rediscache "github.com/exhale-hub/exhale-backend/internal/infrastructure/persistence/redis"
	"github.com/exhale-hub/exhale-backend/pkg/timeutil"
)

// CacheInvalidator is the slice of the cache coherence layer the sweeps
// need: fan invalidation out over the entities a sweep touched.
type CacheInvalidator interface {
	InvalidateMany(ctx context.Context, targets ...rediscache.InvalidationTarget)
}

// ══════════════════════════════════════════════════════════════════════════════
// ACTIVATE DUE PLANS JOB
// ══════════════════════════════════════════════════════════════════════════════

// ActivateDuePlansJob promotes PLANNING plans whose start date has arrived
// to ACTIVE. The promotion itself is one batch update in the repository;
// the job fans out cache invalidation, events, and notifications for the
// affected plans afterwards.
//
// The sweep is idempotent: a plan promoted in one run no longer matches
// the PLANNING filter in the next, so overlapping or repeated runs are
// harmless.
type ActivateDuePlansJob struct {
	planRepo  plan.Repository
	cache     CacheInvalidator
	publisher shared.EventPublisher
	notifier  notification.Dispatcher
	logger    *slog.Logger

	lastRunStats atomic.Value // *SweepStats
}

// SweepStats summarizes one sweep run.
type SweepStats struct {
	RunAt    time.Time
	Promoted int
	Errors   int
}

// NewActivateDuePlansJob creates the plan activation sweep.
// The notifier is optional; pass nil to skip user notifications.
func NewActivateDuePlansJob(
	planRepo plan.Repository,
	cache CacheInvalidator,
	publisher shared.EventPublisher,
	notifier notification.Dispatcher,
	logger *slog.Logger,
) *ActivateDuePlansJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &ActivateDuePlansJob{
		planRepo:  planRepo,
		cache:     cache,
		publisher: publisher,
		notifier:  notifier,
		logger:    logger,
	}
}

// Name returns the unique name of the job.
func (j *ActivateDuePlansJob) Name() string {
	return "activate_due_plans"
}

// Description returns a human-readable description of the job.
func (j *ActivateDuePlansJob) Description() string {
	return "Promotes PLANNING plans whose start date has arrived to ACTIVE"
}

// Run executes the sweep.
func (j *ActivateDuePlansJob) Run(ctx context.Context) error {
	now := timeutil.Now()

	promoted, err := j.planRepo.ActivateDue(ctx, now)
	if err != nil {
		return fmt.Errorf("activate due plans: %w", err)
	}

	stats := &SweepStats{RunAt: now, Promoted: len(promoted)}
	defer j.lastRunStats.Store(stats)

	if len(promoted) == 0 {
		j.logger.Debug("no plans due for activation")
		return nil
	}

	for _, p := range promoted {
		j.cache.InvalidateMany(ctx,
			rediscache.InvalidationTarget{Prefix: rediscache.PrefixPlan, EntityID: p.ID},
			rediscache.InvalidationTarget{Prefix: rediscache.PrefixUser, EntityID: p.UserID},
			rediscache.InvalidationTarget{Prefix: rediscache.PrefixStats, EntityID: p.UserID},
		)

		if err := j.publisher.Publish(shared.NewPlanStatusChangedEvent(
			p.ID, p.UserID, string(plan.StatusPlanning), string(plan.StatusActive),
		)); err != nil {
			stats.Errors++
			j.logger.Error("failed to publish plan activation event",
				"plan_id", p.ID, "error", err)
		}

		j.notifyActivated(ctx, p, stats)
	}

	if err := j.publisher.Publish(shared.NewSweepCompletedEvent(j.Name(), len(promoted))); err != nil {
		j.logger.Error("failed to publish sweep completion", "error", err)
	}

	j.logger.Info("plan activation sweep completed",
		"promoted", len(promoted), "errors", stats.Errors)

	return nil
}

// notifyActivated sends a best-effort "your plan started" notification.
func (j *ActivateDuePlansJob) notifyActivated(ctx context.Context, p *plan.Plan, stats *SweepStats) {
	if j.notifier == nil {
		return
	}

	n := notification.Notification{
		UserID:  p.UserID,
		Type:    notification.TypePlanActivated,
		Title:   "Your quit plan starts today",
		Content: "Today is day one. Open the app to see your first stage.",
		Metadata: map[string]interface{}{
			"plan_id": p.ID,
		},
	}

	if err := j.notifier.SendNotification(ctx, n); err != nil {
		stats.Errors++
		j.logger.Warn("failed to send plan activation notification",
			"plan_id", p.ID, "user_id", p.UserID, "error", err)
	}
}

// LastRunStats returns the stats of the most recent run, nil before the first.
func (j *ActivateDuePlansJob) LastRunStats() *SweepStats {
	v, _ := j.lastRunStats.Load().(*SweepStats)
	return v
}
