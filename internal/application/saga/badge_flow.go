// Package saga contains business processes that orchestrate multiple domain
// operations in a coordinated manner.
package saga

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/exhale-hub/exhale-backend/internal/domain/badge"
	"github.com/exhale-hub/exhale-backend/internal/domain/notification"
	"github.com/exhale-hub/exhale-backend/internal/domain/shared"
	rediscache "github.com/exhale-hub/exhale-backend/internal/infrastructure/persistence/redis"
	"github.com/exhale-hub/exhale-backend/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// BADGE FLOW SAGA
// Flow: Load Active Badges → Evaluate Criteria → Skip Already Awarded →
//       Award → Invalidate Caches → Notify → Publish Event
//
// Evaluation runs off the request path, triggered by domain events. A badge
// that fails to evaluate is skipped, never awarded by accident; a failed
// notification never rolls back an award.
// ══════════════════════════════════════════════════════════════════════════════

// badgePageSize is how many badge definitions are loaded per page during
// evaluation.
const badgePageSize = 50

// CacheInvalidator is the slice of the cache coherence layer the flow needs.
type CacheInvalidator interface {
	InvalidateMany(ctx context.Context, targets ...rediscache.InvalidationTarget)
}

// BadgeFlowResult summarizes one evaluation pass.
type BadgeFlowResult struct {
	// UserID is the user the pass evaluated.
	UserID string

	// Awarded lists the badges newly awarded in this pass.
	Awarded []*badge.Badge

	// Evaluated is how many badge definitions were considered.
	Evaluated int

	// NotificationsSent is how many award notifications went out.
	NotificationsSent int

	// ProcessedAt is when the pass completed.
	ProcessedAt time.Time
}

// HasNewAwards returns true if any badges were awarded.
func (r *BadgeFlowResult) HasNewAwards() bool {
	return len(r.Awarded) > 0
}

// BadgeFlow drives badge evaluation in response to domain events.
type BadgeFlow struct {
	badgeRepo     badge.Repository
	userBadgeRepo badge.UserBadgeRepository
	registry      *badge.Registry
	cache         CacheInvalidator
	notifier      notification.Dispatcher
	publisher     shared.EventPublisher
	logger        *slog.Logger
}

// NewBadgeFlow creates a new badge evaluation flow.
// The notifier is optional; pass nil to skip award notifications.
func NewBadgeFlow(
	badgeRepo badge.Repository,
	userBadgeRepo badge.UserBadgeRepository,
	registry *badge.Registry,
	cache CacheInvalidator,
	notifier notification.Dispatcher,
	publisher shared.EventPublisher,
	logger *slog.Logger,
) *BadgeFlow {
	if logger == nil {
		logger = slog.Default()
	}
	return &BadgeFlow{
		badgeRepo:     badgeRepo,
		userBadgeRepo: userBadgeRepo,
		registry:      registry,
		cache:         cache,
		notifier:      notifier,
		publisher:     publisher,
		logger:        logger,
	}
}

// EvaluateAndAward runs one evaluation pass for the user against every
// active badge definition. Awarding is idempotent: an existing award short
// circuits the badge, and the unique constraint in the awards table absorbs
// concurrent passes racing on the same badge.
func (f *BadgeFlow) EvaluateAndAward(ctx context.Context, evalCtx badge.EventContext) (*BadgeFlowResult, error) {
	if evalCtx.UserID == "" {
		return nil, errors.New("badge_flow: user ID is required")
	}

	result := &BadgeFlowResult{UserID: evalCtx.UserID}

	for offset := 0; ; offset += badgePageSize {
		page, err := f.badgeRepo.ListActive(ctx, badge.ListOptions{
			Limit:  badgePageSize,
			Offset: offset,
		})
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}

		for _, b := range page {
			result.Evaluated++
			f.evaluateOne(ctx, b, evalCtx, result)
		}

		if len(page) < badgePageSize {
			break
		}
	}

	result.ProcessedAt = timeutil.Now()

	if result.HasNewAwards() {
		f.logger.Info("badge evaluation pass awarded badges",
			"user_id", evalCtx.UserID,
			"awarded", len(result.Awarded),
			"evaluated", result.Evaluated,
		)
	}

	return result, nil
}

// evaluateOne checks a single badge and awards it when eligible.
func (f *BadgeFlow) evaluateOne(ctx context.Context, b *badge.Badge, evalCtx badge.EventContext, result *BadgeFlowResult) {
	if !f.registry.CheckEligibility(b, evalCtx) {
		return
	}

	has, err := f.userBadgeRepo.HasBadge(ctx, evalCtx.UserID, b.ID)
	if err != nil {
		f.logger.Error("failed to check existing award",
			"badge_id", b.ID, "user_id", evalCtx.UserID, "error", err)
		return
	}
	if has {
		return
	}

	ub := &badge.UserBadge{
		ID:        uuid.NewString(),
		UserID:    evalCtx.UserID,
		BadgeID:   b.ID,
		AwardedAt: timeutil.Now(),
	}

	if err := f.userBadgeRepo.Award(ctx, ub); err != nil {
		if errors.Is(err, shared.ErrConflict) {
			// Lost the race to a concurrent pass; the user has the badge.
			return
		}
		f.logger.Error("failed to award badge",
			"badge_id", b.ID, "user_id", evalCtx.UserID, "error", err)
		return
	}

	result.Awarded = append(result.Awarded, b)

	f.cache.InvalidateMany(ctx,
		rediscache.InvalidationTarget{Prefix: rediscache.PrefixBadge, EntityID: b.ID},
		rediscache.InvalidationTarget{Prefix: rediscache.PrefixUser, EntityID: evalCtx.UserID},
	)

	if err := f.publisher.Publish(shared.NewBadgeAwardedEvent(b.ID, b.Name, evalCtx.UserID)); err != nil {
		f.logger.Error("failed to publish badge awarded event",
			"badge_id", b.ID, "error", err)
	}

	f.notifyAwarded(ctx, b, evalCtx.UserID, result)
}

// notifyAwarded sends a best-effort award notification.
func (f *BadgeFlow) notifyAwarded(ctx context.Context, b *badge.Badge, userID string, result *BadgeFlowResult) {
	if f.notifier == nil {
		return
	}

	n := notification.Notification{
		UserID:  userID,
		Type:    notification.TypeBadgeAwarded,
		Title:   "New badge earned",
		Content: "You earned the \"" + b.Name + "\" badge. " + b.Description,
		Metadata: map[string]interface{}{
			"badge_id":   b.ID,
			"badge_name": b.Name,
		},
	}

	if err := f.notifier.SendNotification(ctx, n); err != nil {
		f.logger.Warn("failed to send badge notification",
			"badge_id", b.ID, "user_id", userID, "error", err)
		return
	}
	result.NotificationsSent++
}

// ══════════════════════════════════════════════════════════════════════════════
// EVENT TRIGGERS
// ══════════════════════════════════════════════════════════════════════════════

// OnPlanCreated evaluates badges after a plan is created.
func (f *BadgeFlow) OnPlanCreated(ctx context.Context, planID, userID string, isFirstPlan bool) (*BadgeFlowResult, error) {
	return f.EvaluateAndAward(ctx, badge.EventContext{
		UserID:      userID,
		EventType:   shared.EventPlanCreated,
		PlanID:      planID,
		IsFirstPlan: isFirstPlan,
	})
}

// OnPlanCompleted evaluates badges after a plan reaches COMPLETED.
func (f *BadgeFlow) OnPlanCompleted(ctx context.Context, planID, userID string) (*BadgeFlowResult, error) {
	return f.EvaluateAndAward(ctx, badge.EventContext{
		UserID:    userID,
		EventType: shared.EventPlanCompleted,
		PlanID:    planID,
	})
}

// OnStageCompleted evaluates badges after a stage completion.
func (f *BadgeFlow) OnStageCompleted(ctx context.Context, planID, userID string, completedStages int) (*BadgeFlowResult, error) {
	return f.EvaluateAndAward(ctx, badge.EventContext{
		UserID:                userID,
		EventType:             shared.EventStageCompleted,
		PlanID:                planID,
		CompletedStagesInPlan: completedStages,
	})
}

// OnStreakUpdated evaluates badges after a streak change and sends a
// milestone notification when the streak hits a milestone day. The
// milestone note goes out regardless of badge outcome.
func (f *BadgeFlow) OnStreakUpdated(ctx context.Context, userID string, currentStreak int) (*BadgeFlowResult, error) {
	if f.notifier != nil && notification.IsStreakMilestone(currentStreak) {
		n := notification.NewStreakMilestone(userID, currentStreak)
		if err := f.notifier.SendNotification(ctx, n); err != nil {
			f.logger.Warn("failed to send streak milestone notification",
				"user_id", userID, "streak", currentStreak, "error", err)
		}
	}

	return f.EvaluateAndAward(ctx, badge.EventContext{
		UserID:        userID,
		EventType:     shared.EventStreakUpdated,
		CurrentStreak: currentStreak,
	})
}
