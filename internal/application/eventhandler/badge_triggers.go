// Package eventhandler wires domain events from the bus into application
// flows. Handlers run on the bus worker pool, off the request path.
package eventhandler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/exhale-hub/exhale-backend/internal/application/saga"
	"github.com/exhale-hub/exhale-backend/internal/domain/shared"
)

// defaultHandlerTimeout bounds a single badge evaluation pass.
const defaultHandlerTimeout = 30 * time.Second

// BadgeTriggers subscribes the badge evaluation flow to the domain events
// that can make a user eligible for a badge.
type BadgeTriggers struct {
	flow    *saga.BadgeFlow
	timeout time.Duration
	logger  *slog.Logger
}

// NewBadgeTriggers creates the badge trigger set.
func NewBadgeTriggers(flow *saga.BadgeFlow, logger *slog.Logger) *BadgeTriggers {
	if logger == nil {
		logger = slog.Default()
	}
	return &BadgeTriggers{
		flow:    flow,
		timeout: defaultHandlerTimeout,
		logger:  logger,
	}
}

// RegisterAll subscribes every trigger on the bus.
func (t *BadgeTriggers) RegisterAll(bus shared.EventSubscriber) error {
	subscriptions := map[shared.EventType]shared.EventHandler{
		shared.EventPlanCreated:    t.onPlanCreated,
		shared.EventPlanCompleted:  t.onPlanCompleted,
		shared.EventStageCompleted: t.onStageCompleted,
		shared.EventStreakUpdated:  t.onStreakUpdated,
	}

	for eventType, handler := range subscriptions {
		if err := bus.Subscribe(eventType, handler); err != nil {
			return fmt.Errorf("subscribe %s: %w", eventType, err)
		}
	}

	return nil
}

func (t *BadgeTriggers) onPlanCreated(event shared.Event) error {
	e, ok := event.(shared.PlanCreatedEvent)
	if !ok {
		return fmt.Errorf("unexpected event payload for %s", event.EventType())
	}

	ctx, cancel := t.handlerContext()
	defer cancel()

	_, err := t.flow.OnPlanCreated(ctx, e.PlanID, e.UserID, e.IsFirstPlan)
	return err
}

func (t *BadgeTriggers) onPlanCompleted(event shared.Event) error {
	e, ok := event.(shared.PlanCompletedEvent)
	if !ok {
		return fmt.Errorf("unexpected event payload for %s", event.EventType())
	}

	ctx, cancel := t.handlerContext()
	defer cancel()

	_, err := t.flow.OnPlanCompleted(ctx, e.PlanID, e.UserID)
	return err
}

func (t *BadgeTriggers) onStageCompleted(event shared.Event) error {
	e, ok := event.(shared.StageCompletedEvent)
	if !ok {
		return fmt.Errorf("unexpected event payload for %s", event.EventType())
	}

	ctx, cancel := t.handlerContext()
	defer cancel()

	_, err := t.flow.OnStageCompleted(ctx, e.PlanID, e.UserID, e.CompletedStages)
	return err
}

func (t *BadgeTriggers) onStreakUpdated(event shared.Event) error {
	e, ok := event.(shared.StreakUpdatedEvent)
	if !ok {
		return fmt.Errorf("unexpected event payload for %s", event.EventType())
	}

	ctx, cancel := t.handlerContext()
	defer cancel()

	_, err := t.flow.OnStreakUpdated(ctx, e.UserID, e.CurrentStreak)
	return err
}

// handlerContext builds the bounded context handlers run under. The bus
// invokes handlers without one, so each trigger owns its own deadline.
func (t *BadgeTriggers) handlerContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), t.timeout)
}
