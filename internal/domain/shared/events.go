// Package shared contains common domain types, errors, and events that are
// used across all domain packages.
package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types - these drive the event-driven architecture.
// Each event represents something significant that happened in the domain.
const (
	// Plan events
	EventPlanCreated       EventType = "plan.created"
	EventPlanStatusChanged EventType = "plan.status_changed"
	EventPlanCompleted     EventType = "plan.completed"

	// Stage events
	EventStageStatusChanged EventType = "stage.status_changed"
	EventStageCompleted     EventType = "stage.completed"
	EventStagesReordered    EventType = "stage.reordered"
	EventStageDeleted       EventType = "stage.deleted"

	// Progress events
	EventStreakUpdated EventType = "progress.streak_updated"

	// Badge events
	EventBadgeAwarded EventType = "badge.awarded"

	// System events
	EventSweepCompleted EventType = "system.sweep_completed"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	AggregateId string    `json:"aggregate_id"`
	Version     int       `json:"version"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Plan Events
// ═══════════════════════════════════════════════════════════════════════════

// PlanCreatedEvent is emitted when a user creates a cessation plan.
type PlanCreatedEvent struct {
	BaseEvent
	PlanID      string `json:"plan_id"`
	UserID      string `json:"user_id"`
	IsFirstPlan bool   `json:"is_first_plan"`
}

// Payload implements Event interface.
func (e PlanCreatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"plan_id":       e.PlanID,
		"user_id":       e.UserID,
		"is_first_plan": e.IsFirstPlan,
	}
}

// NewPlanCreatedEvent creates a new PlanCreatedEvent.
func NewPlanCreatedEvent(planID, userID string, isFirstPlan bool) PlanCreatedEvent {
	return PlanCreatedEvent{
		BaseEvent:   NewBaseEvent(EventPlanCreated, planID),
		PlanID:      planID,
		UserID:      userID,
		IsFirstPlan: isFirstPlan,
	}
}

// PlanStatusChangedEvent is emitted on every plan status transition.
type PlanStatusChangedEvent struct {
	BaseEvent
	PlanID    string `json:"plan_id"`
	UserID    string `json:"user_id"`
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
}

// Payload implements Event interface.
func (e PlanStatusChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"plan_id":    e.PlanID,
		"user_id":    e.UserID,
		"old_status": e.OldStatus,
		"new_status": e.NewStatus,
	}
}

// NewPlanStatusChangedEvent creates a new PlanStatusChangedEvent.
func NewPlanStatusChangedEvent(planID, userID, oldStatus, newStatus string) PlanStatusChangedEvent {
	return PlanStatusChangedEvent{
		BaseEvent: NewBaseEvent(EventPlanStatusChanged, planID),
		PlanID:    planID,
		UserID:    userID,
		OldStatus: oldStatus,
		NewStatus: newStatus,
	}
}

// PlanCompletedEvent is emitted when a plan reaches its terminal COMPLETED state.
type PlanCompletedEvent struct {
	BaseEvent
	PlanID string `json:"plan_id"`
	UserID string `json:"user_id"`
}

// Payload implements Event interface.
func (e PlanCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"plan_id": e.PlanID,
		"user_id": e.UserID,
	}
}

// NewPlanCompletedEvent creates a new PlanCompletedEvent.
func NewPlanCompletedEvent(planID, userID string) PlanCompletedEvent {
	return PlanCompletedEvent{
		BaseEvent: NewBaseEvent(EventPlanCompleted, planID),
		PlanID:    planID,
		UserID:    userID,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Stage Events
// ═══════════════════════════════════════════════════════════════════════════

// StageStatusChangedEvent is emitted on every stage status transition.
type StageStatusChangedEvent struct {
	BaseEvent
	StageID   string `json:"stage_id"`
	PlanID    string `json:"plan_id"`
	UserID    string `json:"user_id"`
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
}

// Payload implements Event interface.
func (e StageStatusChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"stage_id":   e.StageID,
		"plan_id":    e.PlanID,
		"user_id":    e.UserID,
		"old_status": e.OldStatus,
		"new_status": e.NewStatus,
	}
}

// NewStageStatusChangedEvent creates a new StageStatusChangedEvent.
func NewStageStatusChangedEvent(stageID, planID, userID, oldStatus, newStatus string) StageStatusChangedEvent {
	return StageStatusChangedEvent{
		BaseEvent: NewBaseEvent(EventStageStatusChanged, stageID),
		StageID:   stageID,
		PlanID:    planID,
		UserID:    userID,
		OldStatus: oldStatus,
		NewStatus: newStatus,
	}
}

// StageCompletedEvent is emitted when a stage transitions to COMPLETED.
type StageCompletedEvent struct {
	BaseEvent
	StageID         string `json:"stage_id"`
	PlanID          string `json:"plan_id"`
	UserID          string `json:"user_id"`
	CompletedStages int    `json:"completed_stages_in_plan"`
}

// Payload implements Event interface.
func (e StageCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"stage_id":                 e.StageID,
		"plan_id":                  e.PlanID,
		"user_id":                  e.UserID,
		"completed_stages_in_plan": e.CompletedStages,
	}
}

// NewStageCompletedEvent creates a new StageCompletedEvent.
func NewStageCompletedEvent(stageID, planID, userID string, completedStages int) StageCompletedEvent {
	return StageCompletedEvent{
		BaseEvent:       NewBaseEvent(EventStageCompleted, stageID),
		StageID:         stageID,
		PlanID:          planID,
		UserID:          userID,
		CompletedStages: completedStages,
	}
}

// StagesReorderedEvent is emitted after a successful bulk stage reorder.
type StagesReorderedEvent struct {
	BaseEvent
	PlanID     string `json:"plan_id"`
	UserID     string `json:"user_id"`
	StageCount int    `json:"stage_count"`
}

// Payload implements Event interface.
func (e StagesReorderedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"plan_id":     e.PlanID,
		"user_id":     e.UserID,
		"stage_count": e.StageCount,
	}
}

// NewStagesReorderedEvent creates a new StagesReorderedEvent.
func NewStagesReorderedEvent(planID, userID string, stageCount int) StagesReorderedEvent {
	return StagesReorderedEvent{
		BaseEvent:  NewBaseEvent(EventStagesReordered, planID),
		PlanID:     planID,
		UserID:     userID,
		StageCount: stageCount,
	}
}

// StageDeletedEvent is emitted when a stage is soft-deleted from a plan.
type StageDeletedEvent struct {
	BaseEvent
	StageID string `json:"stage_id"`
	PlanID  string `json:"plan_id"`
	UserID  string `json:"user_id"`
}

// Payload implements Event interface.
func (e StageDeletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"stage_id": e.StageID,
		"plan_id":  e.PlanID,
		"user_id":  e.UserID,
	}
}

// NewStageDeletedEvent creates a new StageDeletedEvent.
func NewStageDeletedEvent(stageID, planID, userID string) StageDeletedEvent {
	return StageDeletedEvent{
		BaseEvent: NewBaseEvent(EventStageDeleted, stageID),
		StageID:   stageID,
		PlanID:    planID,
		UserID:    userID,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Progress Events
// ═══════════════════════════════════════════════════════════════════════════

// StreakUpdatedEvent is emitted when a user's smoke-free streak changes.
type StreakUpdatedEvent struct {
	BaseEvent
	UserID        string `json:"user_id"`
	CurrentStreak int    `json:"current_streak"`
}

// Payload implements Event interface.
func (e StreakUpdatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":        e.UserID,
		"current_streak": e.CurrentStreak,
	}
}

// NewStreakUpdatedEvent creates a new StreakUpdatedEvent.
func NewStreakUpdatedEvent(userID string, currentStreak int) StreakUpdatedEvent {
	return StreakUpdatedEvent{
		BaseEvent:     NewBaseEvent(EventStreakUpdated, userID),
		UserID:        userID,
		CurrentStreak: currentStreak,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Badge Events
// ═══════════════════════════════════════════════════════════════════════════

// BadgeAwardedEvent is emitted when a badge is awarded to a user.
type BadgeAwardedEvent struct {
	BaseEvent
	BadgeID   string `json:"badge_id"`
	BadgeName string `json:"badge_name"`
	UserID    string `json:"user_id"`
}

// Payload implements Event interface.
func (e BadgeAwardedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"badge_id":   e.BadgeID,
		"badge_name": e.BadgeName,
		"user_id":    e.UserID,
	}
}

// NewBadgeAwardedEvent creates a new BadgeAwardedEvent.
func NewBadgeAwardedEvent(badgeID, badgeName, userID string) BadgeAwardedEvent {
	return BadgeAwardedEvent{
		BaseEvent: NewBaseEvent(EventBadgeAwarded, badgeID),
		BadgeID:   badgeID,
		BadgeName: badgeName,
		UserID:    userID,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// System Events
// ═══════════════════════════════════════════════════════════════════════════

// SweepCompletedEvent is emitted when a scheduler sweep finishes.
type SweepCompletedEvent struct {
	BaseEvent
	SweepName string `json:"sweep_name"`
	Promoted  int    `json:"promoted"`
}

// Payload implements Event interface.
func (e SweepCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"sweep_name": e.SweepName,
		"promoted":   e.Promoted,
	}
}

// NewSweepCompletedEvent creates a new SweepCompletedEvent.
func NewSweepCompletedEvent(sweepName string, promoted int) SweepCompletedEvent {
	return SweepCompletedEvent{
		BaseEvent: NewBaseEvent(EventSweepCompleted, sweepName),
		SweepName: sweepName,
		Promoted:  promoted,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Bus Contracts
// ═══════════════════════════════════════════════════════════════════════════

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
