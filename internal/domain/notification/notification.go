// Package notification defines the narrow contract the engine needs from the
// notification subsystem. Content templating and delivery channels live
// outside the engine; from here a dispatch is fire-and-forget.
package notification

import (
	"context"
	"fmt"
)

// Type classifies notifications the engine produces.
type Type string

const (
	// TypeBadgeAwarded - a badge was awarded to the user.
	TypeBadgeAwarded Type = "badge_awarded"

	// TypeStreakMilestone - the user's smoke-free streak hit a milestone.
	TypeStreakMilestone Type = "streak_milestone"

	// TypePlanActivated - the user's plan was promoted to ACTIVE by the sweep.
	TypePlanActivated Type = "plan_activated"
)

// Notification is the payload handed to the dispatcher.
type Notification struct {
	UserID   string                 `json:"user_id"`
	Type     Type                   `json:"type"`
	Title    string                 `json:"title"`
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Dispatcher sends notifications. Failures are the engine's problem only to
// the extent of logging them; a failed dispatch never rolls back the
// mutation or badge award that triggered it.
type Dispatcher interface {
	SendNotification(ctx context.Context, n Notification) error
}

// NewStreakMilestone builds the milestone notification for a streak day.
func NewStreakMilestone(userID string, days int) Notification {
	return Notification{
		UserID:  userID,
		Type:    TypeStreakMilestone,
		Title:   "Streak milestone",
		Content: fmt.Sprintf("You have been smoke-free for %d days. Keep going!", days),
		Metadata: map[string]interface{}{
			"streak_days": days,
		},
	}
}

// StreakMilestones are the streak lengths (in days) that fire a milestone
// notification regardless of badge outcome.
var StreakMilestones = []int{1, 3, 7, 14, 30, 60, 90, 180, 365}

// IsStreakMilestone reports whether the given streak is a milestone.
func IsStreakMilestone(days int) bool {
	for _, m := range StreakMilestones {
		if m == days {
			return true
		}
	}
	return false
}
