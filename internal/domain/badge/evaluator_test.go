package badge

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exhale-hub/exhale-backend/internal/domain/shared"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := NewRegistry(nil, DefaultEvaluators()...)
	require.NoError(t, err)
	return r
}

func streakBadge(days int) *Badge {
	raw, _ := json.Marshal(map[string]interface{}{
		"criteria_type": CriteriaStreakDays,
		"days":          days,
	})
	return &Badge{ID: "badge-streak", Name: "Streak", Requirements: raw, Active: true}
}

func TestRegistry_RejectsDuplicateCriteriaType(t *testing.T) {
	_, err := NewRegistry(nil, StreakEvaluator{}, StreakEvaluator{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrConflict))
}

func TestCheckEligibility_Streak(t *testing.T) {
	r := newTestRegistry(t)
	b := streakBadge(7)

	ctx := EventContext{
		UserID:        "user-1",
		EventType:     shared.EventStreakUpdated,
		CurrentStreak: 7,
	}
	assert.True(t, r.CheckEligibility(b, ctx), "streak 7 meets days=7")

	assert.True(t, r.CheckEligibility(streakBadge(7), EventContext{
		UserID: "user-1", EventType: shared.EventStreakUpdated, CurrentStreak: 10,
	}), "streak above threshold is eligible")

	assert.False(t, r.CheckEligibility(streakBadge(8), ctx), "streak 7 does not meet days=8")

	ctx.EventType = shared.EventPlanCreated
	assert.False(t, r.CheckEligibility(b, ctx), "wrong event type is never eligible")
}

func TestCheckEligibility_FirstPlan(t *testing.T) {
	r := newTestRegistry(t)
	raw, _ := json.Marshal(map[string]interface{}{"criteria_type": CriteriaFirstPlanCreated})
	b := &Badge{ID: "badge-first", Requirements: raw, Active: true}

	assert.True(t, r.CheckEligibility(b, EventContext{
		UserID: "user-1", EventType: shared.EventPlanCreated, IsFirstPlan: true,
	}))
	assert.False(t, r.CheckEligibility(b, EventContext{
		UserID: "user-1", EventType: shared.EventPlanCreated, IsFirstPlan: false,
	}), "second plan does not qualify")
}

func TestCheckEligibility_StagesCompleted(t *testing.T) {
	r := newTestRegistry(t)
	raw, _ := json.Marshal(map[string]interface{}{
		"criteria_type": CriteriaStagesCompleted,
		"count":         3,
	})
	b := &Badge{ID: "badge-stages", Requirements: raw, Active: true}

	assert.True(t, r.CheckEligibility(b, EventContext{
		UserID: "user-1", EventType: shared.EventStageCompleted, CompletedStagesInPlan: 3,
	}))
	assert.False(t, r.CheckEligibility(b, EventContext{
		UserID: "user-1", EventType: shared.EventStageCompleted, CompletedStagesInPlan: 2,
	}))
}

func TestCheckEligibility_MalformedRequirements(t *testing.T) {
	r := newTestRegistry(t)
	ctx := EventContext{UserID: "user-1", EventType: shared.EventStreakUpdated, CurrentStreak: 100}

	tests := []struct {
		name string
		raw  json.RawMessage
	}{
		{"invalid json", json.RawMessage(`{not json`)},
		{"not an object", json.RawMessage(`"streak_days"`)},
		{"missing criteria_type", json.RawMessage(`{"days": 7}`)},
		{"unknown criteria_type", json.RawMessage(`{"criteria_type": "phases_of_the_moon"}`)},
		{"missing per-type param", json.RawMessage(`{"criteria_type": "streak_days"}`)},
		{"empty", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &Badge{ID: "badge-bad", Name: "Bad", Requirements: tt.raw, Active: true}
			assert.NotPanics(t, func() {
				assert.False(t, r.CheckEligibility(b, ctx))
			})
		})
	}
}

func TestParseRequirements(t *testing.T) {
	req, err := ParseRequirements(json.RawMessage(`{"criteria_type":"streak_days","days":30}`))
	require.NoError(t, err)
	assert.Equal(t, "streak_days", req.CriteriaType)

	days, ok := req.IntParam("days")
	assert.True(t, ok)
	assert.Equal(t, 30, days)

	_, ok = req.IntParam("missing")
	assert.False(t, ok)
}
