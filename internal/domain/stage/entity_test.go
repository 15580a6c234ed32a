package stage

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exhale-hub/exhale-backend/internal/domain/shared"
)

func TestCanTransition(t *testing.T) {
	allowed := map[[2]Status]bool{
		{StatusPending, StatusActive}:    true,
		{StatusPending, StatusSkipped}:   true,
		{StatusActive, StatusCompleted}:  true,
		{StatusActive, StatusSkipped}:    true,
		{StatusActive, StatusPending}:    true,
		{StatusSkipped, StatusPending}:   true,
	}

	all := []Status{StatusPending, StatusActive, StatusCompleted, StatusSkipped}
	for _, from := range all {
		for _, to := range all {
			got := CanTransition(from, to)
			assert.Equal(t, allowed[[2]Status{from, to}], got, "%s -> %s", from, to)
		}
	}
}

func TestTransitionTo_PendingToCompletedNeedsActive(t *testing.T) {
	now := time.Now().UTC()
	s := &Stage{ID: "stage-1", PlanID: "plan-1", Status: StatusPending}

	// Direct PENDING -> COMPLETED is rejected.
	err := s.TransitionTo(StatusCompleted, now)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrStateTransition))
	assert.Equal(t, StatusPending, s.Status)

	// Through ACTIVE it is accepted.
	require.NoError(t, s.TransitionTo(StatusActive, now))
	require.NoError(t, s.TransitionTo(StatusCompleted, now))
	assert.Equal(t, StatusCompleted, s.Status)

	// COMPLETED is terminal.
	err = s.TransitionTo(StatusPending, now)
	require.Error(t, err)
}

func TestNew_Validation(t *testing.T) {
	now := time.Now().UTC()
	start := now
	endBefore := now.Add(-time.Hour)

	_, err := New("stage-1", "plan-1", "", 1, nil, nil, now)
	assert.True(t, errors.Is(err, shared.ErrEmptyValue), "empty title")

	_, err = New("stage-1", "plan-1", "Cut down", 0, nil, nil, now)
	assert.True(t, errors.Is(err, shared.ErrValueOutOfRange), "non-positive order")

	_, err = New("stage-1", "plan-1", "Cut down", 1, &start, &endBefore, now)
	assert.True(t, errors.Is(err, shared.ErrInvalidDates), "end before start")

	s, err := New("stage-1", "plan-1", "Cut down", 1, nil, nil, now)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, s.Status)
}

func TestValidateOrderSet(t *testing.T) {
	tests := []struct {
		name        string
		assignments []OrderAssignment
		wantErr     bool
	}{
		{
			name: "valid permutation",
			assignments: []OrderAssignment{
				{StageID: "a", Order: 2},
				{StageID: "b", Order: 1},
				{StageID: "c", Order: 3},
			},
		},
		{
			name:        "single stage",
			assignments: []OrderAssignment{{StageID: "a", Order: 1}},
		},
		{
			name:        "empty set",
			assignments: nil,
			wantErr:     true,
		},
		{
			name: "gap in sequence",
			assignments: []OrderAssignment{
				{StageID: "a", Order: 1},
				{StageID: "b", Order: 3},
			},
			wantErr: true,
		},
		{
			name: "duplicate order",
			assignments: []OrderAssignment{
				{StageID: "a", Order: 1},
				{StageID: "b", Order: 1},
			},
			wantErr: true,
		},
		{
			name: "zero order",
			assignments: []OrderAssignment{
				{StageID: "a", Order: 0},
				{StageID: "b", Order: 1},
			},
			wantErr: true,
		},
		{
			name: "duplicate stage id",
			assignments: []OrderAssignment{
				{StageID: "a", Order: 1},
				{StageID: "a", Order: 2},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOrderSet(tt.assignments)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDueForActivation(t *testing.T) {
	now := time.Now().UTC()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	s := &Stage{Status: StatusPending, StartDate: &past}
	assert.True(t, s.DueForActivation(now))

	s.StartDate = &future
	assert.False(t, s.DueForActivation(now))

	s.StartDate = nil
	assert.False(t, s.DueForActivation(now), "stages without a start date are never swept")

	s.Status = StatusActive
	s.StartDate = &past
	assert.False(t, s.DueForActivation(now))
}
