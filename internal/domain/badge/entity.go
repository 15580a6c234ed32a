// Package badge contains the badge domain model and the pluggable
// eligibility evaluation engine. Badges are awardable achievements whose
// eligibility rule lives in a serialized criteria descriptor, so new badge
// kinds can be configured without code changes as long as an evaluator for
// the criteria type is registered.
package badge

import (
	"encoding/json"
	"time"

	"github.com/exhale-hub/exhale-backend/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENTITIES
// ══════════════════════════════════════════════════════════════════════════════

// Badge is an awardable achievement.
type Badge struct {
	// ID is the internal unique identifier (UUID in string format).
	ID string

	// Name is the display name, e.g. "First Step".
	Name string

	// Description explains how to earn the badge.
	Description string

	// Requirements is the serialized criteria descriptor:
	// {"criteria_type": "...", ...params}. Kept as raw JSON; it is parsed
	// and validated at the evaluator boundary, not globally.
	Requirements json.RawMessage

	// Active controls whether the badge participates in evaluation.
	Active bool

	// SortOrder controls presentation ordering.
	SortOrder int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserBadge records a badge awarded to a user.
type UserBadge struct {
	ID        string
	UserID    string
	BadgeID   string
	AwardedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUIREMENTS
// ══════════════════════════════════════════════════════════════════════════════

// Requirements is the parsed form of a badge's criteria descriptor.
// Beyond CriteriaType the payload is badge-specific, so it stays generic.
type Requirements struct {
	CriteriaType string
	Params       map[string]interface{}
}

// ParseRequirements parses a badge's raw requirements. Malformed payloads
// (not JSON, not an object, missing criteria_type) return an error; callers
// in the evaluation path treat that as "not eligible", never as a failure
// of the triggering business operation.
func ParseRequirements(raw json.RawMessage) (*Requirements, error) {
	if len(raw) == 0 {
		return nil, shared.WrapError("badge", "ParseRequirements", shared.ErrEmptyValue, "requirements are empty", nil)
	}

	var params map[string]interface{}
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, shared.WrapError("badge", "ParseRequirements", shared.ErrInvalidInput, "requirements are not a JSON object", err)
	}

	criteriaType, ok := params["criteria_type"].(string)
	if !ok || criteriaType == "" {
		return nil, shared.WrapError("badge", "ParseRequirements", shared.ErrInvalidInput, "requirements missing criteria_type", nil)
	}

	return &Requirements{
		CriteriaType: criteriaType,
		Params:       params,
	}, nil
}

// IntParam reads an integer parameter from the requirements payload.
// JSON numbers decode as float64, so both forms are accepted.
func (r *Requirements) IntParam(key string) (int, bool) {
	v, ok := r.Params[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	default:
		return 0, false
	}
}
