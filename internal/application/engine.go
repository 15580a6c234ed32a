// Package application wires the command and query handlers into a single
// engine facade. Transport surfaces (HTTP, gRPC) depend on this package
// only; they never reach into repositories or the cache directly.
package application

import (
	"log/slog"

	"github.com/exhale-hub/exhale-backend/internal/application/command"
	"github.com/exhale-hub/exhale-backend/internal/application/query"
	"github.com/exhale-hub/exhale-backend/internal/domain/plan"
	"github.com/exhale-hub/exhale-backend/internal/domain/shared"
	"github.com/exhale-hub/exhale-backend/internal/domain/stage"
	rediscache "github.com/exhale-hub/exhale-backend/internal/infrastructure/persistence/redis"
)

// Engine aggregates every application-level operation of the progression
// engine.
type Engine struct {
	// Commands
	CreatePlan      *command.CreatePlanHandler
	TransitionPlan  *command.TransitionPlanHandler
	TransitionStage *command.TransitionStageHandler
	ReorderStages   *command.ReorderStagesHandler
	DeleteStage     *command.DeleteStageHandler

	// Queries
	GetPlan      *query.GetPlanHandler
	ListPlans    *query.ListPlansHandler
	GetPlanStats *query.GetPlanStatsHandler
}

// NewEngine builds the full handler set over the given dependencies.
func NewEngine(
	planRepo plan.Repository,
	stageRepo stage.Repository,
	coherence *rediscache.Coherence,
	publisher shared.EventPublisher,
	logger *slog.Logger,
) *Engine {
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		CreatePlan:      command.NewCreatePlanHandler(planRepo, coherence, publisher, logger),
		TransitionPlan:  command.NewTransitionPlanHandler(planRepo, coherence, publisher, logger),
		TransitionStage: command.NewTransitionStageHandler(stageRepo, planRepo, coherence, publisher, logger),
		ReorderStages:   command.NewReorderStagesHandler(stageRepo, planRepo, coherence, publisher, logger),
		DeleteStage:     command.NewDeleteStageHandler(stageRepo, planRepo, coherence, publisher, logger),
		GetPlan:         query.NewGetPlanHandler(planRepo, stageRepo, coherence, logger),
		ListPlans:       query.NewListPlansHandler(planRepo, coherence, logger),
		GetPlanStats:    query.NewGetPlanStatsHandler(planRepo, coherence, logger),
	}
}
