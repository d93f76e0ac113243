package gap

import (
	"fmt"

	"github.com/ashureev/elicit/internal/domain"
)

// ScopeRule blocks everything else: without a scope there is nothing to build.
type ScopeRule struct{}

func (ScopeRule) Evaluate(state *domain.SessionState) *Issue {
	if state.ProjectScope != "" {
		return nil
	}
	return &Issue{
		Field:       "scope",
		Severity:    SeverityBlocker,
		Advice:      "The project scope is undefined. We cannot proceed without knowing what we are building.",
		MissingData: true,
	}
}

// ActorExistenceRule requires at least one actor.
type ActorExistenceRule struct{}

func (ActorExistenceRule) Evaluate(state *domain.SessionState) *Issue {
	if len(state.Actors) > 0 {
		return nil
	}
	return &Issue{
		Field:       "actors",
		Severity:    SeverityCritical,
		Advice:      "No actors identified. We need to know WHO interacts with the system.",
		MissingData: true,
	}
}

// BusinessGoalRule requires the singleton goal.
type BusinessGoalRule struct{}

func (BusinessGoalRule) Evaluate(state *domain.SessionState) *Issue {
	if state.Goal != nil {
		return nil
	}
	return &Issue{
		Field:       "goal",
		Severity:    SeverityCritical,
		Advice:      "Business goal is missing. We need to know WHY this project exists (KPIs/outcome).",
		MissingData: true,
	}
}

// ProcessDepthRule checks workflow depth, not just presence.
type ProcessDepthRule struct{}

func (ProcessDepthRule) Evaluate(state *domain.SessionState) *Issue {
	count := len(state.ProcessSteps)
	if count == 0 {
		return &Issue{
			Field:       "process_steps",
			Severity:    SeverityCritical,
			Advice:      "No process steps defined. We have the actors, but no workflow.",
			MissingData: true,
		}
	}
	if count < 3 {
		return &Issue{
			Field:       "process_steps",
			Severity:    SeverityWarning,
			Advice:      fmt.Sprintf("Process is very shallow (%d steps). Dig deeper into the workflow details.", count),
			MissingData: false,
		}
	}
	return nil
}
