// Package requirements implements the update -> audit -> feedback pipeline
// behind the update_requirements tool.
package requirements

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ashureev/elicit/internal/compliance"
	"github.com/ashureev/elicit/internal/domain"
	"github.com/ashureev/elicit/internal/gap"
	"github.com/ashureev/elicit/internal/store"
)

// UpdateRequest carries one batch of ledger changes. Removals are always
// applied before additions so a remove+add of the same role in one call
// ends with the new definition.
type UpdateRequest struct {
	ProjectScope   string                            `json:"project_scope"`
	Goal           *domain.BusinessGoal              `json:"goal"`
	ActorsToAdd    []domain.Persona                  `json:"actors_to_add"`
	ActorsToRemove []string                          `json:"actors_to_remove"`
	ProcessSteps   []domain.ProcessStep              `json:"process_steps"`
	StepsToRemove  []int                             `json:"steps_to_remove"`
	DataEntities   []domain.DataEntity               `json:"data_entities"`
	NFRs           []domain.NonFunctionalRequirement `json:"nfrs"`
}

// Snapshot summarizes the post-update ledger for the model.
type Snapshot struct {
	Scope  string `json:"scope"`
	Actors int    `json:"actors"`
	Steps  int    `json:"steps"`
}

// Feedback is the structured result returned to the agent after an update.
// State and Report ride along for event emission and are not serialized.
type Feedback struct {
	Status           string   `json:"status"`
	Snapshot         Snapshot `json:"current_state_snapshot"`
	CompletenessGaps []string `json:"completeness_gaps"`
	ComplianceIssues []string `json:"compliance_issues"`

	State  *domain.SessionState `json:"-"`
	Report *compliance.Report   `json:"-"`
}

// Service applies updates and runs the full audit suite.
type Service struct {
	manager *store.Manager
	gaps    *gap.Engine
	checker *compliance.Checker
	strict  bool
	logger  *slog.Logger
}

// NewService creates the pipeline. In strict mode a failed compliance
// audit fails the whole update; otherwise it degrades to a warning.
func NewService(manager *store.Manager, gaps *gap.Engine, checker *compliance.Checker, strict bool, logger *slog.Logger) *Service {
	return &Service{
		manager: manager,
		gaps:    gaps,
		checker: checker,
		strict:  strict,
		logger:  logger,
	}
}

// ProcessUpdate applies the request and audits the result. Every mutation
// goes through the manager's fetch-mutate-persist cycle; the final state
// is re-fetched so feedback reflects exactly what was persisted.
func (s *Service) ProcessUpdate(ctx context.Context, sessionID string, req UpdateRequest) (*Feedback, error) {
	// Removals first: remove-then-add prevents conflicts when the same
	// role is replaced in a single call.
	if len(req.ActorsToRemove) > 0 {
		if _, err := s.manager.RemoveActors(ctx, sessionID, req.ActorsToRemove); err != nil {
			return nil, fmt.Errorf("remove actors: %w", err)
		}
	}
	if len(req.StepsToRemove) > 0 {
		if _, err := s.manager.RemoveSteps(ctx, sessionID, req.StepsToRemove); err != nil {
			return nil, fmt.Errorf("remove steps: %w", err)
		}
	}

	if req.ProjectScope != "" {
		if _, err := s.manager.UpdateScope(ctx, sessionID, req.ProjectScope); err != nil {
			return nil, fmt.Errorf("update scope: %w", err)
		}
	}
	if req.Goal != nil {
		if _, err := s.manager.UpdateGoal(ctx, sessionID, req.Goal); err != nil {
			return nil, fmt.Errorf("update goal: %w", err)
		}
	}
	if len(req.ActorsToAdd) > 0 {
		if _, err := s.manager.AddActors(ctx, sessionID, req.ActorsToAdd); err != nil {
			return nil, fmt.Errorf("add actors: %w", err)
		}
	}
	if len(req.ProcessSteps) > 0 {
		if _, err := s.manager.UpdateSteps(ctx, sessionID, req.ProcessSteps); err != nil {
			return nil, fmt.Errorf("update steps: %w", err)
		}
	}
	if len(req.DataEntities) > 0 {
		if _, err := s.manager.MergeDataEntities(ctx, sessionID, req.DataEntities); err != nil {
			return nil, fmt.Errorf("merge entities: %w", err)
		}
	}
	if len(req.NFRs) > 0 {
		if _, err := s.manager.AddNFRs(ctx, sessionID, req.NFRs); err != nil {
			return nil, fmt.Errorf("add nfrs: %w", err)
		}
	}

	// Read-your-writes: audits run on the persisted state, not on any
	// reference held across the mutations above.
	state, err := s.manager.GetOrCreate(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("reload session: %w", err)
	}

	gapResult := s.gaps.Analyze(state)
	gaps := make([]string, 0, len(gapResult.Issues))
	for _, issue := range gapResult.Issues {
		gaps = append(gaps, issue.Advice)
	}

	feedback := &Feedback{
		Status: "success",
		Snapshot: Snapshot{
			Scope:  state.ProjectScope,
			Actors: len(state.Actors),
			Steps:  len(state.ProcessSteps),
		},
		CompletenessGaps: gaps,
		ComplianceIssues: []string{},
		State:            state,
	}

	report, err := s.checker.Audit(ctx, state)
	if err != nil {
		if s.strict {
			return nil, fmt.Errorf("compliance audit: %w", err)
		}
		s.logger.Warn("compliance check degraded", "session_id", sessionID, "error", err)
		feedback.ComplianceIssues = []string{
			fmt.Sprintf("System Warning: Compliance check unavailable (%v)", err),
		}
		return feedback, nil
	}

	feedback.Report = report
	for _, issue := range report.Issues {
		feedback.ComplianceIssues = append(feedback.ComplianceIssues,
			fmt.Sprintf("[%s] %s: %s", strings.ToUpper(issue.Severity), issue.Title, issue.Description))
	}
	return feedback, nil
}
