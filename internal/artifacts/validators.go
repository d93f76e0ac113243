package artifacts

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ashureev/elicit/internal/compliance"
	"github.com/ashureev/elicit/internal/domain"
)

// Validator checks generated or edited content for consistency with the
// ledger. Findings are advisory; they never block persistence.
type Validator interface {
	Validate(content json.RawMessage, state *domain.SessionState) []compliance.Issue
}

// DiagramValidator flags ledger actors missing from the diagram code.
type DiagramValidator struct{}

func (DiagramValidator) Validate(content json.RawMessage, state *domain.SessionState) []compliance.Issue {
	var diagram Diagram
	if err := json.Unmarshal(content, &diagram); err != nil || diagram.Code == "" {
		return nil
	}
	codeLower := strings.ToLower(diagram.Code)

	var issues []compliance.Issue
	for _, actor := range state.Actors {
		role := actor.RoleName
		if strings.Contains(codeLower, strings.ToLower(role)) {
			continue
		}
		issues = append(issues, compliance.Issue{
			ID:          "missing-actor-mermaid-" + role,
			Severity:    "medium",
			Category:    "consistency",
			Title:       "Missing Actor in Diagram",
			Description: fmt.Sprintf("The actor '%s' is defined in the project but does not appear in the diagram.", role),
			Suggestion:  fmt.Sprintf("Add a 'participant %s' line to the Mermaid code.", role),
		})
	}
	return issues
}

// StoryValidator flags ledger actors with no story covering their role.
// Matching is substring in either direction so "Senior Loan Officer"
// covers "Loan Officer".
type StoryValidator struct{}

func (StoryValidator) Validate(content json.RawMessage, state *domain.SessionState) []compliance.Issue {
	var set StorySet
	if err := json.Unmarshal(content, &set); err != nil {
		return nil
	}

	covered := make(map[string]struct{})
	for _, story := range set.Stories {
		if role := strings.ToLower(strings.TrimSpace(story.AsA)); role != "" {
			covered[role] = struct{}{}
		}
	}

	var issues []compliance.Issue
	for _, actor := range state.Actors {
		required := strings.ToLower(strings.TrimSpace(actor.RoleName))
		isCovered := false
		for role := range covered {
			if strings.Contains(role, required) || strings.Contains(required, role) {
				isCovered = true
				break
			}
		}
		if isCovered {
			continue
		}
		issues = append(issues, compliance.Issue{
			ID:          "missing-story-actor-" + required,
			Severity:    "medium",
			Category:    "consistency",
			Title:       "Missing User Story for Actor",
			Description: fmt.Sprintf("The actor '%s' exists in the system but has no User Stories assigned.", actor.RoleName),
			Suggestion:  fmt.Sprintf("Ask the agent to generate a story: 'As a %s, I want to...'", actor.RoleName),
		})
	}
	return issues
}
