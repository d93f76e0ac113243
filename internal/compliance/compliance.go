// Package compliance audits the requirements ledger against the policy
// corpus using a structured LLM review.
package compliance

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ashureev/elicit/internal/domain"
	"github.com/ashureev/elicit/internal/jsonschema"
	"github.com/ashureev/elicit/internal/llm"
	"github.com/ashureev/elicit/internal/policy"
)

// Known issue categories. Anything else the model invents is coerced to
// "policy" instead of failing the audit.
var knownCategories = map[string]struct{}{
	"security":     {},
	"policy":       {},
	"consistency":  {},
	"completeness": {},
	"quality":      {},
	"business":     {},
}

// Issue is a single compliance finding.
type Issue struct {
	ID          string `json:"id"`
	Severity    string `json:"severity"`
	Category    string `json:"category"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Suggestion  string `json:"suggestion"`
}

// Report is the outcome of one audit pass.
type Report struct {
	Issues      []Issue `json:"issues"`
	SafetyScore int     `json:"safetyScore"`
}

// Checker runs compliance audits over a session ledger.
type Checker struct {
	llm      llm.Client
	policies policy.Store
	logger   *slog.Logger
}

// NewChecker creates a Checker.
func NewChecker(client llm.Client, policies policy.Store, logger *slog.Logger) *Checker {
	return &Checker{llm: client, policies: policies, logger: logger}
}

// Audit reviews the ledger against the most relevant policies. An empty
// ledger passes trivially without a model call.
func (c *Checker) Audit(ctx context.Context, state *domain.SessionState) (*Report, error) {
	if len(state.Actors) == 0 && len(state.ProcessSteps) == 0 {
		return &Report{Issues: []Issue{}, SafetyScore: 100}, nil
	}

	query := buildQuery(state)
	relevant, err := c.policies.Search(ctx, query, 5)
	if err != nil {
		return nil, fmt.Errorf("policy search: %w", err)
	}

	var policyLines []string
	for _, p := range relevant {
		policyLines = append(policyLines, fmt.Sprintf("- [%s] %s (Source: %s)", p.Category, p.Text, p.Source))
	}

	schema, err := reportSchema().MarshalStrict()
	if err != nil {
		return nil, fmt.Errorf("build report schema: %w", err)
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt(strings.Join(policyLines, "\n"))},
		{Role: llm.RoleUser, Content: "Here is the current requirements snapshot:\n" + snapshot(state)},
	}

	var report Report
	if err := c.llm.StructuredCompletion(ctx, messages, "compliance_report", schema, &report); err != nil {
		return nil, fmt.Errorf("compliance audit: %w", err)
	}

	for i := range report.Issues {
		report.Issues[i].Category = c.normalizeCategory(report.Issues[i].Category)
	}
	if report.Issues == nil {
		report.Issues = []Issue{}
	}
	return &report, nil
}

func (c *Checker) normalizeCategory(category string) string {
	normalized := strings.ToLower(strings.TrimSpace(category))
	if _, ok := knownCategories[normalized]; ok {
		return normalized
	}
	c.logger.Warn("coercing unknown compliance category", "category", category)
	return "policy"
}

// buildQuery joins the ledger into a bag of words for the policy searcher.
func buildQuery(state *domain.SessionState) string {
	var parts []string
	if state.ProjectScope != "" {
		parts = append(parts, state.ProjectScope)
	}
	for _, a := range state.Actors {
		parts = append(parts, a.RoleName)
	}
	for _, s := range state.ProcessSteps {
		parts = append(parts, s.Description)
	}
	return strings.Join(parts, " ")
}

func snapshot(state *domain.SessionState) string {
	goal := "Undefined"
	if state.Goal != nil {
		goal = state.Goal.MainGoal
	}
	var actors []string
	for _, a := range state.Actors {
		actors = append(actors, fmt.Sprintf("- %s: %s", a.RoleName, a.Responsibilities))
	}
	var steps []string
	for _, s := range state.ProcessSteps {
		steps = append(steps, fmt.Sprintf("%d. %s -> %s", s.StepID, s.Actor, s.Description))
	}
	return fmt.Sprintf("Project Scope: %s\nBusiness Goal: %s\n\nActors:\n%s\n\nProcess Steps:\n%s",
		state.ProjectScope, goal, strings.Join(actors, "\n"), strings.Join(steps, "\n"))
}

func systemPrompt(policyContext string) string {
	return fmt.Sprintf(`You are a Senior Compliance Officer & QA Auditor for a Bank.
Your job is to review the current business requirements and flag risks.

REFERENCE POLICIES (Strictly Enforce These):
%s

INSTRUCTIONS:
1. Analyze the Actors, Goal, and Process Steps.
2. Identify violations of the Reference Policies listed above.
3. Identify logical inconsistencies (e.g., steps that lead nowhere).
4. Identify vague requirements (e.g., "Manager does stuff").
5. Return a structured report. If everything looks good, return an empty list of issues and high score.`, policyContext)
}

func reportSchema() *jsonschema.Schema {
	issue := jsonschema.Object(map[string]*jsonschema.Schema{
		"id":          jsonschema.String("Unique ID for this issue"),
		"severity":    {Type: "string", Enum: []string{"low", "medium", "high", "critical"}},
		"category":    jsonschema.String("Issue category"),
		"title":       jsonschema.String(""),
		"description": jsonschema.String(""),
		"suggestion":  jsonschema.String(""),
	})
	return jsonschema.Object(map[string]*jsonschema.Schema{
		"issues":      jsonschema.Array(issue),
		"safetyScore": {Type: "integer", Description: "0-100 score"},
	})
}
