package tools

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/ashureev/elicit/internal/jsonschema"
	"github.com/ashureev/elicit/internal/requirements"
)

// UpdateRequirements is the thin adapter from the model to the
// requirements pipeline. On success it emits a state update, a validation
// warning and a success status before returning the audit feedback.
type UpdateRequirements struct{}

func (UpdateRequirements) Name() string { return "update_requirements" }

func (UpdateRequirements) Description() string {
	return "Saves requirements to the Ledger. ALWAYS runs a Compliance Audit immediately after saving. Returns audit results."
}

func (UpdateRequirements) InputSchema() *jsonschema.Schema {
	persona := jsonschema.Object(map[string]*jsonschema.Schema{
		"role_name":        jsonschema.String("The actor's role name"),
		"responsibilities": jsonschema.String("What this actor does"),
	})
	goal := jsonschema.Object(map[string]*jsonschema.Schema{
		"main_goal":       jsonschema.String("The desired business outcome"),
		"success_metrics": jsonschema.Array(jsonschema.String("KPI")),
	})
	step := jsonschema.Object(map[string]*jsonschema.Schema{
		"step_id":     {Type: "integer", Description: "Sequential step number"},
		"description": jsonschema.String(""),
		"actor":       jsonschema.String("The role performing this step"),
	})
	entity := jsonschema.Object(map[string]*jsonschema.Schema{
		"name":        jsonschema.String("Entity name, e.g. 'Loan'"),
		"description": jsonschema.String(""),
		"fields":      jsonschema.Array(jsonschema.String("Field name")),
	})
	nfr := jsonschema.Object(map[string]*jsonschema.Schema{
		"id":          jsonschema.String("Unique ID, e.g. 'NFR-1'"),
		"category":    jsonschema.String("e.g. performance, security, availability"),
		"requirement": jsonschema.String(""),
	})
	return jsonschema.Object(map[string]*jsonschema.Schema{
		"project_scope":    jsonschema.String("The high-level scope of the project. Empty string to leave unchanged."),
		"goal":             {AnyOf: []*jsonschema.Schema{goal, {Type: "null"}}},
		"actors_to_add":    jsonschema.Array(persona),
		"actors_to_remove": jsonschema.Array(jsonschema.String("Role name to remove")),
		"process_steps":    jsonschema.Array(step),
		"steps_to_remove":  jsonschema.Array(&jsonschema.Schema{Type: "integer"}),
		"data_entities":    jsonschema.Array(entity),
		"nfrs":             jsonschema.Array(nfr),
	})
}

func (UpdateRequirements) Execute(ctx context.Context, args json.RawMessage, tc *Context) (string, error) {
	if tc.Requirements == nil {
		return "", errors.New("requirements service not available")
	}

	var req requirements.UpdateRequest
	if err := json.Unmarshal(args, &req); err != nil {
		// User-safe message back to the model so it can self-correct.
		return errorResult("Invalid arguments for update_requirements: " + err.Error()), nil
	}

	feedback, err := tc.Requirements.ProcessUpdate(ctx, tc.State.SessionID, req)
	if err != nil {
		return "", err
	}

	// Subsequent tools in this turn must see the fresh ledger.
	tc.State = feedback.State

	if err := tc.Emit(tc.Mapper.StateUpdate(feedback.State)); err != nil {
		tc.Logger.Warn("emit state update failed", "error", err)
	}
	warn := tc.Mapper.ValidationWarn(nil, scoreFromIssueCount(len(feedback.ComplianceIssues)))
	if feedback.Report != nil {
		warn = tc.Mapper.ValidationWarn(feedback.Report.Issues, feedback.Report.SafetyScore)
	}
	if err := tc.Emit(warn); err != nil {
		tc.Logger.Warn("emit validation warn failed", "error", err)
	}
	if err := tc.Emit(tc.Mapper.StatusUpdate("success", "Requirements saved")); err != nil {
		tc.Logger.Warn("emit status failed", "error", err)
	}

	raw, err := json.Marshal(feedback)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// scoreFromIssueCount is the heuristic used when no structured report is
// available: 10 points off per outstanding issue.
func scoreFromIssueCount(count int) int {
	score := 100 - 10*count
	if score < 0 {
		return 0
	}
	return score
}
