package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ashureev/elicit/internal/artifacts"
	"github.com/ashureev/elicit/internal/jsonschema"
)

// TriggerVisualization queues artifact generation and returns immediately.
// It refuses to run against an entirely empty ledger.
type TriggerVisualization struct{}

func (TriggerVisualization) Name() string { return "trigger_visualization" }

func (TriggerVisualization) Description() string {
	return "Queues artifact generation (Diagrams, Stories, Use Cases, Workbook). ONLY call this if 'update_requirements' returns no blocking compliance errors."
}

func (TriggerVisualization) InputSchema() *jsonschema.Schema {
	return jsonschema.Object(map[string]*jsonschema.Schema{
		"artifact_types": jsonschema.Array(&jsonschema.Schema{
			Type: "string",
			Enum: []string{
				artifacts.TypeMermaidDiagram,
				artifacts.TypeUserStory,
				artifacts.TypeUseCase,
				artifacts.TypeWorkbook,
			},
			Description: "Which artifacts to generate.",
		}),
	})
}

func (TriggerVisualization) Execute(_ context.Context, args json.RawMessage, tc *Context) (string, error) {
	if tc.Schedule == nil {
		return "", errors.New("scheduler not available")
	}

	var input struct {
		ArtifactTypes []string `json:"artifact_types"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return errorResult("Invalid arguments for trigger_visualization: " + err.Error()), nil
	}

	if tc.State.IsEmpty() {
		raw, _ := json.Marshal(map[string]string{
			"status": "failed",
			"reason": "State is empty. Cannot visualize yet.",
		})
		return string(raw), nil
	}

	triggered := make([]string, 0, len(input.ArtifactTypes))
	for _, artifactType := range input.ArtifactTypes {
		tc.Schedule(artifactType)
		triggered = append(triggered, artifactType)
	}

	raw, err := json.Marshal(map[string]string{
		"status":  "queued",
		"message": fmt.Sprintf("Background jobs started for: %v. Tell the user to check the sidebar.", triggered),
	})
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
