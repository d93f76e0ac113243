package artifacts

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/ashureev/elicit/internal/domain"
	"github.com/ashureev/elicit/internal/llm"
	"github.com/ashureev/elicit/internal/promptctx"
)

// Generator produces a new artifact content blob from the current ledger.
type Generator interface {
	Generate(ctx context.Context, state *domain.SessionState) (json.RawMessage, error)
}

const diagramPrompt = `You are a Senior System Architect specializing in process visualization.

%s

DIAGRAM TYPE SELECTION:
Select the diagram type that best matches the visualization needs:

- **sequenceDiagram**: Interactions between actors/systems over time, API calls, message flows
- **flowchart** / **graph**: Decision trees, process flows with conditions, algorithmic steps
- **stateDiagram-v2**: System states, lifecycle stages, status transitions
- **erDiagram**: Database schemas, entity relationships, data models
- **journey**: User experiences, customer journeys, timeline-based processes

GENERATION RULES:
1. **Analyze the context first**: Determine which diagram type best fits the data.
2. **Declare all participants/nodes** at the start for diagram types that require it.
3. **Use safe identifiers**: Avoid spaces; use underscores or camelCase.
4. **Add meaningful labels**: Place human-readable text in quotes on arrows or nodes.
5. **Output ONLY valid Mermaid syntax**: no explanations, no markdown code blocks.

Return the complete, valid Mermaid diagram code.`

var fenceRe = regexp.MustCompile("(?m)^```(mermaid)?|```$")

// sanitizeMermaid strips markdown fences and semicolons known to break
// Mermaid 10.x rendering.
func sanitizeMermaid(code string) string {
	clean := fenceRe.ReplaceAllString(strings.TrimSpace(code), "")
	clean = strings.ReplaceAll(clean, ";", "")
	return strings.TrimSpace(clean)
}

// DiagramGenerator produces the process visualization.
type DiagramGenerator struct {
	llm     llm.Client
	context *promptctx.Builder
}

func NewDiagramGenerator(client llm.Client, builder *promptctx.Builder) *DiagramGenerator {
	return &DiagramGenerator{llm: client, context: builder}
}

func (g *DiagramGenerator) Generate(ctx context.Context, state *domain.SessionState) (json.RawMessage, error) {
	schema, err := diagramSchema().MarshalStrict()
	if err != nil {
		return nil, err
	}
	messages := []llm.Message{{
		Role:    llm.RoleSystem,
		Content: fmt.Sprintf(diagramPrompt, g.context.Build(state)),
	}}

	var diagram Diagram
	if err := g.llm.StructuredCompletion(ctx, messages, "mermaid_diagram", schema, &diagram); err != nil {
		return nil, fmt.Errorf("generate diagram: %w", err)
	}
	diagram.Code = sanitizeMermaid(diagram.Code)
	return json.Marshal(diagram)
}

const storyPrompt = `You are an Agile Business Analyst.
Generate a list of User Stories based on the provided Context.

%s

RULES:
1. Follow standard format: "As a <role>, I want to <action>, so that <benefit>".
2. PRIMARILY derive stories from the 'PROCESS FLOW' steps.
3. Ensure every 'DEFINED ACTOR' has at least one story (even if high-level).
4. Include 3-5 acceptance criteria per story.`

// StoryGenerator produces the user-story backlog.
type StoryGenerator struct {
	llm     llm.Client
	context *promptctx.Builder
}

func NewStoryGenerator(client llm.Client, builder *promptctx.Builder) *StoryGenerator {
	return &StoryGenerator{llm: client, context: builder}
}

func (g *StoryGenerator) Generate(ctx context.Context, state *domain.SessionState) (json.RawMessage, error) {
	schema, err := storySetSchema().MarshalStrict()
	if err != nil {
		return nil, err
	}
	messages := []llm.Message{{
		Role:    llm.RoleSystem,
		Content: fmt.Sprintf(storyPrompt, g.context.Build(state)),
	}}

	var stories StorySet
	if err := g.llm.StructuredCompletion(ctx, messages, "user_stories", schema, &stories); err != nil {
		return nil, fmt.Errorf("generate stories: %w", err)
	}
	return json.Marshal(stories)
}

const useCasePrompt = `You are a Senior Systems Analyst.
Generate formal Use Cases based on the Context and Current Draft.

%s

=== CURRENT DRAFT (PREVIOUS VERSION) ===
%s
========================================

INSTRUCTIONS:
1. **Scope**: Create detailed Use Cases for the identified Process Steps.
2. **Structure**: Each Use Case must have a Primary Actor, Preconditions, Postconditions, and a Main Flow.
3. **Flows**:
   - 'action': The happy path step.
   - 'alternative_flow': Only populate if there is a specific branch/error (e.g., "If User cancels...").
4. **Preserve Edits**: If the Current Draft contains manual details (e.g., specific alternative flows), PRESERVE them.
5. **Formatting**: Ensure step_number increments sequentially (1, 2, 3...).`

// UseCaseGenerator produces use cases, forward-syncing the previous draft
// so manual edits survive regeneration.
type UseCaseGenerator struct {
	llm     llm.Client
	context *promptctx.Builder
}

func NewUseCaseGenerator(client llm.Client, builder *promptctx.Builder) *UseCaseGenerator {
	return &UseCaseGenerator{llm: client, context: builder}
}

func (g *UseCaseGenerator) Generate(ctx context.Context, state *domain.SessionState) (json.RawMessage, error) {
	schema, err := useCaseSetSchema().MarshalStrict()
	if err != nil {
		return nil, err
	}
	messages := []llm.Message{{
		Role:    llm.RoleSystem,
		Content: fmt.Sprintf(useCasePrompt, g.context.Build(state), currentDraft(state, TypeUseCase)),
	}}

	var cases UseCaseSet
	if err := g.llm.StructuredCompletion(ctx, messages, "use_cases", schema, &cases); err != nil {
		return nil, fmt.Errorf("generate use cases: %w", err)
	}
	return json.Marshal(cases)
}

const workbookPrompt = `You are a Senior Business Analyst.
Update the Analyst Workbook based on the Project Context and the Current Draft.

%s

=== CURRENT DRAFT (PREVIOUS VERSION) ===
%s
========================================

INSTRUCTIONS:
1. **Categorize**: Group information into 'Business Goals', 'Scope & Actors', 'Process Flow', and 'KPIs'.
2. **Icons**: Assign these icons to categories: 'target' (Goals), 'users' (Actors), 'process' (Flows), 'activity' (KPIs).
3. **IDs**: Generate unique string IDs for every item and category.
4. **Preserve User Edits**: The CURRENT DRAFT contains manual edits (e.g., custom KPIs, specific notes). You MUST preserve these items unless they strictly contradict the new context.
5. **Merge**: Add new information from the Context (new goals, actors) into the appropriate categories.

Return the fully merged JSON structure.`

// WorkbookGenerator produces the analyst workbook, merging over the
// previous draft.
type WorkbookGenerator struct {
	llm     llm.Client
	context *promptctx.Builder
}

func NewWorkbookGenerator(client llm.Client, builder *promptctx.Builder) *WorkbookGenerator {
	return &WorkbookGenerator{llm: client, context: builder}
}

func (g *WorkbookGenerator) Generate(ctx context.Context, state *domain.SessionState) (json.RawMessage, error) {
	schema, err := workbookSchema().MarshalStrict()
	if err != nil {
		return nil, err
	}
	messages := []llm.Message{{
		Role:    llm.RoleSystem,
		Content: fmt.Sprintf(workbookPrompt, g.context.Build(state), currentDraft(state, TypeWorkbook)),
	}}

	var workbook Workbook
	if err := g.llm.StructuredCompletion(ctx, messages, "workbook", schema, &workbook); err != nil {
		return nil, fmt.Errorf("generate workbook: %w", err)
	}
	return json.Marshal(workbook)
}

func currentDraft(state *domain.SessionState, artifactType string) string {
	raw, ok := state.CurrentArtifact(artifactType)
	if !ok {
		return "No previous draft."
	}
	return string(raw)
}
