package orchestrator

import (
	"github.com/ashureev/elicit/internal/artifacts"
	"github.com/ashureev/elicit/internal/edit"
	"github.com/ashureev/elicit/internal/llm"
	"github.com/ashureev/elicit/internal/promptctx"
	"github.com/ashureev/elicit/internal/tools"
)

// DefaultCatalog binds every supported artifact type to its generator,
// validator, search and edit behavior. Unknown types fall back to a
// bare titled entry with no behaviors.
func DefaultCatalog(client llm.Client, builder *promptctx.Builder) *artifacts.Catalog {
	catalog := artifacts.NewCatalog(artifacts.Entry{Title: "Generated Document"})

	catalog.Register(artifacts.TypeMermaidDiagram, artifacts.Entry{
		Title:     "Process Visualization",
		Generator: artifacts.NewDiagramGenerator(client, builder),
		Validator: artifacts.DiagramValidator{},
		Edit:      edit.Mermaid{},
	})
	catalog.Register(artifacts.TypeUserStory, artifacts.Entry{
		Title:     "User Stories",
		Generator: artifacts.NewStoryGenerator(client, builder),
		Validator: artifacts.StoryValidator{},
		Search:    artifacts.StorySearch{},
		Edit:      edit.Stories{},
	})
	catalog.Register(artifacts.TypeUseCase, artifacts.Entry{
		Title:     "Use Cases",
		Generator: artifacts.NewUseCaseGenerator(client, builder),
		Search:    artifacts.UseCaseSearch{},
		Edit:      edit.UseCases{},
	})
	catalog.Register(artifacts.TypeWorkbook, artifacts.Entry{
		Title:     "Analyst Workbook",
		Generator: artifacts.NewWorkbookGenerator(client, builder),
		Search:    artifacts.WorkbookSearch{},
		Edit:      edit.Workbook{},
	})

	return catalog
}

// DefaultRegistry returns the tool set exposed to the model.
func DefaultRegistry() *tools.Registry {
	r := tools.NewRegistry()
	r.Register(tools.UpdateRequirements{})
	r.Register(tools.TriggerVisualization{})
	r.Register(tools.InspectArtifact{})
	r.Register(tools.PatchArtifact{})
	return r
}
