package wire

import (
	"encoding/json"
	"fmt"

	"github.com/ashureev/elicit/internal/artifacts"
)

// Strategy maps stored artifact content to the UI-facing Artifact shape.
type Strategy interface {
	Map(content json.RawMessage, docID string) (Artifact, error)
}

// MermaidStrategy extracts the diagram code as plain content.
type MermaidStrategy struct{}

func (MermaidStrategy) Map(content json.RawMessage, docID string) (Artifact, error) {
	var diagram artifacts.Diagram
	if err := json.Unmarshal(content, &diagram); err != nil {
		return Artifact{}, fmt.Errorf("map diagram: %w", err)
	}
	return Artifact{
		ID:      docID,
		Type:    ContentMermaid,
		Title:   "Process Visualization",
		Content: diagram.Code,
	}, nil
}

// contractStory is the camelCase story shape the UI renders. The list
// fields must always be present, even when empty.
type contractStory struct {
	ID                 string   `json:"id"`
	Priority           string   `json:"priority"`
	Estimate           string   `json:"estimate"`
	Role               string   `json:"role"`
	Action             string   `json:"action"`
	Benefit            string   `json:"benefit"`
	Description        string   `json:"description"`
	Goal               string   `json:"goal"`
	Scope              []string `json:"scope"`
	OutOfScope         []string `json:"outOfScope"`
	AcceptanceCriteria []string `json:"acceptanceCriteria"`
}

// StoryStrategy serializes the backlog into the UI story contract.
type StoryStrategy struct{}

func (StoryStrategy) Map(content json.RawMessage, docID string) (Artifact, error) {
	var set artifacts.StorySet
	if err := json.Unmarshal(content, &set); err != nil {
		return Artifact{}, fmt.Errorf("map stories: %w", err)
	}

	mapped := make([]contractStory, 0, len(set.Stories))
	for _, s := range set.Stories {
		cs := contractStory{
			ID:                 s.ID,
			Priority:           s.Priority,
			Estimate:           s.Estimate,
			Role:               s.AsA,
			Action:             s.IWantTo,
			Benefit:            s.SoThat,
			Description:        s.Title,
			Scope:              emptyIfNil(s.Scope),
			OutOfScope:         emptyIfNil(s.OutOfScope),
			AcceptanceCriteria: emptyIfNil(s.AcceptanceCriteria),
		}
		if cs.Priority == "" {
			cs.Priority = "Medium"
		}
		if cs.Estimate == "" {
			cs.Estimate = "SP:?"
		}
		mapped = append(mapped, cs)
	}

	raw, err := json.Marshal(map[string]any{"stories": mapped})
	if err != nil {
		return Artifact{}, err
	}
	return Artifact{
		ID:      docID,
		Type:    ContentStories,
		Title:   "User Stories",
		Content: string(raw),
	}, nil
}

// UseCaseStrategy ships use cases as raw JSON for the structured viewer.
type UseCaseStrategy struct{}

func (UseCaseStrategy) Map(content json.RawMessage, docID string) (Artifact, error) {
	var set artifacts.UseCaseSet
	if err := json.Unmarshal(content, &set); err != nil {
		return Artifact{}, fmt.Errorf("map use cases: %w", err)
	}
	return Artifact{
		ID:      docID,
		Type:    ContentJSON,
		Title:   "Use Cases",
		Content: string(content),
	}, nil
}

// WorkbookStrategy serializes workbook categories into the UI contract.
type WorkbookStrategy struct{}

func (WorkbookStrategy) Map(content json.RawMessage, docID string) (Artifact, error) {
	var wb artifacts.Workbook
	if err := json.Unmarshal(content, &wb); err != nil {
		return Artifact{}, fmt.Errorf("map workbook: %w", err)
	}

	type contractItem struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	}
	type contractCategory struct {
		ID    string         `json:"id"`
		Title string         `json:"title"`
		Icon  string         `json:"icon,omitempty"`
		Items []contractItem `json:"items"`
	}

	categories := make([]contractCategory, 0, len(wb.Categories))
	for _, cat := range wb.Categories {
		items := make([]contractItem, 0, len(cat.Items))
		for _, item := range cat.Items {
			items = append(items, contractItem{ID: item.ID, Text: item.Text})
		}
		categories = append(categories, contractCategory{
			ID:    cat.ID,
			Title: cat.Title,
			Icon:  cat.Icon,
			Items: items,
		})
	}

	raw, err := json.Marshal(map[string]any{"categories": categories})
	if err != nil {
		return Artifact{}, err
	}
	return Artifact{
		ID:      docID,
		Type:    ContentWorkbook,
		Title:   "Analyst Workbook",
		Content: string(raw),
	}, nil
}

// DefaultStrategy is the fallback for unregistered types: the content is
// shipped verbatim as markdown.
type DefaultStrategy struct{}

func (DefaultStrategy) Map(content json.RawMessage, docID string) (Artifact, error) {
	return Artifact{
		ID:      docID,
		Type:    ContentMarkdown,
		Title:   "Generated Document",
		Content: string(content),
	}, nil
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
