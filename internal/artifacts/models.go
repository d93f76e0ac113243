// Package artifacts defines the derived-document types the assistant
// generates from the ledger, their generators and validators, and the
// registry resolving per-type behavior.
package artifacts

// Artifact type identifiers. These double as the stable wire IDs the UI
// uses for tab identity.
const (
	TypeMermaidDiagram = "mermaid_diagram"
	TypeUserStory      = "user_story"
	TypeUseCase        = "use_case"
	TypeWorkbook       = "workbook"
)

// Diagram is a generated MermaidJS visualization.
type Diagram struct {
	Code        string `json:"code"`
	Explanation string `json:"explanation"`
}

// UserStory is one agile story in the backlog artifact.
type UserStory struct {
	ID                 string   `json:"id"`
	Title              string   `json:"title"`
	AsA                string   `json:"as_a"`
	IWantTo            string   `json:"i_want_to"`
	SoThat             string   `json:"so_that"`
	AcceptanceCriteria []string `json:"acceptance_criteria"`
	Priority           string   `json:"priority"`
	Estimate           string   `json:"estimate"`
	Scope              []string `json:"scope"`
	OutOfScope         []string `json:"out_of_scope"`
}

// StorySet is the user-story artifact container.
type StorySet struct {
	Stories []UserStory `json:"stories"`
}

// FlowStep is one step of a use case's main flow.
type FlowStep struct {
	StepNumber      int    `json:"step_number"`
	Action          string `json:"action"`
	AlternativeFlow string `json:"alternative_flow"`
}

// UseCase is a formal use-case specification.
type UseCase struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	PrimaryActor   string     `json:"primary_actor"`
	Preconditions  []string   `json:"preconditions"`
	Postconditions []string   `json:"postconditions"`
	MainFlow       []FlowStep `json:"main_flow"`
}

// UseCaseSet is the use-case artifact container.
type UseCaseSet struct {
	UseCases []UseCase `json:"use_cases"`
}

// WorkbookItem is one line in a workbook category.
type WorkbookItem struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// WorkbookCategory groups workbook items under a titled, icon-tagged heading.
// Icon is one of: target, users, activity, process.
type WorkbookCategory struct {
	ID    string         `json:"id"`
	Title string         `json:"title"`
	Icon  string         `json:"icon"`
	Items []WorkbookItem `json:"items"`
}

// Workbook is the analyst-workbook artifact container.
type Workbook struct {
	Categories []WorkbookCategory `json:"categories"`
}
