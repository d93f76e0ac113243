// Package domain contains the session ledger: the authoritative structured
// record of elicited business requirements for one conversation.
package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// Chat message roles as they appear in the ledger history.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolCall records a tool invocation requested by the assistant, as stored in
// chat history so a restored session replays the same context to the model.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ChatMessage is one role-tagged entry in the session's chat history.
type ChatMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// Persona is an actor participating in the business process.
type Persona struct {
	RoleName         string `json:"role_name"`
	Responsibilities string `json:"responsibilities,omitempty"`
}

// BusinessGoal is the singleton desired outcome with its success metrics.
type BusinessGoal struct {
	MainGoal       string   `json:"main_goal"`
	SuccessMetrics []string `json:"success_metrics"`
}

// ProcessStep is one ordered step of the elicited business process.
type ProcessStep struct {
	StepID      int    `json:"step_id"`
	Description string `json:"description"`
	Actor       string `json:"actor"`
}

// DataEntity is a named business data object with its known fields.
type DataEntity struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Fields      []string `json:"fields"`
}

// NonFunctionalRequirement captures a quality attribute requirement.
type NonFunctionalRequirement struct {
	ID          string `json:"id"`
	Category    string `json:"category"`
	Requirement string `json:"requirement"`
}

// SessionState is the ledger for one conversation. It is mutated exclusively
// through its methods and persisted after every mutation by the callers.
type SessionState struct {
	SessionID   string        `json:"session_id"`
	ChatHistory []ChatMessage `json:"chat_history"`

	ProjectScope string                     `json:"project_scope,omitempty"`
	Actors       []Persona                  `json:"actors"`
	Goal         *BusinessGoal              `json:"goal,omitempty"`
	ProcessSteps []ProcessStep              `json:"process_steps"`
	DataEntities []DataEntity               `json:"data_entities"`
	NFRs         []NonFunctionalRequirement `json:"nfrs"`

	// Artifacts is an append-only version log: key "{type}-v{n}" -> content.
	// Entries are never deleted or overwritten by generation; edits overwrite
	// the current version in place.
	Artifacts map[string]json.RawMessage `json:"artifacts"`

	// VisualArtifacts holds rendered visual content (e.g. SVG markup) synced
	// back from the UI, keyed like Artifacts.
	VisualArtifacts map[string]string `json:"visual_artifacts"`

	// ArtifactCounters maps artifact type -> latest version. Monotonically
	// increasing; the only mutable pointer into the version log.
	ArtifactCounters map[string]int `json:"artifact_counters"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSessionState creates an empty ledger for the given session ID.
func NewSessionState(sessionID string) *SessionState {
	now := time.Now().UTC()
	return &SessionState{
		SessionID:        sessionID,
		Artifacts:        make(map[string]json.RawMessage),
		VisualArtifacts:  make(map[string]string),
		ArtifactCounters: make(map[string]int),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// AppendMessage adds a message to the chat history.
func (s *SessionState) AppendMessage(msg ChatMessage) {
	s.ChatHistory = append(s.ChatHistory, msg)
}

// SetScope overwrites the project scope wholesale.
func (s *SessionState) SetScope(scope string) {
	s.ProjectScope = scope
}

// SetGoal overwrites the business goal wholesale.
func (s *SessionState) SetGoal(goal *BusinessGoal) {
	s.Goal = goal
}

// AddActors appends actors with case-insensitive deduplication on role name.
// Returns true if the ledger changed.
func (s *SessionState) AddActors(actors []Persona) bool {
	existing := make(map[string]struct{}, len(s.Actors))
	for _, a := range s.Actors {
		existing[strings.ToLower(a.RoleName)] = struct{}{}
	}

	changed := false
	for _, a := range actors {
		key := strings.ToLower(a.RoleName)
		if _, ok := existing[key]; ok {
			continue
		}
		s.Actors = append(s.Actors, a)
		existing[key] = struct{}{}
		changed = true
	}
	return changed
}

// RemoveActors removes actors whose role name matches case-insensitively.
// Returns true if the ledger changed.
func (s *SessionState) RemoveActors(roleNames []string) bool {
	targets := make(map[string]struct{}, len(roleNames))
	for _, r := range roleNames {
		targets[strings.ToLower(r)] = struct{}{}
	}

	kept := s.Actors[:0]
	for _, a := range s.Actors {
		if _, ok := targets[strings.ToLower(a.RoleName)]; !ok {
			kept = append(kept, a)
		}
	}
	changed := len(kept) != len(s.Actors)
	s.Actors = kept
	return changed
}

// SetSteps replaces the whole process step sequence.
func (s *SessionState) SetSteps(steps []ProcessStep) {
	s.ProcessSteps = steps
}

// RemoveSteps filters out steps by ID. Returns true if the ledger changed.
func (s *SessionState) RemoveSteps(stepIDs []int) bool {
	targets := make(map[int]struct{}, len(stepIDs))
	for _, id := range stepIDs {
		targets[id] = struct{}{}
	}

	kept := s.ProcessSteps[:0]
	for _, st := range s.ProcessSteps {
		if _, ok := targets[st.StepID]; !ok {
			kept = append(kept, st)
		}
	}
	changed := len(kept) != len(s.ProcessSteps)
	s.ProcessSteps = kept
	return changed
}

// MergeDataEntities adds entities deduplicated case-insensitively by name.
// When a name collides the field lists are unioned, never overwritten.
// Returns true if the ledger changed.
func (s *SessionState) MergeDataEntities(entities []DataEntity) bool {
	index := make(map[string]int, len(s.DataEntities))
	for i, e := range s.DataEntities {
		index[strings.ToLower(e.Name)] = i
	}

	changed := false
	for _, e := range entities {
		key := strings.ToLower(e.Name)
		i, ok := index[key]
		if !ok {
			s.DataEntities = append(s.DataEntities, e)
			index[key] = len(s.DataEntities) - 1
			changed = true
			continue
		}

		existing := &s.DataEntities[i]
		known := make(map[string]struct{}, len(existing.Fields))
		for _, f := range existing.Fields {
			known[strings.ToLower(f)] = struct{}{}
		}
		for _, f := range e.Fields {
			if _, dup := known[strings.ToLower(f)]; dup {
				continue
			}
			existing.Fields = append(existing.Fields, f)
			known[strings.ToLower(f)] = struct{}{}
			changed = true
		}
		if existing.Description == "" && e.Description != "" {
			existing.Description = e.Description
			changed = true
		}
	}
	return changed
}

// AddNFRs appends requirements deduplicated by exact case-insensitive match on
// the requirement text. Returns true if the ledger changed.
func (s *SessionState) AddNFRs(nfrs []NonFunctionalRequirement) bool {
	existing := make(map[string]struct{}, len(s.NFRs))
	for _, n := range s.NFRs {
		existing[strings.ToLower(n.Requirement)] = struct{}{}
	}

	changed := false
	for _, n := range nfrs {
		key := strings.ToLower(n.Requirement)
		if _, ok := existing[key]; ok {
			continue
		}
		s.NFRs = append(s.NFRs, n)
		existing[key] = struct{}{}
		changed = true
	}
	return changed
}

// IsEmpty reports whether the ledger has neither scope nor actors, i.e. there
// is nothing to visualize yet.
func (s *SessionState) IsEmpty() bool {
	return s.ProjectScope == "" && len(s.Actors) == 0
}
