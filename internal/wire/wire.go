// Package wire defines the UI-facing event protocol: a {type, payload}
// envelope with camelCase payloads, and the mapping from internal models
// to contract shapes.
package wire

import (
	"encoding/json"

	"github.com/ashureev/elicit/internal/domain"
)

// Outbound message types.
const (
	MsgSessionEstablished = "SESSION_ESTABLISHED"
	MsgStateUpdate        = "STATE_UPDATE"
	MsgChatHistory        = "CHAT_HISTORY"
	MsgStatusUpdate       = "STATUS_UPDATE"
	MsgChatDelta          = "CHAT_DELTA"
	MsgArtifactOpen       = "ARTIFACT_OPEN"
	MsgArtifactUpdate     = "ARTIFACT_UPDATE"
	MsgArtifactSyncEvent  = "ARTIFACT_SYNC_EVENT"
	MsgValidationWarn     = "VALIDATION_WARN"
	MsgError              = "ERROR"
)

// Inbound message types.
const (
	MsgUserMessage        = "USER_MESSAGE"
	MsgArtifactEdit       = "ARTIFACT_EDIT"
	MsgArtifactVisualSync = "ARTIFACT_VISUAL_SYNC"
	MsgProjectPublish     = "PROJECT_PUBLISH"
)

// System status values.
const (
	StatusIdle     = "idle"
	StatusThinking = "thinking"
	StatusWorking  = "working"
	StatusSuccess  = "success"
)

// Edit sync statuses.
const (
	SyncProcessing = "processing"
	SyncSynced     = "synced"
	SyncError      = "error"
)

// Contract artifact content types understood by the UI renderer.
const (
	ContentMermaid  = "mermaid"
	ContentStories  = "stories"
	ContentWorkbook = "workbook"
	ContentJSON     = "json"
	ContentMarkdown = "markdown"
)

// Message is the envelope for every event in either direction.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Inbound is the envelope as received from the UI, payload left raw until
// the type is known.
type Inbound struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// UserMessagePayload carries one user chat message.
type UserMessagePayload struct {
	Content string `json:"content"`
}

// ArtifactEditPayload carries a user-submitted artifact edit. Content may
// be a JSON value or a bare string, decided per artifact type.
type ArtifactEditPayload struct {
	ID      string          `json:"id"`
	Content json.RawMessage `json:"content"`
}

// VisualSyncPayload carries rendered visual content from the UI.
type VisualSyncPayload struct {
	ID         string `json:"id"`
	VisualData string `json:"visual_data"`
	Format     string `json:"format"`
}

// ProjectPublishPayload requests a publishable document render.
type ProjectPublishPayload struct {
	Target string `json:"target"`
}

// SessionEstablishedPayload is always the first message after connect.
type SessionEstablishedPayload struct {
	SessionID string `json:"sessionId"`
	IsNew     bool   `json:"isNew"`
}

// StatusUpdatePayload drives the UI busy indicator.
type StatusUpdatePayload struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ChatDeltaPayload carries one assistant chat message.
type ChatDeltaPayload struct {
	Text string `json:"text"`
}

// ChatEntry is one visible chat turn.
type ChatEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatHistoryPayload restores the conversation on reconnect.
type ChatHistoryPayload struct {
	Messages []ChatEntry `json:"messages"`
}

// Artifact is the UI-facing artifact shape. ID is the stable type name,
// not a version-qualified key.
type Artifact struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Language string `json:"language,omitempty"`
}

// ArtifactUpdatePayload force-refreshes an existing tab's content.
type ArtifactUpdatePayload struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// ArtifactSyncEventPayload acknowledges a user-submitted edit.
type ArtifactSyncEventPayload struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ValidationIssue is one finding in a validation warning.
type ValidationIssue struct {
	Severity string `json:"severity"`
	Category string `json:"category"`
	Message  string `json:"message"`
}

// ValidationWarnPayload reports advisory findings with a safety score.
type ValidationWarnPayload struct {
	Issues      []ValidationIssue `json:"issues"`
	SafetyScore int               `json:"safetyScore"`
}

// ErrorPayload reports a recoverable server-side failure.
type ErrorPayload struct {
	Message string `json:"message"`
}

// Snapshot mirrors the ledger for the UI.
type Snapshot struct {
	SessionID    string         `json:"sessionId"`
	ProjectScope string         `json:"projectScope"`
	Actors       []SnapPersona  `json:"actors"`
	ProcessSteps []SnapStep     `json:"processSteps"`
	Goal         *SnapGoal      `json:"goal"`
}

type SnapPersona struct {
	RoleName         string `json:"roleName"`
	Responsibilities string `json:"responsibilities"`
}

type SnapStep struct {
	StepID      int    `json:"stepId"`
	Actor       string `json:"actor"`
	Description string `json:"description"`
}

type SnapGoal struct {
	MainGoal       string   `json:"mainGoal"`
	SuccessMetrics []string `json:"successMetrics"`
}

// NewSnapshot maps the internal ledger onto the contract snapshot.
func NewSnapshot(state *domain.SessionState) Snapshot {
	snap := Snapshot{
		SessionID:    state.SessionID,
		ProjectScope: state.ProjectScope,
		Actors:       []SnapPersona{},
		ProcessSteps: []SnapStep{},
	}
	for _, a := range state.Actors {
		snap.Actors = append(snap.Actors, SnapPersona{
			RoleName:         a.RoleName,
			Responsibilities: a.Responsibilities,
		})
	}
	for _, s := range state.ProcessSteps {
		snap.ProcessSteps = append(snap.ProcessSteps, SnapStep{
			StepID:      s.StepID,
			Actor:       s.Actor,
			Description: s.Description,
		})
	}
	if state.Goal != nil {
		snap.Goal = &SnapGoal{
			MainGoal:       state.Goal.MainGoal,
			SuccessMetrics: state.Goal.SuccessMetrics,
		}
	}
	return snap
}
