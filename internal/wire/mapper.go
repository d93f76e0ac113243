package wire

import (
	"encoding/json"

	"github.com/ashureev/elicit/internal/artifacts"
	"github.com/ashureev/elicit/internal/compliance"
	"github.com/ashureev/elicit/internal/domain"
)

// Mapper is the translation layer from internal models to wire messages.
// Artifact content formatting is delegated per-type; unknown types fall
// back to the default strategy.
type Mapper struct {
	strategies map[string]Strategy
	fallback   Strategy
}

// NewMapper creates a mapper with the bundled per-type strategies.
func NewMapper() *Mapper {
	return &Mapper{
		strategies: map[string]Strategy{
			artifacts.TypeMermaidDiagram: MermaidStrategy{},
			artifacts.TypeUserStory:      StoryStrategy{},
			artifacts.TypeUseCase:        UseCaseStrategy{},
			artifacts.TypeWorkbook:       WorkbookStrategy{},
		},
		fallback: DefaultStrategy{},
	}
}

func (m *Mapper) strategy(artifactType string) Strategy {
	if s, ok := m.strategies[artifactType]; ok {
		return s
	}
	return m.fallback
}

// SessionEstablished is the connect handshake.
func (m *Mapper) SessionEstablished(sessionID string, isNew bool) Message {
	return Message{Type: MsgSessionEstablished, Payload: SessionEstablishedPayload{
		SessionID: sessionID,
		IsNew:     isNew,
	}}
}

// StatusUpdate normalizes unknown statuses to "working".
func (m *Mapper) StatusUpdate(status, message string) Message {
	switch status {
	case StatusIdle, StatusThinking, StatusWorking, StatusSuccess:
	default:
		status = StatusWorking
	}
	return Message{Type: MsgStatusUpdate, Payload: StatusUpdatePayload{
		Status:  status,
		Message: message,
	}}
}

// ChatDelta carries one assistant reply.
func (m *Mapper) ChatDelta(text string) Message {
	return Message{Type: MsgChatDelta, Payload: ChatDeltaPayload{Text: text}}
}

// ChatHistory restores visible conversation turns, dropping system and
// tool plumbing messages.
func (m *Mapper) ChatHistory(state *domain.SessionState) Message {
	entries := []ChatEntry{}
	for _, msg := range state.ChatHistory {
		if msg.Role != domain.RoleUser && msg.Role != domain.RoleAssistant {
			continue
		}
		if msg.Content == "" {
			continue
		}
		entries = append(entries, ChatEntry{Role: msg.Role, Content: msg.Content})
	}
	return Message{Type: MsgChatHistory, Payload: ChatHistoryPayload{Messages: entries}}
}

// StateUpdate mirrors the ledger to the UI.
func (m *Mapper) StateUpdate(state *domain.SessionState) Message {
	return Message{Type: MsgStateUpdate, Payload: NewSnapshot(state)}
}

// ArtifactOpen ensures a tab exists and is focused. The wire ID is the
// stable artifact type name.
func (m *Mapper) ArtifactOpen(artifactType string, content json.RawMessage) (Message, error) {
	artifact, err := m.strategy(artifactType).Map(content, artifactType)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: MsgArtifactOpen, Payload: artifact}, nil
}

// ArtifactUpdate force-refreshes an existing tab.
func (m *Mapper) ArtifactUpdate(artifactType string, content json.RawMessage) (Message, error) {
	artifact, err := m.strategy(artifactType).Map(content, artifactType)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: MsgArtifactUpdate, Payload: ArtifactUpdatePayload{
		ID:      artifact.ID,
		Content: artifact.Content,
	}}, nil
}

// SyncEvent acknowledges a user edit.
func (m *Mapper) SyncEvent(docID, status, message string) Message {
	return Message{Type: MsgArtifactSyncEvent, Payload: ArtifactSyncEventPayload{
		ID:      docID,
		Status:  status,
		Message: message,
	}}
}

// ValidationWarn maps compliance findings onto the wire payload.
func (m *Mapper) ValidationWarn(issues []compliance.Issue, score int) Message {
	wireIssues := []ValidationIssue{}
	for _, issue := range issues {
		message := issue.Title
		if issue.Description != "" {
			message += ": " + issue.Description
		}
		wireIssues = append(wireIssues, ValidationIssue{
			Severity: issue.Severity,
			Category: issue.Category,
			Message:  message,
		})
	}
	return Message{Type: MsgValidationWarn, Payload: ValidationWarnPayload{
		Issues:      wireIssues,
		SafetyScore: score,
	}}
}

// Error reports a recoverable failure.
func (m *Mapper) Error(message string) Message {
	return Message{Type: MsgError, Payload: ErrorPayload{Message: message}}
}
