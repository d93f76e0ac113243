package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ashureev/elicit/internal/domain"
)

// Manager coordinates ledger mutations on top of a Repository: every mutation
// is fetch-latest, mutate through the domain helpers, persist. Callers must
// never hold a ledger reference across a blocking boundary without re-fetching.
type Manager struct {
	repo Repository
}

// NewManager wraps a repository.
func NewManager(repo Repository) *Manager {
	return &Manager{repo: repo}
}

// GetOrCreate loads the ledger, lazily creating and persisting an empty one
// for an unknown session ID.
func (m *Manager) GetOrCreate(ctx context.Context, sessionID string) (*domain.SessionState, error) {
	state, err := m.repo.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if state == nil {
		slog.Info("creating new session", "session_id", sessionID)
		state = domain.NewSessionState(sessionID)
		if err := m.repo.Save(ctx, state); err != nil {
			return nil, fmt.Errorf("create session: %w", err)
		}
	}
	return state, nil
}

// AppendMessages appends chat history entries through the fetch-mutate-persist
// cycle and returns the fresh ledger. Callers that held an older reference
// across a blocking call must switch to the returned state, or artifacts
// persisted concurrently by background tasks would be clobbered on save.
func (m *Manager) AppendMessages(ctx context.Context, sessionID string, msgs ...domain.ChatMessage) (*domain.SessionState, error) {
	state, err := m.GetOrCreate(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	for _, msg := range msgs {
		state.AppendMessage(msg)
	}
	if err := m.repo.Save(ctx, state); err != nil {
		return nil, fmt.Errorf("append messages: %w", err)
	}
	return state, nil
}

// Save persists the ledger as-is.
func (m *Manager) Save(ctx context.Context, state *domain.SessionState) error {
	return m.repo.Save(ctx, state)
}

// Delete removes the ledger.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	return m.repo.Delete(ctx, sessionID)
}

// UpdateScope overwrites the project scope.
func (m *Manager) UpdateScope(ctx context.Context, sessionID, scope string) (*domain.SessionState, error) {
	state, err := m.GetOrCreate(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	state.SetScope(scope)
	if err := m.repo.Save(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}

// UpdateGoal overwrites the business goal.
func (m *Manager) UpdateGoal(ctx context.Context, sessionID string, goal *domain.BusinessGoal) (*domain.SessionState, error) {
	state, err := m.GetOrCreate(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	state.SetGoal(goal)
	if err := m.repo.Save(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}

// AddActors adds actors with case-insensitive deduplication.
func (m *Manager) AddActors(ctx context.Context, sessionID string, actors []domain.Persona) (*domain.SessionState, error) {
	state, err := m.GetOrCreate(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if state.AddActors(actors) {
		if err := m.repo.Save(ctx, state); err != nil {
			return nil, err
		}
	}
	return state, nil
}

// RemoveActors removes actors by role name, case-insensitively.
func (m *Manager) RemoveActors(ctx context.Context, sessionID string, roleNames []string) (*domain.SessionState, error) {
	state, err := m.GetOrCreate(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if state.RemoveActors(roleNames) {
		if err := m.repo.Save(ctx, state); err != nil {
			return nil, err
		}
		slog.Info("removed actors", "session_id", sessionID, "roles", roleNames)
	}
	return state, nil
}

// UpdateSteps replaces the whole process step sequence.
func (m *Manager) UpdateSteps(ctx context.Context, sessionID string, steps []domain.ProcessStep) (*domain.SessionState, error) {
	state, err := m.GetOrCreate(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	state.SetSteps(steps)
	if err := m.repo.Save(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}

// RemoveSteps removes process steps by ID.
func (m *Manager) RemoveSteps(ctx context.Context, sessionID string, stepIDs []int) (*domain.SessionState, error) {
	state, err := m.GetOrCreate(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if state.RemoveSteps(stepIDs) {
		if err := m.repo.Save(ctx, state); err != nil {
			return nil, err
		}
		slog.Info("removed steps", "session_id", sessionID, "step_ids", stepIDs)
	}
	return state, nil
}

// MergeDataEntities merges entities with name dedup and field union.
func (m *Manager) MergeDataEntities(ctx context.Context, sessionID string, entities []domain.DataEntity) (*domain.SessionState, error) {
	state, err := m.GetOrCreate(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if state.MergeDataEntities(entities) {
		if err := m.repo.Save(ctx, state); err != nil {
			return nil, err
		}
	}
	return state, nil
}

// AddNFRs appends non-functional requirements with text dedup.
func (m *Manager) AddNFRs(ctx context.Context, sessionID string, nfrs []domain.NonFunctionalRequirement) (*domain.SessionState, error) {
	state, err := m.GetOrCreate(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if state.AddNFRs(nfrs) {
		if err := m.repo.Save(ctx, state); err != nil {
			return nil, err
		}
	}
	return state, nil
}
