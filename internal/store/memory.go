package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ashureev/elicit/internal/domain"
)

// MemoryStore is an in-memory Repository. Non-persistent; used in tests and
// as a development fallback when no database path is configured.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]json.RawMessage
}

// NewMemory creates an empty in-memory repository.
func NewMemory() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]json.RawMessage)}
}

// Get retrieves a session ledger. Returns nil if not found.
func (m *MemoryStore) Get(_ context.Context, sessionID string) (*domain.SessionState, error) {
	m.mu.RLock()
	blob, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	// Deep copy through JSON so callers never share ledger instances.
	var state domain.SessionState
	if err := json.Unmarshal(blob, &state); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", sessionID, err)
	}
	normalize(&state)
	return &state, nil
}

// Save persists a deep copy of the session ledger.
func (m *MemoryStore) Save(_ context.Context, state *domain.SessionState) error {
	blob, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", state.SessionID, err)
	}

	m.mu.Lock()
	m.sessions[state.SessionID] = blob
	m.mu.Unlock()
	return nil
}

// Delete removes a session ledger.
func (m *MemoryStore) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	delete(m.sessions, sessionID)
	m.mu.Unlock()
	return nil
}

// Ping always succeeds for the in-memory store.
func (m *MemoryStore) Ping(context.Context) error { return nil }

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error { return nil }
