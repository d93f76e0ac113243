// Package store provides session ledger persistence interfaces and implementations.
package store

import (
	"context"

	"github.com/ashureev/elicit/internal/domain"
)

// Repository defines the interface for persisting session state.
// Implementations must return (nil, nil) from Get when the session is unknown.
type Repository interface {
	// Get retrieves a session ledger by ID. Returns nil if not found.
	Get(ctx context.Context, sessionID string) (*domain.SessionState, error)

	// Save persists the full session ledger.
	Save(ctx context.Context, state *domain.SessionState) error

	// Delete removes a session ledger.
	Delete(ctx context.Context, sessionID string) error

	// Ping verifies storage connectivity.
	Ping(ctx context.Context) error

	// Close releases storage resources.
	Close() error
}
