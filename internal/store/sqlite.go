package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ashureev/elicit/internal/domain"
	"github.com/ashureev/elicit/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite. The full ledger is stored
// as a JSON blob per session; the ledger is always read-modify-written as a
// whole, so a blob column is the simplest faithful representation.
type SQLiteStore struct {
	db     *sql.DB
	saveMu sync.Mutex // serializes writers to avoid SQLITE_BUSY under WAL
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		state_json TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Get retrieves a session ledger. Returns nil if not found.
func (s *SQLiteStore) Get(ctx context.Context, sessionID string) (*domain.SessionState, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT state_json FROM sessions WHERE session_id = ?`, sessionID)

	var blob string
	err := row.Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}

	var state domain.SessionState
	if err := json.Unmarshal([]byte(blob), &state); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", sessionID, err)
	}
	normalize(&state)
	return &state, nil
}

// Save upserts the full session ledger.
func (s *SQLiteStore) Save(ctx context.Context, state *domain.SessionState) error {
	state.UpdatedAt = time.Now().UTC()

	blob, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", state.SessionID, err)
	}

	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	query := `
		INSERT INTO sessions (session_id, state_json, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			state_json = excluded.state_json,
			updated_at = excluded.updated_at`

	_, err = s.db.ExecContext(ctx, query,
		state.SessionID, string(blob), state.CreatedAt.Unix(), state.UpdatedAt.Unix())
	if shared.IsSQLiteConflictError(err) {
		// One retry after the busy window; writers are already serialized so
		// contention here comes from external readers holding the lock.
		slog.Warn("sqlite busy on save, retrying", "session_id", state.SessionID)
		_, err = s.db.ExecContext(ctx, query,
			state.SessionID, string(blob), state.CreatedAt.Unix(), state.UpdatedAt.Unix())
	}
	if err != nil {
		return fmt.Errorf("save session %s: %w", state.SessionID, err)
	}
	return nil
}

// Delete removes a session ledger.
func (s *SQLiteStore) Delete(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// normalize repairs nil maps after JSON decoding so mutation helpers can
// assume they exist.
func normalize(state *domain.SessionState) {
	if state.Artifacts == nil {
		state.Artifacts = make(map[string]json.RawMessage)
	}
	if state.VisualArtifacts == nil {
		state.VisualArtifacts = make(map[string]string)
	}
	if state.ArtifactCounters == nil {
		state.ArtifactCounters = make(map[string]int)
	}
}
