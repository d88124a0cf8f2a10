package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/tutorlabs/internal/domain"
	"github.com/ashureev/tutorlabs/internal/shared"
	_ "modernc.org/sqlite"
)

const (
	writeRetries    = 3
	writeRetryDelay = 100 * time.Millisecond
)

// SQLiteStore implements Store using SQLite. Sessions are stored as JSON
// documents next to the columns needed for expiry.
type SQLiteStore struct {
	db      *sql.DB
	timeout time.Duration
	now     func() time.Time
}

// NewSQLite opens (and creates if needed) the database at dbPath.
func NewSQLite(dbPath string, timeout time.Duration) (*SQLiteStore, error) {
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

	store := &SQLiteStore{db: db, timeout: orDefault(timeout), now: time.Now}
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
		topic_id TEXT,
		turn_count INTEGER NOT NULL DEFAULT 0,
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

// Get loads a session by id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT state_json, updated_at FROM sessions WHERE session_id = ?`, id)

	var stateJSON string
	var updatedAt int64
	err := row.Scan(&stateJSON, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}

	if s.now().Sub(time.Unix(updatedAt, 0)) > s.timeout {
		if err := s.Delete(ctx, id); err != nil {
			slog.Warn("Failed to delete expired session", "session_id", id, "error", err)
		}
		return nil, ErrExpired
	}

	var session domain.Session
	if err := json.Unmarshal([]byte(stateJSON), &session); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &session, nil
}

// Save upserts a session.
func (s *SQLiteStore) Save(ctx context.Context, session *domain.Session) error {
	stateJSON, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	var topicID any
	if session.Topic != nil {
		topicID = session.Topic.TopicID
	}

	query := `
	INSERT INTO sessions (session_id, topic_id, turn_count, state_json, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(session_id) DO UPDATE SET
		turn_count = excluded.turn_count,
		state_json = excluded.state_json,
		updated_at = excluded.updated_at`

	return shared.RetryOnConflict(ctx, "save session", writeRetries, writeRetryDelay, func() error {
		_, err := s.db.ExecContext(ctx, query,
			session.SessionID, topicID, session.TurnCount, string(stateJSON),
			session.CreatedAt.Unix(), session.UpdatedAt.Unix(),
		)
		if err != nil {
			return fmt.Errorf("upsert session: %w", err)
		}
		return nil
	})
}

// Delete removes a session.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	return shared.RetryOnConflict(ctx, "delete session", writeRetries, writeRetryDelay, func() error {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, id); err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
		return nil
	})
}

// DeleteExpired removes sessions idle past the timeout.
func (s *SQLiteStore) DeleteExpired(ctx context.Context) ([]string, error) {
	threshold := s.now().Add(-s.timeout).Unix()
	var ids []string
	err := shared.RetryOnConflict(ctx, "delete expired sessions", writeRetries, writeRetryDelay, func() error {
		ids = ids[:0]
		rows, err := s.db.QueryContext(ctx, `DELETE FROM sessions WHERE updated_at < ? RETURNING session_id`, threshold)
		if err != nil {
			return fmt.Errorf("cleanup expired sessions: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return fmt.Errorf("scan expired session id: %w", err)
			}
			ids = append(ids, id)
		}
		return rows.Err()
	})
	return ids, err
}

// Count returns the number of stored sessions.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return n, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
