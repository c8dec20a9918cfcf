package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vovakirdan/streamchat-server/internal/store"
)

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
	CREATE TABLE IF NOT EXISTS sessions (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		client_id       TEXT NOT NULL UNIQUE,
		remote_addr     TEXT NOT NULL,
		display_name    TEXT NOT NULL DEFAULT '',
		connected_at    DATETIME NOT NULL,
		disconnected_at DATETIME
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_connected_at ON sessions (connected_at);
`

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Set connection pool limits
	db.SetMaxOpenConns(1) // SQLite works best with single connection
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// RecordConnect opens a session record for a freshly accepted connection.
func (s *SQLiteStore) RecordConnect(ctx context.Context, clientID, remoteAddr string) error {
	query := `
		INSERT INTO sessions (client_id, remote_addr, connected_at)
		VALUES (?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, clientID, remoteAddr, time.Now().UTC()); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// RecordName fills in the display name fixed at handshake.
func (s *SQLiteStore) RecordName(ctx context.Context, clientID, name string) error {
	query := `
		UPDATE sessions
		SET display_name = ?
		WHERE client_id = ?
	`
	result, err := s.db.ExecContext(ctx, query, name, clientID)
	if err != nil {
		return fmt.Errorf("update session name: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("session not found")
	}
	return nil
}

// RecordDisconnect stamps the session's end.
func (s *SQLiteStore) RecordDisconnect(ctx context.Context, clientID string) error {
	query := `
		UPDATE sessions
		SET disconnected_at = ?
		WHERE client_id = ? AND disconnected_at IS NULL
	`
	result, err := s.db.ExecContext(ctx, query, time.Now().UTC(), clientID)
	if err != nil {
		return fmt.Errorf("update session end: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("session not found")
	}
	return nil
}

// RecentSessions retrieves up to limit sessions, newest first.
func (s *SQLiteStore) RecentSessions(ctx context.Context, limit int) ([]*store.Session, error) {
	query := `
		SELECT id, client_id, remote_addr, display_name, connected_at, disconnected_at
		FROM sessions
		ORDER BY connected_at DESC, id DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*store.Session
	for rows.Next() {
		var sess store.Session
		var disconnectedAt sql.NullTime
		if err := rows.Scan(
			&sess.ID,
			&sess.ClientID,
			&sess.RemoteAddr,
			&sess.DisplayName,
			&sess.ConnectedAt,
			&disconnectedAt,
		); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if disconnectedAt.Valid {
			sess.DisconnectedAt = &disconnectedAt.Time
		}
		sessions = append(sessions, &sess)
	}

	return sessions, rows.Err()
}

// Ensure SQLiteStore implements store.Store
var _ store.Store = (*SQLiteStore)(nil)
