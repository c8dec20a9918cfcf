package store

import (
	"context"
	"time"
)

// Session is the audit record of one client connection. Only lifecycle
// metadata is recorded; chat content never touches storage.
type Session struct {
	ID             int64
	ClientID       string
	RemoteAddr     string
	DisplayName    string
	ConnectedAt    time.Time
	DisconnectedAt *time.Time // nil while the client is still connected
}

// Store handles session persistence.
type Store interface {
	// RecordConnect opens a session record for a freshly accepted connection.
	RecordConnect(ctx context.Context, clientID, remoteAddr string) error

	// RecordName fills in the display name fixed at handshake.
	RecordName(ctx context.Context, clientID, name string) error

	// RecordDisconnect stamps the session's end.
	RecordDisconnect(ctx context.Context, clientID string) error

	// RecentSessions retrieves up to limit sessions, newest first.
	RecentSessions(ctx context.Context, limit int) ([]*Session, error)

	// Close closes the underlying database connection.
	Close() error
}
