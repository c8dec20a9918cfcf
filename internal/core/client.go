package core

import (
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vovakirdan/streamchat-server/internal/proto"
)

// Client is one connected chat participant. Its handler goroutine is the
// only reader of Conn; writes may come from any goroutine and are serialized
// here. During shutdown the coordinator closes Conn out from under a blocked
// read, which is the cancellation mechanism for the whole connection.
type Client struct {
	ID          string
	Conn        net.Conn
	ConnectedAt time.Time

	// name is the display label fixed at handshake. Guarded by the registry
	// lock together with the collection itself.
	name string

	// writeMu serializes whole frames onto Conn: broadcasts from other
	// handlers and the direct handshake reply share the same connection.
	writeMu sync.Mutex

	// done is the worker join handle, closed exactly once when the handler
	// reaches its terminal state.
	done chan struct{}
}

// NewClient wraps a freshly accepted connection.
func NewClient(conn net.Conn) *Client {
	return &Client{
		ID:          uuid.NewString(),
		Conn:        conn,
		ConnectedAt: time.Now(),
		done:        make(chan struct{}),
	}
}

// Send writes one frame to this client. Concurrent senders queue on the
// client's write lock, never interleaving frame bytes.
func (c *Client) Send(f proto.Framer, payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return f.Send(c.Conn, payload)
}

// Finish marks the worker terminated and releases everyone joining on it.
// Called exactly once, by the handler, as its last act.
func (c *Client) Finish() {
	close(c.done)
}

// Done returns the join handle: closed once the worker has terminated.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// RemoteAddr formats the peer address for logs and session records.
func (c *Client) RemoteAddr() string {
	if addr := c.Conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}
