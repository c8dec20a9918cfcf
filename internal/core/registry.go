package core

import (
	"net"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/streamchat-server/internal/proto"
)

// Registry is the single shared collection of connected clients. One coarse
// mutex guards every read and write of the collection. The lock is never
// held across connection I/O: broadcast snapshots the membership under the
// lock, sends outside it, and reacquires it to prune clients whose delivery
// failed.
type Registry struct {
	mu      sync.Mutex
	clients []*Client

	framer proto.Framer
	log    *zerolog.Logger
}

// NewRegistry constructs an empty registry sending frames with framer.
func NewRegistry(framer proto.Framer, logger *zerolog.Logger) *Registry {
	return &Registry{
		framer: framer,
		log:    logger,
	}
}

// Register appends a client to the collection. Uniqueness rests on unique
// connection handles; the same handle is never accepted twice.
func (r *Registry) Register(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients = append(r.clients, c)
}

// Unregister removes every entry owning conn. Removing an absent handle is a
// no-op, which keeps the overlapping teardown paths (handler exit, broadcast
// pruning, shutdown) safe to race. Returns true if an entry was removed.
func (r *Registry) Unregister(conn net.Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(conn)
}

func (r *Registry) removeLocked(conn net.Conn) bool {
	removed := false
	kept := r.clients[:0]
	for _, c := range r.clients {
		if c.Conn == conn {
			removed = true
			continue
		}
		kept = append(kept, c)
	}
	for i := len(kept); i < len(r.clients); i++ {
		r.clients[i] = nil
	}
	r.clients = kept
	return removed
}

// SetName fixes the display name for the client owning conn. An empty name
// becomes the anonymous placeholder. Returns the name actually stored.
func (r *Registry) SetName(conn net.Conn, name string) string {
	if name == "" {
		name = proto.AnonymousName
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.clients {
		if c.Conn == conn {
			c.name = name
		}
	}
	return name
}

// Broadcast delivers "[sender] text" to every registered client, the
// sender's own connection included. Each recipient sees broadcasts in the
// order the registry lock admitted them. Clients whose delivery fails are
// closed and dropped before the call returns, so one dead peer cannot keep
// absorbing timeouts on every subsequent message.
func (r *Registry) Broadcast(sender, text string) {
	frame := []byte(proto.FormatMessage(sender, text))

	r.mu.Lock()
	targets := make([]*Client, len(r.clients))
	copy(targets, r.clients)
	r.mu.Unlock()

	var failed []*Client
	for _, c := range targets {
		if err := c.Send(r.framer, frame); err != nil {
			r.log.Debug().Err(err).Str("client_id", c.ID).Msg("broadcast delivery failed, dropping client")
			failed = append(failed, c)
		}
	}
	for _, c := range failed {
		_ = c.Conn.Close()
		r.Unregister(c.Conn)
	}
}

// ListOthers renders the display names of everyone except the client owning
// exclude, comma-joined. Clients still mid-handshake carry no name yet and
// are skipped. With nobody else online the no-others notice is returned.
func (r *Registry) ListOthers(exclude net.Conn) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var names []string
	for _, c := range r.clients {
		if c.Conn == exclude || c.name == "" {
			continue
		}
		names = append(names, c.name)
	}
	if len(names) == 0 {
		return proto.NoOthersNotice
	}
	return strings.Join(names, ", ")
}

// Snapshot copies the current membership so shutdown can close handles and
// join workers without holding the lock across either.
func (r *Registry) Snapshot() []*Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Client, len(r.clients))
	copy(out, r.clients)
	return out
}

// Len reports how many clients are currently registered.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// Clear empties the collection. The shutdown sequence calls it last, after
// every worker has been joined.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.clients {
		r.clients[i] = nil
	}
	r.clients = r.clients[:0]
}
