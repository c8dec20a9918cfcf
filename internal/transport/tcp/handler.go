package tcp

import (
	"github.com/vovakirdan/streamchat-server/internal/core"
	"github.com/vovakirdan/streamchat-server/internal/proto"
)

// connState tracks a connection through its lifecycle. Transitions only move
// forward; a connection that failed its handshake jumps straight to
// terminated without ever having joined.
type connState int

const (
	stateAwaitingName connState = iota
	stateActive
	stateClosing
	stateTerminated
)

func (st connState) String() string {
	switch st {
	case stateAwaitingName:
		return "awaiting_name"
	case stateActive:
		return "active"
	case stateClosing:
		return "closing"
	case stateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// handle drives one client from handshake to termination. It is the only
// reader of the connection; writes are serialized through the client and may
// come from any handler's broadcast. The join handle closes only when the
// whole teardown, departure announcement included, has run.
func (s *Server) handle(client *core.Client) {
	defer client.Finish()

	name, ok := s.handshake(client)
	if !ok {
		// The client never became visible to anyone, so nobody is owed a
		// departure announcement. Tear down quietly.
		s.terminate(client, stateAwaitingName)
		s.log.Info().Str("client_id", client.ID).Msg("client left before joining")
		return
	}

	s.registry.Broadcast(proto.SystemSender, proto.JoinNotice(name))
	s.log.Info().Str("client_id", client.ID).Str("name", name).Msg("client joined")

	s.relay(client, name)

	// Leave the registry first so the departure announcement goes to
	// everyone but the departing client.
	s.terminate(client, stateClosing)
	s.registry.Broadcast(proto.SystemSender, proto.PartNotice(name))
	s.log.Info().Str("client_id", client.ID).Str("name", name).Msg("client disconnected")
}

// handshake waits for the display-name frame and replies with the names of
// everyone already online. Reports ok=false on any failure, leaving the
// connection unjoined.
func (s *Server) handshake(client *core.Client) (name string, ok bool) {
	payload, err := s.framer.Receive(client.Conn)
	if err != nil {
		s.log.Debug().Err(err).Str("client_id", client.ID).Msg("handshake receive failed")
		return "", false
	}

	name = s.registry.SetName(client.Conn, string(payload))
	s.recordName(client, name)

	others := s.registry.ListOthers(client.Conn)
	if err := client.Send(s.framer, []byte(others)); err != nil {
		s.log.Debug().Err(err).Str("client_id", client.ID).Msg("handshake reply failed")
		return "", false
	}
	return name, true
}

// relay forwards chat frames from the client to everyone until the client
// quits, its read fails, or a process-wide shutdown has begun.
func (s *Server) relay(client *core.Client, name string) {
	for s.running.Load() {
		payload, err := s.framer.Receive(client.Conn)
		if err != nil {
			s.log.Debug().Err(err).Str("client_id", client.ID).Str("state", stateActive.String()).Msg("receive failed")
			return
		}
		if string(payload) == proto.QuitCommand {
			return
		}
		s.registry.Broadcast(name, string(payload))
	}
}

// terminate closes the connection and drops the client from the registry.
// Safe when parts already happened: closing a closed connection and
// unregistering an absent handle are no-ops.
func (s *Server) terminate(client *core.Client, from connState) {
	_ = client.Conn.Close()
	s.registry.Unregister(client.Conn)
	s.recordDisconnect(client)
	s.log.Debug().
		Str("client_id", client.ID).
		Str("from", from.String()).
		Str("state", stateTerminated.String()).
		Msg("worker terminated")
}
