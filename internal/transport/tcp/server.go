package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/streamchat-server/internal/config"
	"github.com/vovakirdan/streamchat-server/internal/core"
	"github.com/vovakirdan/streamchat-server/internal/proto"
	"github.com/vovakirdan/streamchat-server/internal/store"
)

// Server owns the listening endpoint, the accept loop, and the shutdown
// sequence that drains every connection before the process exits.
type Server struct {
	registry *core.Registry
	framer   proto.Framer
	store    store.Store // nil when session recording is disabled
	cfg      config.Config
	log      *zerolog.Logger

	listener net.Listener
	running  atomic.Bool

	// shutdownOnce guards the whole drain sequence; the signal path and a
	// natural accept-loop exit may both request it.
	shutdownOnce sync.Once
}

// NewServer builds a TCP chat server around the shared registry.
func NewServer(registry *core.Registry, framer proto.Framer, st store.Store, cfg config.Config, logger *zerolog.Logger) *Server {
	return &Server{
		registry: registry,
		framer:   framer,
		store:    st,
		cfg:      cfg,
		log:      logger,
	}
}

// Listen binds the configured address. A failure here is fatal to the
// process: the caller reports it and exits before any connection exists.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	}
	s.listener = ln
	s.running.Store(true)
	s.log.Info().Str("addr", ln.Addr().String()).Msg("listening")
	return nil
}

// Addr reports the bound listen address, which differs from the configured
// one when the port was 0.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve runs the accept loop until shutdown. Each accepted connection is
// registered immediately so it receives broadcasts from the first moment,
// then handed to its own handler goroutine. Transient accept failures are
// logged and the loop keeps going; once the running flag is cleared the
// accept error caused by the closed listener is the expected wakeup.
func (s *Server) Serve() error {
	for s.running.Load() {
		conn, err := s.listener.Accept()
		if err != nil {
			if !s.running.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.log.Warn().Err(err).Msg("accept failed")
			continue
		}
		if !s.running.Load() {
			// Accepted in the instant between the flag clearing and the
			// listener closing; the drain will not see this connection.
			_ = conn.Close()
			return nil
		}

		client := core.NewClient(conn)
		s.registry.Register(client)
		s.recordConnect(client)
		s.log.Info().
			Str("client_id", client.ID).
			Str("remote", client.RemoteAddr()).
			Msg("client connected")

		go s.handle(client)
	}
	return nil
}

// Shutdown runs the drain sequence exactly once; a second caller blocks
// until the first finishes. The order is deliberate: stop accepting, close
// the listener, announce the shutdown while connections are still usable,
// force-close every connection so blocked reads fail, join every worker
// within the ctx deadline, then clear the registry.
func (s *Server) Shutdown(ctx context.Context) {
	s.shutdownOnce.Do(func() {
		s.log.Info().Msg("shutting down")
		s.running.Store(false)
		if s.listener != nil {
			_ = s.listener.Close()
		}

		s.registry.Broadcast(proto.SystemSender, proto.ShutdownNotice)

		clients := s.registry.Snapshot()
		for _, c := range clients {
			_ = c.Conn.Close()
		}

		stuck := 0
		for _, c := range clients {
			select {
			case <-c.Done():
			case <-ctx.Done():
				// Deadline reached; recheck before declaring the worker stuck.
				select {
				case <-c.Done():
				default:
					stuck++
				}
			}
		}
		if stuck > 0 {
			s.log.Warn().Int("workers", stuck).Msg("drain deadline expired with workers still running")
		}

		s.registry.Clear()
		s.log.Info().Int("connections_drained", len(clients)).Msg("shutdown complete")
	})
}

func (s *Server) recordConnect(c *core.Client) {
	if s.store == nil {
		return
	}
	if err := s.store.RecordConnect(context.Background(), c.ID, c.RemoteAddr()); err != nil {
		s.log.Warn().Err(err).Str("client_id", c.ID).Msg("failed to record session start")
	}
}

func (s *Server) recordName(c *core.Client, name string) {
	if s.store == nil {
		return
	}
	if err := s.store.RecordName(context.Background(), c.ID, name); err != nil {
		s.log.Warn().Err(err).Str("client_id", c.ID).Msg("failed to record session name")
	}
}

func (s *Server) recordDisconnect(c *core.Client) {
	if s.store == nil {
		return
	}
	if err := s.store.RecordDisconnect(context.Background(), c.ID); err != nil {
		s.log.Warn().Err(err).Str("client_id", c.ID).Msg("failed to record session end")
	}
}
