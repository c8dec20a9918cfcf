package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/streamchat-server/internal/config"
	"github.com/vovakirdan/streamchat-server/internal/core"
	"github.com/vovakirdan/streamchat-server/internal/proto"
	"github.com/vovakirdan/streamchat-server/internal/store"
)

// startTestServer boots a server on a loopback port and tears it down with
// the test. Session recording and stats are off unless a test opts in.
func startTestServer(t *testing.T, st store.Store, mutate func(*config.Config)) *Server {
	t.Helper()

	cfg := config.Default()
	cfg.Addr = "127.0.0.1:0"
	cfg.IOTimeout = 2 * time.Second
	cfg.ShutdownTimeout = 5 * time.Second
	cfg.DatabasePath = ""
	cfg.StatsInterval = 0
	if mutate != nil {
		mutate(&cfg)
	}

	logger := zerolog.Nop()
	framer := proto.Framer{Timeout: cfg.IOTimeout, MaxFrameBytes: uint32(cfg.MaxFrameBytes)}
	registry := core.NewRegistry(framer, &logger)
	srv := NewServer(registry, framer, st, cfg, &logger)

	if err := srv.Listen(); err != nil {
		t.Fatalf("failed to listen: %v", err)
	}

	serveDone := make(chan struct{})
	go func() {
		defer close(serveDone)
		if err := srv.Serve(); err != nil {
			t.Errorf("serve returned error: %v", err)
		}
	}()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
		<-serveDone
	})

	return srv
}

// testClient is a minimal chat client for exercising the server over a real
// TCP connection.
type testClient struct {
	t    *testing.T
	conn net.Conn
	f    proto.Framer
}

// dialRaw connects without performing the name handshake.
func dialRaw(t *testing.T, srv *Server) *testClient {
	t.Helper()

	conn, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatalf("failed to dial server: %v", err)
	}
	t.Cleanup(func() {
		conn.Close()
	})
	return &testClient{t: t, conn: conn, f: proto.Framer{Timeout: 2 * time.Second}}
}

// dialClient connects and completes the name handshake, returning the client
// together with the roster reply.
func dialClient(t *testing.T, srv *Server, name string) (*testClient, string) {
	t.Helper()

	c := dialRaw(t, srv)
	c.send(name)
	return c, c.recv()
}

func (c *testClient) send(text string) {
	c.t.Helper()

	if err := c.f.Send(c.conn, []byte(text)); err != nil {
		c.t.Fatalf("failed to send frame: %v", err)
	}
}

// recv reads the next frame, failing the test if none arrives in time.
func (c *testClient) recv() string {
	c.t.Helper()

	payload, err := c.recvErr()
	if err != nil {
		c.t.Fatalf("failed to receive frame: %v", err)
	}
	return payload
}

// recvErr reads the next frame with a bounded wait, returning the transport
// error instead of failing, so tests can assert on closed connections.
func (c *testClient) recvErr() (string, error) {
	type result struct {
		payload []byte
		err     error
	}
	ch := make(chan result, 1)
	go func() {
		p, err := c.f.Receive(c.conn)
		ch <- result{p, err}
	}()
	select {
	case r := <-ch:
		return string(r.payload), r.err
	case <-time.After(3 * time.Second):
		return "", fmt.Errorf("no frame within 3s")
	}
}

// recvUntil drains frames until want arrives, tolerating unrelated
// announcements in between.
func (c *testClient) recvUntil(want string) {
	c.t.Helper()

	for i := 0; i < 10; i++ {
		if got := c.recv(); got == want {
			return
		}
	}
	c.t.Fatalf("never received %q", want)
}

// expectSilence asserts no bytes arrive for the given duration.
func (c *testClient) expectSilence(d time.Duration) {
	c.t.Helper()

	_ = c.conn.SetReadDeadline(time.Now().Add(d))
	defer c.conn.SetReadDeadline(time.Time{})

	buf := make([]byte, 1)
	n, err := c.conn.Read(buf)
	if err == nil || n > 0 {
		c.t.Fatalf("expected silence, got %d bytes", n)
	}
	if !errors.Is(err, os.ErrDeadlineExceeded) {
		c.t.Fatalf("expected quiet deadline expiry, got: %v", err)
	}
}

// waitClients polls the registry until it holds want clients.
func waitClients(t *testing.T, r *core.Registry, want int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if r.Len() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected %d registered clients, still %d", want, r.Len())
}
