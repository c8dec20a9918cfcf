package tcp

import (
	"testing"
	"time"

	"github.com/vovakirdan/streamchat-server/internal/config"
	"github.com/vovakirdan/streamchat-server/internal/proto"
)

func TestHandshakeRoster(t *testing.T) {
	srv := startTestServer(t, nil, nil)

	_, aliceRoster := dialClient(t, srv, "alice")
	if aliceRoster != proto.NoOthersNotice {
		t.Fatalf("first client got roster %q, want %q", aliceRoster, proto.NoOthersNotice)
	}

	_, bobRoster := dialClient(t, srv, "bob")
	if bobRoster != "alice" {
		t.Fatalf("second client got roster %q, want %q", bobRoster, "alice")
	}

	_, carolRoster := dialClient(t, srv, "carol")
	if carolRoster != "alice, bob" {
		t.Fatalf("third client got roster %q, want %q", carolRoster, "alice, bob")
	}
}

func TestEmptyNameBecomesAnonymous(t *testing.T) {
	srv := startTestServer(t, nil, nil)

	c, roster := dialClient(t, srv, "")
	if roster != proto.NoOthersNotice {
		t.Fatalf("got roster %q, want %q", roster, proto.NoOthersNotice)
	}

	// The join announcement reaches the sender too and carries the
	// placeholder name.
	if got := c.recv(); got != "[Server] user 'anonymous' joined the chat" {
		t.Fatalf("join announcement was %q", got)
	}

	_, roster = dialClient(t, srv, "bob")
	if roster != proto.AnonymousName {
		t.Fatalf("second client got roster %q, want %q", roster, proto.AnonymousName)
	}
}

func TestChatBetweenTwoClients(t *testing.T) {
	srv := startTestServer(t, nil, nil)

	alice, _ := dialClient(t, srv, "alice")
	alice.recvUntil("[Server] user 'alice' joined the chat")

	bob, _ := dialClient(t, srv, "bob")
	bob.recvUntil("[Server] user 'bob' joined the chat")
	alice.recvUntil("[Server] user 'bob' joined the chat")

	alice.send("hi all")
	if got := alice.recv(); got != "[alice] hi all" {
		t.Fatalf("sender echo was %q, want %q", got, "[alice] hi all")
	}
	if got := bob.recv(); got != "[alice] hi all" {
		t.Fatalf("bob received %q, want %q", got, "[alice] hi all")
	}

	bob.send("hey")
	if got := alice.recv(); got != "[bob] hey" {
		t.Fatalf("alice received %q, want %q", got, "[bob] hey")
	}
	if got := bob.recv(); got != "[bob] hey" {
		t.Fatalf("sender echo was %q, want %q", got, "[bob] hey")
	}
}

func TestMessagesKeepSenderOrder(t *testing.T) {
	srv := startTestServer(t, nil, nil)

	alice, _ := dialClient(t, srv, "alice")
	alice.recvUntil("[Server] user 'alice' joined the chat")
	bob, _ := dialClient(t, srv, "bob")
	bob.recvUntil("[Server] user 'bob' joined the chat")
	alice.recvUntil("[Server] user 'bob' joined the chat")

	for _, msg := range []string{"one", "two", "three"} {
		alice.send(msg)
	}
	for _, want := range []string{"[alice] one", "[alice] two", "[alice] three"} {
		if got := bob.recv(); got != want {
			t.Fatalf("out of order: got %q, want %q", got, want)
		}
	}
}

func TestQuitCommandDisconnects(t *testing.T) {
	srv := startTestServer(t, nil, nil)

	alice, _ := dialClient(t, srv, "alice")
	alice.recvUntil("[Server] user 'alice' joined the chat")
	bob, _ := dialClient(t, srv, "bob")
	bob.recvUntil("[Server] user 'bob' joined the chat")
	alice.recvUntil("[Server] user 'bob' joined the chat")

	bob.send(proto.QuitCommand)

	// The sentinel is consumed by the server, never rebroadcast: the next
	// thing alice hears about bob is his departure.
	if got := alice.recv(); got != "[Server] user 'bob' left the chat" {
		t.Fatalf("alice received %q, want the departure notice", got)
	}
	waitClients(t, srv.registry, 1)

	// Bob is gone before the departure announcement goes out, so his
	// connection just closes.
	if _, err := bob.recvErr(); err == nil {
		t.Fatal("expected bob's connection to be closed after quit")
	}
}

func TestAbruptDisconnectAnnouncesDeparture(t *testing.T) {
	srv := startTestServer(t, nil, nil)

	alice, _ := dialClient(t, srv, "alice")
	alice.recvUntil("[Server] user 'alice' joined the chat")
	bob, _ := dialClient(t, srv, "bob")
	alice.recvUntil("[Server] user 'bob' joined the chat")

	bob.conn.Close()

	if got := alice.recv(); got != "[Server] user 'bob' left the chat" {
		t.Fatalf("alice received %q, want the departure notice", got)
	}
	waitClients(t, srv.registry, 1)
}

func TestHandshakeFailureLeavesQuietly(t *testing.T) {
	srv := startTestServer(t, nil, nil)

	alice, _ := dialClient(t, srv, "alice")
	alice.recvUntil("[Server] user 'alice' joined the chat")

	// A connection that dies before sending its name never joined, so no
	// announcement is made on its behalf.
	ghost := dialRaw(t, srv)
	waitClients(t, srv.registry, 2)
	ghost.conn.Close()
	waitClients(t, srv.registry, 1)

	alice.expectSilence(300 * time.Millisecond)
}

func TestPreHandshakeClientReceivesBroadcasts(t *testing.T) {
	srv := startTestServer(t, nil, nil)

	// Registered at accept time, a client hears the room even before it
	// sends its own name.
	pending := dialRaw(t, srv)
	waitClients(t, srv.registry, 1)

	alice, roster := dialClient(t, srv, "alice")
	if roster != proto.NoOthersNotice {
		t.Fatalf("unnamed clients must not appear in the roster, got %q", roster)
	}
	alice.recvUntil("[Server] user 'alice' joined the chat")

	if got := pending.recv(); got != "[Server] user 'alice' joined the chat" {
		t.Fatalf("pending client received %q, want the join notice", got)
	}

	alice.send("anyone here?")
	if got := pending.recv(); got != "[alice] anyone here?" {
		t.Fatalf("pending client received %q, want the chat message", got)
	}
}

func TestOversizedFrameDisconnectsSender(t *testing.T) {
	srv := startTestServer(t, nil, func(cfg *config.Config) {
		cfg.MaxFrameBytes = 64
	})

	alice, _ := dialClient(t, srv, "alice")
	alice.recvUntil("[Server] user 'alice' joined the chat")
	bob, _ := dialClient(t, srv, "bob")
	alice.recvUntil("[Server] user 'bob' joined the chat")

	huge := make([]byte, 200)
	for i := range huge {
		huge[i] = 'x'
	}
	bob.send(string(huge))

	// The oversized frame is never delivered; bob is dropped instead.
	if got := alice.recv(); got != "[Server] user 'bob' left the chat" {
		t.Fatalf("alice received %q, want the departure notice", got)
	}
	waitClients(t, srv.registry, 1)
}
