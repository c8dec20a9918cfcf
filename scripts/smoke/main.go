package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"time"

	"github.com/vovakirdan/streamchat-server/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "localhost:5555", "server address")
	user := flag.String("user", "tester", "display name to join with")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	conn, err := net.DialTimeout("tcp", *addr, *timeout)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	// The framer manages per-chunk deadlines on its own, so the overall
	// time limit is enforced by closing the connection from the outside.
	timer := time.AfterFunc(*timeout, func() { conn.Close() })
	defer timer.Stop()

	f := proto.Framer{Timeout: *timeout}

	if err := f.Send(conn, []byte(*user)); err != nil {
		return fmt.Errorf("send name: %w", err)
	}
	roster, err := f.Receive(conn)
	if err != nil {
		return fmt.Errorf("receive roster: %w", err)
	}
	fmt.Printf("Online: %s\n", roster)

	if err := f.Send(conn, []byte(*text)); err != nil {
		return fmt.Errorf("send message: %w", err)
	}

	// Broadcasts echo back to the sender, so our own message must come
	// around. Frames before it are join announcements and other traffic.
	want := proto.FormatMessage(*user, *text)
	for {
		payload, err := f.Receive(conn)
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		fmt.Printf("Received: %s\n", payload)
		if string(payload) == want {
			break
		}
	}

	if err := f.Send(conn, []byte(proto.QuitCommand)); err != nil {
		return fmt.Errorf("send quit: %w", err)
	}
	fmt.Println("Smoke test passed.")
	return nil
}
