package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/vovakirdan/streamchat-server/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("chat: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "localhost:5555", "server address")
	user := flag.String("user", "cli-user", "display name to join with")
	timeout := flag.Duration("timeout", 5*time.Second, "per-frame I/O timeout")
	flag.Parse()

	baseCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	// The read loop blocks without a deadline between frames; closing the
	// connection is what unblocks it when the context ends.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	f := proto.Framer{Timeout: *timeout}

	if err := f.Send(conn, []byte(*user)); err != nil {
		return fmt.Errorf("send name: %w", err)
	}
	roster, err := f.Receive(conn)
	if err != nil {
		return fmt.Errorf("receive roster: %w", err)
	}

	fmt.Printf("Connected to %s as %s\n", *addr, *user)
	fmt.Printf("Online: %s\n", roster)
	fmt.Println("Type messages and press Enter to send. /quit or Ctrl+C to exit.")

	go func() {
		defer cancel()
		readLoop(ctx, conn, f)
	}()

	writeLoop(ctx, conn, f)

	cancel()
	return nil
}

func readLoop(ctx context.Context, conn net.Conn, f proto.Framer) {
	for {
		payload, err := f.Receive(conn)
		if err != nil {
			// Quiet exit when we closed the connection ourselves.
			if ctx.Err() == nil && !errors.Is(err, net.ErrClosed) {
				log.Printf("read error: %v", err)
			}
			return
		}
		fmt.Println(string(payload))
	}
}

func writeLoop(ctx context.Context, conn net.Conn, f proto.Framer) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}
			if text == "/quit" {
				text = proto.QuitCommand
			}
			if err := f.Send(conn, []byte(text)); err != nil {
				log.Printf("send error: %v", err)
				return
			}
			if text == proto.QuitCommand {
				return
			}
		}
	}
}
