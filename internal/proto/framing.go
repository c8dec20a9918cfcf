package proto

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"net"
	"time"
)

// prefixSize is the byte width of the big-endian length prefix.
const prefixSize = 4

// ErrFrameTooLarge reports an inbound frame whose declared payload exceeds
// the configured cap.
var ErrFrameTooLarge = errors.New("frame exceeds size limit")

// Framer reads and writes length-prefixed frames on a stream connection:
// a 4-byte big-endian payload length followed by exactly that many bytes.
// A frame either transfers completely or the operation reports an error;
// partial transfers are never surfaced as success.
//
// Timeout bounds every wait while a transfer is in progress. Reads waiting
// for a frame to begin are deliberately unbounded: a silent chat client is
// idle, not broken. Once the first byte of a frame has arrived, each further
// wait is bounded, and a peer that keeps trickling bytes keeps earning fresh
// deadlines. The zero value frames without deadlines or size checks.
type Framer struct {
	// Timeout bounds one readiness wait: every write chunk, and every read
	// chunk after a frame has begun. Zero disables deadlines.
	Timeout time.Duration

	// MaxFrameBytes rejects inbound frames declaring a larger payload.
	// Zero disables the check.
	MaxFrameBytes uint32
}

// Send writes one frame carrying payload, which may be empty.
func (f Framer) Send(conn net.Conn, payload []byte) error {
	if uint64(len(payload)) > math.MaxUint32 {
		return fmt.Errorf("payload of %d bytes does not fit the length prefix", len(payload))
	}
	// Prefix and payload go out as a single buffer so concurrent senders
	// serialized upstream can never interleave halves of two frames.
	buf := make([]byte, prefixSize+len(payload))
	binary.BigEndian.PutUint32(buf[:prefixSize], uint32(len(payload)))
	copy(buf[prefixSize:], payload)
	return f.writeFull(conn, buf)
}

// Receive reads one frame and returns its payload. An empty payload is a
// valid frame and yields an empty, non-nil slice.
func (f Framer) Receive(conn net.Conn) ([]byte, error) {
	var prefix [prefixSize]byte
	if err := f.readFull(conn, prefix[:], true); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint32(prefix[:])
	if length == 0 {
		return []byte{}, nil
	}
	if f.MaxFrameBytes > 0 && length > f.MaxFrameBytes {
		return nil, fmt.Errorf("%w: %d bytes declared, cap is %d", ErrFrameTooLarge, length, f.MaxFrameBytes)
	}
	payload := make([]byte, length)
	if err := f.readFull(conn, payload, false); err != nil {
		return nil, err
	}
	return payload, nil
}

// writeFull transfers buf completely, rearming the write deadline whenever a
// chunk makes progress. A wait fails only after Timeout passes with zero
// bytes moved.
func (f Framer) writeFull(conn net.Conn, buf []byte) error {
	for sent := 0; sent < len(buf); {
		if f.Timeout > 0 {
			if err := conn.SetWriteDeadline(time.Now().Add(f.Timeout)); err != nil {
				return fmt.Errorf("arm write deadline: %w", err)
			}
		}
		n, err := conn.Write(buf[sent:])
		sent += n
		if sent == len(buf) {
			break
		}
		switch {
		case err == nil:
		case isTimeout(err) && n > 0:
			// Progress was made; the next wait gets a fresh bound.
		default:
			return fmt.Errorf("write frame: %w", err)
		}
	}
	if f.Timeout > 0 {
		_ = conn.SetWriteDeadline(time.Time{})
	}
	return nil
}

// readFull fills buf completely. With idleStart set the first wait carries no
// deadline, so a connection with no frame in flight may stay quiet for as
// long as it likes.
func (f Framer) readFull(conn net.Conn, buf []byte, idleStart bool) error {
	for got := 0; got < len(buf); {
		if f.Timeout > 0 {
			deadline := time.Now().Add(f.Timeout)
			if idleStart && got == 0 {
				deadline = time.Time{}
			}
			if err := conn.SetReadDeadline(deadline); err != nil {
				return fmt.Errorf("arm read deadline: %w", err)
			}
		}
		n, err := conn.Read(buf[got:])
		got += n
		if got == len(buf) {
			break
		}
		switch {
		case err == nil:
		case isTimeout(err) && n > 0:
		default:
			return fmt.Errorf("read frame: %w", err)
		}
	}
	if f.Timeout > 0 {
		_ = conn.SetReadDeadline(time.Time{})
	}
	return nil
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
