package proto

import "fmt"

// Reserved payloads and identities of the wire protocol. Every frame is an
// opaque UTF-8 string; the values below carry special meaning on top of that.
const (
	// QuitCommand is the payload a client sends to request a clean disconnect.
	QuitCommand = "__quit__"

	// AnonymousName substitutes for an empty display name at handshake.
	AnonymousName = "anonymous"

	// SystemSender labels join, departure and shutdown announcements.
	SystemSender = "Server"

	// NoOthersNotice is the handshake reply when nobody else is connected.
	NoOthersNotice = "no other users online"

	// ShutdownNotice is broadcast right before the server closes every
	// connection.
	ShutdownNotice = "server is shutting down"
)

// FormatMessage renders the display form every recipient sees: the sender
// label in square brackets followed by the text.
func FormatMessage(sender, text string) string {
	return "[" + sender + "] " + text
}

// JoinNotice is the announcement text for a client that completed its
// handshake.
func JoinNotice(name string) string {
	return fmt.Sprintf("user '%s' joined the chat", name)
}

// PartNotice is the announcement text for a client that disconnected.
func PartNotice(name string) string {
	return fmt.Sprintf("user '%s' left the chat", name)
}
