// Package transport defines the chat-protocol capability consumed by hashbang
// instances, together with the concrete adapters that provide it.
//
// The core never talks to a network connection directly. It sends lines,
// answers on channels or in private, and listens for inbound messages and
// disconnects through the Transport interface below.
//
// # Supported Protocols
//
//   - IRC: ergochat/irc-go connection with SASL, TLS and CTCP framing
//   - Discord: discordgo WebSocket session, events delivered synchronously
//   - Telegram: long polling, notices are sent without notification
//
// # Subscriptions
//
// OnMessage, OnDisconnect and OnTranscript return an unsubscribe function.
// Callers must invoke it on teardown so that no handler runs after its owner
// has been removed. Calling it more than once is harmless.
//
// # Delivery
//
// Adapters deliver inbound messages for one connection from a single goroutine,
// in arrival order. A slow handler stalls further delivery for that connection
// only. Adapters recover handler panics at the delivery boundary.
package transport

import "time"

// Transport is the capability an instance needs from a chat connection
type Transport interface {
	// Connect establishes the connection and starts delivering events
	Connect() error

	// SendMessage sends an ordinary chat message to a channel or a user
	SendMessage(target, text string) error

	// SendNotice sends a side-channel notice to a channel or a user
	SendNotice(target, text string) error

	// IsValidChannelName reports whether name addresses a channel rather than a user
	IsValidChannelName(name string) bool

	// KnownUsers lists the identities the connection currently shares a channel
	// or a recent private conversation with
	KnownUsers() []string

	// OnMessage subscribes to inbound messages
	OnMessage(handler func(Message)) (unsubscribe func())

	// OnDisconnect subscribes to the disconnect signal, fired for both
	// requested and unsolicited disconnects
	OnDisconnect(handler func(Transport)) (unsubscribe func())

	// Disconnect closes the connection and tears the transport down
	Disconnect() error

	// IsConnected reports whether the connection is currently up
	IsConnected() bool

	// IsTornDown reports whether the transport has been shut down for good
	IsTornDown() bool
}

// Direction tells which way a transcript line travelled
type Direction int

const (
	Inbound Direction = iota
	Outbound
)

// String returns the attach-mode marker for the direction
func (d Direction) String() string {
	if d == Outbound {
		return "<<<"
	}
	return ">>>"
}

// Attachable is implemented by transports whose raw traffic can be observed
// and injected by an operator console
type Attachable interface {
	// OnTranscript subscribes to every raw line sent or received
	OnTranscript(handler func(Direction, string)) (unsubscribe func())

	// SendRaw writes a protocol line as-is
	SendRaw(line string) error
}

// Message represents an inbound chat message
type Message struct {
	Source  string // Sender identity (IRC nick, Discord user ID, Telegram user ID)
	Target  string // Destination: a channel name or the bot itself
	Text    string // Message payload
	Control bool   // Payload is control-protocol framed (CTCP)
	Raw     string // Raw protocol line, if available
	Time    time.Time
}
