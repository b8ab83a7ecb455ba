// Package transporttest provides an in-memory transport for tests.
package transporttest

import (
	"errors"
	"strings"
	"sync"

	"github.com/keepmind9/hashbang/internal/transport"
)

// Kind of line recorded by Fake
const (
	KindMessage = "message"
	KindNotice  = "notice"
	KindRaw     = "raw"
)

// Sent is a line written through the fake
type Sent struct {
	Kind   string
	Target string
	Text   string
}

// Fake implements transport.Transport and transport.Attachable in memory.
// Signals are delivered synchronously on the calling goroutine.
type Fake struct {
	mu        sync.Mutex
	connected bool
	tornDown  bool
	users     []string
	sent      []Sent

	// ConnectErr is returned by Connect when set
	ConnectErr error
	// DisconnectErr is returned by Disconnect when set
	DisconnectErr error
	// DisconnectPanics makes Disconnect panic
	DisconnectPanics bool
	// SilentDisconnect stops Disconnect from firing the disconnect signal
	SilentDisconnect bool

	messages    transport.Signal[transport.Message]
	disconnects transport.Signal[transport.Transport]
	transcript  transport.Signal[transcriptLine]
}

type transcriptLine struct {
	dir  transport.Direction
	line string
}

var _ transport.Transport = (*Fake)(nil)
var _ transport.Attachable = (*Fake)(nil)

// New returns a fake that is not yet connected
func New(users ...string) *Fake {
	return &Fake{users: users}
}

// Connect marks the fake connected
func (f *Fake) Connect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ConnectErr != nil {
		return f.ConnectErr
	}
	if f.tornDown {
		return errors.New("fake transport torn down")
	}
	f.connected = true
	return nil
}

func (f *Fake) record(kind, target, text string) {
	f.mu.Lock()
	f.sent = append(f.sent, Sent{Kind: kind, Target: target, Text: text})
	f.mu.Unlock()
	f.transcript.Emit(transcriptLine{dir: transport.Outbound, line: kind + " " + target + " :" + text})
}

// SendMessage records a message
func (f *Fake) SendMessage(target, text string) error {
	f.record(KindMessage, target, text)
	return nil
}

// SendNotice records a notice
func (f *Fake) SendNotice(target, text string) error {
	f.record(KindNotice, target, text)
	return nil
}

// SendRaw records a raw line
func (f *Fake) SendRaw(line string) error {
	f.record(KindRaw, "", line)
	return nil
}

// IsValidChannelName accepts names starting with # or &
func (f *Fake) IsValidChannelName(name string) bool {
	return name != "" && strings.ContainsRune("#&", rune(name[0]))
}

// KnownUsers returns the users passed to New or SetUsers
func (f *Fake) KnownUsers() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.users...)
}

// SetUsers replaces the known users
func (f *Fake) SetUsers(users ...string) {
	f.mu.Lock()
	f.users = users
	f.mu.Unlock()
}

// OnMessage subscribes to Deliver
func (f *Fake) OnMessage(handler func(transport.Message)) func() {
	return f.messages.Add(handler)
}

// OnDisconnect subscribes to Disconnect, Drop and Kill
func (f *Fake) OnDisconnect(handler func(transport.Transport)) func() {
	return f.disconnects.Add(handler)
}

// OnTranscript subscribes to raw traffic
func (f *Fake) OnTranscript(handler func(transport.Direction, string)) func() {
	return f.transcript.Add(func(l transcriptLine) { handler(l.dir, l.line) })
}

// Disconnect tears the fake down and fires the disconnect signal
func (f *Fake) Disconnect() error {
	if f.DisconnectPanics {
		panic("fake disconnect failure")
	}
	f.mu.Lock()
	wasConnected := f.connected
	f.connected = false
	f.tornDown = true
	f.mu.Unlock()

	if wasConnected && !f.SilentDisconnect {
		f.disconnects.Emit(f)
	}
	return f.DisconnectErr
}

// IsConnected reports the connection flag
func (f *Fake) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

// IsTornDown reports the teardown flag
func (f *Fake) IsTornDown() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tornDown
}

// Deliver fires an inbound message
func (f *Fake) Deliver(msg transport.Message) {
	f.transcript.Emit(transcriptLine{dir: transport.Inbound, line: msg.Raw})
	f.messages.Emit(msg)
}

// Drop simulates an unsolicited connection loss that leaves the transport
// able to reconnect
func (f *Fake) Drop() {
	f.mu.Lock()
	f.connected = false
	f.mu.Unlock()
	f.disconnects.Emit(f)
}

// Kill simulates an unsolicited connection loss that also tears the
// transport down
func (f *Fake) Kill() {
	f.mu.Lock()
	f.connected = false
	f.tornDown = true
	f.mu.Unlock()
	f.disconnects.Emit(f)
}

// Sent returns a copy of every recorded line
func (f *Fake) Sent() []Sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Sent(nil), f.sent...)
}

// Reset clears the recorded lines
func (f *Fake) Reset() {
	f.mu.Lock()
	f.sent = nil
	f.mu.Unlock()
}

// MessageSubscribers returns the number of OnMessage subscribers
func (f *Fake) MessageSubscribers() int {
	return f.messages.Len()
}

// DisconnectSubscribers returns the number of OnDisconnect subscribers
func (f *Fake) DisconnectSubscribers() int {
	return f.disconnects.Len()
}
