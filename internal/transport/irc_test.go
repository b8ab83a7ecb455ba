package transport

import (
	"testing"

	"github.com/ergochat/irc-go/ircevent"
	"github.com/ergochat/irc-go/ircmsg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockIRCConnection is a mock implementation of IRCConnection for testing
type mockIRCConnection struct {
	connected   bool
	quitCalled  bool
	joined      []string
	privmsgs    []SentLine
	notices     []SentLine
	raw         []string
	isupport    map[string]string
	callbacks   map[string][]func(ircmsg.Message)
	onConnect   []func(ircmsg.Message)
	onDisconnect []func(ircmsg.Message)
}

type SentLine struct {
	Target  string
	Message string
}

func newMockIRCConnection() *mockIRCConnection {
	return &mockIRCConnection{
		isupport:  map[string]string{},
		callbacks: map[string][]func(ircmsg.Message){},
	}
}

func (m *mockIRCConnection) Connect() error { m.connected = true; return nil }
func (m *mockIRCConnection) Loop()          {}
func (m *mockIRCConnection) Quit()          { m.quitCalled = true }
func (m *mockIRCConnection) Connected() bool {
	return m.connected
}
func (m *mockIRCConnection) Privmsg(target, message string) error {
	m.privmsgs = append(m.privmsgs, SentLine{target, message})
	return nil
}
func (m *mockIRCConnection) Notice(target, message string) error {
	m.notices = append(m.notices, SentLine{target, message})
	return nil
}
func (m *mockIRCConnection) SendRaw(message string) error {
	m.raw = append(m.raw, message)
	return nil
}
func (m *mockIRCConnection) Join(channel string) error {
	m.joined = append(m.joined, channel)
	return nil
}
func (m *mockIRCConnection) ISupport() map[string]string { return m.isupport }
func (m *mockIRCConnection) AddCallback(code string, cb func(ircmsg.Message)) ircevent.CallbackID {
	m.callbacks[code] = append(m.callbacks[code], cb)
	return ircevent.CallbackID{}
}
func (m *mockIRCConnection) AddConnectCallback(cb func(ircmsg.Message)) ircevent.CallbackID {
	m.onConnect = append(m.onConnect, cb)
	return ircevent.CallbackID{}
}
func (m *mockIRCConnection) AddDisconnectCallback(cb func(ircmsg.Message)) ircevent.CallbackID {
	m.onDisconnect = append(m.onDisconnect, cb)
	return ircevent.CallbackID{}
}

func (m *mockIRCConnection) fire(source, command string, params ...string) {
	msg := ircmsg.Message{Source: source, Command: command, Params: params}
	for _, cb := range m.callbacks[command] {
		cb(msg)
	}
}

func connectedIRC(t *testing.T) (*IRCTransport, *mockIRCConnection) {
	t.Helper()
	conn := newMockIRCConnection()
	irc := NewIRCTransportWithConnection(IRCConfig{
		Host:     "irc.example.net",
		Nick:     "hashbang",
		Channels: []string{"#bots"},
	}, conn)
	require.NoError(t, irc.Connect())
	for _, cb := range conn.onConnect {
		cb(ircmsg.Message{Command: "001"})
	}
	return irc, conn
}

func TestNewIRCTransport_Defaults(t *testing.T) {
	irc := NewIRCTransport(IRCConfig{Host: "irc.example.net", Nick: "bot"})
	assert.Equal(t, 6667, irc.config.Port)
	assert.Equal(t, "bot", irc.config.User)
	assert.Equal(t, "bot", irc.config.RealName)

	secure := NewIRCTransport(IRCConfig{Host: "irc.example.net", Nick: "bot", UseTLS: true})
	assert.Equal(t, 6697, secure.config.Port)
}

func TestIRCTransport_JoinsChannelsOnConnect(t *testing.T) {
	irc, conn := connectedIRC(t)
	assert.Equal(t, []string{"#bots"}, conn.joined)
	assert.True(t, irc.IsConnected())
	assert.False(t, irc.IsTornDown())
}

func TestIRCTransport_ClassifiesCTCP(t *testing.T) {
	irc, conn := connectedIRC(t)
	var got []Message
	irc.OnMessage(func(m Message) { got = append(got, m) })

	conn.fire("alice!a@host", "PRIVMSG", "#bots", "!poke bob")
	conn.fire("alice!a@host", "PRIVMSG", "hashbang", "\x01PING 42\x01")

	require.Len(t, got, 2)
	assert.Equal(t, "alice", got[0].Source)
	assert.Equal(t, "#bots", got[0].Target)
	assert.False(t, got[0].Control)
	assert.True(t, got[1].Control)
	assert.Equal(t, "hashbang", got[1].Target)
}

func TestIRCTransport_RecoversHandlerPanic(t *testing.T) {
	irc, conn := connectedIRC(t)
	irc.OnMessage(func(Message) { panic("boom") })

	assert.NotPanics(t, func() {
		conn.fire("alice!a@host", "PRIVMSG", "#bots", "!boom")
	})
}

func TestIRCTransport_TracksKnownUsers(t *testing.T) {
	irc, conn := connectedIRC(t)

	conn.fire("server", "353", "hashbang", "=", "#bots", "@op +voiced plain")
	conn.fire("carol!c@host", "JOIN", "#bots")
	conn.fire("dave!d@host", "PRIVMSG", "hashbang", "hello")
	assert.Equal(t, []string{"carol", "dave", "op", "plain", "voiced"}, irc.KnownUsers())

	conn.fire("plain!p@host", "PART", "#bots")
	conn.fire("op!o@host", "NICK", "op2")
	conn.fire("dave!d@host", "QUIT", "bye")
	conn.fire("op2!o@host", "KICK", "#bots", "voiced", "bye")
	assert.Equal(t, []string{"carol", "op2"}, irc.KnownUsers())
}

func TestIRCTransport_ValidChannelNames(t *testing.T) {
	irc, conn := connectedIRC(t)

	assert.True(t, irc.IsValidChannelName("#bots"))
	assert.True(t, irc.IsValidChannelName("&local"))
	assert.False(t, irc.IsValidChannelName("alice"))
	assert.False(t, irc.IsValidChannelName(""))
	assert.False(t, irc.IsValidChannelName("#with space"))

	conn.isupport["CHANTYPES"] = "#"
	assert.False(t, irc.IsValidChannelName("&local"))
}

func TestIRCTransport_SendAndTranscript(t *testing.T) {
	irc, conn := connectedIRC(t)
	var lines []string
	remove := irc.OnTranscript(func(d Direction, line string) {
		lines = append(lines, d.String()+" "+line)
	})

	require.NoError(t, irc.SendMessage("#bots", "hi"))
	require.NoError(t, irc.SendNotice("alice", "psst"))
	require.NoError(t, irc.SendRaw("WHOIS alice"))
	remove()
	require.NoError(t, irc.SendMessage("#bots", "unseen"))

	assert.Equal(t, []SentLine{{"#bots", "hi"}, {"#bots", "unseen"}}, conn.privmsgs)
	assert.Equal(t, []SentLine{{"alice", "psst"}}, conn.notices)
	assert.Equal(t, []string{"WHOIS alice"}, conn.raw)
	assert.Equal(t, []string{
		"<<< PRIVMSG #bots :hi",
		"<<< NOTICE alice :psst",
		"<<< WHOIS alice",
	}, lines)
}

func TestIRCTransport_DisconnectSignalAndTeardown(t *testing.T) {
	irc, conn := connectedIRC(t)
	fired := 0
	irc.OnDisconnect(func(tr Transport) {
		fired++
		assert.Same(t, irc, tr)
	})

	require.NoError(t, irc.Disconnect())
	assert.True(t, conn.quitCalled)
	assert.True(t, irc.IsTornDown())

	conn.connected = false
	for _, cb := range conn.onDisconnect {
		cb(ircmsg.Message{})
	}
	assert.Equal(t, 1, fired)
	assert.False(t, irc.IsConnected())
	assert.Error(t, irc.Connect())
}

func TestIRCTransport_SendBeforeConnectFails(t *testing.T) {
	irc := NewIRCTransport(IRCConfig{Host: "irc.example.net", Nick: "bot"})
	assert.Error(t, irc.SendMessage("#bots", "hi"))
	assert.False(t, irc.IsConnected())
}
