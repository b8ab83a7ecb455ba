package transport

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockDiscordSession is a mock implementation of DiscordSessionInterface for testing
type MockDiscordSession struct {
	shouldFailOnOpen bool
	shouldFailOnSend bool
	openCalled       bool
	closed           bool
	sentMessages     []SentLine
	dmRequests       []string
	handlers         []interface{}
}

func (m *MockDiscordSession) AddHandler(handler interface{}) func() {
	m.handlers = append(m.handlers, handler)
	idx := len(m.handlers) - 1
	return func() { m.handlers[idx] = nil }
}

func (m *MockDiscordSession) Open() error {
	m.openCalled = true
	if m.shouldFailOnOpen {
		return errors.New("failed to open discord connection")
	}
	return nil
}

func (m *MockDiscordSession) Close() error {
	m.closed = true
	return nil
}

func (m *MockDiscordSession) ChannelMessageSend(channel, message string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	if m.shouldFailOnSend {
		return nil, errors.New("failed to send message")
	}
	m.sentMessages = append(m.sentMessages, SentLine{Target: channel, Message: message})
	return &discordgo.Message{ID: "msg-id"}, nil
}

func (m *MockDiscordSession) UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error) {
	m.dmRequests = append(m.dmRequests, recipientID)
	return &discordgo.Channel{ID: "dm-" + recipientID}, nil
}

// SimulateMessage calls every live MessageCreate handler
func (m *MockDiscordSession) SimulateMessage(msg *discordgo.MessageCreate) {
	for _, h := range m.handlers {
		if fn, ok := h.(func(*discordgo.Session, *discordgo.MessageCreate)); ok {
			fn(nil, msg)
		}
	}
}

func discordMessage(guild, channel, userID, username, content string) *discordgo.MessageCreate {
	return &discordgo.MessageCreate{Message: &discordgo.Message{
		GuildID:   guild,
		ChannelID: channel,
		Content:   content,
		Author:    &discordgo.User{ID: userID, Username: username},
	}}
}

func TestDiscordTransport_ConnectOpensSession(t *testing.T) {
	session := &MockDiscordSession{}
	d := NewDiscordTransportWithSession(session)

	require.NoError(t, d.Connect())
	assert.True(t, session.openCalled)
	assert.True(t, d.IsConnected())
}

func TestDiscordTransport_ConnectFailure(t *testing.T) {
	d := NewDiscordTransportWithSession(&MockDiscordSession{shouldFailOnOpen: true})
	assert.Error(t, d.Connect())
}

func TestDiscordTransport_DeliversMessagesAndTracksChannels(t *testing.T) {
	session := &MockDiscordSession{}
	d := NewDiscordTransportWithSession(session)
	require.NoError(t, d.Connect())

	var got []Message
	d.OnMessage(func(m Message) { got = append(got, m) })

	session.SimulateMessage(discordMessage("guild", "chan-1", "u1", "alice", "!poke bob"))
	session.SimulateMessage(discordMessage("", "dm-u2", "u2", "Bob", "!help"))
	bot := discordMessage("guild", "chan-1", "b1", "robot", "ignored")
	bot.Author.Bot = true
	session.SimulateMessage(bot)

	require.Len(t, got, 2)
	assert.Equal(t, Message{Source: "u1", Target: "chan-1", Text: "!poke bob", Time: got[0].Time}, got[0])
	assert.True(t, d.IsValidChannelName("chan-1"))
	assert.False(t, d.IsValidChannelName("dm-u2"))
	assert.Equal(t, []string{"Bob", "alice"}, d.KnownUsers())
}

func TestDiscordTransport_SendResolvesDirectMessages(t *testing.T) {
	session := &MockDiscordSession{}
	d := NewDiscordTransportWithSession(session)
	require.NoError(t, d.Connect())
	session.SimulateMessage(discordMessage("guild", "chan-1", "u1", "alice", "hi"))

	require.NoError(t, d.SendMessage("chan-1", "to channel"))
	require.NoError(t, d.SendNotice("u1", "to user id"))
	require.NoError(t, d.SendMessage("Alice", "to username"))

	assert.Equal(t, []SentLine{
		{"chan-1", "to channel"},
		{"dm-u1", "to user id"},
		{"dm-u1", "to username"},
	}, session.sentMessages)
}

func TestDiscordTransport_SendFailure(t *testing.T) {
	d := NewDiscordTransportWithSession(&MockDiscordSession{shouldFailOnSend: true})
	assert.Error(t, d.SendMessage("chan", "hello"))
}

func TestDiscordTransport_SendWithoutSession(t *testing.T) {
	d := NewDiscordTransport("token")
	assert.Error(t, d.SendMessage("chan", "hello"))
}

func TestDiscordTransport_DisconnectFiresOnce(t *testing.T) {
	session := &MockDiscordSession{}
	d := NewDiscordTransportWithSession(session)
	require.NoError(t, d.Connect())

	fired := 0
	d.OnDisconnect(func(Transport) { fired++ })

	require.NoError(t, d.Disconnect())
	assert.True(t, session.closed)
	assert.Equal(t, 1, fired)
	assert.False(t, d.IsConnected())
	assert.True(t, d.IsTornDown())
	assert.Error(t, d.Connect())
}

// offlineSession is a real discordgo session that never dials the gateway
type offlineSession struct{ *discordgo.Session }

func (offlineSession) Open() error { return nil }

func TestDiscordTransport_GatewayCloseAllowsTeardownFromSubscriber(t *testing.T) {
	session, err := discordgo.New("Bot token")
	require.NoError(t, err)
	session.SyncEvents = true
	d := NewDiscordTransportWithSession(offlineSession{session})
	require.NoError(t, d.Connect())

	tornDown := make(chan error, 1)
	var fired atomic.Bool
	d.OnDisconnect(func(tr Transport) {
		// Disconnect fires the signal again on this goroutine
		if fired.CompareAndSwap(false, true) {
			tornDown <- tr.Disconnect()
		}
	})

	go func() { _ = session.Close() }()

	select {
	case err := <-tornDown:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("teardown from a disconnect subscriber never completed")
	}
	assert.False(t, d.IsConnected())
	assert.True(t, d.IsTornDown())
}

func TestDiscordTransport_ConnectRecordsRemoversUnderLock(t *testing.T) {
	session := &MockDiscordSession{}
	d := NewDiscordTransportWithSession(session)
	require.NoError(t, d.Connect())

	d.mu.RLock()
	assert.Len(t, d.removers, 3)
	d.mu.RUnlock()

	require.NoError(t, d.Disconnect())
	for _, h := range session.handlers {
		assert.Nil(t, h)
	}
}
