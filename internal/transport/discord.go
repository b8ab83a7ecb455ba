package transport

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/keepmind9/hashbang/internal/logger"
	"github.com/keepmind9/hashbang/pkg/constants"
	"github.com/sirupsen/logrus"
)

// DiscordSessionInterface defines the interface we need from discordgo.Session
// This allows us to mock it in tests without depending on concrete types
type DiscordSessionInterface interface {
	AddHandler(handler interface{}) func()
	Open() error
	Close() error
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
}

// DiscordTransport implements Transport for Discord.
//
// Discord has no notice concept, so notices are sent as ordinary messages.
// Guild channels are "channels"; anything else is answered in a DM.
type DiscordTransport struct {
	mu        sync.RWMutex
	token     string
	session   DiscordSessionInterface
	connected bool
	tornDown  bool
	removers  []func()

	guildChannels map[string]struct{} // channel IDs seen with a guild ID
	users         map[string]string   // lower username -> user ID
	userNames     map[string]string   // user ID -> username

	messages    Signal[Message]
	disconnects Signal[Transport]
}

// NewDiscordTransport creates a Discord transport for the given bot token
func NewDiscordTransport(token string) *DiscordTransport {
	return &DiscordTransport{
		token:         token,
		guildChannels: make(map[string]struct{}),
		users:         make(map[string]string),
		userNames:     make(map[string]string),
	}
}

// NewDiscordTransportWithSession wires an existing session, used by tests
func NewDiscordTransportWithSession(session DiscordSessionInterface) *DiscordTransport {
	d := NewDiscordTransport("")
	d.session = session
	return d
}

// Connect opens the gateway connection
func (d *DiscordTransport) Connect() error {
	d.mu.Lock()
	if d.tornDown {
		d.mu.Unlock()
		return fmt.Errorf("discord transport has been torn down")
	}
	if d.session == nil {
		session, err := discordgo.New("Bot " + d.token)
		if err != nil {
			d.mu.Unlock()
			return fmt.Errorf("failed to create discord session: %w", err)
		}
		// One handler at a time, in gateway order
		session.SyncEvents = true
		// A dropped gateway is an instance death, the supervisor decides what follows
		session.ShouldReconnectOnError = false
		session.Identify.Intents = discordgo.IntentsGuildMessages |
			discordgo.IntentsDirectMessages |
			discordgo.IntentsMessageContent
		d.session = session
	}
	session := d.session
	d.mu.Unlock()

	logger.WithField("token", logger.MaskSecret(d.token)).Info("starting-discord-transport")
	d.subscribe(session)

	if err := session.Open(); err != nil {
		return fmt.Errorf("failed to open discord connection: %w", err)
	}
	d.setConnected(true)
	return nil
}

// subscribe registers the gateway handlers on session
func (d *DiscordTransport) subscribe(session DiscordSessionInterface) {
	removers := []func(){
		session.AddHandler(func(s *discordgo.Session, c *discordgo.Connect) {
			d.setConnected(true)
			logger.Info("discord-transport-connected")
		}),
		session.AddHandler(func(s *discordgo.Session, e *discordgo.Disconnect) {
			d.setConnected(false)
			logger.Info("discord-transport-disconnected")
			// discordgo runs this handler under its handler lock, and subscribers
			// may tear the session down, which removes handlers
			go d.disconnects.Emit(d)
		}),
		session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
			d.handleMessage(m)
		}),
	}

	d.mu.Lock()
	d.removers = append(d.removers, removers...)
	d.mu.Unlock()
}

func (d *DiscordTransport) handleMessage(m *discordgo.MessageCreate) {
	if m == nil || m.Message == nil || m.Author == nil || m.Author.Bot {
		return
	}

	d.mu.Lock()
	if m.GuildID != "" {
		d.guildChannels[m.ChannelID] = struct{}{}
	}
	d.users[strings.ToLower(m.Author.Username)] = m.Author.ID
	d.userNames[m.Author.ID] = m.Author.Username
	d.mu.Unlock()

	logger.WithFields(logrus.Fields{
		"platform": "discord",
		"user_id":  m.Author.ID,
		"username": m.Author.Username,
		"channel":  m.ChannelID,
	}).Debug("received-discord-message")

	defer func() {
		if r := recover(); r != nil {
			logger.WithFields(logrus.Fields{
				"platform": "discord",
				"channel":  m.ChannelID,
				"panic":    r,
			}).Error("handler-panic-recovered")
		}
	}()
	d.messages.Emit(Message{
		Source: m.Author.ID,
		Target: m.ChannelID,
		Text:   m.Content,
		Time:   time.Now(),
	})
}

func (d *DiscordTransport) setConnected(v bool) {
	d.mu.Lock()
	d.connected = v
	d.mu.Unlock()
}

// resolveChannel turns a guild channel ID, user ID or known username into a
// channel ID that accepts messages
func (d *DiscordTransport) resolveChannel(session DiscordSessionInterface, target string) (string, error) {
	d.mu.RLock()
	_, isGuild := d.guildChannels[target]
	userID, isName := d.users[strings.ToLower(target)]
	_, isUser := d.userNames[target]
	d.mu.RUnlock()

	switch {
	case isGuild:
		return target, nil
	case isUser:
		userID = target
	case !isName:
		// Unknown target: assume the caller passed a channel ID
		return target, nil
	}

	dm, err := session.UserChannelCreate(userID)
	if err != nil {
		return "", fmt.Errorf("failed to open DM with %s: %w", userID, err)
	}
	return dm.ID, nil
}

// SendMessage sends a message to a Discord channel or user
func (d *DiscordTransport) SendMessage(target, message string) error {
	d.mu.RLock()
	session := d.session
	d.mu.RUnlock()

	if session == nil {
		return fmt.Errorf("discord session not initialized")
	}

	channelID, err := d.resolveChannel(session, target)
	if err != nil {
		return err
	}

	if len(message) > constants.MaxDiscordMessageLength {
		logger.WithFields(logrus.Fields{
			"original_length": len(message),
			"max_length":      constants.MaxDiscordMessageLength,
		}).Info("truncating-message-for-discord-limit")
		message = truncate(message, constants.MaxDiscordMessageLength)
	}

	if _, err := session.ChannelMessageSend(channelID, message); err != nil {
		logger.WithFields(logrus.Fields{
			"channel": channelID,
			"error":   err,
		}).Error("failed-to-send-message-to-discord")
		return fmt.Errorf("failed to send message to channel %s: %w", channelID, err)
	}
	return nil
}

// SendNotice sends an ordinary message; Discord has no notices
func (d *DiscordTransport) SendNotice(target, message string) error {
	return d.SendMessage(target, message)
}

// IsValidChannelName reports whether name is a guild channel seen so far
func (d *DiscordTransport) IsValidChannelName(name string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.guildChannels[name]
	return ok
}

// KnownUsers returns the usernames that have spoken to the bot
func (d *DiscordTransport) KnownUsers() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	users := make([]string, 0, len(d.userNames))
	for _, name := range d.userNames {
		users = append(users, name)
	}
	sort.Strings(users)
	return users
}

// OnMessage subscribes to inbound messages
func (d *DiscordTransport) OnMessage(handler func(Message)) func() {
	return d.messages.Add(handler)
}

// OnDisconnect subscribes to gateway disconnects
func (d *DiscordTransport) OnDisconnect(handler func(Transport)) func() {
	return d.disconnects.Add(handler)
}

// Disconnect closes the Discord connection and cleans up resources
func (d *DiscordTransport) Disconnect() error {
	d.mu.Lock()
	session := d.session
	removers := d.removers
	d.removers = nil
	d.tornDown = true
	d.mu.Unlock()

	if session == nil {
		return nil
	}

	// Handlers go first so the gateway close reaches subscribers exactly once
	for _, remove := range removers {
		remove()
	}
	err := session.Close()
	d.setConnected(false)
	d.disconnects.Emit(d)

	if err != nil {
		return fmt.Errorf("failed to close discord session: %w", err)
	}
	return nil
}

// IsConnected reports whether the gateway is up
func (d *DiscordTransport) IsConnected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connected
}

// IsTornDown reports whether Disconnect has been called
func (d *DiscordTransport) IsTornDown() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.tornDown
}
