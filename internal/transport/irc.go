package transport

import (
	"crypto/tls"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ergochat/irc-go/ircevent"
	"github.com/ergochat/irc-go/ircmsg"
	"github.com/keepmind9/hashbang/internal/logger"
	"github.com/keepmind9/hashbang/pkg/constants"
	"github.com/sirupsen/logrus"
)

// IRCConfig holds the connection settings of one IRC network
type IRCConfig struct {
	Host         string
	Port         int
	UseTLS       bool
	Nick         string
	User         string
	RealName     string
	Channels     []string
	SASL         bool
	SASLLogin    string
	SASLPassword string
	Version      string
	QuitMessage  string
}

// IRCConnection is the subset of *ircevent.Connection used by IRCTransport.
// It allows tests to drive the adapter without a server.
type IRCConnection interface {
	Connect() error
	Loop()
	Quit()
	Connected() bool
	Privmsg(target, message string) error
	Notice(target, message string) error
	SendRaw(message string) error
	Join(channel string) error
	ISupport() map[string]string
	AddCallback(eventCode string, callback func(ircmsg.Message)) ircevent.CallbackID
	AddConnectCallback(callback func(ircmsg.Message)) ircevent.CallbackID
	AddDisconnectCallback(callback func(ircmsg.Message)) ircevent.CallbackID
}

// IRCTransport implements Transport on top of ergochat/irc-go
type IRCTransport struct {
	mu       sync.RWMutex
	config   IRCConfig
	conn     IRCConnection
	tornDown bool

	// channel (folded) -> nick (folded) -> nick
	members map[string]map[string]string
	// nicks seen in private conversation, folded -> nick
	private map[string]string

	messages    Signal[Message]
	disconnects Signal[Transport]
	transcript  Signal[transcriptLine]
}

type transcriptLine struct {
	dir  Direction
	line string
}

// NewIRCTransport creates an IRC transport; the connection is built on Connect
func NewIRCTransport(config IRCConfig) *IRCTransport {
	if config.Port == 0 {
		config.Port = constants.DefaultIRCPort
		if config.UseTLS {
			config.Port = constants.DefaultIRCSSLPort
		}
	}
	if config.User == "" {
		config.User = config.Nick
	}
	if config.RealName == "" {
		config.RealName = config.Nick
	}
	return &IRCTransport{
		config:  config,
		members: make(map[string]map[string]string),
		private: make(map[string]string),
	}
}

// NewIRCTransportWithConnection wires an existing connection, used by tests
func NewIRCTransportWithConnection(config IRCConfig, conn IRCConnection) *IRCTransport {
	t := NewIRCTransport(config)
	t.conn = conn
	return t
}

func (t *IRCTransport) newConnection() *ircevent.Connection {
	c := &ircevent.Connection{
		Server:      fmt.Sprintf("%s:%d", t.config.Host, t.config.Port),
		Nick:        t.config.Nick,
		User:        t.config.User,
		RealName:    t.config.RealName,
		UseTLS:      t.config.UseTLS,
		UseSASL:     t.config.SASL,
		SASLLogin:   t.config.SASLLogin,
		Version:     t.config.Version,
		QuitMessage: t.config.QuitMessage,
		Timeout:     constants.DefaultConnectionTimeout,
		KeepAlive:   constants.DefaultKeepAlive,
	}
	if t.config.SASL {
		c.SASLPassword = t.config.SASLPassword
	}
	if t.config.UseTLS {
		c.TLSConfig = &tls.Config{ServerName: t.config.Host}
	}
	return c
}

// Connect dials the server, registers callbacks and starts the event loop
func (t *IRCTransport) Connect() error {
	t.mu.Lock()
	if t.tornDown {
		t.mu.Unlock()
		return fmt.Errorf("irc transport for %s has been torn down", t.config.Host)
	}
	if t.conn == nil {
		t.conn = t.newConnection()
	}
	conn := t.conn
	t.mu.Unlock()

	logger.WithFields(logrus.Fields{
		"host":      t.config.Host,
		"port":      t.config.Port,
		"nick":      t.config.Nick,
		"tls":       t.config.UseTLS,
		"sasl":      t.config.SASL,
		"sasl_pass": logger.MaskSecret(t.config.SASLPassword),
	}).Info("starting-irc-transport")

	t.registerCallbacks(conn)

	if err := conn.Connect(); err != nil {
		return fmt.Errorf("failed to connect to %s:%d: %w", t.config.Host, t.config.Port, err)
	}

	go conn.Loop()
	return nil
}

func (t *IRCTransport) registerCallbacks(conn IRCConnection) {
	conn.AddConnectCallback(func(m ircmsg.Message) {
		t.record(Inbound, m)
		for _, channel := range t.config.Channels {
			if err := conn.Join(channel); err != nil {
				logger.WithFields(logrus.Fields{
					"channel": channel,
					"error":   err,
				}).Warn("failed-to-join-irc-channel")
			}
		}
		logger.WithField("host", t.config.Host).Info("irc-transport-connected")
	})

	conn.AddDisconnectCallback(func(m ircmsg.Message) {
		logger.WithField("host", t.config.Host).Info("irc-transport-disconnected")
		t.mu.Lock()
		t.members = make(map[string]map[string]string)
		t.mu.Unlock()
		t.disconnects.Emit(t)
	})

	conn.AddCallback("PRIVMSG", func(m ircmsg.Message) {
		t.record(Inbound, m)
		t.handlePrivmsg(m)
	})
	conn.AddCallback("353", t.handleNames)
	conn.AddCallback("JOIN", t.handleJoin)
	conn.AddCallback("PART", t.handlePart)
	conn.AddCallback("KICK", t.handleKick)
	conn.AddCallback("QUIT", t.handleQuit)
	conn.AddCallback("NICK", t.handleNick)
	conn.AddCallback("NOTICE", func(m ircmsg.Message) { t.record(Inbound, m) })
}

func (t *IRCTransport) handlePrivmsg(m ircmsg.Message) {
	if len(m.Params) < 2 {
		return
	}
	source := nickOf(m.Source)
	target := m.Params[0]
	text := m.Params[1]

	if !t.IsValidChannelName(target) {
		t.mu.Lock()
		t.private[ToIRCLower(source)] = source
		t.mu.Unlock()
	}

	raw, _ := m.Line()
	t.deliver(Message{
		Source:  source,
		Target:  target,
		Text:    text,
		Control: IsCTCP(text),
		Raw:     strings.TrimRight(raw, "\r\n"),
		Time:    time.Now(),
	})
}

// deliver isolates handler panics from the connection's read loop
func (t *IRCTransport) deliver(msg Message) {
	defer func() {
		if r := recover(); r != nil {
			logger.WithFields(logrus.Fields{
				"host":   t.config.Host,
				"source": msg.Source,
				"panic":  r,
			}).Error("handler-panic-recovered")
		}
	}()
	t.messages.Emit(msg)
}

func (t *IRCTransport) handleNames(m ircmsg.Message) {
	t.record(Inbound, m)
	// :server 353 me = #chan :nick1 @nick2 +nick3
	if len(m.Params) < 4 {
		return
	}
	channel := m.Params[2]
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, entry := range strings.Fields(m.Params[3]) {
		nick := strings.TrimLeft(entry, "~&@%+")
		if nick != "" {
			t.addMemberLocked(channel, nick)
		}
	}
}

func (t *IRCTransport) handleJoin(m ircmsg.Message) {
	t.record(Inbound, m)
	if len(m.Params) < 1 {
		return
	}
	t.mu.Lock()
	t.addMemberLocked(m.Params[0], nickOf(m.Source))
	t.mu.Unlock()
}

func (t *IRCTransport) handlePart(m ircmsg.Message) {
	t.record(Inbound, m)
	if len(m.Params) < 1 {
		return
	}
	t.mu.Lock()
	t.removeMemberLocked(m.Params[0], nickOf(m.Source))
	t.mu.Unlock()
}

func (t *IRCTransport) handleKick(m ircmsg.Message) {
	t.record(Inbound, m)
	if len(m.Params) < 2 {
		return
	}
	t.mu.Lock()
	t.removeMemberLocked(m.Params[0], m.Params[1])
	t.mu.Unlock()
}

func (t *IRCTransport) handleQuit(m ircmsg.Message) {
	t.record(Inbound, m)
	nick := ToIRCLower(nickOf(m.Source))
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, nicks := range t.members {
		delete(nicks, nick)
	}
	delete(t.private, nick)
}

func (t *IRCTransport) handleNick(m ircmsg.Message) {
	t.record(Inbound, m)
	if len(m.Params) < 1 {
		return
	}
	oldNick := ToIRCLower(nickOf(m.Source))
	newNick := m.Params[0]
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, nicks := range t.members {
		if _, ok := nicks[oldNick]; ok {
			delete(nicks, oldNick)
			nicks[ToIRCLower(newNick)] = newNick
		}
	}
	if _, ok := t.private[oldNick]; ok {
		delete(t.private, oldNick)
		t.private[ToIRCLower(newNick)] = newNick
	}
}

func (t *IRCTransport) addMemberLocked(channel, nick string) {
	key := ToIRCLower(channel)
	if t.members[key] == nil {
		t.members[key] = make(map[string]string)
	}
	t.members[key][ToIRCLower(nick)] = nick
}

func (t *IRCTransport) removeMemberLocked(channel, nick string) {
	if nicks, ok := t.members[ToIRCLower(channel)]; ok {
		delete(nicks, ToIRCLower(nick))
	}
}

func (t *IRCTransport) record(dir Direction, m ircmsg.Message) {
	if t.transcript.Len() == 0 {
		return
	}
	line, err := m.Line()
	if err != nil {
		return
	}
	t.transcript.Emit(transcriptLine{dir: dir, line: strings.TrimRight(line, "\r\n")})
}

func (t *IRCTransport) recordOutbound(line string) {
	if t.transcript.Len() == 0 {
		return
	}
	t.transcript.Emit(transcriptLine{dir: Outbound, line: line})
}

func (t *IRCTransport) connection() (IRCConnection, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.conn == nil {
		return nil, fmt.Errorf("irc connection to %s not initialized", t.config.Host)
	}
	return t.conn, nil
}

// SendMessage sends a PRIVMSG
func (t *IRCTransport) SendMessage(target, text string) error {
	conn, err := t.connection()
	if err != nil {
		return err
	}
	text = truncate(text, constants.MaxIRCMessageLength)
	if err := conn.Privmsg(target, text); err != nil {
		return fmt.Errorf("failed to send message to %s: %w", target, err)
	}
	t.recordOutbound(fmt.Sprintf("PRIVMSG %s :%s", target, text))
	return nil
}

// SendNotice sends a NOTICE
func (t *IRCTransport) SendNotice(target, text string) error {
	conn, err := t.connection()
	if err != nil {
		return err
	}
	text = truncate(text, constants.MaxIRCMessageLength)
	if err := conn.Notice(target, text); err != nil {
		return fmt.Errorf("failed to send notice to %s: %w", target, err)
	}
	t.recordOutbound(fmt.Sprintf("NOTICE %s :%s", target, text))
	return nil
}

// SendRaw writes a raw protocol line
func (t *IRCTransport) SendRaw(line string) error {
	conn, err := t.connection()
	if err != nil {
		return err
	}
	if err := conn.SendRaw(line); err != nil {
		return fmt.Errorf("failed to send raw line: %w", err)
	}
	t.recordOutbound(line)
	return nil
}

// IsValidChannelName checks name against the server's CHANTYPES
func (t *IRCTransport) IsValidChannelName(name string) bool {
	if name == "" || strings.ContainsAny(name, " ,\x07") {
		return false
	}
	chanTypes := constants.DefaultChannelTypes
	if conn, err := t.connection(); err == nil {
		if advertised, ok := conn.ISupport()["CHANTYPES"]; ok && advertised != "" {
			chanTypes = advertised
		}
	}
	return strings.ContainsRune(chanTypes, rune(name[0]))
}

// KnownUsers returns every nick sharing a channel or a private conversation
func (t *IRCTransport) KnownUsers() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	seen := make(map[string]string)
	for _, nicks := range t.members {
		for key, nick := range nicks {
			seen[key] = nick
		}
	}
	for key, nick := range t.private {
		seen[key] = nick
	}
	users := make([]string, 0, len(seen))
	for _, nick := range seen {
		users = append(users, nick)
	}
	sort.Strings(users)
	return users
}

// OnMessage subscribes to inbound PRIVMSG traffic
func (t *IRCTransport) OnMessage(handler func(Message)) func() {
	return t.messages.Add(handler)
}

// OnDisconnect subscribes to connection loss
func (t *IRCTransport) OnDisconnect(handler func(Transport)) func() {
	return t.disconnects.Add(handler)
}

// OnTranscript subscribes to raw traffic
func (t *IRCTransport) OnTranscript(handler func(Direction, string)) func() {
	return t.transcript.Add(func(l transcriptLine) { handler(l.dir, l.line) })
}

// Disconnect sends QUIT and stops reconnecting
func (t *IRCTransport) Disconnect() error {
	t.mu.Lock()
	conn := t.conn
	t.tornDown = true
	t.mu.Unlock()

	if conn == nil {
		return nil
	}
	conn.Quit()
	return nil
}

// IsConnected reports whether the socket is up
func (t *IRCTransport) IsConnected() bool {
	conn, err := t.connection()
	if err != nil {
		return false
	}
	return conn.Connected()
}

// IsTornDown reports whether Disconnect has been called
func (t *IRCTransport) IsTornDown() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tornDown
}

// nickOf extracts the nick from a nick!user@host source
func nickOf(source string) string {
	nick, _, _ := strings.Cut(source, "!")
	return nick
}
