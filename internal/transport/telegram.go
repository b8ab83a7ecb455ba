package transport

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/keepmind9/hashbang/internal/logger"
	"github.com/keepmind9/hashbang/pkg/constants"
	"github.com/sirupsen/logrus"
)

// TelegramAPI is the subset of *tgbotapi.BotAPI used by TelegramTransport
type TelegramAPI interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	StopReceivingUpdates()
}

// TelegramTransport implements Transport using long polling.
//
// Groups, supergroups and channels are "channels". Notices are delivered with
// notifications disabled.
type TelegramTransport struct {
	mu        sync.RWMutex
	token     string
	api       TelegramAPI
	connected bool
	tornDown  bool
	cancel    context.CancelFunc
	done      chan struct{}
	stopOnce  sync.Once

	groupChats map[string]struct{} // chat IDs of non-private chats
	users      map[string]int64    // lower username -> user ID
	userNames  map[int64]string

	messages    Signal[Message]
	disconnects Signal[Transport]
}

// NewTelegramTransport creates a Telegram transport for the given bot token
func NewTelegramTransport(token string) *TelegramTransport {
	return &TelegramTransport{
		token:      token,
		groupChats: make(map[string]struct{}),
		users:      make(map[string]int64),
		userNames:  make(map[int64]string),
	}
}

// NewTelegramTransportWithAPI wires an existing API client, used by tests
func NewTelegramTransportWithAPI(api TelegramAPI) *TelegramTransport {
	t := NewTelegramTransport("")
	t.api = api
	return t
}

// Connect starts long polling
func (t *TelegramTransport) Connect() error {
	t.mu.Lock()
	if t.tornDown {
		t.mu.Unlock()
		return fmt.Errorf("telegram transport has been torn down")
	}
	if t.api == nil {
		logger.WithField("token", logger.MaskSecret(t.token)).Info("starting-telegram-transport-with-long-polling")
		bot, err := tgbotapi.NewBotAPI(t.token)
		if err != nil {
			t.mu.Unlock()
			return fmt.Errorf("failed to initialize Telegram bot: %w", err)
		}
		logger.WithFields(logrus.Fields{
			"bot_username": bot.Self.UserName,
			"bot_id":       bot.Self.ID,
		}).Info("telegram-bot-initialized-successfully")
		t.api = bot
	}
	api := t.api
	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.done = make(chan struct{})
	t.connected = true
	done := t.done
	t.mu.Unlock()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = int(constants.DefaultPollTimeout.Seconds())
	updates := api.GetUpdatesChan(u)

	go func() {
		// done is closed before the disconnect signal so that a subscriber
		// may call Disconnect from the handler
		defer func() {
			t.mu.Lock()
			t.connected = false
			t.mu.Unlock()
			close(done)
			t.disconnects.Emit(t)
		}()
		for {
			select {
			case <-ctx.Done():
				logger.Info("telegram-long-polling-stopped")
				return
			case update, ok := <-updates:
				if !ok {
					logger.Info("telegram-updates-channel-closed")
					return
				}
				if update.Message != nil {
					t.handleMessage(update.Message)
				}
			}
		}
	}()
	return nil
}

func (t *TelegramTransport) handleMessage(message *tgbotapi.Message) {
	if message == nil || message.Chat == nil || message.Text == "" {
		return
	}

	chatID := strconv.FormatInt(message.Chat.ID, 10)
	var source string
	t.mu.Lock()
	if !message.Chat.IsPrivate() {
		t.groupChats[chatID] = struct{}{}
	}
	if message.From != nil {
		source = strconv.FormatInt(message.From.ID, 10)
		if message.From.UserName != "" {
			t.users[strings.ToLower(message.From.UserName)] = message.From.ID
			t.userNames[message.From.ID] = message.From.UserName
		}
	}
	t.mu.Unlock()

	logger.WithFields(logrus.Fields{
		"platform":   "telegram",
		"user_id":    source,
		"chat_id":    chatID,
		"chat_type":  message.Chat.Type,
		"message_id": message.MessageID,
	}).Debug("received-telegram-message")

	defer func() {
		if r := recover(); r != nil {
			logger.WithFields(logrus.Fields{
				"platform": "telegram",
				"chat_id":  chatID,
				"panic":    r,
			}).Error("handler-panic-recovered")
		}
	}()
	t.messages.Emit(Message{
		Source: source,
		Target: chatID,
		Text:   message.Text,
		Time:   time.Now(),
	})
}

func (t *TelegramTransport) resolveChat(target string) (int64, error) {
	if id, err := strconv.ParseInt(target, 10, 64); err == nil {
		return id, nil
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	if id, ok := t.users[strings.ToLower(strings.TrimPrefix(target, "@"))]; ok {
		return id, nil
	}
	return 0, fmt.Errorf("unknown telegram chat %q", target)
}

func (t *TelegramTransport) send(target, text string, silent bool) error {
	t.mu.RLock()
	api := t.api
	t.mu.RUnlock()
	if api == nil {
		return fmt.Errorf("telegram bot not initialized")
	}

	chatID, err := t.resolveChat(target)
	if err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(chatID, truncate(text, constants.MaxTelegramMessageLength))
	msg.DisableNotification = silent
	if _, err := api.Send(msg); err != nil {
		logger.WithFields(logrus.Fields{
			"chat_id": chatID,
			"error":   err,
		}).Error("failed-to-send-message-to-telegram")
		return fmt.Errorf("failed to send message to chat %d: %w", chatID, err)
	}
	return nil
}

// SendMessage sends a message to a chat
func (t *TelegramTransport) SendMessage(target, text string) error {
	return t.send(target, text, false)
}

// SendNotice sends a message without notification
func (t *TelegramTransport) SendNotice(target, text string) error {
	return t.send(target, text, true)
}

// IsValidChannelName reports whether name is a group chat
func (t *TelegramTransport) IsValidChannelName(name string) bool {
	t.mu.RLock()
	_, ok := t.groupChats[name]
	t.mu.RUnlock()
	if ok {
		return true
	}
	// Group chat IDs are negative
	return strings.HasPrefix(name, "-")
}

// KnownUsers returns usernames seen so far
func (t *TelegramTransport) KnownUsers() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	users := make([]string, 0, len(t.userNames))
	for _, name := range t.userNames {
		users = append(users, name)
	}
	sort.Strings(users)
	return users
}

// OnMessage subscribes to inbound messages
func (t *TelegramTransport) OnMessage(handler func(Message)) func() {
	return t.messages.Add(handler)
}

// OnDisconnect subscribes to the end of long polling
func (t *TelegramTransport) OnDisconnect(handler func(Transport)) func() {
	return t.disconnects.Add(handler)
}

// Disconnect stops long polling and waits for the poller to exit
func (t *TelegramTransport) Disconnect() error {
	t.mu.Lock()
	api := t.api
	cancel := t.cancel
	done := t.done
	t.tornDown = true
	t.mu.Unlock()

	if api == nil || cancel == nil {
		return nil
	}
	// StopReceivingUpdates closes a channel and must run once
	t.stopOnce.Do(api.StopReceivingUpdates)
	cancel()
	<-done
	return nil
}

// IsConnected reports whether long polling is running
func (t *TelegramTransport) IsConnected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.connected
}

// IsTornDown reports whether Disconnect has been called
func (t *TelegramTransport) IsTornDown() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tornDown
}
