package command

import (
	"fmt"
	"strings"

	"github.com/keepmind9/hashbang/internal/logger"
	"github.com/keepmind9/hashbang/internal/transport"
	"github.com/sirupsen/logrus"
)

// Host is the instance a request arrived on
type Host interface {
	Name() string
	Transport() transport.Transport
	Registry() *Registry
	CommandPrefix() string
}

// Context carries everything a handler needs to answer one request
type Context struct {
	host       Host
	message    transport.Message
	invocation string
	params     []string
	replyTo    string
}

// NewContext validates its arguments and builds a request context.
// Blank invocation or reply target, or a nil host, message or params slice
// fail with ErrInvalidContext.
func NewContext(host Host, message *transport.Message, invocation string, params []string, replyTo string) (*Context, error) {
	switch {
	case host == nil:
		return nil, fmt.Errorf("%w: host is required", ErrInvalidContext)
	case message == nil:
		return nil, fmt.Errorf("%w: message is required", ErrInvalidContext)
	case params == nil:
		return nil, fmt.Errorf("%w: params are required", ErrInvalidContext)
	case strings.TrimSpace(invocation) == "":
		return nil, fmt.Errorf("%w: invocation is empty", ErrInvalidContext)
	case strings.TrimSpace(replyTo) == "":
		return nil, fmt.Errorf("%w: reply target is empty", ErrInvalidContext)
	}

	return &Context{
		host:       host,
		message:    *message,
		invocation: invocation,
		params:     append(make([]string, 0, len(params)), params...),
		replyTo:    replyTo,
	}, nil
}

func (c *Context) Host() Host                     { return c.host }
func (c *Context) Transport() transport.Transport { return c.host.Transport() }
func (c *Context) Message() transport.Message     { return c.message }
func (c *Context) Invocation() string             { return c.invocation }
func (c *Context) ReplyTo() string                { return c.replyTo }

// Sender is the nick or user that sent the request
func (c *Context) Sender() string { return c.message.Source }

// Params returns a copy of the tokens after the invocation
func (c *Context) Params() []string {
	return append(make([]string, 0, len(c.params)), c.params...)
}

// Reply sends text to the reply target as a normal message
func (c *Context) Reply(text string) error {
	return c.host.Transport().SendMessage(c.replyTo, text)
}

// NoticeReply sends text to the reply target as a notice
func (c *Context) NoticeReply(text string) error {
	return c.host.Transport().SendNotice(c.replyTo, text)
}

// Logger returns an entry tagged with the instance and request
func (c *Context) Logger() *logrus.Entry {
	return logger.ForInstance(c.host.Name()).WithFields(logrus.Fields{
		"invocation": c.invocation,
		"sender":     c.message.Source,
		"reply_to":   c.replyTo,
	})
}
