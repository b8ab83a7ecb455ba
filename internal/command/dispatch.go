package command

import (
	"strings"
	"sync"

	"github.com/keepmind9/hashbang/internal/logger"
	"github.com/keepmind9/hashbang/internal/transport"
	"github.com/keepmind9/hashbang/pkg/constants"
	"github.com/sirupsen/logrus"
)

// Kind distinguishes plain commands from CTCP requests
type Kind string

const (
	KindPlain   Kind = "plain"
	KindControl Kind = "control"
)

// Observer is told about every request that reaches a handler
type Observer func(kind Kind, token string)

// Dispatcher routes inbound messages of one instance to its handlers.
// Messages are handled one at a time in arrival order.
type Dispatcher struct {
	mu       sync.Mutex
	host     Host
	observer Observer
}

// NewDispatcher creates a dispatcher for host. observer may be nil.
func NewDispatcher(host Host, observer Observer) *Dispatcher {
	return &Dispatcher{host: host, observer: observer}
}

// HandleMessage processes one inbound message. Handler panics are not
// recovered here; transports recover at delivery.
func (d *Dispatcher) HandleMessage(msg transport.Message) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if msg.Control {
		d.handleControl(msg)
		return
	}
	d.handlePlain(msg)
}

func (d *Dispatcher) handlePlain(msg transport.Message) {
	prefix := transport.ToIRCLower(d.host.CommandPrefix())
	if prefix == "" || !strings.HasPrefix(transport.ToIRCLower(msg.Text), prefix) {
		return
	}

	fields := strings.Fields(msg.Text)
	if len(fields) == 0 {
		return
	}
	token := strings.Replace(transport.ToIRCLower(fields[0]), prefix, "", 1)

	ref, ok := d.host.Registry().Lookup(token)
	if !ok {
		return
	}

	ctx, err := NewContext(d.host, &msg, token, fields[1:], d.replyTarget(msg))
	if err != nil {
		d.logDropped(token, err)
		return
	}
	d.observe(KindPlain, token)
	ref.Handler.Func(ctx)
}

func (d *Dispatcher) handleControl(msg transport.Message) {
	fields := strings.Fields(transport.StripCTCP(msg.Text))
	if len(fields) == 0 {
		return
	}
	token := transport.ToIRCLower(fields[0])

	var handle HandlerFunc
	if token == constants.ClientInfoToken {
		handle = func(ctx *Context) {
			if err := ClientInfo(ctx); err != nil {
				ctx.Logger().WithError(err).Warn("clientinfo-reply-failed")
			}
		}
	} else {
		ref, ok := d.host.Registry().LookupControl(token)
		if !ok {
			return
		}
		handle = ref.Handler.Func
	}

	ctx, err := NewContext(d.host, &msg, token, fields[1:], d.replyTarget(msg))
	if err != nil {
		d.logDropped(token, err)
		return
	}
	d.observe(KindControl, token)
	handle(ctx)
}

// replyTarget is the channel for channel messages and the sender otherwise
func (d *Dispatcher) replyTarget(msg transport.Message) string {
	if d.host.Transport().IsValidChannelName(msg.Target) {
		return msg.Target
	}
	return msg.Source
}

func (d *Dispatcher) observe(kind Kind, token string) {
	if d.observer != nil {
		d.observer(kind, token)
	}
}

func (d *Dispatcher) logDropped(token string, err error) {
	logger.ForInstance(d.host.Name()).WithFields(logrus.Fields{
		"invocation": token,
		"error":      err,
	}).Debug("request-dropped")
}
