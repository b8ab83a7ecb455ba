package command

import (
	"strings"

	"github.com/keepmind9/hashbang/internal/transport"
)

// ClientInfo answers a CTCP CLIENTINFO request with every registered control
// token, upper-cased, in registration order
func ClientInfo(ctx *Context) error {
	parts := []string{"CLIENTINFO"}
	for _, ref := range ctx.Host().Registry().ControlInvocations() {
		parts = append(parts, transport.ToIRCUpper(ref.Token))
	}
	return ctx.NoticeReply(transport.FrameCTCP(strings.Join(parts, " ")))
}

// Ping echoes the request parameters back as a CTCP PING reply
func Ping(ctx *Context) error {
	payload := "PING"
	if params := ctx.Params(); len(params) > 0 {
		payload += " " + strings.Join(params, " ")
	}
	return ctx.NoticeReply(transport.FrameCTCP(payload))
}
