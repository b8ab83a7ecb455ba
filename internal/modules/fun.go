package modules

import (
	"fmt"

	"github.com/keepmind9/hashbang/internal/command"
	"github.com/keepmind9/hashbang/internal/transport"
	"github.com/sirupsen/logrus"
)

// FunModule holds social commands
type FunModule struct{}

func (m *FunModule) Info() command.ModuleInfo {
	return command.ModuleInfo{Name: "Fun"}
}

func (m *FunModule) Handlers() []command.Handler {
	return []command.Handler{{
		Descriptor: command.Descriptor{
			Invocations: []string{"poke"},
			Usage:       "<nick to poke>",
			Description: "Poke someone",
		},
		Func: m.poke,
	}}
}

func (m *FunModule) poke(ctx *command.Context) {
	params := ctx.Params()
	if len(params) == 0 {
		_ = ctx.NoticeReply("[ERROR] Usage: poke <nick to poke>")
		return
	}
	nick := params[0]

	if !knows(ctx.Transport(), nick) {
		_ = ctx.NoticeReply(fmt.Sprintf("[ERROR] I do not share a channel or a recent private message with %s", nick))
		return
	}

	t := ctx.Transport()
	if err := t.SendMessage(nick, fmt.Sprintf("%s has asked me to poke you!", ctx.Sender())); err != nil {
		ctx.Logger().WithFields(logrus.Fields{"target": nick, "error": err}).Warn("poke-failed")
		return
	}
	if err := t.SendMessage(nick, transport.FrameCTCP("ACTION pokes")); err != nil {
		ctx.Logger().WithFields(logrus.Fields{"target": nick, "error": err}).Warn("poke-failed")
		return
	}
	_ = ctx.NoticeReply(fmt.Sprintf("I poked %s for you!", nick))
}

func knows(t transport.Transport, nick string) bool {
	for _, user := range t.KnownUsers() {
		if transport.EqualFoldIRC(user, nick) {
			return true
		}
	}
	return false
}
