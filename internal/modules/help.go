package modules

import (
	"fmt"
	"reflect"

	"github.com/keepmind9/hashbang/internal/command"
)

// HelpModule lists visible commands and explains their usage
type HelpModule struct{}

func (m *HelpModule) Info() command.ModuleInfo {
	return command.ModuleInfo{Name: "Help", Description: "Help menu"}
}

func (m *HelpModule) Handlers() []command.Handler {
	return []command.Handler{
		{
			Descriptor: command.Descriptor{
				Invocations: []string{"help", "?"},
				Description: "Shows the help menu",
			},
			Func: m.help,
		},
		{
			Descriptor: command.Descriptor{
				Invocations: []string{"usage"},
				Usage:       "<command>",
				Description: "Explains the usage of a command",
			},
			Func: m.usage,
		},
	}
}

// HelpLines renders the help menu for every visible module of r
func HelpLines(r *command.Registry) []string {
	lines := []string{"==== HELP MENU ====", "==================="}
	for _, loaded := range r.Modules() {
		info := loaded.Module.Info()
		if info.Hidden {
			continue
		}
		name := info.Name
		if name == "" {
			moduleType := reflect.TypeOf(loaded.Module)
			if moduleType.Kind() == reflect.Pointer {
				moduleType = moduleType.Elem()
			}
			name = moduleType.Name()
		}
		lines = append(lines, fmt.Sprintf("> %s <", name))

		for _, h := range loaded.Handlers {
			if h.Hidden || len(h.Invocations) == 0 {
				continue
			}
			line := "- " + h.Invocations[0]
			if h.Description != "" {
				line += " -> " + h.Description
			}
			lines = append(lines, line)
		}
	}
	return append(lines, "===================")
}

func (m *HelpModule) help(ctx *command.Context) {
	for _, line := range HelpLines(ctx.Host().Registry()) {
		if err := ctx.NoticeReply(line); err != nil {
			ctx.Logger().WithError(err).Warn("help-reply-failed")
			return
		}
	}
}

func (m *HelpModule) usage(ctx *command.Context) {
	params := ctx.Params()
	if len(params) == 0 {
		m.notice(ctx, "[ERROR] Usage: usage <command>")
		return
	}

	ref, ok := ctx.Host().Registry().Lookup(params[0])
	switch {
	case !ok:
		m.notice(ctx, fmt.Sprintf("[ERROR] Unknown command '%s'", params[0]))
	case ref.Handler.Usage == "":
		m.notice(ctx, fmt.Sprintf("[ERROR] Command '%s' has no defined usage", ref.Token))
	default:
		m.notice(ctx, fmt.Sprintf("Usage: %s %s", ref.Token, ref.Handler.Usage))
	}
}

func (m *HelpModule) notice(ctx *command.Context, text string) {
	if err := ctx.NoticeReply(text); err != nil {
		ctx.Logger().WithError(err).Warn("help-reply-failed")
	}
}
