package modules

import (
	"time"

	"github.com/keepmind9/hashbang/internal/command"
	"github.com/keepmind9/hashbang/internal/transport"
)

// CTCPModule answers the standard CTCP queries. It is hidden from help.
type CTCPModule struct {
	version string
	now     func() time.Time
}

// NewCTCPModule creates the module; version is reported to CTCP VERSION
func NewCTCPModule(version string) *CTCPModule {
	return &CTCPModule{version: version, now: time.Now}
}

func (m *CTCPModule) Info() command.ModuleInfo {
	return command.ModuleInfo{Name: "CTCP", Hidden: true}
}

func (m *CTCPModule) Handlers() []command.Handler {
	return []command.Handler{
		{Descriptor: command.Descriptor{ControlInvocations: []string{"ping"}}, Func: m.ping},
		{Descriptor: command.Descriptor{ControlInvocations: []string{"version"}}, Func: m.versionReply},
		{Descriptor: command.Descriptor{ControlInvocations: []string{"time"}}, Func: m.timeReply},
	}
}

func (m *CTCPModule) ping(ctx *command.Context) {
	if err := command.Ping(ctx); err != nil {
		ctx.Logger().WithError(err).Warn("ctcp-reply-failed")
	}
}

func (m *CTCPModule) versionReply(ctx *command.Context) {
	version := m.version
	if version == "" {
		version = "dev"
	}
	if err := ctx.NoticeReply(transport.FrameCTCP("VERSION hashbang " + version)); err != nil {
		ctx.Logger().WithError(err).Warn("ctcp-reply-failed")
	}
}

func (m *CTCPModule) timeReply(ctx *command.Context) {
	stamp := m.now().Format(time.RFC1123Z)
	if err := ctx.NoticeReply(transport.FrameCTCP("TIME " + stamp)); err != nil {
		ctx.Logger().WithError(err).Warn("ctcp-reply-failed")
	}
}
