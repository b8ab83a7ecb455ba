package core

import (
	"errors"
	"strings"
	"sync"

	"github.com/keepmind9/hashbang/internal/command"
	"github.com/keepmind9/hashbang/internal/transport"
	"github.com/keepmind9/hashbang/internal/transport/transporttest"
)

// fakeFactory hands out fakes and remembers the last one per instance
type fakeFactory struct {
	mu      sync.Mutex
	fakes   map[string]*transporttest.Fake
	created map[string]int
	prepare func(name string, f *transporttest.Fake)
	err     error
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{
		fakes:   make(map[string]*transporttest.Fake),
		created: make(map[string]int),
	}
}

func (ff *fakeFactory) build(cfg InstanceConfig) (transport.Transport, error) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	if ff.err != nil {
		return nil, ff.err
	}
	f := transporttest.New("alice", "bob")
	if ff.prepare != nil {
		ff.prepare(cfg.Name, f)
	}
	ff.fakes[cfg.Name] = f
	ff.created[cfg.Name]++
	return f, nil
}

func (ff *fakeFactory) fake(name string) *transporttest.Fake {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	return ff.fakes[name]
}

func (ff *fakeFactory) count(name string) int {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	return ff.created[name]
}

func testConfig() *Config {
	return &Config{
		AutoStart: true,
		Instances: []InstanceConfig{
			{Name: "libera", AutoStart: true, Protocol: ProtocolIRC, CommandPrefix: "!", Host: "irc.libera.chat", Nick: "hb"},
			{Name: "oftc", AutoStart: false, Protocol: ProtocolIRC, CommandPrefix: "!", Host: "irc.oftc.net", Nick: "hb"},
			{Name: "discord", AutoStart: true, Protocol: ProtocolDiscord, CommandPrefix: "?", Token: "token"},
		},
	}
}

// echoModule answers "echo" with its parameters
type echoModule struct{}

func (echoModule) Info() command.ModuleInfo { return command.ModuleInfo{Name: "Echo"} }

func (echoModule) Handlers() []command.Handler {
	return []command.Handler{{
		Descriptor: command.Descriptor{Invocations: []string{"echo"}},
		Func: func(ctx *command.Context) {
			_ = ctx.Reply(strings.Join(ctx.Params(), " "))
		},
	}}
}

var errBoom = errors.New("boom")

// newSupervised builds a connected instance on a fake and adds it
func newSupervised(s *Supervisor, name string) (*Instance, *transporttest.Fake, error) {
	f := transporttest.New()
	inst, err := NewInstance(name, f, "!")
	if err != nil {
		return nil, nil, err
	}
	if err := s.Add(inst); err != nil {
		return nil, nil, err
	}
	if err := f.Connect(); err != nil {
		return nil, nil, err
	}
	return inst, f, nil
}
