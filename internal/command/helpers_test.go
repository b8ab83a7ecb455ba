package command

import (
	"github.com/keepmind9/hashbang/internal/transport"
	"github.com/keepmind9/hashbang/internal/transport/transporttest"
)

// testHost is a minimal Host backed by a fake transport
type testHost struct {
	name     string
	prefix   string
	fake     *transporttest.Fake
	registry *Registry
}

func newTestHost(users ...string) *testHost {
	fake := transporttest.New(users...)
	_ = fake.Connect()
	return &testHost{
		name:     "test",
		prefix:   "!",
		fake:     fake,
		registry: NewRegistry(),
	}
}

func (h *testHost) Name() string                   { return h.name }
func (h *testHost) Transport() transport.Transport { return h.fake }
func (h *testHost) Registry() *Registry            { return h.registry }
func (h *testHost) CommandPrefix() string          { return h.prefix }

// recorded is one handler invocation seen by a recorder module
type recorded struct {
	Invocation string
	Params     []string
	ReplyTo    string
}

type recorder struct {
	calls []recorded
}

func (r *recorder) record(ctx *Context) {
	r.calls = append(r.calls, recorded{
		Invocation: ctx.Invocation(),
		Params:     ctx.Params(),
		ReplyTo:    ctx.ReplyTo(),
	})
}

// pokeModule offers "poke" and the "ping" control token
type pokeModule struct {
	recorder
}

func (m *pokeModule) Info() ModuleInfo { return ModuleInfo{Name: "Poke"} }

func (m *pokeModule) Handlers() []Handler {
	return []Handler{
		{Descriptor: Descriptor{Invocations: []string{"poke"}, Usage: "<nick>"}, Func: m.record},
		{Descriptor: Descriptor{ControlInvocations: []string{"ping"}}, Func: m.record},
	}
}

// rivalModule competes for "poke" and adds "Prod" and "version"
type rivalModule struct {
	recorder
}

func (m *rivalModule) Info() ModuleInfo { return ModuleInfo{Name: "Rival"} }

func (m *rivalModule) Handlers() []Handler {
	return []Handler{
		{Descriptor: Descriptor{Invocations: []string{"POKE", "Prod"}}, Func: m.record},
		{Descriptor: Descriptor{ControlInvocations: []string{"version"}}, Func: m.record},
		{Descriptor: Descriptor{Name: "unreachable"}, Func: m.record},
	}
}

// funcModule is configured per test
type funcModule struct {
	handlers []Handler
}

func (m *funcModule) Info() ModuleInfo    { return ModuleInfo{Name: "Func"} }
func (m *funcModule) Handlers() []Handler { return m.handlers }
