package command

import (
	"fmt"
	"reflect"

	"github.com/keepmind9/hashbang/internal/transport"
)

// HandlerRef associates a registered token with its module and handler
type HandlerRef struct {
	Token   string
	Module  Module
	Handler Handler
}

// LoadedModule is a module together with its validated handlers
type LoadedModule struct {
	Module   Module
	Handlers []Handler
}

// Registry maps invocation and control tokens to handlers for one instance.
//
// Registry is not safe for concurrent Load calls. Modules are expected to be
// loaded before traffic flows; lookups afterwards are read-only.
type Registry struct {
	modules     []LoadedModule
	moduleTypes map[reflect.Type]struct{}

	invocations  tokenTable
	controlTable tokenTable
}

// tokenTable is an insertion-ordered map from token to handler
type tokenTable struct {
	refs  []HandlerRef
	index map[string]int
}

func (t *tokenTable) add(ref HandlerRef) bool {
	if t.index == nil {
		t.index = make(map[string]int)
	}
	if _, taken := t.index[ref.Token]; taken {
		return false
	}
	t.index[ref.Token] = len(t.refs)
	t.refs = append(t.refs, ref)
	return true
}

func (t *tokenTable) lookup(token string) (HandlerRef, bool) {
	i, ok := t.index[transport.ToIRCLower(token)]
	if !ok {
		return HandlerRef{}, false
	}
	return t.refs[i], true
}

func (t *tokenTable) list() []HandlerRef {
	return append([]HandlerRef(nil), t.refs...)
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{moduleTypes: make(map[reflect.Type]struct{})}
}

// Load registers every reachable handler of m.
//
// Loading a second module of the same concrete type fails with
// ErrAlreadyLoaded. A malformed handler fails the whole load. In both cases
// the registry is left unchanged. Tokens already taken by an earlier module
// are skipped without error.
func (r *Registry) Load(m Module) error {
	if m == nil {
		return fmt.Errorf("%w: nil module", ErrInvalidDescriptor)
	}
	moduleType := reflect.TypeOf(m)
	if _, loaded := r.moduleTypes[moduleType]; loaded {
		return fmt.Errorf("%w: %s", ErrAlreadyLoaded, moduleType)
	}

	var handlers []Handler
	for _, h := range m.Handlers() {
		normalized, err := normalize(h)
		if err != nil {
			return fmt.Errorf("module %s: %w", moduleType, err)
		}
		if !normalized.reachable() {
			continue
		}
		handlers = append(handlers, normalized)
	}

	for _, h := range handlers {
		for _, token := range h.Invocations {
			r.invocations.add(HandlerRef{Token: token, Module: m, Handler: h})
		}
		for _, token := range h.ControlInvocations {
			r.controlTable.add(HandlerRef{Token: token, Module: m, Handler: h})
		}
	}

	r.moduleTypes[moduleType] = struct{}{}
	r.modules = append(r.modules, LoadedModule{Module: m, Handlers: handlers})
	return nil
}

// IsLoaded reports whether a module of the same concrete type as m is loaded
func (r *Registry) IsLoaded(m Module) bool {
	_, ok := r.moduleTypes[reflect.TypeOf(m)]
	return ok
}

// Lookup finds the handler for a plain invocation token
func (r *Registry) Lookup(token string) (HandlerRef, bool) {
	return r.invocations.lookup(token)
}

// LookupControl finds the handler for a control token
func (r *Registry) LookupControl(token string) (HandlerRef, bool) {
	return r.controlTable.lookup(token)
}

// Invocations returns the plain tokens in registration order
func (r *Registry) Invocations() []HandlerRef {
	return r.invocations.list()
}

// ControlInvocations returns the control tokens in registration order
func (r *Registry) ControlInvocations() []HandlerRef {
	return r.controlTable.list()
}

// Modules returns the loaded modules in load order
func (r *Registry) Modules() []LoadedModule {
	return append([]LoadedModule(nil), r.modules...)
}
