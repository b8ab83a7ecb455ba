// Package command implements the command surface of an instance: handler
// metadata, the per-instance registry, the dispatch engine that routes chat
// lines and CTCP requests to handlers, and the built-in CTCP responder.
//
// # Modules
//
// A module is a bundle of handlers. Instead of discovering handler methods at
// runtime, a module lists them explicitly:
//
//	func (m *FunModule) Handlers() []command.Handler {
//	    return []command.Handler{{
//	        Descriptor: command.Descriptor{
//	            Invocations: []string{"poke"},
//	            Usage:       "<nick to poke>",
//	            Description: "Poke someone",
//	        },
//	        Func: m.Poke,
//	    }}
//	}
//
// # Token registration
//
// Tokens are folded with IRC casemapping. When two handlers offer the same
// token, the one loaded first keeps it; the later one is skipped silently.
package command

import (
	"fmt"
	"strings"

	"github.com/keepmind9/hashbang/internal/transport"
	"github.com/keepmind9/hashbang/pkg/constants"
)

// HandlerFunc is the signature of every command handler
type HandlerFunc func(ctx *Context)

// Descriptor is the declarative metadata attached to a handler
type Descriptor struct {
	Invocations        []string // Plain command tokens, without prefix
	ControlInvocations []string // CTCP tokens; clientinfo is reserved
	Name               string
	Description        string
	Usage              string
	Hidden             bool
}

// Handler binds a descriptor to the function it invokes
type Handler struct {
	Descriptor
	Func HandlerFunc
}

// ModuleInfo is module-level metadata used by help surfaces
type ModuleInfo struct {
	Name        string
	Description string
	Hidden      bool
}

// Module is a loadable bundle of handlers
type Module interface {
	Info() ModuleInfo
	Handlers() []Handler
}

// reachable reports whether the handler has any token at all
func (h Handler) reachable() bool {
	return len(h.Invocations) > 0 || len(h.ControlInvocations) > 0
}

// normalize validates a handler and returns a copy with folded,
// de-duplicated tokens
func normalize(h Handler) (Handler, error) {
	if h.Func == nil {
		return Handler{}, fmt.Errorf("%w: handler %q has no function", ErrInvalidDescriptor, h.Name)
	}

	invocations, err := foldTokens(h.Invocations)
	if err != nil {
		return Handler{}, err
	}
	controls, err := foldTokens(h.ControlInvocations)
	if err != nil {
		return Handler{}, err
	}
	for _, token := range controls {
		if token == constants.ClientInfoToken {
			return Handler{}, fmt.Errorf("%w: %s is answered internally", ErrReservedControlToken, token)
		}
	}

	h.Invocations = invocations
	h.ControlInvocations = controls
	return h, nil
}

func foldTokens(tokens []string) ([]string, error) {
	out := make([]string, 0, len(tokens))
	seen := make(map[string]struct{}, len(tokens))
	for _, raw := range tokens {
		token := transport.ToIRCLower(strings.TrimSpace(raw))
		if token == "" || strings.ContainsAny(token, " \t\r\n") {
			return nil, fmt.Errorf("%w: token %q", ErrInvalidDescriptor, raw)
		}
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		out = append(out, token)
	}
	return out, nil
}
