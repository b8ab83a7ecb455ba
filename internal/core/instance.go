package core

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/keepmind9/hashbang/internal/command"
	"github.com/keepmind9/hashbang/internal/logger"
	"github.com/keepmind9/hashbang/internal/transport"
	"github.com/sirupsen/logrus"
)

// Instance is one supervised chat session: a transport, a command prefix and
// the registry of loaded modules
type Instance struct {
	name   string
	runID  string
	prefix string

	transport  transport.Transport
	registry   *command.Registry
	dispatcher *command.Dispatcher

	unsubscribe func()
	closeOnce   sync.Once
}

// InstanceOption configures an Instance
type InstanceOption func(*instanceOptions)

type instanceOptions struct {
	metrics *Metrics
}

// WithInstanceMetrics counts dispatched requests
func WithInstanceMetrics(m *Metrics) InstanceOption {
	return func(o *instanceOptions) { o.metrics = m }
}

// NewInstance binds a transport to a new registry and subscribes to its
// inbound messages. The transport is not connected.
func NewInstance(name string, t transport.Transport, commandPrefix string, opts ...InstanceOption) (*Instance, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: name is empty", ErrInvalidInstance)
	}
	if t == nil {
		return nil, fmt.Errorf("%w: transport is required", ErrInvalidInstance)
	}
	if strings.TrimSpace(commandPrefix) == "" {
		return nil, fmt.Errorf("%w: command prefix is empty", ErrInvalidInstance)
	}

	var o instanceOptions
	for _, opt := range opts {
		opt(&o)
	}

	inst := &Instance{
		name:      name,
		runID:     uuid.NewString(),
		prefix:    commandPrefix,
		transport: t,
		registry:  command.NewRegistry(),
	}

	observer := func(kind command.Kind, token string) {
		o.metrics.RecordDispatch(name, string(kind))
		inst.logger().WithFields(logrus.Fields{"kind": kind, "token": token}).Debug("command-dispatched")
	}
	inst.dispatcher = command.NewDispatcher(inst, observer)
	inst.unsubscribe = t.OnMessage(inst.dispatcher.HandleMessage)

	return inst, nil
}

func (i *Instance) Name() string                   { return i.name }
func (i *Instance) RunID() string                  { return i.runID }
func (i *Instance) Transport() transport.Transport { return i.transport }
func (i *Instance) Registry() *command.Registry    { return i.registry }
func (i *Instance) CommandPrefix() string          { return i.prefix }

// LoadModule loads m into the instance registry and returns it
func (i *Instance) LoadModule(m command.Module) (command.Module, error) {
	if err := i.registry.Load(m); err != nil {
		return nil, err
	}
	i.logger().WithField("module", m.Info().Name).Debug("module-loaded")
	return m, nil
}

// Connect starts the transport
func (i *Instance) Connect() error {
	return i.transport.Connect()
}

// IsConnected reports the transport connection state
func (i *Instance) IsConnected() bool {
	return i.transport.IsConnected()
}

// State classifies the instance from a single read of its transport flags
func (i *Instance) State() State {
	switch {
	case i.transport.IsConnected():
		return StateConnected
	case i.transport.IsTornDown():
		return StateDead
	default:
		return StateUnused
	}
}

// Close detaches the dispatcher from the transport. It does not disconnect.
func (i *Instance) Close() {
	i.closeOnce.Do(func() {
		if i.unsubscribe != nil {
			i.unsubscribe()
		}
	})
}

func (i *Instance) logger() *logrus.Entry {
	return logger.ForInstance(i.name).WithField("run_id", i.runID)
}
