package core

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/keepmind9/hashbang/internal/command"
	"github.com/keepmind9/hashbang/internal/logger"
	"github.com/keepmind9/hashbang/internal/transport"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// TransportFactory builds an unconnected transport for an instance definition
type TransportFactory func(cfg InstanceConfig) (transport.Transport, error)

// ModuleFactory returns fresh modules to load into a new instance, in order
type ModuleFactory func() []command.Module

// Result is the outcome of a bulk operation for one instance
type Result struct {
	Name string
	Err  error
}

// ListFilter selects instances in List
type ListFilter string

const (
	FilterAll     ListFilter = "all"
	FilterStarted ListFilter = "started"
	FilterStopped ListFilter = "stopped"
)

// ParseListFilter parses all, started or stopped
func ParseListFilter(s string) (ListFilter, error) {
	switch f := ListFilter(strings.ToLower(strings.TrimSpace(s))); f {
	case FilterAll, FilterStarted, FilterStopped:
		return f, nil
	default:
		return "", fmt.Errorf("invalid list type '%s'", s)
	}
}

// Controller implements the operator vocabulary on top of a Supervisor
type Controller struct {
	mu     sync.RWMutex
	config *Config

	supervisor   *Supervisor
	newTransport TransportFactory
	newModules   ModuleFactory
	metrics      *Metrics
}

// ControllerOption configures a Controller
type ControllerOption func(*Controller)

// WithModules sets the modules loaded into every started instance
func WithModules(f ModuleFactory) ControllerOption {
	return func(c *Controller) { c.newModules = f }
}

// WithSupervisor replaces the default supervisor
func WithSupervisor(s *Supervisor) ControllerOption {
	return func(c *Controller) { c.supervisor = s }
}

// WithControllerMetrics counts dispatched requests of started instances
func WithControllerMetrics(m *Metrics) ControllerOption {
	return func(c *Controller) { c.metrics = m }
}

// NewController creates a controller for cfg
func NewController(cfg *Config, factory TransportFactory, opts ...ControllerOption) *Controller {
	c := &Controller{config: cfg, newTransport: factory}
	for _, opt := range opts {
		opt(c)
	}
	if c.supervisor == nil {
		c.supervisor = NewSupervisor(WithSupervisorMetrics(c.metrics))
	}
	if c.newModules == nil {
		c.newModules = func() []command.Module { return nil }
	}
	return c
}

func (c *Controller) Supervisor() *Supervisor { return c.supervisor }

// Config returns the current configuration
func (c *Controller) Config() *Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.config
}

// SetConfig swaps instance definitions. Running instances are untouched.
func (c *Controller) SetConfig(cfg *Config) {
	c.mu.Lock()
	c.config = cfg
	c.mu.Unlock()
	logger.WithField("instances", len(cfg.Instances)).Info("config-swapped")
}

// Reload loads path and swaps it in. The current config is kept on error.
func (c *Controller) Reload(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	c.SetConfig(cfg)
	return cfg, nil
}

// Start creates, supervises and connects the named instance.
//
// A connected instance of the same name fails with ErrInstanceExists. A stale
// unused or dead entry is replaced. When connecting fails the new instance
// stays supervised so that it shows up in listings.
func (c *Controller) Start(name string) error {
	cfg, err := c.Config().Instance(name)
	if err != nil {
		return err
	}

	if existing, err := c.supervisor.Get(cfg.Name); err == nil {
		if existing.IsConnected() {
			return fmt.Errorf("%w: '%s' is already running", ErrInstanceExists, cfg.Name)
		}
		_ = c.supervisor.RemoveInstance(existing)
	}

	t, err := c.newTransport(cfg)
	if err != nil {
		return fmt.Errorf("failed to create transport for %s: %w", cfg.Name, err)
	}

	inst, err := NewInstance(cfg.Name, t, cfg.CommandPrefix, WithInstanceMetrics(c.metrics))
	if err != nil {
		return err
	}
	for _, m := range c.newModules() {
		if _, err := inst.LoadModule(m); err != nil {
			inst.Close()
			return fmt.Errorf("failed to load module into %s: %w", cfg.Name, err)
		}
	}

	if err := c.supervisor.Add(inst); err != nil {
		inst.Close()
		return err
	}

	log := logger.WithFields(cfg.LogFields()).WithField("run_id", inst.RunID())
	err = inst.Connect()
	c.supervisor.observe()
	if err != nil {
		log.WithError(err).Error("instance-start-failed")
		return fmt.Errorf("failed to connect %s: %w", cfg.Name, err)
	}
	log.Info("instance-started")
	return nil
}

// StartAll starts every configured instance that is not running, optionally
// only those with autostart set
func (c *Controller) StartAll(respectAutoStart bool) []Result {
	var results []Result
	for _, cfg := range c.Config().Instances {
		if inst, err := c.supervisor.Get(cfg.Name); err == nil && inst.IsConnected() {
			continue
		}
		if respectAutoStart && !cfg.AutoStart {
			continue
		}
		results = append(results, Result{Name: cfg.Name, Err: c.Start(cfg.Name)})
	}
	return results
}

// Stop marks the named instance as expected to terminate, disconnects it and
// removes it from supervision
func (c *Controller) Stop(name string) error {
	inst, err := c.supervisor.Get(name)
	if err != nil {
		return err
	}
	c.supervisor.ExpectTermination(inst.Name())
	c.teardown(inst)
	return nil
}

// StopAll stops every supervised instance in parallel
func (c *Controller) StopAll(ctx context.Context) []Result {
	return c.stopAll(ctx, c.supervisor.List(), true)
}

// Restart stops the named instance, if supervised, then starts it again
func (c *Controller) Restart(name string) error {
	if err := c.Stop(name); err != nil && !isNotFound(err) {
		return err
	}
	return c.Start(name)
}

// RestartAll stops every instance and starts every configured one
func (c *Controller) RestartAll(ctx context.Context) []Result {
	stopped := c.StopAll(ctx)
	for _, r := range stopped {
		if r.Err != nil {
			return stopped
		}
	}
	return c.StartAll(false)
}

// Shutdown marks every instance as expected to terminate before any of them
// is disconnected, then stops them all
func (c *Controller) Shutdown(ctx context.Context) []Result {
	instances := c.supervisor.List()
	for _, inst := range instances {
		c.supervisor.ExpectTermination(inst.Name())
	}
	logger.WithField("instances", len(instances)).Info("shutting-down")
	return c.stopAll(ctx, instances, false)
}

func (c *Controller) stopAll(ctx context.Context, instances []*Instance, mark bool) []Result {
	results := make([]Result, len(instances))
	g, ctx := errgroup.WithContext(ctx)
	for i, inst := range instances {
		g.Go(func() error {
			results[i] = Result{Name: inst.Name()}
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			if mark {
				c.supervisor.ExpectTermination(inst.Name())
			}
			c.teardown(inst)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (c *Controller) teardown(inst *Instance) {
	shutdownQuietly(inst.Name(), inst.Transport())
	// already gone when a concurrent death was handled first
	_ = c.supervisor.RemoveInstance(inst)
	logger.WithFields(logrus.Fields{
		"instance": inst.Name(),
		"run_id":   inst.RunID(),
	}).Info("instance-stopped")
}

// List reports configured and supervised instances matching filter
func (c *Controller) List(filter ListFilter) []InstanceStatus {
	cfg := c.Config()
	seen := make(map[string]struct{})
	var all []InstanceStatus

	for _, ic := range cfg.Instances {
		status := InstanceStatus{Name: ic.Name, Protocol: ic.Protocol, State: StateStopped}
		if inst, err := c.supervisor.Get(ic.Name); err == nil {
			status.State = inst.State()
			status.RunID = inst.RunID()
		}
		seen[key(ic.Name)] = struct{}{}
		all = append(all, status)
	}
	// instances dropped from the config by a reload but still running
	for _, inst := range c.supervisor.List() {
		if _, ok := seen[key(inst.Name())]; ok {
			continue
		}
		all = append(all, InstanceStatus{Name: inst.Name(), State: inst.State(), RunID: inst.RunID()})
	}

	var out []InstanceStatus
	for _, s := range all {
		switch {
		case filter == FilterStarted && !s.Started():
		case filter == FilterStopped && s.Started():
		default:
			out = append(out, s)
		}
	}
	return out
}

// Attach returns the raw traffic interface of the named instance
func (c *Controller) Attach(name string) (transport.Attachable, error) {
	inst, err := c.supervisor.Get(name)
	if err != nil {
		return nil, err
	}
	a, ok := inst.Transport().(transport.Attachable)
	if !ok {
		return nil, fmt.Errorf("instance '%s' does not support attaching", inst.Name())
	}
	return a, nil
}
