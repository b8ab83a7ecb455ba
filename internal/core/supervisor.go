package core

import (
	"fmt"
	"sync"

	"github.com/keepmind9/hashbang/internal/logger"
	"github.com/keepmind9/hashbang/internal/transport"
	"github.com/sirupsen/logrus"
)

// DeathHandler is told about an unexpected instance death
type DeathHandler func(name string, inst *Instance)

// SupervisorOption configures a Supervisor
type SupervisorOption func(*Supervisor)

// WithDeathHandler is called when an instance dies unexpectedly, before cleanup
func WithDeathHandler(h DeathHandler) SupervisorOption {
	return func(s *Supervisor) { s.onDeath = h }
}

// WithCleanupHandler is called once a dead instance has been removed
func WithCleanupHandler(h DeathHandler) SupervisorOption {
	return func(s *Supervisor) { s.onCleanup = h }
}

// WithSupervisorMetrics records deaths and instance states
func WithSupervisorMetrics(m *Metrics) SupervisorOption {
	return func(s *Supervisor) { s.metrics = m }
}

type supervised struct {
	inst        *Instance
	unsubscribe func()
	dying       bool
}

// Supervisor tracks named instances and reacts to their disconnects.
//
// A disconnect is either expected, when the name was marked with
// ExpectTermination beforehand, or unexpected. Expected disconnects consume
// one mark and are otherwise ignored. Unexpected ones are reported, the
// transport is shut down on a best-effort basis and the instance is removed.
type Supervisor struct {
	mu        sync.Mutex
	entries   map[string]*supervised
	order     []string
	expecting []string

	onDeath   DeathHandler
	onCleanup DeathHandler
	metrics   *Metrics
}

// NewSupervisor creates an empty supervisor
func NewSupervisor(opts ...SupervisorOption) *Supervisor {
	s := &Supervisor{entries: make(map[string]*supervised)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func key(name string) string {
	return transport.ToIRCLower(name)
}

// Add supervises inst under its name
func (s *Supervisor) Add(inst *Instance) error {
	if inst == nil {
		return fmt.Errorf("%w: nil instance", ErrInvalidInstance)
	}
	k := key(inst.Name())

	s.mu.Lock()
	if _, exists := s.entries[k]; exists {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrInstanceExists, inst.Name())
	}
	s.entries[k] = &supervised{
		inst:        inst,
		unsubscribe: inst.Transport().OnDisconnect(s.handleDisconnect),
	}
	s.order = append(s.order, k)
	s.mu.Unlock()

	s.observe()
	return nil
}

// Remove stops supervising the named instance and detaches its dispatcher.
// Pending termination marks for the name are withdrawn.
func (s *Supervisor) Remove(name string) error {
	s.mu.Lock()
	k := key(name)
	entry, ok := s.entries[k]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrInstanceNotFound, name)
	}
	s.removeLocked(k, entry)
	s.mu.Unlock()

	entry.inst.Close()
	s.observe()
	return nil
}

// RemoveInstance is Remove by identity
func (s *Supervisor) RemoveInstance(inst *Instance) error {
	s.mu.Lock()
	for k, entry := range s.entries {
		if entry.inst == inst {
			s.removeLocked(k, entry)
			s.mu.Unlock()
			inst.Close()
			s.observe()
			return nil
		}
	}
	s.mu.Unlock()
	return fmt.Errorf("%w: instance not supervised", ErrInstanceNotFound)
}

func (s *Supervisor) removeLocked(k string, entry *supervised) {
	// unsubscribe first so no stale callback fires after removal
	entry.unsubscribe()
	delete(s.entries, k)
	for i, o := range s.order {
		if o == k {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	kept := s.expecting[:0]
	for _, e := range s.expecting {
		if e != k {
			kept = append(kept, e)
		}
	}
	s.expecting = kept
}

// Get returns the named instance
func (s *Supervisor) Get(name string) (*Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInstanceNotFound, name)
	}
	return entry.inst, nil
}

// Contains reports whether the name is supervised
func (s *Supervisor) Contains(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[key(name)]
	return ok
}

// List returns all instances in the order they were added
func (s *Supervisor) List() []*Instance {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Instance, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.entries[k].inst)
	}
	return out
}

// ListDead returns instances that are disconnected and torn down
func (s *Supervisor) ListDead() []*Instance {
	return s.filter(StateDead)
}

// ListUnused returns instances that are disconnected but were never torn down
func (s *Supervisor) ListUnused() []*Instance {
	return s.filter(StateUnused)
}

// ListConnected returns instances whose transport is connected
func (s *Supervisor) ListConnected() []*Instance {
	return s.filter(StateConnected)
}

func (s *Supervisor) filter(state State) []*Instance {
	var out []*Instance
	for _, inst := range s.List() {
		if inst.State() == state {
			out = append(out, inst)
		}
	}
	return out
}

// Snapshot partitions every instance by state, classifying each one once
func (s *Supervisor) Snapshot() Snapshot {
	snap := Snapshot{Connected: []string{}, Unused: []string{}, Dead: []string{}}
	for _, inst := range s.List() {
		switch inst.State() {
		case StateConnected:
			snap.Connected = append(snap.Connected, inst.Name())
		case StateDead:
			snap.Dead = append(snap.Dead, inst.Name())
		default:
			snap.Unused = append(snap.Unused, inst.Name())
		}
	}
	s.metrics.ObserveSnapshot(snap)
	return snap
}

// observe refreshes the instance gauges. Callers must not hold s.mu.
func (s *Supervisor) observe() {
	if s.metrics != nil {
		s.Snapshot()
	}
}

// ExpectTermination marks the name so that its next disconnect is swallowed
func (s *Supervisor) ExpectTermination(name string) {
	s.mu.Lock()
	s.expecting = append(s.expecting, key(name))
	s.mu.Unlock()
}

// Expecting returns the pending termination marks
func (s *Supervisor) Expecting() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.expecting...)
}

func (s *Supervisor) handleDisconnect(t transport.Transport) {
	// a transport that reconnected on its own is not dead
	if t.IsConnected() {
		return
	}

	s.mu.Lock()
	var (
		k     string
		entry *supervised
	)
	for ek, e := range s.entries {
		if e.inst.Transport() == t {
			k, entry = ek, e
			break
		}
	}
	if entry == nil || entry.dying {
		s.mu.Unlock()
		return
	}

	name := entry.inst.Name()
	for i, e := range s.expecting {
		if e == k {
			s.expecting = append(s.expecting[:i], s.expecting[i+1:]...)
			s.mu.Unlock()
			logger.ForInstance(name).Info("instance-stopped")
			return
		}
	}
	entry.dying = true
	s.mu.Unlock()

	s.metrics.RecordDeath(name)
	logger.ForInstance(name).WithField("run_id", entry.inst.RunID()).Error("instance-died")
	if s.onDeath != nil {
		s.onDeath(name, entry.inst)
	}

	shutdownQuietly(name, t)

	s.mu.Lock()
	if current, ok := s.entries[k]; ok && current == entry {
		s.removeLocked(k, entry)
	}
	s.mu.Unlock()
	entry.inst.Close()
	s.observe()

	logger.ForInstance(name).Info("instance-cleaned-up")
	if s.onCleanup != nil {
		s.onCleanup(name, entry.inst)
	}
}

// shutdownQuietly disconnects t, swallowing errors and panics
func shutdownQuietly(name string, t transport.Transport) {
	defer func() {
		if r := recover(); r != nil {
			logger.WithFields(logrus.Fields{
				"instance": name,
				"panic":    r,
			}).Warn("disconnect-panic-recovered")
		}
	}()
	if err := t.Disconnect(); err != nil {
		logger.WithFields(logrus.Fields{
			"instance": name,
			"error":    err,
		}).Debug("disconnect-failed")
	}
}
