package transport

import "sync"

// Signal is a list of subscribers notified in subscription order.
//
// Emit calls handlers outside the lock, so a handler may subscribe or
// unsubscribe without deadlocking.
type Signal[T any] struct {
	mu       sync.Mutex
	nextID   uint64
	order    []uint64
	handlers map[uint64]func(T)
}

// Add subscribes handler and returns the function that removes it
func (s *Signal[T]) Add(handler func(T)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handlers == nil {
		s.handlers = make(map[uint64]func(T))
	}
	s.nextID++
	id := s.nextID
	s.handlers[id] = handler
	s.order = append(s.order, id)

	var once sync.Once
	return func() {
		once.Do(func() { s.remove(id) })
	}
}

func (s *Signal[T]) remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.handlers, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Emit calls every current subscriber with v
func (s *Signal[T]) Emit(v T) {
	s.mu.Lock()
	snapshot := make([]func(T), 0, len(s.order))
	for _, id := range s.order {
		snapshot = append(snapshot, s.handlers[id])
	}
	s.mu.Unlock()

	for _, handler := range snapshot {
		handler(v)
	}
}

// Len returns the number of current subscribers
func (s *Signal[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}
