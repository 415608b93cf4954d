package optimistic

import "sync"

type entry[T any] struct {
	current   T
	confirmed T
}

// Store keeps a current and a last-confirmed value per key. Values are
// treated as immutable: callers replace them, never mutate them in place.
type Store[T any] struct {
	mu        sync.RWMutex
	entries   map[string]*entry[T]
	observers map[int]func(key string, v T)
	nextObs   int
}

// NewStore returns an empty Store.
func NewStore[T any]() *Store[T] {
	return &Store[T]{
		entries:   make(map[string]*entry[T]),
		observers: make(map[int]func(string, T)),
	}
}

// Seed sets both the current and confirmed value of key.
func (s *Store[T]) Seed(key string, v T) {
	s.mu.Lock()
	s.entries[key] = &entry[T]{current: v, confirmed: v}
	s.mu.Unlock()
	s.notify(key, v)
}

// Get returns the current value of key.
func (s *Store[T]) Get(key string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok {
		var zero T
		return zero, false
	}
	return e.current, true
}

// Confirmed returns the last value the server acknowledged for key.
func (s *Store[T]) Confirmed(key string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok {
		var zero T
		return zero, false
	}
	return e.confirmed, true
}

// Apply sets the current value of key without touching the confirmed one.
// An untracked key is seeded with v as its confirmed value too.
func (s *Store[T]) Apply(key string, v T) {
	s.Update(key, func(T, bool) T { return v })
}

// Update replaces the current value of key with fn(current, tracked) under
// the store lock and returns the new value.
func (s *Store[T]) Update(key string, fn func(cur T, ok bool) T) T {
	s.mu.Lock()
	e, ok := s.entries[key]
	var cur T
	if ok {
		cur = e.current
	}
	next := fn(cur, ok)
	if ok {
		e.current = next
	} else {
		s.entries[key] = &entry[T]{current: next, confirmed: next}
	}
	s.mu.Unlock()
	s.notify(key, next)
	return next
}

// Confirm records v as acknowledged and current.
func (s *Store[T]) Confirm(key string, v T) {
	s.Seed(key, v)
}

// SetConfirmed records v as acknowledged without changing the current value.
// An untracked key is seeded with v.
func (s *Store[T]) SetConfirmed(key string, v T) {
	s.mu.Lock()
	e, ok := s.entries[key]
	if ok {
		e.confirmed = v
	} else {
		s.entries[key] = &entry[T]{current: v, confirmed: v}
	}
	s.mu.Unlock()
	if !ok {
		s.notify(key, v)
	}
}

// Rollback restores the current value of key to the confirmed one.
func (s *Store[T]) Rollback(key string) (T, bool) {
	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok {
		s.mu.Unlock()
		var zero T
		return zero, false
	}
	e.current = e.confirmed
	v := e.current
	s.mu.Unlock()
	s.notify(key, v)
	return v, true
}

// Delete forgets key.
func (s *Store[T]) Delete(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// Keys returns every tracked key.
func (s *Store[T]) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	return keys
}

// Subscribe registers fn to run after every change of a current value.
// The returned func unregisters it.
func (s *Store[T]) Subscribe(fn func(key string, v T)) func() {
	s.mu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

func (s *Store[T]) notify(key string, v T) {
	s.mu.RLock()
	fns := make([]func(string, T), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()
	for _, fn := range fns {
		fn(key, v)
	}
}
