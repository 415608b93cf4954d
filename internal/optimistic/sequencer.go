// Package optimistic provides local state for optimistic mutations: a keyed
// store that can roll back to the last confirmed value, and a sequencer that
// orders overlapping mutations of the same key.
package optimistic

import (
	"context"
	"sync"
)

// Sequencer hands out increasing sequence numbers per key. Starting a new
// mutation cancels the context of the one it supersedes.
type Sequencer struct {
	mu       sync.Mutex
	seq      map[string]uint64
	inflight map[string]*Ticket
}

// NewSequencer returns an empty Sequencer.
func NewSequencer() *Sequencer {
	return &Sequencer{
		seq:      make(map[string]uint64),
		inflight: make(map[string]*Ticket),
	}
}

// Ticket is one mutation's claim on a key.
type Ticket struct {
	key    string
	seq    uint64
	ctx    context.Context
	cancel context.CancelFunc
	s      *Sequencer
}

// Begin starts a mutation of key. The ticket's context derives from ctx and
// is cancelled when a later Begin on the same key supersedes it.
func (s *Sequencer) Begin(ctx context.Context, key string) *Ticket {
	tctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.seq[key]++
	t := &Ticket{key: key, seq: s.seq[key], ctx: tctx, cancel: cancel, s: s}
	prev := s.inflight[key]
	s.inflight[key] = t
	s.mu.Unlock()

	if prev != nil {
		prev.cancel()
	}
	return t
}

// Latest returns the newest sequence number issued for key.
func (s *Sequencer) Latest(key string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq[key]
}

// InFlight reports whether a mutation of key has begun and is not done.
func (s *Sequencer) InFlight(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.inflight[key]
	return ok
}

// Context is cancelled when the ticket is superseded or done.
func (t *Ticket) Context() context.Context { return t.ctx }

// Seq is the ticket's position in its key's sequence.
func (t *Ticket) Seq() uint64 { return t.seq }

// Key returns the key the ticket was issued for.
func (t *Ticket) Key() string { return t.key }

// Current reports whether no later mutation of the key has begun.
func (t *Ticket) Current() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	return t.s.seq[t.key] == t.seq
}

// Done releases the ticket. It is safe to call more than once.
func (t *Ticket) Done() {
	t.s.mu.Lock()
	if t.s.inflight[t.key] == t {
		delete(t.s.inflight, t.key)
	}
	t.s.mu.Unlock()
	t.cancel()
}
