package apiclient

import "sync"

// Signal is a process-wide publish/subscribe notification without payload.
// The zero value is ready to use.
type Signal struct {
	mu   sync.Mutex
	next uint64
	subs map[uint64]func()
}

// NewSignal creates an empty Signal.
func NewSignal() *Signal {
	return &Signal{}
}

// Subscribe registers fn and returns a function that removes it. Calling the
// returned function more than once is harmless.
func (s *Signal) Subscribe(fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subs == nil {
		s.subs = make(map[uint64]func())
	}
	id := s.next
	s.next++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Publish calls every subscriber synchronously on the caller's goroutine.
// Subscribers may subscribe or unsubscribe from within the callback.
func (s *Signal) Publish() {
	s.mu.Lock()
	fns := make([]func(), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
