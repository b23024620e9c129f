package server

import "sync"

// StateSignal holds the latest listening flag and pushes changes to subscribers.
// New subscribers immediately receive the current value. Publishing never blocks:
// a subscriber that has not consumed the previous value only sees the newest one.
type StateSignal struct {
	mu     sync.Mutex
	value  bool
	nextID int
	subs   map[int]chan bool
}

// NewStateSignal returns a signal holding false.
func NewStateSignal() *StateSignal {
	return &StateSignal{subs: make(map[int]chan bool)}
}

// Value returns the current value.
func (s *StateSignal) Value() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Subscribe returns a channel primed with the current value and a cancel func
// that closes it. Cancel may be called more than once.
func (s *StateSignal) Subscribe() (<-chan bool, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	ch := make(chan bool, 1)
	ch <- s.value
	s.subs[id] = ch

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

// publish stores v and notifies every subscriber. Publishing an unchanged value
// is a no-op.
func (s *StateSignal) publish(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.value == v {
		return
	}
	s.value = v

	for _, ch := range s.subs {
		// Only publish sends, under mu, so after the drain there is room.
		select {
		case <-ch:
		default:
		}
		ch <- v
	}
}
