package server

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
)

// SessionRegistry tracks the single current WebSocket session. A new connection
// displaces the current one as the send target; a disconnect only clears the
// slot when it comes from the session being tracked.
//
// It also keeps every live session, displaced ones included, so the server can
// close them all on stop.
type SessionRegistry struct {
	mu      sync.Mutex
	current *Session
	live    map[*Session]struct{}
	open    bool
	wg      sync.WaitGroup
	logger  *log.Logger
}

// NewSessionRegistry returns an empty registry that accepts sessions.
func NewSessionRegistry(logger *log.Logger) *SessionRegistry {
	if logger == nil {
		logger = log.Default()
	}
	return &SessionRegistry{
		live:   make(map[*Session]struct{}),
		open:   true,
		logger: logger,
	}
}

// Connected makes s the current session and returns the one it displaced, if any.
func (r *SessionRegistry) Connected(s *Session) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.current
	r.current = s
	if prev != nil && prev != s {
		r.logger.Info("session displaced", "session", prev.ID(), "by", s.ID())
		return prev
	}
	return nil
}

// Disconnected clears the current slot if s is the session being tracked and
// reports whether it did.
func (r *SessionRegistry) Disconnected(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current == nil || r.current != s {
		return false
	}
	r.current = nil
	return true
}

// Current returns the tracked session or nil.
func (r *SessionRegistry) Current() *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// SendText writes a text frame to the current session. With no session it does
// nothing and returns nil.
func (r *SessionRegistry) SendText(text string) error {
	if s := r.Current(); s != nil {
		return s.WriteText(text)
	}
	return nil
}

// SendBinary writes a binary frame to the current session. With no session it
// does nothing and returns nil.
func (r *SessionRegistry) SendBinary(data []byte) error {
	if s := r.Current(); s != nil {
		return s.WriteBinary(data)
	}
	return nil
}

// Count returns the number of live sessions, displaced ones included.
func (r *SessionRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}

// serve registers s, runs it until it ends and unregisters it. It is called on
// the upgrade request's goroutine.
func (r *SessionRegistry) serve(s *Session, cb WebSocketCallbacks) {
	r.mu.Lock()
	if !r.open {
		r.mu.Unlock()
		r.logger.Warn("rejecting session while stopping", "session", s.ID())
		_ = s.Close()
		return
	}
	r.live[s] = struct{}{}
	r.wg.Add(1)
	r.mu.Unlock()
	defer r.wg.Done()

	r.Connected(s)
	r.logger.Info("session connected", "session", s.ID(), "remote", s.RemoteAddr(), "live", r.Count())
	if cb.OnConnect != nil {
		cb.OnConnect(s)
	}

	s.run(cb)

	r.mu.Lock()
	delete(r.live, s)
	r.mu.Unlock()
	r.Disconnected(s)
	r.logger.Info("session disconnected", "session", s.ID(), "live", r.Count())
	if cb.OnDisconnect != nil {
		cb.OnDisconnect(s)
	}
}

// closeAll stops accepting sessions and forcibly closes every live one.
func (r *SessionRegistry) closeAll() int {
	r.mu.Lock()
	r.open = false
	sessions := make([]*Session, 0, len(r.live))
	for s := range r.live {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	for _, s := range sessions {
		if err := s.Close(); err != nil {
			r.logger.Error("closing session", "session", s.ID(), "err", err)
		}
	}
	return len(sessions)
}

// wait blocks until every session goroutine has returned or ctx is done.
// closeAll must have been called first.
func (r *SessionRegistry) wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// reopen lets sessions register again after a stop.
func (r *SessionRegistry) reopen() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.open = true
}
