package autosave

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type entry struct {
	s    *Session
	kick chan struct{}
}

// Manager tracks the live session of each edited widget, keyed by widget id.
// At most one session per id exists; opening a second one displaces the first.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*entry

	opts        []Option
	clock       Clock
	idleTimeout time.Duration
}

// NewManager applies opts to every session it opens. idleTimeout <= 0 disables reaping.
func NewManager(idleTimeout time.Duration, opts ...Option) *Manager {
	return &Manager{
		sessions:    make(map[string]*entry),
		opts:        opts,
		clock:       buildOptions(opts).clock,
		idleTimeout: idleTimeout,
	}
}

// Open starts a session for id. The returned channel is closed when the
// session is displaced, discarded or reaped, so the holder can drop its client.
func (m *Manager) Open(id, initial string, commit CommitFunc, extra ...Option) (*Session, <-chan struct{}) {
	all := make([]Option, 0, len(m.opts)+len(extra))
	all = append(all, m.opts...)
	all = append(all, extra...)
	s := New(initial, commit, all...)
	kick := make(chan struct{})

	m.mu.Lock()
	old := m.sessions[id]
	m.sessions[id] = &entry{s: s, kick: kick}
	m.mu.Unlock()

	if old != nil {
		old.s.Close()
		close(old.kick)
	}
	return s, kick
}

func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	return e.s, true
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Release closes s and forgets it if it still owns id. A displaced holder
// releasing late must not remove its successor.
func (m *Manager) Release(id string, s *Session) {
	m.mu.Lock()
	if e, ok := m.sessions[id]; ok && e.s == s {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	s.Close()
}

// Discard tears down the session of a removed widget, if any.
func (m *Manager) Discard(id string) bool {
	m.mu.Lock()
	e, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if !ok {
		return false
	}
	e.s.Close()
	close(e.kick)
	return true
}

// Reap discards sessions idle for longer than the idle timeout.
func (m *Manager) Reap() int {
	if m.idleTimeout <= 0 {
		return 0
	}
	now := m.clock.Now()

	m.mu.Lock()
	var stale []*entry
	for id, e := range m.sessions {
		if now.Sub(e.s.LastActive()) > m.idleTimeout {
			stale = append(stale, e)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, e := range stale {
		e.s.Close()
		close(e.kick)
	}
	return len(stale)
}

// Run reaps idle sessions every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if m.idleTimeout <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Reap(); n > 0 {
				slog.Info("reaped idle edit sessions", "count", n)
			}
		}
	}
}

func (m *Manager) CloseAll() {
	m.mu.Lock()
	all := m.sessions
	m.sessions = make(map[string]*entry)
	m.mu.Unlock()

	for _, e := range all {
		e.s.Close()
		close(e.kick)
	}
}
