/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package imposter

import (
	"sync"
	"time"
)

// memEntry carries a tombstone so operations holding a stale pointer fail
// instead of committing into an entry the reaper already dropped.
type memEntry struct {
	mu   sync.Mutex
	s    Session
	dead bool
}

// MemoryStore is the shared-process session store used by the multiplayer
// server. Each session carries its own lock, so mutations on different
// sessions do not contend.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*memEntry
	done     chan struct{}
}

// NewMemoryStore builds a store. A positive idleTimeout starts a reaper
// that drops sessions untouched for that long.
func NewMemoryStore(idleTimeout time.Duration) *MemoryStore {
	m := &MemoryStore{
		sessions: make(map[string]*memEntry),
		done:     make(chan struct{}),
	}
	if idleTimeout > 0 {
		go m.reaperLoop(idleTimeout)
	}
	return m
}

func (m *MemoryStore) entry(code string) (*memEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[code]
	return e, ok
}

func (m *MemoryStore) Put(s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[s.Code]; exists {
		return errCodeInUse
	}
	m.sessions[s.Code] = &memEntry{s: s.Clone()}
	return nil
}

func (m *MemoryStore) Get(code string) (Session, error) {
	e, ok := m.entry(code)
	if !ok {
		return Session{}, ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dead {
		return Session{}, ErrNotFound
	}
	return e.s.Clone(), nil
}

func (m *MemoryStore) Mutate(code string, fn func(*Session) error) (Session, error) {
	e, ok := m.entry(code)
	if !ok {
		return Session{}, ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dead {
		return Session{}, ErrNotFound
	}

	next := e.s.Clone()
	if err := fn(&next); err != nil {
		return Session{}, err
	}
	next.LastActive = time.Now()
	e.s = next
	return next.Clone(), nil
}

func (m *MemoryStore) Delete(code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.sessions[code]; ok {
		e.mu.Lock()
		e.dead = true
		e.mu.Unlock()
		delete(m.sessions, code)
	}
	return nil
}

func (m *MemoryStore) Close() error {
	close(m.done)
	return nil
}

// reaperLoop periodically removes sessions idle longer than idleTimeout.
func (m *MemoryStore) reaperLoop(idleTimeout time.Duration) {
	ticker := time.NewTicker(idleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.reap(time.Now().Add(-idleTimeout))
		}
	}
}

// reap removes and tombstones every session idle since before cutoff.
func (m *MemoryStore) reap(cutoff time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for code, e := range m.sessions {
		e.mu.Lock()
		if e.s.LastActive.Before(cutoff) {
			e.dead = true
			delete(m.sessions, code)
		}
		e.mu.Unlock()
	}
}
