package bot

import (
	"context"
	"sync"
	"time"
)

// Session tracks a chat's in-progress selection between quantity choice and
// link submission. Each chat owns at most one session.
type Session struct {
	ServiceID   string
	ServiceName string
	Quantity    int
	Price       int64
	UserID      int64
	Username    string
}

type sessionEntry struct {
	session   Session
	expiresAt time.Time
}

// SessionStore is an in-memory chat-session map with TTL eviction, so
// abandoned selections do not accumulate for the life of the process.
type SessionStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[int64]sessionEntry
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		ttl:     ttl,
		entries: make(map[int64]sessionEntry),
	}
}

func (s *SessionStore) Put(chatID int64, session Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[chatID] = sessionEntry{
		session:   session,
		expiresAt: time.Now().Add(s.ttl),
	}
}

// Get returns the chat's session if present and not expired. Expired
// entries are evicted on access.
func (s *SessionStore) Get(chatID int64) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[chatID]
	if !ok {
		return Session{}, false
	}
	if time.Now().After(entry.expiresAt) {
		delete(s.entries, chatID)
		return Session{}, false
	}
	return entry.session, true
}

// Take removes and returns the chat's session in one step. Concurrent
// callers racing over the same chat see the session exactly once; losers
// get ok=false.
func (s *SessionStore) Take(chatID int64) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[chatID]
	if !ok {
		return Session{}, false
	}
	delete(s.entries, chatID)
	if time.Now().After(entry.expiresAt) {
		return Session{}, false
	}
	return entry.session, true
}

func (s *SessionStore) Delete(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, chatID)
}

func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Sweep evicts expired entries and returns how many were removed.
func (s *SessionStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for chatID, entry := range s.entries {
		if now.After(entry.expiresAt) {
			delete(s.entries, chatID)
			removed++
		}
	}
	return removed
}

// Run sweeps on a fixed interval until ctx is cancelled.
func (s *SessionStore) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.Sweep(now)
		}
	}
}
