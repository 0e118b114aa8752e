package session

import (
	"context"
	"sync"
	"time"

	"github.com/Veraticus/hotel-scout/internal/common"
)

type entry struct {
	session *Session
	media   chan struct{}
	mu      sync.Mutex
}

func newEntry(s *Session) *entry {
	return &entry{session: s, media: make(chan struct{}, 1)}
}

// mediaRelease returns an idempotent unlock for a held media lock.
func (e *entry) mediaRelease() func() {
	var once sync.Once
	return func() { once.Do(func() { <-e.media }) }
}

// Store is the arena of sessions keyed by user id. Each session has its own lock;
// callbacks run while holding it.
type Store struct {
	sessions map[int64]*entry
	now      func() time.Time
	mu       sync.Mutex
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[int64]*entry),
		now:      time.Now,
	}
}

func (s *Store) entry(userID, chatID int64, userName string, create bool) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[userID]
	if !ok && create {
		e = newEntry(New(userID, chatID, userName))
		s.sessions[userID] = e
	}
	return e
}

// Update runs fn on the user's session, creating it when missing.
func (s *Store) Update(userID, chatID int64, userName string, fn func(*Session) error) error {
	e := s.entry(userID, chatID, userName, true)
	e.mu.Lock()
	defer e.mu.Unlock()

	if chatID != 0 {
		e.session.ChatID = chatID
	}
	if userName != "" {
		e.session.UserName = userName
	}
	err := fn(e.session)
	e.session.UpdatedAt = s.now()
	return err
}

// UpdateIf runs fn only while the session still has the given id.
// It returns common.ErrStaleSession otherwise.
func (s *Store) UpdateIf(userID int64, sessionID string, fn func(*Session) error) error {
	e := s.entry(userID, 0, "", false)
	if e == nil {
		return common.ErrStaleSession
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session.ID != sessionID {
		return common.ErrStaleSession
	}
	err := fn(e.session)
	e.session.UpdatedAt = s.now()
	return err
}

// View runs fn on the user's session without creating it. It reports whether
// a session existed.
func (s *Store) View(userID int64, fn func(*Session)) bool {
	e := s.entry(userID, 0, "", false)
	if e == nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.session)
	return true
}

// TryLockMedia takes the user's media lock without waiting. The media lock is
// separate from the session lock: it stays held while a page is being shown, so
// a navigation that arrives meanwhile is refused instead of queued. Users
// without a session are never busy.
func (s *Store) TryLockMedia(userID int64) (release func(), ok bool) {
	e := s.entry(userID, 0, "", false)
	if e == nil {
		return func() {}, true
	}
	select {
	case e.media <- struct{}{}:
		return e.mediaRelease(), true
	default:
		return nil, false
	}
}

// LockMedia waits for the user's media lock until ctx ends.
func (s *Store) LockMedia(ctx context.Context, userID int64) (release func(), err error) {
	e := s.entry(userID, 0, "", false)
	if e == nil {
		return func() {}, nil
	}
	select {
	case e.media <- struct{}{}:
		return e.mediaRelease(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Delete forgets the user's session.
func (s *Store) Delete(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
}

// Len returns the number of sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Expire deletes sessions idle for longer than ttl and returns how many were removed.
func (s *Store) Expire(ttl time.Duration) int {
	cutoff := s.now().Add(-ttl)
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.sessions {
		if !e.mu.TryLock() {
			continue
		}
		if e.session.UpdatedAt.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
		e.mu.Unlock()
	}
	return removed
}
