// Package session keeps register cart sessions between HTTP calls.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"retail-pos/cart"
	models "retail-pos/model"
)

// Store persists cart sessions by id. Load returns models.ErrNotFound for
// unknown or expired sessions.
type Store interface {
	Save(ctx context.Context, s *cart.Session) error
	Load(ctx context.Context, id string) (*cart.Session, error)
	Delete(ctx context.Context, id string) error
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryStore keeps sessions in process. Sessions are stored encoded so a
// loaded session never aliases the stored one.
type MemoryStore struct {
	ttl time.Duration
	now func() time.Time

	mu        sync.Mutex
	m         map[string]memoryEntry
	nextSweep time.Time
}

// sweepInterval spaces out the scans that drop abandoned sessions.
const sweepInterval = time.Minute

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, now: time.Now, m: make(map[string]memoryEntry)}
}

func (s *MemoryStore) Save(ctx context.Context, sess *cart.Session) error {
	b, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", sess.ID, err)
	}
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[sess.ID] = memoryEntry{data: b, expiresAt: now.Add(s.ttl)}
	if s.ttl > 0 && !now.Before(s.nextSweep) {
		s.sweepLocked(now)
		s.nextSweep = now.Add(sweepInterval)
	}
	return nil
}

// sweepLocked drops expired sessions that were never loaded again.
func (s *MemoryStore) sweepLocked(now time.Time) {
	for id, e := range s.m {
		if now.After(e.expiresAt) {
			delete(s.m, id)
		}
	}
}

func (s *MemoryStore) Load(ctx context.Context, id string) (*cart.Session, error) {
	s.mu.Lock()
	e, ok := s.m[id]
	if ok && s.ttl > 0 && s.now().After(e.expiresAt) {
		delete(s.m, id)
		ok = false
	}
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, models.ErrNotFound)
	}
	return decode(id, e.data)
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	delete(s.m, id)
	s.mu.Unlock()
	return nil
}

func decode(id string, b []byte) (*cart.Session, error) {
	var sess cart.Session
	if err := json.Unmarshal(b, &sess); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	if sess.ID == "" {
		return nil, fmt.Errorf("decode session %s: missing id", id)
	}
	return &sess, nil
}
