package pending

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a single-process Store for local runs and tests.  It does
// not survive restarts and is not shared between instances.
type MemoryStore struct {
	mu     sync.Mutex
	now    func() time.Time
	codes  map[string]memCode
	resets map[string]memReset
}

type memCode struct {
	req     CodeRequest
	claimed bool
	until   time.Time
}

type memReset struct {
	userID string
	until  time.Time
}

// NewMemoryStore returns an empty store using now as its clock; nil means
// time.Now.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{now: now, codes: map[string]memCode{}, resets: map[string]memReset{}}
}

func (s *MemoryStore) liveCode(email string) (memCode, bool) {
	c, ok := s.codes[email]
	if ok && !s.now().Before(c.until) {
		delete(s.codes, email)
		return memCode{}, false
	}
	return c, ok
}

func (s *MemoryStore) PutCode(_ context.Context, req CodeRequest, keep time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	req.Used = false
	s.codes[req.Email] = memCode{req: req, until: s.now().Add(keep)}
	return nil
}

func (s *MemoryStore) GetCode(_ context.Context, email string) (*CodeRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.liveCode(email)
	if !ok {
		return nil, ErrNotFound
	}
	req := c.req
	return &req, nil
}

func (s *MemoryStore) ClaimCode(_ context.Context, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.liveCode(email)
	if !ok {
		return false, ErrNotFound
	}
	if c.claimed {
		return false, nil
	}
	c.claimed = true
	s.codes[email] = c
	return true, nil
}

func (s *MemoryStore) ReleaseCode(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.liveCode(email); ok {
		c.claimed = false
		s.codes[email] = c
	}
	return nil
}

func (s *MemoryStore) MarkCodeUsed(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.liveCode(email); ok {
		c.req.Used = true
		s.codes[email] = c
	}
	return nil
}

func (s *MemoryStore) DeleteCode(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.codes, email)
	return nil
}

func (s *MemoryStore) PutReset(_ context.Context, token, userID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resets[token] = memReset{userID: userID, until: s.now().Add(ttl)}
	return nil
}

func (s *MemoryStore) TakeReset(_ context.Context, token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.resets[token]
	delete(s.resets, token)
	if !ok || !s.now().Before(r.until) {
		return "", ErrNotFound
	}
	return r.userID, nil
}
