package quickconnect

import (
	"sync"
	"time"
)

type pendingAuth struct {
	userID   string
	brandID  string
	verifier string
	expires  time.Time
}

// stateStore keeps in-flight authorizations keyed by the OAuth state value.
// Entries are single use.
type stateStore struct {
	mu      sync.Mutex
	pending map[string]pendingAuth
	ttl     time.Duration
	now     func() time.Time
}

func newStateStore(ttl time.Duration) *stateStore {
	return &stateStore{pending: make(map[string]pendingAuth), ttl: ttl, now: time.Now}
}

func (s *stateStore) put(state string, p pendingAuth) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, v := range s.pending {
		if now.After(v.expires) {
			delete(s.pending, k)
		}
	}
	p.expires = now.Add(s.ttl)
	s.pending[state] = p
}

// take removes and returns the entry for state. Expired entries are reported
// as missing.
func (s *stateStore) take(state string) (pendingAuth, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pending[state]
	if !ok {
		return pendingAuth{}, false
	}
	delete(s.pending, state)
	if s.now().After(p.expires) {
		return pendingAuth{}, false
	}
	return p, true
}
