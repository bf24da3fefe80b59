package carrier

import (
	"sync"
	"time"
)

// The carrier issues bearer tokens valid for ten days; the session refreshes
// a day early so in-flight requests never ride an expiring token.
const (
	tokenLifetime      = 10 * 24 * time.Hour
	tokenRefreshMargin = 24 * time.Hour
)

// session holds the cached bearer token. It is owned by a Client instance
// rather than being process-global so tests can inject a fake clock and
// independent clients do not share credentials.
type session struct {
	mu        sync.Mutex
	token     string
	expiresAt time.Time
	now       func() time.Time
}

func newSession(now func() time.Time) *session {
	if now == nil {
		now = time.Now
	}
	return &session{now: now}
}

// get returns the cached token, or "" when absent or due for refresh.
func (s *session) get() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" || s.now().After(s.expiresAt.Add(-tokenRefreshMargin)) {
		return ""
	}
	return s.token
}

func (s *session) set(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.expiresAt = s.now().Add(tokenLifetime)
}

// clear discards the cached token, forcing re-authentication on the next
// call. Used after the carrier rejects a token as unauthorized.
func (s *session) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.expiresAt = time.Time{}
}
