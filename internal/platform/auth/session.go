package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// SessionTTL is how long a fallback session stays valid after login.
	SessionTTL = 24 * time.Hour

	// sweepInterval bounds memory growth from abandoned sessions. The sweep
	// is best-effort only: correctness comes from the strict expiry check in
	// Get, which holds regardless of sweep timing.
	sweepInterval = time.Hour

	sessionTokenBytes = 32
)

var (
	// ErrSessionNotFound means the token is not (or no longer) in the store.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExpired means the token was found but its session has
	// expired; the entry has been purged and will never validate again.
	ErrSessionExpired = errors.New("session expired")
)

// Session is a locally issued, time-limited fallback credential. Sessions are
// volatile process-local state: a restart invalidates all of them, which is
// acceptable because they are a bootstrap mechanism, not the primary credential.
type Session struct {
	UserID            uuid.UUID
	ExternalSubjectID string
	ClinicID          uuid.UUID
	ExpiresAt         time.Time
}

// SessionStore maps opaque tokens to sessions. Safe for concurrent use. The
// store owns a background sweep goroutine; call Close to stop it.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
	ttl      time.Duration
	done     chan struct{}
	once     sync.Once

	now func() time.Time // test hook
}

// NewSessionStore creates a store with the standard TTL and starts the
// hourly expiry sweep.
func NewSessionStore() *SessionStore {
	s := &SessionStore{
		sessions: make(map[string]Session),
		ttl:      SessionTTL,
		done:     make(chan struct{}),
		now:      time.Now,
	}
	go s.sweepLoop()
	return s
}

// Create issues a fresh session and returns its token: 256 bits from
// crypto/rand, hex-encoded. Tokens are never derived from user input.
func (s *SessionStore) Create(userID uuid.UUID, externalSubjectID string, clinicID uuid.UUID) (string, error) {
	buf := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	token := hex.EncodeToString(buf)

	s.mu.Lock()
	s.sessions[token] = Session{
		UserID:            userID,
		ExternalSubjectID: externalSubjectID,
		ClinicID:          clinicID,
		ExpiresAt:         s.now().Add(s.ttl),
	}
	s.mu.Unlock()

	return token, nil
}

// Get looks up a token. The expiry check is strict: a session with
// expiresAt <= now is treated as gone. An expired entry is purged on access
// and reported as ErrSessionExpired exactly once; later lookups of the same
// token see ErrSessionNotFound.
func (s *SessionStore) Get(token string) (Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[token]
	s.mu.RUnlock()

	if !ok {
		return Session{}, ErrSessionNotFound
	}

	if !s.now().Before(sess.ExpiresAt) {
		s.Delete(token)
		return Session{}, ErrSessionExpired
	}

	return sess, nil
}

// Delete removes a session. Deleting an absent token is a no-op.
func (s *SessionStore) Delete(token string) {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
}

// Len returns the number of stored sessions, expired or not.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Close stops the background sweep. Safe to call multiple times.
func (s *SessionStore) Close() {
	s.once.Do(func() { close(s.done) })
}

func (s *SessionStore) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep removes every expired entry. A delete racing a concurrent Get can at
// worst cause a spurious rejection, never acceptance of an expired session.
func (s *SessionStore) sweep() {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for token, sess := range s.sessions {
		if !now.Before(sess.ExpiresAt) {
			delete(s.sessions, token)
		}
	}
}
