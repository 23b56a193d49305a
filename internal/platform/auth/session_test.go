package auth

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestStore() *SessionStore {
	// Construct without the sweep goroutine; sweep is exercised explicitly.
	return &SessionStore{
		sessions: make(map[string]Session),
		ttl:      SessionTTL,
		done:     make(chan struct{}),
		now:      time.Now,
	}
}

func TestSessionStore_CreateAndGet(t *testing.T) {
	s := newTestStore()
	userID := uuid.New()
	clinicID := uuid.New()

	token, err := s.Create(userID, "sub-123", clinicID)
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if len(token) != sessionTokenBytes*2 {
		t.Errorf("expected %d-char hex token, got %d chars", sessionTokenBytes*2, len(token))
	}

	sess, err := s.Get(token)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if sess.UserID != userID {
		t.Errorf("expected user %s, got %s", userID, sess.UserID)
	}
	if sess.ClinicID != clinicID {
		t.Errorf("expected clinic %s, got %s", clinicID, sess.ClinicID)
	}
	if sess.ExternalSubjectID != "sub-123" {
		t.Errorf("expected subject sub-123, got %s", sess.ExternalSubjectID)
	}
}

func TestSessionStore_TokensAreUnique(t *testing.T) {
	s := newTestStore()
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		token, err := s.Create(uuid.New(), "", uuid.New())
		if err != nil {
			t.Fatalf("Create() error: %v", err)
		}
		if seen[token] {
			t.Fatal("duplicate session token generated")
		}
		seen[token] = true
	}
}

func TestSessionStore_UnknownToken(t *testing.T) {
	s := newTestStore()
	_, err := s.Get("no-such-token")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestSessionStore_ExpiredIsPurgedThenNotFound(t *testing.T) {
	s := newTestStore()
	token, err := s.Create(uuid.New(), "", uuid.New())
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	// Jump past the TTL.
	s.now = func() time.Time { return time.Now().Add(SessionTTL + time.Minute) }

	_, err = s.Get(token)
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired on first access, got %v", err)
	}

	// The entry must have been purged: the same token now reads as absent.
	_, err = s.Get(token)
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound on second access, got %v", err)
	}
}

func TestSessionStore_ExpiryIsStrict(t *testing.T) {
	s := newTestStore()
	base := time.Now()
	s.now = func() time.Time { return base }

	token, err := s.Create(uuid.New(), "", uuid.New())
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	// Exactly at expiresAt the session is already gone.
	s.now = func() time.Time { return base.Add(SessionTTL) }
	if _, err := s.Get(token); !errors.Is(err, ErrSessionExpired) {
		t.Errorf("expected ErrSessionExpired at the expiry instant, got %v", err)
	}
}

func TestSessionStore_Sweep(t *testing.T) {
	s := newTestStore()
	base := time.Now()
	s.now = func() time.Time { return base }

	for i := 0; i < 5; i++ {
		if _, err := s.Create(uuid.New(), "", uuid.New()); err != nil {
			t.Fatalf("Create() error: %v", err)
		}
	}

	s.now = func() time.Time { return base.Add(SessionTTL + time.Minute) }
	live, err := s.Create(uuid.New(), "", uuid.New())
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	s.sweep()

	if s.Len() != 1 {
		t.Errorf("expected 1 session after sweep, got %d", s.Len())
	}
	if _, err := s.Get(live); err != nil {
		t.Errorf("live session should survive the sweep, got %v", err)
	}
}

func TestSessionStore_ConcurrentAccess(t *testing.T) {
	s := newTestStore()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token, err := s.Create(uuid.New(), "", uuid.New())
			if err != nil {
				t.Error(err)
				return
			}
			if _, err := s.Get(token); err != nil {
				t.Error(err)
			}
			s.Delete(token)
		}()
	}
	wg.Wait()

	if s.Len() != 0 {
		t.Errorf("expected empty store, got %d sessions", s.Len())
	}
}

func TestSessionStore_Close(t *testing.T) {
	s := NewSessionStore()
	s.Close()
	s.Close() // must be safe to call twice
}
