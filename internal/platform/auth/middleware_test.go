package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	testIssuer   = "https://idp.test/pool"
	testAudience = "test-client-id"
)

var testSigningKey = []byte("test-signing-key")

type mockUserResolver struct {
	bySubject map[string]*Identity
	byID      map[uuid.UUID]*Identity
	failWith  error
}

func (m *mockUserResolver) ResolveBySubject(_ context.Context, sub string) (*Identity, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	id, ok := m.bySubject[sub]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *id
	return &cp, nil
}

func (m *mockUserResolver) ResolveByID(_ context.Context, userID uuid.UUID) (*Identity, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	id, ok := m.byID[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *id
	return &cp, nil
}

func testVerifier(cfg ProviderConfig) *ProviderVerifier {
	return NewProviderVerifier(func() ProviderConfig { return cfg })
}

func signedProviderConfig() ProviderConfig {
	return ProviderConfig{
		Issuer:     testIssuer,
		Audience:   testAudience,
		SigningKey: testSigningKey,
	}
}

func mintIDToken(t *testing.T, mutate func(*ProviderClaims)) string {
	t.Helper()
	claims := &ProviderClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testIssuer,
			Audience:  jwt.ClaimStrings{testAudience},
			Subject:   "sub-abc",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Email:    "dr.smith@clinic.test",
		Name:     "Dr Smith",
		TokenUse: "id",
	}
	if mutate != nil {
		mutate(claims)
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSigningKey)
	if err != nil {
		t.Fatalf("signing test token: %v", err)
	}
	return token
}

// invoke runs the middleware chain against a request with the given
// Authorization header and returns the captured identity and the error.
func invoke(t *testing.T, authHeader string, strategies ...Verifier) (*Identity, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/patient", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var captured *Identity
	handler := Middleware(strategies...)(func(c echo.Context) error {
		captured = IdentityFromContext(c.Request().Context())
		return c.NoContent(http.StatusOK)
	})
	return captured, handler(c)
}

func expectHTTPError(t *testing.T, err error, code int) *echo.HTTPError {
	t.Helper()
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("expected *echo.HTTPError, got %v", err)
	}
	if he.Code != code {
		t.Fatalf("expected status %d, got %d (%v)", code, he.Code, he.Message)
	}
	return he
}

func TestMiddleware_MissingToken(t *testing.T) {
	for _, header := range []string{"", "Bearer", "Basic abc123", "just-a-token"} {
		_, err := invoke(t, header)
		expectHTTPError(t, err, http.StatusUnauthorized)
	}
}

func TestMiddleware_ProviderToken(t *testing.T) {
	userID := uuid.New()
	clinicID := uuid.New()
	users := &mockUserResolver{bySubject: map[string]*Identity{
		"sub-abc": {UserID: userID, ClinicID: clinicID},
	}}
	strategy := NewProviderStrategy(testVerifier(signedProviderConfig()), users)

	id, err := invoke(t, "Bearer "+mintIDToken(t, nil), strategy)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if id == nil {
		t.Fatal("identity not set on request context")
	}
	if id.UserID != userID || id.ClinicID != clinicID {
		t.Errorf("wrong identity resolved: %+v", id)
	}
	if id.Email != "dr.smith@clinic.test" {
		t.Errorf("claims not overlaid onto identity: %+v", id)
	}
	if id.ExternalSubjectID != "sub-abc" {
		t.Errorf("expected subject sub-abc, got %q", id.ExternalSubjectID)
	}
}

func TestMiddleware_ProviderTokenUnknownSubject(t *testing.T) {
	users := &mockUserResolver{bySubject: map[string]*Identity{}}
	strategy := NewProviderStrategy(testVerifier(signedProviderConfig()), users)

	// Valid token, but nobody registered under the subject. The middleware
	// must not fall back to the session store.
	sessions := newTestStore()
	fallback := NewSessionStrategy(sessions, users)

	_, err := invoke(t, "Bearer "+mintIDToken(t, nil), strategy, fallback)
	expectHTTPError(t, err, http.StatusNotFound)
}

func TestMiddleware_ProviderResolveFailure(t *testing.T) {
	users := &mockUserResolver{failWith: errors.New("db down")}
	strategy := NewProviderStrategy(testVerifier(signedProviderConfig()), users)

	_, err := invoke(t, "Bearer "+mintIDToken(t, nil), strategy)
	expectHTTPError(t, err, http.StatusInternalServerError)
}

func TestMiddleware_SessionToken(t *testing.T) {
	userID := uuid.New()
	clinicID := uuid.New()
	users := &mockUserResolver{byID: map[uuid.UUID]*Identity{
		userID: {UserID: userID, ClinicID: clinicID, Email: "staff@clinic.test"},
	}}

	sessions := newTestStore()
	token, err := sessions.Create(userID, "sub-xyz", clinicID)
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	provider := NewProviderStrategy(testVerifier(signedProviderConfig()), users)
	fallback := NewSessionStrategy(sessions, users)

	id, err := invoke(t, "Bearer "+token, provider, fallback)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if id == nil || id.UserID != userID {
		t.Fatalf("wrong identity resolved: %+v", id)
	}
	if id.ExternalSubjectID != "sub-xyz" {
		t.Errorf("expected subject from session, got %q", id.ExternalSubjectID)
	}
}

func TestMiddleware_SessionExpired(t *testing.T) {
	userID := uuid.New()
	users := &mockUserResolver{byID: map[uuid.UUID]*Identity{
		userID: {UserID: userID},
	}}

	sessions := newTestStore()
	token, err := sessions.Create(userID, "", uuid.New())
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	sessions.now = func() time.Time { return time.Now().Add(SessionTTL + time.Minute) }

	provider := NewProviderStrategy(testVerifier(signedProviderConfig()), users)
	fallback := NewSessionStrategy(sessions, users)

	// First request after expiry reports the expiry and purges the session.
	_, err = invoke(t, "Bearer "+token, provider, fallback)
	he := expectHTTPError(t, err, http.StatusUnauthorized)
	if he.Message != "session expired" {
		t.Errorf("expected session-expired message, got %v", he.Message)
	}

	// The purged token is now indistinguishable from garbage.
	_, err = invoke(t, "Bearer "+token, provider, fallback)
	expectHTTPError(t, err, http.StatusForbidden)
}

func TestMiddleware_GarbageToken(t *testing.T) {
	users := &mockUserResolver{}
	provider := NewProviderStrategy(testVerifier(signedProviderConfig()), users)
	fallback := NewSessionStrategy(newTestStore(), users)

	_, err := invoke(t, "Bearer not-a-real-token", provider, fallback)
	expectHTTPError(t, err, http.StatusForbidden)
}

func TestMiddleware_ProviderNotConfigured(t *testing.T) {
	users := &mockUserResolver{}
	// No issuer, audience, or key: the provider strategy cannot work at all.
	provider := NewProviderStrategy(testVerifier(ProviderConfig{}), users)
	fallback := NewSessionStrategy(newTestStore(), users)

	// An unknown token with an unconfigured provider is a server problem,
	// not a credential problem.
	_, err := invoke(t, "Bearer some-token", provider, fallback)
	expectHTTPError(t, err, http.StatusInternalServerError)
}

func TestMiddleware_SessionWorksWithoutProviderConfig(t *testing.T) {
	userID := uuid.New()
	users := &mockUserResolver{byID: map[uuid.UUID]*Identity{
		userID: {UserID: userID},
	}}

	sessions := newTestStore()
	token, err := sessions.Create(userID, "", uuid.New())
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	provider := NewProviderStrategy(testVerifier(ProviderConfig{}), users)
	fallback := NewSessionStrategy(sessions, users)

	id, err := invoke(t, "Bearer "+token, provider, fallback)
	if err != nil {
		t.Fatalf("fallback login must survive a missing provider config, got %v", err)
	}
	if id == nil || id.UserID != userID {
		t.Fatalf("wrong identity resolved: %+v", id)
	}
}
