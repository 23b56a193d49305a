package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// ErrUserNotFound is returned by a UserResolver when no local user matches
// the verified credential.
var ErrUserNotFound = errors.New("user not found")

// UserResolver resolves a verified credential to the locally stored user,
// already shaped as an Identity. Implemented by the identity domain service.
type UserResolver interface {
	ResolveBySubject(ctx context.Context, externalSubjectID string) (*Identity, error)
	ResolveByID(ctx context.Context, userID uuid.UUID) (*Identity, error)
}

// Outcome is the tagged result of one credential-verification strategy.
// Exactly one of the three fields is meaningful: Identity (accepted),
// Terminal (definitive failure, stop trying), or Cause (this strategy cannot
// vouch for the token; try the next one).
type Outcome struct {
	Identity *Identity
	Terminal *echo.HTTPError
	Cause    error
}

// Verifier is one strategy in the ordered credential-verification chain.
type Verifier interface {
	Name() string
	Verify(ctx context.Context, token string) Outcome
}

// -- Identity-provider strategy --

type providerStrategy struct {
	provider *ProviderVerifier
	users    UserResolver
}

// NewProviderStrategy verifies tokens as identity-provider ID tokens and
// resolves the local user by external subject id.
func NewProviderStrategy(provider *ProviderVerifier, users UserResolver) Verifier {
	return &providerStrategy{provider: provider, users: users}
}

func (s *providerStrategy) Name() string { return "identity-provider" }

func (s *providerStrategy) Verify(ctx context.Context, token string) Outcome {
	claims, err := s.provider.Verify(ctx, token)
	if err != nil {
		// Not a provider token (or the provider is unconfigured); let the
		// next strategy try. The cause is kept so the chain can surface a
		// configuration error over a generic credential rejection.
		return Outcome{Cause: err}
	}

	id, err := s.users.ResolveBySubject(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// The token is genuine but no local account exists; falling
			// back to the session store would be wrong here.
			return Outcome{Terminal: echo.NewHTTPError(http.StatusNotFound, "user not found")}
		}
		return Outcome{Terminal: echo.NewHTTPError(http.StatusInternalServerError, "failed to resolve user")}
	}

	// Contact details come from the live token on this path.
	id.ExternalSubjectID = claims.Subject
	if claims.Email != "" {
		id.Email = claims.Email
	}
	if claims.Phone != "" {
		id.Phone = claims.Phone
	}
	if claims.Name != "" {
		id.Name = claims.Name
	}
	return Outcome{Identity: id}
}

// -- Fallback-session strategy --

type sessionStrategy struct {
	sessions *SessionStore
	users    UserResolver
}

// NewSessionStrategy looks the token up verbatim in the fallback session store.
func NewSessionStrategy(sessions *SessionStore, users UserResolver) Verifier {
	return &sessionStrategy{sessions: sessions, users: users}
}

func (s *sessionStrategy) Name() string { return "fallback-session" }

func (s *sessionStrategy) Verify(ctx context.Context, token string) Outcome {
	sess, err := s.sessions.Get(token)
	if err != nil {
		if errors.Is(err, ErrSessionExpired) {
			return Outcome{Terminal: echo.NewHTTPError(http.StatusUnauthorized, "session expired")}
		}
		return Outcome{Cause: err}
	}

	id, err := s.users.ResolveByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return Outcome{Terminal: echo.NewHTTPError(http.StatusNotFound, "user not found")}
		}
		return Outcome{Terminal: echo.NewHTTPError(http.StatusInternalServerError, "failed to resolve user")}
	}

	id.ExternalSubjectID = sess.ExternalSubjectID
	return Outcome{Identity: id}
}

// Middleware authenticates requests against an ordered list of verification
// strategies. The first accepted outcome wins; a terminal rejection stops the
// chain; if every strategy passes, the most specific cause is surfaced — a
// missing server configuration as a 500, anything else as a 403.
func Middleware(strategies ...Verifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "access token required")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return echo.NewHTTPError(http.StatusUnauthorized, "access token required")
			}
			token := parts[1]

			ctx := c.Request().Context()
			var causes []error
			for _, strategy := range strategies {
				outcome := strategy.Verify(ctx, token)
				switch {
				case outcome.Identity != nil:
					c.SetRequest(c.Request().WithContext(WithIdentity(ctx, outcome.Identity)))
					return next(c)
				case outcome.Terminal != nil:
					return outcome.Terminal
				default:
					causes = append(causes, outcome.Cause)
				}
			}

			for _, cause := range causes {
				if errors.Is(cause, ErrNotConfigured) {
					return echo.NewHTTPError(http.StatusInternalServerError, ErrNotConfigured.Error())
				}
			}
			return echo.NewHTTPError(http.StatusForbidden, "invalid or expired token")
		}
	}
}
