package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNotConfigured means the identity-provider verifier is missing required
// settings (issuer or audience). It is detected lazily on first use so the
// server can still serve fallback-session logins, and the middleware maps it
// to a 500 rather than a credential error.
var ErrNotConfigured = errors.New("identity provider not configured: AUTH_ISSUER and AUTH_AUDIENCE must be set")

// ProviderConfig holds the identity-provider verification settings.
type ProviderConfig struct {
	Issuer   string
	Audience string
	// JWKSURL overrides the issuer-derived JWKS endpoint when set.
	JWKSURL string
	// SigningKey switches verification to HMAC; used in tests.
	SigningKey []byte
}

// ProviderClaims are the identity-token claims the application consumes.
type ProviderClaims struct {
	jwt.RegisteredClaims
	Email    string `json:"email"`
	Phone    string `json:"phone_number"`
	Name     string `json:"name"`
	TokenUse string `json:"token_use"`
}

// ProviderVerifier verifies bearer tokens as identity-provider ID tokens.
// Configuration is loaded once, on the first verification attempt, and cached
// for the process lifetime.
type ProviderVerifier struct {
	load func() ProviderConfig

	once    sync.Once
	cfg     ProviderConfig
	cfgErr  error
	keyFunc jwt.Keyfunc
}

// NewProviderVerifier creates a verifier whose configuration is supplied
// lazily by load.
func NewProviderVerifier(load func() ProviderConfig) *ProviderVerifier {
	return &ProviderVerifier{load: load}
}

func (v *ProviderVerifier) init() {
	v.cfg = v.load()

	if len(v.cfg.SigningKey) > 0 {
		key := v.cfg.SigningKey
		v.keyFunc = func(t *jwt.Token) (interface{}, error) { return key, nil }
		return
	}

	if v.cfg.Issuer == "" || v.cfg.Audience == "" {
		v.cfgErr = ErrNotConfigured
		return
	}

	jwksURL := v.cfg.JWKSURL
	if jwksURL == "" {
		// Convention used by Cognito and most OIDC providers.
		jwksURL = strings.TrimRight(v.cfg.Issuer, "/") + "/.well-known/jwks.json"
	}
	v.keyFunc = jwksKeyFunc(jwksURL)
}

// Verify parses and validates a token against the configured issuer and
// audience, returning its claims. A missing configuration is reported as
// ErrNotConfigured; any other failure means the credential is not a valid
// identity-provider token.
func (v *ProviderVerifier) Verify(ctx context.Context, token string) (*ProviderClaims, error) {
	v.once.Do(v.init)
	if v.cfgErr != nil {
		return nil, v.cfgErr
	}

	claims := &ProviderClaims{}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256", "HS256"}),
	}
	if v.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.cfg.Issuer))
	}
	if v.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(v.cfg.Audience))
	}

	parsed, err := jwt.ParseWithClaims(token, claims, v.keyFunc, opts...)
	if err != nil {
		return nil, fmt.Errorf("verify identity token: %w", err)
	}
	if !parsed.Valid {
		return nil, errors.New("identity token invalid")
	}

	// Access tokens from the same provider carry token_use=access; only ID
	// tokens hold the profile claims we need.
	if claims.TokenUse != "" && claims.TokenUse != "id" {
		return nil, fmt.Errorf("unexpected token_use %q", claims.TokenUse)
	}
	if claims.Subject == "" {
		return nil, errors.New("identity token has no subject")
	}

	return claims, nil
}

// -- JWKS --

// JWKSKey represents a single JSON Web Key from a JWKS endpoint.
type JWKSKey struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// JWKSResponse represents the response from a JWKS endpoint.
type JWKSResponse struct {
	Keys []JWKSKey `json:"keys"`
}

// JWKSCache caches JWKS keys fetched from a remote endpoint with a TTL.
type JWKSCache struct {
	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	jwksURL   string
	ttl       time.Duration
	fetchedAt time.Time
	client    *http.Client
}

// NewJWKSCache creates a new JWKS cache that fetches keys from the given URL.
func NewJWKSCache(jwksURL string, ttl time.Duration) *JWKSCache {
	return &JWKSCache{
		keys:    make(map[string]*rsa.PublicKey),
		jwksURL: jwksURL,
		ttl:     ttl,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// GetKey returns the RSA public key for the given kid. It fetches keys from
// the JWKS endpoint if the cache is expired or the kid is not found, which
// also handles provider key rotation.
func (c *JWKSCache) GetKey(kid string) (*rsa.PublicKey, error) {
	c.mu.RLock()
	key, ok := c.keys[kid]
	expired := time.Since(c.fetchedAt) > c.ttl
	c.mu.RUnlock()

	if ok && !expired {
		return key, nil
	}

	if err := c.fetch(); err != nil {
		return nil, fmt.Errorf("fetching JWKS: %w", err)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	key, ok = c.keys[kid]
	if !ok {
		return nil, fmt.Errorf("key with kid %q not found in JWKS", kid)
	}
	return key, nil
}

func (c *JWKSCache) fetch() error {
	resp, err := c.client.Get(c.jwksURL)
	if err != nil {
		return fmt.Errorf("GET %s: %w", c.jwksURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("JWKS endpoint returned status %d", resp.StatusCode)
	}

	var jwks JWKSResponse
	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return fmt.Errorf("decoding JWKS response: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(jwks.Keys))
	for _, k := range jwks.Keys {
		if k.Kty != "RSA" {
			continue
		}
		pubKey, err := parseRSAPublicKey(k)
		if err != nil {
			continue // skip malformed keys
		}
		keys[k.Kid] = pubKey
	}

	c.mu.Lock()
	c.keys = keys
	c.fetchedAt = time.Now()
	c.mu.Unlock()

	return nil
}

func parseRSAPublicKey(k JWKSKey) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("decoding modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("decoding exponent: %w", err)
	}

	n := new(big.Int).SetBytes(nBytes)
	e := new(big.Int).SetBytes(eBytes)

	return &rsa.PublicKey{
		N: n,
		E: int(e.Int64()),
	}, nil
}

const defaultJWKSCacheTTL = 5 * time.Minute

func jwksKeyFunc(jwksURL string) jwt.Keyfunc {
	cache := NewJWKSCache(jwksURL, defaultJWKSCacheTTL)
	return func(token *jwt.Token) (interface{}, error) {
		kid, ok := token.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, fmt.Errorf("token has no kid header")
		}
		return cache.GetKey(kid)
	}
}
