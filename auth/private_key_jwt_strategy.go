package auth

import (
	"context"
	"crypto/rsa"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/goliatone/go-access/core"
)

// KeyResolver looks up the public key a client registered for signing
// its authentication assertions.
type KeyResolver interface {
	PublicKeyFor(ctx context.Context, clientID string) (*rsa.PublicKey, error)
}

// KeyResolverFunc adapts a plain function to the KeyResolver interface.
type KeyResolverFunc func(ctx context.Context, clientID string) (*rsa.PublicKey, error)

func (f KeyResolverFunc) PublicKeyFor(ctx context.Context, clientID string) (*rsa.PublicKey, error) {
	return f(ctx, clientID)
}

const defaultAssertionLifetime = 5 * time.Minute

// PrivateKeyJWTStrategy verifies a signed JWT assertion in place of a
// shared secret. The assertion must be RS256 signed with the client's
// registered key, name the client as both issuer and subject, address
// this token endpoint as audience, expire within MaxLifetime and carry
// a jti that has not been seen before.
type PrivateKeyJWTStrategy struct {
	Clients  core.ClientStore
	Keys     KeyResolver
	Audience string
	// MaxLifetime bounds exp - now. Defaults to five minutes.
	MaxLifetime time.Duration
	Now         func() time.Time

	mu   sync.Mutex
	seen map[string]time.Time
}

func NewPrivateKeyJWTStrategy(clients core.ClientStore, keys KeyResolver, audience string) *PrivateKeyJWTStrategy {
	return &PrivateKeyJWTStrategy{
		Clients:  clients,
		Keys:     keys,
		Audience: audience,
	}
}

func (s *PrivateKeyJWTStrategy) Method() string { return MethodPrivateKeyJWT }

func (s *PrivateKeyJWTStrategy) Authenticate(ctx context.Context, req ClientAuthRequest) (core.Client, error) {
	if s.Clients == nil || s.Keys == nil {
		return core.Client{}, authBadInput("private key jwt strategy needs a client store and key resolver", nil)
	}
	assertion := strings.TrimSpace(req.ClientAssertion)
	if assertion == "" {
		return core.Client{}, authUnauthorized("client assertion missing", nil)
	}

	now := s.now()
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(assertion, claims, func(token *jwt.Token) (any, error) {
		inner, ok := token.Claims.(*jwt.RegisteredClaims)
		if !ok || strings.TrimSpace(inner.Issuer) == "" {
			return nil, authUnauthorized("client assertion has no issuer", nil)
		}
		return s.Keys.PublicKeyFor(ctx, strings.TrimSpace(inner.Issuer))
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return core.Client{}, authUnauthorized("client assertion invalid", nil)
	}
	if !parsed.Valid {
		return core.Client{}, authUnauthorized("client assertion invalid", nil)
	}

	clientID := strings.TrimSpace(claims.Issuer)
	if clientID == "" || strings.TrimSpace(claims.Subject) != clientID {
		return core.Client{}, authUnauthorized("client assertion issuer and subject must match", nil)
	}
	if requested := strings.TrimSpace(req.ClientID); requested != "" && requested != clientID {
		return core.Client{}, authUnauthorized("client assertion does not match the requested client", nil)
	}
	if !audienceMatches(claims.Audience, s.Audience) {
		return core.Client{}, authUnauthorized("client assertion addressed to a different endpoint", nil)
	}

	if claims.ExpiresAt == nil {
		return core.Client{}, authUnauthorized("client assertion has no expiry", nil)
	}
	maxLifetime := s.MaxLifetime
	if maxLifetime <= 0 {
		maxLifetime = defaultAssertionLifetime
	}
	if claims.ExpiresAt.Time.After(now.Add(maxLifetime)) {
		return core.Client{}, authUnauthorized("client assertion lives too long", nil)
	}

	jti := strings.TrimSpace(claims.ID)
	if jti == "" {
		return core.Client{}, authUnauthorized("client assertion has no jti", nil)
	}
	if s.replayed(clientID, jti, claims.ExpiresAt.Time, now) {
		return core.Client{}, authUnauthorized("client assertion already used", nil)
	}

	client, err := s.Clients.Get(ctx, clientID)
	if err != nil {
		return core.Client{}, authUnauthorized("client assertion invalid", nil)
	}
	if !client.IsConfidential {
		return core.Client{}, authUnauthorized("public clients cannot authenticate with an assertion", nil)
	}
	return client.Redacted(), nil
}

// replayed records the jti and reports whether it was already seen.
// Entries fall out once their assertion would have expired anyway.
func (s *PrivateKeyJWTStrategy) replayed(clientID, jti string, expiry, now time.Time) bool {
	key := clientID + "|" + jti
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen == nil {
		s.seen = map[string]time.Time{}
	}
	for k, exp := range s.seen {
		if exp.Before(now) {
			delete(s.seen, k)
		}
	}
	if _, dup := s.seen[key]; dup {
		return true
	}
	s.seen[key] = expiry
	return false
}

func (s *PrivateKeyJWTStrategy) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func audienceMatches(audience jwt.ClaimStrings, want string) bool {
	want = strings.TrimSpace(want)
	if want == "" {
		return true
	}
	for _, aud := range audience {
		if strings.TrimSpace(aud) == want {
			return true
		}
	}
	return false
}

var _ ClientAuthenticator = (*PrivateKeyJWTStrategy)(nil)
