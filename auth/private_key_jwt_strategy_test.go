package auth

import (
	"context"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-access/core"
)

func newAssertionFixture(t *testing.T) (*PrivateKeyJWTStrategy, *rsa.PrivateKey, time.Time) {
	t.Helper()
	now := time.Date(2026, 3, 7, 10, 0, 0, 0, time.UTC)
	key := testRSAKey(t)
	clients := stubClients{clients: map[string]core.Client{
		"client_console": {ID: "client_console", IsConfidential: true},
		"client_widget":  {ID: "client_widget", IsConfidential: false},
	}}
	strategy := NewPrivateKeyJWTStrategy(clients, KeyResolverFunc(
		func(context.Context, string) (*rsa.PublicKey, error) {
			return &key.PublicKey, nil
		}), "https://auth.example.com/token")
	strategy.Now = func() time.Time { return now }
	return strategy, key, now
}

func baseAssertionClaims(now time.Time, jti string) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Issuer:    "client_console",
		Subject:   "client_console",
		Audience:  jwt.ClaimStrings{"https://auth.example.com/token"},
		ExpiresAt: jwt.NewNumericDate(now.Add(2 * time.Minute)),
		IssuedAt:  jwt.NewNumericDate(now),
		ID:        jti,
	}
}

func TestPrivateKeyJWT_ReplayedAssertionRejected(t *testing.T) {
	strategy, key, now := newAssertionFixture(t)
	assertion := signAssertion(t, key, baseAssertionClaims(now, "jti_once"))

	if _, err := strategy.Authenticate(context.Background(), ClientAuthRequest{ClientAssertion: assertion}); err != nil {
		t.Fatalf("first use: %v", err)
	}
	_, err := strategy.Authenticate(context.Background(), ClientAuthRequest{ClientAssertion: assertion})
	assertCredentialRejection(t, err)
}

func TestPrivateKeyJWT_ReplayWindowExpiresWithAssertion(t *testing.T) {
	strategy, key, now := newAssertionFixture(t)
	assertion := signAssertion(t, key, baseAssertionClaims(now, "jti_stale"))
	if _, err := strategy.Authenticate(context.Background(), ClientAuthRequest{ClientAssertion: assertion}); err != nil {
		t.Fatalf("first use: %v", err)
	}

	// Once the first assertion has expired its jti may be pruned, but a
	// fresh assertion with a new jti must still pass.
	later := now.Add(10 * time.Minute)
	strategy.Now = func() time.Time { return later }
	fresh := signAssertion(t, key, baseAssertionClaims(later, "jti_fresh"))
	if _, err := strategy.Authenticate(context.Background(), ClientAuthRequest{ClientAssertion: fresh}); err != nil {
		t.Fatalf("fresh assertion: %v", err)
	}
}

func TestPrivateKeyJWT_RejectsMalformedClaims(t *testing.T) {
	strategy, key, now := newAssertionFixture(t)

	tests := []struct {
		name   string
		mutate func(*jwt.RegisteredClaims)
	}{
		{"subject differs from issuer", func(c *jwt.RegisteredClaims) { c.Subject = "someone_else" }},
		{"wrong audience", func(c *jwt.RegisteredClaims) {
			c.Audience = jwt.ClaimStrings{"https://other.example.com/token"}
		}},
		{"expired", func(c *jwt.RegisteredClaims) { c.ExpiresAt = jwt.NewNumericDate(now.Add(-time.Minute)) }},
		{"lives too long", func(c *jwt.RegisteredClaims) { c.ExpiresAt = jwt.NewNumericDate(now.Add(time.Hour)) }},
		{"missing jti", func(c *jwt.RegisteredClaims) { c.ID = "" }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			claims := baseAssertionClaims(now, "jti_"+tc.name)
			tc.mutate(&claims)
			assertion := signAssertion(t, key, claims)
			_, err := strategy.Authenticate(context.Background(), ClientAuthRequest{ClientAssertion: assertion})
			assertCredentialRejection(t, err)
		})
	}
}

func TestPrivateKeyJWT_MismatchedClientIDRejected(t *testing.T) {
	strategy, key, now := newAssertionFixture(t)
	assertion := signAssertion(t, key, baseAssertionClaims(now, "jti_mismatch"))
	_, err := strategy.Authenticate(context.Background(), ClientAuthRequest{
		ClientID:        "client_widget",
		ClientAssertion: assertion,
	})
	assertCredentialRejection(t, err)
}

func TestPrivateKeyJWT_PublicClientRejected(t *testing.T) {
	strategy, key, now := newAssertionFixture(t)
	claims := baseAssertionClaims(now, "jti_public")
	claims.Issuer = "client_widget"
	claims.Subject = "client_widget"
	assertion := signAssertion(t, key, claims)
	_, err := strategy.Authenticate(context.Background(), ClientAuthRequest{ClientAssertion: assertion})
	assertCredentialRejection(t, err)
}

func TestPrivateKeyJWT_UnknownKeyFailsClosed(t *testing.T) {
	strategy, key, now := newAssertionFixture(t)
	strategy.Keys = KeyResolverFunc(func(context.Context, string) (*rsa.PublicKey, error) {
		return nil, goerrors.New("no key on file", goerrors.CategoryNotFound)
	})
	assertion := signAssertion(t, key, baseAssertionClaims(now, "jti_nokey"))
	_, err := strategy.Authenticate(context.Background(), ClientAuthRequest{ClientAssertion: assertion})
	assertCredentialRejection(t, err)
}
