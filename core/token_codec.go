package core

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func unixTime(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

var ErrTokenInvalid = errors.New("core: invalid access token")

type accessTokenClaims struct {
	Nonce string `json:"nce"`
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// RS256TokenCodec signs and verifies access tokens with an RSA key
// pair. The private key never leaves the codec; callers hand in key
// material once at construction time.
type RS256TokenCodec struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
}

func NewRS256TokenCodec(privateKey *rsa.PrivateKey, publicKey *rsa.PublicKey) (*RS256TokenCodec, error) {
	if publicKey == nil && privateKey != nil {
		publicKey = &privateKey.PublicKey
	}
	if publicKey == nil {
		return nil, fmt.Errorf("core: token codec requires at least a public key")
	}
	return &RS256TokenCodec{privateKey: privateKey, publicKey: publicKey}, nil
}

func (c *RS256TokenCodec) Sign(claims AccessClaims) (string, error) {
	if c == nil || c.privateKey == nil {
		return "", fmt.Errorf("core: token codec has no signing key")
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, toJWTClaims(claims))
	signed, err := token.SignedString(c.privateKey)
	if err != nil {
		return "", fmt.Errorf("core: signing access token: %w", err)
	}
	return signed, nil
}

func (c *RS256TokenCodec) Verify(token string) (AccessClaims, error) {
	return c.parse(token, false)
}

func (c *RS256TokenCodec) DecodeExpired(token string) (AccessClaims, error) {
	return c.parse(token, true)
}

func (c *RS256TokenCodec) parse(token string, allowExpired bool) (AccessClaims, error) {
	if c == nil || c.publicKey == nil {
		return AccessClaims{}, fmt.Errorf("core: token codec has no verification key")
	}
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
	}
	if allowExpired {
		options = append(options, jwt.WithoutClaimsValidation())
	}
	parsed, err := jwt.ParseWithClaims(token, &accessTokenClaims{}, func(*jwt.Token) (any, error) {
		return c.publicKey, nil
	}, options...)
	if err != nil {
		return AccessClaims{}, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}
	claims, ok := parsed.Claims.(*accessTokenClaims)
	if !ok || !parsed.Valid {
		return AccessClaims{}, ErrTokenInvalid
	}
	return fromJWTClaims(claims), nil
}

func toJWTClaims(claims AccessClaims) accessTokenClaims {
	out := accessTokenClaims{
		Nonce: claims.Nonce,
		Scope: claims.Scope,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:      claims.ID,
			Subject: claims.Subject,
		},
	}
	if claims.Audience != "" {
		out.Audience = jwt.ClaimStrings{claims.Audience}
	}
	if claims.ExpiresAt != 0 {
		out.ExpiresAt = jwt.NewNumericDate(unixTime(claims.ExpiresAt))
	}
	if claims.NotBefore != 0 {
		out.NotBefore = jwt.NewNumericDate(unixTime(claims.NotBefore))
	}
	if claims.IssuedAt != 0 {
		out.IssuedAt = jwt.NewNumericDate(unixTime(claims.IssuedAt))
	}
	return out
}

func fromJWTClaims(claims *accessTokenClaims) AccessClaims {
	out := AccessClaims{
		ID:      claims.ID,
		Nonce:   claims.Nonce,
		Subject: claims.Subject,
		Scope:   claims.Scope,
	}
	if len(claims.Audience) > 0 {
		out.Audience = claims.Audience[0]
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Unix()
	}
	if claims.NotBefore != nil {
		out.NotBefore = claims.NotBefore.Unix()
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Unix()
	}
	return out
}

var _ TokenCodec = (*RS256TokenCodec)(nil)
