package security

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"strings"

	"github.com/goliatone/go-access/core"
)

// KeyProvider loads an RSA key pair from PEM material and hands it to
// the token codec exactly once. Key bytes are parsed at construction
// and never exposed to callers afterwards.
type KeyProvider struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
}

// NewKeyProvider resolves key material from config. Inline PEM takes
// precedence over a file path. The public key falls back to the one
// embedded in the private key when only that side is configured.
func NewKeyProvider(cfg core.KeysConfig) (*KeyProvider, error) {
	provider := &KeyProvider{}

	privatePEM, err := resolvePEM(cfg.PrivateKeyPEM, cfg.PrivateKeyFile)
	if err != nil {
		return nil, fmt.Errorf("security: private key: %w", err)
	}
	if len(privatePEM) > 0 {
		key, err := parsePrivateKey(privatePEM)
		if err != nil {
			return nil, err
		}
		provider.privateKey = key
	}

	publicPEM, err := resolvePEM(cfg.PublicKeyPEM, cfg.PublicKeyFile)
	if err != nil {
		return nil, fmt.Errorf("security: public key: %w", err)
	}
	if len(publicPEM) > 0 {
		key, err := parsePublicKey(publicPEM)
		if err != nil {
			return nil, err
		}
		provider.publicKey = key
	}

	if provider.publicKey == nil && provider.privateKey != nil {
		provider.publicKey = &provider.privateKey.PublicKey
	}
	if provider.privateKey == nil && provider.publicKey == nil {
		return nil, fmt.Errorf("security: key material is required")
	}
	return provider, nil
}

// CanSign reports whether this provider holds a private key. A
// verification only deployment carries just the public half.
func (p *KeyProvider) CanSign() bool {
	return p != nil && p.privateKey != nil
}

// TokenCodec builds the RS256 codec over the loaded key pair.
func (p *KeyProvider) TokenCodec() (core.TokenCodec, error) {
	if p == nil {
		return nil, fmt.Errorf("security: key provider is nil")
	}
	return core.NewRS256TokenCodec(p.privateKey, p.publicKey)
}

func resolvePEM(inline string, path string) ([]byte, error) {
	if trimmed := strings.TrimSpace(inline); trimmed != "" {
		return []byte(trimmed), nil
	}
	if trimmed := strings.TrimSpace(path); trimmed != "" {
		data, err := os.ReadFile(trimmed)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", trimmed, err)
		}
		return data, nil
	}
	return nil, nil
}

func parsePrivateKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("security: private key is not PEM encoded")
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("security: parse private key: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("security: private key is not RSA")
	}
	return key, nil
}

func parsePublicKey(pemBytes []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("security: public key is not PEM encoded")
	}
	if key, err := x509.ParsePKCS1PublicKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("security: parse public key: %w", err)
	}
	key, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("security: public key is not RSA")
	}
	return key, nil
}
