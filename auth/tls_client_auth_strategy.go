package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"github.com/goliatone/go-access/core"
)

// FingerprintResolver looks up the certificate fingerprints a client
// has on file. Fingerprints are lowercase hex SHA-256 digests of the
// DER encoded certificate.
type FingerprintResolver interface {
	FingerprintsFor(ctx context.Context, clientID string) ([]string, error)
}

// FingerprintResolverFunc adapts a plain function to the resolver.
type FingerprintResolverFunc func(ctx context.Context, clientID string) ([]string, error)

func (f FingerprintResolverFunc) FingerprintsFor(ctx context.Context, clientID string) ([]string, error) {
	return f(ctx, clientID)
}

// TLSClientAuthStrategy authenticates a client by the certificate it
// presented during the TLS handshake. The transport terminates TLS and
// hands the verified peer certificate in; this strategy only pins the
// certificate to the client record.
type TLSClientAuthStrategy struct {
	Clients      core.ClientStore
	Fingerprints FingerprintResolver
}

func NewTLSClientAuthStrategy(clients core.ClientStore, fingerprints FingerprintResolver) *TLSClientAuthStrategy {
	return &TLSClientAuthStrategy{Clients: clients, Fingerprints: fingerprints}
}

func (s *TLSClientAuthStrategy) Method() string { return MethodTLSClientAuth }

func (s *TLSClientAuthStrategy) Authenticate(ctx context.Context, req ClientAuthRequest) (core.Client, error) {
	if s.Clients == nil || s.Fingerprints == nil {
		return core.Client{}, authBadInput("tls client auth strategy needs a client store and fingerprint resolver", nil)
	}
	clientID := strings.TrimSpace(req.ClientID)
	if clientID == "" || req.PeerCertificate == nil {
		return core.Client{}, authUnauthorized("client certificate missing", nil)
	}

	presented := CertificateFingerprint(req.PeerCertificate.Raw)
	registered, err := s.Fingerprints.FingerprintsFor(ctx, clientID)
	if err != nil {
		return core.Client{}, authUnauthorized("client certificate invalid", nil)
	}
	matched := false
	for _, fp := range registered {
		fp = strings.ToLower(strings.TrimSpace(fp))
		if len(fp) == len(presented) &&
			subtle.ConstantTimeCompare([]byte(fp), []byte(presented)) == 1 {
			matched = true
		}
	}
	if !matched {
		return core.Client{}, authUnauthorized("client certificate not registered", nil)
	}

	client, err := s.Clients.Get(ctx, clientID)
	if err != nil {
		return core.Client{}, authUnauthorized("client certificate invalid", nil)
	}
	if !client.IsConfidential {
		return core.Client{}, authUnauthorized("public clients cannot authenticate with a certificate", nil)
	}
	return client.Redacted(), nil
}

// CertificateFingerprint returns the lowercase hex SHA-256 digest of a
// DER encoded certificate.
func CertificateFingerprint(der []byte) string {
	sum := sha256.Sum256(der)
	return hex.EncodeToString(sum[:])
}

var _ ClientAuthenticator = (*TLSClientAuthStrategy)(nil)
