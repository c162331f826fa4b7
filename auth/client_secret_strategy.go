package auth

import (
	"context"
	"strings"

	"github.com/goliatone/go-access/core"
)

// ClientSecretStrategy checks a shared secret against the stored hash
// through the credential verifier, which enforces the confidential
// client requirement and the hash comparison.
type ClientSecretStrategy struct {
	Verifier core.CredentialVerifier
}

func NewClientSecretStrategy(verifier core.CredentialVerifier) *ClientSecretStrategy {
	return &ClientSecretStrategy{Verifier: verifier}
}

func (s *ClientSecretStrategy) Method() string { return MethodClientSecret }

func (s *ClientSecretStrategy) Authenticate(ctx context.Context, req ClientAuthRequest) (core.Client, error) {
	if s.Verifier == nil {
		return core.Client{}, authBadInput("client secret strategy needs a credential verifier", nil)
	}
	clientID := strings.TrimSpace(req.ClientID)
	secret := strings.TrimSpace(req.ClientSecret)
	if clientID == "" || secret == "" {
		return core.Client{}, authUnauthorized("client credentials missing", nil)
	}
	client, err := s.Verifier.VerifyClient(ctx, clientID, secret)
	if err != nil {
		return core.Client{}, err
	}
	return client.Redacted(), nil
}

var _ ClientAuthenticator = (*ClientSecretStrategy)(nil)
