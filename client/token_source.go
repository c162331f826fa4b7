package client

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const defaultExpiryLeeway = 30 * time.Second

// TokenSource hands out a client_credentials access token, fetching a
// fresh one when the cached token nears expiry. Safe for concurrent
// use; at most one fetch runs at a time.
type TokenSource struct {
	Client *Client
	// Leeway is subtracted from the expiry when deciding whether the
	// cached token is still usable. Defaults to 30 seconds.
	Leeway time.Duration
	Now    func() time.Time

	mu      sync.Mutex
	current TokenSet
}

func NewTokenSource(c *Client) *TokenSource {
	return &TokenSource{Client: c}
}

// Token returns a valid access token set, reusing the cached one while
// it has time left on the clock.
func (s *TokenSource) Token(ctx context.Context) (TokenSet, error) {
	if s == nil || s.Client == nil {
		return TokenSet{}, fmt.Errorf("client: token source has no client")
	}
	leeway := s.Leeway
	if leeway <= 0 {
		leeway = defaultExpiryLeeway
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current.AccessToken != "" && !s.current.Expired(s.now(), leeway) {
		return s.current, nil
	}
	fresh, err := s.Client.ClientToken(ctx)
	if err != nil {
		return TokenSet{}, err
	}
	s.current = fresh
	return fresh, nil
}

// Invalidate drops the cached token so the next call fetches anew.
// Call it after the service rejects the token, for example when the
// grant was revoked out of band.
func (s *TokenSource) Invalidate() {
	s.mu.Lock()
	s.current = TokenSet{}
	s.mu.Unlock()
}

func (s *TokenSource) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}
