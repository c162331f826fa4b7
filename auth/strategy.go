package auth

import (
	"context"
	"crypto/x509"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-access/core"
	goerrors "github.com/goliatone/go-errors"
)

const (
	// MethodClientSecret authenticates with a shared secret.
	MethodClientSecret = "client_secret"
	// MethodPrivateKeyJWT authenticates with a signed JWT assertion.
	MethodPrivateKeyJWT = "private_key_jwt"
	// MethodTLSClientAuth authenticates with a mutual-TLS peer certificate.
	MethodTLSClientAuth = "tls_client_auth"

	// AssertionTypeJWTBearer is the only client_assertion_type accepted.
	AssertionTypeJWTBearer = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"
)

// ClientAuthRequest carries the credential material a token request
// presented. At most one method's fields should be populated; the
// registry resolves which strategy handles it.
type ClientAuthRequest struct {
	ClientID            string
	ClientSecret        string
	ClientAssertion     string
	ClientAssertionType string
	PeerCertificate     *x509.Certificate
}

// ClientAuthenticator verifies one client authentication method.
type ClientAuthenticator interface {
	Method() string
	Authenticate(ctx context.Context, req ClientAuthRequest) (core.Client, error)
}

// Registry holds the configured strategies and dispatches requests to
// the one matching the credential material presented.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]ClientAuthenticator
}

func NewRegistry(strategies ...ClientAuthenticator) (*Registry, error) {
	r := &Registry{strategies: map[string]ClientAuthenticator{}}
	for _, s := range strategies {
		if err := r.Register(s); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Register(strategy ClientAuthenticator) error {
	if strategy == nil {
		return authBadInput("client auth strategy is required", nil)
	}
	method := strings.ToLower(strings.TrimSpace(strategy.Method()))
	if method == "" {
		return authBadInput("client auth strategy needs a method name", nil)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.strategies[method]; exists {
		return authError(
			"client auth method already registered",
			goerrors.CategoryConflict,
			http.StatusConflict,
			core.AccessErrorConflict,
			map[string]any{"method": method},
		)
	}
	r.strategies[method] = strategy
	return nil
}

// Methods lists the registered method names in sorted order.
func (r *Registry) Methods() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.strategies))
	for method := range r.strategies {
		out = append(out, method)
	}
	sort.Strings(out)
	return out
}

// Authenticate resolves the method from the request shape and delegates
// to the matching strategy. A request that presents no recognizable
// credential material fails as unauthorized rather than bad input so
// the caller cannot probe for configured methods.
func (r *Registry) Authenticate(ctx context.Context, req ClientAuthRequest) (core.Client, error) {
	method, err := resolveMethod(req)
	if err != nil {
		return core.Client{}, err
	}
	r.mu.RLock()
	strategy, ok := r.strategies[method]
	r.mu.RUnlock()
	if !ok {
		return core.Client{}, authUnauthorized(
			"client auth method not enabled",
			map[string]any{"method": method},
		)
	}
	return strategy.Authenticate(ctx, req)
}

func resolveMethod(req ClientAuthRequest) (string, error) {
	switch {
	case strings.TrimSpace(req.ClientAssertion) != "":
		assertionType := strings.TrimSpace(req.ClientAssertionType)
		if assertionType != "" && assertionType != AssertionTypeJWTBearer {
			return "", authBadInput(
				"unsupported client assertion type",
				map[string]any{"client_assertion_type": assertionType},
			)
		}
		return MethodPrivateKeyJWT, nil
	case req.PeerCertificate != nil:
		return MethodTLSClientAuth, nil
	case strings.TrimSpace(req.ClientSecret) != "":
		return MethodClientSecret, nil
	default:
		return "", authUnauthorized("client credentials missing", nil)
	}
}

func authError(
	message string,
	category goerrors.Category,
	code int,
	textCode string,
	metadata map[string]any,
) error {
	err := goerrors.New(message, category).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func authBadInput(message string, metadata map[string]any) error {
	return authError(
		message,
		goerrors.CategoryBadInput,
		http.StatusBadRequest,
		core.AccessErrorBadInput,
		metadata,
	)
}

func authUnauthorized(message string, metadata map[string]any) error {
	return authError(
		message,
		goerrors.CategoryAuth,
		http.StatusUnauthorized,
		core.AccessErrorCredentialsInvalid,
		metadata,
	)
}
