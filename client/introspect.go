package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-access/core"
)

var ErrTokenInactive = errors.New("client: token is not active")

// TokenInactiveError wraps the reason an introspected token came back
// inactive so callers can surface a uniform unauthorized reply.
type TokenInactiveError struct {
	Cause error
}

func (e *TokenInactiveError) Error() string {
	if e == nil || e.Cause == nil {
		return ErrTokenInactive.Error()
	}
	return ErrTokenInactive.Error() + ": " + e.Cause.Error()
}

func (e *TokenInactiveError) Unwrap() error {
	if e == nil {
		return nil
	}
	if e.Cause == nil {
		return ErrTokenInactive
	}
	return errors.Join(ErrTokenInactive, e.Cause)
}

func (e *TokenInactiveError) ToAccessError() *goerrors.Error {
	message := ErrTokenInactive.Error()
	if e != nil && e.Cause != nil {
		message = e.Error()
	}
	return goerrors.New(message, goerrors.CategoryAuth).
		WithCode(http.StatusUnauthorized).
		WithTextCode(core.AccessErrorUnauthorized)
}

func tokenInactive(cause error) error {
	return &TokenInactiveError{Cause: cause}
}

// Introspection is the decoded reply for one token, in the shape of
// RFC 7662 with the raw payload preserved for nonstandard fields.
type Introspection struct {
	Active    bool
	Subject   string
	ClientID  string
	Scope     []string
	TokenType string
	ExpiresAt *time.Time
	IssuedAt  *time.Time
	Raw       map[string]any
}

// Introspector asks the token service whether a token is live and who
// it belongs to. The introspection endpoint itself requires client
// credentials, sent via basic auth.
type Introspector struct {
	URL            string
	ClientID       string
	ClientSecret   string
	RequestTimeout time.Duration
	HTTPClient     HTTPDoer
}

func NewIntrospector(endpoint string, clientID string, clientSecret string) (*Introspector, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("client: introspection url is required")
	}
	if strings.TrimSpace(clientID) == "" {
		return nil, fmt.Errorf("client: introspection client id is required")
	}
	return &Introspector{
		URL:          endpoint,
		ClientID:     strings.TrimSpace(clientID),
		ClientSecret: strings.TrimSpace(clientSecret),
	}, nil
}

// Introspect reports the state of one token. An inactive token is an
// error, not a zero result, so a forgotten check cannot let a revoked
// token through.
func (i *Introspector) Introspect(ctx context.Context, token string) (Introspection, error) {
	if i == nil {
		return Introspection{}, fmt.Errorf("client: introspector is nil")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return Introspection{}, tokenInactive(fmt.Errorf("empty token"))
	}
	if ctx == nil {
		ctx = context.Background()
	}

	timeout := i.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	requestCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	form := url.Values{}
	form.Set("token", token)
	httpReq, err := http.NewRequestWithContext(
		requestCtx,
		http.MethodPost,
		i.URL,
		strings.NewReader(form.Encode()),
	)
	if err != nil {
		return Introspection{}, err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")
	if i.ClientSecret != "" {
		httpReq.SetBasicAuth(i.ClientID, i.ClientSecret)
	}

	httpClient := i.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	response, err := httpClient.Do(httpReq)
	if err != nil {
		return Introspection{}, fmt.Errorf("client: introspection request failed: %w", err)
	}
	defer response.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(response.Body, maxResponseBodyBytes+1))
	if readErr != nil {
		return Introspection{}, fmt.Errorf("client: read introspection response: %w", readErr)
	}
	if int64(len(body)) > maxResponseBodyBytes {
		return Introspection{}, fmt.Errorf("client: introspection response exceeds %d bytes", maxResponseBodyBytes)
	}
	if response.StatusCode == http.StatusUnauthorized || response.StatusCode == http.StatusForbidden {
		return Introspection{}, fmt.Errorf("client: introspection rejected the caller credentials (%d)", response.StatusCode)
	}
	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return Introspection{}, fmt.Errorf("client: introspection endpoint error (%d)", response.StatusCode)
	}

	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return Introspection{}, fmt.Errorf("client: decode introspection response: %w", err)
	}

	result := Introspection{
		Active:    readAnyBool(decoded["active"]),
		Subject:   readAnyString(decoded["sub"]),
		ClientID:  readAnyString(decoded["client_id"]),
		Scope:     parseScopeList(readAnyString(decoded["scope"])),
		TokenType: normalizeTokenType(readAnyString(decoded["token_type"])),
		ExpiresAt: readAnyUnixTime(decoded["exp"]),
		IssuedAt:  readAnyUnixTime(decoded["iat"]),
		Raw:       decoded,
	}
	if !result.Active {
		return Introspection{}, tokenInactive(nil)
	}
	return result, nil
}

func readAnyBool(value any) bool {
	switch typed := value.(type) {
	case bool:
		return typed
	case string:
		return strings.EqualFold(strings.TrimSpace(typed), "true")
	default:
		return false
	}
}

func readAnyUnixTime(value any) *time.Time {
	seconds := readAnyInt64(value)
	if seconds <= 0 {
		return nil
	}
	at := time.Unix(seconds, 0).UTC()
	return &at
}
