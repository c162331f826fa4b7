package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultRequestTimeout = 30 * time.Second
	maxResponseBodyBytes  = 1 << 20 // 1 MiB
)

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config points the SDK at a token service. ClientSecret travels via
// HTTP basic auth unless ClientSecretInBody is set.
type Config struct {
	TokenURL           string
	ClientID           string
	ClientSecret       string
	ClientSecretInBody bool
	Scope              []string
	RequestTimeout     time.Duration
	HTTPClient         HTTPDoer
	Now                func() time.Time
}

// Client calls the token endpoint. Safe for concurrent use.
type Client struct {
	cfg        Config
	httpClient HTTPDoer
}

// TokenSet is one issued access/refresh token pair.
type TokenSet struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	Scope        []string
	ExpiresAt    *time.Time
}

// Expired reports whether the access token has passed its expiry,
// with leeway subtracted so callers refresh slightly early.
func (t TokenSet) Expired(now time.Time, leeway time.Duration) bool {
	if t.ExpiresAt == nil {
		return false
	}
	return !now.Before(t.ExpiresAt.Add(-leeway))
}

type tokenEndpointPayload struct {
	AccessToken      string
	TokenType        string
	RefreshToken     string
	Scope            string
	ExpiresIn        int64
	ErrorCode        string
	ErrorDescription string
}

func New(cfg Config) (*Client, error) {
	cfg.TokenURL = strings.TrimSpace(cfg.TokenURL)
	cfg.ClientID = strings.TrimSpace(cfg.ClientID)
	cfg.ClientSecret = strings.TrimSpace(cfg.ClientSecret)
	if cfg.TokenURL == "" {
		return nil, fmt.Errorf("client: token url is required")
	}
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("client: client id is required")
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{cfg: cfg, httpClient: httpClient}, nil
}

// PasswordToken exchanges a person's credentials for a token pair.
func (c *Client) PasswordToken(ctx context.Context, identifier string, password string) (TokenSet, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return TokenSet{}, fmt.Errorf("client: identifier and password are required")
	}
	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("username", identifier)
	form.Set("password", password)
	return c.requestToken(ctx, form)
}

// ClientToken obtains a token under the client's own identity.
func (c *Client) ClientToken(ctx context.Context) (TokenSet, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	return c.requestToken(ctx, form)
}

// CodeToken redeems an authorization code.
func (c *Client) CodeToken(ctx context.Context, code string, redirectURI string) (TokenSet, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return TokenSet{}, fmt.Errorf("client: authorization code is required")
	}
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	if redirectURI = strings.TrimSpace(redirectURI); redirectURI != "" {
		form.Set("redirect_uri", redirectURI)
	}
	return c.requestToken(ctx, form)
}

// Refresh rotates a token pair. The old refresh token stops working
// once the service accepts the request.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (TokenSet, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return TokenSet{}, fmt.Errorf("client: refresh token is required")
	}
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	return c.requestToken(ctx, form)
}

func (c *Client) requestToken(ctx context.Context, form url.Values) (TokenSet, error) {
	if c == nil || c.httpClient == nil {
		return TokenSet{}, fmt.Errorf("client: http client is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if len(c.cfg.Scope) > 0 && form.Get("scope") == "" {
		form.Set("scope", strings.Join(c.cfg.Scope, " "))
	}
	form.Set("client_id", c.cfg.ClientID)
	if c.cfg.ClientSecretInBody && c.cfg.ClientSecret != "" {
		form.Set("client_secret", c.cfg.ClientSecret)
	}

	requestCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(
		requestCtx,
		http.MethodPost,
		c.cfg.TokenURL,
		strings.NewReader(form.Encode()),
	)
	if err != nil {
		return TokenSet{}, err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")
	if !c.cfg.ClientSecretInBody && c.cfg.ClientSecret != "" {
		httpReq.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)
	}

	response, err := c.httpClient.Do(httpReq)
	if err != nil {
		return TokenSet{}, fmt.Errorf("client: token request failed: %w", err)
	}
	defer response.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(response.Body, maxResponseBodyBytes+1))
	if readErr != nil {
		return TokenSet{}, fmt.Errorf("client: read token response: %w", readErr)
	}
	if int64(len(body)) > maxResponseBodyBytes {
		return TokenSet{}, fmt.Errorf("client: token response exceeds %d bytes", maxResponseBodyBytes)
	}

	payload, parseErr := parseTokenPayload(body)
	if parseErr != nil {
		return TokenSet{}, fmt.Errorf("client: decode token response: %w", parseErr)
	}
	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return TokenSet{}, &TokenEndpointError{
			StatusCode:  response.StatusCode,
			Code:        payload.ErrorCode,
			Description: payload.ErrorDescription,
		}
	}
	if payload.ErrorCode != "" {
		return TokenSet{}, &TokenEndpointError{
			StatusCode:  response.StatusCode,
			Code:        payload.ErrorCode,
			Description: payload.ErrorDescription,
		}
	}
	if strings.TrimSpace(payload.AccessToken) == "" {
		return TokenSet{}, fmt.Errorf("client: token response missing access token")
	}

	return TokenSet{
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
		TokenType:    normalizeTokenType(payload.TokenType),
		Scope:        parseScopeList(payload.Scope),
		ExpiresAt:    resolveExpiresAt(c.cfg.Now(), payload.ExpiresIn),
	}, nil
}

// TokenEndpointError is a non-2xx or error-payload reply from the
// token endpoint, carrying the standard error and error_description
// fields when the service supplied them.
type TokenEndpointError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *TokenEndpointError) Error() string {
	detail := strings.TrimSpace(e.Description)
	if detail == "" {
		detail = strings.TrimSpace(e.Code)
	}
	if detail == "" {
		detail = "unknown error"
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("client: token endpoint error (%d): %s", e.StatusCode, detail)
	}
	return "client: token endpoint error: " + detail
}

func parseTokenPayload(body []byte) (tokenEndpointPayload, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return tokenEndpointPayload{}, fmt.Errorf("empty payload")
	}
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return tokenEndpointPayload{}, err
	}
	return tokenEndpointPayload{
		AccessToken:      readAnyString(decoded["access_token"]),
		TokenType:        readAnyString(decoded["token_type"]),
		RefreshToken:     readAnyString(decoded["refresh_token"]),
		Scope:            readAnyString(decoded["scope"]),
		ExpiresIn:        readAnyInt64(decoded["expires_in"]),
		ErrorCode:        readAnyString(decoded["error"]),
		ErrorDescription: readAnyString(decoded["error_description"]),
	}, nil
}

func resolveExpiresAt(now time.Time, expiresIn int64) *time.Time {
	if expiresIn <= 0 {
		return nil
	}
	expiresAt := now.Add(time.Duration(expiresIn) * time.Second)
	return &expiresAt
}

func normalizeTokenType(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return "bearer"
	}
	return normalized
}

func parseScopeList(value string) []string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return strings.Fields(strings.ReplaceAll(trimmed, ",", " "))
}

func readAnyString(value any) string {
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case json.Number:
		return strings.TrimSpace(typed.String())
	default:
		if value == nil {
			return ""
		}
		return strings.TrimSpace(fmt.Sprint(value))
	}
}

func readAnyInt64(value any) int64 {
	switch typed := value.(type) {
	case int:
		return int64(typed)
	case int64:
		return typed
	case float64:
		return int64(typed)
	case json.Number:
		if parsed, err := typed.Int64(); err == nil {
			return parsed
		}
	case string:
		if parsed, err := strconv.ParseInt(strings.TrimSpace(typed), 10, 64); err == nil {
			return parsed
		}
	}
	return 0
}
