package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidGrantType       = errors.New("core: invalid grant type")
	ErrInvalidChallengeMethod = errors.New("core: invalid code challenge method")
	ErrInvalidSubjectKind     = errors.New("core: invalid subject kind")
	ErrGrantNotFound          = errors.New("core: token grant not found")
	ErrCodeUsed               = errors.New("core: authorization code already used")
	ErrPersonNotFound         = errors.New("core: person not found")
	ErrClientNotFound         = errors.New("core: client not found")
)

type GrantType string

const (
	GrantTypePassword          GrantType = "password"
	GrantTypeClientCredentials GrantType = "client_credentials"
	GrantTypeAuthorizationCode GrantType = "authorization_code"
)

func (g GrantType) Validate() error {
	switch g {
	case GrantTypePassword, GrantTypeClientCredentials, GrantTypeAuthorizationCode:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidGrantType, string(g))
}

type ChallengeMethod string

const (
	ChallengeMethodPlain ChallengeMethod = "plain"
	ChallengeMethodS256  ChallengeMethod = "S256"
)

func (m ChallengeMethod) Validate() error {
	switch m {
	case ChallengeMethodPlain, ChallengeMethodS256:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidChallengeMethod, string(m))
}

// SubjectKind distinguishes the two principals a token can represent.
type SubjectKind string

const (
	SubjectKindPerson SubjectKind = "person"
	SubjectKindClient SubjectKind = "client"
)

type SubjectRef struct {
	Kind SubjectKind
	ID   string
}

func (s SubjectRef) Validate() error {
	kind := SubjectKind(strings.TrimSpace(strings.ToLower(string(s.Kind))))
	if kind != SubjectKindPerson && kind != SubjectKindClient {
		return fmt.Errorf("%w: %q", ErrInvalidSubjectKind, s.Kind)
	}
	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidSubjectKind)
	}
	return nil
}

// ScopeName for the implicit scopes every first-party token carries.
const (
	ScopePerson = "person"
	ScopeClient = "client"
)

// TokenGrant is one issued access/refresh token pair and the lifecycle
// state that goes with it. The access token is a signed JWT, the refresh
// token and authorization code are opaque random values.
type TokenGrant struct {
	ID                  string
	PersonID            string
	ClientID            string
	GrantType           GrantType
	AccessToken         string
	RefreshToken        string
	Code                string
	CodeChallenge       string
	CodeChallengeMethod ChallengeMethod
	CodeUsed            bool
	Scopes              []string
	Revoked             bool
	RevokedAt           *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Refreshable reports whether the grant may still rotate its tokens.
// Revoked grants never refresh; authorization_code grants only refresh
// once the code was actually exchanged.
func (g TokenGrant) Refreshable() bool {
	if g.Revoked {
		return false
	}
	if g.GrantType == GrantTypeAuthorizationCode && !g.CodeUsed {
		return false
	}
	return true
}

func (g TokenGrant) Subject() SubjectRef {
	if g.PersonID != "" {
		return SubjectRef{Kind: SubjectKindPerson, ID: g.PersonID}
	}
	return SubjectRef{Kind: SubjectKindClient, ID: g.ClientID}
}

type Person struct {
	ID                     string
	Username               string
	Email                  string
	FullName               string
	PasswordHash           string
	EmailVerified          bool
	EmailVerificationToken string
	MobileCountryCode      string
	MobileAreaCode         string
	MobileNumber           string
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// Redacted returns a copy safe to hand back to callers: no password
// hash, no pending verification token.
func (p Person) Redacted() Person {
	p.PasswordHash = ""
	p.EmailVerificationToken = ""
	return p
}

type Client struct {
	ID             string
	SecretHash     string
	Label          string
	OwnerID        string
	IsConfidential bool
	RedirectURLs   []string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (c Client) Redacted() Client {
	c.SecretHash = ""
	return c
}

// AllowsRedirect reports whether url is one of the client's registered
// redirect targets. Comparison is exact, no prefix matching.
func (c Client) AllowsRedirect(url string) bool {
	url = strings.TrimSpace(url)
	if url == "" {
		return false
	}
	for _, registered := range c.RedirectURLs {
		if strings.TrimSpace(registered) == url {
			return true
		}
	}
	return false
}

type Role struct {
	Name             string
	Label            string
	IsAdministrative bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type Permission struct {
	Name      string
	Label     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Scope struct {
	Name        string
	Label       string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type PasswordResetRequest struct {
	ID        string
	PersonID  string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r PasswordResetRequest) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt)
}

// PermissionSet is the unit the resolver trades in: permission name to
// membership. Lookups on absent keys fall through to false.
type PermissionSet map[string]bool

func NewPermissionSet(names ...string) PermissionSet {
	set := make(PermissionSet, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		set[name] = true
	}
	return set
}

func (s PermissionSet) Has(name string) bool {
	return s[name]
}

func (s PermissionSet) Names() []string {
	names := make([]string, 0, len(s))
	for name, ok := range s {
		if ok {
			names = append(names, name)
		}
	}
	return names
}

// Intersect keeps only the permissions present in both sets.
func (s PermissionSet) Intersect(other PermissionSet) PermissionSet {
	out := PermissionSet{}
	for name, ok := range s {
		if ok && other[name] {
			out[name] = true
		}
	}
	return out
}

func normalizeScopes(scopes []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(scopes))
	for _, scope := range scopes {
		scope = strings.TrimSpace(scope)
		if scope == "" {
			continue
		}
		if _, ok := seen[scope]; ok {
			continue
		}
		seen[scope] = struct{}{}
		out = append(out, scope)
	}
	return out
}

func joinScopes(scopes []string) string {
	return strings.Join(normalizeScopes(scopes), " ")
}

func splitScopes(scope string) []string {
	return normalizeScopes(strings.Fields(scope))
}
