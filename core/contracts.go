package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type CreateGrantInput struct {
	PersonID            string
	ClientID            string
	GrantType           GrantType
	AccessToken         string
	RefreshToken        string
	Code                string
	CodeChallenge       string
	CodeChallengeMethod ChallengeMethod
	CodeUsed            *bool
	Scopes              []string
}

type RotateGrantInput struct {
	// PreviousRefreshToken is the compare half of the compare-and-swap:
	// rotation only lands if the stored row still carries this value
	// and has not been revoked.
	PreviousRefreshToken string
	AccessToken          string
	RefreshToken         string
}

type RevokeGrantInput struct {
	ID           string
	RefreshToken string
}

type GrantFilter struct {
	PersonID  string
	ClientID  string
	GrantType GrantType
	Revoked   *bool
	CreatedAt *time.Time
	Page      int
	PerPage   int
}

type GrantPage struct {
	Items   []TokenGrant
	Page    int
	PerPage int
	Total   int
	HasNext bool
}

type GrantStore interface {
	Create(ctx context.Context, in CreateGrantInput) (TokenGrant, error)
	Get(ctx context.Context, id string) (TokenGrant, error)
	GetByCode(ctx context.Context, code string) (TokenGrant, error)
	GetByRefreshToken(ctx context.Context, refreshToken string) (TokenGrant, error)
	// Rotate swaps both tokens in a single guarded update and reports
	// whether this caller won the swap. Exactly one concurrent caller
	// presenting the same previous refresh token may win.
	Rotate(ctx context.Context, in RotateGrantInput) (TokenGrant, bool, error)
	MarkCodeUsed(ctx context.Context, id string) error
	Revoke(ctx context.Context, in RevokeGrantInput) (int64, error)
	RevokeMany(ctx context.Context, ids []string) (int64, error)
	List(ctx context.Context, filter GrantFilter) (GrantPage, error)
	DeleteRevokedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type CreatePersonInput struct {
	Username               string
	Email                  string
	FullName               string
	PasswordHash           string
	EmailVerificationToken string
	MobileCountryCode      string
	MobileAreaCode         string
	MobileNumber           string
}

type PersonStore interface {
	Create(ctx context.Context, in CreatePersonInput) (Person, error)
	Get(ctx context.Context, id string) (Person, error)
	// FindByIdentifier matches either username or email.
	FindByIdentifier(ctx context.Context, identifier string) (Person, error)
	FindByEmail(ctx context.Context, email string) (Person, error)
	UpdatePassword(ctx context.Context, personID string, passwordHash string) error
	MarkEmailVerified(ctx context.Context, verificationToken string) (Person, error)
}

type CreateClientInput struct {
	ID             string
	SecretHash     string
	Label          string
	OwnerID        string
	IsConfidential bool
	RedirectURLs   []string
}

type ClientStore interface {
	Create(ctx context.Context, in CreateClientInput) (Client, error)
	Get(ctx context.Context, id string) (Client, error)
}

type RolePermissionLink struct {
	RoleName       string
	PermissionName string
}

type ScopePermissionLink struct {
	ScopeName      string
	PermissionName string
}

// AccessStore answers the role and scope questions behind every
// permission decision.
type AccessStore interface {
	PersonPermissions(ctx context.Context, personID string) (PermissionSet, error)
	ClientPermissions(ctx context.Context, clientID string) (PermissionSet, error)
	ScopePermissions(ctx context.Context, scopeNames []string) (PermissionSet, error)
	PersonIsAdministrative(ctx context.Context, personID string) (bool, error)
	ClientIsAdministrative(ctx context.Context, clientID string) (bool, error)

	AssignPersonRole(ctx context.Context, personID string, roleName string) error
	RemovePersonRole(ctx context.Context, personID string, roleName string) error
	AssignClientRole(ctx context.Context, clientID string, roleName string) error
	RemoveClientRole(ctx context.Context, clientID string, roleName string) error
	PutRolePermissions(ctx context.Context, create []RolePermissionLink, remove []RolePermissionLink) error
	PutScopePermissions(ctx context.Context, create []ScopePermissionLink, remove []ScopePermissionLink) error
}

type CreatePasswordResetInput struct {
	PersonID  string
	Token     string
	ExpiresAt time.Time
}

type CompletePasswordResetInput struct {
	RequestID    string
	PersonID     string
	PasswordHash string
	RemoteIP     string
}

type PasswordResetStore interface {
	CreateRequest(ctx context.Context, in CreatePasswordResetInput) (PasswordResetRequest, error)
	GetRequestByToken(ctx context.Context, token string) (PasswordResetRequest, error)
	// Completed reports whether the request has already been consumed.
	Completed(ctx context.Context, requestID string) (bool, error)
	// Complete applies the new password hash and records the completion
	// in one transaction.
	Complete(ctx context.Context, in CompletePasswordResetInput) error
}

// AccessClaims is the payload signed into every access token.
type AccessClaims struct {
	ID        string
	Nonce     string
	Subject   string
	Scope     string
	Audience  string
	ExpiresAt int64
	NotBefore int64
	IssuedAt  int64
}

func (c AccessClaims) Scopes() []string {
	return splitScopes(c.Scope)
}

type TokenCodec interface {
	Sign(claims AccessClaims) (string, error)
	Verify(token string) (AccessClaims, error)
	// DecodeExpired parses claims out of a token whose exp may already
	// be in the past. The signature is still checked.
	DecodeExpired(token string) (AccessClaims, error)
}

type CredentialVerifier interface {
	VerifyPerson(ctx context.Context, identifier string, password string) (Person, error)
	VerifyClient(ctx context.Context, clientID string, secret string) (Client, error)
}

type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Compare(hash string, plaintext string) error
}

type CreateCodeRequest struct {
	ClientID            string
	PersonID            string
	RedirectURL         string
	CodeChallenge       string
	CodeChallengeMethod ChallengeMethod
	Scopes              []string
}

type CreateCodeResult struct {
	Code        string
	RedirectURL string
}

type TokenRequest struct {
	GrantType    GrantType
	Username     string
	Password     string
	ClientID     string
	ClientSecret string
	Code         string
	CodeVerifier string
}

type TokenResult struct {
	GrantID      string
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresAt    int64
	Scopes       []string
}

type RevokeResult struct {
	Success bool
	Revoked int64
}

type WhoAmIRequest struct {
	Subject      string
	Scopes       []string
	RefreshToken string
}

type Identity struct {
	Kind   SubjectKind
	Person *Person
	Client *Client
}

type CheckAccessRequest struct {
	Subject SubjectRef
	Action  Action
	Entity  string
	// OwnerID identifies who owns the resource under inspection, when
	// the entity distinguishes own from any.
	OwnerID string
	Scopes  []string
}

type AccessDecision struct {
	Allowed    bool
	Permission string
	Admin      bool
	Reason     string
}

type RegisterPersonRequest struct {
	Username          string
	Email             string
	FullName          string
	Password          string
	MobileCountryCode string
	MobileAreaCode    string
	MobileNumber      string
	Roles             []string
}

type RegisterClientRequest struct {
	Label          string
	OwnerID        string
	IsConfidential bool
	RedirectURLs   []string
	Roles          []string
}

// RegisteredClient carries the one-time plaintext secret back to the
// caller. It is never stored.
type RegisteredClient struct {
	Client Client
	Secret string
}

type RequestPasswordResetInput struct {
	Email string
}

type CompletePasswordResetRequest struct {
	Token           string
	Password        string
	ConfirmPassword string
	RemoteIP        string
}

type StoreProvider interface {
	GrantStore() GrantStore
	PersonStore() PersonStore
	ClientStore() ClientStore
	AccessStore() AccessStore
	PasswordResetStore() PasswordResetStore
}

type RepositoryStoreFactory interface {
	BuildStores(persistenceClient any) (StoreProvider, error)
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type ReapMessage struct {
	Cutoff         time.Time
	IdempotencyKey string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *ReapMessage) error
}

type JobDelivery interface {
	Message() *ReapMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

type CommandDispatcher interface {
	Dispatch(ctx context.Context, msg any) error
}

type TokenService interface {
	CreateCode(ctx context.Context, req CreateCodeRequest) (CreateCodeResult, error)
	CreateToken(ctx context.Context, req TokenRequest) (TokenResult, error)
	RefreshToken(ctx context.Context, refreshToken string) (TokenResult, error)
	RevokeToken(ctx context.Context, in RevokeGrantInput) (RevokeResult, error)
	RevokeTokens(ctx context.Context, ids []string) (RevokeResult, error)
	WhoAmI(ctx context.Context, req WhoAmIRequest) (Identity, error)
}
