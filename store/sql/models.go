package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type personRecord struct {
	bun.BaseModel `bun:"table:person,alias:p"`

	ID                     string    `bun:"id,pk"`
	Username               string    `bun:"username,notnull"`
	Email                  string    `bun:"email,notnull"`
	FullName               string    `bun:"full_name"`
	PasswordHash           string    `bun:"password_hash,notnull"`
	EmailVerified          bool      `bun:"is_email_verified,notnull"`
	EmailVerificationToken string    `bun:"email_verification_token"`
	MobileCountryCode      string    `bun:"mobile_country_code"`
	MobileAreaCode         string    `bun:"mobile_area_code"`
	MobileNumber           string    `bun:"mobile_number"`
	CreatedAt              time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt              time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type clientRecord struct {
	bun.BaseModel `bun:"table:client,alias:c"`

	ID             string    `bun:"id,pk"`
	SecretHash     string    `bun:"secret_hash,notnull"`
	Label          string    `bun:"label,notnull"`
	OwnerID        string    `bun:"owner_id"`
	IsConfidential bool      `bun:"is_confidential,notnull"`
	RedirectURLs   []string  `bun:"redirect_urls,type:jsonb,notnull"`
	CreatedAt      time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type tokenGrantRecord struct {
	bun.BaseModel `bun:"table:token_grant,alias:tg"`

	ID                  string     `bun:"id,pk"`
	PersonID            string     `bun:"person_id,nullzero"`
	ClientID            string     `bun:"client_id,notnull"`
	GrantType           string     `bun:"grant_type,notnull"`
	AccessToken         string     `bun:"access_token,notnull"`
	RefreshToken        string     `bun:"refresh_token,notnull"`
	Code                string     `bun:"code,nullzero"`
	CodeChallenge       string     `bun:"code_challenge,nullzero"`
	CodeChallengeMethod string     `bun:"code_challenge_method,nullzero"`
	IsCodeUsed          bool       `bun:"is_code_used,notnull"`
	Scopes              []string   `bun:"scopes,type:jsonb,notnull"`
	IsRevoked           bool       `bun:"is_revoked,notnull"`
	RevokedAt           *time.Time `bun:"revoked_at,nullzero"`
	CreatedAt           time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt           time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type roleRecord struct {
	bun.BaseModel `bun:"table:role,alias:r"`

	ID               string    `bun:"id,pk"`
	Name             string    `bun:"name,notnull"`
	Label            string    `bun:"label"`
	IsAdministrative bool      `bun:"is_administrative,notnull"`
	CreatedAt        time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt        time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type permissionRecord struct {
	bun.BaseModel `bun:"table:permission,alias:pm"`

	ID        string    `bun:"id,pk"`
	Name      string    `bun:"name,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type rolePermissionRecord struct {
	bun.BaseModel `bun:"table:role_permission,alias:rp"`

	RoleID       string    `bun:"role_id,pk"`
	PermissionID string    `bun:"permission_id,pk"`
	CreatedAt    time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type personRoleRecord struct {
	bun.BaseModel `bun:"table:person_role,alias:pr"`

	PersonID  string    `bun:"person_id,pk"`
	RoleID    string    `bun:"role_id,pk"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type clientRoleRecord struct {
	bun.BaseModel `bun:"table:client_role,alias:cr"`

	ClientID  string    `bun:"client_id,pk"`
	RoleID    string    `bun:"role_id,pk"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type scopeRecord struct {
	bun.BaseModel `bun:"table:scope,alias:s"`

	ID        string    `bun:"id,pk"`
	Name      string    `bun:"name,notnull"`
	Label     string    `bun:"label"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type scopePermissionRecord struct {
	bun.BaseModel `bun:"table:scope_permission,alias:sp"`

	ScopeID      string    `bun:"scope_id,pk"`
	PermissionID string    `bun:"permission_id,pk"`
	CreatedAt    time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type passwordResetRequestRecord struct {
	bun.BaseModel `bun:"table:password_reset_request,alias:prr"`

	ID        string    `bun:"id,pk"`
	PersonID  string    `bun:"person_id,notnull"`
	Token     string    `bun:"token,notnull"`
	ExpiresAt time.Time `bun:"expires_at,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type passwordResetRecord struct {
	bun.BaseModel `bun:"table:password_reset,alias:pwr"`

	ID        string    `bun:"id,pk"`
	RequestID string    `bun:"request_id,notnull"`
	PersonID  string    `bun:"person_id,notnull"`
	RemoteIP  string    `bun:"remote_ip"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}
