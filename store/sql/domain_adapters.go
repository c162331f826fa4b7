package sqlstore

import (
	"time"

	"github.com/goliatone/go-access/core"
)

func newPersonRecord(in core.CreatePersonInput, now time.Time) *personRecord {
	return &personRecord{
		Username:               in.Username,
		Email:                  in.Email,
		FullName:               in.FullName,
		PasswordHash:           in.PasswordHash,
		EmailVerificationToken: in.EmailVerificationToken,
		MobileCountryCode:      in.MobileCountryCode,
		MobileAreaCode:         in.MobileAreaCode,
		MobileNumber:           in.MobileNumber,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
}

func (r *personRecord) toDomain() core.Person {
	if r == nil {
		return core.Person{}
	}
	return core.Person{
		ID:                     r.ID,
		Username:               r.Username,
		Email:                  r.Email,
		FullName:               r.FullName,
		PasswordHash:           r.PasswordHash,
		EmailVerified:          r.EmailVerified,
		EmailVerificationToken: r.EmailVerificationToken,
		MobileCountryCode:      r.MobileCountryCode,
		MobileAreaCode:         r.MobileAreaCode,
		MobileNumber:           r.MobileNumber,
		CreatedAt:              r.CreatedAt,
		UpdatedAt:              r.UpdatedAt,
	}
}

func newClientRecord(in core.CreateClientInput, now time.Time) *clientRecord {
	return &clientRecord{
		ID:             in.ID,
		SecretHash:     in.SecretHash,
		Label:          in.Label,
		OwnerID:        in.OwnerID,
		IsConfidential: in.IsConfidential,
		RedirectURLs:   append([]string(nil), in.RedirectURLs...),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func (r *clientRecord) toDomain() core.Client {
	if r == nil {
		return core.Client{}
	}
	return core.Client{
		ID:             r.ID,
		SecretHash:     r.SecretHash,
		Label:          r.Label,
		OwnerID:        r.OwnerID,
		IsConfidential: r.IsConfidential,
		RedirectURLs:   append([]string(nil), r.RedirectURLs...),
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func newTokenGrantRecord(in core.CreateGrantInput, now time.Time) *tokenGrantRecord {
	record := &tokenGrantRecord{
		PersonID:            in.PersonID,
		ClientID:            in.ClientID,
		GrantType:           string(in.GrantType),
		AccessToken:         in.AccessToken,
		RefreshToken:        in.RefreshToken,
		Code:                in.Code,
		CodeChallenge:       in.CodeChallenge,
		CodeChallengeMethod: string(in.CodeChallengeMethod),
		Scopes:              append([]string(nil), in.Scopes...),
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if in.CodeUsed != nil {
		record.IsCodeUsed = *in.CodeUsed
	}
	return record
}

func (r *tokenGrantRecord) toDomain() core.TokenGrant {
	if r == nil {
		return core.TokenGrant{}
	}
	grant := core.TokenGrant{
		ID:                  r.ID,
		PersonID:            r.PersonID,
		ClientID:            r.ClientID,
		GrantType:           core.GrantType(r.GrantType),
		AccessToken:         r.AccessToken,
		RefreshToken:        r.RefreshToken,
		Code:                r.Code,
		CodeChallenge:       r.CodeChallenge,
		CodeChallengeMethod: core.ChallengeMethod(r.CodeChallengeMethod),
		CodeUsed:            r.IsCodeUsed,
		Scopes:              append([]string(nil), r.Scopes...),
		Revoked:             r.IsRevoked,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}
	if r.RevokedAt != nil {
		revokedAt := *r.RevokedAt
		grant.RevokedAt = &revokedAt
	}
	return grant
}

func newPasswordResetRequestRecord(in core.CreatePasswordResetInput, now time.Time) *passwordResetRequestRecord {
	return &passwordResetRequestRecord{
		PersonID:  in.PersonID,
		Token:     in.Token,
		ExpiresAt: in.ExpiresAt.UTC(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (r *passwordResetRequestRecord) toDomain() core.PasswordResetRequest {
	if r == nil {
		return core.PasswordResetRequest{}
	}
	return core.PasswordResetRequest{
		ID:        r.ID,
		PersonID:  r.PersonID,
		Token:     r.Token,
		ExpiresAt: r.ExpiresAt,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}
