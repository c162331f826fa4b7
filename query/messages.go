package query

import (
	"strings"

	"github.com/goliatone/go-access/core"
)

const (
	TypeWhoAmI               = "access.query.identity.who_am_i"
	TypeCheckAccess          = "access.query.access.check"
	TypeListGrants           = "access.query.grants.list"
	TypeEffectivePermissions = "access.query.permissions.effective"
	TypeVerifyPasswordReset  = "access.query.password_reset.verify"
)

type WhoAmIMessage struct {
	Request core.WhoAmIRequest
}

func (WhoAmIMessage) Type() string { return TypeWhoAmI }

func (m WhoAmIMessage) Validate() error {
	if strings.TrimSpace(m.Request.Subject) == "" && strings.TrimSpace(m.Request.RefreshToken) == "" {
		return queryInvalidInputError("query: subject or refresh token is required")
	}
	return nil
}

type CheckAccessMessage struct {
	Request core.CheckAccessRequest
}

func (CheckAccessMessage) Type() string { return TypeCheckAccess }

func (m CheckAccessMessage) Validate() error {
	if err := m.Request.Subject.Validate(); err != nil {
		return queryWrapValidation(err, "query: invalid subject")
	}
	if strings.TrimSpace(string(m.Request.Action)) == "" {
		return queryInvalidInputError("query: action is required")
	}
	if strings.TrimSpace(m.Request.Entity) == "" {
		return queryInvalidInputError("query: entity is required")
	}
	return nil
}

type ListGrantsMessage struct {
	Filter core.GrantFilter
}

func (ListGrantsMessage) Type() string { return TypeListGrants }

func (m ListGrantsMessage) Validate() error {
	if m.Filter.Page < 0 {
		return queryInvalidInputError("query: page must be >= 0")
	}
	if m.Filter.PerPage < 0 {
		return queryInvalidInputError("query: per_page must be >= 0")
	}
	return nil
}

type EffectivePermissionsMessage struct {
	Subject core.SubjectRef
	Scopes  []string
}

func (EffectivePermissionsMessage) Type() string { return TypeEffectivePermissions }

func (m EffectivePermissionsMessage) Validate() error {
	if err := m.Subject.Validate(); err != nil {
		return queryWrapValidation(err, "query: invalid subject")
	}
	return nil
}

type VerifyPasswordResetMessage struct {
	Token string
}

func (VerifyPasswordResetMessage) Type() string { return TypeVerifyPasswordReset }

func (m VerifyPasswordResetMessage) Validate() error {
	if strings.TrimSpace(m.Token) == "" {
		return queryInvalidInputError("query: reset token is required")
	}
	return nil
}
