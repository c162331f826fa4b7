package core

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// newOpaqueToken returns a random hex string; refresh tokens and
// authorization codes are opaque values with no structure to verify.
func newOpaqueToken(byteLen int) (string, error) {
	buf := make([]byte, byteLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("core: generating opaque token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func newNonce() (string, error) {
	return newOpaqueToken(16)
}

// CreateCode begins the authorization_code flow: it validates the
// client and redirect target, mints the token pair up front, and
// parks it behind a single-use code. The tokens are only released by
// CreateToken once the code and PKCE verifier come back.
func (s *Service) CreateCode(ctx context.Context, req CreateCodeRequest) (result CreateCodeResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"client_id":  req.ClientID,
		"person_id":  req.PersonID,
		"grant_type": string(GrantTypeAuthorizationCode),
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "create_code", err, fields)
	}()

	if strings.TrimSpace(req.ClientID) == "" || strings.TrimSpace(req.PersonID) == "" {
		err = s.mapError(badRequestError("client_id and personId are required"))
		return CreateCodeResult{}, err
	}
	if strings.TrimSpace(req.CodeChallenge) == "" {
		err = s.mapError(badRequestError("code_challenge is required"))
		return CreateCodeResult{}, err
	}
	if validateErr := req.CodeChallengeMethod.Validate(); validateErr != nil {
		err = s.mapError(badRequestError(validateErr.Error()))
		return CreateCodeResult{}, err
	}

	client, err := s.clientStore.Get(ctx, req.ClientID)
	if err != nil {
		if isNotFoundError(err) {
			err = s.mapError(unprocessableError("Unknown client ID"))
			return CreateCodeResult{}, err
		}
		err = s.mapError(err)
		return CreateCodeResult{}, err
	}
	if !client.AllowsRedirect(req.RedirectURL) {
		err = s.mapError(unprocessableError("Unrecognized client redirect URL"))
		return CreateCodeResult{}, err
	}

	code, err := newOpaqueToken(32)
	if err != nil {
		err = s.mapError(err)
		return CreateCodeResult{}, err
	}
	scopes := append([]string{ScopePerson}, req.Scopes...)
	minted, err := s.mintTokenPair(mintRequest{
		Subject:  req.PersonID,
		Audience: req.ClientID,
		Scopes:   scopes,
	})
	if err != nil {
		err = s.mapError(err)
		return CreateCodeResult{}, err
	}

	codeUsed := false
	grant, err := s.grantStore.Create(ctx, CreateGrantInput{
		PersonID:            req.PersonID,
		ClientID:            req.ClientID,
		GrantType:           GrantTypeAuthorizationCode,
		AccessToken:         minted.AccessToken,
		RefreshToken:        minted.RefreshToken,
		Code:                code,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
		CodeUsed:            &codeUsed,
		Scopes:              normalizeScopes(scopes),
	})
	if err != nil {
		err = s.mapError(err)
		return CreateCodeResult{}, err
	}
	fields["grant_id"] = grant.ID

	redirect, err := appendCodeParam(req.RedirectURL, code)
	if err != nil {
		err = s.mapError(err)
		return CreateCodeResult{}, err
	}

	result = CreateCodeResult{Code: code, RedirectURL: redirect}
	return result, nil
}

func appendCodeParam(redirectURL string, code string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(redirectURL))
	if err != nil {
		return "", badRequestError("invalid redirect_url")
	}
	query := parsed.Query()
	query.Set("code", code)
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

// CreateToken dispatches on grant_type to the matching issuance flow.
func (s *Service) CreateToken(ctx context.Context, req TokenRequest) (TokenResult, error) {
	switch req.GrantType {
	case GrantTypeClientCredentials:
		return s.CreateClientToken(ctx, req)
	case GrantTypePassword:
		return s.CreatePasswordToken(ctx, req)
	case GrantTypeAuthorizationCode:
		return s.CreateCodeToken(ctx, req)
	}
	return TokenResult{}, s.mapError(badRequestError("Unrecognized grant type"))
}

func (s *Service) CreatePasswordToken(ctx context.Context, req TokenRequest) (result TokenResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"client_id":  req.ClientID,
		"grant_type": string(GrantTypePassword),
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "create_password_token", err, fields)
	}()

	client, err := s.clientStore.Get(ctx, req.ClientID)
	if err != nil {
		if isNotFoundError(err) {
			err = s.mapError(unprocessableError("Unrecognized client"))
			return TokenResult{}, err
		}
		err = s.mapError(err)
		return TokenResult{}, err
	}
	if !client.IsConfidential {
		err = s.mapError(unprocessableError("Invalid grant type"))
		return TokenResult{}, err
	}
	if _, err = s.credentialVerifier.VerifyClient(ctx, req.ClientID, req.ClientSecret); err != nil {
		err = s.mapError(err)
		return TokenResult{}, err
	}

	person, err := s.credentialVerifier.VerifyPerson(ctx, req.Username, req.Password)
	if err != nil {
		err = s.mapError(err)
		return TokenResult{}, err
	}
	fields["person_id"] = person.ID

	minted, err := s.mintTokenPair(mintRequest{
		Subject:  person.ID,
		Audience: person.ID,
		Scopes:   []string{ScopePerson},
	})
	if err != nil {
		err = s.mapError(err)
		return TokenResult{}, err
	}

	grant, err := s.grantStore.Create(ctx, CreateGrantInput{
		PersonID:     person.ID,
		ClientID:     req.ClientID,
		GrantType:    GrantTypePassword,
		AccessToken:  minted.AccessToken,
		RefreshToken: minted.RefreshToken,
		Scopes:       []string{ScopePerson},
	})
	if err != nil {
		err = s.mapError(err)
		return TokenResult{}, err
	}
	fields["grant_id"] = grant.ID

	result = s.tokenResult(grant.ID, minted)
	return result, nil
}

func (s *Service) CreateClientToken(ctx context.Context, req TokenRequest) (result TokenResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"client_id":  req.ClientID,
		"grant_type": string(GrantTypeClientCredentials),
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "create_client_token", err, fields)
	}()

	client, err := s.clientStore.Get(ctx, req.ClientID)
	if err != nil {
		if isNotFoundError(err) {
			err = s.mapError(unprocessableError("Unrecognized client"))
			return TokenResult{}, err
		}
		err = s.mapError(err)
		return TokenResult{}, err
	}
	if !client.IsConfidential {
		err = s.mapError(unprocessableError("Invalid grant type"))
		return TokenResult{}, err
	}
	if _, err = s.credentialVerifier.VerifyClient(ctx, req.ClientID, req.ClientSecret); err != nil {
		err = s.mapError(err)
		return TokenResult{}, err
	}

	minted, err := s.mintTokenPair(mintRequest{
		Subject:  req.ClientID,
		Audience: req.ClientID,
		Scopes:   []string{ScopeClient},
	})
	if err != nil {
		err = s.mapError(err)
		return TokenResult{}, err
	}

	grant, err := s.grantStore.Create(ctx, CreateGrantInput{
		ClientID:     req.ClientID,
		GrantType:    GrantTypeClientCredentials,
		AccessToken:  minted.AccessToken,
		RefreshToken: minted.RefreshToken,
		Scopes:       []string{ScopeClient},
	})
	if err != nil {
		err = s.mapError(err)
		return TokenResult{}, err
	}
	fields["grant_id"] = grant.ID

	result = s.tokenResult(grant.ID, minted)
	return result, nil
}

// CreateCodeToken completes the authorization_code flow: the presented
// code and PKCE verifier unlock the token pair minted at CreateCode.
// The code burns on first successful exchange.
func (s *Service) CreateCodeToken(ctx context.Context, req TokenRequest) (result TokenResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"grant_type": string(GrantTypeAuthorizationCode),
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "create_code_token", err, fields)
	}()

	grant, err := s.grantStore.GetByCode(ctx, req.Code)
	if err != nil {
		if isNotFoundError(err) {
			err = s.mapError(unauthorizedError("unauthorized code"))
			return TokenResult{}, err
		}
		err = s.mapError(err)
		return TokenResult{}, err
	}
	if grant.CodeUsed {
		err = s.mapError(unauthorizedError("unauthorized code"))
		return TokenResult{}, err
	}
	if grant.GrantType != GrantTypeAuthorizationCode {
		err = s.mapError(unauthorizedError("unauthorized grant type"))
		return TokenResult{}, err
	}
	if err = VerifyCodeChallenge(grant.CodeChallenge, grant.CodeChallengeMethod, req.CodeVerifier); err != nil {
		err = s.mapError(err)
		return TokenResult{}, err
	}

	if err = s.grantStore.MarkCodeUsed(ctx, grant.ID); err != nil {
		err = s.mapError(err)
		return TokenResult{}, err
	}
	fields["grant_id"] = grant.ID

	claims, err := s.tokenCodec.DecodeExpired(grant.AccessToken)
	if err != nil {
		err = s.mapError(err)
		return TokenResult{}, err
	}

	result = TokenResult{
		GrantID:      grant.ID,
		AccessToken:  grant.AccessToken,
		RefreshToken: grant.RefreshToken,
		TokenType:    s.config.Token.TokenType,
		ExpiresAt:    claims.ExpiresAt,
		Scopes:       append([]string(nil), grant.Scopes...),
	}
	return result, nil
}

// RefreshToken rotates a grant's token pair. The swap is guarded by
// the store: of any number of concurrent callers presenting the same
// refresh token, exactly one wins, the rest get the same rejection a
// revoked token would.
func (s *Service) RefreshToken(ctx context.Context, refreshToken string) (result TokenResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() {
		s.observeOperation(ctx, startedAt, "refresh_token", err, fields)
	}()

	if strings.TrimSpace(refreshToken) == "" {
		err = s.mapError(badRequestError("refresh_token required"))
		return TokenResult{}, err
	}

	grant, err := s.grantStore.GetByRefreshToken(ctx, refreshToken)
	if err != nil {
		if isNotFoundError(err) {
			err = s.mapError(unauthorizedError("invalid refresh token"))
			return TokenResult{}, err
		}
		err = s.mapError(err)
		return TokenResult{}, err
	}
	if !grant.Refreshable() {
		err = s.mapError(unauthorizedError("invalid refresh token"))
		return TokenResult{}, err
	}
	fields["grant_id"] = grant.ID
	fields["grant_type"] = string(grant.GrantType)

	claims, err := s.tokenCodec.DecodeExpired(grant.AccessToken)
	if err != nil {
		err = s.mapError(err)
		return TokenResult{}, err
	}

	now := time.Now().UTC().Unix()
	expires := now + int64(s.config.TokenTTL().Seconds())
	nonce, err := newNonce()
	if err != nil {
		err = s.mapError(err)
		return TokenResult{}, err
	}
	nextRefreshToken, err := newOpaqueToken(32)
	if err != nil {
		err = s.mapError(err)
		return TokenResult{}, err
	}

	// The rotated access token keeps the original identity claims:
	// same jti, sub, scope, aud, and iat. Only nce, exp, and nbf move.
	nextAccessToken, err := s.tokenCodec.Sign(AccessClaims{
		ID:        claims.ID,
		Nonce:     nonce,
		Subject:   claims.Subject,
		Scope:     claims.Scope,
		Audience:  claims.Audience,
		ExpiresAt: expires,
		NotBefore: now,
		IssuedAt:  claims.IssuedAt,
	})
	if err != nil {
		err = s.mapError(err)
		return TokenResult{}, err
	}

	rotated, won, err := s.grantStore.Rotate(ctx, RotateGrantInput{
		PreviousRefreshToken: refreshToken,
		AccessToken:          nextAccessToken,
		RefreshToken:         nextRefreshToken,
	})
	if err != nil {
		err = s.mapError(err)
		return TokenResult{}, err
	}
	if !won {
		err = s.mapError(unauthorizedError("invalid refresh token"))
		return TokenResult{}, err
	}

	result = TokenResult{
		GrantID:      rotated.ID,
		AccessToken:  nextAccessToken,
		RefreshToken: nextRefreshToken,
		TokenType:    s.config.Token.TokenType,
		ExpiresAt:    expires,
		Scopes:       append([]string(nil), rotated.Scopes...),
	}
	return result, nil
}

// RevokeToken marks a grant revoked, which means exactly one thing: no
// further refresh. Already-issued access tokens stay verifiable until
// they expire; resource servers never learn about the revocation.
func (s *Service) RevokeToken(ctx context.Context, in RevokeGrantInput) (result RevokeResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"grant_id": in.ID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "revoke_token", err, fields)
	}()

	if strings.TrimSpace(in.ID) == "" && strings.TrimSpace(in.RefreshToken) == "" {
		err = s.mapError(badRequestError("id or refresh_token required"))
		return RevokeResult{}, err
	}

	revoked, err := s.grantStore.Revoke(ctx, in)
	if err != nil {
		err = s.mapError(err)
		return RevokeResult{}, err
	}
	result = RevokeResult{Success: true, Revoked: revoked}
	return result, nil
}

func (s *Service) RevokeTokens(ctx context.Context, ids []string) (result RevokeResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"count": len(ids),
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "revoke_tokens", err, fields)
	}()

	if len(ids) == 0 {
		err = s.mapError(badRequestError("tokenGrantList required"))
		return RevokeResult{}, err
	}
	revoked, err := s.grantStore.RevokeMany(ctx, ids)
	if err != nil {
		err = s.mapError(err)
		return RevokeResult{}, err
	}
	result = RevokeResult{Success: true, Revoked: revoked}
	return result, nil
}

// WhoAmI resolves the principal behind a verified token's claims. A
// person-scoped token resolves its subject as a person, a client
// scoped one as a client; a refresh token resolves to the person who
// holds the grant.
func (s *Service) WhoAmI(ctx context.Context, req WhoAmIRequest) (identity Identity, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() {
		s.observeOperation(ctx, startedAt, "who_am_i", err, fields)
	}()

	if strings.TrimSpace(req.RefreshToken) != "" {
		grant, getErr := s.grantStore.GetByRefreshToken(ctx, req.RefreshToken)
		if getErr != nil {
			if isNotFoundError(getErr) {
				err = s.mapError(unauthorizedError("invalid refresh token"))
				return Identity{}, err
			}
			err = s.mapError(getErr)
			return Identity{}, err
		}
		person, getErr := s.personStore.Get(ctx, grant.PersonID)
		if getErr != nil {
			err = s.mapError(getErr)
			return Identity{}, err
		}
		person = person.Redacted()
		fields["person_id"] = person.ID
		identity = Identity{Kind: SubjectKindPerson, Person: &person}
		return identity, nil
	}

	scopes := NewPermissionSet(req.Scopes...)
	switch {
	case scopes.Has(ScopePerson):
		person, getErr := s.personStore.Get(ctx, req.Subject)
		if getErr != nil {
			err = s.mapError(getErr)
			return Identity{}, err
		}
		person = person.Redacted()
		fields["person_id"] = person.ID
		identity = Identity{Kind: SubjectKindPerson, Person: &person}
		return identity, nil
	case scopes.Has(ScopeClient):
		client, getErr := s.clientStore.Get(ctx, req.Subject)
		if getErr != nil {
			err = s.mapError(getErr)
			return Identity{}, err
		}
		client = client.Redacted()
		fields["client_id"] = client.ID
		identity = Identity{Kind: SubjectKindClient, Client: &client}
		return identity, nil
	}

	err = s.mapError(unprocessableError("Unknown scope"))
	return Identity{}, err
}

// ListGrants pages through issued grants, filterable by subject, grant
// type, and revocation state.
func (s *Service) ListGrants(ctx context.Context, filter GrantFilter) (page GrantPage, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"person_id": filter.PersonID,
		"client_id": filter.ClientID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "list_grants", err, fields)
	}()

	page, err = s.grantStore.List(ctx, filter)
	if err != nil {
		err = s.mapError(err)
		return GrantPage{}, err
	}
	return page, nil
}

type mintRequest struct {
	Subject  string
	Audience string
	Scopes   []string
}

type mintedTokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    int64
	Scopes       []string
}

func (s *Service) mintTokenPair(req mintRequest) (mintedTokens, error) {
	if s.tokenCodec == nil {
		return mintedTokens{}, fmt.Errorf("core: token codec is required")
	}

	now := time.Now().UTC().Unix()
	expires := now + int64(s.config.TokenTTL().Seconds())

	nonce, err := newNonce()
	if err != nil {
		return mintedTokens{}, err
	}
	refreshToken, err := newOpaqueToken(32)
	if err != nil {
		return mintedTokens{}, err
	}

	tokenID, err := newOpaqueToken(32)
	if err != nil {
		return mintedTokens{}, err
	}

	scopes := normalizeScopes(req.Scopes)
	accessToken, err := s.tokenCodec.Sign(AccessClaims{
		ID:        tokenID,
		Nonce:     nonce,
		Subject:   req.Subject,
		Scope:     joinScopes(scopes),
		Audience:  req.Audience,
		ExpiresAt: expires,
		NotBefore: now,
		IssuedAt:  now,
	})
	if err != nil {
		return mintedTokens{}, err
	}

	return mintedTokens{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expires,
		Scopes:       scopes,
	}, nil
}

func (s *Service) tokenResult(grantID string, minted mintedTokens) TokenResult {
	return TokenResult{
		GrantID:      grantID,
		AccessToken:  minted.AccessToken,
		RefreshToken: minted.RefreshToken,
		TokenType:    s.config.Token.TokenType,
		ExpiresAt:    minted.ExpiresAt,
		Scopes:       append([]string(nil), minted.Scopes...),
	}
}
