package core

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RegisterPerson creates a person with a bcrypt password hash and a
// pending email verification token, then assigns any requested roles.
func (s *Service) RegisterPerson(ctx context.Context, req RegisterPersonRequest) (person Person, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() {
		s.observeOperation(ctx, startedAt, "register_person", err, fields)
	}()

	if strings.TrimSpace(req.Username) == "" || strings.TrimSpace(req.Email) == "" {
		err = s.mapError(badRequestError("username and email are required"))
		return Person{}, err
	}
	if req.Password == "" {
		err = s.mapError(badRequestError("password is required"))
		return Person{}, err
	}

	passwordHash, err := s.passwordHasher.Hash(req.Password)
	if err != nil {
		err = s.mapError(err)
		return Person{}, err
	}
	verificationToken, err := newOpaqueToken(32)
	if err != nil {
		err = s.mapError(err)
		return Person{}, err
	}

	person, err = s.personStore.Create(ctx, CreatePersonInput{
		Username:               strings.TrimSpace(req.Username),
		Email:                  strings.TrimSpace(req.Email),
		FullName:               strings.TrimSpace(req.FullName),
		PasswordHash:           passwordHash,
		EmailVerificationToken: verificationToken,
		MobileCountryCode:      req.MobileCountryCode,
		MobileAreaCode:         req.MobileAreaCode,
		MobileNumber:           req.MobileNumber,
	})
	if err != nil {
		err = s.mapError(err)
		return Person{}, err
	}
	fields["person_id"] = person.ID

	for _, roleName := range req.Roles {
		if assignErr := s.accessStore.AssignPersonRole(ctx, person.ID, roleName); assignErr != nil {
			err = s.mapError(assignErr)
			return Person{}, err
		}
	}

	return person.Redacted(), nil
}

// VerifyEmail consumes a pending verification token and marks the
// owning person's email verified.
func (s *Service) VerifyEmail(ctx context.Context, verificationToken string) (person Person, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() {
		s.observeOperation(ctx, startedAt, "verify_email", err, fields)
	}()

	if strings.TrimSpace(verificationToken) == "" {
		err = s.mapError(badRequestError("verification token required"))
		return Person{}, err
	}
	person, err = s.personStore.MarkEmailVerified(ctx, verificationToken)
	if err != nil {
		if isNotFoundError(err) {
			err = s.mapError(unprocessableError("Unknown verification token"))
			return Person{}, err
		}
		err = s.mapError(err)
		return Person{}, err
	}
	fields["person_id"] = person.ID
	return person.Redacted(), nil
}

// RegisterClient creates a client and returns the plaintext secret
// exactly once; only the bcrypt hash is stored.
func (s *Service) RegisterClient(ctx context.Context, req RegisterClientRequest) (registered RegisteredClient, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() {
		s.observeOperation(ctx, startedAt, "register_client", err, fields)
	}()

	if strings.TrimSpace(req.Label) == "" {
		err = s.mapError(badRequestError("label is required"))
		return RegisteredClient{}, err
	}

	secret, err := newOpaqueToken(32)
	if err != nil {
		err = s.mapError(err)
		return RegisteredClient{}, err
	}
	secretHash, err := s.passwordHasher.Hash(secret)
	if err != nil {
		err = s.mapError(err)
		return RegisteredClient{}, err
	}

	client, err := s.clientStore.Create(ctx, CreateClientInput{
		ID:             uuid.NewString(),
		SecretHash:     secretHash,
		Label:          strings.TrimSpace(req.Label),
		OwnerID:        req.OwnerID,
		IsConfidential: req.IsConfidential,
		RedirectURLs:   cleanRedirectURLs(req.RedirectURLs),
	})
	if err != nil {
		err = s.mapError(err)
		return RegisteredClient{}, err
	}
	fields["client_id"] = client.ID

	for _, roleName := range req.Roles {
		if assignErr := s.accessStore.AssignClientRole(ctx, client.ID, roleName); assignErr != nil {
			err = s.mapError(assignErr)
			return RegisteredClient{}, err
		}
	}

	registered = RegisteredClient{Client: client.Redacted(), Secret: secret}
	return registered, nil
}

func cleanRedirectURLs(urls []string) []string {
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		out = append(out, u)
	}
	return out
}

func (s *Service) AssignPersonRole(ctx context.Context, personID string, roleName string) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"person_id": personID, "role": roleName}
	defer func() {
		s.observeOperation(ctx, startedAt, "assign_person_role", err, fields)
	}()
	err = s.mapError(s.accessStore.AssignPersonRole(ctx, personID, roleName))
	return err
}

func (s *Service) RemovePersonRole(ctx context.Context, personID string, roleName string) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"person_id": personID, "role": roleName}
	defer func() {
		s.observeOperation(ctx, startedAt, "remove_person_role", err, fields)
	}()
	err = s.mapError(s.accessStore.RemovePersonRole(ctx, personID, roleName))
	return err
}

func (s *Service) AssignClientRole(ctx context.Context, clientID string, roleName string) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"client_id": clientID, "role": roleName}
	defer func() {
		s.observeOperation(ctx, startedAt, "assign_client_role", err, fields)
	}()
	err = s.mapError(s.accessStore.AssignClientRole(ctx, clientID, roleName))
	return err
}

func (s *Service) RemoveClientRole(ctx context.Context, clientID string, roleName string) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"client_id": clientID, "role": roleName}
	defer func() {
		s.observeOperation(ctx, startedAt, "remove_client_role", err, fields)
	}()
	err = s.mapError(s.accessStore.RemoveClientRole(ctx, clientID, roleName))
	return err
}

// PutRolePermissions applies a batch of role-permission additions and
// removals in one transaction. Unknown permission names are rejected
// before anything touches the store.
func (s *Service) PutRolePermissions(ctx context.Context, create []RolePermissionLink, remove []RolePermissionLink) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"create": len(create), "remove": len(remove)}
	defer func() {
		s.observeOperation(ctx, startedAt, "put_role_permissions", err, fields)
	}()

	for _, link := range create {
		if !KnownPermission(link.PermissionName) {
			err = s.mapError(unprocessableError("unknown permission " + link.PermissionName))
			return err
		}
	}
	err = s.mapError(s.accessStore.PutRolePermissions(ctx, create, remove))
	return err
}

func (s *Service) PutScopePermissions(ctx context.Context, create []ScopePermissionLink, remove []ScopePermissionLink) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"create": len(create), "remove": len(remove)}
	defer func() {
		s.observeOperation(ctx, startedAt, "put_scope_permissions", err, fields)
	}()

	for _, link := range create {
		if !KnownPermission(link.PermissionName) {
			err = s.mapError(unprocessableError("unknown permission " + link.PermissionName))
			return err
		}
	}
	err = s.mapError(s.accessStore.PutScopePermissions(ctx, create, remove))
	return err
}

// CheckAccess is the service-level entry into the permission resolver.
func (s *Service) CheckAccess(ctx context.Context, req CheckAccessRequest) (decision AccessDecision, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"subject_kind": string(req.Subject.Kind),
		"entity":       req.Entity,
		"action":       string(req.Action),
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "check_access", err, fields)
	}()

	if s.resolver == nil {
		err = s.mapError(forbiddenError("access checks unavailable"))
		return AccessDecision{}, err
	}
	decision, err = s.resolver.Check(ctx, req)
	if err != nil {
		err = s.mapError(err)
		return AccessDecision{}, err
	}
	fields["allowed"] = decision.Allowed
	return decision, nil
}
