package core

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

type memoryGrantStore struct {
	mu     sync.Mutex
	grants map[string]*TokenGrant
}

func newMemoryGrantStore() *memoryGrantStore {
	return &memoryGrantStore{grants: map[string]*TokenGrant{}}
}

func (s *memoryGrantStore) Create(_ context.Context, in CreateGrantInput) (TokenGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	grant := &TokenGrant{
		ID:                  uuid.NewString(),
		PersonID:            in.PersonID,
		ClientID:            in.ClientID,
		GrantType:           in.GrantType,
		AccessToken:         in.AccessToken,
		RefreshToken:        in.RefreshToken,
		Code:                in.Code,
		CodeChallenge:       in.CodeChallenge,
		CodeChallengeMethod: in.CodeChallengeMethod,
		Scopes:              append([]string(nil), in.Scopes...),
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if in.CodeUsed != nil {
		grant.CodeUsed = *in.CodeUsed
	}
	s.grants[grant.ID] = grant
	return *grant, nil
}

func (s *memoryGrantStore) Get(_ context.Context, id string) (TokenGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	grant, ok := s.grants[id]
	if !ok {
		return TokenGrant{}, fmt.Errorf("%w: %s", ErrGrantNotFound, id)
	}
	return *grant, nil
}

func (s *memoryGrantStore) GetByCode(_ context.Context, code string) (TokenGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, grant := range s.grants {
		if grant.Code != "" && grant.Code == code {
			return *grant, nil
		}
	}
	return TokenGrant{}, fmt.Errorf("%w: code", ErrGrantNotFound)
}

func (s *memoryGrantStore) GetByRefreshToken(_ context.Context, refreshToken string) (TokenGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, grant := range s.grants {
		if grant.RefreshToken == refreshToken && !grant.Revoked {
			return *grant, nil
		}
	}
	return TokenGrant{}, fmt.Errorf("%w: refresh token", ErrGrantNotFound)
}

func (s *memoryGrantStore) Rotate(_ context.Context, in RotateGrantInput) (TokenGrant, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, grant := range s.grants {
		if grant.RefreshToken == in.PreviousRefreshToken && !grant.Revoked {
			grant.AccessToken = in.AccessToken
			grant.RefreshToken = in.RefreshToken
			grant.UpdatedAt = time.Now().UTC()
			return *grant, true, nil
		}
	}
	return TokenGrant{}, false, nil
}

func (s *memoryGrantStore) MarkCodeUsed(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	grant, ok := s.grants[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrGrantNotFound, id)
	}
	if grant.CodeUsed {
		return fmt.Errorf("%w: %s", ErrCodeUsed, id)
	}
	grant.CodeUsed = true
	return nil
}

func (s *memoryGrantStore) Revoke(_ context.Context, in RevokeGrantInput) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var revoked int64
	now := time.Now().UTC()
	for _, grant := range s.grants {
		if (in.ID != "" && grant.ID == in.ID) ||
			(in.ID == "" && in.RefreshToken != "" && grant.RefreshToken == in.RefreshToken) {
			if !grant.Revoked {
				grant.Revoked = true
				grant.RevokedAt = &now
				revoked++
			}
		}
	}
	return revoked, nil
}

func (s *memoryGrantStore) RevokeMany(ctx context.Context, ids []string) (int64, error) {
	var total int64
	for _, id := range ids {
		count, err := s.Revoke(ctx, RevokeGrantInput{ID: id})
		if err != nil {
			return total, err
		}
		total += count
	}
	return total, nil
}

func (s *memoryGrantStore) List(_ context.Context, filter GrantFilter) (GrantPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := []TokenGrant{}
	for _, grant := range s.grants {
		if filter.PersonID != "" && grant.PersonID != filter.PersonID {
			continue
		}
		if filter.ClientID != "" && grant.ClientID != filter.ClientID {
			continue
		}
		if filter.GrantType != "" && grant.GrantType != filter.GrantType {
			continue
		}
		if filter.Revoked != nil && grant.Revoked != *filter.Revoked {
			continue
		}
		items = append(items, *grant)
	}
	return GrantPage{Items: items, Page: 1, PerPage: len(items), Total: len(items)}, nil
}

func (s *memoryGrantStore) DeleteRevokedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int64
	for id, grant := range s.grants {
		if grant.Revoked && grant.RevokedAt != nil && grant.RevokedAt.Before(cutoff) {
			delete(s.grants, id)
			removed++
		}
	}
	return removed, nil
}

type memoryPersonStore struct {
	mu     sync.Mutex
	people map[string]*Person
}

func newMemoryPersonStore() *memoryPersonStore {
	return &memoryPersonStore{people: map[string]*Person{}}
}

func (s *memoryPersonStore) Create(_ context.Context, in CreatePersonInput) (Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	person := &Person{
		ID:                     uuid.NewString(),
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
	s.people[person.ID] = person
	return *person, nil
}

func (s *memoryPersonStore) Get(_ context.Context, id string) (Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	person, ok := s.people[id]
	if !ok {
		return Person{}, fmt.Errorf("%w: %s", ErrPersonNotFound, id)
	}
	return *person, nil
}

func (s *memoryPersonStore) FindByIdentifier(_ context.Context, identifier string) (Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, person := range s.people {
		if person.Username == identifier || person.Email == identifier {
			return *person, nil
		}
	}
	return Person{}, fmt.Errorf("%w: %s", ErrPersonNotFound, identifier)
}

func (s *memoryPersonStore) FindByEmail(_ context.Context, email string) (Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, person := range s.people {
		if strings.EqualFold(person.Email, email) {
			return *person, nil
		}
	}
	return Person{}, fmt.Errorf("%w: %s", ErrPersonNotFound, email)
}

func (s *memoryPersonStore) UpdatePassword(_ context.Context, personID string, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	person, ok := s.people[personID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrPersonNotFound, personID)
	}
	person.PasswordHash = passwordHash
	return nil
}

func (s *memoryPersonStore) MarkEmailVerified(_ context.Context, verificationToken string) (Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, person := range s.people {
		if person.EmailVerificationToken != "" && person.EmailVerificationToken == verificationToken {
			person.EmailVerified = true
			person.EmailVerificationToken = ""
			return *person, nil
		}
	}
	return Person{}, fmt.Errorf("%w: verification token", ErrPersonNotFound)
}

type memoryClientStore struct {
	mu      sync.Mutex
	clients map[string]*Client
}

func newMemoryClientStore() *memoryClientStore {
	return &memoryClientStore{clients: map[string]*Client{}}
}

func (s *memoryClientStore) Create(_ context.Context, in CreateClientInput) (Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	client := &Client{
		ID:             in.ID,
		SecretHash:     in.SecretHash,
		Label:          in.Label,
		OwnerID:        in.OwnerID,
		IsConfidential: in.IsConfidential,
		RedirectURLs:   append([]string(nil), in.RedirectURLs...),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.clients[client.ID] = client
	return *client, nil
}

func (s *memoryClientStore) Get(_ context.Context, id string) (Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	client, ok := s.clients[id]
	if !ok {
		return Client{}, fmt.Errorf("%w: %s", ErrClientNotFound, id)
	}
	return *client, nil
}

type memoryAccessStore struct {
	mu               sync.Mutex
	personRoles      map[string]map[string]struct{}
	clientRoles      map[string]map[string]struct{}
	rolePermissions  map[string]map[string]struct{}
	scopePermissions map[string]map[string]struct{}
	adminRoles       map[string]struct{}
}

func newMemoryAccessStore() *memoryAccessStore {
	return &memoryAccessStore{
		personRoles:      map[string]map[string]struct{}{},
		clientRoles:      map[string]map[string]struct{}{},
		rolePermissions:  map[string]map[string]struct{}{},
		scopePermissions: map[string]map[string]struct{}{},
		adminRoles:       map[string]struct{}{},
	}
}

func (s *memoryAccessStore) markAdministrative(roleName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adminRoles[roleName] = struct{}{}
}

func rolePermissionSet(assignments map[string]struct{}, grants map[string]map[string]struct{}) PermissionSet {
	set := PermissionSet{}
	for roleName := range assignments {
		for permission := range grants[roleName] {
			set[permission] = true
		}
	}
	return set
}

func (s *memoryAccessStore) PersonPermissions(_ context.Context, personID string) (PermissionSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return rolePermissionSet(s.personRoles[personID], s.rolePermissions), nil
}

func (s *memoryAccessStore) ClientPermissions(_ context.Context, clientID string) (PermissionSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return rolePermissionSet(s.clientRoles[clientID], s.rolePermissions), nil
}

func (s *memoryAccessStore) ScopePermissions(_ context.Context, scopeNames []string) (PermissionSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := PermissionSet{}
	for _, scopeName := range scopeNames {
		for permission := range s.scopePermissions[scopeName] {
			set[permission] = true
		}
	}
	return set, nil
}

func (s *memoryAccessStore) PersonIsAdministrative(_ context.Context, personID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for roleName := range s.personRoles[personID] {
		if _, ok := s.adminRoles[roleName]; ok {
			return true, nil
		}
	}
	return false, nil
}

func (s *memoryAccessStore) ClientIsAdministrative(_ context.Context, clientID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for roleName := range s.clientRoles[clientID] {
		if _, ok := s.adminRoles[roleName]; ok {
			return true, nil
		}
	}
	return false, nil
}

func assign(target map[string]map[string]struct{}, key string, value string) {
	if target[key] == nil {
		target[key] = map[string]struct{}{}
	}
	target[key][value] = struct{}{}
}

func (s *memoryAccessStore) AssignPersonRole(_ context.Context, personID string, roleName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	assign(s.personRoles, personID, roleName)
	return nil
}

func (s *memoryAccessStore) RemovePersonRole(_ context.Context, personID string, roleName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.personRoles[personID], roleName)
	return nil
}

func (s *memoryAccessStore) AssignClientRole(_ context.Context, clientID string, roleName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	assign(s.clientRoles, clientID, roleName)
	return nil
}

func (s *memoryAccessStore) RemoveClientRole(_ context.Context, clientID string, roleName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clientRoles[clientID], roleName)
	return nil
}

func (s *memoryAccessStore) PutRolePermissions(_ context.Context, create []RolePermissionLink, remove []RolePermissionLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, link := range create {
		assign(s.rolePermissions, link.RoleName, link.PermissionName)
	}
	for _, link := range remove {
		delete(s.rolePermissions[link.RoleName], link.PermissionName)
	}
	return nil
}

func (s *memoryAccessStore) PutScopePermissions(_ context.Context, create []ScopePermissionLink, remove []ScopePermissionLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, link := range create {
		assign(s.scopePermissions, link.ScopeName, link.PermissionName)
	}
	for _, link := range remove {
		delete(s.scopePermissions[link.ScopeName], link.PermissionName)
	}
	return nil
}

type memoryPasswordResetStore struct {
	mu        sync.Mutex
	requests  map[string]*PasswordResetRequest
	completed map[string]struct{}
	people    *memoryPersonStore
}

func newMemoryPasswordResetStore(people *memoryPersonStore) *memoryPasswordResetStore {
	return &memoryPasswordResetStore{
		requests:  map[string]*PasswordResetRequest{},
		completed: map[string]struct{}{},
		people:    people,
	}
}

func (s *memoryPasswordResetStore) CreateRequest(_ context.Context, in CreatePasswordResetInput) (PasswordResetRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	request := &PasswordResetRequest{
		ID:        uuid.NewString(),
		PersonID:  in.PersonID,
		Token:     in.Token,
		ExpiresAt: in.ExpiresAt,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.requests[request.ID] = request
	return *request, nil
}

func (s *memoryPasswordResetStore) GetRequestByToken(_ context.Context, token string) (PasswordResetRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, request := range s.requests {
		if request.Token == token {
			return *request, nil
		}
	}
	return PasswordResetRequest{}, fmt.Errorf("%w: reset token", ErrPersonNotFound)
}

func (s *memoryPasswordResetStore) Completed(_ context.Context, requestID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.completed[requestID]
	return ok, nil
}

func (s *memoryPasswordResetStore) Complete(ctx context.Context, in CompletePasswordResetInput) error {
	s.mu.Lock()
	if _, ok := s.completed[in.RequestID]; ok {
		s.mu.Unlock()
		return conflictError("This reset link has already been used")
	}
	s.completed[in.RequestID] = struct{}{}
	s.mu.Unlock()
	return s.people.UpdatePassword(ctx, in.PersonID, in.PasswordHash)
}

type testStores struct {
	grants   *memoryGrantStore
	people   *memoryPersonStore
	clients  *memoryClientStore
	access   *memoryAccessStore
	resets   *memoryPasswordResetStore
	verifier *StoreCredentialVerifier
}

var testRSAKey = func() *rsa.PrivateKey {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic(err)
	}
	return key
}()

func newTestService(t *testing.T, options ...Option) (*Service, *testStores) {
	t.Helper()

	stores := &testStores{
		grants:  newMemoryGrantStore(),
		people:  newMemoryPersonStore(),
		clients: newMemoryClientStore(),
		access:  newMemoryAccessStore(),
	}
	stores.resets = newMemoryPasswordResetStore(stores.people)
	stores.verifier = NewStoreCredentialVerifier(stores.people, stores.clients, BcryptHasher{Cost: 4})

	codec, err := NewRS256TokenCodec(testRSAKey, nil)
	if err != nil {
		t.Fatalf("new token codec: %v", err)
	}

	base := []Option{
		WithGrantStore(stores.grants),
		WithPersonStore(stores.people),
		WithClientStore(stores.clients),
		WithAccessStore(stores.access),
		WithPasswordResetStore(stores.resets),
		WithTokenCodec(codec),
		WithCredentialVerifier(stores.verifier),
		WithPasswordHasher(BcryptHasher{Cost: 4}),
	}
	svc, err := NewService(Config{}, append(base, options...)...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, stores
}

func seedPerson(t *testing.T, stores *testStores, username string, password string) Person {
	t.Helper()
	hash, err := BcryptHasher{Cost: 4}.Hash(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	person, err := stores.people.Create(context.Background(), CreatePersonInput{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: hash,
	})
	if err != nil {
		t.Fatalf("create person: %v", err)
	}
	return person
}

func seedClient(t *testing.T, stores *testStores, id string, secret string, confidential bool, redirectURLs ...string) Client {
	t.Helper()
	hash, err := BcryptHasher{Cost: 4}.Hash(secret)
	if err != nil {
		t.Fatalf("hash secret: %v", err)
	}
	client, err := stores.clients.Create(context.Background(), CreateClientInput{
		ID:             id,
		SecretHash:     hash,
		Label:          id,
		IsConfidential: confidential,
		RedirectURLs:   redirectURLs,
	})
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	return client
}
