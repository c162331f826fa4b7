package core

import (
	"context"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 12

// BcryptHasher hashes and compares secrets with bcrypt. Both person
// passwords and client secrets go through it.
type BcryptHasher struct {
	Cost int
}

func (h BcryptHasher) Hash(plaintext string) (string, error) {
	cost := h.Cost
	if cost <= 0 {
		cost = bcryptCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func (h BcryptHasher) Compare(hash string, plaintext string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
}

var _ PasswordHasher = BcryptHasher{}

// StoreCredentialVerifier authenticates people and clients against
// their stores. Lookup misses and hash mismatches are reported with
// the same message so callers cannot tell which half failed.
type StoreCredentialVerifier struct {
	people  PersonStore
	clients ClientStore
	hasher  PasswordHasher
}

func NewStoreCredentialVerifier(people PersonStore, clients ClientStore, hasher PasswordHasher) *StoreCredentialVerifier {
	if hasher == nil {
		hasher = BcryptHasher{}
	}
	return &StoreCredentialVerifier{people: people, clients: clients, hasher: hasher}
}

func (v *StoreCredentialVerifier) VerifyPerson(ctx context.Context, identifier string, password string) (Person, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return Person{}, unauthorizedError("Unrecognized credentials")
	}
	person, err := v.people.FindByIdentifier(ctx, identifier)
	if err != nil {
		if isNotFoundError(err) {
			return Person{}, unauthorizedError("Unrecognized credentials")
		}
		return Person{}, err
	}
	if compareErr := v.hasher.Compare(person.PasswordHash, password); compareErr != nil {
		return Person{}, unauthorizedError("Unrecognized credentials")
	}
	return person, nil
}

func (v *StoreCredentialVerifier) VerifyClient(ctx context.Context, clientID string, secret string) (Client, error) {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" || secret == "" {
		return Client{}, unauthorizedError("Unrecognized client")
	}
	client, err := v.clients.Get(ctx, clientID)
	if err != nil {
		if isNotFoundError(err) {
			return Client{}, unauthorizedError("Unrecognized client")
		}
		return Client{}, err
	}
	if compareErr := v.hasher.Compare(client.SecretHash, secret); compareErr != nil {
		return Client{}, unauthorizedError("Unrecognized client")
	}
	return client, nil
}

var _ CredentialVerifier = (*StoreCredentialVerifier)(nil)
