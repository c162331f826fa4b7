package core

import (
	"context"
	"strings"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func TestRegisterPerson(t *testing.T) {
	svc, stores := newTestService(t)

	person, err := svc.RegisterPerson(context.Background(), RegisterPersonRequest{
		Username: "ada",
		Email:    "ada@example.com",
		FullName: "Ada Lovelace",
		Password: "s3cret",
		Roles:    []string{"member"},
	})
	if err != nil {
		t.Fatalf("register person: %v", err)
	}
	if person.PasswordHash != "" || person.EmailVerificationToken != "" {
		t.Fatal("registration result must be redacted")
	}

	stored, err := stores.people.Get(context.Background(), person.ID)
	if err != nil {
		t.Fatalf("load person: %v", err)
	}
	if stored.PasswordHash == "" || stored.PasswordHash == "s3cret" {
		t.Fatal("stored password must be a hash")
	}
	if stored.EmailVerificationToken == "" {
		t.Fatal("expected a pending verification token")
	}
	if stored.EmailVerified {
		t.Fatal("a fresh registration is unverified")
	}

	roles := stores.access.personRoles[person.ID]
	if _, ok := roles["member"]; !ok {
		t.Fatalf("expected member role assignment, got %v", roles)
	}

	if _, err = stores.verifier.VerifyPerson(context.Background(), "ada", "s3cret"); err != nil {
		t.Fatalf("registered credentials must verify: %v", err)
	}
}

func TestRegisterPerson_MissingFields(t *testing.T) {
	svc, _ := newTestService(t)

	if _, err := svc.RegisterPerson(context.Background(), RegisterPersonRequest{
		Email:    "ada@example.com",
		Password: "s3cret",
	}); err == nil {
		t.Fatal("expected an error without a username")
	}
	if _, err := svc.RegisterPerson(context.Background(), RegisterPersonRequest{
		Username: "ada",
		Email:    "ada@example.com",
	}); err == nil {
		t.Fatal("expected an error without a password")
	}
}

func TestVerifyEmail(t *testing.T) {
	svc, stores := newTestService(t)

	person, err := svc.RegisterPerson(context.Background(), RegisterPersonRequest{
		Username: "ada",
		Email:    "ada@example.com",
		Password: "s3cret",
	})
	if err != nil {
		t.Fatalf("register person: %v", err)
	}

	stored, err := stores.people.Get(context.Background(), person.ID)
	if err != nil {
		t.Fatalf("load person: %v", err)
	}

	verified, err := svc.VerifyEmail(context.Background(), stored.EmailVerificationToken)
	if err != nil {
		t.Fatalf("verify email: %v", err)
	}
	if !verified.EmailVerified {
		t.Fatal("expected email verified")
	}

	// the token burns on use
	_, err = svc.VerifyEmail(context.Background(), stored.EmailVerificationToken)
	richErr := assertAccessError(t, err, goerrors.CategoryValidation, 422)
	if richErr.Message != "Unknown verification token" {
		t.Fatalf("unexpected message: %q", richErr.Message)
	}
}

func TestRegisterClient(t *testing.T) {
	svc, stores := newTestService(t)

	registered, err := svc.RegisterClient(context.Background(), RegisterClientRequest{
		Label:          "web app",
		IsConfidential: true,
		RedirectURLs:   []string{" https://app.example.com/callback ", ""},
		Roles:          []string{"service"},
	})
	if err != nil {
		t.Fatalf("register client: %v", err)
	}
	if registered.Secret == "" {
		t.Fatal("expected the one-time plaintext secret")
	}
	if registered.Client.SecretHash != "" {
		t.Fatal("returned client must be redacted")
	}
	if len(registered.Client.RedirectURLs) != 1 || strings.TrimSpace(registered.Client.RedirectURLs[0]) != registered.Client.RedirectURLs[0] {
		t.Fatalf("redirect urls must be trimmed, got %v", registered.Client.RedirectURLs)
	}

	stored, err := stores.clients.Get(context.Background(), registered.Client.ID)
	if err != nil {
		t.Fatalf("load client: %v", err)
	}
	if stored.SecretHash == "" || stored.SecretHash == registered.Secret {
		t.Fatal("stored secret must be a hash")
	}

	if _, err = stores.verifier.VerifyClient(context.Background(), registered.Client.ID, registered.Secret); err != nil {
		t.Fatalf("registered secret must verify: %v", err)
	}
}

func TestPutRolePermissions_RejectsUnknownNames(t *testing.T) {
	svc, stores := newTestService(t)

	err := svc.PutRolePermissions(context.Background(), []RolePermissionLink{
		{RoleName: "member", PermissionName: "can fly any person"},
	}, nil)
	richErr := assertAccessError(t, err, goerrors.CategoryValidation, 422)
	if !strings.Contains(richErr.Message, "unknown permission") {
		t.Fatalf("unexpected message: %q", richErr.Message)
	}
	if len(stores.access.rolePermissions) != 0 {
		t.Fatal("a rejected batch must not touch the store")
	}

	if err = svc.PutRolePermissions(context.Background(), []RolePermissionLink{
		{RoleName: "member", PermissionName: "can get own person"},
	}, nil); err != nil {
		t.Fatalf("valid batch: %v", err)
	}
}

func TestPutScopePermissions_RejectsUnknownNames(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.PutScopePermissions(context.Background(), []ScopePermissionLink{
		{ScopeName: "profile", PermissionName: "not a permission"},
	}, nil)
	assertAccessError(t, err, goerrors.CategoryValidation, 422)
}

func TestCheckAccess_ThroughService(t *testing.T) {
	svc, stores := newTestService(t)
	seedRole(t, stores.access, "member", "can get own person")
	if err := svc.AssignPersonRole(context.Background(), "p1", "member"); err != nil {
		t.Fatalf("assign role: %v", err)
	}

	decision, err := svc.CheckAccess(context.Background(), CheckAccessRequest{
		Subject: SubjectRef{Kind: SubjectKindPerson, ID: "p1"},
		Action:  ActionGet,
		Entity:  "person",
		OwnerID: "p1",
	})
	if err != nil {
		t.Fatalf("check access: %v", err)
	}
	if !decision.Allowed {
		t.Fatalf("expected allowed, got %+v", decision)
	}

	if err = svc.RemovePersonRole(context.Background(), "p1", "member"); err != nil {
		t.Fatalf("remove role: %v", err)
	}
	decision, err = svc.CheckAccess(context.Background(), CheckAccessRequest{
		Subject: SubjectRef{Kind: SubjectKindPerson, ID: "p1"},
		Action:  ActionGet,
		Entity:  "person",
		OwnerID: "p1",
	})
	if err != nil {
		t.Fatalf("check access: %v", err)
	}
	if decision.Allowed {
		t.Fatalf("expected denial after role removal, got %+v", decision)
	}
}
