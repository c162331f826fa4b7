package access_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"database/sql"
	"encoding/pem"
	"fmt"
	"io/fs"
	"testing"
	"time"

	access "github.com/goliatone/go-access"
	"github.com/goliatone/go-access/command"
	"github.com/goliatone/go-access/core"
	accessmigrations "github.com/goliatone/go-access/migrations"
	"github.com/goliatone/go-access/query"
	gocmd "github.com/goliatone/go-command"
	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

type composedPersistenceConfig struct {
	server string
}

func (c composedPersistenceConfig) GetDebug() bool { return false }
func (c composedPersistenceConfig) GetDriver() string { return "sqlite3" }
func (c composedPersistenceConfig) GetServer() string { return c.server }
func (c composedPersistenceConfig) GetPingTimeout() time.Duration { return time.Second }
func (c composedPersistenceConfig) GetOtelIdentifier() string { return "go-access-tests" }

func newComposedClient(t *testing.T) *persistence.Client {
	t.Helper()

	dsn := fmt.Sprintf(
		"file:access-composed-%d?mode=memory&cache=shared&_foreign_keys=on",
		time.Now().UnixNano(),
	)
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	client, err := persistence.New(composedPersistenceConfig{server: dsn}, sqlDB, sqlitedialect.New())
	if err != nil {
		_ = sqlDB.Close()
		t.Fatalf("new persistence client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	_, err = accessmigrations.Register(ctx, func(_ context.Context, dialect string, _ string, fsys fs.FS) error {
		if dialect != accessmigrations.DialectSQLite {
			return nil
		}
		client.RegisterSQLMigrations(fsys)
		return nil
	}, accessmigrations.WithValidationTargets(accessmigrations.DialectSQLite))
	if err != nil {
		t.Fatalf("register migrations: %v", err)
	}
	if err := client.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return client
}

func signingKeyPEM(t *testing.T) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}
	return string(pem.EncodeToMemory(block))
}

// composedEnv is the full stack a downstream service would assemble:
// sqlite-backed stores, a PEM-loaded signing codec, and the facade on
// top of the composed service.
type composedEnv struct {
	facade  *access.Facade
	service *access.Service
	stores  core.StoreProvider
}

func newComposedEnv(t *testing.T) composedEnv {
	t.Helper()

	client := newComposedClient(t)
	factory, err := access.SQLStoreFactory(client.DB())
	if err != nil {
		t.Fatalf("store factory: %v", err)
	}
	codec, err := access.PEMTokenCodec(access.KeysConfig{PrivateKeyPEM: signingKeyPEM(t)})
	if err != nil {
		t.Fatalf("token codec: %v", err)
	}

	svc, err := access.NewService(access.DefaultConfig(),
		access.WithRepositoryFactory(factory),
		access.WithTokenCodec(codec),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	facade, err := access.NewFacade(svc)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}
	return composedEnv{facade: facade, service: svc, stores: factory}
}

func runCommand[M any, R any](t *testing.T, label string, cmd interface {
	Execute(ctx context.Context, msg M) error
}, msg M) R {
	t.Helper()
	collector := gocmd.NewResult[R]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	if err := cmd.Execute(ctx, msg); err != nil {
		t.Fatalf("execute %s: %v", label, err)
	}
	out, ok := collector.Load()
	if !ok {
		t.Fatalf("no result stored for %s", label)
	}
	return out
}

func TestDownstreamComposition_TokenLifecycleThroughFacade(t *testing.T) {
	env := newComposedEnv(t)
	ctx := context.Background()
	commands := env.facade.Commands()
	queries := env.facade.Queries()

	registered := runCommand[command.RegisterClientMessage, core.RegisteredClient](t, "register client",
		commands.RegisterClient, command.RegisterClientMessage{
			Request: core.RegisterClientRequest{
				Label:          "support console",
				IsConfidential: true,
			},
		})
	if registered.Secret == "" {
		t.Fatal("expected one-time client secret")
	}
	if registered.Client.SecretHash != "" {
		t.Fatal("client secret hash must be redacted")
	}

	person := runCommand[command.RegisterPersonMessage, core.Person](t, "register person",
		commands.RegisterPerson, command.RegisterPersonMessage{
			Request: core.RegisterPersonRequest{
				Username: "ramona",
				Email:    "ramona@example.com",
				FullName: "Ramona Flowers",
				Password: "seven-evil-exes",
				Roles:    []string{"support"},
			},
		})
	if person.PasswordHash != "" || person.EmailVerificationToken != "" {
		t.Fatal("registered person must be redacted")
	}

	// The verification token never leaves the service. Downstreams
	// hand it out over email; here we read it straight off the store.
	stored, err := env.stores.PersonStore().FindByIdentifier(ctx, "ramona")
	if err != nil {
		t.Fatalf("find stored person: %v", err)
	}
	verified := runCommand[command.VerifyEmailMessage, core.Person](t, "verify email",
		commands.VerifyEmail, command.VerifyEmailMessage{
			VerificationToken: stored.EmailVerificationToken,
		})
	if !verified.EmailVerified {
		t.Fatal("expected email marked verified")
	}

	if err := commands.PutRolePermissions.Execute(ctx, command.PutRolePermissionsMessage{
		Create: []core.RolePermissionLink{
			{RoleName: "support", PermissionName: "can get own person"},
			{RoleName: "support", PermissionName: "can update own person"},
		},
	}); err != nil {
		t.Fatalf("put role permissions: %v", err)
	}

	token := runCommand[command.CreateTokenMessage, core.TokenResult](t, "create token",
		commands.CreateToken, command.CreateTokenMessage{
			Request: core.TokenRequest{
				GrantType:    core.GrantTypePassword,
				ClientID:     registered.Client.ID,
				ClientSecret: registered.Secret,
				Username:     "ramona",
				Password:     "seven-evil-exes",
			},
		})
	if token.AccessToken == "" || token.RefreshToken == "" {
		t.Fatal("expected a minted token pair")
	}
	if token.TokenType != "bearer" {
		t.Fatalf("token type = %q, want bearer", token.TokenType)
	}

	identity, err := queries.WhoAmI.Query(ctx, query.WhoAmIMessage{
		Request: core.WhoAmIRequest{RefreshToken: token.RefreshToken},
	})
	if err != nil {
		t.Fatalf("who am i: %v", err)
	}
	if identity.Kind != core.SubjectKindPerson || identity.Person == nil {
		t.Fatalf("identity = %+v, want person", identity)
	}
	if identity.Person.ID != person.ID {
		t.Fatalf("identity person = %s, want %s", identity.Person.ID, person.ID)
	}

	decision, err := queries.CheckAccess.Query(ctx, query.CheckAccessMessage{
		Request: core.CheckAccessRequest{
			Subject: core.SubjectRef{Kind: core.SubjectKindPerson, ID: person.ID},
			Action:  core.ActionGet,
			Entity:  "person",
			OwnerID: person.ID,
			Scopes:  []string{core.ScopePerson},
		},
	})
	if err != nil {
		t.Fatalf("check access: %v", err)
	}
	if !decision.Allowed || decision.Permission != "can get own person" {
		t.Fatalf("decision = %+v, want allowed via can get own person", decision)
	}

	// Same action against somebody else's record needs the any
	// qualifier, which the support role does not carry.
	denied, err := queries.CheckAccess.Query(ctx, query.CheckAccessMessage{
		Request: core.CheckAccessRequest{
			Subject: core.SubjectRef{Kind: core.SubjectKindPerson, ID: person.ID},
			Action:  core.ActionGet,
			Entity:  "person",
			OwnerID: "someone-else",
			Scopes:  []string{core.ScopePerson},
		},
	})
	if err != nil {
		t.Fatalf("check access (other owner): %v", err)
	}
	if denied.Allowed {
		t.Fatalf("decision = %+v, want denied", denied)
	}

	set, err := queries.EffectivePermissions.Query(ctx, query.EffectivePermissionsMessage{
		Subject: core.SubjectRef{Kind: core.SubjectKindPerson, ID: person.ID},
		Scopes:  []string{core.ScopePerson},
	})
	if err != nil {
		t.Fatalf("effective permissions: %v", err)
	}
	if !set.Has("can get own person") || !set.Has("can update own person") {
		t.Fatalf("effective permissions = %v, missing support grants", set.Names())
	}

	refreshed := runCommand[command.RefreshTokenMessage, core.TokenResult](t, "refresh token",
		commands.RefreshToken, command.RefreshTokenMessage{RefreshToken: token.RefreshToken})
	if refreshed.AccessToken == token.AccessToken {
		t.Fatal("refresh must rotate the access token")
	}

	revoked := runCommand[command.RevokeTokenMessage, core.RevokeResult](t, "revoke token",
		commands.RevokeToken, command.RevokeTokenMessage{RefreshToken: refreshed.RefreshToken})
	if !revoked.Success || revoked.Revoked != 1 {
		t.Fatalf("revoke result = %+v, want one revoked grant", revoked)
	}

	if err := commands.RefreshToken.Execute(ctx, command.RefreshTokenMessage{
		RefreshToken: refreshed.RefreshToken,
	}); err == nil {
		t.Fatal("refresh after revoke must fail")
	}

	active := false
	page, err := queries.ListGrants.Query(ctx, query.ListGrantsMessage{
		Filter: core.GrantFilter{PersonID: person.ID, Revoked: &active},
	})
	if err != nil {
		t.Fatalf("list grants: %v", err)
	}
	if len(page.Items) != 0 {
		t.Fatalf("active grants = %d, want none after revoke", len(page.Items))
	}

	removed := runCommand[command.ReapRevokedGrantsMessage, int64](t, "reap revoked grants",
		commands.ReapRevokedGrants, command.ReapRevokedGrantsMessage{
			Cutoff: time.Now().UTC().Add(time.Hour).Unix(),
		})
	if removed != 1 {
		t.Fatalf("reaped = %d, want 1", removed)
	}
}

func TestDownstreamComposition_ExtensionHooksSeedRolePacks(t *testing.T) {
	env := newComposedEnv(t)
	ctx := context.Background()

	hooks := access.NewExtensionHooks()
	if err := hooks.RegisterRolePack(access.RolePack{
		Name: "auditor",
		Links: []core.RolePermissionLink{
			{RoleName: "auditor", PermissionName: "can list any person"},
			{RoleName: "auditor", PermissionName: "can get any person"},
		},
	}); err != nil {
		t.Fatalf("register role pack: %v", err)
	}
	if err := hooks.ApplyRolePacks(ctx, env.service); err != nil {
		t.Fatalf("apply role packs: %v", err)
	}

	person := runCommand[command.RegisterPersonMessage, core.Person](t, "register person",
		env.facade.Commands().RegisterPerson, command.RegisterPersonMessage{
			Request: core.RegisterPersonRequest{
				Username: "wallace",
				Email:    "wallace@example.com",
				Password: "roommate",
				Roles:    []string{"auditor"},
			},
		})

	set, err := env.facade.Queries().EffectivePermissions.Query(ctx, query.EffectivePermissionsMessage{
		Subject: core.SubjectRef{Kind: core.SubjectKindPerson, ID: person.ID},
		Scopes:  []string{core.ScopePerson},
	})
	if err != nil {
		t.Fatalf("effective permissions: %v", err)
	}
	if !set.Has("can list any person") || !set.Has("can get any person") {
		t.Fatalf("effective permissions = %v, want auditor pack applied", set.Names())
	}
}
