package sqlstore_test

import (
	"context"
	"database/sql"
	"io/fs"
	"os"
	"testing"
	"time"

	"github.com/goliatone/go-access/core"
	accessmigrations "github.com/goliatone/go-access/migrations"
	sqlstore "github.com/goliatone/go-access/store/sql"
	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun/dialect/pgdialect"
)

// postgresDSNEnv names the connection string for the postgres suite.
// The suite skips when it is unset so the sqlite tests stay the default
// local loop.
const postgresDSNEnv = "ACCESS_TEST_POSTGRES_DSN"

func newPostgresFactory(t *testing.T) (*sqlstore.RepositoryFactory, func()) {
	t.Helper()

	dsn := os.Getenv(postgresDSNEnv)
	if dsn == "" {
		t.Skipf("set %s to run the postgres suite", postgresDSNEnv)
	}

	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open postgres db: %v", err)
	}

	cfg := testPersistenceConfig{
		driver: "postgres",
		server: dsn,
	}
	client, err := persistence.New(cfg, sqlDB, pgdialect.New())
	if err != nil {
		_ = sqlDB.Close()
		t.Fatalf("new persistence client: %v", err)
	}

	ctx := context.Background()
	_, err = accessmigrations.Register(ctx, func(_ context.Context, dialect string, _ string, fsys fs.FS) error {
		if dialect != accessmigrations.DialectPostgres {
			return nil
		}
		client.RegisterSQLMigrations(fsys)
		return nil
	}, accessmigrations.WithValidationTargets(accessmigrations.DialectPostgres))
	if err != nil {
		_ = client.Close()
		t.Fatalf("register migrations: %v", err)
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		t.Fatalf("migrate: %v", err)
	}

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		_ = client.Close()
		t.Fatalf("new repository factory: %v", err)
	}
	return factory, func() {
		_ = client.Close()
	}
}

func TestPostgres_GrantLifecycle(t *testing.T) {
	ctx := context.Background()
	factory, cleanup := newPostgresFactory(t)
	defer cleanup()

	person := seedStoredPerson(t, factory.PersonStore(), "pg_grant_person")
	seedStoredClient(t, factory.ClientStore(), "pg_grant_client")

	grant, err := factory.GrantStore().Create(ctx, core.CreateGrantInput{
		PersonID:     person.ID,
		ClientID:     "pg_grant_client",
		GrantType:    core.GrantTypePassword,
		AccessToken:  "pg-access-1",
		RefreshToken: "pg-refresh-1",
		Scopes:       []string{"person"},
	})
	if err != nil {
		t.Fatalf("create grant: %v", err)
	}

	fetched, err := factory.GrantStore().GetByRefreshToken(ctx, "pg-refresh-1")
	if err != nil {
		t.Fatalf("get by refresh token: %v", err)
	}
	if fetched.ID != grant.ID {
		t.Fatalf("grant id = %q, want %q", fetched.ID, grant.ID)
	}

	revoked, err := factory.GrantStore().Revoke(ctx, core.RevokeGrantInput{ID: grant.ID})
	if err != nil {
		t.Fatalf("revoke grant: %v", err)
	}
	if revoked != 1 {
		t.Fatalf("revoked = %d, want 1", revoked)
	}

	deleted, err := factory.GrantStore().DeleteRevokedBefore(ctx, time.Now().UTC().Add(time.Minute))
	if err != nil {
		t.Fatalf("delete revoked: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("deleted = %d, want 1", deleted)
	}
}

func TestPostgres_RolePermissionResolution(t *testing.T) {
	ctx := context.Background()
	factory, cleanup := newPostgresFactory(t)
	defer cleanup()

	person := seedStoredPerson(t, factory.PersonStore(), "pg_role_person")

	access := factory.AccessStore()
	if err := access.PutRolePermissions(ctx, []core.RolePermissionLink{
		{RoleName: "pg_support", PermissionName: "can get own person"},
		{RoleName: "pg_support", PermissionName: "can update own person"},
	}, nil); err != nil {
		t.Fatalf("put role permissions: %v", err)
	}
	if err := access.AssignPersonRole(ctx, person.ID, "pg_support"); err != nil {
		t.Fatalf("assign person role: %v", err)
	}

	permissions, err := access.PersonPermissions(ctx, person.ID)
	if err != nil {
		t.Fatalf("person permissions: %v", err)
	}
	if !permissions.Has("can get own person") || !permissions.Has("can update own person") {
		t.Fatalf("permissions = %v", permissions)
	}
}
