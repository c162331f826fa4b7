package migrations

import (
	"context"
	"database/sql"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	access "github.com/goliatone/go-access"
	_ "github.com/mattn/go-sqlite3"
)

func TestFilesystems_ReturnsPostgresAndSQLite(t *testing.T) {
	filesystems, err := Filesystems()
	if err != nil {
		t.Fatalf("filesystems: %v", err)
	}
	if len(filesystems) != 2 {
		t.Fatalf("expected 2 filesystems, got %d", len(filesystems))
	}

	var postgresFound bool
	var sqliteFound bool
	for _, entry := range filesystems {
		matches, globErr := fs.Glob(entry.FS, "*.up.sql")
		if globErr != nil {
			t.Fatalf("glob %s: %v", entry.Dialect, globErr)
		}
		if len(matches) == 0 {
			t.Fatalf("expected %s migration files, got none", entry.Dialect)
		}
		switch entry.Dialect {
		case DialectPostgres:
			postgresFound = true
		case DialectSQLite:
			sqliteFound = true
		}
	}

	if !postgresFound {
		t.Fatalf("expected postgres filesystem")
	}
	if !sqliteFound {
		t.Fatalf("expected sqlite filesystem")
	}
}

func TestFilesystems_RejectsIncompleteSchema(t *testing.T) {
	incomplete := fstest.MapFS{
		"data/sql/migrations/0001_partial.up.sql": &fstest.MapFile{
			Data: []byte("CREATE TABLE IF NOT EXISTS person (id text primary key);"),
		},
		"data/sql/migrations/sqlite/0001_partial.up.sql": &fstest.MapFile{
			Data: []byte("CREATE TABLE IF NOT EXISTS person (id text primary key);"),
		},
	}

	_, err := Filesystems(incomplete)
	if err == nil {
		t.Fatalf("expected incomplete schema to be rejected")
	}
	if !strings.Contains(err.Error(), "does not create table") {
		t.Fatalf("expected missing table error, got %v", err)
	}
}

func TestRegister_UsesValidationTargets(t *testing.T) {
	var calls []string
	_, err := Register(context.Background(), func(_ context.Context, dialect string, _ string, _ fs.FS) error {
		calls = append(calls, dialect)
		return nil
	}, WithValidationTargets(DialectSQLite))
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if len(calls) != 1 {
		t.Fatalf("expected 1 registration call, got %d", len(calls))
	}
	if calls[0] != DialectSQLite {
		t.Fatalf("expected sqlite registration, got %q", calls[0])
	}
}

func TestAccessSchemaMigrationPair_ExistsForBothDialects(t *testing.T) {
	root := access.GetCoreMigrationsFS()
	paths := []string{
		"data/sql/migrations/0001_access_schema.up.sql",
		"data/sql/migrations/0001_access_schema.down.sql",
		"data/sql/migrations/sqlite/0001_access_schema.up.sql",
		"data/sql/migrations/sqlite/0001_access_schema.down.sql",
	}
	for _, migrationPath := range paths {
		content, err := fs.ReadFile(root, migrationPath)
		if err != nil {
			t.Fatalf("read migration %s: %v", migrationPath, err)
		}
		if strings.TrimSpace(string(content)) == "" {
			t.Fatalf("expected migration %s to have SQL content", migrationPath)
		}
	}
}

func TestSQLiteAccessSchemaMigration_ApplySeedsAndRollsBack(t *testing.T) {
	db, err := sql.Open("sqlite3", "file:migrations-access-schema?mode=memory&cache=shared&_foreign_keys=on")
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	defer func() { _ = db.Close() }()

	root := access.GetCoreMigrationsFS()
	sqliteMigrations, err := fs.Sub(root, "data/sql/migrations/sqlite")
	if err != nil {
		t.Fatalf("resolve sqlite migrations: %v", err)
	}

	if err := execSQLMigration(context.Background(), db, sqliteMigrations, "0001_access_schema.up.sql"); err != nil {
		t.Fatalf("apply access schema migration up: %v", err)
	}

	for _, tableName := range SchemaTables {
		var count int
		if err := db.QueryRowContext(
			context.Background(),
			`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`,
			tableName,
		).Scan(&count); err != nil {
			t.Fatalf("query sqlite_master for %s: %v", tableName, err)
		}
		if count != 1 {
			t.Fatalf("expected table %s to exist after up migration", tableName)
		}
	}

	var permissionCount int
	if err := db.QueryRowContext(
		context.Background(),
		`SELECT COUNT(*) FROM permission`,
	).Scan(&permissionCount); err != nil {
		t.Fatalf("count seeded permissions: %v", err)
	}
	if permissionCount != 55 {
		t.Fatalf("expected 55 seeded permissions, got %d", permissionCount)
	}

	var adminCount int
	if err := db.QueryRowContext(
		context.Background(),
		`SELECT COUNT(*) FROM role WHERE name=? AND is_administrative=1`,
		"administrator",
	).Scan(&adminCount); err != nil {
		t.Fatalf("count administrator role: %v", err)
	}
	if adminCount != 1 {
		t.Fatalf("expected seeded administrator role with administrative flag")
	}

	var scopeCount int
	if err := db.QueryRowContext(
		context.Background(),
		`SELECT COUNT(*) FROM scope WHERE name IN (?, ?)`,
		"person",
		"client",
	).Scan(&scopeCount); err != nil {
		t.Fatalf("count implicit scopes: %v", err)
	}
	if scopeCount != 2 {
		t.Fatalf("expected person and client scopes seeded, got %d", scopeCount)
	}

	if _, err := db.ExecContext(
		context.Background(),
		`INSERT INTO permission (id, name, label) VALUES (?, ?, ?)`,
		"dup-permission",
		"can get own person",
		"Duplicate",
	); err == nil {
		t.Fatalf("expected unique permission name violation")
	}

	if err := execSQLMigration(context.Background(), db, sqliteMigrations, "0001_access_schema.down.sql"); err != nil {
		t.Fatalf("apply access schema migration down: %v", err)
	}

	var remaining int
	if err := db.QueryRowContext(
		context.Background(),
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`,
		"token_grant",
	).Scan(&remaining); err != nil {
		t.Fatalf("query sqlite_master after down migration: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("expected token_grant to be dropped after down migration")
	}
}

func execSQLMigration(ctx context.Context, db *sql.DB, fsys fs.FS, filename string) error {
	content, err := fs.ReadFile(fsys, filepath.Clean(filename))
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, string(content))
	return err
}
