package migrations

import (
	"context"
	"database/sql"
	"io/fs"
	"path/filepath"
	"testing"

	unify "github.com/goliatone/go-unify"
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

func TestCoreMigrationPair_ExistsForBothDialects(t *testing.T) {
	root := unify.GetCoreMigrationsFS()
	paths := []string{
		"data/sql/migrations/20250101000000_unify_core.up.sql",
		"data/sql/migrations/20250101000000_unify_core.down.sql",
		"data/sql/migrations/sqlite/20250101000000_unify_core.up.sql",
		"data/sql/migrations/sqlite/20250101000000_unify_core.down.sql",
	}
	for _, migrationPath := range paths {
		content, err := fs.ReadFile(root, migrationPath)
		if err != nil {
			t.Fatalf("read migration %s: %v", migrationPath, err)
		}
		if len(content) == 0 {
			t.Fatalf("expected migration %s to have SQL content", migrationPath)
		}
	}
}

func TestSQLiteCoreMigration_ApplyAndRollback(t *testing.T) {
	db, err := sql.Open("sqlite3", "file:migrations-unify-core?mode=memory&cache=shared&_foreign_keys=on")
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	defer func() { _ = db.Close() }()

	root := unify.GetCoreMigrationsFS()
	sqliteMigrations, err := fs.Sub(root, "data/sql/migrations/sqlite")
	if err != nil {
		t.Fatalf("resolve sqlite migrations: %v", err)
	}

	if err := execSQLMigration(context.Background(), db, sqliteMigrations, "20250101000000_unify_core.up.sql"); err != nil {
		t.Fatalf("apply core migration up: %v", err)
	}

	requiredTables := []string{
		"connections",
		"crm_contacts",
		"crm_contact_email_addresses",
		"crm_contact_phone_numbers",
		"attributes",
		"attribute_values",
		"remote_data",
		"sync_events",
		"webhook_endpoints",
	}
	for _, tableName := range requiredTables {
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

	insertConnection := `
		INSERT INTO connections (id, provider_slug, linked_user_id, access_token)
		VALUES (?, ?, ?, ?)
	`
	if _, err := db.ExecContext(context.Background(), insertConnection, "conn-1", "zendesk", "user-1", "sealed"); err != nil {
		t.Fatalf("insert connection: %v", err)
	}
	if _, err := db.ExecContext(context.Background(), insertConnection, "conn-2", "zendesk", "user-1", "sealed"); err == nil {
		t.Fatalf("expected active scope uniqueness violation")
	}

	// Soft-deleting the first connection frees the scope for a replacement.
	if _, err := db.ExecContext(
		context.Background(),
		`UPDATE connections SET deleted_at = CURRENT_TIMESTAMP WHERE id = ?`,
		"conn-1",
	); err != nil {
		t.Fatalf("soft delete connection: %v", err)
	}
	if _, err := db.ExecContext(context.Background(), insertConnection, "conn-3", "zendesk", "user-1", "sealed"); err != nil {
		t.Fatalf("expected insert after soft delete to succeed: %v", err)
	}

	if _, err := db.ExecContext(
		context.Background(),
		`INSERT INTO crm_contacts (id, remote_id, remote_platform, linked_user_id) VALUES (?, ?, ?, ?)`,
		"contact-1", "remote-1", "zendesk", "user-1",
	); err != nil {
		t.Fatalf("insert contact: %v", err)
	}
	if _, err := db.ExecContext(
		context.Background(),
		`INSERT INTO crm_contact_email_addresses (id, contact_id, email_address) VALUES (?, ?, ?)`,
		"email-1", "contact-1", "jane@example.com",
	); err != nil {
		t.Fatalf("insert email: %v", err)
	}

	// Sub-entities cascade when their contact row is hard-deleted.
	if _, err := db.ExecContext(context.Background(), `DELETE FROM crm_contacts WHERE id = ?`, "contact-1"); err != nil {
		t.Fatalf("delete contact: %v", err)
	}
	var emailCount int
	if err := db.QueryRowContext(
		context.Background(),
		`SELECT COUNT(*) FROM crm_contact_email_addresses WHERE contact_id = ?`,
		"contact-1",
	).Scan(&emailCount); err != nil {
		t.Fatalf("count cascaded emails: %v", err)
	}
	if emailCount != 0 {
		t.Fatalf("expected emails to cascade on contact delete, got %d", emailCount)
	}

	if err := execSQLMigration(context.Background(), db, sqliteMigrations, "20250101000000_unify_core.down.sql"); err != nil {
		t.Fatalf("apply core migration down: %v", err)
	}
	var tableCount int
	if err := db.QueryRowContext(
		context.Background(),
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`,
		"connections",
	).Scan(&tableCount); err != nil {
		t.Fatalf("query sqlite_master after down migration: %v", err)
	}
	if tableCount != 0 {
		t.Fatalf("expected connections to be dropped after down migration")
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
