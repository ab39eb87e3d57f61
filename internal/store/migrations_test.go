package store

import (
	"strings"
	"testing"
)

func TestMigration0001_Init(t *testing.T) {
	b, err := migrationsFS.ReadFile("migrations/0001_init.sql")
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}

	text := string(b)
	for _, needle := range []string{"app_settings", "users", "cache_invalidation", "uk_users_username"} {
		if !strings.Contains(text, needle) {
			t.Fatalf("migration missing %q", needle)
		}
	}
	if stmts := splitSQLStatements(text); len(stmts) != 3 {
		t.Fatalf("unexpected stmt count: %d", len(stmts))
	}
}

func TestSplitSQLStatements_SkipsBlank(t *testing.T) {
	t.Parallel()

	got := splitSQLStatements("  ;\nSELECT 1;\n\n;SELECT 2  ")
	if len(got) != 2 || got[0] != "SELECT 1" || got[1] != "SELECT 2" {
		t.Fatalf("unexpected split: %#v", got)
	}
}

func TestSQLiteSchemaMatchesMigrationTables(t *testing.T) {
	t.Parallel()

	for _, table := range []string{"app_settings", "users", "cache_invalidation"} {
		if !strings.Contains(sqliteSchema, "CREATE TABLE IF NOT EXISTS "+table) {
			t.Fatalf("sqlite schema missing table %q", table)
		}
	}
}
