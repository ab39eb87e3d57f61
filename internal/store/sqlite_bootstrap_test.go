package store_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"hideadmin/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "hideadmin.db") + "?_busy_timeout=1000"
	db, err := store.OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := store.EnsureSchema(db, store.DialectSQLite); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	// 再跑一次，确保幂等。
	if err := store.EnsureSQLiteSchema(db); err != nil {
		t.Fatalf("EnsureSQLiteSchema (2): %v", err)
	}

	st := store.New(db)
	st.SetDialect(store.DialectSQLite)
	return st
}

func TestSQLiteBootstrap_CreateUserRoundTrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	n, err := st.CountUsers(ctx)
	if err != nil {
		t.Fatalf("CountUsers: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected empty users table, got %d", n)
	}

	userID, err := st.CreateUser(ctx, " admin ", []byte("pw-hash"), store.UserRoleRoot)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	u, err := st.GetUserByUsername(ctx, "admin")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if u.ID != userID || u.Role != store.UserRoleRoot || u.Status != 1 {
		t.Fatalf("unexpected user: %+v", u)
	}
	if u.CreatedAt.IsZero() || u.UpdatedAt.IsZero() {
		t.Fatalf("expected created_at/updated_at to be parsed, got created_at=%v updated_at=%v", u.CreatedAt, u.UpdatedAt)
	}

	if _, err := st.CreateUser(ctx, "admin", []byte("x"), ""); !errors.Is(err, store.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}

	if err := st.UpdateUserPassword(ctx, userID, []byte("new-hash")); err != nil {
		t.Fatalf("UpdateUserPassword: %v", err)
	}
	u, err = st.GetUserByID(ctx, userID)
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if string(u.PasswordHash) != "new-hash" {
		t.Fatalf("password hash not updated: %q", u.PasswordHash)
	}

	if err := st.SetUserStatus(ctx, userID, 0); err != nil {
		t.Fatalf("SetUserStatus: %v", err)
	}
	if u, _ = st.GetUserByID(ctx, userID); u.Status != 0 {
		t.Fatalf("expected disabled user, got status %d", u.Status)
	}
	if _, err := st.CreateUser(ctx, "bad name", []byte("x"), ""); err == nil {
		t.Fatalf("expected invalid username to be rejected")
	}

	if _, err := st.GetUserByUsername(ctx, "nobody"); !errors.Is(err, store.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if err := st.UpdateUserPassword(ctx, 9999, []byte("x")); !errors.Is(err, store.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound for missing id, got %v", err)
	}
}

func TestSQLiteBootstrap_AppSettingsUpsert(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if _, ok, err := st.GetAppSetting(ctx, store.SettingHideAdminOptions); err != nil || ok {
		t.Fatalf("expected missing setting, ok=%v err=%v", ok, err)
	}
	if err := st.UpsertAppSetting(ctx, store.SettingHideAdminOptions, `{"login_slug":"a"}`); err != nil {
		t.Fatalf("UpsertAppSetting: %v", err)
	}
	if err := st.UpsertAppSetting(ctx, store.SettingHideAdminOptions, `{"login_slug":"b"}`); err != nil {
		t.Fatalf("UpsertAppSetting (2): %v", err)
	}
	v, ok, err := st.GetAppSetting(ctx, store.SettingHideAdminOptions)
	if err != nil || !ok {
		t.Fatalf("GetAppSetting: ok=%v err=%v", ok, err)
	}
	if v != `{"login_slug":"b"}` {
		t.Fatalf("unexpected value %q", v)
	}

	if err := st.UpsertAppSetting(ctx, "  ", "x"); err == nil {
		t.Fatalf("expected error for blank key")
	}

	if err := st.DeleteAppSetting(ctx, store.SettingHideAdminOptions); err != nil {
		t.Fatalf("DeleteAppSetting: %v", err)
	}
	if _, ok, _ := st.GetAppSetting(ctx, store.SettingHideAdminOptions); ok {
		t.Fatalf("expected setting deleted")
	}
}

func TestSQLiteBootstrap_CacheInvalidationVersion(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if _, ok, err := st.GetCacheInvalidationVersion(ctx, "hideadmin_options"); err != nil || ok {
		t.Fatalf("expected no version yet, ok=%v err=%v", ok, err)
	}
	for i := 0; i < 3; i++ {
		if err := st.BumpCacheInvalidation(ctx, "hideadmin_options"); err != nil {
			t.Fatalf("BumpCacheInvalidation: %v", err)
		}
	}
	v, ok, err := st.GetCacheInvalidationVersion(ctx, "hideadmin_options")
	if err != nil || !ok {
		t.Fatalf("GetCacheInvalidationVersion: ok=%v err=%v", ok, err)
	}
	if v != 3 {
		t.Fatalf("version = %d, want 3", v)
	}

	if err := st.BumpCacheInvalidation(ctx, ""); err == nil {
		t.Fatalf("expected error for empty cache key")
	}
}
