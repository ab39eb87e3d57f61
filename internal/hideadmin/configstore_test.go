package hideadmin

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func newTestStore(t *testing.T) (*ConfigStore, *memKV, *LoginRoutes) {
	t.Helper()

	kv := newMemKV()
	routes := NewLoginRoutes()
	st := NewConfigStore(kv, routes, testDefaults)
	if err := st.Activate(context.Background()); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	return st, kv, routes
}

func TestActivate_SeedsDefaultsAndBuildsRoutesOnce(t *testing.T) {
	t.Parallel()

	st, kv, routes := newTestStore(t)
	if _, ok := kv.data[OptionsKey]; !ok {
		t.Fatalf("expected defaults persisted on first activation")
	}
	if routes.Rebuilds() != 1 || routes.Slug() != DefaultLoginSlug {
		t.Fatalf("rebuilds=%d slug=%q", routes.Rebuilds(), routes.Slug())
	}
	if got := st.Get(context.Background()); got != testDefaults.Options() {
		t.Fatalf("Get after activate = %+v", got)
	}
}

func TestActivate_KeepsExistingOptions(t *testing.T) {
	t.Parallel()

	kv := newMemKV()
	kv.set(OptionsKey, `{"feature_enabled":"0","login_slug":"masuk"}`)
	routes := NewLoginRoutes()
	st := NewConfigStore(kv, routes, testDefaults)
	if err := st.Activate(context.Background()); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if kv.puts != 0 {
		t.Fatalf("existing options must not be overwritten")
	}
	o := st.Get(context.Background())
	if o.FeatureEnabled || o.LoginSlug != "masuk" {
		t.Fatalf("unexpected options: %+v", o)
	}
	if routes.Slug() != "masuk" {
		t.Fatalf("routes slug = %q", routes.Slug())
	}
}

func TestGet_IdempotentAndCached(t *testing.T) {
	t.Parallel()

	st, kv, _ := newTestStore(t)
	ctx := context.Background()

	a := st.Get(ctx)
	before := kv.getCount()
	b := st.Get(ctx)
	if a != b {
		t.Fatalf("Get not idempotent: %+v vs %+v", a, b)
	}
	if kv.getCount() != before {
		t.Fatalf("expected cached read, kv gets %d -> %d", before, kv.getCount())
	}
}

func TestSave_RebuildsRoutesOnlyWhenSlugChanges(t *testing.T) {
	t.Parallel()

	st, _, routes := newTestStore(t)
	ctx := context.Background()
	base := routes.Rebuilds()

	if _, err := st.Save(ctx, RawInput{"feature_enabled": "1", "login_slug": DefaultLoginSlug}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if routes.Rebuilds() != base {
		t.Fatalf("unchanged slug must not rebuild routes")
	}

	o, err := st.Save(ctx, RawInput{"feature_enabled": "1", "login_slug": "Pintu Masuk"})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if o.LoginSlug != "pintu-masuk" {
		t.Fatalf("saved slug = %q", o.LoginSlug)
	}
	if routes.Rebuilds() != base+1 || routes.Slug() != "pintu-masuk" {
		t.Fatalf("rebuilds=%d slug=%q", routes.Rebuilds()-base, routes.Slug())
	}

	// 相同 slug 再保存一次（只改模式）不应重建。
	if _, err := st.Save(ctx, RawInput{"feature_enabled": "1", "login_slug": "pintu-masuk", "admin_redirect_mode": "custom", "admin_redirect_url": "https://example.org/"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if routes.Rebuilds() != base+1 {
		t.Fatalf("mode-only change must not rebuild routes")
	}
}

func TestSave_ReservedSlugStoresDefault(t *testing.T) {
	t.Parallel()

	st, kv, _ := newTestStore(t)
	ctx := context.Background()
	if _, err := st.Save(ctx, RawInput{"feature_enabled": "1", "login_slug": "masuk"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	for _, reserved := range []string{"wp-admin", "wp-login.php"} {
		o, err := st.Save(ctx, RawInput{"feature_enabled": "1", "login_slug": reserved})
		if err != nil {
			t.Fatalf("Save(%q): %v", reserved, err)
		}
		if o.LoginSlug != DefaultLoginSlug {
			t.Fatalf("Save(%q) slug = %q", reserved, o.LoginSlug)
		}
		stored := decodeOptions(kv.data[OptionsKey], Defaults{})
		if stored.LoginSlug != DefaultLoginSlug {
			t.Fatalf("stored slug = %q", stored.LoginSlug)
		}
	}
}

func TestSave_NotStaleAfterReturn(t *testing.T) {
	t.Parallel()

	st, _, _ := newTestStore(t)
	ctx := context.Background()
	_ = st.Get(ctx)

	saved, err := st.Save(ctx, RawInput{"login_slug": "baru"})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if got := st.Get(ctx); got != saved || got.FeatureEnabled || got.LoginSlug != "baru" {
		t.Fatalf("Get after Save = %+v, saved %+v", got, saved)
	}
}

func TestSave_PersistenceErrorLeavesStateUntouched(t *testing.T) {
	t.Parallel()

	st, kv, routes := newTestStore(t)
	ctx := context.Background()
	before := st.Get(ctx)
	rebuilds := routes.Rebuilds()

	kv.setPutErr(errors.New("disk full"))
	if _, err := st.Save(ctx, RawInput{"feature_enabled": "1", "login_slug": "lain"}); err == nil {
		t.Fatalf("expected Save error")
	}
	if got := st.Get(ctx); got != before {
		t.Fatalf("cache changed after failed save: %+v", got)
	}
	if routes.Rebuilds() != rebuilds || routes.Slug() != before.LoginSlug {
		t.Fatalf("routes changed after failed save")
	}
}

func TestGet_PersistenceUnavailableServesLastGood(t *testing.T) {
	t.Parallel()

	st, kv, _ := newTestStore(t)
	ctx := context.Background()
	saved, err := st.Save(ctx, RawInput{"feature_enabled": "1", "login_slug": "masuk"})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	kv.setGetErr(errors.New("connection refused"))
	st.Refresh(ctx)
	if got := st.Get(ctx); got != saved {
		t.Fatalf("expected last good snapshot, got %+v", got)
	}
}

func TestGet_PersistenceUnavailableWithoutHistoryServesDefaults(t *testing.T) {
	t.Parallel()

	kv := newMemKV()
	kv.setGetErr(errors.New("connection refused"))
	st := NewConfigStore(kv, NewLoginRoutes(), testDefaults)
	if got := st.Get(context.Background()); got != testDefaults.Options() {
		t.Fatalf("expected defaults, got %+v", got)
	}
}

func TestReset_RestoresDefaults(t *testing.T) {
	t.Parallel()

	st, _, routes := newTestStore(t)
	ctx := context.Background()
	if _, err := st.Save(ctx, RawInput{"login_slug": "lupa"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	o, err := st.Reset(ctx)
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if o != testDefaults.Options() {
		t.Fatalf("Reset = %+v", o)
	}
	if routes.Slug() != DefaultLoginSlug {
		t.Fatalf("routes slug = %q", routes.Slug())
	}
}

func TestPollInvalidation_RefreshesOnVersionMove(t *testing.T) {
	t.Parallel()

	st, kv, routes := newTestStore(t)
	ctx := context.Background()

	if st.pollInvalidation(ctx) {
		t.Fatalf("no version move yet, expected no refresh")
	}

	// 模拟另一个实例（或 hideadmin-ctl）直接写库并 bump 版本。
	other := NewConfigStore(kv, NewLoginRoutes(), testDefaults)
	if _, err := other.Save(ctx, RawInput{"feature_enabled": "1", "login_slug": "dari-luar"}); err != nil {
		t.Fatalf("other Save: %v", err)
	}
	if st.Get(ctx).LoginSlug != DefaultLoginSlug {
		t.Fatalf("expected stale cache before poll")
	}
	if !st.pollInvalidation(ctx) {
		t.Fatalf("expected refresh after version move")
	}
	if st.Get(ctx).LoginSlug != "dari-luar" || routes.Slug() != "dari-luar" {
		t.Fatalf("poll did not apply new slug: options=%q routes=%q", st.Get(ctx).LoginSlug, routes.Slug())
	}
	if st.pollInvalidation(ctx) {
		t.Fatalf("second poll without move must be a no-op")
	}
}

func TestConfigStore_ConcurrentGetAndSave(t *testing.T) {
	t.Parallel()

	st, _, routes := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				o := st.Get(ctx)
				if o.LoginSlug == "" {
					t.Errorf("empty slug observed")
					return
				}
			}
		}()
	}
	slugs := []string{"satu", "dua", "satu", "tiga"}
	for _, s := range slugs {
		if _, err := st.Save(ctx, RawInput{"feature_enabled": "1", "login_slug": s}); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
	wg.Wait()

	if got := st.Get(ctx).LoginSlug; got != "tiga" || routes.Slug() != "tiga" {
		t.Fatalf("final slug options=%q routes=%q", got, routes.Slug())
	}
	// activate + 4 次 slug 变化
	if routes.Rebuilds() != 5 {
		t.Fatalf("rebuilds = %d, want 5", routes.Rebuilds())
	}
}

func TestGet_ConcurrentReloadWithAccentedStoredSlug(t *testing.T) {
	t.Parallel()

	st, kv, _ := newTestStore(t)
	ctx := context.Background()
	kv.set(OptionsKey, `{"feature_enabled":"1","login_slug":"Pàgína Sécrète"}`)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				if got := st.Get(ctx).LoginSlug; got != "pagina-secrete" && got != DefaultLoginSlug {
					t.Errorf("unexpected slug %q", got)
					return
				}
			}
		}()
	}
	for i := 0; i < 50; i++ {
		st.Refresh(ctx)
	}
	wg.Wait()

	if got := st.Get(ctx).LoginSlug; got != "pagina-secrete" {
		t.Fatalf("final slug = %q", got)
	}
}

func TestGet_BacksOffWhilePersistenceUnavailable(t *testing.T) {
	t.Parallel()

	st, kv, _ := newTestStore(t)
	ctx := context.Background()
	saved, err := st.Save(ctx, RawInput{"feature_enabled": "1", "login_slug": "masuk"})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	clock := time.Unix(1_700_000_000, 0)
	st.now = func() time.Time { return clock }

	kv.setGetErr(errors.New("connection refused"))
	st.invalidate(Options{})
	before := kv.getCount()
	for i := 0; i < 10; i++ {
		if got := st.Get(ctx); got != saved {
			t.Fatalf("expected last good snapshot, got %+v", got)
		}
	}
	if n := kv.getCount() - before; n != 1 {
		t.Fatalf("expected a single storage read during back-off, got %d", n)
	}

	clock = clock.Add(loadRetryBackoff)
	st.Get(ctx)
	if n := kv.getCount() - before; n != 2 {
		t.Fatalf("expected a retry after back-off, got %d reads", n)
	}

	kv.setGetErr(nil)
	clock = clock.Add(loadRetryBackoff)
	if got := st.Get(ctx); got != saved {
		t.Fatalf("expected stored options after recovery, got %+v", got)
	}
	after := kv.getCount()
	st.Get(ctx)
	if kv.getCount() != after {
		t.Fatalf("expected cached read after recovery")
	}
}
