package hideadmin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"hideadmin/internal/obs"
)

// KV 为持久化键值存储（app_settings）。
type KV interface {
	GetAppSetting(ctx context.Context, key string) (string, bool, error)
	UpsertAppSetting(ctx context.Context, key string, value string) error
}

// VersionStore 为可选的跨实例失效版本（cache_invalidation）；KV 同时实现它时自动启用。
type VersionStore interface {
	BumpCacheInvalidation(ctx context.Context, key string) error
	GetCacheInvalidationVersion(ctx context.Context, key string) (int64, bool, error)
}

// loadRetryBackoff 为读取失败后的退避时间：期间 Get 直接返回兜底值，不再访问存储。
const loadRetryBackoff = 2 * time.Second

// RouteTable 为 slug 变化时必须重建的路由映射。
type RouteTable interface {
	Slug() string
	Rebuild(slug string)
}

// ConfigStore 持有 hideadmin 选项，进程内缓存 + 保存时显式失效。
//
// Get 永不返回错误：存储不可用时回退到最近一次成功读取的值（没有则为默认值）。
// Save 单写者执行：先写库、再失效缓存、再重新加载，Save 返回后不会再读到旧值。
type ConfigStore struct {
	kv       KV
	versions VersionStore
	routes   RouteTable
	defaults Defaults

	saveMu sync.Mutex

	mu          sync.RWMutex
	cached      Options
	cachedOK    bool
	gen         uint64
	lastGood    Options
	hasGood     bool
	seenVersion int64

	now         func() time.Time
	// retryAt 非零时处于读取退避期；loadFailing 用于每次故障只告警一次。
	retryAt     time.Time
	loadFailing bool
}

func NewConfigStore(kv KV, routes RouteTable, defaults Defaults) *ConfigStore {
	s := &ConfigStore{
		kv:       kv,
		routes:   routes,
		defaults: defaults.normalized(),
		now:      time.Now,
	}
	if vs, ok := kv.(VersionStore); ok {
		s.versions = vs
	}
	return s
}

func (s *ConfigStore) Defaults() Defaults {
	return s.defaults
}

// Get 返回当前有效选项（已归一化）。
func (s *ConfigStore) Get(ctx context.Context) Options {
	s.mu.RLock()
	if s.cachedOK {
		o := s.cached
		s.mu.RUnlock()
		return o
	}
	gen := s.gen
	backoff := !s.retryAt.IsZero() && s.now().Before(s.retryAt)
	s.mu.RUnlock()
	if backoff {
		return s.fallback()
	}

	o, err := s.load(ctx)
	if err != nil {
		s.loadFailed(err)
		return s.fallback()
	}

	s.mu.Lock()
	recovered := s.loadFailing
	s.loadFailing = false
	s.retryAt = time.Time{}
	// 加载期间发生过失效则不回填，避免把旧值装回缓存。
	if s.gen == gen {
		s.cached = o
		s.cachedOK = true
	}
	s.lastGood = o
	s.hasGood = true
	s.mu.Unlock()
	if recovered {
		slog.Info("hideadmin 选项读取已恢复")
	}
	return o
}

// loadFailed 进入退避期；同一次故障只在第一次失败时告警。
func (s *ConfigStore) loadFailed(err error) {
	s.mu.Lock()
	first := !s.loadFailing
	s.loadFailing = true
	s.retryAt = s.now().Add(loadRetryBackoff)
	s.mu.Unlock()
	if first {
		slog.Warn("读取 hideadmin 选项失败，使用兜底值", "err", err, "retry_after", loadRetryBackoff)
		return
	}
	slog.Debug("读取 hideadmin 选项仍然失败", "err", err)
}

// IsEnabled 对应设置页的“是否启用”。
func (s *ConfigStore) IsEnabled(ctx context.Context) bool {
	return s.Get(ctx).FeatureEnabled
}

// Save 校验并归一化不可信输入后持久化，返回归一化结果。
// slug 变化时重建登录路由（恰好一次）；写库失败时缓存与路由均保持不变。
func (s *ConfigStore) Save(ctx context.Context, raw RawInput) (Options, error) {
	if s == nil || s.kv == nil {
		return Options{}, errors.New("hideadmin 选项存储未初始化")
	}
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	prev := s.Get(ctx)
	clean := sanitizeInput(raw, s.defaults)
	if err := s.persist(ctx, clean); err != nil {
		return Options{}, err
	}

	s.invalidate(clean)
	slugChanged := prev.LoginSlug != clean.LoginSlug
	if slugChanged && s.routes != nil {
		s.routes.Rebuild(clean.LoginSlug)
	}
	s.bumpVersion(ctx)

	out := s.Get(ctx)
	slog.Info("hideadmin 选项已保存",
		"slug_changed", slugChanged,
		"feature_enabled", out.FeatureEnabled,
		"redirect_mode", string(out.RedirectMode),
	)
	return out, nil
}

// Reset 把选项恢复为默认值（运维找回 slug 用）。
func (s *ConfigStore) Reset(ctx context.Context) (Options, error) {
	return s.Save(ctx, s.defaults.Options().Raw())
}

// Activate 为首次激活：键不存在时写入默认值，然后构建一次登录路由。
func (s *ConfigStore) Activate(ctx context.Context) error {
	if s == nil || s.kv == nil {
		return errors.New("hideadmin 选项存储未初始化")
	}
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	_, ok, err := s.kv.GetAppSetting(ctx, OptionsKey)
	if err != nil {
		return fmt.Errorf("读取 hideadmin 选项失败: %w", err)
	}
	if !ok {
		if err := s.persist(ctx, s.defaults.Options()); err != nil {
			return err
		}
		s.bumpVersion(ctx)
		slog.Info("hideadmin 选项已初始化为默认值", "login_slug", s.defaults.LoginSlug)
	} else {
		s.rememberVersion(ctx)
	}

	s.invalidate(Options{})
	o := s.Get(ctx)
	if s.routes != nil {
		s.routes.Rebuild(o.LoginSlug)
	}
	return nil
}

// Refresh 丢弃缓存并重新加载；登录路由与新 slug 不一致时重建。
// 由跨实例失效轮询调用。
func (s *ConfigStore) Refresh(ctx context.Context) Options {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.invalidate(Options{})
	o := s.Get(ctx)
	if s.routes != nil && s.routes.Slug() != o.LoginSlug {
		s.routes.Rebuild(o.LoginSlug)
	}
	return o
}

func (s *ConfigStore) load(ctx context.Context) (Options, error) {
	if s.kv == nil {
		return s.defaults.Options(), nil
	}
	blob, ok, err := s.kv.GetAppSetting(ctx, OptionsKey)
	if err != nil {
		return Options{}, err
	}
	if !ok {
		return s.defaults.Options(), nil
	}
	return decodeOptions(blob, s.defaults), nil
}

func (s *ConfigStore) persist(ctx context.Context, o Options) error {
	blob, err := encodeOptions(o)
	if err != nil {
		return fmt.Errorf("编码 hideadmin 选项失败: %w", err)
	}
	if err := s.kv.UpsertAppSetting(ctx, OptionsKey, blob); err != nil {
		return fmt.Errorf("保存 hideadmin 选项失败: %w", err)
	}
	return nil
}

// invalidate 清空缓存；written 非零值时作为新的兜底值（刚写入成功的选项）。
func (s *ConfigStore) invalidate(written Options) {
	s.mu.Lock()
	s.cachedOK = false
	s.retryAt = time.Time{}
	s.gen++
	if written.LoginSlug != "" {
		s.lastGood = written
		s.hasGood = true
	}
	s.mu.Unlock()
	obs.RecordOptionsCacheInvalidation()
}

func (s *ConfigStore) fallback() Options {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.hasGood {
		return s.lastGood
	}
	return s.defaults.Options()
}

func (s *ConfigStore) bumpVersion(ctx context.Context) {
	if s.versions == nil {
		return
	}
	if err := s.versions.BumpCacheInvalidation(ctx, OptionsKey); err != nil {
		slog.Warn("bump hideadmin 缓存版本失败", "err", err)
		return
	}
	s.rememberVersion(ctx)
}

func (s *ConfigStore) rememberVersion(ctx context.Context) {
	if s.versions == nil {
		return
	}
	v, ok, err := s.versions.GetCacheInvalidationVersion(ctx, OptionsKey)
	if err != nil || !ok {
		return
	}
	s.mu.Lock()
	s.seenVersion = v
	s.mu.Unlock()
	obs.SetInvalidationVersion(OptionsKey, v)
}
