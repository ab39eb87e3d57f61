package hideadmin

import (
	"context"
	"log/slog"
	"time"

	"hideadmin/internal/obs"
)

// StartInvalidationPoller 在多实例部署下定期比对 cache_invalidation 版本；
// 版本变化（其他实例或 hideadmin-ctl 保存过选项）时刷新缓存与登录路由。
// interval<=0 或存储不支持版本时不启动。
func (s *ConfigStore) StartInvalidationPoller(ctx context.Context, interval time.Duration) {
	if s == nil || s.versions == nil || interval <= 0 {
		return
	}
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.pollInvalidation(ctx)
			}
		}
	}()
}

// pollInvalidation 返回本次是否触发了刷新。
func (s *ConfigStore) pollInvalidation(ctx context.Context) bool {
	v, ok, err := s.versions.GetCacheInvalidationVersion(ctx, OptionsKey)
	if err != nil {
		obs.RecordInvalidationPollTick(false)
		slog.Warn("轮询 hideadmin 缓存版本失败", "err", err)
		return false
	}
	obs.RecordInvalidationPollTick(true)
	if !ok {
		return false
	}
	obs.SetInvalidationVersion(OptionsKey, v)

	s.mu.Lock()
	moved := v != s.seenVersion
	s.seenVersion = v
	s.mu.Unlock()
	if !moved {
		return false
	}

	o := s.Refresh(ctx)
	slog.Info("hideadmin 选项已按版本刷新", "version", v, "login_slug", o.LoginSlug)
	return true
}
