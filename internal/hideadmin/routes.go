package hideadmin

import (
	"path"
	"strings"
	"sync"
	"sync/atomic"

	"hideadmin/internal/obs"
)

// LoginRoutes 维护“隐藏 slug -> 渲染登录页”的唯一映射。
// 读（Match）无锁；Rebuild 串行执行，仅在 slug 变化、激活或跨实例失效时调用。
type LoginRoutes struct {
	mu       sync.Mutex
	slug     atomic.Pointer[string]
	rebuilds atomic.Int64
}

func NewLoginRoutes() *LoginRoutes {
	return &LoginRoutes{}
}

// Rebuild 原子替换当前映射。
func (r *LoginRoutes) Rebuild(slug string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := NormalizePath(slug)
	r.slug.Store(&s)
	r.rebuilds.Add(1)
	obs.RecordLoginRouteRebuild()
}

// Slug 返回当前生效的 slug；尚未构建时为空串。
func (r *LoginRoutes) Slug() string {
	if p := r.slug.Load(); p != nil {
		return *p
	}
	return ""
}

// Match 判断已归一化的请求路径是否命中隐藏登录入口（slug 或 slug/）。
func (r *LoginRoutes) Match(normalizedPath string) bool {
	slug := r.Slug()
	return slug != "" && normalizedPath == slug
}

func (r *LoginRoutes) Rebuilds() int64 {
	return r.rebuilds.Load()
}

// NormalizePath 清理 "." / ".." / 重复斜杠，并去掉首尾斜杠："/wp-admin/" -> "wp-admin"。
func NormalizePath(p string) string {
	if p == "" {
		return ""
	}
	return strings.Trim(path.Clean("/"+p), "/")
}
