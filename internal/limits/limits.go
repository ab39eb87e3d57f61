// Package limits 提供单实例的最小护栏：登录失败锁定与登录并发保护。
//
// 状态只保存在进程内存里；多实例部署时每个实例各自计数。
package limits

import (
	"sync"
	"time"
)

// maxTrackedKeys 超过后每次写入都会顺带清理过期条目。
const maxTrackedKeys = 4096

// InflightLimits 限制同一 key（客户端 IP）同时进行的登录校验数，避免 bcrypt 被并发请求放大。
type InflightLimits struct {
	maxInflight int

	mu       sync.Mutex
	inflight map[string]int
}

func NewInflightLimits(maxInflight int) *InflightLimits {
	if maxInflight <= 0 {
		maxInflight = 1
	}
	return &InflightLimits{
		maxInflight: maxInflight,
		inflight:    make(map[string]int),
	}
}

func (l *InflightLimits) Acquire(key string) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.inflight[key] >= l.maxInflight {
		return false
	}
	l.inflight[key]++
	return true
}

func (l *InflightLimits) Release(key string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.inflight[key] > 0 {
		l.inflight[key]--
	}
	if l.inflight[key] == 0 {
		delete(l.inflight, key)
	}
}

type failureEntry struct {
	count       int
	first       time.Time
	lockedUntil time.Time
}

// FailureLimits 统计窗口内的登录失败次数；达到上限后锁定一个窗口长度。
// maxFailures<=0 时不限制。
type FailureLimits struct {
	maxFailures int
	window      time.Duration
	now         func() time.Time

	mu      sync.Mutex
	entries map[string]*failureEntry
}

func NewFailureLimits(maxFailures int, window time.Duration) *FailureLimits {
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &FailureLimits{
		maxFailures: maxFailures,
		window:      window,
		now:         time.Now,
		entries:     make(map[string]*failureEntry),
	}
}

func (l *FailureLimits) enabled() bool {
	return l != nil && l.maxFailures > 0
}

// Locked 返回 key 是否处于锁定期以及剩余时间。
func (l *FailureLimits) Locked(key string) (time.Duration, bool) {
	if !l.enabled() {
		return 0, false
	}
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.entries[key]
	if e == nil || e.lockedUntil.IsZero() {
		return 0, false
	}
	if !now.Before(e.lockedUntil) {
		delete(l.entries, key)
		return 0, false
	}
	return e.lockedUntil.Sub(now), true
}

// Fail 记录一次失败；返回本次失败后是否进入锁定。
func (l *FailureLimits) Fail(key string) bool {
	if !l.enabled() {
		return false
	}
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.entries) >= maxTrackedKeys {
		l.sweepLocked(now)
	}
	e := l.entries[key]
	if e == nil || now.Sub(e.first) > l.window {
		e = &failureEntry{first: now}
		l.entries[key] = e
	}
	e.count++
	if e.count >= l.maxFailures {
		e.lockedUntil = now.Add(l.window)
		return true
	}
	return false
}

// Reset 在登录成功后清除 key 的失败记录。
func (l *FailureLimits) Reset(key string) {
	if !l.enabled() {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, key)
}

func (l *FailureLimits) sweepLocked(now time.Time) {
	for k, e := range l.entries {
		if now.Sub(e.first) > l.window && !now.Before(e.lockedUntil) {
			delete(l.entries, k)
		}
	}
}
