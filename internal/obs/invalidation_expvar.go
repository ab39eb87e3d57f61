package obs

import (
	"expvar"
	"sync/atomic"
	"time"
)

// 多实例部署下 options 版本轮询的健康度指标。
var (
	invalidationPollTicks  int64
	invalidationPollErrors int64
	invalidationLastOKUnix int64

	invalidationVersions = expvar.NewMap("hideadmin_cache_invalidation_versions")
)

func init() {
	expvar.Publish("hideadmin_invalidation_poller_ticks_total", expvar.Func(func() any {
		return atomic.LoadInt64(&invalidationPollTicks)
	}))
	expvar.Publish("hideadmin_invalidation_poller_errors_total", expvar.Func(func() any {
		return atomic.LoadInt64(&invalidationPollErrors)
	}))
	expvar.Publish("hideadmin_invalidation_poller_last_ok_unix", expvar.Func(func() any {
		return atomic.LoadInt64(&invalidationLastOKUnix)
	}))
}

func RecordInvalidationPollTick(ok bool) {
	atomic.AddInt64(&invalidationPollTicks, 1)
	if ok {
		atomic.StoreInt64(&invalidationLastOKUnix, time.Now().Unix())
		return
	}
	atomic.AddInt64(&invalidationPollErrors, 1)
}

func SetInvalidationVersion(key string, version int64) {
	if key == "" {
		return
	}
	v := new(expvar.Int)
	v.Set(version)
	invalidationVersions.Set(key, v)
}
