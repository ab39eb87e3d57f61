package obs

import (
	"expvar"
	"sync/atomic"
)

var (
	gateDecisions = expvar.NewMap("hideadmin_gate_decisions_total")

	loginRouteRebuilds       int64
	optionsCacheInvalidation int64
	loginLockouts            int64
)

func init() {
	expvar.Publish("hideadmin_login_route_rebuilds_total", expvar.Func(func() any {
		return atomic.LoadInt64(&loginRouteRebuilds)
	}))
	expvar.Publish("hideadmin_options_cache_invalidations_total", expvar.Func(func() any {
		return atomic.LoadInt64(&optionsCacheInvalidation)
	}))
	expvar.Publish("hideadmin_login_lockouts_total", expvar.Func(func() any {
		return atomic.LoadInt64(&loginLockouts)
	}))
}

// RecordGateDecision 按 action 维度累加网关判定次数（pass_through 也计入）。
func RecordGateDecision(action string) {
	if action == "" {
		return
	}
	gateDecisions.Add(action, 1)
}

func RecordLoginRouteRebuild() {
	atomic.AddInt64(&loginRouteRebuilds, 1)
}

func RecordOptionsCacheInvalidation() {
	atomic.AddInt64(&optionsCacheInvalidation, 1)
}

func RecordLoginLockout() {
	atomic.AddInt64(&loginLockouts, 1)
}
